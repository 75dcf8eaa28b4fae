// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/retext/pkg/prompt"
	"github.com/walteh/retext/pkg/ratelimit"
	"github.com/walteh/retext/pkg/retry"
	"github.com/walteh/retext/pkg/scan"
	"gitlab.com/tozd/go/errors"
)

func writeInputTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755), "creating parent of %s", rel)
		require.NoError(t, os.WriteFile(abs, []byte(content), 0644), "writing %s", rel)
	}
}

// newBatch scans a fresh input tree and returns the mirror plus one
// task per discovered entry, in walk order.
func newBatch(t *testing.T, files map[string]string, spec *prompt.Spec) (*scan.Mirror, []Task) {
	t.Helper()
	ctx := context.Background()

	input := t.TempDir()
	writeInputTree(t, input, files)

	mirror, err := scan.New(scan.Options{
		Input:     input,
		Output:    t.TempDir(),
		Transform: scan.DefaultTransformPatterns,
	})
	require.NoError(t, err, "building mirror")

	result, err := mirror.Scan(ctx)
	require.NoError(t, err, "scanning input tree")
	require.NoError(t, mirror.MirrorDirs(ctx, result.Entries), "mirroring directories")

	tasks := make([]Task, 0, len(result.Entries))
	for _, e := range result.Entries {
		tasks = append(tasks, Task{Entry: e, Spec: spec})
	}

	return mirror, tasks
}

func newPool(t *testing.T, opts PoolOptions) *Pool {
	t.Helper()

	pool, err := NewPool(opts)
	require.NoError(t, err, "creating pool")

	return pool
}

func noRetry() *retry.Caller {
	return retry.New(retry.Policy{}, nil)
}

func uppercase() Caller {
	return CallFunc(func(ctx context.Context, req Request) (string, error) {
		return strings.ToUpper(req.Content), nil
	})
}

func readOutput(t *testing.T, m *scan.Mirror, rel string) string {
	t.Helper()

	content, err := os.ReadFile(m.OutputPath(rel))
	require.NoError(t, err, "reading output %s", rel)

	return string(content)
}

func TestProcess_MixedTreeAllSucceed(t *testing.T) {
	mirror, tasks := newBatch(t, map[string]string{
		"a.md":     "# alpha",
		"b.txt":    "plain bytes",
		"sub/c.md": "# gamma",
	}, nil)

	pool := newPool(t, PoolOptions{
		Workers: 2,
		Mirror:  mirror,
		Caller:  uppercase(),
		Retrier: retry.New(retry.Policy{MaxRetries: 3}, nil),
	})

	report := pool.Process(context.Background(), tasks)

	assert.Equal(t, 3, report.SuccessfulCount)
	assert.Equal(t, 0, report.FailedCount)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 2, report.Transformed)
	assert.Equal(t, 1, report.Copied)

	assert.Equal(t, "# ALPHA", readOutput(t, mirror, "a.md"))
	assert.Equal(t, "plain bytes", readOutput(t, mirror, "b.txt"), "pass-through files must be byte-identical")
	assert.Equal(t, "# GAMMA", readOutput(t, mirror, "sub/c.md"))
}

func TestProcess_RetryableFailuresExhaustRetries(t *testing.T) {
	mirror, tasks := newBatch(t, map[string]string{
		"a.md":     "# alpha",
		"b.txt":    "plain bytes",
		"sub/c.md": "# gamma",
	}, nil)

	var calls atomic.Int32
	flaky := CallFunc(func(ctx context.Context, req Request) (string, error) {
		calls.Add(1)
		return "", retry.Retryable(errors.New("service unavailable"))
	})

	pool := newPool(t, PoolOptions{
		Workers: 2,
		Mirror:  mirror,
		Caller:  flaky,
		Retrier: retry.New(retry.Policy{MaxRetries: 2}, nil),
	})

	report := pool.Process(context.Background(), tasks)

	assert.Equal(t, 1, report.SuccessfulCount, "the pass-through copy never touches the caller")
	assert.Equal(t, 2, report.FailedCount)
	assert.EqualValues(t, 6, calls.Load(), "two transformable files, three attempts each")

	require.Len(t, report.Failures, 2)
	assert.Equal(t, "a.md", report.Failures[0].RelativePath)
	assert.Equal(t, "sub/c.md", report.Failures[1].RelativePath)
	for _, f := range report.Failures {
		assert.Contains(t, f.Message, "service unavailable")
	}

	assert.FileExists(t, mirror.OutputPath("b.txt"))
	assert.NoFileExists(t, mirror.OutputPath("a.md"), "failed transforms must not leave output behind")
	assert.NoFileExists(t, mirror.OutputPath("sub/c.md"))
}

func TestProcess_ConcurrencyNeverExceedsWorkerBound(t *testing.T) {
	files := make(map[string]string, 12)
	for i := 0; i < 12; i++ {
		files[fmt.Sprintf("note-%02d.md", i)] = fmt.Sprintf("note %d", i)
	}
	mirror, tasks := newBatch(t, files, nil)

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	caller := CallFunc(func(ctx context.Context, req Request) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()

		return req.Content, nil
	})

	pool := newPool(t, PoolOptions{
		Workers: 3,
		Mirror:  mirror,
		Caller:  caller,
		Retrier: noRetry(),
	})

	report := pool.Process(context.Background(), tasks)

	assert.Equal(t, 12, report.SuccessfulCount)
	assert.LessOrEqual(t, maxInFlight, 3, "in-flight calls must never exceed the worker count")
	assert.Greater(t, maxInFlight, 1, "workers should actually overlap")
}

func TestProcess_FailureIsolation(t *testing.T) {
	mirror, tasks := newBatch(t, map[string]string{
		"a.md":  "alpha",
		"b.md":  "poison",
		"c.md":  "gamma",
		"d.txt": "delta",
	}, nil)

	caller := CallFunc(func(ctx context.Context, req Request) (string, error) {
		if strings.Contains(req.Content, "poison") {
			return "", retry.Fatal(errors.New("bad credentials"))
		}

		return strings.ToUpper(req.Content), nil
	})

	pool := newPool(t, PoolOptions{
		Workers: 2,
		Mirror:  mirror,
		Caller:  caller,
		Retrier: retry.New(retry.Policy{MaxRetries: 3}, nil),
	})

	report := pool.Process(context.Background(), tasks)

	assert.Equal(t, 3, report.SuccessfulCount)
	assert.Equal(t, 1, report.FailedCount)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "b.md", report.Failures[0].RelativePath)
	assert.Contains(t, report.Failures[0].Message, "bad credentials")

	assert.Equal(t, "ALPHA", readOutput(t, mirror, "a.md"))
	assert.Equal(t, "GAMMA", readOutput(t, mirror, "c.md"))
	assert.Equal(t, "delta", readOutput(t, mirror, "d.txt"))
}

func TestProcess_PanicBecomesInternalError(t *testing.T) {
	mirror, tasks := newBatch(t, map[string]string{
		"a.md":  "boom",
		"b.txt": "plain",
		"c.md":  "gamma",
	}, nil)

	caller := CallFunc(func(ctx context.Context, req Request) (string, error) {
		if strings.Contains(req.Content, "boom") {
			panic("caller exploded")
		}

		return req.Content, nil
	})

	pool := newPool(t, PoolOptions{
		Workers: 2,
		Mirror:  mirror,
		Caller:  caller,
		Retrier: noRetry(),
	})

	report := pool.Process(context.Background(), tasks)

	assert.Equal(t, 2, report.SuccessfulCount, "a panicking task must not take the batch down")
	assert.Equal(t, 1, report.FailedCount)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "a.md", report.Failures[0].RelativePath)
	assert.Contains(t, report.Failures[0].Message, "internal error")
	assert.Contains(t, report.Failures[0].Message, "caller exploded")
}

func TestProcess_EmptyTaskList(t *testing.T) {
	mirror, tasks := newBatch(t, map[string]string{}, nil)
	require.Empty(t, tasks)

	pool := newPool(t, PoolOptions{
		Workers: 2,
		Mirror:  mirror,
		Caller:  uppercase(),
		Retrier: noRetry(),
	})

	report := pool.Process(context.Background(), tasks)

	assert.Equal(t, 0, report.SuccessfulCount)
	assert.Equal(t, 0, report.FailedCount)
	assert.Empty(t, report.Failures)
	assert.False(t, report.Failed())
}

func TestProcess_UnreadableSourceIsPerFileFailure(t *testing.T) {
	mirror, tasks := newBatch(t, map[string]string{
		"a.md":     "alpha",
		"b.txt":    "plain",
		"sub/c.md": "gamma",
	}, nil)

	// The files vanish between scan and execution.
	require.NoError(t, os.Remove(filepath.Join(mirror.Input(), "a.md")))
	require.NoError(t, os.Remove(filepath.Join(mirror.Input(), "b.txt")))

	pool := newPool(t, PoolOptions{
		Workers: 2,
		Mirror:  mirror,
		Caller:  uppercase(),
		Retrier: noRetry(),
	})

	report := pool.Process(context.Background(), tasks)

	assert.Equal(t, 1, report.SuccessfulCount)
	assert.Equal(t, 2, report.FailedCount)
	require.Len(t, report.Failures, 2)
	assert.Contains(t, report.Failures[0].Message, "reading source file")
	assert.Contains(t, report.Failures[1].Message, "opening source file")
	assert.Equal(t, "GAMMA", readOutput(t, mirror, "sub/c.md"))
}

func TestProcess_CancelledRunAccountsForEveryTask(t *testing.T) {
	files := make(map[string]string, 5)
	for i := 0; i < 5; i++ {
		files[fmt.Sprintf("doc-%d.md", i)] = fmt.Sprintf("doc %d", i)
	}
	mirror, tasks := newBatch(t, files, nil)

	ctx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	var calls atomic.Int32
	caller := CallFunc(func(callCtx context.Context, req Request) (string, error) {
		if calls.Add(1) == 1 {
			cancelRun()
			return "", retry.Fatal(errors.New("upstream rejected the call"))
		}
		if err := callCtx.Err(); err != nil {
			return "", retry.Fatal(err)
		}

		return req.Content, nil
	})

	pool := newPool(t, PoolOptions{
		Workers: 1,
		Mirror:  mirror,
		Caller:  caller,
		Retrier: retry.New(retry.Policy{MaxRetries: 3}, nil),
	})

	report := pool.Process(ctx, tasks)

	assert.Equal(t, 5, report.Total(), "every submitted task must be accounted for")
	assert.Equal(t, 0, report.SuccessfulCount)
	assert.Equal(t, 5, report.FailedCount)

	aborted := 0
	for _, f := range report.Failures {
		if strings.Contains(f.Message, "run aborted") {
			aborted++
		}
	}
	assert.GreaterOrEqual(t, aborted, 3, "tasks that never started must be recorded as aborted")
	assert.LessOrEqual(t, calls.Load(), int32(2), "cancellation must stop new calls")
}

func TestProcess_FailFastCancelsPendingTasks(t *testing.T) {
	files := make(map[string]string, 4)
	for i := 0; i < 4; i++ {
		files[fmt.Sprintf("doc-%d.md", i)] = fmt.Sprintf("doc %d", i)
	}
	mirror, tasks := newBatch(t, files, nil)

	var calls atomic.Int32
	caller := CallFunc(func(ctx context.Context, req Request) (string, error) {
		calls.Add(1)
		return "", retry.Fatal(errors.New("bad credentials"))
	})

	pool := newPool(t, PoolOptions{
		Workers:  1,
		Mirror:   mirror,
		Caller:   caller,
		Retrier:  retry.New(retry.Policy{MaxRetries: 5}, nil),
		FailFast: true,
	})

	report := pool.Process(context.Background(), tasks)

	assert.Equal(t, 4, report.Total())
	assert.Equal(t, 0, report.SuccessfulCount)
	assert.Equal(t, 4, report.FailedCount)
	assert.LessOrEqual(t, calls.Load(), int32(3), "fail-fast must stop scheduling new calls")

	aborted := 0
	for _, f := range report.Failures {
		if strings.Contains(f.Message, "fail-fast") {
			aborted++
		}
	}
	assert.GreaterOrEqual(t, aborted, 1, "at least the trailing tasks are aborted with the fail-fast cause")
}

func TestProcess_FailFastIgnoresRetryableFailures(t *testing.T) {
	mirror, tasks := newBatch(t, map[string]string{
		"a.md": "alpha",
		"b.md": "beta",
		"c.md": "gamma",
	}, nil)

	var calls atomic.Int32
	caller := CallFunc(func(ctx context.Context, req Request) (string, error) {
		calls.Add(1)
		return "", retry.Retryable(errors.New("flaky upstream"))
	})

	pool := newPool(t, PoolOptions{
		Workers:  1,
		Mirror:   mirror,
		Caller:   caller,
		Retrier:  retry.New(retry.Policy{MaxRetries: 1}, nil),
		FailFast: true,
	})

	report := pool.Process(context.Background(), tasks)

	assert.Equal(t, 3, report.FailedCount)
	assert.EqualValues(t, 6, calls.Load(), "retryable failures must not trip fail-fast")
	for _, f := range report.Failures {
		assert.NotContains(t, f.Message, "run aborted")
	}
}

func TestProcess_SpecShapesCallPayload(t *testing.T) {
	temp := 0.2
	spec := &prompt.Spec{
		System:      "be brief",
		Template:    "Rewrite:\n\n{{content}}",
		Temperature: &temp,
	}
	mirror, tasks := newBatch(t, map[string]string{"a.md": "body text"}, spec)

	var got Request
	caller := CallFunc(func(ctx context.Context, req Request) (string, error) {
		got = req
		return "rewritten", nil
	})

	pool := newPool(t, PoolOptions{
		Workers: 1,
		Mirror:  mirror,
		Caller:  caller,
		Retrier: noRetry(),
	})

	report := pool.Process(context.Background(), tasks)
	require.Equal(t, 1, report.SuccessfulCount)

	assert.Equal(t, "be brief", got.System)
	assert.Equal(t, "Rewrite:\n\nbody text", got.Content)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.2, *got.Temperature, 0.0001)
	assert.Equal(t, "rewritten", readOutput(t, mirror, "a.md"))
}

func TestProcess_SharedGateSpacesAllCalls(t *testing.T) {
	mirror, tasks := newBatch(t, map[string]string{
		"a.md": "alpha",
		"b.md": "beta",
		"c.md": "gamma",
	}, nil)

	interval := 25 * time.Millisecond
	pool := newPool(t, PoolOptions{
		Workers: 3,
		Mirror:  mirror,
		Caller:  uppercase(),
		Retrier: retry.New(retry.Policy{}, ratelimit.NewInterval(interval)),
	})

	start := time.Now()
	report := pool.Process(context.Background(), tasks)
	elapsed := time.Since(start)

	assert.Equal(t, 3, report.SuccessfulCount)
	assert.GreaterOrEqual(t, elapsed, 2*interval, "three gated calls need at least two full intervals")
}

type recordingTracker struct {
	mu        sync.Mutex
	total     int
	processed []int
	done      []Outcome
	report    *JobReport
}

func (r *recordingTracker) StartOperation(ctx context.Context, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
}

func (r *recordingTracker) TaskDone(ctx context.Context, o Outcome, processed, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = append(r.processed, processed)
	r.done = append(r.done, o)
}

func (r *recordingTracker) FinishOperation(ctx context.Context, report *JobReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report = report
}

func TestProcess_TrackerSeesEveryTask(t *testing.T) {
	mirror, tasks := newBatch(t, map[string]string{
		"a.md":     "alpha",
		"b.txt":    "plain",
		"sub/c.md": "gamma",
	}, nil)

	var alphaCalls atomic.Int32
	caller := CallFunc(func(ctx context.Context, req Request) (string, error) {
		if strings.Contains(req.Content, "alpha") && alphaCalls.Add(1) == 1 {
			return "", retry.Retryable(errors.New("flaky upstream"))
		}

		return strings.ToUpper(req.Content), nil
	})

	tracker := &recordingTracker{}
	pool := newPool(t, PoolOptions{
		Workers: 2,
		Mirror:  mirror,
		Caller:  caller,
		Retrier: retry.New(retry.Policy{MaxRetries: 2}, nil),
		Tracker: tracker,
	})

	report := pool.Process(context.Background(), tasks)
	require.Equal(t, 3, report.SuccessfulCount)

	assert.Equal(t, 3, tracker.total)
	assert.Equal(t, []int{1, 2, 3}, tracker.processed, "progress must tick once per task")
	require.NotNil(t, tracker.report)
	assert.Equal(t, 3, tracker.report.Total())

	var alpha *Outcome
	for i := range tracker.done {
		if tracker.done[i].Entry.RelativePath == "a.md" {
			alpha = &tracker.done[i]
		}
	}
	require.NotNil(t, alpha, "tracker should have seen a.md")
	assert.True(t, alpha.Success)
	assert.Equal(t, 1, alpha.Retries, "the retried attempt count travels with the outcome")
}

func TestNewPool_Validation(t *testing.T) {
	mirror, _ := newBatch(t, map[string]string{}, nil)

	tests := []struct {
		name    string
		opts    PoolOptions
		wantErr string
	}{
		{
			name:    "zero_workers",
			opts:    PoolOptions{Workers: 0, Mirror: mirror, Caller: uppercase(), Retrier: noRetry()},
			wantErr: "worker count",
		},
		{
			name:    "missing_mirror",
			opts:    PoolOptions{Workers: 1, Caller: uppercase(), Retrier: noRetry()},
			wantErr: "mirror is required",
		},
		{
			name:    "missing_caller",
			opts:    PoolOptions{Workers: 1, Mirror: mirror, Retrier: noRetry()},
			wantErr: "caller is required",
		},
		{
			name:    "missing_retrier",
			opts:    PoolOptions{Workers: 1, Mirror: mirror, Caller: uppercase()},
			wantErr: "retrier is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPool(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	pool, err := NewPool(PoolOptions{Workers: 1, Mirror: mirror, Caller: uppercase(), Retrier: noRetry()})
	require.NoError(t, err)
	assert.NotNil(t, pool)
}
