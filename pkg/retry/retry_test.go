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

package retry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

type countingGate struct {
	mu sync.Mutex
	n  int
}

func (g *countingGate) Acquire(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++

	return nil
}

func (g *countingGate) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.n
}

func TestDo_AttemptAccounting(t *testing.T) {
	tests := []struct {
		name        string
		maxRetries  int
		failures    int  // attempts that fail before one succeeds
		fatal       bool // failures are fatal instead of retryable
		wantOut     string
		wantRetries int
		wantErr     bool
		wantCalls   int
	}{
		{
			name:        "succeeds_first_attempt",
			maxRetries:  3,
			failures:    0,
			wantOut:     "ok",
			wantRetries: 0,
			wantCalls:   1,
		},
		{
			name:        "succeeds_after_two_retryable_failures",
			maxRetries:  3,
			failures:    2,
			wantOut:     "ok",
			wantRetries: 2,
			wantCalls:   3,
		},
		{
			name:        "exhausts_retries_on_persistent_failure",
			maxRetries:  2,
			failures:    10,
			wantRetries: 2,
			wantErr:     true,
			wantCalls:   3, // maxRetries + 1 total attempts
		},
		{
			name:        "fatal_error_stops_immediately",
			maxRetries:  3,
			failures:    10,
			fatal:       true,
			wantRetries: 0,
			wantErr:     true,
			wantCalls:   1,
		},
		{
			name:        "zero_retries_means_single_attempt",
			maxRetries:  0,
			failures:    1,
			wantRetries: 0,
			wantErr:     true,
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &countingGate{}
			caller := New(Policy{MaxRetries: tt.maxRetries, Delay: time.Millisecond}, gate)

			calls := 0
			fn := func(ctx context.Context) (string, error) {
				calls++
				if calls <= tt.failures {
					err := errors.New("call failed")
					if tt.fatal {
						return "", Fatal(err)
					}
					return "", Retryable(err)
				}
				return "ok", nil
			}

			res, err := caller.Do(context.Background(), fn)

			if tt.wantErr {
				require.Error(t, err, "call should fail")
			} else {
				require.NoError(t, err, "call should succeed")
				assert.Equal(t, tt.wantOut, res.Output, "output should match")
			}
			assert.Equal(t, tt.wantRetries, res.Retries, "retry count should match")
			assert.Equal(t, tt.wantCalls, calls, "attempt count should match")
			assert.Equal(t, tt.wantCalls, gate.count(), "every attempt should consume one gate slot")
		})
	}
}

func TestDo_CustomClassifier(t *testing.T) {
	sentinel := errors.Base("sentinel")
	policy := Policy{
		MaxRetries: 5,
		Retryable: func(err error) bool {
			return !errors.Is(err, sentinel)
		},
	}

	calls := 0
	_, err := New(policy, nil).Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "", errors.Errorf("giving up: %w", sentinel)
	})

	require.Error(t, err, "call should fail")
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls, "classifier should stop the loop at the sentinel")
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	caller := New(Policy{MaxRetries: 3, Delay: time.Hour}, nil)
	_, err := caller.Do(ctx, func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", Retryable(errors.New("boom"))
	})

	require.Error(t, err, "cancelled run should fail")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "no further attempt should run after cancellation")
}

func TestDo_AttemptTimeoutBoundsEachCall(t *testing.T) {
	policy := Policy{MaxRetries: 1, AttemptTimeout: 15 * time.Millisecond}

	calls := 0
	_, err := New(policy, nil).Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		<-ctx.Done()
		return "", Retryable(ctx.Err())
	})

	require.Error(t, err, "hung call should fail")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls, "a timed-out attempt should still be retried")
}

func TestMarkers(t *testing.T) {
	base := errors.New("underlying")

	assert.Nil(t, Fatal(nil), "nil should stay nil")
	assert.Nil(t, Retryable(nil), "nil should stay nil")

	f := Fatal(base)
	require.Error(t, f)
	assert.ErrorIs(t, f, ErrFatal)
	assert.ErrorIs(t, f, base, "marker should preserve the cause chain")
	assert.False(t, DefaultClassifier(f), "fatal errors should not be retried")

	r := Retryable(base)
	assert.ErrorIs(t, r, ErrRetryable)
	assert.True(t, DefaultClassifier(r), "retryable errors should be retried")
	assert.True(t, DefaultClassifier(errors.New("unmarked")), "unmarked errors default to retryable")
}
