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
	"os"

	"github.com/rs/zerolog"
	"github.com/walteh/retext/pkg/retry"
	"github.com/walteh/retext/pkg/scan"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// ErrInternal marks faults recovered at the task boundary, so one
// misbehaving file cannot halt the batch.
var ErrInternal = errors.Base("internal error")

// Tracker receives per-task progress for console reporting.
type Tracker interface {
	StartOperation(ctx context.Context, total int)
	TaskDone(ctx context.Context, o Outcome, processed, total int)
	FinishOperation(ctx context.Context, report *JobReport)
}

// PoolOptions configure a Pool.
type PoolOptions struct {
	Workers  int
	Mirror   *scan.Mirror
	Caller   Caller
	Retrier  *retry.Caller
	Tracker  Tracker // optional
	FailFast bool    // cancel the run on the first fatal call error
}

// 🏭 Pool executes tasks with bounded concurrency and full failure
// isolation: every submitted task produces exactly one outcome, and no
// task's failure can block or corrupt another's.
type Pool struct {
	workers  int
	mirror   *scan.Mirror
	caller   Caller
	retrier  *retry.Caller
	tracker  Tracker
	failFast bool
}

// NewPool validates the options and creates a Pool.
func NewPool(opts PoolOptions) (*Pool, error) {
	if opts.Workers < 1 {
		return nil, errors.New("worker count must be at least 1")
	}
	if opts.Mirror == nil {
		return nil, errors.New("mirror is required")
	}
	if opts.Caller == nil {
		return nil, errors.New("caller is required")
	}
	if opts.Retrier == nil {
		return nil, errors.New("retrier is required")
	}

	return &Pool{
		workers:  opts.Workers,
		mirror:   opts.Mirror,
		caller:   opts.Caller,
		retrier:  opts.Retrier,
		tracker:  opts.Tracker,
		failFast: opts.FailFast,
	}, nil
}

// ⚡ Process runs every task and returns the aggregated report. The
// report accounts for every submitted task, cancelled runs included:
// tasks that never started are recorded as failed, in-flight tasks get
// to finish or time out.
func (p *Pool) Process(ctx context.Context, tasks []Task) *JobReport {
	logger := zerolog.Ctx(ctx)

	total := len(tasks)
	reporter := NewReporter()
	if p.tracker != nil {
		p.tracker.StartOperation(ctx, total)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// A single collector owns the Reporter, so workers never touch
	// shared counters directly.
	outcomes := make(chan Outcome)
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)

		processed := 0
		for o := range outcomes {
			reporter.Record(ctx, o)
			processed++
			if p.tracker != nil {
				p.tracker.TaskDone(ctx, o, processed, total)
			}

			if p.failFast && !o.Success && errors.Is(o.Err, retry.ErrFatal) {
				cancel(errors.Errorf("fail-fast after fatal error on %s: %w", o.Entry.RelativePath, o.Err))
			}
		}
	}()

	g := &errgroup.Group{}
	g.SetLimit(p.workers)
	for _, task := range tasks {
		if runCtx.Err() != nil {
			outcomes <- Outcome{
				Entry: task.Entry,
				Err:   errors.Errorf("run aborted: %w", context.Cause(runCtx)),
			}

			continue
		}

		task := task
		g.Go(func() error {
			outcomes <- p.runTask(runCtx, task)
			return nil
		})
	}
	g.Wait()
	close(outcomes)
	<-collectorDone

	report := reporter.Finalize()
	if p.tracker != nil {
		p.tracker.FinishOperation(ctx, report)
	}

	logger.Debug().
		Int("successful", report.SuccessfulCount).
		Int("failed", report.FailedCount).
		Int("total", report.Total()).
		Msg("batch complete")

	return report
}

// runTask executes one task. Panics are recovered at this boundary and
// surface as an internal-error outcome.
func (p *Pool) runTask(ctx context.Context, task Task) (out Outcome) {
	out = Outcome{Entry: task.Entry}
	defer func() {
		if r := recover(); r != nil {
			out.Success = false
			out.Err = errors.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	logger := zerolog.Ctx(ctx).With().
		Str("path", task.Entry.RelativePath).
		Str("kind", task.Entry.Kind.String()).
		Logger()
	ctx = logger.WithContext(ctx)

	switch task.Entry.Kind {
	case scan.Transformable:
		retries, err := p.transform(ctx, task)
		out.Retries = retries
		if err != nil {
			out.Err = err
			return out
		}
	default:
		if err := p.mirror.CopyFile(ctx, task.Entry); err != nil {
			out.Err = err
			return out
		}
	}

	out.Success = true

	return out
}

func (p *Pool) transform(ctx context.Context, task Task) (int, error) {
	content, err := os.ReadFile(task.Entry.AbsolutePath)
	if err != nil {
		return 0, errors.Errorf("reading source file: %w", err)
	}

	req := Request{Content: string(content)}
	if task.Spec != nil {
		req.System = task.Spec.System
		req.Content = task.Spec.Render(string(content))
		req.Temperature = task.Spec.Temperature
	}

	res, err := p.retrier.Do(ctx, func(ctx context.Context) (string, error) {
		return p.caller.Transform(ctx, req)
	})
	if err != nil {
		return res.Retries, errors.Errorf("transforming content: %w", err)
	}

	if err := p.mirror.WriteFile(ctx, task.Entry.RelativePath, []byte(res.Output)); err != nil {
		return res.Retries, errors.Errorf("writing output: %w", err)
	}

	return res.Retries, nil
}
