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

package operation

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/retext/pkg/batch"
	"github.com/walteh/retext/pkg/llm"
	"github.com/walteh/retext/pkg/prompt"
	"github.com/walteh/retext/pkg/ratelimit"
	"github.com/walteh/retext/pkg/retry"
	"github.com/walteh/retext/pkg/scan"
	"github.com/walteh/retext/pkg/state"
	"github.com/walteh/retext/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// ProcessFolder implements Operator.ProcessFolder. The report is
// returned even when the trailing lock write fails, so callers can
// still show what the run did.
func (o *operator) ProcessFolder(ctx context.Context) (*batch.JobReport, error) {
	logger := zerolog.Ctx(ctx)

	cfg := o.config
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	mirror, err := scan.New(scan.Options{
		Input:     cfg.Input,
		Output:    cfg.Output,
		Transform: cfg.Transform,
		Ignore:    cfg.Ignore,
	})
	if err != nil {
		return nil, err
	}

	result, err := mirror.Scan(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("files", len(result.Entries)).
		Int("skipped", len(result.Skipped)).
		Str("input", cfg.Input).
		Str("output", cfg.Output).
		Msg("scan complete")

	if err := mirror.MirrorDirs(ctx, result.Entries); err != nil {
		return nil, err
	}

	spec, err := o.loadSpec(ctx)
	if err != nil {
		return nil, err
	}

	caller, model, err := o.buildCaller(ctx)
	if err != nil {
		return nil, err
	}

	run := state.New(cfg.Input, cfg.Prompt, model)
	trackers := multiTracker{
		status.NewManager(o.user),
		newLockTracker(run, mirror),
	}
	if o.tracker != nil {
		trackers = append(trackers, o.tracker)
	}

	pool, err := batch.NewPool(batch.PoolOptions{
		Workers:  cfg.Workers,
		Mirror:   mirror,
		Caller:   caller,
		Retrier:  o.retrier(),
		Tracker:  trackers,
		FailFast: cfg.FailFast,
	})
	if err != nil {
		return nil, err
	}

	if o.user != nil {
		o.user.LogRunStart(cfg.Input, cfg.Output, len(result.Entries))
	}

	tasks := make([]batch.Task, 0, len(result.Entries))
	for _, e := range result.Entries {
		tasks = append(tasks, batch.Task{Entry: e, Spec: spec})
	}

	report := pool.Process(ctx, tasks)

	run.SetSummary(report)
	if err := run.Write(ctx, state.LockPath(cfg.Output)); err != nil {
		return report, errors.Errorf("writing lock file: %w", err)
	}

	return report, nil
}

// loadSpec loads the prompt spec named by the config, nil when the run
// has none.
func (o *operator) loadSpec(ctx context.Context) (*prompt.Spec, error) {
	if o.config.Prompt == "" {
		return nil, nil
	}

	spec, err := prompt.Load(ctx, o.config.Prompt)
	if err != nil {
		return nil, errors.Errorf("loading prompt spec: %w", err)
	}

	return spec, nil
}

// buildCaller returns the transform backend and the model name the run
// should record. An injected caller wins over the environment.
func (o *operator) buildCaller(ctx context.Context) (batch.Caller, string, error) {
	if o.caller != nil {
		return o.caller, o.config.Model, nil
	}

	var opts []llm.Option
	if o.config.Model != "" {
		opts = append(opts, llm.WithModel(o.config.Model))
	}
	if o.config.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(o.config.BaseURL))
	}

	client, err := llm.NewFromEnv(opts...)
	if err != nil {
		return nil, "", errors.Errorf("building transform client: %w", err)
	}

	return clientCaller(client), client.Model(), nil
}

// clientCaller adapts the HTTP client to the narrow interface the pool
// consumes.
func clientCaller(c *llm.Client) batch.Caller {
	return batch.CallFunc(func(ctx context.Context, req batch.Request) (string, error) {
		return c.Transform(ctx, llm.Request{
			System:      req.System,
			Content:     req.Content,
			Temperature: req.Temperature,
		})
	})
}

// retrier builds the per-call retry policy from the validated config.
// Every attempt pulls a slot from the shared rate gate.
func (o *operator) retrier() *retry.Caller {
	cfg := o.config

	return retry.New(retry.Policy{
		MaxRetries:     *cfg.MaxRetries,
		Delay:          cfg.RetryDelayDuration(),
		AttemptTimeout: cfg.CallTimeoutDuration(),
	}, ratelimit.NewInterval(cfg.RateLimitDelay()))
}
