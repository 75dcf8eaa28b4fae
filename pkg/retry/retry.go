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
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrFatal marks call failures that must never be retried.
	ErrFatal = errors.Base("fatal call error")

	// ErrRetryable marks transient call failures worth another attempt.
	ErrRetryable = errors.Base("retryable call error")
)

// 🎯 Fatal marks err as non-retryable. A nil err stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}

	return &marked{err: err, kind: ErrFatal}
}

// 🔄 Retryable marks err as safe to try again. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}

	return &marked{err: err, kind: ErrRetryable}
}

type marked struct {
	err  error
	kind error
}

func (m *marked) Error() string { return m.err.Error() }

func (m *marked) Unwrap() error { return m.err }

func (m *marked) Is(target error) bool { return target == m.kind }

// Classifier reports whether a failed attempt may be tried again.
type Classifier func(err error) bool

// DefaultClassifier retries everything not explicitly marked fatal.
func DefaultClassifier(err error) bool {
	return !errors.Is(err, ErrFatal)
}

// Gate is acquired once per attempt, before the call is made, so that
// retries cannot bypass the shared throttle. *ratelimit.Limiter is the
// production implementation.
type Gate interface {
	Acquire(ctx context.Context) error
}

// 🎯 Policy bounds the attempts of one external call.
type Policy struct {
	MaxRetries     int           // additional attempts after the first
	Delay          time.Duration // fixed wait between attempts
	AttemptTimeout time.Duration // per-attempt deadline, zero means none
	Retryable      Classifier    // nil means DefaultClassifier
}

func (p Policy) classifier() Classifier {
	if p.Retryable != nil {
		return p.Retryable
	}

	return DefaultClassifier
}

// Func is one attempt of the underlying call.
type Func func(ctx context.Context) (string, error)

// Result carries the output of the final attempt and how many retries
// it took to get there.
type Result struct {
	Output  string
	Retries int
}

// 🏭 Caller runs functions under a retry policy, pulling one gate slot
// per attempt.
type Caller struct {
	policy Policy
	gate   Gate
}

// New creates a Caller. A nil gate disables throttling.
func New(policy Policy, gate Gate) *Caller {
	return &Caller{policy: policy, gate: gate}
}

// 🔁 Do runs fn until it succeeds, fails fatally, or attempts run out.
// The returned error is the one observed on the final attempt; the
// Result's retry count is valid in every case.
func (c *Caller) Do(ctx context.Context, fn Func) (Result, error) {
	logger := zerolog.Ctx(ctx)
	classify := c.policy.classifier()

	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug().
				Int("attempt", attempt+1).
				Dur("delay", c.policy.Delay).
				Str("cause", lastErr.Error()).
				Msg("retrying call")

			if err := sleepCtx(ctx, c.policy.Delay); err != nil {
				return Result{Retries: attempt - 1}, errors.Errorf("waiting to retry after %q: %w", lastErr.Error(), err)
			}
		}

		if c.gate != nil {
			if err := c.gate.Acquire(ctx); err != nil {
				return Result{Retries: attempt}, errors.Errorf("acquiring call slot: %w", err)
			}
		}

		out, err := c.attempt(ctx, fn)
		if err == nil {
			return Result{Output: out, Retries: attempt}, nil
		}

		lastErr = err
		if !classify(err) {
			return Result{Retries: attempt}, err
		}
	}

	return Result{Retries: c.policy.MaxRetries}, lastErr
}

func (c *Caller) attempt(ctx context.Context, fn Func) (string, error) {
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.AttemptTimeout)
		defer cancel()
	}

	return fn(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
