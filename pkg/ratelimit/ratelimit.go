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

package ratelimit

import (
	"context"
	"time"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/time/rate"
)

// 🎯 Limiter spaces outbound calls so that consecutive grants are at
// least one interval apart, no matter how many workers share it. The
// grant bookkeeping lives inside rate.Limiter, which serializes it.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// 🏭 NewInterval creates a Limiter admitting one call per interval.
// A zero or negative interval disables throttling entirely.
func NewInterval(interval time.Duration) *Limiter {
	every := rate.Inf
	if interval > 0 {
		every = rate.Every(interval)
	}

	return &Limiter{
		limiter:  rate.NewLimiter(every, 1),
		interval: interval,
	}
}

// ⏱️ Acquire blocks until the limiter grants a slot or ctx is done.
// Waiters wake in reservation order, so none is postponed indefinitely.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Errorf("waiting for rate limit slot: %w", err)
	}

	return nil
}

// Interval returns the configured minimum spacing between grants.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
