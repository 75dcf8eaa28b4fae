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
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/retext/pkg/scan"
)

// Failure is one failed file in the final report.
type Failure struct {
	RelativePath string `json:"relative_path"`
	Message      string `json:"message"`
}

// 🎯 JobReport is the terminal artifact of a run. The counts always
// conserve: SuccessfulCount + FailedCount equals the tasks submitted.
type JobReport struct {
	SuccessfulCount int       `json:"successful_count"`
	FailedCount     int       `json:"failed_count"`
	Transformed     int       `json:"transformed"`
	Copied          int       `json:"copied"`
	Failures        []Failure `json:"failures,omitempty"`
}

// Total returns the number of tasks the report accounts for.
func (r *JobReport) Total() int {
	return r.SuccessfulCount + r.FailedCount
}

// Failed reports whether any task failed.
func (r *JobReport) Failed() bool {
	return r.FailedCount > 0
}

// 🏭 Reporter aggregates per-task outcomes behind its own lock. The
// pool records every outcome before it finalizes, so Finalize never
// races an in-flight Record.
type Reporter struct {
	mu          sync.Mutex
	seen        map[string]struct{}
	succeeded   int
	failed      int
	transformed int
	copied      int
	failures    []Failure
	finalized   bool
}

// NewReporter creates an empty Reporter.
func NewReporter() *Reporter {
	return &Reporter{seen: make(map[string]struct{})}
}

// 📝 Record folds one outcome into the tally. A second outcome for the
// same task is dropped with a warning, as is anything recorded after
// Finalize.
func (r *Reporter) Record(ctx context.Context, o Outcome) {
	logger := zerolog.Ctx(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		logger.Warn().Str("path", o.Entry.RelativePath).Msg("outcome recorded after finalize, dropping")
		return
	}

	if _, ok := r.seen[o.Entry.RelativePath]; ok {
		logger.Warn().Str("path", o.Entry.RelativePath).Msg("duplicate outcome, dropping")
		return
	}
	r.seen[o.Entry.RelativePath] = struct{}{}

	if o.Success {
		r.succeeded++
		if o.Entry.Kind == scan.Transformable {
			r.transformed++
		} else {
			r.copied++
		}

		return
	}

	r.failed++

	message := "unknown error"
	if o.Err != nil {
		message = o.Err.Error()
	}
	r.failures = append(r.failures, Failure{
		RelativePath: o.Entry.RelativePath,
		Message:      message,
	})
}

// 📊 Finalize returns the immutable summary. Failures come back sorted
// by relative path so runs are comparable.
func (r *Reporter) Finalize() *JobReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finalized = true

	failures := make([]Failure, len(r.failures))
	copy(failures, r.failures)
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].RelativePath < failures[j].RelativePath
	})

	return &JobReport{
		SuccessfulCount: r.succeeded,
		FailedCount:     r.failed,
		Transformed:     r.transformed,
		Copied:          r.copied,
		Failures:        failures,
	}
}
