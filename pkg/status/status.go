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

package status

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/retext/pkg/batch"
	"github.com/walteh/retext/pkg/scan"
)

// 🔧 Manager renders batch progress for the console. It receives every
// task outcome from the pool's collector, so its methods are never
// called concurrently with each other.
type Manager struct {
	formatter FileFormatter
	user      *UserLogger // optional, nil silences the console

	mu        sync.Mutex
	total     int
	processed int
	failed    int
	startedAt time.Time
}

// 🏭 NewManager creates a new status manager. A nil user logger keeps
// progress in the structured log only.
func NewManager(user *UserLogger) *Manager {
	return &Manager{
		formatter: NewDefaultFileFormatter(),
		user:      user,
	}
}

// StartOperation resets progress for a new run.
func (m *Manager) StartOperation(ctx context.Context, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total = total
	m.processed = 0
	m.failed = 0
	m.startedAt = time.Now()

	zerolog.Ctx(ctx).Info().Int("total", total).Msg(m.formatter.FormatProgress(0, total))
}

// TaskDone records one finished task and renders its console line.
func (m *Manager) TaskDone(ctx context.Context, o batch.Outcome, processed, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed = processed
	if !o.Success {
		m.failed++
	}

	line := m.formatter.FormatFileOutcome(
		o.Entry.RelativePath,
		o.Success && o.Entry.Kind == scan.Transformable,
		o.Success && o.Entry.Kind == scan.PassThrough,
		!o.Success,
	)

	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("path", o.Entry.RelativePath).
		Str("kind", o.Entry.Kind.String()).
		Bool("success", o.Success).
		Int("retries", o.Retries).
		Err(o.Err).
		Msg(line)
	logger.Debug().
		Int("processed", processed).
		Int("total", total).
		Msg(m.formatter.FormatProgress(processed, total))

	if m.user != nil {
		m.user.LogFileOutcome(o)
	}
}

// FinishOperation renders the final summary.
func (m *Manager) FinishOperation(ctx context.Context, report *batch.JobReport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := time.Since(m.startedAt)
	zerolog.Ctx(ctx).Info().
		Int("successful", report.SuccessfulCount).
		Int("failed", report.FailedCount).
		Dur("elapsed", elapsed).
		Msg(m.formatter.FormatProgress(m.total, m.total))

	if m.user != nil {
		m.user.LogRunSummary(report, elapsed)
	}
}
