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
	"os"

	"github.com/walteh/retext/pkg/batch"
	"github.com/walteh/retext/pkg/scan"
	"github.com/walteh/retext/pkg/state"
)

// multiTracker fans every pool hook out to its members in order.
type multiTracker []batch.Tracker

func (m multiTracker) StartOperation(ctx context.Context, total int) {
	for _, t := range m {
		t.StartOperation(ctx, total)
	}
}

func (m multiTracker) TaskDone(ctx context.Context, o batch.Outcome, processed, total int) {
	for _, t := range m {
		t.TaskDone(ctx, o, processed, total)
	}
}

func (m multiTracker) FinishOperation(ctx context.Context, report *batch.JobReport) {
	for _, t := range m {
		t.FinishOperation(ctx, report)
	}
}

// 📦 lockTracker records every outcome into the run state destined for
// the lock file. The pool's collector feeds TaskDone one call at a
// time, so the state needs no locking here.
type lockTracker struct {
	run    *state.RunState
	mirror *scan.Mirror
}

func newLockTracker(run *state.RunState, mirror *scan.Mirror) *lockTracker {
	return &lockTracker{run: run, mirror: mirror}
}

func (l *lockTracker) StartOperation(ctx context.Context, total int) {}

func (l *lockTracker) TaskDone(ctx context.Context, o batch.Outcome, processed, total int) {
	var size int64
	if o.Success {
		if info, err := os.Stat(l.mirror.OutputPath(o.Entry.RelativePath)); err == nil {
			size = info.Size()
		}
	}

	l.run.RecordOutcome(o, size)
}

func (l *lockTracker) FinishOperation(ctx context.Context, report *batch.JobReport) {}
