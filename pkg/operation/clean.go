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
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/retext/pkg/state"
	"gitlab.com/tozd/go/errors"
)

// 🧹 Clean implements Operator.Clean. Only files the last run recorded
// as written come out; anything else in the output tree is the user's
// and stays. The lock file itself goes last.
func (o *operator) Clean(ctx context.Context) (int, error) {
	logger := zerolog.Ctx(ctx)

	if o.config.Output == "" {
		return 0, errors.Errorf("output is required")
	}

	lockPath := state.LockPath(o.config.Output)
	run, err := state.Load(ctx, lockPath)
	if err != nil {
		return 0, errors.Errorf("loading lock file: %w", err)
	}
	if run == nil {
		logger.Debug().Str("path", lockPath).Msg("no lock file, nothing to clean")
		return 0, nil
	}

	removed := 0
	for _, entry := range run.FilesSorted() {
		if entry.Status == state.StatusFailed {
			// nothing was written for failed files
			continue
		}

		target := filepath.Join(o.config.Output, entry.Path)
		if err := os.Remove(target); err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return removed, errors.Errorf("removing %s: %w", target, err)
		}

		removed++
		logger.Debug().Str("path", target).Msg("removed generated file")
	}

	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return removed, errors.Errorf("removing lock file: %w", err)
	}

	if o.user != nil {
		o.user.LogStateChange(fmt.Sprintf("removed %d generated files", removed))
	}

	return removed, nil
}
