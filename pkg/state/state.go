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

// Package state persists the record of the last run next to the output
// tree, so later invocations can inspect or undo what was written.
package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/retext/pkg/batch"
	"github.com/walteh/retext/pkg/scan"
	"gitlab.com/tozd/go/errors"
)

// LockFileName is written into the output root after every run.
const LockFileName = ".retext.lock"

// FileStatus records how a file left the last run.
type FileStatus string

const (
	StatusTransformed FileStatus = "transformed"
	StatusCopied      FileStatus = "copied"
	StatusFailed      FileStatus = "failed"
)

// 📝 FileEntry is the per-file record in the lock file.
type FileEntry struct {
	Path        string     `json:"path"`
	Kind        string     `json:"kind"`
	Status      FileStatus `json:"status"`
	Size        int64      `json:"size,omitempty"`
	Retries     int        `json:"retries,omitempty"`
	Error       string     `json:"error,omitempty"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Summary mirrors the final report of the run that wrote the lock.
type Summary struct {
	Successful  int `json:"successful"`
	Failed      int `json:"failed"`
	Transformed int `json:"transformed"`
	Copied      int `json:"copied"`
}

// 📦 RunState is the lock file structure.
type RunState struct {
	LastUpdated time.Time            `json:"last_updated"`
	InputRoot   string               `json:"input_root"`
	PromptRef   string               `json:"prompt_ref,omitempty"`
	Model       string               `json:"model,omitempty"`
	Files       map[string]FileEntry `json:"files"`
	Summary     Summary              `json:"summary"`
}

// New creates an empty RunState for a run that is about to start.
func New(inputRoot, promptRef, model string) *RunState {
	return &RunState{
		LastUpdated: time.Now().UTC(),
		InputRoot:   inputRoot,
		PromptRef:   promptRef,
		Model:       model,
		Files:       make(map[string]FileEntry),
	}
}

// RecordOutcome stores the terminal record of one task. size is the
// byte count of the written output, zero for failures.
func (s *RunState) RecordOutcome(o batch.Outcome, size int64) {
	status := StatusFailed
	switch {
	case o.Success && o.Entry.Kind == scan.Transformable:
		status = StatusTransformed
	case o.Success:
		status = StatusCopied
	}

	entry := FileEntry{
		Path:        o.Entry.RelativePath,
		Kind:        o.Entry.Kind.String(),
		Status:      status,
		Size:        size,
		Retries:     o.Retries,
		LastUpdated: time.Now().UTC(),
	}
	if o.Err != nil {
		entry.Error = o.Err.Error()
	}

	s.Files[entry.Path] = entry
}

// SetSummary copies the run's final report into the lock.
func (s *RunState) SetSummary(report *batch.JobReport) {
	s.LastUpdated = time.Now().UTC()
	s.Summary = Summary{
		Successful:  report.SuccessfulCount,
		Failed:      report.FailedCount,
		Transformed: report.Transformed,
		Copied:      report.Copied,
	}
}

// FilesSorted returns every file entry ordered by path, for stable
// display.
func (s *RunState) FilesSorted() []FileEntry {
	entries := make([]FileEntry, 0, len(s.Files))
	for _, e := range s.Files {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return entries
}

// LockPath returns the lock file location for an output root.
func LockPath(outputRoot string) string {
	return filepath.Join(outputRoot, LockFileName)
}

// 📝 Load reads a lock file. A missing file is not an error: it returns
// (nil, nil) so callers can tell "never ran" from "corrupt lock".
func Load(ctx context.Context, path string) (*RunState, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading lock file")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Errorf("reading lock file: %w", err)
	}

	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Errorf("parsing lock file: %w", err)
	}

	if state.Files == nil {
		state.Files = make(map[string]FileEntry)
	}

	return &state, nil
}

// 📝 Write marshals the lock and writes it atomically, temp file then
// rename, so a crashed run never leaves a half-written lock behind.
func (s *RunState) Write(ctx context.Context, path string) error {
	logger := zerolog.Ctx(ctx)

	data, err := json.MarshalIndent(s, "", "\t")
	if err != nil {
		return errors.Errorf("marshaling lock file: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Errorf("writing lock file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Errorf("renaming lock file: %w", err)
	}

	logger.Debug().Str("path", path).Int("files", len(s.Files)).Msg("lock file written")

	return nil
}
