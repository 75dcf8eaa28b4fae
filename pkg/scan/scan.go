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

package scan

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultTransformPatterns marks markdown files as transform-eligible
// when no patterns are configured.
var DefaultTransformPatterns = []string{"**/*.md"}

// Kind classifies how a file moves from the input tree to the output
// tree.
type Kind int

const (
	// PassThrough files are copied byte for byte.
	PassThrough Kind = iota
	// Transformable files go through the external transform call.
	Transformable
)

func (k Kind) String() string {
	switch k {
	case Transformable:
		return "transformable"
	default:
		return "pass-through"
	}
}

// 🎯 Entry is one regular file discovered under the input root.
// RelativePath is slash-separated regardless of platform.
type Entry struct {
	AbsolutePath string
	RelativePath string
	Kind         Kind
}

// Skipped is an entry the scan refused to schedule, with the reason.
type Skipped struct {
	RelativePath string
	Reason       string
}

// Result is everything one scan found.
type Result struct {
	Entries []Entry
	Skipped []Skipped
}

// ScanError reports an unreadable input root. It aborts the run before
// any task is scheduled; every other filesystem problem is per-file.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scanning input root %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Options configure a Mirror.
type Options struct {
	Input     string
	Output    string
	Transform []string // doublestar patterns marking transform-eligible files
	Ignore    []string // doublestar patterns excluded from the run entirely
}

// 🏭 Mirror walks an input root, classifies every file, and owns all
// writes into the mirrored output root.
type Mirror struct {
	input     string
	output    string
	transform []string
	ignore    []string
}

// New validates the options and creates a Mirror.
func New(opts Options) (*Mirror, error) {
	if opts.Input == "" {
		return nil, errors.New("input root is required")
	}
	if opts.Output == "" {
		return nil, errors.New("output root is required")
	}

	for _, p := range append(append([]string{}, opts.Transform...), opts.Ignore...) {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid glob pattern %q", p)
		}
	}

	return &Mirror{
		input:     filepath.Clean(opts.Input),
		output:    filepath.Clean(opts.Output),
		transform: opts.Transform,
		ignore:    opts.Ignore,
	}, nil
}

// Input returns the input root.
func (m *Mirror) Input() string { return m.input }

// Output returns the output root.
func (m *Mirror) Output() string { return m.output }

// 📂 Scan enumerates every regular file under the input root and
// classifies it. Symlinks, devices and other non-regular files are
// skipped with a warning, never fatal; only an unreadable input root
// is a ScanError.
func (m *Mirror) Scan(ctx context.Context) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	info, err := os.Stat(m.input)
	if err != nil {
		return nil, &ScanError{Root: m.input, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Root: m.input, Err: errors.New("not a directory")}
	}

	result := &Result{}
	walkErr := filepath.WalkDir(m.input, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == m.input {
				return err
			}

			rel := m.relOrBase(p)
			result.Skipped = append(result.Skipped, Skipped{RelativePath: rel, Reason: "unreadable: " + err.Error()})
			logger.Warn().Str("path", rel).Err(err).Msg("skipping unreadable entry")

			return nil
		}

		if p == m.input {
			return nil
		}

		rel, err := filepath.Rel(m.input, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matchAny(m.ignore, rel) {
				logger.Debug().Str("path", rel).Msg("ignoring directory")
				return fs.SkipDir
			}

			return nil
		}

		if matchAny(m.ignore, rel) {
			result.Skipped = append(result.Skipped, Skipped{RelativePath: rel, Reason: "ignored"})
			return nil
		}

		if !d.Type().IsRegular() {
			result.Skipped = append(result.Skipped, Skipped{RelativePath: rel, Reason: "not a regular file"})
			logger.Warn().Str("path", rel).Msg("skipping non-regular file")

			return nil
		}

		kind := PassThrough
		if matchAny(m.transform, rel) {
			kind = Transformable
		}

		result.Entries = append(result.Entries, Entry{
			AbsolutePath: p,
			RelativePath: rel,
			Kind:         kind,
		})

		return nil
	})
	if walkErr != nil {
		return nil, &ScanError{Root: m.input, Err: walkErr}
	}

	transformable := 0
	for _, e := range result.Entries {
		if e.Kind == Transformable {
			transformable++
		}
	}

	logger.Debug().
		Int("files", len(result.Entries)).
		Int("transformable", transformable).
		Int("skipped", len(result.Skipped)).
		Msg("scan complete")

	return result, nil
}

// 🏗️ MirrorDirs creates the output directory skeleton for entries, so
// that every later write lands in a directory that already exists.
// Creating a directory that exists is a no-op.
func (m *Mirror) MirrorDirs(ctx context.Context, entries []Entry) error {
	if err := os.MkdirAll(m.output, 0755); err != nil {
		return errors.Errorf("creating output root: %w", err)
	}

	seen := make(map[string]struct{})
	for _, e := range entries {
		dir := path.Dir(e.RelativePath)
		if dir == "." {
			continue
		}
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}

		if err := os.MkdirAll(filepath.Join(m.output, filepath.FromSlash(dir)), 0755); err != nil {
			return errors.Errorf("creating output directory %q: %w", dir, err)
		}
	}

	return nil
}

// OutputPath returns the mirrored output path for a relative path.
func (m *Mirror) OutputPath(rel string) string {
	return filepath.Join(m.output, filepath.FromSlash(rel))
}

// 📋 CopyFile copies an entry's bytes unchanged to the mirrored output
// path, overwriting whatever is there. Same temp-then-rename discipline
// as WriteFile, so readers never observe a half-copied file.
func (m *Mirror) CopyFile(ctx context.Context, e Entry) error {
	src, err := os.Open(e.AbsolutePath)
	if err != nil {
		return errors.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	dst := m.OutputPath(e.RelativePath)
	tmp := dst + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		return errors.Errorf("creating output file: %w", err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmp)
		return errors.Errorf("copying content: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return errors.Errorf("closing output file: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errors.Errorf("renaming output file: %w", err)
	}

	return nil
}

// ✍️ WriteFile atomically writes transformed content to the mirrored
// output path: temp file in the target directory, then rename.
func (m *Mirror) WriteFile(ctx context.Context, rel string, content []byte) error {
	dst := m.OutputPath(rel)
	tmp := dst + ".tmp"

	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return errors.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errors.Errorf("renaming temp file: %w", err)
	}

	return nil
}

func (m *Mirror) relOrBase(p string) string {
	rel, err := filepath.Rel(m.input, p)
	if err != nil {
		return filepath.Base(p)
	}

	return filepath.ToSlash(rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}

	return false
}
