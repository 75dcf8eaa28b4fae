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

package prompt

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// ContentPlaceholder is replaced by the file's content when a template
// is rendered.
const ContentPlaceholder = "{{content}}"

// 🎯 Spec is the prompt specification driving every transform call of a
// run: a system instruction plus an optional template for the user
// content. Loaded once, read-only afterwards.
type Spec struct {
	System      string   `json:"system" yaml:"system"`
	Template    string   `json:"template,omitempty" yaml:"template,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// 📝 Render produces the user prompt for one file's content. Without a
// template the content passes through untouched; a template without the
// placeholder is treated as a preamble.
func (s *Spec) Render(content string) string {
	if s.Template == "" {
		return content
	}

	if !strings.Contains(s.Template, ContentPlaceholder) {
		return s.Template + "\n\n" + content
	}

	return strings.ReplaceAll(s.Template, ContentPlaceholder, content)
}

// 🔍 Parse decodes a Spec from YAML, rejecting unknown fields so typos
// in a prompt file fail loudly instead of silently changing behavior.
func Parse(data []byte) (*Spec, error) {
	var spec Spec

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("prompt spec is empty")
		}

		return nil, errors.Errorf("parsing prompt spec: %w", err)
	}

	if spec.System == "" && spec.Template == "" {
		return nil, errors.New("prompt spec must set system or template")
	}

	return &spec, nil
}

// Source fetches the raw bytes behind a prompt spec reference.
type Source interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// SourceFactory creates a Source for one scheme.
type SourceFactory func(ctx context.Context) (Source, error)

var (
	sourcesMu sync.RWMutex
	sources   = make(map[string]SourceFactory)
)

// 🏭 RegisterSource registers a source factory for a reference scheme.
func RegisterSource(scheme string, factory SourceFactory) {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()
	sources[scheme] = factory
}

func getSource(ctx context.Context, scheme string) (Source, error) {
	sourcesMu.RLock()
	factory, ok := sources[scheme]
	sourcesMu.RUnlock()

	if !ok {
		return nil, errors.Errorf("no prompt source registered for scheme %q", scheme)
	}

	return factory(ctx)
}

// refScheme extracts the scheme of a prompt reference. Bare paths are
// local files.
func refScheme(ref string) string {
	if i := strings.Index(ref, "://"); i >= 0 {
		return ref[:i]
	}

	return "file"
}

// ✨ Load fetches and parses the spec behind ref. A bare path reads the
// local filesystem; github://owner/repo/path@ref fetches from a
// repository.
func Load(ctx context.Context, ref string) (*Spec, error) {
	logger := zerolog.Ctx(ctx)

	scheme := refScheme(ref)
	source, err := getSource(ctx, scheme)
	if err != nil {
		return nil, err
	}

	data, err := source.Fetch(ctx, ref)
	if err != nil {
		return nil, errors.Errorf("fetching prompt spec: %w", err)
	}

	spec, err := Parse(data)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("ref", ref).
		Str("scheme", scheme).
		Bool("has_template", spec.Template != "").
		Msg("loaded prompt spec")

	return spec, nil
}

func init() {
	RegisterSource("file", func(ctx context.Context) (Source, error) {
		return &fileSource{}, nil
	})
}

type fileSource struct{}

func (s *fileSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	path := strings.TrimPrefix(ref, "file://")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading prompt file: %w", err)
	}

	return data, nil
}
