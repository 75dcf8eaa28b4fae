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
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/retext/pkg/batch"
	"gitlab.com/tozd/go/errors"
)

// ProcessFile implements Operator.ProcessFile. The file always goes
// through the transform call; pass-through classification only applies
// to whole-tree runs. The result comes back as a string so the caller
// decides where it lands.
func (o *operator) ProcessFile(ctx context.Context, path string) (string, error) {
	logger := zerolog.Ctx(ctx)

	cfg := o.config
	// Tree roots are not meaningful in single-file mode; the file's
	// own directory stands in so validation can run.
	if cfg.Input == "" {
		cfg.Input = filepath.Dir(path)
	}
	if cfg.Output == "" {
		cfg.Output = cfg.Input
	}
	if err := cfg.Validate(); err != nil {
		return "", errors.Errorf("validating config: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Errorf("reading source file: %w", err)
	}

	spec, err := o.loadSpec(ctx)
	if err != nil {
		return "", err
	}

	caller, _, err := o.buildCaller(ctx)
	if err != nil {
		return "", err
	}

	req := batch.Request{Content: string(content)}
	if spec != nil {
		req.System = spec.System
		req.Content = spec.Render(string(content))
		req.Temperature = spec.Temperature
	}

	logger.Debug().
		Str("path", path).
		Int("content_bytes", len(content)).
		Msg("transforming single file")

	res, err := o.retrier().Do(ctx, func(ctx context.Context) (string, error) {
		return caller.Transform(ctx, req)
	})
	if err != nil {
		return "", errors.Errorf("transforming %s: %w", path, err)
	}

	return res.Output, nil
}
