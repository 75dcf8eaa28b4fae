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

	"github.com/walteh/retext/pkg/batch"
	"github.com/walteh/retext/pkg/config"
	"github.com/walteh/retext/pkg/state"
	"github.com/walteh/retext/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// 🎯 Operator defines the main interface for retext operations
type Operator interface {
	// ProcessFolder mirrors the input tree into the output tree and
	// returns the final report
	ProcessFolder(ctx context.Context) (*batch.JobReport, error)
	// ProcessFile transforms a single file and returns the result
	ProcessFile(ctx context.Context, path string) (string, error)
	// Clean removes the generated files recorded in the lock file
	Clean(ctx context.Context) (int, error)
	// Status loads the last run recorded in the lock file
	Status(ctx context.Context) (*state.RunState, error)
}

// 🔧 Options contains configuration for the operator
type Options struct {
	// Config is the run configuration
	Config *config.Config
	// Caller overrides the transform backend; nil builds one from the
	// environment
	Caller batch.Caller
	// UserLogger receives human-facing progress output; nil keeps the
	// run quiet on the console
	UserLogger *status.UserLogger
	// Tracker receives per-task progress alongside the built-in
	// tracking
	Tracker batch.Tracker
}

// 🏭 New creates a new operator with the given options
func New(opts Options) (Operator, error) {
	if opts.Config == nil {
		return nil, errors.Errorf("config is required")
	}

	return &operator{
		config:  opts.Config,
		caller:  opts.Caller,
		user:    opts.UserLogger,
		tracker: opts.Tracker,
	}, nil
}

// 🎮 operator implements the Operator interface
type operator struct {
	config  *config.Config
	caller  batch.Caller
	user    *status.UserLogger
	tracker batch.Tracker
}

// 📂 ProcessFolder runs a whole-tree mirror with the given options.
func ProcessFolder(ctx context.Context, opts Options) (*batch.JobReport, error) {
	op, err := New(opts)
	if err != nil {
		return nil, err
	}

	return op.ProcessFolder(ctx)
}

// 📝 ProcessFile transforms a single file with the given options.
func ProcessFile(ctx context.Context, opts Options, path string) (string, error) {
	op, err := New(opts)
	if err != nil {
		return "", err
	}

	return op.ProcessFile(ctx, path)
}
