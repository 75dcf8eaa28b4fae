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

	"github.com/walteh/retext/pkg/prompt"
	"github.com/walteh/retext/pkg/scan"
)

// Request is the payload of one transform call.
type Request struct {
	System      string
	Content     string
	Temperature *float64
}

// Caller is the narrow capability the pool needs from the transform
// service. The pool never inspects the concrete adapter behind it.
type Caller interface {
	Transform(ctx context.Context, req Request) (string, error)
}

// CallFunc adapts a plain function to Caller.
type CallFunc func(ctx context.Context, req Request) (string, error)

func (f CallFunc) Transform(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// 🎯 Task is one unit of work: mirror a single source entry, through
// the transform call or a verbatim copy depending on its kind. A task
// is owned by exactly one worker until it completes.
type Task struct {
	Entry scan.Entry
	Spec  *prompt.Spec
}

// Outcome is the terminal record of one task, produced exactly once
// and consumed by the Reporter.
type Outcome struct {
	Entry   scan.Entry
	Success bool
	Err     error
	Retries int
}
