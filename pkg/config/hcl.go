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

package config

import (
	"context"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

// hclConfig mirrors Config with only the attributes gohcl can decode.
// The unexported duration fields on Config keep it out of gohcl's
// reach, so decoding goes through this shadow struct.
type hclConfig struct {
	Input       string   `hcl:"input"`
	Output      string   `hcl:"output"`
	Prompt      string   `hcl:"prompt,optional"`
	Model       string   `hcl:"model,optional"`
	BaseURL     string   `hcl:"base_url,optional"`
	Workers     int      `hcl:"workers,optional"`
	RateLimit   string   `hcl:"rate_limit,optional"`
	MaxRetries  *int     `hcl:"max_retries,optional"`
	RetryDelay  string   `hcl:"retry_delay,optional"`
	CallTimeout string   `hcl:"call_timeout,optional"`
	Transform   []string `hcl:"transform,optional"`
	Ignore      []string `hcl:"ignore,optional"`
	FailFast    bool     `hcl:"fail_fast,optional"`
}

// 📝 Parse parses the config from HCL bytes
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var raw hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &raw)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	cfg := Config{
		Input:       raw.Input,
		Output:      raw.Output,
		Prompt:      raw.Prompt,
		Model:       raw.Model,
		BaseURL:     raw.BaseURL,
		Workers:     raw.Workers,
		RateLimit:   raw.RateLimit,
		MaxRetries:  raw.MaxRetries,
		RetryDelay:  raw.RetryDelay,
		CallTimeout: raw.CallTimeout,
		Transform:   raw.Transform,
		Ignore:      raw.Ignore,
		FailFast:    raw.FailFast,
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
