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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/retext/pkg/scan"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate when the field is unset.
const (
	DefaultWorkers     = 30
	DefaultRateLimit   = 500 * time.Millisecond
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = time.Second
	DefaultCallTimeout = 120 * time.Second
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 📚 Config represents the complete run configuration. Duration fields
// are strings in the file ("500ms", "2m") and parsed by Validate.
type Config struct {
	Input       string   `json:"input" hcl:"input" yaml:"input"`
	Output      string   `json:"output" hcl:"output" yaml:"output"`
	Prompt      string   `json:"prompt,omitempty" hcl:"prompt,optional" yaml:"prompt,omitempty"`
	Model       string   `json:"model,omitempty" hcl:"model,optional" yaml:"model,omitempty"`
	BaseURL     string   `json:"base_url,omitempty" hcl:"base_url,optional" yaml:"base_url,omitempty"`
	Workers     int      `json:"workers,omitempty" hcl:"workers,optional" yaml:"workers,omitempty"`
	RateLimit   string   `json:"rate_limit,omitempty" hcl:"rate_limit,optional" yaml:"rate_limit,omitempty"`
	MaxRetries  *int     `json:"max_retries,omitempty" hcl:"max_retries,optional" yaml:"max_retries,omitempty"`
	RetryDelay  string   `json:"retry_delay,omitempty" hcl:"retry_delay,optional" yaml:"retry_delay,omitempty"`
	CallTimeout string   `json:"call_timeout,omitempty" hcl:"call_timeout,optional" yaml:"call_timeout,omitempty"`
	Transform   []string `json:"transform,omitempty" hcl:"transform,optional" yaml:"transform,omitempty"`
	Ignore      []string `json:"ignore,omitempty" hcl:"ignore,optional" yaml:"ignore,omitempty"`
	FailFast    bool     `json:"fail_fast,omitempty" hcl:"fail_fast,optional" yaml:"fail_fast,omitempty"`

	// parsed by Validate
	rateLimit   time.Duration
	retryDelay  time.Duration
	callTimeout time.Duration
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	// A bare .retext file may be either YAML or HCL
	if strings.HasSuffix(path, ".retext") {
		cfg, yamlErr := (&YAMLParser{}).Parse(ctx, data)
		if yamlErr == nil {
			return cfg, nil
		}
		cfg, hclErr := (&HCLParser{}).Parse(ctx, data)
		if hclErr == nil {
			return cfg, nil
		}

		return nil, errors.Errorf("parsing %s as YAML or HCL: %w", path, yamlErr)
	}

	// Get parser
	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	// Parse config
	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// 🔍 Validate checks the configuration and applies defaults.
func (cfg *Config) Validate() error {
	// Check required fields
	if cfg.Input == "" {
		return errors.Errorf("input is required")
	}
	if cfg.Output == "" {
		return errors.Errorf("output is required")
	}

	// Clean up paths
	cfg.Input = filepath.Clean(cfg.Input)
	cfg.Output = filepath.Clean(cfg.Output)

	// Set defaults
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}

	if cfg.MaxRetries == nil {
		retries := DefaultMaxRetries
		cfg.MaxRetries = &retries
	}
	if *cfg.MaxRetries < 0 {
		return errors.Errorf("max_retries must not be negative, got %d", *cfg.MaxRetries)
	}

	if len(cfg.Transform) == 0 {
		cfg.Transform = scan.DefaultTransformPatterns
	}

	var err error
	if cfg.rateLimit, err = parseDuration("rate_limit", cfg.RateLimit, DefaultRateLimit); err != nil {
		return err
	}
	if cfg.retryDelay, err = parseDuration("retry_delay", cfg.RetryDelay, DefaultRetryDelay); err != nil {
		return err
	}
	if cfg.callTimeout, err = parseDuration("call_timeout", cfg.CallTimeout, DefaultCallTimeout); err != nil {
		return err
	}

	return nil
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Errorf("parsing %s %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, errors.Errorf("%s must not be negative, got %s", field, d)
	}

	return d, nil
}

// RateLimitDelay returns the minimum interval between transform calls.
// Zero disables throttling. Only valid after Validate.
func (cfg *Config) RateLimitDelay() time.Duration { return cfg.rateLimit }

// RetryDelayDuration returns the fixed wait between call attempts.
// Only valid after Validate.
func (cfg *Config) RetryDelayDuration() time.Duration { return cfg.retryDelay }

// CallTimeoutDuration returns the per-attempt deadline. Only valid
// after Validate.
func (cfg *Config) CallTimeoutDuration() time.Duration { return cfg.callTimeout }

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("%s -> %s (%d workers)", cfg.Input, cfg.Output, cfg.Workers)
}

// 🔧 YAMLParser implements the Parser interface for YAML files
type YAMLParser struct{}

func init() {
	Register(&YAMLParser{})
}

// 🔍 CanParse checks if this parser can handle the given file
func (p *YAMLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}

// 📝 Parse parses the config from YAML bytes
func (p *YAMLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
