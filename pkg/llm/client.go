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

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/retext/pkg/retry"
	"gitlab.com/tozd/go/errors"
)

// DefaultBaseURL is used when RETEXT_BASE_URL is not set. Any
// OpenAI-compatible chat completions endpoint works.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Environment variables read by NewFromEnv.
const (
	EnvAPIKey       = "RETEXT_API_KEY"
	EnvModel        = "RETEXT_MODEL"
	EnvBaseURL      = "RETEXT_BASE_URL"
	EnvSystemPrompt = "RETEXT_SYSTEM_PROMPT"
)

const defaultTimeout = 120 * time.Second

// Request is one transform invocation.
type Request struct {
	System      string
	Content     string
	Temperature *float64
	MaxTokens   *int
}

// 🎯 Client talks to an OpenAI-compatible chat completions endpoint.
// Failures come back marked retryable or fatal so the retry layer can
// classify them without knowing anything about HTTP.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	system     string
	httpClient *http.Client
}

// 🔧 Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the endpoint base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithModel overrides the model name.
func WithModel(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.model = m
		}
	}
}

// WithSystemPrompt sets the fallback system instruction used when a
// request carries none.
func WithSystemPrompt(s string) Option {
	return func(c *Client) { c.system = s }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// 🏭 New creates a Client. Missing credentials are fatal, never worth
// a retry.
func New(apiKey, model string, opts ...Option) (*Client, error) {
	c := &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimSuffix(c.baseURL, "/")

	// Validated after the options so WithModel can fill a model the
	// caller did not pass positionally.
	if c.apiKey == "" {
		return nil, retry.Fatal(errors.New("api key is required"))
	}
	if c.model == "" {
		return nil, retry.Fatal(errors.New("model name is required"))
	}

	return c, nil
}

// 🏭 NewFromEnv creates a Client from RETEXT_* environment variables.
// The passed options are applied last, so a configured model or base
// URL wins over the environment.
func NewFromEnv(opts ...Option) (*Client, error) {
	apiKey := os.Getenv(EnvAPIKey)
	if apiKey == "" {
		return nil, retry.Fatal(errors.Errorf("%s is not set", EnvAPIKey))
	}

	base := make([]Option, 0, len(opts)+2)
	if v := os.Getenv(EnvBaseURL); v != "" {
		base = append(base, WithBaseURL(v))
	}
	if v := os.Getenv(EnvSystemPrompt); v != "" {
		base = append(base, WithSystemPrompt(v))
	}
	base = append(base, opts...)

	return New(apiKey, os.Getenv(EnvModel), base...)
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// BaseURL returns the configured endpoint base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ⚡ Transform sends one chat completion and returns the model's text.
func (c *Client) Transform(ctx context.Context, req Request) (string, error) {
	logger := zerolog.Ctx(ctx)

	system := req.System
	if system == "" {
		system = c.system
	}

	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Content})

	payload, err := json.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", retry.Fatal(errors.Errorf("encoding request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", retry.Fatal(errors.Errorf("creating request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	logger.Debug().
		Str("model", c.model).
		Int("content_bytes", len(req.Content)).
		Msg("calling transform endpoint")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", retry.Retryable(errors.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, data)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", retry.Retryable(errors.Errorf("decoding response: %w", err))
	}

	if len(parsed.Choices) == 0 {
		return "", retry.Retryable(errors.New("no response choices returned"))
	}

	logger.Debug().
		Int("total_tokens", parsed.Usage.TotalTokens).
		Msg("transform call complete")

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// 📂 ListModels returns the model IDs advertised by the endpoint.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, errors.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed modelsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Errorf("decoding response: %w", err)
	}

	ids := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		ids = append(ids, m.ID)
	}

	return ids, nil
}

// 📚 ListModels fetches the advertised model IDs with just an API key,
// for listing before any model has been chosen.
func ListModels(ctx context.Context, apiKey string, opts ...Option) ([]string, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimSuffix(c.baseURL, "/")

	return c.ListModels(ctx)
}

// classifyStatus maps an HTTP error status onto the retry taxonomy.
// Auth problems never heal on their own; throttling and server trouble
// usually do.
func classifyStatus(code int, body []byte) error {
	err := errors.Errorf("unexpected status %d: %s", code, strings.TrimSpace(string(body)))

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return retry.Fatal(err)
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout:
		return retry.Retryable(err)
	case code >= 500:
		return retry.Retryable(err)
	default:
		return retry.Fatal(err)
	}
}

func classifyTransport(err error) error {
	wrapped := errors.Errorf("sending request: %w", err)

	// A cancelled run must not be retried into.
	if errors.Is(err, context.Canceled) {
		return retry.Fatal(wrapped)
	}

	if isTransient(err) {
		return retry.Retryable(wrapped)
	}

	return retry.Fatal(wrapped)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT} {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := err.Error()
	for _, marker := range []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporarily unavailable",
		"overloaded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
