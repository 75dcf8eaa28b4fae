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
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v60/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitHubRef(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantOwner   string
		wantRepo    string
		wantPath    string
		wantRef     string
		wantErr     bool
		errContains string
	}{
		{
			name:      "full_reference",
			input:     "github://walteh/prompts/specs/rewrite.yaml@main",
			wantOwner: "walteh",
			wantRepo:  "prompts",
			wantPath:  "specs/rewrite.yaml",
			wantRef:   "main",
		},
		{
			name:      "no_ref_uses_default_branch",
			input:     "github://walteh/prompts/rewrite.yaml",
			wantOwner: "walteh",
			wantRepo:  "prompts",
			wantPath:  "rewrite.yaml",
		},
		{
			name:      "nested_path",
			input:     "github://o/r/a/b/c.yaml@v1.2.3",
			wantOwner: "o",
			wantRepo:  "r",
			wantPath:  "a/b/c.yaml",
			wantRef:   "v1.2.3",
		},
		{
			name:        "missing_path",
			input:       "github://walteh/prompts",
			wantErr:     true,
			errContains: "invalid github prompt reference",
		},
		{
			name:        "empty_owner",
			input:       "github:///prompts/spec.yaml",
			wantErr:     true,
			errContains: "invalid github prompt reference",
		},
		{
			name:        "empty_everything",
			input:       "github://",
			wantErr:     true,
			errContains: "invalid github prompt reference",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, path, ref, err := parseGitHubRef(tt.input)

			if tt.wantErr {
				require.Error(t, err, "parse should fail")
				assert.Contains(t, err.Error(), tt.errContains, "error message should match")
				return
			}

			require.NoError(t, err, "parse should succeed")
			assert.Equal(t, tt.wantOwner, owner, "owner should match")
			assert.Equal(t, tt.wantRepo, repo, "repo should match")
			assert.Equal(t, tt.wantPath, path, "path should match")
			assert.Equal(t, tt.wantRef, ref, "git ref should match")
		})
	}
}

func newTestGitHubSource(t *testing.T, handler http.Handler) *gitHubSource {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	return &gitHubSource{client: client}
}

func TestGitHubFetch(t *testing.T) {
	specYAML := "system: from github\n"
	encoded := base64.StdEncoding.EncodeToString([]byte(specYAML))

	source := newTestGitHubSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/walteh/prompts/contents/specs/rewrite.yaml", r.URL.Path)
		assert.Equal(t, "main", r.URL.Query().Get("ref"), "git ref should be forwarded")

		fmt.Fprintf(w, `{"type":"file","encoding":"base64","name":"rewrite.yaml","content":%q}`, encoded)
	}))

	data, err := source.Fetch(context.Background(), "github://walteh/prompts/specs/rewrite.yaml@main")
	require.NoError(t, err, "fetch should succeed")
	assert.Equal(t, specYAML, string(data), "content should be decoded")
}

func TestGitHubFetch_DirectoryReference(t *testing.T) {
	source := newTestGitHubSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"type":"file","name":"a.yaml"},{"type":"file","name":"b.yaml"}]`)
	}))

	_, err := source.Fetch(context.Background(), "github://walteh/prompts/specs")
	require.Error(t, err, "a directory reference should fail")
	assert.Contains(t, err.Error(), "directory")
}

func TestGitHubFetch_NotFound(t *testing.T) {
	source := newTestGitHubSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))

	_, err := source.Fetch(context.Background(), "github://walteh/prompts/missing.yaml")
	require.Error(t, err, "a missing file should fail")
	assert.Contains(t, err.Error(), "getting file content")
}
