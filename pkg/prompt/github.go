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
	"os"
	"strings"

	"github.com/google/go-github/v60/github"
	"gitlab.com/tozd/go/errors"
)

func init() {
	RegisterSource("github", newGitHubSource)
}

// 🎯 gitHubSource fetches prompt specs straight from a repository, so a
// team can share one prompt file without vendoring it everywhere.
// Reference form: github://owner/repo/path/to/spec.yaml@ref (the ref is
// optional and defaults to the repository's default branch).
type gitHubSource struct {
	client *github.Client
}

func newGitHubSource(ctx context.Context) (Source, error) {
	client := github.NewClient(nil)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}

	return &gitHubSource{client: client}, nil
}

// 🔍 parseGitHubRef splits github://owner/repo/path[@ref] into its
// parts.
func parseGitHubRef(ref string) (owner, repo, path, gitRef string, err error) {
	trimmed := strings.TrimPrefix(ref, "github://")

	if at := strings.LastIndex(trimmed, "@"); at >= 0 {
		gitRef = trimmed[at+1:]
		trimmed = trimmed[:at]
	}

	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", "", errors.Errorf("invalid github prompt reference %q, want github://owner/repo/path[@ref]", ref)
	}

	return parts[0], parts[1], parts[2], gitRef, nil
}

func (s *gitHubSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	owner, repo, path, gitRef, err := parseGitHubRef(ref)
	if err != nil {
		return nil, err
	}

	content, _, _, err := s.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{
		Ref: gitRef,
	})
	if err != nil {
		return nil, errors.Errorf("getting file content: %w", err)
	}

	if content == nil {
		return nil, errors.Errorf("%q is a directory, not a prompt file", ref)
	}

	data, err := content.GetContent()
	if err != nil {
		return nil, errors.Errorf("decoding content: %w", err)
	}

	return []byte(data), nil
}
