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

package main

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	require.NotNil(t, info)
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}

func TestFormatVersion(t *testing.T) {
	out := FormatVersion()
	assert.Contains(t, out, "retext version info")
	assert.Contains(t, out, runtime.Version())
	assert.Contains(t, out, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestVersionCommand(t *testing.T) {
	cmd := newVersionCmd()
	cmd.SetArgs([]string{})
	out := &bytes.Buffer{}
	cmd.SetOut(out)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "🚀 retext version info:")
}
