package commands

import (
	"bytes"
	"io"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/retext/cmd/retext/opts"
	"github.com/walteh/retext/pkg/batch"
	"github.com/walteh/retext/pkg/config"
	"github.com/walteh/retext/pkg/scan"
	"github.com/walteh/retext/pkg/state"
	"gitlab.com/tozd/go/errors"
)

// recordedRun writes a lock file describing one finished run.
func recordedRun(t *testing.T, output string) {
	t.Helper()
	ctx := testContext(t)

	run := state.New("docs", "prompts/rewrite.yaml", "test-model")
	run.RecordOutcome(batch.Outcome{
		Entry:   scan.Entry{RelativePath: "a.md", Kind: scan.Transformable},
		Success: true,
		Retries: 1,
	}, 42)
	run.RecordOutcome(batch.Outcome{
		Entry:   scan.Entry{RelativePath: "b.txt", Kind: scan.PassThrough},
		Success: true,
	}, 11)
	run.RecordOutcome(batch.Outcome{
		Entry: scan.Entry{RelativePath: "sub/c.md", Kind: scan.Transformable},
		Err:   errors.New("overloaded"),
	}, 0)
	run.SetSummary(&batch.JobReport{SuccessfulCount: 2, FailedCount: 1, Transformed: 1, Copied: 1})

	require.NoError(t, run.Write(ctx, state.LockPath(output)))
}

func TestStatusCommandRendersRecordedRun(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	ctx := testContext(t)
	output := t.TempDir()
	recordedRun(t, output)

	ro := &opts.RootOpts{Config: &config.Config{}, UserLogger: quietUser(ctx, t)}
	cmd := NewStatusCmd(ro)
	cmd.SetArgs([]string{"--output", output})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)

	require.NoError(t, cmd.ExecuteContext(ctx))

	got := out.String()
	assert.Contains(t, got, "[run into "+output+"]")
	assert.Contains(t, got, "◆ docs • test-model")
	assert.Contains(t, got, "a.md")
	assert.Contains(t, got, "transformable")
	assert.Contains(t, got, "transformed")
	assert.Contains(t, got, "b.txt")
	assert.Contains(t, got, "pass-through")
	assert.Contains(t, got, "sub/c.md")
	assert.Contains(t, got, "failed")
	assert.Contains(t, got, "1 transformed, 1 copied, 1 failed")
}

func TestStatusCommandWithoutRun(t *testing.T) {
	ctx := testContext(t)

	ro := &opts.RootOpts{Config: &config.Config{}, UserLogger: quietUser(ctx, t)}
	cmd := NewStatusCmd(ro)
	cmd.SetArgs([]string{"--output", t.TempDir()})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)

	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Empty(t, out.String(), "nothing recorded means nothing rendered")
}

func TestStatusCommandCorruptLock(t *testing.T) {
	ctx := testContext(t)
	output := t.TempDir()
	writeTree(t, output, map[string]string{state.LockFileName: "{not json"})

	ro := &opts.RootOpts{Config: &config.Config{}, UserLogger: quietUser(ctx, t)}
	cmd := NewStatusCmd(ro)
	cmd.SetArgs([]string{"--output", output})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checking status")
}
