package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenchlabs/quench/internal/store"
)

func TestRunCommand_PassingSuite(t *testing.T) {
	out, _, err := executeCommand(t, "run", "testdata/suites/pass.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "passing suite")
	assert.Contains(t, out, "✓ arithmetic: addition")
	assert.Contains(t, out, "2 assertions: 2 passed, 0 failed")
}

func TestRunCommand_FailingSuite(t *testing.T) {
	out, _, err := executeCommand(t, "run", "testdata/suites/fail.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ arithmetic is broken")
	assert.Contains(t, out, "off by one")
	assert.Contains(t, out, "expected: 5")
	assert.Contains(t, out, "actual:   4")
}

func TestRunCommand_GlobRunsBothSuites(t *testing.T) {
	out, _, err := executeCommand(t, "run", filepath.Join("testdata", "suites", "*.yaml"))
	require.Error(t, err, "fail.yaml should fail the run")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// fail.yaml sorts before pass.yaml, so its test registers first.
	assert.Contains(t, out, "✗ arithmetic is broken")
	assert.Contains(t, out, "✓ arithmetic: addition")
	assert.Contains(t, out, "3 assertions: 2 passed, 1 failed")
}

func TestRunCommand_ModuleFilterSkips(t *testing.T) {
	out, _, err := executeCommand(t, "run", "--module", "arithmetic", filepath.Join("testdata", "suites", "*.yaml"))
	require.NoError(t, err, "the failing test is module-less and should be skipped")

	assert.Contains(t, out, "- arithmetic is broken (skipped)")
	assert.Contains(t, out, "✓ arithmetic: addition")
}

func TestRunCommand_HidePassed(t *testing.T) {
	out, _, err := executeCommand(t, "run", "--hide-passed", "testdata/suites/pass.yaml")
	require.NoError(t, err)

	assert.NotContains(t, out, "✓")
	assert.Contains(t, out, "2 assertions: 2 passed, 0 failed")
}

func TestRunCommand_NoMatches(t *testing.T) {
	_, _, err := executeCommand(t, "run", "testdata/suites/*.toml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no suite files matched")
}

func TestRunCommand_InvalidSuite(t *testing.T) {
	_, _, err := executeCommand(t, "run", "testdata/invalid/bad-kind.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommand_JSONOutput(t *testing.T) {
	out, _, err := executeCommand(t, "--format", "json", "run", "testdata/suites/pass.yaml")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Title string `json:"title"`
			RunID string `json:"run_id"`
			Stats struct {
				Passed int `json:"passed"`
				Failed int `json:"failed"`
				Total  int `json:"total"`
			} `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "passing suite", resp.Data.Title)
	assert.NotEmpty(t, resp.Data.RunID)
	assert.Equal(t, 2, resp.Data.Stats.Passed)
	assert.Equal(t, 0, resp.Data.Stats.Failed)
	assert.Equal(t, 2, resp.Data.Stats.Total)
}

func TestRunCommand_TitleFlagOverridesSuite(t *testing.T) {
	out, _, err := executeCommand(t, "run", "--title", "nightly", "testdata/suites/pass.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "nightly")
	assert.NotContains(t, out, "passing suite\n")
}

func TestRunCommand_WritesArtifact(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "artifact.db")

	_, _, err := executeCommand(t, "run", "--db", dbPath, "testdata/suites/pass.yaml")
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	var runs, tests int
	require.NoError(t, st.DB().QueryRow("SELECT COUNT(*) FROM runs").Scan(&runs))
	require.NoError(t, st.DB().QueryRow("SELECT COUNT(*) FROM tests").Scan(&tests))
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, tests)
}
