package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/interview-pipeline/aggregate"
	"github.com/maastricht-university/interview-pipeline/decision"
	"github.com/maastricht-university/interview-pipeline/results"
)

// writeConfig points the replay at an unreachable sidecar so every
// extractor backend fails fast, and keeps results in dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	yml := `pipeline:
  log_level: warn
sampler:
  interval: 5ms
extractor:
  backends: [local]
  timeout: 1s
  local:
    url: http://127.0.0.1:1
    model_sources: [first]
  remote:
    api_key: very-secret-key
    api_secret: very-secret-secret
results:
  backend: file
  dir: ` + dir + "\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "interview version "+version+"\n", out)
}

func TestConfigRedactsSecrets(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t, t.TempDir()), "config")
	require.NoError(t, err)
	assert.NotContains(t, out, "very-secret")
	assert.Contains(t, out, "***")
	assert.Contains(t, out, "interval: 5ms")
}

func TestConfigMissingFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "config")
	assert.Error(t, err)
}

func TestRunWithoutAnalysis(t *testing.T) {
	resultsDir := t.TempDir()
	frames := t.TempDir()
	for _, n := range []string{"1.jpg", "2.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(frames, n), []byte("img"), 0o644))
	}

	out, err := execute(t, "--config", writeConfig(t, resultsDir), "run", "--frames", frames)
	require.NoError(t, err)

	var got recordView
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, results.FormatVersion, got.Version)
	assert.Equal(t, aggregate.Summarize(nil), got.Summary)
	assert.Equal(t, decision.Rejected, got.Decision.Outcome)
	assert.Contains(t, got.Message, "not been selected")

	fs, err := results.NewFileStore(resultsDir)
	require.NoError(t, err)
	_, err = fs.Load(t.Context(), got.SessionID)
	assert.NoError(t, err, "record persisted to the file store")
}

func TestRunRequiresFrames(t *testing.T) {
	_, err := execute(t, "run")
	assert.ErrorContains(t, err, "--frames")
}

func TestResults(t *testing.T) {
	dir := t.TempDir()
	fs, err := results.NewFileStore(dir)
	require.NoError(t, err)
	sum := aggregate.Summarize(nil)
	rec := results.Record{Version: results.FormatVersion, SessionID: "abc", Summary: sum, Decision: decision.Decide(sum)}
	require.NoError(t, fs.Save(t.Context(), rec))

	cfg := writeConfig(t, dir)
	out, err := execute(t, "--config", cfg, "results", "abc")
	require.NoError(t, err)
	var got recordView
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "abc", got.SessionID)
	assert.Equal(t, rec.Decision, got.Decision)

	_, err = execute(t, "--config", cfg, "results", "missing")
	assert.ErrorIs(t, err, results.ErrNotFound)
}
