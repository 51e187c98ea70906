package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olehluchkiv/scopescan/internal/report"
	"github.com/olehluchkiv/scopescan/internal/server"
)

// ---------------------------------------------------------------------------
// reorderArgs tests
// ---------------------------------------------------------------------------

func TestReorderArgs_NoArgs(t *testing.T) {
	flags, positional := reorderArgs(nil)
	assert.Nil(t, flags)
	assert.Nil(t, positional)
}

func TestReorderArgs_PositionalOnly(t *testing.T) {
	flags, positional := reorderArgs([]string{"./mymodule"})
	assert.Nil(t, flags)
	assert.Equal(t, []string{"./mymodule"}, positional)
}

func TestReorderArgs_PositionalBeforeFlags(t *testing.T) {
	// The whole point of reorderArgs: allow positional args before flags.
	flags, positional := reorderArgs([]string{"./pkg", "-format", "json"})
	assert.Equal(t, []string{"-format", "json"}, flags)
	assert.Equal(t, []string{"./pkg"}, positional)
}

func TestReorderArgs_PositionalBetweenFlags(t *testing.T) {
	flags, positional := reorderArgs([]string{"-strict", "./pkg", "-scope", "io,http"})
	assert.Equal(t, []string{"-strict", "-scope", "io,http"}, flags)
	assert.Equal(t, []string{"./pkg"}, positional)
}

func TestReorderArgs_ValueFlagWithEquals(t *testing.T) {
	flags, positional := reorderArgs([]string{"-output=report.json", "./pkg"})
	assert.Equal(t, []string{"-output=report.json"}, flags)
	assert.Equal(t, []string{"./pkg"}, positional)
}

func TestReorderArgs_DoubleHyphenValueFlag(t *testing.T) {
	flags, positional := reorderArgs([]string{"--format", "json", "./pkg"})
	assert.Equal(t, []string{"--format", "json"}, flags)
	assert.Equal(t, []string{"./pkg"}, positional)
}

func TestReorderArgs_BooleanFlagsDoNotConsumeNextArg(t *testing.T) {
	for _, flag := range []string{"-public-only", "-include-deps", "-serve", "-no-browser", "-watch", "-strict"} {
		flags, positional := reorderArgs([]string{flag, "./pkg"})
		assert.Equal(t, []string{flag}, flags, flag)
		assert.Equal(t, []string{"./pkg"}, positional, flag)
	}
}

func TestReorderArgs_AllValueFlags(t *testing.T) {
	args := []string{
		"-path", "/tmp/repo",
		"-snapshot", "types.yaml",
		"-scopes", "scopes.toml",
		"-scope", "io",
		"-exclude", "example.com/*/internal.*",
		"-workers", "4",
		"-format", "mermaid",
		"-output", "out.md",
		"-port", "3000",
		"-log-file", "app.log",
		"-log-level", "debug",
	}
	flags, positional := reorderArgs(args)
	assert.Equal(t, args, flags)
	assert.Nil(t, positional)
}

func TestReorderArgs_ValueFlagAtEnd(t *testing.T) {
	// flag.Parse reports the missing value.
	flags, positional := reorderArgs([]string{"-port"})
	assert.Equal(t, []string{"-port"}, flags)
	assert.Nil(t, positional)
}

// ---------------------------------------------------------------------------
// parseOptions tests
// ---------------------------------------------------------------------------

func TestParseOptions(t *testing.T) {
	t.Setenv(logLevelEnv, "")
	opts, err := parseOptions([]string{
		"./shop", "-scope", "io, http,", "-exclude", "a.*,b.C", "-public-only", "-workers", "3", "-format", "json",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, server.AnalysisConfig{
		Input:      "./shop",
		Scopes:     []string{"io", "http"},
		PublicOnly: true,
		Exclude:    []string{"a.*", "b.C"},
		Workers:    3,
	}, opts.analysis)
	assert.Equal(t, "json", opts.format)
	assert.Equal(t, "info", opts.logLevel)
	assert.Equal(t, 8080, opts.port)
}

func TestParseOptions_PathFlag(t *testing.T) {
	opts, err := parseOptions([]string{"-path", "./repo"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "./repo", opts.analysis.Input)

	opts, err = parseOptions([]string{"./positional", "-path", "./repo"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "./positional", opts.analysis.Input, "positional wins over -path")
}

func TestParseOptions_SnapshotNeedsNoInput(t *testing.T) {
	opts, err := parseOptions([]string{"-snapshot", "types.yaml"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "types.yaml", opts.analysis.Snapshot)
}

func TestParseOptions_Errors(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseOptions(nil, &stderr)
	assert.ErrorContains(t, err, "no input given")
	assert.Contains(t, stderr.String(), "Usage: scopescan")

	_, err = parseOptions([]string{"./x", "-format", "xml"}, io.Discard)
	assert.ErrorContains(t, err, `unknown format "xml"`)

	_, err = parseOptions([]string{"./x", "-workers", "many"}, io.Discard)
	assert.Error(t, err)
}

func TestParseOptions_LogLevelEnv(t *testing.T) {
	t.Setenv(logLevelEnv, "debug")

	opts, err := parseOptions([]string{"./x"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "debug", opts.logLevel)

	opts, err = parseOptions([]string{"./x", "-log-level", "warn"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "warn", opts.logLevel, "explicit flag wins over the environment")
}

func TestWatchPaths(t *testing.T) {
	assert.Equal(t, []string{"./shop", "scopes.toml"},
		watchPaths(server.AnalysisConfig{Input: "./shop", CatalogFile: "scopes.toml"}))
	assert.Equal(t, []string{"types.yaml"},
		watchPaths(server.AnalysisConfig{Input: "./shop", Snapshot: "types.yaml"}))
	assert.Empty(t, watchPaths(server.AnalysisConfig{Input: "https://github.com/a/b"}))
}

// ---------------------------------------------------------------------------
// run tests
// ---------------------------------------------------------------------------

var (
	workersSnapshot = filepath.Join("testdata", "snapshots", "workers.yaml")
	workersCatalog  = filepath.Join("testdata", "scopes", "workers.yaml")
	brokenCatalog   = filepath.Join("testdata", "scopes", "broken.toml")
)

func TestRun_TextReport(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-snapshot", workersSnapshot, "-scopes", workersCatalog, "-log-level", "error"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "pkg.PublicWorker")
	assert.Contains(t, stdout.String(), "lifecycle")
	assert.NotContains(t, stdout.String(), "pkg.internal.HiddenWorker")
}

func TestRun_JSONToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.json")
	var stdout, stderr bytes.Buffer
	code := run([]string{"-snapshot", workersSnapshot, "-scopes", workersCatalog, "-scope", "runnable",
		"-format", "json", "-output", out, "-log-level", "error"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "Wrote json report to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var rep report.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	require.Len(t, rep.Scopes, 1)
	assert.Equal(t, "runnable", rep.Scopes[0].Name)
	assert.Len(t, rep.Scopes[0].Entities, 2)
}

func TestRun_Mermaid(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-snapshot", workersSnapshot, "-scopes", workersCatalog, "-format", "mermaid", "-log-level", "error"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "## runnable\n\n```mermaid\nclassDiagram")
}

func TestRun_StrictFailsOnUnresolvedScope(t *testing.T) {
	args := []string{"-snapshot", workersSnapshot, "-scopes", brokenCatalog, "-log-level", "error"}

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run(args, &stdout, &stderr), "unresolved scopes are reported, not fatal")
	assert.Contains(t, stdout.String(), "scope dangling failed")

	stderr.Reset()
	assert.Equal(t, 1, run(append(args, "-strict"), io.Discard, &stderr))
	assert.Contains(t, stderr.String(), "pkg.DoesNotExist")
}

func TestRun_UsageErrors(t *testing.T) {
	assert.Equal(t, 2, run(nil, io.Discard, io.Discard))
	assert.Equal(t, 2, run([]string{"-snapshot", workersSnapshot, "-log-level", "loud"}, io.Discard, io.Discard))
	assert.Equal(t, 0, run([]string{"-help"}, io.Discard, io.Discard))
}

func TestRun_UnknownScope(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-snapshot", workersSnapshot, "-scope", "nope", "-log-level", "error"}, io.Discard, &stderr))
	assert.Contains(t, stderr.String(), "nope")
}
