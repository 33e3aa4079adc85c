package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/rerere/core/config"
	"github.com/adalundhe/rerere/core/rerere"
	"github.com/adalundhe/rerere/core/storage"
)

// =============================================================================
// Flag Parsing Tests
// =============================================================================

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected OutputFormat
	}{
		{input: "json", expected: OutputJSON},
		{input: "JSON", expected: OutputJSON},
		{input: "table", expected: OutputTable},
		{input: "plain", expected: OutputPlain},
		{input: "", expected: OutputPlain},
		{input: "unknown", expected: OutputPlain},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseOutputFormat(tt.input))
		})
	}
}

func TestAutoupdateMode(t *testing.T) {
	assert.Equal(t, rerere.AutoupdateDefault, autoupdateMode(false, false))
	assert.Equal(t, rerere.AutoupdateOn, autoupdateMode(true, false))
	assert.Equal(t, rerere.AutoupdateOff, autoupdateMode(false, true))
}

func TestCacheDir(t *testing.T) {
	repoDirs := storage.ResolveRepoDirs(filepath.Join("repo", ".git"))
	abs := filepath.Join(t.TempDir(), "shared")

	tests := []struct {
		name     string
		cacheDir string
		expected string
	}{
		{name: "default", cacheDir: "", expected: repoDirs.Cache},
		{name: "absolute", cacheDir: abs, expected: abs},
		{name: "relative to git dir", cacheDir: "cache", expected: filepath.Join("repo", ".git", "cache")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Rerere.CacheDir = tt.cacheDir
			assert.Equal(t, tt.expected, cacheDir(cfg, repoDirs))
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&buf, "warn", "text")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger, err = newLogger(&buf, "debug", "json")
	require.NoError(t, err)
	logger.Debug("structured")
	assert.Contains(t, buf.String(), `"msg":"structured"`)

	_, err = newLogger(&buf, "loud", "text")
	assert.Error(t, err)
}

// =============================================================================
// Output Tests
// =============================================================================

func TestPrintRunResult(t *testing.T) {
	var buf bytes.Buffer
	printRunResult(&buf, &rerere.RunResult{
		Recorded: []string{"a.txt"},
		Resolved: []rerere.ResolvedPath{
			{Path: "b.txt", Replayed: 1},
			{Path: "c.txt", Replayed: 1, Remaining: 2},
		},
		Staged: []string{"b.txt"},
	})

	assert.Equal(t, "Recorded resolution for 'a.txt'.\n"+
		"Resolved 'b.txt' using previous resolution.\n"+
		"Resolved 1 of 3 conflicts in 'c.txt' using previous resolution.\n"+
		"Staged 'b.txt' using previous resolution.\n", buf.String())
}

func TestFormatStatusOutput(t *testing.T) {
	statuses := []rerere.PathStatus{
		{Path: "a.txt", Hunks: 2},
		{Path: "b.txt", Hunks: 1, Resolvable: true, Resolved: true},
	}

	var buf bytes.Buffer
	require.NoError(t, formatStatusOutput(&buf, statuses, OutputPlain))
	assert.Equal(t, "a.txt\nb.txt\n", buf.String())

	buf.Reset()
	require.NoError(t, formatStatusOutput(&buf, statuses, OutputTable))
	assert.Contains(t, buf.String(), "conflicted")
	assert.Contains(t, buf.String(), "resolvable")

	buf.Reset()
	require.NoError(t, formatStatusOutput(&buf, statuses, OutputJSON))
	assert.Contains(t, buf.String(), `"path": "b.txt"`)
	assert.Contains(t, buf.String(), `"resolvable": true`)
}

// =============================================================================
// Train Pair Tests
// =============================================================================

func TestReadTrainPairs(t *testing.T) {
	dir := t.TempDir()
	conflicted := filepath.Join(dir, "conflicted.txt")
	resolved := filepath.Join(dir, "resolved.txt")
	require.NoError(t, os.WriteFile(conflicted, []byte("<<<<<<<\nA\n=======\nB\n>>>>>>>\n"), 0o644))
	require.NoError(t, os.WriteFile(resolved, []byte("A\n"), 0o644))

	pairs, err := readTrainPairs([]string{conflicted + ":" + resolved})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "A\n", string(pairs[0].Resolved))

	_, err = readTrainPairs([]string{"no-colon"})
	assert.Error(t, err)

	_, err = readTrainPairs([]string{conflicted + ":" + filepath.Join(dir, "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// =============================================================================
// Command Tests
// =============================================================================

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute()
	return out.String(), err
}

func TestCommands_TrainStatusGC(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	dir := t.TempDir()
	_, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	conflicted := filepath.Join(dir, "conflicted.txt")
	resolved := filepath.Join(dir, "resolved.txt")
	require.NoError(t, os.WriteFile(conflicted, []byte("<<<<<<< ours\nA\n=======\nB\n>>>>>>> theirs\n"), 0o644))
	require.NoError(t, os.WriteFile(resolved, []byte("AB\n"), 0o644))

	out, err := runCommand(t, "train", "--repo", dir, conflicted+":"+resolved)
	require.NoError(t, err)
	assert.Equal(t, "recorded 1, unchanged 0, kept 0, failed 0, skipped 0\n", out)

	entries, err := os.ReadDir(filepath.Join(dir, ".git", "rerere", "cache"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	out, err = runCommand(t, "status", "--repo", dir)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = runCommand(t, "gc", "--repo", dir)
	require.NoError(t, err)
	assert.Equal(t, "scanned 1, removed 0, kept 1, failed 0\n", out)
}

func TestCommands_NotARepository(t *testing.T) {
	_, err := runCommand(t, "status", "--repo", t.TempDir())
	assert.Error(t, err)
}
