package conflict

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScanner(t *testing.T, files map[string]string) (*Scanner, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	var logs bytes.Buffer
	scanner, err := NewScanner(ScannerConfig{
		Filesystem: osfs.New(dir),
		Logger:     slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.NoError(t, err)
	return scanner, &logs
}

func TestNewScanner_RequiresFilesystem(t *testing.T) {
	_, err := NewScanner(ScannerConfig{})
	assert.Error(t, err)
}

func TestScanner_ScanSkipsCleanAndMalformed(t *testing.T) {
	scanner, logs := newTestScanner(t, map[string]string{
		"clean.txt":     "nothing here\n",
		"conflict.txt":  "<<<<<<< ours\nA\n=======\nB\n>>>>>>> theirs\n",
		"broken.txt":    "<<<<<<< ours\nA\n",
		"dir/other.txt": "x\n<<<<<<<\n1\n=======\n2\n>>>>>>>\n",
	})

	files, err := scanner.Scan(context.Background(), []string{
		"clean.txt", "broken.txt", "conflict.txt", "missing.txt", "dir/other.txt",
	})
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "conflict.txt", files[0].Path)
	assert.Equal(t, "dir/other.txt", files[1].Path)
	assert.Contains(t, logs.String(), "broken.txt")
	assert.Contains(t, logs.String(), "missing.txt")
}

func TestScanner_ScanPathSurfacesErrors(t *testing.T) {
	scanner, _ := newTestScanner(t, map[string]string{
		"broken.txt": "<<<<<<< ours\nA\n",
	})

	_, err := scanner.ScanPath("broken.txt")
	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, "broken.txt", scanErr.Path)
	assert.ErrorIs(t, err, ErrUnterminatedHunk)

	_, err = scanner.ScanPath("missing.txt")
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, "missing.txt", scanErr.Path)
}

func TestScanner_ScanHonorsCancellation(t *testing.T) {
	scanner, _ := newTestScanner(t, map[string]string{
		"a.txt": "<<<<<<<\nA\n=======\nB\n>>>>>>>\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files, err := scanner.Scan(ctx, []string{"a.txt"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, files)
}
