package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

func resetGlobalDirs() {
	globalDirs = nil
	globalDirsErr = nil
	globalDirsOnce = sync.Once{}
}

func TestResolveDirs(t *testing.T) {
	resetGlobalDirs()

	dirs, err := ResolveDirs()
	if err != nil {
		t.Fatalf("ResolveDirs failed: %v", err)
	}

	if dirs.Config == "" {
		t.Error("Config dir should not be empty")
	}
	if !strings.Contains(dirs.Config, appName) {
		t.Errorf("Config dir should contain %q: %s", appName, dirs.Config)
	}
}

func TestResolveDirsXDGOverride(t *testing.T) {
	resetGlobalDirs()
	t.Cleanup(resetGlobalDirs)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	dirs, err := ResolveDirs()
	if err != nil {
		t.Fatalf("ResolveDirs failed: %v", err)
	}

	expected := filepath.Join(tmpDir, appName, "config.yaml")
	if got := dirs.UserConfigFile(); got != expected {
		t.Errorf("XDG override failed: got %s, want %s", got, expected)
	}
}

func TestResolveRepoDirs(t *testing.T) {
	gitDir := filepath.Join("work", ".git")
	dirs := ResolveRepoDirs(gitDir)

	if dirs.Cache != filepath.Join(gitDir, "rerere", "cache") {
		t.Errorf("Cache: got %s", dirs.Cache)
	}
	if dirs.Journal != filepath.Join(gitDir, "rerere", "journal.yaml") {
		t.Errorf("Journal: got %s", dirs.Journal)
	}
	if dirs.Lock != filepath.Join(gitDir, "rerere", "journal.lock") {
		t.Errorf("Lock: got %s", dirs.Lock)
	}

	// git's rerere owns these names.
	for _, taken := range []string{"MERGE_RR", "MERGE_RR.lock", "rr-cache"} {
		reserved := filepath.Join(gitDir, taken)
		for _, p := range []string{dirs.Cache, dirs.Journal, dirs.Lock, dirs.Config} {
			if p == reserved || strings.HasPrefix(p, reserved+string(filepath.Separator)) {
				t.Errorf("%s collides with git's %s", p, taken)
			}
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.New(dir)

	if err := WriteFileAtomic(fs, "ab/cdef/preimage", []byte("one"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(fs, "ab/cdef/preimage", []byte("two"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "ab", "cdef", "preimage"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "two" {
		t.Errorf("content: got %q, want %q", data, "two")
	}

	entries, err := os.ReadDir(filepath.Join(dir, "ab", "cdef"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestPruneEmptyDirs(t *testing.T) {
	fs := memfs.New()

	if err := util.WriteFile(fs, "ab/keep/file", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fs.MkdirAll("ab/empty", 0o755); err != nil {
		t.Fatal(err)
	}

	if err := PruneEmptyDirs(fs, "ab/empty"); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if _, err := fs.Stat("ab/empty"); !os.IsNotExist(err) {
		t.Errorf("ab/empty should be gone, stat err = %v", err)
	}
	if _, err := fs.Stat("ab/keep/file"); err != nil {
		t.Errorf("ab/keep/file should remain: %v", err)
	}

	if err := RemoveIfExists(fs, "missing"); err != nil {
		t.Errorf("RemoveIfExists on missing file: %v", err)
	}
}
