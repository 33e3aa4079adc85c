// Package storage resolves where rerere keeps its files: platform-native user
// directories with XDG support, and the per-repository layout under the git
// directory.
package storage

import (
	"os"
	"path/filepath"
	"sync"
)

const appName = "rerere"

// Dirs provides platform-native directory resolution with XDG support.
type Dirs struct {
	Config string // User configuration (config.yaml)
}

// RepoDirs is the per-repository layout, all paths inside the git directory.
// Nothing lives under git's own rr-cache or MERGE_RR, so git's rerere can run
// in the same repository.
type RepoDirs struct {
	GitDir  string // .git/
	Root    string // .git/rerere/
	Cache   string // .git/rerere/cache/ (resolution store)
	Journal string // .git/rerere/journal.yaml (merge session)
	Lock    string // .git/rerere/journal.lock
	Config  string // .git/rerere.yaml
}

var (
	globalDirs     *Dirs
	globalDirsOnce sync.Once
	globalDirsErr  error
)

// ResolveDirs returns platform-appropriate directories.
// Results are cached after first call.
func ResolveDirs() (*Dirs, error) {
	globalDirsOnce.Do(func() {
		globalDirs, globalDirsErr = resolveDirsImpl()
	})
	return globalDirs, globalDirsErr
}

func resolveDirsImpl() (*Dirs, error) {
	dirs := &Dirs{
		Config: resolveDir("XDG_CONFIG_HOME", platformConfigDefault()),
	}
	return dirs, nil
}

func resolveDir(envVar, fallback string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return filepath.Join(dir, appName)
	}
	return fallback
}

// ResolveRepoDirs returns the layout for the repository whose git directory
// is gitDir.
func ResolveRepoDirs(gitDir string) *RepoDirs {
	root := filepath.Join(gitDir, appName)
	return &RepoDirs{
		GitDir:  gitDir,
		Root:    root,
		Cache:   filepath.Join(root, "cache"),
		Journal: filepath.Join(root, "journal.yaml"),
		Lock:    filepath.Join(root, "journal.lock"),
		Config:  filepath.Join(gitDir, "rerere.yaml"),
	}
}

// UserConfigFile returns the user-level config file path.
func (d *Dirs) UserConfigFile() string {
	return d.ConfigDir("config.yaml")
}

// ConfigDir returns the config subdirectory path.
func (d *Dirs) ConfigDir(subpath ...string) string {
	return filepath.Join(append([]string{d.Config}, subpath...)...)
}
