// Package repo adapts a git repository to what the rerere engine needs: the
// worktree filesystem, the git directory, unmerged index paths, staging, and
// the rerere-related git configuration.
package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrEmptyPath is returned when no repository path is given.
	ErrEmptyPath = errors.New("repository path cannot be empty")

	// ErrNotGitRepository is returned when the path is not inside a worktree.
	ErrNotGitRepository = errors.New("not a git repository")

	// ErrBareRepository is returned for repositories without a worktree.
	ErrBareRepository = errors.New("repository has no worktree")

	// ErrGitNotInstalled is returned when staging needs the git binary.
	ErrGitNotInstalled = errors.New("git is not installed or not in PATH")
)

// =============================================================================
// Repository
// =============================================================================

// Repository is an opened git worktree.
type Repository struct {
	repo     *gogit.Repository
	worktree billy.Filesystem
	gitDir   string
}

// Open opens the repository containing path, searching parent directories
// for the git directory.
func Open(path string) (*Repository, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	r, err := gogit.PlainOpenWithOptions(absPath, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotGitRepository, absPath)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return fromGoGit(r)
}

func fromGoGit(r *gogit.Repository) (*Repository, error) {
	wt, err := r.Worktree()
	if err != nil {
		if errors.Is(err, gogit.ErrIsBareRepository) {
			return nil, ErrBareRepository
		}
		return nil, fmt.Errorf("open worktree: %w", err)
	}

	storage, ok := r.Storer.(*filesystem.Storage)
	if !ok {
		return nil, fmt.Errorf("%w: repository storage is not on disk", ErrNotGitRepository)
	}

	return &Repository{
		repo:     r,
		worktree: wt.Filesystem,
		gitDir:   storage.Filesystem().Root(),
	}, nil
}

// Root returns the worktree root directory.
func (r *Repository) Root() string {
	return r.worktree.Root()
}

// GitDir returns the git directory.
func (r *Repository) GitDir() string {
	return r.gitDir
}

// Worktree returns the worktree filesystem.
func (r *Repository) Worktree() billy.Filesystem {
	return r.worktree
}

// =============================================================================
// Index
// =============================================================================

// UnmergedPaths returns the paths with higher-stage index entries, in index
// order and without duplicates.
func (r *Repository) UnmergedPaths(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx, err := r.repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	var paths []string
	seen := make(map[string]struct{})
	for _, e := range idx.Entries {
		if e.Stage == index.Merged {
			continue
		}
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		paths = append(paths, e.Name)
	}
	return paths, nil
}

// Stage adds paths to the index, marking their conflicts resolved.
func (r *Repository) Stage(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	_, err := r.runGitCommand(ctx, args...)
	return err
}

// runGitCommand executes a git command in the worktree root.
func (r *Repository) runGitCommand(ctx context.Context, args ...string) (string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return "", ErrGitNotInstalled
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Root()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", parseGitError(err, stderr.String())
	}
	return stdout.String(), nil
}

func parseGitError(err error, stderr string) error {
	if strings.Contains(stderr, "not a git repository") {
		return ErrNotGitRepository
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("git command failed: %s", strings.TrimSpace(stderr))
	}
	return fmt.Errorf("git command failed: %w", err)
}

// =============================================================================
// Config
// =============================================================================

// ConfigValues returns the git config values for keys of the form
// "section.option", merged from the global and repository scopes. Keys that
// are not set are absent from the result.
func (r *Repository) ConfigValues(keys ...string) (map[string]string, error) {
	cfg, err := r.repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		cfg, err = r.repo.Config()
		if err != nil {
			return nil, fmt.Errorf("read git config: %w", err)
		}
	}

	values := make(map[string]string, len(keys))
	for _, key := range keys {
		section, option, ok := strings.Cut(key, ".")
		if !ok {
			continue
		}
		if !cfg.Raw.HasSection(section) {
			continue
		}
		s := cfg.Raw.Section(section)
		if !s.HasOption(option) {
			continue
		}
		values[key] = s.Option(option)
	}
	return values, nil
}
