package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// =============================================================================
// Configuration
// =============================================================================

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	// Filesystem is the worktree the paths are relative to (required).
	Filesystem billy.Filesystem

	// MarkerSize is the conflict marker length (default: DefaultMarkerSize).
	MarkerSize int

	// Logger receives skip-and-warn messages (default: slog.Default()).
	Logger *slog.Logger
}

// File is a scanned path with its content and conflict regions.
type File struct {
	Path    string
	Content []byte
	Hunks   []Hunk
}

// =============================================================================
// Scanner
// =============================================================================

// Scanner reads candidate paths and extracts their conflict hunks.
type Scanner struct {
	fs         billy.Filesystem
	markerSize int
	logger     *slog.Logger
}

// NewScanner creates a Scanner from cfg.
func NewScanner(cfg ScannerConfig) (*Scanner, error) {
	if cfg.Filesystem == nil {
		return nil, errors.New("conflict: scanner requires a filesystem")
	}
	if cfg.MarkerSize <= 0 {
		cfg.MarkerSize = DefaultMarkerSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Scanner{
		fs:         cfg.Filesystem,
		markerSize: cfg.MarkerSize,
		logger:     cfg.Logger,
	}, nil
}

// ScanPath reads and parses a single path. Unreadable files and malformed
// markers are returned as a *ScanError. A path without markers yields a File
// with no hunks.
func (s *Scanner) ScanPath(path string) (*File, error) {
	content, err := util.ReadFile(s.fs, path)
	if err != nil {
		return nil, &ScanError{Path: path, Err: err}
	}

	return s.parseFile(path, content)
}

// ParseContent parses content as if it had been read from path.
func (s *Scanner) ParseContent(path string, content []byte) (*File, error) {
	return s.parseFile(path, content)
}

func (s *Scanner) parseFile(path string, content []byte) (*File, error) {
	hunks, err := Parse(content, s.markerSize)
	if err != nil {
		var scanErr *ScanError
		if errors.As(err, &scanErr) {
			scanErr.Path = path
			return nil, scanErr
		}
		return nil, &ScanError{Path: path, Err: err}
	}

	return &File{Path: path, Content: content, Hunks: hunks}, nil
}

// Scan parses every path and returns those containing conflicts, in input
// order. Per-path failures are logged and skipped. Scan stops early only when
// ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, paths []string) ([]*File, error) {
	files := make([]*File, 0, len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return files, fmt.Errorf("scan interrupted: %w", err)
		}

		file, err := s.ScanPath(path)
		if err != nil {
			s.logger.Warn("skipping path with unreadable conflicts",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		if len(file.Hunks) == 0 {
			continue
		}
		files = append(files, file)
	}

	return files, nil
}
