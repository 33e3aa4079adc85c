// Package rerere records how conflict hunks were resolved and replays those
// resolutions when the same hunks conflict again.
//
// A run scans the unmerged paths of a repository. Hunks never seen before get
// a pending record; hunks with a recorded resolution are rewritten in place.
// Paths the user has since resolved are compared against the conflicted
// snapshot kept in the journal and each hunk's resolution is recorded.
package rerere

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/adalundhe/rerere/core/config"
	"github.com/adalundhe/rerere/core/conflict"
	"github.com/adalundhe/rerere/core/fingerprint"
	"github.com/adalundhe/rerere/core/rrcache"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoPreimage indicates a conflicted path whose preimage record is missing.
	ErrNoPreimage = errors.New("no preimage recorded")

	// ErrNotInSession indicates a path the current session does not track.
	ErrNotInSession = errors.New("path is not in the merge session")
)

// =============================================================================
// Collaborators
// =============================================================================

// Repository is the part of a git repository the engine works on.
type Repository interface {
	// Worktree returns the filesystem rooted at the worktree.
	Worktree() billy.Filesystem

	// UnmergedPaths lists paths with unmerged index entries.
	UnmergedPaths(ctx context.Context) ([]string, error)

	// Stage marks paths resolved in the index.
	Stage(ctx context.Context, paths []string) error
}

// Store persists resolution records.
type Store interface {
	Get(id fingerprint.Identity) (rrcache.Record, bool, error)
	PutPreimage(id fingerprint.Identity, text []byte) (bool, error)
	PutPostimage(id fingerprint.Identity, text []byte) error
	Touch(id fingerprint.Identity) error
	Delete(id fingerprint.Identity) error
	All(ctx context.Context) iter.Seq2[rrcache.Record, error]
}

// AutoupdateMode decides whether fully resolved paths are staged.
type AutoupdateMode int

const (
	// AutoupdateDefault follows the configured setting.
	AutoupdateDefault AutoupdateMode = iota
	// AutoupdateOn stages paths whose conflicts were all replayed.
	AutoupdateOn
	// AutoupdateOff never stages.
	AutoupdateOff
)

func (m AutoupdateMode) String() string {
	switch m {
	case AutoupdateDefault:
		return "default"
	case AutoupdateOn:
		return "on"
	case AutoupdateOff:
		return "off"
	default:
		return "unknown"
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures an Engine.
type Config struct {
	// Repository is the worktree being merged (required).
	Repository Repository

	// Store holds the resolution records (required).
	Store Store

	// Journal persists the merge session between runs (required).
	Journal *Journal

	// Fingerprint controls hunk normalization.
	Fingerprint fingerprint.Options

	// Autoupdate is used for AutoupdateDefault.
	Autoupdate bool

	// GCResolved and GCUnresolved are the gc age thresholds
	// (defaults: 60 and 15 days).
	GCResolved   config.Expiry
	GCUnresolved config.Expiry

	// Now is the gc clock (default: time.Now).
	Now func() time.Time

	// Logger (default: slog.Default()).
	Logger *slog.Logger
}

// =============================================================================
// Engine
// =============================================================================

// Engine runs rerere operations against one repository.
type Engine struct {
	repo         Repository
	worktree     billy.Filesystem
	store        Store
	journal      *Journal
	gen          *fingerprint.Generator
	scanner      *conflict.Scanner
	autoupdate   bool
	gcResolved   config.Expiry
	gcUnresolved config.Expiry
	now          func() time.Time
	logger       *slog.Logger
}

// New creates an Engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Repository == nil {
		return nil, errors.New("rerere: engine requires a repository")
	}
	if cfg.Store == nil {
		return nil, errors.New("rerere: engine requires a store")
	}
	if cfg.Journal == nil {
		return nil, errors.New("rerere: engine requires a journal")
	}
	if cfg.Fingerprint == (fingerprint.Options{}) {
		cfg.Fingerprint = fingerprint.DefaultOptions()
	}
	if cfg.GCResolved.IsZero() {
		cfg.GCResolved = config.Days(60)
	}
	if cfg.GCUnresolved.IsZero() {
		cfg.GCUnresolved = config.Days(15)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	gen := fingerprint.NewGenerator(cfg.Fingerprint)
	worktree := cfg.Repository.Worktree()

	scanner, err := conflict.NewScanner(conflict.ScannerConfig{
		Filesystem: worktree,
		MarkerSize: gen.Options().MarkerSize,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		repo:         cfg.Repository,
		worktree:     worktree,
		store:        cfg.Store,
		journal:      cfg.Journal,
		gen:          gen,
		scanner:      scanner,
		autoupdate:   cfg.Autoupdate,
		gcResolved:   cfg.GCResolved,
		gcUnresolved: cfg.GCUnresolved,
		now:          cfg.Now,
		logger:       cfg.Logger,
	}, nil
}

func (e *Engine) markerSize() int {
	return e.gen.Options().MarkerSize
}

// clean reports whether text is free of conflict markers, well-formed or not.
func (e *Engine) clean(text []byte) bool {
	hunks, err := conflict.Parse(text, e.markerSize())
	return err == nil && len(hunks) == 0
}

// readFile reads path from the worktree. The boolean is false when the path
// does not exist.
func (e *Engine) readFile(path string) ([]byte, bool, error) {
	data, err := util.ReadFile(e.worktree, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
