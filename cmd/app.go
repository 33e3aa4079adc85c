package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/adalundhe/rerere/core/config"
	"github.com/adalundhe/rerere/core/fingerprint"
	"github.com/adalundhe/rerere/core/repo"
	"github.com/adalundhe/rerere/core/rerere"
	"github.com/adalundhe/rerere/core/rrcache"
	"github.com/adalundhe/rerere/core/storage"
)

// app is the engine wired to one repository for a single command.
type app struct {
	repo   *repo.Repository
	cfg    *config.Config
	engine *rerere.Engine
	logger *slog.Logger
}

func openApp(cmd *cobra.Command) (*app, error) {
	r, err := repo.Open(repoDir)
	if err != nil {
		return nil, err
	}

	dirs, err := storage.ResolveDirs()
	if err != nil {
		return nil, fmt.Errorf("resolve directories: %w", err)
	}
	repoDirs := storage.ResolveRepoDirs(r.GitDir())

	manager := config.NewManager(dirs)
	manager.SetRepository(repoDirs, r)
	if err := manager.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := manager.Get()

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger, err := newLogger(cmd.ErrOrStderr(), level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	store, err := rrcache.NewStore(rrcache.StoreConfig{
		Filesystem:        osfs.New(cacheDir(cfg, repoDirs)),
		PreimageCacheSize: cfg.Rerere.PreimageCacheSize,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	journal, err := rerere.NewJournal(rerere.JournalConfig{
		Path:     repoDirs.Journal,
		LockPath: repoDirs.Lock,
	})
	if err != nil {
		return nil, err
	}

	engine, err := rerere.New(rerere.Config{
		Repository: r,
		Store:      store,
		Journal:    journal,
		Fingerprint: fingerprint.Options{
			SortSides:   cfg.Rerere.SortSides,
			IncludeBase: cfg.Rerere.IncludeBase,
			MarkerSize:  cfg.Rerere.MarkerSize,
		},
		Autoupdate:   cfg.Rerere.Autoupdate,
		GCResolved:   cfg.GC.Resolved,
		GCUnresolved: cfg.GC.Unresolved,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{repo: r, cfg: cfg, engine: engine, logger: logger}, nil
}

// cacheDir returns the store root. A relative cache_dir is taken relative
// to the git directory.
func cacheDir(cfg *config.Config, repoDirs *storage.RepoDirs) string {
	dir := cfg.Rerere.CacheDir
	switch {
	case dir == "":
		return repoDirs.Cache
	case filepath.IsAbs(dir):
		return dir
	default:
		return filepath.Join(repoDirs.GitDir, dir)
	}
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
