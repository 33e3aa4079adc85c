package rerere

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gobwas/glob"

	"github.com/adalundhe/rerere/core/fingerprint"
	"github.com/adalundhe/rerere/core/rrcache"
)

// =============================================================================
// Status
// =============================================================================

// PathStatus describes one path of the merge session.
type PathStatus struct {
	Path string

	// Hunks is the number of conflict hunks currently in the file.
	Hunks int

	// Clean is set when the file has no conflict markers left.
	Clean bool

	// Resolvable is set when every current hunk has a recorded resolution.
	Resolvable bool

	// Resolved is Clean or Resolvable.
	Resolved bool
}

// Status returns every path tracked by the merge session, annotated with
// whether its remaining hunks could be resolved automatically.
func (e *Engine) Status(ctx context.Context) ([]PathStatus, error) {
	session, err := e.journal.Read()
	if err != nil {
		return nil, err
	}

	statuses := make([]PathStatus, 0, session.Len())
	for _, path := range session.Paths() {
		if err := ctx.Err(); err != nil {
			return statuses, err
		}
		st, err := e.pathStatus(path)
		if err != nil {
			e.logger.Warn("cannot inspect path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			st = PathStatus{Path: path}
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Remaining returns the session paths and any other unmerged paths, each
// marked resolved when nothing is left for the user to do. Unmerged paths
// that rerere never tracked are resolved only if all their hunks are.
func (e *Engine) Remaining(ctx context.Context) ([]PathStatus, error) {
	session, err := e.journal.Read()
	if err != nil {
		return nil, err
	}

	unmerged, err := e.repo.UnmergedPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unmerged paths: %w", err)
	}

	paths := session.Paths()
	for _, path := range unmerged {
		if _, ok := session.Entry(path); !ok {
			paths = append(paths, path)
		}
	}

	statuses := make([]PathStatus, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return statuses, err
		}

		st, err := e.pathStatus(path)
		if err != nil {
			e.logger.Warn("cannot inspect path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			st = PathStatus{Path: path}
		}
		if _, tracked := session.Entry(path); !tracked {
			st.Resolved = st.Resolvable
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (e *Engine) pathStatus(path string) (PathStatus, error) {
	file, err := e.scanner.ScanPath(path)
	if err != nil {
		return PathStatus{Path: path}, err
	}

	st := PathStatus{Path: path, Hunks: len(file.Hunks)}
	if len(file.Hunks) == 0 {
		st.Clean = true
		st.Resolved = true
		return st, nil
	}

	st.Resolvable = true
	for _, id := range e.gen.Assign(file.Hunks) {
		rec, ok, err := e.store.Get(id)
		if err != nil {
			return PathStatus{Path: path}, err
		}
		if !ok || !rec.Resolved() {
			st.Resolvable = false
			break
		}
	}
	st.Resolved = st.Resolvable
	return st, nil
}

// =============================================================================
// Forget
// =============================================================================

// Forget deletes the recorded resolutions of the hunks in paths matching
// pathspecs, so that the next resolution of those hunks is recorded afresh.
// Identities come from the conflict markers in the working file or, once
// the file is resolved or removed, from the session snapshot. A working file
// with malformed markers is reported as a *conflict.ScanError and its records
// are left alone. Forgetting a path without records succeeds. With no
// pathspecs every session path is forgotten.
func (e *Engine) Forget(ctx context.Context, pathspecs []string) error {
	if len(pathspecs) == 0 {
		e.logger.Warn("'rerere forget' without paths is deprecated")
	}

	matcher, err := compilePathspecs(pathspecs)
	if err != nil {
		return err
	}

	var candidates []string
	if len(pathspecs) > 0 {
		unmerged, err := e.repo.UnmergedPaths(ctx)
		if err != nil {
			return fmt.Errorf("list unmerged paths: %w", err)
		}
		candidates = unmerged
	}

	var errs []error
	updateErr := e.journal.Update(ctx, func(s *MergeSession) error {
		paths := s.Paths()
		for _, path := range candidates {
			if _, ok := s.Entry(path); !ok {
				paths = append(paths, path)
			}
		}

		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				return nil
			}
			if !matcher(path) {
				continue
			}
			if err := e.forgetPath(s, path); err != nil {
				errs = append(errs, err)
			}
		}
		return nil
	})

	return errors.Join(append(errs, updateErr)...)
}

func (e *Engine) forgetPath(s *MergeSession, path string) error {
	entry, tracked := s.Entry(path)

	var ids []fingerprint.Identity
	file, err := e.scanner.ScanPath(path)
	switch {
	case err != nil && !errors.Is(err, os.ErrNotExist):
		// Unreadable or malformed; the hunks cannot be named.
		return err
	case err == nil && len(file.Hunks) > 0:
		ids = e.gen.Assign(file.Hunks)
		if !tracked || !tracksAll(entry, ids) {
			entry = newPathEntry(path, file.Content, ids, HunkPending)
			s.Put(entry)
		}
	case tracked:
		snap, err := e.scanner.ParseContent(path, entry.Snapshot)
		if err != nil {
			return err
		}
		ids = e.gen.Assign(snap.Hunks)
	default:
		return nil
	}

	var errs []error
	for _, id := range ids {
		if err := e.store.Delete(id); err != nil {
			errs = append(errs, err)
			continue
		}
		entry.SetState(id, HunkForgotten)
	}
	if len(errs) == 0 {
		e.logger.Info("forgot resolution", slog.String("path", path))
	}
	return errors.Join(errs...)
}

// compilePathspecs returns a matcher for git-style pathspecs: glob patterns
// where '*' stops at '/', and directory prefixes. No pathspecs match all.
func compilePathspecs(pathspecs []string) (func(string) bool, error) {
	if len(pathspecs) == 0 {
		return func(string) bool { return true }, nil
	}

	type pattern struct {
		prefix string
		g      glob.Glob
	}
	patterns := make([]pattern, 0, len(pathspecs))
	for _, raw := range pathspecs {
		p := strings.TrimPrefix(raw, "./")
		p = strings.TrimSuffix(p, "/")
		if p == "" || p == "." {
			return func(string) bool { return true }, nil
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pathspec %q: %w", raw, err)
		}
		patterns = append(patterns, pattern{prefix: p + "/", g: g})
	}

	return func(path string) bool {
		for _, pat := range patterns {
			if pat.g.Match(path) || strings.HasPrefix(path, pat.prefix) {
				return true
			}
		}
		return false
	}, nil
}

// =============================================================================
// Clear
// =============================================================================

// Clear deletes every record referenced by the merge session and removes the
// session. Each discarded resolution is logged at Info; records that cannot
// be deleted are logged and skipped.
func (e *Engine) Clear(ctx context.Context) error {
	return e.journal.Update(ctx, func(s *MergeSession) error {
		for _, path := range s.Paths() {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, _ := s.Entry(path)
			for _, h := range entry.Hunks {
				if rec, ok, err := e.store.Get(h.ID); err == nil && ok && rec.Resolved() {
					e.logger.Info("discarding recorded resolution",
						slog.String("path", path),
						slog.String("id", h.ID.String()))
				}
				if err := e.store.Delete(h.ID); err != nil {
					e.logger.Warn("cannot delete record",
						slog.String("path", path),
						slog.String("id", h.ID.String()),
						slog.String("error", err.Error()))
				}
			}
			s.Remove(path)
		}
		return nil
	})
}

// =============================================================================
// GC
// =============================================================================

// GCResult summarizes a gc sweep.
type GCResult struct {
	Scanned int
	Removed int
	Kept    int
	Failed  int
}

// GC deletes pending records unused for longer than the unresolved threshold
// and resolved records unused for longer than the resolved threshold.
// Records referenced by the merge session are kept. The sweep stops at a
// record boundary when ctx is cancelled.
func (e *Engine) GC(ctx context.Context) (*GCResult, error) {
	session, err := e.journal.Read()
	if err != nil {
		return nil, err
	}
	referenced := session.Identities()
	now := e.now()

	result := &GCResult{}
	for rec, err := range e.store.All(ctx) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			e.logger.Warn("cannot read record during gc", slog.String("error", err.Error()))
			result.Failed++
			continue
		}
		result.Scanned++

		expiry := e.gcUnresolved
		if rec.Status == rrcache.StatusResolved {
			expiry = e.gcResolved
		}

		_, inUse := referenced[rec.ID]
		if inUse || !expiry.Expired(rec.LastUsed, now) {
			result.Kept++
			continue
		}

		if err := e.store.Delete(rec.ID); err != nil {
			e.logger.Warn("cannot delete record during gc",
				slog.String("id", rec.ID.String()),
				slog.String("error", err.Error()))
			result.Failed++
			continue
		}
		e.logger.Debug("removed expired record",
			slog.String("id", rec.ID.String()),
			slog.String("status", rec.Status.String()))
		result.Removed++
	}

	return result, ctx.Err()
}
