package rerere

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/adalundhe/rerere/core/conflict"
	"github.com/adalundhe/rerere/core/fingerprint"
	"github.com/adalundhe/rerere/core/patch"
	"github.com/adalundhe/rerere/core/storage"
)

// ResolvedPath reports replayed hunks for one path.
type ResolvedPath struct {
	Path      string
	Replayed  int
	Remaining int
}

// RunResult summarizes a default run.
type RunResult struct {
	// Session identifies the merge session in the journal.
	Session string

	// Recorded lists paths whose resolutions were recorded.
	Recorded []string

	// Resolved lists paths with at least one replayed hunk.
	Resolved []ResolvedPath

	// Pending lists paths left with conflict markers.
	Pending []string

	// Staged lists paths added to the index.
	Staged []string
}

// RunDefault records the resolutions of tracked paths the user has resolved,
// then scans the unmerged paths: new hunks are seeded as pending records and
// hunks with a recorded resolution are replayed. With autoupdate in effect,
// paths left without conflict markers are staged.
//
// Per-path and per-record failures are logged and skipped. If ctx is
// cancelled the progress made so far is kept and ctx's error returned.
func (e *Engine) RunDefault(ctx context.Context, mode AutoupdateMode) (*RunResult, error) {
	autoupdate := e.autoupdate
	switch mode {
	case AutoupdateOn:
		autoupdate = true
	case AutoupdateOff:
		autoupdate = false
	}

	result := &RunResult{}
	var toStage []string
	var interrupted error

	err := e.journal.Update(ctx, func(s *MergeSession) error {
		result.Session = s.ID

		if err := e.recordResolved(ctx, s, result); err != nil {
			interrupted = err
			return nil
		}

		unmerged, err := e.repo.UnmergedPaths(ctx)
		if err != nil {
			return fmt.Errorf("list unmerged paths: %w", err)
		}

		files, err := e.scanner.Scan(ctx, unmerged)
		for _, f := range files {
			rp := e.resolveFile(s, f)
			if rp.Replayed > 0 {
				result.Resolved = append(result.Resolved, rp)
			}
			if rp.Remaining > 0 {
				result.Pending = append(result.Pending, f.Path)
			} else if autoupdate {
				toStage = append(toStage, f.Path)
			}
		}
		if err != nil {
			interrupted = err
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	if interrupted != nil {
		return result, interrupted
	}

	if len(toStage) > 0 {
		if err := e.repo.Stage(ctx, toStage); err != nil {
			return result, fmt.Errorf("stage resolved paths: %w", err)
		}
		result.Staged = toStage
		for _, path := range toStage {
			e.logger.Info("staged resolved path", slog.String("path", path))
		}
	}

	return result, nil
}

// recordResolved records every tracked path whose working file is now free
// of conflict markers and drops it from the session.
func (e *Engine) recordResolved(ctx context.Context, s *MergeSession, result *RunResult) error {
	for _, path := range s.Paths() {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, _ := s.Entry(path)
		content, ok, err := e.readFile(path)
		if err != nil {
			e.logger.Warn("cannot read tracked path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		if !ok {
			e.logger.Debug("tracked path was removed", slog.String("path", path))
			s.Remove(path)
			continue
		}
		if !e.clean(content) {
			continue
		}

		stats, err := e.recordPair(path, entry.Snapshot, content, true)
		if err != nil {
			e.logger.Warn("not recording resolution",
				slog.String("path", path),
				slog.String("error", err.Error()))
			s.Remove(path)
			continue
		}
		if stats.Failed > 0 {
			// Retried on the next run.
			continue
		}

		if stats.Recorded > 0 {
			e.logger.Info("recorded resolution", slog.String("path", path))
		}
		result.Recorded = append(result.Recorded, path)
		s.Remove(path)
	}
	return nil
}

// resolveFile replays recorded resolutions into one conflicted file and
// tracks it in the session.
func (e *Engine) resolveFile(s *MergeSession, f *conflict.File) ResolvedPath {
	ids := e.gen.Assign(f.Hunks)
	rp := ResolvedPath{Path: f.Path, Remaining: len(f.Hunks)}

	entry, ok := s.Entry(f.Path)
	if !ok || !tracksAll(entry, ids) {
		entry = newPathEntry(f.Path, f.Content, ids, HunkPending)
		s.Put(entry)
	}

	replacements := make(map[int][]byte)
	for i, h := range f.Hunks {
		if out, ok := e.matchHunk(f.Path, ids[i], h); ok {
			replacements[i] = out
		}
	}
	if len(replacements) == 0 {
		return rp
	}

	content := conflict.Replace(f.Content, f.Hunks, replacements)
	if err := e.writeWorktreeFile(f.Path, content); err != nil {
		e.logger.Warn("cannot write resolved path",
			slog.String("path", f.Path),
			slog.String("error", err.Error()))
		return rp
	}

	for i := range replacements {
		entry.SetState(ids[i], HunkResolved)
		if err := e.store.Touch(ids[i]); err != nil {
			e.logger.Warn("cannot refresh record",
				slog.String("id", ids[i].String()),
				slog.String("error", err.Error()))
		}
	}

	rp.Replayed = len(replacements)
	rp.Remaining = len(f.Hunks) - len(replacements)
	e.logger.Info("resolved using previous resolution",
		slog.String("path", f.Path),
		slog.Int("hunks", rp.Replayed),
		slog.Int("remaining", rp.Remaining))
	return rp
}

func newPathEntry(path string, snapshot []byte, ids []fingerprint.Identity, state HunkState) *PathEntry {
	entry := &PathEntry{
		Path:     path,
		Snapshot: snapshot,
		Hunks:    make([]HunkEntry, len(ids)),
	}
	for i, id := range ids {
		entry.Hunks[i] = HunkEntry{ID: id, State: state}
	}
	return entry
}

// tracksAll reports whether every id belongs to the entry's snapshot, i.e.
// the file still shows the conflicts first recorded for it.
func tracksAll(entry *PathEntry, ids []fingerprint.Identity) bool {
	for _, id := range ids {
		if !entry.Has(id) {
			return false
		}
	}
	return true
}

// matchHunk looks up a hunk and returns its replayed resolution. Any doubt
// about the recorded resolution is no match.
func (e *Engine) matchHunk(path string, id fingerprint.Identity, h conflict.Hunk) ([]byte, bool) {
	log := e.logger.With(slog.String("path", path), slog.String("id", id.String()))

	rec, ok, err := e.store.Get(id)
	if err != nil {
		log.Warn("cannot read record", slog.String("error", err.Error()))
		return nil, false
	}

	normalized := e.gen.Normalize(h)
	if !ok {
		if _, err := e.store.PutPreimage(id, normalized); err != nil {
			log.Warn("cannot record preimage", slog.String("error", err.Error()))
		}
		return nil, false
	}
	if !rec.Resolved() {
		return nil, false
	}

	p := patch.Make(rec.Preimage, rec.Postimage)
	out, err := patch.Apply(p, normalized)
	if err != nil {
		log.Warn("recorded resolution does not apply", slog.String("error", err.Error()))
		log.Debug("rejected patch", slog.String("patch", p.String()))
		return nil, false
	}
	if !e.clean(out) {
		log.Warn("recorded resolution contains conflict markers")
		return nil, false
	}
	return out, true
}

// writeWorktreeFile atomically replaces a worktree file, keeping its mode.
func (e *Engine) writeWorktreeFile(path string, content []byte) error {
	perm := os.FileMode(0o644)
	info, err := e.worktree.Stat(path)
	switch {
	case err == nil:
		perm = info.Mode().Perm()
	case !errors.Is(err, os.ErrNotExist):
		return err
	}
	return storage.WriteFileAtomic(e.worktree, path, content, perm)
}
