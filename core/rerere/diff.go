package rerere

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/adalundhe/rerere/core/conflict"
)

const diffContextLines = 3

// PathDiff is the unified diff between a path's recorded preimage and its
// current content.
type PathDiff struct {
	Path string
	Diff string
}

// DiffPath rebuilds the conflicted content of path from the session
// snapshot and the stored preimages, and diffs it against the working file.
func (e *Engine) DiffPath(ctx context.Context, path string) (*PathDiff, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session, err := e.journal.Read()
	if err != nil {
		return nil, err
	}
	entry, ok := session.Entry(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotInSession)
	}

	return e.diffEntry(entry)
}

// Diff returns the diff of every session path. A path that cannot be
// diffed is reported in the joined error and the others are still returned.
func (e *Engine) Diff(ctx context.Context) ([]PathDiff, error) {
	session, err := e.journal.Read()
	if err != nil {
		return nil, err
	}

	var diffs []PathDiff
	var errs []error
	for _, path := range session.Paths() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		entry, _ := session.Entry(path)
		d, err := e.diffEntry(entry)
		if err != nil {
			e.logger.Warn("cannot diff path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		diffs = append(diffs, *d)
	}
	return diffs, errors.Join(errs...)
}

func (e *Engine) diffEntry(entry *PathEntry) (*PathDiff, error) {
	preimage, err := e.rebuildPreimage(entry)
	if err != nil {
		return nil, err
	}

	// A deleted file diffs against empty content.
	current, _, err := e.readFile(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Path, err)
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(preimage)),
		B:        difflib.SplitLines(string(current)),
		FromFile: "a/" + entry.Path,
		ToFile:   "b/" + entry.Path,
		Context:  diffContextLines,
	})
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", entry.Path, err)
	}

	return &PathDiff{Path: entry.Path, Diff: text}, nil
}

// rebuildPreimage returns the snapshot with every hunk replaced by its stored,
// normalized preimage.
func (e *Engine) rebuildPreimage(entry *PathEntry) ([]byte, error) {
	file, err := e.scanner.ParseContent(entry.Path, entry.Snapshot)
	if err != nil {
		return nil, err
	}

	ids := e.gen.Assign(file.Hunks)
	replacements := make(map[int][]byte, len(file.Hunks))
	for i, id := range ids {
		rec, ok, err := e.store.Get(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w for %s (%s)", ErrNoPreimage, entry.Path, id)
		}
		replacements[i] = rec.Preimage
	}

	return conflict.Replace(entry.Snapshot, file.Hunks, replacements), nil
}
