package rerere

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adalundhe/rerere/core/conflict"
	"github.com/adalundhe/rerere/core/fingerprint"
)

// ErrUnaligned indicates a resolved file whose hunk boundaries could not be
// located unambiguously against the conflicted snapshot.
var ErrUnaligned = errors.New("cannot locate resolved hunks")

// recordStats counts per-hunk outcomes of recording one path.
type recordStats struct {
	Recorded  int
	Unchanged int
	Kept      int
	Failed    int
}

func (s *recordStats) add(o recordStats) {
	s.Recorded += o.Recorded
	s.Unchanged += o.Unchanged
	s.Kept += o.Kept
	s.Failed += o.Failed
}

// alignResolutions finds the resolution of each hunk in resolved, given the
// marker-free contexts around the hunks of the conflicted text. The first
// context must be a prefix and the last a suffix of resolved. Every middle
// context must be non-empty and occur exactly once, at a line start, in what
// remains between its neighbours.
func alignResolutions(contexts [][]byte, resolved []byte) ([][]byte, bool) {
	n := len(contexts) - 1
	if n < 1 {
		return nil, false
	}

	head, tail := contexts[0], contexts[n]
	if len(head)+len(tail) > len(resolved) {
		return nil, false
	}
	if !bytes.HasPrefix(resolved, head) || !bytes.HasSuffix(resolved, tail) {
		return nil, false
	}

	window := resolved[len(head) : len(resolved)-len(tail)]
	resolutions := make([][]byte, 0, n)

	for _, sep := range contexts[1:n] {
		if len(sep) == 0 {
			return nil, false
		}
		pos, ok := uniqueLineMatch(window, sep)
		if !ok {
			return nil, false
		}
		resolutions = append(resolutions, window[:pos])
		window = window[pos+len(sep):]
	}

	return append(resolutions, window), true
}

// uniqueLineMatch returns the offset of the only occurrence of needle in
// haystack that starts at a line start.
func uniqueLineMatch(haystack, needle []byte) (int, bool) {
	found := -1
	for off := 0; off+len(needle) <= len(haystack); {
		i := bytes.Index(haystack[off:], needle)
		if i < 0 {
			break
		}
		pos := off + i
		if pos == 0 || haystack[pos-1] == '\n' {
			if found >= 0 {
				return 0, false
			}
			found = pos
		}
		off = pos + 1
	}
	return found, found >= 0
}

// recordPair records the resolution of every hunk of conflicted, as found
// in resolved. Store failures for one hunk are logged and counted; the other
// hunks are still recorded. When overwrite is false an existing resolution
// that differs is kept.
func (e *Engine) recordPair(path string, conflicted, resolved []byte, overwrite bool) (recordStats, error) {
	file, err := e.scanner.ParseContent(path, conflicted)
	if err != nil {
		return recordStats{}, err
	}
	if len(file.Hunks) == 0 {
		return recordStats{}, nil
	}

	resolutions, ok := alignResolutions(conflict.Contexts(conflicted, file.Hunks), resolved)
	if !ok {
		return recordStats{}, fmt.Errorf("%s: %w", path, ErrUnaligned)
	}

	var stats recordStats
	ids := e.gen.Assign(file.Hunks)
	for i, h := range file.Hunks {
		outcome, err := e.recordHunk(ids[i], e.gen.Normalize(h), resolutions[i], overwrite)
		if err != nil {
			e.logger.Warn("failed to record resolution",
				slog.String("path", path),
				slog.String("id", ids[i].String()),
				slog.String("error", err.Error()))
		}
		stats.add(outcome)
	}

	return stats, nil
}

func (e *Engine) recordHunk(id fingerprint.Identity, pre, post []byte, overwrite bool) (recordStats, error) {
	if _, err := e.store.PutPreimage(id, pre); err != nil {
		return recordStats{Failed: 1}, err
	}

	rec, ok, err := e.store.Get(id)
	if err != nil {
		return recordStats{Failed: 1}, err
	}

	if ok && rec.Resolved() {
		if bytes.Equal(rec.Postimage, post) {
			if err := e.store.Touch(id); err != nil {
				return recordStats{Failed: 1}, err
			}
			return recordStats{Unchanged: 1}, nil
		}
		if !overwrite {
			return recordStats{Kept: 1}, nil
		}
	}

	if err := e.store.PutPostimage(id, post); err != nil {
		return recordStats{Failed: 1}, err
	}
	return recordStats{Recorded: 1}, nil
}
