package rerere

import (
	"fmt"
	"slices"

	"github.com/adalundhe/rerere/core/fingerprint"
)

// HunkState is the session state of one conflict hunk.
type HunkState int

const (
	// HunkPending is a hunk with no resolution applied or recorded yet.
	HunkPending HunkState = iota
	// HunkResolved is a hunk resolved by replaying a recorded resolution.
	HunkResolved
	// HunkForgotten is a hunk whose record was deleted by forget; the next
	// resolution of it is recorded afresh.
	HunkForgotten
)

var hunkStateNames = map[HunkState]string{
	HunkPending:   "pending",
	HunkResolved:  "resolved",
	HunkForgotten: "forgotten",
}

func (s HunkState) String() string {
	if name, ok := hunkStateNames[s]; ok {
		return name
	}
	return "unknown"
}

func parseHunkState(s string) (HunkState, error) {
	for state, name := range hunkStateNames {
		if name == s {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown hunk state %q", s)
}

// HunkEntry is one hunk of a tracked path.
type HunkEntry struct {
	ID    fingerprint.Identity
	State HunkState
}

// PathEntry is a tracked path: its content when first seen conflicted and
// the identities of the hunks in that content.
type PathEntry struct {
	Path     string
	Snapshot []byte
	Hunks    []HunkEntry
}

// SetState updates every hunk with identity id.
func (p *PathEntry) SetState(id fingerprint.Identity, state HunkState) {
	for i := range p.Hunks {
		if p.Hunks[i].ID == id {
			p.Hunks[i].State = state
		}
	}
}

// Has reports whether the entry tracks identity id.
func (p *PathEntry) Has(id fingerprint.Identity) bool {
	return slices.ContainsFunc(p.Hunks, func(h HunkEntry) bool { return h.ID == id })
}

// MergeSession is the set of paths tracked for the merge in progress, in the
// order they were first seen. It is loaded from the journal for one
// operation and written back when the operation changes it.
type MergeSession struct {
	ID      string
	order   []string
	entries map[string]*PathEntry
}

func newMergeSession(id string) *MergeSession {
	return &MergeSession{
		ID:      id,
		entries: make(map[string]*PathEntry),
	}
}

// Len returns the number of tracked paths.
func (s *MergeSession) Len() int {
	return len(s.order)
}

// Paths returns the tracked paths in first-seen order.
func (s *MergeSession) Paths() []string {
	return slices.Clone(s.order)
}

// Entry returns the entry for path.
func (s *MergeSession) Entry(path string) (*PathEntry, bool) {
	e, ok := s.entries[path]
	return e, ok
}

// Put adds or replaces the entry for its path.
func (s *MergeSession) Put(entry *PathEntry) {
	if _, ok := s.entries[entry.Path]; !ok {
		s.order = append(s.order, entry.Path)
	}
	s.entries[entry.Path] = entry
}

// Remove stops tracking path.
func (s *MergeSession) Remove(path string) {
	if _, ok := s.entries[path]; !ok {
		return
	}
	delete(s.entries, path)
	s.order = slices.DeleteFunc(s.order, func(p string) bool { return p == path })
}

// Identities returns every identity referenced by the session.
func (s *MergeSession) Identities() map[fingerprint.Identity]struct{} {
	ids := make(map[fingerprint.Identity]struct{})
	for _, e := range s.entries {
		for _, h := range e.Hunks {
			ids[h.ID] = struct{}{}
		}
	}
	return ids
}
