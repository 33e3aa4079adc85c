// Package conflict locates merge conflict regions in working-tree files.
// A region is bounded by conflict markers and holds the unmerged variants of
// the same text: ours, theirs, and for diff3-style conflicts the common base.
package conflict

import (
	"bytes"
	"errors"
	"fmt"
)

// DefaultMarkerSize is the length of a conflict marker run, as git writes it.
const DefaultMarkerSize = 7

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNestedHunk indicates a begin marker inside an open conflict region.
	ErrNestedHunk = errors.New("nested conflict begin marker")

	// ErrUnterminatedHunk indicates a conflict region still open at end of file.
	ErrUnterminatedHunk = errors.New("unterminated conflict region")

	// ErrUnexpectedMarker indicates a marker that is invalid in the current section.
	ErrUnexpectedMarker = errors.New("unexpected conflict marker")
)

// ScanError reports a path whose conflict markers could not be parsed.
type ScanError struct {
	Path string
	Line int
	Err  error
}

func (e *ScanError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("scan %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Hunk
// =============================================================================

// Hunk is one conflict region within a file.
type Hunk struct {
	// Start and End are the byte offsets of the region, markers included.
	Start int
	End   int

	// Ours, Base and Theirs hold the lines of each section, terminators kept.
	Ours   []byte
	Base   []byte
	Theirs []byte

	// HasBase is set for diff3-style regions carrying a base section.
	HasBase bool

	// Labels are the text following each marker, e.g. "HEAD".
	OursLabel   string
	BaseLabel   string
	TheirsLabel string

	// Line is the 1-based line of the begin marker.
	Line int
}

// Contexts returns the marker-free segments around hunks: the text before the
// first hunk, between each pair, and after the last. It always has
// len(hunks)+1 elements.
func Contexts(content []byte, hunks []Hunk) [][]byte {
	segments := make([][]byte, 0, len(hunks)+1)
	prev := 0
	for _, h := range hunks {
		segments = append(segments, content[prev:h.Start])
		prev = h.End
	}
	return append(segments, content[prev:])
}

// Replace returns content with the regions of the given hunks substituted.
// The replacements map is keyed by hunk index; hunks without an entry keep
// their markers.
func Replace(content []byte, hunks []Hunk, replacements map[int][]byte) []byte {
	var out bytes.Buffer
	out.Grow(len(content))

	prev := 0
	for i, h := range hunks {
		text, ok := replacements[i]
		if !ok {
			continue
		}
		out.Write(content[prev:h.Start])
		out.Write(text)
		prev = h.End
	}
	out.Write(content[prev:])
	return out.Bytes()
}
