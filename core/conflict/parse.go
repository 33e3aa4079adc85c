package conflict

import (
	"bytes"
	"strings"
)

type section int

const (
	sectionContext section = iota
	sectionOurs
	sectionBase
	sectionTheirs
)

type hunkBuilder struct {
	hunk        Hunk
	sectionFrom int
}

// Parse returns the conflict regions of content in file order.
// markerSize <= 0 selects DefaultMarkerSize. The returned error is a
// *ScanError without a path; callers fill it in.
func Parse(content []byte, markerSize int) ([]Hunk, error) {
	if markerSize <= 0 {
		markerSize = DefaultMarkerSize
	}

	var (
		hunks   []Hunk
		current *hunkBuilder
		state   = sectionContext
		lineNo  = 0
	)

	offset := 0
	for offset < len(content) {
		line := nextLine(content, offset)
		lineNo++
		lineEnd := offset + len(line)

		marker, label := classifyLine(line, markerSize)

		switch state {
		case sectionContext:
			if marker == '<' {
				current = &hunkBuilder{
					hunk:        Hunk{Start: offset, Line: lineNo, OursLabel: label},
					sectionFrom: lineEnd,
				}
				state = sectionOurs
			}

		case sectionOurs:
			switch marker {
			case '<':
				return nil, &ScanError{Line: lineNo, Err: ErrNestedHunk}
			case '|':
				current.hunk.Ours = content[current.sectionFrom:offset]
				current.hunk.HasBase = true
				current.hunk.BaseLabel = label
				current.sectionFrom = lineEnd
				state = sectionBase
			case '=':
				current.hunk.Ours = content[current.sectionFrom:offset]
				current.sectionFrom = lineEnd
				state = sectionTheirs
			case '>':
				return nil, &ScanError{Line: lineNo, Err: ErrUnexpectedMarker}
			}

		case sectionBase:
			switch marker {
			case '<':
				return nil, &ScanError{Line: lineNo, Err: ErrNestedHunk}
			case '=':
				current.hunk.Base = content[current.sectionFrom:offset]
				current.sectionFrom = lineEnd
				state = sectionTheirs
			case '|', '>':
				return nil, &ScanError{Line: lineNo, Err: ErrUnexpectedMarker}
			}

		case sectionTheirs:
			switch marker {
			case '<':
				return nil, &ScanError{Line: lineNo, Err: ErrNestedHunk}
			case '>':
				current.hunk.Theirs = content[current.sectionFrom:offset]
				current.hunk.TheirsLabel = label
				current.hunk.End = lineEnd
				hunks = append(hunks, current.hunk)
				current = nil
				state = sectionContext
			case '|', '=':
				return nil, &ScanError{Line: lineNo, Err: ErrUnexpectedMarker}
			}
		}

		offset = lineEnd
	}

	if state != sectionContext {
		return nil, &ScanError{Line: current.hunk.Line, Err: ErrUnterminatedHunk}
	}
	return hunks, nil
}

// nextLine returns the line starting at offset, terminator included.
func nextLine(content []byte, offset int) []byte {
	if idx := bytes.IndexByte(content[offset:], '\n'); idx >= 0 {
		return content[offset : offset+idx+1]
	}
	return content[offset:]
}

// classifyLine returns the marker character of a marker line, or 0, and the
// label following the marker with surrounding whitespace trimmed.
func classifyLine(line []byte, markerSize int) (byte, string) {
	if len(line) < markerSize {
		return 0, ""
	}

	ch := line[0]
	if ch != '<' && ch != '|' && ch != '=' && ch != '>' {
		return 0, ""
	}
	for i := 1; i < markerSize; i++ {
		if line[i] != ch {
			return 0, ""
		}
	}

	rest := line[markerSize:]
	if len(rest) > 0 {
		switch rest[0] {
		case ' ', '\t', '\r', '\n':
		default:
			return 0, ""
		}
	}

	// A separator carries no label; anything after it is not a marker line.
	label := strings.TrimSpace(string(rest))
	if ch == '=' && label != "" {
		return 0, ""
	}
	return ch, label
}
