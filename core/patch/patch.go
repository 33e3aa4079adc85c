// Package patch builds line patches between a recorded preimage and its
// resolution, and applies them strictly: every context and deleted line must
// match at the exact recorded position. There is no fuzz and no offset search,
// so a patch either reproduces the recorded transformation or fails.
package patch

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultContextLines is the number of unchanged lines kept around each change.
const DefaultContextLines = 3

// ErrApplyFailed indicates the target text does not match the patch.
var ErrApplyFailed = errors.New("patch does not apply")

// Line is one line of a patch hunk, terminator included.
type Line struct {
	Op   Op
	Text string
}

// Hunk is a contiguous group of changes with surrounding context.
// OldStart and NewStart are 0-based line indexes.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Patch transforms one text into another.
type Patch struct {
	// OldLines is the line count of the text the patch was made against.
	OldLines int
	Hunks    []Hunk
}

// Empty reports whether the patch changes nothing.
func (p *Patch) Empty() bool {
	return len(p.Hunks) == 0
}

// String renders the patch in unified hunk notation (1-based headers).
func (p *Patch) String() string {
	var sb strings.Builder
	for _, h := range p.Hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.OldStart+1, h.OldLines, h.NewStart+1, h.NewLines)
		for _, l := range h.Lines {
			sb.WriteByte(byte(l.Op))
			sb.WriteString(l.Text)
			if !strings.HasSuffix(l.Text, "\n") {
				sb.WriteString("\n\\ No newline at end of file\n")
			}
		}
	}
	return sb.String()
}

// Differ computes patches with a configurable amount of context.
type Differ struct {
	ContextLines int
}

// NewDiffer creates a Differ. A negative contextLines uses the default.
func NewDiffer(contextLines int) *Differ {
	if contextLines < 0 {
		contextLines = DefaultContextLines
	}
	return &Differ{ContextLines: contextLines}
}

// Make returns the patch turning pre into post with default context.
func Make(pre, post []byte) *Patch {
	return NewDiffer(DefaultContextLines).Make(pre, post)
}

// Make returns the patch turning pre into post.
func (d *Differ) Make(pre, post []byte) *Patch {
	base := splitLines(pre)
	target := splitLines(post)
	ops := editScript(base, target)

	return &Patch{
		OldLines: len(base),
		Hunks:    d.buildHunks(ops, base, target),
	}
}

func (d *Differ) buildHunks(ops []editOp, base, target []string) []Hunk {
	ranges := d.changeRanges(ops)
	hunks := make([]Hunk, 0, len(ranges))

	for _, r := range ranges {
		hunks = append(hunks, d.createHunk(r[0], r[1], ops, base, target))
	}
	return hunks
}

// changeRanges returns [start,end) op ranges holding changes, merging ranges
// whose context windows would overlap or touch.
func (d *Differ) changeRanges(ops []editOp) [][2]int {
	var ranges [][2]int
	start := -1

	for i, op := range ops {
		if op.op == OpContext {
			if start >= 0 {
				ranges = append(ranges, [2]int{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		ranges = append(ranges, [2]int{start, len(ops)})
	}

	if len(ranges) < 2 {
		return ranges
	}

	merged := [][2]int{ranges[0]}
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r[0]-last[1] <= 2*d.ContextLines {
			last[1] = r[1]
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func (d *Differ) createHunk(start, end int, ops []editOp, base, target []string) Hunk {
	from := max(start-d.ContextLines, 0)
	to := min(end+d.ContextLines, len(ops))

	var h Hunk
	for i := range from {
		if ops[i].op != OpAdd {
			h.OldStart++
		}
		if ops[i].op != OpDelete {
			h.NewStart++
		}
	}

	h.Lines = make([]Line, 0, to-from)
	for _, op := range ops[from:to] {
		switch op.op {
		case OpContext:
			h.Lines = append(h.Lines, Line{Op: OpContext, Text: base[op.oldIndex]})
			h.OldLines++
			h.NewLines++
		case OpDelete:
			h.Lines = append(h.Lines, Line{Op: OpDelete, Text: base[op.oldIndex]})
			h.OldLines++
		case OpAdd:
			h.Lines = append(h.Lines, Line{Op: OpAdd, Text: target[op.newIndex]})
			h.NewLines++
		}
	}
	return h
}

// Apply applies p to text. Text must have the line count the patch was made
// against, and every context and deleted line must match exactly at its
// recorded position; otherwise an error wrapping ErrApplyFailed is returned
// and text is not used.
func Apply(p *Patch, text []byte) ([]byte, error) {
	lines := splitLines(text)
	if len(lines) != p.OldLines {
		return nil, fmt.Errorf("%w: expected %d lines, got %d", ErrApplyFailed, p.OldLines, len(lines))
	}

	var out strings.Builder
	out.Grow(len(text))

	cursor := 0
	for i, h := range p.Hunks {
		if h.OldStart < cursor || h.OldStart+h.OldLines > len(lines) {
			return nil, fmt.Errorf("%w: hunk %d out of range", ErrApplyFailed, i+1)
		}
		for _, l := range lines[cursor:h.OldStart] {
			out.WriteString(l)
		}
		cursor = h.OldStart

		for _, l := range h.Lines {
			switch l.Op {
			case OpAdd:
				out.WriteString(l.Text)
			case OpContext, OpDelete:
				if cursor >= len(lines) || lines[cursor] != l.Text {
					return nil, fmt.Errorf("%w: hunk %d mismatch at line %d", ErrApplyFailed, i+1, cursor+1)
				}
				if l.Op == OpContext {
					out.WriteString(l.Text)
				}
				cursor++
			}
		}
	}

	for _, l := range lines[cursor:] {
		out.WriteString(l)
	}
	return []byte(out.String()), nil
}
