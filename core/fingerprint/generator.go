package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/adalundhe/rerere/core/conflict"
)

// Options controls normalization. Both switches change identities, so all
// processes sharing a cache must agree on them.
type Options struct {
	// SortSides orders ours/theirs bytewise so that swapping the branches
	// being merged leaves the identity unchanged.
	SortSides bool

	// IncludeBase lets the diff3 base section participate in the identity.
	// When false, merge-style and diff3-style renderings of one conflict share
	// an identity.
	IncludeBase bool

	// MarkerSize is the marker length written into normalized text.
	MarkerSize int
}

// DefaultOptions matches git's conflict normalization.
func DefaultOptions() Options {
	return Options{
		SortSides:   true,
		IncludeBase: false,
		MarkerSize:  conflict.DefaultMarkerSize,
	}
}

// Generator computes normalized text and identities for hunks.
type Generator struct {
	opts Options
}

// NewGenerator creates a Generator.
func NewGenerator(opts Options) *Generator {
	if opts.MarkerSize <= 0 {
		opts.MarkerSize = conflict.DefaultMarkerSize
	}
	return &Generator{opts: opts}
}

// Options returns the normalization options in effect.
func (g *Generator) Options() Options {
	return g.opts
}

// sides returns the two variants in canonical order and the base, which is
// nil unless it participates.
func (g *Generator) sides(h conflict.Hunk) (first, second, base []byte) {
	first, second = h.Ours, h.Theirs
	if g.opts.SortSides && bytes.Compare(first, second) > 0 {
		first, second = second, first
	}
	if g.opts.IncludeBase && h.HasBase {
		base = h.Base
	}
	return first, second, base
}

// Normalize renders the hunk as label-free conflict text in canonical order.
// This is the preimage stored for the hunk.
func (g *Generator) Normalize(h conflict.Hunk) []byte {
	first, second, base := g.sides(h)

	var buf bytes.Buffer
	buf.Grow(len(first) + len(second) + len(base) + 4*(g.opts.MarkerSize+1))

	writeMarker(&buf, '<', g.opts.MarkerSize)
	buf.Write(first)
	if base != nil {
		writeMarker(&buf, '|', g.opts.MarkerSize)
		buf.Write(base)
	}
	writeMarker(&buf, '=', g.opts.MarkerSize)
	buf.Write(second)
	writeMarker(&buf, '>', g.opts.MarkerSize)

	return buf.Bytes()
}

func writeMarker(buf *bytes.Buffer, ch byte, size int) {
	for range size {
		buf.WriteByte(ch)
	}
	buf.WriteByte('\n')
}

// Hash returns the hex content hash of the hunk's normalized sides.
func (g *Generator) Hash(h conflict.Hunk) string {
	first, second, base := g.sides(h)

	sum := sha256.New()
	sum.Write(first)
	sum.Write([]byte{0})
	if base != nil {
		sum.Write(base)
		sum.Write([]byte{0})
	}
	sum.Write(second)
	sum.Write([]byte{0})

	return hex.EncodeToString(sum.Sum(nil))
}

// Assign computes identities for the hunks of one file. The n-th repeat of a
// hash within hunks gets occurrence n-1; the counter starts fresh on every
// call.
func (g *Generator) Assign(hunks []conflict.Hunk) []Identity {
	seen := make(map[string]int, len(hunks))
	ids := make([]Identity, len(hunks))

	for i, h := range hunks {
		hash := g.Hash(h)
		ids[i] = Identity{Hash: hash, Occurrence: seen[hash]}
		seen[hash]++
	}

	return ids
}
