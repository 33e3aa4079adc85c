package fingerprint

import (
	"testing"

	"github.com/adalundhe/rerere/core/conflict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, content string) conflict.Hunk {
	t.Helper()
	hunks, err := conflict.Parse([]byte(content), 0)
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	return hunks[0]
}

func TestGenerator_DeterministicAcrossLabels(t *testing.T) {
	g := NewGenerator(DefaultOptions())

	a := parseOne(t, "<<<<<<< HEAD\nA\n=======\nB\n>>>>>>> topic\n")
	b := parseOne(t, "before\n<<<<<<< main\nA\n=======\nB\n>>>>>>> feature~3\nafter\n")

	assert.Equal(t, g.Hash(a), g.Hash(b))
	assert.Equal(t, g.Normalize(a), g.Normalize(b))
	assert.True(t, ValidHash(g.Hash(a)))
}

func TestGenerator_Normalize(t *testing.T) {
	h := parseOne(t, "<<<<<<< HEAD\nZ\n||||||| base\nO\n=======\nA\n>>>>>>> topic\n")

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{
			name: "sorted without base",
			opts: DefaultOptions(),
			want: "<<<<<<<\nA\n=======\nZ\n>>>>>>>\n",
		},
		{
			name: "unsorted without base",
			opts: Options{},
			want: "<<<<<<<\nZ\n=======\nA\n>>>>>>>\n",
		},
		{
			name: "sorted with base",
			opts: Options{SortSides: true, IncludeBase: true},
			want: "<<<<<<<\nA\n|||||||\nO\n=======\nZ\n>>>>>>>\n",
		},
		{
			name: "custom marker size",
			opts: Options{SortSides: true, MarkerSize: 3},
			want: "<<<\nA\n===\nZ\n>>>\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(tt.opts)
			assert.Equal(t, tt.want, string(g.Normalize(h)))
		})
	}
}

func TestGenerator_SortSides(t *testing.T) {
	forward := parseOne(t, "<<<<<<<\nA\n=======\nB\n>>>>>>>\n")
	swapped := parseOne(t, "<<<<<<<\nB\n=======\nA\n>>>>>>>\n")

	sorted := NewGenerator(DefaultOptions())
	assert.Equal(t, sorted.Hash(forward), sorted.Hash(swapped))

	unsorted := NewGenerator(Options{SortSides: false})
	assert.NotEqual(t, unsorted.Hash(forward), unsorted.Hash(swapped))
}

func TestGenerator_IncludeBase(t *testing.T) {
	merge := parseOne(t, "<<<<<<<\nA\n=======\nB\n>>>>>>>\n")
	diff3 := parseOne(t, "<<<<<<<\nA\n|||||||\nO\n=======\nB\n>>>>>>>\n")

	ignoring := NewGenerator(DefaultOptions())
	assert.Equal(t, ignoring.Hash(merge), ignoring.Hash(diff3))

	including := NewGenerator(Options{SortSides: true, IncludeBase: true})
	assert.NotEqual(t, including.Hash(merge), including.Hash(diff3))
}

func TestGenerator_SideBoundaryIsUnambiguous(t *testing.T) {
	g := NewGenerator(Options{})

	a := conflict.Hunk{Ours: []byte("ab\n"), Theirs: []byte("c\n")}
	b := conflict.Hunk{Ours: []byte("a"), Theirs: []byte("b\nc\n")}
	assert.NotEqual(t, g.Hash(a), g.Hash(b))
}

func TestGenerator_AssignDisambiguatesRepeats(t *testing.T) {
	content := "<<<<<<<\nA\n=======\nB\n>>>>>>>\nx\n" +
		"<<<<<<<\nC\n=======\nD\n>>>>>>>\ny\n" +
		"<<<<<<<\nB\n=======\nA\n>>>>>>>\n"
	hunks, err := conflict.Parse([]byte(content), 0)
	require.NoError(t, err)
	require.Len(t, hunks, 3)

	g := NewGenerator(DefaultOptions())
	ids := g.Assign(hunks)

	require.Len(t, ids, 3)
	assert.Equal(t, ids[0].Hash, ids[2].Hash)
	assert.Equal(t, 0, ids[0].Occurrence)
	assert.Equal(t, 0, ids[1].Occurrence)
	assert.Equal(t, 1, ids[2].Occurrence)
	assert.NotEqual(t, ids[0].String(), ids[2].String())

	again := g.Assign(hunks)
	assert.Equal(t, ids, again)
}
