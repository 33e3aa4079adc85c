package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SingleHunk(t *testing.T) {
	content := []byte("pre\n<<<<<<< ours\nA\n=======\nB\n>>>>>>> theirs\npost\n")

	hunks, err := Parse(content, 0)
	require.NoError(t, err)
	require.Len(t, hunks, 1)

	h := hunks[0]
	assert.Equal(t, "A\n", string(h.Ours))
	assert.Equal(t, "B\n", string(h.Theirs))
	assert.False(t, h.HasBase)
	assert.Equal(t, "ours", h.OursLabel)
	assert.Equal(t, "theirs", h.TheirsLabel)
	assert.Equal(t, 2, h.Line)
	assert.Equal(t, "<<<<<<< ours\nA\n=======\nB\n>>>>>>> theirs\n", string(content[h.Start:h.End]))
}

func TestParse_Diff3Style(t *testing.T) {
	content := []byte("<<<<<<< HEAD\nA\n||||||| base\nO\n=======\nB\n>>>>>>> topic\n")

	hunks, err := Parse(content, 0)
	require.NoError(t, err)
	require.Len(t, hunks, 1)

	assert.True(t, hunks[0].HasBase)
	assert.Equal(t, "O\n", string(hunks[0].Base))
	assert.Equal(t, "base", hunks[0].BaseLabel)
	assert.Equal(t, 0, hunks[0].Start)
	assert.Equal(t, len(content), hunks[0].End)
}

func TestParse_MultipleHunksInOrder(t *testing.T) {
	content := []byte("x\n<<<<<<<\n1\n=======\n2\n>>>>>>>\ny\n<<<<<<<\n3\n=======\n4\n>>>>>>>\n")

	hunks, err := Parse(content, 0)
	require.NoError(t, err)
	require.Len(t, hunks, 2)

	assert.Equal(t, "1\n", string(hunks[0].Ours))
	assert.Equal(t, "3\n", string(hunks[1].Ours))
	assert.Less(t, hunks[0].End, hunks[1].Start)
}

func TestParse_EmptySides(t *testing.T) {
	content := []byte("<<<<<<<\n=======\nB\n>>>>>>>\n")

	hunks, err := Parse(content, 0)
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	assert.Empty(t, hunks[0].Ours)
	assert.Equal(t, "B\n", string(hunks[0].Theirs))
}

func TestParse_CRLF(t *testing.T) {
	content := []byte("<<<<<<< a\r\nA\r\n=======\r\nB\r\n>>>>>>> b\r\n")

	hunks, err := Parse(content, 0)
	require.NoError(t, err)
	require.Len(t, hunks, 1)
	assert.Equal(t, "A\r\n", string(hunks[0].Ours))
	assert.Equal(t, "a", hunks[0].OursLabel)
}

func TestParse_MarkerLikeTextIsNotAMarker(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "separator outside hunk", content: "title\n=======\nbody\n"},
		{name: "end marker outside hunk", content: ">>>>>>> stray\n"},
		{name: "long marker run", content: "<<<<<<<<\nx\n"},
		{name: "marker glued to text", content: "<<<<<<<x\n"},
		{name: "no markers", content: "plain\ntext\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hunks, err := Parse([]byte(tt.content), 0)
			require.NoError(t, err)
			assert.Empty(t, hunks)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
		line    int
	}{
		{
			name:    "unterminated",
			content: "a\n<<<<<<<\nA\n=======\nB\n",
			want:    ErrUnterminatedHunk,
			line:    2,
		},
		{
			name:    "nested begin",
			content: "<<<<<<<\n<<<<<<<\n",
			want:    ErrNestedHunk,
			line:    2,
		},
		{
			name:    "end before separator",
			content: "<<<<<<<\nA\n>>>>>>>\n",
			want:    ErrUnexpectedMarker,
			line:    3,
		},
		{
			name:    "second separator",
			content: "<<<<<<<\nA\n=======\nB\n=======\n>>>>>>>\n",
			want:    ErrUnexpectedMarker,
			line:    5,
		},
		{
			name:    "base after separator",
			content: "<<<<<<<\nA\n=======\n|||||||\n>>>>>>>\n",
			want:    ErrUnexpectedMarker,
			line:    4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), 0)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var scanErr *ScanError
			require.ErrorAs(t, err, &scanErr)
			assert.Equal(t, tt.line, scanErr.Line)
		})
	}
}

func TestParse_CustomMarkerSize(t *testing.T) {
	content := []byte("<<<<\nA\n====\nB\n>>>>\n")

	hunks, err := Parse(content, 4)
	require.NoError(t, err)
	assert.Len(t, hunks, 1)

	hunks, err = Parse(content, 0)
	require.NoError(t, err)
	assert.Empty(t, hunks)
}

func TestContextsAndReplace(t *testing.T) {
	content := []byte("head\n<<<<<<<\n1\n=======\n2\n>>>>>>>\nmid\n<<<<<<<\n3\n=======\n4\n>>>>>>>\n")

	hunks, err := Parse(content, 0)
	require.NoError(t, err)

	contexts := Contexts(content, hunks)
	require.Len(t, contexts, 3)
	assert.Equal(t, "head\n", string(contexts[0]))
	assert.Equal(t, "mid\n", string(contexts[1]))
	assert.Empty(t, contexts[2])

	out := Replace(content, hunks, map[int][]byte{1: []byte("34\n")})
	assert.Equal(t, "head\n<<<<<<<\n1\n=======\n2\n>>>>>>>\nmid\n34\n", string(out))

	out = Replace(content, hunks, map[int][]byte{0: []byte("12\n"), 1: []byte("34\n")})
	assert.Equal(t, "head\n12\nmid\n34\n", string(out))
	left, err := Parse(out, 0)
	require.NoError(t, err)
	assert.Empty(t, left)
}
