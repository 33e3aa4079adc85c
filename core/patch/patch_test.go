package patch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int, edit map[int]string) string {
	var sb strings.Builder
	for i := range n {
		if text, ok := edit[i]; ok {
			sb.WriteString(text)
			continue
		}
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	return sb.String()
}

func TestMakeApply_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pre  string
		post string
	}{
		{
			name: "take one side",
			pre:  "<<<<<<<\nA\n=======\nB\n>>>>>>>\n",
			post: "A\n",
		},
		{
			name: "combine sides",
			pre:  "<<<<<<<\nA\n=======\nB\n>>>>>>>\n",
			post: "A\nB\n",
		},
		{
			name: "resolve to nothing",
			pre:  "<<<<<<<\nA\n=======\nB\n>>>>>>>\n",
			post: "",
		},
		{
			name: "from empty",
			pre:  "",
			post: "added\n",
		},
		{
			name: "no trailing newline",
			pre:  "<<<<<<<\nA\n=======\nB\n>>>>>>>\ntail",
			post: "merged\ntail",
		},
		{
			name: "far apart edits",
			pre:  numbered(30, nil),
			post: numbered(30, map[int]string{1: "one\n", 20: "twenty\n"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Make([]byte(tt.pre), []byte(tt.post))

			out, err := Apply(p, []byte(tt.pre))
			require.NoError(t, err)
			assert.Equal(t, tt.post, string(out))
		})
	}
}

func TestMake_IdenticalIsEmpty(t *testing.T) {
	text := []byte("same\ntext\n")
	p := Make(text, text)
	assert.True(t, p.Empty())

	out, err := Apply(p, text)
	require.NoError(t, err)
	assert.Equal(t, text, out)
}

func TestMake_HunkGrouping(t *testing.T) {
	far := Make([]byte(numbered(30, nil)), []byte(numbered(30, map[int]string{1: "x\n", 20: "y\n"})))
	require.Len(t, far.Hunks, 2)
	assert.Equal(t, 0, far.Hunks[0].OldStart)
	assert.Equal(t, 5, far.Hunks[0].OldLines)
	assert.Equal(t, 17, far.Hunks[1].OldStart)

	near := Make([]byte(numbered(30, nil)), []byte(numbered(30, map[int]string{1: "x\n", 5: "y\n"})))
	assert.Len(t, near.Hunks, 1)

	assert.True(t, strings.HasPrefix(far.String(), "@@ -1,5 +1,5 @@\n line 0\n-line 1\n+x\n"))
}

func TestApply_Strict(t *testing.T) {
	pre := "<<<<<<<\nA\n=======\nB\n>>>>>>>\n"
	p := Make([]byte(pre), []byte("A\n"))

	tests := []struct {
		name string
		text string
	}{
		{name: "changed deleted line", text: "<<<<<<<\nA\n=======\nC\n>>>>>>>\n"},
		{name: "context shifted", text: "x\n<<<<<<<\nA\n=======\nB\n>>>>>>>\n"},
		{name: "shorter text", text: "<<<<<<<\nA\n"},
		{name: "empty text", text: ""},
		{name: "line ending changed", text: "<<<<<<<\r\nA\n=======\nB\n>>>>>>>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply(p, []byte(tt.text))
			assert.ErrorIs(t, err, ErrApplyFailed)
			assert.Nil(t, out)
		})
	}
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(nil))
	assert.Equal(t, []string{"a\n", "b"}, splitLines([]byte("a\nb")))
	assert.Equal(t, []string{"a\r\n", "\n"}, splitLines([]byte("a\r\n\n")))
}
