package internal

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfgrep/internal/scanner"
)

func TestLineIndex(t *testing.T) {
	tests := []struct {
		data  string
		lines []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\n\nb", []string{"a", "", "b"}},
		{"a\r\nb\r\n", []string{"a", "b"}},
		{"\n", []string{""}},
	}
	for _, tt := range tests {
		idx := NewLineIndex([]byte(tt.data))
		require.Equal(t, len(tt.lines), idx.Count(), "%q", tt.data)
		for i, want := range tt.lines {
			assert.Equal(t, want, string(idx.Line(i+1)), "%q line %d", tt.data, i+1)
		}
	}
}

func TestLineIndex_Offset(t *testing.T) {
	idx := NewLineIndex([]byte("foo\nbar foo\nbaz"))
	assert.Equal(t, 0, idx.Offset(1))
	assert.Equal(t, 4, idx.Offset(2))
	assert.Equal(t, 12, idx.Offset(3))

	m := NewExtractor(idx, 0, "f", "").Extract(2, scanner.ByteRange{Start: 4, End: 7}, false)
	assert.Equal(t, 8, m.Offset)
}

func TestExtractor_ConvertsLineOnce(t *testing.T) {
	idx := NewLineIndex([]byte("x\nfoo foo foo\ny\n"))
	ex := NewExtractor(idx, 1, "f", "")

	a := ex.Extract(2, scanner.ByteRange{Start: 0, End: 3}, false)
	b := ex.Extract(2, scanner.ByteRange{Start: 8, End: 11}, false)
	assert.Same(t, unsafe.StringData(a.Line), unsafe.StringData(b.Line))
	assert.Same(t, unsafe.StringData(a.ContextBefore[0].Text), unsafe.StringData(b.ContextBefore[0].Text))
	assert.Same(t, unsafe.StringData(a.ContextAfter[0].Text), unsafe.StringData(b.ContextAfter[0].Text))
	assert.Equal(t, "foo", b.MatchedText)

	plain := NewExtractor(idx, 0, "f", "")
	allocs := testing.AllocsPerRun(100, func() {
		plain.Extract(2, scanner.ByteRange{Start: 4, End: 7}, false)
	})
	assert.Zero(t, allocs)
}

func TestExtractor_ContextClipped(t *testing.T) {
	idx := NewLineIndex([]byte("l1\nl2\nl3\nl4\nl5\n"))
	ex := NewExtractor(idx, 2, "f.txt", "")

	first := ex.Extract(1, scanner.ByteRange{Start: 0, End: 2}, false)
	assert.Empty(t, first.ContextBefore)
	assert.Equal(t, []scanner.ContextLine{{Number: 2, Text: "l2"}, {Number: 3, Text: "l3"}}, first.ContextAfter)
	assert.Equal(t, "l1", first.MatchedText)

	mid := ex.Extract(3, scanner.ByteRange{Start: 1, End: 2}, false)
	assert.Len(t, mid.ContextBefore, 2)
	assert.Len(t, mid.ContextAfter, 2)
	assert.Equal(t, "3", mid.MatchedText)

	last := ex.Extract(5, scanner.ByteRange{Start: 0, End: 0}, false)
	assert.Equal(t, []scanner.ContextLine{{Number: 3, Text: "l3"}, {Number: 4, Text: "l4"}}, last.ContextBefore)
	assert.Empty(t, last.ContextAfter)
	assert.Equal(t, "", last.MatchedText)

	// more context than the file has
	wide := NewExtractor(idx, 10, "f.txt", "").Extract(2, scanner.ByteRange{Start: 0, End: 1}, false)
	assert.Len(t, wide.ContextBefore, 1)
	assert.Len(t, wide.ContextAfter, 3)
}

func TestExtractor_NoContext(t *testing.T) {
	idx := NewLineIndex([]byte("only\n"))
	m := NewExtractor(idx, 0, "a", "in.txt").Extract(1, scanner.ByteRange{Start: 0, End: 4}, true)
	assert.Nil(t, m.ContextBefore)
	assert.Nil(t, m.ContextAfter)
	assert.True(t, m.Inverted)
	assert.Equal(t, "a!in.txt", m.DisplayPath())
}
