package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"rfgrep/internal/scanner"
)

func TestPrinter_SortedWithContext(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	p := newPrinter(&buf, true)
	p.add(scanner.SearchMatch{Path: "b.txt", LineNumber: 1, Range: scanner.ByteRange{Start: 0, End: 3}, Line: "foo"})
	p.add(scanner.SearchMatch{
		Path: "a.txt", LineNumber: 2, Range: scanner.ByteRange{Start: 4, End: 7}, Line: "bar foo",
		ContextBefore: []scanner.ContextLine{{Number: 1, Text: "x"}},
	})
	assert.Empty(t, buf.String())

	p.flush()
	assert.Equal(t, "a.txt-1-x\na.txt:2:5:bar foo\n--\nb.txt:1:1:foo\n", buf.String())
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, scanner.ScanReport{
		FilesVisited:  1200,
		FilesSearched: 1000,
		TotalMatches:  3,
		BytesScanned:  2048,
		Skipped:       scanner.SkipCounts{Binary: 2},
		Truncated:     true,
	})
	out := buf.String()
	assert.Contains(t, out, "Files searched: 1,000 of 1,200 visited")
	assert.Contains(t, out, "Bytes scanned: 2.0 kB")
	assert.Contains(t, out, "binary=2")
	assert.Contains(t, out, "--max-count")
}
