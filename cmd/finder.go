package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"rfgrep/internal"
	"rfgrep/internal/scanner"
)

const maxPrintedFailures = 20

// printer writes matches grep style: "path:line:col:text" for hits and
// "path-line-text" for context. With sorted it buffers until flush. With
// offsets the absolute byte offset follows the column.
type printer struct {
	w       *bufio.Writer
	sorted  bool
	offsets bool
	buf     []scanner.SearchMatch

	path, num, hit *color.Color
}

func newPrinter(out io.Writer, sorted bool) *printer {
	return &printer{
		w:      bufio.NewWriter(out),
		sorted: sorted,
		path:   color.New(color.FgMagenta),
		num:    color.New(color.FgGreen),
		hit:    color.New(color.FgRed, color.Bold),
	}
}

func (p *printer) add(m scanner.SearchMatch) {
	if p.sorted {
		p.buf = append(p.buf, m)
		return
	}
	p.print(m)
}

func (p *printer) flush() {
	if p.sorted {
		sort.SliceStable(p.buf, func(i, j int) bool {
			a, b := p.buf[i], p.buf[j]
			if a.DisplayPath() != b.DisplayPath() {
				return a.DisplayPath() < b.DisplayPath()
			}
			if a.LineNumber != b.LineNumber {
				return a.LineNumber < b.LineNumber
			}
			return a.Range.Start < b.Range.Start
		})
		for _, m := range p.buf {
			p.print(m)
		}
		p.buf = nil
	}
	_ = p.w.Flush()
}

func (p *printer) print(m scanner.SearchMatch) {
	name := p.path.Sprint(m.DisplayPath())
	for _, c := range m.ContextBefore {
		fmt.Fprintf(p.w, "%s-%s-%s\n", name, p.num.Sprint(c.Number), c.Text)
	}

	line := m.Line
	if !m.Inverted && m.Range.End > m.Range.Start {
		line = line[:m.Range.Start] + p.hit.Sprint(line[m.Range.Start:m.Range.End]) + line[m.Range.End:]
	}
	if p.offsets {
		fmt.Fprintf(p.w, "%s:%s:%d:%d:%s\n", name, p.num.Sprint(m.LineNumber), m.Range.Start+1, m.Offset, line)
	} else {
		fmt.Fprintf(p.w, "%s:%s:%d:%s\n", name, p.num.Sprint(m.LineNumber), m.Range.Start+1, line)
	}

	for _, c := range m.ContextAfter {
		fmt.Fprintf(p.w, "%s-%s-%s\n", name, p.num.Sprint(c.Number), c.Text)
	}
	if len(m.ContextBefore)+len(m.ContextAfter) > 0 {
		fmt.Fprintln(p.w, "--")
	}
}

// progress renders scan snapshots as a spinner on stderr.
type progress struct {
	bar *progressbar.ProgressBar
}

// newProgress returns nil unless enabled and stderr is a terminal.
func newProgress(enabled bool) *progress {
	if !enabled || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("scanning"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	return &progress{bar: bar}
}

func (p *progress) update(s internal.Progress) {
	p.bar.Describe(fmt.Sprintf("%s searched, %s matches, %s",
		humanize.Comma(s.FilesSearched), humanize.Comma(s.Matches), humanize.Bytes(uint64(s.Bytes))))
	_ = p.bar.Set64(s.FilesVisited)
}

func (p *progress) finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}

// listCandidates prints every file a search would open, without reading
// any of them, and returns how many there were.
func listCandidates(ctx context.Context, w io.Writer, cfg *internal.Compiled, root string) int {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	var stats internal.ScanStats
	n := 0
	for c := range internal.NewWalker(cfg, &stats).Candidates(ctx, root) {
		fmt.Fprintf(bw, "%s\t%s\n", c.DisplayPath(), humanize.Bytes(uint64(c.Size)))
		n++
	}
	for _, f := range stats.Report().Failures {
		logrus.WithFields(logrus.Fields{"file": f.Path, "op": f.Op}).Warn(f.Err)
	}
	return n
}

func printSummary(w io.Writer, r scanner.ScanReport) {
	fmt.Fprintf(w,
		"\n======= Scan finished in %s =======\nFiles searched: %s of %s visited\nMatches: %s\nBytes scanned: %s\n",
		r.Elapsed.Round(time.Millisecond), humanize.Comma(r.FilesSearched), humanize.Comma(r.FilesVisited),
		humanize.Comma(r.TotalMatches), humanize.Bytes(uint64(r.BytesScanned)),
	)
	s := r.Skipped
	if s.Total() > 0 {
		fmt.Fprintf(w, "Skipped: binary=%d empty=%d size=%d permission=%d io=%d\n",
			s.Binary, s.Empty, s.Size, s.Permission, s.IO)
	}
	if r.Ambiguous > 0 {
		fmt.Fprintf(w, "Searched as text despite control bytes: %d\n", r.Ambiguous)
	}
	for i, f := range r.Failures {
		if i == maxPrintedFailures {
			fmt.Fprintf(w, "  ... and %d more\n", len(r.Failures)-i)
			break
		}
		fmt.Fprintf(w, "  %s %s: %s\n", f.Op, f.Path, f.Err)
	}
	switch {
	case r.Cancelled:
		fmt.Fprintln(w, "Scan cancelled, results are partial")
	case r.Truncated:
		fmt.Fprintln(w, "Stopped at --max-count, more matches exist")
	}
}
