package internal

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"rfgrep/internal/scanner"
)

// ResultSink appends every matched line to a single file as
// "path:line:text". Safe for concurrent use.
type ResultSink struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

func NewResultSink(path string) (*ResultSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open matches file: %w", err)
	}
	return &ResultSink{f: f, w: bufio.NewWriter(f)}, nil
}

func (s *ResultSink) Write(m scanner.SearchMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s:%d:%s\n", m.DisplayPath(), m.LineNumber, m.Line)
	return err
}

// Close flushes and closes the file.
func (s *ResultSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ferr := s.w.Flush()
	if err := s.f.Close(); err != nil {
		return err
	}
	return ferr
}
