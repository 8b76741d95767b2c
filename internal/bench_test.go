package internal

import (
	"bytes"
	"context"
	"fmt"
	"testing"
)

var benchLine = bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 40)

func BenchmarkBoyerMoore(b *testing.B) {
	p := NewBoyerMoorePattern([]byte("lazy cat"))
	b.SetBytes(int64(len(benchLine)))
	for i := 0; i < b.N; i++ {
		_ = p.FindAll(benchLine, -1, nil)
	}
}

func BenchmarkNaive(b *testing.B) {
	p := NewNaivePattern([]byte("lazy cat"))
	b.SetBytes(int64(len(benchLine)))
	for i := 0; i < b.N; i++ {
		_ = p.FindAll(benchLine, -1, nil)
	}
}

func BenchmarkFold(b *testing.B) {
	p, err := compilePattern(ModeLiteral, "LAZY CAT", true)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(benchLine)))
	for i := 0; i < b.N; i++ {
		_ = p.FindAll(benchLine, -1, nil)
	}
}

func BenchmarkScan(b *testing.B) {
	files := map[string]string{}
	for i := 0; i < 200; i++ {
		files[fmt.Sprintf("d%d/f%03d.txt", i%10, i)] = string(bytes.Repeat([]byte("alpha beta gamma\n"), 500))
	}
	root := writeTree(b, files)
	o := DefaultOptions()
	o.Pattern = "gamma"
	cfg, err := Validate(o)
	if err != nil {
		b.Fatal(err)
	}
	s := NewFileScanner(cfg)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Scan(context.Background(), root, nil); err != nil {
			b.Fatal(err)
		}
	}
}
