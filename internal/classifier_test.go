package internal

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfgrep/internal/scanner"
)

func TestClassifyProbe(t *testing.T) {
	tests := []struct {
		name  string
		probe []byte
		want  Classification
	}{
		{"empty", nil, ClassText},
		{"plain", []byte("hello\tworld\r\n"), ClassText},
		{"escape codes", []byte("\x1b[31mred\x1b[0m\n"), ClassText},
		{"nul", []byte("abc\x00def"), ClassBinary},
		{"few controls", append(bytes.Repeat([]byte("a"), 95), bytes.Repeat([]byte{0x01}, 5)...), ClassText},
		{"some controls", append(bytes.Repeat([]byte("a"), 80), bytes.Repeat([]byte{0x02}, 20)...), ClassAmbiguous},
		{"many controls", append(bytes.Repeat([]byte("a"), 60), bytes.Repeat([]byte{0x7f}, 40)...), ClassBinary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyProbe(tt.probe))
		})
	}
}

func TestClassifyProbe_OnlyHeadCounts(t *testing.T) {
	data := append(bytes.Repeat([]byte("a"), probeSize), 0)
	assert.Equal(t, ClassText, ClassifyProbe(data))
}

func TestAdaptiveThreshold(t *testing.T) {
	mem := func(n uint64) MemoryProvider {
		return MemoryFunc(func() (uint64, error) { return n, nil })
	}
	assert.EqualValues(t, 64<<20, AdaptiveThreshold(mem(1<<30), 4))
	assert.EqualValues(t, minMmapThreshold, AdaptiveThreshold(mem(1<<20), 8))
	assert.EqualValues(t, maxMmapThreshold, AdaptiveThreshold(mem(1<<40), 1))

	failing := MemoryFunc(func() (uint64, error) { return 0, errors.New("no sysinfo") })
	assert.EqualValues(t, fallbackAvailable/availableShare/2, AdaptiveThreshold(failing, 2))
}

func TestClassifierPlan(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) scanner.FileCandidate {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0644))
		return scanner.FileCandidate{Path: p, Size: int64(len(data))}
	}
	cl := NewClassifier(true, 16)

	plan, _, err := cl.Plan(write("empty.txt", nil))
	require.NoError(t, err)
	assert.Equal(t, scanner.Skip(scanner.SkipEmpty), plan)

	plan, class, err := cl.Plan(write("bin.dat", []byte("ab\x00cd")))
	require.NoError(t, err)
	assert.Equal(t, scanner.Skip(scanner.SkipBinary), plan)
	assert.Equal(t, ClassBinary, class)

	plan, _, err = cl.Plan(write("small.txt", []byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, scanner.PlanBuffered, plan.Kind)

	plan, _, err = cl.Plan(write("big.txt", bytes.Repeat([]byte("x"), 17)))
	require.NoError(t, err)
	assert.Equal(t, scanner.PlanMapped, plan.Kind)

	// binary content is searched when skipping is off
	plan, _, err = NewClassifier(false, 16).Plan(write("bin2.dat", []byte("ab\x00cd")))
	require.NoError(t, err)
	assert.Equal(t, scanner.PlanBuffered, plan.Kind)
}

func TestClassifierPlan_Missing(t *testing.T) {
	cl := NewClassifier(true, 1<<20)
	plan, _, err := cl.Plan(scanner.FileCandidate{Path: filepath.Join(t.TempDir(), "gone"), Size: 3})
	var fae *FileAccessError
	require.ErrorAs(t, err, &fae)
	assert.Equal(t, "open", fae.Op)
	assert.Equal(t, scanner.Skip(scanner.SkipIO), plan)
}

func TestPlanProbe_LargeFileMapped(t *testing.T) {
	cl := NewClassifier(true, AdaptiveThreshold(MemoryFunc(func() (uint64, error) { return 64 << 20, nil }), 1))
	plan, class := cl.PlanProbe(50<<20, []byte("line\n"))
	assert.Equal(t, scanner.PlanMapped, plan.Kind)
	assert.Equal(t, ClassText, class)
}
