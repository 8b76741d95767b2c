package internal

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfgrep/internal/scanner"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestScan_ArchiveMembers(t *testing.T) {
	root := writeTree(t, map[string]string{"plain.txt": "needle\n"})
	writeZip(t, filepath.Join(root, "bundle.zip"), map[string]string{
		"docs/readme.txt": "intro\nneedle inside\n",
		"bin/blob.dat":    "needle\x00",
		".hidden.txt":     "needle\n",
		"empty.txt":       "",
	})

	o := searchOpts("needle", ModeLiteral)
	o.Archives = true
	o.SkipBinary = true
	got, report := scanAll(t, o, root)
	require.Len(t, got, 2)

	member := got[0]
	assert.Equal(t, filepath.Join(root, "bundle.zip"), member.Path)
	assert.Equal(t, "docs/readme.txt", member.InnerPath)
	assert.Equal(t, 2, member.LineNumber)
	assert.Equal(t, filepath.Join(root, "bundle.zip")+"!docs/readme.txt", member.DisplayPath())
	assert.Equal(t, filepath.Join(root, "plain.txt"), got[1].Path)

	assert.EqualValues(t, 1, report.Skipped.Binary)
	assert.EqualValues(t, 1, report.Skipped.Empty)
}

func TestScan_ArchivesOffSearchesRawFile(t *testing.T) {
	root := t.TempDir()
	writeZip(t, filepath.Join(root, "bundle.zip"), map[string]string{"a.txt": "needle\n"})

	_, report := scanAll(t, searchOpts("needle", ModeLiteral), root)
	assert.EqualValues(t, 1, report.FilesVisited)
	assert.Empty(t, report.Failures)
}

func TestScan_ArchiveMemberExtensionFilter(t *testing.T) {
	root := t.TempDir()
	writeZip(t, filepath.Join(root, "src.zip"), map[string]string{"a.go": "needle\n", "b.md": "needle\n"})

	o := searchOpts("needle", ModeLiteral)
	o.Archives = true
	o.Extensions = []string{"go"}
	got, _ := scanAll(t, o, root)
	require.Len(t, got, 1)
	assert.Equal(t, "a.go", got[0].InnerPath)
}

func TestScan_CorruptArchiveRecorded(t *testing.T) {
	root := writeTree(t, map[string]string{"broken.zip": "this is not a zip"})
	o := searchOpts("zip", ModeLiteral)
	o.Archives = true
	_, report := scanAll(t, o, root)
	require.NotEmpty(t, report.Failures)
	assert.Equal(t, "archive", report.Failures[0].Op)
}

func TestFileCandidate_DisplayPath(t *testing.T) {
	assert.Equal(t, "a.txt", scanner.FileCandidate{Path: "a.txt"}.DisplayPath())
	assert.Equal(t, "b.zip!docs/c.txt", scanner.FileCandidate{Path: "b.zip", InnerPath: "docs/c.txt"}.DisplayPath())
}
