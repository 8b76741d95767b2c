package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// runApp drives the CLI in-process and returns the exit code together with
// what went to stdout and stderr.
func runApp(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	color.NoColor = true

	code := 0
	oldExiter, oldErr := cli.OsExiter, cli.ErrWriter
	t.Cleanup(func() { cli.OsExiter, cli.ErrWriter = oldExiter, oldErr })
	cli.OsExiter = func(c int) { code = c }

	var stdout, stderr bytes.Buffer
	cli.ErrWriter = &stderr
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr

	_ = app.Run(append([]string{"rfgrep"}, args...))
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestApp_ConfigLayeringAndExitCodes(t *testing.T) {
	root := t.TempDir()
	tree := filepath.Join(root, "tree")
	writeFile(t, filepath.Join(tree, "a.txt"), "foo\nbar\n")
	writeFile(t, filepath.Join(tree, "blob.bin"), "needle\x00\n")

	regexConfig := filepath.Join(root, "regex.yaml")
	writeFile(t, regexConfig, "mode: regex\n")
	skipConfig := filepath.Join(root, "skip.yaml")
	writeFile(t, skipConfig, "skip_binary: true\n")
	badConfig := filepath.Join(root, "bad.yaml")
	writeFile(t, badConfig, "threads: lots\n")
	emptyConfig := filepath.Join(root, "empty.yaml")
	writeFile(t, emptyConfig, "")

	a := filepath.Join(tree, "a.txt")
	tests := []struct {
		name    string
		args    []string
		code    int
		stdout  []string
		without []string
	}{
		{
			name:   "match",
			args:   []string{"--config", emptyConfig, "foo", tree},
			stdout: []string{a + ":1:1:foo\n"},
		},
		{
			name: "no match",
			args: []string{"--config", emptyConfig, "zzz", tree},
			code: exitNoMatch,
		},
		{
			name:   "config mode applies",
			args:   []string{"--config", regexConfig, "fo+", tree},
			stdout: []string{a + ":1:1:foo\n"},
		},
		{
			name: "flag overrides config mode",
			args: []string{"--config", regexConfig, "--mode", "literal", "fo+", tree},
			code: exitNoMatch,
		},
		{
			name: "invalid regex from config",
			args: []string{"--config", regexConfig, "(", tree},
			code: exitConfig,
		},
		{
			name: "unreadable config",
			args: []string{"--config", badConfig, "foo", tree},
			code: exitConfig,
		},
		{
			name: "missing pattern",
			args: []string{"--config", emptyConfig},
			code: exitConfig,
		},
		{
			name:   "binary searched by default",
			args:   []string{"--config", emptyConfig, "needle", tree},
			stdout: []string{"blob.bin:1:1:"},
		},
		{
			name: "config skips binary",
			args: []string{"--config", skipConfig, "needle", tree},
			code: exitNoMatch,
		},
		{
			name:   "flag overrides config skip",
			args:   []string{"--config", skipConfig, "--skip-binary=false", "needle", tree},
			stdout: []string{"blob.bin:1:1:"},
		},
		{
			name:   "byte offset",
			args:   []string{"--config", emptyConfig, "-b", "bar", tree},
			stdout: []string{a + ":2:1:4:bar\n"},
		},
		{
			name:    "dry run lists without searching",
			args:    []string{"--config", emptyConfig, "--dry-run", "zzz", tree},
			stdout:  []string{a + "\t8 B\n", filepath.Join(tree, "blob.bin") + "\t8 B\n"},
			without: []string{"foo"},
		},
		{
			name:    "list alias filters extensions",
			args:    []string{"--config", emptyConfig, "--list", "--ext", "txt", "zzz", tree},
			stdout:  []string{a + "\t8 B\n"},
			without: []string{"blob.bin"},
		},
		{
			name: "dry run with nothing to list",
			args: []string{"--config", emptyConfig, "--dry-run", "--ext", "go", "zzz", tree},
			code: exitNoMatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runApp(t, tt.args...)
			assert.Equal(t, tt.code, code, "stderr: %s", stderr)
			for _, want := range tt.stdout {
				assert.Contains(t, stdout, want)
			}
			for _, unwanted := range tt.without {
				assert.NotContains(t, stdout, unwanted)
			}
		})
	}
}

func TestApp_SummaryGoesToErrWriter(t *testing.T) {
	tree := t.TempDir()
	writeFile(t, filepath.Join(tree, "a.txt"), "foo\n")
	cfg := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, cfg, "")

	code, stdout, stderr := runApp(t, "--config", cfg, "foo", tree)
	assert.Zero(t, code)
	assert.NotContains(t, stdout, "Scan finished")
	assert.Contains(t, stderr, "Files searched: 1 of 1 visited")
}
