// Copyright © 2024 The ELPS authors

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/luthersystems/pyplus/diagnostic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFiles creates files in a temporary directory and returns it.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func testOptions(dir string) *preprocessOptions {
	return &preprocessOptions{
		Input:  filepath.Join(dir, "main.pyp"),
		Output: filepath.Join(dir, "out.py"),
		Color:  diagnostic.ColorNever,
	}
}

func runPreprocess(t *testing.T, opts *preprocessOptions) (stdout, stderr string, err error) {
	t.Helper()
	var out, errb bytes.Buffer
	err = preprocessFile(context.Background(), newCmdConfig(), opts, &out, &errb)
	return out.String(), errb.String(), err
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestPreprocessWritesOutput(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.pyp": "@include \"lib.pyp\"\nx = ANSWER   \n",
		"lib.pyp":  "@define ANSWER 42\n",
	})
	opts := testOptions(dir)
	stdout, _, err := runPreprocess(t, opts)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Equal(t, "x = 42\n", readOutput(t, opts.Output))
}

func TestPreprocessStdoutAndCheckOnly(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.pyp": "@repeat 2\nprint(1)\n@end\n"})
	opts := testOptions(dir)
	opts.Stdout = true
	opts.CheckOnly = true
	stdout, _, err := runPreprocess(t, opts)
	require.NoError(t, err)
	assert.Equal(t, "print(1)\nprint(1)\n", stdout)
	_, err = os.Stat(opts.Output)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "check-only writes nothing")
}

func TestPreprocessOnly(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.pyp": "@define X 1\ny = X  \n"})
	opts := testOptions(dir)
	opts.PreprocessOnly = true
	_, _, err := runPreprocess(t, opts)
	require.NoError(t, err)
	assert.Equal(t, "y = 1  \n", readOutput(t, filepath.Join(dir, "out.i")), "output passes are skipped")
	_, err = os.Stat(opts.Output)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestPreprocessErrorWritesNothing(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.pyp": "x = 1\n  @end\n"})
	opts := testOptions(dir)
	_, stderr, err := runPreprocess(t, opts)
	require.Error(t, err)
	assert.Equal(t, exitPreprocess, exitCode(err))
	assert.Contains(t, stderr, "error[unexpected-end]: @end without an open block")
	assert.Contains(t, stderr, "main.pyp:2:3")
	assert.Contains(t, stderr, "  @end")
	_, statErr := os.Stat(opts.Output)
	assert.True(t, errors.Is(statErr, fs.ErrNotExist))
}

func TestPreprocessIOErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.pyp": "@include missing.pyp\n"})
	opts := testOptions(dir)
	_, stderr, err := runPreprocess(t, opts)
	require.Error(t, err)
	assert.Equal(t, exitIO, exitCode(err))
	assert.Contains(t, stderr, "--include-dir")

	opts.Input = filepath.Join(dir, "nope.pyp")
	_, _, err = runPreprocess(t, opts)
	require.Error(t, err)
	assert.Equal(t, exitIO, exitCode(err))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	opts = testOptions(dir)
	require.NoError(t, os.WriteFile(opts.Input, []byte("x\n"), 0o600))
	opts.Output = filepath.Join(dir, "no", "such", "dir", "out.py")
	_, _, err = runPreprocess(t, opts)
	require.Error(t, err)
	assert.Equal(t, exitIO, exitCode(err))
}

func TestPreprocessIncludeDir(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.pyp":       "@include shared.pyp\nprint(NAME)\n",
		"lib/shared.pyp": "@define NAME \"lib\"\n",
	})
	opts := testOptions(dir)
	opts.IncludeDirs = []string{filepath.Join(dir, "lib")}
	_, _, err := runPreprocess(t, opts)
	require.NoError(t, err)
	assert.Equal(t, "print(\"lib\")\n", readOutput(t, opts.Output))
}

func TestPreprocessDefines(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.pyp": "print(DEBUG, LEVEL)\n"})
	opts := testOptions(dir)
	opts.Defines = []string{"DEBUG", "LEVEL=3"}
	_, _, err := runPreprocess(t, opts)
	require.NoError(t, err)
	assert.Equal(t, "print(1, 3)\n", readOutput(t, opts.Output))

	opts.Defines = []string{"1X=2"}
	_, _, err = runPreprocess(t, opts)
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
}

func TestPreprocessExtensions(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.pyp": "@warning careful\nx = 1  # note\n# only a comment\ny = 2\n"})

	opts := testOptions(dir)
	opts.Disable = []string{"diagnostics"}
	opts.Enable = []string{"strip-comments"}
	_, _, err := runPreprocess(t, opts)
	require.NoError(t, err)
	assert.Equal(t, "@warning careful\nx = 1\ny = 2\n", readOutput(t, opts.Output))

	opts = testOptions(dir)
	_, stderr, err := runPreprocess(t, opts)
	require.NoError(t, err)
	assert.Contains(t, stderr, "careful")
	assert.Equal(t, "x = 1  # note\n# only a comment\ny = 2\n", readOutput(t, opts.Output))

	opts.Enable = []string{"bogus"}
	_, _, err = runPreprocess(t, opts)
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, err.Error(), "unknown extension bogus")

	opts.Enable = nil
	opts.Disable = []string{"core"}
	_, _, err = runPreprocess(t, opts)
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
}

func TestPreprocessMaxPasses(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.pyp": "@define A A + 1\nA\n"})
	opts := testOptions(dir)
	opts.MaxPasses = 4
	_, stderr, err := runPreprocess(t, opts)
	require.Error(t, err)
	assert.Equal(t, exitPreprocess, exitCode(err))
	assert.Contains(t, stderr, "no fixed point after 4 passes")
}

func TestIntermediatePath(t *testing.T) {
	assert.Equal(t, "out.i", intermediatePath("out.py"))
	assert.Equal(t, "build/app.i", intermediatePath("build/app.py"))
	assert.Equal(t, "app.i", intermediatePath("app"))
}

func TestParseDefines(t *testing.T) {
	macros, err := parseDefines([]string{"A", "B=", "C=x = 1"})
	require.NoError(t, err)
	require.Len(t, macros, 3)
	assert.Equal(t, "1", macros[0].Body)
	assert.Equal(t, "", macros[1].Body)
	assert.Equal(t, "x = 1", macros[2].Body)

	_, err = parseDefines([]string{"=1"})
	assert.Error(t, err)
}
