// Copyright © 2024 The ELPS authors

package preprocessor_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/luthersystems/pyplus/pptest"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWithFiles(t *testing.T, files map[string]string, src string) (*preprocessor.Result, error) {
	t.Helper()
	e := pptest.NewEngine(t, preprocessor.WithIncludeFS(pptest.MapFS(files)))
	return e.Run(context.Background(), "main.pyp", src)
}

func TestIncludeForms(t *testing.T) {
	pptest.RunTestSuite(t, pptest.TestSuite{
		{
			Name:   "double quoted",
			Files:  map[string]string{"lib.pyp": "def helper():\n    pass\n"},
			Input:  "@include \"lib.pyp\"\nhelper()\n",
			Output: "def helper():\n    pass\nhelper()\n",
		},
		{
			Name:   "single quoted",
			Files:  map[string]string{"lib.pyp": "X = 1\n"},
			Input:  "@include 'lib.pyp'\n",
			Output: "X = 1\n",
		},
		{
			Name:   "bare",
			Files:  map[string]string{"lib.pyp": "X = 1\n"},
			Input:  "@include lib.pyp\n",
			Output: "X = 1\n",
		},
		{
			Name: "nested and flattened",
			Files: map[string]string{
				"a.pyp": "a1\n@include b.pyp\na2\n",
				"b.pyp": "b1\n",
			},
			Input:  "top\n@include a.pyp\nbottom\n",
			Output: "top\na1\nb1\na2\nbottom\n",
		},
		{
			Name: "siblings may include the same file",
			Files: map[string]string{
				"a.pyp":      "@include common.pyp\n",
				"b.pyp":      "@include common.pyp\n",
				"common.pyp": "c\n",
			},
			Input:  "@include a.pyp\n@include b.pyp\n",
			Output: "c\nc\n",
		},
		{
			Name:   "included macros apply to the includer",
			Files:  map[string]string{"defs.pyp": "@define SQUARE(x) ((x) * (x))\n"},
			Input:  "@include defs.pyp\ny = SQUARE[3]\n",
			Output: "y = ((3) * (3))\n",
		},
		{
			Name:   "empty file",
			Files:  map[string]string{"empty.pyp": ""},
			Input:  "a\n@include empty.pyp\nb\n",
			Output: "a\nb\n",
		},
		{
			Name:  "missing file",
			Input: "@include nope.pyp\n",
			Err:   preprocessor.ErrFileNotFound,
		},
		{
			Name:  "path separator",
			Files: map[string]string{"sub/lib.pyp": "x\n"},
			Input: "@include \"sub/lib.pyp\"\n",
			Err:   preprocessor.ErrInvalidFilename,
		},
		{
			Name:  "parent directory",
			Input: "@include ..\n",
			Err:   preprocessor.ErrInvalidFilename,
		},
		{
			Name:  "reserved character",
			Input: "@include lib?.pyp\n",
			Err:   preprocessor.ErrInvalidFilename,
		},
		{
			Name:  "missing name",
			Input: "@include\n",
			Err:   preprocessor.ErrDirectiveSyntax,
		},
	})
}

func TestIncludeCycle(t *testing.T) {
	_, err := runWithFiles(t, map[string]string{
		"a.pyp": "@include b.pyp\n",
		"b.pyp": "x = 1\n@include a.pyp\n",
	}, "@include a.pyp\n")
	require.True(t, errors.Is(err, preprocessor.ErrCyclicInclude), "got %v", err)

	var pe *preprocessor.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"main.pyp", "a.pyp", "b.pyp", "a.pyp"}, pe.Chain)
	assert.Equal(t, "a.pyp", pe.Filename)
	assert.Equal(t, preprocessor.Pos{File: "b.pyp", Line: 2, Col: 10, Len: 5}, pe.Pos)

	d := pe.Diagnostic()
	assert.Equal(t, "cyclic-include", d.Code)
	assert.Contains(t, d.Notes, "inclusion chain: main.pyp -> a.pyp -> b.pyp -> a.pyp")
}

func TestIncludeSelf(t *testing.T) {
	_, err := runWithFiles(t, map[string]string{"main.pyp": "@include main.pyp\n"}, "@include main.pyp\n")
	var pe *preprocessor.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, preprocessor.KindCyclicInclude, pe.Kind)
	assert.Equal(t, []string{"main.pyp", "main.pyp"}, pe.Chain)
}

func TestIncludeErrorsPointIntoIncludedFile(t *testing.T) {
	res, err := runWithFiles(t, map[string]string{
		"lib.pyp": "x = 1\n@end\n",
	}, "@include lib.pyp\n")
	var pe *preprocessor.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, preprocessor.KindUnexpectedEnd, pe.Kind)
	assert.Equal(t, "lib.pyp", pe.Pos.File)
	assert.Equal(t, 2, pe.Pos.Line)
	assert.Equal(t, "x = 1\n@end\n", res.Sources["lib.pyp"])
}

func TestIncludeMissingIsIO(t *testing.T) {
	_, err := runWithFiles(t, nil, "\n@include gone.pyp\n")
	var pe *preprocessor.Error
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Kind.IsIO())
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Equal(t, preprocessor.Pos{File: "main.pyp", Line: 2, Col: 10, Len: 8}, pe.Pos)
}

func TestIncludeRootsInOrder(t *testing.T) {
	first := fstest.MapFS{"lib.pyp": &fstest.MapFile{Data: []byte("first\n")}}
	second := fstest.MapFS{
		"lib.pyp":   &fstest.MapFile{Data: []byte("second\n")},
		"extra.pyp": &fstest.MapFile{Data: []byte("extra\n")},
	}
	e := pptest.NewEngine(t, preprocessor.WithIncludeFS(first, second))
	res, err := e.Run(context.Background(), "main.pyp", "@include lib.pyp\n@include extra.pyp\n")
	require.NoError(t, err)
	assert.Equal(t, "first\nextra\n", res.Text())
}

func TestIncludeNestedInSubdirectoryInput(t *testing.T) {
	e := pptest.NewEngine(t, preprocessor.WithIncludeFS(pptest.MapFS(map[string]string{
		"main.pyp": "@include main.pyp\n",
	})))
	_, err := e.Run(context.Background(), "src/main.pyp", "@include main.pyp\n")
	assert.True(t, errors.Is(err, preprocessor.ErrCyclicInclude), "the including file is named by its base name")
}
