// Copyright © 2024 The ELPS authors

package preprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefine(t *testing.T) {
	tests := []struct {
		line   string
		name   string
		col    int
		params []string
		body   string
	}{
		{"@define FOO bar baz", "FOO", 9, nil, "bar baz"},
		{"@define FOO", "FOO", 9, nil, ""},
		{"  @define   FOO   ", "FOO", 13, nil, ""},
		{"@define ADD(a,b) a+b", "ADD", 9, []string{"a", "b"}, "a+b"},
		{"@define ADD( a , b )", "ADD", 9, []string{"a", "b"}, ""},
		{"@define F() 42", "F", 9, []string{}, "42"},
		{"@define TUPLE (1, 2)", "TUPLE", 9, nil, "(1, 2)"},
	}
	for _, tc := range tests {
		h, err := parseDefine(tc.line)
		require.Nil(t, err, tc.line)
		assert.Equal(t, tc.name, h.Name, tc.line)
		assert.Equal(t, tc.col, h.NameCol, tc.line)
		assert.Equal(t, tc.params, h.Params, tc.line)
		assert.Equal(t, tc.body, h.Body, tc.line)
	}
}

func TestParseDefineErrors(t *testing.T) {
	for _, line := range []string{
		"@define",
		"@define 1X body",
		"@define ADD(a,b body",
		"@define ADD(a,a) a",
		"@define FOO+ 1",
	} {
		_, err := parseDefine(line)
		if assert.NotNil(t, err, line) {
			assert.Equal(t, KindDirectiveSyntax, err.Kind, line)
			assert.Positive(t, err.Pos.Col, line)
		}
	}
}

func TestParseInclude(t *testing.T) {
	tests := []struct {
		line string
		name string
		off  int
	}{
		{`@include "lib.pyp"`, "lib.pyp", 9},
		{`@include 'lib.pyp'`, "lib.pyp", 9},
		{`@include lib.pyp`, "lib.pyp", 9},
		{`    @include   lib.pyp  `, "lib.pyp", 15},
		{`@include "a b.pyp"`, "a b.pyp", 9},
	}
	for _, tc := range tests {
		name, off, err := parseInclude(tc.line)
		require.Nil(t, err, tc.line)
		assert.Equal(t, tc.name, name, tc.line)
		assert.Equal(t, tc.off, off, tc.line)
	}

	for _, line := range []string{`@include`, `@include a.pyp b.pyp`} {
		_, _, err := parseInclude(line)
		if assert.NotNil(t, err, line) {
			assert.Equal(t, KindDirectiveSyntax, err.Kind, line)
		}
	}
}

func TestParseCount(t *testing.T) {
	n, err := parseCount("3")
	require.Nil(t, err)
	assert.Equal(t, 3, n)

	n, err = parseCount(" 0 ")
	require.Nil(t, err)
	assert.Equal(t, 0, n)

	for _, s := range []string{"", "-1", "x", "2 3", "1.5"} {
		_, err := parseCount(s)
		assert.NotNil(t, err, s)
	}
}

func TestParseUndef(t *testing.T) {
	name, off, err := parseUndef("@undef FOO")
	require.Nil(t, err)
	assert.Equal(t, "FOO", name)
	assert.Equal(t, 7, off)

	_, _, err = parseUndef("@undef FOO BAR")
	assert.NotNil(t, err)
	_, _, err = parseUndef("@undef")
	assert.NotNil(t, err)
}

func TestDirectiveArgs(t *testing.T) {
	args, off := DirectiveArgs("@repeat   4  ")
	assert.Equal(t, "4", args)
	assert.Equal(t, 10, off)

	args, _ = DirectiveArgs("@mirror")
	assert.Equal(t, "", args)
}
