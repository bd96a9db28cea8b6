// Copyright © 2024 The ELPS authors

package repl

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/luthersystems/pyplus/diagnostic"
	"github.com/luthersystems/pyplus/pptest"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKeepsMacros(t *testing.T) {
	s := NewSession(pptest.NewEngine(t))
	ctx := context.Background()

	res, err := s.Feed(ctx, "@define ADD(a, b) a + b")
	require.NoError(t, err)
	assert.Equal(t, "", res.Text())

	res, err = s.Feed(ctx, "y = ADD[1, 2]")
	require.NoError(t, err)
	assert.Equal(t, "y = 1 + 2\n", res.Text())

	res, err = s.Feed(ctx, "@undef ADD")
	require.NoError(t, err)
	res, err = s.Feed(ctx, "ADD[1, 2]")
	require.NoError(t, err)
	assert.Equal(t, "ADD[1, 2]\n", res.Text())
}

func TestSessionCollectsBlocks(t *testing.T) {
	s := NewSession(pptest.NewEngine(t))
	ctx := context.Background()

	for _, line := range []string{"@repeat 2", "@mirror", "a", "b", "@end"} {
		res, err := s.Feed(ctx, line)
		require.NoError(t, err, line)
		assert.Nil(t, res, line)
		assert.True(t, s.Pending(), line)
	}
	res, err := s.Feed(ctx, "@end")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, s.Pending())
	assert.Equal(t, "b\na\nb\na\n", res.Text())
}

func TestSessionReset(t *testing.T) {
	s := NewSession(pptest.NewEngine(t))
	ctx := context.Background()

	_, err := s.Feed(ctx, "@invisible")
	require.NoError(t, err)
	require.True(t, s.Pending())
	s.Reset()
	assert.False(t, s.Pending())

	res, err := s.Feed(ctx, "visible")
	require.NoError(t, err)
	assert.Equal(t, "visible\n", res.Text())
}

func TestSessionErrorKeepsState(t *testing.T) {
	s := NewSession(pptest.NewEngine(t))
	ctx := context.Background()

	_, err := s.Feed(ctx, "@define X 1")
	require.NoError(t, err)
	_, err = s.Feed(ctx, "@error stop here")
	require.Error(t, err)
	assert.True(t, errors.Is(err, preprocessor.ErrUserError))

	res, err := s.Feed(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "1\n", res.Text())
}

func TestSessionWarnings(t *testing.T) {
	s := NewSession(pptest.NewEngine(t))
	ctx := context.Background()

	_, err := s.Feed(ctx, "@define X 1")
	require.NoError(t, err)
	assert.Empty(t, s.Warnings())

	_, err = s.Feed(ctx, "@define X 2")
	require.NoError(t, err)
	warnings := s.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, preprocessor.WarnRedefinition, warnings[0].Kind)
	assert.Empty(t, s.Warnings(), "warnings are reported once")
}

func TestRenderErrorUsesSessionSource(t *testing.T) {
	s := NewSession(pptest.NewEngine(t))
	_, err := s.Feed(context.Background(), "  @end")
	require.Error(t, err)

	var buf bytes.Buffer
	renderError(&buf, err, s.Sources(), diagnostic.ColorNever)
	out := buf.String()
	assert.Contains(t, out, "error[unexpected-end]: @end without an open block")
	assert.Contains(t, out, "<stdin>:1:3")
	assert.Contains(t, out, "  @end")
}
