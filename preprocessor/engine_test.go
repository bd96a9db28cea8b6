// Copyright © 2024 The ELPS authors

package preprocessor_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/luthersystems/pyplus/pptest"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine(t *testing.T) {
	pptest.RunTestSuite(t, pptest.TestSuite{
		{
			Name:   "no directives",
			Input:  "import os\n\nprint(os.getcwd())\n",
			Output: "import os\n\nprint(os.getcwd())\n",
		},
		{
			Name:   "decorators pass through",
			Input:  "@property\ndef size(self):\n    return 1\n",
			Output: "@property\ndef size(self):\n    return 1\n",
		},
		{
			Name:   "token boundary",
			Input:  "@define FOO bar\nFOOBAR\nFOO\n",
			Output: "FOOBAR\nbar\n",
		},
		{
			Name:   "use before definition",
			Input:  "x = LIMIT\n@define LIMIT 10\n",
			Output: "x = 10\n",
		},
		{
			Name:   "nested plain macros reach a fixed point",
			Input:  "@define A 1\n@define B A\nB\n",
			Output: "1\n",
		},
		{
			Name:   "parameterized",
			Input:  "@define ADD(a,b) a+b\nx = ADD[1,2]\n",
			Output: "x = 1+2\n",
		},
		{
			Name:   "nested invocation",
			Input:  "@define ADD(a,b) a+b\nx = ADD[ADD[1,2],3]\n",
			Output: "x = 1+2+3\n",
		},
		{
			Name:  "arity",
			Input: "@define ADD(a,b) a+b\nADD[1]\n",
			Err:   preprocessor.ErrArgumentMismatch,
		},
		{
			Name:   "block macro",
			Input:  "@define HEADER\nimport os\nimport sys\n@end\nHEADER\nmain()\n",
			Output: "import os\nimport sys\nmain()\n",
		},
		{
			Name:   "block parameterized macro",
			Input:  "@define GREET(who)\nprint(\"hello\")\nprint(who)\n@end\nGREET[name]\n",
			Output: "print(\"hello\")\nprint(name)\n",
		},
		{
			Name:   "directives inside block macro bodies",
			Input:  "@define TWICE\n@repeat 2\nhi\n@end\n@end\nTWICE\n",
			Output: "hi\nhi\n",
		},
		{
			Name:   "macro bodies defining macros",
			Input:  "@define SETUP\n@define INNER 7\n@end\nSETUP\nx = INNER\n",
			Output: "x = 7\n",
		},
		{
			Name:  "unbalanced block",
			Input: "@define NAME\nx = 1\n",
			Err:   preprocessor.ErrMissedEndOfBlock,
		},
		{
			Name:  "stray terminator",
			Input: "x = 1\n@end\n",
			Err:   preprocessor.ErrUnexpectedEnd,
		},
		{
			Name:  "malformed define",
			Input: "@define 9LIVES cat\n",
			Err:   preprocessor.ErrDirectiveSyntax,
		},
		{
			Name:   "strings and comments are not expanded",
			Input:  "@define X 1\nprint(\"X\")  # X\ny = X\n",
			Output: "print(\"X\")  # X\ny = 1\n",
		},
		{
			Name:   "undef",
			Input:  "@define X 1\na = X\n@undef X\nb = X\n",
			Output: "a = X\nb = X\n",
		},
		{
			Name:   "repeat",
			Input:  "@repeat 3\nx += 1\n@end\n",
			Output: "x += 1\nx += 1\nx += 1\n",
		},
		{
			Name:   "repeat zero deletes the block",
			Input:  "@repeat 0\nx += 1\n@end\ny = 2\n",
			Output: "y = 2\n",
		},
		{
			Name:   "repeat count from a macro",
			Input:  "@define N 2\n@repeat N\nx\n@end\n",
			Output: "x\nx\n",
		},
		{
			Name:   "nested repeat",
			Input:  "@repeat 2\n@repeat 2\nx\n@end\ny\n@end\n",
			Output: "x\nx\ny\nx\nx\ny\n",
		},
		{
			Name:  "negative repeat",
			Input: "@repeat -1\nx\n@end\n",
			Err:   preprocessor.ErrDirectiveSyntax,
		},
		{
			Name:   "invisible",
			Input:  "a\n@invisible\nsecret()\n@end\nb\n",
			Output: "a\nb\n",
		},
		{
			Name:  "invisible takes no arguments",
			Input: "@invisible 3\nx\n@end\n",
			Err:   preprocessor.ErrDirectiveSyntax,
		},
		{
			Name:   "mirror",
			Input:  "@mirror\na\nb\nc\n@end\n",
			Output: "c\nb\na\n",
		},
		{
			Name:   "builtin constants",
			Input:  "v = __VERSION__\nm = __MAGIC_CODE__\np = __PLATFORM__\nd = __DATE__\n",
			Output: "v = \"1.0.0\"\nm = 11259375\np = \"Linux\"\nd = \"2024-03-09\"\n",
		},
		{
			Name:   "counter",
			Input:  "a = __COUNTER__, __COUNTER__\nb = __COUNTER__\n",
			Output: "a = 0, 1\nb = 2\n",
		},
		{
			Name:   "file follows includes",
			Files:  map[string]string{"lib.pyp": "LIB = __FILE__\n"},
			Input:  "@include lib.pyp\nMAIN = __FILE__\n",
			Output: "LIB = \"lib.pyp\"\nMAIN = \"main.pyp\"\n",
		},
		{
			Name:   "diagnostic directives are removed",
			Input:  "@debug starting\n@info version __VERSION__\nx = 1\n",
			Output: "x = 1\n",
		},
		{
			Name:  "error directive",
			Input: "@error unsupported platform\n",
			Err:   preprocessor.ErrUserError,
		},
		{
			Name:  "self-growing macro",
			Input: "@define X [X]\nX\n",
			Err:   preprocessor.ErrExpansionLimit,
		},
	})
}

func TestFixedPointIdempotence(t *testing.T) {
	src := "import os\n\ndef f(x):\n    return x * 2\n"
	e := pptest.NewEngine(t)
	first, err := e.Run(context.Background(), "main.pyp", src)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), "main.pyp", first.Text())
	require.NoError(t, err)
	assert.Equal(t, src, first.Text())
	assert.Equal(t, first.Text(), second.Text())
	assert.Equal(t, 1, first.Passes)
}

func TestOrderingNeedsTwoPasses(t *testing.T) {
	res, err := pptest.NewEngine(t).Run(context.Background(), "main.pyp", "@define A 1\n@define B A\nB\n")
	require.NoError(t, err)
	assert.Equal(t, "1\n", res.Text())
	// Pass 1 defines and expands B to A, pass 2 expands A, pass 3 confirms.
	assert.Equal(t, 3, res.Passes)
}

func TestOriginsSurviveExpansion(t *testing.T) {
	src := "@define PAIR\nfirst()\nsecond()\n@end\nstart()\nPAIR\n"
	res, err := pptest.NewEngine(t).Run(context.Background(), "main.pyp", src)
	require.NoError(t, err)
	want := []preprocessor.Line{
		{Text: "start()", Origin: preprocessor.Origin{File: "main.pyp", Line: 5}},
		{Text: "first()", Origin: preprocessor.Origin{File: "main.pyp", Line: 6}},
		{Text: "second()", Origin: preprocessor.Origin{File: "main.pyp", Line: 6}},
	}
	if d := cmp.Diff(want, res.Lines); d != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", d)
	}
}

func TestRedefinitionWarnings(t *testing.T) {
	res, err := pptest.NewEngine(t).Run(context.Background(), "main.pyp",
		"@define X 1\n@define X 2\n@define __VERSION__ \"9\"\nX __VERSION__\n")
	require.NoError(t, err)
	assert.Equal(t, "2 \"9\"\n", res.Text())
	require.Len(t, res.Warnings, 2)
	for _, w := range res.Warnings {
		assert.Equal(t, preprocessor.WarnRedefinition, w.Kind)
	}
	assert.Equal(t, "X", res.Warnings[0].Ident)
	assert.Equal(t, 2, res.Warnings[0].Pos.Line)
	assert.Contains(t, res.Warnings[0].Msg, "previous definition at main.pyp:1")
	assert.Contains(t, res.Warnings[1].Msg, "constant macro __VERSION__")

	assert.Equal(t, preprocessor.Pos{File: "main.pyp", Line: 1}, res.Warnings[0].Related)
	d := res.Warnings[0].Diagnostic()
	require.Len(t, d.Spans, 2)
	assert.Equal(t, "previous definition", d.Spans[1].Label)
	assert.Len(t, res.Warnings[1].Diagnostic().Spans, 1, "built-ins have no definition line")
}

func TestUndefWarnings(t *testing.T) {
	res, err := pptest.NewEngine(t).Run(context.Background(), "main.pyp", "@undef NOPE\n@undef __PWD__\n__PWD__\n")
	require.NoError(t, err)
	assert.Equal(t, "__PWD__\n", res.Text())
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, preprocessor.WarnUndefined, res.Warnings[0].Kind)
	assert.Equal(t, preprocessor.WarnRedefinition, res.Warnings[1].Kind)
}

func TestWarningDirective(t *testing.T) {
	res, err := pptest.NewEngine(t).Run(context.Background(), "main.pyp", "@warning deprecated in __VERSION__\nx\n")
	require.NoError(t, err)
	assert.Equal(t, "x\n", res.Text())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, preprocessor.WarnUser, res.Warnings[0].Kind)
	assert.Equal(t, `deprecated in "1.0.0"`, res.Warnings[0].Msg)
}

func TestErrorPosition(t *testing.T) {
	_, err := pptest.NewEngine(t).Run(context.Background(), "main.pyp", "x = 1\n  @end\n")
	var pe *preprocessor.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, preprocessor.KindUnexpectedEnd, pe.Kind)
	assert.Equal(t, "main.pyp", pe.Pos.File)
	assert.Equal(t, 2, pe.Pos.Line)
	assert.Equal(t, 3, pe.Pos.Col)
	assert.Equal(t, "@end", pe.Handler)
	assert.Equal(t, "main.pyp:2:3: @end without an open block", pe.Error())
}

func TestSyntaxErrorColumn(t *testing.T) {
	_, err := pptest.NewEngine(t).Run(context.Background(), "main.pyp", "@define FOO+ 1\n")
	var pe *preprocessor.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, preprocessor.Pos{File: "main.pyp", Line: 1, Col: 12, Len: 1}, pe.Pos)
}

func TestRandom(t *testing.T) {
	src := "@random\na\nb\nc\n@end\n"
	e := pptest.NewEngine(t, preprocessor.WithRand(rand.New(rand.NewPCG(1, 2))))
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		res, err := e.Run(context.Background(), "main.pyp", src)
		require.NoError(t, err)
		require.Len(t, res.Lines, 1)
		seen[res.Lines[0].Text] = true
	}
	for line := range seen {
		assert.Contains(t, []string{"a", "b", "c"}, line)
	}
	assert.Greater(t, len(seen), 1)
}

func TestPluginDirective(t *testing.T) {
	shout := preprocessor.HandlerFunc(func(buf *preprocessor.Buffer, i int, ctx *preprocessor.Context) (int, error) {
		args, _ := preprocessor.DirectiveArgs(buf.Text(i))
		line := buf.Line(i)
		line.Text = "print(" + `"` + strings.ToUpper(args) + `"` + ")"
		buf.Splice(i, i+1, line)
		return i + 1, nil
	})
	e := pptest.NewEngine(t, preprocessor.WithDirective("shout", shout))
	res, err := e.Run(context.Background(), "main.pyp", "@shout hello\n")
	require.NoError(t, err)
	assert.Equal(t, "print(\"HELLO\")\n", res.Text())
}

func TestPluginBlockDirective(t *testing.T) {
	// A plugin that leaves its block open for the dispatcher to close.
	open := preprocessor.HandlerFunc(func(buf *preprocessor.Buffer, i int, ctx *preprocessor.Context) (int, error) {
		buf.Splice(i, i+1)
		ctx.State = preprocessor.StateWaitingEndOfBlock
		return i, nil
	})
	e := pptest.NewEngine(t, preprocessor.WithDirective("section", open))
	res, err := e.Run(context.Background(), "main.pyp", "@section\nbody\n@end\n")
	require.NoError(t, err)
	assert.Equal(t, "body\n", res.Text())

	_, err = e.Run(context.Background(), "main.pyp", "@section\nbody\n")
	assert.True(t, errors.Is(err, preprocessor.ErrMissedEndOfBlock))
}

func TestRepeatLimit(t *testing.T) {
	e := pptest.NewEngine(t)
	for _, src := range []string{
		"@repeat 10000000000000\nx\n@end\n",
		"@repeat 4611686018427387904\nx\ny\n@end\n",
	} {
		_, err := e.Run(context.Background(), "main.pyp", src)
		require.Error(t, err, src)
		assert.True(t, errors.Is(err, preprocessor.ErrExpansionLimit), err.Error())
		var pe *preprocessor.Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 1, pe.Pos.Line)
		assert.Equal(t, 9, pe.Pos.Col)
	}

	res, err := e.Run(context.Background(), "main.pyp", "@repeat 10000000000000\n@end\nz\n")
	require.NoError(t, err)
	assert.Equal(t, "z\n", res.Text())
}

func TestUnregisteredDirectivePassesThrough(t *testing.T) {
	src := "@inclde lib.pyp\n@property\nx\n"
	res, err := pptest.NewEngine(t).Run(context.Background(), "main.pyp", src)
	require.NoError(t, err)
	assert.Equal(t, src, res.Text())
	assert.Empty(t, res.Warnings)
}

func TestInvalidHandlerCursor(t *testing.T) {
	bad := preprocessor.HandlerFunc(func(buf *preprocessor.Buffer, i int, _ *preprocessor.Context) (int, error) {
		return buf.Len() + 1, nil
	})
	e := pptest.NewEngine(t, preprocessor.WithDirective("bad", bad))
	_, err := e.Run(context.Background(), "main.pyp", "@bad\n")
	assert.True(t, errors.Is(err, preprocessor.ErrInvalidHandlerCursor))

	neg := preprocessor.HandlerFunc(func(*preprocessor.Buffer, int, *preprocessor.Context) (int, error) {
		return -1, nil
	})
	e = pptest.NewEngine(t, preprocessor.WithDirective("neg", neg))
	_, err = e.Run(context.Background(), "main.pyp", "@neg\n")
	assert.True(t, errors.Is(err, preprocessor.ErrInvalidHandlerCursor))
}

func TestPluginError(t *testing.T) {
	boom := errors.New("boom")
	fail := preprocessor.HandlerFunc(func(*preprocessor.Buffer, int, *preprocessor.Context) (int, error) {
		return 0, boom
	})
	_, err := pptest.NewEngine(t, preprocessor.WithDirective("fail", fail)).
		Run(context.Background(), "main.pyp", "x\n@fail\n")
	assert.True(t, errors.Is(err, boom))
	var pe *preprocessor.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, preprocessor.KindHandler, pe.Kind)
	assert.Equal(t, 2, pe.Pos.Line)
	assert.Equal(t, "@fail", pe.Handler)
}

func TestStepLimit(t *testing.T) {
	stuck := preprocessor.HandlerFunc(func(_ *preprocessor.Buffer, i int, _ *preprocessor.Context) (int, error) {
		return i, nil
	})
	e := pptest.NewEngine(t, preprocessor.WithDirective("stuck", stuck), preprocessor.WithMaxSteps(10))
	_, err := e.Run(context.Background(), "main.pyp", "@stuck\n")
	assert.True(t, errors.Is(err, preprocessor.ErrExpansionLimit))
}

func TestPassLimit(t *testing.T) {
	e := pptest.NewEngine(t, preprocessor.WithMaxPasses(3))
	res, err := e.Run(context.Background(), "main.pyp", "@define X [X]\nX\n")
	assert.True(t, errors.Is(err, preprocessor.ErrExpansionLimit))
	assert.Equal(t, 4, res.Passes)
	assert.Nil(t, res.Lines)
}

func TestLineLengthLimit(t *testing.T) {
	_, err := pptest.NewEngine(t).Run(context.Background(), "main.pyp", "@define X X X\nX\n")
	assert.True(t, errors.Is(err, preprocessor.ErrExpansionLimit))
}

func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pptest.NewEngine(t).Run(ctx, "main.pyp", "x\n")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCustomRegistry(t *testing.T) {
	r := preprocessor.NewRegistry(pptest.NewLogrus(t))
	preprocessor.RegisterAll(r, preprocessor.CoreDirectives(), false)
	e := pptest.NewEngine(t, preprocessor.WithRegistry(r))
	res, err := e.Run(context.Background(), "main.pyp", "@define N 2\n@repeat N\nx\n")
	require.NoError(t, err)
	assert.Equal(t, "@repeat 2\nx\n", res.Text(), "unregistered directives are plain text")
}

func TestPredefinedMacros(t *testing.T) {
	e := pptest.NewEngine(t, preprocessor.WithMacros(&preprocessor.Macro{Name: "DEBUG", Body: "True"}))
	res, err := e.Run(context.Background(), "main.pyp", "if DEBUG:\n    pass\n")
	require.NoError(t, err)
	assert.Equal(t, "if True:\n    pass\n", res.Text())
}

func TestRunContextKeepsMacros(t *testing.T) {
	e := pptest.NewEngine(t)
	pctx := e.NewContext("<repl>")
	_, err := e.RunContext(context.Background(), pctx, preprocessor.NewBuffer("<repl>", "@define X 41\n"))
	require.NoError(t, err)
	res, err := e.RunContext(context.Background(), pctx, preprocessor.NewBuffer("<repl>", "X + 1\n"))
	require.NoError(t, err)
	assert.Equal(t, "41 + 1\n", res.Text())
	assert.Equal(t, preprocessor.StateFinished, pctx.State)
	pptest.AssertMacroTable(t, pctx.Macros)
}

func TestGoldenFiles(t *testing.T) {
	r := &pptest.Runner{}
	r.RunDir(t, "testdata")
}

func BenchmarkRun(b *testing.B) {
	src := strings.Repeat("@define ADD(a,b) a+b\nx = ADD[1,2] + __COUNTER__\n@repeat 2\ny = x\n@end\n", 50)
	pptest.Benchmark(b, src)
}
