// Copyright © 2024 The ELPS authors

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/luthersystems/pyplus/docs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeDoc(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := DocCommand()
	cmd.SetArgs(append([]string{}, args...))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestDocCommand_DefaultFlags(t *testing.T) {
	cmd := DocCommand()
	assert.Equal(t, "doc [flags] [DIRECTIVE]", cmd.Use)

	for _, name := range []string{"guide", "extensions", "builtins"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestDocCommand_List(t *testing.T) {
	out, err := executeDoc(t)
	require.NoError(t, err)
	assert.Contains(t, out, "core: macro definitions and file inclusion\n")
	assert.Contains(t, out, "  @repeat      emit the block body N times\n")
	assert.NotContains(t, out, "strip-comments", "extensions without directives are not listed")
}

func TestDocCommand_Directive(t *testing.T) {
	out, err := executeDoc(t, "mirror")
	require.NoError(t, err)
	assert.Equal(t, "@mirror (extension blocks)\n\n  `@mirror` followed by a block emits the body lines in reverse order.\n", out)

	out, err = executeDoc(t, "@define")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "@define (extension core)\n\n  "), out)

	_, err = executeDoc(t, "bogus")
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, err.Error(), "no directive named @bogus")
}

func TestDocCommand_ExtensionsAndBuiltins(t *testing.T) {
	out, err := executeDoc(t, "-x")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^core\s+required\s`, out)
	assert.Regexp(t, `(?m)^strip-comments\s+off\s`, out)
	assert.Regexp(t, `(?m)^trim-trailing-space\s+on\s`, out)

	out, err = executeDoc(t, "-b")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^__MAGIC_CODE__\s+11259375$`, out)
	assert.Regexp(t, `(?m)^__VERSION__\s+"1\.0\.0"$`, out)
	assert.Regexp(t, `(?m)^__COUNTER__\s+\(computed at each use\)$`, out)

	out, err = executeDoc(t, "--guide")
	require.NoError(t, err)
	assert.Equal(t, docs.Guide, out)
}
