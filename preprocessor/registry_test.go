// Copyright © 2024 The ELPS authors

package preprocessor_test

import (
	"errors"
	"testing"

	"github.com/luthersystems/pyplus/pptest"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopHandler(buf *preprocessor.Buffer, i int, _ *preprocessor.Context) (int, error) {
	buf.Splice(i, i+1)
	return i, nil
}

func TestRegisterNormalizesName(t *testing.T) {
	r := preprocessor.NewRegistry(pptest.NewLogrus(t))
	assert.True(t, r.Register("shout", preprocessor.HandlerFunc(nopHandler), false))
	_, ok := r.Lookup("@shout")
	assert.True(t, ok)
	_, ok = r.Lookup("shout")
	assert.True(t, ok)
	assert.Equal(t, []string{"@shout"}, r.Names())
}

func TestRegisterOverwritePolicy(t *testing.T) {
	r := preprocessor.NewRegistry(pptest.NewLogrus(t))
	first := preprocessor.HandlerFunc(nopHandler)
	second := preprocessor.HandlerFunc(func(*preprocessor.Buffer, int, *preprocessor.Context) (int, error) {
		return 0, errors.New("second")
	})
	require.True(t, r.Register("@x", first, false))
	assert.False(t, r.Register("x", second, false), "existing handler is kept")

	h, _ := r.Lookup("x")
	_, err := h.Handle(preprocessor.NewBuffer("f", "@x\n"), 0, nil)
	assert.NoError(t, err)

	assert.True(t, r.Register("x", second, true))
	h, _ = r.Lookup("x")
	_, err = h.Handle(preprocessor.NewBuffer("f", "@x\n"), 0, nil)
	assert.EqualError(t, err, "second")
}

func TestUnregister(t *testing.T) {
	r := preprocessor.DefaultRegistry(pptest.NewLogrus(t))
	require.NoError(t, r.Unregister("repeat"))
	assert.False(t, r.IsDirective("@repeat 3"))

	err := r.Unregister("@repeat")
	assert.True(t, errors.Is(err, preprocessor.ErrNotRegistered))
	var pe *preprocessor.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "@repeat", pe.Ident)
}

func TestIsDirective(t *testing.T) {
	r := preprocessor.DefaultRegistry(pptest.NewLogrus(t))
	for line, want := range map[string]bool{
		"@define X 1":          true,
		"    @define X 1":      true,
		"\t@end":               true,
		"@end":                 true,
		"@property":            false,
		"@defined_later":       false,
		"@define(x)":           false,
		"@dataclass(frozen=1)": false,
		"x = a @ b":            false,
		"# @define X 1":        false,
		"@":                    false,
		"":                     false,
	} {
		assert.Equal(t, want, r.IsDirective(line), line)
	}

	assert.True(t, r.IsDirective("@include a.pyp", "include"))
	assert.True(t, r.IsDirective("@include a.pyp", "@define", "@include"))
	assert.False(t, r.IsDirective("@include a.pyp", "@define"))
}

func TestResolve(t *testing.T) {
	r := preprocessor.DefaultRegistry(pptest.NewLogrus(t))
	name, h, err := r.Resolve("  @repeat 2")
	require.NoError(t, err)
	assert.Equal(t, "@repeat", name)
	assert.NotNil(t, h)

	_, _, err = r.Resolve("@bogus 1")
	assert.True(t, errors.Is(err, preprocessor.ErrUnknownDirective))
	assert.Contains(t, err.Error(), "@bogus")

	_, _, err = r.Resolve("plain text")
	assert.True(t, errors.Is(err, preprocessor.ErrUnknownDirective))
}

func TestRegistryDocs(t *testing.T) {
	r := preprocessor.DefaultRegistry(pptest.NewLogrus(t))
	assert.Equal(t, []string{
		"@debug", "@define", "@end", "@error", "@include", "@info",
		"@invisible", "@mirror", "@random", "@repeat", "@undef", "@warning",
	}, r.Names())
	for _, name := range r.Names() {
		assert.NotEmpty(t, r.Doc(name), name)
	}
	r.Register("plain", preprocessor.HandlerFunc(nopHandler), false)
	assert.Empty(t, r.Doc("plain"))
}

func TestDirectiveName(t *testing.T) {
	name, ok := preprocessor.DirectiveName("   @repeat 4")
	assert.True(t, ok)
	assert.Equal(t, "@repeat", name)

	_, ok = preprocessor.DirectiveName("@property()")
	assert.False(t, ok)
	_, ok = preprocessor.DirectiveName("repeat 4")
	assert.False(t, ok)
}
