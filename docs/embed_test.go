// Copyright © 2024 The ELPS authors

package docs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSection(t *testing.T) {
	s := Section("@mirror")
	assert.Equal(t, "`@mirror` followed by a block emits the body lines in reverse order.", s)

	s = Section("@define")
	assert.Contains(t, s, "parameterized macro")
	assert.NotContains(t, s, "## @undef")

	assert.Empty(t, Section("@nope"))
}

func TestGuideCoversDirectives(t *testing.T) {
	for _, name := range []string{
		"@define", "@undef", "@end", "@include", "@repeat", "@invisible",
		"@mirror", "@random", "@debug", "@info", "@warning", "@error",
	} {
		assert.NotEmpty(t, Section(name), name)
	}
}
