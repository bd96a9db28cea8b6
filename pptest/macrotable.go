// Copyright © 2018 The ELPS authors

package pptest

import (
	"testing"

	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/stretchr/testify/assert"
)

// AssertMacroTable checks the properties every macro table must satisfy:
//
//		Len agrees with the length of Macros
//
//		Repeated calls to Macros return the same macros in the same order
//
//		No two macros share a name
//
//		Lookup of each name returns the macro listed under it
//
// It does not check which macros are defined or their order relative to the
// source.
func AssertMacroTable(t *testing.T, table *preprocessor.MacroTable) bool {
	t.Helper()
	ms := table.Macros()
	ok := assert.Len(t, ms, table.Len(), "Len disagrees with Macros")
	ok = assert.Equal(t, ms, table.Macros(), "Macros is not stable") && ok
	seen := make(map[string]bool, len(ms))
	for _, m := range ms {
		ok = assert.False(t, seen[m.Name], "duplicate macro %s", m.Name) && ok
		seen[m.Name] = true
		got, found := table.Lookup(m.Name)
		ok = assert.True(t, found, "Lookup(%s) failed", m.Name) && ok
		ok = assert.Same(t, m, got, "Lookup(%s) returned a different macro", m.Name) && ok
	}
	return ok
}
