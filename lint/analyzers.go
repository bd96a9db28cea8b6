// Copyright © 2024 The ELPS authors

package lint

import (
	"errors"
	"strconv"
	"strings"

	"github.com/luthersystems/pyplus/buildvars"
	"github.com/luthersystems/pyplus/preprocessor"
)

// AnalyzerBlockBalance reports blocks that are never closed and @end
// lines without an open block.
var AnalyzerBlockBalance = &Analyzer{
	Name:     "block-balance",
	Doc:      "Check that every block directive is closed by @end.\n\nBlock directives such as @repeat, @invisible and the block form of @define consume the lines up to the matching @end. A missing @end fails preprocessing, as does an @end with no open block.",
	Severity: SeverityError,
	Run: func(pass *Pass) error {
		var open []*Directive
		for _, d := range pass.Directives {
			switch {
			case d.Is("end"):
				if len(open) == 0 {
					pass.Report(Diagnostic{
						Pos:     Position{Line: d.Line, Col: d.Col},
						Len:     len(d.Name),
						Message: "@end without an open block",
					})
					continue
				}
				open = open[:len(open)-1]
			case pass.Registry.OpensBlock(d.Text):
				open = append(open, d)
			}
		}
		for _, d := range open {
			pass.ReportWithNotes(Diagnostic{
				Pos:     Position{Line: d.Line, Col: d.Col},
				Len:     len(d.Name),
				Message: d.Name + " block is never closed by @end",
			}, "the block extends to the end of the file")
		}
		return nil
	},
}

// AnalyzerDefineSyntax reports define and undef headers that do not parse.
var AnalyzerDefineSyntax = &Analyzer{
	Name:     "define-syntax",
	Doc:      "Check the headers of @define and @undef.\n\nA macro name must be an identifier. A parameter list must follow the name without a space and may not repeat a parameter.",
	Severity: SeverityError,
	Run: func(pass *Pass) error {
		for _, d := range pass.Directives {
			var err error
			switch {
			case d.Is("define"):
				_, err = preprocessor.ParseDefine(d.Text)
			case d.Is("undef"):
				_, _, err = preprocessor.ParseUndef(d.Text)
			default:
				continue
			}
			var pe *preprocessor.Error
			if errors.As(err, &pe) {
				pass.Report(Diagnostic{
					Pos:     Position{Line: d.Line, Col: pe.Pos.Col},
					Len:     pe.Pos.Len,
					Message: pe.Msg,
				})
			}
		}
		return nil
	},
}

// AnalyzerRedefine warns when a macro is defined again without an
// intervening @undef, or when a built-in macro is redefined.
var AnalyzerRedefine = &Analyzer{
	Name:     "redefine",
	Doc:      "Warn when a macro is redefined.\n\nThe last definition of a macro wins and moves to the end of the macro table, which changes expansion order. Use @undef first when the redefinition is intended.",
	Severity: SeverityWarning,
	Run: func(pass *Pass) error {
		builtin := make(map[string]bool)
		for _, name := range buildvars.Names() {
			builtin[name] = true
		}
		defined := make(map[string]*Directive)
		for _, d := range pass.Directives {
			switch {
			case d.Is("undef"):
				if name, _, err := preprocessor.ParseUndef(d.Text); err == nil {
					delete(defined, name)
					delete(builtin, name)
				}
			case d.Is("define"):
				def, err := preprocessor.ParseDefine(d.Text)
				if err != nil {
					continue
				}
				pos := Position{Line: d.Line, Col: def.Col}
				if prev, ok := defined[def.Name]; ok {
					pass.ReportWithNotes(Diagnostic{Pos: pos, Len: len(def.Name),
						Message: "macro " + def.Name + " redefined"},
						"previous definition on line "+strconv.Itoa(prev.Line))
				} else if builtin[def.Name] {
					pass.Report(Diagnostic{Pos: pos, Len: len(def.Name),
						Message: "redefinition of built-in macro " + def.Name})
				}
				defined[def.Name] = d
			}
		}
		return nil
	},
}

// AnalyzerUnusedMacro reports macros that are defined but never used in
// the file.
var AnalyzerUnusedMacro = &Analyzer{
	Name:     "unused-macro",
	Doc:      "Report macros that are never used.\n\nA macro defined in a file that only collects definitions for inclusion is used elsewhere; suppress the check there with `# nolint:unused-macro`. Names starting with an underscore are exempt.",
	Severity: SeverityInfo,
	Run: func(pass *Pass) error {
		used := make(map[string]bool)
		for _, u := range pass.Uses() {
			used[u.Name] = true
		}
		for _, def := range pass.Definitions() {
			if used[def.Name] || strings.HasPrefix(def.Name, "_") {
				continue
			}
			pass.Report(Diagnostic{
				Pos:     Position{Line: def.Directive.Line, Col: def.Col},
				Len:     len(def.Name),
				Message: "macro " + def.Name + " is never used",
			})
		}
		return nil
	},
}

// AnalyzerMacroArity checks calls of parameterized macros defined in the
// file against their parameter count.
var AnalyzerMacroArity = &Analyzer{
	Name:     "macro-arity",
	Doc:      "Check the argument count of macro calls.\n\nA parameterized macro is called as NAME[a, b] with exactly as many arguments as it has parameters. Calls are checked after the definition they refer to.",
	Severity: SeverityError,
	Run: func(pass *Pass) error {
		defs := pass.Definitions()
		uses := pass.Uses()
		for _, u := range uses {
			if !u.Call {
				continue
			}
			def := lastDefinitionBefore(defs, u.Name, u.Line)
			if def == nil || def.Params == nil {
				continue
			}
			if !u.Closed {
				pass.Reportf(u.Line, u.Col, "unterminated argument list in call of macro %s", u.Name)
				continue
			}
			if len(u.Args) != len(def.Params) {
				pass.ReportWithNotes(Diagnostic{
					Pos:     Position{Line: u.Line, Col: u.Col},
					Len:     len(u.Name),
					Message: "macro " + u.Name + " expects " + strconv.Itoa(len(def.Params)) + " arguments, got " + strconv.Itoa(len(u.Args)),
				}, "defined on line "+strconv.Itoa(def.Directive.Line)+" as "+signature(def))
			}
		}
		return nil
	},
}

func lastDefinitionBefore(defs []Definition, name string, line int) *Definition {
	var found *Definition
	for i := range defs {
		if defs[i].Name == name && defs[i].Directive.Line < line {
			found = &defs[i]
		}
	}
	return found
}

func signature(def *Definition) string {
	return (&preprocessor.Macro{Name: def.Name, Params: def.Params}).Signature()
}

// AnalyzerIncludeName checks include targets.
var AnalyzerIncludeName = &Analyzer{
	Name:     "include-name",
	Doc:      "Check that include targets are plain file names.\n\nInclude targets are looked up in the include directories by name. Paths, reserved characters and control characters are rejected, and a file should not include itself.",
	Severity: SeverityError,
	Run: func(pass *Pass) error {
		for _, d := range pass.Directives {
			if !d.Is("include") {
				continue
			}
			name, col, err := preprocessor.ParseInclude(d.Text)
			var pe *preprocessor.Error
			if errors.As(err, &pe) {
				pass.Reportf(d.Line, pe.Pos.Col, "%s", pe.Msg)
				continue
			}
			if err := preprocessor.CheckFilename(name); errors.As(err, &pe) {
				pass.Report(Diagnostic{Pos: Position{Line: d.Line, Col: col}, Len: len(name), Message: pe.Msg})
				continue
			}
			if name == baseName(pass.Filename) {
				pass.Report(Diagnostic{Pos: Position{Line: d.Line, Col: col}, Len: len(name),
					Message: "file includes itself"})
			}
		}
		return nil
	},
}

func baseName(file string) string {
	if i := strings.LastIndexAny(file, `/\`); i >= 0 {
		return file[i+1:]
	}
	return file
}

// AnalyzerRepeatCount checks that @repeat counts are non-negative
// integers, either literally or through a plain macro defined earlier.
var AnalyzerRepeatCount = &Analyzer{
	Name:     "repeat-count",
	Doc:      "Check @repeat counts.\n\nThe count is macro-expanded and must then be a non-negative integer. Counts naming a macro are resolved through plain definitions earlier in the file; other macros are assumed to be defined by an include.",
	Severity: SeverityError,
	Run: func(pass *Pass) error {
		defs := pass.Definitions()
		for _, d := range pass.Directives {
			if !d.Is("repeat") {
				continue
			}
			count := d.Args
			if preprocessor.IsIdent(count) {
				def := lastDefinitionBefore(defs, count, d.Line)
				if def == nil || def.Params != nil || def.Block() {
					continue
				}
				count = def.Body
			}
			if _, err := preprocessor.ParseCount(count); err != nil {
				var pe *preprocessor.Error
				msg := err.Error()
				if errors.As(err, &pe) {
					msg = pe.Msg
				}
				pass.Report(Diagnostic{Pos: Position{Line: d.Line, Col: d.ArgsCol}, Len: len(d.Args), Message: msg})
			}
		}
		return nil
	},
}

// AnalyzerUnknownDirective reports lines that look like directives but
// name no registered directive. Python decorators are recognized by the
// definition that follows them and are not reported.
var AnalyzerUnknownDirective = &Analyzer{
	Name:     "unknown-directive",
	Doc:      "Report unknown directives.\n\nA line starting with @name that is not a registered directive passes through preprocessing unchanged. Unless it decorates a def or class it is probably a misspelled directive.",
	Severity: SeverityWarning,
	Run: func(pass *Pass) error {
		known := pass.Registry.Names()
		for i, line := range pass.Lines {
			name, ok := preprocessor.DirectiveName(line)
			if !ok {
				continue
			}
			if _, ok := pass.Registry.Lookup(name); ok {
				continue
			}
			if decorates(pass.Lines[i+1:]) {
				continue
			}
			d := Diagnostic{
				Pos:     Position{Line: i + 1, Col: len(line) - len(strings.TrimLeft(line, " \t")) + 1},
				Len:     len(name),
				Message: "unknown directive " + name,
			}
			if s := closest(name, known); s != "" {
				pass.ReportWithNotes(d, "did you mean "+s+"?")
				continue
			}
			pass.Report(d)
		}
		return nil
	},
}

// decorates reports whether the next non-blank line starts a decorated
// definition.
func decorates(rest []string) bool {
	for _, line := range rest {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.HasPrefix(line, "@") ||
			strings.HasPrefix(line, "def ") ||
			strings.HasPrefix(line, "async def ") ||
			strings.HasPrefix(line, "class ")
	}
	return false
}

// closest returns the known name within edit distance 2 of name.
func closest(name string, known []string) string {
	best, bestDist := "", 3
	for _, k := range known {
		if d := editDistance(name, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
