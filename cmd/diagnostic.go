// Copyright © 2024 The ELPS authors

package cmd

import (
	"errors"
	"io"

	"github.com/luthersystems/pyplus/diagnostic"
	lintpkg "github.com/luthersystems/pyplus/lint"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/spf13/viper"
)

func colorMode() diagnostic.ColorMode {
	mode, err := diagnostic.ParseColorMode(viper.GetString("color"))
	if err != nil {
		return diagnostic.ColorAuto
	}
	return mode
}

func newRenderer() *diagnostic.Renderer {
	return &diagnostic.Renderer{Color: colorMode()}
}

// runErrorToDiagnostic converts a failed run to a Diagnostic for display.
func runErrorToDiagnostic(err error) diagnostic.Diagnostic {
	var pe *preprocessor.Error
	if !errors.As(err, &pe) {
		return diagnostic.Diagnostic{
			Severity: diagnostic.SeverityError,
			Message:  err.Error(),
		}
	}
	d := pe.Diagnostic()
	if pe.Filename != "" && pe.Kind == preprocessor.KindFileNotFound {
		d.Notes = append(d.Notes, "add the directory holding "+pe.Filename+" with --include-dir")
	}
	return d
}

// renderRunError renders a preprocessing error against the sources the
// run loaded.
func renderRunError(w io.Writer, err error, sources map[string]string, color diagnostic.ColorMode) {
	r := &diagnostic.Renderer{Color: color}
	if sources != nil {
		r.SourceReader = diagnostic.MapSource(sources)
	}
	_ = r.Render(w, runErrorToDiagnostic(err))
}

// lintDiagToDiagnostic converts a lint.Diagnostic to a diagnostic.Diagnostic.
func lintDiagToDiagnostic(ld lintpkg.Diagnostic) diagnostic.Diagnostic {
	d := ld.Diagnostic()
	d.Notes = append(append([]string(nil), d.Notes...), "to suppress: add \"# nolint:"+ld.Analyzer+"\" as a comment on this line")
	return d
}

func renderLintDiagnosticsTo(w io.Writer, r *diagnostic.Renderer, diags []lintpkg.Diagnostic) {
	var ds []diagnostic.Diagnostic
	for _, ld := range diags {
		ds = append(ds, lintDiagToDiagnostic(ld))
	}
	_ = r.RenderAll(w, ds)
}
