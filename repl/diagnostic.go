// Copyright © 2024 The ELPS authors

package repl

import (
	"errors"
	"io"

	"github.com/luthersystems/pyplus/diagnostic"
	"github.com/luthersystems/pyplus/preprocessor"
)

// renderError renders a preprocessing error using the diagnostic renderer
// for Rust-style annotated output. Source lines come from the input the
// session has seen, including any files it included.
func renderError(w io.Writer, err error, sources map[string]string, color diagnostic.ColorMode) {
	d := errorToDiag(err)
	r := &diagnostic.Renderer{Color: color, SourceReader: diagnostic.MapSource(sources)}
	_ = r.Render(w, d)
}

// renderWarnings renders warnings the same way as errors.
func renderWarnings(w io.Writer, warnings []preprocessor.Warning, sources map[string]string, color diagnostic.ColorMode) {
	r := &diagnostic.Renderer{Color: color, SourceReader: diagnostic.MapSource(sources)}
	for _, warn := range warnings {
		_ = r.Render(w, warn.Diagnostic())
	}
}

// errorToDiag converts a run error to a Diagnostic for display.
func errorToDiag(err error) diagnostic.Diagnostic {
	var pe *preprocessor.Error
	if errors.As(err, &pe) {
		d := pe.Diagnostic()
		if pe.Kind == preprocessor.KindUnknownDirective {
			d.Notes = append(d.Notes, "type @ and press tab to list directives")
		}
		return d
	}
	return diagnostic.Diagnostic{
		Severity: diagnostic.SeverityError,
		Message:  err.Error(),
	}
}
