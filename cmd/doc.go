// Copyright © 2021 The ELPS authors

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/luthersystems/pyplus/buildvars"
	"github.com/luthersystems/pyplus/docs"
	"github.com/luthersystems/pyplus/extension"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
)

const docWidth = 72

// DocCommand creates the "doc" cobra command. Embedders can pass
// WithExtensions to document their own directives.
func DocCommand(opts ...Option) *cobra.Command {
	cfg := newCmdConfig(opts...)

	var (
		docGuide      bool
		docExtensions bool
		docBuiltins   bool
	)

	cmd := &cobra.Command{
		Use:   "doc [flags] [DIRECTIVE]",
		Short: "Show documentation for directives, extensions and built-in macros",
		Long: `Show built-in documentation for pyplus directives.

With no argument, lists every directive grouped by the extension that
provides it. With a directive name (the @ is optional), shows its full
description.

Examples:
  pyplus doc                   List all directives
  pyplus doc repeat            Show docs for @repeat
  pyplus doc -x                List extensions and whether they are on by default
  pyplus doc -b                List built-in macros
  pyplus doc --guide           Print the complete directive reference`,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := bufio.NewWriter(cmd.OutOrStdout())
			defer out.Flush() //nolint:errcheck // best-effort flush on exit

			exts := cfg.extensionSet()
			switch {
			case docGuide:
				_, err := io.WriteString(out, docs.Guide)
				return err
			case docExtensions:
				return renderExtensionList(out, exts)
			case docBuiltins:
				return renderBuiltins(out)
			case len(args) == 1:
				return renderDirective(out, exts, args[0])
			default:
				return renderDirectiveList(out, exts)
			}
		},
	}

	cmd.Flags().BoolVar(&docGuide, "guide", false,
		"Print the complete directive reference.")
	cmd.Flags().BoolVarP(&docExtensions, "extensions", "x", false,
		"List extensions with their default state.")
	cmd.Flags().BoolVarP(&docBuiltins, "builtins", "b", false,
		"List the built-in macros.")

	return cmd
}

func wrapDoc(doc string) string {
	return indent.String(wordwrap.String(doc, docWidth), 2)
}

// renderDirectiveList lists the directives of every extension.
func renderDirectiveList(w io.Writer, exts *extension.Set) error {
	for _, ext := range exts.Extensions() {
		if ext.Directives == nil {
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", ext.Name, ext.Doc) //nolint:errcheck // checked on flush
		ds := ext.Directives()
		names := make([]string, 0, len(ds))
		for name := range ds {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-12s %s\n", preprocessor.NormalizeName(name), handlerDoc(ds[name])) //nolint:errcheck // checked on flush
		}
	}
	return nil
}

// renderDirective shows the full documentation of one directive.
func renderDirective(w io.Writer, exts *extension.Set, query string) error {
	name := preprocessor.NormalizeName(query)
	for _, ext := range exts.Extensions() {
		if ext.Directives == nil {
			continue
		}
		for dname, h := range ext.Directives() {
			if preprocessor.NormalizeName(dname) != name {
				continue
			}
			doc := docs.Section(name)
			if doc == "" {
				doc = handlerDoc(h)
			}
			_, err := fmt.Fprintf(w, "%s (extension %s)\n\n%s\n", name, ext.Name, wrapDoc(doc))
			return err
		}
	}
	return failf(exitFailure, "no directive named %s (run pyplus doc for a list)", name)
}

// renderExtensionList lists extensions with their default state.
func renderExtensionList(w io.Writer, exts *extension.Set) error {
	for _, ext := range exts.Extensions() {
		state := "off"
		switch {
		case ext.Required:
			state = "required"
		case exts.Enabled(ext.Name):
			state = "on"
		}
		fmt.Fprintf(w, "%-20s %-8s %s\n", ext.Name, state, ext.Doc) //nolint:errcheck // checked on flush
	}
	return nil
}

// renderBuiltins lists the built-in macros with their current values.
func renderBuiltins(w io.Writer) error {
	for _, v := range buildvars.Table() {
		value := v.Value
		if v.Dynamic != nil {
			value = "(computed at each use)"
		}
		fmt.Fprintf(w, "%-20s %s\n", v.Name, strings.TrimSpace(value)) //nolint:errcheck // checked on flush
	}
	return nil
}

func handlerDoc(h preprocessor.Handler) string {
	if d, ok := h.(preprocessor.Documented); ok {
		return d.Doc()
	}
	return ""
}
