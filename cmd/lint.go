// Copyright © 2024 The ELPS authors

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/luthersystems/pyplus/extension"
	"github.com/luthersystems/pyplus/lint"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// LintCommand creates the "lint" cobra command. Embedders can pass
// WithExtensions so that their directives are recognized.
func LintCommand(opts ...Option) *cobra.Command {
	cfg := newCmdConfig(opts...)

	var (
		lintJSON     bool
		lintChecks   string
		lintListAll  bool
		lintExcludes []string
		lintEnable   []string
		lintDisable  []string
	)

	cmd := &cobra.Command{
		Use:   "lint [flags] [files...]",
		Short: "Run static analysis checks on pyplus source files",
		Long: `Run static analysis checks on pyplus source files.

The linter reports likely mistakes in directives and macro invocations,
similar to "go vet" for Go. Each check is an independent analyzer that
examines the unprocessed source. Included files are not followed; lint them
separately.

With no files, reads from stdin. A path ending in /... stands for every .pyp
file below that directory.

Exit codes:
  0  No problems found
  1  One or more problems were reported
  2  Bad invocation (invalid flags, unreadable files)

To suppress a specific diagnostic, add a comment on the same line:
  @define PI 3.14  # nolint:redefine

To suppress all checks on a line:
  @define PI 3.14  # nolint

Available checks (use --checks to select specific ones):
` + lint.AnalyzerDoc() + `
Examples:
  pyplus lint main.pyp                          # Lint a single file
  pyplus lint ./...                             # Lint every .pyp file
  pyplus lint --json main.pyp                   # Output diagnostics as JSON
  pyplus lint --checks=macro-arity main.pyp     # Run only specific checks
  pyplus lint --list                            # List available checks
  pyplus lint --exclude='vendor' ./...          # Exclude a directory
  cat main.pyp | pyplus lint                    # Lint from stdin`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if lintListAll {
				for _, name := range lint.AnalyzerNames() {
					fmt.Fprintln(out, name) //nolint:errcheck // best-effort output
				}
				return nil
			}

			analyzers, err := selectAnalyzers(lintChecks)
			if err != nil {
				return err
			}

			exts := cfg.extensionSet()
			if err := exts.Configure(extension.ParseList(lintEnable...), extension.ParseList(lintDisable...)); err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			log := logrus.New()
			log.SetOutput(io.Discard)
			l := &lint.Linter{Analyzers: analyzers, Registry: exts.Registry(log)}

			var allDiags []lint.Diagnostic
			if len(args) == 0 {
				src, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return failf(exitFailure, "reading stdin: %w", err)
				}
				diags, err := l.LintFile(src, "<stdin>")
				if err != nil {
					return &exitError{code: exitFailure, err: err}
				}
				allDiags = diags
			} else {
				expanded, err := expandArgs(args, lintExcludes)
				if err != nil {
					return &exitError{code: exitFailure, err: err}
				}
				for _, path := range expanded {
					diags, err := lintFile(l, path)
					if err != nil {
						return &exitError{code: exitFailure, err: err}
					}
					allDiags = append(allDiags, diags...)
				}
			}

			if len(allDiags) == 0 {
				return nil
			}
			if lintJSON {
				if err := lint.FormatJSON(out, allDiags); err != nil {
					return &exitError{code: exitFailure, err: err}
				}
			} else {
				renderLintDiagnosticsTo(cmd.ErrOrStderr(), newRenderer(), allDiags)
			}
			return reported(exitPreprocess)
		},
	}

	cmd.Flags().BoolVar(&lintJSON, "json", false,
		"Output diagnostics as JSON.")
	cmd.Flags().StringVar(&lintChecks, "checks", "",
		"Comma-separated list of checks to run (default: all).")
	cmd.Flags().BoolVar(&lintListAll, "list", false,
		"List available checks and exit.")
	cmd.Flags().StringArrayVar(&lintExcludes, "exclude", nil,
		"Glob pattern for files to exclude (may be repeated).")
	cmd.Flags().StringSliceVar(&lintEnable, "enable", nil,
		"Extensions whose directives are recognized in addition to the defaults.")
	cmd.Flags().StringSliceVar(&lintDisable, "disable", nil,
		"Extensions whose directives are treated as plain text.")

	return cmd
}

// selectAnalyzers returns the default analyzers named in checks, or all of
// them when checks is empty.
func selectAnalyzers(checks string) ([]*lint.Analyzer, error) {
	analyzers := lint.DefaultAnalyzers()
	if checks == "" {
		return analyzers, nil
	}
	selected := make(map[string]bool)
	for _, name := range strings.Split(checks, ",") {
		selected[strings.TrimSpace(name)] = true
	}
	var filtered []*lint.Analyzer
	for _, a := range analyzers {
		if selected[a.Name] {
			filtered = append(filtered, a)
			delete(selected, a.Name)
		}
	}
	for name := range selected {
		return nil, failf(exitFailure, "unknown check: %s", name)
	}
	return filtered, nil
}

func lintFile(l *lint.Linter, path string) ([]lint.Diagnostic, error) {
	src, err := os.ReadFile(path) //nolint:gosec // CLI tool reads user-specified files
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l.LintFile(src, path)
}
