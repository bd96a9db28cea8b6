// Copyright © 2024 The ELPS authors

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/luthersystems/pyplus/lsp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// LSPCommand creates the "lsp" cobra command with optional embedder
// configuration. Embedders can pass WithExtensions so that the server
// knows their directives.
func LSPCommand(opts ...Option) *cobra.Command {
	cfg := newCmdConfig(opts...)

	var (
		stdio       bool
		port        int
		includeDirs []string
	)

	cmd := &cobra.Command{
		Use:   "lsp [flags]",
		Short: "Start the pyplus Language Server Protocol server",
		Long: `Start an LSP server for pyplus source files.

The language server provides diagnostics from preprocessing and linting,
hover documentation for directives and macros, go-to-definition,
completion and document symbols.

Transport modes:
  --stdio      Use stdin/stdout for LSP communication (default)
  --port N     Listen for an LSP client on TCP port N

Examples:
  pyplus lsp                           Start with stdio transport
  pyplus lsp --stdio                   Same as above (explicit)
  pyplus lsp --port 7998               Start with TCP on port 7998
  pyplus lsp --include-dir ./lib       Also resolve @include in ./lib

Editor configuration (VS Code):
  Install a generic LSP client extension and configure it to run
  "pyplus lsp --stdio" for .pyp files.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// stdout carries the protocol, so logs stay quiet.
			log := logrus.New()
			log.SetOutput(io.Discard)
			srv := lsp.New(
				lsp.WithLogger(log),
				lsp.WithRegistry(cfg.extensionSet().Registry(log)),
				lsp.WithIncludeDirs(append(includeDirs, viper.GetStringSlice("include-dir")...)...),
			)

			if !stdio && port > 0 {
				addr := fmt.Sprintf("localhost:%d", port)
				fmt.Fprintf(os.Stderr, "pyplus LSP server listening on %s\n", addr)
				if err := srv.RunTCP(addr); err != nil {
					return failf(exitFailure, "lsp server error: %w", err)
				}
				return nil
			}
			if err := srv.RunStdio(); err != nil {
				return failf(exitFailure, "lsp server error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&stdio, "stdio", false,
		"Use stdin/stdout for LSP communication (default behavior)")
	cmd.Flags().IntVar(&port, "port", 0,
		"TCP port for LSP server (use instead of --stdio)")
	cmd.Flags().StringArrayVar(&includeDirs, "include-dir", nil,
		"Additional directory searched by @include (may be repeated)")

	return cmd
}
