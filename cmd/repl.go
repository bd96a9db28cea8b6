// Copyright © 2018 The ELPS authors

package cmd

import (
	"os"
	"path/filepath"

	"github.com/luthersystems/pyplus/extension"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/luthersystems/pyplus/repl"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// replCmd represents the repl command
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive pyplus session",
	Long: `Start an interactive session that preprocesses each input as soon as
it is complete and prints the result.

Macros stay defined for the rest of the session. A line opening a block
(such as @repeat 2 or a @define without a body) switches to a continuation
prompt until the matching @end. @include reads files from the current
directory and from --include-dir. Line editing, history and tab completion
of directives and macros are supported via readline. Use Ctrl-D to exit and
Ctrl-C to discard a partially entered block.

Example session:
  pyplus> @define GREETING "hello"
  pyplus> print(GREETING)
  print("hello")
  pyplus> @repeat 2
          x += 1
          @end
  x += 1
  x += 1`,
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		exts := rootCfg.extensionSet()
		if err := exts.Configure(extension.ParseList(viper.GetStringSlice("enable")...),
			extension.ParseList(viper.GetStringSlice("disable")...)); err != nil {
			return &exitError{code: exitFailure, err: err}
		}
		log := newLogger(os.Stderr, viper.GetBool("verbose"))
		roots := dirRoots(".", viper.GetStringSlice("include-dir"))
		engine := preprocessor.New(
			preprocessor.WithLogger(log),
			preprocessor.WithRegistry(exts.Registry(log)),
			preprocessor.WithIncludeFS(roots...),
		)
		return repl.RunRepl(filepath.Base(os.Args[0])+"> ",
			repl.WithEngine(engine),
			repl.WithColor(colorMode()),
		)
	},
}
