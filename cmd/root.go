// Copyright © 2018 The ELPS authors

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/luthersystems/pyplus/buildvars"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	colorFlag string
	rootCfg   = newCmdConfig()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pyplus -i INPUT [flags]",
	Short: "pyplus: a directive preprocessor for Python sources",
	Long: `pyplus expands directives and macros in Python+ sources and writes
plain Python.

Getting started:
  pyplus -i main.pyp                  Preprocess main.pyp into out.py
  pyplus -i main.pyp -o app.py        Choose the output file
  pyplus -i main.pyp --check-only     Report problems without writing
  pyplus -i main.pyp -E               Write the expanded intermediate out.i
  pyplus -i main.pyp -D DEBUG=0       Predefine a macro
  pyplus lint main.pyp                Run static checks on sources
  pyplus doc                          List the available directives
  pyplus repl                         Preprocess interactively

Directives start a line with @:
  @define NAME body        @define NAME(a, b) body      @undef NAME
  @include "file.pyp"      @repeat N ... @end           @invisible ... @end
  @mirror ... @end         @random ... @end             @error message

Parameterized macros are invoked as NAME[arg1, arg2].

Exit codes:
  0  Success
  1  The input failed to preprocess (a diagnostic is printed)
  2  Bad invocation or unexpected failure
  3  The input, an included file or the output could not be accessed

Every flag can be set in the config file ($HOME/.pyplus.yaml) or through
an environment variable such as PYPLUS_INCLUDE_DIR.`,
	Version:       buildvars.Version,
	Args:          cobra.MaximumNArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := preprocessOptionsFromConfig(args)
		if err != nil {
			return err
		}
		return preprocessFile(cmd.Context(), rootCfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(opts ...Option) {
	if len(opts) > 0 {
		for _, o := range opts {
			o(rootCfg)
		}
		rootCmd.ResetCommands()
		addCommands(opts...)
	}
	err := rootCmd.Execute()
	var ee *exitError
	if err != nil && (!errors.As(err, &ee) || ee.err != nil) {
		fmt.Fprintln(os.Stderr, "pyplus:", err)
	}
	os.Exit(exitCode(err))
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pyplus.yaml)")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "auto",
		`Control colored output: "auto", "always", or "never".`)

	flags := rootCmd.Flags()
	flags.StringP("input", "i", "", "path to the Python+ source file")
	flags.StringP("output", "o", "out.py", "path of the preprocessed file")
	flags.Bool("stdout", false, "also print the output")
	flags.Bool("check-only", false, "preprocess without writing any output")
	flags.StringSlice("enable", nil, "comma-separated extensions to enable")
	flags.StringSlice("disable", nil, "comma-separated extensions to disable")
	flags.Bool("verbose", false, "log each directive as it is processed")
	flags.BoolP("preprocess-only", "E", false,
		"write the expanded intermediate, skipping output passes, with the output extension replaced by .i")
	flags.StringArrayP("define", "D", nil, "predefine a macro as NAME or NAME=VALUE (may be repeated)")
	flags.StringArray("include-dir", nil, "additional directory searched by @include (may be repeated)")
	flags.Int("max-passes", 0, "maximum number of passes before giving up (default 64)")
	flags.String("cpuprofile", "", "write a CPU profile labeled by directive to this file")

	for _, name := range []string{
		"input", "output", "stdout", "check-only", "enable", "disable", "verbose",
		"preprocess-only", "define", "include-dir", "max-passes", "cpuprofile",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
	_ = viper.BindPFlag("color", rootCmd.PersistentFlags().Lookup("color"))

	addCommands()
}

func addCommands(opts ...Option) {
	rootCmd.AddCommand(LintCommand(opts...))
	rootCmd.AddCommand(DocCommand(opts...))
	rootCmd.AddCommand(LSPCommand(opts...))
	rootCmd.AddCommand(replCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		// Search config in home directory with name ".pyplus" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".pyplus")
	}

	viper.SetEnvPrefix("pyplus")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil && viper.GetBool("verbose") {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
