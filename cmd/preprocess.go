// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"

	"github.com/luthersystems/pyplus/diagnostic"
	"github.com/luthersystems/pyplus/extension"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/luthersystems/pyplus/profiler"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// preprocessOptions are the settings of one preprocessing run.
type preprocessOptions struct {
	Input          string
	Output         string
	Stdout         bool
	CheckOnly      bool
	PreprocessOnly bool
	Verbose        bool
	Enable         []string
	Disable        []string
	Defines        []string
	IncludeDirs    []string
	MaxPasses      int
	CPUProfile     string
	Color          diagnostic.ColorMode
}

// preprocessOptionsFromConfig reads the options from flags, the config
// file and the environment. A positional argument names the input when -i
// is not given.
func preprocessOptionsFromConfig(args []string) (*preprocessOptions, error) {
	color, err := diagnostic.ParseColorMode(viper.GetString("color"))
	if err != nil {
		return nil, &exitError{code: exitFailure, err: err}
	}
	opts := &preprocessOptions{
		Input:          viper.GetString("input"),
		Output:         viper.GetString("output"),
		Stdout:         viper.GetBool("stdout"),
		CheckOnly:      viper.GetBool("check-only"),
		PreprocessOnly: viper.GetBool("preprocess-only"),
		Verbose:        viper.GetBool("verbose"),
		Enable:         viper.GetStringSlice("enable"),
		Disable:        viper.GetStringSlice("disable"),
		Defines:        viper.GetStringSlice("define"),
		IncludeDirs:    viper.GetStringSlice("include-dir"),
		MaxPasses:      viper.GetInt("max-passes"),
		CPUProfile:     viper.GetString("cpuprofile"),
		Color:          color,
	}
	if len(args) > 0 {
		if opts.Input != "" {
			return nil, failf(exitFailure, "input given twice: -i %s and %s", opts.Input, args[0])
		}
		opts.Input = args[0]
	}
	if opts.Input == "" {
		return nil, failf(exitFailure, "no input file (use -i INPUT)")
	}
	if opts.Output == "" {
		opts.Output = "out.py"
	}
	return opts, nil
}

// parseDefines converts -D values into macros. A bare NAME defines NAME
// as 1.
func parseDefines(defs []string) ([]*preprocessor.Macro, error) {
	var macros []*preprocessor.Macro
	for _, def := range defs {
		name, value, ok := strings.Cut(def, "=")
		if !ok {
			value = "1"
		}
		name = strings.TrimSpace(name)
		if !preprocessor.IsIdent(name) {
			return nil, fmt.Errorf("invalid macro name in -D %q", def)
		}
		macros = append(macros, &preprocessor.Macro{Name: name, Body: value})
	}
	return macros, nil
}

// dirRoots returns the include roots: first is searched first.
func dirRoots(first string, dirs []string) []fs.FS {
	roots := []fs.FS{os.DirFS(first)}
	for _, dir := range dirs {
		roots = append(roots, os.DirFS(dir))
	}
	return roots
}

// intermediatePath returns the -E output path for output.
func intermediatePath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".i"
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// preprocessFile runs one input through the engine and writes the result.
// Nothing is written unless the run succeeds.
func preprocessFile(ctx context.Context, cfg *cmdConfig, opts *preprocessOptions, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := newLogger(stderr, opts.Verbose)

	exts := cfg.extensionSet()
	if err := exts.Configure(extension.ParseList(opts.Enable...), extension.ParseList(opts.Disable...)); err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	macros, err := parseDefines(opts.Defines)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	src, err := os.ReadFile(opts.Input) //nolint:gosec // CLI tool reads user-specified files
	if err != nil {
		return &exitError{code: exitIO, err: err}
	}

	roots := dirRoots(filepath.Dir(opts.Input), opts.IncludeDirs)
	engineOpts := []preprocessor.Option{
		preprocessor.WithLogger(log),
		preprocessor.WithRegistry(exts.Registry(log)),
		preprocessor.WithIncludeFS(roots...),
		preprocessor.WithMacros(macros...),
	}
	if opts.MaxPasses > 0 {
		engineOpts = append(engineOpts, preprocessor.WithMaxPasses(opts.MaxPasses))
	}
	switch {
	case cfg.profiler != nil:
		engineOpts = append(engineOpts, preprocessor.WithProfiler(cfg.profiler))
	case opts.CPUProfile != "":
		stop, err := startCPUProfile(opts.CPUProfile)
		if err != nil {
			return &exitError{code: exitIO, err: err}
		}
		defer stop()
		engineOpts = append(engineOpts, preprocessor.WithProfiler(profiler.NewPprofAnnotator(profiler.WithDirectivesOnly())))
	}
	engine := preprocessor.New(engineOpts...)

	res, err := engine.Run(ctx, opts.Input, string(src))
	if err != nil {
		var sources map[string]string
		if res != nil {
			sources = res.Sources
		}
		renderRunError(stderr, err, sources, opts.Color)
		return reported(runErrorCode(err))
	}

	lines := make([]string, len(res.Lines))
	for i, l := range res.Lines {
		lines[i] = l.Text
	}
	path := opts.Output
	if opts.PreprocessOnly {
		path = intermediatePath(opts.Output)
	} else {
		lines = exts.Apply(lines)
	}
	var out strings.Builder
	for _, line := range lines {
		out.WriteString(line)
		out.WriteByte('\n')
	}

	log.WithFields(logrus.Fields{
		"file":   opts.Input,
		"passes": res.Passes,
		"lines":  len(lines),
	}).Debug("preprocessing finished")

	if opts.Stdout {
		if _, err := io.WriteString(stdout, out.String()); err != nil {
			return &exitError{code: exitIO, err: err}
		}
	}
	if opts.CheckOnly {
		return nil
	}
	if err := os.WriteFile(path, []byte(out.String()), 0o644); err != nil { //nolint:gosec // generated source is not secret
		return &exitError{code: exitIO, err: err}
	}
	return nil
}

func startCPUProfile(path string) (func(), error) {
	f, err := os.Create(path) //nolint:gosec // CLI tool writes user-specified files
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("cpu profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}
