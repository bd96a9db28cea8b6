// Copyright © 2024 The ELPS authors

package cmd

import (
	"github.com/luthersystems/pyplus/extension"
	"github.com/luthersystems/pyplus/preprocessor"
)

// Option configures the commands for programs that embed pyplus.
type Option func(*cmdConfig)

type cmdConfig struct {
	extensions []*extension.Extension
	profiler   preprocessor.Profiler
}

func newCmdConfig(opts ...Option) *cmdConfig {
	cfg := &cmdConfig{}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithExtensions adds extensions after the built-in ones. Their directives
// become available to preprocessing, linting and the language server, and
// their names are accepted by --enable and --disable.
func WithExtensions(exts ...*extension.Extension) Option {
	return func(c *cmdConfig) { c.extensions = append(c.extensions, exts...) }
}

// WithProfiler traces preprocessing runs with p.
func WithProfiler(p preprocessor.Profiler) Option {
	return func(c *cmdConfig) { c.profiler = p }
}

// extensionSet returns a fresh set of the built-in and configured
// extensions with their default state.
func (c *cmdConfig) extensionSet() *extension.Set {
	return extension.NewSet(append(extension.Builtins(), c.extensions...)...)
}
