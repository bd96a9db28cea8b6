// Copyright © 2018 The ELPS authors

// Package repl implements an interactive pyplus session. Each complete input
// is preprocessed as soon as it is entered and the expanded lines are
// printed; macros persist from one input to the next.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"github.com/luthersystems/pyplus/diagnostic"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/sirupsen/logrus"
)

type config struct {
	stdin  io.ReadCloser
	stderr io.WriteCloser
	engine *preprocessor.Engine
	color  diagnostic.ColorMode
}

func newConfig(opts ...Option) *config {
	config := &config{}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

type Option func(*config)

// WithStdin allows overriding the input to the REPL.
func WithStdin(stdin io.ReadCloser) Option {
	return func(c *config) {
		c.stdin = stdin
	}
}

// WithStderr allows overriding the output to the REPL.
func WithStderr(stderr io.WriteCloser) Option {
	return func(c *config) {
		c.stderr = stderr
	}
}

// WithEngine sets the engine used to preprocess input. By default the REPL
// uses an engine with every built-in directive that logs to its output.
func WithEngine(e *preprocessor.Engine) Option {
	return func(c *config) {
		c.engine = e
	}
}

// WithColor sets the color mode for rendered diagnostics.
func WithColor(mode diagnostic.ColorMode) Option {
	return func(c *config) {
		c.color = mode
	}
}

// RunRepl runs a simple repl until its input is exhausted.
func RunRepl(prompt string, opts ...Option) error {
	cfg := newConfig(opts...)
	var out io.Writer = os.Stderr
	if cfg.stderr != nil {
		out = cfg.stderr
	}
	if cfg.engine == nil {
		log := logrus.New()
		log.SetOutput(out)
		cfg.engine = preprocessor.New(preprocessor.WithLogger(log))
	}
	session := NewSession(cfg.engine)
	cont := strings.Repeat(" ", len(prompt))

	history := historyPath()
	ensureHistoryFilePermissions(history)
	rlCfg := &readline.Config{
		Stdout:            out,
		Stderr:            out,
		Prompt:            prompt,
		HistoryFile:       history,
		HistorySearchFold: true,
		AutoComplete:      &symbolCompleter{session: session},
	}
	if cfg.stdin != nil {
		rlCfg.Stdin = cfg.stdin
	}
	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return err
	}
	defer rl.Close() //nolint:errcheck // best-effort cleanup

	ctx := context.Background()
	for {
		if session.Pending() {
			rl.SetPrompt(cont)
		} else {
			rl.SetPrompt(prompt)
		}
		buf, err := rl.ReadSlice()
		if err == readline.ErrInterrupt {
			session.Reset()
			continue
		}
		if err != nil {
			break
		}
		line := strings.TrimRight(string(buf), "\r\n")
		if strings.TrimSpace(line) == "" && !session.Pending() {
			continue
		}
		res, err := session.Feed(ctx, line)
		renderWarnings(out, session.Warnings(), session.Sources(), cfg.color)
		if err != nil {
			renderError(out, err, session.Sources(), cfg.color)
			continue
		}
		if res != nil {
			fmt.Fprint(out, res.Text()) //nolint:errcheck // best-effort REPL output
		}
	}
	return nil
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pyplus_history")
}

// ensureHistoryFilePermissions creates the history file if needed and
// restricts it to the current user. Failures are ignored.
func ensureHistoryFilePermissions(path string) {
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0600) //nolint:gosec // path is under the user's home directory
	if err != nil {
		return
	}
	_ = f.Close()
	_ = os.Chmod(path, 0600)
}
