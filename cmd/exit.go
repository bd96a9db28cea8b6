// Copyright © 2024 The ELPS authors

package cmd

import (
	"errors"
	"fmt"

	"github.com/luthersystems/pyplus/preprocessor"
)

// Process exit codes.
const (
	exitOK         = 0
	exitPreprocess = 1 // a diagnostic was reported for the input
	exitFailure    = 2 // bad invocation or unexpected failure
	exitIO         = 3 // the input, an include target or the output could not be accessed
)

// exitError ends the command with a specific exit code. A nil err means the
// problem has already been reported to the user.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func failf(code int, format string, v ...interface{}) error {
	return &exitError{code: code, err: fmt.Errorf(format, v...)}
}

// reported returns an exit error for a failure already shown to the user.
func reported(code int) error {
	return &exitError{code: code}
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

// runErrorCode classifies a failed preprocessing run.
func runErrorCode(err error) int {
	var pe *preprocessor.Error
	if !errors.As(err, &pe) {
		return exitFailure
	}
	if pe.Kind.IsIO() {
		return exitIO
	}
	return exitPreprocess
}
