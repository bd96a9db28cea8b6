// Copyright © 2024 The ELPS authors

// Package buildvars provides the table of built-in macros describing the
// environment a file is preprocessed in.
package buildvars

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Version is the preprocessor version reported by __VERSION__.
const Version = "1.0.0"

// MagicCode is the value of __MAGIC_CODE__.
const MagicCode = 0xABCDEF

// DefaultPythonVersion is reported by __PYTHON_VERSION__ unless overridden.
const DefaultPythonVersion = "3.12"

// Var is one built-in macro. Value is the replacement text, already quoted
// for string-valued variables. Dynamic, when set, computes the replacement
// for each occurrence from the name of the file being expanded.
type Var struct {
	Name    string
	Value   string
	Const   bool
	Dynamic func(file string) string
}

type config struct {
	now           func() time.Time
	getwd         func() (string, error)
	newUUID       func() string
	goos          string
	pythonVersion string
}

// Option customizes the table.
type Option func(*config)

// WithClock fixes the time used for the date and time variables.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithPythonVersion sets the value of __PYTHON_VERSION__.
func WithPythonVersion(v string) Option {
	return func(c *config) { c.pythonVersion = v }
}

// WithUUID sets the generator behind __UUID__.
func WithUUID(fn func() string) Option {
	return func(c *config) { c.newUUID = fn }
}

// WithWorkingDir sets the directory reported by __PWD__.
func WithWorkingDir(dir string) Option {
	return func(c *config) { c.getwd = func() (string, error) { return dir, nil } }
}

// WithPlatform sets the GOOS value behind __PLATFORM__.
func WithPlatform(goos string) Option {
	return func(c *config) { c.goos = goos }
}

// Table returns the built-in variables. Time-based values are captured
// once, when Table is called. Every table has its own __COUNTER__.
func Table(opts ...Option) []Var {
	c := &config{
		now:           time.Now,
		getwd:         os.Getwd,
		newUUID:       uuid.NewString,
		goos:          runtime.GOOS,
		pythonVersion: DefaultPythonVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	now := c.now()
	pwd, err := c.getwd()
	if err != nil {
		pwd = ""
	}
	counter := 0
	return []Var{
		{Name: "__FILE__", Const: true, Dynamic: strconv.Quote},
		{Name: "__DATE__", Const: true, Value: strconv.Quote(now.Format("2006-01-02"))},
		{Name: "__TIME__", Const: true, Value: strconv.Quote(now.Format("15:04:05"))},
		{Name: "__DATETIME__", Const: true, Value: strconv.Quote(now.Format("2006-01-02 15:04:05"))},
		{Name: "__EPOCH_TIME__", Const: true, Value: strconv.FormatInt(now.Unix(), 10)},
		{Name: "__VERSION__", Const: true, Value: strconv.Quote(Version)},
		{Name: "__PLATFORM__", Const: true, Value: strconv.Quote(Platform(c.goos))},
		{Name: "__PYTHON_VERSION__", Const: true, Value: strconv.Quote(c.pythonVersion)},
		{Name: "__COUNTER__", Dynamic: func(string) string {
			n := counter
			counter++
			return strconv.Itoa(n)
		}},
		{Name: "__PWD__", Const: true, Value: strconv.Quote(pwd)},
		{Name: "__UUID__", Const: true, Value: strconv.Quote(c.newUUID())},
		{Name: "__MAGIC_CODE__", Const: true, Value: strconv.Itoa(MagicCode)},
	}
}

// Names returns the names of the built-in variables in table order.
func Names() []string {
	vars := Table(WithUUID(func() string { return "" }), WithWorkingDir(""))
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	return names
}

var platformNames = map[string]string{
	"darwin":  "Darwin",
	"freebsd": "FreeBSD",
	"netbsd":  "NetBSD",
	"openbsd": "OpenBSD",
	"aix":     "AIX",
	"illumos": "illumos",
}

// Platform returns the operating system name for goos the way Python's
// platform.system reports it.
func Platform(goos string) string {
	if name, ok := platformNames[goos]; ok {
		return name
	}
	if goos == "" {
		return ""
	}
	return strings.ToUpper(goos[:1]) + goos[1:]
}
