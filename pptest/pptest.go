// Copyright © 2018 The ELPS authors

// Package pptest runs preprocessor test suites and golden file tests.
package pptest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/luthersystems/pyplus/buildvars"
	"github.com/luthersystems/pyplus/preprocessor"
	"kr.dev/diff"
)

// FixedTime is the clock reading behind FixedBuildVars.
var FixedTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

// FixedBuildVars seeds the built-in macros with deterministic values.
func FixedBuildVars() preprocessor.Option {
	return preprocessor.WithBuildVars(
		buildvars.WithClock(func() time.Time { return FixedTime }),
		buildvars.WithUUID(func() string { return "00000000-0000-0000-0000-000000000000" }),
		buildvars.WithWorkingDir("/work"),
		buildvars.WithPlatform("linux"),
	)
}

// NewEngine returns an engine logging to t with deterministic built-in
// macros. opts are applied last.
func NewEngine(t testing.TB, opts ...preprocessor.Option) *preprocessor.Engine {
	base := []preprocessor.Option{
		preprocessor.WithLogger(NewLogrus(t)),
		FixedBuildVars(),
	}
	return preprocessor.New(append(base, opts...)...)
}

// TestCase preprocesses Input, named main.pyp, with Files available to
// include directives.
type TestCase struct {
	Name   string
	Files  map[string]string
	Input  string
	Output string
	Err    error // when set, the run must fail with an error matching Err
}

// TestSuite is a set of independent test cases.
type TestSuite []TestCase

// MapFS builds an in-memory include root.
func MapFS(files map[string]string) fstest.MapFS {
	fsys := make(fstest.MapFS, len(files))
	for name, src := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(src)}
	}
	return fsys
}

// RunTestSuite runs each case on a fresh engine.
func RunTestSuite(t *testing.T, suite TestSuite, opts ...preprocessor.Option) {
	for _, tc := range suite {
		t.Run(tc.Name, func(t *testing.T) {
			all := append([]preprocessor.Option{preprocessor.WithIncludeFS(MapFS(tc.Files))}, opts...)
			res, err := NewEngine(t, all...).Run(context.Background(), "main.pyp", tc.Input)
			if tc.Err != nil {
				if !errors.Is(err, tc.Err) {
					t.Fatalf("expected error %v, got %v", tc.Err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			diff.Test(t, t.Errorf, res.Text(), tc.Output)
		})
	}
}

// Runner runs golden file tests. Each NAME.pyp file in a directory is
// preprocessed with the directory as its include root and compared with
// NAME.golden. A NAME.err file instead holds text the error must contain.
type Runner struct {
	// Options are applied to every engine after the defaults of NewEngine.
	Options []preprocessor.Option
}

// RunDir runs every top-level .pyp file of dir whose name does not start
// with an underscore. Underscored files exist only to be included.
func (r *Runner) RunDir(t *testing.T, dir string) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.pyp"))
	if err != nil {
		t.Fatal(err)
	}
	var ran int
	for _, path := range paths {
		if strings.HasPrefix(filepath.Base(path), "_") {
			continue
		}
		ran++
		t.Run(strings.TrimSuffix(filepath.Base(path), ".pyp"), func(t *testing.T) {
			r.RunFile(t, path)
		})
	}
	if ran == 0 {
		t.Fatalf("no test files found in %s", dir)
	}
}

// RunFile runs the golden test for the .pyp file at path.
func (r *Runner) RunFile(t *testing.T, path string) {
	src, err := os.ReadFile(path) //#nosec G304
	if err != nil {
		t.Fatalf("Unable to read test file: %v", err)
	}
	stem := strings.TrimSuffix(path, ".pyp")
	opts := append([]preprocessor.Option{preprocessor.WithIncludeFS(os.DirFS(filepath.Dir(path)))}, r.Options...)
	res, runErr := NewEngine(t, opts...).Run(context.Background(), filepath.Base(path), string(src))

	if want, err := os.ReadFile(stem + ".err"); err == nil { //#nosec G304
		if runErr == nil {
			t.Fatalf("expected an error containing %q", strings.TrimSpace(string(want)))
		}
		if !strings.Contains(runErr.Error(), strings.TrimSpace(string(want))) {
			t.Errorf("error %q does not contain %q", runErr, strings.TrimSpace(string(want)))
		}
		return
	}
	if runErr != nil {
		t.Fatalf("unexpected error: %v", runErr)
	}
	want, err := os.ReadFile(stem + ".golden") //#nosec G304
	if err != nil {
		t.Fatalf("Unable to read golden file: %v", err)
	}
	diff.Test(t, t.Errorf, res.Text(), string(want))
}

// Benchmark measures full runs over src.
func Benchmark(b *testing.B, src string, opts ...preprocessor.Option) {
	b.StopTimer()
	b.SetBytes(int64(len(src)))
	e := preprocessor.New(append([]preprocessor.Option{FixedBuildVars()}, opts...)...)
	b.StartTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Run(context.Background(), "bench.pyp", src); err != nil {
			b.Fatal(err)
		}
	}
}
