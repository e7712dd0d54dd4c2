// Package cliutil holds the small pieces of CLI plumbing shared by
// oggz-chop, oggz-comment and oggz-sort: atomic output-file replacement
// and exit-code mapping (spec.md §6-7), both left "out of scope" by the
// core spec and so built fresh here rather than grounded on any single
// engine.
package cliutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/oggzgo/oggz/ogzerr"
)

// Output opens the destination for a `-o FILE` argument. An empty path
// means standard output, streamed directly with no temp-file dance. A
// named file is written to a UUID-suffixed temp file in the same
// directory and renamed into place on Close, so a reader can never
// observe a partially written file at the final path.
type Output struct {
	w       io.Writer
	tmpPath string
	final   string
	f       *os.File
}

// OpenOutput prepares dst for writing. Call Close when done; Close
// renames the temp file into place for named outputs and is a no-op for
// standard output.
func OpenOutput(path string) (*Output, error) {
	if path == "" || path == "-" {
		return &Output{w: os.Stdout}, nil
	}

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s-%s.tmp", filepath.Base(path), uuid.NewString()))
	f, err := os.Create(tmp)
	if err != nil {
		return nil, ogzerr.NewIoError(err)
	}
	return &Output{w: f, tmpPath: tmp, final: path, f: f}, nil
}

// Writer returns the destination to pass to an engine's Run.
func (o *Output) Writer() io.Writer { return o.w }

// Close finalizes the output: for a named file, syncs, closes and renames
// the temp file into place; for standard output, does nothing.
func (o *Output) Close() error {
	if o.f == nil {
		return nil
	}
	if err := o.f.Sync(); err != nil {
		o.f.Close()
		os.Remove(o.tmpPath)
		return ogzerr.NewIoError(err)
	}
	if err := o.f.Close(); err != nil {
		os.Remove(o.tmpPath)
		return ogzerr.NewIoError(err)
	}
	if err := os.Rename(o.tmpPath, o.final); err != nil {
		os.Remove(o.tmpPath)
		return ogzerr.NewIoError(err)
	}
	return nil
}

// Abort discards a named output's temp file after a failed run, so a
// failure never leaves a stray partial file next to the intended path.
func (o *Output) Abort() {
	if o.f != nil {
		o.f.Close()
		os.Remove(o.tmpPath)
	}
}

// OpenInput opens a positional input argument, treating "" and "-" as
// standard input.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ogzerr.NewIoError(err)
	}
	return f, nil
}

// ExitCode maps an engine error to the process exit code of spec.md §7:
// 0 for success, 1 for any IoError/FramingError/UsageError (or anything
// else propagated up, conservatively).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Fail prints a one-line diagnostic prefixed by prog to standard error,
// per spec.md §7.
func Fail(prog string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", prog, err)
}
