// Command oggz-sort re-interleaves a container's pages into
// presentation-time order, per spec.md §6: `-o/--output FILE`,
// `-V/--verbose`, `-h`, `-v`, positional input.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/oggzgo/oggz/cmd/internal/cliutil"
	"github.com/oggzgo/oggz/ogzerr"
	"github.com/oggzgo/oggz/sort"
	"github.com/spf13/pflag"
)

const progName = "oggz-sort"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet(progName, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-o OUTFILE] [-V] [INFILE]\n", progName)
		fs.PrintDefaults()
	}

	output := fs.StringP("output", "o", "", "output file (default standard output)")
	verbose := fs.BoolP("verbose", "V", false, "print per-iteration merge diagnostics to standard output")
	help := fs.BoolP("help", "h", false, "print usage and exit")
	version := fs.BoolP("version", "v", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		cliutil.Fail(progName, ogzerr.NewUsageError(err))
		return 1
	}
	if *help {
		fs.Usage()
		return 0
	}
	if *version {
		fmt.Println(progName, "1.0.0")
		return 0
	}

	var infile string
	switch fs.NArg() {
	case 0:
	case 1:
		infile = fs.Arg(0)
	default:
		cliutil.Fail(progName, ogzerr.NewUsageError(fmt.Errorf("too many input files")))
		return 1
	}

	open, closeAll, err := makeOpener(infile)
	if err != nil {
		cliutil.Fail(progName, err)
		return 1
	}
	defer closeAll()

	out, err := cliutil.OpenOutput(*output)
	if err != nil {
		cliutil.Fail(progName, err)
		return 1
	}

	cfg := sort.Config{Verbose: *verbose, VerboseOut: os.Stdout}
	if err := sort.Run(open, out.Writer(), cfg); err != nil {
		out.Abort()
		cliutil.Fail(progName, err)
		return cliutil.ExitCode(err)
	}
	if err := out.Close(); err != nil {
		cliutil.Fail(progName, err)
		return 1
	}
	return 0
}

// makeOpener builds the per-stream re-reader factory the sort engine
// needs. A named, seekable input is reopened from disk on every call; a
// missing/"-" input (standard input, not reopenable) is read once into
// memory and each call hands back a fresh reader over that buffer.
func makeOpener(infile string) (sort.Open, func(), error) {
	if infile == "" || infile == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, func() {}, ogzerr.NewIoError(err)
		}
		return func() (io.Reader, error) {
			return bytes.NewReader(data), nil
		}, func() {}, nil
	}

	var opened []*os.File
	open := func() (io.Reader, error) {
		f, err := os.Open(infile)
		if err != nil {
			return nil, ogzerr.NewIoError(err)
		}
		opened = append(opened, f)
		return f, nil
	}
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	return open, closeAll, nil
}
