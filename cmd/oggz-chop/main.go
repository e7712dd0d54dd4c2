// Command oggz-chop extracts a time interval from a container, per
// spec.md §6: `-s SECONDS` start, `-e SECONDS` end (omitted means
// open-ended), `-o OUTFILE` (default standard output), positional input
// (or `-`/omitted for standard input).
package main

import (
	"fmt"
	"os"

	"github.com/oggzgo/oggz/chop"
	"github.com/oggzgo/oggz/cmd/internal/cliutil"
	"github.com/oggzgo/oggz/ogzerr"
	"github.com/spf13/pflag"
)

const progName = "oggz-chop"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet(progName, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-s SECONDS] [-e SECONDS] [-o OUTFILE] [INFILE]\n", progName)
		fs.PrintDefaults()
	}

	start := fs.Float64P("start", "s", 0, "start time in seconds")
	end := fs.Float64P("end", "e", -1, "end time in seconds (-1 for open-ended)")
	output := fs.StringP("output", "o", "", "output file (default standard output)")
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

	in, err := cliutil.OpenInput(infile)
	if err != nil {
		cliutil.Fail(progName, err)
		return 1
	}
	defer in.Close()

	out, err := cliutil.OpenOutput(*output)
	if err != nil {
		cliutil.Fail(progName, err)
		return 1
	}

	cfg := chop.Config{Start: *start, End: *end}
	if err := chop.Run(in, out.Writer(), cfg); err != nil {
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
