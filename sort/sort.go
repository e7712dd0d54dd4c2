// Package sort implements the sort engine of spec.md §4.4: re-interleave
// a container's pages into presentation-time order using one independent
// re-reader per logical stream, a k-way merge keyed on tell_units, and a
// codec-aware tie-break for beginning-of-stream pages recovered from
// liboggz's oggz-sort.c (a two-stream "prefer the non-Vorbis BOS first"
// rule for the common video+audio case).
package sort

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oggzgo/oggz/framer"
	"github.com/oggzgo/oggz/ogzerr"
	"github.com/oggzgo/oggz/page"
	"github.com/pion/logging"
)

// Open returns a fresh, independent reader over the same input bytes.
// The engine calls it once per discovered stream, mirroring liboggz's
// per-Input re-open of the source file.
type Open func() (io.Reader, error)

// Config configures a sort run.
type Config struct {
	Verbose       bool
	VerboseOut    io.Writer // required when Verbose is set
	LoggerFactory logging.LoggerFactory
}

type osInput struct {
	serialno uint32
	fr       *framer.Reader
	slot     *page.Page
	done     bool
}

func (in *osInput) onPage(p *page.Page) framer.Verdict {
	if p.Serialno != in.serialno {
		return framer.Continue
	}
	cp := p.Clone()
	// Page repair (spec.md §4.4): a continuation page's granulepos is
	// canonicalized to -1 before it enters the slot, so the emitted page
	// carries -1. The merge key is still this reader's TellUnits, which
	// the framer computed from the page as read, before the repair.
	if cp.PacketCount() == 0 && cp.Granulepos != page.NoGranulepos {
		cp.SetGranulepos(page.NoGranulepos)
	}
	in.slot = cp
	return framer.StopOk
}

func (in *osInput) pump() error {
	_, err := in.fr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			in.done = true
			return nil
		}
		return err
	}
	return nil
}

type engine struct {
	cfg    Config
	inputs []*osInput
	log    logging.LeveledLogger
}

// discover runs the discovery pass: one Input is registered per
// beginning-of-stream page encountered, in file order, stopping at the
// first non-BOS page (spec.md §4.4's "discovery pass").
func discover(r io.Reader, lf logging.LoggerFactory) ([]uint32, error) {
	fr := framer.NewReader(r, framer.WithLoggerFactory(lf))
	var order []uint32
	fr.SetAnyPageCallback(func(p *page.Page) framer.Verdict {
		if p.BOS {
			order = append(order, p.Serialno)
			return framer.Continue
		}
		return framer.StopOk
	})
	if err := fr.Run(framer.RunOpts{}); err != nil {
		return nil, err
	}
	return order, nil
}

// Run sorts the container produced by repeated calls to open into dst.
func Run(open Open, dst io.Writer, cfg Config) error {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	discoverReader, err := open()
	if err != nil {
		return ogzerr.NewIoError(err)
	}
	serialnos, err := discover(discoverReader, lf)
	if closer, ok := discoverReader.(io.Closer); ok {
		closer.Close()
	}
	if err != nil {
		return err
	}

	var inputs []*osInput
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	for _, sn := range serialnos {
		r, err := open()
		if err != nil {
			return ogzerr.NewIoError(err)
		}
		if closer, ok := r.(io.Closer); ok {
			closers = append(closers, closer)
		}
		in := &osInput{serialno: sn, fr: framer.NewReader(r, framer.WithLoggerFactory(lf))}
		in.fr.SetAnyPageCallback(in.onPage)
		inputs = append(inputs, in)
	}

	e := &engine{cfg: cfg, inputs: inputs, log: lf.NewLogger("sort")}
	return e.mergeLoop(dst)
}

// mergeLoop is oggz_sort's main loop: refill every input's look-ahead
// slot, pick the minimum by the rule in spec.md §4.4, emit it, repeat.
func (e *engine) mergeLoop(dst io.Writer) error {
	careful := len(e.inputs) == 2

	for len(e.inputs) > 0 {
		if e.cfg.Verbose {
			fmt.Fprintln(e.cfg.VerboseOut, strings.Repeat("-", 60))
		}

		for _, in := range e.inputs {
			for in.slot == nil && !in.done {
				if err := in.pump(); err != nil {
					return err
				}
			}
		}
		e.inputs = removeDone(e.inputs)
		if len(e.inputs) == 0 {
			break
		}

		minIdx := -1
		minUnits := int64(-1)
		active := true

		for i := 0; active && i < len(e.inputs); i++ {
			in := e.inputs[i]

			if in.slot.BOS {
				minIdx = i
				if careful {
					isVorbis := strings.EqualFold(in.fr.ContentType(in.serialno), "vorbis")
					if i == 0 && isVorbis {
						careful = false
					} else {
						active = false
					}
				} else {
					active = false
				}
			}

			units := in.fr.TellUnits(in.serialno)
			if minUnits == -1 || units == 0 || (units > -1 && units < minUnits) {
				minUnits = units
				minIdx = i
			}
			if e.cfg.Verbose {
				fmt.Fprintf(e.cfg.VerboseOut, "serialno=%d units=%d bos=%v\n", in.serialno, units, in.slot.BOS)
			}
		}

		if e.cfg.Verbose {
			fmt.Fprintf(e.cfg.VerboseOut, "min index %d\n", minIdx)
		}

		winner := e.inputs[minIdx]
		if err := framer.WritePage(dst, winner.slot); err != nil {
			return err
		}
		winner.slot = nil
	}
	return nil
}

func removeDone(inputs []*osInput) []*osInput {
	out := inputs[:0]
	for _, in := range inputs {
		if !in.done || in.slot != nil {
			out = append(out, in)
		}
	}
	return out
}
