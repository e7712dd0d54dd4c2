// Package comment implements the comment engine of spec.md §4.3: rewrite
// the comment packet (packet index 1) of selected streams while leaving
// every other packet and every post-header page byte-identical, plus a
// listing mode that dumps the same entries without writing output.
package comment

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

// Entry is a staged NAME=VALUE comment to add.
type Entry struct {
	Name  string
	Value string
}

// maxHeaderPackets bounds the header-rewrite phase independently of each
// stream's own reported header count (SPEC_FULL.md §5's "more_headers"
// decision): a stream still claiming to be mid-header past this many
// packets is treated as a framing failure rather than a hang.
const maxHeaderPackets = 8

// Config selects which streams are in scope and what to stage.
type Config struct {
	DoAll        bool
	Serialnos    map[uint32]bool
	ContentTypes []string // compared case-insensitively

	Delete bool
	Staged []Entry

	LoggerFactory logging.LoggerFactory
}

type engine struct {
	cfg Config
	fr  *framer.Reader
	w   *framer.Writer // nil in listing mode
	dst io.Writer      // listing text in listing mode; passthrough pages in rewrite mode

	log logging.LeveledLogger

	seenTracks      map[uint32]bool
	packetCounts    map[uint32]int
	headerPhaseDone bool
	listedAny       bool
	firstErr        error
}

func newEngine(src io.Reader, cfg Config) *engine {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	e := &engine{
		cfg:          cfg,
		log:          lf.NewLogger("comment"),
		seenTracks:   make(map[uint32]bool),
		packetCounts: make(map[uint32]int),
	}
	e.fr = framer.NewReader(src, framer.WithLoggerFactory(lf))
	e.fr.SetAnyPageCallback(e.onPage)
	e.fr.SetAnyPacketCallback(e.onPacket)
	return e
}

// Run rewrites the selected streams' comment packets from src into dst.
func Run(src io.Reader, dst io.Writer, cfg Config) error {
	e := newEngine(src, cfg)
	e.w = framer.NewWriter(dst)
	e.dst = dst

	if err := e.fr.Run(framer.RunOpts{}); err != nil {
		if e.firstErr != nil {
			return e.firstErr
		}
		return err
	}
	if e.firstErr != nil {
		return e.firstErr
	}
	return e.w.Close()
}

// List runs the identical header-phase traversal but dumps each in-scope
// stream's comments to out instead of writing a container.
func List(src io.Reader, out io.Writer, cfg Config) error {
	e := newEngine(src, cfg)
	e.dst = out

	if err := e.fr.Run(framer.RunOpts{}); err != nil {
		if e.firstErr != nil {
			return e.firstErr
		}
		return err
	}
	return e.firstErr
}

func (e *engine) fail(err error) framer.Verdict {
	e.firstErr = err
	return framer.StopErr
}

func (e *engine) inScope(serialno uint32, codec string) bool {
	if e.cfg.DoAll {
		return true
	}
	if e.cfg.Serialnos[serialno] {
		return true
	}
	lc := strings.ToLower(codec)
	for _, ct := range e.cfg.ContentTypes {
		if strings.ToLower(ct) == lc {
			return true
		}
	}
	return false
}

// onPage discovers streams at BOS and, once the header phase has
// finished, switches to verbatim page passthrough — deferred to the
// first page after the one that completed the last stream's headers, so
// that boundary page still passes entirely through the packet path.
func (e *engine) onPage(p *page.Page) framer.Verdict {
	if p.BOS {
		e.seenTracks[p.Serialno] = true
	}

	if !e.headerPhaseDone {
		return framer.Continue
	}

	e.fr.SetAnyPacketCallback(nil)
	if err := framer.WritePage(e.dst, p); err != nil {
		return e.fail(err)
	}
	return framer.Continue
}

// onPacket is the header-rewrite phase's per-packet callback (spec.md
// §4.3), shared between rewrite and listing mode.
func (e *engine) onPacket(pkt *framer.Packet) framer.Verdict {
	if e.headerPhaseDone {
		return framer.Continue
	}

	codec := e.fr.ContentType(pkt.Serialno)
	selected := e.inScope(pkt.Serialno, codec)

	if e.w != nil {
		payload := pkt.Payload
		if selected && pkt.Packetno == 1 {
			rewritten, err := e.rewriteComment(codec, pkt)
			if err != nil {
				return e.fail(err)
			}
			payload = rewritten
		}
		flush := framer.FlushNone
		if pkt.Granulepos != page.NoGranulepos {
			flush = framer.FlushAfter
		}
		if err := e.w.WriteFeed(pkt.Serialno, payload, pkt.Granulepos, pkt.Packetno == 0, flush); err != nil {
			return e.fail(err)
		}
	} else if selected && pkt.Packetno == 1 {
		parsed, err := framer.CommentIter(codec, pkt.Payload)
		if err != nil {
			return e.fail(ogzerr.NewFramingError(err))
		}
		e.printListing(pkt.Serialno, codec, parsed)
	}

	e.packetCounts[pkt.Serialno]++
	numHeaders := e.fr.StreamNumHeaders(pkt.Serialno)
	if pkt.Packetno+1 >= numHeaders {
		delete(e.seenTracks, pkt.Serialno)
	} else if e.packetCounts[pkt.Serialno] > maxHeaderPackets {
		return e.fail(ogzerr.NewFramingError(errors.New("comment: header phase exceeded maximum header packet count")))
	}

	if len(e.seenTracks) == 0 {
		e.log.Debugf("comment: header phase complete")
		if e.w == nil {
			return framer.StopOk
		}
		if err := e.w.FlushPending(); err != nil {
			return e.fail(err)
		}
		e.headerPhaseDone = true
	}
	return framer.Continue
}

// rewriteComment synthesizes the replacement comment packet: the input's
// vendor, the prior entries (unless --delete), then the staged entries.
func (e *engine) rewriteComment(codec string, pkt *framer.Packet) ([]byte, error) {
	parsed, err := framer.CommentIter(codec, pkt.Payload)
	if err != nil {
		return nil, ogzerr.NewFramingError(err)
	}

	out := &framer.Comments{Vendor: parsed.Vendor}
	if !e.cfg.Delete {
		out.Entries = framer.CommentCopy(parsed)
	}
	for _, s := range e.cfg.Staged {
		framer.CommentAdd(out, s.Name, s.Value)
	}
	return framer.CommentsGenerate(codec, out), nil
}

func (e *engine) printListing(serialno uint32, codec string, c *framer.Comments) {
	if e.listedAny {
		fmt.Fprintln(e.dst)
		fmt.Fprintln(e.dst, "----")
	}
	e.listedAny = true

	fmt.Fprintf(e.dst, "Codec: %s\n", codec)
	fmt.Fprintf(e.dst, "Serialno: %d\n", serialno)
	fmt.Fprintf(e.dst, "Vendor: %s\n", c.Vendor)
	for _, en := range c.Entries {
		fmt.Fprintf(e.dst, "%s=%s\n", en.Name, en.Value)
	}
}
