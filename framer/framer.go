// Package framer is the thin façade over page/packet reading and writing
// described in spec.md §4.1: page callback registration (with a
// catch-all "any" selector and deterministic replace-on-set semantics,
// spec.md §9), presentation-time queries, and the codec introspection
// calls the engines use to drive their state machines without ever
// touching payload bytes themselves.
package framer

import (
	"errors"
	"io"

	"github.com/oggzgo/oggz/ogzerr"
	"github.com/oggzgo/oggz/page"
	"github.com/pion/logging"
)

// Verdict is a callback's return code (spec.md §4.1).
type Verdict int

const (
	// Continue asks the driver to keep reading.
	Continue Verdict = iota
	// StopOk is a clean early termination (e.g. "header phase complete").
	StopOk
	// StopErr signals a framing failure; the driver returns a FramingError.
	StopErr
)

// PageCallback is invoked once per delivered page. The page is borrowed
// for the callback's duration only; callers that need to retain it must
// Clone it first.
type PageCallback func(p *page.Page) Verdict

// Packet is a reassembled codec unit, potentially spanning several pages.
type Packet struct {
	Serialno   uint32
	Packetno   int
	Granulepos int64
	Payload    []byte
}

// PacketCallback is invoked once per reassembled packet.
type PacketCallback func(pkt *Packet) Verdict

type streamInfo struct {
	codec        string
	numHeaders   int
	granuleshift uint
	bosPayload   []byte
}

// Reader drives page (and, where requested, packet) delivery from an
// underlying byte stream.
type Reader struct {
	src io.Reader

	introspector CodecIntrospector
	clock        Clock
	log          logging.LeveledLogger

	pageCB    map[uint32]PageCallback
	anyPageCB PageCallback

	packetCB    map[uint32]PacketCallback
	anyPacketCB PacketCallback

	streams   map[uint32]*streamInfo
	lastUnits map[uint32]int64

	contBuf      map[uint32][]byte
	packetCursor map[uint32]int
}

// Option configures a Reader.
type Option func(*Reader)

// WithLoggerFactory installs a logging.LoggerFactory, grounded on the
// teacher's SettingEngine.LoggerFactory / loggerFactory.NewLogger(scope)
// pattern. Defaults to logging.NewDefaultLoggerFactory().
func WithLoggerFactory(f logging.LoggerFactory) Option {
	return func(r *Reader) { r.log = f.NewLogger("framer") }
}

// WithCodecIntrospector overrides the default codec introspector — the
// external "codec metadata introspection library" of spec.md §1, which
// decides header counts and granule-shift for each stream.
func WithCodecIntrospector(ci CodecIntrospector) Option {
	return func(r *Reader) { r.introspector = ci }
}

// WithClock overrides the default granulepos->milliseconds conversion.
func WithClock(c Clock) Option {
	return func(r *Reader) { r.clock = c }
}

// NewReader builds a Reader over src.
func NewReader(src io.Reader, opts ...Option) *Reader {
	r := &Reader{
		src:          src,
		introspector: DefaultIntrospector{},
		clock:        DefaultClock{},
		log:          logging.NewDefaultLoggerFactory().NewLogger("framer"),
		pageCB:       make(map[uint32]PageCallback),
		packetCB:     make(map[uint32]PacketCallback),
		streams:      make(map[uint32]*streamInfo),
		lastUnits:    make(map[uint32]int64),
		contBuf:      make(map[uint32][]byte),
		packetCursor: make(map[uint32]int),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetPageCallback registers (or, with fn == nil, deregisters) the page
// callback for a specific stream. A later call for the same serialno
// replaces the previous callback.
func (r *Reader) SetPageCallback(serialno uint32, fn PageCallback) {
	if fn == nil {
		delete(r.pageCB, serialno)
		return
	}
	r.pageCB[serialno] = fn
}

// SetAnyPageCallback registers (or, with fn == nil, deregisters) the
// catch-all page callback.
func (r *Reader) SetAnyPageCallback(fn PageCallback) { r.anyPageCB = fn }

// SetPacketCallback registers (or deregisters) a per-stream packet
// callback. Packet reassembly only runs for streams with a registered
// packet callback (specific or catch-all).
func (r *Reader) SetPacketCallback(serialno uint32, fn PacketCallback) {
	if fn == nil {
		delete(r.packetCB, serialno)
		return
	}
	r.packetCB[serialno] = fn
}

// SetAnyPacketCallback registers (or deregisters) the catch-all packet
// callback.
func (r *Reader) SetAnyPacketCallback(fn PacketCallback) { r.anyPacketCB = fn }

// StreamNumHeaders returns the codec's header-phase packet count for a
// stream already seen at its BOS page. Returns 0 if the stream is
// unknown.
func (r *Reader) StreamNumHeaders(serialno uint32) int {
	if si, ok := r.streams[serialno]; ok {
		return si.numHeaders
	}
	return 0
}

// Granuleshift returns the granule-shift amount for a known stream.
func (r *Reader) Granuleshift(serialno uint32) uint {
	if si, ok := r.streams[serialno]; ok {
		return si.granuleshift
	}
	return 0
}

// ContentType returns the codec identity string for a known stream.
func (r *Reader) ContentType(serialno uint32) string {
	if si, ok := r.streams[serialno]; ok {
		return si.codec
	}
	return ""
}

// TellUnits returns the presentation time, in milliseconds, of the most
// recently delivered page for serialno.
func (r *Reader) TellUnits(serialno uint32) int64 {
	if u, ok := r.lastUnits[serialno]; ok {
		return u
	}
	return -1
}

// RunOpts configures Run. Reserved for future driving options (spec.md
// §4.1's run(opts) contract); currently empty.
type RunOpts struct{}

// Run drives page delivery until the input is exhausted or a callback
// returns a stop verdict.
func (r *Reader) Run(_ RunOpts) error {
	for {
		verdict, err := r.readOne()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if verdict == StopErr {
			return ogzerr.NewFramingError(errors.New("callback requested stop_err"))
		}
		if verdict == StopOk {
			return nil
		}
	}
}

// Read reads and processes at most one page, mirroring spec.md §4.1's
// read(n) contract in spirit (n is not meaningful for a page-oriented
// stream, so Read always advances exactly one page). It returns the
// verdict of whichever callback ran, or Continue with io.EOF at end of
// input.
func (r *Reader) Read() (Verdict, error) {
	return r.readOne()
}

func (r *Reader) readOne() (Verdict, error) {
	p, err := page.Decode(r.src)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Continue, io.EOF
		}
		if errors.Is(err, page.ErrBadSignature) || errors.Is(err, page.ErrChecksumMismatch) {
			return StopErr, ogzerr.NewFramingError(err)
		}
		return StopErr, ogzerr.NewIoError(err)
	}

	if p.BOS {
		codec, numHeaders := r.introspector.Identify(p.Body)
		si := &streamInfo{codec: codec, numHeaders: numHeaders, bosPayload: append([]byte(nil), p.Body...)}
		si.granuleshift = r.introspector.Granuleshift(codec, p.Body)
		r.streams[p.Serialno] = si
		r.log.Tracef("bos serialno=%d codec=%s headers=%d granuleshift=%d", p.Serialno, codec, numHeaders, si.granuleshift)
	}

	// tell_units() reports the time of the most recently delivered page
	// that actually carried a granulepos; a continuation page with no
	// granulepos of its own leaves the previous value in place rather
	// than resetting to "unknown".
	if si := r.streams[p.Serialno]; si != nil && p.Granulepos != page.NoGranulepos {
		r.lastUnits[p.Serialno] = r.clock.Millis(si.codec, si.bosPayload, p.Granulepos)
	} else if _, ok := r.lastUnits[p.Serialno]; !ok {
		r.lastUnits[p.Serialno] = -1
	}

	verdict := r.dispatchPage(p)
	if verdict != Continue {
		return verdict, nil
	}

	if _, ok := r.packetCB[p.Serialno]; ok || r.anyPacketCB != nil {
		return r.dispatchPackets(p)
	}
	return Continue, nil
}

func (r *Reader) dispatchPage(p *page.Page) Verdict {
	if cb, ok := r.pageCB[p.Serialno]; ok && cb != nil {
		return cb(p)
	}
	if r.anyPageCB != nil {
		return r.anyPageCB(p)
	}
	return Continue
}

func (r *Reader) dispatchPacket(pkt *Packet) Verdict {
	if cb, ok := r.packetCB[pkt.Serialno]; ok && cb != nil {
		return cb(pkt)
	}
	if r.anyPacketCB != nil {
		return r.anyPacketCB(pkt)
	}
	return Continue
}

// dispatchPackets walks a page's lacing table, reassembling any packets
// that complete on this page (accumulating continuation bytes across
// pages) and delivering each to the packet callback in order. Per
// spec.md §4.1, only the final packet completed by a page inherits that
// page's granulepos; earlier ones report -1.
func (r *Reader) dispatchPackets(p *page.Page) (Verdict, error) {
	buf := r.contBuf[p.Serialno]
	bodyOff := 0
	segStart := 0

	lastCompletedEnd := -1
	for i, s := range p.Segments {
		if s < 255 {
			lastCompletedEnd = i
		}
	}

	for i := 0; i < len(p.Segments); i++ {
		s := p.Segments[i]
		bodyOff += int(s)
		if s == 255 {
			continue
		}
		// Packet completes at this segment: everything from segStart..i
		// (inclusive) belongs to it.
		segLen := 0
		for j := segStart; j <= i; j++ {
			segLen += int(p.Segments[j])
		}
		start := bodyOff - segLen
		payload := append(buf, p.Body[start:bodyOff]...)
		buf = nil
		segStart = i + 1

		gp := page.NoGranulepos
		if i == lastCompletedEnd {
			gp = p.Granulepos
		}

		idx := r.packetCursor[p.Serialno]
		r.packetCursor[p.Serialno] = idx + 1

		verdict := r.dispatchPacket(&Packet{
			Serialno:   p.Serialno,
			Packetno:   idx,
			Granulepos: gp,
			Payload:    payload,
		})
		if verdict != Continue {
			r.contBuf[p.Serialno] = buf
			return verdict, nil
		}
	}

	// Any trailing run of 255s (segStart..end) is an incomplete packet
	// carried forward to the next page.
	if segStart < len(p.Segments) {
		tailLen := 0
		for j := segStart; j < len(p.Segments); j++ {
			tailLen += int(p.Segments[j])
		}
		start := len(p.Body) - tailLen
		buf = append(buf, p.Body[start:]...)
	}
	r.contBuf[p.Serialno] = buf

	return Continue, nil
}
