package framer

import (
	"io"

	"github.com/oggzgo/oggz/ogzerr"
	"github.com/oggzgo/oggz/page"
)

// FlushHint controls page-boundary forcing on WriteFeed, per spec.md
// §4.1.
type FlushHint int

const (
	// FlushNone lets the writer pack packets into a page until it fills.
	FlushNone FlushHint = iota
	// FlushAfter forces a page boundary immediately after this packet,
	// used so a packet's granulepos aligns with the page it ends on
	// (spec.md §4.3(3)).
	FlushAfter
	// FlushBefore forces any already-buffered packets onto a page before
	// this one is appended.
	FlushBefore
)

const maxSegmentsPerPage = 255

type writeState struct {
	pageno     uint32
	body       []byte
	segments   []byte
	granulepos int64
	pendingBOS bool
	sentAny    bool
}

// Writer packages packets fed via WriteFeed into pages and writes their
// serialized bytes to dst.
type Writer struct {
	dst     io.Writer
	streams map[uint32]*writeState
}

// NewWriter builds a Writer over dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst, streams: make(map[uint32]*writeState)}
}

func (w *Writer) stateFor(serialno uint32) *writeState {
	st, ok := w.streams[serialno]
	if !ok {
		st = &writeState{granulepos: page.NoGranulepos}
		w.streams[serialno] = st
	}
	return st
}

// WriteFeed queues packet for serialno. first marks the stream's very
// first packet (so the page it starts gets the BOS flag).
func (w *Writer) WriteFeed(serialno uint32, payload []byte, granulepos int64, first bool, flush FlushHint) error {
	st := w.stateFor(serialno)

	if flush == FlushBefore && len(st.segments) > 0 {
		if err := w.flush(serialno, false); err != nil {
			return err
		}
	}
	if first && !st.sentAny {
		st.pendingBOS = true
	}

	segs := laceSegments(len(payload))
	if len(st.segments)+len(segs) > maxSegmentsPerPage {
		if err := w.flush(serialno, false); err != nil {
			return err
		}
	}

	st.body = append(st.body, payload...)
	st.segments = append(st.segments, segs...)
	st.granulepos = granulepos

	if flush == FlushAfter {
		return w.flush(serialno, false)
	}
	return nil
}

// laceSegments mirrors page.lace but lives here since packets, not whole
// payload buffers, are what WriteFeed receives.
func laceSegments(payloadLen int) []byte {
	n := payloadLen/255 + 1
	segs := make([]byte, n)
	for i := 0; i < n-1; i++ {
		segs[i] = 255
	}
	segs[n-1] = byte(payloadLen % 255)
	return segs
}

func (w *Writer) flush(serialno uint32, eos bool) error {
	st := w.streams[serialno]
	if st == nil || (len(st.segments) == 0 && !eos) {
		return nil
	}

	p := &page.Page{
		Serialno:   serialno,
		Pageno:     st.pageno,
		Granulepos: st.granulepos,
		BOS:        st.pendingBOS,
		EOS:        eos,
		Segments:   st.segments,
		Body:       st.body,
	}
	if _, err := w.dst.Write(p.Bytes()); err != nil {
		return ogzerr.NewIoError(err)
	}

	st.pageno++
	st.pendingBOS = false
	st.sentAny = true
	st.body = nil
	st.segments = nil
	return nil
}

// WriteOutput drains bytes the writer has already serialized (spec.md
// §4.1's write_output(buf), and oggz-comment.c's edit_comments calling it
// in a loop until it returns none). It is not a page-boundary control: in
// this Writer every completed page is written to dst the moment flush
// decides one is ready (on FlushAfter, on a full lacing table, or on
// Close), so there is never a separate serialized-but-undrained buffer to
// pull from, and WriteOutput is correctly a no-op. Page boundaries are
// controlled solely by the flush hint passed to WriteFeed.
func (w *Writer) WriteOutput(serialno uint32) error {
	return nil
}

// FlushPending force-flushes every stream with buffered-but-unflushed
// packets, without marking end-of-stream. Used once, at a mode
// transition where a caller is about to start writing bytes to dst by
// some other means (e.g. the comment engine's switch from packet-level
// rewriting to raw page passthrough once the header phase ends), so that
// packing left pending by FlushNone can never land after those bytes.
func (w *Writer) FlushPending() error {
	for serialno, st := range w.streams {
		if len(st.segments) == 0 {
			continue
		}
		if err := w.flush(serialno, false); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes any stream that still has unflushed buffered packets,
// marking that final page end-of-stream. Streams with nothing pending
// (already flushed by FlushAfter, a full lacing table, or FlushPending)
// are left alone: their true final page, and its end-of-stream flag,
// comes from the source container's own page-passthrough phase, not from
// a synthesized one here.
func (w *Writer) Close() error {
	for serialno, st := range w.streams {
		if len(st.segments) == 0 {
			continue
		}
		if err := w.flush(serialno, true); err != nil {
			return err
		}
	}
	return nil
}

// WritePage writes a fully-formed page's bytes verbatim, used by the
// page-passthrough phases of chop/comment/sort where no packet-level
// repacking is needed.
func WritePage(dst io.Writer, p *page.Page) error {
	if _, err := dst.Write(p.Bytes()); err != nil {
		return ogzerr.NewIoError(err)
	}
	return nil
}
