// Package chop implements the chop engine of spec.md §4.2: extract a
// time-interval [start, end] from a container while preserving validity
// of every retained stream, including the granule-shift accumulator
// strategy needed to keep a keyframe context intact at the cut point.
package chop

import (
	"io"
	"sort"

	"github.com/oggzgo/oggz/framer"
	"github.com/oggzgo/oggz/page"
	"github.com/oggzgo/oggz/registry"
	"github.com/pion/logging"
)

// Config is the chop engine's configuration: a time interval in seconds,
// with End < 0 meaning open-ended.
type Config struct {
	Start         float64
	End           float64
	LoggerFactory logging.LoggerFactory
}

// Engine drives one chop run over a single input/output pair.
type Engine struct {
	cfg Config
	fr  *framer.Reader
	reg *registry.Registry
	dst io.Writer
	log logging.LeveledLogger

	writtenAccum bool
	firstErr     error
}

// Run chops src into dst per cfg.
func Run(src io.Reader, dst io.Writer, cfg Config) error {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	e := &Engine{
		cfg: cfg,
		dst: dst,
		reg: registry.New(),
		log: lf.NewLogger("chop"),
	}
	e.fr = framer.NewReader(src, framer.WithLoggerFactory(lf))
	e.fr.SetAnyPageCallback(e.onAnyPage)

	if err := e.fr.Run(framer.RunOpts{}); err != nil {
		if e.firstErr != nil {
			return e.firstErr
		}
		return err
	}
	return e.firstErr
}

func (e *Engine) fail(err error) framer.Verdict {
	e.firstErr = err
	return framer.StopErr
}

func (e *Engine) emit(p *page.Page) bool {
	if err := framer.WritePage(e.dst, p); err != nil {
		e.fail(err)
		return false
	}
	return true
}

// onAnyPage implements read_bos. Registered as the catch-all callback, it
// only ever sees a stream's very first page (once a per-stream callback
// is registered, dispatch priority gives it every subsequent page for
// that serialno). Once a non-BOS page reaches it, every stream still has
// already started, so it deregisters itself per spec.md §4.2.
func (e *Engine) onAnyPage(p *page.Page) framer.Verdict {
	if !p.BOS {
		e.fr.SetAnyPageCallback(nil)
		return framer.Continue
	}

	ts := registry.NewTrackState(p.Serialno, e.fr.ContentType(p.Serialno), e.fr.StreamNumHeaders(p.Serialno), e.fr.Granuleshift(p.Serialno))
	e.reg.Add(ts)
	e.log.Debugf("chop: new stream serialno=%d codec=%s headers=%d granuleshift=%d", ts.Serialno, ts.Codec, ts.HeadersRemaining, ts.Granuleshift)

	headerCB := e.makeHeaderCB(ts)
	e.fr.SetPageCallback(p.Serialno, headerCB)
	return headerCB(p)
}

// makeHeaderCB implements read_headers: emit verbatim, track the header
// phase countdown, then switch to PLAIN or GRANULESHIFT once it ends.
func (e *Engine) makeHeaderCB(ts *registry.TrackState) framer.PageCallback {
	return func(p *page.Page) framer.Verdict {
		if !e.emit(p) {
			return framer.StopErr
		}
		ts.HeadersRemaining -= p.PacketCount()
		if ts.HeadersRemaining > 0 {
			return framer.Continue
		}

		e.log.Debugf("chop: serialno=%d header phase complete", ts.Serialno)
		if e.cfg.Start == 0 || ts.Granuleshift == 0 {
			e.fr.SetPageCallback(ts.Serialno, e.makePlainCB(ts))
		} else {
			e.fr.SetPageCallback(ts.Serialno, e.makeGSCB(ts))
		}
		return framer.Continue
	}
}

// makePlainCB implements read_plain: emit pages within [start, end], mark
// and emit the single page that crosses end, drop everything else.
func (e *Engine) makePlainCB(ts *registry.TrackState) framer.PageCallback {
	return func(p *page.Page) framer.Verdict {
		t := float64(e.fr.TellUnits(ts.Serialno)) / 1000.0

		inRange := t >= e.cfg.Start && (e.cfg.End < 0 || t <= e.cfg.End)
		if inRange {
			if !e.emit(p) {
				return framer.StopErr
			}
			return framer.Continue
		}

		if e.cfg.End >= 0 && t > e.cfg.End {
			p.SetEOS(true)
			if !e.emit(p) {
				return framer.StopErr
			}
			e.fr.SetPageCallback(ts.Serialno, nil)
			return framer.Continue
		}

		// t < start: not yet in range, drop.
		return framer.Continue
	}
}

// makeGSCB implements read_gs: buffer pre-start pages keyed to their
// keyframe window until the cut point is reached, then flush the
// accumulator once (across all streams) and hand off to PLAIN.
func (e *Engine) makeGSCB(ts *registry.TrackState) framer.PageCallback {
	return func(p *page.Page) framer.Verdict {
		t := float64(e.fr.TellUnits(ts.Serialno)) / 1000.0

		if t >= e.cfg.Start {
			if err := e.writeAccum(); err != nil {
				return e.fail(err)
			}
			plainCB := e.makePlainCB(ts)
			e.fr.SetPageCallback(ts.Serialno, plainCB)
			return plainCB(p)
		}

		if p.Granulepos != page.NoGranulepos {
			keyframe := p.Granulepos >> ts.Granuleshift
			if keyframe != ts.PrevKeyframe {
				e.log.Tracef("chop: serialno=%d keyframe discard prev=%d new=%d", ts.Serialno, ts.PrevKeyframe, keyframe)
			}
			ts.DiscardIfNewKeyframe(keyframe)
		}
		ts.AppendAccum(p, e.fr.TellUnits(ts.Serialno))
		return framer.Continue
	}
}

// writeAccum is write_accum: a one-shot k-way merge, by ascending time, of
// every stream's accumulator, writing each page exactly once and then
// freeing every accumulator. Cross-stream ties are broken by serialno,
// giving a deterministic order on top of each stream's own insertion
// order (already preserved by advancing its cursor sequentially).
func (e *Engine) writeAccum() error {
	if e.writtenAccum {
		return nil
	}
	e.writtenAccum = true

	type cursor struct {
		ts  *registry.TrackState
		idx int
	}
	var cursors []*cursor
	e.reg.Each(func(ts *registry.TrackState) {
		if len(ts.PageAccum) > 0 {
			cursors = append(cursors, &cursor{ts: ts})
		}
	})
	sort.Slice(cursors, func(i, j int) bool { return cursors[i].ts.Serialno < cursors[j].ts.Serialno })

	total := 0
	for _, c := range cursors {
		total += len(c.ts.PageAccum)
	}

	for emitted := 0; emitted < total; emitted++ {
		var best *cursor
		for _, c := range cursors {
			if c.idx >= len(c.ts.PageAccum) {
				continue
			}
			if best == nil || c.ts.PageAccum[c.idx].Units < best.ts.PageAccum[best.idx].Units {
				best = c
			}
		}
		entry := best.ts.PageAccum[best.idx]
		best.idx++
		if err := framer.WritePage(e.dst, entry.Page); err != nil {
			return err
		}
	}
	for _, c := range cursors {
		c.ts.ClearAccum()
	}
	e.log.Debugf("chop: write_accum flushed %d pages across %d streams", total, len(cursors))
	return nil
}
