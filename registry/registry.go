// Package registry implements the stream registry of spec.md §3: a
// serialno -> TrackState mapping populated at beginning-of-stream and
// used by every engine (chop, comment, sort).
package registry

import "github.com/oggzgo/oggz/page"

// AccumEntry is one (page copy, presentation time) pair held in a
// granule-shift stream's accumulator.
type AccumEntry struct {
	Page  *page.Page
	Units int64 // milliseconds
}

// TrackState is the per-stream bookkeeping described in spec.md §3.
type TrackState struct {
	Serialno         uint32
	Codec            string
	HeadersRemaining int
	Granuleshift     uint

	// PageAccum buffers pre-start pages for granule-shift streams only;
	// nil for streams whose codec does not use granule-shift encoding.
	PageAccum []AccumEntry

	PrevKeyframe int64
	StartGranule int64

	// LastPageno and SawPage are not set or read by any engine in this
	// module; they stay at their zero values.
	LastPageno uint32
	SawPage    bool
}

// NewTrackState allocates a TrackState for a stream just seen at its BOS
// page, with headersRemaining initialized to the codec's header count.
func NewTrackState(serialno uint32, codec string, numHeaders int, granuleshift uint) *TrackState {
	return &TrackState{
		Serialno:         serialno,
		Codec:            codec,
		HeadersRemaining: numHeaders,
		Granuleshift:     granuleshift,
		PrevKeyframe:     -1,
		StartGranule:     page.NoGranulepos,
	}
}

// DiscardIfNewKeyframe clears the accumulator when keyframe differs from
// the last one observed, so the buffer only ever holds pages belonging
// to the current keyframe window (spec.md §4.2's read_gs transition).
// Called only for pages that carry a defined granulepos.
func (t *TrackState) DiscardIfNewKeyframe(keyframe int64) {
	if keyframe != t.PrevKeyframe {
		t.PageAccum = nil
		t.PrevKeyframe = keyframe
	}
}

// AppendAccum appends a deep copy of p tagged with units.
func (t *TrackState) AppendAccum(p *page.Page, units int64) {
	t.PageAccum = append(t.PageAccum, AccumEntry{Page: p.Clone(), Units: units})
}

// ClearAccum frees the accumulator after a flush. Bounded per spec.md §9's
// resolved "i loop bound" open question: a plain slice reset, no sentinel
// out-of-range lookup is possible.
func (t *TrackState) ClearAccum() {
	t.PageAccum = nil
}

// Registry is the tracks mapping of spec.md §3's Engine state.
type Registry struct {
	tracks map[uint32]*TrackState
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{tracks: make(map[uint32]*TrackState)}
}

// Add registers a newly discovered stream's state.
func (r *Registry) Add(ts *TrackState) { r.tracks[ts.Serialno] = ts }

// Get returns the state for serialno, or (nil, false) if unknown.
func (r *Registry) Get(serialno uint32) (*TrackState, bool) {
	ts, ok := r.tracks[serialno]
	return ts, ok
}

// Remove deletes serialno's state (stream finished or orphaned).
func (r *Registry) Remove(serialno uint32) { delete(r.tracks, serialno) }

// Len reports how many streams are currently tracked.
func (r *Registry) Len() int { return len(r.tracks) }

// Each calls fn for every tracked stream's state. Iteration order is
// unspecified; callers that need determinism (write_accum's merge) must
// sort serialnos themselves.
func (r *Registry) Each(fn func(*TrackState)) {
	for _, ts := range r.tracks {
		fn(ts)
	}
}

// Serialnos returns the currently tracked serial numbers.
func (r *Registry) Serialnos() []uint32 {
	out := make([]uint32, 0, len(r.tracks))
	for s := range r.tracks {
		out = append(out, s)
	}
	return out
}
