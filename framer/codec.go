package framer

import "encoding/binary"

// CodecIntrospector is the "codec metadata introspection library"
// spec.md §1 names as an external collaborator: given a stream's BOS
// page payload, it identifies the codec, how many leading packets are
// headers, and (for granule-shift codecs) the shift amount. The chop,
// comment and sort engines never inspect payload bytes themselves; they
// only ever call framer.StreamNumHeaders/Granuleshift/ContentType, which
// delegate here. DefaultIntrospector is a reasonable concrete instance of
// that black box, not a claim of bit-exact conformance to every codec's
// RFC.
type CodecIntrospector interface {
	// Identify returns a human-readable codec/content-type name and the
	// packet count of that codec's header phase (including the BOS
	// packet itself).
	Identify(bosPayload []byte) (codec string, numHeaders int)

	// Granuleshift returns the granule-shift amount for codec, given its
	// BOS payload; 0 for codecs that are not granule-shift encoded.
	Granuleshift(codec string, bosPayload []byte) uint
}

// DefaultIntrospector recognizes Vorbis, Theora, Opus and Speex
// identification packets, and falls back to a single-header, non-
// granule-shift "unknown" codec for anything else so that chop/comment/
// sort always make forward progress rather than refusing unrecognized
// streams outright.
type DefaultIntrospector struct{}

const (
	codecVorbis  = "vorbis"
	codecTheora  = "theora"
	codecOpus    = "opus"
	codecSpeex   = "speex"
	codecUnknown = "unknown"
)

func (DefaultIntrospector) Identify(payload []byte) (string, int) {
	switch {
	case len(payload) >= 7 && string(payload[1:7]) == "vorbis":
		return codecVorbis, 3 // identification, comment, setup
	case len(payload) >= 7 && string(payload[1:7]) == "theora":
		return codecTheora, 3 // identification, comment, setup
	case len(payload) >= 8 && string(payload[0:8]) == "OpusHead":
		return codecOpus, 2 // identification, comment
	case len(payload) >= 8 && string(payload[0:8]) == "Speex   ":
		return codecSpeex, 2
	default:
		return codecUnknown, 1
	}
}

func (DefaultIntrospector) Granuleshift(codec string, payload []byte) uint {
	if codec != codecTheora || len(payload) < 42 {
		return 0
	}
	// The 5-bit granule shift is read from the top five bits of byte 40
	// of the identification header; this is a best-effort extraction,
	// not a full bitstream parser (out of scope per spec.md §1).
	return uint(payload[40]>>3) & 0x1F
}

// Clock converts a stream's granulepos into a presentation time in
// milliseconds — also part of the external codec/framer black box
// (spec.md §1), since the conversion is codec- and sample-rate-specific.
type Clock interface {
	Millis(codec string, bosPayload []byte, granulepos int64) int64
}

// DefaultClock implements the common sample-rate-based conversions: Opus
// is fixed at a 48kHz clock; Vorbis and Speex carry their sample rate in
// the identification header; Theora's granulepos is treated as a plain
// frame count at a fixed 30 frames per second (the granuleshift split
// into keyframe index and offset is not applied, and the frame rate in
// the identification header is not read); anything unrecognized is
// passed through unchanged.
type DefaultClock struct{}

func (DefaultClock) Millis(codec string, payload []byte, granulepos int64) int64 {
	if granulepos < 0 {
		return -1
	}
	switch codec {
	case codecOpus:
		const opusRate = 48000
		return granulepos * 1000 / opusRate
	case codecVorbis, codecSpeex:
		if len(payload) >= 16 {
			rate := binary.LittleEndian.Uint32(payload[12:16])
			if rate > 0 {
				return granulepos * 1000 / int64(rate)
			}
		}
		return granulepos
	case codecTheora:
		const defaultFrameRate = 30
		return granulepos * 1000 / defaultFrameRate
	default:
		return granulepos
	}
}
