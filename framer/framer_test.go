package framer

import (
	"bytes"
	"testing"

	"github.com/oggzgo/oggz/ogzerr"
	"github.com/oggzgo/oggz/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildVorbisPage(serialno, pageno uint32, bos, eos bool, granulepos int64, body []byte) []byte {
	p := &page.Page{
		Serialno:   serialno,
		Pageno:     pageno,
		Granulepos: granulepos,
		BOS:        bos,
		EOS:        eos,
		Body:       body,
	}
	return p.Bytes()
}

func TestReaderDispatchesPageCallbackBySerialno(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(buildVorbisPage(1, 0, true, false, 0, append([]byte{0x01}, []byte("vorbis-id-header-stretched-out")...)))
	buf.Write(buildVorbisPage(2, 0, true, false, 0, []byte("OpusHead")))

	r := NewReader(&buf)

	var seen []uint32
	r.SetAnyPageCallback(func(p *page.Page) Verdict {
		seen = append(seen, p.Serialno)
		return Continue
	})

	require.NoError(t, r.Run(RunOpts{}))
	assert.Equal(t, []uint32{1, 2}, seen)
	assert.Equal(t, codecVorbis, r.ContentType(1))
	assert.Equal(t, 3, r.StreamNumHeaders(1))
	assert.Equal(t, codecOpus, r.ContentType(2))
	assert.Equal(t, 2, r.StreamNumHeaders(2))
}

func TestReaderSpecificCallbackTakesPriorityOverAny(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(buildVorbisPage(1, 0, true, false, 0, []byte("OpusHead")))

	r := NewReader(&buf)
	var anyCalled, specificCalled bool
	r.SetAnyPageCallback(func(p *page.Page) Verdict {
		anyCalled = true
		return Continue
	})
	r.SetPageCallback(1, func(p *page.Page) Verdict {
		specificCalled = true
		return Continue
	})

	require.NoError(t, r.Run(RunOpts{}))
	assert.True(t, specificCalled)
	assert.False(t, anyCalled)
}

func TestReaderStopErrSurfacesAsFramingError(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(buildVorbisPage(1, 0, true, false, 0, []byte("OpusHead")))

	r := NewReader(&buf)
	r.SetAnyPageCallback(func(p *page.Page) Verdict { return StopErr })

	err := r.Run(RunOpts{})
	require.Error(t, err)
	var fe *ogzerr.FramingError
	assert.ErrorAs(t, err, &fe)
}

func TestPacketReassemblySpansMultiplePages(t *testing.T) {
	payload := bytes.Repeat([]byte{0x7A}, 300) // spans the 255-byte lacing boundary

	// First page carries exactly 255 bytes as an incomplete packet
	// (a single lacing value of 255, no terminator).
	first := &page.Page{
		Serialno: 5, Pageno: 0, BOS: true, Granulepos: page.NoGranulepos,
		Segments: []byte{255}, Body: payload[:255],
	}

	second := &page.Page{Serialno: 5, Pageno: 1, Granulepos: 9999,
		Segments: []byte{45}, Body: payload[255:300]}

	var buf bytes.Buffer
	buf.Write(first.Bytes())
	buf.Write(second.Bytes())

	r := NewReader(&buf)
	var got *Packet
	r.SetPacketCallback(5, func(pkt *Packet) Verdict {
		got = pkt
		return Continue
	})

	require.NoError(t, r.Run(RunOpts{}))
	require.NotNil(t, got)
	assert.Equal(t, payload, got.Payload)
	assert.Equal(t, int64(9999), got.Granulepos)
	assert.Equal(t, 0, got.Packetno)
}

func TestCommentRoundTrip(t *testing.T) {
	c := &Comments{Vendor: "libX 1.0", Entries: []Entry{{Name: "TITLE", Value: "a"}}}
	raw := CommentsGenerate(codecVorbis, c)

	parsed, err := CommentIter(codecVorbis, raw)
	require.NoError(t, err)
	assert.Equal(t, "libX 1.0", parsed.Vendor)
	assert.Equal(t, []Entry{{Name: "TITLE", Value: "a"}}, parsed.Entries)
}

func TestWriterFeedProducesDecodeablePages(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	require.NoError(t, w.WriteFeed(1, []byte("id header"), page.NoGranulepos, true, FlushNone))
	require.NoError(t, w.Close())

	p, err := page.Decode(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.True(t, p.BOS)
	assert.True(t, p.EOS)
	assert.Equal(t, []byte("id header"), p.Body)
}
