package comment

import (
	"bytes"
	"strings"
	"testing"

	"github.com/oggzgo/oggz/framer"
	"github.com/oggzgo/oggz/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vorbisIdent() []byte {
	body := make([]byte, 30)
	body[0] = 1
	copy(body[1:7], "vorbis")
	return body
}

func buildVorbisContainer(t *testing.T, vendor string, entries []framer.Entry) []byte {
	t.Helper()
	comments := &framer.Comments{Vendor: vendor, Entries: entries}
	commentPayload := framer.CommentsGenerate("vorbis", comments)

	var buf bytes.Buffer
	buf.Write((&page.Page{Serialno: 1, Pageno: 0, BOS: true, Granulepos: page.NoGranulepos, Body: vorbisIdent()}).Bytes())
	buf.Write((&page.Page{Serialno: 1, Pageno: 1, Granulepos: page.NoGranulepos, Body: commentPayload}).Bytes())
	buf.Write((&page.Page{Serialno: 1, Pageno: 2, Granulepos: page.NoGranulepos, Body: []byte("setup")}).Bytes())
	buf.Write((&page.Page{Serialno: 1, Pageno: 3, EOS: true, Granulepos: 100, Body: []byte("data")}).Bytes())
	return buf.Bytes()
}

func readCommentPacket(t *testing.T, raw []byte) *framer.Comments {
	t.Helper()
	r := framer.NewReader(bytes.NewReader(raw))
	var got *framer.Comments
	r.SetAnyPacketCallback(func(pkt *framer.Packet) framer.Verdict {
		if pkt.Packetno == 1 {
			c, err := framer.CommentIter(r.ContentType(pkt.Serialno), pkt.Payload)
			require.NoError(t, err)
			got = c
			return framer.StopOk
		}
		return framer.Continue
	})
	require.NoError(t, r.Run(framer.RunOpts{}))
	require.NotNil(t, got)
	return got
}

// TestCommentAddEntry exercises spec.md §8 scenario S3.
func TestCommentAddEntry(t *testing.T) {
	in := buildVorbisContainer(t, "libX 1.0", []framer.Entry{{Name: "TITLE", Value: "a"}})

	var out bytes.Buffer
	cfg := Config{DoAll: true, Staged: []Entry{{Name: "GENRE", Value: "rock"}}}
	require.NoError(t, Run(bytes.NewReader(in), &out, cfg))

	c := readCommentPacket(t, out.Bytes())
	assert.Equal(t, "libX 1.0", c.Vendor)
	assert.Equal(t, []framer.Entry{{Name: "TITLE", Value: "a"}, {Name: "GENRE", Value: "rock"}}, c.Entries)
}

// TestCommentAddWithDelete exercises spec.md §8 scenario S4.
func TestCommentAddWithDelete(t *testing.T) {
	in := buildVorbisContainer(t, "libX 1.0", []framer.Entry{{Name: "TITLE", Value: "a"}})

	var out bytes.Buffer
	cfg := Config{DoAll: true, Delete: true, Staged: []Entry{{Name: "GENRE", Value: "rock"}}}
	require.NoError(t, Run(bytes.NewReader(in), &out, cfg))

	c := readCommentPacket(t, out.Bytes())
	assert.Equal(t, "libX 1.0", c.Vendor)
	assert.Equal(t, []framer.Entry{{Name: "GENRE", Value: "rock"}}, c.Entries)
}

func TestCommentFilterBySerialnoExcludesOthers(t *testing.T) {
	in := buildVorbisContainer(t, "libX 1.0", []framer.Entry{{Name: "TITLE", Value: "a"}})

	var out bytes.Buffer
	cfg := Config{Serialnos: map[uint32]bool{999: true}, Staged: []Entry{{Name: "GENRE", Value: "rock"}}}
	require.NoError(t, Run(bytes.NewReader(in), &out, cfg))

	c := readCommentPacket(t, out.Bytes())
	assert.Equal(t, []framer.Entry{{Name: "TITLE", Value: "a"}}, c.Entries)
}

func TestCommentPassthroughFidelityAfterHeaders(t *testing.T) {
	in := buildVorbisContainer(t, "libX 1.0", nil)

	var out bytes.Buffer
	require.NoError(t, Run(bytes.NewReader(in), &out, Config{}))

	// The final page (data, post-header) is untouched: same granulepos
	// and end-of-stream flag as the source.
	r := bytes.NewReader(out.Bytes())
	var last *page.Page
	for {
		p, err := page.Decode(r)
		if err != nil {
			break
		}
		last = p
	}
	require.NotNil(t, last)
	assert.Equal(t, int64(100), last.Granulepos)
	assert.True(t, last.EOS)
}

func TestCommentListFormatsEachStream(t *testing.T) {
	in := buildVorbisContainer(t, "libX 1.0", []framer.Entry{{Name: "TITLE", Value: "a"}})

	var out bytes.Buffer
	require.NoError(t, List(bytes.NewReader(in), &out, Config{DoAll: true}))

	text := out.String()
	assert.True(t, strings.Contains(text, "Vendor: libX 1.0"))
	assert.True(t, strings.Contains(text, "TITLE=a"))
	assert.False(t, strings.Contains(text, "----")) // only one stream, no separator
}
