package framer

import (
	"encoding/binary"
	"errors"
	"strings"
)

// Entry is a single NAME=VALUE comment field (spec.md §4.3(2)).
type Entry struct {
	Name  string
	Value string
}

// Comments is the parsed form of a codec's comment packet (packet index
// 1), generalizing oggreader.OpusTags to the Vorbis-comment wire format
// shared by Vorbis, Theora, Speex and Opus.
type Comments struct {
	Vendor  string
	Entries []Entry
}

var errShortComments = errors.New("framer: comment packet too short")

// magicPrefix returns the codec-specific bytes that precede the shared
// vorbis-comment body in a comment packet.
func magicPrefix(codec string) []byte {
	switch codec {
	case codecVorbis:
		return []byte("\x03vorbis")
	case codecTheora:
		return []byte("\x81theora")
	case codecOpus:
		return []byte("OpusTags")
	case codecSpeex:
		return []byte("Speex   ")
	default:
		return nil
	}
}

// CommentIter parses a comment packet payload into its vendor string and
// entries.
func CommentIter(codec string, payload []byte) (*Comments, error) {
	prefix := magicPrefix(codec)
	if len(payload) < len(prefix) {
		return nil, errShortComments
	}
	body := payload[len(prefix):]

	const u32 = 4
	if len(body) < u32 {
		return nil, errShortComments
	}
	vendorLen := int(binary.LittleEndian.Uint32(body[0:u32]))
	if vendorLen < 0 || u32+vendorLen+u32 > len(body) {
		return nil, errShortComments
	}
	vendor := string(body[u32 : u32+vendorLen])
	pos := u32 + vendorLen

	count := int(binary.LittleEndian.Uint32(body[pos : pos+u32]))
	pos += u32

	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		if pos+u32 > len(body) {
			return nil, errShortComments
		}
		elen := int(binary.LittleEndian.Uint32(body[pos : pos+u32]))
		pos += u32
		if elen < 0 || pos+elen > len(body) {
			return nil, errShortComments
		}
		raw := string(body[pos : pos+elen])
		pos += elen

		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			continue
		}
		entries = append(entries, Entry{Name: parts[0], Value: parts[1]})
	}

	return &Comments{Vendor: vendor, Entries: entries}, nil
}

// CommentVendor returns just the vendor string (spec.md §4.1).
func CommentVendor(codec string, payload []byte) (string, error) {
	c, err := CommentIter(codec, payload)
	if err != nil {
		return "", err
	}
	return c.Vendor, nil
}

// CommentCopy returns a copy of src's entries, preserving relative order
// (spec.md §4.3(2): "the prior entries for that stream ... followed by
// the staged entries").
func CommentCopy(src *Comments) []Entry {
	return append([]Entry(nil), src.Entries...)
}

// CommentAdd appends name=value to dst's entries.
func CommentAdd(dst *Comments, name, value string) {
	dst.Entries = append(dst.Entries, Entry{Name: name, Value: value})
}

// CommentSetVendor overwrites dst's vendor string.
func CommentSetVendor(dst *Comments, vendor string) { dst.Vendor = vendor }

// CommentsGenerate serializes c back into a comment packet payload for
// codec, the mirror image of CommentIter.
func CommentsGenerate(codec string, c *Comments) []byte {
	prefix := magicPrefix(codec)

	const u32 = 4
	size := len(prefix) + u32 + len(c.Vendor) + u32
	for _, e := range c.Entries {
		size += u32 + len(e.Name) + 1 + len(e.Value)
	}

	buf := make([]byte, size)
	off := copy(buf, prefix)

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(c.Vendor)))
	off += u32
	off += copy(buf[off:], c.Vendor)

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(c.Entries)))
	off += u32

	for _, e := range c.Entries {
		field := e.Name + "=" + e.Value
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(field)))
		off += u32
		off += copy(buf[off:], field)
	}

	return buf
}
