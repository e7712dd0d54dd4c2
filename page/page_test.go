package page

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := &Page{
		Serialno:   42,
		Pageno:     3,
		Granulepos: 12345,
		BOS:        true,
		Body:       []byte("hello ogg page"),
	}

	decoded, err := Decode(bytes.NewReader(p.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, p.Serialno, decoded.Serialno)
	assert.Equal(t, p.Pageno, decoded.Pageno)
	assert.Equal(t, p.Granulepos, decoded.Granulepos)
	assert.True(t, decoded.BOS)
	assert.False(t, decoded.EOS)
	assert.Equal(t, p.Body, decoded.Body)
}

func TestDecodeRejectsBadSignature(t *testing.T) {
	buf := (&Page{Serialno: 1, Body: []byte("x")}).Bytes()
	buf[0] = 'X'

	_, err := Decode(bytes.NewReader(buf))
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestDecodeDetectsChecksumMismatch(t *testing.T) {
	buf := (&Page{Serialno: 1, Body: []byte("payload")}).Bytes()
	buf[len(buf)-1] ^= 0xFF

	_, err := Decode(bytes.NewReader(buf))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestSetEOSRecomputesChecksum(t *testing.T) {
	p := &Page{Serialno: 7, Pageno: 1, Body: []byte("data")}
	before := p.Bytes()

	p.SetEOS(true)
	after := p.Bytes()

	assert.NotEqual(t, before, after)
	decoded, err := Decode(bytes.NewReader(after))
	require.NoError(t, err)
	assert.True(t, decoded.EOS)
}

func TestSetGranuleposRepairRecomputesChecksum(t *testing.T) {
	p := &Page{Serialno: 9, Granulepos: 5000, Body: []byte("continuation")}
	p.SetGranulepos(NoGranulepos)

	decoded, err := Decode(bytes.NewReader(p.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, NoGranulepos, decoded.Granulepos)
}

func TestPacketCountCountsTerminalLacingValues(t *testing.T) {
	p := &Page{Segments: []byte{255, 255, 10, 255, 3}}
	assert.Equal(t, 2, p.PacketCount())
}

func TestCloneIsIndependent(t *testing.T) {
	p := &Page{Serialno: 1, Segments: []byte{1, 2}, Body: []byte{1, 2, 3}}
	c := p.Clone()
	c.Body[0] = 99
	c.Segments[0] = 99

	assert.Equal(t, byte(1), p.Body[0])
	assert.Equal(t, byte(1), p.Segments[0])
}
