package speech

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderBytes(t *testing.T) {
	h := newHeader(FullClientRequest, NoSequenceNumber, JSONSerialization, GzipCompression)
	assert.Equal(t, []byte{0x11, 0x10, 0x11, 0x00}, h.Bytes())

	parsed, err := parseHeader(h.Bytes())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestParseHeaderRejectsUnknownVersion(t *testing.T) {
	_, err := parseHeader([]byte{0x21, 0x10, 0x11, 0x00})
	assert.Error(t, err)

	_, err = parseHeader([]byte{0x11})
	assert.Error(t, err)
}

func TestFrameRoundTrip(t *testing.T) {
	frames := []*Frame{
		NewFullClientRequest([]byte(`{"a":1}`), NoCompression),
		NewAudioRequest([]byte("pcm"), 2, false, NoCompression),
		NewAudioRequest([]byte("tail"), 5, true, NoCompression),
		{Header: newHeader(ErrorMessage, NoSequenceNumber, JSONSerialization, NoCompression), ErrorCode: 45000001, Payload: []byte("bad")},
	}

	for _, frame := range frames {
		decoded, err := DecodeFrame(bytes.NewReader(frame.Encode()))
		require.NoError(t, err)
		assert.Equal(t, frame.Header, decoded.Header)
		assert.Equal(t, frame.Sequence, decoded.Sequence)
		assert.Equal(t, frame.ErrorCode, decoded.ErrorCode)
		assert.Equal(t, frame.Payload, decoded.Payload)
	}
}

func TestAudioRequestFlags(t *testing.T) {
	middle := NewAudioRequest(nil, 3, false, GzipCompression)
	assert.Equal(t, PositiveSequenceNumber, middle.Header.Flags)
	assert.False(t, middle.IsLast())

	last := NewAudioRequest(nil, 4, true, GzipCompression)
	assert.Equal(t, NegativeSequenceNumber, last.Header.Flags)
	assert.Equal(t, int32(-4), last.Sequence)
	assert.True(t, last.IsLast())

	unnumbered := NewAudioRequest(nil, 0, true, GzipCompression)
	assert.Equal(t, LastPacketNoSequence, unnumbered.Header.Flags)
	assert.True(t, unnumbered.IsLast())
}

func TestDecodeFrameTruncatedPayload(t *testing.T) {
	encoded := NewFullClientRequest([]byte("0123456789"), NoCompression).Encode()
	_, err := DecodeFrame(bytes.NewReader(encoded[:len(encoded)-3]))
	assert.Error(t, err)
}

func TestCompressionRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("aura "), 200)

	packed, err := compress(data, GzipCompression)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(data))

	unpacked, err := decompress(packed, GzipCompression)
	require.NoError(t, err)
	assert.Equal(t, data, unpacked)

	same, err := compress(data, NoCompression)
	require.NoError(t, err)
	assert.Equal(t, data, same)

	_, err = compress(data, CompressionMethod(0b0111))
	assert.Error(t, err)
	_, err = decompress([]byte("not gzip"), GzipCompression)
	assert.Error(t, err)
}
