package pattern

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildChunk assembles tag | len(4, BE) | data | crc32(tag+data).
func buildChunk(tag string, data []byte) []byte {
	out := []byte(tag)
	out = append(out, putUint(uint64(len(data)), 4, Big)...)
	out = append(out, data...)
	crc := crc32.ChecksumIEEE(append([]byte(tag), data...))
	return append(out, putUint(uint64(crc), 4, Big)...)
}

func TestTypedChunk_RoundTrip(t *testing.T) {
	p := mustPattern(t, NewTypedChunk, Params{})

	buf := buildChunk("TEST", []byte("payload"))
	el, err := p.Match(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(buf), el.Length)

	tag, err := el.BytesField("tag")
	require.NoError(t, err)
	assert.Equal(t, []byte("TEST"), tag)

	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestTypedChunk_EmptyPayload(t *testing.T) {
	p := mustPattern(t, NewTypedChunk, Params{})

	buf := buildChunk("END\x00", nil)
	el, err := p.Match(buf, 0)
	require.NoError(t, err)

	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestTypedChunk_ChecksumMismatch(t *testing.T) {
	p := mustPattern(t, NewTypedChunk, Params{})

	buf := buildChunk("TEST", []byte("payload"))
	buf[9] ^= 0xFF // corrupt one payload byte
	_, err := p.Match(buf, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Msg, "checksum mismatch")
}

func TestTypedChunk_LengthExceedsBuffer(t *testing.T) {
	p := mustPattern(t, NewTypedChunk, Params{})

	buf := buildChunk("TEST", []byte("payload"))
	// Inflate the declared length far past the remaining bytes.
	copy(buf[4:8], putUint(0xFFFF, 4, Big))
	_, err := p.Match(buf, 0)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 4, pe.Offset)
	assert.Contains(t, pe.Msg, "exceeds remaining buffer")
}

func TestTypedChunk_ExpectedTag(t *testing.T) {
	p := mustPattern(t, NewTypedChunk, Params{"tag": "IEND"})

	_, err := p.Match(buildChunk("IDAT", []byte("x")), 0)
	assert.ErrorIs(t, err, ErrParse)

	el, err := p.Match(buildChunk("IEND", nil), 0)
	require.NoError(t, err)
	assert.Equal(t, 12, el.Length)
}

func TestTypedChunk_LengthFirstLayout(t *testing.T) {
	p := mustPattern(t, NewTypedChunk, Params{"layout": "length_first"})

	// PNG-style: length | tag | data | crc32(tag+data).
	data := []byte("pixels")
	buf := putUint(uint64(len(data)), 4, Big)
	buf = append(buf, []byte("IDAT")...)
	buf = append(buf, data...)
	crc := crc32.ChecksumIEEE(append([]byte("IDAT"), data...))
	buf = append(buf, putUint(uint64(crc), 4, Big)...)

	el, err := p.Match(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(buf), el.Length)

	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestTypedChunk_ChecksumRecomputedAfterEdit(t *testing.T) {
	p := mustPattern(t, NewTypedChunk, Params{})

	el, err := p.Match(buildChunk("TEST", []byte("old")), 0)
	require.NoError(t, err)

	// Edit the payload but leave the stale stored checksum in place. The
	// reconstructed chunk must carry a checksum for the new payload.
	el.SetField("data", BytesValue([]byte("new-bytes")))
	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buildChunk("TEST", []byte("new-bytes")), out)

	// And the result must itself match again.
	_, err = p.Match(out, 0)
	assert.NoError(t, err)
}
