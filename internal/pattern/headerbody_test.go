package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderBody_FixedBody(t *testing.T) {
	p := mustPattern(t, NewHeaderBody, Params{"header_size": 2, "body_size": 3})

	buf := []byte{0x01, 0x02, 'a', 'b', 'c', 0xFF}
	el, err := p.Match(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, el.Length)

	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf[:5], out)
}

func TestHeaderBody_MarkerDelimited(t *testing.T) {
	p := mustPattern(t, NewHeaderBody, Params{"header_size": 2, "marker": "ffd9"})

	buf := []byte{0x01, 0x02, 'd', 'a', 't', 'a', 0xFF, 0xD9}
	el, err := p.Match(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, el.Length) // marker not consumed

	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf[:6], out)
}

func TestHeaderBody_MarkerNotFound(t *testing.T) {
	p := mustPattern(t, NewHeaderBody, Params{"header_size": 2, "marker": "ffd9"})

	_, err := p.Match([]byte{0x01, 0x02, 'd'}, 0)
	assert.ErrorIs(t, err, ErrParse)
}

func TestHeaderBody_RestOfBuffer(t *testing.T) {
	p := mustPattern(t, NewHeaderBody, Params{"header_size": 1})

	buf := []byte{0xAA, 'r', 'e', 's', 't'}
	el, err := p.Match(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(buf), el.Length)

	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestHeaderBody_TruncatedHeader(t *testing.T) {
	p := mustPattern(t, NewHeaderBody, Params{"header_size": 8})

	_, err := p.Match([]byte{0x01}, 0)
	assert.ErrorIs(t, err, ErrParse)
}

func TestRegistry_ClosedCatalog(t *testing.T) {
	reg := NewRegistry()

	for _, kind := range []Kind{
		KindMagicNumber, KindLengthPrefixed, KindTypedChunk, KindHeaderBody,
		KindChainedDirectory, KindKeyValue, KindSequential,
	} {
		assert.True(t, reg.Knows(kind), "missing kind %s", kind)
	}

	_, err := reg.Construct("NO_SUCH_KIND", Params{})
	assert.Error(t, err)
}
