package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValue_RoundTrip(t *testing.T) {
	p := mustPattern(t, NewKeyValue, Params{})

	buf := []byte("name=lena\nformat=png\n")
	el, err := p.Match(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(buf), el.Length)
	require.Len(t, el.Children, 2)

	key, err := el.Children[1].BytesField("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("format"), key)

	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestKeyValue_NoTrailingSeparator(t *testing.T) {
	p := mustPattern(t, NewKeyValue, Params{})

	buf := []byte("a=1\nb=2")
	el, err := p.Match(buf, 0)
	require.NoError(t, err)

	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestKeyValue_ValueContainingKeySep(t *testing.T) {
	p := mustPattern(t, NewKeyValue, Params{})

	buf := []byte("eq=a=b")
	el, err := p.Match(buf, 0)
	require.NoError(t, err)

	value, err := el.Children[0].BytesField("value")
	require.NoError(t, err)
	assert.Equal(t, []byte("a=b"), value)

	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestKeyValue_MissingSeparator(t *testing.T) {
	p := mustPattern(t, NewKeyValue, Params{})

	_, err := p.Match([]byte("a=1\nnosep\n"), 0)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 4, pe.Offset)
}

func TestKeyValue_CustomSeparators(t *testing.T) {
	p := mustPattern(t, NewKeyValue, Params{"item_sep": ";", "key_sep": ":"})

	buf := []byte("x:1;y:2;")
	el, err := p.Match(buf, 0)
	require.NoError(t, err)
	require.Len(t, el.Children, 2)

	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestKeyValue_FixedRegion(t *testing.T) {
	p := mustPattern(t, NewKeyValue, Params{"size": 4})

	buf := []byte("k=v\nrest")
	el, err := p.Match(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, el.Length)

	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf[:4], out)
}
