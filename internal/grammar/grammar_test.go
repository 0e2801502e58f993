package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/binform/internal/pattern"
)

const chunkedDoc = `
format: CHUNKED
version: 2
composition:
  qualifier: sequence
  children:
    - pattern: MAGIC_NUMBER
      params:
        bytes: "42494e46"
    - qualifier: repeat_until
      child:
        pattern: TYPED_CHUNK
      terminator:
        pattern: TYPED_CHUNK
        params:
          tag: "END\x00"
`

func TestParse_Document(t *testing.T) {
	g, err := Parse([]byte(chunkedDoc))
	require.NoError(t, err)
	assert.Equal(t, "CHUNKED", g.Format)
	assert.Equal(t, 2, g.Version)
	assert.Equal(t, "CHUNKED/2", g.Ref())

	require.NoError(t, g.Validate(pattern.NewRegistry()))
}

func TestParse_MissingFields(t *testing.T) {
	_, err := Parse([]byte("version: 1\ncomposition: {pattern: MAGIC_NUMBER}\n"))
	assert.ErrorIs(t, err, ErrGrammar)

	_, err = Parse([]byte("format: X\ncomposition: {pattern: MAGIC_NUMBER}\n"))
	assert.ErrorIs(t, err, ErrGrammar)

	_, err = Parse([]byte("format: X\nversion: 1\n"))
	assert.ErrorIs(t, err, ErrGrammar)
}

func TestValidate_UnknownPattern(t *testing.T) {
	g := &Grammar{
		Format:      "BAD",
		Version:     1,
		Composition: &Node{Pattern: "NO_SUCH_PATTERN"},
	}
	err := g.Validate(pattern.NewRegistry())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGrammar)
	assert.Contains(t, err.Error(), "unknown pattern")
}

func TestValidate_BadQualifier(t *testing.T) {
	reg := pattern.NewRegistry()

	g := &Grammar{Format: "BAD", Version: 1, Composition: &Node{Qualifier: "maybe"}}
	assert.ErrorIs(t, g.Validate(reg), ErrGrammar)

	g = &Grammar{Format: "BAD", Version: 1, Composition: &Node{Qualifier: QualifierRepeatUntil,
		Child: &Node{Pattern: "TYPED_CHUNK"}}}
	assert.ErrorIs(t, g.Validate(reg), ErrGrammar)
}

func TestEncode_RoundTrip(t *testing.T) {
	g, err := Parse([]byte(chunkedDoc))
	require.NoError(t, err)

	data, err := g.Encode()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, g, again)
}

func TestEntryMagic(t *testing.T) {
	g, err := Parse([]byte(chunkedDoc))
	require.NoError(t, err)

	n := g.EntryMagic()
	require.NotNil(t, n)
	assert.Equal(t, "MAGIC_NUMBER", n.Pattern)

	noMagic := &Grammar{Format: "X", Version: 1, Composition: &Node{Pattern: "TYPED_CHUNK"}}
	assert.Nil(t, noMagic.EntryMagic())
}

func TestRegistry_Builtins(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	png, err := r.Latest("PNG")
	require.NoError(t, err)
	assert.Equal(t, "PNG", png.Format)

	_, err = r.Get("PNG", 99)
	assert.ErrorIs(t, err, ErrGrammar)

	all := r.All()
	assert.GreaterOrEqual(t, len(all), 3)
}

func TestRegistry_VersionsAreImmutable(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	g, err := Parse([]byte(chunkedDoc))
	require.NoError(t, err)
	require.NoError(t, r.Add(g))

	// Same format/version again is refused.
	dup, err := Parse([]byte(chunkedDoc))
	require.NoError(t, err)
	assert.ErrorIs(t, r.Add(dup), ErrGrammar)

	latest, err := r.Latest("CHUNKED")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
}

func TestStructuralFeatures(t *testing.T) {
	g, err := Parse([]byte(chunkedDoc))
	require.NoError(t, err)

	fields, diversity, depth, repeats := g.StructuralFeatures()
	assert.Equal(t, 3, fields)
	assert.Equal(t, 2, diversity)
	assert.True(t, repeats)
	assert.Greater(t, depth, 0)
}
