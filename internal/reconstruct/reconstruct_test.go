package reconstruct

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/binform/internal/decompose"
	"github.com/kilupskalvis/binform/internal/grammar"
	"github.com/kilupskalvis/binform/internal/pattern"
)

func newTestRegistry(t *testing.T) *grammar.Registry {
	t.Helper()
	reg, err := grammar.NewRegistry()
	require.NoError(t, err)
	return reg
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// chunk assembles tag | len | data | crc (the CHUNKED layout).
func chunk(tag string, data []byte) []byte {
	out := append([]byte(tag), be32(uint32(len(data)))...)
	out = append(out, data...)
	crc := crc32.ChecksumIEEE(append([]byte(tag), data...))
	return append(out, be32(crc)...)
}

// pngChunk assembles len | tag | data | crc (the PNG layout).
func pngChunk(tag string, data []byte) []byte {
	out := append(be32(uint32(len(data))), []byte(tag)...)
	out = append(out, data...)
	crc := crc32.ChecksumIEEE(append([]byte(tag), data...))
	return append(out, be32(crc)...)
}

func roundTrip(t *testing.T, reg *grammar.Registry, g *grammar.Grammar, buf []byte) {
	t.Helper()
	tree, err := decompose.New(reg, decompose.ModeStrict).Decompose(buf, g)
	require.NoError(t, err)

	out, err := New(reg).Reconstruct(tree, g)
	require.NoError(t, err)
	assert.Equal(t, buf, out, "round trip must be byte-identical")
}

func TestReconstruct_ChunkedRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("CHUNKED")
	require.NoError(t, err)

	buf := []byte("BINF")
	buf = append(buf, chunk("TEST", nil)...)
	buf = append(buf, chunk("DATA", []byte{0x00, 0x01, 0xFE, 0xFF})...)
	buf = append(buf, chunk("END\x00", nil)...)

	roundTrip(t, reg, g, buf)
}

func TestReconstruct_PNGRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("PNG")
	require.NoError(t, err)

	buf := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	buf = append(buf, pngChunk("IHDR", make([]byte, 13))...)
	buf = append(buf, pngChunk("IDAT", []byte{0x78, 0x9C, 0x62, 0x00})...)
	buf = append(buf, pngChunk("IEND", nil)...)

	roundTrip(t, reg, g, buf)
}

func TestReconstruct_VariantGeneration(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("CHUNKED")
	require.NoError(t, err)

	buf := []byte("BINF")
	buf = append(buf, chunk("TEST", []byte("aaaa"))...)
	buf = append(buf, chunk("END\x00", nil)...)

	tree, err := decompose.New(reg, decompose.ModeStrict).Decompose(buf, g)
	require.NoError(t, err)

	// Mutate the payload (same size) without touching the stale checksum.
	testChunk := tree.Root.Children[1].Children[0]
	testChunk.SetField("data", pattern.BytesValue([]byte("bbbb")))

	out, err := New(reg).Reconstruct(tree, g)
	require.NoError(t, err)

	want := []byte("BINF")
	want = append(want, chunk("TEST", []byte("bbbb"))...)
	want = append(want, chunk("END\x00", nil)...)
	assert.Equal(t, want, out, "checksum must follow the edited payload")

	// The variant is itself grammar-conformant.
	_, err = decompose.New(reg, decompose.ModeStrict).Decompose(out, g)
	assert.NoError(t, err)
}

func TestReconstruct_StructuralMismatch(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("CHUNKED")
	require.NoError(t, err)

	buf := []byte("BINF")
	buf = append(buf, chunk("END\x00", nil)...)
	tree, err := decompose.New(reg, decompose.ModeStrict).Decompose(buf, g)
	require.NoError(t, err)

	// Drop the magic element; the sequence no longer matches the grammar.
	tree.Root.Children = tree.Root.Children[1:]

	_, err = New(reg).Reconstruct(tree, g)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReconstruction)
}

func TestReconstruct_MissingFieldIsFatal(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("CHUNKED")
	require.NoError(t, err)

	buf := []byte("BINF")
	buf = append(buf, chunk("END\x00", nil)...)
	tree, err := decompose.New(reg, decompose.ModeStrict).Decompose(buf, g)
	require.NoError(t, err)

	delete(tree.Root.Children[1].Children[0].Fields, "data")

	_, err = New(reg).Reconstruct(tree, g)
	assert.ErrorIs(t, err, ErrReconstruction)
}

func TestReconstruct_LengthMismatchIsFatal(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("CHUNKED")
	require.NoError(t, err)

	buf := []byte("BINF")
	buf = append(buf, chunk("END\x00", nil)...)
	tree, err := decompose.New(reg, decompose.ModeStrict).Decompose(buf, g)
	require.NoError(t, err)

	// Growing a payload without updating the tree's declared length is a
	// tampered tree, not a valid variant.
	tree.Root.Children[1].Children[0].SetField("data", pattern.BytesValue([]byte("grown")))

	_, err = New(reg).Reconstruct(tree, g)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReconstruction)
	assert.Contains(t, err.Error(), "tree declares")
}
