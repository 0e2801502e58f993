package grammar

// Builtins returns the grammars every registry starts with: PNG, a
// TIFF-style directory format, and the synthetic CHUNKED format used to
// exercise chunked layouts end to end.
func Builtins() []*Grammar {
	return []*Grammar{pngGrammar(), tiffGrammar(), chunkedGrammar()}
}

// pngGrammar describes a PNG file: the 8-byte signature followed by
// length-first chunks (length | tag | data | crc32 over tag+data) through
// IEND.
func pngGrammar() *Grammar {
	chunkParams := func(extra map[string]interface{}) map[string]interface{} {
		p := map[string]interface{}{"layout": "length_first"}
		for k, v := range extra {
			p[k] = v
		}
		return p
	}
	return &Grammar{
		Format:  "PNG",
		Version: 1,
		Composition: &Node{
			Qualifier: QualifierSequence,
			Children: []*Node{
				{
					Pattern: "MAGIC_NUMBER",
					Params:  map[string]interface{}{"bytes": "89504e470d0a1a0a"},
				},
				{
					Qualifier: QualifierRepeatUntil,
					Child: &Node{
						Pattern: "TYPED_CHUNK",
						Params:  chunkParams(nil),
					},
					Terminator: &Node{
						Pattern: "TYPED_CHUNK",
						Params:  chunkParams(map[string]interface{}{"tag": "IEND", "name": "IEND_CHUNK"}),
					},
				},
			},
		},
	}
}

// tiffGrammar is a little-endian TIFF skeleton: byte-order magic, the
// 4-byte first-IFD offset, then the IFD chain. It assumes the first IFD
// sits directly after the header (offset 8), which holds for most writers;
// its main job is magic-based detection and IFD traversal, not byte-exact
// validation of arbitrary TIFFs.
func tiffGrammar() *Grammar {
	return &Grammar{
		Format:  "TIFF",
		Version: 1,
		Composition: &Node{
			Qualifier: QualifierSequence,
			Children: []*Node{
				{
					Pattern: "MAGIC_NUMBER",
					Params:  map[string]interface{}{"bytes": "49492a00"},
				},
				{
					Pattern: "HEADER_BODY",
					Params:  map[string]interface{}{"header_size": 4, "body_size": 0, "name": "IFD_OFFSET"},
				},
				{
					Pattern: "CHAINED_DIRECTORY",
					Params: map[string]interface{}{
						"count_size": 2, "entry_size": 12, "next_size": 4, "endian": "little",
					},
				},
			},
		},
	}
}

// chunkedGrammar is the synthetic test format: a 4-byte signature followed
// by typed chunks until a chunk tagged "END\x00".
func chunkedGrammar() *Grammar {
	return &Grammar{
		Format:  "CHUNKED",
		Version: 1,
		Composition: &Node{
			Qualifier: QualifierSequence,
			Children: []*Node{
				{
					Pattern: "MAGIC_NUMBER",
					Params:  map[string]interface{}{"bytes": "42494e46"}, // "BINF"
				},
				{
					Qualifier: QualifierRepeatUntil,
					Child: &Node{
						Pattern: "TYPED_CHUNK",
					},
					Terminator: &Node{
						Pattern: "TYPED_CHUNK",
						Params:  map[string]interface{}{"tag": "END\x00", "name": "END_CHUNK"},
					},
				},
			},
		},
	}
}
