package pattern

import (
	"bytes"
	"fmt"
)

// KeyValue matches delimiter-separated key/value pairs, such as
// "key=value\n" records. Keys and values are arbitrary bytes; the key
// separator splits each item at its first occurrence.
//
// Each pair child covers its item's bytes only; the item separator between
// two pairs belongs to the region, not to either child, so the usual
// sibling-adjacency rule does not apply to pair children. Reconstruction
// re-inserts the separators.
type KeyValue struct {
	name    string
	ItemSep []byte
	KeySep  []byte
	Size    int // region size; -1 consumes the rest of the buffer
}

// NewKeyValue constructs a KEY_VALUE pattern.
//
// Parameters: item_sep (default "\n"), key_sep (default "="), size
// (optional fixed region length), name (optional).
func NewKeyValue(params Params) (Pattern, error) {
	itemSep := params.Text("item_sep")
	if itemSep == nil {
		itemSep = []byte("\n")
	}
	keySep := params.Text("key_sep")
	if keySep == nil {
		keySep = []byte("=")
	}
	if len(itemSep) == 0 || len(keySep) == 0 {
		return nil, fmt.Errorf("key/value separators must be non-empty")
	}
	size, err := params.Int("size", -1)
	if err != nil {
		return nil, err
	}
	return &KeyValue{
		name:    params.Name(string(KindKeyValue)),
		ItemSep: itemSep,
		KeySep:  keySep,
		Size:    size,
	}, nil
}

func (k *KeyValue) Name() string { return k.name }
func (k *KeyValue) Kind() Kind   { return KindKeyValue }

func (k *KeyValue) Match(buf []byte, offset int) (*Element, error) {
	if offset < 0 || offset > len(buf) {
		return nil, NewParseError(k.name, offset, "offset outside buffer")
	}
	end := len(buf)
	if k.Size >= 0 {
		if offset+k.Size > len(buf) {
			return nil, NewParseError(k.name, offset, "region of %d bytes exceeds buffer", k.Size)
		}
		end = offset + k.Size
	}
	region := buf[offset:end]

	trailing := uint64(0)
	if len(region) >= len(k.ItemSep) && bytes.HasSuffix(region, k.ItemSep) {
		trailing = 1
		region = region[:len(region)-len(k.ItemSep)]
	}

	el := &Element{Pattern: k.name, Offset: offset, Length: end - offset}
	el.SetField("trailing", UintValue(trailing))

	if len(region) == 0 {
		return el, nil
	}

	cur := offset
	for _, item := range bytes.Split(region, k.ItemSep) {
		sep := bytes.Index(item, k.KeySep)
		if sep < 0 {
			return nil, NewParseError(k.name, cur, "item %q has no key separator %q", item, k.KeySep)
		}
		pair := &Element{Pattern: k.name + "_PAIR", Offset: cur, Length: len(item)}
		pair.SetField("key", BytesValue(item[:sep]))
		pair.SetField("value", BytesValue(item[sep+len(k.KeySep):]))
		el.Children = append(el.Children, pair)
		cur += len(item) + len(k.ItemSep)
	}
	return el, nil
}

func (k *KeyValue) Reconstruct(el *Element) ([]byte, error) {
	var out []byte
	for i, pair := range el.Children {
		key, err := pair.BytesField("key")
		if err != nil {
			return nil, err
		}
		value, err := pair.BytesField("value")
		if err != nil {
			return nil, err
		}
		if i > 0 {
			out = append(out, k.ItemSep...)
		}
		out = append(out, key...)
		out = append(out, k.KeySep...)
		out = append(out, value...)
	}
	trailing, err := el.UintField("trailing")
	if err != nil {
		return nil, err
	}
	if trailing == 1 {
		out = append(out, k.ItemSep...)
	}
	if k.Size >= 0 && len(out) != k.Size {
		return nil, fmt.Errorf("reconstructed region is %d bytes, expected %d", len(out), k.Size)
	}
	return out, nil
}
