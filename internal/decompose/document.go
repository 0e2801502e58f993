package decompose

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Document is the serialized form of a decomposition tree: what the
// `decompose` command writes and the `reconstruct` command reads. When
// persisted in the content store as an extraction record it additionally
// carries a unique ID, the source file's exact hash, and a timestamp.
type Document struct {
	ID         string    `json:"id,omitempty"`
	SourceHash string    `json:"source_hash,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	Tree
}

// Document wraps the tree for serialization.
func (t *Tree) Document() *Document {
	return &Document{Tree: *t}
}

// Record stamps the tree as an extraction record for a source payload.
func (t *Tree) Record(sourceHash string) *Document {
	return &Document{
		ID:         uuid.NewString(),
		SourceHash: sourceHash,
		CreatedAt:  time.Now().UTC(),
		Tree:       *t,
	}
}

// Marshal renders the document as indented JSON.
func (d *Document) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal decomposition document: %w", err)
	}
	return data, nil
}

// ParseDocument decodes a decomposition document.
func ParseDocument(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse decomposition document: %w", err)
	}
	if d.Root == nil {
		return nil, fmt.Errorf("decomposition document has no root element")
	}
	return &d, nil
}
