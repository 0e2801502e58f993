package cas

import (
	"fmt"
	"time"
)

// ObjectType groups stored objects on disk and in the similarity index.
type ObjectType string

const (
	TypePattern    ObjectType = "pattern"
	TypeGrammar    ObjectType = "grammar"
	TypeFile       ObjectType = "file"
	TypeExtraction ObjectType = "extraction"
)

// ParseObjectType validates a type string from the CLI or the index.
func ParseObjectType(s string) (ObjectType, error) {
	switch t := ObjectType(s); t {
	case TypePattern, TypeGrammar, TypeFile, TypeExtraction:
		return t, nil
	default:
		return "", fmt.Errorf("unknown object type %q", s)
	}
}

// ContentObject is the metadata record stored alongside every payload:
// both hashes, the type, the size, and free-form metadata (for grammars,
// the format name and version). Objects are immutable once stored.
type ContentObject struct {
	ExactHash      string            `json:"exact_hash"`
	SimilarityHash string            `json:"similarity_hash"`
	Type           ObjectType        `json:"type"`
	Size           int               `json:"size"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ShortID returns the display form of the object's exact hash.
func (o *ContentObject) ShortID() string {
	return ShortHash(o.ExactHash)
}
