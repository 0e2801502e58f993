// Package grammar defines named, versioned compositions of patterns that
// describe binary formats, their YAML document form, and the registry that
// resolves them for decomposition.
package grammar

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kilupskalvis/binform/internal/pattern"
)

// Composition qualifiers. A node either references a pattern directly or
// carries a qualifier combining child nodes.
const (
	QualifierSequence    = "sequence"
	QualifierRepeatUntil = "repeat_until"
	QualifierRepeatEOF   = "repeat_eof"
	QualifierOptional    = "optional"
)

// ErrGrammar is the sentinel wrapped by every GrammarError.
var ErrGrammar = errors.New("grammar error")

// GrammarError reports a malformed or unresolvable grammar, such as a
// reference to an unknown pattern kind. It is always fatal.
type GrammarError struct {
	Format string
	Msg    string
}

func (e *GrammarError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("grammar: %s", e.Msg)
	}
	return fmt.Sprintf("grammar %s: %s", e.Format, e.Msg)
}

func (e *GrammarError) Unwrap() error {
	return ErrGrammar
}

func grammarErrf(format string, msgFormat string, args ...interface{}) *GrammarError {
	return &GrammarError{Format: format, Msg: fmt.Sprintf(msgFormat, args...)}
}

// Node is one node of a grammar's composition tree. Leaf nodes reference a
// pattern kind with parameters; qualifier nodes combine children.
type Node struct {
	Pattern    string                 `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Qualifier  string                 `yaml:"qualifier,omitempty" json:"qualifier,omitempty"`
	Params     map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
	Child      *Node                  `yaml:"child,omitempty" json:"child,omitempty"`
	Terminator *Node                  `yaml:"terminator,omitempty" json:"terminator,omitempty"`
	Children   []*Node                `yaml:"children,omitempty" json:"children,omitempty"`
}

// IsLeaf reports whether the node references a pattern directly.
func (n *Node) IsLeaf() bool {
	return n.Pattern != ""
}

// Grammar is a named, versioned composition describing one binary format.
// Grammars are immutable once stored: a new revision is a new object with a
// higher version, never an in-place edit.
type Grammar struct {
	Format      string `yaml:"format" json:"format"`
	Version     int    `yaml:"version" json:"version"`
	Composition *Node  `yaml:"composition" json:"composition"`
}

// Ref returns the canonical "FORMAT/version" reference for the grammar.
func (g *Grammar) Ref() string {
	return fmt.Sprintf("%s/%d", g.Format, g.Version)
}

// Parse decodes a grammar document from YAML.
func Parse(data []byte) (*Grammar, error) {
	var g Grammar
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, grammarErrf("", "parse document: %v", err)
	}
	if g.Format == "" {
		return nil, grammarErrf("", "document missing format name")
	}
	if g.Version <= 0 {
		return nil, grammarErrf(g.Format, "document missing positive version")
	}
	if g.Composition == nil {
		return nil, grammarErrf(g.Format, "document missing composition")
	}
	return &g, nil
}

// Encode renders the grammar as a YAML document.
func (g *Grammar) Encode() ([]byte, error) {
	data, err := yaml.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode grammar %s: %w", g.Ref(), err)
	}
	return data, nil
}

// Validate resolves every pattern reference in the composition against the
// registry and checks qualifier well-formedness. Any violation is a
// GrammarError.
func (g *Grammar) Validate(reg *pattern.Registry) error {
	if g.Composition == nil {
		return grammarErrf(g.Format, "missing composition")
	}
	return g.validateNode(g.Composition, reg)
}

func (g *Grammar) validateNode(n *Node, reg *pattern.Registry) error {
	if n.IsLeaf() {
		if n.Qualifier != "" {
			return grammarErrf(g.Format, "node %q has both a pattern and a qualifier", n.Pattern)
		}
		kind := pattern.Kind(n.Pattern)
		if !reg.Knows(kind) {
			return grammarErrf(g.Format, "unknown pattern %q", n.Pattern)
		}
		if _, err := reg.Construct(kind, pattern.Params(n.Params)); err != nil {
			return grammarErrf(g.Format, "pattern %q: %v", n.Pattern, err)
		}
		return nil
	}

	switch n.Qualifier {
	case QualifierSequence:
		if len(n.Children) == 0 {
			return grammarErrf(g.Format, "sequence node has no children")
		}
		for _, c := range n.Children {
			if err := g.validateNode(c, reg); err != nil {
				return err
			}
		}
	case QualifierRepeatUntil:
		if n.Child == nil || n.Terminator == nil {
			return grammarErrf(g.Format, "repeat_until node requires child and terminator")
		}
		if err := g.validateNode(n.Child, reg); err != nil {
			return err
		}
		if err := g.validateNode(n.Terminator, reg); err != nil {
			return err
		}
	case QualifierRepeatEOF:
		if n.Child == nil {
			return grammarErrf(g.Format, "repeat_eof node requires a child")
		}
		if err := g.validateNode(n.Child, reg); err != nil {
			return err
		}
	case QualifierOptional:
		if n.Child == nil {
			return grammarErrf(g.Format, "optional node requires a child")
		}
		if err := g.validateNode(n.Child, reg); err != nil {
			return err
		}
	case "":
		return grammarErrf(g.Format, "node has neither pattern nor qualifier")
	default:
		return grammarErrf(g.Format, "unknown qualifier %q", n.Qualifier)
	}
	return nil
}

// EntryMagic returns the first MAGIC_NUMBER leaf reachable without
// consuming other patterns first, or nil. The format detector uses it for
// the exact-signature pass.
func (g *Grammar) EntryMagic() *Node {
	return entryMagic(g.Composition)
}

func entryMagic(n *Node) *Node {
	if n == nil {
		return nil
	}
	if n.IsLeaf() {
		if pattern.Kind(n.Pattern) == pattern.KindMagicNumber {
			return n
		}
		return nil
	}
	switch n.Qualifier {
	case QualifierSequence:
		if len(n.Children) > 0 {
			return entryMagic(n.Children[0])
		}
	case QualifierRepeatUntil, QualifierRepeatEOF, QualifierOptional:
		return entryMagic(n.Child)
	}
	return nil
}

// StructuralFeatures summarizes the composition shape for similarity
// hashing: leaf count, distinct pattern kinds, repetition, and nesting
// depth.
func (g *Grammar) StructuralFeatures() (fieldCount, typeDiversity, depth int, repeats bool) {
	kinds := make(map[string]bool)
	var walk func(n *Node, d int)
	walk = func(n *Node, d int) {
		if n == nil {
			return
		}
		if d > depth {
			depth = d
		}
		if n.IsLeaf() {
			fieldCount++
			kinds[n.Pattern] = true
			return
		}
		if n.Qualifier == QualifierRepeatUntil || n.Qualifier == QualifierRepeatEOF {
			repeats = true
		}
		walk(n.Child, d+1)
		walk(n.Terminator, d+1)
		for _, c := range n.Children {
			walk(c, d+1)
		}
	}
	walk(g.Composition, 0)
	typeDiversity = len(kinds)
	return fieldCount, typeDiversity, depth, repeats
}
