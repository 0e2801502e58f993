// Package reconstruct rebuilds the original byte buffer from a
// decomposition tree and the grammar that produced it. Computed fields
// (lengths, checksums) are recomputed from the other fields rather than
// replayed, so a hand-edited tree reconstructs into a grammar-conformant
// binary with consistent derived values.
package reconstruct

import (
	"errors"
	"fmt"

	"github.com/kilupskalvis/binform/internal/decompose"
	"github.com/kilupskalvis/binform/internal/grammar"
	"github.com/kilupskalvis/binform/internal/pattern"
)

// ErrReconstruction is the sentinel wrapped by every ReconstructionError.
var ErrReconstruction = errors.New("reconstruction error")

// ReconstructionError reports a tree that cannot be re-serialized: a
// structural mismatch against the grammar, a missing or undecodable field,
// or a final length disagreement. It is always fatal — it means either an
// engine defect or a tampered tree.
type ReconstructionError struct {
	Pattern string
	Msg     string
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("reconstruct %s: %s", e.Pattern, e.Msg)
}

func (e *ReconstructionError) Unwrap() error {
	return ErrReconstruction
}

func reconErrf(p string, format string, args ...interface{}) *ReconstructionError {
	return &ReconstructionError{Pattern: p, Msg: fmt.Sprintf(format, args...)}
}

// Reconstructor re-serializes decomposition trees.
type Reconstructor struct {
	reg *grammar.Registry
}

// New returns a reconstructor using the given registry.
func New(reg *grammar.Registry) *Reconstructor {
	return &Reconstructor{reg: reg}
}

// Reconstruct walks the tree depth-first in element order against the
// grammar's composition and concatenates each pattern's output.
// Reconstruction is sequential: later elements may depend on earlier
// output (lengths, checksums), so no reordering is attempted.
func (r *Reconstructor) Reconstruct(tree *decompose.Tree, g *grammar.Grammar) ([]byte, error) {
	if err := g.Validate(r.reg.Patterns); err != nil {
		return nil, err
	}
	if tree.Root == nil {
		return nil, reconErrf(g.Format, "tree has no root element")
	}
	out, err := r.reconNode(g.Composition, tree.Root)
	if err != nil {
		return nil, err
	}
	if len(out) != tree.Root.Length {
		return nil, reconErrf(g.Format,
			"reconstructed %d bytes, tree declares %d", len(out), tree.Root.Length)
	}
	return out, nil
}

// reconNode re-serializes one composition node from its matching element.
func (r *Reconstructor) reconNode(n *grammar.Node, el *pattern.Element) ([]byte, error) {
	if n.IsLeaf() {
		p, err := r.reg.Patterns.Construct(pattern.Kind(n.Pattern), pattern.Params(n.Params))
		if err != nil {
			return nil, reconErrf(n.Pattern, "%v", err)
		}
		if el.Pattern != p.Name() {
			return nil, reconErrf(p.Name(), "tree element is %q, grammar expects %q", el.Pattern, p.Name())
		}
		out, err := p.Reconstruct(el)
		if err != nil {
			return nil, reconErrf(p.Name(), "%v", err)
		}
		return out, nil
	}

	if el.Pattern != n.Qualifier {
		return nil, reconErrf(n.Qualifier, "tree element is %q, grammar expects a %s group", el.Pattern, n.Qualifier)
	}

	switch n.Qualifier {
	case grammar.QualifierSequence:
		if len(el.Children) != len(n.Children) {
			return nil, reconErrf(n.Qualifier, "sequence has %d elements, grammar expects %d",
				len(el.Children), len(n.Children))
		}
		var out []byte
		for i, child := range n.Children {
			b, err := r.reconNode(child, el.Children[i])
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return out, nil

	case grammar.QualifierRepeatUntil, grammar.QualifierRepeatEOF:
		var out []byte
		for i, childEl := range el.Children {
			node := n.Child
			if n.Qualifier == grammar.QualifierRepeatUntil &&
				i == len(el.Children)-1 && r.matchesNodeName(n.Terminator, childEl) {
				node = n.Terminator
			}
			b, err := r.reconNode(node, childEl)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return out, nil

	case grammar.QualifierOptional:
		if len(el.Children) == 0 {
			return nil, nil
		}
		if len(el.Children) > 1 {
			return nil, reconErrf(n.Qualifier, "optional group has %d elements", len(el.Children))
		}
		return r.reconNode(n.Child, el.Children[0])

	default:
		return nil, reconErrf(n.Qualifier, "unknown qualifier")
	}
}

// matchesNodeName reports whether the element was produced by the node's
// pattern, going by the constructed pattern's name.
func (r *Reconstructor) matchesNodeName(n *grammar.Node, el *pattern.Element) bool {
	if n == nil || !n.IsLeaf() {
		return false
	}
	p, err := r.reg.Patterns.Construct(pattern.Kind(n.Pattern), pattern.Params(n.Params))
	if err != nil {
		return false
	}
	return el.Pattern == p.Name()
}
