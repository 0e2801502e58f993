// Package decompose interprets a grammar against a byte buffer and
// produces a decomposition tree of matched elements.
package decompose

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kilupskalvis/binform/internal/grammar"
	"github.com/kilupskalvis/binform/internal/pattern"
)

// Mode controls how the decomposer reacts to a child failure inside a
// repeated or optional construct.
type Mode string

const (
	// ModeStrict aborts the whole decomposition on any parse error. It is
	// the default and the right choice whenever round-trip correctness
	// matters.
	ModeStrict Mode = "strict"

	// ModeBestEffort truncates a failing repetition at the last successful
	// element, records a warning on the tree, and continues with siblings.
	// Meant for exploratory decomposition of malformed files only.
	ModeBestEffort Mode = "best-effort"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStrict:
		return ModeStrict, nil
	case ModeBestEffort:
		return ModeBestEffort, nil
	default:
		return ModeStrict, fmt.Errorf("unknown decomposition mode %q", s)
	}
}

// Warning is a parse error that best-effort mode downgraded. It stays
// attached to the tree so truncation is never silent.
type Warning struct {
	Pattern string `json:"pattern"`
	Offset  int    `json:"offset"`
	Msg     string `json:"msg"`
}

// Tree is the result of decomposing one buffer with one grammar. The mode
// it was produced under is part of the result.
type Tree struct {
	Format   string           `json:"format"`
	Version  int              `json:"version"`
	Mode     Mode             `json:"mode"`
	Root     *pattern.Element `json:"root"`
	Warnings []Warning        `json:"warnings,omitempty"`
}

// Decomposer executes grammars against buffers. It is safe for concurrent
// use: decomposition is a pure read over the buffer and the registry.
type Decomposer struct {
	reg    *grammar.Registry
	mode   Mode
	logger *slog.Logger
}

// New returns a decomposer using the given registry and mode.
func New(reg *grammar.Registry, mode Mode) *Decomposer {
	return &Decomposer{reg: reg, mode: mode, logger: slog.Default()}
}

// WithLogger replaces the decomposer's logger and returns it for chaining.
func (d *Decomposer) WithLogger(l *slog.Logger) *Decomposer {
	if l != nil {
		d.logger = l
	}
	return d
}

// Mode returns the configured failure-handling mode.
func (d *Decomposer) Mode() Mode {
	return d.mode
}

// Decompose executes the grammar's root composition against the buffer
// starting at offset 0. In strict mode any unconsumed trailing bytes are a
// ParseError; in best-effort mode they become a warning.
func (d *Decomposer) Decompose(buf []byte, g *grammar.Grammar) (*Tree, error) {
	if err := g.Validate(d.reg.Patterns); err != nil {
		return nil, err
	}

	tree := &Tree{Format: g.Format, Version: g.Version, Mode: d.mode}
	root, err := d.execNode(buf, g.Composition, 0, tree)
	if err != nil {
		return nil, err
	}
	tree.Root = root

	if root.End() != len(buf) {
		if d.mode == ModeStrict {
			return nil, pattern.NewParseError(g.Format, root.End(),
				"%d trailing bytes not covered by grammar", len(buf)-root.End())
		}
		tree.Warnings = append(tree.Warnings, Warning{
			Pattern: g.Format,
			Offset:  root.End(),
			Msg:     fmt.Sprintf("%d trailing bytes not covered by grammar", len(buf)-root.End()),
		})
	}

	d.logger.Debug("decomposed buffer",
		"format", g.Format, "version", g.Version,
		"bytes", len(buf), "mode", string(d.mode), "warnings", len(tree.Warnings))
	return tree, nil
}

// execNode evaluates one composition node at the given offset and returns
// the resulting element. Composition qualifiers produce container elements
// named after the qualifier, so the tree mirrors the grammar's structure.
func (d *Decomposer) execNode(buf []byte, n *grammar.Node, offset int, tree *Tree) (*pattern.Element, error) {
	if n.IsLeaf() {
		p, err := d.reg.Patterns.Construct(pattern.Kind(n.Pattern), pattern.Params(n.Params))
		if err != nil {
			return nil, &grammar.GrammarError{Format: tree.Format, Msg: err.Error()}
		}
		return p.Match(buf, offset)
	}

	switch n.Qualifier {
	case grammar.QualifierSequence:
		return d.execSequence(buf, n, offset, tree)
	case grammar.QualifierRepeatUntil, grammar.QualifierRepeatEOF:
		return d.execRepeat(buf, n, offset, tree)
	case grammar.QualifierOptional:
		return d.execOptional(buf, n, offset, tree)
	default:
		return nil, &grammar.GrammarError{Format: tree.Format,
			Msg: fmt.Sprintf("unknown qualifier %q", n.Qualifier)}
	}
}

func (d *Decomposer) execSequence(buf []byte, n *grammar.Node, offset int, tree *Tree) (*pattern.Element, error) {
	el := &pattern.Element{Pattern: grammar.QualifierSequence, Offset: offset}
	cur := offset
	for _, child := range n.Children {
		c, err := d.execNode(buf, child, cur, tree)
		if err != nil {
			return nil, err
		}
		el.Children = append(el.Children, c)
		cur += c.Length
	}
	el.Length = cur - offset
	return el, nil
}

func (d *Decomposer) execRepeat(buf []byte, n *grammar.Node, offset int, tree *Tree) (*pattern.Element, error) {
	el := &pattern.Element{Pattern: n.Qualifier, Offset: offset}
	cur := offset

	for {
		if n.Qualifier == grammar.QualifierRepeatUntil {
			term, err := d.execNode(buf, n.Terminator, cur, tree)
			if err == nil {
				el.Children = append(el.Children, term)
				cur += term.Length
				el.Length = cur - offset
				return el, nil
			}
		}
		if cur >= len(buf) {
			if n.Qualifier == grammar.QualifierRepeatEOF {
				break
			}
			err := pattern.NewParseError(el.Pattern, cur, "buffer exhausted before terminator")
			if d.mode == ModeStrict {
				return nil, err
			}
			tree.Warnings = append(tree.Warnings, Warning{Pattern: err.Pattern, Offset: err.Offset, Msg: err.Msg})
			break
		}

		child, err := d.execNode(buf, n.Child, cur, tree)
		if err != nil {
			if d.mode == ModeStrict {
				return nil, err
			}
			// Truncate the repetition at the last good element.
			w := Warning{Pattern: el.Pattern, Offset: cur, Msg: err.Error()}
			var pe *pattern.ParseError
			if errors.As(err, &pe) {
				w = Warning{Pattern: pe.Pattern, Offset: pe.Offset, Msg: pe.Msg}
			}
			tree.Warnings = append(tree.Warnings, w)
			break
		}
		if child.Length == 0 {
			return nil, pattern.NewParseError(el.Pattern, cur,
				"child %s made no forward progress", child.Pattern)
		}
		el.Children = append(el.Children, child)
		cur += child.Length
	}

	el.Length = cur - offset
	return el, nil
}

func (d *Decomposer) execOptional(buf []byte, n *grammar.Node, offset int, tree *Tree) (*pattern.Element, error) {
	el := &pattern.Element{Pattern: grammar.QualifierOptional, Offset: offset}
	child, err := d.execNode(buf, n.Child, offset, tree)
	if err != nil {
		// An optional child that does not match contributes nothing. Only
		// parse errors are absorbed; grammar errors stay fatal.
		if errors.Is(err, pattern.ErrParse) {
			return el, nil
		}
		return nil, err
	}
	el.Children = append(el.Children, child)
	el.Length = child.Length
	return el, nil
}
