package pattern

import "fmt"

// Sequential repeats a child pattern until either a terminator pattern
// matches (the terminator is consumed and becomes the final child) or the
// buffer is exhausted. Every iteration must consume at least one byte;
// a zero-length child match is refused rather than looped on.
type Sequential struct {
	name       string
	Child      Pattern
	Terminator Pattern // nil repeats until end of buffer
}

// NewSequential composes a repetition programmatically. Grammar-driven
// repetition goes through the decomposer's repeat qualifiers, which share
// these semantics.
func NewSequential(name string, child, terminator Pattern) *Sequential {
	if name == "" {
		name = string(KindSequential)
	}
	return &Sequential{name: name, Child: child, Terminator: terminator}
}

// newSequentialFromParams exists so the registry can report the kind as
// known; composing a child via parameters alone is not supported.
func newSequentialFromParams(params Params) (Pattern, error) {
	return nil, fmt.Errorf("%s must be composed with a child pattern, not constructed from parameters", KindSequential)
}

func (s *Sequential) Name() string { return s.name }
func (s *Sequential) Kind() Kind   { return KindSequential }

func (s *Sequential) Match(buf []byte, offset int) (*Element, error) {
	if offset < 0 || offset > len(buf) {
		return nil, NewParseError(s.name, offset, "offset outside buffer")
	}
	el := &Element{Pattern: s.name, Offset: offset}
	cur := offset

	for {
		if s.Terminator != nil {
			if term, err := s.Terminator.Match(buf, cur); err == nil {
				el.Children = append(el.Children, term)
				cur += term.Length
				break
			}
		}
		if cur >= len(buf) {
			if s.Terminator != nil {
				return nil, NewParseError(s.name, cur, "buffer exhausted before terminator")
			}
			break
		}
		child, err := s.Child.Match(buf, cur)
		if err != nil {
			return nil, err
		}
		if child.Length == 0 {
			return nil, NewParseError(s.name, cur, "child %s made no forward progress", child.Pattern)
		}
		el.Children = append(el.Children, child)
		cur += child.Length
	}

	el.Length = cur - offset
	return el, nil
}

func (s *Sequential) Reconstruct(el *Element) ([]byte, error) {
	var out []byte
	for i, child := range el.Children {
		p := s.Child
		if s.Terminator != nil && i == len(el.Children)-1 && child.Pattern == s.Terminator.Name() {
			p = s.Terminator
		}
		b, err := p.Reconstruct(child)
		if err != nil {
			return nil, fmt.Errorf("child %d (%s): %w", i, child.Pattern, err)
		}
		out = append(out, b...)
	}
	return out, nil
}
