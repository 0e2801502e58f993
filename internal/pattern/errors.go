package pattern

import (
	"errors"
	"fmt"
)

// ErrParse is the sentinel wrapped by every ParseError, so callers can test
// with errors.Is without knowing the concrete type.
var ErrParse = errors.New("parse error")

// ParseError reports that a buffer violates the structure a pattern
// declares. It always carries the offending absolute offset and the name of
// the pattern that detected the violation.
type ParseError struct {
	Pattern string
	Offset  int
	Msg     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", e.Pattern, e.Offset, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// NewParseError builds a ParseError with a formatted message.
func NewParseError(pattern string, offset int, format string, args ...interface{}) *ParseError {
	return &ParseError{Pattern: pattern, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}
