package dql

import (
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
)

// SyntaxError describes malformed query text. Pos is a byte offset.
type SyntaxError struct {
	Pos   int
	Token string
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("syntax error at position %d near %q: %s", e.Pos, e.Token, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return apperr.ErrInvalidQuery }
