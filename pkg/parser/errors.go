package parser

import "fmt"

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages
const (
	ErrUnexpectedToken        = "unexpected token %s, expected %s"
	ErrUnterminatedString     = "unterminated string literal"
	ErrUnterminatedIdentifier = "unterminated quoted identifier"
	ErrEmptySelectList        = "empty select list"
	ErrTooManyNameParts       = "table name %q has more than three parts"
	ErrNestedWith             = "WITH inside a parenthesized set operand is not supported"
	ErrTrailingInput          = "unexpected %s after end of statement"
)
