package grammar

import "fmt"

// ParseError reports a syntactic failure at a specific position.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// UnexpectedCategory is returned by Parse when expectedCategory is set
// and the parsed statement's category does not match it.
type UnexpectedCategory struct {
	Expected string
	Got      string
}

func (e *UnexpectedCategory) Error() string {
	return fmt.Sprintf("expected %s statement, got %s", e.Expected, e.Got)
}

func errf(line, col int, format string, args ...any) error {
	return &ParseError{Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
}
