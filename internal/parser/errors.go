package parser

import "fmt"

// SyntaxError reports a malformed token or local structure. The lexer and
// parser recover from syntax errors by resynchronizing to the next
// recognizable boundary; a SyntaxError never aborts a whole document parse
// on its own.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Msg)
}

// syntaxErrorf builds a SyntaxError at the given offset.
func syntaxErrorf(offset int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// StructuralError reports a broken cross-reference chain, a missing
// required trailer key, or a reference cycle. A StructuralError on the
// xref chain triggers the brute-force recovery path; on a resolve call it
// fails only that call.
type StructuralError struct {
	Msg string
	Err error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("structural error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("structural error: %s", e.Msg)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// structuralErrorf builds a StructuralError with a formatted message.
func structuralErrorf(format string, args ...any) *StructuralError {
	return &StructuralError{Msg: fmt.Sprintf(format, args...)}
}

// BoundsError reports an offset or length that falls outside the document
// buffer. It indicates either a corrupt cross-reference entry or a
// truncated file.
type BoundsError struct {
	Offset int64
	Size   int64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("offset %d out of bounds (buffer size %d)", e.Offset, e.Size)
}
