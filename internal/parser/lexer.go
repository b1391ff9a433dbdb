// Package parser implements PDF document lexing, object parsing, and
// cross-reference resolution over an in-memory byte buffer.
package parser

import (
	"fmt"
)

// Lexer tokenizes PDF syntax from a byte buffer.
//
// The lexer is purely forward-scanning from an arbitrary byte offset and
// keeps no global state. This is required because the cross-reference
// table supplies arbitrary jump targets: callers Seek to an offset taken
// from an xref entry and lex from there.
//
// Reference: PDF 1.7 specification, Section 7.2 (Lexical Conventions).
type Lexer struct {
	data []byte
	pos  int
}

// NewLexer creates a lexer over the given buffer, positioned at offset 0.
func NewLexer(data []byte) *Lexer {
	return &Lexer{data: data}
}

// Seek positions the lexer at the given byte offset.
func (l *Lexer) Seek(offset int) error {
	if offset < 0 || offset > len(l.data) {
		return &BoundsError{Offset: int64(offset), Size: int64(len(l.data))}
	}
	l.pos = offset
	return nil
}

// Pos returns the current byte offset.
func (l *Lexer) Pos() int {
	return l.pos
}

// Len returns the total buffer length.
func (l *Lexer) Len() int {
	return len(l.data)
}

// isWhitespace reports whether b is PDF whitespace.
//
// Reference: PDF 1.7 specification, Table 1 (White-space characters).
func isWhitespace(b byte) bool {
	switch b {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

// isDelimiter reports whether b is a PDF delimiter character.
//
// Reference: PDF 1.7 specification, Table 2 (Delimiter characters).
func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// isRegular reports whether b is a regular character (neither whitespace
// nor delimiter).
func isRegular(b byte) bool {
	return !isWhitespace(b) && !isDelimiter(b)
}

// isDigit reports whether b is an ASCII decimal digit.
func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// hexValue returns the value of an ASCII hex digit, or -1.
func hexValue(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	}
	return -1
}

// skipWhitespace advances past whitespace and comments.
//
// Comments run from '%' to the next end-of-line and are lexically
// equivalent to whitespace. Byte offsets are preserved: the lexer position
// after skipping is exactly the offset of the next meaningful byte.
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) {
			l.pos++
			continue
		}
		if b == '%' {
			// Comment: skip to end of line
			l.pos++
			for l.pos < len(l.data) && l.data[l.pos] != '\r' && l.data[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		return
	}
}

// NextToken reads and returns the next token.
//
// At end of input a TokenEOF token is returned with a nil error. On a
// malformed construct the offending bytes are consumed and a SyntaxError
// is returned, so a caller that resynchronizes can simply call NextToken
// again.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	start := l.pos
	if l.pos >= len(l.data) {
		return Token{Type: TokenEOF, Offset: start}, nil
	}

	b := l.data[l.pos]
	switch {
	case b == '[':
		l.pos++
		return Token{Type: TokenArrayStart, Value: "[", Offset: start, Length: 1}, nil

	case b == ']':
		l.pos++
		return Token{Type: TokenArrayEnd, Value: "]", Offset: start, Length: 1}, nil

	case b == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.pos += 2
			return Token{Type: TokenDictStart, Value: "<<", Offset: start, Length: 2}, nil
		}
		return l.readHexString()

	case b == '>':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '>' {
			l.pos += 2
			return Token{Type: TokenDictEnd, Value: ">>", Offset: start, Length: 2}, nil
		}
		l.pos++
		return Token{}, syntaxErrorf(start, "unexpected '>'")

	case b == '(':
		return l.readLiteralString()

	case b == '/':
		return l.readName()

	case b == ')':
		l.pos++
		return Token{}, syntaxErrorf(start, "unexpected ')'")

	case isDigit(b) || b == '+' || b == '-' || b == '.':
		return l.readNumber()

	case isRegular(b):
		return l.readKeyword()

	default:
		l.pos++
		return Token{}, syntaxErrorf(start, "unexpected byte %#02x", b)
	}
}

// PeekToken returns the next token without advancing the lexer.
func (l *Lexer) PeekToken() (Token, error) {
	saved := l.pos
	tok, err := l.NextToken()
	l.pos = saved
	return tok, err
}

// readNumber reads an integer or real number.
//
// PDF numbers have an optional sign, digits, and at most one decimal
// point. There is no exponent form.
func (l *Lexer) readNumber() (Token, error) {
	start := l.pos
	isReal := false

	if l.data[l.pos] == '+' || l.data[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isDigit(b) {
			l.pos++
			continue
		}
		if b == '.' && !isReal {
			isReal = true
			l.pos++
			continue
		}
		break
	}

	value := string(l.data[start:l.pos])
	if value == "" || value == "+" || value == "-" || value == "." {
		return Token{}, syntaxErrorf(start, "malformed number %q", value)
	}

	tokType := TokenInteger
	if isReal {
		tokType = TokenReal
	}
	return Token{Type: tokType, Value: value, Offset: start, Length: l.pos - start}, nil
}

// readKeyword reads a run of regular characters and classifies it.
func (l *Lexer) readKeyword() (Token, error) {
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
	value := string(l.data[start:l.pos])

	switch value {
	case "true", "false":
		return Token{Type: TokenBoolean, Value: value, Offset: start, Length: l.pos - start}, nil
	case "null":
		return Token{Type: TokenNull, Value: value, Offset: start, Length: l.pos - start}, nil
	default:
		return Token{Type: TokenKeyword, Value: value, Offset: start, Length: l.pos - start}, nil
	}
}

// readName reads a name object: '/' followed by regular characters.
//
// #XX sequences are decoded to the byte they represent. A '#' that is not
// followed by two hex digits is kept literally, which matches how common
// producers behave outside strict mode.
//
// Reference: PDF 1.7 specification, Section 7.3.5 (Name Objects).
func (l *Lexer) readName() (Token, error) {
	start := l.pos
	l.pos++ // consume '/'

	var decoded []byte
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		b := l.data[l.pos]
		if b == '#' && l.pos+2 < len(l.data) {
			hi := hexValue(l.data[l.pos+1])
			lo := hexValue(l.data[l.pos+2])
			if hi >= 0 && lo >= 0 {
				decoded = append(decoded, byte(hi<<4|lo))
				l.pos += 3
				continue
			}
		}
		decoded = append(decoded, b)
		l.pos++
	}

	return Token{Type: TokenName, Value: string(decoded), Offset: start, Length: l.pos - start}, nil
}

// readLiteralString reads a parenthesized string with escape processing.
//
// Handled escapes: \n \r \t \b \f \( \) \\, one- to three-digit octal
// codes, and backslash-newline line continuations. Unbalanced parentheses
// must be escaped; balanced pairs nest without escaping. An end-of-line
// inside the string is normalized to a single \n.
//
// Reference: PDF 1.7 specification, Section 7.3.4.2 (Literal Strings).
func (l *Lexer) readLiteralString() (Token, error) {
	start := l.pos
	l.pos++ // consume '('

	var decoded []byte
	depth := 1

	for l.pos < len(l.data) {
		b := l.data[l.pos]
		switch b {
		case '(':
			depth++
			decoded = append(decoded, b)
			l.pos++

		case ')':
			depth--
			l.pos++
			if depth == 0 {
				return Token{Type: TokenString, Value: string(decoded), Offset: start, Length: l.pos - start}, nil
			}
			decoded = append(decoded, b)

		case '\\':
			l.pos++
			if l.pos >= len(l.data) {
				return Token{}, syntaxErrorf(start, "unterminated string escape")
			}
			e := l.data[l.pos]
			switch e {
			case 'n':
				decoded = append(decoded, '\n')
				l.pos++
			case 'r':
				decoded = append(decoded, '\r')
				l.pos++
			case 't':
				decoded = append(decoded, '\t')
				l.pos++
			case 'b':
				decoded = append(decoded, '\b')
				l.pos++
			case 'f':
				decoded = append(decoded, '\f')
				l.pos++
			case '(', ')', '\\':
				decoded = append(decoded, e)
				l.pos++
			case '\r':
				// Line continuation: \<CR> or \<CR><LF> produces nothing
				l.pos++
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
				l.pos++
			default:
				if e >= '0' && e <= '7' {
					// Octal escape: one to three digits
					val := 0
					for i := 0; i < 3 && l.pos < len(l.data); i++ {
						d := l.data[l.pos]
						if d < '0' || d > '7' {
							break
						}
						val = val<<3 | int(d-'0')
						l.pos++
					}
					decoded = append(decoded, byte(val))
				} else {
					// Unknown escape: backslash is ignored
					decoded = append(decoded, e)
					l.pos++
				}
			}

		case '\r':
			// EOL inside a string is normalized to \n
			decoded = append(decoded, '\n')
			l.pos++
			if l.pos < len(l.data) && l.data[l.pos] == '\n' {
				l.pos++
			}

		default:
			decoded = append(decoded, b)
			l.pos++
		}
	}

	return Token{}, syntaxErrorf(start, "unterminated literal string")
}

// readHexString reads a hex string: '<' hex digits '>'.
//
// Whitespace between digits is ignored. An odd number of digits is padded
// with a trailing zero.
//
// Reference: PDF 1.7 specification, Section 7.3.4.3 (Hexadecimal Strings).
func (l *Lexer) readHexString() (Token, error) {
	start := l.pos
	l.pos++ // consume '<'

	var decoded []byte
	hi := -1

	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if b == '>' {
			l.pos++
			if hi >= 0 {
				decoded = append(decoded, byte(hi<<4)) // odd digit padded with 0
			}
			return Token{Type: TokenHexString, Value: string(decoded), Offset: start, Length: l.pos - start}, nil
		}
		if isWhitespace(b) {
			l.pos++
			continue
		}
		v := hexValue(b)
		if v < 0 {
			l.pos++
			return Token{}, syntaxErrorf(start, "invalid hex digit %q in hex string", b)
		}
		if hi < 0 {
			hi = v
		} else {
			decoded = append(decoded, byte(hi<<4|v))
			hi = -1
		}
		l.pos++
	}

	return Token{}, syntaxErrorf(start, "unterminated hex string")
}

// ReadRaw returns length raw bytes starting at offset without moving the
// lexer position. Used by the parser for stream content.
func (l *Lexer) ReadRaw(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(l.data) {
		return nil, &BoundsError{Offset: int64(offset + length), Size: int64(len(l.data))}
	}
	return l.data[offset : offset+length], nil
}

// String returns a short description of the lexer state.
func (l *Lexer) String() string {
	return fmt.Sprintf("Lexer{pos: %d, len: %d}", l.pos, len(l.data))
}
