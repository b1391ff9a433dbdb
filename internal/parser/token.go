package parser

import "fmt"

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	// TokenEOF marks the end of the input buffer.
	TokenEOF TokenType = iota

	// TokenInteger is a whole number, optionally signed (e.g. "123", "-5").
	TokenInteger

	// TokenReal is a number containing a decimal point (e.g. "3.14", "-.002").
	// PDF numbers have no exponent form.
	TokenReal

	// TokenString is a literal string, delimited by balanced parentheses.
	// The token value holds the decoded bytes (escapes already processed).
	TokenString

	// TokenHexString is a hexadecimal string, delimited by < and >.
	// The token value holds the decoded bytes.
	TokenHexString

	// TokenName is a name object (e.g. "/Type"). The token value holds the
	// name without the leading slash, with #XX escapes decoded.
	TokenName

	// TokenBoolean is the keyword "true" or "false".
	TokenBoolean

	// TokenNull is the keyword "null".
	TokenNull

	// TokenKeyword is any other bare keyword: obj, endobj, stream,
	// endstream, R, xref, trailer, startxref, n, f.
	TokenKeyword

	// TokenArrayStart is "[".
	TokenArrayStart

	// TokenArrayEnd is "]".
	TokenArrayEnd

	// TokenDictStart is "<<".
	TokenDictStart

	// TokenDictEnd is ">>".
	TokenDictEnd
)

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenInteger:
		return "INTEGER"
	case TokenReal:
		return "REAL"
	case TokenString:
		return "STRING"
	case TokenHexString:
		return "HEXSTRING"
	case TokenName:
		return "NAME"
	case TokenBoolean:
		return "BOOLEAN"
	case TokenNull:
		return "NULL"
	case TokenKeyword:
		return "KEYWORD"
	case TokenArrayStart:
		return "ARRAY_START"
	case TokenArrayEnd:
		return "ARRAY_END"
	case TokenDictStart:
		return "DICT_START"
	case TokenDictEnd:
		return "DICT_END"
	default:
		return "UNKNOWN"
	}
}

// Keyword constants used by the parser and lexer.
const (
	KeywordObj       = "obj"
	KeywordEndobj    = "endobj"
	KeywordStream    = "stream"
	KeywordEndstream = "endstream"
	KeywordR         = "R"
	KeywordXRef      = "xref"
	KeywordTrailer   = "trailer"
	KeywordStartXRef = "startxref"
)

// Token is a single lexical unit of the PDF grammar.
//
// Offset and Length address the raw bytes the token was read from, which
// is required because the cross-reference machinery works in byte offsets.
// For strings and names, Value holds the decoded form, so Length may differ
// from len(Value).
type Token struct {
	Type   TokenType
	Value  string
	Offset int // byte offset of the first byte of the token
	Length int // number of raw bytes consumed
}

// String returns a compact representation for error messages and debugging.
func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Type, t.Value, t.Offset)
}
