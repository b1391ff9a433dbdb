package parser

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/coregx/pdfcore/logging"
)

// Parser builds PDF objects from the token stream of a Lexer.
// It produces higher-level objects (arrays, dictionaries, streams,
// indirect objects) rooted at an arbitrary byte offset.
//
// Reference: PDF 1.7 specification, Section 7.3 (Objects).
type Parser struct {
	lexer   *Lexer
	current Token
	peek    Token
	hasPeek bool

	// resolveLength resolves an indirect /Length reference. Set by the
	// Reader; when nil an indirect length falls back to endstream
	// scanning.
	resolveLength func(ref *IndirectReference) (PdfObject, error)
}

// NewParser creates a parser over the buffer, positioned at offset 0.
func NewParser(data []byte) *Parser {
	return NewParserAt(data, 0)
}

// NewParserAt creates a parser positioned at the given byte offset.
// Offsets beyond the buffer clamp to end of input.
func NewParserAt(data []byte, offset int) *Parser {
	lexer := NewLexer(data)
	if err := lexer.Seek(offset); err != nil {
		_ = lexer.Seek(len(data))
	}
	p := &Parser{lexer: lexer}
	_ = p.advance()
	return p
}

// SetLengthResolver installs the callback used to resolve an indirect
// /Length value during stream parsing.
func (p *Parser) SetLengthResolver(fn func(ref *IndirectReference) (PdfObject, error)) {
	p.resolveLength = fn
}

// advance moves to the next token.
func (p *Parser) advance() error {
	if p.hasPeek {
		p.current = p.peek
		p.hasPeek = false
		return nil
	}

	tok, err := p.lexer.NextToken()
	p.current = tok
	return err
}

// peekToken returns the next token without consuming it.
func (p *Parser) peekToken() (Token, error) {
	if p.hasPeek {
		return p.peek, nil
	}

	tok, err := p.lexer.NextToken()
	if err != nil {
		return tok, err
	}

	p.peek = tok
	p.hasPeek = true
	return tok, nil
}

// expect checks that the current token has the expected type and
// advances.
func (p *Parser) expect(expected TokenType) error {
	if p.current.Type != expected {
		return syntaxErrorf(p.current.Offset, "expected %s, got %s", expected, p.current.Type)
	}
	return p.advance()
}

// match reports whether the current token has the given type.
func (p *Parser) match(expected TokenType) bool {
	return p.current.Type == expected
}

// matchKeyword reports whether the current token is the given keyword.
func (p *Parser) matchKeyword(keyword string) bool {
	return p.current.Type == TokenKeyword && p.current.Value == keyword
}

// Position returns the byte offset of the current token.
func (p *Parser) Position() int {
	return p.current.Offset
}

// ParseObject parses any PDF direct object.
//
//nolint:cyclop,funlen // Object parsing inherently requires checking many variants.
func (p *Parser) ParseObject() (PdfObject, error) {
	switch p.current.Type {
	case TokenInteger:
		// Could be a bare integer or the start of an indirect
		// reference: the three-token pattern "N G R".
		firstInt, err := strconv.ParseInt(p.current.Value, 10, 64)
		if err != nil {
			return nil, syntaxErrorf(p.current.Offset, "invalid integer %q: %v", p.current.Value, err)
		}
		_ = p.advance()

		if p.current.Type == TokenInteger {
			secondInt, err2 := strconv.ParseInt(p.current.Value, 10, 64)
			if err2 != nil {
				return nil, syntaxErrorf(p.current.Offset, "invalid integer %q: %v", p.current.Value, err2)
			}

			peek2, err3 := p.peekToken()
			if err3 == nil && peek2.Type == TokenKeyword && peek2.Value == KeywordR {
				_ = p.advance() // move to "R"
				_ = p.advance() // consume "R"
				return NewIndirectReference(int(firstInt), int(secondInt)), nil
			}
		}

		return NewInteger(firstInt), nil

	case TokenReal:
		value, err := strconv.ParseFloat(p.current.Value, 64)
		if err != nil {
			return nil, syntaxErrorf(p.current.Offset, "invalid real number %q: %v", p.current.Value, err)
		}
		_ = p.advance()
		return NewReal(value), nil

	case TokenString:
		value := p.current.Value
		_ = p.advance()
		return NewString(value), nil

	case TokenHexString:
		value := p.current.Value
		_ = p.advance()
		return NewHexString(value), nil

	case TokenName:
		value := p.current.Value
		_ = p.advance()
		return NewName(value), nil

	case TokenBoolean:
		value := p.current.Value == "true"
		_ = p.advance()
		return NewBoolean(value), nil

	case TokenNull:
		_ = p.advance()
		return NewNull(), nil

	case TokenArrayStart:
		return p.parseArray()

	case TokenDictStart:
		return p.parseDictionary()

	case TokenEOF:
		return nil, io.EOF

	default:
		return nil, syntaxErrorf(p.current.Offset, "unexpected token %s", p.current)
	}
}

// parseArray parses a PDF array: [ obj1 obj2 ... ].
func (p *Parser) parseArray() (*Array, error) {
	if err := p.expect(TokenArrayStart); err != nil {
		return nil, err
	}

	arr := NewArray()
	for !p.match(TokenArrayEnd) {
		if p.match(TokenEOF) {
			return nil, syntaxErrorf(p.current.Offset, "unexpected EOF in array")
		}

		obj, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("failed to parse array element: %w", err)
		}
		arr.Append(obj)
	}

	if err := p.expect(TokenArrayEnd); err != nil {
		return nil, err
	}
	return arr, nil
}

// parseDictionary parses a PDF dictionary: << /Key1 value1 ... >>.
func (p *Parser) parseDictionary() (*Dictionary, error) {
	if err := p.expect(TokenDictStart); err != nil {
		return nil, err
	}

	dict := NewDictionary()
	for !p.match(TokenDictEnd) {
		if p.match(TokenEOF) {
			return nil, syntaxErrorf(p.current.Offset, "unexpected EOF in dictionary")
		}

		if !p.match(TokenName) {
			return nil, syntaxErrorf(p.current.Offset, "expected name for dictionary key, got %s", p.current.Type)
		}
		key := p.current.Value
		_ = p.advance()

		value, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("failed to parse dictionary value for key %q: %w", key, err)
		}
		dict.Set(key, value)
	}

	if err := p.expect(TokenDictEnd); err != nil {
		return nil, err
	}
	return dict, nil
}

// ParseIndirectObject parses an indirect object: N G obj ... endobj.
//
// A missing endobj keyword is tolerated: parsing stops at the next
// recognizable boundary (an object header, endstream, or a structural
// keyword) instead of failing the whole document.
//
//nolint:cyclop // Indirect object parsing requires multiple validation steps.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	if !p.match(TokenInteger) {
		return nil, syntaxErrorf(p.current.Offset, "expected object number, got %s", p.current.Type)
	}
	objNum, err := strconv.Atoi(p.current.Value)
	if err != nil {
		return nil, syntaxErrorf(p.current.Offset, "invalid object number %q", p.current.Value)
	}
	_ = p.advance()

	if !p.match(TokenInteger) {
		return nil, syntaxErrorf(p.current.Offset, "expected generation number, got %s", p.current.Type)
	}
	genNum, err := strconv.Atoi(p.current.Value)
	if err != nil {
		return nil, syntaxErrorf(p.current.Offset, "invalid generation number %q", p.current.Value)
	}
	_ = p.advance()

	if !p.matchKeyword(KeywordObj) {
		return nil, syntaxErrorf(p.current.Offset, "expected 'obj' keyword, got %s", p.current)
	}
	_ = p.advance()

	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse indirect object content: %w", err)
	}

	// A dictionary followed by 'stream' is a stream object.
	if p.matchKeyword(KeywordStream) {
		dict, ok := obj.(*Dictionary)
		if !ok {
			return nil, syntaxErrorf(p.current.Offset, "stream must be preceded by dictionary, got %T", obj)
		}
		stream, serr := p.parseStreamContent(dict)
		if serr != nil {
			return nil, serr
		}
		obj = stream
	}

	if p.matchKeyword(KeywordEndobj) {
		_ = p.advance()
	} else {
		// Tolerated: resynchronize at the current boundary.
		logging.Logger().Debug("missing endobj keyword",
			"object", objNum, "offset", p.current.Offset)
	}

	return NewIndirectObject(objNum, genNum, obj), nil
}

// parseStreamContent reads stream content following the current 'stream'
// keyword token.
//
// Content length is determined by the canonical rule: read exactly
// /Length bytes (resolving an indirect /Length if a resolver is
// installed); if the bytes after them are not, past whitespace only, the
// endstream keyword, the declared length is discarded and the buffer is
// scanned forward for the literal endstream keyword instead. The scanned
// length then becomes authoritative and is written back into the stream
// dictionary.
//
// Reference: PDF 1.7 specification, Section 7.3.8 (Stream Objects).
//
//nolint:cyclop // Length disambiguation requires several fallback steps.
func (p *Parser) parseStreamContent(dict *Dictionary) (*Stream, error) {
	if !p.matchKeyword(KeywordStream) {
		return nil, syntaxErrorf(p.current.Offset, "expected 'stream' keyword, got %s", p.current)
	}
	streamTok := p.current
	data := p.lexer.data

	// Stream data begins after the keyword and a single EOL marker.
	start := streamTok.Offset + len(KeywordStream)
	if start < len(data) && data[start] == '\r' {
		start++
		if start < len(data) && data[start] == '\n' {
			start++
		}
	} else if start < len(data) && data[start] == '\n' {
		start++
	}

	declared := p.declaredLength(dict)

	contentLen := -1
	if declared >= 0 && start+declared <= len(data) {
		if endstreamFollows(data, start+declared) {
			contentLen = declared
		}
	}

	if contentLen < 0 {
		// Declared length is wrong or missing: scan for the literal
		// endstream keyword and trust the scan.
		idx := bytes.Index(data[start:], []byte(KeywordEndstream))
		if idx < 0 {
			return nil, syntaxErrorf(streamTok.Offset, "unterminated stream: no endstream keyword")
		}
		end := start + idx

		// The EOL immediately before endstream belongs to the keyword,
		// not the content.
		trimmed := end
		if trimmed > start && data[trimmed-1] == '\n' {
			trimmed--
			if trimmed > start && data[trimmed-1] == '\r' {
				trimmed--
			}
		} else if trimmed > start && data[trimmed-1] == '\r' {
			trimmed--
		}
		contentLen = trimmed - start

		if declared >= 0 && declared != contentLen {
			logging.Logger().Debug("stream length corrected",
				"declared", declared, "actual", contentLen, "offset", streamTok.Offset)
		}
		dict.Set("Length", NewInteger(int64(contentLen)))
	}

	content := data[start : start+contentLen]

	// Reposition the lexer past the content and consume endstream.
	p.hasPeek = false
	if err := p.lexer.Seek(start + contentLen); err != nil {
		return nil, err
	}
	_ = p.advance()
	if !p.matchKeyword(KeywordEndstream) {
		return nil, syntaxErrorf(p.current.Offset, "expected 'endstream', got %s", p.current)
	}
	_ = p.advance()

	return NewStream(dict, content), nil
}

// declaredLength resolves the /Length entry to a byte count, following
// one level of indirection through the installed resolver. Returns -1
// when no usable length is declared.
func (p *Parser) declaredLength(dict *Dictionary) int {
	switch obj := dict.Get("Length").(type) {
	case *Integer:
		if obj.Value() >= 0 {
			return int(obj.Value())
		}
	case *IndirectReference:
		if p.resolveLength == nil {
			return -1
		}
		resolved, err := p.resolveLength(obj)
		if err != nil {
			return -1
		}
		if n, ok := resolved.(*Integer); ok && n.Value() >= 0 {
			return int(n.Value())
		}
	}
	return -1
}

// endstreamFollows reports whether, after only whitespace, the endstream
// keyword begins at or after pos.
func endstreamFollows(data []byte, pos int) bool {
	for pos < len(data) && isWhitespace(data[pos]) {
		pos++
	}
	return bytes.HasPrefix(data[pos:], []byte(KeywordEndstream))
}

// ParseObjectStream parses the payload of an object stream (/Type
// /ObjStm) and returns the contained objects keyed by object number.
//
// The decoded payload starts with /N pairs of (object number, offset
// relative to /First), followed at /First by the concatenated object
// bodies.
//
// Reference: PDF 1.7 specification, Section 7.5.7 (Object Streams).
func ParseObjectStream(decodedData []byte, numObjects, firstOffset int) (map[int]PdfObject, error) {
	if numObjects <= 0 {
		return nil, syntaxErrorf(0, "invalid object stream count %d", numObjects)
	}
	if firstOffset < 0 || firstOffset > len(decodedData) {
		return nil, syntaxErrorf(0, "invalid object stream /First %d (payload length %d)", firstOffset, len(decodedData))
	}

	type objInfo struct {
		number int
		offset int
	}

	headerParser := NewParser(decodedData[:firstOffset])
	objects := make([]objInfo, 0, numObjects)

	for i := 0; i < numObjects; i++ {
		if !headerParser.match(TokenInteger) {
			return nil, syntaxErrorf(headerParser.current.Offset,
				"expected object number at pair %d, got %s", i, headerParser.current.Type)
		}
		objNum, err := strconv.Atoi(headerParser.current.Value)
		if err != nil {
			return nil, syntaxErrorf(headerParser.current.Offset, "invalid object number at pair %d", i)
		}
		_ = headerParser.advance()

		if !headerParser.match(TokenInteger) {
			return nil, syntaxErrorf(headerParser.current.Offset,
				"expected offset at pair %d, got %s", i, headerParser.current.Type)
		}
		offset, err := strconv.Atoi(headerParser.current.Value)
		if err != nil {
			return nil, syntaxErrorf(headerParser.current.Offset, "invalid offset at pair %d", i)
		}
		_ = headerParser.advance()

		objects = append(objects, objInfo{number: objNum, offset: offset})
	}

	payload := decodedData[firstOffset:]
	result := make(map[int]PdfObject, numObjects)

	for _, info := range objects {
		if info.offset < 0 || info.offset > len(payload) {
			return nil, syntaxErrorf(0, "object %d offset %d outside object stream payload", info.number, info.offset)
		}

		objParser := NewParserAt(payload, info.offset)
		obj, err := objParser.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("failed to parse object %d in object stream: %w", info.number, err)
		}
		result[info.number] = obj
	}

	return result, nil
}
