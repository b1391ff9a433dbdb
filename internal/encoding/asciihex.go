package encoding

import (
	"bytes"
	"encoding/hex"
)

// ASCIIHexFilter implements ASCIIHexDecode: each byte encoded as two hex
// digits, terminated by '>'. Whitespace between digits is ignored; an odd
// final digit is padded with zero.
//
// Reference: PDF 1.7 specification, Section 7.4.2 (ASCIIHexDecode Filter).
type ASCIIHexFilter struct{}

// NewASCIIHexFilter creates an ASCIIHex stage.
func NewASCIIHexFilter() *ASCIIHexFilter { return &ASCIIHexFilter{} }

// Name returns "ASCIIHexDecode".
func (f *ASCIIHexFilter) Name() string { return FilterASCIIHexDecode }

// Decode converts hex digits back to bytes, stopping at the '>'
// end-of-data marker.
func (f *ASCIIHexFilter) Decode(data []byte) ([]byte, error) {
	out := []byte{}
	hi := -1
	for _, b := range data {
		if b == '>' {
			break
		}
		if isHexWhitespace(b) {
			continue
		}
		v := hexDigit(b)
		if v < 0 {
			return nil, &FilterError{Filter: FilterASCIIHexDecode,
				Msg: "invalid hex digit " + string(rune(b))}
		}
		if hi < 0 {
			hi = v
		} else {
			out = append(out, byte(hi<<4|v))
			hi = -1
		}
	}
	if hi >= 0 {
		out = append(out, byte(hi<<4)) // odd digit count: pad with 0
	}
	return out, nil
}

// Encode converts bytes to upper-case hex digits followed by '>'.
func (f *ASCIIHexFilter) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data)*2 + 1)
	buf.WriteString(hex.EncodeToString(data))
	buf.WriteByte('>')
	return buf.Bytes(), nil
}

func isHexWhitespace(b byte) bool {
	switch b {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func hexDigit(b byte) int {
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
