package encoding

import (
	"bytes"
	"encoding/ascii85"
	"io"
)

// ASCII85Filter implements ASCII85Decode: 4 bytes encoded as 5 base-85
// characters ('!' through 'u', with 'z' for an all-zero group),
// terminated by "~>".
//
// Reference: PDF 1.7 specification, Section 7.4.3 (ASCII85Decode Filter).
type ASCII85Filter struct{}

// NewASCII85Filter creates an ASCII85 stage.
func NewASCII85Filter() *ASCII85Filter { return &ASCII85Filter{} }

// Name returns "ASCII85Decode".
func (f *ASCII85Filter) Name() string { return FilterASCII85Decode }

// Decode converts base-85 text back to bytes. Whitespace is ignored; an
// optional "<~" prefix and the "~>" terminator are stripped.
func (f *ASCII85Filter) Decode(data []byte) ([]byte, error) {
	// Strip whitespace and locate the terminator; the stdlib decoder
	// accepts whitespace but not the delimiters.
	cleaned := make([]byte, 0, len(data))
	src := data
	if bytes.HasPrefix(src, []byte("<~")) {
		src = src[2:]
	}
	for i := 0; i < len(src); i++ {
		b := src[i]
		if b == '~' {
			break // start of the "~>" terminator
		}
		if isHexWhitespace(b) {
			continue
		}
		cleaned = append(cleaned, b)
	}

	dec := ascii85.NewDecoder(bytes.NewReader(cleaned))
	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, &FilterError{Filter: FilterASCII85Decode, Msg: "decode failed", Err: err}
	}
	return out, nil
}

// Encode converts bytes to base-85 text with the "~>" terminator.
func (f *ASCII85Filter) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc := ascii85.NewEncoder(&buf)
	if _, err := enc.Write(data); err != nil {
		return nil, &FilterError{Filter: FilterASCII85Decode, Msg: "encode failed", Err: err}
	}
	if err := enc.Close(); err != nil {
		return nil, &FilterError{Filter: FilterASCII85Decode, Msg: "encode failed", Err: err}
	}
	buf.WriteString("~>")
	return buf.Bytes(), nil
}
