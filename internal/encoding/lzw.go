package encoding

import (
	"bytes"
	"io"

	"github.com/hhrutter/lzw"
)

// LZWFilter implements LZWDecode: variable code width 9-12 bits, MSB-first
// packing, with the /EarlyChange parameter shifting the code-width
// increase point by one code. The PDF flavor differs from the TIFF/GIF
// stdlib variant in exactly that early-change behavior, so the
// PDF-specific implementation is used.
//
// Reference: PDF 1.7 specification, Section 7.4.4.2 (Details of LZW
// Encoding).
type LZWFilter struct {
	params Params
}

// NewLZWFilter creates an LZW stage with the given parameters.
func NewLZWFilter(params Params) *LZWFilter {
	return &LZWFilter{params: params}
}

// Name returns "LZWDecode".
func (f *LZWFilter) Name() string { return FilterLZWDecode }

// earlyChange reports whether the code width increases one code early
// (the default).
func (f *LZWFilter) earlyChange() bool {
	return f.params.EarlyChange != 0
}

// Decode decompresses LZW data and undoes any configured predictor.
func (f *LZWFilter) Decode(data []byte) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(data), f.earlyChange())
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, &FilterError{Filter: FilterLZWDecode, Msg: "decompress failed", Err: err}
	}

	out, perr := undoPredictor(out, f.params)
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

// Encode applies any configured predictor and compresses with LZW.
func (f *LZWFilter) Encode(data []byte) ([]byte, error) {
	pred, err := applyPredictor(data, f.params)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, f.earlyChange())
	if _, err := w.Write(pred); err != nil {
		return nil, &FilterError{Filter: FilterLZWDecode, Msg: "compress failed", Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &FilterError{Filter: FilterLZWDecode, Msg: "compress failed", Err: err}
	}
	return buf.Bytes(), nil
}
