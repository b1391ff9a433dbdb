package encoding

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"io"
)

// FlateFilter implements FlateDecode: zlib-compatible deflate, optionally
// combined with a PNG or TIFF predictor.
//
// Reference: PDF 1.7 specification, Section 7.4.4 (LZWDecode and
// FlateDecode Filters).
type FlateFilter struct {
	params Params
}

// NewFlateFilter creates a Flate stage with the given predictor
// parameters.
func NewFlateFilter(params Params) *FlateFilter {
	return &FlateFilter{params: params}
}

// NewFlateDecoder creates a Flate stage with default parameters (no
// predictor).
func NewFlateDecoder() *FlateFilter {
	return NewFlateFilter(DefaultParams())
}

// Name returns "FlateDecode".
func (f *FlateFilter) Name() string { return FilterFlateDecode }

// Decode decompresses data and undoes any configured predictor.
//
// Some producers emit raw deflate data without the zlib wrapper; when the
// zlib header check fails the raw form is tried before giving up.
func (f *FlateFilter) Decode(data []byte) ([]byte, error) {
	inflated, err := inflate(data)
	if err != nil {
		return nil, &FilterError{Filter: FilterFlateDecode, Msg: "decompress failed", Err: err}
	}
	out, err := undoPredictor(inflated, f.params)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Encode applies any configured predictor and compresses with zlib.
func (f *FlateFilter) Encode(data []byte) ([]byte, error) {
	pred, err := applyPredictor(data, f.params)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, &FilterError{Filter: FilterFlateDecode, Msg: "compress failed", Err: err}
	}
	if _, err := w.Write(pred); err != nil {
		return nil, &FilterError{Filter: FilterFlateDecode, Msg: "compress failed", Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &FilterError{Filter: FilterFlateDecode, Msg: "compress failed", Err: err}
	}
	return buf.Bytes(), nil
}

// inflate decompresses zlib data, falling back to raw deflate when the
// zlib wrapper is missing.
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err == nil {
		defer func() { _ = zr.Close() }()
		out, rerr := io.ReadAll(zr)
		if rerr == nil || rerr == io.ErrUnexpectedEOF {
			return out, nil
		}
		return nil, rerr
	}

	// The raw-deflate fallback only counts when the whole buffer reads
	// cleanly; a truncated read here means the data was never deflate,
	// just garbage that the decoder gave up on part way.
	fr := flate.NewReader(bytes.NewReader(data))
	defer func() { _ = fr.Close() }()
	out, rerr := io.ReadAll(fr)
	if rerr != nil {
		return nil, err // report the original zlib error
	}
	return out, nil
}
