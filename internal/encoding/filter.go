// Package encoding implements the reversible stream filters of the PDF
// format: Flate (with PNG/TIFF predictors), LZW, ASCIIHex, ASCII85, and
// RunLength. Image-only filters (DCT, JPX, CCITT fax) are recognized but
// passed through undecoded.
//
// Each filter is a pure byte-sequence transform; input and output are
// fully materialized.
//
// Reference: PDF 1.7 specification, Section 7.4 (Filters).
package encoding

import "fmt"

// Filter name constants.
const (
	FilterFlateDecode     = "FlateDecode"
	FilterLZWDecode       = "LZWDecode"
	FilterASCIIHexDecode  = "ASCIIHexDecode"
	FilterASCII85Decode   = "ASCII85Decode"
	FilterRunLengthDecode = "RunLengthDecode"
	FilterDCTDecode       = "DCTDecode"
	FilterJPXDecode       = "JPXDecode"
	FilterCCITTFaxDecode  = "CCITTFaxDecode"
)

// FilterError reports an unknown filter name or corrupt filter data. The
// affected stream is kept in its encoded form by callers, not dropped.
type FilterError struct {
	Filter string
	Msg    string
	Err    error
}

func (e *FilterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("filter %s: %s: %v", e.Filter, e.Msg, e.Err)
	}
	return fmt.Sprintf("filter %s: %s", e.Filter, e.Msg)
}

func (e *FilterError) Unwrap() error { return e.Err }

// Params holds the decode parameters a /DecodeParms dictionary can carry
// for the filters implemented here.
type Params struct {
	Predictor        int // 1 = none, 2 = TIFF, >= 10 = PNG row filters
	Colors           int
	BitsPerComponent int
	Columns          int
	EarlyChange      int // LZW: 1 shifts the code-width increase one code early
}

// DefaultParams returns the parameter defaults defined by the
// specification.
func DefaultParams() Params {
	return Params{
		Predictor:        1,
		Colors:           1,
		BitsPerComponent: 8,
		Columns:          1,
		EarlyChange:      1,
	}
}

// Filter is a single reversible transform stage. Decode and Encode are
// exact inverses for the non-image filters.
type Filter interface {
	// Name returns the PDF filter name (e.g. "FlateDecode").
	Name() string

	// Decode transforms encoded bytes to their decoded form.
	Decode(data []byte) ([]byte, error)

	// Encode transforms decoded bytes back to the encoded form.
	Encode(data []byte) ([]byte, error)
}

// NewFilter creates the filter stage for the given name.
//
// Image-only filters return a passthrough stage. An unrecognized name
// returns a FilterError; there is no open-ended dispatch.
func NewFilter(name string, params Params) (Filter, error) {
	switch name {
	case FilterFlateDecode:
		return NewFlateFilter(params), nil
	case FilterLZWDecode:
		return NewLZWFilter(params), nil
	case FilterASCIIHexDecode:
		return NewASCIIHexFilter(), nil
	case FilterASCII85Decode:
		return NewASCII85Filter(), nil
	case FilterRunLengthDecode:
		return NewRunLengthFilter(), nil
	case FilterDCTDecode, FilterJPXDecode, FilterCCITTFaxDecode:
		return NewPassthroughFilter(name), nil
	default:
		return nil, &FilterError{Filter: name, Msg: "unrecognized filter name"}
	}
}

// IsPassthrough reports whether name denotes an image-only filter that is
// carried through undecoded.
func IsPassthrough(name string) bool {
	switch name {
	case FilterDCTDecode, FilterJPXDecode, FilterCCITTFaxDecode:
		return true
	}
	return false
}

// PassthroughFilter represents an image-only filter whose payload this
// library does not interpret. Decode and Encode return the input
// unchanged; the payload must not be fed to any other decoder.
type PassthroughFilter struct {
	name string
}

// NewPassthroughFilter creates a passthrough stage for an image filter.
func NewPassthroughFilter(name string) *PassthroughFilter {
	return &PassthroughFilter{name: name}
}

// Name returns the filter name.
func (f *PassthroughFilter) Name() string { return f.name }

// Decode returns data unchanged.
func (f *PassthroughFilter) Decode(data []byte) ([]byte, error) { return data, nil }

// Encode returns data unchanged.
func (f *PassthroughFilter) Encode(data []byte) ([]byte, error) { return data, nil }

// Pipeline is an ordered sequence of filter stages as declared by a
// stream's /Filter entry. Decode applies stages in declared order; Encode
// applies the inverse stages in reverse order.
type Pipeline struct {
	stages []Filter
}

// NewPipeline builds a pipeline from filter names and their matching
// decode parameters. params may be shorter than names; missing entries
// use the defaults.
func NewPipeline(names []string, params []Params) (*Pipeline, error) {
	stages := make([]Filter, 0, len(names))
	for i, name := range names {
		p := DefaultParams()
		if i < len(params) {
			p = params[i]
		}
		f, err := NewFilter(name, p)
		if err != nil {
			return nil, err
		}
		stages = append(stages, f)
	}
	return &Pipeline{stages: stages}, nil
}

// Stages returns the filter stages in declared order.
func (p *Pipeline) Stages() []Filter { return p.stages }

// Decode applies all stages in declared order.
//
// A passthrough (image) stage terminates decoding: its payload is opaque
// and is never handed to a following decoder.
func (p *Pipeline) Decode(data []byte) ([]byte, error) {
	for _, f := range p.stages {
		if _, ok := f.(*PassthroughFilter); ok {
			return data, nil
		}
		decoded, err := f.Decode(data)
		if err != nil {
			return nil, err
		}
		data = decoded
	}
	return data, nil
}

// Encode applies the inverse stages in reverse declared order, so that
// Decode(Encode(x)) == x.
func (p *Pipeline) Encode(data []byte) ([]byte, error) {
	for i := len(p.stages) - 1; i >= 0; i-- {
		f := p.stages[i]
		if _, ok := f.(*PassthroughFilter); ok {
			continue
		}
		encoded, err := f.Encode(data)
		if err != nil {
			return nil, err
		}
		data = encoded
	}
	return data, nil
}
