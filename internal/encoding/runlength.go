package encoding

// RunLengthFilter implements RunLengthDecode: length-prefixed literal and
// repeat runs terminated by the byte 128.
//
// A length byte L in 0..127 is followed by L+1 literal bytes. A length
// byte L in 129..255 is followed by one byte repeated 257-L times. The
// byte 128 marks end of data.
//
// Reference: PDF 1.7 specification, Section 7.4.5 (RunLengthDecode
// Filter).
type RunLengthFilter struct{}

// runLengthEOD terminates a run-length encoded stream.
const runLengthEOD = 128

// NewRunLengthFilter creates a RunLength stage.
func NewRunLengthFilter() *RunLengthFilter { return &RunLengthFilter{} }

// Name returns "RunLengthDecode".
func (f *RunLengthFilter) Name() string { return FilterRunLengthDecode }

// Decode expands literal and repeat runs until the EOD byte.
func (f *RunLengthFilter) Decode(data []byte) ([]byte, error) {
	var out []byte
	i := 0
	for i < len(data) {
		l := data[i]
		i++
		switch {
		case l == runLengthEOD:
			return out, nil

		case l < runLengthEOD:
			n := int(l) + 1
			if i+n > len(data) {
				return nil, &FilterError{Filter: FilterRunLengthDecode,
					Msg: "literal run extends past end of data"}
			}
			out = append(out, data[i:i+n]...)
			i += n

		default:
			if i >= len(data) {
				return nil, &FilterError{Filter: FilterRunLengthDecode,
					Msg: "repeat run missing value byte"}
			}
			n := 257 - int(l)
			for j := 0; j < n; j++ {
				out = append(out, data[i])
			}
			i++
		}
	}
	return nil, &FilterError{Filter: FilterRunLengthDecode, Msg: "missing end-of-data marker"}
}

// Encode compresses data into repeat runs of length >= 3 and literal runs
// of at most 128 bytes, then appends the EOD marker.
func (f *RunLengthFilter) Encode(data []byte) ([]byte, error) {
	var out []byte
	i := 0
	for i < len(data) {
		// Measure the run of identical bytes starting here.
		run := 1
		for i+run < len(data) && data[i+run] == data[i] && run < 128 {
			run++
		}

		if run >= 3 {
			out = append(out, byte(257-run), data[i])
			i += run
			continue
		}

		// Literal run: collect bytes until a compressible repeat starts
		// or the 128-byte limit is reached.
		start := i
		i += run
		for i < len(data) && i-start < 128 {
			run = 1
			for i+run < len(data) && data[i+run] == data[i] && run < 3 {
				run++
			}
			if run >= 3 {
				break
			}
			i += run
		}
		if i-start > 128 {
			i = start + 128
		}
		out = append(out, byte(i-start-1))
		out = append(out, data[start:i]...)
	}
	out = append(out, runLengthEOD)
	return out, nil
}
