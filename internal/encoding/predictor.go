package encoding

import "strconv"

// Predictor constants for /Predictor in /DecodeParms.
const (
	predictorNone = 1  // no prediction
	predictorTIFF = 2  // TIFF horizontal differencing
	predictorPNG  = 10 // 10..15 select PNG row filters
)

// PNG row filter types.
//
// Reference: PNG specification, section 9 (Filtering); PDF 1.7
// specification, Table 10 (Predictor values).
const (
	pngFilterNone    = 0
	pngFilterSub     = 1
	pngFilterUp      = 2
	pngFilterAverage = 3
	pngFilterPaeth   = 4
)

// predictorRowLen returns the number of bytes per predicted row and the
// byte distance between corresponding samples.
func predictorRowLen(p Params) (rowLen, pixelSize int) {
	colors := p.Colors
	if colors < 1 {
		colors = 1
	}
	bpc := p.BitsPerComponent
	if bpc < 1 {
		bpc = 8
	}
	columns := p.Columns
	if columns < 1 {
		columns = 1
	}
	rowLen = (columns*colors*bpc + 7) / 8
	pixelSize = (colors*bpc + 7) / 8
	if pixelSize < 1 {
		pixelSize = 1
	}
	return rowLen, pixelSize
}

// undoPredictor reverses the configured predictor after decompression.
func undoPredictor(data []byte, p Params) ([]byte, error) {
	switch {
	case p.Predictor <= predictorNone:
		return data, nil
	case p.Predictor == predictorTIFF:
		return undoTIFFPredictor(data, p)
	case p.Predictor >= predictorPNG:
		return undoPNGPredictor(data, p)
	default:
		return nil, &FilterError{Filter: FilterFlateDecode,
			Msg: "unsupported predictor " + strconv.Itoa(p.Predictor)}
	}
}

// applyPredictor applies the configured predictor before compression.
//
// For PNG predictors every row is written with filter type None; that is
// a valid encoding under any PNG predictor value and reverses exactly.
func applyPredictor(data []byte, p Params) ([]byte, error) {
	switch {
	case p.Predictor <= predictorNone:
		return data, nil
	case p.Predictor == predictorTIFF:
		return applyTIFFPredictor(data, p)
	case p.Predictor >= predictorPNG:
		rowLen, _ := predictorRowLen(p)
		rows := (len(data) + rowLen - 1) / rowLen
		out := make([]byte, 0, len(data)+rows)
		for off := 0; off < len(data); off += rowLen {
			end := off + rowLen
			if end > len(data) {
				end = len(data)
			}
			out = append(out, pngFilterNone)
			out = append(out, data[off:end]...)
		}
		return out, nil
	default:
		return nil, &FilterError{Filter: FilterFlateDecode,
			Msg: "unsupported predictor " + strconv.Itoa(p.Predictor)}
	}
}

// undoPNGPredictor reconstructs rows filtered with the PNG row filters.
// Each encoded row is one filter-type byte followed by rowLen bytes.
func undoPNGPredictor(data []byte, p Params) ([]byte, error) {
	rowLen, pixelSize := predictorRowLen(p)
	encRowLen := rowLen + 1
	if len(data)%encRowLen != 0 {
		return nil, &FilterError{Filter: FilterFlateDecode,
			Msg: "predictor data is not a whole number of rows"}
	}

	rows := len(data) / encRowLen
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen) // row above, zero for the first row

	for r := 0; r < rows; r++ {
		enc := data[r*encRowLen : (r+1)*encRowLen]
		filterType := enc[0]
		row := make([]byte, rowLen)
		copy(row, enc[1:])

		switch filterType {
		case pngFilterNone:
			// nothing to do

		case pngFilterSub:
			for i := pixelSize; i < rowLen; i++ {
				row[i] += row[i-pixelSize]
			}

		case pngFilterUp:
			for i := 0; i < rowLen; i++ {
				row[i] += prev[i]
			}

		case pngFilterAverage:
			for i := 0; i < rowLen; i++ {
				left := 0
				if i >= pixelSize {
					left = int(row[i-pixelSize])
				}
				row[i] += byte((left + int(prev[i])) / 2)
			}

		case pngFilterPaeth:
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= pixelSize {
					left = row[i-pixelSize]
					upLeft = prev[i-pixelSize]
				}
				row[i] += paeth(left, prev[i], upLeft)
			}

		default:
			return nil, &FilterError{Filter: FilterFlateDecode,
				Msg: "invalid PNG row filter " + strconv.Itoa(int(filterType))}
		}

		out = append(out, row...)
		prev = row
	}
	return out, nil
}

// paeth is the PNG Paeth predictor function.
func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

// undoTIFFPredictor reverses TIFF horizontal differencing. Only 8-bit
// components are supported, which covers xref streams and the common
// image cases.
func undoTIFFPredictor(data []byte, p Params) ([]byte, error) {
	if p.BitsPerComponent != 8 && p.BitsPerComponent != 0 {
		return nil, &FilterError{Filter: FilterFlateDecode,
			Msg: "TIFF predictor requires 8 bits per component"}
	}
	rowLen, pixelSize := predictorRowLen(p)
	out := make([]byte, len(data))
	copy(out, data)
	for off := 0; off < len(out); off += rowLen {
		end := off + rowLen
		if end > len(out) {
			end = len(out)
		}
		for i := off + pixelSize; i < end; i++ {
			out[i] += out[i-pixelSize]
		}
	}
	return out, nil
}

// applyTIFFPredictor applies TIFF horizontal differencing.
func applyTIFFPredictor(data []byte, p Params) ([]byte, error) {
	if p.BitsPerComponent != 8 && p.BitsPerComponent != 0 {
		return nil, &FilterError{Filter: FilterFlateDecode,
			Msg: "TIFF predictor requires 8 bits per component"}
	}
	rowLen, pixelSize := predictorRowLen(p)
	out := make([]byte, len(data))
	copy(out, data)
	for off := 0; off < len(out); off += rowLen {
		end := off + rowLen
		if end > len(out) {
			end = len(out)
		}
		for i := end - 1; i >= off+pixelSize; i-- {
			out[i] -= out[i-pixelSize]
		}
	}
	return out, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

