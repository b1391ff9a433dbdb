package encoding

import (
	"bytes"
	"compress/flate"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// FlateDecode Tests
// ============================================================================

func TestFlateFilter_Decode_Zlib(t *testing.T) {
	// zlib stream holding "hello" (default compression).
	compressed := []byte{
		0x78, 0x9c,
		0xcb, 0x48, 0xcd, 0xc9, 0xc9, 0x07, 0x00,
		0x06, 0x2c, 0x02, 0x15,
	}

	f := NewFlateDecoder()
	result, err := f.Decode(compressed)

	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), result)
}

func TestFlateFilter_Decode_RawDeflateFallback(t *testing.T) {
	// Some producers emit raw deflate data without the zlib wrapper; the
	// decoder must fall back rather than reject the stream.
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write([]byte("raw deflate payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f := NewFlateDecoder()
	result, err := f.Decode(buf.Bytes())

	require.NoError(t, err)
	assert.Equal(t, []byte("raw deflate payload"), result)
}

func TestFlateFilter_Decode_Garbage(t *testing.T) {
	f := NewFlateDecoder()
	_, err := f.Decode([]byte{0x00, 0x01, 0x02, 0x03})

	require.Error(t, err)
	var filterErr *FilterError
	assert.ErrorAs(t, err, &filterErr)
}

func TestFlateFilter_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"short text", []byte("BT /F1 12 Tf (Hello) Tj ET")},
		{"binary", bytes.Repeat([]byte{0x00, 0xFF, 0x7F}, 100)},
		{"highly repetitive", bytes.Repeat([]byte("abc"), 10000)},
	}

	f := NewFlateDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := f.Encode(tt.data)
			require.NoError(t, err)

			decoded, err := f.Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.data, decoded)
		})
	}
}

func TestFlateFilter_RoundTrip_PNGPredictor(t *testing.T) {
	params := DefaultParams()
	params.Predictor = 12
	params.Columns = 5

	// Three 5-byte xref-style entries.
	data := []byte{
		1, 0, 15, 0, 0,
		1, 0, 79, 0, 0,
		1, 0, 173, 0, 0,
	}

	f := NewFlateFilter(params)
	encoded, err := f.Encode(data)
	require.NoError(t, err)

	decoded, err := f.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestFlateFilter_Name(t *testing.T) {
	f := NewFlateDecoder()
	assert.Equal(t, "FlateDecode", f.Name())
}

// ============================================================================
// Benchmark Tests
// ============================================================================

func BenchmarkFlateFilter_Decode(b *testing.B) {
	f := NewFlateDecoder()
	data := bytes.Repeat([]byte("stream content "), 1000)
	encoded, err := f.Encode(data)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = f.Decode(encoded)
	}
}
