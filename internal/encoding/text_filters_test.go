package encoding

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// ASCIIHexDecode Tests
// ============================================================================

func TestASCIIHexFilter_Decode(t *testing.T) {
	f := NewASCIIHexFilter()

	tests := []struct {
		name     string
		input    string
		expected []byte
	}{
		{"simple", "48656C6C6F>", []byte("Hello")},
		{"lowercase", "48656c6c6f>", []byte("Hello")},
		{"whitespace ignored", "48 65\n6C\t6C 6F>", []byte("Hello")},
		{"odd digit padded with zero", "48656C6C6F7>", []byte("Hellop")},
		{"empty", ">", []byte{}},
		{"no terminator", "4865", []byte("He")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestASCIIHexFilter_Decode_InvalidDigit(t *testing.T) {
	f := NewASCIIHexFilter()
	_, err := f.Decode([]byte("48ZZ>"))
	assert.Error(t, err)
}

func TestASCIIHexFilter_RoundTrip(t *testing.T) {
	f := NewASCIIHexFilter()
	data := []byte{0x00, 0x01, 0xFE, 0xFF, 'a', 'b'}

	encoded, err := f.Encode(data)
	require.NoError(t, err)
	assert.Equal(t, byte('>'), encoded[len(encoded)-1])

	decoded, err := f.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

// ============================================================================
// ASCII85Decode Tests
// ============================================================================

func TestASCII85Filter_Decode(t *testing.T) {
	f := NewASCII85Filter()

	tests := []struct {
		name     string
		input    string
		expected []byte
	}{
		{"simple", "87cUR~>", []byte("Hell")},
		{"with prefix", "<~87cUR~>", []byte("Hell")},
		{"zero group shorthand", "z~>", []byte{0, 0, 0, 0}},
		{"partial final group", "87cURDZ~>", []byte("Hello")},
		{"whitespace ignored", "87cUR\n DZ~>", []byte("Hello")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestASCII85Filter_RoundTrip(t *testing.T) {
	f := NewASCII85Filter()

	tests := [][]byte{
		[]byte("Hello, World!"),
		{0x00, 0x00, 0x00, 0x00},
		bytes.Repeat([]byte{0xAB}, 61),
	}

	for _, data := range tests {
		encoded, err := f.Encode(data)
		require.NoError(t, err)
		assert.True(t, bytes.HasSuffix(encoded, []byte("~>")))

		decoded, err := f.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, data, decoded)
	}
}

// ============================================================================
// RunLengthDecode Tests
// ============================================================================

func TestRunLengthFilter_Decode(t *testing.T) {
	f := NewRunLengthFilter()

	tests := []struct {
		name     string
		input    []byte
		expected []byte
	}{
		{
			name:     "literal run",
			input:    []byte{2, 'a', 'b', 'c', 128},
			expected: []byte("abc"),
		},
		{
			name:     "repeat run",
			input:    []byte{254, 'x', 128}, // 257-254 = 3 copies
			expected: []byte("xxx"),
		},
		{
			name:     "mixed runs",
			input:    []byte{1, 'a', 'b', 253, 'c', 0, 'd', 128},
			expected: []byte("abccccd"),
		},
		{
			name:     "empty",
			input:    []byte{128},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.Decode(tt.input)
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Empty(t, result)
			} else {
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestRunLengthFilter_Decode_Errors(t *testing.T) {
	f := NewRunLengthFilter()

	t.Run("missing end-of-data marker", func(t *testing.T) {
		_, err := f.Decode([]byte{2, 'a', 'b', 'c'})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "end-of-data")
	})

	t.Run("truncated literal run", func(t *testing.T) {
		_, err := f.Decode([]byte{5, 'a'})
		assert.Error(t, err)
	})

	t.Run("repeat run missing value", func(t *testing.T) {
		_, err := f.Decode([]byte{200})
		assert.Error(t, err)
	})
}

func TestRunLengthFilter_RoundTrip(t *testing.T) {
	f := NewRunLengthFilter()

	tests := []struct {
		name string
		data []byte
	}{
		{"text", []byte("no long runs here")},
		{"long repeat", bytes.Repeat([]byte{0x00}, 300)},
		{"mixed", append([]byte("header"), bytes.Repeat([]byte{0xFF}, 50)...)},
		{"long literal", []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789abcdefgh")},
	}

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

// ============================================================================
// LZWDecode Tests
// ============================================================================

func TestLZWFilter_RoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		earlyChange int
	}{
		{"early change (default)", 1},
		{"no early change", 0},
	}

	data := bytes.Repeat([]byte("-----A---B"), 200)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			params.EarlyChange = tt.earlyChange
			f := NewLZWFilter(params)

			encoded, err := f.Encode(data)
			require.NoError(t, err)
			assert.NotEqual(t, data, encoded)

			decoded, err := f.Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, data, decoded)
		})
	}
}

func TestLZWFilter_RoundTrip_WithPredictor(t *testing.T) {
	params := DefaultParams()
	params.Predictor = 12
	params.Columns = 4
	f := NewLZWFilter(params)

	data := []byte{10, 20, 30, 40, 11, 21, 31, 41, 12, 22, 32, 42}

	encoded, err := f.Encode(data)
	require.NoError(t, err)

	decoded, err := f.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestLZWFilter_Decode_Garbage(t *testing.T) {
	f := NewLZWFilter(DefaultParams())
	_, err := f.Decode([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	assert.Error(t, err)
}
