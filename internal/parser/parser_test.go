package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseOne parses a single direct object from input.
func parseOne(t *testing.T, input string) PdfObject {
	t.Helper()
	obj, err := NewParser([]byte(input)).ParseObject()
	require.NoError(t, err)
	return obj
}

// ============================================================================
// Scalar Object Tests
// ============================================================================

func TestParser_ParseObject_Scalars(t *testing.T) {
	t.Run("integer", func(t *testing.T) {
		obj := parseOne(t, "42")
		n, ok := obj.(*Integer)
		require.True(t, ok)
		assert.Equal(t, int64(42), n.Value())
	})

	t.Run("negative integer", func(t *testing.T) {
		n := parseOne(t, "-17").(*Integer)
		assert.Equal(t, int64(-17), n.Value())
	})

	t.Run("real", func(t *testing.T) {
		r, ok := parseOne(t, "3.5").(*Real)
		require.True(t, ok)
		assert.InDelta(t, 3.5, r.Value(), 1e-9)
	})

	t.Run("boolean true", func(t *testing.T) {
		b := parseOne(t, "true").(*Boolean)
		assert.True(t, b.Value())
	})

	t.Run("boolean false", func(t *testing.T) {
		b := parseOne(t, "false").(*Boolean)
		assert.False(t, b.Value())
	})

	t.Run("null", func(t *testing.T) {
		_, ok := parseOne(t, "null").(*Null)
		assert.True(t, ok)
	})

	t.Run("name", func(t *testing.T) {
		n := parseOne(t, "/Catalog").(*Name)
		assert.Equal(t, "Catalog", n.Value())
	})

	t.Run("literal string", func(t *testing.T) {
		s := parseOne(t, "(hello world)").(*String)
		assert.Equal(t, "hello world", s.Value())
	})

	t.Run("hex string", func(t *testing.T) {
		s := parseOne(t, "<48656C6C6F>").(*HexString)
		assert.Equal(t, "Hello", s.Value())
	})
}

// ============================================================================
// Indirect Reference Tests
// ============================================================================

func TestParser_ParseObject_IndirectReference(t *testing.T) {
	obj := parseOne(t, "12 0 R")

	ref, ok := obj.(*IndirectReference)
	require.True(t, ok)
	assert.Equal(t, 12, ref.Number)
	assert.Equal(t, 0, ref.Generation)
}

func TestParser_ParseObject_TwoIntegersWithoutR(t *testing.T) {
	// "1 2 3" must parse as three separate integers: the lookahead for
	// the reference pattern cannot consume the second integer.
	p := NewParser([]byte("1 2 3"))

	for _, want := range []int64{1, 2, 3} {
		obj, err := p.ParseObject()
		require.NoError(t, err)
		n, ok := obj.(*Integer)
		require.True(t, ok)
		assert.Equal(t, want, n.Value())
	}
}

func TestParser_ParseObject_ReferenceInsideArray(t *testing.T) {
	arr := parseOne(t, "[1 0 R 2 0 R 7]").(*Array)

	require.Equal(t, 3, arr.Len())
	ref1 := arr.Get(0).(*IndirectReference)
	assert.Equal(t, 1, ref1.Number)
	ref2 := arr.Get(1).(*IndirectReference)
	assert.Equal(t, 2, ref2.Number)
	n := arr.Get(2).(*Integer)
	assert.Equal(t, int64(7), n.Value())
}

// ============================================================================
// Array Tests
// ============================================================================

func TestParser_ParseArray(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		arr := parseOne(t, "[]").(*Array)
		assert.Equal(t, 0, arr.Len())
	})

	t.Run("mixed elements", func(t *testing.T) {
		arr := parseOne(t, "[0 0 612 792.5]").(*Array)
		require.Equal(t, 4, arr.Len())
		assert.IsType(t, &Integer{}, arr.Get(0))
		assert.IsType(t, &Real{}, arr.Get(3))
	})

	t.Run("nested", func(t *testing.T) {
		arr := parseOne(t, "[[1 2] [3]]").(*Array)
		require.Equal(t, 2, arr.Len())
		inner := arr.Get(0).(*Array)
		assert.Equal(t, 2, inner.Len())
	})

	t.Run("unterminated", func(t *testing.T) {
		_, err := NewParser([]byte("[1 2")).ParseObject()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected EOF in array")
	})
}

// ============================================================================
// Dictionary Tests
// ============================================================================

func TestParser_ParseDictionary(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		dict := parseOne(t, "<< /Type /Catalog /Pages 2 0 R >>").(*Dictionary)

		typeName, ok := dict.Get("Type").(*Name)
		require.True(t, ok)
		assert.Equal(t, "Catalog", typeName.Value())

		ref, ok := dict.Get("Pages").(*IndirectReference)
		require.True(t, ok)
		assert.Equal(t, 2, ref.Number)
	})

	t.Run("empty", func(t *testing.T) {
		dict := parseOne(t, "<< >>").(*Dictionary)
		assert.Equal(t, 0, dict.Len())
	})

	t.Run("nested", func(t *testing.T) {
		dict := parseOne(t, "<< /Outer << /Inner 1 >> >>").(*Dictionary)
		inner, ok := dict.Get("Outer").(*Dictionary)
		require.True(t, ok)
		n := inner.Get("Inner").(*Integer)
		assert.Equal(t, int64(1), n.Value())
	})

	t.Run("non-name key", func(t *testing.T) {
		_, err := NewParser([]byte("<< 1 2 >>")).ParseObject()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected name for dictionary key")
	})

	t.Run("unterminated", func(t *testing.T) {
		_, err := NewParser([]byte("<< /A 1")).ParseObject()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected EOF in dictionary")
	})
}

// ============================================================================
// Indirect Object Tests
// ============================================================================

func TestParser_ParseIndirectObject(t *testing.T) {
	p := NewParser([]byte("7 0 obj\n<< /Type /Page >>\nendobj"))

	obj, err := p.ParseIndirectObject()
	require.NoError(t, err)
	assert.Equal(t, 7, obj.Number)
	assert.Equal(t, 0, obj.Generation)

	dict, ok := obj.Object.(*Dictionary)
	require.True(t, ok)
	assert.Equal(t, "Page", dict.Get("Type").(*Name).Value())
}

func TestParser_ParseIndirectObject_MissingEndobj(t *testing.T) {
	// A producer that forgot endobj: the object still parses, and the
	// next object header is left for the caller.
	p := NewParser([]byte("7 0 obj\n(content)\n8 0 obj\n42\nendobj"))

	obj, err := p.ParseIndirectObject()
	require.NoError(t, err)
	assert.Equal(t, 7, obj.Number)
	assert.Equal(t, "content", obj.Object.(*String).Value())

	next, err := p.ParseIndirectObject()
	require.NoError(t, err)
	assert.Equal(t, 8, next.Number)
}

func TestParser_ParseIndirectObject_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		errPart string
	}{
		{"missing object number", "obj 42 endobj", "expected object number"},
		{"missing generation", "7 obj 42 endobj", "expected generation number"},
		{"missing obj keyword", "7 0 42 endobj", "expected 'obj' keyword"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser([]byte(tt.input)).ParseIndirectObject()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

// ============================================================================
// Stream Object Tests
// ============================================================================

func TestParser_ParseStream_DeclaredLength(t *testing.T) {
	input := "5 0 obj\n<< /Length 11 >>\nstream\nhello world\nendstream\nendobj"
	p := NewParser([]byte(input))

	obj, err := p.ParseIndirectObject()
	require.NoError(t, err)

	stream, ok := obj.Object.(*Stream)
	require.True(t, ok)
	assert.Equal(t, []byte("hello world"), stream.Content())
}

func TestParser_ParseStream_CRLFAfterKeyword(t *testing.T) {
	input := "5 0 obj\n<< /Length 4 >>\nstream\r\ndata\r\nendstream\nendobj"
	p := NewParser([]byte(input))

	obj, err := p.ParseIndirectObject()
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), obj.Object.(*Stream).Content())
}

func TestParser_ParseStream_WrongLengthRepaired(t *testing.T) {
	// Declared length 5 but the real content is 10 bytes. The scan for
	// endstream wins and the dictionary is corrected.
	input := "5 0 obj\n<< /Length 5 >>\nstream\n0123456789\nendstream\nendobj"
	p := NewParser([]byte(input))

	obj, err := p.ParseIndirectObject()
	require.NoError(t, err)

	stream := obj.Object.(*Stream)
	assert.Equal(t, []byte("0123456789"), stream.Content())

	length := stream.Dictionary().Get("Length").(*Integer)
	assert.Equal(t, int64(10), length.Value())
}

func TestParser_ParseStream_MissingLength(t *testing.T) {
	input := "5 0 obj\n<< /Type /XObject >>\nstream\npayload\nendstream\nendobj"
	p := NewParser([]byte(input))

	obj, err := p.ParseIndirectObject()
	require.NoError(t, err)

	stream := obj.Object.(*Stream)
	assert.Equal(t, []byte("payload"), stream.Content())
	assert.Equal(t, int64(7), stream.Dictionary().Get("Length").(*Integer).Value())
}

func TestParser_ParseStream_IndirectLengthWithResolver(t *testing.T) {
	input := "5 0 obj\n<< /Length 6 0 R >>\nstream\nabc\nendstream\nendobj"
	p := NewParser([]byte(input))
	p.SetLengthResolver(func(ref *IndirectReference) (PdfObject, error) {
		assert.Equal(t, 6, ref.Number)
		return NewInteger(3), nil
	})

	obj, err := p.ParseIndirectObject()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), obj.Object.(*Stream).Content())
}

func TestParser_ParseStream_Unterminated(t *testing.T) {
	input := "5 0 obj\n<< /Length 99 >>\nstream\ntruncated"
	_, err := NewParser([]byte(input)).ParseIndirectObject()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no endstream")
}

func TestParser_ParseStream_NonDictBeforeStream(t *testing.T) {
	input := "5 0 obj\n[1 2]\nstream\nxx\nendstream\nendobj"
	_, err := NewParser([]byte(input)).ParseIndirectObject()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream must be preceded by dictionary")
}

// ============================================================================
// Object Stream Tests
// ============================================================================

func TestParseObjectStream(t *testing.T) {
	// Two objects: 3 at offset 0, 4 at offset 20 (relative to /First).
	header := "3 0 4 20 "
	bodies := "<< /Kind (first) >> 42"
	payload := header + bodies

	objects, err := ParseObjectStream([]byte(payload), 2, len(header))
	require.NoError(t, err)
	require.Len(t, objects, 2)

	dict, ok := objects[3].(*Dictionary)
	require.True(t, ok)
	assert.Equal(t, "first", dict.Get("Kind").(*String).Value())

	n, ok := objects[4].(*Integer)
	require.True(t, ok)
	assert.Equal(t, int64(42), n.Value())
}

func TestParseObjectStream_Errors(t *testing.T) {
	t.Run("zero count", func(t *testing.T) {
		_, err := ParseObjectStream([]byte("1 0 "), 0, 4)
		assert.Error(t, err)
	})

	t.Run("first offset beyond payload", func(t *testing.T) {
		_, err := ParseObjectStream([]byte("1 0 "), 1, 99)
		assert.Error(t, err)
	})

	t.Run("truncated header pairs", func(t *testing.T) {
		_, err := ParseObjectStream([]byte("3 "), 1, 2)
		assert.Error(t, err)
	})

	t.Run("body offset beyond payload", func(t *testing.T) {
		_, err := ParseObjectStream([]byte("3 50 42"), 1, 5)
		assert.Error(t, err)
	})
}

// ============================================================================
// Positioning Tests
// ============================================================================

func TestParser_NewParserAt(t *testing.T) {
	data := []byte("junk junk 42 /Name")

	p := NewParserAt(data, 10)
	obj, err := p.ParseObject()
	require.NoError(t, err)
	assert.Equal(t, int64(42), obj.(*Integer).Value())
}

func TestParser_NewParserAt_OffsetBeyondEnd(t *testing.T) {
	p := NewParserAt([]byte("42"), 500)
	_, err := p.ParseObject()
	assert.Error(t, err)
}

// ============================================================================
// Benchmark Tests
// ============================================================================

func BenchmarkParser_ParseDictionary(b *testing.B) {
	input := []byte("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> >>")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = NewParser(input).ParseObject()
	}
}
