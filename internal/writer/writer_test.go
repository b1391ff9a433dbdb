package writer

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/pdfcore/internal/parser"
)

// buildFixture assembles a single-revision document with a classic xref
// table. bodies[i] becomes object i+1; object 1 must be the catalog.
func buildFixture(t *testing.T, bodies []string) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(bodies)+1)
	for i, body := range bodies {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(bodies)+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for i := 1; i <= len(bodies); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(bodies)+1, xrefOffset)
	return buf.Bytes()
}

// fixtureBodies is a minimal catalog/pages/page document plus a string
// object to update and an orphan nothing references.
func fixtureBodies() []string {
	return []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>",
		"(original payload)",
		"<< /Orphan true >>",
	}
}

// revisionFor builds the Revision descriptor from an opened document.
func revisionFor(t *testing.T, data []byte) (*parser.Reader, *Revision) {
	t.Helper()

	r, err := parser.Open(data)
	require.NoError(t, err)

	return r, &Revision{
		Original:        data,
		HeaderOffset:    r.HeaderOffset(),
		PrevStartXRef:   r.StartXRef(),
		PrevTrailer:     r.Trailer(),
		UseXRefStream:   r.UsesXRefStream(),
		MaxObjectNumber: r.MaxObjectNumber(),
	}
}

// ============================================================================
// Serialization Tests
// ============================================================================

func TestWriteObject(t *testing.T) {
	tests := []struct {
		name     string
		obj      parser.PdfObject
		expected string
	}{
		{"integer", parser.NewInteger(42), "42"},
		{"negative integer", parser.NewInteger(-7), "-7"},
		{"boolean", parser.NewBoolean(true), "true"},
		{"null", parser.NewNull(), "null"},
		{"nil object", nil, "null"},
		{"name", parser.NewName("Type"), "/Type"},
		{"string", parser.NewString("hi"), "(hi)"},
		{"reference", parser.NewIndirectReference(3, 0), "3 0 R"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeObject(&buf, tt.obj)
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestWriteStream_ForcesLength(t *testing.T) {
	dict := parser.NewDictionary()
	dict.Set("Length", parser.NewInteger(999)) // stale
	stream := parser.NewStream(dict, []byte("eight by"))

	var buf bytes.Buffer
	writeObject(&buf, stream)

	out := buf.String()
	assert.Contains(t, out, "/Length 8")
	assert.NotContains(t, out, "999")
	assert.Contains(t, out, "stream\neight by\nendstream")
}

func TestWriteIndirectObject(t *testing.T) {
	var buf bytes.Buffer
	writeIndirectObject(&buf, 12, 1, parser.NewString("x"))

	assert.Equal(t, "12 1 obj\n(x)\nendobj\n", buf.String())
}

// ============================================================================
// Incremental Append Tests
// ============================================================================

func TestAppendRevision_PreservesOriginalBytes(t *testing.T) {
	original := buildFixture(t, fixtureBodies())
	_, rev := revisionFor(t, original)

	out, err := AppendRevision(rev, []*Update{
		{Number: 4, Object: parser.NewString("updated payload")},
	})
	require.NoError(t, err)

	require.Greater(t, len(out), len(original))
	assert.True(t, bytes.Equal(out[:len(original)], original),
		"committed bytes must survive the save untouched")
}

func TestAppendRevision_NewestRevisionWins(t *testing.T) {
	original := buildFixture(t, fixtureBodies())
	_, rev := revisionFor(t, original)

	out, err := AppendRevision(rev, []*Update{
		{Number: 4, Object: parser.NewString("updated payload")},
	})
	require.NoError(t, err)

	r, err := parser.Open(out)
	require.NoError(t, err)

	obj, err := r.GetObject(4)
	require.NoError(t, err)
	assert.Equal(t, "updated payload", obj.(*parser.String).Value())

	// Untouched objects still come from the first revision.
	catalog, err := r.GetObject(1)
	require.NoError(t, err)
	dict := catalog.(*parser.Dictionary)
	assert.Equal(t, "Catalog", dict.GetName("Type").Value())
}

func TestAppendRevision_NewObjectExtendsSize(t *testing.T) {
	original := buildFixture(t, fixtureBodies())
	_, rev := revisionFor(t, original)

	out, err := AppendRevision(rev, []*Update{
		{Number: 9, Object: parser.NewString("brand new")},
	})
	require.NoError(t, err)

	r, err := parser.Open(out)
	require.NoError(t, err)

	obj, err := r.GetObject(9)
	require.NoError(t, err)
	assert.Equal(t, "brand new", obj.(*parser.String).Value())

	size := r.Trailer().GetInteger("Size")
	assert.Equal(t, int64(10), size)
}

func TestAppendRevision_FreeShadowsObject(t *testing.T) {
	original := buildFixture(t, fixtureBodies())
	_, rev := revisionFor(t, original)

	out, err := AppendRevision(rev, []*Update{
		{Number: 5, Free: true},
	})
	require.NoError(t, err)

	r, err := parser.Open(out)
	require.NoError(t, err)

	obj, err := r.GetObject(5)
	require.NoError(t, err)
	assert.IsType(t, &parser.Null{}, obj)

	// The free entry bumps the generation for future reuse.
	entry, ok := r.XRefTable().GetEntry(5)
	require.True(t, ok)
	assert.True(t, entry.IsFree())
	assert.Equal(t, 1, entry.Generation)
}

func TestAppendRevision_TrailerInheritsRoot(t *testing.T) {
	original := buildFixture(t, fixtureBodies())
	_, rev := revisionFor(t, original)

	out, err := AppendRevision(rev, []*Update{
		{Number: 4, Object: parser.NewString("x")},
	})
	require.NoError(t, err)

	r, err := parser.Open(out)
	require.NoError(t, err)

	root, ok := r.Trailer().Get("Root").(*parser.IndirectReference)
	require.True(t, ok)
	assert.Equal(t, 1, root.Number)

	prev := r.Trailer().GetInteger("Prev")
	assert.Equal(t, rev.PrevStartXRef, prev)
}

func TestAppendRevision_MultipleUpdatesAndChaining(t *testing.T) {
	original := buildFixture(t, fixtureBodies())
	_, rev1 := revisionFor(t, original)

	// First append: update two objects at once.
	out1, err := AppendRevision(rev1, []*Update{
		{Number: 4, Object: parser.NewString("first save")},
		{Number: 6, Object: parser.NewInteger(111)},
	})
	require.NoError(t, err)

	// Second append on top of the first.
	_, rev2 := revisionFor(t, out1)
	out2, err := AppendRevision(rev2, []*Update{
		{Number: 4, Object: parser.NewString("second save")},
	})
	require.NoError(t, err)

	assert.True(t, bytes.Equal(out2[:len(out1)], out1))

	r, err := parser.Open(out2)
	require.NoError(t, err)

	obj4, err := r.GetObject(4)
	require.NoError(t, err)
	assert.Equal(t, "second save", obj4.(*parser.String).Value())

	// Object 6 from the middle revision survives.
	obj6, err := r.GetObject(6)
	require.NoError(t, err)
	assert.Equal(t, int64(111), obj6.(*parser.Integer).Value())
}

func TestAppendRevision_StreamUpdate(t *testing.T) {
	original := buildFixture(t, fixtureBodies())
	_, rev := revisionFor(t, original)

	dict := parser.NewDictionary()
	content := []byte("q 1 0 0 1 10 10 cm Q")
	out, err := AppendRevision(rev, []*Update{
		{Number: 4, Object: parser.NewStream(dict, content)},
	})
	require.NoError(t, err)

	r, err := parser.Open(out)
	require.NoError(t, err)

	obj, err := r.GetObject(4)
	require.NoError(t, err)
	stream, ok := obj.(*parser.Stream)
	require.True(t, ok)
	assert.Equal(t, content, stream.Content())
}

func TestAppendRevision_XRefStreamStyle(t *testing.T) {
	original := buildFixture(t, fixtureBodies())
	_, rev := revisionFor(t, original)
	rev.UseXRefStream = true

	out, err := AppendRevision(rev, []*Update{
		{Number: 4, Object: parser.NewString("via xref stream")},
	})
	require.NoError(t, err)

	r, err := parser.Open(out)
	require.NoError(t, err)

	obj, err := r.GetObject(4)
	require.NoError(t, err)
	assert.Equal(t, "via xref stream", obj.(*parser.String).Value())

	// The xref stream object claimed a number past the previous maximum.
	streamObj, err := r.GetObject(6)
	require.NoError(t, err)
	xrefStream, ok := streamObj.(*parser.Stream)
	require.True(t, ok)
	assert.Equal(t, "XRef", xrefStream.Dictionary().GetName("Type").Value())
}

func TestAppendRevision_Errors(t *testing.T) {
	original := buildFixture(t, fixtureBodies())
	_, rev := revisionFor(t, original)

	t.Run("no updates", func(t *testing.T) {
		_, err := AppendRevision(rev, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no updated objects")
	})

	t.Run("missing trailer", func(t *testing.T) {
		broken := *rev
		broken.PrevTrailer = nil
		_, err := AppendRevision(&broken, []*Update{{Number: 4, Object: parser.NewNull()}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "previous trailer")
	})

	t.Run("duplicate object number", func(t *testing.T) {
		_, err := AppendRevision(rev, []*Update{
			{Number: 4, Object: parser.NewInteger(1)},
			{Number: 4, Object: parser.NewInteger(2)},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate update")
	})

	t.Run("invalid object number", func(t *testing.T) {
		_, err := AppendRevision(rev, []*Update{{Number: 0, Object: parser.NewNull()}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid object number")
	})
}

// ============================================================================
// Compaction Tests
// ============================================================================

func TestCompact_DropsUnreachableObjects(t *testing.T) {
	original := buildFixture(t, fixtureBodies())
	r, err := parser.Open(original)
	require.NoError(t, err)

	out, err := Compact(r)
	require.NoError(t, err)

	compacted, err := parser.Open(out)
	require.NoError(t, err)

	// Objects 1..4 are reachable from /Root; the orphan (5) is gone.
	assert.Equal(t, int64(5), compacted.Trailer().GetInteger("Size"))
	assert.Equal(t, 4, compacted.MaxObjectNumber())

	catalog, err := compacted.GetObject(1)
	require.NoError(t, err)
	assert.Equal(t, "Catalog", catalog.(*parser.Dictionary).GetName("Type").Value())
}

func TestCompact_FlattensRevisions(t *testing.T) {
	original := buildFixture(t, fixtureBodies())
	_, rev := revisionFor(t, original)

	appended, err := AppendRevision(rev, []*Update{
		{Number: 4, Object: parser.NewString("latest value")},
	})
	require.NoError(t, err)

	r, err := parser.Open(appended)
	require.NoError(t, err)

	out, err := Compact(r)
	require.NoError(t, err)
	assert.Less(t, len(out), len(appended))

	compacted, err := parser.Open(out)
	require.NoError(t, err)

	// Only the newest value survives, under its compacted number.
	assert.False(t, compacted.Trailer().Has("Prev"))

	pageObj, err := compacted.GetObject(3)
	require.NoError(t, err)
	contents := pageObj.(*parser.Dictionary).Get("Contents").(*parser.IndirectReference)

	payload, err := compacted.GetObject(contents.Number)
	require.NoError(t, err)
	assert.Equal(t, "latest value", payload.(*parser.String).Value())
}

func TestCompact_RenumbersDensely(t *testing.T) {
	// Sparse numbering: the catalog is object 10, pages 20, page 30.
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	bodies := map[int]string{
		10: "<< /Type /Catalog /Pages 20 0 R >>",
		20: "<< /Type /Pages /Kids [30 0 R] /Count 1 >>",
		30: "<< /Type /Page /Parent 20 0 R >>",
	}
	offsets := map[int]int{}
	for _, num := range []int{10, 20, 30} {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, bodies[num])
	}

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 1\n0000000000 65535 f\r\n")
	for _, num := range []int{10, 20, 30} {
		fmt.Fprintf(&buf, "%d 1\n%010d 00000 n\r\n", num, offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 31 /Root 10 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	r, err := parser.Open(buf.Bytes())
	require.NoError(t, err)

	out, err := Compact(r)
	require.NoError(t, err)

	compacted, err := parser.Open(out)
	require.NoError(t, err)
	assert.Equal(t, 3, compacted.MaxObjectNumber())

	root := compacted.Trailer().Get("Root").(*parser.IndirectReference)
	assert.Equal(t, 1, root.Number)

	catalog, err := compacted.GetObject(1)
	require.NoError(t, err)
	pagesRef := catalog.(*parser.Dictionary).Get("Pages").(*parser.IndirectReference)
	assert.Equal(t, 2, pagesRef.Number)
	assert.Equal(t, 0, pagesRef.Generation)
}

func TestCompact_DanglingReferenceBecomesNull(t *testing.T) {
	bodies := fixtureBodies()
	// The page points at a /Contents object that does not exist.
	bodies[2] = "<< /Type /Page /Parent 2 0 R /Contents 77 0 R >>"
	original := buildFixture(t, bodies)

	r, err := parser.Open(original)
	require.NoError(t, err)

	out, err := Compact(r)
	require.NoError(t, err)

	compacted, err := parser.Open(out)
	require.NoError(t, err)

	pageObj, err := compacted.GetObject(3)
	require.NoError(t, err)
	contents := pageObj.(*parser.Dictionary).Get("Contents")
	assert.IsType(t, &parser.Null{}, contents)
}

func TestCompact_RequiresRoot(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	off := buf.Len()
	buf.WriteString("1 0 obj\n(lonely)\nendobj\n")
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 2\n0000000000 65535 f\r\n%010d 00000 n\r\n", off)
	fmt.Fprintf(&buf, "trailer\n<< /Size 2 >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	r, err := parser.Open(buf.Bytes())
	require.NoError(t, err)

	_, err = Compact(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/Root")
}

// ============================================================================
// Benchmark Tests
// ============================================================================

func BenchmarkAppendRevision(b *testing.B) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	bodies := fixtureBodies()
	offsets := make([]int, len(bodies)+1)
	for i, body := range bodies {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f\r\n", len(bodies)+1)
	for i := 1; i <= len(bodies); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(bodies)+1, xrefOffset)
	original := buf.Bytes()

	r, err := parser.Open(original)
	if err != nil {
		b.Fatal(err)
	}
	rev := &Revision{
		Original:        original,
		HeaderOffset:    r.HeaderOffset(),
		PrevStartXRef:   r.StartXRef(),
		PrevTrailer:     r.Trailer(),
		MaxObjectNumber: r.MaxObjectNumber(),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AppendRevision(rev, []*Update{
			{Number: 4, Object: parser.NewString("benchmark value")},
		})
	}
}
