package writer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/coregx/pdfcore/internal/parser"
	"github.com/coregx/pdfcore/logging"
)

// Update is one object written into an appended revision: a changed
// object, a newly allocated one, or a deletion (Free).
type Update struct {
	Number     int
	Generation int
	Object     parser.PdfObject

	// Free marks the object number as deleted in this revision. Object
	// is ignored.
	Free bool
}

// Revision describes an incremental append onto an existing buffer.
//
// The original bytes are the committed document; AppendRevision never
// rewrites them. That append-only invariant is what keeps byte ranges
// covered by earlier digital signatures valid across saves.
//
// Reference: PDF 1.7 specification, Section 7.5.6 (Incremental Updates).
type Revision struct {
	// Original is the full committed buffer, including any junk bytes
	// before the header.
	Original []byte

	// HeaderOffset is the byte offset of %PDF- within Original; object
	// and xref offsets are relative to it.
	HeaderOffset int64

	// PrevStartXRef is the offset of the previous revision's xref
	// section, written as the new trailer's /Prev.
	PrevStartXRef int64

	// PrevTrailer supplies the inherited trailer keys (/Root, /Info,
	// /ID, /Encrypt).
	PrevTrailer *parser.Dictionary

	// UseXRefStream selects the xref encoding of the appended section,
	// matching the source document's style.
	UseXRefStream bool

	// MaxObjectNumber is the highest object number in use before this
	// revision; /Size becomes one greater than the overall maximum.
	MaxObjectNumber int
}

// trailer keys inherited from the previous revision.
var inheritedTrailerKeys = []string{"Root", "Info", "ID", "Encrypt"}

// AppendRevision serializes the updates after the original buffer and
// writes a new xref section, trailer, startxref and end-of-file marker.
// The returned buffer starts with Original byte-for-byte.
func AppendRevision(rev *Revision, updates []*Update) ([]byte, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("incremental save with no updated objects")
	}
	if rev.PrevTrailer == nil {
		return nil, fmt.Errorf("incremental save requires the previous trailer")
	}

	sorted := make([]*Update, len(updates))
	copy(sorted, updates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	seen := make(map[int]bool, len(sorted))
	maxObj := rev.MaxObjectNumber
	for _, u := range sorted {
		if u.Number <= 0 {
			return nil, fmt.Errorf("invalid object number %d in update set", u.Number)
		}
		if seen[u.Number] {
			return nil, fmt.Errorf("duplicate update for object %d", u.Number)
		}
		seen[u.Number] = true
		if u.Number > maxObj {
			maxObj = u.Number
		}
	}

	var buf bytes.Buffer
	buf.Write(rev.Original)
	if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' && buf.Bytes()[buf.Len()-1] != '\r' {
		buf.WriteByte('\n')
	}

	// Body: each update at a recorded offset (relative to the header).
	table := parser.NewXRefTable()
	for _, u := range sorted {
		if u.Free {
			table.AddEntry(parser.NewXRefEntry(u.Number, parser.XRefEntryFree, 0, u.Generation+1))
			continue
		}
		offset := int64(buf.Len()) - rev.HeaderOffset
		table.AddEntry(parser.NewXRefEntry(u.Number, parser.XRefEntryInUse, offset, u.Generation))
		writeIndirectObject(&buf, u.Number, u.Generation, u.Object)
	}

	size := int64(maxObj + 1)
	var xrefOffset int64
	var err error
	if rev.UseXRefStream {
		xrefOffset, err = appendXRefStream(&buf, rev, table, size, maxObj)
	} else {
		xrefOffset, err = appendXRefTable(&buf, rev, table, size)
	}
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)

	out := buf.Bytes()
	if !bytes.Equal(out[:len(rev.Original)], rev.Original) {
		// Construction makes this unreachable; a failure here means the
		// committed bytes were corrupted and the save must not be used.
		return nil, fmt.Errorf("incremental save mutated committed bytes")
	}

	logging.Logger().Debug("appended incremental revision",
		"objects", len(sorted), "size", size, "xref_offset", xrefOffset)
	return out, nil
}

// appendXRefTable writes a classic xref table and trailer for the
// revision's entries, returning the section's header-relative offset.
func appendXRefTable(buf *bytes.Buffer, rev *Revision, table *parser.XRefTable, size int64) (int64, error) {
	xrefOffset := int64(buf.Len()) - rev.HeaderOffset

	numbers := sortedObjectNumbers(table)

	buf.WriteString("xref\n")
	for i := 0; i < len(numbers); {
		// Contiguous runs share one subsection.
		j := i + 1
		for j < len(numbers) && numbers[j] == numbers[j-1]+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", numbers[i], j-i)
		for _, num := range numbers[i:j] {
			entry, _ := table.GetEntry(num)
			fmt.Fprintf(buf, "%s\r\n", entry.String())
		}
		i = j
	}

	trailer := parser.NewDictionary()
	trailer.Set("Size", parser.NewInteger(size))
	trailer.Set("Prev", parser.NewInteger(rev.PrevStartXRef))
	for _, key := range inheritedTrailerKeys {
		if v := rev.PrevTrailer.Get(key); v != nil {
			trailer.Set(key, v)
		}
	}

	buf.WriteString("trailer\n")
	buf.WriteString(trailer.String())
	buf.WriteString("\n")
	return xrefOffset, nil
}

// appendXRefStream writes the revision's entries as a cross-reference
// stream. The stream object itself occupies a fresh object number and
// lists its own entry.
func appendXRefStream(buf *bytes.Buffer, rev *Revision, table *parser.XRefTable, size int64, maxObj int) (int64, error) {
	streamObjNum := maxObj + 1
	size = int64(streamObjNum + 1)

	xrefOffset := int64(buf.Len()) - rev.HeaderOffset
	table.AddEntry(parser.NewXRefEntry(streamObjNum, parser.XRefEntryInUse, xrefOffset, 0))

	numbers := sortedObjectNumbers(table)

	// Fixed widths: 1-byte type, 8-byte offset, 2-byte generation.
	index := parser.NewArray()
	var data bytes.Buffer
	for i := 0; i < len(numbers); {
		j := i + 1
		for j < len(numbers) && numbers[j] == numbers[j-1]+1 {
			j++
		}
		index.Append(parser.NewInteger(int64(numbers[i])))
		index.Append(parser.NewInteger(int64(j - i)))
		for _, num := range numbers[i:j] {
			entry, _ := table.GetEntry(num)
			entryType := byte(1)
			if entry.Type == parser.XRefEntryFree {
				entryType = 0
			}
			data.WriteByte(entryType)
			off := uint64(entry.Offset) //nolint:gosec // Offsets are non-negative by construction.
			for shift := 56; shift >= 0; shift -= 8 {
				data.WriteByte(byte(off >> shift))
			}
			gen := entry.Generation
			data.WriteByte(byte(gen >> 8))
			data.WriteByte(byte(gen))
		}
		i = j
	}

	dict := parser.NewDictionary()
	dict.Set("Type", parser.NewName("XRef"))
	dict.Set("Size", parser.NewInteger(size))
	wArr := parser.NewArray()
	wArr.Append(parser.NewInteger(1))
	wArr.Append(parser.NewInteger(8))
	wArr.Append(parser.NewInteger(2))
	dict.Set("W", wArr)
	dict.Set("Index", index)
	dict.Set("Prev", parser.NewInteger(rev.PrevStartXRef))
	for _, key := range inheritedTrailerKeys {
		if v := rev.PrevTrailer.Get(key); v != nil {
			dict.Set(key, v)
		}
	}

	stream := parser.NewStream(dict, data.Bytes())
	writeIndirectObject(buf, streamObjNum, 0, stream)
	return xrefOffset, nil
}

// sortedObjectNumbers returns the table's object numbers ascending.
func sortedObjectNumbers(table *parser.XRefTable) []int {
	numbers := make([]int, 0, table.Size())
	for num := range table.Entries {
		numbers = append(numbers, num)
	}
	sort.Ints(numbers)
	return numbers
}
