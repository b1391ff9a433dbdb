package writer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/coregx/pdfcore/internal/parser"
	"github.com/coregx/pdfcore/logging"
)

// binaryMarker is the conventional comment of high-bit bytes after the
// header, telling transfer agents the file is binary.
var binaryMarker = []byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'}

// Compact flattens a document's full revision chain into a fresh
// single-revision buffer: objects renumbered densely from 1, free
// entries and objects unreachable from /Root and /Info dropped, and all
// prior bytes discarded. Used when history preservation is not
// required.
//
// If the source was encrypted, the output is the decrypted document;
// the /Encrypt entry is not carried over.
func Compact(r *parser.Reader) ([]byte, error) {
	trailer := r.Trailer()
	rootRef, ok := trailer.Get("Root").(*parser.IndirectReference)
	if !ok {
		return nil, fmt.Errorf("compaction requires a /Root reference in the trailer")
	}

	reachable, err := collectReachable(r, rootRef, trailer.Get("Info"))
	if err != nil {
		return nil, err
	}
	if len(reachable) == 0 {
		return nil, fmt.Errorf("no reachable objects from /Root")
	}

	// Dense renumbering in ascending old-number order keeps the output
	// deterministic.
	oldNumbers := make([]int, 0, len(reachable))
	for num := range reachable {
		oldNumbers = append(oldNumbers, num)
	}
	sort.Ints(oldNumbers)

	renumber := make(map[int]int, len(oldNumbers))
	for i, old := range oldNumbers {
		renumber[old] = i + 1
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n", r.Version())
	buf.Write(binaryMarker)

	table := parser.NewXRefTable()
	table.AddEntry(parser.NewXRefEntry(0, parser.XRefEntryFree, 0, 65535))

	for _, old := range oldNumbers {
		newNum := renumber[old]
		obj := remapObject(reachable[old], renumber)

		table.AddEntry(parser.NewXRefEntry(newNum, parser.XRefEntryInUse, int64(buf.Len()), 0))
		writeIndirectObject(&buf, newNum, 0, obj)
	}

	xrefOffset := buf.Len()
	size := len(oldNumbers) + 1

	buf.WriteString("xref\n")
	fmt.Fprintf(&buf, "0 %d\n", size)
	for num := 0; num < size; num++ {
		entry, _ := table.GetEntry(num)
		fmt.Fprintf(&buf, "%s\r\n", entry.String())
	}

	newTrailer := parser.NewDictionary()
	newTrailer.Set("Size", parser.NewInteger(int64(size)))
	newTrailer.Set("Root", remapObject(rootRef, renumber))
	if infoRef, isRef := trailer.Get("Info").(*parser.IndirectReference); isRef {
		if _, kept := renumber[infoRef.Number]; kept {
			newTrailer.Set("Info", remapObject(infoRef, renumber))
		}
	}
	if id := trailer.GetArray("ID"); id != nil {
		newTrailer.Set("ID", id)
	}

	buf.WriteString("trailer\n")
	buf.WriteString(newTrailer.String())
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	logging.Logger().Debug("compacted document",
		"objects", len(oldNumbers), "bytes", buf.Len())
	return buf.Bytes(), nil
}

// collectReachable loads every object reachable from the given roots,
// following indirect references breadth-first. Free and absent targets
// resolve to Null and contribute nothing.
func collectReachable(r *parser.Reader, roots ...parser.PdfObject) (map[int]parser.PdfObject, error) {
	reachable := make(map[int]parser.PdfObject)
	var queue []int

	enqueue := func(obj parser.PdfObject) {
		if ref, ok := obj.(*parser.IndirectReference); ok {
			if _, seen := reachable[ref.Number]; !seen {
				reachable[ref.Number] = nil
				queue = append(queue, ref.Number)
			}
		}
	}

	for _, root := range roots {
		enqueue(root)
	}

	for len(queue) > 0 {
		num := queue[0]
		queue = queue[1:]

		obj, err := r.GetObject(num)
		if err != nil {
			return nil, fmt.Errorf("failed to load object %d during compaction: %w", num, err)
		}
		if _, isNull := obj.(*parser.Null); isNull {
			// Free or absent; drop from the output.
			delete(reachable, num)
			continue
		}
		reachable[num] = obj

		walkRefs(obj, enqueue)
	}

	return reachable, nil
}

// walkRefs invokes fn on every indirect reference inside obj,
// recursing through containers.
func walkRefs(obj parser.PdfObject, fn func(parser.PdfObject)) {
	switch o := obj.(type) {
	case *parser.IndirectReference:
		fn(o)
	case *parser.Array:
		for i := 0; i < o.Len(); i++ {
			walkRefs(o.Get(i), fn)
		}
	case *parser.Dictionary:
		for _, key := range o.Keys() {
			walkRefs(o.Get(key), fn)
		}
	case *parser.Stream:
		for _, key := range o.Dictionary().Keys() {
			walkRefs(o.Dictionary().Get(key), fn)
		}
	}
}

// remapObject deep-copies obj, rewriting indirect references through
// the renumbering map. References to dropped objects become null.
func remapObject(obj parser.PdfObject, renumber map[int]int) parser.PdfObject {
	switch o := obj.(type) {
	case *parser.IndirectReference:
		newNum, kept := renumber[o.Number]
		if !kept {
			return parser.NewNull()
		}
		// Generations restart at 0 in a compacted file.
		return parser.NewIndirectReference(newNum, 0)

	case *parser.Array:
		out := parser.NewArray()
		for i := 0; i < o.Len(); i++ {
			out.Append(remapObject(o.Get(i), renumber))
		}
		return out

	case *parser.Dictionary:
		out := parser.NewDictionary()
		for _, key := range o.Keys() {
			out.Set(key, remapObject(o.Get(key), renumber))
		}
		return out

	case *parser.Stream:
		dict, _ := remapObject(o.Dictionary(), renumber).(*parser.Dictionary)
		return parser.NewStream(dict, o.Content())

	default:
		return obj
	}
}
