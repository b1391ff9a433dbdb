// Package parser implements PDF document reading and parsing.
package parser

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/coregx/pdfcore/logging"
)

const (
	// headerSearchWindow bounds how far into the buffer the %PDF- header
	// may appear. Some producers prepend junk bytes before the header.
	headerSearchWindow = 1024

	// startXRefSearchWindow bounds the backward search for the trailing
	// "startxref" keyword.
	startXRefSearchWindow = 2048

	// maxXRefChainDepth caps the /Prev revision chain.
	maxXRefChainDepth = 100

	// maxResolveDepth caps reference-to-reference chains during
	// resolution.
	maxResolveDepth = 32
)

// Decryptor decrypts strings and stream content during object loading.
// It is installed by the document layer once the security handler has
// derived the file key; a nil Decryptor means the document is not
// encrypted (or not yet unlocked).
type Decryptor interface {
	// DecryptString decrypts a string object's bytes.
	DecryptString(data []byte, objNum, gen int) ([]byte, error)

	// DecryptStream decrypts a stream object's raw (still
	// filter-encoded) content.
	DecryptStream(data []byte, objNum, gen int) ([]byte, error)
}

// Reader provides random access to the objects of a PDF buffer: it
// locates the header and cross-reference machinery once, then loads
// objects lazily by number, caching each parsed object.
//
// All methods are safe for concurrent use.
type Reader struct {
	mu sync.RWMutex

	data         []byte
	version      string
	headerOffset int64

	xref      *XRefTable
	trailer   *Dictionary
	startXRef int64

	// encryptRef is the trailer's /Encrypt reference, if any. The
	// encryption dictionary itself is never decrypted.
	encryptRef *IndirectReference

	decryptor Decryptor

	objectCache map[int]PdfObject
	objStmCache map[int]map[int]PdfObject
}

// Open parses the structural skeleton of a PDF buffer: header, newest
// cross-reference section, and the full /Prev revision chain. Object
// bodies are not touched until requested.
//
// When the cross-reference machinery is missing or damaged the whole
// buffer is scanned to rebuild the table, and Degraded() reports true.
func Open(data []byte) (*Reader, error) {
	r := &Reader{
		data:        data,
		objectCache: make(map[int]PdfObject),
		objStmCache: make(map[int]map[int]PdfObject),
	}

	if err := r.readHeader(); err != nil {
		return nil, err
	}

	if err := r.loadXRef(); err != nil {
		return nil, err
	}

	if encObj := r.trailer.Get("Encrypt"); encObj != nil {
		if ref, ok := encObj.(*IndirectReference); ok {
			r.encryptRef = ref
		}
	}

	return r, nil
}

// readHeader locates the %PDF-M.N header within the search window. A
// UTF-8 BOM or leading whitespace before the header is tolerated, and
// all subsequent offsets are taken relative to the header position.
func (r *Reader) readHeader() error {
	window := r.data
	if len(window) > headerSearchWindow {
		window = window[:headerSearchWindow]
	}

	idx := bytes.Index(window, []byte("%PDF-"))
	if idx < 0 {
		return structuralErrorf("PDF header not found in first %d bytes", headerSearchWindow)
	}
	r.headerOffset = int64(idx)

	// Version is the M.N following the header marker.
	verStart := idx + len("%PDF-")
	verEnd := verStart
	for verEnd < len(window) && (isDigit(window[verEnd]) || window[verEnd] == '.') {
		verEnd++
	}
	r.version = string(window[verStart:verEnd])
	if r.version == "" {
		logging.Logger().Debug("header carries no version number", "offset", idx)
		r.version = "1.4"
	}

	if idx > 0 {
		logging.Logger().Debug("header preceded by junk bytes", "offset", idx)
	}
	return nil
}

// loadXRef finds startxref and walks the revision chain; any structural
// failure falls back to the brute-force recovery scan.
func (r *Reader) loadXRef() error {
	xref, err := r.loadXRefChain()
	if err == nil {
		r.xref = xref
		r.trailer = xref.GetTrailer()
		return nil
	}

	logging.Logger().Debug("xref chain unusable, rebuilding by scan", "error", err)

	recovered, recErr := RecoverXRef(r.data)
	if recErr != nil {
		return fmt.Errorf("failed to load cross-reference table: %w (recovery also failed: %v)", err, recErr)
	}

	// The scan records absolute buffer offsets; every other offset in the
	// table is relative to the header, so rebase when junk precedes it.
	if r.headerOffset != 0 {
		for _, entry := range recovered.Entries {
			if entry.Type == XRefEntryInUse {
				entry.Offset -= r.headerOffset
			}
		}
	}
	r.xref = recovered
	r.trailer = recovered.GetTrailer()
	return nil
}

// loadXRefChain parses the newest xref section and merges every older
// revision reachable through /Prev (and hybrid-file /XRefStm) links.
func (r *Reader) loadXRefChain() (*XRefTable, error) {
	startOffset, err := r.findStartXRef()
	if err != nil {
		return nil, err
	}
	r.startXRef = startOffset

	var merged *XRefTable
	visited := make(map[int64]bool)
	offset := startOffset

	for depth := 0; depth < maxXRefChainDepth; depth++ {
		if visited[offset] {
			return nil, structuralErrorf("cross-reference chain revisits offset %d", offset)
		}
		visited[offset] = true

		table, err := r.parseXRefAt(offset)
		if err != nil {
			return nil, err
		}

		// A hybrid file's classic table points at a parallel xref stream
		// holding the compressed-object entries. It counts as part of
		// the same revision: merged after the table, before /Prev.
		if xrefStm := table.GetTrailer().GetInteger("XRefStm"); xrefStm > 0 && !visited[xrefStm] {
			visited[xrefStm] = true
			if stmTable, stmErr := r.parseXRefAt(xrefStm); stmErr == nil {
				table.MergeOlder(stmTable)
			} else {
				logging.Logger().Debug("hybrid XRefStm unusable", "offset", xrefStm, "error", stmErr)
			}
		}

		if merged == nil {
			merged = table
		} else {
			merged.MergeOlder(table)
		}

		prev := table.GetTrailer().GetInteger("Prev")
		if prev <= 0 {
			return merged, nil
		}
		offset = prev
	}

	return nil, structuralErrorf("cross-reference chain exceeds %d revisions", maxXRefChainDepth)
}

// parseXRefAt parses the xref section (classic or stream) at a byte
// offset relative to the header.
func (r *Reader) parseXRefAt(offset int64) (*XRefTable, error) {
	abs := r.headerOffset + offset
	if abs < 0 || abs >= int64(len(r.data)) {
		return nil, structuralErrorf("cross-reference offset %d out of bounds", offset)
	}

	p := NewParserAt(r.data, int(abs))
	p.SetLengthResolver(r.resolveStreamLength)
	return p.ParseXRef()
}

// findStartXRef scans the tail of the buffer for the last "startxref"
// keyword and returns the offset it declares.
func (r *Reader) findStartXRef() (int64, error) {
	tail := r.data
	tailBase := 0
	if len(tail) > startXRefSearchWindow {
		tailBase = len(tail) - startXRefSearchWindow
		tail = tail[tailBase:]
	}

	idx := bytes.LastIndex(tail, []byte(KeywordStartXRef))
	if idx < 0 {
		return 0, structuralErrorf("startxref not found in last %d bytes", startXRefSearchWindow)
	}

	p := NewParserAt(r.data, tailBase+idx)
	return p.ParseStartXRef()
}

// resolveStreamLength resolves an indirect /Length while parsing a
// stream. The target must itself be a direct object at an in-use
// offset; anything else reports an unusable length and the parser falls
// back to scanning for endstream.
func (r *Reader) resolveStreamLength(ref *IndirectReference) (PdfObject, error) {
	entry, exists := r.xref.GetEntry(ref.Number)
	if !exists || entry.Type != XRefEntryInUse {
		return nil, structuralErrorf("indirect /Length %s has no in-use entry", ref)
	}

	abs := r.headerOffset + entry.Offset
	if abs < 0 || abs >= int64(len(r.data)) {
		return nil, structuralErrorf("indirect /Length %s offset out of bounds", ref)
	}

	p := NewParserAt(r.data, int(abs))
	obj, err := p.ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	return obj.Object, nil
}

// GetObject loads the object with the given number, parsing it on first
// access and caching the result. Free and absent entries yield Null.
func (r *Reader) GetObject(objNum int) (PdfObject, error) {
	r.mu.RLock()
	if cached, ok := r.objectCache[objNum]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check: another goroutine may have loaded it meanwhile.
	if cached, ok := r.objectCache[objNum]; ok {
		return cached, nil
	}

	obj, err := r.loadObject(objNum)
	if err != nil {
		return nil, err
	}

	r.objectCache[objNum] = obj
	return obj, nil
}

// loadObject loads an object without touching the cache. Callers hold
// the write lock.
func (r *Reader) loadObject(objNum int) (PdfObject, error) {
	entry, exists := r.xref.GetEntry(objNum)
	if !exists {
		return NewNull(), nil
	}

	switch entry.Type {
	case XRefEntryFree:
		return NewNull(), nil
	case XRefEntryInUse:
		return r.loadInUseObject(objNum, entry)
	case XRefEntryCompressed:
		return r.loadCompressedObject(objNum, entry)
	default:
		return nil, structuralErrorf("object %d has unknown entry type", objNum)
	}
}

// loadInUseObject parses an object at its recorded byte offset.
func (r *Reader) loadInUseObject(objNum int, entry *XRefEntry) (PdfObject, error) {
	abs := r.headerOffset + entry.Offset
	if abs < 0 || abs >= int64(len(r.data)) {
		return nil, structuralErrorf("object %d offset %d out of bounds", objNum, entry.Offset)
	}

	p := NewParserAt(r.data, int(abs))
	p.SetLengthResolver(r.resolveStreamLength)

	indirectObj, err := p.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse object %d: %w", objNum, err)
	}

	if indirectObj.Number != objNum {
		return nil, structuralErrorf("object at offset %d identifies as %d, expected %d",
			entry.Offset, indirectObj.Number, objNum)
	}
	if indirectObj.Generation != entry.Generation {
		// Tolerated: generation bookkeeping is frequently sloppy in the
		// wild, and the byte offset already pinned down the object.
		logging.Logger().Debug("generation mismatch",
			"object", objNum, "xref", entry.Generation, "header", indirectObj.Generation)
	}

	obj := indirectObj.Object
	if err := r.decryptObject(obj, objNum, indirectObj.Generation); err != nil {
		return nil, err
	}
	return obj, nil
}

// loadCompressedObject extracts an object from its containing object
// stream, parsing and caching the whole container on first access.
//
// Reference: PDF 1.7 specification, Section 7.5.7 (Object Streams).
func (r *Reader) loadCompressedObject(objNum int, entry *XRefEntry) (PdfObject, error) {
	containerNum := int(entry.Offset)

	objects, ok := r.objStmCache[containerNum]
	if !ok {
		var err error
		objects, err = r.loadObjectStream(containerNum)
		if err != nil {
			return nil, fmt.Errorf("failed to load object stream %d: %w", containerNum, err)
		}
		r.objStmCache[containerNum] = objects
	}

	obj, exists := objects[objNum]
	if !exists {
		return nil, structuralErrorf("object %d not found in object stream %d", objNum, containerNum)
	}
	return obj, nil
}

// loadObjectStream parses an object stream container and returns the
// objects it holds, keyed by object number.
//
// Decryption happens once at the container level; the objects inside
// inherit the container's protection and are never decrypted
// individually.
func (r *Reader) loadObjectStream(containerNum int) (map[int]PdfObject, error) {
	entry, exists := r.xref.GetEntry(containerNum)
	if !exists || entry.Type != XRefEntryInUse {
		return nil, structuralErrorf("object stream %d has no in-use entry", containerNum)
	}

	container, err := r.loadInUseObject(containerNum, entry)
	if err != nil {
		return nil, err
	}

	stream, ok := container.(*Stream)
	if !ok {
		return nil, structuralErrorf("object %d is not a stream (got %T)", containerNum, container)
	}

	dict := stream.Dictionary()
	if typeName := dict.GetName("Type"); typeName == nil || typeName.Value() != "ObjStm" {
		return nil, structuralErrorf("object %d is not an ObjStm", containerNum)
	}

	numObjects := int(dict.GetInteger("N"))
	first := int(dict.GetInteger("First"))
	if numObjects <= 0 || first <= 0 {
		return nil, structuralErrorf("object stream %d has invalid /N or /First", containerNum)
	}

	decoded, err := DecodeStream(stream)
	if err != nil {
		return nil, err
	}

	return ParseObjectStream(decoded, numObjects, first)
}

// decryptObject applies the installed decryptor to every string and
// stream reachable from obj, recursing through containers.
func (r *Reader) decryptObject(obj PdfObject, objNum, gen int) error {
	if r.decryptor == nil {
		return nil
	}
	// The encryption dictionary itself is exempt.
	if r.encryptRef != nil && r.encryptRef.Number == objNum {
		return nil
	}
	return r.decryptWalk(obj, objNum, gen)
}

func (r *Reader) decryptWalk(obj PdfObject, objNum, gen int) error {
	switch o := obj.(type) {
	case *String:
		decrypted, err := r.decryptor.DecryptString([]byte(o.Value()), objNum, gen)
		if err != nil {
			return err
		}
		o.SetValue(string(decrypted))

	case *HexString:
		decrypted, err := r.decryptor.DecryptString([]byte(o.Value()), objNum, gen)
		if err != nil {
			return err
		}
		o.SetValue(string(decrypted))

	case *Array:
		for i := 0; i < o.Len(); i++ {
			if err := r.decryptWalk(o.Get(i), objNum, gen); err != nil {
				return err
			}
		}

	case *Dictionary:
		for _, key := range o.Keys() {
			if err := r.decryptWalk(o.Get(key), objNum, gen); err != nil {
				return err
			}
		}

	case *Stream:
		// XRef streams are never encrypted; their dictionaries double as
		// trailers and must stay readable before any key exists.
		if typeName := o.Dictionary().GetName("Type"); typeName != nil && typeName.Value() == "XRef" {
			return nil
		}
		if err := r.decryptWalk(o.Dictionary(), objNum, gen); err != nil {
			return err
		}
		decrypted, err := r.decryptor.DecryptStream(o.Content(), objNum, gen)
		if err != nil {
			return err
		}
		o.SetContent(decrypted)
	}
	return nil
}

// SetDecryptor installs the decryptor used for subsequently loaded
// objects and clears the caches so nothing loaded before the key was
// available stays in its encrypted form.
func (r *Reader) SetDecryptor(d Decryptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decryptor = d
	r.objectCache = make(map[int]PdfObject)
	r.objStmCache = make(map[int]map[int]PdfObject)
}

// Resolve dereferences obj if it is an indirect reference, following
// reference-to-reference chains with cycle detection. Non-reference
// objects are returned unchanged. A reference to an absent or free
// object resolves to Null.
func (r *Reader) Resolve(obj PdfObject) (PdfObject, error) {
	visited := make(map[IndirectReference]bool)

	for depth := 0; depth < maxResolveDepth; depth++ {
		ref, ok := obj.(*IndirectReference)
		if !ok {
			return obj, nil
		}
		if visited[*ref] {
			return nil, structuralErrorf("reference cycle at %s", ref)
		}
		visited[*ref] = true

		target, err := r.GetObject(ref.Number)
		if err != nil {
			return nil, err
		}
		obj = target
	}

	return nil, structuralErrorf("reference chain exceeds depth %d", maxResolveDepth)
}

// ResolveDict resolves obj and asserts it is a dictionary. A stream
// resolves to its dictionary.
func (r *Reader) ResolveDict(obj PdfObject) (*Dictionary, error) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch o := resolved.(type) {
	case *Dictionary:
		return o, nil
	case *Stream:
		return o.Dictionary(), nil
	default:
		return nil, structuralErrorf("expected dictionary, got %T", resolved)
	}
}

// Trailer returns the merged trailer dictionary (newest revision's keys
// win).
func (r *Reader) Trailer() *Dictionary {
	return r.trailer
}

// XRefTable returns the merged cross-reference table.
func (r *Reader) XRefTable() *XRefTable {
	return r.xref
}

// EncryptRef returns the trailer's /Encrypt reference, or nil when the
// document is unencrypted or /Encrypt is a direct dictionary.
func (r *Reader) EncryptRef() *IndirectReference {
	return r.encryptRef
}

// Version returns the header version string, e.g. "1.7".
func (r *Reader) Version() string {
	return r.version
}

// Degraded reports whether the cross-reference table was rebuilt by the
// recovery scan. Degraded documents load, but offsets from damaged
// revisions may be approximate.
func (r *Reader) Degraded() bool {
	return r.xref.Degraded
}

// Data returns the underlying buffer. Callers must treat it as
// read-only; the incremental writer appends after it.
func (r *Reader) Data() []byte {
	return r.data
}

// HeaderOffset returns the byte offset of the %PDF- header within the
// buffer. Non-zero when junk bytes precede the header.
func (r *Reader) HeaderOffset() int64 {
	return r.headerOffset
}

// StartXRef returns the header-relative offset of the newest
// cross-reference section, or 0 when the table was rebuilt by recovery.
func (r *Reader) StartXRef() int64 {
	return r.startXRef
}

// MaxObjectNumber returns the highest object number in the table.
func (r *Reader) MaxObjectNumber() int {
	return r.xref.MaxObjectNumber()
}

// UsesXRefStream reports whether the newest revision stores its
// cross-reference data in a stream rather than a classic table. The
// incremental writer matches this style when appending.
func (r *Reader) UsesXRefStream() bool {
	typeName := r.trailer.GetName("Type")
	return typeName != nil && typeName.Value() == "XRef"
}

// IsEncrypted reports whether the trailer carries an /Encrypt entry.
func (r *Reader) IsEncrypted() bool {
	return r.encryptRef != nil || r.trailer.Has("Encrypt")
}

// EncryptionDict loads the encryption dictionary, which is exempt from
// decryption. Returns nil when the document is unencrypted.
func (r *Reader) EncryptionDict() (*Dictionary, error) {
	if !r.IsEncrypted() {
		return nil, nil
	}

	encObj := r.trailer.Get("Encrypt")
	if r.encryptRef != nil {
		obj, err := r.GetObject(r.encryptRef.Number)
		if err != nil {
			return nil, err
		}
		encObj = obj
	}

	dict, ok := encObj.(*Dictionary)
	if !ok {
		return nil, structuralErrorf("encryption dictionary is %T", encObj)
	}
	return dict, nil
}

// FirstID returns the first element of the trailer /ID array, used as
// key material by the security handler. Nil when absent.
func (r *Reader) FirstID() []byte {
	idArray := r.trailer.GetArray("ID")
	if idArray == nil || idArray.Len() < 1 {
		return nil
	}
	switch id := idArray.Get(0).(type) {
	case *String:
		return []byte(id.Value())
	case *HexString:
		return []byte(id.Value())
	}
	return nil
}
