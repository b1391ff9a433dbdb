package pdfcore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/coregx/pdfcore/internal/crypt"
	"github.com/coregx/pdfcore/internal/parser"
	"github.com/coregx/pdfcore/internal/writer"
	"github.com/coregx/pdfcore/logging"
)

// ErrInvalidPassword is returned by Open and OpenWithPassword when an
// encrypted document rejects the supplied (or empty) password.
var ErrInvalidPassword = errors.New("invalid password")

// Document is an opened PDF: a lazy, cached object graph over an
// in-memory buffer, plus a dirty set feeding the incremental writer.
//
// A Document is constructed once from a byte buffer. Mutations mark
// objects dirty without altering the original bytes; SaveIncremental
// appends a new revision after them, SaveCompacted rewrites the
// document from scratch. After a save the returned buffer should be
// opened as a fresh Document; the old instance holds the pre-save
// state.
//
// Read-only resolution is safe for concurrent use. Mutation (Allocate,
// Put, Free, saves) requires external synchronization with readers.
//
// Example:
//
//	doc, err := pdfcore.Open(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	catalog, _ := doc.Catalog()
//	pages, _ := doc.Resolve(catalog.Get("Pages"))
type Document struct {
	reader  *parser.Reader
	handler *crypt.StandardHandler

	mu      sync.Mutex
	dirty   map[int]*dirtyObject
	nextNum int
}

// dirtyObject is a pending change for the next incremental save.
type dirtyObject struct {
	generation int
	object     PdfObject
	free       bool
}

// Open parses a PDF from a byte buffer. Encrypted documents are tried
// with the empty password, which unlocks most encrypted files in the
// wild; ErrInvalidPassword means a real password is required.
func Open(data []byte) (*Document, error) {
	return OpenWithPassword(data, "")
}

// OpenWithPassword parses a PDF, authenticating against the standard
// security handler with the given password when the document is
// encrypted. The password is tried as the user password first, then as
// the owner password.
func OpenWithPassword(data []byte, password string) (*Document, error) {
	reader, err := parser.Open(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}

	doc := &Document{
		reader:  reader,
		dirty:   make(map[int]*dirtyObject),
		nextNum: reader.MaxObjectNumber() + 1,
	}

	if reader.IsEncrypted() {
		if err := doc.unlock(password); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// unlock builds the security handler from the encryption dictionary,
// authenticates, and installs the decryptor on the reader.
func (d *Document) unlock(password string) error {
	encDict, err := d.reader.EncryptionDict()
	if err != nil {
		return fmt.Errorf("failed to load encryption dictionary: %w", err)
	}

	params, err := cryptParams(encDict, d.reader.FirstID())
	if err != nil {
		return err
	}

	handler, err := crypt.NewStandardHandler(params)
	if err != nil {
		return err
	}

	result, err := handler.Authenticate(password)
	if err != nil {
		return err
	}
	if result == crypt.AuthFailed {
		return ErrInvalidPassword
	}

	logging.Logger().Debug("document unlocked",
		"revision", params.R, "role", result.String())

	d.handler = handler
	d.reader.SetDecryptor(handler)
	return nil
}

// cryptParams extracts the security handler parameters from the
// encryption dictionary and trailer /ID.
func cryptParams(encDict *parser.Dictionary, id []byte) (crypt.Params, error) {
	params := crypt.Params{
		Filter:          "Standard",
		V:               int(encDict.GetInteger("V")),
		R:               int(encDict.GetInteger("R")),
		Length:          int(encDict.GetInteger("Length")),
		O:               []byte(encDict.GetString("O")),
		U:               []byte(encDict.GetString("U")),
		OE:              []byte(encDict.GetString("OE")),
		UE:              []byte(encDict.GetString("UE")),
		Perms:           []byte(encDict.GetString("Perms")),
		P:               encDict.GetInteger("P"),
		EncryptMetadata: encDict.GetBoolean("EncryptMetadata", true),
		ID:              id,
	}

	if filter := encDict.GetName("Filter"); filter != nil {
		params.Filter = filter.Value()
	}

	// V4/V5 dictionaries name crypt filters; /StmF and /StrF select
	// which one applies to streams and strings, defaulting to Identity.
	if params.V >= 4 {
		cf := encDict.GetDictionary("CF")
		params.StmCFM = cryptFilterMethod(cf, encDict.GetName("StmF"))
		params.StrCFM = cryptFilterMethod(cf, encDict.GetName("StrF"))
	}

	return params, nil
}

// cryptFilterMethod resolves a /StmF or /StrF selector against the /CF
// dictionary. An absent selector means Identity.
func cryptFilterMethod(cf *parser.Dictionary, selector *parser.Name) string {
	if selector == nil || selector.Value() == "Identity" {
		return crypt.CFMNone
	}
	if cf == nil {
		return ""
	}
	filter := cf.GetDictionary(selector.Value())
	if filter == nil {
		return ""
	}
	if cfm := filter.GetName("CFM"); cfm != nil {
		return cfm.Value()
	}
	return ""
}

// Resolve dereferences obj if it is an indirect reference, following
// chains of references with cycle detection. Non-reference objects are
// returned unchanged; references to free or absent objects resolve to
// Null. Dirty objects shadow their committed versions.
func (d *Document) Resolve(obj PdfObject) (PdfObject, error) {
	if ref, ok := obj.(*IndirectReference); ok {
		d.mu.Lock()
		pending, isDirty := d.dirty[ref.Number]
		d.mu.Unlock()
		if isDirty {
			if pending.free {
				return parser.NewNull(), nil
			}
			return pending.object, nil
		}
	}
	return d.reader.Resolve(obj)
}

// GetObject loads the object with the given number.
func (d *Document) GetObject(num int) (PdfObject, error) {
	return d.Resolve(parser.NewIndirectReference(num, 0))
}

// Catalog resolves the document catalog (the trailer's /Root).
func (d *Document) Catalog() (*Dictionary, error) {
	root := d.reader.Trailer().Get("Root")
	if root == nil {
		return nil, fmt.Errorf("trailer has no /Root entry")
	}
	return d.reader.ResolveDict(root)
}

// Info resolves the document information dictionary, or nil when the
// trailer has no /Info.
func (d *Document) Info() (*Dictionary, error) {
	info := d.reader.Trailer().Get("Info")
	if info == nil {
		return nil, nil
	}
	return d.reader.ResolveDict(info)
}

// Trailer returns the merged trailer dictionary.
func (d *Document) Trailer() *Dictionary {
	return d.reader.Trailer()
}

// Version returns the header version string, e.g. "1.7".
func (d *Document) Version() string {
	return d.reader.Version()
}

// Degraded reports whether the cross-reference data had to be rebuilt
// by scanning the whole buffer. Degraded documents are readable but
// cannot be saved incrementally; use SaveCompacted.
func (d *Document) Degraded() bool {
	return d.reader.Degraded()
}

// IsEncrypted reports whether the document carries an /Encrypt entry.
func (d *Document) IsEncrypted() bool {
	return d.reader.IsEncrypted()
}

// Permissions returns the /P permission flags of an encrypted document,
// or 0 for an unencrypted one.
func (d *Document) Permissions() int64 {
	if d.handler == nil {
		return 0
	}
	return d.handler.Permissions()
}

// Allocate reserves a fresh object number and returns a reference to
// it. The object has no value until Put is called.
func (d *Document) Allocate() *IndirectReference {
	d.mu.Lock()
	defer d.mu.Unlock()

	ref := parser.NewIndirectReference(d.nextNum, 0)
	d.nextNum++
	d.dirty[ref.Number] = &dirtyObject{object: parser.NewNull()}
	return ref
}

// Put records obj as the value of ref for the next save, shadowing any
// committed version immediately for Resolve.
func (d *Document) Put(ref *IndirectReference, obj PdfObject) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dirty[ref.Number] = &dirtyObject{
		generation: ref.Generation,
		object:     obj,
	}
	if ref.Number >= d.nextNum {
		d.nextNum = ref.Number + 1
	}
}

// MarkDirty records the committed object behind ref as dirty, so in-
// place mutations of a resolved dictionary or stream are written out by
// the next save.
func (d *Document) MarkDirty(ref *IndirectReference) error {
	obj, err := d.reader.GetObject(ref.Number)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.dirty[ref.Number]; !exists {
		d.dirty[ref.Number] = &dirtyObject{
			generation: ref.Generation,
			object:     obj,
		}
	}
	return nil
}

// Free marks ref's object number as deleted in the next revision.
func (d *Document) Free(ref *IndirectReference) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dirty[ref.Number] = &dirtyObject{
		generation: ref.Generation,
		free:       true,
	}
}

// DirtyCount returns the number of pending object changes.
func (d *Document) DirtyCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dirty)
}

// SaveIncremental appends the dirty set as a new revision and returns
// the complete new buffer. The original bytes are preserved unchanged
// at their original offsets.
//
// Encrypted documents are re-encrypted with the existing file key, so
// the output opens with the same passwords. Degraded documents cannot
// be saved incrementally because the previous revision's trailer
// position is unreliable.
func (d *Document) SaveIncremental() ([]byte, error) {
	if d.Degraded() {
		return nil, fmt.Errorf("cannot append to a document with recovered cross-reference data; use SaveCompacted")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.dirty) == 0 {
		return nil, fmt.Errorf("no changes to save")
	}

	updates := make([]*writer.Update, 0, len(d.dirty))
	for num, pending := range d.dirty {
		update := &writer.Update{
			Number:     num,
			Generation: pending.generation,
			Object:     pending.object,
			Free:       pending.free,
		}
		if !pending.free && d.handler != nil {
			encrypted, err := d.encryptObject(pending.object, num, pending.generation)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt object %d: %w", num, err)
			}
			update.Object = encrypted
		}
		updates = append(updates, update)
	}

	rev := &writer.Revision{
		Original:        d.reader.Data(),
		HeaderOffset:    d.reader.HeaderOffset(),
		PrevStartXRef:   d.reader.StartXRef(),
		PrevTrailer:     d.reader.Trailer(),
		UseXRefStream:   d.reader.UsesXRefStream(),
		MaxObjectNumber: d.maxObjectNumber(),
	}

	return writer.AppendRevision(rev, updates)
}

// maxObjectNumber returns the highest object number across the
// committed table and the dirty set. Callers hold d.mu.
func (d *Document) maxObjectNumber() int {
	max := d.reader.MaxObjectNumber()
	if d.nextNum-1 > max {
		max = d.nextNum - 1
	}
	return max
}

// SaveCompacted flattens the whole revision chain into a fresh
// single-revision buffer: dense renumbering from 1, free entries and
// unreachable objects dropped, history discarded. Pending dirty objects
// are not included; save them incrementally first if they must survive.
//
// An encrypted source produces decrypted output.
func (d *Document) SaveCompacted() ([]byte, error) {
	d.mu.Lock()
	pending := len(d.dirty)
	d.mu.Unlock()
	if pending > 0 {
		return nil, fmt.Errorf("compaction with %d unsaved changes; call SaveIncremental first", pending)
	}

	return writer.Compact(d.reader)
}

// encryptObject deep-copies obj with strings and stream content
// encrypted for storage, leaving the in-memory object untouched.
func (d *Document) encryptObject(obj PdfObject, num, gen int) (PdfObject, error) {
	switch o := obj.(type) {
	case *parser.String:
		encrypted, err := d.handler.EncryptString([]byte(o.Value()), num, gen)
		if err != nil {
			return nil, err
		}
		return parser.NewString(string(encrypted)), nil

	case *parser.HexString:
		encrypted, err := d.handler.EncryptString([]byte(o.Value()), num, gen)
		if err != nil {
			return nil, err
		}
		return parser.NewHexString(string(encrypted)), nil

	case *parser.Array:
		out := parser.NewArray()
		for i := 0; i < o.Len(); i++ {
			elem, err := d.encryptObject(o.Get(i), num, gen)
			if err != nil {
				return nil, err
			}
			out.Append(elem)
		}
		return out, nil

	case *parser.Dictionary:
		out := parser.NewDictionary()
		for _, key := range o.Keys() {
			value, err := d.encryptObject(o.Get(key), num, gen)
			if err != nil {
				return nil, err
			}
			out.Set(key, value)
		}
		return out, nil

	case *parser.Stream:
		dict, err := d.encryptObject(o.Dictionary(), num, gen)
		if err != nil {
			return nil, err
		}
		encrypted, err := d.handler.EncryptStream(o.Content(), num, gen)
		if err != nil {
			return nil, err
		}
		return parser.NewStream(dict.(*parser.Dictionary), encrypted), nil

	default:
		return obj, nil
	}
}
