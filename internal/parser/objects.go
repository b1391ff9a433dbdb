package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// PdfObject is the closed sum of all PDF object variants: Null, Boolean,
// Integer, Real, String, HexString, Name, Array, Dictionary, Stream, and
// IndirectReference.
//
// Values are accessed through typed accessors that fail explicitly on a
// variant mismatch; there is no implicit coercion between variants.
//
// Reference: PDF 1.7 specification, Section 7.3 (Objects).
type PdfObject interface {
	// String returns the object in PDF serialization form, usable for
	// debugging and for writing simple (non-stream) objects.
	String() string

	pdfObject() // closed sum marker
}

// ============================================================================
// Null
// ============================================================================

// Null represents the PDF null object.
type Null struct{}

// NewNull creates a null object.
func NewNull() *Null { return &Null{} }

func (n *Null) String() string { return "null" }
func (n *Null) pdfObject()     {}

// ============================================================================
// Boolean
// ============================================================================

// Boolean represents the PDF keywords true and false.
type Boolean struct {
	value bool
}

// NewBoolean creates a boolean object.
func NewBoolean(value bool) *Boolean { return &Boolean{value: value} }

// Value returns the boolean value.
func (b *Boolean) Value() bool { return b.value }

func (b *Boolean) String() string {
	if b.value {
		return "true"
	}
	return "false"
}
func (b *Boolean) pdfObject() {}

// ============================================================================
// Integer
// ============================================================================

// Integer represents a PDF integer number.
type Integer struct {
	value int64
}

// NewInteger creates an integer object.
func NewInteger(value int64) *Integer { return &Integer{value: value} }

// Value returns the integer value.
func (i *Integer) Value() int64 { return i.value }

func (i *Integer) String() string { return strconv.FormatInt(i.value, 10) }
func (i *Integer) pdfObject()     {}

// ============================================================================
// Real
// ============================================================================

// Real represents a PDF real number.
type Real struct {
	value float64
}

// NewReal creates a real number object.
func NewReal(value float64) *Real { return &Real{value: value} }

// Value returns the floating-point value.
func (r *Real) Value() float64 { return r.value }

func (r *Real) String() string {
	s := strconv.FormatFloat(r.value, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
func (r *Real) pdfObject() {}

// ============================================================================
// String (literal)
// ============================================================================

// String represents a literal string. The value holds decoded bytes; the
// original escape syntax is not preserved.
type String struct {
	value string
}

// NewString creates a literal string object.
func NewString(value string) *String { return &String{value: value} }

// Value returns the decoded string bytes.
func (s *String) Value() string { return s.value }

// SetValue replaces the decoded string bytes.
func (s *String) SetValue(value string) { s.value = value }

func (s *String) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i := 0; i < len(s.value); i++ {
		b := s.value[i]
		switch b {
		case '(', ')', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(b)
		case '\r':
			sb.WriteString(`\r`)
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteByte(b)
		}
	}
	sb.WriteByte(')')
	return sb.String()
}
func (s *String) pdfObject() {}

// ============================================================================
// HexString
// ============================================================================

// HexString represents a hexadecimal string. The value holds decoded
// bytes; serialization re-encodes to hex.
type HexString struct {
	value string
}

// NewHexString creates a hex string object from decoded bytes.
func NewHexString(value string) *HexString { return &HexString{value: value} }

// Value returns the decoded string bytes.
func (h *HexString) Value() string { return h.value }

// SetValue replaces the decoded string bytes.
func (h *HexString) SetValue(value string) { h.value = value }

func (h *HexString) String() string {
	var sb strings.Builder
	sb.WriteByte('<')
	for i := 0; i < len(h.value); i++ {
		fmt.Fprintf(&sb, "%02X", h.value[i])
	}
	sb.WriteByte('>')
	return sb.String()
}
func (h *HexString) pdfObject() {}

// ============================================================================
// Name
// ============================================================================

// Name represents a PDF name object (e.g. /Type).
type Name struct {
	value string
}

// NewName creates a name object. The value is the decoded name without
// the leading slash.
func NewName(value string) *Name { return &Name{value: value} }

// Value returns the decoded name.
func (n *Name) Value() string { return n.value }

func (n *Name) String() string {
	var sb strings.Builder
	sb.WriteByte('/')
	for i := 0; i < len(n.value); i++ {
		b := n.value[i]
		if isRegular(b) && b != '#' && b > 0x20 && b < 0x7F {
			sb.WriteByte(b)
		} else {
			fmt.Fprintf(&sb, "#%02X", b)
		}
	}
	return sb.String()
}
func (n *Name) pdfObject() {}

// ============================================================================
// Array
// ============================================================================

// Array represents an ordered sequence of PDF objects.
type Array struct {
	elements []PdfObject
}

// NewArray creates an empty array.
func NewArray() *Array { return &Array{} }

// Append adds an element to the end of the array.
func (a *Array) Append(obj PdfObject) {
	a.elements = append(a.elements, obj)
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.elements) }

// Get returns the element at index i, or nil if out of range.
func (a *Array) Get(i int) PdfObject {
	if i < 0 || i >= len(a.elements) {
		return nil
	}
	return a.elements[i]
}

// Set replaces the element at index i.
func (a *Array) Set(i int, obj PdfObject) error {
	if i < 0 || i >= len(a.elements) {
		return fmt.Errorf("array index %d out of range (len %d)", i, len(a.elements))
	}
	a.elements[i] = obj
	return nil
}

// GetInteger returns the element at index i as an int64, or 0 if it is
// not an Integer.
func (a *Array) GetInteger(i int) int64 {
	if obj, ok := a.Get(i).(*Integer); ok {
		return obj.Value()
	}
	return 0
}

// GetName returns the element at index i as a *Name, or nil.
func (a *Array) GetName(i int) *Name {
	if obj, ok := a.Get(i).(*Name); ok {
		return obj
	}
	return nil
}

func (a *Array) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range a.elements {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if e == nil {
			sb.WriteString("null")
		} else {
			sb.WriteString(e.String())
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
func (a *Array) pdfObject() {}

// ============================================================================
// Dictionary
// ============================================================================

// Dictionary represents a mapping from names to PDF objects.
//
// Insertion order is irrelevant for lookup but preserved for
// re-serialization, so a rewritten document keeps its keys in the order
// the producer emitted them.
//
// Reference: PDF 1.7 specification, Section 7.3.7 (Dictionary Objects).
type Dictionary struct {
	keys   []string
	values map[string]PdfObject
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{values: make(map[string]PdfObject)}
}

// Set stores a value under the given key (without leading slash),
// preserving first-insertion order.
func (d *Dictionary) Set(key string, value PdfObject) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value for key, or nil if absent.
func (d *Dictionary) Get(key string) PdfObject {
	return d.values[key]
}

// Has reports whether the key is present.
func (d *Dictionary) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Delete removes a key if present.
func (d *Dictionary) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (d *Dictionary) Keys() []string {
	return d.keys
}

// Len returns the number of entries.
func (d *Dictionary) Len() int { return len(d.keys) }

// GetName returns the value for key as a *Name, or nil if absent or of a
// different variant.
func (d *Dictionary) GetName(key string) *Name {
	if obj, ok := d.values[key].(*Name); ok {
		return obj
	}
	return nil
}

// GetInteger returns the value for key as an int64, or 0 if absent or of
// a different variant.
func (d *Dictionary) GetInteger(key string) int64 {
	if obj, ok := d.values[key].(*Integer); ok {
		return obj.Value()
	}
	return 0
}

// GetString returns the decoded bytes of a literal or hex string value,
// or "" if absent or of a different variant.
func (d *Dictionary) GetString(key string) string {
	switch obj := d.values[key].(type) {
	case *String:
		return obj.Value()
	case *HexString:
		return obj.Value()
	}
	return ""
}

// GetDictionary returns the value for key as a *Dictionary, or nil.
func (d *Dictionary) GetDictionary(key string) *Dictionary {
	if obj, ok := d.values[key].(*Dictionary); ok {
		return obj
	}
	return nil
}

// GetArray returns the value for key as an *Array, or nil.
func (d *Dictionary) GetArray(key string) *Array {
	if obj, ok := d.values[key].(*Array); ok {
		return obj
	}
	return nil
}

// GetBoolean returns the value for key as a bool, with def as the
// fallback when absent or of a different variant.
func (d *Dictionary) GetBoolean(key string, def bool) bool {
	if obj, ok := d.values[key].(*Boolean); ok {
		return obj.Value()
	}
	return def
}

func (d *Dictionary) String() string {
	var sb strings.Builder
	sb.WriteString("<<")
	for _, k := range d.keys {
		sb.WriteByte(' ')
		sb.WriteString(NewName(k).String())
		sb.WriteByte(' ')
		v := d.values[k]
		if v == nil {
			sb.WriteString("null")
		} else {
			sb.WriteString(v.String())
		}
	}
	sb.WriteString(" >>")
	return sb.String()
}
func (d *Dictionary) pdfObject() {}

// ============================================================================
// Stream
// ============================================================================

// Stream represents a stream object: a dictionary plus raw encoded bytes.
//
// Decoded content is produced lazily through the filter pipeline and
// cached. If decoding fails because of an unrecognized or corrupt filter,
// the stream keeps its encoded form and DecodeFailed is set instead of the
// content being dropped.
type Stream struct {
	dict    *Dictionary
	content []byte // raw encoded bytes as stored in the file

	decoded    []byte // lazily populated decoded bytes
	hasDecoded bool

	// DecodeFailed marks a stream whose filter chain could not be
	// applied. The encoded content remains available.
	DecodeFailed bool
}

// NewStream creates a stream from a dictionary and raw encoded content.
// A nil dictionary is replaced with an empty one.
func NewStream(dict *Dictionary, content []byte) *Stream {
	if dict == nil {
		dict = NewDictionary()
	}
	return &Stream{dict: dict, content: content}
}

// Dictionary returns the stream dictionary.
func (s *Stream) Dictionary() *Dictionary { return s.dict }

// Content returns the raw encoded stream bytes.
func (s *Stream) Content() []byte { return s.content }

// SetContent replaces the raw encoded bytes and invalidates any cached
// decoded form.
func (s *Stream) SetContent(content []byte) {
	s.content = content
	s.decoded = nil
	s.hasDecoded = false
	s.DecodeFailed = false
	s.dict.Set("Length", NewInteger(int64(len(content))))
}

// Decoded returns the cached decoded bytes and whether they are present.
func (s *Stream) Decoded() ([]byte, bool) {
	return s.decoded, s.hasDecoded
}

// SetDecoded caches decoded bytes produced by the filter pipeline.
func (s *Stream) SetDecoded(data []byte) {
	s.decoded = data
	s.hasDecoded = true
	s.DecodeFailed = false
}

func (s *Stream) String() string {
	return fmt.Sprintf("Stream{dict: %s, length: %d}", s.dict, len(s.content))
}
func (s *Stream) pdfObject() {}

// ============================================================================
// IndirectReference
// ============================================================================

// IndirectReference is a pointer to another object, identified by object
// number and generation (the "N G R" syntax).
type IndirectReference struct {
	Number     int
	Generation int
}

// NewIndirectReference creates an indirect reference.
func NewIndirectReference(number, generation int) *IndirectReference {
	return &IndirectReference{Number: number, Generation: generation}
}

func (r *IndirectReference) String() string {
	return fmt.Sprintf("%d %d R", r.Number, r.Generation)
}
func (r *IndirectReference) pdfObject() {}

// ============================================================================
// IndirectObject
// ============================================================================

// IndirectObject is a top-level "N G obj ... endobj" wrapper. It is not
// itself a PdfObject variant; it carries the object number, generation,
// and the wrapped value.
type IndirectObject struct {
	Number     int
	Generation int
	Object     PdfObject
}

// NewIndirectObject creates an indirect object wrapper.
func NewIndirectObject(number, generation int, obj PdfObject) *IndirectObject {
	return &IndirectObject{Number: number, Generation: generation, Object: obj}
}

func (o *IndirectObject) String() string {
	return fmt.Sprintf("%d %d obj %v", o.Number, o.Generation, o.Object)
}
