package pdfcore

import (
	"github.com/coregx/pdfcore/internal/parser"
)

// Object model aliases. Collaborating packages (page tree walkers,
// extraction, merge tools) work entirely in these types and never
// import the internal parser.

// PdfObject is the discriminated union of all PDF object variants.
type PdfObject = parser.PdfObject

// Null is the null object.
type Null = parser.Null

// Boolean is true or false.
type Boolean = parser.Boolean

// Integer is a whole number.
type Integer = parser.Integer

// Real is a floating-point number.
type Real = parser.Real

// String is a literal string; its value holds decoded bytes.
type String = parser.String

// HexString is a hexadecimal string; its value holds decoded bytes.
type HexString = parser.HexString

// Name is a name object, stored without the leading slash.
type Name = parser.Name

// Array is an ordered sequence of objects.
type Array = parser.Array

// Dictionary maps names to objects, preserving insertion order for
// re-serialization.
type Dictionary = parser.Dictionary

// Stream is a dictionary plus raw encoded bytes, with lazily decoded
// content.
type Stream = parser.Stream

// IndirectReference points at an object by number and generation.
type IndirectReference = parser.IndirectReference

// Constructors, re-exported so collaborators can build objects.
var (
	NewNull              = parser.NewNull
	NewBoolean           = parser.NewBoolean
	NewInteger           = parser.NewInteger
	NewReal              = parser.NewReal
	NewString            = parser.NewString
	NewHexString         = parser.NewHexString
	NewName              = parser.NewName
	NewArray             = parser.NewArray
	NewDictionary        = parser.NewDictionary
	NewStream            = parser.NewStream
	NewIndirectReference = parser.NewIndirectReference
)

// Error types surfaced by Open and Resolve.

// SyntaxError reports malformed bytes at a specific offset.
type SyntaxError = parser.SyntaxError

// StructuralError reports a well-tokenized but structurally invalid
// document: broken cross-reference chains, reference cycles, type
// mismatches.
type StructuralError = parser.StructuralError

// DecodeStream returns a stream's decoded content, applying its filter
// chain and caching the result on the stream.
func DecodeStream(s *Stream) ([]byte, error) {
	return parser.DecodeStream(s)
}
