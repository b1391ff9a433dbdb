package parser

import (
	"strconv"

	"github.com/coregx/pdfcore/logging"
)

// maxRecoveryTokens caps the brute-force scan so a pathological buffer
// cannot spin forever.
const maxRecoveryTokens = 10_000_000

// RecoverXRef rebuilds a cross-reference table by scanning the whole
// buffer for "N G obj" headers, used when the xref machinery is missing
// or too damaged to follow.
//
// The scan walks the byte stream token by token, remembering the last
// two integers seen; an "obj" keyword following them records an in-use
// entry at the first integer's offset. When the same object number
// appears more than once the later occurrence wins, matching the
// incremental-update rule that later revisions shadow earlier ones.
// Trailer dictionaries encountered along the way are merged so /Root and
// /Info can still be located. The resulting table is marked Degraded.
func RecoverXRef(data []byte) (*XRefTable, error) {
	table := NewXRefTable()
	table.Degraded = true

	lexer := NewLexer(data)
	trailer := NewDictionary()

	// prev1 is the most recent integer token, prev2 the one before it.
	var prev1, prev2 Token
	var prev1Valid, prev2Valid bool

	for i := 0; i < maxRecoveryTokens; i++ {
		tok, err := lexer.NextToken()
		if err != nil {
			// Binary garbage between objects is expected here; skip the
			// offending byte and keep scanning.
			prev1Valid, prev2Valid = false, false
			continue
		}
		if tok.Type == TokenEOF {
			break
		}

		switch {
		case tok.Type == TokenInteger:
			prev2, prev2Valid = prev1, prev1Valid
			prev1, prev1Valid = tok, true
			continue

		case tok.Type == TokenKeyword && tok.Value == KeywordObj && prev1Valid && prev2Valid:
			objNum, err1 := strconv.Atoi(prev2.Value)
			gen, err2 := strconv.Atoi(prev1.Value)
			if err1 == nil && err2 == nil && objNum > 0 && gen >= 0 {
				table.AddEntry(NewXRefEntry(objNum, XRefEntryInUse, int64(prev2.Offset), gen))
				// Parse past the object body so integers inside it (or
				// inside stream data) are not mistaken for the next
				// header.
				sub := NewParserAt(data, prev2.Offset)
				if _, perr := sub.ParseIndirectObject(); perr == nil {
					if serr := lexer.Seek(sub.Position()); serr != nil {
						break
					}
				} else {
					logging.Logger().Debug("recovery: unparseable object body",
						"object", objNum, "offset", prev2.Offset, "error", perr)
				}
			}

		case tok.Type == TokenKeyword && tok.Value == KeywordTrailer:
			// Keep trailer keys from every revision; later revisions win.
			sub := NewParserAt(data, tok.Offset+len(KeywordTrailer))
			if dict, perr := sub.parseDictionary(); perr == nil {
				for _, key := range dict.Keys() {
					trailer.Set(key, dict.Get(key))
				}
				if serr := lexer.Seek(sub.Position()); serr != nil {
					break
				}
			}
		}

		prev1Valid, prev2Valid = false, false
	}

	if table.Size() == 0 {
		return nil, structuralErrorf("recovery scan found no objects")
	}

	// A buffer torn off before its trailer still needs a /Root: fall back
	// to the first recovered /Type /Catalog object.
	if trailer.Get("Root") == nil {
		if num, gen, found := findCatalog(data, table); found {
			trailer.Set("Root", NewIndirectReference(num, gen))
			logging.Logger().Debug("recovery: trailer root taken from catalog scan",
				"object", num)
		}
	}

	table.SetTrailer(trailer)
	logging.Logger().Debug("rebuilt xref by recovery scan",
		"objects", table.Size(), "trailer_keys", trailer.Len())
	return table, nil
}

// findCatalog parses recovered in-use objects looking for the document
// catalog, lowest object number first so the choice is deterministic.
func findCatalog(data []byte, table *XRefTable) (int, int, bool) {
	for _, num := range table.SortedObjectNumbers() {
		entry, _ := table.GetEntry(num)
		if entry.Type != XRefEntryInUse {
			continue
		}

		obj, err := NewParserAt(data, int(entry.Offset)).ParseIndirectObject()
		if err != nil {
			continue
		}
		dict, ok := obj.Object.(*Dictionary)
		if !ok {
			continue
		}
		if typ := dict.GetName("Type"); typ != nil && typ.Value() == "Catalog" {
			return num, entry.Generation, true
		}
	}
	return 0, 0, false
}
