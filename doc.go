// Package pdfcore reads and writes the structural layer of PDF files:
// lexing and parsing of the object syntax, stream filter decoding,
// cross-reference resolution across incremental revisions, standard
// security handler decryption, and append-only incremental saving.
//
// Opening a document parses only its structural skeleton; objects load
// lazily on first dereference and are cached:
//
//	doc, err := pdfcore.Open(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	catalog, err := doc.Catalog()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pages, err := doc.Resolve(catalog.Get("Pages"))
//
// Mutation goes through Allocate, Put, MarkDirty and Free, and is
// committed by SaveIncremental, which appends a revision after the
// original bytes without touching them:
//
//	ref := doc.Allocate()
//	doc.Put(ref, pdfcore.NewString("annotation"))
//	out, err := doc.SaveIncremental()
//
// Damaged documents whose cross-reference data cannot be followed are
// rebuilt by scanning for object headers; Degraded reports when that
// happened. Debug output is off by default and enabled through the
// logging package.
package pdfcore
