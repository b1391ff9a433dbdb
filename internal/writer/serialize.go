// Package writer implements PDF writing: object serialization,
// append-only incremental revisions, and full compaction.
package writer

import (
	"bytes"
	"fmt"

	"github.com/coregx/pdfcore/internal/parser"
)

// writeObject serializes obj in file syntax. Scalars and containers
// serialize through their String form; streams need the keyword
// framing around their raw content.
func writeObject(buf *bytes.Buffer, obj parser.PdfObject) {
	if stream, ok := obj.(*parser.Stream); ok {
		writeStream(buf, stream)
		return
	}
	if obj == nil {
		buf.WriteString("null")
		return
	}
	buf.WriteString(obj.String())
}

// writeStream serializes a stream: dictionary, the stream keyword, the
// raw encoded content, and the endstream keyword. /Length is forced to
// the actual content size so a declared length can never disagree with
// the bytes that follow.
func writeStream(buf *bytes.Buffer, stream *parser.Stream) {
	content := stream.Content()
	stream.Dictionary().Set("Length", parser.NewInteger(int64(len(content))))

	buf.WriteString(stream.Dictionary().String())
	buf.WriteString("\nstream\n")
	buf.Write(content)
	buf.WriteString("\nendstream")
}

// writeIndirectObject serializes a complete "N G obj ... endobj" record
// followed by a newline.
func writeIndirectObject(buf *bytes.Buffer, num, gen int, obj parser.PdfObject) {
	fmt.Fprintf(buf, "%d %d obj\n", num, gen)
	writeObject(buf, obj)
	buf.WriteString("\nendobj\n")
}
