package pdfcore

import (
	"github.com/davecgh/go-spew/spew"
)

// dumpConfig keeps debug dumps deterministic and free of pointer noise.
var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump renders an object's full in-memory structure for debugging,
// including unexported fields the String forms do not show.
func Dump(obj PdfObject) string {
	return dumpConfig.Sdump(obj)
}
