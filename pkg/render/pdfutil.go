package render

import (
	"bytes"
	"regexp"
)

var pdfPagePattern = regexp.MustCompile(`/Type\s*/Page[^s]`)

// IsPDF reports whether data starts with the PDF magic bytes.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// CountPages estimates the number of pages in a PDF by counting page object
// markers. Good enough for uncompressed object streams such as Chromium's
// PDF export; returns 0 when no markers are found.
func CountPages(data []byte) int {
	// The trailing [^s] excludes /Type /Pages tree nodes, so pad the tail
	// in case a page object ends the buffer.
	padded := make([]byte, len(data)+1)
	copy(padded, data)
	padded[len(data)] = ' '
	return len(pdfPagePattern.FindAll(padded, -1))
}
