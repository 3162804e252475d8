package parser

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize filters noise out of every page and concatenates the pages, in
// order, into one document text. Each page is terminated by a newline.
//
// Text is converted to NFC so that anchors such as "Operação" still match
// when a PDF font emits the accent as a combining mark.
func Normalize(pages []string) string {
	var b strings.Builder
	for _, page := range pages {
		b.WriteString(norm.NFC.String(RemoveNoise(page)))
		b.WriteString("\n")
	}
	return b.String()
}
