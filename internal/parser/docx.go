package parser

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var (
	paragraphEnd = regexp.MustCompile(`</w:p>`)
	lineBreak    = regexp.MustCompile(`<w:(br|cr)[^>]*/>`)
	tab          = regexp.MustCompile(`<w:tab[^>]*/>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
)

// parseDOCX reads the body XML of the document and keeps paragraph breaks.
func parseDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = paragraphEnd.ReplaceAllString(content, "\n\n")
	content = lineBreak.ReplaceAllString(content, "\n")
	content = tab.ReplaceAllString(content, "\t")
	content = xmlTag.ReplaceAllString(content, "")
	return strings.TrimSpace(html.UnescapeString(content)), nil
}
