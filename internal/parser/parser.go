// Package parser extracts plain text from uploaded knowledge files.
package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// Format is a supported upload format
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatXLSX     Format = "xlsx"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

var contentTypes = map[Format]string{
	FormatPDF:      "application/pdf",
	FormatDOCX:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FormatXLSX:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatMarkdown: "text/markdown; charset=utf-8",
	FormatText:     "text/plain; charset=utf-8",
}

// Parsed is the text extracted from a file
type Parsed struct {
	Text        string
	Format      Format
	ContentType string
	// Title is the file name without directory or extension.
	Title string
}

// DetectFormat maps a file name to its format by extension.
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".txt", ".text", "":
		return FormatText, nil
	}
	return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
		fmt.Sprintf("unsupported file format: %s", filepath.Ext(fileName)), domain.ErrUnsupportedFileFormat)
}

// Parse extracts text from data according to the extension of fileName.
// A file without any text is a validation error.
func Parse(fileName string, data []byte) (*Parsed, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return nil, err
	}

	var text string
	switch format {
	case FormatPDF:
		text, err = parsePDF(data)
	case FormatDOCX:
		text, err = parseDOCX(data)
	case FormatXLSX:
		text, err = parseXLSX(data)
	case FormatMarkdown:
		text, err = parseMarkdown(data)
	default:
		text, err = parseText(data)
	}
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
			fmt.Sprintf("failed to read %s file", format), err)
	}

	text = normalize(text)
	if text == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "file contains no text")
	}

	base := filepath.Base(fileName)
	return &Parsed{
		Text:        text,
		Format:      format,
		ContentType: contentTypes[format],
		Title:       strings.TrimSuffix(base, filepath.Ext(base)),
	}, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func parseText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text is not valid UTF-8")
	}
	return string(data), nil
}

// normalize unifies line endings, trims trailing spaces on each line and
// collapses runs of blank lines into one.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
