// Package pdftext extracts the embedded text layer from PDF documents.
package pdftext

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// ErrNoText indicates the document carries no extractable text layer, which
// typically means a scanned or image-only PDF.
var ErrNoText = errors.New("pdf has no extractable text layer (scanned document?)")

// Extract returns the concatenated text of all pages, separated by blank
// lines. It returns ErrNoText when the document decodes but yields only
// whitespace.
func Extract(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i+1, err)
		}
		pages = append(pages, text)
	}

	return Validate(strings.Join(pages, "\n\n"))
}

// Validate trims the extracted text and maps whitespace-only output to
// ErrNoText. Split out from Extract so the scanned-document rule is testable
// without a PDF renderer.
func Validate(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrNoText
	}
	return trimmed, nil
}
