// Package pdfutil pulls plain text out of uploaded invoices.
package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ErrNoText is returned for documents without any extractable text, such as
// scanned invoices.
var ErrNoText = errors.New("pdf contains no extractable text")

// PageBanner separates pages in the extracted text so the extraction prompt
// keeps page boundaries.
func PageBanner(n int) string {
	return fmt.Sprintf("\n\n PAGE %d \n\n", n)
}

// ExtractText reads PDF bytes and returns the text of every page, each page
// preceded by its PageBanner.
func ExtractText(data []byte) (text string, err error) {
	// The reader panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var (
		builder strings.Builder
		found   bool
	)
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		builder.WriteString(PageBanner(page))
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		if strings.TrimSpace(content) != "" {
			found = true
		}
		builder.WriteString(content)
	}
	if !found {
		return "", ErrNoText
	}
	return builder.String(), nil
}

// ExtractFromReader drains the reader before passing along to ExtractText.
func ExtractFromReader(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	return ExtractText(data)
}
