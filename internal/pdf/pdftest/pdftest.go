// Package pdftest writes small single-font PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Document returns a PDF with one page per argument. Each line of a page
// string is drawn as a separate text line in Helvetica. An empty string
// yields a page without text.
func Document(pages ...string) []byte {
	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	catalog := add("")
	pagesObj := add("")
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	kids := make([]string, 0, len(pages))
	for _, text := range pages {
		content := pageContent(text)
		stream := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
		page := add(fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			pagesObj, font, stream))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	objects[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj)
	objects[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, catalog, xref)
	return buf.Bytes()
}

func pageContent(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n14 TL\n72 770 Td\n")
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(&b, "(%s) Tj\nT*\n", escape(line))
	}
	b.WriteString("ET")
	return b.String()
}

var escaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

func escape(s string) string {
	return escaper.Replace(s)
}
