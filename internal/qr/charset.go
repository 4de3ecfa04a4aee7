package qr

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Charset selects the byte encoding of the payload inside the symbol.
type Charset string

const (
	// CharsetISO88592 is the Latin-2 encoding mandated for UPN QR symbols.
	// The symbol carries no ECI designator because go-qrcode cannot write
	// one, so banking apps that follow the UPN standard read it correctly
	// while generic readers fall back to ISO-8859-1 and show Č as È. Use
	// CharsetUTF8 when the symbol must scan in general-purpose apps.
	CharsetISO88592 Charset = "iso-8859-2"
	// CharsetUTF8 stores the payload text as UTF-8 bytes.
	CharsetUTF8 Charset = "utf-8"
)

var charsets = map[Charset]struct{}{
	CharsetISO88592: {},
	CharsetUTF8:     {},
}

// ParseCharset accepts the names above plus the common spellings
// "latin2", "iso8859-2" and "utf8".
func ParseCharset(s string) (Charset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "iso-8859-2", "iso8859-2", "latin2":
		return CharsetISO88592, nil
	case "utf-8", "utf8":
		return CharsetUTF8, nil
	}
	return "", fmt.Errorf("%w: charset %q", ErrInvalidSpec, s)
}

// encode converts payload text into the byte string placed in the symbol.
func (c Charset) encode(payload string) (string, error) {
	if c == CharsetUTF8 {
		return payload, nil
	}
	out, err := charmap.ISO8859_2.NewEncoder().String(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnencodable, c, err)
	}
	return out, nil
}
