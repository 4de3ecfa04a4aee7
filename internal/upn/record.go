// Package upn builds the text payload of a Slovenian UPN QR payment order from
// invoice fields. The payload has a fixed 19-field schema followed by a
// character-count checksum; field order and formatting are dictated by the
// UPN QR standard and must not change.
package upn

import "strings"

// Record holds the invoice fields supplied by the extraction step. Every field
// is optional at the type level; an empty or whitespace-only value means the
// extractor could not find it.
type Record struct {
	InvoiceNumber   string `json:"invoice_number"`
	InvoiceDate     string `json:"invoice_date"`
	DueDate         string `json:"due_date"`
	TotalAmount     string `json:"total_amount"`
	Currency        string `json:"total_amount_currency"`
	BankAccount     string `json:"bank_account"`
	BankName        string `json:"bank_name"`
	IssuerName      string `json:"issuer_name"`
	IssuerAddress   string `json:"issuer_address"`
	IssuerZipCode   string `json:"issuer_zip_code"`
	IssuerCity      string `json:"issuer_city"`
	ServiceName     string `json:"service_name"`
	ReferenceNumber string `json:"reference_number"`
}

// Field names used in errors. They match the JSON names of Record.
const (
	FieldDueDate     = "due_date"
	FieldTotalAmount = "total_amount"
	FieldBankAccount = "bank_account"
	FieldIssuerName  = "issuer_name"
	FieldAddress     = "issuer_address"
	FieldZipCode     = "issuer_zip_code"
	FieldCity        = "issuer_city"
	FieldService     = "service_name"
	FieldReference   = "reference_number"
)

// present reports whether an extracted value carries any content.
func present(v string) bool {
	return strings.TrimSpace(v) != ""
}

// singleLine trims v and folds any line breaks into a single space so a value
// can never split a payload field in two.
func singleLine(v string) string {
	v = strings.TrimSpace(v)
	if !strings.ContainsAny(v, "\r\n") {
		return v
	}
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == '\r' || r == '\n' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
