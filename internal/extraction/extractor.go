// Package extraction turns invoice text into a upn.Record.
package extraction

import (
	"context"
	"errors"
	"strings"

	"github.com/dharsanguruparan/upnqr/internal/upn"
)

// ErrExtraction wraps every failure of the extraction backend.
var ErrExtraction = errors.New("record extraction failed")

// Extractor reads invoice fields out of free text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*upn.Record, error)
}

// SystemPrompt frames the model as a structured data extractor.
const SystemPrompt = "You are an expert at structured data extraction. " +
	"You will be given unstructured text from an invoice and should convert it into the given structure."

const promptTemplate = `Below is a content of an invoice. Extract the following information from the invoice:
- invoice number
- invoice date
- due date
- total amount
- bank account number (IBAN)
- bank name
- issuer name
- issuer address
- issuer zip code
- issuer city
- service or product name
- reference number

Reply with the extracted information in the JSON format. For example:

{
    "invoice_number": "123456",
    "invoice_date": "2021-01-01",
    "due_date": "2021-01-31",
    "total_amount": "1337.80",
    "total_amount_currency": "EUR",
    "bank_account": "SI56 1234 5678 9012 3456",
    "bank_name": "Bank of Slovenia",
    "issuer_name": "Podjetje d.o.o.",
    "issuer_address": "Ulica 123",
    "issuer_zip_code": "1000",
    "issuer_city": "Ljubljana",
    "service_name": "Programiranje",
    "reference_number": "SI00 20230922"
}

General guidelines:

- Use the date format YYYY-MM-DD for all dates.
- Try to shorten service name to 50 characters or less, but try to keep it as descriptive as possible.
- Don't return example values, but the actual values from the invoice. If not sure about the value, leave it empty.
- Reference number should start with SIXX, or RFXX (XX is a number between 00 and 99) followed by space.
    If the reference number is in the invoice, but without the prefix, follow this rules:
        - If Issuer is from Slovenia, add SI00 in front of the reference number
        - If Issuer is from EU, add RF00 in front of the reference number

` + "```\n{{TEXT}}\n```\n"

// Prompt embeds the invoice text into the extraction instructions.
func Prompt(text string) string {
	return strings.Replace(promptTemplate, "{{TEXT}}", text, 1)
}
