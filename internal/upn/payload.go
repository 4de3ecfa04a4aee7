package upn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Symbol is the leading field that identifies a UPN QR payload.
	Symbol = "UPNQR"
	// PurposeGoodsServices is the purpose code for payment of goods and services.
	PurposeGoodsServices = "GDSV"
	// FieldCount is the number of content fields preceding the checksum.
	FieldCount = 19
)

// Positions of the populated fields. Every other position is a blank payer
// or control field.
const (
	idxSymbol    = 0
	idxAmount    = 8
	idxPurpose   = 11
	idxService   = 12
	idxDueDate   = 13
	idxAccount   = 14
	idxReference = 15
	idxName      = 16
	idxAddress   = 17
	idxCity      = 18
)

// Payload is a built UPN payload. It is never modified after Build or Parse.
type Payload struct {
	fields   [FieldCount]string
	checksum int

	// Tolerated lists field errors that the lenient date policy replaced
	// with a blank field instead of aborting.
	Tolerated []error
}

// Lines returns a copy of the 19 content fields in schema order.
func (p *Payload) Lines() []string {
	out := make([]string, FieldCount)
	copy(out, p.fields[:])
	return out
}

// Field returns the content field at position i (0-based).
func (p *Payload) Field(i int) string {
	return p.fields[i]
}

// Checksum returns the character count of all content fields.
func (p *Payload) Checksum() int {
	return p.checksum
}

// AmountCents returns the amount field in minor units.
func (p *Payload) AmountCents() int64 {
	cents, _ := strconv.ParseInt(p.fields[idxAmount], 10, 64)
	return cents
}

// String serialises the payload: the content fields each terminated by a
// newline, the three-digit checksum, and two more newlines closing the
// checksum and reserve fields.
func (p *Payload) String() string {
	var b strings.Builder
	for _, f := range p.fields {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%03d\n\n", p.checksum)
	return b.String()
}

// Parse reads a serialised payload back, checking the symbol, the field
// count and the checksum.
func Parse(s string) (*Payload, error) {
	parts := strings.Split(s, "\n")
	if len(parts) != FieldCount+3 || parts[FieldCount+1] != "" || parts[FieldCount+2] != "" {
		return nil, fmt.Errorf("%w: want %d lines, got %d", ErrMalformedPayload, FieldCount+3, len(parts))
	}
	if parts[idxSymbol] != Symbol {
		return nil, fmt.Errorf("%w: missing %s symbol", ErrMalformedPayload, Symbol)
	}
	sumText := parts[FieldCount]
	sum, err := strconv.Atoi(sumText)
	if err != nil || len(sumText) != 3 {
		return nil, fmt.Errorf("%w: checksum %q", ErrMalformedPayload, sumText)
	}
	p := &Payload{}
	copy(p.fields[:], parts[:FieldCount])
	p.checksum = Checksum(p.fields[:])
	if p.checksum != sum {
		return nil, fmt.Errorf("%w: checksum %d, counted %d", ErrMalformedPayload, sum, p.checksum)
	}
	return p, nil
}

// assemble lays the transformed values out in schema order.
func assemble(amount, service, dueDate, account, reference, name, address, city string) (*Payload, error) {
	p := &Payload{}
	p.fields[idxSymbol] = Symbol
	p.fields[idxAmount] = amount
	p.fields[idxPurpose] = PurposeGoodsServices
	p.fields[idxService] = service
	p.fields[idxDueDate] = dueDate
	p.fields[idxAccount] = account
	p.fields[idxReference] = reference
	p.fields[idxName] = name
	p.fields[idxAddress] = address
	p.fields[idxCity] = city
	p.checksum = Checksum(p.fields[:])
	if p.checksum > 999 {
		return nil, fmt.Errorf("%w: %d characters", ErrPayloadOverflow, p.checksum)
	}
	return p, nil
}

// Errors splits an error returned by Build, possibly wrapped again by the
// caller, into its individual field errors.
func Errors(err error) []*FieldError {
	switch e := err.(type) {
	case nil:
		return nil
	case *FieldError:
		return []*FieldError{e}
	case interface{ Unwrap() []error }:
		var out []*FieldError
		for _, inner := range e.Unwrap() {
			out = append(out, Errors(inner)...)
		}
		return out
	}
	return Errors(errors.Unwrap(err))
}
