package upn

import (
	"errors"
	"fmt"
	"strings"
)

// DatePolicy decides what happens when the due date cannot be formatted.
type DatePolicy string

const (
	// DateStrict aborts the build on a missing or malformed due date.
	DateStrict DatePolicy = "strict"
	// DateLenient leaves the due date field blank and records the failure in
	// Payload.Tolerated. The UPN standard allows an empty due date.
	DateLenient DatePolicy = "lenient"
)

// ParseDatePolicy maps a configuration value onto a DatePolicy.
func ParseDatePolicy(s string) (DatePolicy, error) {
	switch DatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case DateStrict, "":
		return DateStrict, nil
	case DateLenient:
		return DateLenient, nil
	}
	return "", fmt.Errorf("unknown date policy %q", s)
}

// Builder turns invoice records into UPN payloads. A Builder holds no mutable
// state and may be shared between goroutines.
type Builder struct {
	datePolicy DatePolicy
}

// NewBuilder returns a Builder using policy for due dates. Unknown policies
// fall back to DateStrict.
func NewBuilder(policy DatePolicy) *Builder {
	if policy != DateLenient {
		policy = DateStrict
	}
	return &Builder{datePolicy: policy}
}

// DatePolicy reports the policy the builder applies.
func (b *Builder) DatePolicy() DatePolicy {
	return b.datePolicy
}

// Build validates rec and produces its payload. All field failures are
// collected and returned together via errors.Join; each one is a
// *FieldError wrapping ErrMissingField, ErrInvalidAmount or ErrInvalidDate.
// No payload is returned alongside an error.
func (b *Builder) Build(rec Record) (*Payload, error) {
	var errs []error
	fail := func(field, value string, err error) {
		errs = append(errs, &FieldError{Field: field, Value: strings.TrimSpace(value), Err: err})
	}
	required := func(field, value string) string {
		if !present(value) {
			fail(field, "", ErrMissingField)
			return ""
		}
		return singleLine(value)
	}

	amount, err := FormatAmount(rec.TotalAmount)
	if err != nil {
		fail(FieldTotalAmount, rec.TotalAmount, err)
	}

	var tolerated []error
	dueDate, err := FormatDueDate(rec.DueDate)
	if err != nil {
		fe := &FieldError{Field: FieldDueDate, Value: strings.TrimSpace(rec.DueDate), Err: err}
		if b.datePolicy == DateLenient {
			tolerated = append(tolerated, fe)
			dueDate = ""
		} else {
			errs = append(errs, fe)
		}
	}

	service := required(FieldService, rec.ServiceName)
	account := CompactAccount(required(FieldBankAccount, rec.BankAccount))
	reference := required(FieldReference, rec.ReferenceNumber)
	name := required(FieldIssuerName, rec.IssuerName)
	address := required(FieldAddress, rec.IssuerAddress)
	zip := required(FieldZipCode, rec.IssuerZipCode)
	city := required(FieldCity, rec.IssuerCity)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	p, err := assemble(amount, service, dueDate, account, reference, name, address, zip+" "+city)
	if err != nil {
		return nil, err
	}
	p.Tolerated = tolerated
	return p, nil
}
