package upn

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// maxMinorUnits is the largest amount the 11-digit amount field can carry.
const maxMinorUnits = 99999999999

var hundred = decimal.NewFromInt(100)

// FormatAmount converts a decimal amount into the 11-digit, zero-padded count
// of minor units used by the amount field. Either '.' or ',' is accepted as
// the decimal separator; the value is rounded to the nearest cent.
//
//	FormatAmount("1337.80") // "00000133780"
//	FormatAmount("1337,80") // "00000133780"
func FormatAmount(amount string) (string, error) {
	raw := strings.TrimSpace(amount)
	if raw == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidAmount, ErrMissingField)
	}
	// decimal accepts exponents, and rescaling 1e70000000 allocates a
	// number with that many digits.
	if strings.ContainsAny(raw, "eE") {
		return "", fmt.Errorf("%w: not a number", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return "", fmt.Errorf("%w: not a number", ErrInvalidAmount)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("%w: negative", ErrInvalidAmount)
	}
	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(decimal.NewFromInt(maxMinorUnits)) {
		return "", fmt.Errorf("%w: more than 11 digits", ErrInvalidAmount)
	}
	return fmt.Sprintf("%011d", cents.IntPart()), nil
}

// FormatDueDate rewrites a YYYY-MM-DD date as DD.MM.YYYY. Dates already in
// DD.MM.YYYY order are normalised the same way. Anything other than three
// numeric, '-' or '.' separated parts naming a real calendar day is rejected
// with ErrInvalidDate.
//
//	FormatDueDate("2021-01-31") // "31.01.2021"
func FormatDueDate(date string) (string, error) {
	raw := strings.TrimSpace(date)
	if raw == "" {
		return "", ErrMissingField
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '-' || r == '.' })
	if len(parts) != 3 || strings.Count(raw, "-")+strings.Count(raw, ".") != 2 {
		return "", fmt.Errorf("%w: want three parts", ErrInvalidDate)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, ok := digits(p)
		if !ok {
			return "", fmt.Errorf("%w: %q is not numeric", ErrInvalidDate, p)
		}
		nums[i] = n
	}

	var year, month, day int
	switch {
	case len(parts[0]) == 4:
		year, month, day = nums[0], nums[1], nums[2]
	case len(parts[2]) == 4:
		day, month, year = nums[0], nums[1], nums[2]
	default:
		return "", fmt.Errorf("%w: no four-digit year", ErrInvalidDate)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", fmt.Errorf("%w: no such day", ErrInvalidDate)
	}
	return fmt.Sprintf("%02d.%02d.%04d", day, month, year), nil
}

// CompactAccount removes every whitespace character from an account number.
// No other validation is applied since account formats vary between banks.
func CompactAccount(account string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, account)
}

// Checksum returns the total number of characters (runes, not bytes) in
// fields.
func Checksum(fields []string) int {
	n := 0
	for _, f := range fields {
		n += utf8.RuneCountInString(f)
	}
	return n
}

func digits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
