package upn

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	return Record{
		InvoiceNumber:   "123456",
		InvoiceDate:     "2021-01-01",
		DueDate:         "2021-01-31",
		TotalAmount:     "1337.80",
		Currency:        "EUR",
		BankAccount:     "SI56 1234 5678 9012 3456",
		BankName:        "Bank of Slovenia",
		IssuerName:      "Podjetje d.o.o.",
		IssuerAddress:   "Ulica 123",
		IssuerZipCode:   "1000",
		IssuerCity:      "Ljubljana",
		ServiceName:     "Programiranje",
		ReferenceNumber: "SI00 20230922",
	}
}

func TestBuild(t *testing.T) {
	p, err := NewBuilder(DateStrict).Build(sampleRecord())
	require.NoError(t, err)

	want := "UPNQR\n" +
		"\n\n\n\n\n\n\n" +
		"00000133780\n" +
		"\n\n" +
		"GDSV\n" +
		"Programiranje\n" +
		"31.01.2021\n" +
		"SI561234567890123456\n" +
		"SI00 20230922\n" +
		"Podjetje d.o.o.\n" +
		"Ulica 123\n" +
		"1000 Ljubljana\n" +
		"114\n\n"
	assert.Equal(t, want, p.String())
	assert.Equal(t, 114, p.Checksum())
	assert.Empty(t, p.Tolerated)
}

func TestBuildFieldOrder(t *testing.T) {
	p, err := NewBuilder(DateStrict).Build(sampleRecord())
	require.NoError(t, err)

	lines := p.Lines()
	require.Len(t, lines, FieldCount)
	assert.Equal(t, Symbol, lines[0])
	for i := 1; i <= 7; i++ {
		assert.Empty(t, lines[i], "payer field %d", i)
	}
	assert.Equal(t, "00000133780", lines[8])
	assert.Empty(t, lines[9])
	assert.Empty(t, lines[10])
	assert.Equal(t, PurposeGoodsServices, lines[11])
	assert.Equal(t, "Programiranje", lines[12])
	assert.Equal(t, "31.01.2021", lines[13])
	assert.Equal(t, "SI561234567890123456", lines[14])
	assert.Equal(t, "SI00 20230922", lines[15])
	assert.Equal(t, "Podjetje d.o.o.", lines[16])
	assert.Equal(t, "Ulica 123", lines[17])
	assert.Equal(t, "1000 Ljubljana", lines[18])
}

func TestBuildShapeIsStable(t *testing.T) {
	records := []Record{sampleRecord()}

	short := sampleRecord()
	short.ServiceName = "X"
	short.IssuerAddress = "A 1"
	records = append(records, short)

	accented := sampleRecord()
	accented.IssuerName = "Šola Črnuče"
	accented.IssuerCity = "Črnuče"
	accented.ServiceName = "Šolnina za september, računovodske storitve"
	records = append(records, accented)

	multiline := sampleRecord()
	multiline.IssuerAddress = "Ulica 123\r\n  2. nadstropje"
	records = append(records, multiline)

	for i, rec := range records {
		t.Run(fmt.Sprintf("record %d", i), func(t *testing.T) {
			p, err := NewBuilder(DateStrict).Build(rec)
			require.NoError(t, err)

			parts := strings.Split(p.String(), "\n")
			require.Len(t, parts, FieldCount+3)
			assert.Equal(t, "", parts[FieldCount+1])
			assert.Equal(t, "", parts[FieldCount+2])

			sum := 0
			for _, line := range parts[:FieldCount] {
				sum += utf8.RuneCountInString(line)
			}
			assert.Equal(t, fmt.Sprintf("%03d", sum), parts[FieldCount])
		})
	}
}

func TestBuildFoldsLineBreaks(t *testing.T) {
	rec := sampleRecord()
	rec.IssuerAddress = "Ulica 123\n\n2. nadstropje "
	p, err := NewBuilder(DateStrict).Build(rec)
	require.NoError(t, err)
	assert.Equal(t, "Ulica 123 2. nadstropje", p.Field(17))
}

func TestBuildMissingFields(t *testing.T) {
	_, err := NewBuilder(DateStrict).Build(Record{TotalAmount: "10.00", DueDate: "2021-01-31"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.True(t, IsDataError(err))

	var fields []string
	for _, fe := range Errors(err) {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{
		FieldService, FieldBankAccount, FieldReference,
		FieldIssuerName, FieldAddress, FieldZipCode, FieldCity,
	}, fields)

	wrapped := fmt.Errorf("build payload: %w", err)
	assert.Len(t, Errors(wrapped), len(fields))
	assert.Nil(t, Errors(nil))
	assert.Empty(t, Errors(errors.New("unrelated")))
}

func TestBuildInvalidAmount(t *testing.T) {
	for _, amount := range []string{"-12.00", "twelve", "", "   "} {
		t.Run(amount, func(t *testing.T) {
			rec := sampleRecord()
			rec.TotalAmount = amount
			p, err := NewBuilder(DateStrict).Build(rec)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrInvalidAmount)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, FieldTotalAmount, fe.Field)
		})
	}
}

func TestBuildDatePolicy(t *testing.T) {
	rec := sampleRecord()
	rec.DueDate = "31/01/2021"

	_, err := NewBuilder(DateStrict).Build(rec)
	assert.ErrorIs(t, err, ErrInvalidDate)

	p, err := NewBuilder(DateLenient).Build(rec)
	require.NoError(t, err)
	assert.Empty(t, p.Field(13))
	require.Len(t, p.Tolerated, 1)
	assert.ErrorIs(t, p.Tolerated[0], ErrInvalidDate)
	assert.Equal(t, 104, p.Checksum())
}

func TestBuildLenientMissingDate(t *testing.T) {
	rec := sampleRecord()
	rec.DueDate = ""

	_, err := NewBuilder(DateStrict).Build(rec)
	assert.ErrorIs(t, err, ErrMissingField)

	p, err := NewBuilder(DateLenient).Build(rec)
	require.NoError(t, err)
	assert.Empty(t, p.Field(13))
	assert.ErrorIs(t, p.Tolerated[0], ErrMissingField)
}

func TestBuildOverflow(t *testing.T) {
	rec := sampleRecord()
	rec.ServiceName = strings.Repeat("a", 1000)
	_, err := NewBuilder(DateStrict).Build(rec)
	assert.ErrorIs(t, err, ErrPayloadOverflow)
}

func TestBuildIsDeterministic(t *testing.T) {
	b := NewBuilder(DateStrict)
	first, err := b.Build(sampleRecord())
	require.NoError(t, err)
	second, err := b.Build(sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, first.String(), second.String())
}

func TestParseDatePolicy(t *testing.T) {
	p, err := ParseDatePolicy("Lenient")
	require.NoError(t, err)
	assert.Equal(t, DateLenient, p)

	p, err = ParseDatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DateStrict, p)

	_, err = ParseDatePolicy("sometimes")
	assert.Error(t, err)

	assert.Equal(t, DateStrict, NewBuilder("bogus").DatePolicy())
}

func TestParse(t *testing.T) {
	built, err := NewBuilder(DateStrict).Build(sampleRecord())
	require.NoError(t, err)

	parsed, err := Parse(built.String())
	require.NoError(t, err)
	assert.Equal(t, built.Lines(), parsed.Lines())
	assert.Equal(t, built.Checksum(), parsed.Checksum())
	assert.Equal(t, int64(133780), parsed.AmountCents())

	tests := []struct {
		name    string
		payload string
	}{
		{"tampered field", strings.Replace(built.String(), "Ljubljana", "Maribor", 1)},
		{"missing symbol", strings.Replace(built.String(), Symbol, "UPNXX", 1)},
		{"missing reserve", strings.TrimSuffix(built.String(), "\n")},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.payload)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}
