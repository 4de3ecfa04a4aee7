package qr_test

import (
	"bytes"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/upnqr/internal/qr"
	"github.com/dharsanguruparan/upnqr/internal/upn"
)

func samplePayload(t *testing.T) string {
	t.Helper()
	p, err := upn.NewBuilder(upn.DateStrict).Build(upn.Record{
		DueDate:         "2021-01-31",
		TotalAmount:     "1337.80",
		BankAccount:     "SI56 1234 5678 9012 3456",
		IssuerName:      "Podjetje d.o.o.",
		IssuerAddress:   "Ulica 123",
		IssuerZipCode:   "1000",
		IssuerCity:      "Ljubljana",
		ServiceName:     "Programiranje",
		ReferenceNumber: "SI00 20230922",
	})
	require.NoError(t, err)
	return p.String()
}

func isColor(c color.Color, want color.Color) bool {
	r1, g1, b1, a1 := c.RGBA()
	r2, g2, b2, a2 := want.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}

func TestDefaultSpec(t *testing.T) {
	spec := qr.DefaultSpec()
	require.NoError(t, spec.Validate())
	assert.Equal(t, 77, spec.Modules())
	assert.Equal(t, 850, spec.Dimensions())
}

func TestEncoderPNG(t *testing.T) {
	enc, err := qr.NewEncoder(qr.DefaultSpec())
	require.NoError(t, err)

	data, err := enc.PNG(samplePayload(t))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, enc.Dimensions(), img.Bounds().Dx())
	assert.Equal(t, 850, img.Bounds().Dy())

	// Quiet zone is background, the finder pattern corner is foreground.
	assert.True(t, isColor(img.At(0, 0), color.White))
	assert.True(t, isColor(img.At(39, 39), color.White))
	assert.True(t, isColor(img.At(40, 40), color.Black))
	assert.True(t, isColor(img.At(49, 49), color.Black))
	assert.True(t, isColor(img.At(849, 849), color.White))
}

func TestEncoderIsDeterministic(t *testing.T) {
	enc, err := qr.NewEncoder(qr.DefaultSpec())
	require.NoError(t, err)
	payload := samplePayload(t)

	first, err := enc.PNG(payload)
	require.NoError(t, err)
	second, err := enc.PNG(payload)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))
}

func TestEncoderForcedVersion(t *testing.T) {
	for _, payload := range []string{"x", samplePayload(t)} {
		bitmap, err := mustEncoder(t, qr.DefaultSpec()).Bitmap(payload)
		require.NoError(t, err)
		assert.Len(t, bitmap, 77, "short payloads keep the forced size")
	}
}

func TestEncoderPayloadTooLarge(t *testing.T) {
	enc := mustEncoder(t, qr.DefaultSpec())
	img, err := enc.Image(strings.Repeat("upn payload ", 200))
	assert.Nil(t, img)
	assert.ErrorIs(t, err, qr.ErrPayloadTooLarge)

	small := qr.DefaultSpec()
	small.Version = 1
	_, err = mustEncoder(t, small).PNG(samplePayload(t))
	assert.ErrorIs(t, err, qr.ErrPayloadTooLarge)
}

func TestEncoderCharset(t *testing.T) {
	latin2 := mustEncoder(t, qr.DefaultSpec())
	_, err := latin2.Bitmap("Šola Črnuče")
	assert.NoError(t, err)
	_, err = latin2.Bitmap("Cena 10 €")
	assert.ErrorIs(t, err, qr.ErrUnencodable)

	spec := qr.DefaultSpec()
	spec.Charset = qr.CharsetUTF8
	_, err = mustEncoder(t, spec).Bitmap("Cena 10 €")
	assert.NoError(t, err)

	_, err = latin2.Bitmap("")
	assert.ErrorIs(t, err, qr.ErrUnencodable)
}

func TestEncoderCustomRaster(t *testing.T) {
	spec := qr.DefaultSpec()
	spec.ModuleSize = 2
	spec.Border = 0
	spec.Foreground = color.RGBA{R: 0xc0, A: 0xff}
	enc := mustEncoder(t, spec)

	img, err := enc.Image(samplePayload(t))
	require.NoError(t, err)
	assert.Equal(t, 154, img.Bounds().Dx())
	assert.True(t, isColor(img.At(0, 0), spec.Foreground))
	assert.True(t, isColor(img.At(1, 1), spec.Foreground))
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*qr.SymbolSpec)
	}{
		{"version zero", func(s *qr.SymbolSpec) { s.Version = 0 }},
		{"version too high", func(s *qr.SymbolSpec) { s.Version = 41 }},
		{"unknown level", func(s *qr.SymbolSpec) { s.Level = "X" }},
		{"zero module", func(s *qr.SymbolSpec) { s.ModuleSize = 0 }},
		{"negative border", func(s *qr.SymbolSpec) { s.Border = -1 }},
		{"no colors", func(s *qr.SymbolSpec) { s.Foreground = nil }},
		{"same colors", func(s *qr.SymbolSpec) { s.Foreground = color.White }},
		{"unknown charset", func(s *qr.SymbolSpec) { s.Charset = "ebcdic" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := qr.DefaultSpec()
			tt.modify(&spec)
			_, err := qr.NewEncoder(spec)
			assert.ErrorIs(t, err, qr.ErrInvalidSpec)
		})
	}
}

func TestParsers(t *testing.T) {
	l, err := qr.ParseLevel("m")
	require.NoError(t, err)
	assert.Equal(t, qr.LevelMedium, l)
	_, err = qr.ParseLevel("Z")
	assert.ErrorIs(t, err, qr.ErrInvalidSpec)

	cs, err := qr.ParseCharset("Latin2")
	require.NoError(t, err)
	assert.Equal(t, qr.CharsetISO88592, cs)
	_, err = qr.ParseCharset("koi8-r")
	assert.ErrorIs(t, err, qr.ErrInvalidSpec)

	c, err := qr.ParseColor("#FF8000")
	require.NoError(t, err)
	assert.True(t, isColor(c, color.RGBA{R: 0xff, G: 0x80, A: 0xff}))
	for _, bad := range []string{"", "#FFF", "#GG0000"} {
		_, err := qr.ParseColor(bad)
		assert.ErrorIs(t, err, qr.ErrInvalidSpec, bad)
	}
}

func mustEncoder(t *testing.T, spec qr.SymbolSpec) *qr.Encoder {
	t.Helper()
	enc, err := qr.NewEncoder(spec)
	require.NoError(t, err)
	return enc
}
