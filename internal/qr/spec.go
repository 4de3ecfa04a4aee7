// Package qr renders UPN payloads as QR symbols of a fixed, forced version.
// The version is never chosen automatically: a payload that does not fit is
// an error, so every symbol printed by the service has the same physical size.
package qr

import (
	"encoding/hex"
	"errors"
	"fmt"
	"image/color"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrPayloadTooLarge is returned when the payload exceeds the capacity of
	// the forced version at the configured error-correction level.
	ErrPayloadTooLarge = errors.New("payload too large for symbol version")
	// ErrInvalidSpec is returned for an unusable SymbolSpec.
	ErrInvalidSpec = errors.New("invalid symbol spec")
	// ErrUnencodable is returned for empty payloads and for text the
	// configured charset cannot represent.
	ErrUnencodable = errors.New("payload cannot be encoded")
)

// Level is an error-correction level.
type Level string

const (
	LevelLow      Level = "L"
	LevelMedium   Level = "M"
	LevelQuartile Level = "Q"
	LevelHigh     Level = "H"
)

// ParseLevel accepts L, M, Q or H in any case.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := recoveryLevels[l]; !ok {
		return "", fmt.Errorf("%w: error correction level %q", ErrInvalidSpec, s)
	}
	return l, nil
}

var recoveryLevels = map[Level]qrcode.RecoveryLevel{
	LevelLow:      qrcode.Low,
	LevelMedium:   qrcode.Medium,
	LevelQuartile: qrcode.High,
	LevelHigh:     qrcode.Highest,
}

// SymbolSpec fixes every visual and structural property of the symbol.
type SymbolSpec struct {
	// Version is the forced symbol version, 1 to 40.
	Version int
	Level   Level
	// ModuleSize is the edge length of one module in pixels.
	ModuleSize int
	// Border is the quiet zone width in modules.
	Border     int
	Foreground color.Color
	Background color.Color
	Charset    Charset
}

// DefaultSpec returns the UPN configuration: version 15, medium error
// correction, 10 px modules, a 4 module border, black on white, ISO-8859-2.
func DefaultSpec() SymbolSpec {
	return SymbolSpec{
		Version:    15,
		Level:      LevelMedium,
		ModuleSize: 10,
		Border:     4,
		Foreground: color.Black,
		Background: color.White,
		Charset:    CharsetISO88592,
	}
}

// Validate checks that the spec describes a drawable symbol.
func (s SymbolSpec) Validate() error {
	var problems []string
	if s.Version < 1 || s.Version > 40 {
		problems = append(problems, fmt.Sprintf("version %d outside 1-40", s.Version))
	}
	if _, ok := recoveryLevels[s.Level]; !ok {
		problems = append(problems, fmt.Sprintf("level %q", s.Level))
	}
	if s.ModuleSize < 1 {
		problems = append(problems, "module size must be positive")
	}
	if s.Border < 0 {
		problems = append(problems, "border cannot be negative")
	}
	if s.Foreground == nil || s.Background == nil {
		problems = append(problems, "colors must be set")
	} else if sameColor(s.Foreground, s.Background) {
		problems = append(problems, "foreground and background are identical")
	}
	if _, ok := charsets[s.Charset]; !ok {
		problems = append(problems, fmt.Sprintf("charset %q", s.Charset))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSpec, strings.Join(problems, "; "))
	}
	return nil
}

// Modules returns the number of modules along one edge of the symbol,
// excluding the border.
func (s SymbolSpec) Modules() int {
	return 17 + 4*s.Version
}

// Dimensions returns the pixel width (and height) of rendered images.
func (s SymbolSpec) Dimensions() int {
	return (s.Modules() + 2*s.Border) * s.ModuleSize
}

// ParseColor reads a #RRGGBB or RRGGBB hex color.
func ParseColor(s string) (color.Color, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(raw) != 6 {
		return nil, fmt.Errorf("%w: color %q", ErrInvalidSpec, s)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: color %q", ErrInvalidSpec, s)
	}
	return color.RGBA{R: b[0], G: b[1], B: b[2], A: 0xff}, nil
}

func sameColor(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}
