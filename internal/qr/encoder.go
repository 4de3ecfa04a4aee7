package qr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"
)

// Encoder draws payloads with a fixed SymbolSpec. It is immutable and safe
// for concurrent use.
type Encoder struct {
	spec SymbolSpec
}

// NewEncoder validates spec and returns an Encoder for it.
func NewEncoder(spec SymbolSpec) (*Encoder, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{spec: spec}, nil
}

// Spec returns the encoder's configuration.
func (e *Encoder) Spec() SymbolSpec {
	return e.spec
}

// Dimensions is the pixel width of every image the encoder produces.
func (e *Encoder) Dimensions() int {
	return e.spec.Dimensions()
}

// Bitmap returns the module matrix of payload without the border;
// bitmap[y][x] is true for a dark module.
func (e *Encoder) Bitmap(payload string) ([][]bool, error) {
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrUnencodable)
	}
	content, err := e.spec.Charset.encode(payload)
	if err != nil {
		return nil, err
	}
	// The version is range-checked by Validate, so the only failure left
	// is content that does not fit the forced version.
	code, err := qrcode.NewWithForcedVersion(content, e.spec.Version, recoveryLevels[e.spec.Level])
	if err != nil {
		return nil, fmt.Errorf("%w: version %d-%s, %d bytes: %v",
			ErrPayloadTooLarge, e.spec.Version, e.spec.Level, len(content), err)
	}
	code.DisableBorder = true
	return code.Bitmap(), nil
}

// Image renders payload as a two-colour paletted image of
// Dimensions() pixels square.
func (e *Encoder) Image(payload string) (image.Image, error) {
	bitmap, err := e.Bitmap(payload)
	if err != nil {
		return nil, err
	}
	size := e.spec.Dimensions()
	img := image.NewPaletted(image.Rect(0, 0, size, size),
		color.Palette{e.spec.Background, e.spec.Foreground})

	// Palette index 0 is the background, so only dark modules are painted.
	m := e.spec.ModuleSize
	offset := e.spec.Border * m
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			x0, y0 := offset+x*m, offset+y*m
			for py := y0; py < y0+m; py++ {
				start := img.PixOffset(x0, py)
				for i := start; i < start+m; i++ {
					img.Pix[i] = 1
				}
			}
		}
	}
	return img, nil
}

// PNG renders payload and encodes it as a PNG image.
func (e *Encoder) PNG(payload string) ([]byte, error) {
	img, err := e.Image(payload)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
