// Package imagecodec turns in-memory images into compressed interchange
// bytes and back. The channel treats its output as an opaque blob.
package imagecodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
)

const DefaultJPEGQuality = 95

var (
	ErrUnknownCodec = errors.New("imagecodec: unknown codec")
	ErrNilImage     = errors.New("imagecodec: nil image")
	ErrDecode       = errors.New("imagecodec: decode failed")
)

type Codec interface {
	Name() string
	Encode(img image.Image) ([]byte, error)
	Decode(data []byte) (image.Image, error)
}

// JPEG is lossy; it matches what most peers stream.
type JPEG struct {
	Quality int
}

func (JPEG) Name() string { return "jpeg" }

func (c JPEG) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	q := c.Quality
	if q <= 0 || q > 100 {
		q = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("imagecodec: jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (JPEG) Decode(data []byte) (image.Image, error) {
	return decode(data)
}

// PNG is lossless.
type PNG struct {
	Compression png.CompressionLevel
}

func (PNG) Name() string { return "png" }

func (c PNG) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	enc := png.Encoder{CompressionLevel: c.Compression}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imagecodec: png encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (PNG) Decode(data []byte) (image.Image, error) {
	return decode(data)
}

// decode sniffs the format so a receiver accepts whichever registered
// format the sender chose.
func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// ByName resolves "jpeg"/"jpg"/"png"; empty selects JPEG.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "jpeg", "jpg":
		return JPEG{Quality: DefaultJPEGQuality}, nil
	case "png":
		return PNG{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}
