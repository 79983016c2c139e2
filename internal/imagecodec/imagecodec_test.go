package imagecodec

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func TestPNGRoundTripIsLossless(t *testing.T) {
	src := gradient(32, 16)
	data, err := PNG{}.Encode(src)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := PNG{}.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Bounds() != src.Bounds() {
		t.Fatalf("bounds mismatch: %v != %v", got.Bounds(), src.Bounds())
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			r1, g1, b1, a1 := src.At(x, y).RGBA()
			r2, g2, b2, a2 := got.At(x, y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
				t.Fatalf("pixel (%d,%d) differs", x, y)
			}
		}
	}
}

func TestJPEGRoundTripKeepsBounds(t *testing.T) {
	src := gradient(64, 48)
	data, err := JPEG{}.Encode(src)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := JPEG{}.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Bounds().Dx() != 64 || got.Bounds().Dy() != 48 {
		t.Fatalf("unexpected bounds: %v", got.Bounds())
	}
}

func TestDecodeAcceptsEitherFormat(t *testing.T) {
	data, err := PNG{}.Encode(gradient(4, 4))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := (JPEG{}).Decode(data); err != nil {
		t.Fatalf("jpeg codec should sniff png payloads: %v", err)
	}
}

func TestErrors(t *testing.T) {
	if _, err := (JPEG{}).Encode(nil); !errors.Is(err, ErrNilImage) {
		t.Fatalf("expected ErrNilImage, got %v", err)
	}
	if _, err := (PNG{}).Decode([]byte("not an image")); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if _, err := ByName("tiff"); !errors.Is(err, ErrUnknownCodec) {
		t.Fatalf("expected ErrUnknownCodec, got %v", err)
	}
	c, err := ByName("JPG")
	if err != nil || c.Name() != "jpeg" {
		t.Fatalf("ByName(JPG) got=%v err=%v", c, err)
	}
}
