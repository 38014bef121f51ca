// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/bmp"
)

func TestImagingCodec_RoundTrip(t *testing.T) {
	c := ImagingCodec{}
	for _, format := range []string{"png", "jpeg", "gif"} {
		src := encodeImage(t, newImage(40, 20, red), format)

		m, got, err := c.Decode(src)
		if err != nil {
			t.Fatalf("Decode(%s) returned error: %v", format, err)
		}
		if got != format {
			t.Errorf("Decode(%s) reported format %q", format, got)
		}

		m = c.Resample(m, 10, 5)
		if b := m.Bounds(); b.Dx() != 10 || b.Dy() != 5 {
			t.Errorf("Resample(%s) returned %v, want 10x5", format, b)
		}

		out, err := c.Encode(m, format)
		if err != nil {
			t.Fatalf("Encode(%s) returned error: %v", format, err)
		}
		if _, got, err := image.Decode(bytes.NewReader(out)); err != nil || got != format {
			t.Errorf("Encode(%s) produced %q image, err %v", format, got, err)
		}
	}
}

func TestImagingCodec_Crop(t *testing.T) {
	c := ImagingCodec{}
	m := stripes(30, 10)

	// crop rectangles are relative to the image origin
	sub := m.(*image.NRGBA).SubImage(image.Rect(10, 0, 30, 10))
	got := c.Crop(sub, image.Rect(0, 0, 10, 10))
	if b := got.Bounds(); b.Dx() != 10 || b.Dy() != 10 {
		t.Fatalf("Crop returned %v, want 10x10", b)
	}
	if px := color.NRGBAModel.Convert(got.At(got.Bounds().Min.X+5, got.Bounds().Min.Y+5)); px != green {
		t.Errorf("Crop returned pixel %v, want %v", px, green)
	}
}

func TestImagingCodec_Resample_SameSize(t *testing.T) {
	m := newImage(3, 3, red)
	if got := (ImagingCodec{}).Resample(m, 3, 3); got != m {
		t.Errorf("Resample to same size returned a new image")
	}
}

func TestImagingCodec_Decode_Errors(t *testing.T) {
	c := ImagingCodec{MaxPixels: 100}

	if _, _, err := c.Decode([]byte("not an image")); err == nil {
		t.Errorf("Decode of garbage did not return error")
	}
	if _, _, err := c.Decode(encodeImage(t, newImage(20, 20, red), "png")); err == nil {
		t.Errorf("Decode of 400 pixel image with MaxPixels 100 did not return error")
	}

	// gif header and screen descriptor for a 0x5 image
	zero := []byte("GIF89a\x00\x00\x05\x00\x00\x00\x00")
	_, _, err := c.Decode(zero)
	var gerr *GeometryError
	if !errors.As(err, &gerr) {
		t.Errorf("Decode of zero width image returned %v, want *GeometryError", err)
	}
}

func TestImagingCodec_Encode_Unsupported(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := bmp.Encode(buf, newImage(2, 2, blue)); err != nil {
		t.Fatalf("error encoding bmp fixture: %v", err)
	}

	// bmp decodes once registered, but is never produced as output
	m, format, err := ImagingCodec{}.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode(bmp) returned error: %v", err)
	}
	if _, err := (ImagingCodec{}).Encode(m, format); err == nil {
		t.Errorf("Encode(%q) did not return error", format)
	}
}

func TestMimeType(t *testing.T) {
	for format, want := range map[string]string{
		"jpeg": "image/jpeg",
		"png":  "image/png",
		"gif":  "image/gif",
	} {
		if got := mimeType(format); got != want {
			t.Errorf("mimeType(%q) returned %q, want %q", format, got, want)
		}
	}
}
