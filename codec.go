// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register gif format
	_ "image/jpeg" // register jpeg format
	_ "image/png" // register png format

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// A Codec decodes, transforms, and encodes images.
type Codec interface {
	// Decode decodes b, returning the image and its format name ("jpeg",
	// "png", or "gif").
	Decode(b []byte) (image.Image, string, error)

	// Resample scales m to exactly w x h pixels.
	Resample(m image.Image, w, h int) image.Image

	// Crop returns the portion of m within r.
	Crop(m image.Image, r image.Rectangle) image.Image

	// Encode encodes m in the named format.
	Encode(m image.Image, format string) ([]byte, error)
}

// compression quality of resized jpegs
const defaultJPEGQuality = 95

// DefaultMaxPixels is the largest source image, in pixels, ImagingCodec
// will decode.
const DefaultMaxPixels = 50_000_000

// ImagingCodec is a Codec backed by github.com/disintegration/imaging.
// JPEG sources are rotated according to their EXIF orientation when
// decoded.
type ImagingCodec struct {
	// MaxPixels limits the dimensions of decoded images, protecting
	// against decompression bombs.  Zero uses DefaultMaxPixels.
	MaxPixels int

	// JPEGQuality is the encoding quality for jpeg output.  Zero uses 95.
	JPEGQuality int
}

// Decode implements Codec.
func (c ImagingCodec) Decode(b []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, "", err
	}
	maxPixels := c.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", &GeometryError{fmt.Sprintf("source dimensions %dx%d", cfg.Width, cfg.Height)}
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("image too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels)
	}

	m, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, "", err
	}
	if format == "jpeg" {
		m = exifOrient(m, b)
	}
	return m, format, nil
}

// Resample implements Codec.
func (c ImagingCodec) Resample(m image.Image, w, h int) image.Image {
	b := m.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return m
	}
	return imaging.Resize(m, w, h, imaging.Lanczos)
}

// Crop implements Codec.
func (c ImagingCodec) Crop(m image.Image, r image.Rectangle) image.Image {
	return imaging.Crop(m, r.Add(m.Bounds().Min))
}

// Encode implements Codec.
func (c ImagingCodec) Encode(m image.Image, format string) ([]byte, error) {
	buf := new(bytes.Buffer)
	var err error
	switch format {
	case "jpeg":
		q := c.JPEGQuality
		if q <= 0 {
			q = defaultJPEGQuality
		}
		err = imaging.Encode(buf, m, imaging.JPEG, imaging.JPEGQuality(q))
	case "png":
		err = imaging.Encode(buf, m, imaging.PNG)
	case "gif":
		err = imaging.Encode(buf, m, imaging.GIF)
	default:
		err = fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EXIF orientation values, named for the position of the 0th row and
// column.
const (
	topLeftSide     = 1
	topRightSide    = 2
	bottomRightSide = 3
	bottomLeftSide  = 4
	leftSideTop     = 5
	rightSideTop    = 6
	rightSideBottom = 7
	leftSideBottom  = 8
)

// exifOrient applies the EXIF orientation recorded in b to m.  Images
// without readable orientation data are returned unchanged.
func exifOrient(m image.Image, b []byte) image.Image {
	x, err := exif.Decode(bytes.NewReader(b))
	if err != nil {
		return m
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return m
	}
	o, err := tag.Int(0)
	if err != nil {
		return m
	}

	switch o {
	case topRightSide:
		return imaging.FlipH(m)
	case bottomRightSide:
		return imaging.Rotate180(m)
	case bottomLeftSide:
		return imaging.FlipV(m)
	case leftSideTop:
		return imaging.Transpose(m)
	case rightSideTop:
		return imaging.Rotate270(m)
	case rightSideBottom:
		return imaging.Transverse(m)
	case leftSideBottom:
		return imaging.Rotate90(m)
	}
	return m
}

// mimeType returns the content type for a decoded image format.
func mimeType(format string) string {
	return "image/" + format
}

var errNoImage = errors.New("no image data")
