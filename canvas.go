// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"fmt"
	"image"
	"math"
)

// maxSide is the largest canvas dimension that will be planned.
const maxSide = math.MaxInt32

// CanvasPlan describes how a source image is fitted to the output canvas.
// The source is first resampled to SampleWidth x SampleHeight, then, if
// the sample is larger than the target, cropped to TargetWidth x
// TargetHeight starting at (CropX, CropY).
type CanvasPlan struct {
	TargetWidth, TargetHeight int
	SampleWidth, SampleHeight int
	CropX, CropY              int
}

// Cropped reports whether the plan crops the resampled image.
func (p CanvasPlan) Cropped() bool {
	return p.SampleWidth != p.TargetWidth || p.SampleHeight != p.TargetHeight
}

// CropRect returns the region of the resampled image that makes up the
// output.
func (p CanvasPlan) CropRect() image.Rectangle {
	return image.Rect(p.CropX, p.CropY, p.CropX+p.TargetWidth, p.CropY+p.TargetHeight)
}

// PlanCanvas computes the output geometry for a source image of srcW x
// srcH pixels.  Requested sizes of zero are unspecified.
//
// With neither size given the default canvas is used as-is.  With one size
// given, the other follows the source aspect ratio.  With both given the
// canvas is taken literally; if crop is set, the source is scaled to cover
// the canvas and the overflow is cropped evenly from both sides.
func PlanCanvas(w, h int, crop bool, srcW, srcH, defW, defH int) (CanvasPlan, error) {
	if srcW <= 0 || srcH <= 0 {
		return CanvasPlan{}, &GeometryError{fmt.Sprintf("source dimensions %dx%d", srcW, srcH)}
	}
	if w < 0 || h < 0 {
		return CanvasPlan{}, &GeometryError{fmt.Sprintf("requested dimensions %dx%d", w, h)}
	}

	sw, sh := float64(srcW), float64(srcH)
	switch {
	case w == 0 && h == 0:
		if defW <= 0 || defH <= 0 {
			return CanvasPlan{}, &GeometryError{fmt.Sprintf("default dimensions %dx%d", defW, defH)}
		}
		return fitPlan(defW, defH), nil
	case w > maxSide || h > maxSide:
		return CanvasPlan{}, &GeometryError{fmt.Sprintf("requested dimensions %dx%d", w, h)}
	case w == 0:
		dw, err := side(sw * float64(h) / sh)
		if err != nil {
			return CanvasPlan{}, err
		}
		return fitPlan(dw, h), nil
	case h == 0:
		dh, err := side(sh * float64(w) / sw)
		if err != nil {
			return CanvasPlan{}, err
		}
		return fitPlan(w, dh), nil
	case !crop:
		return fitPlan(w, h), nil
	}

	p := CanvasPlan{TargetWidth: w, TargetHeight: h}
	srcRatio := sw / sh
	dstRatio := float64(w) / float64(h)
	var err error
	if srcRatio > dstRatio {
		p.SampleHeight = h
		p.SampleWidth, err = side(float64(h) * sw / sh)
	} else {
		p.SampleWidth = w
		p.SampleHeight, err = side(float64(w) * sh / sw)
	}
	if err != nil {
		return CanvasPlan{}, err
	}

	// float rounding can leave the sample a pixel short when the ratios
	// are equal
	p.SampleWidth = max(p.SampleWidth, w)
	p.SampleHeight = max(p.SampleHeight, h)

	p.CropX = (p.SampleWidth - w) / 2
	p.CropY = (p.SampleHeight - h) / 2
	return p, nil
}

// CheckPixels returns a *GeometryError if the target or the resampled
// image would hold more than maxPixels pixels.
func (p CanvasPlan) CheckPixels(maxPixels int) error {
	for _, d := range [][2]int{{p.TargetWidth, p.TargetHeight}, {p.SampleWidth, p.SampleHeight}} {
		if float64(d[0])*float64(d[1]) > float64(maxPixels) {
			return &GeometryError{fmt.Sprintf("canvas %dx%d exceeds %d pixels", d[0], d[1], maxPixels)}
		}
	}
	return nil
}

func fitPlan(w, h int) CanvasPlan {
	return CanvasPlan{
		TargetWidth:  w,
		TargetHeight: h,
		SampleWidth:  w,
		SampleHeight: h,
	}
}

// side truncates a derived dimension toward zero, but never below one
// pixel.  Dimensions beyond maxSide are a *GeometryError.
func side(f float64) (int, error) {
	if f > maxSide {
		return 0, &GeometryError{fmt.Sprintf("derived dimension %.0f too large", f)}
	}
	return max(int(f), 1), nil
}
