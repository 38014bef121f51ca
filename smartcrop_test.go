// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func TestSmartCropPlan(t *testing.T) {
	// plain background with a detailed patch on the right
	m := image.NewNRGBA(image.Rect(0, 0, 300, 100))
	draw.Draw(m, m.Bounds(), &image.Uniform{color.NRGBA{200, 200, 200, 255}}, image.Point{}, draw.Src)
	for x := 220; x < 290; x++ {
		for y := 10; y < 90; y++ {
			if (x/4+y/4)%2 == 0 {
				m.Set(x, y, color.NRGBA{200, 40, 40, 255})
			}
		}
	}

	plan := CanvasPlan{TargetWidth: 100, TargetHeight: 100, SampleWidth: 300, SampleHeight: 100, CropX: 100}
	got := smartCropPlan(m, plan)

	if got.TargetWidth != 100 || got.TargetHeight != 100 || got.SampleWidth != 300 || got.SampleHeight != 100 {
		t.Errorf("smartCropPlan changed plan dimensions: %+v", got)
	}
	if got.CropX < 0 || got.CropX > 200 || got.CropY != 0 {
		t.Errorf("smartCropPlan returned offset (%d, %d) outside the sample", got.CropX, got.CropY)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ v, lo, hi, want int }{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{3, 0, 0, 0},
	}
	for _, tt := range tests {
		if got := clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%d, %d, %d) returned %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}
