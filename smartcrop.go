// Copyright 2013 The imagr authors.
// SPDX-License-Identifier: Apache-2.0

package imagr

import (
	"image"

	"github.com/muesli/smartcrop"
	"github.com/muesli/smartcrop/nfnt"
)

func smartcropAnalyzer() smartcrop.Analyzer {
	return smartcrop.NewAnalyzer(nfnt.NewDefaultResizer())
}

// smartCropPlan moves the crop offset of plan onto the most interesting
// region of the resampled image m.  The crop size is unchanged; if no
// region can be found the centered offset is kept.
func smartCropPlan(m image.Image, plan CanvasPlan) CanvasPlan {
	r, err := smartcropAnalyzer().FindBestCrop(m, plan.TargetWidth, plan.TargetHeight)
	if err != nil || r.Empty() {
		return plan
	}
	r = r.Sub(m.Bounds().Min)

	plan.CropX = clamp(r.Min.X, 0, plan.SampleWidth-plan.TargetWidth)
	plan.CropY = clamp(r.Min.Y, 0, plan.SampleHeight-plan.TargetHeight)
	return plan
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
