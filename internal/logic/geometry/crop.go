package geometry

import (
	"image"
	"math"
)

// CoverCrop returns the part of src that, scaled to dstW x dstH, fills the
// target exactly without distortion ("object-fit: cover").
//
// When src is wider than the target ratio the full height is kept and the
// width is cropped around the center; otherwise the full width is kept and
// the height is cropped. Equal ratios return src unchanged.
func CoverCrop(src image.Rectangle, dstW, dstH int) image.Rectangle {
	w, h := src.Dx(), src.Dy()
	if w <= 0 || h <= 0 || dstW <= 0 || dstH <= 0 {
		return src
	}

	// Compare w/h with dstW/dstH without floating point.
	srcCross := int64(w) * int64(dstH)
	dstCross := int64(h) * int64(dstW)
	if srcCross == dstCross {
		return src
	}

	ratio := float64(dstW) / float64(dstH)
	if srcCross > dstCross {
		// Wider than target: crop left and right.
		cropW := int(math.Round(float64(h) * ratio))
		x := src.Min.X + (w-cropW)/2
		return image.Rect(x, src.Min.Y, x+cropW, src.Max.Y)
	}

	// Taller than target: crop top and bottom.
	cropH := int(math.Round(float64(w) / ratio))
	y := src.Min.Y + (h-cropH)/2
	return image.Rect(src.Min.X, y, src.Max.X, y+cropH)
}
