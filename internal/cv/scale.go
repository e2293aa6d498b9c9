package cv

import (
	"image"
	"math"

	"github.com/nfnt/resize"
)

// downscaleFactor returns the uniform factor (<= 1.0) that brings both frame
// dimensions under maxDim, or 1.0 when no scaling is needed.
func downscaleFactor(width, height, maxDim int) float64 {
	if maxDim <= 0 || (width <= maxDim && height <= maxDim) {
		return 1.0
	}
	longest := width
	if height > longest {
		longest = height
	}
	return float64(maxDim) / float64(longest)
}

// scaleGray resizes a grayscale image by the given factor. Bilinear keeps
// correlation surfaces smooth; sub-pixel coordinate error proportional to the
// factor is accepted, not eliminated.
func scaleGray(img *image.Gray, factor float64) *image.Gray {
	if factor == 1.0 {
		return img
	}
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * factor))
	h := int(math.Round(float64(b.Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return ToGray(resize.Resize(uint(w), uint(h), img, resize.Bilinear))
}

// unscale maps a coordinate from scaled-frame space back to frame space.
func unscale(v int, factor float64) int {
	if factor == 1.0 {
		return v
	}
	return int(math.Round(float64(v) / factor))
}
