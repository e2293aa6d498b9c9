package cv

import "image"

// ToGray converts an image to 8-bit grayscale. Matching is grayscale-only
// for speed and lighting tolerance; a *image.Gray input is returned as-is.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}

	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	if rgba, ok := img.(*image.RGBA); ok {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			src := rgba.Pix[(y-bounds.Min.Y)*rgba.Stride:]
			dst := gray.Pix[(y-bounds.Min.Y)*gray.Stride:]
			for x := 0; x < bounds.Dx(); x++ {
				r := src[x*4]
				g := src[x*4+1]
				b := src[x*4+2]
				// Luminance formula
				dst[x] = uint8((int(r)*299 + int(g)*587 + int(b)*114) / 1000)
			}
		}
		return gray
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			v := (int(r>>8)*299 + int(g>>8)*587 + int(b>>8)*114) / 1000
			gray.Pix[(y-bounds.Min.Y)*gray.Stride+(x-bounds.Min.X)] = uint8(v)
		}
	}

	return gray
}
