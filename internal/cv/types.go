package cv

import "image"

// Template is a grayscale reference bitmap searched for within frames.
// Templates are immutable once loaded; the store replaces them wholesale on
// reload.
type Template struct {
	Name   string
	Gray   *image.Gray
	Width  int
	Height int

	// Threshold is an optional per-template confidence override. Zero means
	// "use the caller's threshold".
	Threshold float64
}

// NewTemplate builds a Template from a decoded image, converting to
// grayscale if needed.
func NewTemplate(name string, img image.Image) Template {
	gray := ToGray(img)
	b := gray.Bounds()
	return Template{
		Name:   name,
		Gray:   gray,
		Width:  b.Dx(),
		Height: b.Dy(),
	}
}

// RawMatch is a single template-to-location correlation result above
// threshold. Coordinates are frame-relative pixels of the top-left corner.
// RawMatch values are created fresh each detection pass and never mutated.
type RawMatch struct {
	TemplateName string
	X            int
	Y            int
	Width        int
	Height       int
	Confidence   float64
}

// Rect returns the axis-aligned bounding box of the match.
func (m RawMatch) Rect() image.Rectangle {
	return image.Rect(m.X, m.Y, m.X+m.Width, m.Y+m.Height)
}

// Center returns the center point of the match.
func (m RawMatch) Center() image.Point {
	return image.Point{X: m.X + m.Width/2, Y: m.Y + m.Height/2}
}
