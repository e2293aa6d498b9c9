package cv

import (
	"image"
	"image/color"
	"reflect"
	"testing"
)

// noisePattern builds a deterministic pseudo-random grayscale image. Noise
// correlates near 1.0 only against an exact copy of itself, which makes
// planted-template tests sharp.
func noisePattern(w, h int, seed uint32) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	s := seed
	for i := range img.Pix {
		s = s*1664525 + 1013904223
		img.Pix[i] = uint8(s >> 24)
	}
	return img
}

// plant copies tpl into frame with its top-left corner at (x, y).
func plant(frame, tpl *image.Gray, x, y int) {
	b := tpl.Bounds()
	for ty := 0; ty < b.Dy(); ty++ {
		for tx := 0; tx < b.Dx(); tx++ {
			frame.SetGray(x+tx, y+ty, tpl.GrayAt(b.Min.X+tx, b.Min.Y+ty))
		}
	}
}

func TestFindMatchesPlantedTemplate(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 100, 100))
	tplImg := noisePattern(20, 20, 7)
	plant(frame, tplImg, 40, 40)

	m := NewMatcher(DefaultOptions(), nil)
	tpl := NewTemplate("target", tplImg)

	matches := m.FindMatches(frame, []Template{tpl}, 0.9, 0)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want exactly 1: %+v", len(matches), matches)
	}

	got := matches[0]
	if got.TemplateName != "target" {
		t.Errorf("template name = %q, want %q", got.TemplateName, "target")
	}
	if got.X != 40 || got.Y != 40 {
		t.Errorf("match at (%d, %d), want (40, 40)", got.X, got.Y)
	}
	if got.Width != 20 || got.Height != 20 {
		t.Errorf("match size %dx%d, want 20x20", got.Width, got.Height)
	}
	if got.Confidence < 0.99 {
		t.Errorf("confidence = %.4f, want ~1.0", got.Confidence)
	}
}

func TestFindMatchesDeterministic(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 120, 80))
	a := noisePattern(16, 16, 3)
	b := noisePattern(16, 16, 11)
	plant(frame, a, 10, 10)
	plant(frame, b, 70, 40)

	m := NewMatcher(DefaultOptions(), nil)
	templates := []Template{NewTemplate("a", a), NewTemplate("b", b)}

	first := m.FindMatches(frame, templates, 0.8, 0)
	second := m.FindMatches(frame, templates, 0.8, 0)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated calls disagree:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if len(first) != 2 {
		t.Errorf("got %d matches, want 2", len(first))
	}
}

func TestFindMatchesThresholdMonotonic(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 100, 100))
	tplImg := noisePattern(20, 20, 5)
	plant(frame, tplImg, 30, 30)

	// Degrade a second copy so it scores below the exact one.
	degraded := noisePattern(20, 20, 5)
	for i := 0; i < len(degraded.Pix); i += 3 {
		degraded.Pix[i] = 255 - degraded.Pix[i]
	}
	plant(frame, degraded, 70, 70)

	m := NewMatcher(DefaultOptions(), nil)
	templates := []Template{NewTemplate("t", tplImg)}

	thresholds := []float64{0.3, 0.6, 0.9, 0.99}
	prev := -1
	for i := len(thresholds) - 1; i >= 0; i-- {
		n := len(m.FindMatches(frame, templates, thresholds[i], 0))
		if prev >= 0 && n < prev {
			t.Errorf("count at threshold %.2f = %d, less than count %d at a higher threshold", thresholds[i], n, prev)
		}
		prev = n
	}
}

func TestFindMatchesFloorRaisesThreshold(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 100, 100))
	tplImg := noisePattern(20, 20, 9)

	// A degraded copy yields a confidence strictly between the loose and
	// strict thresholds.
	degraded := noisePattern(20, 20, 9)
	for i := 0; i < len(degraded.Pix); i += 4 {
		degraded.Pix[i] = 255 - degraded.Pix[i]
	}
	plant(frame, degraded, 40, 40)

	m := NewMatcher(DefaultOptions(), nil)
	templates := []Template{NewTemplate("t", tplImg)}

	loose := m.FindMatches(frame, templates, 0.1, 0)
	if len(loose) == 0 {
		t.Fatal("degraded copy not found even at threshold 0.1")
	}
	conf := loose[0].Confidence
	if conf >= 0.99 {
		t.Fatalf("degraded copy scored %.4f, expected well below 1.0", conf)
	}

	strict := m.FindMatches(frame, templates, 0.1, conf+0.005)
	for _, sm := range strict {
		if sm.X == loose[0].X && sm.Y == loose[0].Y {
			t.Errorf("floor %.4f did not suppress match with confidence %.4f", conf+0.005, sm.Confidence)
		}
	}
}

func TestFindMatchesPerTemplateThreshold(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 100, 100))
	degraded := noisePattern(20, 20, 13)
	original := noisePattern(20, 20, 13)
	for i := 0; i < len(degraded.Pix); i += 4 {
		degraded.Pix[i] = 255 - degraded.Pix[i]
	}
	plant(frame, degraded, 40, 40)

	m := NewMatcher(DefaultOptions(), nil)

	tpl := NewTemplate("t", original)
	loose := m.FindMatches(frame, []Template{tpl}, 0.1, 0)
	if len(loose) == 0 {
		t.Fatal("degraded copy not found at threshold 0.1")
	}

	// The template's own threshold overrides the caller's.
	tpl.Threshold = loose[0].Confidence + 0.005
	if got := m.FindMatches(frame, []Template{tpl}, 0.1, 0); len(got) != 0 {
		t.Errorf("per-template threshold %.4f not applied, got %d matches", tpl.Threshold, len(got))
	}
}

func TestFindMatchesSkipsUnusableTemplates(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 50, 50))
	ok := noisePattern(16, 16, 21)
	plant(frame, ok, 10, 10)

	tests := []struct {
		name string
		tpl  Template
	}{
		{"larger than frame", NewTemplate("big", noisePattern(60, 60, 1))},
		{"below size floor", NewTemplate("tiny", noisePattern(4, 4, 2))},
		{"no pixel data", Template{Name: "empty", Width: 10, Height: 10}},
	}

	m := NewMatcher(DefaultOptions(), nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// The unusable template is skipped; the good one still matches.
			matches := m.FindMatches(frame, []Template{tc.tpl, NewTemplate("ok", ok)}, 0.9, 0)
			if len(matches) != 1 || matches[0].TemplateName != "ok" {
				t.Errorf("got %+v, want single match for %q", matches, "ok")
			}
		})
	}
}

func TestFindMatchesNilAndEmptyFrame(t *testing.T) {
	m := NewMatcher(DefaultOptions(), nil)
	templates := []Template{NewTemplate("t", noisePattern(16, 16, 1))}

	if got := m.FindMatches(nil, templates, 0.5, 0); got != nil {
		t.Errorf("nil frame: got %+v, want nil", got)
	}
	if got := m.FindMatches(image.NewGray(image.Rectangle{}), templates, 0.5, 0); got != nil {
		t.Errorf("empty frame: got %+v, want nil", got)
	}
}

func TestFindMatchesDownscalesLargeFrames(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 200, 200))
	tplImg := noisePattern(40, 40, 17)
	plant(frame, tplImg, 80, 80)

	opts := DefaultOptions()
	opts.MaxFrameDimension = 100 // forces factor 0.5
	m := NewMatcher(opts, nil)

	matches := m.FindMatches(frame, []Template{NewTemplate("t", tplImg)}, 0.6, 0)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}

	got := matches[0]
	if got.X < 76 || got.X > 84 || got.Y < 76 || got.Y > 84 {
		t.Errorf("match at (%d, %d), want near (80, 80)", got.X, got.Y)
	}
	// Dimensions report the template's true size, not the scaled one.
	if got.Width != 40 || got.Height != 40 {
		t.Errorf("match size %dx%d, want 40x40", got.Width, got.Height)
	}
}

func TestSuppressOverlapsKeepsStrongest(t *testing.T) {
	// Sorted by confidence descending, as matchTemplate guarantees.
	hits := []RawMatch{
		{TemplateName: "t", X: 10, Y: 10, Width: 20, Height: 20, Confidence: 0.95},
		{TemplateName: "t", X: 12, Y: 11, Width: 20, Height: 20, Confidence: 0.90}, // overlaps first
		{TemplateName: "t", X: 60, Y: 10, Width: 20, Height: 20, Confidence: 0.85}, // clear
		{TemplateName: "t", X: 62, Y: 12, Width: 20, Height: 20, Confidence: 0.80}, // overlaps third
	}

	got := suppressOverlaps(hits)
	if len(got) != 2 {
		t.Fatalf("got %d hits, want 2: %+v", len(got), got)
	}
	if got[0].Confidence != 0.95 || got[1].Confidence != 0.85 {
		t.Errorf("kept confidences %.2f, %.2f; want 0.95, 0.85", got[0].Confidence, got[1].Confidence)
	}
}

func TestFlatTemplateNeverMatches(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 50, 50))
	flat := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range flat.Pix {
		flat.Pix[i] = 128
	}
	plant(frame, flat, 10, 10)

	m := NewMatcher(DefaultOptions(), nil)
	if got := m.FindMatches(frame, []Template{NewTemplate("flat", flat)}, 0.1, 0); len(got) != 0 {
		t.Errorf("flat template produced %d matches, want 0", len(got))
	}
}

func TestToGrayLuminance(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 2, 1))
	rgba.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	rgba.SetRGBA(1, 0, color.RGBA{R: 0, G: 0, B: 0, A: 255})

	gray := ToGray(rgba)
	if gray.GrayAt(0, 0).Y < 250 {
		t.Errorf("white converted to %d, want ~255", gray.GrayAt(0, 0).Y)
	}
	if gray.GrayAt(1, 0).Y > 5 {
		t.Errorf("black converted to %d, want ~0", gray.GrayAt(1, 0).Y)
	}

	// Already-gray input passes through unchanged.
	g := noisePattern(4, 4, 1)
	if out := ToGray(g); out != g {
		t.Error("ToGray re-allocated an already grayscale image")
	}
}
