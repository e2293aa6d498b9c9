package cv

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/tbscout/scout/internal/logging"
)

// Options configures the matcher.
type Options struct {
	// MaxFrameDimension is the size ceiling: frames larger than this on
	// either axis are uniformly downscaled (together with every template)
	// before correlating, and coordinates rescaled back afterwards.
	MaxFrameDimension int

	// MaxMatchesPerTemplate caps raw hits retained per template (by score)
	// to bound downstream grouping cost on repetitive textures.
	MaxMatchesPerTemplate int

	// MinTemplateSize is the floor below which a (post-scaling) template is
	// too small to correlate reliably and is skipped.
	MinTemplateSize int
}

// DefaultOptions returns the recommended matcher settings.
func DefaultOptions() Options {
	return Options{
		MaxFrameDimension:     2000,
		MaxMatchesPerTemplate: 100,
		MinTemplateSize:       8,
	}
}

// Matcher runs normalized cross-correlation of templates against frames.
// FindMatches is a pure function of its inputs: the same frame, templates
// and threshold always produce the same result.
type Matcher struct {
	opts Options
	log  *logging.Logger
}

// NewMatcher creates a matcher. A nil logger gets a default one.
func NewMatcher(opts Options, log *logging.Logger) *Matcher {
	if opts.MaxFrameDimension <= 0 {
		opts.MaxFrameDimension = 2000
	}
	if opts.MaxMatchesPerTemplate <= 0 {
		opts.MaxMatchesPerTemplate = 100
	}
	if opts.MinTemplateSize <= 0 {
		opts.MinTemplateSize = 8
	}
	if log == nil {
		log = logging.NewLogger("cv")
	}
	return &Matcher{opts: opts, log: log}
}

// FindMatches correlates every template against the frame and returns the
// unsuppressed hits across all templates.
//
// threshold is the caller's confidence threshold; a template's own Threshold
// overrides it when set. floor, when positive, is a lower bound applied on
// top of either (used to raise strictness while the tracked window moves).
// An unreadable (nil or empty) frame yields an empty result, not an error.
func (m *Matcher) FindMatches(frame *image.Gray, templates []Template, threshold, floor float64) []RawMatch {
	if frame == nil {
		return nil
	}
	fb := frame.Bounds()
	if fb.Dx() <= 0 || fb.Dy() <= 0 {
		return nil
	}

	factor := downscaleFactor(fb.Dx(), fb.Dy(), m.opts.MaxFrameDimension)
	scaledFrame := scaleGray(frame, factor)

	var all []RawMatch
	for _, t := range templates {
		eff := threshold
		if t.Threshold > 0 {
			eff = t.Threshold
		}
		if floor > eff {
			eff = floor
		}
		if eff > 1 {
			eff = 1
		}

		hits, err := m.matchTemplate(scaledFrame, t, factor, eff)
		if err != nil {
			m.log.WarnWithContext("skipping template", map[string]interface{}{
				"template": t.Name,
				"reason":   err.Error(),
			})
			continue
		}
		all = append(all, hits...)
	}

	return all
}

// matchTemplate correlates one template against the (already scaled) frame
// and returns its suppressed, coordinate-rescaled hits.
func (m *Matcher) matchTemplate(frame *image.Gray, t Template, factor, threshold float64) ([]RawMatch, error) {
	if t.Gray == nil {
		return nil, fmt.Errorf("template has no pixel data")
	}

	tpl := scaleGray(t.Gray, factor)
	tb := tpl.Bounds()
	fb := frame.Bounds()
	tw, th := tb.Dx(), tb.Dy()

	if tw < m.opts.MinTemplateSize || th < m.opts.MinTemplateSize {
		return nil, fmt.Errorf("template %dx%d below %dpx floor after scaling", tw, th, m.opts.MinTemplateSize)
	}
	if tw > fb.Dx() || th > fb.Dy() {
		return nil, fmt.Errorf("template %dx%d larger than frame %dx%d", tw, th, fb.Dx(), fb.Dy())
	}

	hits := correlate(frame, tpl, t.Name, threshold)

	// Highest-confidence hits first; stable so equal scores keep scan order.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Confidence > hits[j].Confidence
	})
	if len(hits) > m.opts.MaxMatchesPerTemplate {
		hits = hits[:m.opts.MaxMatchesPerTemplate]
	}

	hits = suppressOverlaps(hits)

	// Map coordinates back to original frame space and restore the
	// template's true dimensions.
	for i := range hits {
		hits[i].X = unscale(hits[i].X, factor)
		hits[i].Y = unscale(hits[i].Y, factor)
		hits[i].Width = t.Width
		hits[i].Height = t.Height
	}

	return hits, nil
}

// correlate computes the normalized cross-correlation score surface and
// returns every location scoring at or above threshold. Confidence is the
// raw correlation coefficient clamped to [0,1].
func correlate(frame, tpl *image.Gray, name string, threshold float64) []RawMatch {
	fb := frame.Bounds()
	tb := tpl.Bounds()
	tw, th := tb.Dx(), tb.Dy()
	fw, fh := fb.Dx(), fb.Dy()
	n := float64(tw * th)

	// Template statistics are position-independent; compute them once.
	var sumN, sumNN float64
	for y := 0; y < th; y++ {
		row := tpl.Pix[y*tpl.Stride : y*tpl.Stride+tw]
		for x := 0; x < tw; x++ {
			v := float64(row[x])
			sumN += v
			sumNN += v * v
		}
	}
	denomN := math.Sqrt(sumNN - sumN*sumN/n)
	if denomN == 0 {
		// Flat template correlates with nothing meaningfully.
		return nil
	}

	var hits []RawMatch
	for oy := 0; oy <= fh-th; oy++ {
		for ox := 0; ox <= fw-tw; ox++ {
			var sumH, sumHH, sumHN float64
			for y := 0; y < th; y++ {
				frow := frame.Pix[(oy+y)*frame.Stride+ox : (oy+y)*frame.Stride+ox+tw]
				trow := tpl.Pix[y*tpl.Stride : y*tpl.Stride+tw]
				for x := 0; x < tw; x++ {
					h := float64(frow[x])
					sumH += h
					sumHH += h * h
					sumHN += h * float64(trow[x])
				}
			}

			denomH := math.Sqrt(sumHH - sumH*sumH/n)
			if denomH == 0 {
				continue
			}

			corr := (sumHN - sumH*sumN/n) / (denomH * denomN)
			if corr > 1 {
				corr = 1
			}
			if corr < 0 {
				corr = 0
			}

			if corr >= threshold {
				hits = append(hits, RawMatch{
					TemplateName: name,
					X:            ox,
					Y:            oy,
					Width:        tw,
					Height:       th,
					Confidence:   corr,
				})
			}
		}
	}

	return hits
}

// suppressOverlaps drops a hit whose bounding box intersects an
// already-accepted, higher-confidence hit of the same template. Input must
// be sorted by confidence descending.
func suppressOverlaps(hits []RawMatch) []RawMatch {
	if len(hits) <= 1 {
		return hits
	}

	accepted := hits[:0]
	for _, h := range hits {
		overlaps := false
		for _, a := range accepted {
			if h.Rect().Overlaps(a.Rect()) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, h)
		}
	}
	return accepted
}
