package tracker

import (
	"fmt"

	"github.com/tbscout/scout/internal/cv"
	"github.com/tbscout/scout/internal/logging"
)

// MatchGroup is a spatial cluster of raw matches considered the same logical
// on-screen element. Grouping is cross-template: two raw matches with
// different template names but overlapping position are one detection.
type MatchGroup struct {
	Representative cv.RawMatch
	MemberCount    int
}

// GroupKey derives the coarse grid cell key for a top-left corner. The grid
// cell rule is intentional: O(1) key lookup instead of pairwise clustering,
// at the cost of occasionally splitting an element that straddles a grid
// boundary. Keyed from the top-left corner, not the center.
func GroupKey(x, y, distanceThreshold int) string {
	if distanceThreshold <= 0 {
		distanceThreshold = 1
	}
	return fmt.Sprintf("pos_%d_%d", floorDiv(x, distanceThreshold), floorDiv(y, distanceThreshold))
}

// floorDiv is integer division rounding toward negative infinity, so
// negative coordinates (window partially off-screen) still map to a stable
// cell.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Group clusters raw matches by grid cell. Within a bucket the
// highest-confidence match becomes the representative; confidence ties keep
// first-seen order. Bucket order follows first appearance in the input, so
// grouping is deterministic.
func Group(raw []cv.RawMatch, distanceThreshold int, log *logging.Logger) []MatchGroup {
	if len(raw) == 0 {
		return nil
	}
	if distanceThreshold <= 0 {
		if log != nil {
			log.Warnf("invalid distance threshold %d, clamping to 1", distanceThreshold)
		}
		distanceThreshold = 1
	}

	index := make(map[string]int)
	var groups []MatchGroup

	for _, m := range raw {
		if m.Width <= 0 || m.Height <= 0 {
			if log != nil {
				log.WarnWithContext("rejecting raw match with invalid dimensions", map[string]interface{}{
					"template": m.TemplateName,
					"width":    m.Width,
					"height":   m.Height,
				})
			}
			continue
		}

		key := GroupKey(m.X, m.Y, distanceThreshold)
		if i, ok := index[key]; ok {
			groups[i].MemberCount++
			if m.Confidence > groups[i].Representative.Confidence {
				groups[i].Representative = m
			}
			continue
		}

		index[key] = len(groups)
		groups = append(groups, MatchGroup{Representative: m, MemberCount: 1})
	}

	return groups
}
