package tracker

import (
	"sort"
	"sync"

	"github.com/tbscout/scout/internal/cv"
	"github.com/tbscout/scout/internal/logging"
)

// Tier classifies a tracked match by its current confidence.
type Tier string

const (
	TierHigh   Tier = "high"   // >= 0.8
	TierMedium Tier = "medium" // >= 0.7
	TierLow    Tier = "low"    // >= 0.5

	// minTrackable is the floor below which a detection is never tracked,
	// regardless of template thresholds.
	minTrackable = 0.5
)

func tierFor(confidence float64) Tier {
	switch {
	case confidence >= 0.8:
		return TierHigh
	case confidence >= 0.7:
		return TierMedium
	default:
		return TierLow
	}
}

// TrackedMatch is one persistent detection carried across frames.
type TrackedMatch struct {
	GroupKey        string
	Current         cv.RawMatch
	MemberCount     int
	FramesSinceSeen int
	Tier            Tier
}

// Tracker carries detections across frames so a single missed frame does not
// flicker the result set. An entry absent from the current frame survives for
// up to persistence additional frames before it is dropped.
type Tracker struct {
	mu          sync.RWMutex
	persistence int
	distance    int
	entries     map[string]*TrackedMatch
	snapshot    []TrackedMatch
	log         *logging.Logger
}

// NewTracker creates a tracker. persistence is the number of consecutive
// frames an entry may go unseen before removal; distance is the grouping grid
// cell size in frame pixels.
func NewTracker(persistence, distance int, log *logging.Logger) *Tracker {
	if persistence < 0 {
		persistence = 0
	}
	if distance <= 0 {
		distance = 1
	}
	if log == nil {
		log = logging.NewLogger("tracker")
	}
	return &Tracker{
		persistence: persistence,
		distance:    distance,
		entries:     make(map[string]*TrackedMatch),
		log:         log,
	}
}

// Merge folds one frame's grouped detections into the tracked set and
// rebuilds the published snapshot. Groups below the trackable confidence
// floor are ignored. When two groups collapse onto the same key (grouping
// already prevents this within one call, but callers may merge pre-grouped
// sets), the higher-confidence one wins.
func (t *Tracker) Merge(groups []MatchGroup) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g.Representative.Confidence < minTrackable {
			continue
		}

		key := GroupKey(g.Representative.X, g.Representative.Y, t.distance)
		if seen[key] {
			if existing := t.entries[key]; existing != nil && g.Representative.Confidence <= existing.Current.Confidence {
				existing.MemberCount += g.MemberCount
				continue
			}
		}
		seen[key] = true

		entry, ok := t.entries[key]
		if !ok {
			entry = &TrackedMatch{GroupKey: key}
			t.entries[key] = entry
		}
		entry.Current = g.Representative
		entry.MemberCount = g.MemberCount
		entry.FramesSinceSeen = 0
		entry.Tier = tierFor(g.Representative.Confidence)
	}

	// Age everything that did not show up this frame.
	for key, entry := range t.entries {
		if seen[key] {
			continue
		}
		entry.FramesSinceSeen++
		if entry.FramesSinceSeen > t.persistence {
			delete(t.entries, key)
		}
	}

	t.rebuildSnapshotLocked()
}

// Snapshot returns the current tracked set. The slice is the published copy
// and must not be mutated by callers; it is replaced wholesale on each Merge.
func (t *Tracker) Snapshot() []TrackedMatch {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

// Len reports the number of currently tracked matches.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear drops every tracked match, used when the tracked window is lost.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*TrackedMatch)
	t.snapshot = nil
}

func (t *Tracker) rebuildSnapshotLocked() {
	snap := make([]TrackedMatch, 0, len(t.entries))
	for _, entry := range t.entries {
		snap = append(snap, *entry)
	}
	sort.Slice(snap, func(i, j int) bool { return snap[i].GroupKey < snap[j].GroupKey })
	t.snapshot = snap
}
