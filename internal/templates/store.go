package templates

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "image/png" // template bitmaps are PNG files

	"github.com/tbscout/scout/internal/cv"
	"github.com/tbscout/scout/internal/logging"
)

// Store loads named template bitmaps from a directory and exposes them by
// filename stem. The in-memory map is replaced atomically on (re)load, so a
// reload never leaves a half-populated store visible to concurrent readers.
type Store struct {
	mu        sync.RWMutex
	dir       string
	templates map[string]cv.Template
	log       *logging.Logger
}

// NewStore creates an empty template store.
func NewStore(log *logging.Logger) *Store {
	if log == nil {
		log = logging.NewLogger("templates")
	}
	return &Store{
		templates: make(map[string]cv.Template),
		log:       log,
	}
}

// Load enumerates PNG files in dir, decodes each to grayscale and stores it
// under its filename stem. Undecodable files are logged and skipped; the
// call fails only when the directory itself is missing or unreadable.
// Returns the number of templates loaded.
func (s *Store) Load(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read templates directory %s: %w", dir, err)
	}

	overrides := s.loadManifest(dir)

	loaded := make(map[string]cv.Template)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		tpl, err := decodeTemplate(path)
		if err != nil {
			s.log.WarnWithContext("skipping template file", map[string]interface{}{
				"file":  entry.Name(),
				"error": err.Error(),
			})
			continue
		}

		if th, ok := overrides[tpl.Name]; ok {
			tpl.Threshold = th
		}
		loaded[tpl.Name] = tpl
	}

	// Swap the whole map only after every file is decoded or skipped.
	s.mu.Lock()
	s.dir = dir
	s.templates = loaded
	s.mu.Unlock()

	s.log.Infof("loaded %d templates from %s", len(loaded), dir)
	return len(loaded), nil
}

// Reload re-runs Load against the last known directory.
func (s *Store) Reload() (int, error) {
	s.mu.RLock()
	dir := s.dir
	s.mu.RUnlock()

	if dir == "" {
		return 0, fmt.Errorf("no templates directory loaded yet")
	}
	return s.Load(dir)
}

// Get retrieves a template by name.
func (s *Store) Get(name string) (cv.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[name]
	return tpl, ok
}

// All returns every loaded template, ordered by name for deterministic
// matching passes.
func (s *Store) All() []cv.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]cv.Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of loaded templates.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}

// Threshold resolves the effective confidence threshold for a template:
// its manifest override when set, otherwise fallback.
func (s *Store) Threshold(name string, fallback float64) float64 {
	if tpl, ok := s.Get(name); ok && tpl.Threshold > 0 {
		return tpl.Threshold
	}
	return fallback
}

func decodeTemplate(path string) (cv.Template, error) {
	file, err := os.Open(path)
	if err != nil {
		return cv.Template{}, fmt.Errorf("failed to open: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return cv.Template{}, fmt.Errorf("failed to decode: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return cv.NewTemplate(name, img), nil
}
