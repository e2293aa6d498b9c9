package templates

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestName is the optional per-directory manifest carrying template
// settings that cannot be expressed in the bitmap itself.
const ManifestName = "thresholds.yaml"

// manifestEntry is one template's settings in the manifest.
type manifestEntry struct {
	Name      string  `yaml:"name"`
	Threshold float64 `yaml:"threshold"`
}

// manifestFile is the structure of thresholds.yaml.
type manifestFile struct {
	Templates []manifestEntry `yaml:"templates"`
}

// loadManifest reads per-template confidence overrides from the directory's
// manifest. A missing manifest is normal; an unparsable one is logged and
// ignored so template loading still succeeds.
func (s *Store) loadManifest(dir string) map[string]float64 {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WarnWithContext("cannot read template manifest", map[string]interface{}{
				"file":  path,
				"error": err.Error(),
			})
		}
		return nil
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		s.log.WarnWithContext("ignoring malformed template manifest", map[string]interface{}{
			"file":  path,
			"error": err.Error(),
		})
		return nil
	}

	overrides := make(map[string]float64, len(mf.Templates))
	for _, entry := range mf.Templates {
		if entry.Name == "" || entry.Threshold <= 0 || entry.Threshold > 1 {
			continue
		}
		overrides[entry.Name] = entry.Threshold
	}
	return overrides
}
