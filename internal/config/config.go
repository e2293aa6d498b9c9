package config

import (
	"fmt"
	"time"

	"gopkg.in/ini.v1"
)

// Config holds every runtime setting. The engine treats it as immutable for
// the duration of a tick; edits take effect on the next tick.
type Config struct {
	// Window
	WindowTitle  string
	MoveCooldown time.Duration

	// Detection
	TemplatesDir          string
	ConfidenceThreshold   float64
	StrictThreshold       float64
	TargetFrequency       float64 // detection passes per second
	MaxFrameDimension     int
	MaxMatchesPerTemplate int

	// Tracking
	MatchPersistence  int
	DistanceThreshold int
	CoordFrequency    float64 // coordinate polls per second at rest
	CoordFastFreq     float64 // coordinate polls per second while moving

	// History
	HistoryEnabled bool
	HistoryPath    string

	// Logging
	LogLevel string
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		WindowTitle:  "",
		MoveCooldown: time.Second,

		TemplatesDir:          "templates",
		ConfidenceThreshold:   0.8,
		StrictThreshold:       0.85,
		TargetFrequency:       1.0,
		MaxFrameDimension:     2000,
		MaxMatchesPerTemplate: 100,

		MatchPersistence:  1,
		DistanceThreshold: 50,
		CoordFrequency:    5.0,
		CoordFastFreq:     20.0,

		HistoryEnabled: false,
		HistoryPath:    "scout.db",

		LogLevel: "info",
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %.2f out of range (0, 1]", c.ConfidenceThreshold)
	}
	if c.StrictThreshold < c.ConfidenceThreshold || c.StrictThreshold > 1 {
		return fmt.Errorf("strict threshold %.2f must be in [confidence threshold, 1]", c.StrictThreshold)
	}
	if c.TargetFrequency <= 0 {
		return fmt.Errorf("target frequency %.2f must be positive", c.TargetFrequency)
	}
	if c.MatchPersistence < 0 {
		return fmt.Errorf("match persistence %d must be non-negative", c.MatchPersistence)
	}
	if c.DistanceThreshold <= 0 {
		return fmt.Errorf("distance threshold %d must be positive", c.DistanceThreshold)
	}
	if c.TemplatesDir == "" {
		return fmt.Errorf("templates directory is required")
	}
	return nil
}

// LoadFromINI loads Settings.ini, filling missing keys with defaults.
func LoadFromINI(path string) (*Config, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	def := Default()
	c := &Config{}

	window := cfg.Section("Window")
	c.WindowTitle = window.Key("title").MustString(def.WindowTitle)
	c.MoveCooldown = time.Duration(window.Key("moveCooldownSeconds").MustFloat64(def.MoveCooldown.Seconds()) * float64(time.Second))

	detection := cfg.Section("Detection")
	c.TemplatesDir = detection.Key("templatesDir").MustString(def.TemplatesDir)
	c.ConfidenceThreshold = detection.Key("confidenceThreshold").MustFloat64(def.ConfidenceThreshold)
	c.StrictThreshold = detection.Key("strictThreshold").MustFloat64(def.StrictThreshold)
	c.TargetFrequency = detection.Key("targetFrequency").MustFloat64(def.TargetFrequency)
	c.MaxFrameDimension = detection.Key("maxFrameDimension").MustInt(def.MaxFrameDimension)
	c.MaxMatchesPerTemplate = detection.Key("maxMatchesPerTemplate").MustInt(def.MaxMatchesPerTemplate)

	tracking := cfg.Section("Tracking")
	c.MatchPersistence = tracking.Key("matchPersistence").MustInt(def.MatchPersistence)
	c.DistanceThreshold = tracking.Key("distanceThreshold").MustInt(def.DistanceThreshold)
	c.CoordFrequency = tracking.Key("coordFrequency").MustFloat64(def.CoordFrequency)
	c.CoordFastFreq = tracking.Key("coordFastFrequency").MustFloat64(def.CoordFastFreq)

	history := cfg.Section("History")
	c.HistoryEnabled = history.Key("enabled").MustBool(def.HistoryEnabled)
	c.HistoryPath = history.Key("path").MustString(def.HistoryPath)

	logging := cfg.Section("Logging")
	c.LogLevel = logging.Key("level").MustString(def.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return c, nil
}

// SaveToINI writes the configuration back to Settings.ini.
func (c *Config) SaveToINI(path string) error {
	cfg := ini.Empty()

	window := cfg.Section("Window")
	window.Key("title").SetValue(c.WindowTitle)
	window.Key("moveCooldownSeconds").SetValue(fmt.Sprintf("%.2f", c.MoveCooldown.Seconds()))

	detection := cfg.Section("Detection")
	detection.Key("templatesDir").SetValue(c.TemplatesDir)
	detection.Key("confidenceThreshold").SetValue(fmt.Sprintf("%.2f", c.ConfidenceThreshold))
	detection.Key("strictThreshold").SetValue(fmt.Sprintf("%.2f", c.StrictThreshold))
	detection.Key("targetFrequency").SetValue(fmt.Sprintf("%.2f", c.TargetFrequency))
	detection.Key("maxFrameDimension").SetValue(fmt.Sprintf("%d", c.MaxFrameDimension))
	detection.Key("maxMatchesPerTemplate").SetValue(fmt.Sprintf("%d", c.MaxMatchesPerTemplate))

	tracking := cfg.Section("Tracking")
	tracking.Key("matchPersistence").SetValue(fmt.Sprintf("%d", c.MatchPersistence))
	tracking.Key("distanceThreshold").SetValue(fmt.Sprintf("%d", c.DistanceThreshold))
	tracking.Key("coordFrequency").SetValue(fmt.Sprintf("%.2f", c.CoordFrequency))
	tracking.Key("coordFastFrequency").SetValue(fmt.Sprintf("%.2f", c.CoordFastFreq))

	history := cfg.Section("History")
	history.Key("enabled").SetValue(fmt.Sprintf("%t", c.HistoryEnabled))
	history.Key("path").SetValue(c.HistoryPath)

	logging := cfg.Section("Logging")
	logging.Key("level").SetValue(c.LogLevel)

	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}
