package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tbscout/scout/internal/config"
	"github.com/tbscout/scout/internal/cv"
	"github.com/tbscout/scout/internal/engine"
	"github.com/tbscout/scout/internal/events"
	"github.com/tbscout/scout/internal/history"
	"github.com/tbscout/scout/internal/logging"
	"github.com/tbscout/scout/internal/templates"
	"github.com/tbscout/scout/internal/tracker"
	"github.com/tbscout/scout/internal/window"
)

func main() {
	configPath := flag.String("config", "Settings.ini", "Path to settings file")
	title := flag.String("title", "", "Tracked window title substring (overrides config)")
	templatesDir := flag.String("templates", "", "Templates directory (overrides config)")
	flag.Parse()

	if err := run(*configPath, *title, *templatesDir); err != nil {
		fmt.Fprintf(os.Stderr, "scout: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, titleOverride, templatesOverride string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if titleOverride != "" {
		cfg.WindowTitle = titleOverride
	}
	if templatesOverride != "" {
		cfg.TemplatesDir = templatesOverride
	}
	if cfg.WindowTitle == "" {
		return fmt.Errorf("no window title configured; set [Window] title or pass -title")
	}

	log := logging.NewLogger("scout").SetMinLevel(logging.ParseLevel(cfg.LogLevel))

	store := templates.NewStore(log.Named("templates"))
	count, err := store.Load(cfg.TemplatesDir)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	if count == 0 {
		log.Warnf("no templates found in %s", cfg.TemplatesDir)
	}

	opts := cv.DefaultOptions()
	opts.MaxFrameDimension = cfg.MaxFrameDimension
	opts.MaxMatchesPerTemplate = cfg.MaxMatchesPerTemplate
	matcher := cv.NewMatcher(opts, log.Named("cv"))

	tracked := tracker.NewTracker(cfg.MatchPersistence, cfg.DistanceThreshold, log.Named("tracker"))
	coords := window.NewCoordinateTracker(window.NewLocator(), cfg.WindowTitle, cfg.MoveCooldown, log.Named("window"))
	source := newFrameSource(coords)

	bus := events.NewBus(64, log.Named("events"))
	defer bus.Stop()

	var recorder engine.CycleRecorder
	if cfg.HistoryEnabled {
		rec, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer rec.Close()
		recorder = rec
		log.Infof("recording detection history to %s", rec.Path())
	}

	// Console presentation: log each tracked-match update.
	bus.Subscribe(events.EventTypeMatchUpdated, func(ev events.Event) {
		log.InfoWithContext("matches updated", ev.Data)
	})
	bus.Subscribe(events.EventTypeWindowLost, func(events.Event) {
		log.Warnf("window %q lost, waiting for it to reappear", cfg.WindowTitle)
	})

	eng := engine.New(cfg, store, matcher, tracked, coords, source, bus, recorder, log.Named("engine"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("tracking %q with %d templates", cfg.WindowTitle, count)
	eng.Run(ctx)
	return nil
}

// loadConfig reads the settings file, falling back to defaults when it does
// not exist yet.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.LoadFromINI(path)
}
