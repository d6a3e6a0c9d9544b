package tracking

import (
	"fmt"
	"log/slog"
)

// Backends supplies the pixel-level collaborators a tracker kind needs.
type Backends struct {
	// Locator is required for KindColor.
	Locator Locator
	// BoxTrackers is required for the external kinds.
	BoxTrackers BoxTrackerFactory
	Logger      *slog.Logger
}

// New creates the tracker selected by cfg.Kind.
func New(cfg Config, b Backends) (Tracker, error) {
	if _, err := ParseKind(string(cfg.Kind)); err != nil {
		return nil, err
	}
	if cfg.Kind.External() {
		t, err := NewExternalTracker(cfg, b.BoxTrackers, b.Logger)
		if err != nil {
			return nil, fmt.Errorf("new %s tracker: %w", cfg.Kind, err)
		}
		return t, nil
	}
	t, err := NewColorTracker(cfg, b.Locator, b.Logger)
	if err != nil {
		return nil, fmt.Errorf("new color tracker: %w", err)
	}
	return t, nil
}
