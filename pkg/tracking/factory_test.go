package tracking

import (
	"image"
	"testing"

	"github.com/teslashibe/go-putt/pkg/geom"
)

func TestNew(t *testing.T) {
	loc := LocatorFunc(func(Frame, image.Rectangle, geom.Point, float64) (Observation, bool) {
		return Observation{}, false
	})
	boxes := func(Kind) (BoxTracker, error) { return &mockBoxTracker{}, nil }

	tests := []struct {
		name     string
		kind     Kind
		backends Backends
		wantErr  bool
		wantType string
	}{
		{"color", KindColor, Backends{Locator: loc}, false, "color"},
		{"csrt", KindCSRT, Backends{BoxTrackers: boxes}, false, "external"},
		{"kcf", KindKCF, Backends{BoxTrackers: boxes}, false, "external"},
		{"mil", KindMIL, Backends{BoxTrackers: boxes}, false, "external"},
		{"mosse", KindMOSSE, Backends{BoxTrackers: boxes}, false, "external"},
		{"unknown kind", Kind("goturn"), Backends{Locator: loc, BoxTrackers: boxes}, true, ""},
		{"color without locator", KindColor, Backends{BoxTrackers: boxes}, true, ""},
		{"csrt without factory", KindCSRT, Backends{Locator: loc}, true, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Kind = tc.kind
			tr, err := New(cfg, tc.backends)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("New(%q): expected error", tc.kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q): %v", tc.kind, err)
			}
			switch tr.(type) {
			case *ColorTracker:
				if tc.wantType != "color" {
					t.Errorf("New(%q): got ColorTracker", tc.kind)
				}
			case *ExternalTracker:
				if tc.wantType != "external" {
					t.Errorf("New(%q): got ExternalTracker", tc.kind)
				}
			default:
				t.Errorf("New(%q): unexpected type %T", tc.kind, tr)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"color", "CSRT", " kcf ", "mil", "Mosse"} {
		if _, err := ParseKind(s); err != nil {
			t.Errorf("ParseKind(%q): %v", s, err)
		}
	}
	if _, err := ParseKind("boosting"); err == nil {
		t.Error("ParseKind(boosting): expected error")
	}
}

func TestPreset(t *testing.T) {
	tests := []struct {
		name string
		want Config
	}{
		{"", DefaultConfig()},
		{"default", DefaultConfig()},
		{"Steady", SteadyConfig()},
		{" aggressive ", AggressiveConfig()},
	}
	for _, tt := range tests {
		got, err := Preset(tt.name)
		if err != nil {
			t.Errorf("Preset(%q): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Preset(%q) = %+v, want %+v", tt.name, got, tt.want)
		}
	}
	if _, err := Preset("twitchy"); err == nil {
		t.Error("Preset(twitchy): expected error")
	}
}

func TestConfigPresets_Valid(t *testing.T) {
	configs := []struct {
		name string
		cfg  Config
	}{
		{"Default", DefaultConfig()},
		{"Steady", SteadyConfig()},
		{"Aggressive", AggressiveConfig()},
	}

	for _, tc := range configs {
		if errs := tc.cfg.Validate(); len(errs) > 0 {
			t.Errorf("%s: %v", tc.name, errs)
		}
	}

	cfg := DefaultConfig()
	if cfg.Alpha != 0.6 || cfg.SearchMargin != 80 || cfg.RadiusSmoothing != 0.3 {
		t.Errorf("DefaultConfig drifted: %+v", cfg)
	}

	bad := Config{Kind: "x", Alpha: 0, RadiusSmoothing: 2, SearchMargin: 0, MaxMissedFrames: -1}
	if errs := bad.Validate(); len(errs) != 7 {
		t.Errorf("Validate: expected 7 problems, got %d: %v", len(errs), errs)
	}
}
