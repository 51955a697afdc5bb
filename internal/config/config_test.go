package config

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/rbdyn/internal/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != "pendulum" {
		t.Errorf("expected model pendulum, got %s", cfg.Model)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("pendulum", "small")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.InitState.Q[0] != 0.2 {
		t.Errorf("expected theta 0.2, got %f", cfg.InitState.Q[0])
	}
	if cfg.Method != "lagrangian" || cfg.Solver != "lu" {
		t.Errorf("expected defaults filled in, got method %q solver %q", cfg.Method, cfg.Solver)
	}

	cfg.InitState.Q[0] = 9
	if GetPreset("pendulum", "small").InitState.Q[0] != 0.2 {
		t.Error("expected presets to be copied")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	cfg := GetPreset("pendulum", "nonexistent")
	if cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}

	cfg = GetPreset("nonexistent", "small")
	if cfg != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("pendulum")
	expected := []string{"balance", "large", "small", "spinning"}
	if diff := cmp.Diff(expected, presets); diff != "" {
		t.Errorf("presets mismatch (-want +got):\n%s", diff)
	}

	presets = ListPresets("nonexistent")
	if presets != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestPresetsAreRunnable(t *testing.T) {
	for _, model := range Models() {
		for _, name := range ListPresets(model) {
			cfg := GetPreset(model, name)
			if err := cfg.Validate(); err != nil {
				t.Errorf("%s/%s: %v", model, name, err)
				continue
			}
			mc, err := models.New(cfg.Model, cfg.ModelParams())
			if err != nil {
				t.Errorf("%s/%s: %v", model, name, err)
				continue
			}
			if _, err := cfg.GetInitState(mc); err != nil {
				t.Errorf("%s/%s: %v", model, name, err)
			}
		}
	}
}

func TestGetInitState(t *testing.T) {
	tests := []struct {
		model    string
		q        []float64
		expected int
	}{
		{"pendulum", []float64{0.5}, 2},
		{"double_pendulum", []float64{0.5}, 4},
		{"cartpole", nil, 4},
		{"spherical", []float64{0, 0, 0, 2}, 7},
		{"floating_box", nil, 13},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Model = tt.model
		cfg.InitState.Q = tt.q
		mc, err := models.New(tt.model, models.Params{})
		if err != nil {
			t.Fatal(err)
		}
		state, err := cfg.GetInitState(mc)
		if err != nil {
			t.Fatal(err)
		}
		if len(state) != tt.expected {
			t.Errorf("model %s: expected %d states, got %d", tt.model, tt.expected, len(state))
		}
	}

	cfg := DefaultConfig()
	cfg.InitState.Q = []float64{0, 0, 0, 2}
	mc, _ := models.New("spherical", models.Params{})
	x, _ := cfg.GetInitState(mc)
	if math.Abs(x[3]-1) > 1e-12 {
		t.Errorf("expected normalized quaternion, got w = %f", x[3])
	}

	cfg.InitState.Q = []float64{1, 2, 3, 4, 5}
	if _, err := cfg.GetInitState(mc); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for long q, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no model", func(c *Config) { c.Model = "" }},
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"negative duration", func(c *Config) { c.Duration = -1 }},
		{"method", func(c *Config) { c.Method = "newton" }},
		{"solver", func(c *Config) { c.Solver = "svd" }},
		{"integrator", func(c *Config) { c.Integrator = "midpoint" }},
		{"controller", func(c *Config) { c.Controller = "mpc" }},
		{"floating base", func(c *Config) { c.FloatingBase = "hover" }},
		{"tolerance", func(c *Config) { c.Adaptive = true; c.Tolerance = 0 }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.modify(cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tt.name, err)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("arm", "hold")
	g := [3]float64{0, 0, -3.7}
	cfg.Gravity = &g
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
