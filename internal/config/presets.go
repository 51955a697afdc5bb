package config

import (
	"math"
	"sort"

	"github.com/san-kum/rbdyn/internal/control"
)

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"small": {
			Model: "pendulum", Integrator: "rk4", Dt: 0.01, Duration: 20.0,
			InitState: InitStateConfig{Q: []float64{0.2}},
		},
		"large": {
			Model: "pendulum", Integrator: "rk4", Dt: 0.01, Duration: 20.0,
			InitState: InitStateConfig{Q: []float64{2.5}},
		},
		"spinning": {
			Model: "pendulum", Integrator: "rk4", Dt: 0.01, Duration: 30.0,
			InitState: InitStateConfig{Q: []float64{0.1}, QDot: []float64{8.0}},
		},
		"balance": {
			Model: "pendulum", Integrator: "rk4", Controller: "lqr", Dt: 0.01, Duration: 10.0,
			InitState: InitStateConfig{Q: []float64{math.Pi - 0.3}},
		},
	},
	"double_pendulum": {
		"symmetric": {
			Model: "double_pendulum", Integrator: "rk4", Dt: 0.005, Duration: 30.0,
			InitState: InitStateConfig{Q: []float64{1.5, 0}},
		},
		"chaos": {
			Model: "double_pendulum", Integrator: "rk45", Adaptive: true, Tolerance: 1e-8, Dt: 0.005, Duration: 60.0,
			InitState: InitStateConfig{Q: []float64{3.0, 0}},
		},
		"gentle": {
			Model: "double_pendulum", Integrator: "leapfrog", Dt: 0.01, Duration: 30.0,
			InitState: InitStateConfig{Q: []float64{0.3, 0}},
		},
		"tracking": {
			Model: "double_pendulum", Integrator: "rk4", Controller: "computed_torque", Dt: 0.005, Duration: 5.0,
			InitState:        InitStateConfig{Q: []float64{0, 0}},
			ControllerParams: control.Gains{Kp: 100, Kd: 20, Target: []float64{1.0, -0.5}},
		},
	},
	"chain": {
		"drop": {
			Model: "chain", Integrator: "rk4", Dt: 0.002, Duration: 10.0,
			Params:    ModelConfig{Links: 5},
			InitState: InitStateConfig{Q: []float64{1.5}},
		},
		"long": {
			Model: "chain", Integrator: "rk4", Method: "aba", Dt: 0.001, Duration: 5.0,
			Params:    ModelConfig{Links: 20, Damping: 0.01},
			InitState: InitStateConfig{Q: []float64{1.0}},
		},
	},
	"cartpole": {
		"balance": {
			Model: "cartpole", Integrator: "rk4", Dt: 0.01, Duration: 10.0,
			InitState: InitStateConfig{Q: []float64{0, 0.1}},
		},
		"freefall": {
			Model: "cartpole", Integrator: "rk4", Dt: 0.01, Duration: 10.0,
			InitState: InitStateConfig{Q: []float64{0, 3.0}},
		},
	},
	"spherical": {
		"cone": {
			Model: "spherical", Integrator: "rk4", Dt: 0.002, Duration: 10.0,
			InitState: InitStateConfig{Q: []float64{0.2, 0, 0, 0.98}, QDot: []float64{0, 0, 3}},
		},
	},
	"top": {
		"spin": {
			Model: "top", Integrator: "rk4", Dt: 0.001, Duration: 5.0,
			InitState: InitStateConfig{Q: []float64{0, 0.1, 0}, QDot: []float64{30, 0, 0}},
		},
	},
	"floating_box": {
		"tumble": {
			Model: "floating_box", Integrator: "rk4", Dt: 0.001, Duration: 2.0,
			InitState: InitStateConfig{Q: []float64{0, 0, 0, 0, 0, 0, 1}, QDot: []float64{1, 0, 5, 0.1, 4, 0.1}},
		},
	},
	"arm": {
		"hold": {
			Model: "arm", Integrator: "rk4", Controller: "gravity", Dt: 0.002, Duration: 5.0,
			InitState:        InitStateConfig{Q: []float64{0, 0.6, -0.8}},
			ControllerParams: control.Gains{Kp: 20, Kd: 4, Target: []float64{0, 0.6, -0.8}},
		},
		"reach": {
			Model: "arm", Integrator: "rk4", Controller: "pid", Dt: 0.002, Duration: 5.0,
			ControllerParams: control.Gains{Kp: 60, Ki: 5, Kd: 6, Target: []float64{1.0, 0.4, 1.2}},
		},
	},
	"quadruped": {
		"drop": {
			Model: "quadruped", Integrator: "rk4", Method: "aba", Dt: 0.001, Duration: 1.0,
			InitState: InitStateConfig{Q: []float64{0, 0, 0.5}},
		},
	},
}

// GetPreset returns a copy of the named preset filled in with defaults, or
// nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	p, ok := modelPresets[preset]
	if !ok {
		return nil
	}

	cfg := p.Clone()
	def := DefaultConfig()
	if cfg.Method == "" {
		cfg.Method = def.Method
	}
	if cfg.Solver == "" {
		cfg.Solver = def.Solver
	}
	if cfg.Controller == "" {
		cfg.Controller = def.Controller
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.ControllerParams.Kp == 0 && cfg.ControllerParams.Kd == 0 {
		cfg.ControllerParams.Kp = def.ControllerParams.Kp
		cfg.ControllerParams.Ki = def.ControllerParams.Ki
		cfg.ControllerParams.Kd = def.ControllerParams.Kd
	}
	if cfg.Log.Level == "" {
		cfg.Log = def.Log
	}
	return cfg
}

// ListPresets returns the preset names for model, sorted.
func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Models returns every model that has presets, sorted.
func Models() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
