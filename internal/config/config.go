package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/rbdyn/internal/control"
	"github.com/san-kum/rbdyn/internal/description"
	"github.com/san-kum/rbdyn/internal/dynamics"
	"github.com/san-kum/rbdyn/internal/integrators"
	"github.com/san-kum/rbdyn/internal/models"
	"github.com/san-kum/rbdyn/internal/sim"
)

const (
	DefaultDt        = 0.001
	DefaultDuration  = 5.0
	DefaultTolerance = 1e-6
	DefaultKp        = 40.0
	DefaultKi        = 0.0
	DefaultKd        = 8.0
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	// Model names a built-in mechanism. Description, when set, points to
	// a description file and takes precedence.
	Model        string   `yaml:"model"`
	Description  string   `yaml:"description,omitempty"`
	FloatingBase string   `yaml:"floating_base,omitempty"`
	Tips         []string `yaml:"tips,omitempty"`

	Params ModelConfig `yaml:"params"`

	// Gravity overrides the mechanism's gravity vector.
	Gravity *[3]float64 `yaml:"gravity,omitempty"`

	Method     string `yaml:"method"`
	Solver     string `yaml:"solver"`
	Integrator string `yaml:"integrator"`
	Controller string `yaml:"controller"`

	Dt        float64 `yaml:"dt"`
	Duration  float64 `yaml:"duration"`
	Seed      int64   `yaml:"seed"`
	Adaptive  bool    `yaml:"adaptive"`
	Tolerance float64 `yaml:"tolerance"`

	InitState        InitStateConfig `yaml:"init_state"`
	ControllerParams control.Gains   `yaml:"controller_params"`
	Metrics          []string        `yaml:"metrics,omitempty"`

	Log LogConfig `yaml:"log"`
}

type ModelConfig struct {
	Links   int     `yaml:"links,omitempty"`
	Mass    float64 `yaml:"mass,omitempty"`
	Length  float64 `yaml:"length,omitempty"`
	Damping float64 `yaml:"damping,omitempty"`
	Gravity float64 `yaml:"gravity,omitempty"`
}

// InitStateConfig holds the initial configuration and velocity. Missing
// entries keep the neutral value; quaternion entries are renormalized.
type InitStateConfig struct {
	Q    []float64 `yaml:"q,flow,omitempty"`
	QDot []float64 `yaml:"qdot,flow,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "pendulum",
		Method:     models.Lagrangian.String(),
		Solver:     dynamics.PartialPivLU.String(),
		Integrator: "rk4",
		Controller: "none",
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Tolerance:  DefaultTolerance,
		InitState: InitStateConfig{
			Q: []float64{0.5},
		},
		ControllerParams: control.Gains{
			Kp: DefaultKp,
			Ki: DefaultKi,
			Kd: DefaultKd,
		},
		Log: LogConfig{Level: "info"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.InitState = InitStateConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks names and numeric ranges. It does not build the model.
func (c *Config) Validate() error {
	if c.Model == "" && c.Description == "" {
		return fmt.Errorf("%w: no model or description", ErrInvalidConfig)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidConfig, c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %g", ErrInvalidConfig, c.Duration)
	}
	if c.Adaptive && c.Tolerance <= 0 {
		return fmt.Errorf("%w: adaptive stepping needs a positive tolerance", ErrInvalidConfig)
	}
	if _, err := models.ParseMethod(c.Method); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := dynamics.ParseLinearSolver(c.Solver); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !slices.Contains(integrators.Names(), c.Integrator) {
		return fmt.Errorf("%w: unknown integrator %q", ErrInvalidConfig, c.Integrator)
	}
	if c.Controller != "" && !slices.Contains(control.Names(), c.Controller) {
		return fmt.Errorf("%w: unknown controller %q", ErrInvalidConfig, c.Controller)
	}
	if c.FloatingBase != "" {
		if _, err := description.ParseFloatingBase(c.FloatingBase); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c *Config) ModelParams() models.Params {
	return models.Params{
		Links:   c.Params.Links,
		Mass:    c.Params.Mass,
		Length:  c.Params.Length,
		Damping: c.Params.Damping,
		Gravity: c.Params.Gravity,
	}
}

func (c *Config) SimConfig() sim.Config {
	sc := sim.DefaultConfig()
	sc.Dt = c.Dt
	sc.Duration = c.Duration
	sc.Seed = c.Seed
	sc.Adaptive = c.Adaptive
	if c.Tolerance > 0 {
		sc.Tolerance = c.Tolerance
	}
	if c.Adaptive {
		sc.MaxDt = max(sc.MaxDt, c.Dt)
	}
	return sc
}

// GetInitState lays the configured q and qdot over the mechanism's neutral
// state.
func (c *Config) GetInitState(mc *models.Mechanism) (sim.State, error) {
	if len(c.InitState.Q) > mc.Model.QSize {
		return nil, fmt.Errorf("%w: init q has %d entries, model has %d", ErrInvalidConfig, len(c.InitState.Q), mc.Model.QSize)
	}
	if len(c.InitState.QDot) > mc.Model.QDotSize {
		return nil, fmt.Errorf("%w: init qdot has %d entries, model has %d", ErrInvalidConfig, len(c.InitState.QDot), mc.Model.QDotSize)
	}
	x := mc.NeutralState()
	q, qdot := mc.Split(x)
	copy(q, c.InitState.Q)
	copy(qdot, c.InitState.QDot)
	mc.Project(x)
	return x, nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Tips = slices.Clone(c.Tips)
	out.Metrics = slices.Clone(c.Metrics)
	out.InitState.Q = slices.Clone(c.InitState.Q)
	out.InitState.QDot = slices.Clone(c.InitState.QDot)
	out.ControllerParams.Target = slices.Clone(c.ControllerParams.Target)
	if c.ControllerParams.K != nil {
		out.ControllerParams.K = make([][]float64, len(c.ControllerParams.K))
		for i, row := range c.ControllerParams.K {
			out.ControllerParams.K[i] = slices.Clone(row)
		}
	}
	if c.Gravity != nil {
		g := *c.Gravity
		out.Gravity = &g
	}
	return &out
}
