package experiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/san-kum/rbdyn/internal/config"
	"github.com/san-kum/rbdyn/internal/control"
	"github.com/san-kum/rbdyn/internal/description"
	"github.com/san-kum/rbdyn/internal/dynamics"
	"github.com/san-kum/rbdyn/internal/integrators"
	"github.com/san-kum/rbdyn/internal/logger"
	"github.com/san-kum/rbdyn/internal/metrics"
	"github.com/san-kum/rbdyn/internal/models"
	"github.com/san-kum/rbdyn/internal/sim"
)

var ErrNotSetup = errors.New("experiment: not set up")

// Experiment wires a run configuration into a simulator.
type Experiment struct {
	cfg        *config.Config
	mechanism  *models.Mechanism
	simulator  *sim.Simulator
	controller sim.Controller
	initial    sim.State
	randSource *rand.Rand
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{
		cfg:        cfg,
		randSource: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// BuildMechanism constructs the mechanism a configuration describes,
// including method, solver and gravity overrides.
func BuildMechanism(cfg *config.Config) (*models.Mechanism, error) {
	var (
		mc  *models.Mechanism
		err error
	)
	if cfg.Description != "" {
		var base *description.FloatingBase
		if cfg.FloatingBase != "" {
			fb, err := description.ParseFloatingBase(cfg.FloatingBase)
			if err != nil {
				return nil, err
			}
			base = &fb
		}
		mc, err = models.LoadFile(cfg.Description, base, cfg.Tips...)
	} else {
		mc, err = models.New(cfg.Model, cfg.ModelParams())
	}
	if err != nil {
		return nil, err
	}

	if mc.Method, err = models.ParseMethod(cfg.Method); err != nil {
		return nil, err
	}
	if mc.Solver, err = dynamics.ParseLinearSolver(cfg.Solver); err != nil {
		return nil, err
	}
	if cfg.Gravity != nil {
		mc.Model.Gravity = mgl64.Vec3(*cfg.Gravity)
	}
	return mc, nil
}

// Setup builds the mechanism, integrator, controller and metrics.
func (e *Experiment) Setup() error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	mc, err := BuildMechanism(e.cfg)
	if err != nil {
		return fmt.Errorf("building mechanism: %w", err)
	}
	integ, err := integrators.New(e.cfg.Integrator)
	if err != nil {
		return err
	}
	ctrl, err := control.New(e.cfg.Controller, mc, e.cfg.ControllerParams)
	if err != nil {
		return err
	}
	ms, err := metrics.New(mc, e.cfg.Metrics...)
	if err != nil {
		return err
	}
	x0, err := e.cfg.GetInitState(mc)
	if err != nil {
		return err
	}

	e.mechanism = mc
	e.controller = ctrl
	e.initial = x0
	e.simulator = sim.New(mc, integ, ctrl)
	for _, m := range ms {
		e.simulator.AddMetric(m)
	}

	logger.Log.Info("experiment ready",
		zap.String("model", mc.Name),
		zap.Int("dof", mc.Model.DoFCount),
		zap.Stringer("method", mc.Method),
		zap.Stringer("solver", mc.Solver),
		zap.String("integrator", e.cfg.Integrator),
		zap.String("controller", e.cfg.Controller),
	)
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, ErrNotSetup
	}
	return e.simulator.Run(ctx, e.initial, e.cfg.SimConfig())
}

// RunEnsemble runs n simulations whose initial joint coordinates are
// perturbed uniformly by up to spread, using the configured seed.
func (e *Experiment) RunEnsemble(ctx context.Context, n, workers int, spread float64) ([]*sim.Result, error) {
	if e.simulator == nil {
		return nil, ErrNotSetup
	}
	initial := make([]sim.State, n)
	for i := range initial {
		x := e.initial.Clone()
		q, _ := e.mechanism.Split(x)
		for k := range q {
			q[k] += spread * (2*e.randSource.Float64() - 1)
		}
		e.mechanism.Project(x)
		initial[i] = x
	}

	names := e.cfg.Metrics
	factory := func(dyn sim.Dynamics) []sim.Metric {
		mc, ok := dyn.(*models.Mechanism)
		if !ok {
			return nil
		}
		ms, _ := metrics.New(mc, names...)
		return ms
	}
	return sim.NewEnsemble(e.simulator, workers).Run(ctx, initial, e.cfg.SimConfig(), factory)
}

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}

func (e *Experiment) Mechanism() *models.Mechanism { return e.mechanism }
func (e *Experiment) Controller() sim.Controller   { return e.controller }
func (e *Experiment) Initial() sim.State           { return e.initial.Clone() }
func (e *Experiment) Config() *config.Config       { return e.cfg }
