package sim

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/rbdyn/internal/logger"
)

type Simulator struct {
	dyn        Dynamics
	integrator Integrator
	controller Controller
	metrics    []Metric
	observers  []Observer
}

func New(dyn Dynamics, integrator Integrator, controller Controller) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Dynamics() Dynamics { return s.dyn }

// Run integrates from x0 for cfg.Duration. A failing derivative or
// controller stops the run; the partial result is returned with the error.
func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validate(x0, cfg); err != nil {
		return nil, err
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &Result{
		States:   make([]State, 0, steps+1),
		Controls: make([]Control, 0, steps),
		Times:    make([]float64, 0, steps+1),
		Metrics:  make(map[string]float64),
		Errors:   make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	if p, ok := s.dyn.(Projector); ok {
		p.Project(x)
	}
	t := 0.0
	dt := cfg.Dt

	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)

	initialEnergy, energyErr := s.energy(x)

	for i := 0; s.more(i, steps, t, cfg); i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		u, err := s.control(x, t)
		if err != nil {
			return result, SimError{Time: t, Step: i, Message: "controller failed", Err: err}
		}

		for _, m := range s.metrics {
			m.Observe(x, u, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, u, t)
		}

		var newX State
		taken := dt
		if cfg.Adaptive {
			dt = math.Min(dt, cfg.Duration-t)
			newX, taken, dt, err = s.adaptiveStep(x, u, t, dt, cfg)
		} else {
			newX, err = s.integrator.Step(s.dyn, x, u, t, dt)
		}
		if err != nil {
			return result, SimError{Time: t, Step: i, Message: "integration failed", Err: err}
		}
		if p, ok := s.dyn.(Projector); ok {
			p.Project(newX)
		}

		if cfg.ValidateState && !newX.IsValid() {
			err := SimError{Time: t, Step: i, Message: "invalid state (NaN/Inf)"}
			result.Errors = append(result.Errors, err)
			logger.Log.Warn("simulation diverged", zap.Int("step", i), zap.Float64("t", t))
			break
		}

		x = newX
		t += taken
		result.StepsTaken++

		result.States = append(result.States, x.Clone())
		result.Controls = append(result.Controls, u)
		result.Times = append(result.Times, t)
	}

	if energyErr == nil && initialEnergy != 0 {
		if finalEnergy, err := s.energy(x); err == nil {
			result.EnergyDrift = math.Abs(finalEnergy-initialEnergy) / math.Abs(initialEnergy)
		}
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	logger.Log.Debug("simulation finished",
		zap.Int("steps", result.StepsTaken),
		zap.Float64("t", t),
		zap.Float64("energy_drift", result.EnergyDrift),
	)
	return result, nil
}

func (s *Simulator) more(i, steps int, t float64, cfg Config) bool {
	if cfg.Adaptive {
		return t < cfg.Duration-1e-12
	}
	return i < steps
}

func (s *Simulator) validate(x0 State, cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.Adaptive && cfg.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive for adaptive stepping")
	}
	if cfg.Adaptive && (cfg.MinDt <= 0 || cfg.MaxDt < cfg.MinDt) {
		return fmt.Errorf("adaptive stepping needs 0 < min dt <= max dt, got %g, %g", cfg.MinDt, cfg.MaxDt)
	}
	if len(x0) != s.dyn.StateDim() {
		return fmt.Errorf("initial state has %d entries, system expects %d", len(x0), s.dyn.StateDim())
	}
	return nil
}

func (s *Simulator) control(x State, t float64) (Control, error) {
	if s.controller == nil {
		return make(Control, s.dyn.ControlDim()), nil
	}
	u, err := s.controller.Compute(x, t)
	if err != nil {
		return nil, err
	}
	if u == nil {
		u = make(Control, s.dyn.ControlDim())
	}
	return u, nil
}

func (s *Simulator) energy(x State) (float64, error) {
	if ec, ok := s.dyn.(EnergyComputer); ok {
		return ec.Energy(x)
	}
	return 0, nil
}

// adaptiveStep returns the new state, the step actually taken and the step
// to try next.
func (s *Simulator) adaptiveStep(x State, u Control, t, dt float64, cfg Config) (State, float64, float64, error) {
	if adaptive, ok := s.integrator.(AdaptiveIntegrator); ok {
		newX, next, err := adaptive.StepAdaptive(s.dyn, x, u, t, dt, cfg.Tolerance)
		if err != nil {
			return nil, 0, 0, err
		}
		return newX, dt, math.Max(cfg.MinDt, math.Min(next, cfg.MaxDt)), nil
	}

	for {
		x1, err := s.integrator.Step(s.dyn, x, u, t, dt)
		if err != nil {
			return nil, 0, 0, err
		}
		xHalf, err := s.integrator.Step(s.dyn, x, u, t, dt/2)
		if err != nil {
			return nil, 0, 0, err
		}
		x2, err := s.integrator.Step(s.dyn, xHalf, u, t+dt/2, dt/2)
		if err != nil {
			return nil, 0, 0, err
		}

		e := x1.Sub(x2).Norm()
		if e > cfg.Tolerance && dt/2 >= cfg.MinDt {
			dt /= 2
			continue
		}

		next := dt
		if e < cfg.Tolerance/10 {
			next = math.Min(dt*2, cfg.MaxDt)
		}
		return x2, dt, next, nil
	}
}

// RunWithCallback steps until the duration elapses or callback returns
// false. Nothing is recorded.
func (s *Simulator) RunWithCallback(ctx context.Context, x0 State, cfg Config, callback func(State, Control, float64) bool) error {
	if err := s.validate(x0, cfg); err != nil {
		return err
	}

	x := x0.Clone()
	t := 0.0
	dt := cfg.Dt

	for t < cfg.Duration {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		u, err := s.control(x, t)
		if err != nil {
			return err
		}

		if !callback(x, u, t) {
			return nil
		}

		x, err = s.integrator.Step(s.dyn, x, u, t, dt)
		if err != nil {
			return fmt.Errorf("t=%.4f: %w", t, err)
		}
		if p, ok := s.dyn.(Projector); ok {
			p.Project(x)
		}
		t += dt

		if cfg.ValidateState && !x.IsValid() {
			return fmt.Errorf("invalid state at t=%.4f", t)
		}
	}

	return nil
}
