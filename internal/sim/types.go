package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// State is the integrated vector. Mechanisms lay it out as [q; qdot].
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	return floats.Norm(s, 2)
}

func (s State) Add(o State) State {
	out := s.Clone()
	floats.Add(out, o)
	return out
}

func (s State) Sub(o State) State {
	out := s.Clone()
	floats.Sub(out, o)
	return out
}

func (s State) Scale(k float64) State {
	out := s.Clone()
	floats.Scale(k, out)
	return out
}

// AddScaled returns s + k*o.
func (s State) AddScaled(k float64, o State) State {
	out := s.Clone()
	floats.AddScaled(out, k, o)
	return out
}

type Control []float64

// Dynamics is a first-order system dx/dt = f(x, u, t). The derivative may
// have a different length than x only through the layout the system itself
// defines; integrators treat both as plain vectors of StateDim entries.
type Dynamics interface {
	Derivative(x State, u Control, t float64) (State, error)
	StateDim() int
	ControlDim() int
}

// EnergyComputer is implemented by systems with a total energy.
type EnergyComputer interface {
	Energy(x State) (float64, error)
}

// Projector is implemented by systems whose state lives on a manifold, e.g.
// unit quaternions. Project is applied after every step.
type Projector interface {
	Project(x State)
}

// Forker is implemented by systems and controllers that keep per-run
// scratch space and must be copied before concurrent use.
type Forker[T any] interface {
	Fork() T
}

type Integrator interface {
	Step(dyn Dynamics, x State, u Control, t float64, dt float64) (State, error)
}

// AdaptiveIntegrator chooses its own step and returns the step to try next.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn Dynamics, x State, u Control, t, dt, tol float64) (State, float64, error)
}

type Controller interface {
	Compute(x State, t float64) (Control, error)
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

type Config struct {
	Dt            float64
	Duration      float64
	Seed          int64
	Adaptive      bool
	Tolerance     float64
	MinDt         float64
	MaxDt         float64
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.001,
		Duration:      5.0,
		Tolerance:     1e-6,
		MinDt:         1e-6,
		MaxDt:         0.01,
		ValidateState: true,
	}
}

type Result struct {
	States      []State
	Controls    []Control
	Times       []float64
	Metrics     map[string]float64
	StepsTaken  int
	EnergyDrift float64
	Errors      []error
}

// Final returns the last recorded state.
func (r *Result) Final() State {
	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}

type SimError struct {
	Time    float64
	Step    int
	Message string
	Err     error
}

func (e SimError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %d (t=%.4f): %s: %v", e.Step, e.Time, e.Message, e.Err)
	}
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}

func (e SimError) Unwrap() error {
	return e.Err
}
