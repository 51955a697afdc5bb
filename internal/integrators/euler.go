package integrators

import "github.com/san-kum/rbdyn/internal/sim"

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t float64, dt float64) (sim.State, error) {
	dx, err := dyn.Derivative(x, u, t)
	if err != nil {
		return nil, err
	}
	return x.AddScaled(dt, dx), nil
}
