package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/rbdyn/internal/sim"
)

type RK4 struct {
	k1, k2, k3, k4 sim.State
	scratch        sim.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

// Fork returns an RK4 with its own stage buffers.
func (r *RK4) Fork() sim.Integrator { return NewRK4() }

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(sim.State, n)
		r.k2 = make(sim.State, n)
		r.k3 = make(sim.State, n)
		r.k4 = make(sim.State, n)
		r.scratch = make(sim.State, n)
	}
}

// stage evaluates the derivative at x + h*k into dst.
func (r *RK4) stage(dyn sim.Dynamics, dst, x, k sim.State, u sim.Control, t, h float64) error {
	floats.AddScaledTo(r.scratch, x, h, k)
	d, err := dyn.Derivative(r.scratch, u, t)
	if err != nil {
		return err
	}
	copy(dst, d)
	return nil
}

func (r *RK4) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) (sim.State, error) {
	r.ensureScratch(len(x))

	k1, err := dyn.Derivative(x, u, t)
	if err != nil {
		return nil, err
	}
	copy(r.k1, k1)

	if err := r.stage(dyn, r.k2, x, r.k1, u, t+dt*0.5, dt*0.5); err != nil {
		return nil, err
	}
	if err := r.stage(dyn, r.k3, x, r.k2, u, t+dt*0.5, dt*0.5); err != nil {
		return nil, err
	}
	if err := r.stage(dyn, r.k4, x, r.k3, u, t+dt, dt); err != nil {
		return nil, err
	}

	result := x.Clone()
	dt6 := dt / 6.0
	floats.AddScaled(result, dt6, r.k1)
	floats.AddScaled(result, 2*dt6, r.k2)
	floats.AddScaled(result, 2*dt6, r.k3)
	floats.AddScaled(result, dt6, r.k4)
	return result, nil
}
