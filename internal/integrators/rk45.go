package integrators

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/rbdyn/internal/sim"
)

// Dormand-Prince 5(4) tableau.
var (
	dpC = [7]float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5.0},
		{3.0 / 40.0, 9.0 / 40.0},
		{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0},
		{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0},
		{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0},
		{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0},
	}
	// fifth-order weights
	dpB = [7]float64{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0, 0}
	// fifth minus fourth order weights
	dpE = [7]float64{
		35.0/384.0 - 5179.0/57600.0,
		0,
		500.0/1113.0 - 7571.0/16695.0,
		125.0/192.0 - 393.0/640.0,
		-2187.0/6784.0 + 92097.0/339200.0,
		11.0/84.0 - 187.0/2100.0,
		-1.0 / 40.0,
	}
)

type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64

	k       [7]sim.State
	scratch sim.State
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) Fork() sim.Integrator {
	return &RK45{safety: r.safety, minScale: r.minScale, maxScale: r.maxScale}
}

func (r *RK45) ensureScratch(n int) {
	if len(r.scratch) != n {
		for i := range r.k {
			r.k[i] = make(sim.State, n)
		}
		r.scratch = make(sim.State, n)
	}
}

// Step takes one fifth-order step of size dt and discards the estimate.
func (r *RK45) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) (sim.State, error) {
	newX, _, err := r.StepAdaptive(dyn, x, u, t, dt, 1e-6)
	return newX, err
}

// StepAdaptive takes a step of size dt and proposes the next step from the
// embedded error estimate relative to tol.
func (r *RK45) StepAdaptive(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt, tol float64) (sim.State, float64, error) {
	n := len(x)
	r.ensureScratch(n)

	for s := 0; s < 7; s++ {
		copy(r.scratch, x)
		for j := 0; j < s; j++ {
			if a := dpA[s][j]; a != 0 {
				floats.AddScaled(r.scratch, dt*a, r.k[j])
			}
		}
		d, err := dyn.Derivative(r.scratch, u, t+dpC[s]*dt)
		if err != nil {
			return nil, 0, err
		}
		copy(r.k[s], d)
	}

	// the last stage was evaluated at the fifth-order solution
	xNew := x.Clone()
	for s, b := range dpB {
		if b != 0 {
			floats.AddScaled(xNew, dt*b, r.k[s])
		}
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		est := 0.0
		for s, e := range dpE {
			est += e * r.k[s][i]
		}
		scale := math.Abs(x[i]) + math.Abs(dt*r.k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(dt*est)/scale)
	}

	errRatio := errMax / tol

	var dtNew float64
	switch {
	case errRatio > 1:
		dtNew = dt * math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	case errRatio > 0:
		dtNew = dt * math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
	default:
		dtNew = dt * r.maxScale
	}

	return xNew, dtNew, nil
}
