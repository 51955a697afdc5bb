package integrators

import "github.com/san-kum/rbdyn/internal/sim"

// SecondOrder is implemented by systems whose state is [q; v] with q taking
// PositionSize entries. Without it the state is split in half.
type SecondOrder interface {
	PositionSize() int
}

// Leapfrog is the kick-drift-kick scheme. Positions advance with the rate
// evaluated at the half-step velocity, so q and v may differ in length.
type Leapfrog struct {
	scratch sim.State
}

func NewLeapfrog() *Leapfrog {
	return &Leapfrog{}
}

func (l *Leapfrog) Fork() sim.Integrator { return NewLeapfrog() }

func (l *Leapfrog) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) (sim.State, error) {
	n := len(x)
	split := n / 2
	if so, ok := dyn.(SecondOrder); ok {
		split = so.PositionSize()
	}
	if len(l.scratch) != n {
		l.scratch = make(sim.State, n)
	}
	halfDt := 0.5 * dt

	dx, err := dyn.Derivative(x, u, t)
	if err != nil {
		return nil, err
	}

	// kick
	copy(l.scratch, x)
	for i := split; i < n; i++ {
		l.scratch[i] = x[i] + halfDt*dx[i]
	}

	// drift
	rate, err := dyn.Derivative(l.scratch, u, t+halfDt)
	if err != nil {
		return nil, err
	}
	result := make(sim.State, n)
	for i := 0; i < split; i++ {
		result[i] = x[i] + dt*rate[i]
	}
	copy(result[split:], l.scratch[split:])
	if p, ok := dyn.(sim.Projector); ok {
		p.Project(result)
	}

	// kick
	dxNew, err := dyn.Derivative(result, u, t+dt)
	if err != nil {
		return nil, err
	}
	for i := split; i < n; i++ {
		result[i] += halfDt * dxNew[i]
	}

	return result, nil
}
