package control

import (
	"github.com/san-kum/rbdyn/internal/models"
	"github.com/san-kum/rbdyn/internal/sim"
)

// PID runs one loop per actuated DoF toward Target. The derivative term
// acts on the measured joint velocity, so the target velocity is zero.
type PID struct {
	Gains
	js *jointSpace

	integral []float64
	e        []float64
	prevT    float64
	first    bool
}

func NewPID(mc *models.Mechanism, g Gains) (*PID, error) {
	js, err := newJointSpace(mc, g)
	if err != nil {
		return nil, err
	}
	n := mc.ControlDim()
	return &PID{
		Gains:    g,
		js:       js,
		integral: make([]float64, n),
		e:        make([]float64, n),
		first:    true,
	}, nil
}

func (p *PID) Compute(x sim.State, t float64) (sim.Control, error) {
	q, qdot := p.js.mc.Split(x)
	if err := p.js.positionError(q, p.e); err != nil {
		return nil, err
	}

	dt := 0.0
	if !p.first {
		dt = t - p.prevT
	}
	p.first = false
	p.prevT = t

	u := make(sim.Control, len(p.e))
	for i, e := range p.e {
		if dt > 0 {
			p.integral[i] += e * dt
		}
		u[i] = p.Kp*e + p.Ki*p.integral[i] - p.Kd*qdot[i]
	}
	p.js.finish(u)
	return u, nil
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	for i := range p.integral {
		p.integral[i] = 0
	}
	p.first = true
}

// Fork returns a PID with the same gains and a cleared integrator.
func (p *PID) Fork() sim.Controller {
	f := *p
	f.integral = make([]float64, len(p.integral))
	f.e = make([]float64, len(p.e))
	f.first = true
	return &f
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp": p.Kp,
		"Ki": p.Ki,
		"Kd": p.Kd,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	}
}
