package control

import (
	"github.com/san-kum/rbdyn/internal/dynamics"
	"github.com/san-kum/rbdyn/internal/models"
	"github.com/san-kum/rbdyn/internal/rbd"
	"github.com/san-kum/rbdyn/internal/sim"
)

// GravityCompensation adds the static bias force C(q, 0) to a PD law.
// With zero gains it holds the mechanism wherever it is released.
type GravityCompensation struct {
	Gains
	js *jointSpace

	data *rbd.ModelData
	zero []float64
	bias []float64
	e    []float64
}

func NewGravityCompensation(mc *models.Mechanism, g Gains) (*GravityCompensation, error) {
	js, err := newJointSpace(mc, g)
	if err != nil {
		return nil, err
	}
	n := mc.ControlDim()
	return &GravityCompensation{
		Gains: g,
		js:    js,
		data:  rbd.NewModelData(mc.Model),
		zero:  make([]float64, n),
		bias:  make([]float64, n),
		e:     make([]float64, n),
	}, nil
}

func (c *GravityCompensation) Compute(x sim.State, t float64) (sim.Control, error) {
	m := c.js.mc.Model
	q, qdot := c.js.mc.Split(x)
	if err := dynamics.NonlinearEffects(m, c.data, q, c.zero, c.bias, nil); err != nil {
		return nil, err
	}
	if err := c.js.positionError(q, c.e); err != nil {
		return nil, err
	}

	u := make(sim.Control, len(c.bias))
	for i := range u {
		u[i] = c.bias[i] + c.Kp*c.e[i] - c.Kd*qdot[i]
	}
	c.js.finish(u)
	return u, nil
}

func (c *GravityCompensation) Fork() sim.Controller {
	f, _ := NewGravityCompensation(c.js.mc, c.Gains)
	f.js = c.js
	return f
}

// ComputedTorque feeds the PD reference acceleration through inverse
// dynamics and cancels the mechanism's own joint damping, giving each DoF
// the closed loop qddot = Kp e - Kd qdot.
type ComputedTorque struct {
	Gains
	js *jointSpace

	data *rbd.ModelData
	ref  []float64
	e    []float64
}

func NewComputedTorque(mc *models.Mechanism, g Gains) (*ComputedTorque, error) {
	js, err := newJointSpace(mc, g)
	if err != nil {
		return nil, err
	}
	n := mc.ControlDim()
	return &ComputedTorque{
		Gains: g,
		js:    js,
		data:  rbd.NewModelData(mc.Model),
		ref:   make([]float64, n),
		e:     make([]float64, n),
	}, nil
}

func (c *ComputedTorque) Compute(x sim.State, t float64) (sim.Control, error) {
	mc := c.js.mc
	q, qdot := mc.Split(x)
	if err := c.js.positionError(q, c.e); err != nil {
		return nil, err
	}
	for i := range c.ref {
		c.ref[i] = c.Kp*c.e[i] - c.Kd*qdot[i]
	}

	u := make(sim.Control, len(c.ref))
	if err := dynamics.InverseDynamics(mc.Model, c.data, q, qdot, c.ref, u, nil); err != nil {
		return nil, err
	}
	for i := range u {
		if i < len(mc.Damping) {
			u[i] += mc.Damping[i] * qdot[i]
		}
	}
	c.js.finish(u)
	return u, nil
}

func (c *ComputedTorque) Fork() sim.Controller {
	f, _ := NewComputedTorque(c.js.mc, c.Gains)
	f.js = c.js
	return f
}
