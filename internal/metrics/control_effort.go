package metrics

import (
	"math"

	"github.com/san-kum/rbdyn/internal/sim"
)

// ControlEffort is the mean L1 norm of the applied generalized forces.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(x sim.State, u sim.Control, t float64) {
	for _, val := range u {
		c.sum += math.Abs(val)
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// PeakEffort is the largest single generalized force applied.
type PeakEffort struct {
	peak float64
}

func NewPeakEffort() *PeakEffort { return &PeakEffort{} }

func (p *PeakEffort) Name() string { return "peak_effort" }

func (p *PeakEffort) Observe(x sim.State, u sim.Control, t float64) {
	for _, val := range u {
		p.peak = math.Max(p.peak, math.Abs(val))
	}
}

func (p *PeakEffort) Value() float64 { return p.peak }
func (p *PeakEffort) Reset()         { p.peak = 0 }
