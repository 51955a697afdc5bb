package metrics

import (
	"math"

	"github.com/san-kum/rbdyn/internal/models"
	"github.com/san-kum/rbdyn/internal/sim"
)

// Stability is the fraction of samples whose state stays within threshold
// in every component.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(x sim.State, u sim.Control, t float64) {
	s.samples++
	for _, val := range x {
		if math.Abs(val) > s.threshold {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// JointLimits counts samples where any joint leaves its position or
// velocity range. It needs the joint table of an imported description.
type JointLimits struct {
	mc         *models.Mechanism
	violations int
}

func NewJointLimits(mc *models.Mechanism) *JointLimits {
	return &JointLimits{mc: mc}
}

func (j *JointLimits) Name() string { return "limit_violations" }

func (j *JointLimits) Observe(x sim.State, u sim.Control, t float64) {
	info := j.mc.Joints
	if info == nil {
		return
	}
	q, qdot := j.mc.Split(x)
	base := j.mc.Base.DoF()
	for i := 0; i < info.Len(); i++ {
		p, v := q[base+i], qdot[base+i]
		if p < info.PositionMin[i] || p > info.PositionMax[i] ||
			v < info.VelocityMin[i] || v > info.VelocityMax[i] {
			j.violations++
			return
		}
	}
}

func (j *JointLimits) Value() float64 { return float64(j.violations) }

func (j *JointLimits) Reset() { j.violations = 0 }
