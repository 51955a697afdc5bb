package control

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/san-kum/rbdyn/internal/models"
	"github.com/san-kum/rbdyn/internal/rbd"
)

var (
	ErrUnknownController = errors.New("control: unknown controller")
	ErrBadGains          = errors.New("control: invalid gains")
)

// Gains configures the joint-space controllers. The same gains apply to
// every actuated degree of freedom.
type Gains struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`

	// Target is a configuration with QSize entries; nil means the neutral
	// configuration.
	Target []float64 `yaml:"target,omitempty"`

	// MaxEffort clamps every output when positive. Mechanisms built from a
	// description are also clamped to their per-joint effort limits.
	MaxEffort float64 `yaml:"max_effort,omitempty"`

	// K is the LQR gain matrix, one row per control.
	K [][]float64 `yaml:"k,omitempty"`
}

// jointSpace maps a mechanism's configuration to per-DoF position errors
// and knows which DoFs carry an actuator.
type jointSpace struct {
	mc       *models.Mechanism
	target   []float64
	actuated []bool
	limits   []float64
}

func newJointSpace(mc *models.Mechanism, g Gains) (*jointSpace, error) {
	m := mc.Model
	target := g.Target
	if target == nil {
		target = m.NeutralQ()
	}
	if len(target) != m.QSize {
		return nil, fmt.Errorf("%w: target has %d entries, want %d", ErrBadGains, len(target), m.QSize)
	}
	if g.Kp < 0 || g.Ki < 0 || g.Kd < 0 || g.MaxEffort < 0 {
		return nil, fmt.Errorf("%w: negative gain", ErrBadGains)
	}

	js := &jointSpace{
		mc:       mc,
		target:   append([]float64(nil), target...),
		actuated: make([]bool, m.DoFCount),
		limits:   make([]float64, m.DoFCount),
	}
	base := mc.Base.DoF()
	for i := range js.actuated {
		js.actuated[i] = i >= base
		js.limits[i] = g.MaxEffort
	}
	if mc.Joints != nil {
		for i, e := range mc.Joints.MaxEffort {
			if e > 0 && (js.limits[base+i] == 0 || e < js.limits[base+i]) {
				js.limits[base+i] = e
			}
		}
	}
	return js, nil
}

// positionError writes target - q per DoF. Spherical joints report the
// rotation vector of the body-frame orientation error.
func (js *jointSpace) positionError(q, e []float64) error {
	m := js.mc.Model
	for id := 1; id < m.BodyCount(); id++ {
		j := m.Joints[id]
		if j.Type != rbd.JointTypeSpherical {
			for k := 0; k < j.DoFCount; k++ {
				e[j.QIndex+k] = js.target[j.QIndex+k] - q[j.QIndex+k]
			}
			continue
		}

		cur, err := m.GetQuaternion(id, q)
		if err != nil {
			return err
		}
		goal, err := m.GetQuaternion(id, js.target)
		if err != nil {
			return err
		}
		d := quat.Mul(quat.Conj(cur), goal)
		if d.Real < 0 {
			d = quat.Scale(-1, d)
		}
		s := math.Sqrt(d.Imag*d.Imag + d.Jmag*d.Jmag + d.Kmag*d.Kmag)
		k := 2.0
		if s > 1e-12 {
			k = 2 * math.Atan2(s, d.Real) / s
		}
		e[j.QIndex], e[j.QIndex+1], e[j.QIndex+2] = k*d.Imag, k*d.Jmag, k*d.Kmag
	}
	return nil
}

func (js *jointSpace) finish(u []float64) {
	for i := range u {
		if !js.actuated[i] {
			u[i] = 0
			continue
		}
		if l := js.limits[i]; l > 0 {
			u[i] = math.Max(-l, math.Min(l, u[i]))
		}
	}
}
