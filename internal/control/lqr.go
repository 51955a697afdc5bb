package control

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdyn/internal/models"
	"github.com/san-kum/rbdyn/internal/sim"
)

// LQR applies u = -K (x - Target) on the full state vector. Gains come
// from an offline design; nothing here linearizes the mechanism.
type LQR struct {
	K      *mat.Dense
	Target sim.State
}

func NewLQR(k [][]float64, target sim.State) (*LQR, error) {
	if len(k) == 0 || len(k[0]) == 0 {
		return nil, fmt.Errorf("%w: empty gain matrix", ErrBadGains)
	}
	cols := len(k[0])
	data := make([]float64, 0, len(k)*cols)
	for i, row := range k {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", ErrBadGains, i, len(row), cols)
		}
		data = append(data, row...)
	}
	if target == nil {
		target = make(sim.State, cols)
	}
	if len(target) != cols {
		return nil, fmt.Errorf("%w: target has %d entries, want %d", ErrBadGains, len(target), cols)
	}
	return &LQR{K: mat.NewDense(len(k), cols, data), Target: target}, nil
}

// NewMechanismLQR checks the gain matrix against the mechanism dimensions.
func NewMechanismLQR(mc *models.Mechanism, g Gains) (*LQR, error) {
	target := g.Target
	if target != nil {
		x, err := mc.State(target, make([]float64, mc.Model.QDotSize))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadGains, err)
		}
		target = x
	}
	k := g.K
	if k == nil && mc.Name == "pendulum" {
		k, target = pendulumGains, sim.State{math.Pi, 0}
	}
	l, err := NewLQR(k, target)
	if err != nil {
		return nil, err
	}
	if r, c := l.K.Dims(); r != mc.ControlDim() || c != mc.StateDim() {
		return nil, fmt.Errorf("%w: K is %dx%d, want %dx%d", ErrBadGains, r, c, mc.ControlDim(), mc.StateDim())
	}
	return l, nil
}

func (l *LQR) Compute(x sim.State, t float64) (sim.Control, error) {
	r, c := l.K.Dims()
	if len(x) != c {
		return nil, fmt.Errorf("%w: state has %d entries, K has %d columns", ErrBadGains, len(x), c)
	}
	dx := mat.NewVecDense(c, x.Sub(l.Target))
	u := mat.NewVecDense(r, nil)
	u.MulVec(l.K, dx)
	u.ScaleVec(-1, u)
	return sim.Control(u.RawVector().Data), nil
}

// Balances the unit pendulum upright, where q = pi.
var pendulumGains = [][]float64{{31.62, 10.0}}

func NewPendulumLQR() *LQR {
	l, _ := NewLQR(pendulumGains, sim.State{math.Pi, 0})
	return l
}
