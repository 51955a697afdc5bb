package control

import "github.com/san-kum/rbdyn/internal/sim"

type None struct {
	dim int
}

func NewNone(dim int) *None {
	return &None{
		dim: dim,
	}
}

func (n *None) Compute(x sim.State, t float64) (sim.Control, error) {
	return make(sim.Control, n.dim), nil
}
