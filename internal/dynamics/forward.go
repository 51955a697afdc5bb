package dynamics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdyn/internal/rbd"
	"github.com/san-kum/rbdyn/internal/spatial"
)

// LagrangianOptions configures ForwardDynamicsLagrangian. H and C, when
// set, receive the inertia matrix and bias forces and avoid allocation.
type LagrangianOptions struct {
	Solver LinearSolver
	FExt   []spatial.Vector
	H      *mat.Dense
	C      []float64
}

// ForwardDynamicsLagrangian computes qddot by building H with CRBA and C
// with NonlinearEffects and solving H qddot = tau - C. A nil opts uses the
// LU solver without external forces.
func ForwardDynamicsLagrangian(m *rbd.Model, d *rbd.ModelData, q, qdot, tau, qddot []float64, opts *LagrangianOptions) error {
	if opts == nil {
		opts = &LagrangianOptions{}
	}
	if err := rbd.CheckDoF(m, "qddot", qddot); err != nil {
		return err
	}
	if err := rbd.CheckDoF(m, "tau", tau); err != nil {
		return err
	}

	n := m.DoFCount
	C := opts.C
	if C == nil {
		C = make([]float64, n)
	} else if err := rbd.CheckDoF(m, "C", C); err != nil {
		return err
	}

	for i := range qddot {
		qddot[i] = 0
	}
	if err := InverseDynamics(m, d, q, qdot, qddot, C, opts.FExt); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	H := opts.H
	if H == nil {
		H = mat.NewDense(n, n, nil)
	}
	if err := CompositeRigidBodyAlgorithm(m, d, q, H, false); err != nil {
		return err
	}

	rhs := make([]float64, n)
	for i := range rhs {
		rhs[i] = tau[i] - C[i]
	}
	if err := opts.Solver.Solve(H, rhs, qddot); err != nil {
		return fmt.Errorf("forward dynamics (%s): %w", opts.Solver, err)
	}
	return nil
}
