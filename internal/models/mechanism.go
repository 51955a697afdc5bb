package models

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdyn/internal/description"
	"github.com/san-kum/rbdyn/internal/dynamics"
	"github.com/san-kum/rbdyn/internal/rbd"
	"github.com/san-kum/rbdyn/internal/sim"
)

var ErrUnknownMethod = errors.New("models: unknown forward dynamics method")

// Method selects how a Mechanism computes joint accelerations.
type Method int

const (
	// Lagrangian builds H with CRBA and solves H qddot = tau - C.
	Lagrangian Method = iota
	// ArticulatedBody computes C with NonlinearEffects and applies the
	// articulated-body H^-1 to tau - C.
	ArticulatedBody
)

func (m Method) String() string {
	switch m {
	case Lagrangian:
		return "lagrangian"
	case ArticulatedBody:
		return "aba"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "lagrangian", "crba":
		return Lagrangian, nil
	case "aba", "articulated":
		return ArticulatedBody, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Mechanism adapts an articulated model to sim.Dynamics. The state is
// [q; qdot] with QSize + QDotSize entries and the control is one
// generalized force per degree of freedom.
//
// A Mechanism owns scratch space and must not be shared between
// goroutines; use Fork for concurrent runs.
type Mechanism struct {
	Name   string
	Model  *rbd.Model
	Method Method
	Solver dynamics.LinearSolver

	// Damping holds per-DoF viscous coefficients; nil means undamped.
	Damping []float64

	// Joints is set for mechanisms imported from a description.
	Joints *description.JointInfo
	Base   description.FloatingBase

	pool  *rbd.DataPool
	data  *rbd.ModelData
	H     *mat.Dense
	c     []float64
	tau   []float64
	qddot []float64
}

func NewMechanism(name string, m *rbd.Model) *Mechanism {
	return newMechanism(name, m, rbd.NewDataPool(m))
}

func newMechanism(name string, m *rbd.Model, pool *rbd.DataPool) *Mechanism {
	n := m.DoFCount
	return &Mechanism{
		Name:   name,
		Model:  m,
		Method: Lagrangian,
		Solver: dynamics.PartialPivLU,
		pool:   pool,
		data:   pool.Get(),
		H:      mat.NewDense(max(n, 1), max(n, 1), nil),
		c:      make([]float64, n),
		tau:    make([]float64, n),
		qddot:  make([]float64, n),
	}
}

// Fork returns a mechanism sharing the model and settings with fresh
// scratch space.
func (mc *Mechanism) Fork() sim.Dynamics {
	f := newMechanism(mc.Name, mc.Model, mc.pool)
	f.Method = mc.Method
	f.Solver = mc.Solver
	f.Joints = mc.Joints
	f.Base = mc.Base
	if mc.Damping != nil {
		f.Damping = append([]float64(nil), mc.Damping...)
	}
	return f
}

// Release hands the scratch space back to the shared pool.
func (mc *Mechanism) Release() {
	mc.pool.Put(mc.data)
	mc.data = nil
}

func (mc *Mechanism) Data() *rbd.ModelData {
	if mc.data == nil {
		mc.data = mc.pool.Get()
	}
	return mc.data
}

func (mc *Mechanism) StateDim() int { return mc.Model.QSize + mc.Model.QDotSize }
func (mc *Mechanism) ControlDim() int { return mc.Model.DoFCount }
func (mc *Mechanism) PositionSize() int { return mc.Model.QSize }

// Split returns views of q and qdot inside x.
func (mc *Mechanism) Split(x sim.State) (q, qdot []float64) {
	return x[:mc.Model.QSize], x[mc.Model.QSize:]
}

// State packs q and qdot into a new state vector.
func (mc *Mechanism) State(q, qdot []float64) (sim.State, error) {
	if len(q) != mc.Model.QSize || len(qdot) != mc.Model.QDotSize {
		return nil, fmt.Errorf("%w: q has %d entries (want %d), qdot %d (want %d)",
			rbd.ErrDimensionMismatch, len(q), mc.Model.QSize, len(qdot), mc.Model.QDotSize)
	}
	x := make(sim.State, 0, mc.StateDim())
	x = append(x, q...)
	return append(x, qdot...), nil
}

// NeutralState is the zero configuration at rest.
func (mc *Mechanism) NeutralState() sim.State {
	x, _ := mc.State(mc.Model.NeutralQ(), make([]float64, mc.Model.QDotSize))
	return x
}

func (mc *Mechanism) Derivative(x sim.State, u sim.Control, t float64) (sim.State, error) {
	if len(x) != mc.StateDim() {
		return nil, fmt.Errorf("%w: state has %d entries, want %d", rbd.ErrDimensionMismatch, len(x), mc.StateDim())
	}
	q, qdot := mc.Split(x)

	if err := mc.Accelerations(q, qdot, u, mc.qddot); err != nil {
		return nil, err
	}

	dx := make(sim.State, len(x))
	mc.Model.QRate(q, qdot, dx[:mc.Model.QSize])
	copy(dx[mc.Model.QSize:], mc.qddot)
	return dx, nil
}

// Accelerations computes qddot for the applied generalized forces u minus
// joint damping. A nil u means no actuation.
func (mc *Mechanism) Accelerations(q, qdot []float64, u sim.Control, qddot []float64) error {
	if u != nil && len(u) != mc.Model.DoFCount {
		return fmt.Errorf("%w: control has %d entries, want %d", rbd.ErrDimensionMismatch, len(u), mc.Model.DoFCount)
	}
	for i := range mc.tau {
		mc.tau[i] = 0
		if u != nil {
			mc.tau[i] = u[i]
		}
		if i < len(mc.Damping) {
			mc.tau[i] -= mc.Damping[i] * qdot[i]
		}
	}

	d := mc.Data()
	switch mc.Method {
	case Lagrangian:
		opts := &dynamics.LagrangianOptions{Solver: mc.Solver, C: mc.c}
		if mc.Model.DoFCount > 0 {
			opts.H = mc.H
		}
		return dynamics.ForwardDynamicsLagrangian(mc.Model, d, q, qdot, mc.tau, qddot, opts)
	case ArticulatedBody:
		if err := dynamics.NonlinearEffects(mc.Model, d, q, qdot, mc.c, nil); err != nil {
			return err
		}
		for i := range mc.tau {
			mc.tau[i] -= mc.c[i]
		}
		return dynamics.CalcMInvTimesTau(mc.Model, d, q, mc.tau, qddot, true)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMethod, mc.Method)
	}
}

// Energy is the kinetic plus gravitational potential energy.
func (mc *Mechanism) Energy(x sim.State) (float64, error) {
	q, qdot := mc.Split(x)
	d := mc.Data()
	ke, err := rbd.KineticEnergy(mc.Model, d, q, qdot, true)
	if err != nil {
		return 0, err
	}
	pe, err := rbd.PotentialEnergy(mc.Model, d, q, false)
	if err != nil {
		return 0, err
	}
	return ke + pe, nil
}

// Project renormalizes spherical joint quaternions.
func (mc *Mechanism) Project(x sim.State) {
	q, _ := mc.Split(x)
	mc.Model.NormalizeQ(q)
}

// Labels names every entry of the state vector, q first.
func (mc *Mechanism) Labels() []string {
	labels := make([]string, 0, mc.StateDim())
	for _, d := range rbd.DoFOverview(mc.Model) {
		labels = append(labels, d.Body+"_"+d.Label)
	}
	for _, d := range rbd.DoFOverview(mc.Model) {
		if d.Label == "QW" {
			continue
		}
		labels = append(labels, d.Body+"_"+d.Label+"_dot")
	}
	return labels
}
