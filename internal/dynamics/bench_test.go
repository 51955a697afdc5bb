package dynamics_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdyn/internal/dynamics"
	"github.com/san-kum/rbdyn/internal/rbd"
	"github.com/san-kum/rbdyn/internal/spatial"
)

// benchChain is a floating base carrying a serial chain of n revolute links.
func benchChain(b *testing.B, n int) (*rbd.Model, []float64, []float64, []float64) {
	b.Helper()
	m := rbd.NewModel()
	m.Gravity = mgl64.Vec3{0, 0, -9.81}

	body := rbd.NewBodyFromGyration(1, mgl64.Vec3{0.25, 0, 0}, mgl64.Vec3{0.1, 0.2, 0.2})
	parent, err := m.SetFloatingBaseBody(body, "base")
	if err != nil {
		b.Fatal(err)
	}

	axes := []mgl64.Vec3{{0, 0, 1}, {0, 1, 0}, {1, 0, 0}}
	for i := 0; i < n; i++ {
		j, err := rbd.NewRevoluteJoint(axes[i%len(axes)])
		if err != nil {
			b.Fatal(err)
		}
		parent, err = m.AddBody(parent, spatial.XTrans(mgl64.Vec3{0.5, 0, 0}), j, body, "")
		if err != nil {
			b.Fatal(err)
		}
	}

	q := m.NeutralQ()
	qdot := make([]float64, m.QDotSize)
	tau := make([]float64, m.QDotSize)
	for i := range qdot {
		q[i] = 0.1 * float64(i%7)
		qdot[i] = 0.05 * float64(i%5)
		tau[i] = 0.2
	}
	m.NormalizeQ(q)
	return m, q, qdot, tau
}

func BenchmarkNonlinearEffects(b *testing.B) {
	m, q, qdot, _ := benchChain(b, 24)
	d := rbd.NewModelData(m)
	out := make([]float64, m.QDotSize)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := dynamics.NonlinearEffects(m, d, q, qdot, out, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompositeRigidBodyAlgorithm(b *testing.B) {
	m, q, _, _ := benchChain(b, 24)
	d := rbd.NewModelData(m)
	H := mat.NewDense(m.DoFCount, m.DoFCount, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := dynamics.CompositeRigidBodyAlgorithm(m, d, q, H, true); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkForwardDynamicsLagrangian(b *testing.B) {
	for _, solver := range dynamics.Solvers() {
		b.Run(solver.String(), func(b *testing.B) {
			m, q, qdot, tau := benchChain(b, 24)
			d := rbd.NewModelData(m)
			n := m.DoFCount
			opts := &dynamics.LagrangianOptions{Solver: solver, H: mat.NewDense(n, n, nil), C: make([]float64, n)}
			qddot := make([]float64, n)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := dynamics.ForwardDynamicsLagrangian(m, d, q, qdot, tau, qddot, opts); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkCalcMInvTimesTau(b *testing.B) {
	m, q, _, tau := benchChain(b, 24)
	d := rbd.NewModelData(m)
	qddot := make([]float64, m.QDotSize)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := dynamics.CalcMInvTimesTau(m, d, q, tau, qddot, true); err != nil {
			b.Fatal(err)
		}
	}
}
