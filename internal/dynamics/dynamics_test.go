package dynamics_test

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdyn/internal/dynamics"
	"github.com/san-kum/rbdyn/internal/rbd"
	"github.com/san-kum/rbdyn/internal/spatial"
)

var earth = mgl64.Vec3{0, 0, -9.81}

func massMatrix(m *rbd.Model, d *rbd.ModelData, q []float64) *mat.Dense {
	GinkgoHelper()
	H := mat.NewDense(m.DoFCount, m.DoFCount, nil)
	Expect(dynamics.CompositeRigidBodyAlgorithm(m, d, q, H, true)).To(Succeed())
	return H
}

func pendulum(gravity mgl64.Vec3) *rbd.Model {
	m := rbd.NewModel()
	m.Gravity = gravity
	body := rbd.NewBody(2, mgl64.Vec3{1, 0, 0}, mgl64.Diag3(mgl64.Vec3{0.1, 0.2, 0.3}))
	add(m, 0, spatial.Identity(), revolute(mgl64.Vec3{0, 0, 1}), body, "bob")
	return m
}

var _ = Describe("NonlinearEffects", func() {
	It("vanishes without gravity and velocity", func() {
		m := branchedModel(mgl64.Vec3{})
		d := rbd.NewModelData(m)
		q, _ := randomState(m, rand.New(rand.NewSource(1)))

		tau := make([]float64, m.QDotSize)
		Expect(dynamics.NonlinearEffects(m, d, q, make([]float64, m.QDotSize), tau, nil)).To(Succeed())
		expectClose(tau, make([]float64, m.QDotSize), 1e-12)
	})

	It("gives the gravity torque of a pendulum", func() {
		m := pendulum(mgl64.Vec3{0, -9.81, 0})
		d := rbd.NewModelData(m)

		tau := make([]float64, 1)
		Expect(dynamics.NonlinearEffects(m, d, []float64{0.3}, []float64{0}, tau, nil)).To(Succeed())
		Expect(tau[0]).To(BeNumerically("~", 2*9.81*math.Cos(0.3), 1e-12))
	})

	It("subtracts external forces given in base coordinates", func() {
		m := pendulum(mgl64.Vec3{})
		d := rbd.NewModelData(m)

		fExt := make([]spatial.Vector, m.BodyCount())
		fExt[1] = spatial.Vector{0, 0, 1.5, 0, 0, 0}
		tau := make([]float64, 1)
		Expect(dynamics.NonlinearEffects(m, d, []float64{0.9}, []float64{0}, tau, fExt)).To(Succeed())
		Expect(tau[0]).To(BeNumerically("~", -1.5, 1e-12))
	})

	It("rejects mismatched inputs", func() {
		m := pendulum(earth)
		d := rbd.NewModelData(m)

		err := dynamics.NonlinearEffects(m, d, []float64{0}, []float64{0}, make([]float64, 1), make([]spatial.Vector, 5))
		Expect(err).To(MatchError(rbd.ErrDimensionMismatch))

		err = dynamics.NonlinearEffects(m, d, []float64{0, 1}, []float64{0}, make([]float64, 1), nil)
		Expect(err).To(MatchError(rbd.ErrDimensionMismatch))
	})
})

var _ = Describe("CompositeRigidBodyAlgorithm", func() {
	It("produces a symmetric positive-definite matrix", func() {
		m := branchedModel(earth)
		d := rbd.NewModelData(m)
		rng := rand.New(rand.NewSource(7))
		n := m.DoFCount

		for trial := 0; trial < 5; trial++ {
			q, _ := randomState(m, rng)
			H := massMatrix(m, d, q)
			Expect(mat.EqualApprox(H, H.T(), 1e-12)).To(BeTrue())

			sym := mat.NewSymDense(n, nil)
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					sym.SetSym(i, j, H.At(i, j))
				}
			}
			var chol mat.Cholesky
			Expect(chol.Factorize(sym)).To(BeTrue())
		}
	})

	It("matches the closed form of a planar two-link arm", func() {
		m := twoLinkPlanar(2, 1, 0.1)
		d := rbd.NewModelData(m)
		H := massMatrix(m, d, []float64{0.4, 0.7})

		c := math.Cos(0.7)
		Expect(H.At(0, 0)).To(BeNumerically("~", 3.2+2*c, 1e-12))
		Expect(H.At(0, 1)).To(BeNumerically("~", 0.6+c, 1e-12))
		Expect(H.At(1, 0)).To(BeNumerically("~", 0.6+c, 1e-12))
		Expect(H.At(1, 1)).To(BeNumerically("~", 0.6, 1e-12))
	})

	It("agrees column by column with inverse dynamics", func() {
		m := branchedModel(mgl64.Vec3{})
		d := rbd.NewModelData(m)
		q, _ := randomState(m, rand.New(rand.NewSource(3)))
		H := massMatrix(m, d, q)

		n := m.DoFCount
		zero := make([]float64, n)
		for k := 0; k < n; k++ {
			e := make([]float64, n)
			e[k] = 1
			col := make([]float64, n)
			Expect(dynamics.InverseDynamics(m, d, q, zero, e, col, nil)).To(Succeed())
			expectClose(col, mat.Col(nil, k, H), 1e-10)
		}
	})

	It("rejects a wrongly sized H", func() {
		m := twoLinkPlanar(1, 1, 0.1)
		d := rbd.NewModelData(m)
		err := dynamics.CompositeRigidBodyAlgorithm(m, d, []float64{0, 0}, mat.NewDense(3, 3, nil), true)
		Expect(err).To(MatchError(rbd.ErrDimensionMismatch))
	})
})

var _ = Describe("ForwardDynamicsLagrangian", func() {
	It("divides torque by the axis inertia for a single revolute joint", func() {
		m := pendulum(mgl64.Vec3{})
		d := rbd.NewModelData(m)

		qddot := make([]float64, 1)
		Expect(dynamics.ForwardDynamicsLagrangian(m, d, []float64{0.5}, []float64{0}, []float64{4.6}, qddot, nil)).To(Succeed())
		Expect(qddot[0]).To(BeNumerically("~", 2, 1e-12))
	})

	DescribeTable("agrees across solvers",
		func(solver dynamics.LinearSolver) {
			m := branchedModel(earth)
			d := rbd.NewModelData(m)
			rng := rand.New(rand.NewSource(11))
			q, qdot := randomState(m, rng)
			tau := randomVector(m.QDotSize, rng)

			ref := make([]float64, m.QDotSize)
			Expect(dynamics.ForwardDynamicsLagrangian(m, d, q, qdot, tau, ref, nil)).To(Succeed())

			got := make([]float64, m.QDotSize)
			opts := &dynamics.LagrangianOptions{Solver: solver}
			Expect(dynamics.ForwardDynamicsLagrangian(m, d, q, qdot, tau, got, opts)).To(Succeed())
			expectClose(got, ref, 1e-9)
		},
		Entry("partial pivot LU", dynamics.PartialPivLU),
		Entry("column pivot QR", dynamics.ColPivHouseholderQR),
		Entry("Householder QR", dynamics.HouseholderQR),
		Entry("Cholesky", dynamics.LLT),
	)

	It("inverts InverseDynamics", func() {
		m := branchedModel(earth)
		d := rbd.NewModelData(m)
		rng := rand.New(rand.NewSource(5))
		q, qdot := randomState(m, rng)
		want := randomVector(m.QDotSize, rng)

		tau := make([]float64, m.QDotSize)
		Expect(dynamics.InverseDynamics(m, d, q, qdot, want, tau, nil)).To(Succeed())

		got := make([]float64, m.QDotSize)
		Expect(dynamics.ForwardDynamicsLagrangian(m, d, q, qdot, tau, got, nil)).To(Succeed())
		expectClose(got, want, 1e-9)
	})

	It("fills caller-provided H and C", func() {
		m := branchedModel(earth)
		d := rbd.NewModelData(m)
		rng := rand.New(rand.NewSource(9))
		q, qdot := randomState(m, rng)
		n := m.DoFCount

		opts := &dynamics.LagrangianOptions{H: mat.NewDense(n, n, nil), C: make([]float64, n)}
		qddot := make([]float64, n)
		Expect(dynamics.ForwardDynamicsLagrangian(m, d, q, qdot, make([]float64, n), qddot, opts)).To(Succeed())

		C := make([]float64, n)
		Expect(dynamics.NonlinearEffects(m, d, q, qdot, C, nil)).To(Succeed())
		expectClose(opts.C, C, 1e-12)
		Expect(mat.EqualApprox(opts.H, massMatrix(m, d, q), 1e-12)).To(BeTrue())
	})

	It("reports singular systems", func() {
		m := rbd.NewModel()
		m.Gravity = mgl64.Vec3{}
		a := add(m, 0, spatial.Identity(), revolute(mgl64.Vec3{0, 0, 1}), link(1, mgl64.Vec3{1, 0, 0}), "a")
		add(m, a, spatial.XTrans(mgl64.Vec3{1, 0, 0}), revolute(mgl64.Vec3{0, 0, 1}), rbd.NewBody(0, mgl64.Vec3{}, mgl64.Mat3{}), "ghost")
		d := rbd.NewModelData(m)

		for _, solver := range dynamics.Solvers() {
			qddot := make([]float64, 2)
			err := dynamics.ForwardDynamicsLagrangian(m, d, []float64{0, 0}, []float64{0, 0}, []float64{1, 1}, qddot,
				&dynamics.LagrangianOptions{Solver: solver})
			if solver == dynamics.LLT {
				Expect(err).To(MatchError(dynamics.ErrNotPositiveDefinite))
			} else {
				Expect(err).To(MatchError(dynamics.ErrSingularMatrix), "solver %s", solver)
			}
		}

		qddot := make([]float64, 2)
		err := dynamics.CalcMInvTimesTau(m, d, []float64{0, 0}, []float64{1, 1}, qddot, true)
		Expect(err).To(MatchError(dynamics.ErrSingularMatrix))
	})
})

var _ = Describe("CalcMInvTimesTau", func() {
	It("agrees with the Lagrangian path without gravity and velocity", func() {
		m := branchedModel(mgl64.Vec3{})
		d := rbd.NewModelData(m)
		rng := rand.New(rand.NewSource(13))
		q, _ := randomState(m, rng)
		tau := randomVector(m.QDotSize, rng)
		zero := make([]float64, m.QDotSize)

		want := make([]float64, m.QDotSize)
		Expect(dynamics.ForwardDynamicsLagrangian(m, d, q, zero, tau, want, nil)).To(Succeed())

		got := make([]float64, m.QDotSize)
		Expect(dynamics.CalcMInvTimesTau(m, d, q, tau, got, true)).To(Succeed())
		expectClose(got, want, 1e-9)
	})

	It("reproduces forward dynamics when given tau - C", func() {
		m := branchedModel(earth)
		d := rbd.NewModelData(m)
		rng := rand.New(rand.NewSource(17))
		q, qdot := randomState(m, rng)
		tau := randomVector(m.QDotSize, rng)

		want := make([]float64, m.QDotSize)
		Expect(dynamics.ForwardDynamicsLagrangian(m, d, q, qdot, tau, want, nil)).To(Succeed())

		C := make([]float64, m.QDotSize)
		Expect(dynamics.NonlinearEffects(m, d, q, qdot, C, nil)).To(Succeed())
		rhs := make([]float64, m.QDotSize)
		floats.SubTo(rhs, tau, C)

		got := make([]float64, m.QDotSize)
		Expect(dynamics.CalcMInvTimesTau(m, d, q, rhs, got, true)).To(Succeed())
		expectClose(got, want, 1e-9)
	})

	It("reuses the factorization when kinematics are not refreshed", func() {
		m := branchedModel(earth)
		d := rbd.NewModelData(m)
		rng := rand.New(rand.NewSource(19))
		q, _ := randomState(m, rng)
		n := m.QDotSize

		first := make([]float64, n)
		Expect(dynamics.CalcMInvTimesTau(m, d, q, randomVector(n, rng), first, true)).To(Succeed())

		H := massMatrix(m, d, q)
		tau := randomVector(n, rng)
		got := make([]float64, n)
		Expect(dynamics.CalcMInvTimesTau(m, d, nil, tau, got, false)).To(Succeed())

		back := mat.NewVecDense(n, nil)
		back.MulVec(H, mat.NewVecDense(n, got))
		expectClose(back.RawVector().Data, tau, 1e-9)
	})
})

var _ = Describe("floating base", func() {
	It("matches a translation + roll/pitch/yaw chain at identity orientation", func() {
		body := link(3, mgl64.Vec3{0.1, -0.05, 0.2})
		child := link(1, mgl64.Vec3{0.2, 0, 0})
		hinge := revolute(mgl64.Vec3{0, 1, 0})
		offset := spatial.XTrans(mgl64.Vec3{0.3, 0.1, 0})

		quatModel := rbd.NewModel()
		base, err := quatModel.SetFloatingBaseBody(body, "base")
		Expect(err).NotTo(HaveOccurred())
		add(quatModel, base, offset, hinge, child, "child")

		rpy, err := rbd.NewJoint(
			spatial.Vector{0, 0, 0, 1, 0, 0},
			spatial.Vector{0, 0, 0, 0, 1, 0},
			spatial.Vector{0, 0, 0, 0, 0, 1},
			spatial.Vector{0, 0, 1, 0, 0, 0},
			spatial.Vector{0, 1, 0, 0, 0, 0},
			spatial.Vector{1, 0, 0, 0, 0, 0},
		)
		Expect(err).NotTo(HaveOccurred())
		chainModel := rbd.NewModel()
		base = add(chainModel, 0, spatial.Identity(), rpy, body, "base")
		add(chainModel, base, offset, hinge, child, "child")

		Expect(quatModel.DoFCount).To(Equal(7))
		Expect(chainModel.DoFCount).To(Equal(7))

		qQuat := quatModel.NeutralQ()
		qQuat[0], qQuat[1], qQuat[2], qQuat[6] = 0.4, -0.2, 1.0, 0.3
		qChain := []float64{0.4, -0.2, 1.0, 0, 0, 0, 0.3}

		Hq := massMatrix(quatModel, rbd.NewModelData(quatModel), qQuat)
		Hc := massMatrix(chainModel, rbd.NewModelData(chainModel), qChain)

		// the chain orders rotations z, y, x
		perm := []int{0, 1, 2, 5, 4, 3, 6}
		for i := 0; i < 7; i++ {
			for j := 0; j < 7; j++ {
				Expect(Hq.At(i, j)).To(BeNumerically("~", Hc.At(perm[i], perm[j]), 1e-12), "H[%d][%d]", i, j)
			}
		}
	})
})

var _ = Describe("fixed bodies", func() {
	It("behave like their merged parent", func() {
		arm := link(1, mgl64.Vec3{0.5, 0, 0})
		tool := link(0.5, mgl64.Vec3{0.05, 0, 0})
		toolFrame := spatial.XRotY(0.4).Mul(spatial.XTrans(mgl64.Vec3{1, 0, 0}))
		hinge := revolute(mgl64.Vec3{0, 0, 1})

		withFixed := rbd.NewModel()
		withFixed.Gravity = earth
		a := add(withFixed, 0, spatial.Identity(), hinge, arm, "arm")
		add(withFixed, a, toolFrame, rbd.NewFixedJoint(), tool, "tool")

		merged := rbd.NewModel()
		merged.Gravity = earth
		add(merged, 0, spatial.Identity(), hinge, arm.Join(toolFrame, tool), "arm")

		q, qdot := []float64{0.8}, []float64{-1.2}
		for _, m := range []*rbd.Model{withFixed, merged} {
			Expect(m.DoFCount).To(Equal(1))
		}

		C1, C2 := make([]float64, 1), make([]float64, 1)
		Expect(dynamics.NonlinearEffects(withFixed, rbd.NewModelData(withFixed), q, qdot, C1, nil)).To(Succeed())
		Expect(dynamics.NonlinearEffects(merged, rbd.NewModelData(merged), q, qdot, C2, nil)).To(Succeed())
		expectClose(C1, C2, 1e-12)

		H1 := massMatrix(withFixed, rbd.NewModelData(withFixed), q)
		H2 := massMatrix(merged, rbd.NewModelData(merged), q)
		Expect(mat.EqualApprox(H1, H2, 1e-12)).To(BeTrue())
	})
})

// rk4Energy integrates a torque-free single-joint body and returns the
// relative drift of its kinetic energy.
func rk4Energy(m *rbd.Model, q, qdot []float64, dt float64, steps int) float64 {
	GinkgoHelper()
	d := rbd.NewModelData(m)
	nq, nv := m.QSize, m.QDotSize
	tau := make([]float64, nv)

	deriv := func(q, qdot []float64) ([]float64, []float64) {
		qd := make([]float64, nq)
		m.QRate(q, qdot, qd)
		qdd := make([]float64, nv)
		Expect(dynamics.ForwardDynamicsLagrangian(m, d, q, qdot, tau, qdd, nil)).To(Succeed())
		return qd, qdd
	}
	axpy := func(x, y []float64, h float64) []float64 {
		out := make([]float64, len(x))
		floats.AddScaledTo(out, x, h, y)
		return out
	}

	e0, err := rbd.KineticEnergy(m, d, q, qdot, true)
	Expect(err).NotTo(HaveOccurred())

	for s := 0; s < steps; s++ {
		k1q, k1v := deriv(q, qdot)
		k2q, k2v := deriv(axpy(q, k1q, dt/2), axpy(qdot, k1v, dt/2))
		k3q, k3v := deriv(axpy(q, k2q, dt/2), axpy(qdot, k2v, dt/2))
		k4q, k4v := deriv(axpy(q, k3q, dt), axpy(qdot, k3v, dt))
		for i := range q {
			q[i] += dt / 6 * (k1q[i] + 2*k2q[i] + 2*k3q[i] + k4q[i])
		}
		for i := range qdot {
			qdot[i] += dt / 6 * (k1v[i] + 2*k2v[i] + 2*k3v[i] + k4v[i])
		}
		m.NormalizeQ(q)
	}

	e1, err := rbd.KineticEnergy(m, d, q, qdot, true)
	Expect(err).NotTo(HaveOccurred())
	return math.Abs(e1-e0) / e0
}

var _ = DescribeTable("torque-free rotation conserves energy",
	func(joint rbd.Joint, q []float64) {
		m := rbd.NewModel()
		m.Gravity = mgl64.Vec3{}
		body := rbd.NewBody(2, mgl64.Vec3{0.1, 0, 0.05}, mgl64.Diag3(mgl64.Vec3{0.3, 0.5, 0.8}))
		add(m, 0, spatial.Identity(), joint, body, "top")
		if q == nil {
			q = m.NeutralQ()
		}

		drift := rk4Energy(m, q, []float64{1, -0.5, 0.8}, 1e-3, 500)
		Expect(drift).To(BeNumerically("<", 1e-8))
	},
	Entry("Euler ZYX", rbd.NewEulerZYXJoint(), []float64{0.2, 0.3, -0.4}),
	Entry("spherical", rbd.NewSphericalJoint(), nil),
)
