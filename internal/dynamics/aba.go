package dynamics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rbdyn/internal/rbd"
	"github.com/san-kum/rbdyn/internal/spatial"
)

// CalcMInvTimesTau computes qddot = H(q)^-1 tau with the articulated-body
// algorithm, ignoring gravity and velocity-dependent terms.
//
// With updateKinematics true the joint transforms and articulated inertias
// are recomputed from q. With false the factorization left in d by the
// previous call is reused, which makes repeated solves at the same q cheap.
func CalcMInvTimesTau(m *rbd.Model, d *rbd.ModelData, q, tau, qddot []float64, updateKinematics bool) error {
	if err := d.Check(m); err != nil {
		return err
	}
	if err := rbd.CheckDoF(m, "tau", tau); err != nil {
		return err
	}
	if err := rbd.CheckDoF(m, "qddot", qddot); err != nil {
		return err
	}

	n := m.BodyCount()
	d.V[0] = spatial.Vector{}
	d.A[0] = spatial.Vector{}

	if updateKinematics {
		if err := rbd.UpdatePositions(m, d, q); err != nil {
			return err
		}
		for i := 1; i < n; i++ {
			d.VJ[i] = spatial.Vector{}
			d.V[i] = spatial.Vector{}
			d.CJ[i] = spatial.Vector{}
			d.IA[i] = m.I[i].Matrix()
		}
		if err := articulatedInertias(m, d); err != nil {
			return err
		}
	}

	for i := 1; i < n; i++ {
		d.PA[i] = spatial.Vector{}
	}

	// articulated bias forces
	for i := n - 1; i > 0; i-- {
		j := m.Joints[i]
		parent := m.Lambda[i]

		switch j.DoFCount {
		case 1:
			d.UScalar[i] = tau[j.QIndex] - d.S[i].Dot(d.PA[i])
			if parent != 0 {
				pa := d.PA[i].Add(d.U[i].Scale(d.UScalar[i] / d.D[i]))
				d.PA[parent] = d.PA[parent].Add(d.XLambda[i].ApplyTranspose(pa))
			}
		case 3:
			t := mgl64.Vec3{tau[j.QIndex], tau[j.QIndex+1], tau[j.QIndex+2]}
			d.MultDof3u[i] = t.Sub(d.MultDof3S[i].TransposeMulVector(d.PA[i]))
			if parent != 0 {
				pa := d.PA[i].Add(d.MultDof3U[i].MulVec3(d.MultDof3Dinv[i].Mul3x1(d.MultDof3u[i])))
				d.PA[parent] = d.PA[parent].Add(d.XLambda[i].ApplyTranspose(pa))
			}
		default:
			return unsupported(m, i)
		}
	}

	// accelerations
	for i := 1; i < n; i++ {
		j := m.Joints[i]
		d.A[i] = d.XLambda[i].Apply(d.A[m.Lambda[i]])

		switch j.DoFCount {
		case 1:
			qdd := (d.UScalar[i] - d.U[i].Dot(d.A[i])) / d.D[i]
			qddot[j.QIndex] = qdd
			d.A[i] = d.A[i].Add(d.S[i].Scale(qdd))
		case 3:
			qdd := d.MultDof3Dinv[i].Mul3x1(d.MultDof3u[i].Sub(d.MultDof3U[i].TransposeMulVector(d.A[i])))
			qddot[j.QIndex], qddot[j.QIndex+1], qddot[j.QIndex+2] = qdd[0], qdd[1], qdd[2]
			d.A[i] = d.A[i].Add(d.MultDof3S[i].MulVec3(qdd))
		}
	}
	return nil
}

// articulatedInertias runs the backward pass computing IA, U, D and Dinv.
// IA must hold the rigid-body inertias on entry.
func articulatedInertias(m *rbd.Model, d *rbd.ModelData) error {
	for i := m.BodyCount() - 1; i > 0; i-- {
		j := m.Joints[i]
		parent := m.Lambda[i]

		switch j.DoFCount {
		case 1:
			d.U[i] = d.IA[i].MulVector(d.S[i])
			d.D[i] = d.S[i].Dot(d.U[i])
			if d.D[i] == 0 {
				return singularJoint(m, i)
			}
			if parent != 0 {
				Ia := d.IA[i].Sub(d.U[i].Outer(d.U[i].Scale(1 / d.D[i])))
				d.IA[parent] = d.IA[parent].Add(Ia.Congruence(d.XLambda[i]))
			}
		case 3:
			d.MultDof3U[i] = d.IA[i].MulMatrix63(d.MultDof3S[i])
			D := d.MultDof3S[i].TransposeMul(d.MultDof3U[i])
			if D.Det() == 0 {
				return singularJoint(m, i)
			}
			d.MultDof3Dinv[i] = D.Inv()
			if parent != 0 {
				Ia := d.IA[i].Sub(d.MultDof3U[i].MulMat3(d.MultDof3Dinv[i]).MulTranspose(d.MultDof3U[i]))
				d.IA[parent] = d.IA[parent].Add(Ia.Congruence(d.XLambda[i]))
			}
		default:
			return unsupported(m, i)
		}
	}
	return nil
}

func singularJoint(m *rbd.Model, i int) error {
	return &rbd.BodyError{
		ID:      i,
		Name:    m.GetBodyName(i),
		Wrapped: fmt.Errorf("%w: zero articulated inertia along joint axis", ErrSingularMatrix),
	}
}
