package dynamics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rbdyn/internal/rbd"
	"github.com/san-kum/rbdyn/internal/spatial"
)

// NonlinearEffects computes the generalized bias force C(q, qdot) holding
// gravity, Coriolis and centrifugal terms and, when fExt is non-nil, the
// effect of external forces given in base coordinates. The result is
// written to tau.
func NonlinearEffects(m *rbd.Model, d *rbd.ModelData, q, qdot, tau []float64, fExt []spatial.Vector) error {
	return InverseDynamics(m, d, q, qdot, nil, tau, fExt)
}

// InverseDynamics computes the generalized forces tau that produce qddot
// from state (q, qdot) under gravity and the optional external forces. A
// nil qddot means zero acceleration.
func InverseDynamics(m *rbd.Model, d *rbd.ModelData, q, qdot, qddot, tau []float64, fExt []spatial.Vector) error {
	if err := rbd.CheckInputs(m, d, q, qdot); err != nil {
		return err
	}
	if err := rbd.CheckDoF(m, "tau", tau); err != nil {
		return err
	}
	if qddot != nil {
		if err := rbd.CheckDoF(m, "qddot", qddot); err != nil {
			return err
		}
	}
	if fExt != nil && len(fExt) != m.BodyCount() {
		return fmt.Errorf("%w: fExt has %d entries, want %d", rbd.ErrDimensionMismatch, len(fExt), m.BodyCount())
	}

	d.V[0] = spatial.Vector{}
	d.A[0] = spatial.NewVector(mgl64.Vec3{}, m.Gravity.Mul(-1))

	for _, i := range m.JointUpdateOrder {
		if err := rbd.Jcalc(m, d, i, q, qdot); err != nil {
			return err
		}
	}

	for i := 1; i < m.BodyCount(); i++ {
		parent := m.Lambda[i]
		X := d.XLambda[i]

		if parent != 0 {
			d.XBase[i] = X.Mul(d.XBase[parent])
		} else {
			d.XBase[i] = X
		}

		d.V[i] = X.Apply(d.V[parent]).Add(d.VJ[i])
		d.C[i] = d.CJ[i].Add(spatial.CrossM(d.V[i], d.VJ[i]))
		d.A[i] = X.Apply(d.A[parent]).Add(d.C[i])
		if qddot != nil {
			a, err := jointVector(m, d, i, qddot)
			if err != nil {
				return err
			}
			d.A[i] = d.A[i].Add(a)
		}

		if m.Bodies[i].IsVirtual {
			d.F[i] = spatial.Vector{}
			continue
		}
		Iv := m.I[i].MulVector(d.V[i])
		d.F[i] = m.I[i].MulVector(d.A[i]).Add(spatial.CrossF(d.V[i], Iv))
		if fExt != nil {
			d.F[i] = d.F[i].Sub(d.XBase[i].ApplyAdjoint(fExt[i]))
		}
	}

	for i := m.BodyCount() - 1; i > 0; i-- {
		if err := projectForce(m, d, i, d.F[i], tau); err != nil {
			return err
		}
		if parent := m.Lambda[i]; parent != 0 {
			d.F[parent] = d.F[parent].Add(d.XLambda[i].ApplyTranspose(d.F[i]))
		}
	}
	return nil
}

// jointVector returns S * x restricted to the coordinates of joint i.
func jointVector(m *rbd.Model, d *rbd.ModelData, i int, x []float64) (spatial.Vector, error) {
	j := m.Joints[i]
	switch j.DoFCount {
	case 1:
		return d.S[i].Scale(x[j.QIndex]), nil
	case 3:
		return d.MultDof3S[i].MulVec3(mgl64.Vec3{x[j.QIndex], x[j.QIndex+1], x[j.QIndex+2]}), nil
	default:
		return spatial.Vector{}, unsupported(m, i)
	}
}

// projectForce writes S^T f into the joint coordinates of body i.
func projectForce(m *rbd.Model, d *rbd.ModelData, i int, f spatial.Vector, tau []float64) error {
	j := m.Joints[i]
	switch j.DoFCount {
	case 1:
		tau[j.QIndex] = d.S[i].Dot(f)
	case 3:
		t := d.MultDof3S[i].TransposeMulVector(f)
		tau[j.QIndex], tau[j.QIndex+1], tau[j.QIndex+2] = t[0], t[1], t[2]
	default:
		return unsupported(m, i)
	}
	return nil
}

func unsupported(m *rbd.Model, i int) error {
	return &rbd.BodyError{
		ID:      i,
		Name:    m.GetBodyName(i),
		Wrapped: fmt.Errorf("%w: %d DoF", rbd.ErrUnsupportedJoint, m.Joints[i].DoFCount),
	}
}
