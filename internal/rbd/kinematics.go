package rbd

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rbdyn/internal/spatial"
)

// CheckInputs verifies data freshness and the lengths of q and qdot. A nil
// qdot is not checked.
func CheckInputs(m *Model, d *ModelData, q, qdot []float64) error {
	if err := d.Check(m); err != nil {
		return err
	}
	if err := checkLen("q", q, m.QSize); err != nil {
		return err
	}
	if qdot != nil {
		if err := checkLen("qdot", qdot, m.QDotSize); err != nil {
			return err
		}
	}
	return nil
}

// CheckDoF verifies that v has one entry per degree of freedom.
func CheckDoF(m *Model, name string, v []float64) error {
	return checkLen(name, v, m.QDotSize)
}

// UpdateKinematics computes body transforms, velocities and accelerations
// (without gravity) for the given state. A nil qddot means zero.
func UpdateKinematics(m *Model, d *ModelData, q, qdot, qddot []float64) error {
	if err := CheckInputs(m, d, q, qdot); err != nil {
		return err
	}
	if qddot != nil {
		if err := checkLen("qddot", qddot, m.QDotSize); err != nil {
			return err
		}
	}

	d.V[0] = spatial.Vector{}
	d.A[0] = spatial.Vector{}

	for _, i := range m.JointUpdateOrder {
		if err := Jcalc(m, d, i, q, qdot); err != nil {
			return err
		}
		parent := m.Lambda[i]
		if parent != 0 {
			d.XBase[i] = d.XLambda[i].Mul(d.XBase[parent])
		} else {
			d.XBase[i] = d.XLambda[i]
		}

		d.V[i] = d.XLambda[i].Apply(d.V[parent]).Add(d.VJ[i])
		d.C[i] = d.CJ[i].Add(spatial.CrossM(d.V[i], d.VJ[i]))
		d.A[i] = d.XLambda[i].Apply(d.A[parent]).Add(d.C[i])

		if qddot != nil {
			d.A[i] = d.A[i].Add(jointMotion(m, d, i, qddot))
		}
	}
	return nil
}

// UpdatePositions computes only XLambda, XBase and the motion subspaces.
func UpdatePositions(m *Model, d *ModelData, q []float64) error {
	if err := CheckInputs(m, d, q, nil); err != nil {
		return err
	}
	for _, i := range m.JointUpdateOrder {
		if err := JcalcXLambdaS(m, d, i, q); err != nil {
			return err
		}
		if parent := m.Lambda[i]; parent != 0 {
			d.XBase[i] = d.XLambda[i].Mul(d.XBase[parent])
		} else {
			d.XBase[i] = d.XLambda[i]
		}
	}
	return nil
}

// jointMotion returns S * x for the joint coordinates of body i.
func jointMotion(m *Model, d *ModelData, i int, x []float64) spatial.Vector {
	j := m.Joints[i]
	if j.DoFCount == 1 {
		return d.S[i].Scale(x[j.QIndex])
	}
	return d.MultDof3S[i].MulVec3(mgl64.Vec3{x[j.QIndex], x[j.QIndex+1], x[j.QIndex+2]})
}

// bodyBaseTransform returns the base-to-body transform of a movable or
// fixed body from the current XBase.
func bodyBaseTransform(m *Model, d *ModelData, id int) (spatial.Transform, error) {
	if m.IsFixedBodyID(id) {
		fb := m.FixedBodies[id-m.FixedBodyDiscriminator]
		return fb.BaseTransform(d.XBase[fb.MovableParent]), nil
	}
	if id < 0 || id >= m.BodyCount() {
		return spatial.Transform{}, fmt.Errorf("%w: id %d", ErrBodyNotFound, id)
	}
	return d.XBase[id], nil
}

// CalcBodyToBaseCoordinates maps a point given in body coordinates to base
// coordinates. With update false the transforms from the last kinematics
// update are used and q is ignored.
func CalcBodyToBaseCoordinates(m *Model, d *ModelData, q []float64, id int, point mgl64.Vec3, update bool) (mgl64.Vec3, error) {
	if update {
		if err := UpdatePositions(m, d, q); err != nil {
			return mgl64.Vec3{}, err
		}
	}
	X, err := bodyBaseTransform(m, d, id)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return X.R.Add(X.E.Transpose().Mul3x1(point)), nil
}

// CalcBaseToBodyCoordinates is the inverse of CalcBodyToBaseCoordinates.
func CalcBaseToBodyCoordinates(m *Model, d *ModelData, q []float64, id int, point mgl64.Vec3, update bool) (mgl64.Vec3, error) {
	if update {
		if err := UpdatePositions(m, d, q); err != nil {
			return mgl64.Vec3{}, err
		}
	}
	X, err := bodyBaseTransform(m, d, id)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return X.E.Mul3x1(point.Sub(X.R)), nil
}

// CalcBodyWorldOrientation returns the rotation from base to body coordinates.
func CalcBodyWorldOrientation(m *Model, d *ModelData, q []float64, id int, update bool) (mgl64.Mat3, error) {
	if update {
		if err := UpdatePositions(m, d, q); err != nil {
			return mgl64.Mat3{}, err
		}
	}
	X, err := bodyBaseTransform(m, d, id)
	if err != nil {
		return mgl64.Mat3{}, err
	}
	return X.E, nil
}

// KineticEnergy returns sum(0.5 v_i . I_i v_i) over all bodies.
func KineticEnergy(m *Model, d *ModelData, q, qdot []float64, update bool) (float64, error) {
	if update {
		if err := UpdateKinematics(m, d, q, qdot, nil); err != nil {
			return 0, err
		}
	}
	energy := 0.0
	for i := 1; i < m.BodyCount(); i++ {
		energy += 0.5 * d.V[i].Dot(m.I[i].MulVector(d.V[i]))
	}
	return energy, nil
}

// PotentialEnergy returns the gravitational potential relative to the base origin.
func PotentialEnergy(m *Model, d *ModelData, q []float64, update bool) (float64, error) {
	if update {
		if err := UpdatePositions(m, d, q); err != nil {
			return 0, err
		}
	}
	energy := 0.0
	for i := 1; i < m.BodyCount(); i++ {
		b := m.Bodies[i]
		if b.Mass == 0 {
			continue
		}
		com, err := CalcBodyToBaseCoordinates(m, d, q, i, b.COM, false)
		if err != nil {
			return 0, err
		}
		energy -= b.Mass * m.Gravity.Dot(com)
	}
	return energy, nil
}

// CalcCenterOfMass returns the total mass and the base-frame center of mass.
func CalcCenterOfMass(m *Model, d *ModelData, q []float64, update bool) (float64, mgl64.Vec3, error) {
	if update {
		if err := UpdatePositions(m, d, q); err != nil {
			return 0, mgl64.Vec3{}, err
		}
	}
	total := 0.0
	var weighted mgl64.Vec3
	for i := 1; i < m.BodyCount(); i++ {
		b := m.Bodies[i]
		if b.Mass == 0 {
			continue
		}
		com, err := CalcBodyToBaseCoordinates(m, d, q, i, b.COM, false)
		if err != nil {
			return 0, mgl64.Vec3{}, err
		}
		total += b.Mass
		weighted = weighted.Add(com.Mul(b.Mass))
	}
	if total == 0 {
		return 0, mgl64.Vec3{}, nil
	}
	return total, weighted.Mul(1 / total), nil
}
