package rbd

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/quat"

	"github.com/san-kum/rbdyn/internal/spatial"
)

// Jcalc computes the joint transform, motion subspace, joint velocity and
// joint bias acceleration of body id and stores XLambda = XJ * XT.
func Jcalc(m *Model, d *ModelData, id int, q, qdot []float64) error {
	j := m.Joints[id]
	qi := j.QIndex

	switch j.Type {
	case JointTypeRevoluteX:
		d.XJ[id] = spatial.XRotX(q[qi])
		d.VJ[id] = spatial.Vector{qdot[qi], 0, 0, 0, 0, 0}
	case JointTypeRevoluteY:
		d.XJ[id] = spatial.XRotY(q[qi])
		d.VJ[id] = spatial.Vector{0, qdot[qi], 0, 0, 0, 0}
	case JointTypeRevoluteZ:
		d.XJ[id] = spatial.XRotZ(q[qi])
		d.VJ[id] = spatial.Vector{0, 0, qdot[qi], 0, 0, 0}
	case JointTypeRevolute:
		d.XJ[id] = spatial.XRot(q[qi], j.Axes[0].Angular())
		d.VJ[id] = d.S[id].Scale(qdot[qi])
	case JointTypePrismatic:
		d.XJ[id] = spatial.XTrans(j.Axes[0].Linear().Mul(q[qi]))
		d.VJ[id] = d.S[id].Scale(qdot[qi])
	case JointTypeSpherical:
		o := quat.Number{Real: q[j.WIndex], Imag: q[qi], Jmag: q[qi+1], Kmag: q[qi+2]}
		d.XJ[id] = spatial.Transform{E: spatial.QuatToMatrix(o)}
		d.VJ[id] = d.MultDof3S[id].MulVec3(mgl64.Vec3{qdot[qi], qdot[qi+1], qdot[qi+2]})
	case JointTypeEulerZYX:
		jcalcEulerZYX(d, id, q[qi:qi+3], qdot[qi:qi+3])
		d.XLambda[id] = d.XJ[id].Mul(m.XT[id])
		return nil
	case JointTypeTranslationXYZ:
		d.XJ[id] = spatial.XTrans(mgl64.Vec3{q[qi], q[qi+1], q[qi+2]})
		d.VJ[id] = d.MultDof3S[id].MulVec3(mgl64.Vec3{qdot[qi], qdot[qi+1], qdot[qi+2]})
	default:
		return &BodyError{ID: id, Name: m.GetBodyName(id), Wrapped: fmt.Errorf("%w: %s", ErrUnsupportedJoint, j.Type)}
	}

	d.CJ[id] = spatial.Vector{}
	d.XLambda[id] = d.XJ[id].Mul(m.XT[id])
	return nil
}

// JcalcXLambdaS updates only XLambda and the motion subspace of body id.
func JcalcXLambdaS(m *Model, d *ModelData, id int, q []float64) error {
	j := m.Joints[id]
	qi := j.QIndex

	switch j.Type {
	case JointTypeRevoluteX:
		d.XJ[id] = spatial.XRotX(q[qi])
	case JointTypeRevoluteY:
		d.XJ[id] = spatial.XRotY(q[qi])
	case JointTypeRevoluteZ:
		d.XJ[id] = spatial.XRotZ(q[qi])
	case JointTypeRevolute:
		d.XJ[id] = spatial.XRot(q[qi], j.Axes[0].Angular())
	case JointTypePrismatic:
		d.XJ[id] = spatial.XTrans(j.Axes[0].Linear().Mul(q[qi]))
	case JointTypeSpherical:
		o := quat.Number{Real: q[j.WIndex], Imag: q[qi], Jmag: q[qi+1], Kmag: q[qi+2]}
		d.XJ[id] = spatial.Transform{E: spatial.QuatToMatrix(o)}
	case JointTypeEulerZYX:
		d.XJ[id] = spatial.Transform{E: eulerZYXRotation(q[qi], q[qi+1], q[qi+2])}
		d.MultDof3S[id] = eulerZYXSubspace(q[qi+1], q[qi+2])
	case JointTypeTranslationXYZ:
		d.XJ[id] = spatial.XTrans(mgl64.Vec3{q[qi], q[qi+1], q[qi+2]})
	default:
		return &BodyError{ID: id, Name: m.GetBodyName(id), Wrapped: fmt.Errorf("%w: %s", ErrUnsupportedJoint, j.Type)}
	}

	d.XLambda[id] = d.XJ[id].Mul(m.XT[id])
	return nil
}

func jcalcEulerZYX(d *ModelData, id int, q, qdot []float64) {
	s1, c1 := math.Sincos(q[1])
	s2, c2 := math.Sincos(q[2])

	d.XJ[id] = spatial.Transform{E: eulerZYXRotation(q[0], q[1], q[2])}
	d.MultDof3S[id] = eulerZYXSubspace(q[1], q[2])
	d.VJ[id] = d.MultDof3S[id].MulVec3(mgl64.Vec3{qdot[0], qdot[1], qdot[2]})
	d.CJ[id] = spatial.Vector{
		-c1 * qdot[0] * qdot[1],
		-s1*s2*qdot[0]*qdot[1] + c1*c2*qdot[0]*qdot[2] - s2*qdot[1]*qdot[2],
		-s1*c2*qdot[0]*qdot[1] - c1*s2*qdot[0]*qdot[2] - c2*qdot[2]*qdot[1],
		0, 0, 0,
	}
}

// eulerZYXRotation equals RotX(x) * RotY(y) * RotZ(z).
func eulerZYXRotation(z, y, x float64) mgl64.Mat3 {
	s0, c0 := math.Sincos(z)
	s1, c1 := math.Sincos(y)
	s2, c2 := math.Sincos(x)
	return mgl64.Mat3FromRows(
		mgl64.Vec3{c0 * c1, s0 * c1, -s1},
		mgl64.Vec3{c0*s1*s2 - s0*c2, s0*s1*s2 + c0*c2, c1 * s2},
		mgl64.Vec3{c0*s1*c2 + s0*s2, s0*s1*c2 - c0*s2, c1 * c2},
	)
}

func eulerZYXSubspace(y, x float64) spatial.Matrix63 {
	s1, c1 := math.Sincos(y)
	s2, c2 := math.Sincos(x)
	var S spatial.Matrix63
	S[0][0], S[0][2] = -s1, 1
	S[1][0], S[1][1] = c1*s2, c2
	S[2][0], S[2][1] = c1*c2, -s2
	return S
}
