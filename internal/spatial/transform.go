package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is the Plücker transform X = rot(E) * xlt(R).
type Transform struct {
	E mgl64.Mat3
	R mgl64.Vec3
}

func Identity() Transform {
	return Transform{E: mgl64.Ident3()}
}

func NewTransform(E mgl64.Mat3, r mgl64.Vec3) Transform {
	return Transform{E: E, R: r}
}

// Apply transforms a motion vector.
func (X Transform) Apply(v Vector) Vector {
	w := v.Angular()
	l := v.Linear().Sub(X.R.Cross(w))
	return NewVector(X.E.Mul3x1(w), X.E.Mul3x1(l))
}

// ApplyTranspose computes X^T f, mapping a force from the child frame back to the parent frame.
func (X Transform) ApplyTranspose(f Vector) Vector {
	Et := X.E.Transpose()
	n := Et.Mul3x1(f.Angular())
	fl := Et.Mul3x1(f.Linear())
	return NewVector(n.Add(X.R.Cross(fl)), fl)
}

// ApplyAdjoint computes X* f, mapping a force from the parent frame to the child frame.
func (X Transform) ApplyAdjoint(f Vector) Vector {
	n := f.Angular().Sub(X.R.Cross(f.Linear()))
	return NewVector(X.E.Mul3x1(n), X.E.Mul3x1(f.Linear()))
}

// ApplyTransposeInertia computes X^T I X without forming 6x6 matrices.
func (X Transform) ApplyTransposeInertia(I RigidBodyInertia) RigidBodyInertia {
	Et := X.E.Transpose()
	Eth := Et.Mul3x1(I.H)
	h := Eth.Add(X.R.Mul(I.M))
	rx := CrossMatrix3(X.R)
	inertia := Et.Mul3(I.I).Mul3(X.E).
		Sub(rx.Mul3(CrossMatrix3(Eth))).
		Sub(CrossMatrix3(h).Mul3(rx))
	return RigidBodyInertia{M: I.M, H: h, I: inertia}
}

// Mul composes transforms: (X.Mul(Y)).Apply(v) == X.Apply(Y.Apply(v)).
func (X Transform) Mul(Y Transform) Transform {
	return Transform{
		E: X.E.Mul3(Y.E),
		R: Y.R.Add(Y.E.Transpose().Mul3x1(X.R)),
	}
}

func (X Transform) Inverse() Transform {
	return Transform{E: X.E.Transpose(), R: X.E.Mul3x1(X.R).Mul(-1)}
}

// Matrix returns the 6x6 motion transform.
func (X Transform) Matrix() Matrix {
	var m Matrix
	mErx := X.E.Mul3(CrossMatrix3(X.R)).Mul(-1)
	m.setBlock(0, 0, X.E)
	m.setBlock(3, 0, mErx)
	m.setBlock(3, 3, X.E)
	return m
}

func (X Transform) MatrixTranspose() Matrix {
	return X.Matrix().Transpose()
}

// MatrixAdjoint returns the 6x6 force transform X*.
func (X Transform) MatrixAdjoint() Matrix {
	var m Matrix
	mErx := X.E.Mul3(CrossMatrix3(X.R)).Mul(-1)
	m.setBlock(0, 0, X.E)
	m.setBlock(0, 3, mErx)
	m.setBlock(3, 3, X.E)
	return m
}

func (X Transform) ApplyMatrix63(S Matrix63) Matrix63 {
	var out Matrix63
	for j := 0; j < 3; j++ {
		out.SetCol(j, X.Apply(S.Col(j)))
	}
	return out
}

// ApplyTransposeMatrix63 applies X^T to each column of F.
func (X Transform) ApplyTransposeMatrix63(F Matrix63) Matrix63 {
	var out Matrix63
	for j := 0; j < 3; j++ {
		out.SetCol(j, X.ApplyTranspose(F.Col(j)))
	}
	return out
}

func (X Transform) ApproxEqual(Y Transform, eps float64) bool {
	for i := range X.E {
		if math.Abs(X.E[i]-Y.E[i]) > eps {
			return false
		}
	}
	for i := range X.R {
		if math.Abs(X.R[i]-Y.R[i]) > eps {
			return false
		}
	}
	return true
}

// XTrans is a pure translation of the frame origin by r.
func XTrans(r mgl64.Vec3) Transform {
	return Transform{E: mgl64.Ident3(), R: r}
}

// XRot rotates the frame by angle about a unit axis.
func XRot(angle float64, axis mgl64.Vec3) Transform {
	s, c := math.Sincos(angle)
	x, y, z := axis[0], axis[1], axis[2]
	E := mgl64.Mat3FromRows(
		mgl64.Vec3{x*x*(1-c) + c, y*x*(1-c) + z*s, x*z*(1-c) - y*s},
		mgl64.Vec3{x*y*(1-c) - z*s, y*y*(1-c) + c, y*z*(1-c) + x*s},
		mgl64.Vec3{x*z*(1-c) + y*s, y*z*(1-c) - x*s, z*z*(1-c) + c},
	)
	return Transform{E: E}
}

func XRotX(angle float64) Transform {
	return Transform{E: RotX(angle)}
}

func XRotY(angle float64) Transform {
	return Transform{E: RotY(angle)}
}

func XRotZ(angle float64) Transform {
	return Transform{E: RotZ(angle)}
}

// XRPY builds a joint frame from roll/pitch/yaw angles and a translation,
// rotating about x, then y, then z before translating.
func XRPY(rpy, xyz mgl64.Vec3) Transform {
	return XRotX(rpy[0]).Mul(XRotY(rpy[1])).Mul(XRotZ(rpy[2])).Mul(XTrans(xyz))
}

// RotX is the coordinate rotation about x (parent to child).
func RotX(angle float64) mgl64.Mat3 {
	s, c := math.Sincos(angle)
	return mgl64.Mat3FromRows(
		mgl64.Vec3{1, 0, 0},
		mgl64.Vec3{0, c, s},
		mgl64.Vec3{0, -s, c},
	)
}

func RotY(angle float64) mgl64.Mat3 {
	s, c := math.Sincos(angle)
	return mgl64.Mat3FromRows(
		mgl64.Vec3{c, 0, -s},
		mgl64.Vec3{0, 1, 0},
		mgl64.Vec3{s, 0, c},
	)
}

func RotZ(angle float64) mgl64.Mat3 {
	s, c := math.Sincos(angle)
	return mgl64.Mat3FromRows(
		mgl64.Vec3{c, s, 0},
		mgl64.Vec3{-s, c, 0},
		mgl64.Vec3{0, 0, 1},
	)
}
