package spatial

import (
	"github.com/go-gl/mathgl/mgl64"
)

// RigidBodyInertia stores mass M, first moment H = M*com and the rotational
// inertia I about the frame origin.
type RigidBodyInertia struct {
	M float64
	H mgl64.Vec3
	I mgl64.Mat3
}

// NewRigidBodyInertia builds the spatial inertia of a body with the given
// mass, center of mass and inertia about the center of mass.
func NewRigidBodyInertia(mass float64, com mgl64.Vec3, inertiaCOM mgl64.Mat3) RigidBodyInertia {
	cx := CrossMatrix3(com)
	return RigidBodyInertia{
		M: mass,
		H: com.Mul(mass),
		I: inertiaCOM.Add(cx.Mul3(cx.Transpose()).Mul(mass)),
	}
}

// MassComInertia recovers mass, center of mass and inertia about the center
// of mass. A massless inertia yields a zero center of mass.
func (rbi RigidBodyInertia) MassComInertia() (float64, mgl64.Vec3, mgl64.Mat3) {
	if rbi.M == 0 {
		return 0, mgl64.Vec3{}, rbi.I
	}
	com := rbi.H.Mul(1 / rbi.M)
	cx := CrossMatrix3(com)
	return rbi.M, com, rbi.I.Sub(cx.Mul3(cx.Transpose()).Mul(rbi.M))
}

func (rbi RigidBodyInertia) Add(o RigidBodyInertia) RigidBodyInertia {
	return RigidBodyInertia{M: rbi.M + o.M, H: rbi.H.Add(o.H), I: rbi.I.Add(o.I)}
}

// MulVector maps a motion vector to the momentum/force it induces.
func (rbi RigidBodyInertia) MulVector(v Vector) Vector {
	w, l := v.Angular(), v.Linear()
	return NewVector(
		rbi.I.Mul3x1(w).Add(rbi.H.Cross(l)),
		l.Mul(rbi.M).Sub(rbi.H.Cross(w)),
	)
}

func (rbi RigidBodyInertia) MulMatrix63(S Matrix63) Matrix63 {
	var out Matrix63
	for j := 0; j < 3; j++ {
		out.SetCol(j, rbi.MulVector(S.Col(j)))
	}
	return out
}

func (rbi RigidBodyInertia) Matrix() Matrix {
	var m Matrix
	hx := CrossMatrix3(rbi.H)
	m.setBlock(0, 0, rbi.I)
	m.setBlock(0, 3, hx)
	m.setBlock(3, 0, hx.Transpose())
	m.setBlock(3, 3, mgl64.Ident3().Mul(rbi.M))
	return m
}
