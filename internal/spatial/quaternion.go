package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/quat"
)

// QuatIdentity is the zero rotation.
var QuatIdentity = quat.Number{Real: 1}

// QuatToMatrix returns the coordinate rotation (parent to child) described by
// the unit quaternion q.
func QuatToMatrix(q quat.Number) mgl64.Mat3 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mgl64.Mat3FromRows(
		mgl64.Vec3{1 - 2*y*y - 2*z*z, 2*x*y + 2*w*z, 2*x*z - 2*w*y},
		mgl64.Vec3{2*x*y - 2*w*z, 1 - 2*x*x - 2*z*z, 2*y*z + 2*w*x},
		mgl64.Vec3{2*x*z + 2*w*y, 2*y*z - 2*w*x, 1 - 2*x*x - 2*y*y},
	)
}

// QuatFromAxisAngle builds the quaternion rotating by angle about axis. The
// axis need not be normalized.
func QuatFromAxisAngle(axis mgl64.Vec3, angle float64) quat.Number {
	d := axis.Len()
	if d == 0 {
		return QuatIdentity
	}
	s, c := math.Sincos(angle * 0.5)
	s /= d
	return quat.Number{Real: c, Imag: axis[0] * s, Jmag: axis[1] * s, Kmag: axis[2] * s}
}

// QuatFromZYX builds the quaternion equivalent of the Euler ZYX angles
// (yaw, pitch, roll) in the same convention as XRotZ, XRotY and XRotX.
func QuatFromZYX(yaw, pitch, roll float64) quat.Number {
	qz := QuatFromAxisAngle(mgl64.Vec3{0, 0, 1}, yaw)
	qy := QuatFromAxisAngle(mgl64.Vec3{0, 1, 0}, pitch)
	qx := QuatFromAxisAngle(mgl64.Vec3{1, 0, 0}, roll)
	return quat.Mul(quat.Mul(qz, qy), qx)
}

func QuatNormalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return QuatIdentity
	}
	return quat.Scale(1/n, q)
}

// QuatRate returns dq/dt for the body-frame angular velocity omega.
func QuatRate(q quat.Number, omega mgl64.Vec3) quat.Number {
	w := quat.Number{Imag: omega[0], Jmag: omega[1], Kmag: omega[2]}
	return quat.Scale(0.5, quat.Mul(q, w))
}

// QuatStep advances q by a constant body-frame angular velocity over dt.
func QuatStep(q quat.Number, omega mgl64.Vec3, dt float64) quat.Number {
	n := omega.Len()
	if n == 0 {
		return q
	}
	return QuatNormalize(quat.Mul(q, QuatFromAxisAngle(omega, dt*n)))
}
