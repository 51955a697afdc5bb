package spatial

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Vector is a spatial motion or force vector: angular part first, linear second.
type Vector [6]float64

func NewVector(angular, linear mgl64.Vec3) Vector {
	return Vector{angular[0], angular[1], angular[2], linear[0], linear[1], linear[2]}
}

func (v Vector) Angular() mgl64.Vec3 { return mgl64.Vec3{v[0], v[1], v[2]} }
func (v Vector) Linear() mgl64.Vec3  { return mgl64.Vec3{v[3], v[4], v[5]} }

func (v Vector) Add(o Vector) Vector {
	for i := range v {
		v[i] += o[i]
	}
	return v
}

func (v Vector) Sub(o Vector) Vector {
	for i := range v {
		v[i] -= o[i]
	}
	return v
}

func (v Vector) Scale(s float64) Vector {
	for i := range v {
		v[i] *= s
	}
	return v
}

func (v Vector) Dot(o Vector) float64 {
	sum := 0.0
	for i := range v {
		sum += v[i] * o[i]
	}
	return sum
}

func (v Vector) IsZero() bool {
	return v == Vector{}
}

// Outer returns the 6x6 matrix v * o^T.
func (v Vector) Outer(o Vector) Matrix {
	var m Matrix
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			m[i][j] = v[i] * o[j]
		}
	}
	return m
}

func (v Vector) String() string {
	return fmt.Sprintf("[%g %g %g | %g %g %g]", v[0], v[1], v[2], v[3], v[4], v[5])
}

// CrossM is the motion cross product v1 x v2.
func CrossM(v1, v2 Vector) Vector {
	w1, l1 := v1.Angular(), v1.Linear()
	w2, l2 := v2.Angular(), v2.Linear()
	return NewVector(
		w1.Cross(w2),
		w1.Cross(l2).Add(l1.Cross(w2)),
	)
}

// CrossF is the force cross product v x* f.
func CrossF(v, f Vector) Vector {
	w, l := v.Angular(), v.Linear()
	n, fl := f.Angular(), f.Linear()
	return NewVector(
		w.Cross(n).Add(l.Cross(fl)),
		w.Cross(fl),
	)
}

// CrossMatrix3 returns the 3x3 skew-symmetric matrix with CrossMatrix3(a)*b = a x b.
func CrossMatrix3(a mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromRows(
		mgl64.Vec3{0, -a[2], a[1]},
		mgl64.Vec3{a[2], 0, -a[0]},
		mgl64.Vec3{-a[1], a[0], 0},
	)
}
