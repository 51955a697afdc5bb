package rbd

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rbdyn/internal/spatial"
)

// Body holds the inertial parameters of a rigid body. Inertia is taken about
// the center of mass.
type Body struct {
	Mass      float64
	COM       mgl64.Vec3
	Inertia   mgl64.Mat3
	IsVirtual bool
}

func NewBody(mass float64, com mgl64.Vec3, inertia mgl64.Mat3) Body {
	return Body{Mass: mass, COM: com, Inertia: inertia}
}

// NewBodyFromGyration builds a body from its radii of gyration about the
// principal axes through the center of mass.
func NewBodyFromGyration(mass float64, com, gyration mgl64.Vec3) Body {
	return Body{
		Mass: mass,
		COM:  com,
		Inertia: mgl64.Diag3(mgl64.Vec3{
			mass * gyration[0] * gyration[0],
			mass * gyration[1] * gyration[1],
			mass * gyration[2] * gyration[2],
		}),
	}
}

// NewVirtualBody returns the massless placeholder used to decompose
// multi-DoF joints.
func NewVirtualBody() Body {
	return Body{IsVirtual: true}
}

func (b Body) SpatialInertia() spatial.RigidBodyInertia {
	return spatial.NewRigidBodyInertia(b.Mass, b.COM, b.Inertia)
}

// Join returns the body obtained by rigidly attaching other to b, where X
// maps b's frame to other's frame.
func (b Body) Join(X spatial.Transform, other Body) Body {
	joined := b.SpatialInertia().Add(X.ApplyTransposeInertia(other.SpatialInertia()))
	mass, com, inertia := joined.MassComInertia()
	return Body{Mass: mass, COM: com, Inertia: inertia, IsVirtual: b.IsVirtual && mass == 0}
}

func (b Body) validate() error {
	if b.Mass < 0 {
		return ErrInvalidBody
	}
	if b.IsVirtual && b.Mass != 0 {
		return ErrInvalidBody
	}
	return nil
}

// FixedBody is a body welded to a movable parent. Its inertia has already
// been merged into the parent; it is kept for frame queries.
type FixedBody struct {
	Body
	MovableParent   int
	ParentTransform spatial.Transform
}

// BaseTransform returns the frame transform from base coordinates given the
// movable parent's base transform.
func (fb FixedBody) BaseTransform(parentBase spatial.Transform) spatial.Transform {
	return fb.ParentTransform.Mul(parentBase)
}
