package rbd

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rbdyn/internal/spatial"
)

type JointType int

const (
	JointTypeUndefined JointType = iota
	JointTypeFixed
	JointTypeRevolute
	JointTypePrismatic
	JointTypeRevoluteX
	JointTypeRevoluteY
	JointTypeRevoluteZ
	JointTypeSpherical
	JointTypeEulerZYX
	JointTypeTranslationXYZ
	// JointTypeFloatingBase expands into a TranslationXYZ virtual body and a
	// Spherical joint on the real body.
	JointTypeFloatingBase
	// JointTypeMultiAxis covers 2..6 arbitrary axes, each turned into its own
	// 1-DoF joint on a chain of virtual bodies.
	JointTypeMultiAxis
)

var jointTypeNames = map[JointType]string{
	JointTypeUndefined:      "undefined",
	JointTypeFixed:          "fixed",
	JointTypeRevolute:       "revolute",
	JointTypePrismatic:      "prismatic",
	JointTypeRevoluteX:      "revolute_x",
	JointTypeRevoluteY:      "revolute_y",
	JointTypeRevoluteZ:      "revolute_z",
	JointTypeSpherical:      "spherical",
	JointTypeEulerZYX:       "euler_zyx",
	JointTypeTranslationXYZ: "translation_xyz",
	JointTypeFloatingBase:   "floating_base",
	JointTypeMultiAxis:      "multi_axis",
}

func (t JointType) String() string {
	if s, ok := jointTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("JointType(%d)", int(t))
}

// Joint connects a body to its parent. QIndex is the first slot of the
// joint in q and qdot; a spherical joint additionally stores the quaternion
// w component at WIndex.
type Joint struct {
	Type     JointType
	DoFCount int
	Axes     []spatial.Vector
	QIndex   int
	WIndex   int
}

func NewFixedJoint() Joint {
	return Joint{Type: JointTypeFixed}
}

// NewRevoluteJoint rotates about axis. Coordinate axes select the
// specialised X/Y/Z variants.
func NewRevoluteJoint(axis mgl64.Vec3) (Joint, error) {
	return NewJoint(spatial.NewVector(axis, mgl64.Vec3{}))
}

func NewPrismaticJoint(axis mgl64.Vec3) (Joint, error) {
	return NewJoint(spatial.NewVector(mgl64.Vec3{}, axis))
}

func NewSphericalJoint() Joint {
	return Joint{
		Type:     JointTypeSpherical,
		DoFCount: 3,
		Axes: []spatial.Vector{
			{1, 0, 0, 0, 0, 0},
			{0, 1, 0, 0, 0, 0},
			{0, 0, 1, 0, 0, 0},
		},
	}
}

// NewEulerZYXJoint has coordinates (z, y, x) applied in that order.
func NewEulerZYXJoint() Joint {
	return Joint{Type: JointTypeEulerZYX, DoFCount: 3}
}

func NewTranslationXYZJoint() Joint {
	return Joint{
		Type:     JointTypeTranslationXYZ,
		DoFCount: 3,
		Axes: []spatial.Vector{
			{0, 0, 0, 1, 0, 0},
			{0, 0, 0, 0, 1, 0},
			{0, 0, 0, 0, 0, 1},
		},
	}
}

func NewFloatingBaseJoint() Joint {
	return Joint{Type: JointTypeFloatingBase, DoFCount: 6}
}

// NewJoint builds a joint from one to six spatial motion axes. A single
// axis yields a revolute or prismatic joint; several yield a multi-axis
// joint. Each axis must be purely rotational or purely translational.
func NewJoint(axes ...spatial.Vector) (Joint, error) {
	if len(axes) == 0 || len(axes) > 6 {
		return Joint{}, fmt.Errorf("%w: %d axes", ErrUnsupportedJoint, len(axes))
	}

	normalized := make([]spatial.Vector, len(axes))
	for i, a := range axes {
		n, err := normalizeAxis(a)
		if err != nil {
			return Joint{}, err
		}
		normalized[i] = n
	}

	if len(normalized) > 1 {
		return Joint{Type: JointTypeMultiAxis, DoFCount: len(normalized), Axes: normalized}, nil
	}

	a := normalized[0]
	j := Joint{DoFCount: 1, Axes: normalized}
	switch {
	case a == spatial.Vector{1, 0, 0, 0, 0, 0}:
		j.Type = JointTypeRevoluteX
	case a == spatial.Vector{0, 1, 0, 0, 0, 0}:
		j.Type = JointTypeRevoluteY
	case a == spatial.Vector{0, 0, 1, 0, 0, 0}:
		j.Type = JointTypeRevoluteZ
	case a.Linear() == mgl64.Vec3{}:
		j.Type = JointTypeRevolute
	default:
		j.Type = JointTypePrismatic
	}
	return j, nil
}

func normalizeAxis(a spatial.Vector) (spatial.Vector, error) {
	w, l := a.Angular(), a.Linear()
	wn, ln := w.Len(), l.Len()
	switch {
	case wn > 0 && ln == 0:
		return spatial.NewVector(w.Mul(1/wn), mgl64.Vec3{}), nil
	case ln > 0 && wn == 0:
		return spatial.NewVector(mgl64.Vec3{}, l.Mul(1/ln)), nil
	default:
		return spatial.Vector{}, fmt.Errorf("%w: %v", ErrInvalidJointAxis, a)
	}
}

// QSize is the number of position coordinates consumed by the joint.
func (j Joint) QSize() int {
	if j.Type == JointTypeSpherical {
		return 4
	}
	return j.DoFCount
}

func (j Joint) String() string {
	return fmt.Sprintf("%s(dof=%d)", j.Type, j.DoFCount)
}
