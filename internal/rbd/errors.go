package rbd

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedJoint indicates a joint type or DoF count the algorithms cannot handle.
	ErrUnsupportedJoint = errors.New("rbd: unsupported joint type")

	// ErrInvalidJointAxis indicates a zero axis or an axis mixing rotation and translation.
	ErrInvalidJointAxis = errors.New("rbd: invalid joint axis")

	// ErrInvalidParent indicates a parent id that names no body.
	ErrInvalidParent = errors.New("rbd: invalid parent body id")

	// ErrInvalidBody indicates negative mass or a virtual body carrying mass.
	ErrInvalidBody = errors.New("rbd: invalid body parameters")

	ErrBodyNotFound      = errors.New("rbd: body not found")
	ErrDuplicateBodyName = errors.New("rbd: body name already in use")

	// ErrFixedJointFrame indicates an attempt to move the joint frame of a fixed body.
	ErrFixedJointFrame = errors.New("rbd: joint frame of a fixed body cannot be changed")

	// ErrNotSpherical indicates a quaternion query on a body whose joint is not spherical.
	ErrNotSpherical = errors.New("rbd: joint is not spherical")

	// ErrStaleModelData indicates ModelData created for an earlier version of the model.
	ErrStaleModelData = errors.New("rbd: model data does not match model (bodies added after creation)")

	// ErrDimensionMismatch indicates a q, qdot or tau slice of the wrong length.
	ErrDimensionMismatch = errors.New("rbd: vector dimension mismatch")
)

// BodyError attaches the offending body to an error.
type BodyError struct {
	ID      int
	Name    string
	Wrapped error
}

func (e *BodyError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("body %d (%s): %v", e.ID, e.Name, e.Wrapped)
	}
	return fmt.Sprintf("body %d: %v", e.ID, e.Wrapped)
}

func (e *BodyError) Unwrap() error {
	return e.Wrapped
}

func checkLen(name string, v []float64, want int) error {
	if len(v) != want {
		return fmt.Errorf("%w: %s has length %d, want %d", ErrDimensionMismatch, name, len(v), want)
	}
	return nil
}
