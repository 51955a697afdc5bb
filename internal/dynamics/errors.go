package dynamics

import "errors"

var (
	// ErrSingularMatrix indicates a rank-deficient joint-space inertia matrix
	// or a zero articulated inertia along a joint axis.
	ErrSingularMatrix = errors.New("dynamics: singular inertia matrix")

	// ErrNotPositiveDefinite indicates the Cholesky factorization failed.
	ErrNotPositiveDefinite = errors.New("dynamics: inertia matrix not positive definite")

	ErrUnknownSolver = errors.New("dynamics: unknown linear solver")
)
