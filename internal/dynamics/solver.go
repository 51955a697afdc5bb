package dynamics

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/lapack/gonum"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdyn/internal/logger"
)

// LinearSolver selects the factorization used by ForwardDynamicsLagrangian.
type LinearSolver int

const (
	PartialPivLU LinearSolver = iota
	ColPivHouseholderQR
	HouseholderQR
	LLT
)

var solverNames = map[LinearSolver]string{
	PartialPivLU:        "lu",
	ColPivHouseholderQR: "colpivqr",
	HouseholderQR:       "qr",
	LLT:                 "llt",
}

func (s LinearSolver) String() string {
	if n, ok := solverNames[s]; ok {
		return n
	}
	return fmt.Sprintf("LinearSolver(%d)", int(s))
}

// ParseLinearSolver accepts the names printed by String.
func ParseLinearSolver(name string) (LinearSolver, error) {
	for s, n := range solverNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSolver, name)
}

// Solvers lists all solvers in declaration order.
func Solvers() []LinearSolver {
	return []LinearSolver{PartialPivLU, ColPivHouseholderQR, HouseholderQR, LLT}
}

// Solve writes the solution of A x = b into x.
func (s LinearSolver) Solve(A *mat.Dense, b, x []float64) error {
	n, _ := A.Dims()
	dst := mat.NewVecDense(n, x)
	rhs := mat.NewVecDense(n, b)

	switch s {
	case PartialPivLU:
		var lu mat.LU
		lu.Factorize(A)
		return conditionError(s, lu.SolveVecTo(dst, false, rhs))
	case HouseholderQR:
		var qr mat.QR
		qr.Factorize(A)
		return conditionError(s, qr.SolveVecTo(dst, false, rhs))
	case LLT:
		sym := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				sym.SetSym(i, j, A.At(i, j))
			}
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(sym); !ok {
			logger.Log.Warn("cholesky factorization failed", zap.Int("n", n))
			return ErrNotPositiveDefinite
		}
		return conditionError(s, chol.SolveVecTo(dst, rhs))
	case ColPivHouseholderQR:
		return solveColPivQR(A, b, x)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownSolver, int(s))
	}
}

// conditionError tolerates ill-conditioned but solvable systems and maps
// exact singularity to ErrSingularMatrix.
func conditionError(s LinearSolver, err error) error {
	if err == nil {
		return nil
	}
	var cond mat.Condition
	if errors.As(err, &cond) && !math.IsInf(float64(cond), 1) && !math.IsNaN(float64(cond)) {
		logger.Log.Warn("ill-conditioned inertia matrix",
			zap.Stringer("solver", s),
			zap.Float64("condition", float64(cond)),
		)
		return nil
	}
	logger.Log.Warn("linear solve failed", zap.Stringer("solver", s), zap.Error(err))
	return fmt.Errorf("%w: %v", ErrSingularMatrix, err)
}

// solveColPivQR factors A P = Q R with column pivoting and solves
// R y = Q^T b, x = P y.
func solveColPivQR(A *mat.Dense, b, x []float64) error {
	n, _ := A.Dims()
	impl := gonum.Implementation{}

	a := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a[i*n+j] = A.At(i, j)
		}
	}

	jpvt := make([]int, n)
	for i := range jpvt {
		jpvt[i] = -1
	}
	tau := make([]float64, n)

	work := make([]float64, 1)
	impl.Dgeqp3(n, n, a, n, jpvt, tau, work, -1)
	work = make([]float64, int(work[0]))
	impl.Dgeqp3(n, n, a, n, jpvt, tau, work, len(work))

	// rank check on the diagonal of R, which is sorted by magnitude
	threshold := float64(n) * 1e-14 * math.Abs(a[0])
	for k := 0; k < n; k++ {
		if a[k*n+k] == 0 || math.Abs(a[k*n+k]) <= threshold {
			logger.Log.Warn("rank-deficient inertia matrix", zap.Int("rank", k), zap.Int("n", n))
			return fmt.Errorf("%w: rank %d of %d", ErrSingularMatrix, k, n)
		}
	}

	y := make([]float64, n)
	copy(y, b)
	work = make([]float64, 1)
	impl.Dormqr(blas.Left, blas.Trans, n, 1, n, a, n, tau, y, 1, work, -1)
	work = make([]float64, int(work[0]))
	impl.Dormqr(blas.Left, blas.Trans, n, 1, n, a, n, tau, y, 1, work, len(work))

	if ok := impl.Dtrtrs(blas.Upper, blas.NoTrans, blas.NonUnit, n, 1, a, n, y, 1); !ok {
		return ErrSingularMatrix
	}

	for j := 0; j < n; j++ {
		x[jpvt[j]] = y[j]
	}
	return nil
}
