package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Matrix is a dense 6x6 spatial matrix, row-major.
type Matrix [6][6]float64

func MatrixIdentity() Matrix {
	var m Matrix
	for i := 0; i < 6; i++ {
		m[i][i] = 1
	}
	return m
}

func (m *Matrix) setBlock(row, col int, b mgl64.Mat3) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[row+i][col+j] = b.At(i, j)
		}
	}
}

// Block returns the 3x3 block starting at (row, col).
func (m Matrix) Block(row, col int) mgl64.Mat3 {
	var b mgl64.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			b.Set(i, j, m[row+i][col+j])
		}
	}
	return b
}

func (m Matrix) Add(o Matrix) Matrix {
	for i := range m {
		for j := range m[i] {
			m[i][j] += o[i][j]
		}
	}
	return m
}

func (m Matrix) Sub(o Matrix) Matrix {
	for i := range m {
		for j := range m[i] {
			m[i][j] -= o[i][j]
		}
	}
	return m
}

func (m Matrix) Scale(s float64) Matrix {
	for i := range m {
		for j := range m[i] {
			m[i][j] *= s
		}
	}
	return m
}

func (m Matrix) Mul(o Matrix) Matrix {
	var out Matrix
	for i := 0; i < 6; i++ {
		for k := 0; k < 6; k++ {
			a := m[i][k]
			if a == 0 {
				continue
			}
			for j := 0; j < 6; j++ {
				out[i][j] += a * o[k][j]
			}
		}
	}
	return out
}

func (m Matrix) MulVector(v Vector) Vector {
	var out Vector
	for i := 0; i < 6; i++ {
		sum := 0.0
		for j := 0; j < 6; j++ {
			sum += m[i][j] * v[j]
		}
		out[i] = sum
	}
	return out
}

func (m Matrix) MulMatrix63(S Matrix63) Matrix63 {
	var out Matrix63
	for i := 0; i < 6; i++ {
		for j := 0; j < 3; j++ {
			sum := 0.0
			for k := 0; k < 6; k++ {
				sum += m[i][k] * S[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

func (m Matrix) Transpose() Matrix {
	var out Matrix
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			out[j][i] = m[i][j]
		}
	}
	return out
}

// Congruence returns X^T m X for the motion transform X.
func (m Matrix) Congruence(X Transform) Matrix {
	Xm := X.Matrix()
	return Xm.Transpose().Mul(m).Mul(Xm)
}

func (m Matrix) ApproxEqual(o Matrix, eps float64) bool {
	for i := range m {
		for j := range m[i] {
			if math.Abs(m[i][j]-o[i][j]) > eps {
				return false
			}
		}
	}
	return true
}

// Matrix63 holds three spatial column vectors, the motion subspace of a
// 3-DoF joint or the matching U = IA*S block.
type Matrix63 [6][3]float64

func (s Matrix63) Col(j int) Vector {
	return Vector{s[0][j], s[1][j], s[2][j], s[3][j], s[4][j], s[5][j]}
}

func (s *Matrix63) SetCol(j int, v Vector) {
	for i := 0; i < 6; i++ {
		s[i][j] = v[i]
	}
}

// MulVec3 returns s * x.
func (s Matrix63) MulVec3(x mgl64.Vec3) Vector {
	var out Vector
	for i := 0; i < 6; i++ {
		out[i] = s[i][0]*x[0] + s[i][1]*x[1] + s[i][2]*x[2]
	}
	return out
}

// TransposeMulVector returns s^T * v.
func (s Matrix63) TransposeMulVector(v Vector) mgl64.Vec3 {
	var out mgl64.Vec3
	for j := 0; j < 3; j++ {
		sum := 0.0
		for i := 0; i < 6; i++ {
			sum += s[i][j] * v[i]
		}
		out[j] = sum
	}
	return out
}

// TransposeMul returns s^T * o.
func (s Matrix63) TransposeMul(o Matrix63) mgl64.Mat3 {
	var out mgl64.Mat3
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			sum := 0.0
			for i := 0; i < 6; i++ {
				sum += s[i][a] * o[i][b]
			}
			out.Set(a, b, sum)
		}
	}
	return out
}

// MulMat3 returns s * m.
func (s Matrix63) MulMat3(m mgl64.Mat3) Matrix63 {
	var out Matrix63
	for i := 0; i < 6; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = s[i][0]*m.At(0, j) + s[i][1]*m.At(1, j) + s[i][2]*m.At(2, j)
		}
	}
	return out
}

// MulTranspose returns s * o^T.
func (s Matrix63) MulTranspose(o Matrix63) Matrix {
	var out Matrix
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			out[i][j] = s[i][0]*o[j][0] + s[i][1]*o[j][1] + s[i][2]*o[j][2]
		}
	}
	return out
}
