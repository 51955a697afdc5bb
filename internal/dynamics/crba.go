package dynamics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdyn/internal/rbd"
)

// CompositeRigidBodyAlgorithm fills H with the joint-space inertia matrix at
// configuration q. With updateKinematics false the joint transforms and
// motion subspaces from the previous call on d are reused and q is ignored.
// H must be a DoFCount x DoFCount matrix; both triangles are written.
func CompositeRigidBodyAlgorithm(m *rbd.Model, d *rbd.ModelData, q []float64, H *mat.Dense, updateKinematics bool) error {
	if err := d.Check(m); err != nil {
		return err
	}
	if m.DoFCount == 0 {
		return nil
	}
	if r, c := H.Dims(); r != m.DoFCount || c != m.DoFCount {
		return fmt.Errorf("%w: H is %dx%d, want %dx%d", rbd.ErrDimensionMismatch, r, c, m.DoFCount, m.DoFCount)
	}
	if updateKinematics {
		if err := rbd.UpdatePositions(m, d, q); err != nil {
			return err
		}
	}

	H.Zero()
	for i := 1; i < m.BodyCount(); i++ {
		d.Ic[i] = m.I[i]
	}

	for i := m.BodyCount() - 1; i > 0; i-- {
		if parent := m.Lambda[i]; parent != 0 {
			d.Ic[parent] = d.Ic[parent].Add(d.XLambda[i].ApplyTransposeInertia(d.Ic[i]))
		}

		qi := m.Joints[i].QIndex
		switch m.Joints[i].DoFCount {
		case 1:
			F := d.Ic[i].MulVector(d.S[i])
			H.Set(qi, qi, d.S[i].Dot(F))

			for j := i; m.Lambda[j] != 0; {
				F = d.XLambda[j].ApplyTranspose(F)
				j = m.Lambda[j]
				qj := m.Joints[j].QIndex

				switch m.Joints[j].DoFCount {
				case 1:
					h := F.Dot(d.S[j])
					H.Set(qi, qj, h)
					H.Set(qj, qi, h)
				case 3:
					h := d.MultDof3S[j].TransposeMulVector(F)
					for k := 0; k < 3; k++ {
						H.Set(qi, qj+k, h[k])
						H.Set(qj+k, qi, h[k])
					}
				default:
					return unsupported(m, j)
				}
			}
		case 3:
			F := d.Ic[i].MulMatrix63(d.MultDof3S[i])
			block := d.MultDof3S[i].TransposeMul(F)
			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					H.Set(qi+r, qi+c, block.At(r, c))
				}
			}

			for j := i; m.Lambda[j] != 0; {
				F = d.XLambda[j].ApplyTransposeMatrix63(F)
				j = m.Lambda[j]
				qj := m.Joints[j].QIndex

				switch m.Joints[j].DoFCount {
				case 1:
					h := F.TransposeMulVector(d.S[j])
					for k := 0; k < 3; k++ {
						H.Set(qi+k, qj, h[k])
						H.Set(qj, qi+k, h[k])
					}
				case 3:
					h := F.TransposeMul(d.MultDof3S[j])
					for r := 0; r < 3; r++ {
						for c := 0; c < 3; c++ {
							H.Set(qi+r, qj+c, h.At(r, c))
							H.Set(qj+c, qi+r, h.At(r, c))
						}
					}
				default:
					return unsupported(m, j)
				}
			}
		default:
			return unsupported(m, i)
		}
	}
	return nil
}
