package rbd

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rbdyn/internal/spatial"
)

// ModelData holds the per-call buffers of the dynamics algorithms. A Model
// may be shared between goroutines as long as each one owns its ModelData.
type ModelData struct {
	V  []spatial.Vector
	A  []spatial.Vector
	C  []spatial.Vector
	CJ []spatial.Vector
	VJ []spatial.Vector
	F  []spatial.Vector

	XLambda []spatial.Transform
	XJ      []spatial.Transform
	XBase   []spatial.Transform

	S         []spatial.Vector
	MultDof3S []spatial.Matrix63

	IA           []spatial.Matrix
	PA           []spatial.Vector
	U            []spatial.Vector
	D            []float64
	UScalar      []float64
	MultDof3U    []spatial.Matrix63
	MultDof3Dinv []mgl64.Mat3
	MultDof3u    []mgl64.Vec3

	Ic []spatial.RigidBodyInertia

	bodies int
}

// NewModelData sizes all buffers for the model's current body count and
// initializes the constant motion subspaces.
func NewModelData(m *Model) *ModelData {
	n := m.BodyCount()
	d := &ModelData{
		V:            make([]spatial.Vector, n),
		A:            make([]spatial.Vector, n),
		C:            make([]spatial.Vector, n),
		CJ:           make([]spatial.Vector, n),
		VJ:           make([]spatial.Vector, n),
		F:            make([]spatial.Vector, n),
		XLambda:      make([]spatial.Transform, n),
		XJ:           make([]spatial.Transform, n),
		XBase:        make([]spatial.Transform, n),
		S:            make([]spatial.Vector, n),
		MultDof3S:    make([]spatial.Matrix63, n),
		IA:           make([]spatial.Matrix, n),
		PA:           make([]spatial.Vector, n),
		U:            make([]spatial.Vector, n),
		D:            make([]float64, n),
		UScalar:      make([]float64, n),
		MultDof3U:    make([]spatial.Matrix63, n),
		MultDof3Dinv: make([]mgl64.Mat3, n),
		MultDof3u:    make([]mgl64.Vec3, n),
		Ic:           make([]spatial.RigidBodyInertia, n),
		bodies:       n,
	}

	for i := 0; i < n; i++ {
		d.XLambda[i] = spatial.Identity()
		d.XJ[i] = spatial.Identity()
		d.XBase[i] = spatial.Identity()
		d.Ic[i] = m.I[i]
	}

	for i := 1; i < n; i++ {
		j := m.Joints[i]
		switch {
		case j.DoFCount == 1:
			d.S[i] = j.Axes[0]
		case j.DoFCount == 3 && len(j.Axes) == 3:
			for c := 0; c < 3; c++ {
				d.MultDof3S[i].SetCol(c, j.Axes[c])
			}
		}
	}
	return d
}

// Check reports ErrStaleModelData if the model grew after d was created.
func (d *ModelData) Check(m *Model) error {
	if d.bodies != m.BodyCount() {
		return fmt.Errorf("%w: data sized for %d bodies, model has %d", ErrStaleModelData, d.bodies, m.BodyCount())
	}
	return nil
}

// Reset zeroes velocities, accelerations and forces.
func (d *ModelData) Reset() {
	for i := range d.V {
		d.V[i] = spatial.Vector{}
		d.A[i] = spatial.Vector{}
		d.C[i] = spatial.Vector{}
		d.F[i] = spatial.Vector{}
		d.PA[i] = spatial.Vector{}
	}
}
