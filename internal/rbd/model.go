package rbd

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/num/quat"

	"github.com/san-kum/rbdyn/internal/logger"
	"github.com/san-kum/rbdyn/internal/spatial"
)

// RootName is the initial name of body 0.
const RootName = "ROOT"

// DefaultFixedBodyDiscriminator is the first id handed out to fixed bodies.
const DefaultFixedBodyDiscriminator = math.MaxInt32 / 2

// Model describes a kinematic tree. Index 0 is the immobile root; slices
// indexed by body id cover movable and virtual bodies. Fixed bodies get ids
// starting at FixedBodyDiscriminator.
type Model struct {
	Lambda []int
	Mu     [][]int

	DoFCount int
	QSize    int
	QDotSize int

	// PreviousBodyID is the parent used by AppendBody.
	PreviousBodyID int

	Gravity mgl64.Vec3

	Joints           []Joint
	XT               []spatial.Transform
	JointUpdateOrder []int

	Bodies []Body
	I      []spatial.RigidBodyInertia

	FixedBodies            []FixedBody
	FixedBodyDiscriminator int

	bodyNames map[string]int
}

func NewModel() *Model {
	m := &Model{
		Lambda:                 []int{0},
		Mu:                     [][]int{{}},
		Gravity:                mgl64.Vec3{0, -9.81, 0},
		Joints:                 []Joint{{Type: JointTypeUndefined}},
		XT:                     []spatial.Transform{spatial.Identity()},
		Bodies:                 []Body{{}},
		I:                      []spatial.RigidBodyInertia{{}},
		FixedBodyDiscriminator: DefaultFixedBodyDiscriminator,
		bodyNames:              map[string]int{RootName: 0},
	}
	return m
}

// BodyCount returns the number of movable and virtual bodies including the root.
func (m *Model) BodyCount() int {
	return len(m.Lambda)
}

// AddBody attaches body to parentID through joint, located at jointFrame
// relative to the parent frame. Fixed joints merge the body into its movable
// parent; multi-DoF joints insert virtual bodies. The returned id refers to
// the body itself.
func (m *Model) AddBody(parentID int, jointFrame spatial.Transform, joint Joint, body Body, name string) (int, error) {
	if err := body.validate(); err != nil {
		return 0, &BodyError{ID: -1, Name: name, Wrapped: fmt.Errorf("%w: mass %g", err, body.Mass)}
	}
	if !m.isValidParent(parentID) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidParent, parentID)
	}
	if name != "" {
		if _, exists := m.bodyNames[name]; exists {
			return 0, fmt.Errorf("%w: %q", ErrDuplicateBodyName, name)
		}
	}

	switch joint.Type {
	case JointTypeFixed:
		return m.addFixedBody(parentID, jointFrame, body, name)
	case JointTypeFloatingBase:
		translation, err := m.addMovableBody(parentID, jointFrame, NewTranslationXYZJoint(), NewVirtualBody(), "")
		if err != nil {
			return 0, err
		}
		return m.addMovableBody(translation, spatial.Identity(), NewSphericalJoint(), body, name)
	case JointTypeMultiAxis:
		return m.addMultiAxisBody(parentID, jointFrame, joint, body, name)
	case JointTypeRevolute, JointTypePrismatic, JointTypeRevoluteX, JointTypeRevoluteY, JointTypeRevoluteZ,
		JointTypeSpherical, JointTypeEulerZYX, JointTypeTranslationXYZ:
		return m.addMovableBody(parentID, jointFrame, joint, body, name)
	default:
		return 0, &BodyError{ID: -1, Name: name, Wrapped: fmt.Errorf("%w: %s", ErrUnsupportedJoint, joint.Type)}
	}
}

// AppendBody adds a body to the most recently added one.
func (m *Model) AppendBody(jointFrame spatial.Transform, joint Joint, body Body, name string) (int, error) {
	return m.AddBody(m.PreviousBodyID, jointFrame, joint, body, name)
}

// SetFloatingBaseBody attaches body to the root with a 6-DoF floating joint.
func (m *Model) SetFloatingBaseBody(body Body, name string) (int, error) {
	return m.AddBody(0, spatial.Identity(), NewFloatingBaseJoint(), body, name)
}

func (m *Model) isValidParent(id int) bool {
	if id >= 0 && id < len(m.Lambda) {
		return true
	}
	return m.IsFixedBodyID(id)
}

// movableParent resolves a fixed parent to its movable ancestor and the
// transform from that ancestor to jointFrame's target.
func (m *Model) movableParent(parentID int, jointFrame spatial.Transform) (int, spatial.Transform) {
	if m.IsFixedBodyID(parentID) {
		fb := m.FixedBodies[parentID-m.FixedBodyDiscriminator]
		return fb.MovableParent, jointFrame.Mul(fb.ParentTransform)
	}
	return parentID, jointFrame
}

func (m *Model) addFixedBody(parentID int, jointFrame spatial.Transform, body Body, name string) (int, error) {
	parent, X := m.movableParent(parentID, jointFrame)

	m.Bodies[parent] = m.Bodies[parent].Join(X, body)
	m.I[parent] = m.Bodies[parent].SpatialInertia()

	id := m.FixedBodyDiscriminator + len(m.FixedBodies)
	m.FixedBodies = append(m.FixedBodies, FixedBody{
		Body:            body,
		MovableParent:   parent,
		ParentTransform: X,
	})
	if name != "" {
		m.bodyNames[name] = id
	}
	m.PreviousBodyID = id

	logger.Log.Debug("merged fixed body",
		zap.Int("id", id),
		zap.String("name", name),
		zap.Int("movable_parent", parent),
		zap.Float64("mass", body.Mass),
	)
	return id, nil
}

func (m *Model) addMultiAxisBody(parentID int, jointFrame spatial.Transform, joint Joint, body Body, name string) (int, error) {
	if joint.DoFCount < 2 || joint.DoFCount > 6 || len(joint.Axes) != joint.DoFCount {
		return 0, &BodyError{ID: -1, Name: name, Wrapped: fmt.Errorf("%w: %d axes", ErrUnsupportedJoint, len(joint.Axes))}
	}

	parent := parentID
	frame := jointFrame
	for i, axis := range joint.Axes {
		single, err := NewJoint(axis)
		if err != nil {
			return 0, err
		}

		if i == len(joint.Axes)-1 {
			return m.addMovableBody(parent, frame, single, body, name)
		}
		parent, err = m.addMovableBody(parent, frame, single, NewVirtualBody(), "")
		if err != nil {
			return 0, err
		}
		frame = spatial.Identity()
	}
	return parent, nil
}

func (m *Model) addMovableBody(parentID int, jointFrame spatial.Transform, joint Joint, body Body, name string) (int, error) {
	if joint.Type == JointTypeEulerZYX || joint.Type == JointTypeSpherical || joint.Type == JointTypeTranslationXYZ {
		joint.DoFCount = 3
	}
	if joint.DoFCount != 1 && joint.DoFCount != 3 {
		return 0, &BodyError{ID: -1, Name: name, Wrapped: fmt.Errorf("%w: %d DoF", ErrUnsupportedJoint, joint.DoFCount)}
	}

	parent, X := m.movableParent(parentID, jointFrame)
	id := len(m.Lambda)

	joint.QIndex = m.DoFCount
	m.DoFCount += joint.DoFCount
	m.QSize += joint.QSize()
	m.QDotSize += joint.DoFCount

	m.Lambda = append(m.Lambda, parent)
	m.Mu[parent] = append(m.Mu[parent], id)
	m.Mu = append(m.Mu, []int{})
	m.Joints = append(m.Joints, joint)
	m.XT = append(m.XT, X)
	m.JointUpdateOrder = append(m.JointUpdateOrder, id)
	m.Bodies = append(m.Bodies, body)
	m.I = append(m.I, body.SpatialInertia())

	m.updateWIndices()

	if name != "" {
		m.bodyNames[name] = id
	}
	m.PreviousBodyID = id

	logger.Log.Debug("added body",
		zap.Int("id", id),
		zap.String("name", name),
		zap.Int("parent", parent),
		zap.Stringer("joint", joint.Type),
		zap.Bool("virtual", body.IsVirtual),
	)
	return id, nil
}

// updateWIndices places the w components of all spherical joints after the
// DoF slots, in body order.
func (m *Model) updateWIndices() {
	n := 0
	for i := 1; i < len(m.Joints); i++ {
		if m.Joints[i].Type == JointTypeSpherical {
			m.Joints[i].WIndex = m.DoFCount + n
			n++
		}
	}
}

// GetBodyID returns the id of the named body.
func (m *Model) GetBodyID(name string) (int, error) {
	id, ok := m.bodyNames[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBodyNotFound, name)
	}
	return id, nil
}

// GetBodyName returns the name of a body or "" when it has none.
func (m *Model) GetBodyName(id int) string {
	for name, bid := range m.bodyNames {
		if bid == id {
			return name
		}
	}
	return ""
}

// RenameBody changes the name of a body, including the root.
func (m *Model) RenameBody(id int, name string) error {
	if id != 0 && !m.IsBodyID(id) {
		return fmt.Errorf("%w: id %d", ErrBodyNotFound, id)
	}
	if other, exists := m.bodyNames[name]; exists && other != id {
		return fmt.Errorf("%w: %q", ErrDuplicateBodyName, name)
	}
	if old := m.GetBodyName(id); old != "" {
		delete(m.bodyNames, old)
	}
	m.bodyNames[name] = id
	return nil
}

// BodyNames returns a copy of the name to id map.
func (m *Model) BodyNames() map[string]int {
	out := make(map[string]int, len(m.bodyNames))
	for k, v := range m.bodyNames {
		out[k] = v
	}
	return out
}

// IsBodyID reports whether id names a movable or fixed body. The root is
// not a body in this sense.
func (m *Model) IsBodyID(id int) bool {
	if id > 0 && id < len(m.Lambda) {
		return true
	}
	return m.IsFixedBodyID(id)
}

func (m *Model) IsFixedBodyID(id int) bool {
	return id >= m.FixedBodyDiscriminator && id-m.FixedBodyDiscriminator < len(m.FixedBodies)
}

// GetParentBodyID returns the nearest non-virtual ancestor of a body.
func (m *Model) GetParentBodyID(id int) (int, error) {
	if m.IsFixedBodyID(id) {
		return m.FixedBodies[id-m.FixedBodyDiscriminator].MovableParent, nil
	}
	if id <= 0 || id >= len(m.Lambda) {
		return 0, fmt.Errorf("%w: id %d", ErrBodyNotFound, id)
	}

	parent := m.Lambda[id]
	for parent != 0 && m.Bodies[parent].IsVirtual {
		parent = m.Lambda[parent]
	}
	return parent, nil
}

// jointFrameOwner walks past virtual parents to the body whose XT holds the
// user-visible joint frame of id.
func (m *Model) jointFrameOwner(id int) int {
	child := id
	parent := m.Lambda[id]
	for parent != 0 && m.Bodies[parent].IsVirtual {
		child = parent
		parent = m.Lambda[child]
	}
	return child
}

// GetJointFrame returns the transform from the parent body to the joint of
// body id.
func (m *Model) GetJointFrame(id int) (spatial.Transform, error) {
	if m.IsFixedBodyID(id) {
		return m.FixedBodies[id-m.FixedBodyDiscriminator].ParentTransform, nil
	}
	if id <= 0 || id >= len(m.Lambda) {
		return spatial.Transform{}, fmt.Errorf("%w: id %d", ErrBodyNotFound, id)
	}
	return m.XT[m.jointFrameOwner(id)], nil
}

func (m *Model) SetJointFrame(id int, X spatial.Transform) error {
	if m.IsFixedBodyID(id) {
		return &BodyError{ID: id, Name: m.GetBodyName(id), Wrapped: ErrFixedJointFrame}
	}
	if id <= 0 || id >= len(m.Lambda) {
		return fmt.Errorf("%w: id %d", ErrBodyNotFound, id)
	}
	m.XT[m.jointFrameOwner(id)] = X
	return nil
}

// GetQuaternion reads the orientation of a spherical joint from q.
func (m *Model) GetQuaternion(id int, q []float64) (quat.Number, error) {
	j, err := m.sphericalJoint(id, q)
	if err != nil {
		return quat.Number{}, err
	}
	return quat.Number{
		Real: q[j.WIndex],
		Imag: q[j.QIndex],
		Jmag: q[j.QIndex+1],
		Kmag: q[j.QIndex+2],
	}, nil
}

// SetQuaternion writes the orientation of a spherical joint into q.
func (m *Model) SetQuaternion(id int, o quat.Number, q []float64) error {
	j, err := m.sphericalJoint(id, q)
	if err != nil {
		return err
	}
	q[j.QIndex] = o.Imag
	q[j.QIndex+1] = o.Jmag
	q[j.QIndex+2] = o.Kmag
	q[j.WIndex] = o.Real
	return nil
}

func (m *Model) sphericalJoint(id int, q []float64) (Joint, error) {
	if id <= 0 || id >= len(m.Joints) {
		return Joint{}, fmt.Errorf("%w: id %d", ErrBodyNotFound, id)
	}
	if err := checkLen("q", q, m.QSize); err != nil {
		return Joint{}, err
	}
	j := m.Joints[id]
	if j.Type != JointTypeSpherical {
		return Joint{}, &BodyError{ID: id, Name: m.GetBodyName(id), Wrapped: ErrNotSpherical}
	}
	return j, nil
}

// NeutralQ returns the zero configuration: all coordinates zero and every
// spherical joint at the identity orientation.
func (m *Model) NeutralQ() []float64 {
	q := make([]float64, m.QSize)
	for i := 1; i < len(m.Joints); i++ {
		if m.Joints[i].Type == JointTypeSpherical {
			q[m.Joints[i].WIndex] = 1
		}
	}
	return q
}

// NormalizeQ renormalizes the quaternions stored in q in place.
func (m *Model) NormalizeQ(q []float64) {
	for i := 1; i < len(m.Joints); i++ {
		j := m.Joints[i]
		if j.Type != JointTypeSpherical {
			continue
		}
		o := spatial.QuatNormalize(quat.Number{Real: q[j.WIndex], Imag: q[j.QIndex], Jmag: q[j.QIndex+1], Kmag: q[j.QIndex+2]})
		q[j.QIndex], q[j.QIndex+1], q[j.QIndex+2], q[j.WIndex] = o.Imag, o.Jmag, o.Kmag, o.Real
	}
}

// QRate maps joint velocities to the time derivative of q. The two differ
// only at spherical joints, where qdot holds the body angular velocity.
func (m *Model) QRate(q, qdot, dst []float64) {
	copy(dst, qdot)
	if len(dst) > m.QDotSize {
		for i := m.QDotSize; i < len(dst); i++ {
			dst[i] = 0
		}
	}
	for i := 1; i < len(m.Joints); i++ {
		j := m.Joints[i]
		if j.Type != JointTypeSpherical {
			continue
		}
		o := quat.Number{Real: q[j.WIndex], Imag: q[j.QIndex], Jmag: q[j.QIndex+1], Kmag: q[j.QIndex+2]}
		omega := mgl64.Vec3{qdot[j.QIndex], qdot[j.QIndex+1], qdot[j.QIndex+2]}
		r := spatial.QuatRate(o, omega)
		dst[j.QIndex], dst[j.QIndex+1], dst[j.QIndex+2], dst[j.WIndex] = r.Imag, r.Jmag, r.Kmag, r.Real
	}
}
