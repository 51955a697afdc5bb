package description

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/san-kum/rbdyn/internal/logger"
	"github.com/san-kum/rbdyn/internal/rbd"
	"github.com/san-kum/rbdyn/internal/spatial"
)

// DefaultGravity applies when a description does not set one.
var DefaultGravity = mgl64.Vec3{0, 0, -9.81}

// Limits reported for continuous joints, which carry no limit of their own.
const (
	ContinuousPositionLimit = 3.14
	ContinuousVelocityLimit = 100.0
)

// JointInfo holds per-joint metadata as parallel arrays indexed by the
// joint's velocity slot, with the floating base slots removed.
type JointInfo struct {
	Names       []string
	PositionMin []float64
	PositionMax []float64
	VelocityMin []float64
	VelocityMax []float64
	Damping     []float64
	Friction    []float64
	MaxEffort   []float64
}

func newJointInfo(n int) JointInfo {
	return JointInfo{
		Names:       make([]string, n),
		PositionMin: make([]float64, n),
		PositionMax: make([]float64, n),
		VelocityMin: make([]float64, n),
		VelocityMax: make([]float64, n),
		Damping:     make([]float64, n),
		Friction:    make([]float64, n),
		MaxEffort:   make([]float64, n),
	}
}

func (ji JointInfo) Len() int {
	return len(ji.Names)
}

// Index returns the slot of the named joint or -1.
func (ji JointInfo) Index(name string) int {
	for i, n := range ji.Names {
		if n == name {
			return i
		}
	}
	return -1
}

type Result struct {
	Model  *rbd.Model
	Joints JointInfo
	Root   string
	Base   FloatingBase
}

type builder struct {
	desc     *Description
	model    *rbd.Model
	links    map[string]Link
	children map[string][]JointSpec
	tips     map[string]bool
}

// Build turns a description into a model. When tips are given only the
// branches leading to them are imported and nothing below a tip is kept.
func Build(d *Description, tips ...string) (*Result, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	b := &builder{
		desc:     d,
		model:    rbd.NewModel(),
		links:    make(map[string]Link, len(d.Links)),
		children: make(map[string][]JointSpec),
		tips:     make(map[string]bool, len(tips)),
	}
	for _, l := range d.Links {
		b.links[l.Name] = l
	}
	for _, j := range d.Joints {
		b.children[j.Parent] = append(b.children[j.Parent], j)
	}
	for _, t := range tips {
		if _, ok := b.links[t]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrTipNotFound, t)
		}
		b.tips[t] = true
	}

	b.model.Gravity = DefaultGravity
	if d.Gravity != nil {
		b.model.Gravity = mgl64.Vec3(*d.Gravity)
	}

	root := d.RootLink()
	rootID, err := b.addRoot(root)
	if err != nil {
		return nil, err
	}
	if err := b.addChildren(root, rootID); err != nil {
		return nil, err
	}

	info, err := b.jointInfo()
	if err != nil {
		return nil, err
	}

	logger.Log.Debug("built model from description",
		zap.String("name", d.Name),
		zap.String("root", root),
		zap.Stringer("floating_base", d.FloatingBase),
		zap.Int("dof", b.model.DoFCount),
		zap.Int("bodies", b.model.BodyCount()),
		zap.Int("fixed_bodies", len(b.model.FixedBodies)),
	)

	return &Result{Model: b.model, Joints: info, Root: root, Base: d.FloatingBase}, nil
}

func BuildFile(path string, tips ...string) (*Result, error) {
	d, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Build(d, tips...)
}

func (b *builder) addRoot(name string) (int, error) {
	link := b.links[name]

	var joint rbd.Joint
	var err error
	switch b.desc.FloatingBase {
	case FixedBase:
		// the root link is the world; its inertia plays no role
		if err := b.model.RenameBody(0, name); err != nil {
			return 0, err
		}
		return 0, nil
	case XYYaw:
		joint, err = rbd.NewJoint(
			spatial.Vector{0, 0, 0, 1, 0, 0},
			spatial.Vector{0, 0, 0, 0, 1, 0},
			spatial.Vector{0, 0, 1, 0, 0, 0},
		)
	case XYZRollPitchYaw:
		joint, err = rbd.NewJoint(
			spatial.Vector{0, 0, 0, 1, 0, 0},
			spatial.Vector{0, 0, 0, 0, 1, 0},
			spatial.Vector{0, 0, 0, 0, 0, 1},
			spatial.Vector{0, 0, 1, 0, 0, 0},
			spatial.Vector{0, 1, 0, 0, 0, 0},
			spatial.Vector{1, 0, 0, 0, 0, 0},
		)
	case XYZQuaternion:
		joint = rbd.NewFloatingBaseJoint()
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownFloatingBase, int(b.desc.FloatingBase))
	}
	if err != nil {
		return 0, err
	}

	return b.model.AddBody(0, spatial.Identity(), joint, linkBody(link), name)
}

func (b *builder) addChildren(parent string, parentID int) error {
	if b.tips[parent] {
		return nil
	}
	for _, spec := range b.children[parent] {
		if len(b.tips) > 0 && !b.leadsToTip(spec.Child) {
			continue
		}

		joint, err := specJoint(spec)
		if err != nil {
			return fmt.Errorf("joint %q: %w", spec.Name, err)
		}
		frame := spatial.XRPY(mgl64.Vec3(spec.Origin.RPY), mgl64.Vec3(spec.Origin.XYZ))

		id, err := b.model.AddBody(parentID, frame, joint, linkBody(b.links[spec.Child]), spec.Child)
		if err != nil {
			return fmt.Errorf("link %q: %w", spec.Child, err)
		}
		logger.Log.Debug("imported link",
			zap.String("link", spec.Child),
			zap.String("joint", spec.Name),
			zap.String("type", spec.Type),
			zap.Int("id", id),
		)

		if err := b.addChildren(spec.Child, id); err != nil {
			return err
		}
	}
	return nil
}

// leadsToTip reports whether the subtree rooted at link contains a tip.
func (b *builder) leadsToTip(link string) bool {
	if b.tips[link] {
		return true
	}
	for _, spec := range b.children[link] {
		if b.leadsToTip(spec.Child) {
			return true
		}
	}
	return false
}

func (b *builder) jointInfo() (JointInfo, error) {
	base := b.desc.FloatingBase.DoF()
	info := newJointInfo(b.model.DoFCount - base)

	for _, spec := range b.desc.Joints {
		if !movable(spec) {
			continue
		}
		id, err := b.model.GetBodyID(spec.Child)
		if err != nil {
			// cut away by tip selection
			continue
		}
		slot := b.model.Joints[id].QIndex - base
		if slot < 0 || slot >= info.Len() {
			return JointInfo{}, fmt.Errorf("%w: joint %q maps to slot %d", ErrInvalidDescription, spec.Name, slot)
		}

		info.Names[slot] = spec.Name
		if spec.Type == JointContinuous {
			info.PositionMin[slot] = -ContinuousPositionLimit
			info.PositionMax[slot] = ContinuousPositionLimit
			info.VelocityMin[slot] = -ContinuousVelocityLimit
			info.VelocityMax[slot] = ContinuousVelocityLimit
		} else {
			info.PositionMin[slot] = spec.Limit.Lower
			info.PositionMax[slot] = spec.Limit.Upper
			info.VelocityMin[slot] = -spec.Limit.Velocity
			info.VelocityMax[slot] = spec.Limit.Velocity
		}
		if spec.Dynamics != nil {
			info.Damping[slot] = spec.Dynamics.Damping
			info.Friction[slot] = spec.Dynamics.Friction
		}
		if spec.Limit != nil {
			info.MaxEffort[slot] = spec.Limit.Effort
		}
	}
	return info, nil
}

func movable(spec JointSpec) bool {
	return spec.Type != JointFixed && spec.Mimic == nil
}

func specJoint(spec JointSpec) (rbd.Joint, error) {
	if !movable(spec) {
		return rbd.NewFixedJoint(), nil
	}

	axis := mgl64.Vec3{1, 0, 0}
	if spec.Axis != nil {
		axis = mgl64.Vec3(*spec.Axis)
	}

	switch spec.Type {
	case JointRevolute, JointContinuous:
		return rbd.NewRevoluteJoint(axis)
	case JointPrismatic:
		return rbd.NewPrismaticJoint(axis)
	default:
		return rbd.Joint{}, fmt.Errorf("%w: %q", ErrUnknownJointType, spec.Type)
	}
}

// linkBody converts a link's inertial block into a body in link
// coordinates. A rotated inertial frame is folded into the tensor.
func linkBody(l Link) rbd.Body {
	if l.Inertial == nil {
		return rbd.NewBody(0, mgl64.Vec3{}, mgl64.Mat3{})
	}
	in := l.Inertial.Inertia
	I := mgl64.Mat3FromRows(
		mgl64.Vec3{in.Ixx, in.Ixy, in.Ixz},
		mgl64.Vec3{in.Ixy, in.Iyy, in.Iyz},
		mgl64.Vec3{in.Ixz, in.Iyz, in.Izz},
	)
	if rpy := mgl64.Vec3(l.Inertial.Origin.RPY); rpy != (mgl64.Vec3{}) {
		E := spatial.XRPY(rpy, mgl64.Vec3{}).E
		I = E.Transpose().Mul3(I).Mul3(E)
	}
	return rbd.NewBody(l.Inertial.Mass, mgl64.Vec3(l.Inertial.Origin.XYZ), I)
}
