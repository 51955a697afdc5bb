package description

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidDescription  = errors.New("description: invalid mechanism description")
	ErrUnknownFloatingBase = errors.New("description: unknown floating base type")
	ErrUnknownJointType    = errors.New("description: unknown joint type")
	ErrTipNotFound         = errors.New("description: tip link not found")
)

// FloatingBase selects how the root link is attached to the world.
type FloatingBase int

const (
	// FixedBase welds the root link to the world; body 0 takes its name.
	FixedBase FloatingBase = iota
	// XYZRollPitchYaw adds translations along x, y, z and rotations about z, y, x.
	XYZRollPitchYaw
	// XYZQuaternion adds a translation plus a quaternion-parameterized spherical joint.
	XYZQuaternion
	// XYYaw adds planar translation along x, y and a rotation about z.
	XYYaw
)

var floatingBaseNames = map[FloatingBase]string{
	FixedBase:       "fixed",
	XYZRollPitchYaw: "rpy",
	XYZQuaternion:   "quaternion",
	XYYaw:           "xy-yaw",
}

func (f FloatingBase) String() string {
	if s, ok := floatingBaseNames[f]; ok {
		return s
	}
	return fmt.Sprintf("FloatingBase(%d)", int(f))
}

// DoF is the number of generalized velocities the base contributes.
func (f FloatingBase) DoF() int {
	switch f {
	case XYZRollPitchYaw, XYZQuaternion:
		return 6
	case XYYaw:
		return 3
	default:
		return 0
	}
}

func ParseFloatingBase(s string) (FloatingBase, error) {
	for f, name := range floatingBaseNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFloatingBase, s)
}

func (f FloatingBase) MarshalYAML() (interface{}, error) {
	return f.String(), nil
}

func (f *FloatingBase) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseFloatingBase(node.Value)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Description is the on-disk form of a mechanism: a tree of links connected
// by joints, rooted at the only link that is no joint's child.
type Description struct {
	Name         string       `yaml:"name"`
	FloatingBase FloatingBase `yaml:"floating_base"`
	Gravity      *[3]float64  `yaml:"gravity,omitempty"`
	Links        []Link       `yaml:"links"`
	Joints       []JointSpec  `yaml:"joints"`
}

type Link struct {
	Name     string    `yaml:"name"`
	Inertial *Inertial `yaml:"inertial,omitempty"`
}

type Inertial struct {
	Mass    float64 `yaml:"mass"`
	Origin  Origin  `yaml:"origin"`
	Inertia Inertia `yaml:"inertia"`
}

// Inertia holds the tensor about the center of mass, expressed in the
// inertial origin frame.
type Inertia struct {
	Ixx float64 `yaml:"ixx"`
	Ixy float64 `yaml:"ixy"`
	Ixz float64 `yaml:"ixz"`
	Iyy float64 `yaml:"iyy"`
	Iyz float64 `yaml:"iyz"`
	Izz float64 `yaml:"izz"`
}

// Origin places a frame relative to its parent: translation xyz, then
// fixed-axis roll, pitch and yaw.
type Origin struct {
	XYZ [3]float64 `yaml:"xyz,flow"`
	RPY [3]float64 `yaml:"rpy,flow"`
}

type JointSpec struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Parent   string         `yaml:"parent"`
	Child    string         `yaml:"child"`
	Origin   Origin         `yaml:"origin"`
	Axis     *[3]float64    `yaml:"axis,omitempty,flow"`
	Limit    *Limit         `yaml:"limit,omitempty"`
	Dynamics *JointDynamics `yaml:"dynamics,omitempty"`
	Mimic    *Mimic         `yaml:"mimic,omitempty"`
}

type Limit struct {
	Lower    float64 `yaml:"lower"`
	Upper    float64 `yaml:"upper"`
	Velocity float64 `yaml:"velocity"`
	Effort   float64 `yaml:"effort"`
}

type JointDynamics struct {
	Damping  float64 `yaml:"damping"`
	Friction float64 `yaml:"friction"`
}

// Mimic marks a joint driven by another one. Mimic joints are imported as
// fixed.
type Mimic struct {
	Joint      string  `yaml:"joint"`
	Multiplier float64 `yaml:"multiplier"`
	Offset     float64 `yaml:"offset"`
}

const (
	JointRevolute   = "revolute"
	JointContinuous = "continuous"
	JointPrismatic  = "prismatic"
	JointFixed      = "fixed"
)

func Parse(data []byte) (*Description, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescription, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func Save(path string, d *Description) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks names, joint types and that the links form a single tree.
func (d *Description) Validate() error {
	if len(d.Links) == 0 {
		return fmt.Errorf("%w: no links", ErrInvalidDescription)
	}

	links := make(map[string]bool, len(d.Links))
	for _, l := range d.Links {
		if l.Name == "" {
			return fmt.Errorf("%w: link without name", ErrInvalidDescription)
		}
		if links[l.Name] {
			return fmt.Errorf("%w: duplicate link %q", ErrInvalidDescription, l.Name)
		}
		if l.Inertial != nil && l.Inertial.Mass < 0 {
			return fmt.Errorf("%w: link %q has negative mass", ErrInvalidDescription, l.Name)
		}
		links[l.Name] = true
	}

	joints := make(map[string]bool, len(d.Joints))
	parentOf := make(map[string]string, len(d.Joints))
	for _, j := range d.Joints {
		if j.Name == "" {
			return fmt.Errorf("%w: joint without name", ErrInvalidDescription)
		}
		if joints[j.Name] {
			return fmt.Errorf("%w: duplicate joint %q", ErrInvalidDescription, j.Name)
		}
		joints[j.Name] = true

		switch j.Type {
		case JointRevolute, JointContinuous, JointPrismatic, JointFixed:
		default:
			return fmt.Errorf("%w: %q on joint %q", ErrUnknownJointType, j.Type, j.Name)
		}
		if (j.Type == JointRevolute || j.Type == JointPrismatic) && j.Limit == nil {
			return fmt.Errorf("%w: %s joint %q needs a limit", ErrInvalidDescription, j.Type, j.Name)
		}
		if !links[j.Parent] || !links[j.Child] {
			return fmt.Errorf("%w: joint %q connects unknown links %q -> %q", ErrInvalidDescription, j.Name, j.Parent, j.Child)
		}
		if _, taken := parentOf[j.Child]; taken {
			return fmt.Errorf("%w: link %q has more than one parent joint", ErrInvalidDescription, j.Child)
		}
		parentOf[j.Child] = j.Parent
	}

	if _, err := d.root(); err != nil {
		return err
	}

	// every link must reach the root without revisiting itself
	for _, l := range d.Links {
		seen := map[string]bool{}
		for name := l.Name; ; {
			if seen[name] {
				return fmt.Errorf("%w: cycle through link %q", ErrInvalidDescription, name)
			}
			seen[name] = true
			parent, ok := parentOf[name]
			if !ok {
				break
			}
			name = parent
		}
	}
	return nil
}

func (d *Description) root() (string, error) {
	children := make(map[string]bool, len(d.Joints))
	for _, j := range d.Joints {
		children[j.Child] = true
	}
	var roots []string
	for _, l := range d.Links {
		if !children[l.Name] {
			roots = append(roots, l.Name)
		}
	}
	if len(roots) != 1 {
		return "", fmt.Errorf("%w: expected one root link, found %v", ErrInvalidDescription, roots)
	}
	return roots[0], nil
}

// RootLink returns the name of the link that is not the child of any joint.
func (d *Description) RootLink() string {
	r, _ := d.root()
	return r
}
