package models

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rbdyn/internal/description"
	"github.com/san-kum/rbdyn/internal/rbd"
	"github.com/san-kum/rbdyn/internal/spatial"
)

const (
	DefaultMass    = 1.0
	DefaultLength  = 1.0
	DefaultGravity = 9.81
	DefaultLinks   = 5
)

var ErrUnknownModel = errors.New("models: unknown model")

//go:embed descriptions/*.yaml
var descriptions embed.FS

// Params parameterizes the built-in mechanisms. Gravity is the magnitude
// of the acceleration along -z. Zero fields take the defaults.
type Params struct {
	Links   int
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func DefaultParams() Params {
	return Params{
		Links:   DefaultLinks,
		Mass:    DefaultMass,
		Length:  DefaultLength,
		Gravity: DefaultGravity,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Links > 0 {
		d.Links = p.Links
	}
	if p.Mass > 0 {
		d.Mass = p.Mass
	}
	if p.Length > 0 {
		d.Length = p.Length
	}
	if p.Gravity != 0 {
		d.Gravity = p.Gravity
	}
	d.Damping = p.Damping
	return d
}

type builderFunc func(p Params) (*rbd.Model, error)

type entry struct {
	summary string
	build   builderFunc
	base    description.FloatingBase
}

var catalog = map[string]entry{
	"pendulum":        {summary: "point mass on a revolute joint", build: buildPendulum},
	"double_pendulum": {summary: "two point masses on revolute joints", build: buildDoublePendulum},
	"chain":           {summary: "planar chain of uniform rods", build: buildChain},
	"cartpole":        {summary: "pole on a prismatic cart", build: buildCartPole},
	"spherical":       {summary: "rod on a ball joint", build: buildSpherical},
	"top":             {summary: "spinning disk on an Euler ZYX joint", build: buildTop},
	"floating_box":    {summary: "free box with a quaternion floating base", build: buildFloatingBox, base: description.XYZQuaternion},
}

type Info struct {
	Name    string
	Summary string
}

// List returns the built-in models and embedded descriptions, sorted.
func List() []Info {
	out := make([]Info, 0, len(catalog))
	for name, e := range catalog {
		out = append(out, Info{Name: name, Summary: e.summary})
	}
	entries, _ := descriptions.ReadDir("descriptions")
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		out = append(out, Info{Name: name, Summary: "embedded description " + e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// New builds a named mechanism. Embedded descriptions ignore every
// parameter except Damping, which is added to the description's own.
func New(name string, p Params) (*Mechanism, error) {
	p = p.withDefaults()

	if e, ok := catalog[name]; ok {
		m, err := e.build(p)
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", name, err)
		}
		mc := NewMechanism(name, m)
		mc.Base = e.base
		if p.Damping > 0 {
			mc.Damping = uniform(m.DoFCount, p.Damping)
		}
		return mc, nil
	}

	data, err := descriptions.ReadFile("descriptions/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	d, err := description.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("embedded %s: %w", name, err)
	}
	mc, err := FromDescription(d)
	if err != nil {
		return nil, err
	}
	for i := range mc.Damping {
		if i >= mc.Base.DoF() {
			mc.Damping[i] += p.Damping
		}
	}
	return mc, nil
}

// FromDescription builds a mechanism from a parsed description, keeping
// only the branches that lead to tips when any are given. Joint damping
// from the description is carried over.
func FromDescription(d *description.Description, tips ...string) (*Mechanism, error) {
	res, err := description.Build(d, tips...)
	if err != nil {
		return nil, err
	}
	return fromResult(d.Name, res), nil
}

// LoadFile builds a mechanism from a description file.
func LoadFile(path string, base *description.FloatingBase, tips ...string) (*Mechanism, error) {
	d, err := description.Load(path)
	if err != nil {
		return nil, err
	}
	if base != nil {
		d.FloatingBase = *base
	}
	return FromDescription(d, tips...)
}

func fromResult(name string, res *description.Result) *Mechanism {
	mc := NewMechanism(name, res.Model)
	mc.Joints = &res.Joints
	mc.Base = res.Base

	mc.Damping = make([]float64, res.Model.DoFCount)
	offset := res.Base.DoF()
	for i, c := range res.Joints.Damping {
		mc.Damping[offset+i] = c
	}
	return mc
}

func uniform(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func gravity(p Params) mgl64.Vec3 {
	return mgl64.Vec3{0, 0, -p.Gravity}
}

var yAxis = mgl64.Vec3{0, 1, 0}

// Pendulums hang along -z and swing about y, so the angle is measured
// from the downward vertical.
func pointMass(mass, length float64) rbd.Body {
	return rbd.NewBody(mass, mgl64.Vec3{0, 0, -length}, mgl64.Mat3{})
}

// rod is a solid cylinder of radius length/20 along -z. The axial term
// keeps H regular when the rod can spin about its own axis.
func rod(mass, length float64) rbd.Body {
	r := length / 20
	i := mass * (3*r*r + length*length) / 12
	axial := mass * r * r / 2
	return rbd.NewBody(mass, mgl64.Vec3{0, 0, -length / 2}, mgl64.Diag3(mgl64.Vec3{i, i, axial}))
}

func buildPendulum(p Params) (*rbd.Model, error) {
	m := rbd.NewModel()
	m.Gravity = gravity(p)
	j, err := rbd.NewRevoluteJoint(yAxis)
	if err != nil {
		return nil, err
	}
	if _, err := m.AddBody(0, spatial.Identity(), j, pointMass(p.Mass, p.Length), "bob"); err != nil {
		return nil, err
	}
	return m, nil
}

func buildDoublePendulum(p Params) (*rbd.Model, error) {
	m := rbd.NewModel()
	m.Gravity = gravity(p)
	j, err := rbd.NewRevoluteJoint(yAxis)
	if err != nil {
		return nil, err
	}
	upper, err := m.AddBody(0, spatial.Identity(), j, pointMass(p.Mass, p.Length), "upper")
	if err != nil {
		return nil, err
	}
	if _, err := m.AddBody(upper, spatial.XTrans(mgl64.Vec3{0, 0, -p.Length}), j, pointMass(p.Mass, p.Length), "lower"); err != nil {
		return nil, err
	}
	return m, nil
}

func buildChain(p Params) (*rbd.Model, error) {
	m := rbd.NewModel()
	m.Gravity = gravity(p)
	j, err := rbd.NewRevoluteJoint(yAxis)
	if err != nil {
		return nil, err
	}
	mass := p.Mass / float64(p.Links)
	length := p.Length / float64(p.Links)

	X := spatial.Identity()
	for i := 0; i < p.Links; i++ {
		if _, err := m.AppendBody(X, j, rod(mass, length), fmt.Sprintf("link%d", i)); err != nil {
			return nil, err
		}
		X = spatial.XTrans(mgl64.Vec3{0, 0, -length})
	}
	return m, nil
}

func buildCartPole(p Params) (*rbd.Model, error) {
	m := rbd.NewModel()
	m.Gravity = gravity(p)
	slide, err := rbd.NewPrismaticJoint(mgl64.Vec3{1, 0, 0})
	if err != nil {
		return nil, err
	}
	hinge, err := rbd.NewRevoluteJoint(yAxis)
	if err != nil {
		return nil, err
	}
	cart, err := m.AddBody(0, spatial.Identity(), slide, rbd.NewBody(p.Mass, mgl64.Vec3{}, mgl64.Ident3().Mul(0.01)), "cart")
	if err != nil {
		return nil, err
	}
	// The pole stands upright at q = 0.
	pole := rod(p.Mass/10, p.Length)
	pole.COM = pole.COM.Mul(-1)
	if _, err := m.AddBody(cart, spatial.Identity(), hinge, pole, "pole"); err != nil {
		return nil, err
	}
	return m, nil
}

func buildSpherical(p Params) (*rbd.Model, error) {
	m := rbd.NewModel()
	m.Gravity = gravity(p)
	if _, err := m.AddBody(0, spatial.Identity(), rbd.NewSphericalJoint(), rod(p.Mass, p.Length), "rod"); err != nil {
		return nil, err
	}
	return m, nil
}

func buildTop(p Params) (*rbd.Model, error) {
	m := rbd.NewModel()
	m.Gravity = gravity(p)
	r := p.Length / 4
	disk := rbd.NewBody(p.Mass, mgl64.Vec3{0, 0, p.Length / 2},
		mgl64.Diag3(mgl64.Vec3{p.Mass * r * r / 4, p.Mass * r * r / 4, p.Mass * r * r / 2}))
	if _, err := m.AddBody(0, spatial.Identity(), rbd.NewEulerZYXJoint(), disk, "disk"); err != nil {
		return nil, err
	}
	return m, nil
}

func buildFloatingBox(p Params) (*rbd.Model, error) {
	m := rbd.NewModel()
	m.Gravity = gravity(p)
	a, b, c := p.Length, p.Length/2, p.Length/4
	k := p.Mass / 12
	box := rbd.NewBody(p.Mass, mgl64.Vec3{}, mgl64.Diag3(mgl64.Vec3{k * (b*b + c*c), k * (a*a + c*c), k * (a*a + b*b)}))
	if _, err := m.SetFloatingBaseBody(box, "box"); err != nil {
		return nil, err
	}
	return m, nil
}
