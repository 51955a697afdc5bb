package rbd

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/rbdyn/internal/spatial"
)

func unitBody() Body {
	return NewBody(1, mgl64.Vec3{0.5, 0, 0}, mgl64.Diag3(mgl64.Vec3{0.1, 0.1, 0.1}))
}

func vec3Close(a, b mgl64.Vec3, eps float64) bool {
	return floats.EqualApprox(a[:], b[:], eps)
}

func mat3Close(a, b mgl64.Mat3, eps float64) bool {
	return floats.EqualApprox(a[:], b[:], eps)
}

func mustRevolute(t *testing.T, axis mgl64.Vec3) Joint {
	t.Helper()
	j, err := NewRevoluteJoint(axis)
	if err != nil {
		t.Fatalf("joint: %v", err)
	}
	return j
}

func mustAdd(t *testing.T, m *Model, parent int, X spatial.Transform, j Joint, b Body, name string) int {
	t.Helper()
	id, err := m.AddBody(parent, X, j, b, name)
	if err != nil {
		t.Fatalf("AddBody(%s): %v", name, err)
	}
	return id
}

func TestNewModel(t *testing.T) {
	m := NewModel()

	if m.BodyCount() != 1 {
		t.Errorf("expected 1 body, got %d", m.BodyCount())
	}
	if m.DoFCount != 0 || m.QSize != 0 || m.QDotSize != 0 {
		t.Errorf("expected empty sizes, got dof=%d q=%d qdot=%d", m.DoFCount, m.QSize, m.QDotSize)
	}
	if id, err := m.GetBodyID(RootName); err != nil || id != 0 {
		t.Errorf("expected ROOT to be body 0, got %d (%v)", id, err)
	}
}

func TestAddRevoluteChain(t *testing.T) {
	m := NewModel()
	rz := mustRevolute(t, mgl64.Vec3{0, 0, 1})

	b1 := mustAdd(t, m, 0, spatial.Identity(), rz, unitBody(), "link1")
	b2 := mustAdd(t, m, b1, spatial.XTrans(mgl64.Vec3{1, 0, 0}), rz, unitBody(), "link2")

	if rz.Type != JointTypeRevoluteZ {
		t.Errorf("expected revolute_z, got %s", rz.Type)
	}
	if m.DoFCount != 2 || m.QSize != 2 || m.QDotSize != 2 {
		t.Errorf("expected sizes 2, got dof=%d q=%d qdot=%d", m.DoFCount, m.QSize, m.QDotSize)
	}
	if m.Lambda[b2] != b1 || m.Lambda[b1] != 0 {
		t.Errorf("unexpected lambda %v", m.Lambda)
	}
	if len(m.Mu[b1]) != 1 || m.Mu[b1][0] != b2 {
		t.Errorf("unexpected mu %v", m.Mu)
	}
	if m.Joints[b2].QIndex != 1 {
		t.Errorf("expected q index 1, got %d", m.Joints[b2].QIndex)
	}
	for i := 1; i < m.BodyCount(); i++ {
		if m.Lambda[i] >= i {
			t.Errorf("lambda[%d] = %d is not below %d", i, m.Lambda[i], i)
		}
	}
}

func TestAppendBody(t *testing.T) {
	m := NewModel()
	rx := mustRevolute(t, mgl64.Vec3{1, 0, 0})

	a := mustAdd(t, m, 0, spatial.Identity(), rx, unitBody(), "a")
	b, err := m.AppendBody(spatial.XTrans(mgl64.Vec3{0, 1, 0}), rx, unitBody(), "b")
	if err != nil {
		t.Fatalf("AppendBody: %v", err)
	}
	if m.Lambda[b] != a {
		t.Errorf("expected parent %d, got %d", a, m.Lambda[b])
	}
}

func TestFixedBodyMerging(t *testing.T) {
	m := NewModel()
	rz := mustRevolute(t, mgl64.Vec3{0, 0, 1})
	link := mustAdd(t, m, 0, spatial.Identity(), rz, unitBody(), "link")

	tool := NewBody(1, mgl64.Vec3{}, mgl64.Diag3(mgl64.Vec3{0.1, 0.1, 0.1}))
	fixed := mustAdd(t, m, link, spatial.XTrans(mgl64.Vec3{1, 0, 0}), NewFixedJoint(), tool, "tool")

	if fixed < m.FixedBodyDiscriminator {
		t.Errorf("expected fixed id >= %d, got %d", m.FixedBodyDiscriminator, fixed)
	}
	if !m.IsFixedBodyID(fixed) || !m.IsBodyID(fixed) {
		t.Error("expected fixed body id to be recognized")
	}
	if m.DoFCount != 1 || m.QSize != 1 || m.BodyCount() != 2 {
		t.Errorf("fixed joint changed sizes: dof=%d q=%d bodies=%d", m.DoFCount, m.QSize, m.BodyCount())
	}

	merged := m.Bodies[link]
	if merged.Mass != 2 {
		t.Errorf("expected merged mass 2, got %f", merged.Mass)
	}
	if !vec3Close(merged.COM, mgl64.Vec3{0.75, 0, 0}, 1e-12) {
		t.Errorf("expected merged com (0.75,0,0), got %v", merged.COM)
	}

	// attaching to the fixed body chains the frames back to the movable parent
	tip := mustAdd(t, m, fixed, spatial.XTrans(mgl64.Vec3{0.5, 0, 0}), NewFixedJoint(), NewBody(0.5, mgl64.Vec3{}, mgl64.Mat3{}), "tip")
	fb := m.FixedBodies[tip-m.FixedBodyDiscriminator]
	if fb.MovableParent != link {
		t.Errorf("expected movable parent %d, got %d", link, fb.MovableParent)
	}
	if !vec3Close(fb.ParentTransform.R, mgl64.Vec3{1.5, 0, 0}, 1e-12) {
		t.Errorf("expected chained translation (1.5,0,0), got %v", fb.ParentTransform.R)
	}

	// a movable child of a fixed body hangs off the movable parent
	child := mustAdd(t, m, fixed, spatial.Identity(), rz, unitBody(), "child")
	if m.Lambda[child] != link {
		t.Errorf("expected lambda %d, got %d", link, m.Lambda[child])
	}
	if !vec3Close(m.XT[child].R, mgl64.Vec3{1, 0, 0}, 1e-12) {
		t.Errorf("expected joint frame at (1,0,0), got %v", m.XT[child].R)
	}
}

func TestFloatingBase(t *testing.T) {
	m := NewModel()
	base, err := m.SetFloatingBaseBody(unitBody(), "base")
	if err != nil {
		t.Fatalf("SetFloatingBaseBody: %v", err)
	}

	if m.DoFCount != 6 || m.QSize != 7 || m.QDotSize != 6 {
		t.Errorf("expected dof=6 q=7 qdot=6, got dof=%d q=%d qdot=%d", m.DoFCount, m.QSize, m.QDotSize)
	}
	if base != 2 {
		t.Errorf("expected base id 2, got %d", base)
	}
	if !m.Bodies[1].IsVirtual || m.Bodies[1].Mass != 0 {
		t.Error("expected body 1 to be a massless virtual body")
	}
	if m.Joints[1].Type != JointTypeTranslationXYZ || m.Joints[base].Type != JointTypeSpherical {
		t.Errorf("unexpected joint types %s, %s", m.Joints[1].Type, m.Joints[base].Type)
	}
	if m.Joints[base].WIndex != 6 {
		t.Errorf("expected w index 6, got %d", m.Joints[base].WIndex)
	}
	if p, _ := m.GetParentBodyID(base); p != 0 {
		t.Errorf("expected parent 0 skipping virtual body, got %d", p)
	}
}

func TestSphericalWIndexShifts(t *testing.T) {
	m := NewModel()
	s1 := mustAdd(t, m, 0, spatial.Identity(), NewSphericalJoint(), unitBody(), "s1")
	if m.Joints[s1].WIndex != 3 {
		t.Errorf("expected w index 3, got %d", m.Joints[s1].WIndex)
	}

	rz := mustRevolute(t, mgl64.Vec3{0, 0, 1})
	mustAdd(t, m, s1, spatial.Identity(), rz, unitBody(), "r")
	s2 := mustAdd(t, m, s1, spatial.Identity(), NewSphericalJoint(), unitBody(), "s2")

	if m.DoFCount != 7 || m.QSize != 9 {
		t.Errorf("expected dof=7 q=9, got dof=%d q=%d", m.DoFCount, m.QSize)
	}
	if m.Joints[s1].WIndex != 7 || m.Joints[s2].WIndex != 8 {
		t.Errorf("expected w indices 7, 8, got %d, %d", m.Joints[s1].WIndex, m.Joints[s2].WIndex)
	}
	q := m.NeutralQ()
	if q[7] != 1 || q[8] != 1 {
		t.Errorf("expected identity quaternions in neutral q, got %v", q)
	}
}

func TestQuaternionAccess(t *testing.T) {
	m := NewModel()
	s := mustAdd(t, m, 0, spatial.Identity(), NewSphericalJoint(), unitBody(), "ball")
	q := m.NeutralQ()

	o := spatial.QuatFromAxisAngle(mgl64.Vec3{0, 1, 0}, 0.8)
	if err := m.SetQuaternion(s, o, q); err != nil {
		t.Fatalf("SetQuaternion: %v", err)
	}
	got, err := m.GetQuaternion(s, q)
	if err != nil {
		t.Fatalf("GetQuaternion: %v", err)
	}
	if got != o {
		t.Errorf("expected %v, got %v", o, got)
	}

	rz := mustRevolute(t, mgl64.Vec3{0, 0, 1})
	r := mustAdd(t, m, s, spatial.Identity(), rz, unitBody(), "pin")
	q = m.NeutralQ()
	if _, err := m.GetQuaternion(r, q); !errors.Is(err, ErrNotSpherical) {
		t.Errorf("expected ErrNotSpherical, got %v", err)
	}
}

func TestMultiAxisJoint(t *testing.T) {
	m := NewModel()
	j, err := NewJoint(
		spatial.Vector{0, 0, 0, 1, 0, 0},
		spatial.Vector{0, 0, 0, 0, 1, 0},
		spatial.Vector{0, 0, 1, 0, 0, 0},
	)
	if err != nil {
		t.Fatalf("NewJoint: %v", err)
	}
	if j.Type != JointTypeMultiAxis || j.DoFCount != 3 {
		t.Fatalf("expected 3-axis joint, got %v", j)
	}

	frame := spatial.XTrans(mgl64.Vec3{0, 0, 2})
	id := mustAdd(t, m, 0, frame, j, unitBody(), "planar")

	if id != 3 || m.DoFCount != 3 {
		t.Errorf("expected id 3 and 3 dof, got id %d dof %d", id, m.DoFCount)
	}
	if !m.Bodies[1].IsVirtual || !m.Bodies[2].IsVirtual {
		t.Error("expected two virtual bodies")
	}
	if m.Joints[1].Type != JointTypePrismatic || m.Joints[3].Type != JointTypeRevoluteZ {
		t.Errorf("unexpected decomposition %s .. %s", m.Joints[1].Type, m.Joints[3].Type)
	}

	got, err := m.GetJointFrame(id)
	if err != nil {
		t.Fatalf("GetJointFrame: %v", err)
	}
	if !got.ApproxEqual(frame, 1e-12) {
		t.Errorf("expected joint frame at the head of the virtual chain, got %v", got)
	}

	moved := spatial.XTrans(mgl64.Vec3{1, 0, 0})
	if err := m.SetJointFrame(id, moved); err != nil {
		t.Fatalf("SetJointFrame: %v", err)
	}
	if !m.XT[1].ApproxEqual(moved, 1e-12) {
		t.Errorf("expected XT[1] updated, got %v", m.XT[1])
	}
}

func TestModelErrors(t *testing.T) {
	m := NewModel()
	rz := mustRevolute(t, mgl64.Vec3{0, 0, 1})
	mustAdd(t, m, 0, spatial.Identity(), rz, unitBody(), "link")
	fixed := mustAdd(t, m, 1, spatial.Identity(), NewFixedJoint(), unitBody(), "tool")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unknown name", func() error { _, err := m.GetBodyID("nope"); return err }(), ErrBodyNotFound},
		{"duplicate name", func() error { _, err := m.AddBody(0, spatial.Identity(), rz, unitBody(), "link"); return err }(), ErrDuplicateBodyName},
		{"bad parent", func() error { _, err := m.AddBody(42, spatial.Identity(), rz, unitBody(), "x"); return err }(), ErrInvalidParent},
		{"negative mass", func() error {
			_, err := m.AddBody(0, spatial.Identity(), rz, NewBody(-1, mgl64.Vec3{}, mgl64.Mat3{}), "neg")
			return err
		}(), ErrInvalidBody},
		{"fixed joint frame", m.SetJointFrame(fixed, spatial.Identity()), ErrFixedJointFrame},
		{"zero axis", func() error { _, err := NewRevoluteJoint(mgl64.Vec3{}); return err }(), ErrInvalidJointAxis},
		{"screw axis", func() error { _, err := NewJoint(spatial.Vector{0, 0, 1, 0, 0, 1}); return err }(), ErrInvalidJointAxis},
		{"seven axes", func() error { _, err := NewJoint(make([]spatial.Vector, 7)...); return err }(), ErrUnsupportedJoint},
		{"undefined joint", func() error { _, err := m.AddBody(0, spatial.Identity(), Joint{}, unitBody(), "u"); return err }(), ErrUnsupportedJoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, tt.err)
			}
		})
	}

	var be *BodyError
	if err := m.SetJointFrame(fixed, spatial.Identity()); !errors.As(err, &be) || be.ID != fixed || be.Name != "tool" {
		t.Errorf("expected BodyError for tool, got %v", err)
	}
}

func TestBodyNames(t *testing.T) {
	m := NewModel()
	rz := mustRevolute(t, mgl64.Vec3{0, 0, 1})
	id := mustAdd(t, m, 0, spatial.Identity(), rz, unitBody(), "arm")

	if m.GetBodyName(id) != "arm" {
		t.Errorf("expected arm, got %q", m.GetBodyName(id))
	}
	if m.GetBodyName(99) != "" {
		t.Error("expected empty name for unknown id")
	}
	if err := m.RenameBody(0, "world"); err != nil {
		t.Fatalf("RenameBody: %v", err)
	}
	if _, err := m.GetBodyID(RootName); !errors.Is(err, ErrBodyNotFound) {
		t.Error("expected old root name to be gone")
	}
	if id, _ := m.GetBodyID("world"); id != 0 {
		t.Errorf("expected world to be body 0, got %d", id)
	}
	if m.IsBodyID(0) {
		t.Error("root is not a body id")
	}
}

func TestStaleModelData(t *testing.T) {
	m := NewModel()
	rz := mustRevolute(t, mgl64.Vec3{0, 0, 1})
	mustAdd(t, m, 0, spatial.Identity(), rz, unitBody(), "a")
	d := NewModelData(m)
	mustAdd(t, m, 1, spatial.Identity(), rz, unitBody(), "b")

	err := UpdateKinematics(m, d, []float64{0, 0}, []float64{0, 0}, nil)
	if !errors.Is(err, ErrStaleModelData) {
		t.Errorf("expected ErrStaleModelData, got %v", err)
	}

	d = NewModelData(m)
	if err := UpdateKinematics(m, d, []float64{0}, []float64{0, 0}, nil); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func twoLinkPlanar(t *testing.T) *Model {
	t.Helper()
	m := NewModel()
	rz := mustRevolute(t, mgl64.Vec3{0, 0, 1})
	body := NewBody(2, mgl64.Vec3{1, 0, 0}, mgl64.Mat3{})
	mustAdd(t, m, 0, spatial.Identity(), rz, body, "upper")
	mustAdd(t, m, 1, spatial.XTrans(mgl64.Vec3{1, 0, 0}), rz, body, "lower")
	return m
}

func TestBodyToBaseCoordinates(t *testing.T) {
	m := twoLinkPlanar(t)
	d := NewModelData(m)
	q := []float64{math.Pi / 2, 0}

	p, err := CalcBodyToBaseCoordinates(m, d, q, 2, mgl64.Vec3{}, true)
	if err != nil {
		t.Fatalf("CalcBodyToBaseCoordinates: %v", err)
	}
	if !vec3Close(p, mgl64.Vec3{0, 1, 0}, 1e-12) {
		t.Errorf("expected (0,1,0), got %v", p)
	}

	back, err := CalcBaseToBodyCoordinates(m, d, q, 2, p, false)
	if err != nil {
		t.Fatalf("CalcBaseToBodyCoordinates: %v", err)
	}
	if !vec3Close(back, mgl64.Vec3{}, 1e-12) {
		t.Errorf("expected round trip to origin, got %v", back)
	}
}

func TestEnergy(t *testing.T) {
	m := NewModel()
	rz := mustRevolute(t, mgl64.Vec3{0, 0, 1})
	mustAdd(t, m, 0, spatial.Identity(), rz, NewBody(2, mgl64.Vec3{1, 0, 0}, mgl64.Mat3{}), "arm")
	d := NewModelData(m)

	ke, err := KineticEnergy(m, d, []float64{0}, []float64{3}, true)
	if err != nil {
		t.Fatalf("KineticEnergy: %v", err)
	}
	if math.Abs(ke-9) > 1e-12 {
		t.Errorf("expected kinetic energy 9, got %f", ke)
	}

	pe, err := PotentialEnergy(m, d, []float64{math.Pi / 2}, true)
	if err != nil {
		t.Fatalf("PotentialEnergy: %v", err)
	}
	if math.Abs(pe-2*9.81) > 1e-9 {
		t.Errorf("expected potential energy %f, got %f", 2*9.81, pe)
	}

	mass, com, err := CalcCenterOfMass(m, d, []float64{math.Pi / 2}, true)
	if err != nil {
		t.Fatalf("CalcCenterOfMass: %v", err)
	}
	if mass != 2 || !vec3Close(com, mgl64.Vec3{0, 1, 0}, 1e-12) {
		t.Errorf("expected mass 2 at (0,1,0), got %f at %v", mass, com)
	}
}

func TestEulerZYXMatchesRotations(t *testing.T) {
	m := NewModel()
	id := mustAdd(t, m, 0, spatial.Identity(), NewEulerZYXJoint(), unitBody(), "gimbal")
	d := NewModelData(m)
	q := []float64{0.3, -0.7, 1.2}

	if err := JcalcXLambdaS(m, d, id, q); err != nil {
		t.Fatalf("JcalcXLambdaS: %v", err)
	}
	want := spatial.RotX(1.2).Mul3(spatial.RotY(-0.7)).Mul3(spatial.RotZ(0.3))
	if !mat3Close(d.XJ[id].E, want, 1e-12) {
		t.Errorf("expected %v, got %v", want, d.XJ[id].E)
	}
}

func TestDataPool(t *testing.T) {
	m := twoLinkPlanar(t)
	pool := NewDataPool(m)

	d := pool.Get()
	if err := d.Check(m); err != nil {
		t.Fatalf("pooled data: %v", err)
	}
	d.V[1] = spatial.Vector{1, 2, 3, 4, 5, 6}
	pool.Put(d)

	d2 := pool.Get()
	if !d2.V[1].IsZero() {
		t.Errorf("expected reset data, got %v", d2.V[1])
	}
}

func TestReports(t *testing.T) {
	m := NewModel()
	base, err := m.SetFloatingBaseBody(unitBody(), "pelvis")
	if err != nil {
		t.Fatalf("SetFloatingBaseBody: %v", err)
	}
	ry := mustRevolute(t, mgl64.Vec3{0, 1, 0})
	mustAdd(t, m, base, spatial.XTrans(mgl64.Vec3{0, -0.1, 0}), ry, unitBody(), "thigh")
	mustAdd(t, m, base, spatial.Identity(), NewFixedJoint(), unitBody(), "imu")

	dofs := DoFOverview(m)
	if len(dofs) != m.QSize {
		t.Fatalf("expected %d entries, got %d", m.QSize, len(dofs))
	}
	if dofs[0].Body != "pelvis" || dofs[0].Label != "TX" {
		t.Errorf("expected pelvis_TX first, got %s_%s", dofs[0].Body, dofs[0].Label)
	}
	if dofs[7].Label != "QW" {
		t.Errorf("expected QW in the last slot, got %s", dofs[7].Label)
	}

	text := FormatDoFOverview(m)
	if !strings.Contains(text, "thigh_RY") {
		t.Errorf("expected thigh_RY in overview:\n%s", text)
	}

	h := Hierarchy(m)
	for _, want := range []string{"ROOT", "pelvis [ TX, TY, TZ, QX, QY, QZ ]", "thigh [ RY ]", "imu [fixed]"} {
		if !strings.Contains(h, want) {
			t.Errorf("expected %q in hierarchy:\n%s", want, h)
		}
	}
}
