package models

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/san-kum/rbdyn/internal/dynamics"
	"github.com/san-kum/rbdyn/internal/integrators"
	"github.com/san-kum/rbdyn/internal/rbd"
	"github.com/san-kum/rbdyn/internal/sim"
)

// doublePendulumRates is the closed-form point-mass double pendulum with
// angles measured from the downward vertical.
func doublePendulumRates(theta1, theta2, omega1, omega2, m1, m2, l1, l2, g float64) (float64, float64) {
	delta := theta2 - theta1
	sinD, cosD := math.Sin(delta), math.Cos(delta)

	den1 := (m1+m2)*l1 - m2*l1*cosD*cosD
	den2 := (l2 / l1) * den1

	alpha1 := (m2*l1*omega1*omega1*sinD*cosD +
		m2*g*math.Sin(theta2)*cosD +
		m2*l2*omega2*omega2*sinD -
		(m1+m2)*g*math.Sin(theta1)) / den1

	alpha2 := (-m2*l2*omega2*omega2*sinD*cosD +
		(m1+m2)*g*math.Sin(theta1)*cosD -
		(m1+m2)*l1*omega1*omega1*sinD -
		(m1+m2)*g*math.Sin(theta2)) / den2

	return alpha1, alpha2
}

func mustNew(t testing.TB, name string, p Params) *Mechanism {
	t.Helper()
	mc, err := New(name, p)
	if err != nil {
		t.Fatalf("New(%q): %v", name, err)
	}
	return mc
}

func randomState(mc *Mechanism, rng *rand.Rand) sim.State {
	x := make(sim.State, mc.StateDim())
	for i := range x {
		x[i] = rng.Float64()*2 - 1
	}
	mc.Project(x)
	return x
}

func TestDoublePendulumMatchesClosedForm(t *testing.T) {
	states := [][4]float64{
		{0.3, 0.2, 0, 0},
		{1.5, 0, 0, 0},
		{3.0, -0.5, 1.2, -0.7},
		{-0.8, 2.1, -2.0, 3.0},
	}
	for _, method := range []Method{Lagrangian, ArticulatedBody} {
		mc := mustNew(t, "double_pendulum", Params{Mass: 1.5, Length: 0.8})
		mc.Method = method
		for _, s := range states {
			x := sim.State{s[0], s[1], s[2], s[3]}
			dx, err := mc.Derivative(x, nil, 0)
			if err != nil {
				t.Fatalf("%s: %v", method, err)
			}

			a1, a2 := doublePendulumRates(s[0], s[0]+s[1], s[2], s[2]+s[3], 1.5, 1.5, 0.8, 0.8, DefaultGravity)
			if math.Abs(dx[2]-a1) > 1e-9 {
				t.Errorf("%s %v: expected qdd1 %f, got %f", method, s, a1, dx[2])
			}
			if math.Abs(dx[2]+dx[3]-a2) > 1e-9 {
				t.Errorf("%s %v: expected absolute alpha2 %f, got %f", method, s, a2, dx[2]+dx[3])
			}
			if dx[0] != s[2] || dx[1] != s[3] {
				t.Errorf("%s: expected position rates %v, got %v", method, s[2:], dx[:2])
			}
		}
	}
}

func TestPendulumDamping(t *testing.T) {
	mc := mustNew(t, "pendulum", Params{Mass: 2, Length: 0.5, Damping: 0.1})
	x := sim.State{0.4, 1.5}
	dx, err := mc.Derivative(x, sim.Control{0.3}, 0)
	if err != nil {
		t.Fatal(err)
	}
	ml2 := 2 * 0.5 * 0.5
	expected := (0.3 - 0.1*1.5 - 2*DefaultGravity*0.5*math.Sin(0.4)) / ml2
	if math.Abs(dx[1]-expected) > 1e-9 {
		t.Errorf("expected %f, got %f", expected, dx[1])
	}
}

func TestMethodsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, name := range []string{"chain", "cartpole", "spherical", "top", "floating_box", "arm", "quadruped"} {
		t.Run(name, func(t *testing.T) {
			lag := mustNew(t, name, Params{Damping: 0.05})
			aba := mustNew(t, name, Params{Damping: 0.05})
			aba.Method = ArticulatedBody

			for k := 0; k < 5; k++ {
				x := randomState(lag, rng)
				u := make(sim.Control, lag.ControlDim())
				for i := range u {
					u[i] = rng.Float64() - 0.5
				}
				d1, err := lag.Derivative(x, u, 0)
				if err != nil {
					t.Fatal(err)
				}
				d2, err := aba.Derivative(x, u, 0)
				if err != nil {
					t.Fatal(err)
				}
				for i := range d1 {
					if math.Abs(d1[i]-d2[i]) > 1e-8 {
						t.Errorf("entry %d: expected %f, got %f", i, d1[i], d2[i])
					}
				}
			}
		})
	}
}

func TestSphericalRodSpinsAboutItsAxis(t *testing.T) {
	mc := mustNew(t, "spherical", Params{Mass: 2, Length: 1})
	r := 1.0 / 20
	axial := 2 * r * r / 2
	for _, s := range dynamics.Solvers() {
		mc.Solver = s
		dx, err := mc.Derivative(mc.NeutralState(), sim.Control{0, 0, 1}, 0)
		if err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		acc := dx[mc.PositionSize():]
		expected := []float64{0, 0, 1 / axial}
		for i := range expected {
			if math.Abs(acc[i]-expected[i]) > 1e-6*math.Abs(expected[i])+1e-9 {
				t.Errorf("%s: qddot[%d]: expected %f, got %f", s, i, expected[i], acc[i])
			}
		}
	}
}

func TestFloatingBoxFreeFall(t *testing.T) {
	mc := mustNew(t, "floating_box", Params{})
	x := mc.NeutralState()
	dx, err := mc.Derivative(x, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	acc := dx[mc.PositionSize():]
	expected := []float64{0, 0, -DefaultGravity, 0, 0, 0}
	for i := range expected {
		if math.Abs(acc[i]-expected[i]) > 1e-12 {
			t.Errorf("qddot[%d]: expected %f, got %f", i, expected[i], acc[i])
		}
	}
}

func TestEnergyConservation(t *testing.T) {
	for _, name := range []string{"double_pendulum", "spherical", "top"} {
		t.Run(name, func(t *testing.T) {
			mc := mustNew(t, name, Params{})
			x := randomState(mc, rand.New(rand.NewSource(11)))

			s := sim.New(mc, integrators.NewRK4(), nil)
			res, err := s.Run(context.Background(), x, sim.Config{Dt: 0.001, Duration: 1, ValidateState: true})
			if err != nil {
				t.Fatal(err)
			}
			if res.EnergyDrift > 1e-5 {
				t.Errorf("expected energy drift below 1e-5, got %g", res.EnergyDrift)
			}
		})
	}
}

func TestForkIsIndependent(t *testing.T) {
	mc := mustNew(t, "quadruped", Params{})
	rng := rand.New(rand.NewSource(5))
	states := make([]sim.State, 8)
	want := make([]sim.State, len(states))
	for i := range states {
		states[i] = randomState(mc, rng)
		dx, err := mc.Derivative(states[i], nil, 0)
		if err != nil {
			t.Fatal(err)
		}
		want[i] = dx
	}

	var wg sync.WaitGroup
	got := make([]sim.State, len(states))
	for i := range states {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := mc.Fork().(*Mechanism)
			defer f.Release()
			for k := 0; k < 20; k++ {
				got[i], _ = f.Derivative(states[i], nil, 0)
			}
		}(i)
	}
	wg.Wait()

	for i := range want {
		for k := range want[i] {
			if got[i] == nil || math.Abs(got[i][k]-want[i][k]) > 1e-12 {
				t.Fatalf("state %d: forked derivative differs at %d", i, k)
			}
		}
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		name          string
		state, contrl int
	}{
		{"pendulum", 2, 1},
		{"chain", 2 * DefaultLinks, DefaultLinks},
		{"spherical", 7, 3},
		{"top", 6, 3},
		{"floating_box", 13, 6},
		{"arm", 6, 3},
		{"quadruped", 29, 14},
	}
	for _, tt := range tests {
		mc := mustNew(t, tt.name, Params{})
		if mc.StateDim() != tt.state {
			t.Errorf("%s: expected state dim %d, got %d", tt.name, tt.state, mc.StateDim())
		}
		if mc.ControlDim() != tt.contrl {
			t.Errorf("%s: expected control dim %d, got %d", tt.name, tt.contrl, mc.ControlDim())
		}
		if len(mc.Labels()) != mc.StateDim() {
			t.Errorf("%s: expected %d labels, got %d", tt.name, mc.StateDim(), len(mc.Labels()))
		}
	}
}

func TestLabels(t *testing.T) {
	mc := mustNew(t, "double_pendulum", Params{})
	expected := []string{"upper_RY", "lower_RY", "upper_RY_dot", "lower_RY_dot"}
	labels := mc.Labels()
	for i := range expected {
		if labels[i] != expected[i] {
			t.Errorf("label %d: expected %s, got %s", i, expected[i], labels[i])
		}
	}
}

func TestEmbeddedDescriptionDamping(t *testing.T) {
	mc := mustNew(t, "arm", Params{Damping: 0.1})
	if mc.Joints == nil {
		t.Fatal("expected joint info for a description model")
	}
	expected := []float64{0.6, 0.3, 0.1}
	for i := range expected {
		if math.Abs(mc.Damping[i]-expected[i]) > 1e-12 {
			t.Errorf("damping %d: expected %f, got %f", i, expected[i], mc.Damping[i])
		}
	}

	quad := mustNew(t, "quadruped", Params{})
	for i := 0; i < 6; i++ {
		if quad.Damping[i] != 0 {
			t.Errorf("expected undamped base slot %d, got %f", i, quad.Damping[i])
		}
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New("nope", Params{}); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
	if _, err := ParseMethod("euler"); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("expected ErrUnknownMethod, got %v", err)
	}

	mc := mustNew(t, "pendulum", Params{})
	if _, err := mc.Derivative(sim.State{1, 2, 3}, nil, 0); !errors.Is(err, rbd.ErrDimensionMismatch) {
		t.Errorf("expected dimension error, got %v", err)
	}
	if _, err := mc.Derivative(sim.State{1, 2}, sim.Control{1, 2}, 0); !errors.Is(err, rbd.ErrDimensionMismatch) {
		t.Errorf("expected control dimension error, got %v", err)
	}
	if _, err := mc.State([]float64{1}, nil); !errors.Is(err, rbd.ErrDimensionMismatch) {
		t.Errorf("expected state packing error, got %v", err)
	}
}

func TestList(t *testing.T) {
	seen := make(map[string]bool)
	list := List()
	for i, info := range list {
		seen[info.Name] = true
		if i > 0 && list[i-1].Name > info.Name {
			t.Errorf("expected sorted list, %s before %s", list[i-1].Name, info.Name)
		}
	}
	for _, name := range []string{"pendulum", "chain", "arm", "quadruped"} {
		if !seen[name] {
			t.Errorf("expected %s in list", name)
		}
	}
}

func BenchmarkQuadrupedDerivative(b *testing.B) {
	for _, method := range []Method{Lagrangian, ArticulatedBody} {
		b.Run(method.String(), func(b *testing.B) {
			mc := mustNew(b, "quadruped", Params{})
			mc.Method = method
			x := randomState(mc, rand.New(rand.NewSource(1)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := mc.Derivative(x, nil, 0); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
