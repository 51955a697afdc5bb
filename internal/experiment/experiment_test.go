package experiment

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/rbdyn/internal/config"
	"github.com/san-kum/rbdyn/internal/models"
)

func TestRunPreset(t *testing.T) {
	cfg := config.GetPreset("double_pendulum", "tracking")
	exp := New(cfg)
	if _, err := exp.Run(context.Background()); !errors.Is(err, ErrNotSetup) {
		t.Errorf("expected ErrNotSetup, got %v", err)
	}
	if err := exp.Setup(); err != nil {
		t.Fatal(err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	final := res.Final()
	if math.Abs(final[0]-1.0) > 1e-2 || math.Abs(final[1]+0.5) > 1e-2 {
		t.Errorf("expected to track (1, -0.5), got (%f, %f)", final[0], final[1])
	}
	if _, ok := res.Metrics["control_effort"]; !ok {
		t.Error("expected default metrics to be recorded")
	}
}

func TestBuildMechanismOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model = "chain"
	cfg.Params.Links = 3
	cfg.Method = "aba"
	cfg.Solver = "llt"
	g := [3]float64{0, 0, -1.62}
	cfg.Gravity = &g

	mc, err := BuildMechanism(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if mc.Model.DoFCount != 3 {
		t.Errorf("expected 3 dof, got %d", mc.Model.DoFCount)
	}
	if mc.Method != models.ArticulatedBody {
		t.Errorf("expected aba, got %s", mc.Method)
	}
	if mc.Solver.String() != "llt" {
		t.Errorf("expected llt, got %s", mc.Solver)
	}
	if mc.Model.Gravity[2] != -1.62 {
		t.Errorf("expected lunar gravity, got %v", mc.Model.Gravity)
	}
}

func TestDescriptionFile(t *testing.T) {
	data, err := os.ReadFile("../description/testdata/arm.yaml")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "arm.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Description = path
	cfg.FloatingBase = "xy-yaw"
	cfg.Tips = []string{"upper_arm"}
	cfg.InitState.Q = nil

	mc, err := BuildMechanism(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if mc.Model.DoFCount != 5 {
		t.Errorf("expected 3 base + 2 joint dof, got %d", mc.Model.DoFCount)
	}
}

func TestRunEnsemble(t *testing.T) {
	cfg := config.GetPreset("pendulum", "small")
	cfg.Duration = 1
	exp := New(cfg)
	if err := exp.Setup(); err != nil {
		t.Fatal(err)
	}
	results, err := exp.RunEnsemble(context.Background(), 4, 2, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].States[0][0] == results[1].States[0][0] {
		t.Error("expected perturbed initial states")
	}
	for i, r := range results {
		if r.Metrics["energy_drift"] > 1e-4 {
			t.Errorf("run %d: expected small drift, got %g", i, r.Metrics["energy_drift"])
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if len(r.Solvers) != 4 {
		t.Errorf("expected 4 solvers, got %d", len(r.Solvers))
	}
	found := false
	for _, m := range r.ListModels() {
		if m == "quadruped" {
			found = true
		}
	}
	if !found {
		t.Error("expected the embedded quadruped in the model list")
	}
}
