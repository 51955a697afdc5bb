package control

import (
	"fmt"
	"sort"

	"github.com/san-kum/rbdyn/internal/models"
	"github.com/san-kum/rbdyn/internal/sim"
)

var constructors = map[string]func(*models.Mechanism, Gains) (sim.Controller, error){
	"none": func(mc *models.Mechanism, _ Gains) (sim.Controller, error) {
		return NewNone(mc.ControlDim()), nil
	},
	"pid": func(mc *models.Mechanism, g Gains) (sim.Controller, error) {
		return NewPID(mc, g)
	},
	"gravity": func(mc *models.Mechanism, g Gains) (sim.Controller, error) {
		return NewGravityCompensation(mc, g)
	},
	"computed_torque": func(mc *models.Mechanism, g Gains) (sim.Controller, error) {
		return NewComputedTorque(mc, g)
	},
	"lqr": func(mc *models.Mechanism, g Gains) (sim.Controller, error) {
		return NewMechanismLQR(mc, g)
	},
}

// New builds the named controller for mc. An empty name means none.
func New(name string, mc *models.Mechanism, g Gains) (sim.Controller, error) {
	if name == "" {
		name = "none"
	}
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownController, name)
	}
	return ctor(mc, g)
}

func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
