package metrics

import (
	"math"

	"github.com/san-kum/rbdyn/internal/sim"
)

// Energy averages the total energy over the run. Systems without an energy
// report zero.
type Energy struct {
	name        string
	dyn         sim.Dynamics
	samples     int
	totalEnergy float64
}

func NewEnergy(dyn sim.Dynamics) *Energy {
	return &Energy{
		name: "energy",
		dyn:  dyn,
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(x sim.State, u sim.Control, t float64) {
	ec, ok := e.dyn.(sim.EnergyComputer)
	if !ok {
		return
	}
	energy, err := ec.Energy(x)
	if err != nil {
		return
	}
	e.totalEnergy += energy
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift is the largest relative deviation from the first observed
// energy.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	maxDrift      float64
	samples       int
	dyn           sim.Dynamics
}

func NewEnergyDrift(dyn sim.Dynamics) *EnergyDrift {
	return &EnergyDrift{
		name: "energy_drift",
		dyn:  dyn,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(x sim.State, u sim.Control, t float64) {
	ec, ok := e.dyn.(sim.EnergyComputer)
	if !ok {
		return
	}

	energy, err := ec.Energy(x)
	if err != nil {
		return
	}

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
