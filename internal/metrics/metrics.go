// Package metrics accumulates scalar summaries of a simulation run.
package metrics

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/rbdyn/internal/models"
	"github.com/san-kum/rbdyn/internal/sim"
)

var ErrUnknownMetric = errors.New("metrics: unknown metric")

// DefaultStabilityThreshold bounds every state component for Stability.
const DefaultStabilityThreshold = 100.0

var constructors = map[string]func(*models.Mechanism) sim.Metric{
	"energy":           func(mc *models.Mechanism) sim.Metric { return NewEnergy(mc) },
	"energy_drift":     func(mc *models.Mechanism) sim.Metric { return NewEnergyDrift(mc) },
	"control_effort":   func(*models.Mechanism) sim.Metric { return NewControlEffort() },
	"peak_effort":      func(*models.Mechanism) sim.Metric { return NewPeakEffort() },
	"stability":        func(*models.Mechanism) sim.Metric { return NewStability(DefaultStabilityThreshold) },
	"limit_violations": func(mc *models.Mechanism) sim.Metric { return NewJointLimits(mc) },
}

func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds fresh metrics by name. An empty list selects every metric
// that applies to mc.
func New(mc *models.Mechanism, names ...string) ([]sim.Metric, error) {
	if len(names) == 0 {
		for _, n := range Names() {
			if n == "limit_violations" && mc.Joints == nil {
				continue
			}
			names = append(names, n)
		}
	}
	out := make([]sim.Metric, 0, len(names))
	for _, n := range names {
		ctor, ok := constructors[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, n)
		}
		out = append(out, ctor(mc))
	}
	return out, nil
}
