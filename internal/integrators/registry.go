package integrators

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/rbdyn/internal/sim"
)

var ErrUnknownIntegrator = errors.New("integrators: unknown integrator")

var registry = map[string]func() sim.Integrator{
	"euler":    func() sim.Integrator { return NewEuler() },
	"rk4":      func() sim.Integrator { return NewRK4() },
	"rk45":     func() sim.Integrator { return NewRK45() },
	"leapfrog": func() sim.Integrator { return NewLeapfrog() },
}

// New returns a fresh integrator by name.
func New(name string) (sim.Integrator, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntegrator, name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
