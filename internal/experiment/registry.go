package experiment

import (
	"github.com/san-kum/rbdyn/internal/control"
	"github.com/san-kum/rbdyn/internal/dynamics"
	"github.com/san-kum/rbdyn/internal/integrators"
	"github.com/san-kum/rbdyn/internal/metrics"
	"github.com/san-kum/rbdyn/internal/models"
)

// Registry lists every named component a configuration can select.
type Registry struct {
	Models      []models.Info
	Methods     []string
	Solvers     []string
	Integrators []string
	Controllers []string
	Metrics     []string
}

func NewRegistry() *Registry {
	r := &Registry{
		Models:      models.List(),
		Methods:     []string{models.Lagrangian.String(), models.ArticulatedBody.String()},
		Integrators: integrators.Names(),
		Controllers: control.Names(),
		Metrics:     metrics.Names(),
	}
	for _, s := range dynamics.Solvers() {
		r.Solvers = append(r.Solvers, s.String())
	}
	return r
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.Models))
	for _, m := range r.Models {
		names = append(names, m.Name)
	}
	return names
}
