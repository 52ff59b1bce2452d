package pricing

import (
	"fmt"
	"sort"

	"github.com/alejandrodnm/barrierlattice/internal/domain"
)

// Model define el contrato común de los modelos de lattice.
// resolution es N (pasos de tiempo) para los trinomiales y M (niveles de
// refinamiento) para el AMM.
type Model interface {
	// Name devuelve el identificador único del modelo.
	Name() string

	// Price valúa el contrato. Es una función pura de sus argumentos.
	Price(opt domain.Option, mkt domain.Market, resolution int) (domain.Valuation, error)
}

// Full es el trinomial de trayectorias completas.
type Full struct{}

func (Full) Name() string { return ModelFull }

func (Full) Price(opt domain.Option, mkt domain.Market, steps int) (domain.Valuation, error) {
	return FullTrinomial(opt, mkt, steps)
}

// Condensed es el trinomial recombinante.
type Condensed struct{}

func (Condensed) Name() string { return ModelCondensed }

func (Condensed) Price(opt domain.Option, mkt domain.Market, steps int) (domain.Valuation, error) {
	return CondensedTrinomial(opt, mkt, steps)
}

// Mesh es el Adaptive Mesh Model.
type Mesh struct {
	Config MeshConfig
}

func (Mesh) Name() string { return ModelMesh }

func (m Mesh) Price(opt domain.Option, mkt domain.Market, levels int) (domain.Valuation, error) {
	return AdaptiveMesh(opt, mkt, levels, m.Config)
}

// Registry mantiene los modelos disponibles indexados por nombre.
type Registry map[string]Model

// NewRegistry crea un registry vacío.
func NewRegistry() Registry {
	return make(Registry)
}

// DefaultRegistry registra los tres modelos de lattice.
func DefaultRegistry(meshCfg MeshConfig) Registry {
	r := NewRegistry()
	r.Register(Full{})
	r.Register(Condensed{})
	r.Register(Mesh{Config: meshCfg})
	return r
}

// Register añade un modelo al registry.
func (r Registry) Register(m Model) {
	r[m.Name()] = m
}

// Get devuelve el modelo por nombre.
func (r Registry) Get(name string) (Model, bool) {
	m, ok := r[name]
	return m, ok
}

// Lookup es Get con error tipado para nombres desconocidos.
func (r Registry) Lookup(name string) (Model, error) {
	m, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("pricing.Lookup: unknown model %q (have %v): %w", name, r.Names(), domain.ErrInvalidConfig)
	}
	return m, nil
}

// Names devuelve los nombres registrados en orden alfabético.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
