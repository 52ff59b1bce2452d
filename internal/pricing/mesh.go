package pricing

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/barrierlattice/internal/domain"
)

// MeshConfig ajusta el Adaptive Mesh Model.
type MeshConfig struct {
	// Lambda fija la relación h² / (σ²k) del lattice grueso: N = ⌊λσ²T/h²⌋.
	// Con λ = 3 se obtiene h = σ√(3k), igual que el trinomial estándar.
	Lambda float64
}

// DefaultMeshConfig devuelve λ = 3.
func DefaultMeshConfig() MeshConfig {
	return MeshConfig{Lambda: 3}
}

// AdaptiveMesh valúa una opción knock-out con el Adaptive Mesh Model:
//
//  1. Lattice grueso con h = 2^M·|ln S0 − ln H| y N = ⌊λσ²T/h²⌋, anclado en
//     ln H ± h (del lado del spot) y valuado con inducción hacia atrás.
//  2. M niveles de refinamiento con (h/2, k/4). Cada nivel tiene tres filas:
//     la fila lejana (coincide con la fila vecina a la barrera del nivel
//     anterior), la nueva fila media y la fila de la barrera, siempre 0.
//  3. El valor en t = 0 de la fila media del nivel más fino es el precio: tras
//     M refinamientos esa fila está exactamente en ln S0.
//
// Con M = 0 el precio es el del lattice grueso, sin refinamiento. Las barreras
// in no están soportadas (domain.ErrUnsupported). Tampoco los contratos cuyo
// payoff solo es positivo entre la barrera y el spot (put down-and-out o call
// up-and-out con K del lado de la barrera respecto de S0): la malla no tiene
// nodos interiores en esa franja y el precio colapsaría a 0. Si el spot ya
// está en o más allá de la barrera, la opción vale 0. Un lattice grueso de más
// de domain.MaxGridSteps pasos se rechaza con domain.ErrTooManySteps.
func AdaptiveMesh(opt domain.Option, mkt domain.Market, levels int, cfg MeshConfig) (domain.Valuation, error) {
	if err := opt.Validate(); err != nil {
		return domain.Valuation{}, fmt.Errorf("pricing.AdaptiveMesh: %w", err)
	}
	if err := mkt.Validate(); err != nil {
		return domain.Valuation{}, fmt.Errorf("pricing.AdaptiveMesh: %w", err)
	}
	if levels < 0 {
		return domain.Valuation{}, fmt.Errorf("pricing.AdaptiveMesh: levels %d must be >= 0: %w", levels, domain.ErrInvalidConfig)
	}
	if !(cfg.Lambda > 0) {
		return domain.Valuation{}, fmt.Errorf("pricing.AdaptiveMesh: lambda %v must be > 0: %w", cfg.Lambda, domain.ErrInvalidConfig)
	}
	if !opt.BarrierType.IsOut() {
		return domain.Valuation{}, fmt.Errorf("pricing.AdaptiveMesh: %s: %w", opt.BarrierType, domain.ErrUnsupported)
	}

	terms := opt.Terms()
	m := mesh{down: opt.BarrierType.IsDown()}
	dist := m.side() * (math.Log(mkt.Spot) - terms.LogBarrier)
	if dist <= 0 {
		return domain.Valuation{
			Model:      ModelMesh,
			Resolution: levels,
			Position:   opt.Position,
		}, nil
	}
	if moneyOnlyAcrossSpot(opt, mkt) {
		return domain.Valuation{}, fmt.Errorf("pricing.AdaptiveMesh: %s %s with K=%g on the barrier side of S0=%g: %w",
			opt.BarrierType, opt.Type, opt.Strike, mkt.Spot, domain.ErrUnsupported)
	}

	h := math.Ldexp(dist, levels)
	coarseSteps := cfg.Lambda * mkt.Sigma * mkt.Sigma * opt.Maturity / (h * h)
	if coarseSteps >= domain.MaxGridSteps+1 {
		return domain.Valuation{}, fmt.Errorf("pricing.AdaptiveMesh: coarse mesh h=%g needs %.0f steps, max %d: %w",
			h, math.Floor(coarseSteps), domain.MaxGridSteps, domain.ErrTooManySteps)
	}
	steps := int(coarseSteps)
	if steps < 1 {
		return domain.Valuation{}, fmt.Errorf("pricing.AdaptiveMesh: coarse mesh h=%g has no time steps for %d levels: %w",
			h, levels, domain.ErrInvalidConfig)
	}
	k := opt.Maturity / float64(steps)
	alpha := domain.Trend(mkt.Rate, mkt.Sigma)

	probs := domain.TransitionProbabilities(h, k, mkt.Sigma, alpha)
	if err := probs.Validate(); err != nil {
		return domain.Valuation{}, fmt.Errorf("pricing.AdaptiveMesh: coarse h=%g k=%g: %w", h, k, err)
	}

	// Lattice grueso: fila N en ln H ± h, fila N ± 1 sobre la barrera.
	prices, err := domain.BuildGrid(terms.LogBarrier+m.side()*h, steps, h)
	if err != nil {
		return domain.Valuation{}, fmt.Errorf("pricing.AdaptiveMesh: %w", err)
	}
	coarse := backwardCondensed(prices, opt.Type, terms, m.coarseKnock(steps), probs, mkt.Rate, k)
	nodes := prices.Nodes()

	val := domain.Valuation{
		Model:      ModelMesh,
		Resolution: levels,
		Position:   opt.Position,
		Grid:       coarse,
	}

	var prev meshLevel = coarseLevel{grid: coarse, anchor: steps, down: m.down}
	price := coarse.Value(steps, 0)

	for level := levels; level >= 1; level-- {
		fineSteps := 4 * steps
		fineK := k / 4
		fineH := h / 2

		next, err := m.refine(prev, opt.Type, terms, mkt, alpha, h, fineH, fineK, fineSteps)
		if err != nil {
			return domain.Valuation{}, fmt.Errorf("pricing.AdaptiveMesh: level %d: %w", level, err)
		}
		nodes += 3 * (fineSteps + 1)

		prev = next
		price = next.mid[0]
		steps, k, h = fineSteps, fineK, fineH
	}

	val.Price = price
	val.Nodes = nodes
	val.Steps = steps
	val.TimeStep = k
	val.PriceStep = h
	val.BarrierSteps = domain.BarrierSteps(mkt.Spot, opt.Barrier, h)
	val.EffectiveBarrier = float64(val.BarrierSteps) * h
	return val, nil
}

// meshLevel expone los valores de un nivel alrededor de su fila vecina a la
// barrera. offset: +1 un paso más lejos de la barrera, 0 la fila vecina,
// −1 un paso hacia la barrera.
type meshLevel interface {
	at(offset, col int) float64
}

// coarseLevel adapta el Grid grueso. La fila anchor está a un paso h de la barrera.
type coarseLevel struct {
	grid   *domain.Grid
	anchor int
	down   bool
}

func (c coarseLevel) at(offset, col int) float64 {
	// Las filas crecen hacia precios menores: alejarse de una barrera down es subir.
	if c.down {
		return c.grid.Value(c.anchor-offset, col)
	}
	return c.grid.Value(c.anchor+offset, col)
}

// fineLevel son las tres filas de un nivel de refinamiento, a distancia 2h, h
// y 0 de la barrera.
type fineLevel struct {
	far     []float64
	mid     []float64
	barrier []float64
}

func (f fineLevel) at(offset, col int) float64 {
	switch offset {
	case 1:
		return f.far[col]
	case 0:
		return f.mid[col]
	default:
		return f.barrier[col]
	}
}

// mesh resuelve la orientación de la barrera.
type mesh struct {
	down bool
}

// side es +1 si la barrera está por debajo (el spot queda en ln H + d) y −1 si está arriba.
func (m mesh) side() float64 {
	if m.down {
		return 1
	}
	return -1
}

// coarseKnock anula la fila de la barrera y todo lo que queda más allá. Se
// decide por índice de fila y no por log-precio: ln H + h − h puede no ser
// exactamente ln H en punto flotante.
func (m mesh) coarseKnock(anchor int) knockFunc {
	if m.down {
		return func(row, _ int) bool { return row > anchor }
	}
	return func(row, _ int) bool { return row < anchor }
}

// expect ordena (lejano, vecino, hacia la barrera) como (up, mid, down).
func (m mesh) expect(p domain.Probabilities, away, at, toward float64) float64 {
	if m.down {
		return p.Expect(away, at, toward)
	}
	return p.Expect(toward, at, away)
}

// refine construye el nivel fino (h/2, k/4) a partir del nivel anterior de paso h.
func (m mesh) refine(
	prev meshLevel,
	kind domain.OptionType,
	terms domain.Terms,
	mkt domain.Market,
	alpha, h, fineH, fineK float64,
	fineSteps int,
) (fineLevel, error) {
	next := fineLevel{
		far:     make([]float64, fineSteps+1),
		mid:     make([]float64, fineSteps+1),
		barrier: make([]float64, fineSteps+1),
	}

	// Fila lejana: copia exacta en las columnas alineadas con el nivel anterior;
	// entre ellas, un paso descontado con probabilidades para el tiempo
	// fraccional que falta hasta la próxima columna gruesa.
	for col := 0; col <= fineSteps; col++ {
		if col%4 == 0 {
			next.far[col] = prev.at(0, col/4)
			continue
		}
		boundary := (col/4 + 1) * 4
		remaining := fineK * float64(boundary-col)
		p := domain.TransitionProbabilities(h, remaining, mkt.Sigma, alpha)
		if err := p.Validate(); err != nil {
			return fineLevel{}, fmt.Errorf("interpolation h=%g k=%g: %w", h, remaining, err)
		}
		c := boundary / 4
		expected := m.expect(p, prev.at(1, c), prev.at(0, c), prev.at(-1, c))
		next.far[col] = domain.Discount(expected, mkt.Rate, remaining)
	}

	// Fila media: inducción hacia atrás con (h/2, k/4) desde el vencimiento.
	p := domain.TransitionProbabilities(fineH, fineK, mkt.Sigma, alpha)
	if err := p.Validate(); err != nil {
		return fineLevel{}, fmt.Errorf("fine mesh h=%g k=%g: %w", fineH, fineK, err)
	}
	next.mid[fineSteps] = domain.Terminal(kind, terms, terms.LogBarrier+m.side()*fineH)
	for col := fineSteps - 1; col >= 0; col-- {
		expected := m.expect(p, next.far[col+1], next.mid[col+1], next.barrier[col+1])
		next.mid[col] = domain.Discount(expected, mkt.Rate, fineK)
	}
	return next, nil
}

// moneyOnlyAcrossSpot indica si el payoff es nulo en todos los niveles de la
// malla: todos están en ln S0 o más lejos de la barrera.
func moneyOnlyAcrossSpot(opt domain.Option, mkt domain.Market) bool {
	if opt.BarrierType.IsDown() {
		return opt.Type == domain.Put && opt.Strike <= mkt.Spot
	}
	return opt.Type == domain.Call && opt.Strike >= mkt.Spot
}
