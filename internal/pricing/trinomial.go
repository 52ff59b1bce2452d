package pricing

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/barrierlattice/internal/domain"
)

// Nombres de los modelos, usados en Valuation.Model y en el registry.
const (
	ModelFull      = "full"
	ModelCondensed = "condensed"
	ModelMesh      = "amm"
)

// FullTrinomial valúa el contrato enumerando las 3^N trayectorias del lattice
// trinomial. El test de barrera usa la historia completa de cada trayectoria,
// por lo que soporta barreras in y out de forma directa.
//
// Costo O(3^N) en tiempo y memoria: N > domain.MaxTrajectorySteps se rechaza
// con domain.ErrTooManySteps antes de reservar memoria. Sirve como verdad de
// referencia para CondensedTrinomial con N chico.
func FullTrinomial(opt domain.Option, mkt domain.Market, steps int) (domain.Valuation, error) {
	if err := validateInputs(opt, mkt, steps); err != nil {
		return domain.Valuation{}, fmt.Errorf("pricing.FullTrinomial: %w", err)
	}
	if steps > domain.MaxTrajectorySteps {
		return domain.Valuation{}, fmt.Errorf("pricing.FullTrinomial: steps %d exceeds %d: %w",
			steps, domain.MaxTrajectorySteps, domain.ErrTooManySteps)
	}

	k, h := domain.StepSizes(opt.Maturity, mkt.Sigma, steps)
	probs := domain.TransitionProbabilities(h, k, mkt.Sigma, domain.Trend(mkt.Rate, mkt.Sigma))
	if err := probs.Validate(); err != nil {
		return domain.Valuation{}, fmt.Errorf("pricing.FullTrinomial: h=%g k=%g: %w", h, k, err)
	}
	terms := opt.Terms()

	paths, err := domain.BuildTrajectories(math.Log(mkt.Spot), steps, h)
	if err != nil {
		return domain.Valuation{}, fmt.Errorf("pricing.FullTrinomial: %w", err)
	}
	values, err := domain.NewTrajectoryValues(steps)
	if err != nil {
		return domain.Valuation{}, fmt.Errorf("pricing.FullTrinomial: %w", err)
	}

	// Payoff al vencimiento y primer cruce de barrera de cada trayectoria.
	firstHit := make([]int, paths.Rows())
	for row := 0; row < paths.Rows(); row++ {
		path := paths.Path(row)
		firstHit[row] = domain.FirstBreach(opt.BarrierType, terms, path)
		values.Set(row, steps, domain.PathPayoff(opt.Type, opt.BarrierType, terms, path))
	}
	nodes := paths.Rows()

	knockout := opt.BarrierType.IsOut()
	for col := steps - 1; col >= 0; col-- {
		stride := paths.Stride(col)
		for _, row := range paths.Representatives(col) {
			nodes++
			// El representante comparte los primeros col pasos con todo su
			// bloque: si su camino ya cruzó, el nodo entero está anulado.
			if knockout && firstHit[row] >= 0 && firstHit[row] <= col {
				values.Set(row, col, 0)
				continue
			}
			expected := probs.Expect(
				values.At(row-stride, col+1),
				values.At(row, col+1),
				values.At(row+stride, col+1),
			)
			values.Set(row, col, domain.Discount(expected, mkt.Rate, k))
		}
	}

	return domain.Valuation{
		Model:            ModelFull,
		Resolution:       steps,
		Price:            values.At(paths.Root(), 0),
		Position:         opt.Position,
		Nodes:            nodes,
		Steps:            steps,
		TimeStep:         k,
		PriceStep:        h,
		BarrierSteps:     domain.BarrierSteps(mkt.Spot, opt.Barrier, h),
		EffectiveBarrier: float64(domain.BarrierSteps(mkt.Spot, opt.Barrier, h)) * h,
		Trajectories:     values,
	}, nil
}

// CondensedTrinomial valúa el contrato sobre el lattice recombinante de
// (2N+1)×(N+1) nodos. Cada nodo tiene un único log-precio, así que el test de
// barrera out mira solo ese nodo. Las barreras in se obtienen por paridad sobre
// la misma grilla: in = vanilla − out. Costo O(N²); N > domain.MaxGridSteps se
// rechaza con domain.ErrTooManySteps.
func CondensedTrinomial(opt domain.Option, mkt domain.Market, steps int) (domain.Valuation, error) {
	if err := validateInputs(opt, mkt, steps); err != nil {
		return domain.Valuation{}, fmt.Errorf("pricing.CondensedTrinomial: %w", err)
	}
	if steps > domain.MaxGridSteps {
		return domain.Valuation{}, fmt.Errorf("pricing.CondensedTrinomial: steps %d exceeds %d: %w",
			steps, domain.MaxGridSteps, domain.ErrTooManySteps)
	}

	k, h := domain.StepSizes(opt.Maturity, mkt.Sigma, steps)
	probs := domain.TransitionProbabilities(h, k, mkt.Sigma, domain.Trend(mkt.Rate, mkt.Sigma))
	if err := probs.Validate(); err != nil {
		return domain.Valuation{}, fmt.Errorf("pricing.CondensedTrinomial: h=%g k=%g: %w", h, k, err)
	}
	terms := opt.Terms()

	prices, err := domain.BuildGrid(math.Log(mkt.Spot), steps, h)
	if err != nil {
		return domain.Valuation{}, fmt.Errorf("pricing.CondensedTrinomial: %w", err)
	}

	barrier := opt.BarrierType.Knockout()
	knocked := func(row, col int) bool {
		return domain.Breached(barrier, terms, prices.Value(row, col))
	}
	values := backwardCondensed(prices, opt.Type, terms, knocked, probs, mkt.Rate, k)
	nodes := prices.Nodes()

	if !opt.BarrierType.IsOut() {
		vanilla := backwardCondensed(prices, opt.Type, terms, neverKnocked, probs, mkt.Rate, k)
		values = subtractGrids(vanilla, values)
		nodes *= 2
	}

	return domain.Valuation{
		Model:            ModelCondensed,
		Resolution:       steps,
		Price:            values.Value(steps, 0),
		Position:         opt.Position,
		Nodes:            nodes,
		Steps:            steps,
		TimeStep:         k,
		PriceStep:        h,
		BarrierSteps:     domain.BarrierSteps(mkt.Spot, opt.Barrier, h),
		EffectiveBarrier: float64(domain.BarrierSteps(mkt.Spot, opt.Barrier, h)) * h,
		Grid:             values,
	}, nil
}

// knockFunc indica si el nodo (row, col) de un Grid está anulado por la barrera.
type knockFunc func(row, col int) bool

func neverKnocked(int, int) bool { return false }

// backwardCondensed recorre el Grid de log-precios del vencimiento al tiempo 0:
//
//	V[row, N]   = payoff(x)             si el nodo no está anulado, 0 si no
//	V[row, col] = e^(−rk)·(pu·V[row−1, col+1] + pm·V[row, col+1] + pd·V[row+1, col+1])
//
// Cada columna lee solo la columna siguiente, ya resuelta.
func backwardCondensed(
	prices *domain.Grid,
	kind domain.OptionType,
	terms domain.Terms,
	knocked knockFunc,
	probs domain.Probabilities,
	r, k float64,
) *domain.Grid {
	n := prices.Steps()
	values, _ := domain.NewGrid(n)

	lo, hi := values.Band(n)
	for row := lo; row <= hi; row++ {
		if knocked(row, n) {
			values.Set(row, n, 0)
			continue
		}
		values.Set(row, n, domain.Terminal(kind, terms, prices.Value(row, n)))
	}

	for col := n - 1; col >= 0; col-- {
		lo, hi := values.Band(col)
		for row := lo; row <= hi; row++ {
			if knocked(row, col) {
				values.Set(row, col, 0)
				continue
			}
			expected := probs.Expect(
				values.Value(row-1, col+1),
				values.Value(row, col+1),
				values.Value(row+1, col+1),
			)
			values.Set(row, col, domain.Discount(expected, r, k))
		}
	}
	return values
}

// subtractGrids devuelve a − b celda a celda dentro de la banda.
func subtractGrids(a, b *domain.Grid) *domain.Grid {
	n := a.Steps()
	out, _ := domain.NewGrid(n)
	for col := 0; col <= n; col++ {
		lo, hi := out.Band(col)
		for row := lo; row <= hi; row++ {
			out.Set(row, col, a.Value(row, col)-b.Value(row, col))
		}
	}
	return out
}

func validateInputs(opt domain.Option, mkt domain.Market, steps int) error {
	if err := opt.Validate(); err != nil {
		return err
	}
	if err := mkt.Validate(); err != nil {
		return err
	}
	if steps < 1 {
		return fmt.Errorf("steps %d must be >= 1: %w", steps, domain.ErrInvalidConfig)
	}
	return nil
}
