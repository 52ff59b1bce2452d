package domain

import (
	"fmt"
	"math"
)

// probTolerance es la holgura numérica para pu + pm + pd = 1 y para los
// extremos del intervalo [0, 1].
const probTolerance = 1e-12

// Probabilities son las probabilidades de transición risk-neutral de un paso
// trinomial: subir h, quedarse, o bajar h.
type Probabilities struct {
	Up   float64
	Mid  float64
	Down float64
}

// Trend devuelve el drift logarítmico risk-neutral α = r − σ²/2.
func Trend(r, sigma float64) float64 {
	return r - sigma*sigma/2
}

// TransitionProbabilities calcula (pu, pm, pd) para un incremento de precio h,
// un incremento de tiempo k, volatilidad σ y drift α (fórmula de Hull):
//
//	pu = (σ²k/h² + (αk/h)² + αk/h) / 2
//	pd = (σ²k/h² + (αk/h)² − αk/h) / 2
//	pm = 1 − pu − pd
//
// No valida el resultado: el llamador debe invocar Validate.
// Precondición: h > 0 y k > 0.
func TransitionProbabilities(h, k, sigma, alpha float64) Probabilities {
	variance := sigma * sigma * k / (h * h)
	drift := alpha * k / h
	pu := (variance + drift*drift + drift) / 2
	pd := (variance + drift*drift - drift) / 2
	return Probabilities{Up: pu, Mid: 1 - pu - pd, Down: pd}
}

// Validate devuelve ErrInfeasibleProbabilities si alguna probabilidad está
// fuera de [0, 1] o si no suman 1. Pasa cuando h es demasiado chico respecto
// a σ√k: es un error de configuración, nunca se corrige en silencio.
func (p Probabilities) Validate() error {
	for _, v := range [...]float64{p.Up, p.Mid, p.Down} {
		if math.IsNaN(v) || v < -probTolerance || v > 1+probTolerance {
			return fmt.Errorf("domain.Probabilities: pu=%.6g pm=%.6g pd=%.6g: %w",
				p.Up, p.Mid, p.Down, ErrInfeasibleProbabilities)
		}
	}
	if math.Abs(p.Sum()-1) > probTolerance {
		return fmt.Errorf("domain.Probabilities: sum %.15g != 1: %w", p.Sum(), ErrInfeasibleProbabilities)
	}
	return nil
}

// Sum devuelve pu + pm + pd.
func (p Probabilities) Sum() float64 {
	return p.Up + p.Mid + p.Down
}

// Expect devuelve la esperanza de un paso sobre los tres sucesores.
func (p Probabilities) Expect(up, mid, down float64) float64 {
	return p.Up*up + p.Mid*mid + p.Down*down
}

// Discount descuenta x por un intervalo k a tasa continua r: x·e^(−rk).
func Discount(x, r, k float64) float64 {
	return x * math.Exp(-r*k)
}

// StepSizes devuelve el paso de tiempo k = T/N y el paso de log-precio
// h = σ√(3k) de la discretización trinomial estándar.
func StepSizes(maturity, sigma float64, steps int) (k, h float64) {
	k = maturity / float64(steps)
	h = sigma * math.Sqrt(3*k)
	return k, h
}
