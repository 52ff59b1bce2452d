package domain

import "math"

// Valuation es el resultado de valuar un contrato con un modelo de lattice.
type Valuation struct {
	Model      string  // "full" | "condensed" | "amm"
	Resolution int     // N para los trinomiales, M para el AMM
	Price      float64 // valor de la opción para el comprador (long)
	Position   PositionType

	Nodes     int     // nodos evaluados (diagnóstico de costo)
	Steps     int     // pasos de tiempo del lattice más fino
	TimeStep  float64 // k del lattice más fino
	PriceStep float64 // h del lattice más fino

	// BarrierSteps es la cantidad de pasos h necesarios desde S0 para alcanzar H;
	// EffectiveBarrier = BarrierSteps·h es la distancia a la barrera que el
	// lattice ve realmente (log-precio).
	BarrierSteps     int
	EffectiveBarrier float64

	Grid         *Grid         // grilla de valores condensada (nil para otros modelos)
	Trajectories *Trajectories // grilla de valores por trayectoria (solo modelo full)
}

// PositionValue devuelve el precio con el signo de la posición.
func (v Valuation) PositionValue() float64 {
	return v.Position.Sign() * v.Price
}

// BarrierSteps devuelve cuántos pasos de tamaño h separan el spot de la barrera,
// es decir el mínimo número de movimientos para que una trayectoria la toque.
func BarrierSteps(spot, barrier, h float64) int {
	if h <= 0 {
		return 0
	}
	dist := math.Abs(math.Log(spot) - math.Log(barrier))
	return int(math.Ceil(dist/h - 1e-12))
}

// AlignedSteps devuelve el N del j-ésimo lattice trinomial (h = σ√(3T/N))
// cuya barrera cae justo por debajo de un nivel del lattice:
// N = ⌊j²·3σ²T / ln(S0/H)²⌋. Con esos N el error de discretización de la
// barrera es mínimo.
func AlignedSteps(spot, barrier, maturity, sigma float64, j int) int {
	d := math.Log(spot / barrier)
	return int(float64(j*j) * 3 * sigma * sigma * maturity / (d * d))
}
