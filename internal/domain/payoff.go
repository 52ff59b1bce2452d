package domain

import "math"

// Terminal devuelve el payoff vanilla al vencimiento para el log-precio x.
func Terminal(kind OptionType, terms Terms, x float64) float64 {
	switch kind {
	case Call:
		if x <= terms.LogStrike {
			return 0
		}
		return math.Max(math.Exp(x)-terms.Strike, 0)
	case Put:
		if x >= terms.LogStrike {
			return 0
		}
		return math.Max(terms.Strike-math.Exp(x), 0)
	}
	return 0
}

// Breached devuelve true si el log-precio x está en o más allá de la barrera.
// Down: x ≤ log H. Up: x ≥ log H.
func Breached(barrier BarrierType, terms Terms, x float64) bool {
	if barrier.IsDown() {
		return x <= terms.LogBarrier
	}
	return x >= terms.LogBarrier
}

// PathPayoff evalúa el payoff de una trayectoria completa de log-precios.
// El último elemento es el log-precio al vencimiento.
//
//   - out: 0 si algún punto visitado cruzó la barrera.
//   - in:  0 si ningún punto visitado la cruzó.
func PathPayoff(kind OptionType, barrier BarrierType, terms Terms, path []float64) float64 {
	if len(path) == 0 {
		return 0
	}
	hit := FirstBreach(barrier, terms, path) >= 0
	if hit == barrier.IsOut() {
		return 0
	}
	return Terminal(kind, terms, path[len(path)-1])
}

// FirstBreach devuelve el índice del primer punto de la trayectoria que cruza
// la barrera, o −1 si ninguno la cruza.
func FirstBreach(barrier BarrierType, terms Terms, path []float64) int {
	for i, x := range path {
		if Breached(barrier, terms, x) {
			return i
		}
	}
	return -1
}
