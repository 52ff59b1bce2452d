package domain

import (
	"math"
	"time"
)

// Report agrupa las valuaciones de un contrato con distintos modelos junto al
// precio analítico de referencia, si el oráculo cubre el contrato.
type Report struct {
	Option       Option
	Market       Market
	Reference    float64
	HasReference bool
	Valuations   []Valuation
}

// AbsError devuelve |precio − referencia|, o NaN si no hay referencia.
func (r Report) AbsError(v Valuation) float64 {
	if !r.HasReference {
		return math.NaN()
	}
	return math.Abs(v.Price - r.Reference)
}

// SweepPoint es una valuación de un barrido de convergencia.
type SweepPoint struct {
	Resolution   int
	Price        float64
	Nodes        int
	PriceStep    float64
	BarrierSteps int
	AbsError     float64 // NaN si no hay referencia o si el punto falló
	Err          string  // vacío si la valuación fue exitosa
}

// OK devuelve true si el punto se valuó sin error.
func (p SweepPoint) OK() bool {
	return p.Err == ""
}

// Sweep es un barrido de convergencia de un modelo sobre un rango de resoluciones.
type Sweep struct {
	ID           string
	Model        string
	Option       Option
	Market       Market
	Reference    float64
	HasReference bool
	CreatedAt    time.Time
	Points       []SweepPoint // ordenados por Resolution
}

// Best devuelve el punto exitoso con menor error absoluto.
// Devuelve false si no hay referencia o ningún punto fue exitoso.
func (s Sweep) Best() (SweepPoint, bool) {
	var best SweepPoint
	found := false
	for _, p := range s.Points {
		if !p.OK() || math.IsNaN(p.AbsError) {
			continue
		}
		if !found || p.AbsError < best.AbsError {
			best = p
			found = true
		}
	}
	return best, found
}

// Failed devuelve la cantidad de puntos con error.
func (s Sweep) Failed() int {
	n := 0
	for _, p := range s.Points {
		if !p.OK() {
			n++
		}
	}
	return n
}
