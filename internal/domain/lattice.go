package domain

import (
	"fmt"
	"math"
)

// MaxTrajectorySteps es el máximo N aceptado por el modelo de trayectorias
// completas. Con N = 12 hay 3^12 = 531441 trayectorias de 13 columnas
// (~55 MB por arena); cada paso extra multiplica memoria y tiempo por 3.
const MaxTrajectorySteps = 12

// MaxGridSteps es el máximo N aceptado por el lattice condensado y por el
// lattice grueso del AMM. Con N = 4000 cada Grid ocupa 8001×4001 float64
// (~256 MB); una valuación knock-in reserva hasta cuatro.
const MaxGridSteps = 4000

// Trajectories es una arena plana con una fila por trayectoria trinomial.
// La fila i tiene N+1 columnas; la columna col es el log-precio tras col pasos.
//
// Orden de enumeración: producto lexicográfico sobre {+h, 0, −h}, con el primer
// paso como dígito más significativo en base 3 (dígito 0 = +h, 1 = 0, 2 = −h).
// Un nodo en la columna col agrupa las 3^(N−col) trayectorias que comparten sus
// primeros col pasos; se representa por la fila del bloque cuyos pasos
// restantes son todos 0. Con ese representante los sucesores en col+1 son
// row − s (up), row (mid) y row + s (down), con s = Stride(col).
type Trajectories struct {
	steps  int
	rows   int
	values []float64
}

// BuildTrajectories enumera las 3^N trayectorias de log-precio que parten de x0.
// Cada valor se calcula como x0 + h·nivel, con el nivel neto entero, de modo
// que coincide exactamente con el nodo del Grid condensado al mismo nivel.
func BuildTrajectories(x0 float64, steps int, h float64) (*Trajectories, error) {
	if steps < 1 {
		return nil, fmt.Errorf("domain.BuildTrajectories: steps %d must be >= 1: %w", steps, ErrInvalidConfig)
	}
	if steps > MaxTrajectorySteps {
		return nil, fmt.Errorf("domain.BuildTrajectories: steps %d exceeds %d: %w", steps, MaxTrajectorySteps, ErrTooManySteps)
	}

	t := newTrajectories(steps)
	width := steps + 1
	for row := 0; row < t.rows; row++ {
		base := row * width
		t.values[base] = x0
		level := 0
		div := t.rows
		for col := 1; col <= steps; col++ {
			div /= 3
			switch (row / div) % 3 {
			case 0:
				level++
			case 2:
				level--
			}
			t.values[base+col] = x0 + h*float64(level)
		}
	}
	return t, nil
}

// NewTrajectoryValues crea una arena vacía (NaN) con la forma de un lattice
// de trayectorias de N pasos, para la grilla de valores.
func NewTrajectoryValues(steps int) (*Trajectories, error) {
	if steps < 1 {
		return nil, fmt.Errorf("domain.NewTrajectoryValues: steps %d must be >= 1: %w", steps, ErrInvalidConfig)
	}
	if steps > MaxTrajectorySteps {
		return nil, fmt.Errorf("domain.NewTrajectoryValues: steps %d exceeds %d: %w", steps, MaxTrajectorySteps, ErrTooManySteps)
	}
	return newTrajectories(steps), nil
}

func newTrajectories(steps int) *Trajectories {
	rows := Pow3(steps)
	values := make([]float64, rows*(steps+1))
	for i := range values {
		values[i] = math.NaN()
	}
	return &Trajectories{steps: steps, rows: rows, values: values}
}

// Steps devuelve N.
func (t *Trajectories) Steps() int { return t.steps }

// Rows devuelve el número de trayectorias, 3^N.
func (t *Trajectories) Rows() int { return t.rows }

// At devuelve el valor en (row, col).
func (t *Trajectories) At(row, col int) float64 {
	return t.values[row*(t.steps+1)+col]
}

// Set escribe el valor en (row, col).
func (t *Trajectories) Set(row, col int, v float64) {
	t.values[row*(t.steps+1)+col] = v
}

// Path devuelve la fila completa. El slice comparte memoria con la arena
// y no debe modificarse.
func (t *Trajectories) Path(row int) []float64 {
	width := t.steps + 1
	return t.values[row*width : (row+1)*width]
}

// Root devuelve la fila de la trayectoria con todos los incrementos en cero,
// que representa el nodo del tiempo 0.
func (t *Trajectories) Root() int {
	return (t.rows - 1) / 2
}

// Stride devuelve la distancia entre las filas representantes de los
// sucesores up/mid/down de un nodo en la columna col: 3^(N−col−1).
func (t *Trajectories) Stride(col int) int {
	return Pow3(t.steps - col - 1)
}

// Representatives devuelve las filas que representan los nodos de la columna col.
func (t *Trajectories) Representatives(col int) []int {
	block := Pow3(t.steps - col)
	reps := make([]int, 0, t.rows/block)
	for row := (block - 1) / 2; row < t.rows; row += block {
		reps = append(reps, row)
	}
	return reps
}

// Nodes devuelve la cantidad de celdas de la arena, 3^N·(N+1).
func (t *Trajectories) Nodes() int {
	return len(t.values)
}

// Grid es el lattice condensado (recombinante): (2N+1) filas × (N+1) columnas.
// En la columna col solo la banda de filas [N−col, N+col] tiene valor; el resto
// queda en NaN y nunca se lee. El nodo (row, col) representa el log-precio
// x0 + h·(N−row).
type Grid struct {
	steps  int
	values []float64
}

// NewGrid crea un Grid vacío (NaN) de N pasos.
func NewGrid(steps int) (*Grid, error) {
	if steps < 0 {
		return nil, fmt.Errorf("domain.NewGrid: steps %d must be >= 0: %w", steps, ErrInvalidConfig)
	}
	if steps > MaxGridSteps {
		return nil, fmt.Errorf("domain.NewGrid: steps %d exceeds %d: %w", steps, MaxGridSteps, ErrTooManySteps)
	}
	values := make([]float64, (2*steps+1)*(steps+1))
	for i := range values {
		values[i] = math.NaN()
	}
	return &Grid{steps: steps, values: values}, nil
}

// BuildGrid construye el lattice condensado de log-precios anclado en x0.
func BuildGrid(x0 float64, steps int, h float64) (*Grid, error) {
	if steps < 1 {
		return nil, fmt.Errorf("domain.BuildGrid: steps %d must be >= 1: %w", steps, ErrInvalidConfig)
	}
	g, err := NewGrid(steps)
	if err != nil {
		return nil, err
	}
	for col := 0; col <= steps; col++ {
		lo, hi := g.Band(col)
		for row := lo; row <= hi; row++ {
			g.Set(row, col, x0+h*float64(steps-row))
		}
	}
	return g, nil
}

// Steps devuelve N.
func (g *Grid) Steps() int { return g.steps }

// Rows devuelve 2N+1.
func (g *Grid) Rows() int { return 2*g.steps + 1 }

// Band devuelve el rango de filas válido [lo, hi] de la columna col.
func (g *Grid) Band(col int) (lo, hi int) {
	return g.steps - col, g.steps + col
}

// At devuelve el valor en (row, col) y false si la celda está fuera de la banda.
func (g *Grid) At(row, col int) (float64, bool) {
	if col < 0 || col > g.steps {
		return 0, false
	}
	lo, hi := g.Band(col)
	if row < lo || row > hi {
		return 0, false
	}
	return g.values[row*(g.steps+1)+col], true
}

// Value devuelve el valor en (row, col) sin chequear la banda.
func (g *Grid) Value(row, col int) float64 {
	return g.values[row*(g.steps+1)+col]
}

// Set escribe el valor en (row, col).
func (g *Grid) Set(row, col int, v float64) {
	g.values[row*(g.steps+1)+col] = v
}

// Column devuelve una copia de los valores con valor de la columna col,
// de la fila N−col a la N+col.
func (g *Grid) Column(col int) []float64 {
	lo, hi := g.Band(col)
	out := make([]float64, 0, hi-lo+1)
	for row := lo; row <= hi; row++ {
		out = append(out, g.Value(row, col))
	}
	return out
}

// Nodes devuelve la cantidad de nodos del lattice, (N+1)².
func (g *Grid) Nodes() int {
	return (g.steps + 1) * (g.steps + 1)
}

// Pow3 devuelve 3^n para n ≥ 0.
func Pow3(n int) int {
	p := 1
	for i := 0; i < n; i++ {
		p *= 3
	}
	return p
}
