package domain

import (
	"fmt"
	"math"
	"strings"
)

// OptionType es el tipo de payoff: call o put.
type OptionType int

const (
	Call OptionType = iota
	Put
)

// String devuelve el nombre canónico del tipo de opción.
func (t OptionType) String() string {
	switch t {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return "unknown"
	}
}

// ParseOptionType acepta "call" o "put" sin distinguir mayúsculas.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call":
		return Call, nil
	case "put":
		return Put, nil
	}
	return 0, fmt.Errorf("domain.ParseOptionType: %q must be 'call' or 'put': %w", s, ErrInvalidConfig)
}

// BarrierType combina la dirección de la barrera (up/down) con su efecto (in/out).
type BarrierType int

const (
	UpAndOut BarrierType = iota
	DownAndOut
	UpAndIn
	DownAndIn
)

// String devuelve el nombre canónico, con guiones.
func (b BarrierType) String() string {
	switch b {
	case UpAndOut:
		return "up-and-out"
	case DownAndOut:
		return "down-and-out"
	case UpAndIn:
		return "up-and-in"
	case DownAndIn:
		return "down-and-in"
	default:
		return "unknown"
	}
}

// ParseBarrierType acepta "down and out", "down-and-out" y "down_and_out".
func ParseBarrierType(s string) (BarrierType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "-", "_", "-").Replace(norm)
	switch norm {
	case "up-and-out":
		return UpAndOut, nil
	case "down-and-out":
		return DownAndOut, nil
	case "up-and-in":
		return UpAndIn, nil
	case "down-and-in":
		return DownAndIn, nil
	}
	return 0, fmt.Errorf("domain.ParseBarrierType: unknown barrier type %q: %w", s, ErrInvalidConfig)
}

// IsDown devuelve true si la barrera está por debajo del spot.
func (b BarrierType) IsDown() bool {
	return b == DownAndOut || b == DownAndIn
}

// IsOut devuelve true si cruzar la barrera anula la opción.
func (b BarrierType) IsOut() bool {
	return b == UpAndOut || b == DownAndOut
}

// Knockout devuelve la barrera "out" con la misma dirección.
// Sirve para la paridad in = vanilla − out.
func (b BarrierType) Knockout() BarrierType {
	switch b {
	case UpAndIn:
		return UpAndOut
	case DownAndIn:
		return DownAndOut
	default:
		return b
	}
}

// PositionType indica si la opción se compra o se vende.
type PositionType int

const (
	Long PositionType = iota
	Short
)

// String devuelve "long" o "short".
func (p PositionType) String() string {
	if p == Short {
		return "short"
	}
	return "long"
}

// Sign devuelve +1 para long y −1 para short.
func (p PositionType) Sign() float64 {
	if p == Short {
		return -1
	}
	return 1
}

// ParsePositionType acepta "long" o "short".
func ParsePositionType(s string) (PositionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long":
		return Long, nil
	case "short":
		return Short, nil
	}
	return 0, fmt.Errorf("domain.ParsePositionType: %q must be 'long' or 'short': %w", s, ErrInvalidConfig)
}

// Option es el contrato de una opción barrera europea.
// Es un valor inmutable: los motores de pricing nunca lo modifican,
// los términos en espacio logarítmico se derivan con Terms.
type Option struct {
	Type        OptionType
	Strike      float64 // K, en precio lineal
	Maturity    float64 // T, en años
	Barrier     float64 // H, en precio lineal
	BarrierType BarrierType
	Position    PositionType
	Premium     float64 // prima pagada (long) o cobrada (short)
}

// Market contiene los parámetros de mercado del subyacente.
type Market struct {
	Spot  float64 // S0
	Rate  float64 // r, tasa libre de riesgo continua
	Sigma float64 // σ, volatilidad anual
}

// Terms son los valores derivados del contrato que usan los motores, con strike
// y barrera ya transformados a espacio logarítmico. Se calculan una sola vez al
// inicio de cada llamada de pricing y se pasan explícitamente.
type Terms struct {
	Strike     float64
	LogStrike  float64
	LogBarrier float64
}

// Terms transforma K y H a espacio logarítmico.
func (o Option) Terms() Terms {
	return Terms{
		Strike:     o.Strike,
		LogStrike:  math.Log(o.Strike),
		LogBarrier: math.Log(o.Barrier),
	}
}

// Validate comprueba que los campos numéricos del contrato estén en dominio.
func (o Option) Validate() error {
	if !positive(o.Strike) {
		return fmt.Errorf("domain.Option: strike %v must be > 0: %w", o.Strike, ErrInvalidConfig)
	}
	if !positive(o.Maturity) {
		return fmt.Errorf("domain.Option: maturity %v must be > 0: %w", o.Maturity, ErrInvalidConfig)
	}
	if !positive(o.Barrier) {
		return fmt.Errorf("domain.Option: barrier %v must be > 0: %w", o.Barrier, ErrInvalidConfig)
	}
	if math.IsNaN(o.Premium) || math.IsInf(o.Premium, 0) || o.Premium < 0 {
		return fmt.Errorf("domain.Option: premium %v must be >= 0: %w", o.Premium, ErrInvalidConfig)
	}
	return nil
}

// CheckBarrierSide rechaza una barrera en el lado equivocado del spot:
// las barreras down deben estar por debajo de S0 y las up por encima.
func (o Option) CheckBarrierSide(spot float64) error {
	if o.BarrierType.IsDown() && o.Barrier >= spot {
		return fmt.Errorf("domain.Option: %s barrier %v must be below spot %v: %w",
			o.BarrierType, o.Barrier, spot, ErrInvalidConfig)
	}
	if !o.BarrierType.IsDown() && o.Barrier <= spot {
		return fmt.Errorf("domain.Option: %s barrier %v must be above spot %v: %w",
			o.BarrierType, o.Barrier, spot, ErrInvalidConfig)
	}
	return nil
}

// Revenue devuelve el resultado neto de la posición dado un payoff:
// payoff − prima para long, prima − payoff para short.
func (o Option) Revenue(payoff float64) float64 {
	if o.Position == Short {
		return o.Premium - payoff
	}
	return payoff - o.Premium
}

// String resume el contrato en una línea.
func (o Option) String() string {
	return fmt.Sprintf("%s %s %s K=%g T=%g H=%g",
		o.BarrierType, o.Type, o.Position, o.Strike, o.Maturity, o.Barrier)
}

// Validate comprueba los parámetros de mercado.
func (m Market) Validate() error {
	if !positive(m.Spot) {
		return fmt.Errorf("domain.Market: spot %v must be > 0: %w", m.Spot, ErrInvalidConfig)
	}
	if !positive(m.Sigma) {
		return fmt.Errorf("domain.Market: sigma %v must be > 0: %w", m.Sigma, ErrInvalidConfig)
	}
	if math.IsNaN(m.Rate) || math.IsInf(m.Rate, 0) {
		return fmt.Errorf("domain.Market: rate %v is not a finite number: %w", m.Rate, ErrInvalidConfig)
	}
	return nil
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
