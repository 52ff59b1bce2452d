package domain

import "errors"

// Taxonomía de errores del pricer. Todos se detectan localmente al construir
// probabilidades o lattices y se propagan sin reintentos.
var (
	// ErrInvalidConfig indica parámetros no numéricos o fuera de dominio
	// (σ ≤ 0, T ≤ 0, N ≤ 0, barrera en el lado equivocado de S0...).
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInfeasibleProbabilities indica que (h, k) producen pu, pm o pd fuera de [0, 1].
	ErrInfeasibleProbabilities = errors.New("infeasible transition probabilities")

	// ErrTooManySteps indica que el número de pasos pedido para el modelo de
	// trayectorias completas excede el límite exponencial seguro.
	ErrTooManySteps = errors.New("too many time steps")

	// ErrUnsupported indica una combinación de contrato y modelo que no está implementada.
	ErrUnsupported = errors.New("unsupported contract")

	// ErrNotFound indica que el barrido pedido no existe en el almacenamiento.
	ErrNotFound = errors.New("not found")
)
