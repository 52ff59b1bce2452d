package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/barrierlattice/internal/domain"
)

// Storage persiste los barridos de convergencia.
type Storage interface {
	// SaveSweep persiste el barrido y todos sus puntos en una transacción.
	SaveSweep(ctx context.Context, sweep domain.Sweep) error

	// GetSweep devuelve un barrido con sus puntos.
	GetSweep(ctx context.Context, id string) (domain.Sweep, error)

	// ListSweeps devuelve los barridos creados en el rango dado, sin puntos.
	ListSweeps(ctx context.Context, from, to time.Time) ([]domain.Sweep, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
