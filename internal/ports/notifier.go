package ports

import (
	"context"

	"github.com/alejandrodnm/barrierlattice/internal/domain"
)

// Notifier presenta los resultados al usuario.
type Notifier interface {
	// NotifyReport muestra las valuaciones de un contrato frente a la referencia.
	NotifyReport(ctx context.Context, report domain.Report) error

	// NotifySweep muestra un barrido de convergencia.
	NotifySweep(ctx context.Context, sweep domain.Sweep) error
}
