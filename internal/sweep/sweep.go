package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/barrierlattice/internal/domain"
	"github.com/alejandrodnm/barrierlattice/internal/ports"
	"github.com/alejandrodnm/barrierlattice/internal/pricing"
	"github.com/google/uuid"
)

// Config contiene la configuración de un barrido de convergencia.
type Config struct {
	Model   string
	From    int // primera resolución (inclusive)
	To      int // última resolución (inclusive)
	Workers int // goroutines para valuación paralela (0 = NumCPU)
	DryRun  bool
}

// Request pide valuar el contrato con un modelo a una resolución dada.
type Request struct {
	Model      string
	Resolution int
}

// Runner orquesta valuaciones y barridos sobre los modelos registrados.
type Runner struct {
	models   pricing.Registry
	storage  ports.Storage
	notifier ports.Notifier
}

// New crea un Runner con todas las dependencias inyectadas.
// storage puede ser nil: los barridos no se persisten.
func New(models pricing.Registry, storage ports.Storage, notifier ports.Notifier) *Runner {
	return &Runner{
		models:   models,
		storage:  storage,
		notifier: notifier,
	}
}

// Evaluate valúa el contrato con cada request y notifica el reporte.
// Las combinaciones no soportadas (ErrUnsupported, ErrTooManySteps) se omiten
// con un warning; cualquier otro error aborta.
func (r *Runner) Evaluate(ctx context.Context, opt domain.Option, mkt domain.Market, reqs []Request) (domain.Report, error) {
	report := domain.Report{Option: opt, Market: mkt}

	ref, hasRef, err := reference(opt, mkt)
	if err != nil {
		return report, fmt.Errorf("sweep.Evaluate: %w", err)
	}
	report.Reference, report.HasReference = ref, hasRef

	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("sweep.Evaluate: %w", err)
		}

		model, err := r.models.Lookup(req.Model)
		if err != nil {
			return report, fmt.Errorf("sweep.Evaluate: %w", err)
		}

		start := time.Now()
		v, err := model.Price(opt, mkt, req.Resolution)
		if errors.Is(err, domain.ErrUnsupported) || errors.Is(err, domain.ErrTooManySteps) {
			slog.Warn("model skipped",
				"model", req.Model,
				"resolution", req.Resolution,
				"err", err,
			)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("sweep.Evaluate: %s(%d): %w", req.Model, req.Resolution, err)
		}

		slog.Debug("valuation complete",
			"model", v.Model,
			"resolution", v.Resolution,
			"price", v.Price,
			"nodes", v.Nodes,
			"duration", time.Since(start).Round(time.Microsecond),
		)
		report.Valuations = append(report.Valuations, v)
	}

	if r.notifier != nil {
		if err := r.notifier.NotifyReport(ctx, report); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
	return report, nil
}

// Run ejecuta un barrido de convergencia sobre [cfg.From, cfg.To], lo notifica
// y, salvo DryRun, lo persiste. Los puntos que fallan quedan registrados con su
// error sin abortar el barrido.
func (r *Runner) Run(ctx context.Context, cfg Config, opt domain.Option, mkt domain.Market) (domain.Sweep, error) {
	if cfg.From < 0 || cfg.To < cfg.From {
		return domain.Sweep{}, fmt.Errorf("sweep.Run: invalid range [%d, %d]: %w", cfg.From, cfg.To, domain.ErrInvalidConfig)
	}

	model, err := r.models.Lookup(cfg.Model)
	if err != nil {
		return domain.Sweep{}, fmt.Errorf("sweep.Run: %w", err)
	}

	ref, hasRef, err := reference(opt, mkt)
	if err != nil {
		return domain.Sweep{}, fmt.Errorf("sweep.Run: %w", err)
	}

	sweep := domain.Sweep{
		ID:           uuid.New().String(),
		Model:        model.Name(),
		Option:       opt,
		Market:       mkt,
		Reference:    ref,
		HasReference: hasRef,
		CreatedAt:    time.Now().UTC(),
	}

	slog.Info("sweep starting",
		"id", sweep.ID,
		"model", sweep.Model,
		"from", cfg.From,
		"to", cfg.To,
		"workers", cfg.Workers,
	)
	start := time.Now()

	resolutions := make([]int, 0, cfg.To-cfg.From+1)
	for res := cfg.From; res <= cfg.To; res++ {
		resolutions = append(resolutions, res)
	}

	sweep.Points = priceConcurrent(ctx, model, opt, mkt, resolutions, pointFactory(ref, hasRef), cfg.Workers)
	if err := ctx.Err(); err != nil {
		return sweep, fmt.Errorf("sweep.Run: interrupted after %d points: %w", len(sweep.Points), err)
	}

	best, hasBest := sweep.Best()
	slog.Info("sweep complete",
		"id", sweep.ID,
		"points", len(sweep.Points),
		"failed", sweep.Failed(),
		"best_resolution", bestResolution(best, hasBest),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if r.notifier != nil {
		if err := r.notifier.NotifySweep(ctx, sweep); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}

	if r.storage != nil && !cfg.DryRun {
		if err := r.storage.SaveSweep(ctx, sweep); err != nil {
			return sweep, fmt.Errorf("sweep.Run: save: %w", err)
		}
	}
	return sweep, nil
}

// reference devuelve el precio analítico si el oráculo cubre el contrato.
func reference(opt domain.Option, mkt domain.Market) (float64, bool, error) {
	ref, err := domain.Reference(opt, mkt)
	if errors.Is(err, domain.ErrUnsupported) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return ref, true, nil
}

func bestResolution(p domain.SweepPoint, ok bool) int {
	if !ok {
		return -1
	}
	return p.Resolution
}
