package sweep

// concurrent.go: worker pool para valuar muchas resoluciones en paralelo.
// Cada valuación es una función pura, los workers no comparten estado.

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/alejandrodnm/barrierlattice/internal/domain"
	"github.com/alejandrodnm/barrierlattice/internal/pricing"
	"golang.org/x/time/rate"
)

// progressEvery controla cada cuántos puntos se loguea el avance.
const progressEvery = 10

// pointFunc convierte el resultado de una valuación en un punto del barrido.
type pointFunc func(res int, v domain.Valuation, err error) domain.SweepPoint

// priceConcurrent valúa todas las resoluciones con un worker pool y devuelve
// los puntos ordenados por resolución. Si el contexto se cancela deja de
// alimentar trabajo y devuelve los puntos ya calculados.
//
// Si workers <= 0 usa runtime.NumCPU().
func priceConcurrent(
	ctx context.Context,
	model pricing.Model,
	opt domain.Option,
	mkt domain.Market,
	resolutions []int,
	toPoint pointFunc,
	workers int,
) []domain.SweepPoint {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	workCh := make(chan int, len(resolutions))
	resultCh := make(chan domain.SweepPoint, len(resolutions))
	progress := &rate.Sometimes{Every: progressEvery}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for res := range workCh {
				if ctx.Err() != nil {
					return
				}
				v, err := model.Price(opt, mkt, res)
				if err != nil {
					slog.Debug("valuation failed",
						"model", model.Name(),
						"resolution", res,
						"err", err,
					)
				}
				resultCh <- toPoint(res, v, err)
				progress.Do(func() {
					slog.Info("sweep progress", "model", model.Name(), "resolution", res)
				})
			}
		}()
	}

	queued := 0
feed:
	for _, res := range resolutions {
		select {
		case <-ctx.Done():
			break feed
		case workCh <- res:
			queued++
		}
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	points := make([]domain.SweepPoint, 0, queued)
	for p := range resultCh {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Resolution < points[j].Resolution
	})

	slog.Debug("concurrent sweep complete",
		"model", model.Name(),
		"queued", queued,
		"points", len(points),
		"workers", workers,
	)
	return points
}

// pointFactory construye puntos con el error absoluto contra la referencia.
func pointFactory(ref float64, hasRef bool) pointFunc {
	return func(res int, v domain.Valuation, err error) domain.SweepPoint {
		if err != nil {
			return domain.SweepPoint{
				Resolution: res,
				Price:      math.NaN(),
				AbsError:   math.NaN(),
				Err:        err.Error(),
			}
		}
		absErr := math.NaN()
		if hasRef {
			absErr = math.Abs(v.Price - ref)
		}
		return domain.SweepPoint{
			Resolution:   res,
			Price:        v.Price,
			Nodes:        v.Nodes,
			PriceStep:    v.PriceStep,
			BarrierSteps: v.BarrierSteps,
			AbsError:     absErr,
		}
	}
}
