package storage_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alejandrodnm/barrierlattice/internal/adapters/storage"
	"github.com/alejandrodnm/barrierlattice/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSweep(id string, createdAt time.Time) domain.Sweep {
	return domain.Sweep{
		ID:    id,
		Model: "condensed",
		Option: domain.Option{
			Type:        domain.Call,
			Strike:      100,
			Maturity:    1,
			Barrier:     90,
			BarrierType: domain.DownAndOut,
			Position:    domain.Short,
			Premium:     11.5,
		},
		Market:       domain.Market{Spot: 100, Rate: 0.1, Sigma: 0.25},
		Reference:    11.3233664952,
		HasReference: true,
		CreatedAt:    createdAt,
		Points: []domain.SweepPoint{
			{Resolution: 16, Price: 11.4388, Nodes: 289, PriceStep: 0.1083, BarrierSteps: 1, AbsError: 0.1154},
			{Resolution: 67, Price: 11.3383, Nodes: 4624, PriceStep: 0.0529, BarrierSteps: 2, AbsError: 0.0149},
			{Resolution: 9000, AbsError: math.NaN(), Err: "too many time steps"},
		},
	}
}

func newStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteStorage_SaveAndGetSweep(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, db.SaveSweep(ctx, makeSweep("s-1", now)))

	got, err := db.GetSweep(ctx, "s-1")
	require.NoError(t, err)

	assert.Equal(t, "condensed", got.Model)
	assert.Equal(t, domain.DownAndOut, got.Option.BarrierType)
	assert.Equal(t, domain.Call, got.Option.Type)
	assert.Equal(t, domain.Short, got.Option.Position)
	assert.InDelta(t, 11.5, got.Option.Premium, 1e-12)
	assert.InDelta(t, 0.25, got.Market.Sigma, 1e-12)
	assert.True(t, got.HasReference)
	assert.InDelta(t, 11.3233664952, got.Reference, 1e-12)
	assert.True(t, now.Equal(got.CreatedAt))

	require.Len(t, got.Points, 3)
	assert.Equal(t, 16, got.Points[0].Resolution)
	assert.Equal(t, 289, got.Points[0].Nodes)
	assert.InDelta(t, 0.0149, got.Points[1].AbsError, 1e-12)

	failed := got.Points[2]
	assert.False(t, failed.OK())
	assert.True(t, math.IsNaN(failed.Price))
	assert.True(t, math.IsNaN(failed.AbsError))
	assert.Equal(t, 1, got.Failed())
}

func TestSQLiteStorage_SaveTwiceReplacesPoints(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	sweep := makeSweep("s-1", time.Now())
	require.NoError(t, db.SaveSweep(ctx, sweep))

	sweep.Points = sweep.Points[:1]
	require.NoError(t, db.SaveSweep(ctx, sweep))

	got, err := db.GetSweep(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, got.Points, 1)
}

func TestSQLiteStorage_NoReference(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	sweep := makeSweep("s-put", time.Now())
	sweep.HasReference = false
	sweep.Reference = 0
	require.NoError(t, db.SaveSweep(ctx, sweep))

	got, err := db.GetSweep(ctx, "s-put")
	require.NoError(t, err)
	assert.False(t, got.HasReference)
}

func TestSQLiteStorage_GetSweepNotFound(t *testing.T) {
	db := newStorage(t)

	_, err := db.GetSweep(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStorage_SaveSweepEmptyID(t *testing.T) {
	db := newStorage(t)

	err := db.SaveSweep(context.Background(), makeSweep("", time.Now()))
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestSQLiteStorage_ListSweeps(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.SaveSweep(ctx, makeSweep("old", now.Add(-2*time.Hour))))
	require.NoError(t, db.SaveSweep(ctx, makeSweep("mid", now.Add(-30*time.Minute))))
	require.NoError(t, db.SaveSweep(ctx, makeSweep("new", now)))

	sweeps, err := db.ListSweeps(ctx, now.Add(-time.Hour), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, sweeps, 2)

	// Más recientes primero, sin puntos
	assert.Equal(t, "new", sweeps[0].ID)
	assert.Equal(t, "mid", sweeps[1].ID)
	assert.Empty(t, sweeps[0].Points)
}

func TestSQLiteStorage_ListSweepsEmpty(t *testing.T) {
	db := newStorage(t)

	sweeps, err := db.ListSweeps(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, sweeps)
}
