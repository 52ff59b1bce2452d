package sweep_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/barrierlattice/internal/domain"
	"github.com/alejandrodnm/barrierlattice/internal/pricing"
	"github.com/alejandrodnm/barrierlattice/internal/sweep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// mockModel devuelve precio = 11 + 1/res y falla en las resoluciones de failAt.
type mockModel struct {
	name   string
	failAt map[int]error
}

func (m mockModel) Name() string { return m.name }

func (m mockModel) Price(opt domain.Option, _ domain.Market, res int) (domain.Valuation, error) {
	if err, ok := m.failAt[res]; ok {
		return domain.Valuation{}, err
	}
	return domain.Valuation{
		Model:      m.name,
		Resolution: res,
		Price:      11 + 1/float64(res),
		Position:   opt.Position,
		Nodes:      (res + 1) * (res + 1),
		PriceStep:  0.25 * math.Sqrt(3/float64(res)),
	}, nil
}

type mockStorage struct {
	mu     sync.Mutex
	saved  []domain.Sweep
	saveFn func(domain.Sweep) error
}

func (m *mockStorage) SaveSweep(_ context.Context, s domain.Sweep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveFn != nil {
		if err := m.saveFn(s); err != nil {
			return err
		}
	}
	m.saved = append(m.saved, s)
	return nil
}

func (m *mockStorage) GetSweep(context.Context, string) (domain.Sweep, error) {
	return domain.Sweep{}, domain.ErrNotFound
}

func (m *mockStorage) ListSweeps(context.Context, time.Time, time.Time) ([]domain.Sweep, error) {
	return nil, nil
}

func (m *mockStorage) Close() error { return nil }

type mockNotifier struct {
	reports []domain.Report
	sweeps  []domain.Sweep
}

func (m *mockNotifier) NotifyReport(_ context.Context, r domain.Report) error {
	m.reports = append(m.reports, r)
	return nil
}

func (m *mockNotifier) NotifySweep(_ context.Context, s domain.Sweep) error {
	m.sweeps = append(m.sweeps, s)
	return nil
}

// --- fixtures ---

func downAndOutCall() (domain.Option, domain.Market) {
	return domain.Option{
			Type:        domain.Call,
			Strike:      100,
			Maturity:    1,
			Barrier:     90,
			BarrierType: domain.DownAndOut,
			Position:    domain.Long,
		},
		domain.Market{Spot: 100, Rate: 0.1, Sigma: 0.25}
}

const referenceDOC = 11.3233664952

func newRunner(model pricing.Model, st *mockStorage, n *mockNotifier) *sweep.Runner {
	reg := pricing.NewRegistry()
	reg.Register(model)
	if st == nil {
		return sweep.New(reg, nil, n)
	}
	return sweep.New(reg, st, n)
}

// --- Run ---

func TestRunner_Run_SortedPoints(t *testing.T) {
	st := &mockStorage{}
	n := &mockNotifier{}
	r := newRunner(mockModel{name: "mock"}, st, n)
	opt, mkt := downAndOutCall()

	s, err := r.Run(context.Background(), sweep.Config{Model: "mock", From: 1, To: 40, Workers: 4}, opt, mkt)
	require.NoError(t, err)

	require.Len(t, s.Points, 40)
	for i, p := range s.Points {
		assert.Equal(t, i+1, p.Resolution)
		assert.True(t, p.OK())
		assert.InDelta(t, math.Abs(11+1/float64(i+1)-referenceDOC), p.AbsError, 1e-12)
	}
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "mock", s.Model)
	assert.True(t, s.HasReference)
	assert.InDelta(t, referenceDOC, s.Reference, 1e-8)

	require.Len(t, n.sweeps, 1)
	require.Len(t, st.saved, 1)
	assert.Equal(t, s.ID, st.saved[0].ID)
}

func TestRunner_Run_FailedPointsDoNotAbort(t *testing.T) {
	model := mockModel{name: "mock", failAt: map[int]error{
		3: domain.ErrInfeasibleProbabilities,
		5: domain.ErrTooManySteps,
	}}
	r := newRunner(model, nil, &mockNotifier{})
	opt, mkt := downAndOutCall()

	s, err := r.Run(context.Background(), sweep.Config{Model: "mock", From: 1, To: 6}, opt, mkt)
	require.NoError(t, err)

	require.Len(t, s.Points, 6)
	assert.Equal(t, 2, s.Failed())
	assert.False(t, s.Points[2].OK())
	assert.Contains(t, s.Points[2].Err, "infeasible")
	assert.True(t, math.IsNaN(s.Points[4].AbsError))

	best, ok := s.Best()
	require.True(t, ok)
	assert.Equal(t, 4, best.Resolution) // |11.25 − 11.3234| es el menor
}

func TestRunner_Run_NoReference(t *testing.T) {
	r := newRunner(mockModel{name: "mock"}, nil, &mockNotifier{})
	opt, mkt := downAndOutCall()
	opt.Type = domain.Put

	s, err := r.Run(context.Background(), sweep.Config{Model: "mock", From: 1, To: 3}, opt, mkt)
	require.NoError(t, err)

	assert.False(t, s.HasReference)
	for _, p := range s.Points {
		assert.True(t, math.IsNaN(p.AbsError))
	}
	_, ok := s.Best()
	assert.False(t, ok)
}

func TestRunner_Run_DryRunSkipsStorage(t *testing.T) {
	st := &mockStorage{}
	r := newRunner(mockModel{name: "mock"}, st, &mockNotifier{})
	opt, mkt := downAndOutCall()

	_, err := r.Run(context.Background(), sweep.Config{Model: "mock", From: 1, To: 2, DryRun: true}, opt, mkt)
	require.NoError(t, err)
	assert.Empty(t, st.saved)
}

func TestRunner_Run_StorageError(t *testing.T) {
	boom := errors.New("disk full")
	st := &mockStorage{saveFn: func(domain.Sweep) error { return boom }}
	r := newRunner(mockModel{name: "mock"}, st, &mockNotifier{})
	opt, mkt := downAndOutCall()

	_, err := r.Run(context.Background(), sweep.Config{Model: "mock", From: 1, To: 2}, opt, mkt)
	require.ErrorIs(t, err, boom)
}

func TestRunner_Run_InvalidRange(t *testing.T) {
	r := newRunner(mockModel{name: "mock"}, nil, &mockNotifier{})
	opt, mkt := downAndOutCall()

	_, err := r.Run(context.Background(), sweep.Config{Model: "mock", From: 10, To: 5}, opt, mkt)
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestRunner_Run_UnknownModel(t *testing.T) {
	r := newRunner(mockModel{name: "mock"}, nil, &mockNotifier{})
	opt, mkt := downAndOutCall()

	_, err := r.Run(context.Background(), sweep.Config{Model: "binomial", From: 1, To: 2}, opt, mkt)
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestRunner_Run_CancelledContext(t *testing.T) {
	r := newRunner(mockModel{name: "mock"}, nil, &mockNotifier{})
	opt, mkt := downAndOutCall()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, sweep.Config{Model: "mock", From: 1, To: 100}, opt, mkt)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunner_Run_CondensedAlignedSteps(t *testing.T) {
	reg := pricing.DefaultRegistry(pricing.DefaultMeshConfig())
	r := sweep.New(reg, nil, &mockNotifier{})
	opt, mkt := downAndOutCall()

	// N = 16 es el primer lattice con la barrera alineada.
	s, err := r.Run(context.Background(), sweep.Config{Model: pricing.ModelCondensed, From: 14, To: 18, Workers: 2}, opt, mkt)
	require.NoError(t, err)
	require.Len(t, s.Points, 5)

	best, ok := s.Best()
	require.True(t, ok)
	assert.Equal(t, 16, best.Resolution)
	assert.InDelta(t, 0.1154, best.AbsError, 1e-3)
}

// --- Evaluate ---

func TestRunner_Evaluate_SkipsUnsupported(t *testing.T) {
	reg := pricing.DefaultRegistry(pricing.DefaultMeshConfig())
	n := &mockNotifier{}
	r := sweep.New(reg, nil, n)
	opt, mkt := downAndOutCall()

	report, err := r.Evaluate(context.Background(), opt, mkt, []sweep.Request{
		{Model: pricing.ModelFull, Resolution: 20}, // excede MaxTrajectorySteps
		{Model: pricing.ModelCondensed, Resolution: 50},
		{Model: pricing.ModelMesh, Resolution: 1},
	})
	require.NoError(t, err)

	require.Len(t, report.Valuations, 2)
	assert.Equal(t, pricing.ModelCondensed, report.Valuations[0].Model)
	assert.InDelta(t, 12.16994, report.Valuations[0].Price, 1e-4)
	assert.Equal(t, pricing.ModelMesh, report.Valuations[1].Model)
	assert.InDelta(t, 11.3903361, report.Valuations[1].Price, 1e-5)
	assert.InDelta(t, referenceDOC, report.Reference, 1e-8)

	require.Len(t, n.reports, 1)
}

func TestRunner_Evaluate_PropagatesInvalidConfig(t *testing.T) {
	r := newRunner(mockModel{name: "mock", failAt: map[int]error{7: domain.ErrInfeasibleProbabilities}}, nil, &mockNotifier{})
	opt, mkt := downAndOutCall()

	_, err := r.Evaluate(context.Background(), opt, mkt, []sweep.Request{{Model: "mock", Resolution: 7}})
	require.ErrorIs(t, err, domain.ErrInfeasibleProbabilities)
}

func TestRunner_Evaluate_InvalidMarket(t *testing.T) {
	r := newRunner(mockModel{name: "mock"}, nil, &mockNotifier{})
	opt, mkt := downAndOutCall()
	mkt.Sigma = 0

	_, err := r.Evaluate(context.Background(), opt, mkt, []sweep.Request{{Model: "mock", Resolution: 1}})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}
