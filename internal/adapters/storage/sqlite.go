package storage

// sqlite.go: histórico de barridos de convergencia.
//
//   - `sweeps`: una fila por barrido con el contrato, el mercado y la referencia.
//   - `sweep_points`: una fila por resolución valuada. Los puntos fallidos se
//     guardan con su error para poder auditar dónde se rompió el modelo.
//   - Prune automático al arrancar: barridos con más de 90 días.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/barrierlattice/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sweeps (
    id            TEXT PRIMARY KEY,
    model         TEXT    NOT NULL,
    option_type   TEXT    NOT NULL,
    barrier_type  TEXT    NOT NULL,
    position      TEXT    NOT NULL,
    strike        REAL    NOT NULL,
    maturity      REAL    NOT NULL,
    barrier       REAL    NOT NULL,
    premium       REAL    NOT NULL DEFAULT 0,
    spot          REAL    NOT NULL,
    rate          REAL    NOT NULL,
    sigma         REAL    NOT NULL,
    reference     REAL,
    created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sweep_points (
    sweep_id      TEXT    NOT NULL REFERENCES sweeps(id) ON DELETE CASCADE,
    resolution    INTEGER NOT NULL,
    price         REAL,
    nodes         INTEGER NOT NULL DEFAULT 0,
    price_step    REAL    NOT NULL DEFAULT 0,
    barrier_steps INTEGER NOT NULL DEFAULT 0,
    abs_error     REAL,
    error         TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (sweep_id, resolution)
);

CREATE INDEX IF NOT EXISTS idx_sweeps_created ON sweeps(created_at DESC);
`

const retentionSweeps = 90 * 24 * time.Hour

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Usar ":memory:" para una base efímera.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveSweep persiste el barrido y sus puntos en una sola transacción.
// Guardar dos veces el mismo ID reemplaza los puntos anteriores.
func (s *SQLiteStorage) SaveSweep(ctx context.Context, sweep domain.Sweep) error {
	if sweep.ID == "" {
		return fmt.Errorf("storage.SaveSweep: empty sweep id: %w", domain.ErrInvalidConfig)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveSweep: begin tx: %w", err)
	}
	defer tx.Rollback()

	opt, mkt := sweep.Option, sweep.Market
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sweeps
			(id, model, option_type, barrier_type, position, strike, maturity,
			 barrier, premium, spot, rate, sigma, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			model      = excluded.model,
			reference  = excluded.reference,
			created_at = excluded.created_at
	`,
		sweep.ID, sweep.Model,
		opt.Type.String(), opt.BarrierType.String(), opt.Position.String(),
		opt.Strike, opt.Maturity, opt.Barrier, opt.Premium,
		mkt.Spot, mkt.Rate, mkt.Sigma,
		nullable(sweep.Reference, sweep.HasReference),
		sweep.CreatedAt.UTC().UnixNano(),
	); err != nil {
		return fmt.Errorf("storage.SaveSweep: insert sweep %s: %w", sweep.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sweep_points WHERE sweep_id = ?`, sweep.ID); err != nil {
		return fmt.Errorf("storage.SaveSweep: clear points %s: %w", sweep.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sweep_points
			(sweep_id, resolution, price, nodes, price_step, barrier_steps, abs_error, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveSweep: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range sweep.Points {
		if _, err := stmt.ExecContext(ctx,
			sweep.ID,
			p.Resolution,
			nullable(p.Price, p.OK()),
			p.Nodes,
			p.PriceStep,
			p.BarrierSteps,
			nullable(p.AbsError, p.OK()),
			p.Err,
		); err != nil {
			return fmt.Errorf("storage.SaveSweep: insert point %s/%d: %w", sweep.ID, p.Resolution, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveSweep: commit: %w", err)
	}
	return nil
}

// GetSweep devuelve el barrido con sus puntos ordenados por resolución.
func (s *SQLiteStorage) GetSweep(ctx context.Context, id string) (domain.Sweep, error) {
	row := s.db.QueryRowContext(ctx, selectSweep+` WHERE id = ?`, id)
	sweep, err := scanSweep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sweep{}, fmt.Errorf("storage.GetSweep: %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Sweep{}, fmt.Errorf("storage.GetSweep: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT resolution, price, nodes, price_step, barrier_steps, abs_error, error
		FROM sweep_points
		WHERE sweep_id = ?
		ORDER BY resolution ASC
	`, id)
	if err != nil {
		return domain.Sweep{}, fmt.Errorf("storage.GetSweep: query points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.SweepPoint
		var price, absErr sql.NullFloat64
		if err := rows.Scan(&p.Resolution, &price, &p.Nodes, &p.PriceStep,
			&p.BarrierSteps, &absErr, &p.Err); err != nil {
			return domain.Sweep{}, fmt.Errorf("storage.GetSweep: scan point: %w", err)
		}
		p.Price = orNaN(price)
		p.AbsError = orNaN(absErr)
		sweep.Points = append(sweep.Points, p)
	}
	return sweep, rows.Err()
}

// ListSweeps devuelve los barridos creados en [from, to], los más recientes primero.
func (s *SQLiteStorage) ListSweeps(ctx context.Context, from, to time.Time) ([]domain.Sweep, error) {
	rows, err := s.db.QueryContext(ctx,
		selectSweep+` WHERE created_at BETWEEN ? AND ? ORDER BY created_at DESC`,
		from.UTC().UnixNano(), to.UTC().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ListSweeps: query: %w", err)
	}
	defer rows.Close()

	var sweeps []domain.Sweep
	for rows.Next() {
		sweep, err := scanSweep(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListSweeps: %w", err)
		}
		sweeps = append(sweeps, sweep)
	}
	return sweeps, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

const selectSweep = `
	SELECT id, model, option_type, barrier_type, position, strike, maturity,
	       barrier, premium, spot, rate, sigma, reference, created_at
	FROM sweeps`

type scanner interface {
	Scan(dest ...any) error
}

func scanSweep(sc scanner) (domain.Sweep, error) {
	var (
		sweep                     domain.Sweep
		optType, barType, posType string
		reference                 sql.NullFloat64
		createdAt                 int64
	)
	if err := sc.Scan(
		&sweep.ID, &sweep.Model, &optType, &barType, &posType,
		&sweep.Option.Strike, &sweep.Option.Maturity, &sweep.Option.Barrier, &sweep.Option.Premium,
		&sweep.Market.Spot, &sweep.Market.Rate, &sweep.Market.Sigma,
		&reference, &createdAt,
	); err != nil {
		return domain.Sweep{}, err
	}

	var err error
	if sweep.Option.Type, err = domain.ParseOptionType(optType); err != nil {
		return domain.Sweep{}, fmt.Errorf("sweep %s: %w", sweep.ID, err)
	}
	if sweep.Option.BarrierType, err = domain.ParseBarrierType(barType); err != nil {
		return domain.Sweep{}, fmt.Errorf("sweep %s: %w", sweep.ID, err)
	}
	if sweep.Option.Position, err = domain.ParsePositionType(posType); err != nil {
		return domain.Sweep{}, fmt.Errorf("sweep %s: %w", sweep.ID, err)
	}
	sweep.Reference = reference.Float64
	sweep.HasReference = reference.Valid
	sweep.CreatedAt = time.Unix(0, createdAt).UTC()
	return sweep, nil
}

// pruneOld elimina barridos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionSweeps).UnixNano()
	s.db.ExecContext(ctx, `DELETE FROM sweep_points WHERE sweep_id IN (SELECT id FROM sweeps WHERE created_at < ?)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM sweeps WHERE created_at < ?`, cutoff)
}

// nullable convierte NaN o valores ausentes en NULL.
func nullable(x float64, valid bool) sql.NullFloat64 {
	if !valid || math.IsNaN(x) || math.IsInf(x, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: x, Valid: true}
}

func orNaN(x sql.NullFloat64) float64 {
	if !x.Valid {
		return math.NaN()
	}
	return x.Float64
}
