package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/barrierlattice/config"
	"github.com/alejandrodnm/barrierlattice/internal/adapters/notify"
	"github.com/alejandrodnm/barrierlattice/internal/adapters/storage"
	"github.com/alejandrodnm/barrierlattice/internal/domain"
	"github.com/alejandrodnm/barrierlattice/internal/pricing"
	"github.com/alejandrodnm/barrierlattice/internal/sweep"
)

func main() {
	os.Exit(run())
}

// run devuelve el código de salida. Los defer (store.Close, cancel) corren
// antes de que main llame a os.Exit.
func run() int {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	engine := flag.String("engine", "", "model: full|condensed|amm|all (overrides config)")
	steps := flag.Int("steps", 0, "time steps N for the trinomial models (overrides config)")
	levels := flag.Int("levels", -1, "refinement levels M for the adaptive mesh (overrides config)")
	runSweep := flag.Bool("sweep", false, "run a convergence sweep over [sweep_from, sweep_to]")
	dryRun := flag.Bool("dry-run", false, "do not persist sweeps")
	history := flag.Bool("history", false, "list sweeps stored in the last 30 days and exit")
	show := flag.String("show", "", "print a stored sweep by id and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", true, "print full tables (false: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		return 1
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *engine != "" {
		cfg.Model.Engine = *engine
	}
	if *steps > 0 {
		cfg.Model.Steps = *steps
	}
	if *levels >= 0 {
		cfg.Model.Levels = *levels
	}
	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		return 1
	}
	opt, mkt, err := cfg.Contract.Build()
	if err != nil {
		slog.Error("invalid contract", "err", err)
		return 1
	}

	slog.Info("pricer starting",
		"config", *configPath,
		"contract", opt.String(),
		"engine", cfg.Model.Engine,
		"steps", cfg.Model.Steps,
		"levels", cfg.Model.Levels,
		"sweep", *runSweep,
		"dry_run", *dryRun,
	)

	needsStore := *history || *show != "" || (*runSweep && !*dryRun)
	var store *storage.SQLiteStorage
	if needsStore {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			return 1
		}
		defer store.Close()
	}

	notifier := notify.NewConsole(*table)
	models := pricing.DefaultRegistry(pricing.MeshConfig{Lambda: cfg.Model.Lambda})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *history:
		err = runHistory(ctx, store)
	case *show != "":
		err = runShow(ctx, store, notifier, *show)
	case *runSweep:
		var runner *sweep.Runner
		if store != nil {
			runner = sweep.New(models, store, notifier)
		} else {
			runner = sweep.New(models, nil, notifier)
		}
		err = runSweeps(ctx, runner, cfg, opt, mkt, *dryRun)
	default:
		runner := sweep.New(models, nil, notifier)
		err = runEvaluate(ctx, runner, cfg, opt, mkt)
	}
	if err != nil {
		slog.Error("pricer failed", "err", err)
		return 1
	}

	slog.Info("pricer stopped cleanly")
	return 0
}

// engineNames resuelve "all" a los tres modelos en orden de costo decreciente.
func engineNames(engine string) []string {
	if engine == config.EngineAll {
		return []string{pricing.ModelFull, pricing.ModelCondensed, pricing.ModelMesh}
	}
	return []string{engine}
}

func resolution(model string, m config.ModelConfig) int {
	if model == pricing.ModelMesh {
		return m.Levels
	}
	return m.Steps
}

func runEvaluate(ctx context.Context, runner *sweep.Runner, cfg *config.Config, opt domain.Option, mkt domain.Market) error {
	var reqs []sweep.Request
	for _, name := range engineNames(cfg.Model.Engine) {
		if name == pricing.ModelFull && cfg.Model.Steps > domain.MaxTrajectorySteps {
			slog.Warn("full model skipped: too many steps for trajectory enumeration",
				"steps", cfg.Model.Steps,
				"max", domain.MaxTrajectorySteps,
			)
			continue
		}
		reqs = append(reqs, sweep.Request{Model: name, Resolution: resolution(name, cfg.Model)})
	}

	report, err := runner.Evaluate(ctx, opt, mkt, reqs)
	if err != nil {
		return fmt.Errorf("valuation: %w", err)
	}
	for _, v := range report.Valuations {
		slog.Debug("position value",
			"model", v.Model,
			"value", v.PositionValue(),
			"revenue_at_price", opt.Revenue(v.Price),
		)
	}
	return nil
}

func runSweeps(ctx context.Context, runner *sweep.Runner, cfg *config.Config, opt domain.Option, mkt domain.Market, dryRun bool) error {
	for _, name := range engineNames(cfg.Model.Engine) {
		sc := sweep.Config{
			Model:   name,
			From:    cfg.Model.SweepFrom,
			To:      cfg.Model.SweepTo,
			Workers: cfg.Model.Workers,
			DryRun:  dryRun,
		}
		switch name {
		case pricing.ModelFull:
			sc.To = min(sc.To, domain.MaxTrajectorySteps)
		case pricing.ModelMesh:
			// M crece h exponencialmente: más allá de unos pocos niveles el lattice grueso queda vacío.
			sc.From, sc.To = 0, max(cfg.Model.Levels, 4)
		}
		if sc.From > sc.To {
			slog.Warn("sweep skipped: empty range", "model", name, "from", sc.From, "to", sc.To)
			continue
		}

		s, err := runner.Run(ctx, sc, opt, mkt)
		if errors.Is(err, context.Canceled) {
			slog.Warn("sweep interrupted", "model", name, "points", len(s.Points))
			return nil
		}
		if err != nil {
			return fmt.Errorf("sweep %s: %w", name, err)
		}
		slog.Info("sweep finished", "id", s.ID, "model", s.Model, "persisted", !dryRun)
	}
	return nil
}

func runHistory(ctx context.Context, store *storage.SQLiteStorage) error {
	to := time.Now().UTC()
	sweeps, err := store.ListSweeps(ctx, to.Add(-30*24*time.Hour), to)
	if err != nil {
		return fmt.Errorf("list sweeps: %w", err)
	}
	if len(sweeps) == 0 {
		slog.Info("no sweeps stored in the last 30 days")
		return nil
	}
	for _, s := range sweeps {
		slog.Info("sweep",
			"id", s.ID,
			"model", s.Model,
			"contract", s.Option.String(),
			"created_at", s.CreatedAt.Format(time.RFC3339),
		)
	}
	return nil
}

func runShow(ctx context.Context, store *storage.SQLiteStorage, notifier *notify.Console, id string) error {
	s, err := store.GetSweep(ctx, id)
	if err != nil {
		return fmt.Errorf("load sweep: %w", err)
	}
	if err := notifier.NotifySweep(ctx, s); err != nil {
		slog.Warn("notifier error", "err", err)
	}
	return nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
