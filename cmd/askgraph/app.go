package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammad-safakhou/askgraph/config"
	"github.com/mohammad-safakhou/askgraph/internal/audit"
	"github.com/mohammad-safakhou/askgraph/internal/compiler"
	"github.com/mohammad-safakhou/askgraph/internal/progress"
	"github.com/mohammad-safakhou/askgraph/internal/telemetry"
	"github.com/mohammad-safakhou/askgraph/provider"
	"github.com/mohammad-safakhou/askgraph/tools"
)

// app is the wired dependency graph shared by the serve, ask and plan commands.
type app struct {
	cfg      *config.Config
	compiler *compiler.Compiler
	metrics  *prometheus.Registry
	audits   *audit.PostgresSink
	progress *progress.Publisher
	closers  []func()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.General.Verbose = true
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, metrics: prometheus.NewRegistry()}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	tel, tracer, err := telemetry.Setup(ctx, cfg.Telemetry, telemetry.Options{ServiceVersion: version})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(sctx)
	})

	registry, cleanup, err := tools.Build(cfg.Tools, log.New(logOut, "[TOOLS] ", log.LstdFlags))
	a.closers = append(a.closers, cleanup)
	if err != nil {
		return nil, err
	}

	planner, joiner, formatterModel, err := provider.Models(cfg.LLM)
	if err != nil {
		return nil, err
	}

	metrics, err := compiler.NewPrometheusMetrics(a.metrics)
	if err != nil {
		return nil, err
	}

	schedOpts := []compiler.Option{
		compiler.WithMetrics(metrics.SchedulerMetrics()),
		compiler.WithTaskTimeout(cfg.Compiler.TaskTimeout),
		compiler.WithSchedulerDiagnostics(compiler.Diagnostics{
			Logger:  log.New(logOut, "[SCHEDULER] ", log.LstdFlags),
			Verbose: cfg.General.Verbose,
			Tracer:  tracer,
		}),
	}
	opts := []compiler.CompilerOption{
		compiler.WithDiagnostics(compiler.Diagnostics{
			Logger:  log.New(logOut, "[COMPILER] ", log.LstdFlags),
			Verbose: cfg.General.Verbose,
			Tracer:  tracer,
		}),
		compiler.WithCallObserver(metrics.ObserveCall),
		compiler.WithResultObserver(metrics.ObserveResult),
	}

	if cfg.Storage.Redis.Enabled() {
		rdb, err := progress.NewRedisClient(ctx, cfg.Storage.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		pub := progress.NewPublisher(rdb, cfg.Storage.Redis.ProgressChannel)
		a.progress = pub
		schedOpts = append(schedOpts, compiler.WithObserver(pub))
		opts = append(opts, compiler.WithNotifier(pub))
	}

	var sinks audit.Multi
	if cfg.Storage.Audit.Dir != "" {
		sinks = append(sinks, audit.FileSink{Dir: cfg.Storage.Audit.Dir})
	}
	if cfg.Storage.Audit.Postgres {
		db, err := audit.OpenPostgres(ctx, cfg.Storage.Postgres.DSN())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.audits = &audit.PostgresSink{DB: db}
		sinks = append(sinks, a.audits)
	}
	if len(sinks) > 0 {
		opts = append(opts, compiler.WithAuditor(sinks))
	}

	if cfg.Compiler.FormatAnswers {
		if formatterModel == nil {
			formatterModel = joiner
		}
		opts = append(opts, compiler.WithFormatter(compiler.MarkdownFormatter{Model: formatterModel}))
	}
	opts = append(opts, compiler.WithSchedulerOptions(schedOpts...))

	c, err := compiler.New(compiler.Config{
		MaxReplan:      cfg.Compiler.MaxReplan,
		FallbackAnswer: cfg.Compiler.FallbackAnswer,
		CallTimeout:    cfg.Compiler.CallTimeout,
	}, planner, joiner, registry, opts...)
	if err != nil {
		return nil, fmt.Errorf("build compiler: %w", err)
	}
	a.compiler = c
	ok = true
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
