package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/me/flakeci/internal/config"
	"github.com/me/flakeci/internal/coordinator"
	"github.com/me/flakeci/internal/evaluator"
	"github.com/me/flakeci/internal/logging"
	"github.com/me/flakeci/internal/scheduler"
	"github.com/me/flakeci/internal/server"
	"github.com/me/flakeci/internal/store"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file")
	addr := flag.String("addr", "", "Listen address")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (text, json)")
	dbDriver := flag.String("db-driver", "", "Database driver (sqlite, postgres)")
	dbDSN := flag.String("db", "", "Database path or DSN (default ~/.flakeci/flakeci.db for sqlite)")
	evalCmd := flag.String("evaluator", "", "Evaluator command (default nix-eval-jobs)")
	maxConcurrent := flag.Int("max-concurrent", 0, "Maximum simultaneous evaluations (0 = unbounded)")
	noScheduler := flag.Bool("no-scheduler", false, "Only evaluate on explicit trigger requests")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	// Precedence: defaults, config file, FLAKECI_* environment, flags.
	cfg := config.DefaultServerConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadFile(*configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "environment: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "db-driver":
			cfg.Database.Driver = *dbDriver
		case "db":
			cfg.Database.DSN = *dbDSN
		case "evaluator":
			cfg.Evaluator.Command = *evalCmd
		case "max-concurrent":
			cfg.Evaluator.MaxConcurrent = *maxConcurrent
		case "no-scheduler":
			cfg.Scheduler.Enabled = !*noScheduler
		}
	})
	if *debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	// Resolve the default SQLite path.
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".flakeci")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		cfg.Database.DSN = filepath.Join(dir, "flakeci.db")
	}

	// Open store and run migrations.
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "driver", cfg.Database.Driver)

	runner := evaluator.NewNixEvalJobs(evaluator.Config{
		Command:          cfg.Evaluator.Command,
		Args:             cfg.Evaluator.Args,
		Timeout:          cfg.Evaluator.Timeout.Std(),
		DefaultAttribute: cfg.Evaluator.DefaultAttribute,
	}, logger)

	coord := coordinator.New(st, runner, logger,
		coordinator.WithDispatcher(coordinator.NewLogDispatcher(logger)),
		coordinator.WithMaxConcurrent(cfg.Evaluator.MaxConcurrent),
	)

	var serverOpts []server.Option
	var sched *scheduler.Loop
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewLoop(coord, scheduler.Config{
			PollInterval:         cfg.Scheduler.PollInterval.Std(),
			DefaultCheckInterval: cfg.Scheduler.DefaultCheckInterval.Std(),
		}, logger)
		serverOpts = append(serverOpts, server.WithScheduler(sched))
	} else {
		logger.Info("scheduler disabled; jobsets are only evaluated on trigger")
	}
	if cfg.APIToken != "" {
		logger.Info("api token authentication enabled for write requests")
	}

	srv := server.New(cfg, st, coord, logger, serverOpts...)

	// Trigger requests wait for the evaluation, so there is no write timeout.
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start scheduler in background.
	srv.StartScheduler(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop scheduler before HTTP server.
	if sched != nil {
		if err := sched.Stop(); err != nil {
			logger.Error("scheduler stop error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Evaluator.Timeout.Std()+5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
