package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/rschio/atm/internal/core/account"
	"github.com/rschio/atm/internal/core/account/store/accountmem"
	"github.com/rschio/atm/internal/data/seed"
	"github.com/rschio/atm/internal/handlers"
	"github.com/rschio/atm/internal/logger"
	"github.com/rschio/atm/internal/trace"
)

var build = "develop"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Env string `conf:"default:DEV"`
		Log struct {
			File string `conf:"help:write logs to this file instead of stderr"`
		}
		Seed struct {
			File string `conf:"help:YAML file with the accounts to start with"`
		}
		Ledger struct {
			DayLocation string `conf:"default:Local"`
			RecentCount int    `conf:"default:5"`
		}
		UI struct {
			Confirm bool `conf:"default:false"`
		}
		Tempo struct {
			Exporter    string  `conf:"default:discard"`
			Endpoint    string  `conf:"default:localhost:4317"`
			ServiceName string  `conf:"default:atm"`
			Probability float64 `conf:"default:1"`
		}
		ShutdownTimeout time.Duration `conf:"default:5s"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "ATM simulator",
		},
	}

	const prefix = "ATM"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// Logging

	var logOut io.Writer = os.Stderr
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log := logger.New(logOut, "ATM")

	// =========================================================================
	// App Starting

	log.Info("starting service", "version", build)
	defer log.Info("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Info("startup", "config", out)

	// =========================================================================
	// Tracing Support

	log.Info("startup", "status", "initializing tracing support", "exporter", cfg.Tempo.Exporter)

	traceProvider, err := trace.NewProvider(ctx, trace.Config{
		Env:            cfg.Env,
		Endpoint:       cfg.Tempo.Endpoint,
		Service:        cfg.Tempo.ServiceName,
		Exporter:       cfg.Tempo.Exporter,
		Writer:         logOut,
		SampleFraction: cfg.Tempo.Probability,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			log.Error("shutdown", "status", "stopping tracing support", "ERROR", err)
		}
	}()
	tracer := traceProvider.Tracer(cfg.Tempo.ServiceName)

	// =========================================================================
	// Ledger Support

	loc, err := time.LoadLocation(cfg.Ledger.DayLocation)
	if err != nil {
		return fmt.Errorf("loading day location: %w", err)
	}

	accounts, err := seed.Load(cfg.Seed.File)
	if err != nil {
		return fmt.Errorf("loading seed: %w", err)
	}
	log.Info("startup", "status", "seeded accounts", "accounts", len(accounts), "file", cfg.Seed.File)

	store, err := accountmem.NewStore(log, accounts...)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	core := account.NewCore(store, account.WithLocation(loc))

	// =========================================================================
	// Start Terminal

	log.Info("startup", "status", "initializing terminal")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	srv := handlers.NewServer(log, core, cfg.Ledger.RecentCount)
	mux := handlers.CommandMux(srv, tracer)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- mux.Serve(serveCtx, os.Stdin, os.Stdout, cfg.UI.Confirm)
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serveErrors:
		if err != nil {
			return fmt.Errorf("terminal error: %w", err)
		}
		log.Info("shutdown", "status", "terminal closed")

	case sig := <-shutdown:
		log.Info("shutdown", "status", "shutdown started", "signal", sig)
		cancel()
	}

	return nil
}
