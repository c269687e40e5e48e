package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appInventory "github.com/Zhima-Mochi/juice-vending/internal/application/inventory"
	"github.com/Zhima-Mochi/juice-vending/internal/application/vending"
	"github.com/Zhima-Mochi/juice-vending/internal/config"
	"github.com/Zhima-Mochi/juice-vending/internal/infrastructure/id"
	"github.com/Zhima-Mochi/juice-vending/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/juice-vending/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/juice-vending/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/juice-vending/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/juice-vending/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/juice-vending/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/juice-vending/internal/infrastructure/terminal"
	"github.com/Zhima-Mochi/juice-vending/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/juice-vending/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/juice-vending/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var version = "dev"

const shutdownTimeout = 5 * time.Second

func main() {
	cmd := &cli.Command{
		Name:    "juice-vending",
		Usage:   "fruit juice vending machine on the terminal",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "TOML catalog file",
				Sources: cli.EnvVars(config.EnvConfigPath),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: config.DefaultLogLevel,
			},
			&cli.StringFlag{
				Name:  "status-addr",
				Usage: "listen address of the operator status server, e.g. :8080 (disabled when empty)",
			},
			&cli.StringFlag{
				Name:  "trace-file",
				Usage: "write spans as JSON to this file (disabled when empty)",
			},
			&cli.StringFlag{
				Name:  "opening-balance",
				Usage: "cash in the vault at start, overrides the config file",
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "juice-vending:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"), os.Getenv)
	if err != nil {
		return err
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("status-addr") {
		cfg.StatusAddr = cmd.String("status-addr")
	}
	if cmd.IsSet("trace-file") {
		cfg.TraceFile = cmd.String("trace-file")
	}
	if cmd.IsSet("opening-balance") {
		if err := cfg.SetOpeningBalance(cmd.String("opening-balance")); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	baseLogger, err := logging.NewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
	})
	if err != nil {
		return err
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)
	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	traceCfg := oteltrace.Config{ServiceName: cfg.ServiceName, ServiceVersion: version}
	if cfg.TraceFile != "" {
		f, err := os.Create(cfg.TraceFile)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer f.Close()
		traceCfg.Writer = f
	}
	shutdownTracing, err := oteltrace.Setup(ctx, traceCfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			systemLogger.Error("trace_shutdown_error", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	logger := zaplogger.New(baseLogger)
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), logger, prometrics.New(reg, "", ""))

	products, vault, err := cfg.Machine()
	if err != nil {
		return err
	}
	store, err := memory.NewMachineStore(products, vault)
	if err != nil {
		return err
	}

	bus := outbox.NewBus(tel)
	stockWorker := appInventory.NewWorker(bus,
		appInventory.NewWatchStockUseCase(cfg.LowStockThreshold, tel),
		tel,
		workerpresentation.EventLogger(logger),
	)
	stockWorker.Start()
	bus.Start(ctx)
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := bus.Stop(sctx); err != nil {
			systemLogger.Error("event_bus_stop_error", zap.Error(err))
		}
	}()

	if cfg.StatusAddr != "" {
		server := &http.Server{
			Addr:              cfg.StatusAddr,
			Handler:           httppresentation.NewHandler(store, cfg.Currency, reg, tel).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			systemLogger.Info("http_server_start", zap.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				systemLogger.Error("http_server_error", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(sctx); err != nil {
				systemLogger.Error("http_server_shutdown_error", zap.Error(err))
			} else {
				systemLogger.Info("http_server_stopped")
			}
		}()
	}

	console := terminal.New(os.Stdin, os.Stdout)
	coordinator := vending.NewCoordinator(store, console, console, bus, id.NewUUIDGenerator(), cfg.Currency, tel)
	session := vending.NewSession(coordinator, console, console, tel)

	// Reading stdin cannot be interrupted, so a signal ends the session from here.
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		systemLogger.Info("session_interrupted")
		return nil
	}
}
