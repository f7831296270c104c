// Command seaweedcore runs the cultivation and inventory ledger engine as a
// long-lived process: it opens the configured store, starts the report
// worker, and serves health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/internal/blob"
	"github.com/assamipatrick/seaweed-ambanifony-sub000/internal/core"
	"github.com/assamipatrick/seaweed-ambanifony-sub000/internal/reports"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	opts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
	}
	if tracePath := os.Getenv("SEAWEEDCORE_TRACE_LOG"); tracePath != "" {
		traceFile, err := os.OpenFile(tracePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open trace log: %w", err)
		}
		defer func() { _ = traceFile.Close() }()
		opts = append(opts, core.WithTracer(core.NewTraceLog(traceFile)))
	}
	service := core.NewService(store, opts...)

	artifacts, err := blob.Open(context.Background())
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	worker := reports.NewWorker(service, artifacts, nil)
	worker.Start()

	addr := os.Getenv("SEAWEEDCORE_LISTEN_ADDR")
	if addr == "" {
		addr = ":8087"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		logger.Error("worker shutdown", "error", err)
	}
	return nil
}
