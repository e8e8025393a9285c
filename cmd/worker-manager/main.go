// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dropout-alerts/internal/app"
	"dropout-alerts/internal/common/camunda"
	"dropout-alerts/internal/common/config"
	"dropout-alerts/internal/common/logger"

	ss "dropout-alerts/internal/workers/alerting/save-schedule"
	sa "dropout-alerts/internal/workers/alerting/send-alert"
	sc "dropout-alerts/internal/workers/scoring/score-students"
)

// jobWorker is what every registered handler exposes to the manager.
type jobWorker interface {
	Register() error
	Close()
	GetTaskType() string
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	if err := cfg.RequireBroker(); err != nil {
		zapLog.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("application init failed", zap.Error(err))
	}
	defer application.Close()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// Warm the prediction cache so the first job does not pay for the pass.
	if err := application.Cache.Load(ctx); err != nil {
		zapLog.Warn("initial scoring pass failed, will retry on first job", zap.Error(err))
	}

	workers := buildWorkers(cfg, zeebe, application, log, zapLog)

	var ready atomic.Bool
	for _, w := range workers {
		if err := w.Register(); err != nil {
			zapLog.Fatal("failed to register worker", zap.String("taskType", w.GetTaskType()), zap.Error(err))
		}
	}
	ready.Store(true)
	zapLog.Info("All workers registered successfully", zap.Int("count", len(workers)))

	server := &http.Server{
		Addr:              cfg.Observability.MetricsAddress,
		Handler:           newMux(zeebe, &ready),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Health & Metrics Server ---
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func buildWorkers(cfg *config.Config, zeebe *camunda.Client, a *app.App, log logger.Logger, zapLog *zap.Logger) []jobWorker {
	var indexer sc.Indexer
	if a.Index != nil {
		indexer = a.Index
	}

	scoreStudents, err := sc.NewHandler(sc.HandlerOptions{
		AppConfig: cfg,
		Camunda:   zeebe,
		Cache:     a.Cache,
		Indexer:   indexer,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create score-students handler", zap.Error(err))
	}

	sendAlert, err := sa.NewHandler(sa.HandlerOptions{
		AppConfig: cfg,
		Camunda:   zeebe,
		Sender:    a.Orchestrator,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create send-alert handler", zap.Error(err))
	}

	saveSchedule, err := ss.NewHandler(ss.HandlerOptions{
		AppConfig: cfg,
		Camunda:   zeebe,
		Saver:     a.Schedules,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create save-schedule handler", zap.Error(err))
	}

	return []jobWorker{scoreStudents, sendAlert, saveSchedule}
}

func newMux(zeebe *camunda.Client, ready *atomic.Bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			writeStatus(w, http.StatusServiceUnavailable, "starting")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := zeebe.HealthCheck(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "broker unreachable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
