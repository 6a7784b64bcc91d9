package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/health"
	container "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Container"
	mqtingestor "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.IngestorService/ingestor"
	metrics "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Metrics"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewIngestorContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting MQTT Ingestor Service")
	metrics.Init()

	// Get configuration
	config := ctr.GetConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := ctr.GetEventRepository(ctx)
	if err != nil {
		logger.FatalWithError(err, "Failed to initialize event store")
	}

	// Create and start MQTT ingestor
	ing := mqtingestor.New(config, repo, logger)
	if err := ing.Start(ctx); err != nil {
		logger.FatalWithError(err, "Failed to start MQTT ingestor")
	}
	defer ing.Stop()

	// Start health check server
	checker := health.NewHealthChecker(5 * time.Second)
	checker.Register("mqtt", health.PingerFunc(func(context.Context) error {
		if !ing.IsConnected() {
			return errors.New("mqtt disconnected")
		}
		return nil
	}))
	if client := ctr.GetMongoClient(); client != nil {
		checker.Register("mongo", health.MongoPinger(client))
	}
	go startHealthServer(ctr, checker)

	logger.Info("MQTT ingestor running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")
}

// startHealthServer starts a simple HTTP server for health checks and metrics
func startHealthServer(ctr *container.IngestorContainer, checker *health.HealthChecker) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, ready := checker.GetHealthStatus(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if ready {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	mux.Handle("/metrics", metrics.Handler())

	port := ctr.GetConfig().Server.Port
	logger := ctr.GetLogger()
	logger.Info("Health server starting on port " + port)

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.FatalWithError(err, "Failed to start health server")
	}
}
