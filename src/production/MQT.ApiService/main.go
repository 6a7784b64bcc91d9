package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/controllers"
	"gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.ApiService/middleware"
	container "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Container"
	metrics "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Metrics"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting API Service")
	metrics.Init()

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize database")
	}

	services, err := ctr.GetServices()
	if err != nil {
		logger.FatalWithError(err, "Failed to initialize services")
	}

	// Get configuration
	config := ctr.GetConfig()

	// Initialize Gin router
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
		AllowWebSockets:  true,
	}
	router.Use(cors.New(corsConfig))

	// Create controllers and register routes
	deviceController := controllers.NewDeviceController(services.Registry, services.Aggregation, logger)
	eventController := controllers.NewEventController(services.Events, logger)
	labelController := controllers.NewLabelController(services.Labels)
	draftController := controllers.NewDraftController(services.Drafts, logger)
	dashboardController := controllers.NewDashboardController(services.Dashboard, logger)
	healthController := controllers.NewHealthController(ctr.GetHealthChecker())

	// Register all routes
	deviceController.RegisterRoutes(router)
	eventController.RegisterRoutes(router)
	labelController.RegisterRoutes(router)
	draftController.RegisterRoutes(router)
	dashboardController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	// Get port from configuration
	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("API service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
