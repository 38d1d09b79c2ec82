package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/api"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/config"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/mailer"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/poller"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/services"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/timeplus"
)

func main() {
	// Configure Log Level from Environment Variable
	logLevelStr := os.Getenv("LOG_LEVEL")
	switch strings.ToLower(logLevelStr) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "fatal":
		logrus.SetLevel(logrus.FatalLevel)
	case "panic":
		logrus.SetLevel(logrus.PanicLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
	logrus.Infof("Log level set to: %s", logrus.GetLevel().String())

	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Set up the Timeplus client
	tpClient, err := timeplus.NewClient(&cfg.Timeplus)
	if err != nil {
		logrus.Fatalf("Failed to create Timeplus client: %v", err)
	}

	// Set up required streams with proper schemas
	ctx := context.Background()
	if err := tpClient.SetupStreams(ctx); err != nil {
		logrus.Warnf("Failed to set up streams: %v", err)
	}

	// Initialize services
	fleetService := services.NewFleetService(tpClient)
	fleetPoller := poller.New(cfg.Fleet.ManagementPort, time.Duration(cfg.Fleet.PollTimeout)*time.Second)
	alertManager := services.NewAlertManager(fleetService)
	dispatcher := services.NewDispatcher(fleetService, mailer.NewSMTPMailer(cfg.SMTP))
	orchestrator := services.NewOrchestrator(fleetService, fleetPoller, alertManager, dispatcher, cfg.Fleet.PollWorkers)

	// Schedule monitoring cycles
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Scheduler.CycleSpec, func() {
		if _, err := orchestrator.RunCycle(context.Background()); err != nil {
			logrus.Errorf("Scheduled cycle failed: %v", err)
		}
	}); err != nil {
		logrus.Fatalf("Invalid cycle schedule %q: %v", cfg.Scheduler.CycleSpec, err)
	}
	scheduler.Start()
	logrus.Infof("Monitoring cycles scheduled: %s", cfg.Scheduler.CycleSpec)

	// Set up the Echo server
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(cfg.Server.AllowedOrigins, ","),
	}))

	// API routes
	apiHandler := api.NewAPIHandler(fleetService, orchestrator)
	apiHandler.RegisterRoutes(e)

	// Create HTTP server
	// Use PORT environment variable if available, otherwise use config
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logrus.Infof("Starting server on port %s", port)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Stop the scheduler and wait for a running cycle to finish
	<-scheduler.Stop().Done()
	logrus.Info("Scheduler stopped")

	// Create a deadline for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// Shutdown the server
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := tpClient.Close(); err != nil {
		logrus.Warnf("Failed to close Timeplus connection: %v", err)
	}

	logrus.Info("Server exited properly")
}
