package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldops/ticketscan/internal/layout"
	"github.com/fieldops/ticketscan/internal/notify"
	"github.com/fieldops/ticketscan/internal/recognize"
	"github.com/fieldops/ticketscan/internal/scan"
	"github.com/fieldops/ticketscan/internal/server"
	"github.com/fieldops/ticketscan/internal/ticket"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ticket scanning HTTP server",
	Long: `Start the HTTP server that accepts haul-ticket uploads and serves the
ticket API.

The server provides the following endpoints:
  POST /api/ocr/scan               - Upload ticket page images
  GET  /api/ocr/by-foreman/{id}    - List a foreman's tickets
  GET  /api/ocr/images-by-date/{id} - List tickets grouped by day
  POST /api/ocr/update-ticket-text - Correct a ticket's text
  POST /api/ocr/delete-ticket      - Delete a ticket
  GET  /ws/{id}                    - Per-foreman notification feed
  GET  /health                     - Health check endpoint
  GET  /metrics                    - Prometheus metrics

Examples:
  ticketscan serve
  ticketscan serve --port 8000
  ticketscan serve --host 0.0.0.0 --port 3000`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host, _ = cmd.Flags().GetString("host")
	}
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port, _ = cmd.Flags().GetInt("port")
	}
	corsOrigin := cfg.Server.CORSOrigin
	if cmd.Flags().Changed("cors-origin") {
		corsOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	maxUploadMB := cfg.Server.MaxUploadMB
	if cmd.Flags().Changed("max-upload-size") {
		maxUploadMB, _ = cmd.Flags().GetInt("max-upload-size")
	}
	timeout := cfg.Server.TimeoutSec
	if cmd.Flags().Changed("timeout") {
		timeout, _ = cmd.Flags().GetInt("timeout")
	}
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if cmd.Flags().Changed("shutdown-timeout") {
		shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}
	workers := cfg.Worker.Workers
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}
	queueSize := cfg.Worker.QueueSize
	if cmd.Flags().Changed("queue-size") {
		queueSize, _ = cmd.Flags().GetInt("queue-size")
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := ticket.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open ticket store: %w", err)
	}
	defer func() { _ = store.Close() }()

	model, err := recognize.NewONNXModel(cfg.Recognizer.ONNXConfig())
	if err != nil {
		return fmt.Errorf("failed to load recognition model: %w", err)
	}
	recognizer := recognize.NewBatchRecognizer(model, slog.Default())
	defer func() { _ = recognizer.Close() }()

	hub := notify.NewHub(slog.Default())
	pipeline := scan.NewPipeline(scan.Config{
		Table:    cfg.Pipeline.TableConfig(),
		Segment:  cfg.Pipeline.SegmentConfig(),
		Enhance:  cfg.Pipeline.EnhanceConfig(),
		MediaDir: cfg.MediaDir,
	}, layout.NewMorphDetector(cfg.Pipeline.TableConfig()), recognizer, store, hub, slog.Default())
	scheduler := scan.NewScheduler(pipeline, workers, queueSize, slog.Default())

	var limiter *server.UploadLimiter
	if enabled, _ := cmd.Flags().GetBool("rate-limit-enabled"); enabled {
		perMinute, _ := cmd.Flags().GetInt("uploads-per-minute")
		dataPerDay, _ := cmd.Flags().GetInt64("max-data-per-day")
		limiter = server.NewUploadLimiter(perMinute, dataPerDay)
	}

	apiServer := server.NewServer(server.Config{
		Host:        host,
		Port:        port,
		CORSOrigin:  corsOrigin,
		MaxUploadMB: int64(maxUploadMB),
		TimeoutSec:  timeout,
	}, store, scheduler, hub, limiter, slog.Default())

	mux := http.NewServeMux()
	apiServer.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(timeout) * time.Second,
		WriteTimeout:      time.Duration(timeout) * time.Second,
	}

	go func() {
		slog.Info("Starting ticket server", "host", host, "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Queued scans finish before the process exits so accepted uploads are
	// never silently lost.
	slog.Info("Draining scan queue")
	scheduler.Stop()

	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "server host")
	serveCmd.Flags().IntP("port", "p", 8000, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("workers", 2, "background scan workers")
	serveCmd.Flags().Int("queue-size", 64, "background scan queue capacity")
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable upload rate limiting")
	serveCmd.Flags().Int("uploads-per-minute", 30, "maximum uploads per minute per client")
	serveCmd.Flags().Int64("max-data-per-day", 500*1024*1024, "maximum upload bytes per day per client")
}
