package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dbehnke/neomonitor/pkg/logger"
)

// PrometheusConfig holds Prometheus server configuration.
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusHandler handles Prometheus metrics HTTP requests.
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a new Prometheus handler.
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{
		collector: collector,
	}
}

// ServeHTTP handles HTTP requests for metrics.
func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var output strings.Builder

	counter := func(name, help string, val uint64) {
		output.WriteString(fmt.Sprintf("# HELP %s %s\n", name, help))
		output.WriteString(fmt.Sprintf("# TYPE %s counter\n", name))
		output.WriteString(fmt.Sprintf("%s %d\n", name, val))
	}
	gauge := func(name, help string, val int) {
		output.WriteString(fmt.Sprintf("# HELP %s %s\n", name, help))
		output.WriteString(fmt.Sprintf("# TYPE %s gauge\n", name))
		output.WriteString(fmt.Sprintf("%s %d\n", name, val))
	}

	counter("neomonitor_eeg_frames_parsed_total", "Total EEG frames successfully decoded", h.collector.GetEEGFramesParsed())
	counter("neomonitor_eeg_crc_errors_total", "Total EEG frames dropped for checksum mismatch", h.collector.GetEEGCrcErrors())
	counter("neomonitor_nirs_frames_parsed_total", "Total NIRS frames successfully decoded", h.collector.GetNIRSFramesParsed())
	counter("neomonitor_nirs_crc_errors_total", "Total NIRS frames dropped for checksum mismatch", h.collector.GetNIRSCrcErrors())
	counter("neomonitor_nirs_parse_errors_total", "Total NIRS frames dropped for a malformed field", h.collector.GetNIRSParseErrors())

	counter("neomonitor_serial_errors_total", "Total serial transport failures", h.collector.GetSerialErrors())
	counter("neomonitor_serial_reconnects_total", "Total successful port reopens after failure", h.collector.GetSerialReconnects())

	counter("neomonitor_chunks_written_total", "Total storage chunks committed", h.collector.GetChunksWritten())
	counter("neomonitor_bytes_written_total", "Total bytes committed to storage", h.collector.GetBytesWritten())
	counter("neomonitor_storage_errors_total", "Total storage write failures surfaced after retries", h.collector.GetStorageErrors())
	counter("neomonitor_checksum_errors_total", "Total corrupt chunks detected on read", h.collector.GetChecksumErrors())
	counter("neomonitor_reaper_bytes_freed_total", "Total bytes freed by the storage reaper", h.collector.GetReaperBytesFreed())
	counter("neomonitor_reaper_runs_total", "Total reaper passes", h.collector.GetReaperRuns())

	counter("neomonitor_sync_drift_events_total", "Total playback drift-monitor warnings", h.collector.GetSyncDriftEvents())

	gauge("neomonitor_ws_clients", "Number of currently connected dashboard websocket clients", h.collector.GetWSClients())

	w.Write([]byte(output.String()))
}

// PrometheusServer is an HTTP server for Prometheus metrics.
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger
	server    *http.Server
}

// NewPrometheusServer creates a new Prometheus metrics server.
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Start starts the Prometheus metrics server.
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	handler := NewPrometheusHandler(s.collector)
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, handler)

	// Use a listener to get the actual port (useful for testing with port 0).
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port

	s.server = &http.Server{
		Handler: mux,
	}

	s.log.Info("Starting Prometheus metrics server",
		logger.Int("port", actualPort),
		logger.String("path", s.config.Path))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down Prometheus metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop stops the Prometheus metrics server.
func (s *PrometheusServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
	}
}
