package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ViaSnake/mcaselector/internal/metrics"
	"github.com/ViaSnake/mcaselector/internal/storage/diskmanager"
)

// MetricsServer serves Prometheus metrics of a running batch via HTTP
type MetricsServer struct {
	httpServer *http.Server
	metrics    *metrics.Metrics
	disk       *diskmanager.DiskManager
	logger     *zap.Logger
	dataDir    string
	interval   time.Duration
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// MetricsServerConfig holds configuration for the metrics server
type MetricsServerConfig struct {
	Port    int
	Path    string
	DataDir string
	// CollectInterval defaults to 15s
	CollectInterval time.Duration
}

// NewMetricsServer creates a new metrics server exposing gatherer
func NewMetricsServer(cfg *MetricsServerConfig, gatherer prometheus.Gatherer, m *metrics.Metrics,
	disk *diskmanager.DiskManager, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()

	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	interval := cfg.CollectInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ms := &MetricsServer{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		metrics:  m,
		disk:     disk,
		logger:   logger,
		dataDir:  cfg.DataDir,
		interval: interval,
		stopChan: make(chan struct{}),
	}

	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", ms.healthHandler)
	mux.HandleFunc("/ready", ms.readyHandler)

	return ms
}

// Handler returns the server's HTTP handler
func (s *MetricsServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the metrics server
func (s *MetricsServer) Start() error {
	s.logger.Info("Starting metrics server", zap.String("addr", s.httpServer.Addr))

	go s.collectSystemMetrics()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the metrics server
func (s *MetricsServer) Stop() error {
	s.logger.Info("Stopping metrics server")

	s.stopOnce.Do(func() { close(s.stopChan) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}

	return nil
}

func (s *MetricsServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// readyHandler reports not ready once the disk guard would refuse writes
func (s *MetricsServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.disk == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
		return
	}

	if err := s.disk.CheckBeforeWrite(s.dataDir, 0); err != nil {
		if !diskmanager.IsDiskSpaceError(err) {
			s.logger.Error("Failed to get disk stats", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"reason": "disk_stats_unavailable",
			})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"reason": "disk_full",
			"error":  err.Error(),
		})
		return
	}

	stats, _ := s.disk.GetDiskUsage(s.dataDir)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ready",
		"timestamp":          time.Now().Format(time.RFC3339),
		"disk_usage_percent": stats.UsagePercent,
	})
}

func (s *MetricsServer) collectSystemMetrics() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.updateSystemMetrics()
	for {
		select {
		case <-ticker.C:
			s.updateSystemMetrics()
		case <-s.stopChan:
			return
		}
	}
}

func (s *MetricsServer) updateSystemMetrics() {
	var diskPercent float64
	if s.disk != nil {
		stats, err := s.disk.GetDiskUsage(s.dataDir)
		if err != nil {
			s.logger.Error("Failed to get disk stats", zap.Error(err))
		}
		diskPercent = stats.UsagePercent
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s.metrics.UpdateSystemStats(diskPercent, int64(memStats.Alloc), runtime.NumGoroutine())
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
