// Package cli implements the mcaselector command line.
package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ViaSnake/mcaselector/internal/config"
	"github.com/ViaSnake/mcaselector/internal/health"
	"github.com/ViaSnake/mcaselector/internal/metrics"
	"github.com/ViaSnake/mcaselector/internal/server"
	"github.com/ViaSnake/mcaselector/internal/service"
	"github.com/ViaSnake/mcaselector/internal/storage/diskmanager"
	"github.com/ViaSnake/mcaselector/internal/storage/region"
	"github.com/ViaSnake/mcaselector/internal/version"
)

// options holds the persistent flags shared by every command
type options struct {
	configPath     string
	logLevel       string
	readThreads    int
	processThreads int
	writeThreads   int
	maxLoadedFiles int
	chunkWorkers   int
	writeRate      string
	recompress     string
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "mcaselector",
		Short: "Select and edit chunks in Minecraft region files",
		Long: `mcaselector filters the chunks of region files by their attributes and
edits LastUpdate, InhabitedTime and Status in bulk, across every data version.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.IntVar(&opts.readThreads, "read-threads", 0, "region files read in parallel")
	f.IntVar(&opts.processThreads, "process-threads", 0, "region files processed in parallel")
	f.IntVar(&opts.writeThreads, "write-threads", 0, "region files written in parallel")
	f.IntVar(&opts.maxLoadedFiles, "max-loaded-files", 0, "region files held in memory at once")
	f.IntVar(&opts.chunkWorkers, "chunk-workers", 0, "goroutines per region file")
	f.StringVar(&opts.writeRate, "write-rate", "", "write throughput limit, e.g. 32MiB (empty is unlimited)")
	f.StringVar(&opts.recompress, "recompress", "", "compression for rewritten chunks (keep, gzip, zlib, none, lz4)")

	root.AddCommand(
		newEditCommand(opts),
		newSelectCommand(opts),
		newRunCommand(opts),
		newInfoCommand(opts),
	)
	return root
}

// Execute runs the command line with ctx, which cancels running batches
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// loadConfig reads the config file, if any, and applies flag overrides
func (o *options) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("read-threads") {
		cfg.Pipeline.ReadThreads = o.readThreads
	}
	if flags.Changed("process-threads") {
		cfg.Pipeline.ProcessThreads = o.processThreads
	}
	if flags.Changed("write-threads") {
		cfg.Pipeline.WriteThreads = o.writeThreads
	}
	if flags.Changed("max-loaded-files") {
		cfg.Pipeline.MaxLoadedFiles = o.maxLoadedFiles
	}
	if flags.Changed("chunk-workers") {
		cfg.Pipeline.ChunkWorkers = o.chunkWorkers
	}
	if flags.Changed("write-rate") {
		cfg.Pipeline.WriteRate = o.writeRate
	}
	if flags.Changed("recompress") {
		cfg.Pipeline.Recompress = o.recompress
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the logger described by the logging section. Logs go
// to stderr so stdout stays parseable.
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if strings.EqualFold(cfg.Format, "console") {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return zc.Build()
}

// app is everything a command needs to run a batch
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *version.Registry
	metrics  *metrics.Metrics
	gatherer *prometheus.Registry
	disk     *diskmanager.DiskManager
	server   *server.MetricsServer
}

func (o *options) newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	reg, err := version.NewRegistry(cfg.VersionRanges())
	if err != nil {
		return nil, err
	}
	disk, err := diskmanager.NewDiskManager(&diskmanager.DiskManagerConfig{
		MaxUsage:      cfg.Storage.MaxDiskUsage,
		CheckInterval: diskmanager.DefaultConfig().CheckInterval,
		Stat:          diskmanager.Statfs,
	}, logger)
	if err != nil {
		return nil, err
	}

	gatherer := prometheus.NewRegistry()
	gatherer.MustRegister(collectors.NewGoCollector())

	logger.Debug("Configuration loaded",
		zap.Int("read_threads", cfg.Pipeline.ReadThreads),
		zap.Int("process_threads", cfg.Pipeline.ProcessThreads),
		zap.Int("write_threads", cfg.Pipeline.WriteThreads),
		zap.Int("max_loaded_files", cfg.Pipeline.MaxLoadedFiles),
		zap.Int("version_ranges", len(cfg.Versions)))

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  metrics.NewMetrics(gatherer),
		gatherer: gatherer,
		disk:     disk,
	}, nil
}

// pipeline builds the pipeline service for this configuration
func (a *app) pipeline() (*service.PipelineService, error) {
	rate, err := a.cfg.WriteRateBytes()
	if err != nil {
		return nil, err
	}
	recompress, err := region.ParseCompression(a.cfg.Pipeline.Recompress)
	if err != nil {
		return nil, err
	}
	p := a.cfg.Pipeline
	return service.NewPipelineService(&service.PipelineConfig{
		ReadThreads:      p.ReadThreads,
		ProcessThreads:   p.ProcessThreads,
		WriteThreads:     p.WriteThreads,
		MaxLoadedFiles:   p.MaxLoadedFiles,
		ChunkWorkers:     p.ChunkWorkers,
		WriteBytesPerSec: rate,
		Recompress:       recompress,
	}, a.registry, a.disk, a.metrics, a.logger)
}

// startMetrics serves metrics for the duration of a batch when enabled
func (a *app) startMetrics(dataDir string) {
	if !a.cfg.Metrics.Enabled {
		return
	}
	a.server = server.NewMetricsServer(&server.MetricsServerConfig{
		Port:    a.cfg.Metrics.Port,
		Path:    a.cfg.Metrics.Path,
		DataDir: dataDir,
	}, a.gatherer, a.metrics, a.disk, a.logger)
	if err := a.server.Start(); err != nil {
		a.logger.Error("Failed to start metrics server", zap.Error(err))
		a.server = nil
	}
}

func (a *app) close() {
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.logger.Warn("Failed to stop metrics server", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// preflight checks every directory a batch may rewrite
func (a *app) preflight(paths []string) error {
	seen := make(map[string]struct{})
	var dirs []string
	for _, p := range paths {
		dir := filepath.Dir(p)
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}

	// each reader holds one file, each writer a temp file plus its reread
	p := a.cfg.Pipeline
	openFiles := p.ReadThreads + 2*p.WriteThreads + 16

	report := health.NewChecker(a.disk, a.logger).Check(dirs, openFiles)
	for _, c := range report.Checks {
		if c.Status == health.StatusWarning {
			a.logger.Warn("Preflight warning", zap.String("check", c.Name), zap.String("message", c.Message))
		}
	}
	return report.Err()
}

// runBatch runs job, prints the report and turns failures into an error
func (a *app) runBatch(cmd *cobra.Command, job *service.BatchJob, asJSON bool) error {
	svc, err := a.pipeline()
	if err != nil {
		return err
	}

	if !job.DryRun {
		if err := a.preflight(job.Paths); err != nil {
			return err
		}
	}
	if len(job.Paths) > 0 {
		a.startMetrics(filepath.Dir(job.Paths[0]))
	}

	if !asJSON {
		job.Progress = progressPrinter(cmd, len(job.Paths))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := svc.Run(ctx, job)
	if err != nil {
		return err
	}

	if asJSON {
		if err := printJSON(cmd, report); err != nil {
			return err
		}
	} else {
		printReport(cmd, report)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("batch canceled: %w", ctx.Err())
	}
	if report.Totals.Failed > 0 {
		return fmt.Errorf("%d of %d containers failed", report.Totals.Failed, report.Totals.Containers)
	}
	return nil
}
