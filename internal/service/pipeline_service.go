package service

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/field"
	"github.com/ViaSnake/mcaselector/internal/filter"
	"github.com/ViaSnake/mcaselector/internal/metrics"
	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/storage/diskmanager"
	"github.com/ViaSnake/mcaselector/internal/util/workerpool"
	"github.com/ViaSnake/mcaselector/internal/version"
)

// writeBurst is the largest block the region writer hands to the throttle
const writeBurst = 64 << 10

// PipelineConfig holds pipeline configuration
type PipelineConfig struct {
	ReadThreads    int
	ProcessThreads int
	WriteThreads   int
	// MaxLoadedFiles bounds the containers held in memory across all stages
	MaxLoadedFiles int
	// ChunkWorkers splits one container's chunks across goroutines
	ChunkWorkers int
	// WriteBytesPerSec throttles rewrites. Zero is unlimited.
	WriteBytesPerSec uint64
	// Recompress forces a compression type on rewritten containers. Zero
	// keeps each chunk's own.
	Recompress model.CompressionType
}

// BatchJob is one batch of containers submitted to the pipeline
type BatchJob struct {
	Paths  []string
	Filter filter.Chain
	Edits  []field.Edit
	DryRun bool
	// Progress is called once per container as it reaches a terminal state.
	// Calls are serialized.
	Progress func(model.ContainerResult)
}

// PipelineService runs batches through the read, process and write stages
type PipelineService struct {
	config   *PipelineConfig
	registry *version.Registry
	disk     *diskmanager.DiskManager
	metrics  *metrics.Metrics
	logger   *zap.Logger
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewPipelineService creates a pipeline service. disk and m may be nil.
func NewPipelineService(cfg *PipelineConfig, reg *version.Registry, disk *diskmanager.DiskManager,
	m *metrics.Metrics, logger *zap.Logger) (*PipelineService, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("pipeline config is required", nil)
	}
	if cfg.ReadThreads < 1 || cfg.ProcessThreads < 1 || cfg.WriteThreads < 1 {
		return nil, errors.InvalidArgument("pipeline thread counts must be positive", nil)
	}
	if cfg.MaxLoadedFiles < 1 {
		return nil, errors.InvalidArgument("max loaded files must be positive", nil)
	}
	if reg == nil {
		return nil, errors.InvalidArgument("version registry is required", nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &PipelineService{
		config:   cfg,
		registry: reg,
		disk:     disk,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
	if cfg.WriteBytesPerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.WriteBytesPerSec), max(int(min(cfg.WriteBytesPerSec, 1<<30)), writeBurst))
	}
	return s, nil
}

// Run processes every path of the batch and returns the report. The error
// is non-nil only when the batch is rejected before any I/O. Canceling ctx
// stops admission; containers not yet written are reported as canceled.
func (s *PipelineService) Run(ctx context.Context, job *BatchJob) (*model.Report, error) {
	if err := s.validateJob(job); err != nil {
		return nil, err
	}

	b := &batch{
		svc:    s,
		ctx:    ctx,
		job:    job,
		budget: newResidentBudget(s.config.MaxLoadedFiles, s.metrics),
		report: &model.Report{
			BatchID:    uuid.NewString(),
			StartedAt:  s.now(),
			DryRun:     job.DryRun,
			Containers: make([]model.ContainerResult, 0, len(job.Paths)),
		},
	}
	b.logger = s.logger.With(zap.String("batch_id", b.report.BatchID))

	b.logger.Info("Starting batch",
		zap.Int("containers", len(job.Paths)),
		zap.String("filter", job.Filter.String()),
		zap.Int("edits", len(job.Edits)),
		zap.Bool("dry_run", job.DryRun),
		zap.Int("max_loaded_files", s.config.MaxLoadedFiles))

	b.readers = workerpool.NewWorkerPool(&workerpool.Config{
		Name: "reader", MaxWorkers: s.config.ReadThreads, Logger: b.logger,
	})
	b.processors = workerpool.NewWorkerPool(&workerpool.Config{
		Name: "processor", MaxWorkers: s.config.ProcessThreads, QueueSize: s.config.ProcessThreads, Logger: b.logger,
	})
	b.writers = workerpool.NewWorkerPool(&workerpool.Config{
		Name: "writer", MaxWorkers: s.config.WriteThreads, QueueSize: s.config.WriteThreads, Logger: b.logger,
	})

	for i, path := range job.Paths {
		f := &inflight{Job: &model.Job{Path: path, State: model.JobStateQueued, Queued: s.now()}}
		err := b.readers.Submit(ctx, workerpool.Task{
			ID:      path,
			Context: ctx,
			Fn:      b.stage(f, b.read),
		})
		if err != nil {
			for _, rest := range job.Paths[i:] {
				b.finish(&inflight{Job: &model.Job{Path: rest, Queued: s.now()}}, errors.Canceled(rest, err))
			}
			break
		}
	}

	// each stage hands off before its task returns, so closing in order
	// drains the whole pipeline
	b.readers.Close()
	b.processors.Close()
	b.writers.Close()

	r := b.report
	r.FinishedAt = s.now()
	r.PeakResident = b.budget.Peak()
	slices.SortFunc(r.Containers, func(x, y model.ContainerResult) int {
		return strings.Compare(x.Path, y.Path)
	})

	b.logger.Info("Batch finished",
		zap.Int("containers", r.Totals.Containers),
		zap.Int("done", r.Totals.Done),
		zap.Int("failed", r.Totals.Failed),
		zap.Int("written", r.Totals.Written),
		zap.Int("selected", r.Totals.Selected),
		zap.Int("edited", r.Totals.Edited),
		zap.Int("chunk_errors", r.Totals.ChunkErrors),
		zap.Int("peak_resident", r.PeakResident),
		zap.Duration("duration", r.FinishedAt.Sub(r.StartedAt)))

	return r, nil
}

// validateJob rejects batches that cannot run
func (s *PipelineService) validateJob(job *BatchJob) error {
	if job == nil {
		return errors.InvalidArgument("batch job is required", nil)
	}
	for i, f := range job.Filter {
		if f == nil {
			return errors.FilterConfiguration(fmt.Sprintf("filter %d is nil", i), nil)
		}
	}
	for i, e := range job.Edits {
		if e.Field == nil || !e.Field.Parsed() {
			return errors.InvalidArgument(fmt.Sprintf("edit %d has no parsed value", i), nil)
		}
		if e.Mode != field.ModeChange && e.Mode != field.ModeForce {
			return errors.InvalidArgument(fmt.Sprintf("edit %d has unknown mode %q", i, e.Mode), nil)
		}
	}
	seen := make(map[string]struct{}, len(job.Paths))
	for _, p := range job.Paths {
		key := filepath.Clean(p)
		if _, dup := seen[key]; dup {
			return errors.InvalidArgument(fmt.Sprintf("container %s listed twice", p), nil)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// throttle returns the write throttle bound to ctx, or nil when unlimited
func (s *PipelineService) throttle(ctx context.Context) func(n int) error {
	if s.limiter == nil {
		return nil
	}
	return func(n int) error {
		return s.limiter.WaitN(ctx, n)
	}
}

// batch is the state of one Run
type batch struct {
	svc    *PipelineService
	ctx    context.Context
	job    *BatchJob
	budget *residentBudget
	logger *zap.Logger

	readers    *workerpool.WorkerPool
	processors *workerpool.WorkerPool
	writers    *workerpool.WorkerPool

	mu     sync.Mutex
	report *model.Report
}

// inflight is a job plus the budget slot it holds
type inflight struct {
	*model.Job
	slot *budgetSlot
}

// finish records the terminal state of a job and returns its slot
func (b *batch) finish(f *inflight, err error) {
	f.slot.Release()
	f.Container = nil

	if err != nil {
		f.State = model.JobStateFailed
		f.Err = err
	} else {
		f.State = model.JobStateDone
	}

	res := model.ContainerResult{
		Path:       f.Path,
		Status:     f.State,
		Written:    f.Written,
		Duration:   b.svc.now().Sub(f.Queued),
		ChunkTally: f.Tally,
	}
	if err != nil {
		res.ErrorCode = errors.GetCode(err).String()
		res.Error = err.Error()
	}

	switch {
	case err == nil:
		b.logger.Debug("Container done",
			zap.String("path", f.Path),
			zap.Bool("written", f.Written),
			zap.Int("selected", f.Tally.Selected),
			zap.Int("edited", f.Tally.Edited))
	case errors.HasCode(err, errors.ErrCodeCanceled):
		b.logger.Warn("Container canceled", zap.String("path", f.Path))
	default:
		b.logger.Error("Container failed",
			zap.String("path", f.Path),
			zap.String("code", res.ErrorCode),
			zap.Error(err))
	}

	b.svc.metrics.RecordContainer(string(f.State))
	b.svc.metrics.RecordChunks(f.Tally.Chunks, f.Tally.Selected, f.Tally.Edited, f.Tally.Errors)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Add(res)
	if b.job.Progress != nil {
		b.job.Progress(res)
	}
}
