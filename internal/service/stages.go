package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/storage/region"
	"github.com/ViaSnake/mcaselector/internal/util/workerpool"
)

// stage wraps a stage function as a pool task. A panic fails the job instead
// of leaking its budget slot.
func (b *batch) stage(f *inflight, fn func(*inflight)) func(context.Context) error {
	return func(context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s stage panicked: %v", f.State, r)
				b.finish(f, errors.InternalError(err.Error(), nil).WithDetail("path", f.Path))
			}
		}()
		fn(f)
		return nil
	}
}

// handoff moves a job to the next stage. It blocks while that stage is
// saturated and ignores cancellation, which the next stage checks itself.
func (b *batch) handoff(pool *workerpool.WorkerPool, f *inflight, fn func(*inflight)) {
	err := pool.Submit(context.Background(), workerpool.Task{
		ID:      f.Path,
		Context: b.ctx,
		Fn:      b.stage(f, fn),
	})
	if err != nil {
		b.finish(f, errors.InternalError("stage handoff failed", err))
	}
}

// read acquires a budget slot and loads the container
func (b *batch) read(f *inflight) {
	if err := b.ctx.Err(); err != nil {
		b.finish(f, errors.Canceled(f.Path, err))
		return
	}
	slot, err := b.budget.Acquire(b.ctx)
	if err != nil {
		b.finish(f, errors.Canceled(f.Path, err))
		return
	}
	f.slot = slot
	f.State = model.JobStateReading

	start := time.Now()
	data, err := os.ReadFile(f.Path)
	if err != nil {
		b.finish(f, errors.ContainerIO(f.Path, err))
		return
	}
	c, err := region.Decode(f.Path, data)
	if err != nil {
		b.finish(f, errors.ContainerIO(f.Path, err))
		return
	}
	b.svc.metrics.AddBytesRead(int64(len(data)))
	b.svc.metrics.ObserveStage("read", time.Since(start).Seconds())

	f.Container = c
	b.handoff(b.processors, f, b.process)
}

// process runs the filter chain and edits over every chunk
func (b *batch) process(f *inflight) {
	if err := b.ctx.Err(); err != nil {
		b.finish(f, errors.Canceled(f.Path, err))
		return
	}
	f.State = model.JobStateProcessing

	start := time.Now()
	f.Tally = b.processContainer(f.Path, f.Container)
	b.svc.metrics.ObserveStage("process", time.Since(start).Seconds())

	b.handoff(b.writers, f, b.write)
}

// write persists dirty containers. Once a write starts it runs to the end
// even if the batch is canceled.
func (b *batch) write(f *inflight) {
	if err := b.ctx.Err(); err != nil {
		b.finish(f, errors.Canceled(f.Path, err))
		return
	}
	f.State = model.JobStateWriting

	if b.job.DryRun || !f.Container.Dirty() {
		b.finish(f, nil)
		return
	}

	start := time.Now()
	img, err := region.Encode(f.Container, region.EncodeOptions{
		Compression: b.svc.config.Recompress,
		Now:         b.svc.now(),
	})
	if err != nil {
		b.finish(f, errors.ContainerIO(f.Path, err))
		return
	}

	if b.svc.disk != nil {
		if err := b.svc.disk.CheckBeforeWrite(filepath.Dir(f.Path), uint64(img.Size())); err != nil {
			b.finish(f, errors.ContainerIO(f.Path, err))
			return
		}
	}

	wctx := context.WithoutCancel(b.ctx)
	if err := region.Save(f.Path, img, region.SaveOptions{Throttle: b.svc.throttle(wctx)}); err != nil {
		b.finish(f, errors.ContainerIO(f.Path, err))
		return
	}
	f.Written = true

	b.svc.metrics.AddBytesWritten(int64(img.Size()))
	b.svc.metrics.ObserveStage("write", time.Since(start).Seconds())
	b.logger.Debug("Container written",
		zap.String("path", f.Path),
		zap.Int("bytes", img.Size()),
		zap.Int("external", len(img.External)))

	b.finish(f, nil)
}
