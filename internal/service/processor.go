package service

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/filter"
	"github.com/ViaSnake/mcaselector/internal/model"
)

// processContainer evaluates every occupied chunk. With more than one chunk
// worker the chunks are split into contiguous runs, each evaluated against
// its own clone of the filter chain.
func (b *batch) processContainer(path string, c *model.Container) model.ChunkTally {
	chunks := make([]*model.Chunk, 0, model.ChunkSlots)
	for _, ch := range c.Chunks {
		if ch != nil {
			chunks = append(chunks, ch)
		}
	}

	workers := min(b.svc.config.ChunkWorkers, len(chunks))
	if workers <= 1 {
		return b.processChunks(path, chunks, b.job.Filter)
	}

	per := (len(chunks) + workers - 1) / workers
	tallies := make([]model.ChunkTally, workers)

	var g errgroup.Group
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		w := w
		lo := w * per
		if lo >= len(chunks) {
			break
		}
		hi := min(lo+per, len(chunks))
		g.Go(func() error {
			tallies[w] = b.processChunks(path, chunks[lo:hi], b.job.Filter.Clone())
			return nil
		})
	}
	_ = g.Wait()

	var total model.ChunkTally
	for _, t := range tallies {
		total.Merge(t)
	}
	return total
}

func (b *batch) processChunks(path string, chunks []*model.Chunk, chain filter.Chain) model.ChunkTally {
	var t model.ChunkTally
	for _, ch := range chunks {
		t.Chunks++
		selected, edited, err := b.processChunk(chain, ch)
		if selected {
			t.Selected++
		}
		if edited {
			t.Edited++
		}
		if err != nil {
			t.Errors++
			t.ChunkErrors = append(t.ChunkErrors, model.ChunkError{
				Coord:       ch.Coord,
				DataVersion: ch.DataVersion,
				Code:        errors.GetCode(err).String(),
				Message:     err.Error(),
			})
			b.logger.Warn("Chunk error",
				zap.String("path", path),
				zap.Int("chunk_x", ch.Coord.X),
				zap.Int("chunk_z", ch.Coord.Z),
				zap.Int32("data_version", ch.DataVersion),
				zap.Error(err))
		}
	}
	return t
}

// processChunk selects and edits one chunk. A chunk whose version has no
// adapter may still be selected but is never edited.
func (b *batch) processChunk(chain filter.Chain, ch *model.Chunk) (selected, edited bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.InternalError(fmt.Sprintf("chunk processing panicked: %v", r), nil)
		}
	}()

	reg := b.svc.registry
	_, resolveErr := reg.Resolve(ch.DataVersion)

	if !chain.Matches(reg, ch) {
		return false, false, resolveErr
	}
	if resolveErr != nil {
		return true, false, resolveErr
	}

	for _, e := range b.job.Edits {
		changed, err := e.Apply(reg, ch)
		if err != nil {
			return true, edited, err
		}
		edited = edited || changed
	}
	return true, edited, nil
}
