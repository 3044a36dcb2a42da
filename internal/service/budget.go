package service

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/ViaSnake/mcaselector/internal/metrics"
)

// residentBudget bounds the number of containers held in memory across all
// pipeline stages
type residentBudget struct {
	sem     *semaphore.Weighted
	limit   int64
	current atomic.Int64
	peak    atomic.Int64
	metrics *metrics.Metrics
}

func newResidentBudget(limit int, m *metrics.Metrics) *residentBudget {
	return &residentBudget{
		sem:     semaphore.NewWeighted(int64(limit)),
		limit:   int64(limit),
		metrics: m,
	}
}

// Acquire blocks until a container may be loaded or ctx is done
func (b *residentBudget) Acquire(ctx context.Context) (*budgetSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	n := b.current.Add(1)
	for {
		peak := b.peak.Load()
		if n <= peak || b.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	b.metrics.SetResident(int(n))
	return &budgetSlot{budget: b}, nil
}

// Peak returns the highest residency observed
func (b *residentBudget) Peak() int {
	return int(b.peak.Load())
}

// Resident returns the number of slots currently held
func (b *residentBudget) Resident() int {
	return int(b.current.Load())
}

// budgetSlot is one unit of the budget. Release may be called from any exit
// path any number of times; only the first call returns the slot.
type budgetSlot struct {
	budget *residentBudget
	once   sync.Once
}

func (s *budgetSlot) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		n := s.budget.current.Add(-1)
		s.budget.sem.Release(1)
		s.budget.metrics.SetResident(int(n))
	})
}
