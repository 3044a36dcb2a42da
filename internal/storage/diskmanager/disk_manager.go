package diskmanager

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// StatFunc reports total and available bytes of the filesystem holding dir
type StatFunc func(dir string) (total, available uint64, err error)

// DiskManager refuses rewrites that would fill the disk. Filesystem stats
// are cached per directory and refreshed after CheckInterval.
type DiskManager struct {
	logger        *zap.Logger
	maxUsage      float64
	checkInterval time.Duration
	stat          StatFunc

	mu    sync.Mutex
	cache map[string]*dirState
}

type dirState struct {
	total     uint64
	available uint64
	lastCheck time.Time
	warned    bool
}

// DiskManagerConfig holds configuration for disk manager
type DiskManagerConfig struct {
	// MaxUsage is the used fraction of the filesystem above which writes stop
	MaxUsage      float64
	CheckInterval time.Duration
	Stat          StatFunc
}

// DefaultConfig returns default disk manager configuration
func DefaultConfig() *DiskManagerConfig {
	return &DiskManagerConfig{
		MaxUsage:      0.95,
		CheckInterval: 10 * time.Second,
		Stat:          Statfs,
	}
}

// NewDiskManager creates a new disk manager
func NewDiskManager(cfg *DiskManagerConfig, logger *zap.Logger) (*DiskManager, error) {
	if cfg.MaxUsage <= 0 || cfg.MaxUsage > 1 {
		return nil, fmt.Errorf("max usage must be in (0, 1], got %v", cfg.MaxUsage)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	stat := cfg.Stat
	if stat == nil {
		stat = Statfs
	}

	return &DiskManager{
		logger:        logger,
		maxUsage:      cfg.MaxUsage,
		checkInterval: cfg.CheckInterval,
		stat:          stat,
		cache:         make(map[string]*dirState),
	}, nil
}

// Statfs reads filesystem stats with statfs(2)
func Statfs(dir string) (total, available uint64, err error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return 0, 0, fmt.Errorf("failed to stat filesystem: %w", err)
	}
	return st.Blocks * uint64(st.Bsize), st.Bavail * uint64(st.Bsize), nil
}

// CheckBeforeWrite checks if writing estimatedBytes into dir can proceed.
// An accepted write is reserved against the cached free space.
func (dm *DiskManager) CheckBeforeWrite(dir string, estimatedBytes uint64) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	st, err := dm.refresh(dir)
	if err != nil {
		return err
	}

	usage := st.usage()
	if usage >= dm.maxUsage {
		return &DiskSpaceError{
			Code:           ErrCodeDiskFull,
			Message:        fmt.Sprintf("disk usage at %.2f%%, writes stopped", usage*100),
			Dir:            dir,
			UsagePercent:   usage * 100,
			AvailableBytes: st.available,
		}
	}
	if estimatedBytes > st.available {
		return &DiskSpaceError{
			Code:           ErrCodeInsufficientSpace,
			Message:        fmt.Sprintf("insufficient space: need %d bytes, have %d bytes", estimatedBytes, st.available),
			Dir:            dir,
			UsagePercent:   usage * 100,
			AvailableBytes: st.available,
		}
	}

	st.available -= estimatedBytes
	if !st.warned && usage >= dm.maxUsage*0.9 {
		st.warned = true
		dm.logger.Warn("Disk usage warning",
			zap.String("dir", dir),
			zap.Float64("usage_percent", usage*100),
			zap.Uint64("available_bytes", st.available))
	}
	return nil
}

// GetDiskUsage returns current disk usage statistics for dir
func (dm *DiskManager) GetDiskUsage(dir string) (DiskUsageStats, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	st, err := dm.refresh(dir)
	if err != nil {
		return DiskUsageStats{}, err
	}
	return DiskUsageStats{
		UsagePercent:   st.usage() * 100,
		AvailableBytes: st.available,
		TotalBytes:     st.total,
		LastCheck:      st.lastCheck,
	}, nil
}

// refresh must be called with mu held
func (dm *DiskManager) refresh(dir string) (*dirState, error) {
	st, ok := dm.cache[dir]
	if ok && time.Since(st.lastCheck) < dm.checkInterval {
		return st, nil
	}

	total, available, err := dm.stat(dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		st = &dirState{}
		dm.cache[dir] = st
	}
	st.total, st.available, st.lastCheck = total, available, time.Now()
	return st, nil
}

func (s *dirState) usage() float64 {
	if s.total == 0 {
		return 0
	}
	return float64(s.total-min(s.available, s.total)) / float64(s.total)
}

// DiskUsageStats contains disk usage statistics
type DiskUsageStats struct {
	UsagePercent   float64
	AvailableBytes uint64
	TotalBytes     uint64
	LastCheck      time.Time
}

// Error codes for disk space errors
type ErrorCode int

const (
	ErrCodeDiskFull ErrorCode = iota + 1
	ErrCodeInsufficientSpace
)

// DiskSpaceError represents a disk space related error
type DiskSpaceError struct {
	Code           ErrorCode
	Message        string
	Dir            string
	UsagePercent   float64
	AvailableBytes uint64
}

func (e *DiskSpaceError) Error() string {
	return e.Message
}

// IsDiskSpaceError checks if an error is a disk space error
func IsDiskSpaceError(err error) bool {
	var dse *DiskSpaceError
	return errors.As(err, &dse)
}
