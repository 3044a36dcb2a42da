package health

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/storage/diskmanager"
)

// Status is the outcome of a check
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string
	Dir       string
	Status    Status
	Message   string
	Timestamp time.Time
}

// Report aggregates the checks of one preflight run
type Report struct {
	Status Status
	Checks []CheckResult
}

// Err returns an error listing the critical checks, or nil
func (r Report) Err() error {
	if r.Status != StatusCritical {
		return nil
	}
	var msgs []string
	for _, c := range r.Checks {
		if c.Status == StatusCritical {
			msgs = append(msgs, c.Message)
		}
	}
	return errors.InvalidArgument("preflight failed: "+strings.Join(msgs, "; "), nil)
}

// Checker verifies that region directories can take a rewrite before a
// batch starts
type Checker struct {
	disk   *diskmanager.DiskManager
	logger *zap.Logger
}

// NewChecker creates a checker. disk may be nil to skip the space check.
func NewChecker(disk *diskmanager.DiskManager, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{disk: disk, logger: logger}
}

// Check runs every check for each directory. openFiles is the number of
// descriptors the batch may hold at once.
func (h *Checker) Check(dirs []string, openFiles int) Report {
	report := Report{Status: StatusHealthy}
	add := func(r CheckResult) {
		r.Timestamp = time.Now()
		report.Checks = append(report.Checks, r)
		switch {
		case r.Status == StatusCritical:
			report.Status = StatusCritical
		case r.Status == StatusWarning && report.Status == StatusHealthy:
			report.Status = StatusWarning
		}
	}

	for _, dir := range dirs {
		add(h.checkDirWritable(dir))
		if h.disk != nil {
			add(h.checkDiskSpace(dir))
		}
	}
	add(h.checkFileDescriptors(openFiles))

	h.logger.Debug("Preflight completed",
		zap.String("status", string(report.Status)),
		zap.Int("dirs", len(dirs)),
		zap.Int("checks", len(report.Checks)))
	return report
}

// checkDirWritable creates and removes a probe file in dir
func (h *Checker) checkDirWritable(dir string) CheckResult {
	res := CheckResult{Name: "dir_writable", Dir: dir}

	info, err := os.Stat(dir)
	if err != nil {
		res.Status, res.Message = StatusCritical, fmt.Sprintf("directory %s not accessible: %v", dir, err)
		return res
	}
	if !info.IsDir() {
		res.Status, res.Message = StatusCritical, fmt.Sprintf("%s is not a directory", dir)
		return res
	}

	f, err := os.CreateTemp(dir, ".mcaselector-preflight-*")
	if err != nil {
		res.Status, res.Message = StatusCritical, fmt.Sprintf("cannot write to %s: %v", dir, err)
		return res
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	res.Status, res.Message = StatusHealthy, fmt.Sprintf("%s is writable", dir)
	return res
}

func (h *Checker) checkDiskSpace(dir string) CheckResult {
	res := CheckResult{Name: "disk_space", Dir: dir}

	if err := h.disk.CheckBeforeWrite(dir, 0); err != nil {
		res.Status, res.Message = StatusCritical, fmt.Sprintf("%s: %v", dir, err)
		return res
	}
	stats, err := h.disk.GetDiskUsage(dir)
	if err != nil {
		res.Status, res.Message = StatusWarning, fmt.Sprintf("%s: %v", dir, err)
		return res
	}

	res.Status = StatusHealthy
	res.Message = fmt.Sprintf("disk usage %.2f%%, available %.2f GB",
		stats.UsagePercent, float64(stats.AvailableBytes)/1024/1024/1024)
	return res
}

// checkFileDescriptors compares the batch's descriptor needs with the limit
func (h *Checker) checkFileDescriptors(openFiles int) CheckResult {
	res := CheckResult{Name: "file_descriptors"}

	limit, err := softFileLimit()
	if err != nil {
		res.Status, res.Message = StatusWarning, fmt.Sprintf("failed to get file limit: %v", err)
		return res
	}

	switch need := uint64(max(openFiles, 0)); {
	case need > limit:
		res.Status = StatusCritical
		res.Message = fmt.Sprintf("batch needs %d open files, limit is %d", need, limit)
	case need > limit*9/10:
		res.Status = StatusWarning
		res.Message = fmt.Sprintf("batch needs %d of %d open files", need, limit)
	default:
		res.Status = StatusHealthy
		res.Message = fmt.Sprintf("open file limit %d", limit)
	}
	return res
}

func softFileLimit() (uint64, error) {
	var rlimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlimit); err != nil {
		return 0, err
	}
	return uint64(rlimit.Cur), nil
}
