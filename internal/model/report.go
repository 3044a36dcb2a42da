package model

import "time"

// ContainerResult is the per-container entry of a batch report
type ContainerResult struct {
	Path      string        `json:"path"`
	Status    JobState      `json:"status"`
	Written   bool          `json:"written"`
	ErrorCode string        `json:"error_code,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	ChunkTally
}

// Totals summarizes a batch
type Totals struct {
	Containers  int `json:"containers"`
	Done        int `json:"done"`
	Failed      int `json:"failed"`
	Written     int `json:"written"`
	Chunks      int `json:"chunks"`
	Selected    int `json:"selected"`
	Edited      int `json:"edited"`
	ChunkErrors int `json:"chunk_errors"`
}

// Report is returned to the caller after a batch finishes
type Report struct {
	BatchID      string            `json:"batch_id"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	DryRun       bool              `json:"dry_run"`
	PeakResident int               `json:"peak_resident"`
	Containers   []ContainerResult `json:"containers"`
	Totals       Totals            `json:"totals"`
}

// Add appends a container result and updates the totals
func (r *Report) Add(res ContainerResult) {
	r.Containers = append(r.Containers, res)
	r.Totals.Containers++
	switch res.Status {
	case JobStateDone:
		r.Totals.Done++
	case JobStateFailed:
		r.Totals.Failed++
	}
	if res.Written {
		r.Totals.Written++
	}
	r.Totals.Chunks += res.Chunks
	r.Totals.Selected += res.Selected
	r.Totals.Edited += res.Edited
	r.Totals.ChunkErrors += res.Errors
}

// Result returns the entry for path, if present
func (r *Report) Result(path string) (ContainerResult, bool) {
	for _, res := range r.Containers {
		if res.Path == path {
			return res, true
		}
	}
	return ContainerResult{}, false
}
