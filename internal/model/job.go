package model

import "time"

// JobState is the lifecycle state of one container in a batch
type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateReading    JobState = "reading"
	JobStateProcessing JobState = "processing"
	JobStateWriting    JobState = "writing"
	JobStateDone       JobState = "done"
	JobStateFailed     JobState = "failed"
)

// Terminal reports whether no further stage will touch the job
func (s JobState) Terminal() bool {
	return s == JobStateDone || s == JobStateFailed
}

// ChunkError records a failure isolated to one chunk
type ChunkError struct {
	Coord       ChunkCoord `json:"coord"`
	DataVersion int32      `json:"data_version"`
	Code        string     `json:"code"`
	Message     string     `json:"message"`
}

// ChunkTally accumulates per-chunk outcomes for one container
type ChunkTally struct {
	Chunks      int          `json:"chunks"`
	Selected    int          `json:"selected"`
	Edited      int          `json:"edited"`
	Errors      int          `json:"errors"`
	ChunkErrors []ChunkError `json:"chunk_errors,omitempty"`
}

// Merge adds other into t
func (t *ChunkTally) Merge(other ChunkTally) {
	t.Chunks += other.Chunks
	t.Selected += other.Selected
	t.Edited += other.Edited
	t.Errors += other.Errors
	t.ChunkErrors = append(t.ChunkErrors, other.ChunkErrors...)
}

// Job is one container in flight. It is owned by exactly one stage at a time.
type Job struct {
	Path      string
	State     JobState
	Container *Container
	Tally     ChunkTally
	Err       error
	Written   bool
	Queued    time.Time
}
