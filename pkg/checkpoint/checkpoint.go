// Package checkpoint records per-input run state so batch runs can resume.
package checkpoint

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Store.Load when no checkpoint exists.
var ErrNotFound = errors.New("checkpoint not found")

// Status is the state of one input's run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Checkpoint tracks one input's run.
type Checkpoint struct {
	RunID  string `json:"run_id"`
	Input  string `json:"input"`
	Output string `json:"output"`
	Status Status `json:"status"`

	Documents int64  `json:"documents"`
	Records   int64  `json:"records"`
	Kept      int64  `json:"kept"`
	Dropped   int64  `json:"dropped"`
	Error     string `json:"error,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Start returns a running checkpoint with a fresh run ID.
func Start(input, output string) *Checkpoint {
	now := time.Now()
	return &Checkpoint{
		RunID:     uuid.NewString(),
		Input:     input,
		Output:    output,
		Status:    StatusRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Counters are the run totals a checkpoint keeps.
type Counters struct {
	Documents, Records, Kept, Dropped int64
}

// Complete marks the run finished with the final counters.
func (c *Checkpoint) Complete(n Counters) {
	c.setCounters(n)
	c.finish(StatusComplete)
}

// Fail marks the run failed with the counters reached so far.
func (c *Checkpoint) Fail(n Counters, err error) {
	c.setCounters(n)
	if err != nil {
		c.Error = err.Error()
	}
	c.finish(StatusFailed)
}

func (c *Checkpoint) setCounters(n Counters) {
	c.Documents, c.Records, c.Kept, c.Dropped = n.Documents, n.Records, n.Kept, n.Dropped
}

func (c *Checkpoint) finish(status Status) {
	now := time.Now()
	c.Status = status
	c.UpdatedAt = now
	c.CompletedAt = &now
}

// Done reports whether the run completed successfully.
func (c *Checkpoint) Done() bool {
	return c.Status == StatusComplete
}

// Duration returns how long the run took, or has taken so far.
func (c *Checkpoint) Duration() time.Duration {
	if c.CompletedAt != nil {
		return c.CompletedAt.Sub(c.StartedAt)
	}
	return time.Since(c.StartedAt)
}

// sanitizeKey turns an input URI into a flat key.
func sanitizeKey(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_").Replace(s)
}
