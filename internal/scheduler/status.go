package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunStatus is the state of a single job run. Transitions are
// monotonic: running moves to success or failed and never back.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// JobRun records one firing of a job.
type JobRun struct {
	RunID      string    `json:"run_id"`
	JobName    string    `json:"job_name"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Attempts   int       `json:"attempts"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// JobStatus is the externally visible state of one timetable entry.
// LastSuccess survives later failed runs: a failing job still reports
// when it last went through cleanly.
type JobStatus struct {
	Name           string     `json:"name"`
	Trigger        string     `json:"trigger"`
	Running        bool       `json:"running"`
	NextRun        time.Time  `json:"next_run"`
	SkippedFirings int        `json:"skipped_firings"`
	LastSkippedAt  time.Time  `json:"last_skipped_at,omitempty"`
	LastRun        *JobRun    `json:"last_run,omitempty"`
	LastSuccess    *time.Time `json:"last_success,omitempty"`
}

// StatusSnapshot is the full scheduler state served by the status
// endpoint and persisted to the status file after every transition.
// Jobs is keyed by job name.
type StatusSnapshot struct {
	SchedulerStarted time.Time            `json:"scheduler_started"`
	LastHeartbeat    time.Time            `json:"last_heartbeat"`
	Jobs             map[string]JobStatus `json:"jobs"`
}

// saveStatus persists the snapshot atomically so a crash never leaves a
// truncated status file.
func saveStatus(path string, snap *StatusSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit status: %w", err)
	}
	return nil
}

// LoadStatus reads a persisted status snapshot, for the CLI status
// command. Returns nil with no error when no file exists yet.
func LoadStatus(path string) (*StatusSnapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	var snap StatusSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse status: %w", err)
	}
	return &snap, nil
}
