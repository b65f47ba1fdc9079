package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SweepRun records one (university, source) pass through the pipeline in
// the local ops store.
type SweepRun struct {
	ID            int64      `json:"id" db:"id"`
	University    string     `json:"university" db:"university"`
	Source        string     `json:"source" db:"source"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	Scraped       int        `json:"scraped" db:"scraped"`
	WithDetails   int        `json:"with_details" db:"with_details"`
	Scored        int        `json:"scored" db:"scored"`
	WithCommute   int        `json:"with_commute" db:"with_commute"`
	Saved         int        `json:"saved" db:"saved"`
	ReusedDetails int        `json:"reused_details" db:"reused_details"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
	ExportFile    string     `json:"export_file" db:"export_file"`
}

// SourceStats keeps per-source aggregates for the daemon dashboard.
type SourceStats struct {
	Source            string     `json:"source" db:"source"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalRuns         int        `json:"total_runs" db:"total_runs"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
