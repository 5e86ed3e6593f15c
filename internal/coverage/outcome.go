package coverage

import "time"

// Status enumerates terminal task states.
type Status string

const (
	// StatusSucceeded marks a run whose processes and handler all succeeded.
	StatusSucceeded Status = "succeeded"
	// StatusFailed marks a run that stopped on an error.
	StatusFailed Status = "failed"
	// StatusDryRun marks a run that only reported the planned invocations.
	StatusDryRun Status = "dry-run"
)

// CoverageReport is the lcov text emitted after a successful run with coverage enabled.
type CoverageReport struct {
	Path    string
	Content string
}

// Outcome captures the observable result of a task run.
type Outcome struct {
	Status         Status
	Runtime        string
	CoverArguments []string
	CheckArguments []string
	CheckPerformed bool
	Messages       []string
	Warnings       []string
	Report         *CoverageReport
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}

// Succeeded reports whether the outcome ended without failure. Dry runs always succeed.
func (outcome Outcome) Succeeded() bool {
	return outcome.Status == StatusSucceeded || outcome.Status == StatusDryRun
}
