package taskrunner

import (
	"fmt"
	"strings"
	"time"

	"github.com/tyemirov/covertask/internal/coverage"
)

const (
	checkPerformedValue = "performed"
	checkSkippedValue   = "skipped"
	checkPlannedValue   = "planned"
)

// RenderSummaryLine returns the summary line printed after a coverage run. Outcomes that never
// planned an invocation yield an empty line.
func RenderSummaryLine(outcome coverage.Outcome) string {
	if len(outcome.Status) == 0 || len(outcome.CoverArguments) == 0 {
		return ""
	}

	parts := []string{fmt.Sprintf("Summary: status=%s", outcome.Status)}
	parts = append(parts, fmt.Sprintf("check=%s", describeCheck(outcome)))

	if outcome.Report != nil {
		parts = append(parts, fmt.Sprintf("report.bytes=%d", len(outcome.Report.Content)))
	}

	durationHuman := outcome.Duration.Round(time.Millisecond).String()
	parts = append(parts, fmt.Sprintf("duration_human=%s", durationHuman))
	parts = append(parts, fmt.Sprintf("duration_ms=%d", outcome.Duration.Milliseconds()))

	return strings.Join(parts, " ")
}

func describeCheck(outcome coverage.Outcome) string {
	switch {
	case outcome.CheckPerformed:
		return checkPerformedValue
	case len(outcome.CheckArguments) > 0:
		return checkPlannedValue
	default:
		return checkSkippedValue
	}
}
