package coverage

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceDirectoryMissing indicates no source directory was provided or it does not exist.
	ErrSourceDirectoryMissing = errors.New("missing source directory with the tests")
	// ErrSourceNotDirectory indicates the source path exists but is not a directory.
	ErrSourceNotDirectory = errors.New("source path is not a directory")
	// ErrExecutorNotConfigured indicates the runner was constructed without a shell executor.
	ErrExecutorNotConfigured = errors.New("coverage runner requires a shell executor")
)

// SourceDirectoryError reports a failed source directory precondition.
type SourceDirectoryError struct {
	Path  string
	Cause error
}

// Error describes the failure.
func (sourceError SourceDirectoryError) Error() string {
	if len(sourceError.Path) == 0 {
		return sourceError.Cause.Error()
	}
	return fmt.Sprintf("%s: %s", sourceError.Cause.Error(), sourceError.Path)
}

// Unwrap exposes the sentinel cause.
func (sourceError SourceDirectoryError) Unwrap() error {
	return sourceError.Cause
}

// PrimaryRunError reports a failed instrumented test run. The message carries only the
// cause, which already names the process arguments.
type PrimaryRunError struct {
	Arguments []string
	Cause     error
}

// Error describes the failure.
func (runError PrimaryRunError) Error() string {
	return fmt.Sprintf("coverage run failed: %v", runError.Cause)
}

// Unwrap exposes the execution error.
func (runError PrimaryRunError) Unwrap() error {
	return runError.Cause
}

// ThresholdCheckError reports coverage below a configured minimum.
type ThresholdCheckError struct {
	Arguments []string
	Cause     error
}

// Error describes the failure.
func (checkError ThresholdCheckError) Error() string {
	return fmt.Sprintf("coverage threshold check failed: %v", checkError.Cause)
}

// Unwrap exposes the execution error.
func (checkError ThresholdCheckError) Unwrap() error {
	return checkError.Cause
}

// ReportReadError reports that the lcov report could not be read after a successful run.
type ReportReadError struct {
	Path  string
	Cause error
}

// Error describes the failure.
func (readError ReportReadError) Error() string {
	return fmt.Sprintf("unable to read coverage report %s: %v", readError.Path, readError.Cause)
}

// Unwrap exposes the filesystem error.
func (readError ReportReadError) Unwrap() error {
	return readError.Cause
}

// CompletionError reports a completion handler failure.
type CompletionError struct {
	Cause error
}

// Error describes the failure.
func (completionError CompletionError) Error() string {
	return fmt.Sprintf("coverage report handler failed: %v", completionError.Cause)
}

// Unwrap exposes the handler error.
func (completionError CompletionError) Unwrap() error {
	return completionError.Cause
}
