package coverage

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/covertask/internal/execshell"
)

const (
	reportReceivedMessageConstant   = "coverage report received"
	reportPathLogFieldConstant      = "report_path"
	reportBytesLogFieldConstant     = "report_bytes"
	completionCommandMissingMessage = "completion command not provided"
	completionWriterMissingMessage  = "completion writer not provided"
)

var (
	// ErrCompletionCommandMissing indicates a command handler was built without a command.
	ErrCompletionCommandMissing = errors.New(completionCommandMissingMessage)
	// ErrCompletionWriterMissing indicates a writer handler was built without a writer.
	ErrCompletionWriterMissing = errors.New(completionWriterMissingMessage)
)

// ShellExecutor executes external commands.
type ShellExecutor interface {
	Execute(ctx context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// CompletionHandler consumes the coverage report. The task does not complete until it returns;
// a non-nil error fails the task.
type CompletionHandler interface {
	HandleCoverage(ctx context.Context, report CoverageReport) error
}

// CompletionHandlerFunc adapts a function to CompletionHandler.
type CompletionHandlerFunc func(ctx context.Context, report CoverageReport) error

// HandleCoverage invokes the function.
func (handler CompletionHandlerFunc) HandleCoverage(ctx context.Context, report CoverageReport) error {
	return handler(ctx, report)
}

// NoopCompletionHandler acknowledges the report by logging its size.
type NoopCompletionHandler struct {
	Logger *zap.Logger
}

// HandleCoverage logs and returns nil.
func (handler NoopCompletionHandler) HandleCoverage(_ context.Context, report CoverageReport) error {
	if handler.Logger != nil {
		handler.Logger.Debug(reportReceivedMessageConstant,
			zap.String(reportPathLogFieldConstant, report.Path),
			zap.Int(reportBytesLogFieldConstant, len(report.Content)),
		)
	}
	return nil
}

// WriterCompletionHandler writes the report text to Writer.
type WriterCompletionHandler struct {
	Writer io.Writer
}

// HandleCoverage writes the report content.
func (handler WriterCompletionHandler) HandleCoverage(_ context.Context, report CoverageReport) error {
	if handler.Writer == nil {
		return ErrCompletionWriterMissing
	}
	_, writeError := io.WriteString(handler.Writer, report.Content)
	return writeError
}

// CommandCompletionHandler pipes the report to an external command on standard input.
type CommandCompletionHandler struct {
	Executor     ShellExecutor
	Command      string
	Arguments    []string
	Environment  Environment
	StreamPolicy execshell.StreamPolicy
}

// HandleCoverage runs the command with the report as input.
func (handler CommandCompletionHandler) HandleCoverage(ctx context.Context, report CoverageReport) error {
	command := strings.TrimSpace(handler.Command)
	if len(command) == 0 {
		return ErrCompletionCommandMissing
	}
	if handler.Executor == nil {
		return ErrExecutorNotConfigured
	}
	_, executionError := handler.Executor.Execute(ctx, execshell.ShellCommand{
		Name: execshell.CommandName(command),
		Details: execshell.CommandDetails{
			Arguments:            append([]string(nil), handler.Arguments...),
			WorkingDirectory:     handler.Environment.WorkingDirectory,
			EnvironmentVariables: cloneVariables(handler.Environment.Variables),
			ReplaceEnvironment:   handler.Environment.Variables != nil,
			StandardInput:        []byte(report.Content),
			StreamPolicy:         handler.StreamPolicy,
		},
	})
	return executionError
}

// CompletionHandlers runs each handler in order and stops at the first failure.
type CompletionHandlers []CompletionHandler

// HandleCoverage delegates to every handler.
func (handlers CompletionHandlers) HandleCoverage(ctx context.Context, report CoverageReport) error {
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if handlerError := handler.HandleCoverage(ctx, report); handlerError != nil {
			return handlerError
		}
	}
	return nil
}
