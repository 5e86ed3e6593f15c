package coverage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/covertask/internal/execshell"
)

const (
	dryRunCoverMessageTemplateConstant = "Would execute: %s %s"
	dryRunCheckMessageTemplateConstant = "Would also execute post cover: %s %s"
	thresholdSucceededMessageConstant  = "Done. Minimum coverage threshold succeeded."
	coverageCompletedMessageConstant   = "Done. Check coverage folder."
	plannedInvocationMessageConstant   = "coverage invocation planned"
	taskFailedMessageConstant          = "coverage task failed"
	taskCompletedMessageConstant       = "coverage task completed"
	sourceDirectoryLogFieldConstant    = "source_directory"
	runtimeLogFieldConstant            = "runtime"
	coverArgumentsLogFieldConstant     = "cover_arguments"
	checkArgumentsLogFieldConstant     = "check_arguments"
	statusLogFieldConstant             = "status"
	durationLogFieldConstant           = "duration"
)

// Invocation describes one task run.
type Invocation struct {
	SourcePaths   []string
	Configuration CommandConfiguration
	Environment   Environment
}

// Dependencies wires collaborators for Runner.
type Dependencies struct {
	Logger            *zap.Logger
	Executor          ShellExecutor
	FileSystem        FileSystem
	CompletionHandler CompletionHandler
	Clock             func() time.Time
	// Output receives status lines as the run progresses.
	Output io.Writer
	// Errors receives warnings and the summary line printed by wrapping executors.
	// Output is used when it is nil.
	Errors         io.Writer
	DisableSummary bool
}

// Runner validates inputs, sequences the coverage and threshold processes, and emits the report.
type Runner struct {
	logger            *zap.Logger
	executor          ShellExecutor
	fileSystem        FileSystem
	completionHandler CompletionHandler
	clock             func() time.Time
	output            io.Writer
	errors            io.Writer
}

// NewRunner constructs a Runner. A nil logger is replaced with a no-op logger.
func NewRunner(dependencies Dependencies) *Runner {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}
	errorsWriter := dependencies.Errors
	if errorsWriter == nil {
		errorsWriter = dependencies.Output
	}
	completionHandler := dependencies.CompletionHandler
	if completionHandler == nil {
		completionHandler = NoopCompletionHandler{Logger: logger}
	}
	return &Runner{
		logger:            logger,
		executor:          dependencies.Executor,
		fileSystem:        resolveFileSystem(dependencies.FileSystem),
		completionHandler: completionHandler,
		clock:             clock,
		output:            dependencies.Output,
		errors:            errorsWriter,
	}
}

// Run executes the task. The returned Outcome is populated even when an error is returned.
func (runner *Runner) Run(ctx context.Context, invocation Invocation) (Outcome, error) {
	startTime := runner.clock()
	outcome := Outcome{Status: StatusFailed, StartTime: startTime}

	runError := runner.run(ctx, invocation, &outcome)

	outcome.EndTime = runner.clock()
	outcome.Duration = outcome.EndTime.Sub(startTime)
	if runError != nil {
		outcome.Status = StatusFailed
		runner.logger.Debug(taskFailedMessageConstant, zap.Error(runError), zap.Duration(durationLogFieldConstant, outcome.Duration))
		return outcome, runError
	}
	runner.logger.Debug(taskCompletedMessageConstant,
		zap.String(statusLogFieldConstant, string(outcome.Status)),
		zap.Duration(durationLogFieldConstant, outcome.Duration),
	)
	return outcome, nil
}

func (runner *Runner) run(ctx context.Context, invocation Invocation, outcome *Outcome) error {
	configuration := invocation.Configuration.Sanitize()
	environment := invocation.Environment

	sourceDirectory, sourceError := runner.validateSource(invocation.SourcePaths, environment)
	if sourceError != nil {
		return sourceError
	}

	tools := ResolveToolPaths(configuration.Tools, environment, runner.fileSystem)
	outcome.Runtime = tools.Runtime
	outcome.CoverArguments = BuildCoverArguments(configuration, tools, environment, sourceDirectory)
	checkArguments, checkEnabled := BuildCheckArguments(configuration, tools, environment)
	outcome.CheckArguments = checkArguments

	if optsPath, overridden := optsFileOverridden(configuration, environment, runner.fileSystem, sourceDirectory); overridden {
		warnOptsOverridden(runner.logger, optsPath)
		runner.warn(outcome, optsOverriddenMessageConstant)
	}

	runner.logger.Debug(plannedInvocationMessageConstant,
		zap.String(sourceDirectoryLogFieldConstant, sourceDirectory),
		zap.String(runtimeLogFieldConstant, tools.Runtime),
		zap.Strings(coverArgumentsLogFieldConstant, outcome.CoverArguments),
		zap.Strings(checkArgumentsLogFieldConstant, checkArguments),
	)

	if configuration.DryRun {
		outcome.Status = StatusDryRun
		runner.announce(outcome, fmt.Sprintf(dryRunCoverMessageTemplateConstant, tools.Runtime, strings.Join(outcome.CoverArguments, " ")))
		if checkEnabled {
			runner.announce(outcome, fmt.Sprintf(dryRunCheckMessageTemplateConstant, tools.Runtime, strings.Join(checkArguments, " ")))
		}
		return nil
	}

	if runner.executor == nil {
		return ErrExecutorNotConfigured
	}

	streamPolicy := execshell.StreamInherit
	if configuration.Quiet {
		streamPolicy = execshell.StreamSuppress
	}

	if executionError := runner.spawn(ctx, tools.Runtime, outcome.CoverArguments, environment, streamPolicy); executionError != nil {
		return PrimaryRunError{Arguments: outcome.CoverArguments, Cause: executionError}
	}

	if checkEnabled {
		if executionError := runner.spawn(ctx, tools.Runtime, checkArguments, environment, streamPolicy); executionError != nil {
			return ThresholdCheckError{Arguments: checkArguments, Cause: executionError}
		}
		outcome.CheckPerformed = true
	}

	if configuration.Coverage {
		report, reportError := runner.readReport(configuration, environment)
		if reportError != nil {
			return reportError
		}
		outcome.Report = &report
		if handlerError := runner.completionHandler.HandleCoverage(ctx, report); handlerError != nil {
			return CompletionError{Cause: handlerError}
		}
	}

	if outcome.CheckPerformed {
		runner.announce(outcome, thresholdSucceededMessageConstant)
	} else {
		runner.announce(outcome, coverageCompletedMessageConstant)
	}
	outcome.Status = StatusSucceeded
	return nil
}

func (runner *Runner) validateSource(sourcePaths []string, environment Environment) (string, error) {
	if len(sourcePaths) == 0 || len(strings.TrimSpace(sourcePaths[0])) == 0 {
		return "", SourceDirectoryError{Cause: ErrSourceDirectoryMissing}
	}
	sourceDirectory := sourcePaths[0]
	info, statError := runner.fileSystem.Stat(environment.Resolve(sourceDirectory))
	if statError != nil {
		return "", SourceDirectoryError{Path: sourceDirectory, Cause: ErrSourceDirectoryMissing}
	}
	if !info.IsDir() {
		return "", SourceDirectoryError{Path: sourceDirectory, Cause: ErrSourceNotDirectory}
	}
	return sourceDirectory, nil
}

func (runner *Runner) spawn(ctx context.Context, runtime string, arguments []string, environment Environment, streamPolicy execshell.StreamPolicy) error {
	_, executionError := runner.executor.Execute(ctx, execshell.ShellCommand{
		Name: execshell.CommandName(runtime),
		Details: execshell.CommandDetails{
			Arguments:            arguments,
			WorkingDirectory:     environment.WorkingDirectory,
			EnvironmentVariables: cloneVariables(environment.Variables),
			ReplaceEnvironment:   environment.Variables != nil,
			StreamPolicy:         streamPolicy,
		},
	})
	return executionError
}

func (runner *Runner) readReport(configuration CommandConfiguration, environment Environment) (CoverageReport, error) {
	reportPath := ReportPath(configuration, environment)
	content, readError := runner.fileSystem.ReadFile(reportPath)
	if readError != nil {
		return CoverageReport{}, ReportReadError{Path: reportPath, Cause: readError}
	}
	return CoverageReport{Path: reportPath, Content: string(content)}, nil
}

func (runner *Runner) announce(outcome *Outcome, message string) {
	outcome.Messages = append(outcome.Messages, message)
	if runner.output != nil {
		fmt.Fprintln(runner.output, message)
	}
}

func (runner *Runner) warn(outcome *Outcome, message string) {
	outcome.Warnings = append(outcome.Warnings, message)
	if runner.errors != nil {
		fmt.Fprintln(runner.errors, message)
	}
}
