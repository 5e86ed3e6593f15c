package coverage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/covertask/internal/execshell"
)

type recordingExecutor struct {
	commands []execshell.ShellCommand
	failures map[int]error
}

func (executor *recordingExecutor) Execute(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	index := len(executor.commands)
	executor.commands = append(executor.commands, command)
	if failure, exists := executor.failures[index]; exists {
		return execshell.ExecutionResult{}, failure
	}
	return execshell.ExecutionResult{}, nil
}

type recordingHandler struct {
	reports []CoverageReport
	err     error
}

func (handler *recordingHandler) HandleCoverage(_ context.Context, report CoverageReport) error {
	handler.reports = append(handler.reports, report)
	return handler.err
}

func newTestWorkspace(testInstance *testing.T) (string, Environment) {
	testInstance.Helper()
	workingDirectory := testInstance.TempDir()
	require.NoError(testInstance, os.MkdirAll(filepath.Join(workingDirectory, "test"), 0o755))
	return workingDirectory, Environment{WorkingDirectory: workingDirectory, Variables: map[string]string{"NODE_ENV": "test"}}
}

func newTestConfiguration() CommandConfiguration {
	configuration := DefaultCommandConfiguration()
	configuration.Tools = testTools()
	return configuration
}

func TestRunFailsWithoutSourceDirectory(testInstance *testing.T) {
	workingDirectory, environment := newTestWorkspace(testInstance)
	writeTestFile(testInstance, filepath.Join(workingDirectory, "file.js"), "")

	testCases := []struct {
		name          string
		sourcePaths   []string
		expectedCause error
	}{
		{name: "no sources", sourcePaths: nil, expectedCause: ErrSourceDirectoryMissing},
		{name: "missing directory", sourcePaths: []string{"./missing"}, expectedCause: ErrSourceDirectoryMissing},
		{name: "file instead of directory", sourcePaths: []string{"file.js"}, expectedCause: ErrSourceNotDirectory},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &recordingExecutor{}
			runner := NewRunner(Dependencies{Executor: executor})

			outcome, runError := runner.Run(context.Background(), Invocation{
				SourcePaths:   testCase.sourcePaths,
				Configuration: newTestConfiguration(),
				Environment:   environment,
			})

			require.Error(testInstance, runError)
			require.ErrorIs(testInstance, runError, testCase.expectedCause)
			var sourceError SourceDirectoryError
			require.ErrorAs(testInstance, runError, &sourceError)
			require.Equal(testInstance, StatusFailed, outcome.Status)
			require.Empty(testInstance, executor.commands)
		})
	}
}

func TestRunDryRunSpawnsNothing(testInstance *testing.T) {
	_, environment := newTestWorkspace(testInstance)
	configuration := newTestConfiguration()
	configuration.DryRun = true
	configuration.Check.Lines = Float64(80)

	executor := &recordingExecutor{}
	handler := &recordingHandler{}
	var output bytes.Buffer
	runner := NewRunner(Dependencies{Executor: executor, CompletionHandler: handler, Output: &output})

	outcome, runError := runner.Run(context.Background(), Invocation{
		SourcePaths:   []string{"./test"},
		Configuration: configuration,
		Environment:   environment,
	})

	require.NoError(testInstance, runError)
	require.Equal(testInstance, StatusDryRun, outcome.Status)
	require.True(testInstance, outcome.Succeeded())
	require.Empty(testInstance, executor.commands)
	require.Empty(testInstance, handler.reports)
	require.Len(testInstance, outcome.Messages, 2)
	require.Contains(testInstance, outcome.Messages[0], "Would execute: node /tools/istanbul/lib/cli.js")
	require.Contains(testInstance, outcome.Messages[1], "Would also execute post cover: node /tools/istanbul/lib/cli.js check-coverage --lines 80")
	require.Contains(testInstance, output.String(), "Would execute: node")
}

func TestRunWithoutThresholdsSkipsCheck(testInstance *testing.T) {
	workingDirectory, environment := newTestWorkspace(testInstance)
	executor := &recordingExecutor{}
	runner := NewRunner(Dependencies{Executor: executor})

	outcome, runError := runner.Run(context.Background(), Invocation{
		SourcePaths:   []string{"./test"},
		Configuration: newTestConfiguration(),
		Environment:   environment,
	})

	require.NoError(testInstance, runError)
	require.Equal(testInstance, StatusSucceeded, outcome.Status)
	require.False(testInstance, outcome.CheckPerformed)
	require.Len(testInstance, executor.commands, 1)

	primary := executor.commands[0]
	require.Equal(testInstance, execshell.CommandName("node"), primary.Name)
	require.Equal(testInstance, workingDirectory, primary.Details.WorkingDirectory)
	require.Equal(testInstance, map[string]string{"NODE_ENV": "test"}, primary.Details.EnvironmentVariables)
	require.True(testInstance, primary.Details.ReplaceEnvironment)
	require.Equal(testInstance, execshell.StreamInherit, primary.Details.StreamPolicy)
	arguments := primary.Details.Arguments
	require.Equal(testInstance, []string{"cover", "/tools/mocha/bin/_mocha", "--", "./test"}, arguments[len(arguments)-4:])
	require.Equal(testInstance, []string{"Done. Check coverage folder."}, outcome.Messages)
}

func TestRunExecutesCheckAfterPrimarySuccess(testInstance *testing.T) {
	workingDirectory, environment := newTestWorkspace(testInstance)
	configuration := newTestConfiguration()
	configuration.Check.Lines = Float64(80)
	configuration.Quiet = true

	executor := &recordingExecutor{}
	runner := NewRunner(Dependencies{Executor: executor})

	outcome, runError := runner.Run(context.Background(), Invocation{
		SourcePaths:   []string{"./test"},
		Configuration: configuration,
		Environment:   environment,
	})

	require.NoError(testInstance, runError)
	require.True(testInstance, outcome.CheckPerformed)
	require.Len(testInstance, executor.commands, 2)
	check := executor.commands[1]
	require.Equal(testInstance, []string{
		"/tools/istanbul/lib/cli.js", "check-coverage", "--lines", "80",
		"--dir=" + filepath.Join(workingDirectory, "coverage"),
	}, check.Details.Arguments)
	require.Equal(testInstance, execshell.StreamSuppress, check.Details.StreamPolicy)
	require.Equal(testInstance, []string{"Done. Minimum coverage threshold succeeded."}, outcome.Messages)
}

func TestRunPrimaryFailureSkipsCheck(testInstance *testing.T) {
	_, environment := newTestWorkspace(testInstance)
	configuration := newTestConfiguration()
	configuration.Check.Statements = Float64(90)
	configuration.Coverage = true

	primaryFailure := execshell.CommandFailedError{Result: execshell.ExecutionResult{ExitCode: 3}}
	executor := &recordingExecutor{failures: map[int]error{0: primaryFailure}}
	handler := &recordingHandler{}
	runner := NewRunner(Dependencies{Executor: executor, CompletionHandler: handler})

	outcome, runError := runner.Run(context.Background(), Invocation{
		SourcePaths:   []string{"./test"},
		Configuration: configuration,
		Environment:   environment,
	})

	var primaryError PrimaryRunError
	require.ErrorAs(testInstance, runError, &primaryError)
	var commandError execshell.CommandFailedError
	require.ErrorAs(testInstance, runError, &commandError)
	require.Equal(testInstance, 3, commandError.Result.ExitCode)
	require.Len(testInstance, executor.commands, 1)
	require.Empty(testInstance, handler.reports)
	require.Equal(testInstance, StatusFailed, outcome.Status)
}

type failingCommandExecutor struct {
	failAt int
	calls  int
}

func (executor *failingCommandExecutor) Execute(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	index := executor.calls
	executor.calls++
	if index == executor.failAt {
		return execshell.ExecutionResult{}, execshell.CommandFailedError{Command: command, Result: execshell.ExecutionResult{ExitCode: 1}}
	}
	return execshell.ExecutionResult{}, nil
}

func TestRunFailureMessagesNameArgumentsOnce(testInstance *testing.T) {
	testCases := []struct {
		name         string
		failAt       int
		prefix       string
		selectVector func(Outcome) []string
	}{
		{name: "primary run", failAt: 0, prefix: "coverage run failed: ", selectVector: func(outcome Outcome) []string { return outcome.CoverArguments }},
		{name: "threshold check", failAt: 1, prefix: "coverage threshold check failed: ", selectVector: func(outcome Outcome) []string { return outcome.CheckArguments }},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, environment := newTestWorkspace(testInstance)
			configuration := newTestConfiguration()
			configuration.Check.Lines = Float64(80)

			runner := NewRunner(Dependencies{Executor: &failingCommandExecutor{failAt: testCase.failAt}})
			outcome, runError := runner.Run(context.Background(), Invocation{
				SourcePaths:   []string{"./test"},
				Configuration: configuration,
				Environment:   environment,
			})

			require.Error(testInstance, runError)
			message := runError.Error()
			require.True(testInstance, strings.HasPrefix(message, testCase.prefix), message)
			joined := strings.Join(testCase.selectVector(outcome), " ")
			require.NotEmpty(testInstance, joined)
			require.Equal(testInstance, 1, strings.Count(message, joined), message)
		})
	}
}

func TestRunCheckFailureLeavesReportUnemitted(testInstance *testing.T) {
	workingDirectory, environment := newTestWorkspace(testInstance)
	writeTestFile(testInstance, filepath.Join(workingDirectory, "coverage", "lcov.info"), "TN:\nend_of_record\n")
	configuration := newTestConfiguration()
	configuration.Check.Branches = Float64(95)
	configuration.Coverage = true

	executor := &recordingExecutor{failures: map[int]error{1: errors.New("below threshold")}}
	handler := &recordingHandler{}
	runner := NewRunner(Dependencies{Executor: executor, CompletionHandler: handler})

	outcome, runError := runner.Run(context.Background(), Invocation{
		SourcePaths:   []string{"./test"},
		Configuration: configuration,
		Environment:   environment,
	})

	var checkError ThresholdCheckError
	require.ErrorAs(testInstance, runError, &checkError)
	require.Len(testInstance, executor.commands, 2)
	require.Nil(testInstance, outcome.Report)
	require.Empty(testInstance, handler.reports)
	require.False(testInstance, outcome.CheckPerformed)
}

func TestRunEmitsCoverageReportToHandler(testInstance *testing.T) {
	workingDirectory, environment := newTestWorkspace(testInstance)
	reportPath := filepath.Join(workingDirectory, "coverage", "lcov.info")
	writeTestFile(testInstance, reportPath, "SF:lib/index.js\nend_of_record\n")
	configuration := newTestConfiguration()
	configuration.Coverage = true

	handler := &recordingHandler{}
	runner := NewRunner(Dependencies{Executor: &recordingExecutor{}, CompletionHandler: handler})

	outcome, runError := runner.Run(context.Background(), Invocation{
		SourcePaths:   []string{"test"},
		Configuration: configuration,
		Environment:   environment,
	})

	require.NoError(testInstance, runError)
	require.Len(testInstance, handler.reports, 1)
	require.Equal(testInstance, reportPath, handler.reports[0].Path)
	require.Equal(testInstance, "SF:lib/index.js\nend_of_record\n", handler.reports[0].Content)
	require.NotNil(testInstance, outcome.Report)
	require.Equal(testInstance, handler.reports[0], *outcome.Report)
}

func TestRunHandlerFailureFailsTask(testInstance *testing.T) {
	workingDirectory, environment := newTestWorkspace(testInstance)
	writeTestFile(testInstance, filepath.Join(workingDirectory, "coverage", "lcov.info"), "TN:\n")
	configuration := newTestConfiguration()
	configuration.Coverage = true

	handlerFailure := errors.New("upload rejected")
	var output bytes.Buffer
	runner := NewRunner(Dependencies{
		Executor:          &recordingExecutor{},
		CompletionHandler: &recordingHandler{err: handlerFailure},
		Output:            &output,
	})

	outcome, runError := runner.Run(context.Background(), Invocation{
		SourcePaths:   []string{"test"},
		Configuration: configuration,
		Environment:   environment,
	})

	var completionError CompletionError
	require.ErrorAs(testInstance, runError, &completionError)
	require.ErrorIs(testInstance, runError, handlerFailure)
	require.Equal(testInstance, StatusFailed, outcome.Status)
	require.Empty(testInstance, output.String())
}

func TestRunWithoutCoverageDoesNotReadReport(testInstance *testing.T) {
	_, environment := newTestWorkspace(testInstance)
	handler := &recordingHandler{}
	runner := NewRunner(Dependencies{Executor: &recordingExecutor{}, CompletionHandler: handler})

	outcome, runError := runner.Run(context.Background(), Invocation{
		SourcePaths:   []string{"test"},
		Configuration: newTestConfiguration(),
		Environment:   environment,
	})

	require.NoError(testInstance, runError)
	require.Nil(testInstance, outcome.Report)
	require.Empty(testInstance, handler.reports)
}

func TestRunMissingReportFails(testInstance *testing.T) {
	_, environment := newTestWorkspace(testInstance)
	configuration := newTestConfiguration()
	configuration.Coverage = true
	runner := NewRunner(Dependencies{Executor: &recordingExecutor{}})

	_, runError := runner.Run(context.Background(), Invocation{
		SourcePaths:   []string{"test"},
		Configuration: configuration,
		Environment:   environment,
	})

	var readError ReportReadError
	require.ErrorAs(testInstance, runError, &readError)
	require.ErrorIs(testInstance, runError, os.ErrNotExist)
}

func TestRunWarnsWhenOptsFileIsOverridden(testInstance *testing.T) {
	testCases := []struct {
		name          string
		writeOpts     bool
		reporter      string
		expectWarning bool
	}{
		{name: "opts with reporter", writeOpts: true, reporter: "spec", expectWarning: true},
		{name: "opts without options", writeOpts: true, reporter: "", expectWarning: false},
		{name: "reporter without opts", writeOpts: false, reporter: "spec", expectWarning: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			workingDirectory, environment := newTestWorkspace(testInstance)
			if testCase.writeOpts {
				writeTestFile(testInstance, filepath.Join(workingDirectory, "test", "mocha.opts"), "--reporter dot\n")
			}
			configuration := newTestConfiguration()
			configuration.Reporter = testCase.reporter

			core, logs := observer.New(zapcore.WarnLevel)
			executor := &recordingExecutor{}
			output := &bytes.Buffer{}
			errorsBuffer := &bytes.Buffer{}
			runner := NewRunner(Dependencies{Logger: zap.New(core), Executor: executor, Output: output, Errors: errorsBuffer})

			outcome, runError := runner.Run(context.Background(), Invocation{
				SourcePaths:   []string{"./test"},
				Configuration: configuration,
				Environment:   environment,
			})

			require.NoError(testInstance, runError)
			warnings := logs.FilterMessage("mocha.opts exists, but overwriting with options").All()
			if testCase.expectWarning {
				require.Len(testInstance, warnings, 1)
				require.Equal(testInstance, []string{"mocha.opts exists, but overwriting with options"}, outcome.Warnings)
				require.Equal(testInstance, "mocha.opts exists, but overwriting with options\n", errorsBuffer.String())
			} else {
				require.Empty(testInstance, warnings)
				require.Empty(testInstance, outcome.Warnings)
				require.Empty(testInstance, errorsBuffer.String())
			}
			require.NotContains(testInstance, output.String(), "mocha.opts")
			require.Len(testInstance, executor.commands, 1)
			if len(testCase.reporter) > 0 {
				require.Contains(testInstance, executor.commands[0].Details.Arguments, "--reporter")
				require.Contains(testInstance, executor.commands[0].Details.Arguments, testCase.reporter)
			}
		})
	}
}

func TestRunRecordsDuration(testInstance *testing.T) {
	_, environment := newTestWorkspace(testInstance)
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	ticks := []time.Time{start, start.Add(1500 * time.Millisecond)}
	clock := func() time.Time {
		current := ticks[0]
		if len(ticks) > 1 {
			ticks = ticks[1:]
		}
		return current
	}
	runner := NewRunner(Dependencies{Executor: &recordingExecutor{}, Clock: clock})

	outcome, runError := runner.Run(context.Background(), Invocation{
		SourcePaths:   []string{"test"},
		Configuration: newTestConfiguration(),
		Environment:   environment,
	})

	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1500*time.Millisecond, outcome.Duration)
}

func TestRunRequiresExecutorOutsideDryRun(testInstance *testing.T) {
	_, environment := newTestWorkspace(testInstance)
	runner := NewRunner(Dependencies{})

	_, runError := runner.Run(context.Background(), Invocation{
		SourcePaths:   []string{"test"},
		Configuration: newTestConfiguration(),
		Environment:   environment,
	})

	require.ErrorIs(testInstance, runError, ErrExecutorNotConfigured)
}
