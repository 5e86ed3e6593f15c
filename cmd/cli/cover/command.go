package cover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyemirov/covertask/internal/coverage"
	"github.com/tyemirov/covertask/internal/execshell"
	flagutils "github.com/tyemirov/covertask/internal/utils/flags"
	"github.com/tyemirov/covertask/pkg/taskrunner"
)

const (
	commandUseNameConstant          = "cover"
	commandUsageTemplateConstant    = commandUseNameConstant + " <source-directory>"
	commandExampleConstant          = "covertask cover ./test --reporter spec --check-lines 80 --coverage --coverage-output -"
	commandShortDescriptionConstant = "Run tests under coverage instrumentation"
	commandLongDescriptionConstant  = "cover runs the test runner under the coverage tool for the given source directory, optionally enforces minimum coverage thresholds, and emits the lcov report."

	requireFlagName          = "require"
	requireFlagUsage         = "Module to require before running tests (repeatable)"
	uiFlagName               = "ui"
	uiFlagUsage              = "Test interface (bdd, tdd, qunit, exports)"
	globalsFlagName          = "globals"
	globalsFlagUsage         = "Allowed global variable names (repeatable)"
	reporterFlagName         = "reporter"
	reporterFlagUsage        = "Test reporter name"
	timeoutFlagName          = "timeout"
	timeoutFlagUsage         = "Per-test timeout in milliseconds"
	slowFlagName             = "slow"
	slowFlagUsage            = "Slow test threshold in milliseconds"
	grepFlagName             = "grep"
	grepFlagUsage            = "Only run tests matching the pattern"
	recursiveFlagName        = "recursive"
	recursiveFlagUsage       = "Include subdirectories of the source directory"
	maskFlagName             = "mask"
	maskFlagUsage            = "Glob appended to the source directory to select test files"
	rootFlagName             = "root"
	rootFlagUsage            = "Root directory of the files to instrument"
	coverageFolderFlagName   = "coverage-folder"
	coverageFolderFlagUsage  = "Directory receiving coverage reports"
	reportFormatFlagName     = "report-format"
	reportFormatFlagUsage    = "Report format to generate (repeatable)"
	checkStatementsFlagName  = "check-statements"
	checkStatementsFlagUsage = "Minimum statement coverage percentage"
	checkLinesFlagName       = "check-lines"
	checkLinesFlagUsage      = "Minimum line coverage percentage"
	checkFunctionsFlagName   = "check-functions"
	checkFunctionsFlagUsage  = "Minimum function coverage percentage"
	checkBranchesFlagName    = "check-branches"
	checkBranchesFlagUsage   = "Minimum branch coverage percentage"
	coverageFlagName         = "coverage"
	coverageFlagUsage        = "Emit the lcov report after a successful run"
	coverageOutputFlagName   = "coverage-output"
	coverageOutputFlagUsage  = "Write the emitted report to this file ('-' for standard output)"
	coverageCommandFlagName  = "coverage-command"
	coverageCommandFlagUsage = "Pipe the emitted report to this command's standard input"
	nodeFlagName             = "node"
	nodeFlagUsage            = "Runtime executable"
	istanbulFlagName         = "istanbul"
	istanbulFlagUsage        = "Path to the coverage tool command-line script"
	mochaFlagName            = "mocha"
	mochaFlagUsage           = "Path to the test runner script"
	planFormatFlagName       = "plan-format"
	planFormatFlagUsage      = "Invocation plan output format (text or yaml)"

	unsupportedPlanFormatTemplate = "unsupported plan format %q"
	coverageOutputWriteTemplate   = "unable to write coverage output %s: %w"
	planRenderErrorTemplate       = "unable to render invocation plan: %w"
	coverageOutputFilePermission  = 0o644
)

// CommandBuilder assembles the cover command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	ShellExecutor                coverage.ShellExecutor
	CommandRunner                execshell.CommandRunner
	FileSystem                   coverage.FileSystem
	EnvironmentProvider          func() (coverage.Environment, error)
	TaskRunnerFactory            TaskRunnerFactory
}

// Build constructs the cover command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:     commandUsageTemplateConstant,
		Short:   commandShortDescriptionConstant,
		Long:    commandLongDescriptionConstant,
		Example: commandExampleConstant,
		Args:    cobra.ArbitraryArgs,
		RunE:    builder.run,
	}

	flagSet := command.Flags()
	flagSet.StringSlice(requireFlagName, nil, requireFlagUsage)
	flagSet.String(uiFlagName, "", uiFlagUsage)
	flagSet.StringSlice(globalsFlagName, nil, globalsFlagUsage)
	flagSet.String(reporterFlagName, "", reporterFlagUsage)
	flagSet.Int(timeoutFlagName, 0, timeoutFlagUsage)
	flagSet.Int(slowFlagName, 0, slowFlagUsage)
	flagSet.String(grepFlagName, "", grepFlagUsage)
	flagSet.Bool(recursiveFlagName, false, recursiveFlagUsage)
	flagSet.String(maskFlagName, "", maskFlagUsage)
	flagSet.String(rootFlagName, "", rootFlagUsage)
	flagSet.String(coverageFolderFlagName, "", coverageFolderFlagUsage)
	flagSet.StringSlice(reportFormatFlagName, nil, reportFormatFlagUsage)
	flagSet.Float64(checkStatementsFlagName, 0, checkStatementsFlagUsage)
	flagSet.Float64(checkLinesFlagName, 0, checkLinesFlagUsage)
	flagSet.Float64(checkFunctionsFlagName, 0, checkFunctionsFlagUsage)
	flagSet.Float64(checkBranchesFlagName, 0, checkBranchesFlagUsage)
	flagSet.Bool(coverageFlagName, false, coverageFlagUsage)
	flagSet.String(coverageOutputFlagName, "", coverageOutputFlagUsage)
	flagSet.String(coverageCommandFlagName, "", coverageCommandFlagUsage)
	flagSet.String(nodeFlagName, "", nodeFlagUsage)
	flagSet.String(istanbulFlagName, "", istanbulFlagUsage)
	flagSet.String(mochaFlagName, "", mochaFlagUsage)
	flagSet.String(planFormatFlagName, "", planFormatFlagUsage)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration, flagError := applyFlagOverrides(command, builder.resolveConfiguration())
	if flagError != nil {
		return flagError
	}
	if configuration.PlanFormat != planFormatText && configuration.PlanFormat != planFormatYAML {
		return fmt.Errorf(unsupportedPlanFormatTemplate, configuration.PlanFormat)
	}

	if executionFlags, available := flagutils.ResolveExecutionFlags(command); available {
		if executionFlags.DryRunSet {
			configuration.Task.DryRun = executionFlags.DryRun
		}
		if executionFlags.QuietSet {
			configuration.Task.Quiet = executionFlags.Quiet
		}
	}

	environment, environmentError := builder.resolveEnvironment()
	if environmentError != nil {
		return environmentError
	}

	statusWriter := command.OutOrStdout()
	commandRunner := builder.CommandRunner
	if configuration.PlanFormat == planFormatYAML {
		statusWriter = io.Discard
		if commandRunner == nil {
			// standard output carries the plan; child output moves to standard error
			commandRunner = execshell.NewOSCommandRunnerWithWriters(command.ErrOrStderr(), command.ErrOrStderr())
		}
	}

	dependencyResult, dependencyError := taskrunner.BuildDependencies(
		taskrunner.DependenciesConfig{
			LoggerProvider:               builder.LoggerProvider,
			HumanReadableLoggingProvider: builder.HumanReadableLoggingProvider,
			ShellExecutor:                builder.ShellExecutor,
			CommandRunner:                commandRunner,
			FileSystem:                   builder.FileSystem,
		},
		taskrunner.DependenciesOptions{
			Command: command,
			Output:  statusWriter,
			Errors:  command.ErrOrStderr(),
		},
	)
	if dependencyError != nil {
		return dependencyError
	}

	taskDependencies := dependencyResult.Coverage
	taskDependencies.CompletionHandler = buildCompletionHandler(command, configuration, dependencyResult.ShellExecutor, environment)

	taskRunner := taskrunner.Resolve(builder.TaskRunnerFactory, taskDependencies)
	outcome, runError := taskRunner.Run(command.Context(), coverage.Invocation{
		SourcePaths:   arguments,
		Configuration: configuration.Task,
		Environment:   environment,
	})

	if configuration.PlanFormat == planFormatYAML && len(outcome.CoverArguments) > 0 {
		rendered, renderError := coverage.RenderPlan(outcome)
		if renderError != nil {
			return errors.Join(runError, fmt.Errorf(planRenderErrorTemplate, renderError))
		}
		if _, writeError := command.OutOrStdout().Write(rendered); writeError != nil {
			return errors.Join(runError, writeError)
		}
	}

	return runError
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveEnvironment() (coverage.Environment, error) {
	if builder.EnvironmentProvider == nil {
		return coverage.EnvironmentFromProcess()
	}
	return builder.EnvironmentProvider()
}

func applyFlagOverrides(command *cobra.Command, configuration CommandConfiguration) (CommandConfiguration, error) {
	task := &configuration.Task

	stringTargets := map[string]*string{
		uiFlagName:              &task.UI,
		reporterFlagName:        &task.Reporter,
		grepFlagName:            &task.Grep,
		maskFlagName:            &task.Mask,
		rootFlagName:            &task.Root,
		coverageFolderFlagName:  &task.CoverageFolder,
		nodeFlagName:            &task.Tools.Runtime,
		istanbulFlagName:        &task.Tools.CoverageTool,
		mochaFlagName:           &task.Tools.TestRunner,
		coverageOutputFlagName:  &configuration.CoverageOutput,
		coverageCommandFlagName: &configuration.CoverageCommand,
		planFormatFlagName:      &configuration.PlanFormat,
	}
	for flagName, target := range stringTargets {
		value, changed, err := flagutils.StringFlag(command, flagName)
		if err != nil {
			return configuration, err
		}
		if changed {
			*target = value
		}
	}

	sliceTargets := map[string]*[]string{
		requireFlagName:      &task.Require,
		globalsFlagName:      &task.Globals,
		reportFormatFlagName: &task.ReportFormats,
	}
	for flagName, target := range sliceTargets {
		values, changed, err := flagutils.StringSliceFlag(command, flagName)
		if err != nil {
			return configuration, err
		}
		if changed {
			*target = values
		}
	}

	intTargets := map[string]*int{
		timeoutFlagName: &task.Timeout,
		slowFlagName:    &task.Slow,
	}
	for flagName, target := range intTargets {
		value, changed, err := flagutils.IntFlag(command, flagName)
		if err != nil {
			return configuration, err
		}
		if changed {
			*target = value
		}
	}

	boolTargets := map[string]*bool{
		recursiveFlagName: &task.Recursive,
		coverageFlagName:  &task.Coverage,
	}
	for flagName, target := range boolTargets {
		value, changed, err := flagutils.BoolFlag(command, flagName)
		if err != nil {
			return configuration, err
		}
		if changed {
			*target = value
		}
	}

	thresholdTargets := map[string]**float64{
		checkStatementsFlagName: &task.Check.Statements,
		checkLinesFlagName:      &task.Check.Lines,
		checkFunctionsFlagName:  &task.Check.Functions,
		checkBranchesFlagName:   &task.Check.Branches,
	}
	for flagName, target := range thresholdTargets {
		value, changed, err := flagutils.Float64Flag(command, flagName)
		if err != nil {
			return configuration, err
		}
		if changed {
			*target = coverage.Float64(value)
		}
	}

	if len(configuration.CoverageOutput) > 0 || len(configuration.CoverageCommand) > 0 {
		task.Coverage = true
	}

	return configuration.Sanitize(), nil
}

func buildCompletionHandler(command *cobra.Command, configuration CommandConfiguration, executor coverage.ShellExecutor, environment coverage.Environment) coverage.CompletionHandler {
	if !configuration.Task.Coverage {
		return nil
	}

	handlers := coverage.CompletionHandlers{}

	switch configuration.CoverageOutput {
	case "":
	case standardOutputPath:
		handlers = append(handlers, coverage.WriterCompletionHandler{Writer: command.OutOrStdout()})
	default:
		outputPath := environment.Resolve(configuration.CoverageOutput)
		handlers = append(handlers, coverage.CompletionHandlerFunc(func(_ context.Context, report coverage.CoverageReport) error {
			if writeError := os.WriteFile(outputPath, []byte(report.Content), coverageOutputFilePermission); writeError != nil {
				return fmt.Errorf(coverageOutputWriteTemplate, outputPath, writeError)
			}
			return nil
		}))
	}

	if commandFields := strings.Fields(configuration.CoverageCommand); len(commandFields) > 0 {
		streamPolicy := execshell.StreamInherit
		if configuration.Task.Quiet {
			streamPolicy = execshell.StreamSuppress
		}
		handlers = append(handlers, coverage.CommandCompletionHandler{
			Executor:     executor,
			Command:      commandFields[0],
			Arguments:    commandFields[1:],
			Environment:  environment,
			StreamPolicy: streamPolicy,
		})
	}

	if len(handlers) == 0 {
		return nil
	}
	return handlers
}
