package cover

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/covertask/internal/coverage"
	"github.com/tyemirov/covertask/internal/execshell"
	flagutils "github.com/tyemirov/covertask/internal/utils/flags"
)

type recordingTaskRunner struct {
	dependencies coverage.Dependencies
	invocation   coverage.Invocation
}

func (runner *recordingTaskRunner) Run(_ context.Context, invocation coverage.Invocation) (coverage.Outcome, error) {
	runner.invocation = invocation
	return coverage.Outcome{Status: coverage.StatusSucceeded}, nil
}

type recordingShellExecutor struct {
	commands []execshell.ShellCommand
}

func (executor *recordingShellExecutor) Execute(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	executor.commands = append(executor.commands, command)
	return execshell.ExecutionResult{}, nil
}

func newTestCommand(t *testing.T, builder *CommandBuilder, arguments ...string) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	command, err := builder.Build()
	require.NoError(t, err)
	flagutils.BindExecutionFlags(command, flagutils.ExecutionDefaults{}, flagutils.ExecutionFlagDefinitions{
		DryRun: flagutils.ExecutionFlagDefinition{Name: flagutils.DryRunFlagName, Usage: flagutils.DryRunFlagUsage, Enabled: true},
		Quiet:  flagutils.ExecutionFlagDefinition{Name: flagutils.QuietFlagName, Usage: flagutils.QuietFlagUsage, Shorthand: flagutils.QuietFlagShorthand, Enabled: true},
	})
	output := &bytes.Buffer{}
	errorsBuffer := &bytes.Buffer{}
	command.SetOut(output)
	command.SetErr(errorsBuffer)
	command.SetArgs(arguments)
	command.SetContext(context.Background())
	return command, output, errorsBuffer
}

func newTestWorkspace(t *testing.T) coverage.Environment {
	t.Helper()
	workingDirectory := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workingDirectory, "test"), 0o755))
	return coverage.Environment{WorkingDirectory: workingDirectory, Variables: map[string]string{"PATH": "/usr/bin"}}
}

func TestCommandUsageIncludesSourcePlaceholder(t *testing.T) {
	builder := CommandBuilder{}
	command, err := builder.Build()
	require.NoError(t, err)
	require.Contains(t, command.Use, "<source-directory>")
	require.NotNil(t, command.Flags().Lookup(checkLinesFlagName))
	require.NotNil(t, command.Flags().Lookup(coverageOutputFlagName))
}

func TestCommandFlagsOverrideConfiguration(t *testing.T) {
	environment := newTestWorkspace(t)
	runner := &recordingTaskRunner{}
	builder := &CommandBuilder{
		LoggerProvider: func() *zap.Logger { return zap.NewNop() },
		ConfigurationProvider: func() CommandConfiguration {
			configuration := DefaultCommandConfiguration()
			configuration.Task.Reporter = "dot"
			configuration.Task.UI = "tdd"
			configuration.Task.Check.Statements = coverage.Float64(50)
			return configuration
		},
		ShellExecutor:       &recordingShellExecutor{},
		EnvironmentProvider: func() (coverage.Environment, error) { return environment, nil },
		TaskRunnerFactory: func(dependencies coverage.Dependencies) TaskRunnerExecutor {
			runner.dependencies = dependencies
			return runner
		},
	}

	command, _, _ := newTestCommand(t, builder,
		"./test",
		"--reporter", "spec",
		"--require", "should",
		"--require", "./setup.js",
		"--timeout", "3000",
		"--check-lines", "80",
		"--mask", "**/*.spec.js",
		"--dry-run",
		"--quiet",
	)
	require.NoError(t, command.Execute())

	task := runner.invocation.Configuration
	require.Equal(t, []string{"./test"}, runner.invocation.SourcePaths)
	require.Equal(t, environment, runner.invocation.Environment)
	require.Equal(t, "spec", task.Reporter)
	require.Equal(t, "tdd", task.UI)
	require.Equal(t, []string{"should", "./setup.js"}, task.Require)
	require.Equal(t, 3000, task.Timeout)
	require.Equal(t, "**/*.spec.js", task.Mask)
	require.NotNil(t, task.Check.Lines)
	require.InDelta(t, 80, *task.Check.Lines, 0)
	require.NotNil(t, task.Check.Statements)
	require.InDelta(t, 50, *task.Check.Statements, 0)
	require.True(t, task.DryRun)
	require.True(t, task.Quiet)
	require.False(t, task.Coverage)
	require.Nil(t, runner.dependencies.CompletionHandler)
}

func TestCommandDryRunPrintsPlannedInvocations(t *testing.T) {
	environment := newTestWorkspace(t)
	executor := &recordingShellExecutor{}
	builder := &CommandBuilder{
		ShellExecutor:       executor,
		EnvironmentProvider: func() (coverage.Environment, error) { return environment, nil },
	}

	command, output, errorsBuffer := newTestCommand(t, builder, "./test", "--dry-run", "--check-lines", "80", "--istanbul", "cli.js", "--mocha", "_mocha")
	require.NoError(t, command.Execute())

	require.Empty(t, executor.commands)
	require.Contains(t, output.String(), "Would execute: node cli.js --dir="+filepath.Join(environment.WorkingDirectory, "coverage")+" --report=lcov cover _mocha -- ./test")
	require.Contains(t, output.String(), "Would also execute post cover: node cli.js check-coverage --lines 80")
	require.Contains(t, errorsBuffer.String(), "Summary: status=dry-run check=planned")
}

func TestCommandRendersYAMLPlan(t *testing.T) {
	environment := newTestWorkspace(t)
	builder := &CommandBuilder{
		ShellExecutor:       &recordingShellExecutor{},
		EnvironmentProvider: func() (coverage.Environment, error) { return environment, nil },
	}

	command, output, _ := newTestCommand(t, builder, "./test", "--dry-run", "--plan-format", "yaml", "--istanbul", "cli.js", "--mocha", "_mocha")
	require.NoError(t, command.Execute())

	var plan map[string]any
	require.NoError(t, yaml.Unmarshal(output.Bytes(), &plan))
	require.Equal(t, "dry-run", plan["status"])
	require.Equal(t, "node", plan["runtime"])
	require.NotContains(t, output.String(), "Would execute")
}

func TestCommandRejectsUnknownPlanFormat(t *testing.T) {
	builder := &CommandBuilder{ShellExecutor: &recordingShellExecutor{}}
	command, _, _ := newTestCommand(t, builder, "./test", "--plan-format", "json")
	require.ErrorContains(t, command.Execute(), "unsupported plan format")
}

func TestCommandWritesCoverageOutputAndPipesCommand(t *testing.T) {
	environment := newTestWorkspace(t)
	reportContent := "SF:lib/index.js\nend_of_record\n"
	require.NoError(t, os.MkdirAll(filepath.Join(environment.WorkingDirectory, "coverage"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(environment.WorkingDirectory, "coverage", "lcov.info"), []byte(reportContent), 0o644))

	executor := &recordingShellExecutor{}
	builder := &CommandBuilder{
		ShellExecutor:       executor,
		EnvironmentProvider: func() (coverage.Environment, error) { return environment, nil },
	}

	command, output, _ := newTestCommand(t, builder,
		"test",
		"--istanbul", "cli.js",
		"--mocha", "_mocha",
		"--coverage-output", "lcov-copy.info",
		"--coverage-command", "coveralls --verbose",
	)
	require.NoError(t, command.Execute())

	written, readError := os.ReadFile(filepath.Join(environment.WorkingDirectory, "lcov-copy.info"))
	require.NoError(t, readError)
	require.Equal(t, reportContent, string(written))

	require.Len(t, executor.commands, 2)
	require.Equal(t, execshell.CommandName("node"), executor.commands[0].Name)
	pipe := executor.commands[1]
	require.Equal(t, execshell.CommandName("coveralls"), pipe.Name)
	require.Equal(t, []string{"--verbose"}, pipe.Details.Arguments)
	require.Equal(t, []byte(reportContent), pipe.Details.StandardInput)
	require.Contains(t, output.String(), "Done. Check coverage folder.")
}

func TestCommandFailsForMissingSourceDirectory(t *testing.T) {
	environment := newTestWorkspace(t)
	executor := &recordingShellExecutor{}
	builder := &CommandBuilder{
		ShellExecutor:       executor,
		EnvironmentProvider: func() (coverage.Environment, error) { return environment, nil },
	}

	command, _, _ := newTestCommand(t, builder, "missing")
	executionError := command.Execute()
	require.ErrorIs(t, executionError, coverage.ErrSourceDirectoryMissing)
	require.Empty(t, executor.commands)
}

func TestCommandStandardOutputReport(t *testing.T) {
	environment := newTestWorkspace(t)
	require.NoError(t, os.MkdirAll(filepath.Join(environment.WorkingDirectory, "coverage"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(environment.WorkingDirectory, "coverage", "lcov.info"), []byte("TN:\n"), 0o644))

	builder := &CommandBuilder{
		ShellExecutor:       &recordingShellExecutor{},
		EnvironmentProvider: func() (coverage.Environment, error) { return environment, nil },
	}
	command, output, _ := newTestCommand(t, builder, "test", "--istanbul", "cli.js", "--mocha", "_mocha", "--coverage-output", "-")
	require.NoError(t, command.Execute())
	require.Contains(t, output.String(), "TN:\n")
}

func TestCommandWarnsWhenOptsFileIsOverridden(t *testing.T) {
	testCases := []struct {
		name       string
		arguments  []string
		planOutput bool
	}{
		{name: "text", arguments: []string{"./test", "--reporter", "spec", "--dry-run"}},
		{name: "yaml plan", arguments: []string{"./test", "--reporter", "spec", "--dry-run", "--plan-format", "yaml"}, planOutput: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			environment := newTestWorkspace(t)
			require.NoError(t, os.WriteFile(filepath.Join(environment.WorkingDirectory, "test", "mocha.opts"), []byte("--reporter dot\n"), 0o644))
			builder := &CommandBuilder{
				ShellExecutor:       &recordingShellExecutor{},
				EnvironmentProvider: func() (coverage.Environment, error) { return environment, nil },
			}

			command, output, errorsBuffer := newTestCommand(t, builder, testCase.arguments...)
			require.NoError(t, command.Execute())

			require.Contains(t, errorsBuffer.String(), "mocha.opts exists, but overwriting with options")
			require.NotContains(t, output.String(), "mocha.opts exists")
			if testCase.planOutput {
				var plan map[string]any
				require.NoError(t, yaml.Unmarshal(output.Bytes(), &plan))
			}
		})
	}
}
