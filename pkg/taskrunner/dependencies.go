package taskrunner

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/covertask/internal/coverage"
	"github.com/tyemirov/covertask/internal/execshell"
)

// DependenciesConfig captures providers required to build coverage dependencies.
type DependenciesConfig struct {
	LoggerProvider               func() *zap.Logger
	HumanReadableLoggingProvider func() bool
	ShellExecutor                coverage.ShellExecutor
	CommandRunner                execshell.CommandRunner
	FileSystem                   coverage.FileSystem
}

// DependenciesOptions allows per-command overrides when resolving coverage dependencies.
type DependenciesOptions struct {
	Command           *cobra.Command
	Output            io.Writer
	Errors            io.Writer
	CompletionHandler coverage.CompletionHandler
	DisableSummary    bool
}

// DependenciesResult exposes resolved collaborators along with their coverage wrapper.
type DependenciesResult struct {
	Coverage      coverage.Dependencies
	ShellExecutor coverage.ShellExecutor
	FileSystem    coverage.FileSystem
}

// BuildDependencies resolves the shell executor, filesystem, and output writers for coverage runs.
func BuildDependencies(config DependenciesConfig, options DependenciesOptions) (DependenciesResult, error) {
	logger := resolveLogger(config.LoggerProvider)
	humanReadable := false
	if config.HumanReadableLoggingProvider != nil {
		humanReadable = config.HumanReadableLoggingProvider()
	}

	outputWriter := resolveWriter(options.Output, options.Command, true)
	errorWriter := resolveWriter(options.Errors, options.Command, false)

	shellExecutor := config.ShellExecutor
	if shellExecutor == nil {
		commandRunner := config.CommandRunner
		if commandRunner == nil {
			commandRunner = execshell.NewOSCommandRunnerWithWriters(outputWriter, errorWriter)
		}
		constructedExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner, humanReadable)
		if executorError != nil {
			return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.shell_executor: %w", executorError)
		}
		shellExecutor = constructedExecutor
	}

	fileSystem := config.FileSystem
	if fileSystem == nil {
		fileSystem = coverage.OSFileSystem{}
	}

	coverageDependencies := coverage.Dependencies{
		Logger:            logger,
		Executor:          shellExecutor,
		FileSystem:        fileSystem,
		CompletionHandler: options.CompletionHandler,
		Output:            outputWriter,
		Errors:            errorWriter,
		DisableSummary:    options.DisableSummary,
	}

	return DependenciesResult{
		Coverage:      coverageDependencies,
		ShellExecutor: shellExecutor,
		FileSystem:    fileSystem,
	}, nil
}

func resolveLogger(provider func() *zap.Logger) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveWriter(provided io.Writer, command *cobra.Command, useStdout bool) io.Writer {
	if provided != nil {
		return provided
	}
	if command != nil {
		if useStdout {
			if writer := command.OutOrStdout(); writer != nil {
				return writer
			}
		} else {
			if writer := command.ErrOrStderr(); writer != nil {
				return writer
			}
		}
	}
	if useStdout {
		return os.Stdout
	}
	return os.Stderr
}
