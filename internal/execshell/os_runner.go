package execshell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const environmentAssignmentTemplateSeparatorConstant = "="

// OSCommandRunner executes commands as operating system child processes.
type OSCommandRunner struct {
	standardOutput io.Writer
	standardError  io.Writer
}

// NewOSCommandRunner builds a runner whose inherited streams are the process's own stdout and stderr.
func NewOSCommandRunner() *OSCommandRunner {
	return NewOSCommandRunnerWithWriters(os.Stdout, os.Stderr)
}

// NewOSCommandRunnerWithWriters builds a runner whose inherited streams are the provided writers.
func NewOSCommandRunnerWithWriters(standardOutput io.Writer, standardError io.Writer) *OSCommandRunner {
	return &OSCommandRunner{standardOutput: standardOutput, standardError: standardError}
}

// Run spawns the command and waits for it to exit.
// A non-zero exit is reported through ExecutionResult.ExitCode; only launch failures are returned as errors.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	processCommand := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	processCommand.Dir = command.Details.WorkingDirectory
	processCommand.Env = buildEnvironment(command.Details.EnvironmentVariables, command.Details.ReplaceEnvironment)
	if len(command.Details.StandardInput) > 0 {
		processCommand.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer

	switch command.Details.StreamPolicy {
	case StreamInherit:
		processCommand.Stdout = runner.standardOutput
		processCommand.Stderr = runner.standardError
		if processCommand.Stdin == nil {
			processCommand.Stdin = os.Stdin
		}
	case StreamSuppress:
	default:
		processCommand.Stdout = &standardOutputBuffer
		processCommand.Stderr = &standardErrorBuffer
	}

	runError := processCommand.Run()
	result := ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
	}
	if runError == nil {
		return result, nil
	}

	var exitError *exec.ExitError
	if errors.As(runError, &exitError) {
		result.ExitCode = exitError.ExitCode()
		return result, nil
	}

	return ExecutionResult{}, runError
}

func buildEnvironment(variables map[string]string, replace bool) []string {
	if !replace && len(variables) == 0 {
		return nil
	}

	merged := make(map[string]string)
	if !replace {
		for _, assignment := range os.Environ() {
			name, value, found := strings.Cut(assignment, environmentAssignmentTemplateSeparatorConstant)
			if !found || len(name) == 0 {
				continue
			}
			merged[name] = value
		}
	}
	for name, value := range variables {
		merged[name] = value
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	assignments := make([]string, 0, len(names))
	for _, name := range names {
		assignments = append(assignments, name+environmentAssignmentTemplateSeparatorConstant+merged[name])
	}
	return assignments
}
