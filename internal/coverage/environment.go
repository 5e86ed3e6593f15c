package coverage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const environmentAssignmentSeparatorConstant = "="

// ErrWorkingDirectoryUnavailable indicates the process working directory could not be determined.
var ErrWorkingDirectoryUnavailable = errors.New("working directory unavailable")

// Environment carries the process state a task run reads: working directory and environment variables.
type Environment struct {
	WorkingDirectory string
	Variables        map[string]string
}

// EnvironmentFromProcess captures the current process working directory and environment.
func EnvironmentFromProcess() (Environment, error) {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return Environment{}, errors.Join(ErrWorkingDirectoryUnavailable, workingDirectoryError)
	}
	return Environment{
		WorkingDirectory: workingDirectory,
		Variables:        parseEnvironment(os.Environ()),
	}, nil
}

// Resolve returns path unchanged when absolute, otherwise joined onto the working directory.
func (environment Environment) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(environment.WorkingDirectory, path)
}

func parseEnvironment(assignments []string) map[string]string {
	variables := make(map[string]string, len(assignments))
	for _, assignment := range assignments {
		name, value, found := strings.Cut(assignment, environmentAssignmentSeparatorConstant)
		if !found || len(name) == 0 {
			continue
		}
		variables[name] = value
	}
	return variables
}

func cloneVariables(variables map[string]string) map[string]string {
	cloned := make(map[string]string, len(variables))
	for name, value := range variables {
		cloned[name] = value
	}
	return cloned
}
