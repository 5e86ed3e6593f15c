package coverage

import (
	"path/filepath"
)

const (
	nodeModulesDirectoryConstant = "node_modules"
)

var (
	coverageToolRelativePath = filepath.Join("istanbul", "lib", "cli.js")
	testRunnerRelativePath   = filepath.Join("mocha", "bin", "_mocha")
)

// ResolveToolPaths fills unset tool locations. Module scripts are located by walking from the
// working directory toward the filesystem root, checking each node_modules directory on the way.
func ResolveToolPaths(configured ToolPaths, environment Environment, fileSystem FileSystem) ToolPaths {
	fileSystem = resolveFileSystem(fileSystem)
	resolved := configured
	if len(resolved.Runtime) == 0 {
		resolved.Runtime = defaultRuntimeConstant
	}
	if len(resolved.CoverageTool) == 0 {
		resolved.CoverageTool = locateModuleScript(fileSystem, environment.WorkingDirectory, coverageToolRelativePath)
	}
	if len(resolved.TestRunner) == 0 {
		resolved.TestRunner = locateModuleScript(fileSystem, environment.WorkingDirectory, testRunnerRelativePath)
	}
	return resolved
}

func locateModuleScript(fileSystem FileSystem, startDirectory string, relativeScript string) string {
	fallback := filepath.Join(nodeModulesDirectoryConstant, relativeScript)
	if len(startDirectory) == 0 {
		return fallback
	}

	directory := filepath.Clean(startDirectory)
	for {
		candidate := filepath.Join(directory, nodeModulesDirectoryConstant, relativeScript)
		if info, statError := fileSystem.Stat(candidate); statError == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(directory)
		if parent == directory {
			return fallback
		}
		directory = parent
	}
}
