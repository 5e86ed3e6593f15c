package coverage

import (
	"path/filepath"

	"go.uber.org/zap"
)

const (
	optsFileNameConstant          = "mocha.opts"
	optsOverriddenMessageConstant = "mocha.opts exists, but overwriting with options"
	optsPathLogFieldConstant      = "opts_path"
)

// optsFileOverridden reports the opts file path when one exists in the source directory and
// the configuration sets options it would also provide.
func optsFileOverridden(configuration CommandConfiguration, environment Environment, fileSystem FileSystem, sourceDirectory string) (string, bool) {
	optsPath := filepath.Join(environment.Resolve(sourceDirectory), optsFileNameConstant)
	if _, statError := fileSystem.Stat(optsPath); statError != nil {
		return "", false
	}
	if !configuration.overridesOptsFile() {
		return "", false
	}
	return optsPath, true
}

func warnOptsOverridden(logger *zap.Logger, optsPath string) {
	if logger == nil {
		return
	}
	logger.Warn(optsOverriddenMessageConstant, zap.String(optsPathLogFieldConstant, optsPath))
}
