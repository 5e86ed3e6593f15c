package cover

import (
	"go.uber.org/zap"

	"github.com/tyemirov/covertask/pkg/taskrunner"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// TaskRunnerExecutor represents a coverage task runner.
type TaskRunnerExecutor = taskrunner.Executor

// TaskRunnerFactory constructs task runners.
type TaskRunnerFactory = taskrunner.Factory
