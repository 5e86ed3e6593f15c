package taskrunner

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tyemirov/covertask/internal/coverage"
)

// Executor runs a coverage task invocation.
type Executor interface {
	Run(ctx context.Context, invocation coverage.Invocation) (coverage.Outcome, error)
}

// Factory constructs an Executor given coverage dependencies.
type Factory func(coverage.Dependencies) Executor

// Resolve returns either the provided factory result or a default coverage runner, wrapped so
// that a summary line is printed after each run.
func Resolve(factory Factory, dependencies coverage.Dependencies) Executor {
	var base Executor
	if factory != nil {
		base = factory(dependencies)
	}
	if base == nil {
		base = coverage.NewRunner(dependencies)
	}
	return summaryExecutor{
		delegate:     base,
		dependencies: dependencies,
	}
}

type summaryExecutor struct {
	delegate     Executor
	dependencies coverage.Dependencies
}

func (executor summaryExecutor) Run(ctx context.Context, invocation coverage.Invocation) (coverage.Outcome, error) {
	outcome, err := executor.delegate.Run(ctx, invocation)
	executor.printSummary(outcome)
	return outcome, err
}

func (executor summaryExecutor) printSummary(outcome coverage.Outcome) {
	if executor.dependencies.DisableSummary {
		return
	}
	writer := executor.summaryWriter()
	if writer == nil {
		return
	}

	summary := RenderSummaryLine(outcome)
	if len(strings.TrimSpace(summary)) == 0 {
		return
	}
	fmt.Fprintln(writer, summary)
}

func (executor summaryExecutor) summaryWriter() io.Writer {
	if executor.dependencies.Errors != nil {
		return executor.dependencies.Errors
	}
	if executor.dependencies.Output != nil {
		return executor.dependencies.Output
	}
	return nil
}
