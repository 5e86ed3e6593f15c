// Package taskrunner hosts the shared abstractions for building and executing covertask
// coverage tasks. It exposes the `Executor` interface plus helpers (`Factory`,
// `Resolve`, `BuildDependencies`) so CLI packages and embedding pipelines can resolve
// coverage.Dependencies once and obtain a runner, while unit tests can swap in fakes.
package taskrunner
