package cover

import (
	"strings"

	"github.com/tyemirov/covertask/internal/coverage"
)

const (
	planFormatText         = "text"
	planFormatYAML         = "yaml"
	standardOutputPath     = "-"
	defaultPlanFormatValue = planFormatText
)

// CommandConfiguration captures the cover operation defaults read from the configuration file.
type CommandConfiguration struct {
	Task            coverage.CommandConfiguration `mapstructure:",squash"`
	CoverageOutput  string                        `mapstructure:"coverage_output"`
	CoverageCommand string                        `mapstructure:"coverage_command"`
	PlanFormat      string                        `mapstructure:"plan_format"`
}

// DefaultCommandConfiguration provides baseline configuration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Task:       coverage.DefaultCommandConfiguration(),
		PlanFormat: defaultPlanFormatValue,
	}
}

// Sanitize normalizes configuration values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Task = configuration.Task.Sanitize()
	sanitized.CoverageOutput = strings.TrimSpace(configuration.CoverageOutput)
	sanitized.CoverageCommand = strings.TrimSpace(configuration.CoverageCommand)

	planFormat := strings.ToLower(strings.TrimSpace(configuration.PlanFormat))
	if planFormat == "" {
		planFormat = defaultPlanFormatValue
	}
	sanitized.PlanFormat = planFormat

	return sanitized
}
