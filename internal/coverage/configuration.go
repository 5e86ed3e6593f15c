package coverage

import (
	"strings"
)

const (
	defaultCoverageFolderConstant = "coverage"
	defaultReportFormatConstant   = "lcov"
	defaultRuntimeConstant        = "node"
)

// Thresholds holds optional minimum coverage percentages enforced after the primary run.
// A nil field is unset.
type Thresholds struct {
	Statements *float64 `mapstructure:"statements"`
	Lines      *float64 `mapstructure:"lines"`
	Functions  *float64 `mapstructure:"functions"`
	Branches   *float64 `mapstructure:"branches"`
}

// Any reports whether at least one threshold is configured.
func (thresholds Thresholds) Any() bool {
	return thresholds.Statements != nil || thresholds.Lines != nil || thresholds.Functions != nil || thresholds.Branches != nil
}

// ToolPaths locates the executables composed by the task.
type ToolPaths struct {
	Runtime      string `mapstructure:"runtime"`
	CoverageTool string `mapstructure:"coverage_tool"`
	TestRunner   string `mapstructure:"test_runner"`
}

// CommandConfiguration is the invocation configuration for a single coverage task run.
type CommandConfiguration struct {
	Require        []string   `mapstructure:"require"`
	UI             string     `mapstructure:"ui"`
	Globals        []string   `mapstructure:"globals"`
	Reporter       string     `mapstructure:"reporter"`
	Timeout        int        `mapstructure:"timeout"`
	Coverage       bool       `mapstructure:"coverage"`
	Slow           int        `mapstructure:"slow"`
	Grep           string     `mapstructure:"grep"`
	DryRun         bool       `mapstructure:"dry_run"`
	Quiet          bool       `mapstructure:"quiet"`
	Recursive      bool       `mapstructure:"recursive"`
	Mask           string     `mapstructure:"mask"`
	Root           string     `mapstructure:"root"`
	CoverageFolder string     `mapstructure:"coverage_folder"`
	ReportFormats  []string   `mapstructure:"report_formats"`
	Check          Thresholds `mapstructure:"check"`
	Tools          ToolPaths  `mapstructure:"tools"`
}

// DefaultCommandConfiguration returns the baseline configuration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		CoverageFolder: defaultCoverageFolderConstant,
		ReportFormats:  []string{defaultReportFormatConstant},
	}
}

// Sanitize trims textual values, drops blank list entries, and restores defaults for required fields.
// Grep is a pattern and is kept verbatim.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Require = compactValues(configuration.Require)
	sanitized.Globals = compactValues(configuration.Globals)
	sanitized.ReportFormats = compactValues(configuration.ReportFormats)
	if len(sanitized.ReportFormats) == 0 {
		sanitized.ReportFormats = []string{defaultReportFormatConstant}
	}
	sanitized.UI = strings.TrimSpace(configuration.UI)
	sanitized.Reporter = strings.TrimSpace(configuration.Reporter)
	sanitized.Mask = strings.TrimSpace(configuration.Mask)
	sanitized.Root = strings.TrimSpace(configuration.Root)
	sanitized.CoverageFolder = strings.TrimSpace(configuration.CoverageFolder)
	if len(sanitized.CoverageFolder) == 0 {
		sanitized.CoverageFolder = defaultCoverageFolderConstant
	}
	if sanitized.Timeout < 0 {
		sanitized.Timeout = 0
	}
	if sanitized.Slow < 0 {
		sanitized.Slow = 0
	}
	sanitized.Tools = ToolPaths{
		Runtime:      strings.TrimSpace(configuration.Tools.Runtime),
		CoverageTool: strings.TrimSpace(configuration.Tools.CoverageTool),
		TestRunner:   strings.TrimSpace(configuration.Tools.TestRunner),
	}
	return sanitized
}

// overridesOptsFile reports whether any option that a mocha.opts file could also set is configured.
func (configuration CommandConfiguration) overridesOptsFile() bool {
	return len(configuration.Require) > 0 ||
		len(configuration.Globals) > 0 ||
		len(configuration.UI) > 0 ||
		len(configuration.Reporter) > 0 ||
		configuration.Timeout > 0 ||
		configuration.Slow > 0 ||
		len(configuration.Grep) > 0 ||
		len(configuration.Mask) > 0
}

func compactValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	compacted := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if len(trimmed) == 0 {
			continue
		}
		compacted = append(compacted, trimmed)
	}
	if len(compacted) == 0 {
		return nil
	}
	return compacted
}

// Float64 returns a pointer to value, for populating Thresholds.
func Float64(value float64) *float64 {
	return &value
}
