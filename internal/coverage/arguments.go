package coverage

import (
	"path/filepath"
	"strconv"
	"strings"
)

const (
	coverSubcommandConstant          = "cover"
	checkCoverageSubcommandConstant  = "check-coverage"
	argumentSeparatorConstant        = "--"
	directoryArgumentPrefixConstant  = "--dir="
	rootArgumentPrefixConstant       = "--root="
	reportArgumentPrefixConstant     = "--report="
	timeoutArgumentConstant          = "--timeout"
	requireArgumentConstant          = "--require"
	uiArgumentConstant               = "--ui"
	reporterArgumentConstant         = "--reporter"
	globalsArgumentConstant          = "--globals"
	slowArgumentConstant             = "--slow"
	grepArgumentConstant             = "--grep"
	recursiveArgumentConstant        = "--recursive"
	linesArgumentConstant            = "--lines"
	statementsArgumentConstant       = "--statements"
	functionsArgumentConstant        = "--functions"
	branchesArgumentConstant         = "--branches"
	globalsSeparatorConstant         = ","
	currentDirectoryPrefixConstant   = "./"
	currentDirectoryMarkerConstant   = "."
	lcovReportFileNameConstant       = "lcov.info"
	thresholdFormatPrecisionConstant = -1
	thresholdFormatBitSizeConstant   = 64
)

// CoverageFolder returns the absolute directory the coverage tool writes reports into.
func CoverageFolder(configuration CommandConfiguration, environment Environment) string {
	folder := configuration.CoverageFolder
	if len(folder) == 0 {
		folder = defaultCoverageFolderConstant
	}
	return environment.Resolve(folder)
}

// BuildCoverArguments composes the argument vector passed to the runtime for the primary run.
func BuildCoverArguments(configuration CommandConfiguration, tools ToolPaths, environment Environment, sourceDirectory string) []string {
	arguments := []string{
		tools.CoverageTool,
		directoryArgumentPrefixConstant + CoverageFolder(configuration, environment),
	}
	if len(configuration.Root) > 0 {
		arguments = append(arguments, rootArgumentPrefixConstant+environment.Resolve(configuration.Root))
	}
	reportFormats := configuration.ReportFormats
	if len(reportFormats) == 0 {
		reportFormats = []string{defaultReportFormatConstant}
	}
	for _, reportFormat := range reportFormats {
		arguments = append(arguments, reportArgumentPrefixConstant+reportFormat)
	}

	arguments = append(arguments, coverSubcommandConstant, tools.TestRunner, argumentSeparatorConstant)

	if configuration.Timeout > 0 {
		arguments = append(arguments, timeoutArgumentConstant, strconv.Itoa(configuration.Timeout))
	}
	for _, module := range configuration.Require {
		arguments = append(arguments, requireArgumentConstant, module)
	}
	if len(configuration.UI) > 0 {
		arguments = append(arguments, uiArgumentConstant, configuration.UI)
	}
	if len(configuration.Reporter) > 0 {
		arguments = append(arguments, reporterArgumentConstant, configuration.Reporter)
	}
	if len(configuration.Globals) > 0 {
		arguments = append(arguments, globalsArgumentConstant, strings.Join(configuration.Globals, globalsSeparatorConstant))
	}
	if configuration.Slow > 0 {
		arguments = append(arguments, slowArgumentConstant, strconv.Itoa(configuration.Slow))
	}
	if len(configuration.Grep) > 0 {
		arguments = append(arguments, grepArgumentConstant, configuration.Grep)
	}
	if configuration.Recursive {
		arguments = append(arguments, recursiveArgumentConstant)
	}

	return append(arguments, testTarget(sourceDirectory, configuration.Mask))
}

// BuildCheckArguments composes the threshold check vector. The boolean result is false when no
// threshold is configured, in which case no check runs.
func BuildCheckArguments(configuration CommandConfiguration, tools ToolPaths, environment Environment) ([]string, bool) {
	if !configuration.Check.Any() {
		return nil, false
	}

	arguments := []string{tools.CoverageTool, checkCoverageSubcommandConstant}
	thresholds := []struct {
		flag  string
		value *float64
	}{
		{flag: linesArgumentConstant, value: configuration.Check.Lines},
		{flag: statementsArgumentConstant, value: configuration.Check.Statements},
		{flag: functionsArgumentConstant, value: configuration.Check.Functions},
		{flag: branchesArgumentConstant, value: configuration.Check.Branches},
	}
	for _, threshold := range thresholds {
		if threshold.value == nil {
			continue
		}
		arguments = append(arguments, threshold.flag, formatThreshold(*threshold.value))
	}

	return append(arguments, directoryArgumentPrefixConstant+CoverageFolder(configuration, environment)), true
}

// ReportPath returns the location of the lcov report inside the coverage folder.
func ReportPath(configuration CommandConfiguration, environment Environment) string {
	return filepath.Join(CoverageFolder(configuration, environment), lcovReportFileNameConstant)
}

func testTarget(sourceDirectory string, mask string) string {
	if len(mask) == 0 {
		return sourceDirectory
	}
	joined := filepath.Join(sourceDirectory, mask)
	if hasCurrentDirectoryPrefix(sourceDirectory) && !filepath.IsAbs(joined) && !hasCurrentDirectoryPrefix(joined) && joined != currentDirectoryMarkerConstant {
		return currentDirectoryPrefixConstant + joined
	}
	return joined
}

func hasCurrentDirectoryPrefix(path string) bool {
	return strings.HasPrefix(path, currentDirectoryPrefixConstant) ||
		strings.HasPrefix(path, currentDirectoryMarkerConstant+string(filepath.Separator))
}

func formatThreshold(value float64) string {
	return strconv.FormatFloat(value, 'f', thresholdFormatPrecisionConstant, thresholdFormatBitSizeConstant)
}
