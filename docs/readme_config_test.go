package docs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	covercmd "github.com/tyemirov/covertask/cmd/cli/cover"
)

const (
	documentationFileNameConstant    = "README.md"
	yamlFenceStartConstant           = "```yaml"
	yamlFenceEndConstant             = "```"
	configHeaderMarkerConstant       = "# config.yaml"
	parentDirectoryReferenceConstant = ".."
	coverOperationNameConstant       = "cover"
	missingHeaderMessageConstant     = "README example missing config header marker"
	missingStartFenceMessageConstant = "README example missing yaml fence start"
	missingEndFenceMessageConstant   = "README example missing yaml fence end"
)

type readmeApplicationConfiguration struct {
	Common     map[string]any                 `yaml:"common"`
	Operations []readmeOperationConfiguration `yaml:"operations"`
}

type readmeOperationConfiguration struct {
	Command []string       `yaml:"command"`
	Options map[string]any `yaml:"with"`
}

func readConfigurationSnippet(testInstance *testing.T) string {
	testInstance.Helper()

	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)

	contentBytes, readError := os.ReadFile(filepath.Join(workingDirectory, parentDirectoryReferenceConstant, documentationFileNameConstant))
	require.NoError(testInstance, readError)

	contentText := string(contentBytes)
	headerIndex := strings.Index(contentText, configHeaderMarkerConstant)
	require.NotEqual(testInstance, -1, headerIndex, missingHeaderMessageConstant)

	fenceStartIndex := strings.LastIndex(contentText[:headerIndex], yamlFenceStartConstant)
	require.NotEqual(testInstance, -1, fenceStartIndex, missingStartFenceMessageConstant)

	fenceEndRelativeIndex := strings.Index(contentText[headerIndex:], yamlFenceEndConstant)
	require.NotEqual(testInstance, -1, fenceEndRelativeIndex, missingEndFenceMessageConstant)

	return strings.TrimSpace(contentText[fenceStartIndex+len(yamlFenceStartConstant) : headerIndex+fenceEndRelativeIndex])
}

func TestReadmeConfigurationDecodesCoverOperation(testInstance *testing.T) {
	var applicationConfiguration readmeApplicationConfiguration
	require.NoError(testInstance, yaml.Unmarshal([]byte(readConfigurationSnippet(testInstance)), &applicationConfiguration))

	require.Len(testInstance, applicationConfiguration.Operations, 1)
	operation := applicationConfiguration.Operations[0]
	require.Equal(testInstance, []string{coverOperationNameConstant}, operation.Command)

	configuration := covercmd.DefaultCommandConfiguration()
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           &configuration,
		WeaklyTypedInput: true,
	})
	require.NoError(testInstance, decoderError)
	require.NoError(testInstance, decoder.Decode(operation.Options))

	configuration = configuration.Sanitize()
	require.Equal(testInstance, []string{"should"}, configuration.Task.Require)
	require.Equal(testInstance, 5000, configuration.Task.Timeout)
	require.Equal(testInstance, []string{"lcov", "text-summary"}, configuration.Task.ReportFormats)
	require.NotNil(testInstance, configuration.Task.Check.Lines)
	require.InDelta(testInstance, 80.0, *configuration.Task.Check.Lines, 0.0001)
	require.Nil(testInstance, configuration.Task.Check.Branches)
	require.True(testInstance, configuration.Task.Check.Any())
	require.Equal(testInstance, "coveralls", configuration.CoverageCommand)
	require.Equal(testInstance, "node", configuration.Task.Tools.Runtime)
}
