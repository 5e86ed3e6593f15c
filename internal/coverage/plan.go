package coverage

import (
	"gopkg.in/yaml.v3"
)

type planDocument struct {
	Status  Status          `yaml:"status"`
	Runtime string          `yaml:"runtime"`
	Cover   []string        `yaml:"cover"`
	Check   []string        `yaml:"check,omitempty"`
	Report  *planReportPath `yaml:"report,omitempty"`
}

type planReportPath struct {
	Path  string `yaml:"path"`
	Bytes int    `yaml:"bytes"`
}

// RenderPlan marshals the invocations recorded in outcome as YAML.
func RenderPlan(outcome Outcome) ([]byte, error) {
	document := planDocument{
		Status:  outcome.Status,
		Runtime: outcome.Runtime,
		Cover:   outcome.CoverArguments,
		Check:   outcome.CheckArguments,
	}
	if outcome.Report != nil {
		document.Report = &planReportPath{Path: outcome.Report.Path, Bytes: len(outcome.Report.Content)}
	}
	return yaml.Marshal(document)
}
