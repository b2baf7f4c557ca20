package clinical

import (
	"fmt"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/flow"
)

const reportOutput = "report"

type TFLOptions struct {
	Name         string
	Command      string
	Dependencies []ADaM
	Environment  string
	HardwareTier string
}

// CreateTFLReport declares a job rendering one TFL report from ADaM datasets.
func CreateTFLReport(b *flow.Builder, opts TFLOptions) domain.ArtifactRef {
	job := b.Job(domain.JobSpec{
		Name:    fmt.Sprintf("Create %s report", opts.Name),
		Command: opts.Command,
		Inputs:  dependencyInputs(opts.Dependencies),
		Outputs: []domain.Output{
			{Name: reportOutput, Type: domain.File(ReportFormat)},
		},
		EnvironmentName:              opts.Environment,
		HardwareTier:                 opts.HardwareTier,
		UseProjectDefaultsForOmitted: true,
	})
	return job.Output(reportOutput)
}
