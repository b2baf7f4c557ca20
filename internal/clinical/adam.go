// Package clinical provides declaration factories for the ADaM/TFL pipeline.
//
// Each factory registers exactly one job on a flow.Builder and returns typed
// references for downstream jobs. Validation is left to Builder.Build.
package clinical

import (
	"fmt"
	"strings"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/flow"
)

const (
	// DatasetFormat is the SAS dataset format of ADaM outputs.
	DatasetFormat = "sas7bdat"
	// ReportFormat is the format of TFL outputs.
	ReportFormat = "pdf"

	sdtmInputName = "sdtm_data_path"
	adamOutput    = "adam"
)

// ADaM is a derived analysis dataset produced by a declared job.
type ADaM struct {
	Filename string
	Data     domain.ArtifactRef
}

type ADaMOptions struct {
	// Name is the dataset name (ADSL, ADAE, ...). It names the job and the file.
	Name    string
	Command string
	// Environment and HardwareTier fall back to the project defaults when empty.
	Environment  string
	HardwareTier string
	SDTMDataPath domain.Value
	Dependencies []ADaM
}

// CreateADaMData declares a job deriving one ADaM dataset from SDTM data and
// any upstream ADaM datasets.
func CreateADaMData(b *flow.Builder, opts ADaMOptions) ADaM {
	inputs := make([]domain.Input, 0, 1+len(opts.Dependencies))
	inputs = append(inputs, domain.Input{
		Name:  sdtmInputName,
		Type:  domain.String(),
		Value: opts.SDTMDataPath,
	})
	inputs = append(inputs, dependencyInputs(opts.Dependencies)...)

	job := b.Job(domain.JobSpec{
		Name:    fmt.Sprintf("Create %s dataset", opts.Name),
		Command: opts.Command,
		Inputs:  inputs,
		Outputs: []domain.Output{
			{Name: adamOutput, Type: domain.File(DatasetFormat)},
		},
		EnvironmentName:              opts.Environment,
		HardwareTier:                 opts.HardwareTier,
		UseProjectDefaultsForOmitted: true,
	})

	return ADaM{
		Filename: strings.ToLower(opts.Name + "." + DatasetFormat),
		Data:     job.Output(adamOutput),
	}
}

func dependencyInputs(deps []ADaM) []domain.Input {
	inputs := make([]domain.Input, 0, len(deps))
	for _, dataset := range deps {
		inputs = append(inputs, domain.Input{
			Name:  dataset.Filename,
			Type:  domain.File(DatasetFormat),
			Value: dataset.Data.Value(),
		})
	}
	return inputs
}
