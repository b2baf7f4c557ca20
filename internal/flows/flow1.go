package flows

import (
	"github.com/animus-labs/trialflow/internal/clinical"
	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/flow"
)

const snapshotParam = "sdtm_dataset_snapshot"

// pipelineNames carries the per-flow naming differences of the explicit
// pipeline declarations.
type pipelineNames struct {
	adsl, adae, advs string
}

type jobTemplate func(name, command string, inputs []domain.Input, output domain.Output) domain.JobSpec

// declarePipeline declares the five explicit jobs shared by flow_1 and
// flow_1_prod.
func declarePipeline(b *flow.Builder, names pipelineNames, data, reports domain.ArtifactCollection, job jobTemplate) {
	sdtm := domain.Input{Name: "sdtm_snapshot_task_input", Type: domain.String(), Value: b.Input(snapshotParam)}
	sas := domain.File(clinical.DatasetFormat)

	adsl := b.Job(job("Create ADSL Dataset", "prod/adam/adsl.sas",
		[]domain.Input{sdtm},
		data.File(names.adsl, "adsl.sas7bdat")))
	adslRef := adsl.Output(names.adsl)

	adae := b.Job(job("Create ADAE Dataset", "prod/adam/adae.sas",
		[]domain.Input{
			sdtm,
			{Name: names.adsl, Type: sas, Value: adslRef.Value()},
		},
		data.File(names.adae, "adae.sas7bdat")))
	adaeRef := adae.Output(names.adae)

	advs := b.Job(job("Create ADVS Dataset", "prod/adam/advs.sas",
		[]domain.Input{
			sdtm,
			{Name: names.adsl, Type: sas, Value: adslRef.Value()},
			{Name: names.adae, Type: sas, Value: adaeRef.Value()},
		},
		data.File(names.advs, "advs.sas7bdat")))
	advsRef := advs.Output(names.advs)

	b.Job(job("Create T_AE_REL Report", "prod/tfl/t_ae_rel.sas",
		[]domain.Input{
			{Name: names.adsl, Type: sas, Value: adslRef.Value()},
			{Name: names.adae, Type: sas, Value: adaeRef.Value()},
		},
		reports.File("t_ae_rel", "t_ae_rel.pdf")))

	b.Job(job("Create T_VSCAT Report", "prod/tfl/t_vscat.sas",
		[]domain.Input{
			{Name: names.advs, Type: sas, Value: advsRef.Value()},
		},
		reports.File("t_vscat", "t_vscat.pdf")))
}

// BuildFlow1 declares the explicit pipeline on project defaults with caching.
func BuildFlow1(s Settings) (domain.Workflow, error) {
	b := flow.New("ADaM_TFL", domain.Param{Name: snapshotParam, Type: domain.String()}).
		Describe("Explicit ADaM and TFL jobs; datasets and reports gathered in flow artifacts.")

	data := domain.ArtifactCollection{Name: "ADaM Datasets", Kind: domain.ArtifactData}
	reports := domain.ArtifactCollection{Name: "TFL Reports", Kind: domain.ArtifactReport}

	declarePipeline(b, pipelineNames{adsl: "adsl_dataset", adae: "adae_dataset", advs: "advs_dataset"}, data, reports,
		func(name, command string, inputs []domain.Input, output domain.Output) domain.JobSpec {
			return domain.JobSpec{
				Name:                         name,
				Command:                      command,
				Inputs:                       inputs,
				Outputs:                      []domain.Output{output},
				EnvironmentName:              s.SASEnvironment,
				HardwareTier:                 s.HardwareTier,
				UseProjectDefaultsForOmitted: true,
				Cache:                        domain.CachePolicy{Enabled: true, Version: "1.0"},
			}
		})
	return b.Build()
}
