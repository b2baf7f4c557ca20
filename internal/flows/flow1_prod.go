package flows

import (
	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/flow"
)

// BuildFlow1Prod declares the reproducible pipeline. Project defaults are not
// used; every execution parameter comes from settings.
func BuildFlow1Prod(s Settings) (domain.Workflow, error) {
	b := flow.New("ADaM_TFL", domain.Param{Name: snapshotParam, Type: domain.String()}).
		Describe("Pinned ADaM and TFL jobs; ADaM datasets exported to a dataset.")

	data := domain.ArtifactCollection{Name: "ADaM Datasets", Kind: domain.ArtifactData}
	reports := domain.ArtifactCollection{Name: "TFL Reports", Kind: domain.ArtifactData}
	p := s.Prod

	declarePipeline(b, pipelineNames{adsl: "adsl", adae: "adae", advs: "advs"}, data, reports,
		func(name, command string, inputs []domain.Input, output domain.Output) domain.JobSpec {
			return domain.JobSpec{
				Name:                  name,
				Command:               command,
				Inputs:                inputs,
				Outputs:               []domain.Output{output},
				EnvironmentName:       s.SASEnvironment,
				EnvironmentRevisionID: p.EnvironmentRevisionID,
				HardwareTier:          s.HardwareTier,
				MainGitRepoRef:        &domain.GitRef{Type: domain.GitRefType(p.GitRefType), Value: p.GitRefValue},
				DatasetSnapshots:      []domain.DatasetSnapshot{},
				ExternalDataVolumes:   []domain.ExternalDataVolume{},
				VolumeSizeGiB:         p.VolumeSizeGiB,
				DFSRepoCommitID:       p.DFSRepoCommitID,
				Cache:                 domain.CachePolicy{Enabled: p.Cache, Version: p.CacheVersion},
			}
		})

	b.Export(domain.ExportSpec{
		Name:                         "Export ADaM Datasets",
		Targets:                      []domain.ExportTarget{{Collection: data.Name, DatasetID: p.ExportDatasetID}},
		EnvironmentName:              s.ExportEnvironment,
		HardwareTier:                 s.HardwareTier,
		UseProjectDefaultsForOmitted: true,
	})
	return b.Build()
}
