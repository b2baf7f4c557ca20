package specvalidator

import (
	"errors"
	"strings"
	"testing"

	"github.com/animus-labs/trialflow/internal/domain"
)

var testDatasets = domain.ArtifactCollection{Name: "ADaM Datasets", Kind: domain.ArtifactData}

func TestValidateWorkflow(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Workflow)
		wantErr string
	}{
		{
			name:   "ok minimal workflow",
			mutate: func(*domain.Workflow) {},
		},
		{
			name: "duplicate job name",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[1].Name = wf.Jobs[0].Name
			},
			wantErr: `duplicate job name "Create ADSL Dataset"`,
		},
		{
			name: "reference to a job declared later",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[0].Inputs = append(wf.Jobs[0].Inputs, domain.Input{
					Name:  "adae",
					Type:  domain.File("sas7bdat"),
					Value: domain.ArtifactRef{Job: "Create ADAE Dataset", Output: "adae"}.Value(),
				})
			},
			wantErr: `references job "Create ADAE Dataset" declared later`,
		},
		{
			name: "reference to an unknown job",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[1].Inputs[1].Value = domain.ArtifactRef{Job: "missing", Output: "adsl"}.Value()
			},
			wantErr: `references unknown job "missing"`,
		},
		{
			name: "reference to an undeclared output",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[1].Inputs[1].Value = domain.ArtifactRef{Job: "Create ADSL Dataset", Output: "nope"}.Value()
			},
			wantErr: "undeclared output Create ADSL Dataset.nope",
		},
		{
			name: "file format mismatch",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[1].Inputs[1].Type = domain.File("pdf")
			},
			wantErr: "type file[pdf] does not match output",
		},
		{
			name: "string input cannot bind an artifact",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[1].Inputs[1].Type = domain.String()
			},
			wantErr: "of type str cannot bind artifact",
		},
		{
			name: "unknown param",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[0].Inputs[0].Value = domain.ParamValue("sdtm_path")
			},
			wantErr: `references unknown param "sdtm_path"`,
		},
		{
			name: "missing value",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[0].Inputs[0].Value = domain.Value{}
			},
			wantErr: "value is required",
		},
		{
			name: "duplicate output name",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[0].Outputs = append(wf.Jobs[0].Outputs, testDatasets.File("adsl", "adsl_v2.sas7bdat"))
			},
			wantErr: `job[Create ADSL Dataset] duplicate output "adsl"`,
		},
		{
			name: "duplicate output name after trimming",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[1].Outputs = append(wf.Jobs[1].Outputs, testDatasets.File(" adae ", "adae_v2.sas7bdat"))
			},
			wantErr: `job[Create ADAE Dataset] duplicate output "adae"`,
		},
		{
			name: "duplicate input name",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[1].Inputs = append(wf.Jobs[1].Inputs, wf.Jobs[1].Inputs[0])
			},
			wantErr: `job[Create ADAE Dataset] duplicate input "sdtm_snapshot_task_input"`,
		},
		{
			name: "duplicate collection file",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[1].Outputs[0] = testDatasets.File("adae", "adsl.sas7bdat")
			},
			wantErr: `file "adsl.sas7bdat" in collection "ADaM Datasets" produced by both`,
		},
		{
			name: "collection kind conflict",
			mutate: func(wf *domain.Workflow) {
				other := domain.ArtifactCollection{Name: testDatasets.Name, Kind: domain.ArtifactReport}
				wf.Jobs[1].Outputs[0] = other.File("adae", "adae.sas7bdat")
			},
			wantErr: "declared as both DATA and REPORT",
		},
		{
			name: "filename does not match type",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[0].Outputs[0].Filename = "adsl.xpt"
			},
			wantErr: `filename "adsl.xpt" does not match type file[sas7bdat]`,
		},
		{
			name: "cache without version",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[0].Cache = domain.CachePolicy{Enabled: true}
			},
			wantErr: "cache version is required",
		},
		{
			name: "pinned job missing parameters",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[0].UseProjectDefaultsForOmitted = false
			},
			wantErr: "environment revision id is required without project defaults",
		},
		{
			name: "invalid git ref",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs[0].MainGitRepoRef = &domain.GitRef{Type: "sha"}
			},
			wantErr: `git ref type "sha" is invalid`,
		},
		{
			name: "export of an unproduced collection",
			mutate: func(wf *domain.Workflow) {
				wf.Exports = []domain.ExportSpec{{
					Name:                         "Export Flow Artifacts",
					Targets:                      []domain.ExportTarget{{Collection: "TFL Reports", DatasetID: "ds-1"}},
					UseProjectDefaultsForOmitted: true,
				}}
			},
			wantErr: `collection "TFL Reports" has no producing job`,
		},
		{
			name: "export node id clash",
			mutate: func(wf *domain.Workflow) {
				wf.Exports = []domain.ExportSpec{{
					Name:                         "create adsl dataset",
					Targets:                      []domain.ExportTarget{{Collection: testDatasets.Name, DatasetID: "ds-1"}},
					UseProjectDefaultsForOmitted: true,
				}}
			},
			wantErr: `map to the same node id "create-adsl-dataset"`,
		},
		{
			name: "workflow output to undeclared artifact",
			mutate: func(wf *domain.Workflow) {
				wf.Outputs = []domain.WorkflowOutput{{Name: "adae", Artifact: domain.ArtifactRef{Job: "Create ADAE Dataset", Output: "missing"}}}
			},
			wantErr: `workflow output "adae" references undeclared output`,
		},
		{
			name: "no jobs",
			mutate: func(wf *domain.Workflow) {
				wf.Jobs = nil
			},
			wantErr: "at least one job",
		},
	}

	for _, tt := range tests {
		wf := minimalWorkflow()
		tt.mutate(&wf)
		err := ValidateWorkflow(wf)
		if tt.wantErr == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.name, err)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%s: expected error containing %q", tt.name, tt.wantErr)
		}
		if !strings.Contains(err.Error(), tt.wantErr) {
			t.Fatalf("%s: error %q does not contain %q", tt.name, err.Error(), tt.wantErr)
		}
	}
}

func TestValidateWorkflowAggregatesIssues(t *testing.T) {
	wf := minimalWorkflow()
	wf.Jobs[0].Command = ""
	wf.Jobs[1].Command = ""

	err := ValidateWorkflow(wf)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", verr.Issues)
	}
	if verr.Workflow != "ADaM_TFL" {
		t.Fatalf("Workflow=%q, want ADaM_TFL", verr.Workflow)
	}
}

func TestCycleDetection(t *testing.T) {
	adj := map[string][]string{"a": {"b"}, "b": {"a"}}
	nodes := map[string]struct{}{"a": {}, "b": {}}
	if !hasCycle(adj, nodes) {
		t.Fatalf("expected cycle")
	}
	adj = map[string][]string{"a": {"b"}, "b": {"c"}}
	nodes["c"] = struct{}{}
	if hasCycle(adj, nodes) {
		t.Fatalf("unexpected cycle")
	}
}

func TestValidateLaunchInputs(t *testing.T) {
	wf := minimalWorkflow()
	if err := ValidateLaunchInputs(wf, map[string]string{"sdtm_dataset_snapshot": "/mnt/data/sdtm-blind"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ValidateLaunchInputs(wf, map[string]string{"other": "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{`input "sdtm_dataset_snapshot" is required`, `unknown input "other"`} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not contain %q", err.Error(), want)
		}
	}
	if err := ValidateLaunchInputs(wf, map[string]string{"sdtm_dataset_snapshot": " "}); err == nil {
		t.Fatalf("expected error for blank input")
	}
}

func minimalWorkflow() domain.Workflow {
	adsl := domain.ArtifactRef{Job: "Create ADSL Dataset", Output: "adsl"}
	return domain.Workflow{
		Name:   "ADaM_TFL",
		Params: []domain.Param{{Name: "sdtm_dataset_snapshot", Type: domain.String()}},
		Jobs: []domain.JobSpec{
			{
				Name:    "Create ADSL Dataset",
				Command: "prod/adam/adsl.sas",
				Inputs: []domain.Input{
					{Name: "sdtm_snapshot_task_input", Type: domain.String(), Value: domain.ParamValue("sdtm_dataset_snapshot")},
				},
				Outputs:                      []domain.Output{testDatasets.File("adsl", "adsl.sas7bdat")},
				EnvironmentName:              "SAS Analytics Pro",
				HardwareTier:                 "Small",
				UseProjectDefaultsForOmitted: true,
			},
			{
				Name:    "Create ADAE Dataset",
				Command: "prod/adam/adae.sas",
				Inputs: []domain.Input{
					{Name: "sdtm_snapshot_task_input", Type: domain.String(), Value: domain.ParamValue("sdtm_dataset_snapshot")},
					{Name: "adsl", Type: domain.File("sas7bdat"), Value: adsl.Value()},
				},
				Outputs:                      []domain.Output{testDatasets.File("adae", "adae.sas7bdat")},
				EnvironmentName:              "SAS Analytics Pro",
				HardwareTier:                 "Small",
				UseProjectDefaultsForOmitted: true,
			},
		},
	}
}
