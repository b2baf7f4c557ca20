package flows

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/animus-labs/trialflow/internal/domain"
)

func TestCatalogFlowsBuild(t *testing.T) {
	for _, def := range Catalog() {
		wf, err := def.Build(DefaultSettings())
		if err != nil {
			t.Fatalf("%s: Build() err=%v", def.Name, err)
		}
		if wf.Name != "ADaM_TFL" {
			t.Fatalf("%s: Name=%q, want ADaM_TFL", def.Name, wf.Name)
		}
		if len(wf.Jobs) != 5 {
			t.Fatalf("%s: jobs=%d, want 5", def.Name, len(wf.Jobs))
		}
		if len(wf.Params) != 1 {
			t.Fatalf("%s: params=%d, want a single root input", def.Name, len(wf.Params))
		}
	}
}

func TestLookup(t *testing.T) {
	if _, ok := Lookup(" flow_1.ADaM_TFL "); !ok {
		t.Fatalf("expected flow_1.ADaM_TFL in catalog")
	}
	if _, ok := Lookup("missing"); ok {
		t.Fatalf("unexpected definition for missing")
	}
	names := make([]string, 0)
	for _, def := range Catalog() {
		names = append(names, def.Name)
	}
	if strings.Join(names, ",") != "flow_1.ADaM_TFL,flow_1_prod.ADaM_TFL,workflow.ADaM_TFL" {
		t.Fatalf("Catalog()=%v", names)
	}
}

func TestADaMTFLDependencies(t *testing.T) {
	wf, err := BuildADaMTFL(DefaultSettings())
	if err != nil {
		t.Fatalf("BuildADaMTFL() err=%v", err)
	}
	want := map[string][]string{
		"Create ADSL dataset":    {},
		"Create ADAE dataset":    {"Create ADSL dataset"},
		"Create ADVS dataset":    {"Create ADSL dataset", "Create ADAE dataset"},
		"Create T_AE_REL report": {"Create ADAE dataset"},
		"Create T_VSCAT report":  {"Create ADVS dataset"},
	}
	for _, job := range wf.Jobs {
		got := job.Upstream()
		if strings.Join(got, "|") != strings.Join(want[job.Name], "|") {
			t.Fatalf("%s: Upstream()=%v, want %v", job.Name, got, want[job.Name])
		}
	}
	if wf.Jobs[4].Command != "prod/t_vscat.sas" {
		t.Fatalf("T_VSCAT command=%q", wf.Jobs[4].Command)
	}
	if def, _ := Lookup("workflow.ADaM_TFL"); !strings.Contains(def.Description, wf.Jobs[4].Command) {
		t.Fatalf("description %q should name the T_VSCAT program", def.Description)
	}
	if len(wf.Outputs) != 2 || wf.Outputs[0].Name != "t_ae_rel" || wf.Outputs[1].Name != "t_vscat" {
		t.Fatalf("Outputs=%+v", wf.Outputs)
	}
}

func TestFlow1Collections(t *testing.T) {
	wf, err := BuildFlow1(DefaultSettings())
	if err != nil {
		t.Fatalf("BuildFlow1() err=%v", err)
	}
	cols := wf.Collections()
	if len(cols) != 2 || cols[0].Kind != domain.ArtifactData || cols[1].Kind != domain.ArtifactReport {
		t.Fatalf("Collections()=%+v", cols)
	}
	if got := wf.Producers("TFL Reports"); len(got) != 2 {
		t.Fatalf("Producers(TFL Reports)=%v", got)
	}
	for _, job := range wf.Jobs {
		if !job.Cache.Enabled || job.Cache.Version != "1.0" || !job.UseProjectDefaultsForOmitted {
			t.Fatalf("%s: unexpected execution parameters %+v", job.Name, job)
		}
	}
	if out, _ := wf.Jobs[2].Output("advs_dataset"); out.Filename != "advs.sas7bdat" {
		t.Fatalf("advs output=%+v", out)
	}
}

func TestFlow1ProdPinned(t *testing.T) {
	s := DefaultSettings()
	wf, err := BuildFlow1Prod(s)
	if err != nil {
		t.Fatalf("BuildFlow1Prod() err=%v", err)
	}
	for _, job := range wf.Jobs {
		if job.UseProjectDefaultsForOmitted {
			t.Fatalf("%s: prod jobs must not use project defaults", job.Name)
		}
		if job.MainGitRepoRef == nil || job.MainGitRepoRef.Value != s.Prod.GitRefValue {
			t.Fatalf("%s: git ref=%+v", job.Name, job.MainGitRepoRef)
		}
		if job.VolumeSizeGiB != 10 || job.EnvironmentRevisionID == "" || job.DFSRepoCommitID == "" {
			t.Fatalf("%s: missing pins %+v", job.Name, job)
		}
	}
	if len(wf.Exports) != 1 || wf.Exports[0].Targets[0].DatasetID != "685a8797c7e1254245082ff7" {
		t.Fatalf("Exports=%+v", wf.Exports)
	}

	s.Prod.DFSRepoCommitID = ""
	if _, err := BuildFlow1Prod(s); err == nil || !strings.Contains(err.Error(), "dfs repo commit id") {
		t.Fatalf("expected dfs repo commit id error, got %v", err)
	}
}

func TestLoadSettingsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	content := "hardware_tier: Large\nprod:\n  volume_size_gib: 20\n  cache: true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() err=%v", err)
	}
	if s.HardwareTier != "Large" || s.Prod.VolumeSizeGiB != 20 || !s.Prod.Cache {
		t.Fatalf("overlay not applied: %+v", s)
	}
	if s.SASEnvironment != "SAS Analytics Pro" || s.Prod.CacheVersion != "1.0" {
		t.Fatalf("defaults lost: %+v", s)
	}
}

func TestParseSettingsRejectsUnknownKeys(t *testing.T) {
	s := DefaultSettings()
	if err := ParseSettings([]byte("hardware: Small\n"), &s); err == nil {
		t.Fatalf("expected error for unknown key")
	}
	s = DefaultSettings()
	if err := ParseSettings([]byte("hardware_tier: \"\"\n"), &s); err == nil || !strings.Contains(err.Error(), "hardware_tier") {
		t.Fatalf("expected missing hardware_tier, got %v", err)
	}
}
