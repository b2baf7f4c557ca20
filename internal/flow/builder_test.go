package flow

import (
	"strings"
	"testing"

	"github.com/animus-labs/trialflow/internal/domain"
)

func TestBuilderChainsJobsByReference(t *testing.T) {
	b := New("chain", domain.Param{Name: "root", Type: domain.String()})
	first := b.Job(domain.JobSpec{
		Name:                         "First",
		Command:                      "first.sas",
		Inputs:                       []domain.Input{{Name: "root", Type: domain.String(), Value: b.Input("root")}},
		Outputs:                      []domain.Output{{Name: "out", Type: domain.File("sas7bdat")}},
		UseProjectDefaultsForOmitted: true,
	})
	second := b.Job(domain.JobSpec{
		Name:                         "Second",
		Command:                      "second.sas",
		Inputs:                       []domain.Input{{Name: "in", Type: domain.File("sas7bdat"), Value: first.Output("out").Value()}},
		Outputs:                      []domain.Output{{Name: "report", Type: domain.File("pdf")}},
		UseProjectDefaultsForOmitted: true,
	})
	b.Return("report", second.Output("report"))

	wf, err := b.Build()
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	if len(wf.Jobs) != 2 {
		t.Fatalf("jobs=%d, want 2", len(wf.Jobs))
	}
	if got := wf.Jobs[1].Upstream(); len(got) != 1 || got[0] != "First" {
		t.Fatalf("Upstream()=%v, want [First]", got)
	}
	if wf.Outputs[0].Artifact != (domain.ArtifactRef{Job: "Second", Output: "report"}) {
		t.Fatalf("unexpected workflow output %+v", wf.Outputs[0])
	}
}

func TestBuilderReportsHandleMisuse(t *testing.T) {
	b := New("misuse", domain.Param{Name: "root", Type: domain.String()})
	first := b.Job(domain.JobSpec{
		Name:                         "First",
		Command:                      "first.sas",
		Inputs:                       []domain.Input{{Name: "root", Type: domain.String(), Value: b.Input("rooot")}},
		Outputs:                      []domain.Output{{Name: "out", Type: domain.File("sas7bdat")}},
		UseProjectDefaultsForOmitted: true,
	})
	_ = first.Output("missing")

	_, err := b.Build()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{
		`input "rooot" is not a workflow parameter`,
		`job[First] has no output "missing"`,
		`references unknown param "rooot"`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not contain %q", err.Error(), want)
		}
	}
}

func TestBuilderCopiesSpecs(t *testing.T) {
	b := New("copy")
	outputs := []domain.Output{{Name: "out", Type: domain.File("pdf")}}
	b.Job(domain.JobSpec{Name: "Only", Command: "x.sas", Outputs: outputs, UseProjectDefaultsForOmitted: true})
	outputs[0].Name = "changed"

	wf, err := b.Build()
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	if wf.Jobs[0].Outputs[0].Name != "out" {
		t.Fatalf("declaration mutated through caller slice: %+v", wf.Jobs[0].Outputs)
	}
}
