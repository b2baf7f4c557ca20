// Package flow builds workflow declarations with ergonomic handles.
//
// A Builder records job declarations in order. Handles returned by Job give
// typed references to declared outputs; mistakes are collected and reported
// together by Build instead of failing at each call site.
package flow

import (
	"fmt"
	"strings"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/execution/specvalidator"
)

type Builder struct {
	wf     domain.Workflow
	issues []string
}

// JobHandle refers to a job declared on a Builder.
type JobHandle struct {
	b    *Builder
	spec domain.JobSpec
}

func New(name string, params ...domain.Param) *Builder {
	return &Builder{
		wf: domain.Workflow{
			Name:   strings.TrimSpace(name),
			Params: append([]domain.Param(nil), params...),
		},
	}
}

// Describe sets the workflow description shown in catalogs.
func (b *Builder) Describe(text string) *Builder {
	b.wf.Description = strings.TrimSpace(text)
	return b
}

// Input returns a binding to the named workflow parameter.
func (b *Builder) Input(name string) domain.Value {
	if _, ok := b.wf.Param(name); !ok {
		b.issues = append(b.issues, fmt.Sprintf("input %q is not a workflow parameter", name))
	}
	return domain.ParamValue(name)
}

// Job registers one job declaration. The spec is copied; later changes to the
// caller's slices do not affect the declaration.
func (b *Builder) Job(spec domain.JobSpec) *JobHandle {
	spec.Inputs = append([]domain.Input(nil), spec.Inputs...)
	spec.Outputs = append([]domain.Output(nil), spec.Outputs...)
	spec.DatasetSnapshots = append([]domain.DatasetSnapshot(nil), spec.DatasetSnapshots...)
	spec.ExternalDataVolumes = append([]domain.ExternalDataVolume(nil), spec.ExternalDataVolumes...)
	if spec.MainGitRepoRef != nil {
		ref := *spec.MainGitRepoRef
		spec.MainGitRepoRef = &ref
	}
	b.wf.Jobs = append(b.wf.Jobs, spec)
	return &JobHandle{b: b, spec: spec}
}

// Export registers a terminal export step.
func (b *Builder) Export(spec domain.ExportSpec) {
	spec.Targets = append([]domain.ExportTarget(nil), spec.Targets...)
	b.wf.Exports = append(b.wf.Exports, spec)
}

// Return exposes an artifact as a named workflow output.
func (b *Builder) Return(name string, ref domain.ArtifactRef) {
	b.wf.Outputs = append(b.wf.Outputs, domain.WorkflowOutput{Name: name, Artifact: ref})
}

// Build validates the declaration and returns it.
func (b *Builder) Build() (domain.Workflow, error) {
	wf := b.wf
	err := specvalidator.ValidateWorkflow(wf)
	if len(b.issues) == 0 {
		if err != nil {
			return domain.Workflow{}, err
		}
		return wf, nil
	}

	merged := &specvalidator.ValidationError{Workflow: wf.Name}
	for _, issue := range b.issues {
		merged.Add(issue)
	}
	if verr, ok := err.(*specvalidator.ValidationError); ok {
		for _, issue := range verr.Issues {
			merged.Add(issue)
		}
	} else if err != nil {
		merged.Add(err.Error())
	}
	return domain.Workflow{}, merged
}

// Output returns a reference to a declared output of the job.
func (h *JobHandle) Output(name string) domain.ArtifactRef {
	if _, ok := h.spec.Output(name); !ok {
		h.b.issues = append(h.b.issues, fmt.Sprintf("job[%s] has no output %q", h.spec.Name, name))
	}
	return domain.ArtifactRef{Job: h.spec.Name, Output: name}
}
