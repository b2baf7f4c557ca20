package plan

import (
	"encoding/json"
	"fmt"

	"github.com/animus-labs/trialflow/internal/domain"
)

// MarshalDefinition serializes a plan into the workflow definition submitted to
// the orchestration platform and persisted in the ledger.
func MarshalDefinition(plan domain.ExecutionPlan) ([]byte, error) {
	return json.Marshal(definitionFromPlan(plan))
}

// UnmarshalDefinition parses a persisted definition into an execution plan.
func UnmarshalDefinition(raw []byte) (domain.ExecutionPlan, error) {
	var payload definitionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.ExecutionPlan{}, err
	}

	params := make([]domain.Param, 0, len(payload.Params))
	for _, p := range payload.Params {
		typ, err := domain.ParseValueType(p.Type)
		if err != nil {
			return domain.ExecutionPlan{}, fmt.Errorf("param %s: %w", p.Name, err)
		}
		params = append(params, domain.Param{Name: p.Name, Type: typ})
	}

	nodes := make([]domain.PlanNode, 0, len(payload.Nodes))
	for _, n := range payload.Nodes {
		node := domain.PlanNode{
			ID:       n.ID,
			Name:     n.Name,
			Kind:     domain.NodeKind(n.Kind),
			Stage:    n.Stage,
			Upstream: append([]string{}, n.Upstream...),
		}
		if n.Job != nil {
			job, err := jobFromPayload(n.Name, *n.Job)
			if err != nil {
				return domain.ExecutionPlan{}, fmt.Errorf("node %s: %w", n.ID, err)
			}
			node.Job = &job
		}
		if n.Export != nil {
			export := exportFromPayload(n.Name, *n.Export)
			node.Export = &export
		}
		nodes = append(nodes, node)
	}

	edges := make([]domain.PlanEdge, 0, len(payload.Edges))
	for _, e := range payload.Edges {
		edges = append(edges, domain.PlanEdge{From: e.From, To: e.To})
	}
	outputs := make([]domain.PlanOutput, 0, len(payload.Outputs))
	for _, o := range payload.Outputs {
		outputs = append(outputs, domain.PlanOutput{Name: o.Name, Node: o.Node, Output: o.Output})
	}

	return domain.ExecutionPlan{
		Workflow:    payload.Workflow,
		Description: payload.Description,
		SpecHash:    payload.SpecHash,
		Params:      params,
		Nodes:       nodes,
		Edges:       edges,
		Outputs:     outputs,
	}, nil
}

type definitionPayload struct {
	Workflow    string          `json:"workflow" yaml:"workflow"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	SpecHash    string          `json:"specHash,omitempty" yaml:"specHash,omitempty"`
	Params      []paramPayload  `json:"params" yaml:"params"`
	Nodes       []nodePayload   `json:"nodes" yaml:"nodes"`
	Edges       []edgePayload   `json:"edges" yaml:"edges"`
	Outputs     []outputPayload `json:"outputs" yaml:"outputs"`
}

type paramPayload struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

type nodePayload struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	Kind     string         `json:"kind" yaml:"kind"`
	Stage    int            `json:"stage" yaml:"stage"`
	Upstream []string       `json:"upstream" yaml:"upstream"`
	Job      *jobPayload    `json:"job,omitempty" yaml:"job,omitempty"`
	Export   *exportPayload `json:"export,omitempty" yaml:"export,omitempty"`
}

type jobPayload struct {
	Command                      string                      `json:"command" yaml:"command"`
	Inputs                       []inputPayload              `json:"inputs" yaml:"inputs"`
	Outputs                      []jobOutputPayload          `json:"outputs" yaml:"outputs"`
	EnvironmentName              string                      `json:"environmentName,omitempty" yaml:"environmentName,omitempty"`
	EnvironmentRevisionID        string                      `json:"environmentRevisionId,omitempty" yaml:"environmentRevisionId,omitempty"`
	HardwareTier                 string                      `json:"hardwareTierName,omitempty" yaml:"hardwareTierName,omitempty"`
	MainGitRepoRef               *gitRefPayload              `json:"mainGitRepoRef,omitempty" yaml:"mainGitRepoRef,omitempty"`
	DatasetSnapshots             []datasetSnapshotPayload    `json:"datasetSnapshots" yaml:"datasetSnapshots"`
	ExternalDataVolumes          []externalDataVolumePayload `json:"externalDataVolumes" yaml:"externalDataVolumes"`
	VolumeSizeGiB                int                         `json:"volumeSizeGiB,omitempty" yaml:"volumeSizeGiB,omitempty"`
	DFSRepoCommitID              string                      `json:"dfsRepoCommitId,omitempty" yaml:"dfsRepoCommitId,omitempty"`
	UseProjectDefaultsForOmitted bool                        `json:"useProjectDefaultsForOmitted" yaml:"useProjectDefaultsForOmitted"`
	Cache                        bool                        `json:"cache" yaml:"cache"`
	CacheVersion                 string                      `json:"cacheVersion,omitempty" yaml:"cacheVersion,omitempty"`
}

type inputPayload struct {
	Name  string       `json:"name" yaml:"name"`
	Type  string       `json:"type" yaml:"type"`
	Value valuePayload `json:"value" yaml:"value"`
}

type valuePayload struct {
	Kind    string `json:"kind" yaml:"kind"`
	Literal string `json:"literal,omitempty" yaml:"literal,omitempty"`
	Param   string `json:"param,omitempty" yaml:"param,omitempty"`
	Node    string `json:"node,omitempty" yaml:"node,omitempty"`
	Job     string `json:"job,omitempty" yaml:"job,omitempty"`
	Output  string `json:"output,omitempty" yaml:"output,omitempty"`
}

type jobOutputPayload struct {
	Name       string             `json:"name" yaml:"name"`
	Type       string             `json:"type" yaml:"type"`
	Filename   string             `json:"filename,omitempty" yaml:"filename,omitempty"`
	Collection *collectionPayload `json:"artifact,omitempty" yaml:"artifact,omitempty"`
}

type collectionPayload struct {
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind" yaml:"kind"`
}

type gitRefPayload struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

type datasetSnapshotPayload struct {
	DatasetID string `json:"datasetId" yaml:"datasetId"`
	Version   int    `json:"version" yaml:"version"`
}

type externalDataVolumePayload struct {
	ID string `json:"id" yaml:"id"`
}

type exportPayload struct {
	Targets                      []exportTargetPayload `json:"targets" yaml:"targets"`
	EnvironmentName              string                `json:"environmentName,omitempty" yaml:"environmentName,omitempty"`
	HardwareTier                 string                `json:"hardwareTierName,omitempty" yaml:"hardwareTierName,omitempty"`
	UseProjectDefaultsForOmitted bool                  `json:"useProjectDefaultsForOmitted" yaml:"useProjectDefaultsForOmitted"`
}

type exportTargetPayload struct {
	Artifact  string `json:"artifact" yaml:"artifact"`
	DatasetID string `json:"datasetId" yaml:"datasetId"`
}

type edgePayload struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

type outputPayload struct {
	Name   string `json:"name" yaml:"name"`
	Node   string `json:"node" yaml:"node"`
	Output string `json:"output" yaml:"output"`
}

func definitionFromPlan(plan domain.ExecutionPlan) definitionPayload {
	payload := definitionPayload{
		Workflow:    plan.Workflow,
		Description: plan.Description,
		SpecHash:    plan.SpecHash,
		Params:      make([]paramPayload, 0, len(plan.Params)),
		Nodes:       make([]nodePayload, 0, len(plan.Nodes)),
		Edges:       make([]edgePayload, 0, len(plan.Edges)),
		Outputs:     make([]outputPayload, 0, len(plan.Outputs)),
	}
	for _, p := range plan.Params {
		payload.Params = append(payload.Params, paramPayload{Name: p.Name, Type: p.Type.String()})
	}
	for _, n := range plan.Nodes {
		node := nodePayload{
			ID:       n.ID,
			Name:     n.Name,
			Kind:     string(n.Kind),
			Stage:    n.Stage,
			Upstream: append([]string{}, n.Upstream...),
		}
		if n.Job != nil {
			job := jobPayloadFromDomain(*n.Job)
			node.Job = &job
		}
		if n.Export != nil {
			export := exportPayloadFromDomain(*n.Export)
			node.Export = &export
		}
		payload.Nodes = append(payload.Nodes, node)
	}
	for _, e := range plan.Edges {
		payload.Edges = append(payload.Edges, edgePayload{From: e.From, To: e.To})
	}
	for _, o := range plan.Outputs {
		payload.Outputs = append(payload.Outputs, outputPayload{Name: o.Name, Node: o.Node, Output: o.Output})
	}
	return payload
}

func jobPayloadFromDomain(job domain.JobSpec) jobPayload {
	payload := jobPayload{
		Command:                      job.Command,
		Inputs:                       make([]inputPayload, 0, len(job.Inputs)),
		Outputs:                      make([]jobOutputPayload, 0, len(job.Outputs)),
		EnvironmentName:              job.EnvironmentName,
		EnvironmentRevisionID:        job.EnvironmentRevisionID,
		HardwareTier:                 job.HardwareTier,
		DatasetSnapshots:             make([]datasetSnapshotPayload, 0, len(job.DatasetSnapshots)),
		ExternalDataVolumes:          make([]externalDataVolumePayload, 0, len(job.ExternalDataVolumes)),
		VolumeSizeGiB:                job.VolumeSizeGiB,
		DFSRepoCommitID:              job.DFSRepoCommitID,
		UseProjectDefaultsForOmitted: job.UseProjectDefaultsForOmitted,
		Cache:                        job.Cache.Enabled,
		CacheVersion:                 job.Cache.Version,
	}
	for _, in := range job.Inputs {
		payload.Inputs = append(payload.Inputs, inputPayload{
			Name:  in.Name,
			Type:  in.Type.String(),
			Value: valuePayloadFromDomain(in.Value),
		})
	}
	for _, out := range job.Outputs {
		o := jobOutputPayload{Name: out.Name, Type: out.Type.String(), Filename: out.Filename}
		if out.Collection != nil {
			o.Collection = &collectionPayload{Name: out.Collection.Name, Kind: string(out.Collection.Kind)}
		}
		payload.Outputs = append(payload.Outputs, o)
	}
	if job.MainGitRepoRef != nil {
		payload.MainGitRepoRef = &gitRefPayload{Type: string(job.MainGitRepoRef.Type), Value: job.MainGitRepoRef.Value}
	}
	for _, snap := range job.DatasetSnapshots {
		payload.DatasetSnapshots = append(payload.DatasetSnapshots, datasetSnapshotPayload{DatasetID: snap.DatasetID, Version: snap.Version})
	}
	for _, vol := range job.ExternalDataVolumes {
		payload.ExternalDataVolumes = append(payload.ExternalDataVolumes, externalDataVolumePayload{ID: vol.ID})
	}
	return payload
}

// valuePayloadFromDomain carries both the declared job name and its node id for
// artifact bindings; the platform resolves by node id.
func valuePayloadFromDomain(v domain.Value) valuePayload {
	switch v.Kind {
	case domain.ValueArtifact:
		return valuePayload{
			Kind:   string(v.Kind),
			Node:   domain.NodeID(v.Artifact.Job),
			Job:    v.Artifact.Job,
			Output: v.Artifact.Output,
		}
	case domain.ValueParam:
		return valuePayload{Kind: string(v.Kind), Param: v.Param}
	default:
		return valuePayload{Kind: string(v.Kind), Literal: v.Literal}
	}
}

func jobFromPayload(name string, payload jobPayload) (domain.JobSpec, error) {
	job := domain.JobSpec{
		Name:                         name,
		Command:                      payload.Command,
		Inputs:                       make([]domain.Input, 0, len(payload.Inputs)),
		Outputs:                      make([]domain.Output, 0, len(payload.Outputs)),
		EnvironmentName:              payload.EnvironmentName,
		EnvironmentRevisionID:        payload.EnvironmentRevisionID,
		HardwareTier:                 payload.HardwareTier,
		DatasetSnapshots:             make([]domain.DatasetSnapshot, 0, len(payload.DatasetSnapshots)),
		ExternalDataVolumes:          make([]domain.ExternalDataVolume, 0, len(payload.ExternalDataVolumes)),
		VolumeSizeGiB:                payload.VolumeSizeGiB,
		DFSRepoCommitID:              payload.DFSRepoCommitID,
		UseProjectDefaultsForOmitted: payload.UseProjectDefaultsForOmitted,
		Cache:                        domain.CachePolicy{Enabled: payload.Cache, Version: payload.CacheVersion},
	}
	for _, in := range payload.Inputs {
		typ, err := domain.ParseValueType(in.Type)
		if err != nil {
			return domain.JobSpec{}, fmt.Errorf("input %s: %w", in.Name, err)
		}
		job.Inputs = append(job.Inputs, domain.Input{Name: in.Name, Type: typ, Value: valueFromPayload(in.Value)})
	}
	for _, out := range payload.Outputs {
		typ, err := domain.ParseValueType(out.Type)
		if err != nil {
			return domain.JobSpec{}, fmt.Errorf("output %s: %w", out.Name, err)
		}
		o := domain.Output{Name: out.Name, Type: typ, Filename: out.Filename}
		if out.Collection != nil {
			o.Collection = &domain.ArtifactCollection{Name: out.Collection.Name, Kind: domain.ArtifactKind(out.Collection.Kind)}
		}
		job.Outputs = append(job.Outputs, o)
	}
	if payload.MainGitRepoRef != nil {
		job.MainGitRepoRef = &domain.GitRef{Type: domain.GitRefType(payload.MainGitRepoRef.Type), Value: payload.MainGitRepoRef.Value}
	}
	for _, snap := range payload.DatasetSnapshots {
		job.DatasetSnapshots = append(job.DatasetSnapshots, domain.DatasetSnapshot{DatasetID: snap.DatasetID, Version: snap.Version})
	}
	for _, vol := range payload.ExternalDataVolumes {
		job.ExternalDataVolumes = append(job.ExternalDataVolumes, domain.ExternalDataVolume{ID: vol.ID})
	}
	return job, nil
}

func valueFromPayload(v valuePayload) domain.Value {
	switch domain.BindingKind(v.Kind) {
	case domain.ValueArtifact:
		return domain.ArtifactRef{Job: v.Job, Output: v.Output}.Value()
	case domain.ValueParam:
		return domain.ParamValue(v.Param)
	case domain.ValueLiteral:
		return domain.Literal(v.Literal)
	default:
		return domain.Value{}
	}
}

func exportPayloadFromDomain(export domain.ExportSpec) exportPayload {
	payload := exportPayload{
		Targets:                      make([]exportTargetPayload, 0, len(export.Targets)),
		EnvironmentName:              export.EnvironmentName,
		HardwareTier:                 export.HardwareTier,
		UseProjectDefaultsForOmitted: export.UseProjectDefaultsForOmitted,
	}
	for _, target := range export.Targets {
		payload.Targets = append(payload.Targets, exportTargetPayload{Artifact: target.Collection, DatasetID: target.DatasetID})
	}
	return payload
}

func exportFromPayload(name string, payload exportPayload) domain.ExportSpec {
	export := domain.ExportSpec{
		Name:                         name,
		Targets:                      make([]domain.ExportTarget, 0, len(payload.Targets)),
		EnvironmentName:              payload.EnvironmentName,
		HardwareTier:                 payload.HardwareTier,
		UseProjectDefaultsForOmitted: payload.UseProjectDefaultsForOmitted,
	}
	for _, target := range payload.Targets {
		export.Targets = append(export.Targets, domain.ExportTarget{Collection: target.Artifact, DatasetID: target.DatasetID})
	}
	return export
}
