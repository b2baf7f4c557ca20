package main

import (
	"time"

	"github.com/animus-labs/trialflow/internal/flows"
	"github.com/animus-labs/trialflow/internal/repo"
	"github.com/animus-labs/trialflow/internal/service/launches"
)

type flowView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type execution struct {
	ExecutionID         string            `json:"execution_id"`
	Project             string            `json:"project"`
	Flow                string            `json:"flow"`
	Workflow            string            `json:"workflow"`
	Version             string            `json:"version"`
	PlatformExecutionID string            `json:"platform_execution_id,omitempty"`
	Phase               string            `json:"phase"`
	Inputs              map[string]string `json:"inputs"`
	CreatedBy           string            `json:"created_by"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	Nodes               []node            `json:"nodes,omitempty"`
	ArchivePrefix       string            `json:"archive_prefix,omitempty"`
}

type node struct {
	NodeID string `json:"node_id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Stage  int    `json:"stage"`
	Phase  string `json:"phase"`
}

func catalogView() []flowView {
	defs := flows.Catalog()
	out := make([]flowView, 0, len(defs))
	for _, def := range defs {
		out = append(out, flowView{Name: def.Name, Description: def.Description})
	}
	return out
}

func executionFromRecord(rec repo.ExecutionRecord) execution {
	inputs := rec.Inputs
	if inputs == nil {
		inputs = map[string]string{}
	}
	return execution{
		ExecutionID:         rec.ID,
		Project:             rec.Project,
		Flow:                rec.Flow,
		Workflow:            rec.Workflow,
		Version:             rec.Version,
		PlatformExecutionID: rec.PlatformExecutionID,
		Phase:               string(rec.Phase),
		Inputs:              inputs,
		CreatedBy:           rec.CreatedBy,
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}
}

func executionFromStatus(st launches.ExecutionStatus) execution {
	out := executionFromRecord(st.Execution)
	out.Nodes = make([]node, 0, len(st.Nodes))
	for _, n := range st.Nodes {
		out.Nodes = append(out.Nodes, node{
			NodeID: n.NodeID,
			Name:   n.Name,
			Kind:   string(n.Kind),
			Stage:  n.Stage,
			Phase:  string(n.Phase),
		})
	}
	return out
}

func executionFromLaunch(res launches.LaunchResult) execution {
	out := executionFromRecord(res.Execution)
	if res.Archive != nil {
		out.ArchivePrefix = res.Archive.Bucket + "/" + res.Archive.Prefix
	}
	return out
}
