package plan

import (
	"fmt"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/execution/specvalidator"
)

// BuildPlan compiles a validated workflow into a deterministic execution plan.
// Node order is a topological order with ties broken by declaration order;
// export nodes follow every job producing into their collections.
func BuildPlan(wf domain.Workflow) (domain.ExecutionPlan, error) {
	if err := specvalidator.ValidateWorkflow(wf); err != nil {
		return domain.ExecutionPlan{}, err
	}

	nodes := declaredNodes(wf)
	ordered, err := topoSortNodes(nodes)
	if err != nil {
		return domain.ExecutionPlan{}, err
	}

	stages := make(map[string]int, len(ordered))
	edges := make([]domain.PlanEdge, 0)
	for i := range ordered {
		node := &ordered[i]
		stage := 0
		for _, up := range node.Upstream {
			if s := stages[up] + 1; s > stage {
				stage = s
			}
			edges = append(edges, domain.PlanEdge{From: up, To: node.ID})
		}
		node.Stage = stage
		stages[node.ID] = stage
	}

	outputs := make([]domain.PlanOutput, 0, len(wf.Outputs))
	for _, out := range wf.Outputs {
		outputs = append(outputs, domain.PlanOutput{
			Name:   out.Name,
			Node:   domain.NodeID(out.Artifact.Job),
			Output: out.Artifact.Output,
		})
	}

	plan := domain.ExecutionPlan{
		Workflow:    wf.Name,
		Description: wf.Description,
		Params:      append([]domain.Param(nil), wf.Params...),
		Nodes:       ordered,
		Edges:       edges,
		Outputs:     outputs,
	}
	hash, err := SpecHash(plan)
	if err != nil {
		return domain.ExecutionPlan{}, fmt.Errorf("hash plan: %w", err)
	}
	plan.SpecHash = hash
	return plan, nil
}

// declaredNodes returns job and export nodes in declaration order with
// deduplicated upstream node ids.
func declaredNodes(wf domain.Workflow) []domain.PlanNode {
	nodes := make([]domain.PlanNode, 0, len(wf.Jobs)+len(wf.Exports))
	for i := range wf.Jobs {
		job := wf.Jobs[i]
		upstream := make([]string, 0)
		for _, name := range job.Upstream() {
			upstream = append(upstream, domain.NodeID(name))
		}
		nodes = append(nodes, domain.PlanNode{
			ID:       domain.NodeID(job.Name),
			Name:     job.Name,
			Kind:     domain.NodeJob,
			Upstream: upstream,
			Job:      &job,
		})
	}
	for i := range wf.Exports {
		export := wf.Exports[i]
		seen := map[string]struct{}{}
		upstream := make([]string, 0)
		for _, target := range export.Targets {
			for _, producer := range wf.Producers(target.Collection) {
				id := domain.NodeID(producer)
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				upstream = append(upstream, id)
			}
		}
		nodes = append(nodes, domain.PlanNode{
			ID:       domain.NodeID(export.Name),
			Name:     export.Name,
			Kind:     domain.NodeExport,
			Upstream: upstream,
			Export:   &export,
		})
	}
	return nodes
}

func topoSortNodes(nodes []domain.PlanNode) ([]domain.PlanNode, error) {
	position := make(map[string]int, len(nodes))
	for i, node := range nodes {
		position[node.ID] = i
	}

	inDegree := make(map[string]int, len(nodes))
	adj := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		for _, up := range node.Upstream {
			if _, ok := position[up]; !ok {
				return nil, fmt.Errorf("node %s depends on unknown node %s", node.ID, up)
			}
			adj[up] = append(adj[up], node.ID)
			inDegree[node.ID]++
		}
	}

	ready := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if inDegree[node.ID] == 0 {
			ready = append(ready, node.ID)
		}
	}

	ordered := make([]domain.PlanNode, 0, len(nodes))
	for len(ready) > 0 {
		next := 0
		for i := range ready {
			if position[ready[i]] < position[ready[next]] {
				next = i
			}
		}
		id := ready[next]
		ready = append(ready[:next], ready[next+1:]...)
		ordered = append(ordered, nodes[position[id]])
		for _, neighbor := range adj[id] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				ready = append(ready, neighbor)
			}
		}
	}

	if len(ordered) != len(nodes) {
		return nil, fmt.Errorf("dependency graph contains a cycle")
	}
	return ordered, nil
}
