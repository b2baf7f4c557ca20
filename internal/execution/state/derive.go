package state

import (
	"strings"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/repo"
)

// LatestNodePhases returns the most advanced observed phase per node.
func LatestNodePhases(observations []repo.NodeObservation) map[string]domain.Phase {
	out := make(map[string]domain.Phase)
	for _, obs := range observations {
		node := strings.TrimSpace(obs.NodeID)
		if node == "" {
			continue
		}
		current, ok := out[node]
		if !ok || advances(current, obs.Phase) {
			out[node] = obs.Phase
		}
	}
	return out
}

func advances(current, next domain.Phase) bool {
	return current != next && domain.CanTransition(current, next)
}

// DeriveExecutionPhase computes the execution phase from node observations for
// platforms that report no execution phase of their own. Skipped nodes count
// as succeeded; nodes downstream of a failure are not waited for.
func DeriveExecutionPhase(plan domain.ExecutionPlan, observations []repo.NodeObservation) domain.Phase {
	if len(plan.Nodes) == 0 {
		return domain.PhaseUndefined
	}
	if len(observations) == 0 {
		return domain.PhaseQueued
	}

	latest := LatestNodePhases(observations)
	failed := map[string]struct{}{}
	pending := make([]string, 0)
	aborted := false

	for _, node := range plan.Nodes {
		phase, ok := latest[node.ID]
		if !ok || !phase.IsTerminal() {
			pending = append(pending, node.ID)
			continue
		}
		switch phase {
		case domain.PhaseFailed, domain.PhaseTimedOut:
			failed[node.ID] = struct{}{}
		case domain.PhaseAborted:
			aborted = true
		}
	}

	if len(failed) > 0 {
		if allBlockedByFailure(plan, pending, failed) {
			return domain.PhaseFailed
		}
		return domain.PhaseFailing
	}
	if aborted {
		return domain.PhaseAborted
	}
	if len(pending) > 0 {
		return domain.PhaseRunning
	}
	return domain.PhaseSucceeded
}

func allBlockedByFailure(plan domain.ExecutionPlan, pending []string, failed map[string]struct{}) bool {
	deps := reverseDependencies(plan.Edges)
	for _, node := range pending {
		if !hasFailedAncestor(node, deps, failed, map[string]struct{}{}) {
			return false
		}
	}
	return true
}

func reverseDependencies(edges []domain.PlanEdge) map[string][]string {
	out := make(map[string][]string)
	for _, edge := range edges {
		from := strings.TrimSpace(edge.From)
		to := strings.TrimSpace(edge.To)
		if from == "" || to == "" {
			continue
		}
		out[to] = append(out[to], from)
	}
	return out
}

func hasFailedAncestor(node string, deps map[string][]string, failed map[string]struct{}, visited map[string]struct{}) bool {
	if _, ok := visited[node]; ok {
		return false
	}
	visited[node] = struct{}{}
	for _, parent := range deps[node] {
		if _, ok := failed[parent]; ok {
			return true
		}
		if hasFailedAncestor(parent, deps, failed, visited) {
			return true
		}
	}
	return false
}
