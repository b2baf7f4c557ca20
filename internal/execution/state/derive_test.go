package state

import (
	"testing"
	"time"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/repo"
)

func TestDeriveExecutionPhase(t *testing.T) {
	plan := domain.ExecutionPlan{
		Workflow: "ADaM_TFL",
		Nodes: []domain.PlanNode{
			{ID: "adsl"},
			{ID: "adae", Upstream: []string{"adsl"}},
			{ID: "report", Upstream: []string{"adae"}},
			{ID: "vitals"},
		},
		Edges: []domain.PlanEdge{
			{From: "adsl", To: "adae"},
			{From: "adae", To: "report"},
		},
	}

	tests := []struct {
		name         string
		plan         domain.ExecutionPlan
		observations []repo.NodeObservation
		want         domain.Phase
	}{
		{
			name: "empty plan",
			plan: domain.ExecutionPlan{},
			want: domain.PhaseUndefined,
		},
		{
			name: "nothing observed",
			plan: plan,
			want: domain.PhaseQueued,
		},
		{
			name: "all succeeded",
			plan: plan,
			observations: []repo.NodeObservation{
				observation("adsl", domain.PhaseSucceeded),
				observation("adae", domain.PhaseSucceeded),
				observation("report", domain.PhaseSucceeded),
				observation("vitals", domain.PhaseSkipped),
			},
			want: domain.PhaseSucceeded,
		},
		{
			name: "partial execution",
			plan: plan,
			observations: []repo.NodeObservation{
				observation("adsl", domain.PhaseSucceeded),
				observation("adae", domain.PhaseRunning),
			},
			want: domain.PhaseRunning,
		},
		{
			name: "failure while an independent node runs",
			plan: plan,
			observations: []repo.NodeObservation{
				observation("adsl", domain.PhaseFailed),
				observation("vitals", domain.PhaseRunning),
			},
			want: domain.PhaseFailing,
		},
		{
			name: "failure blocks every pending node",
			plan: plan,
			observations: []repo.NodeObservation{
				observation("adsl", domain.PhaseSucceeded),
				observation("adae", domain.PhaseTimedOut),
				observation("vitals", domain.PhaseSucceeded),
			},
			want: domain.PhaseFailed,
		},
		{
			name: "aborted node",
			plan: plan,
			observations: []repo.NodeObservation{
				observation("adsl", domain.PhaseAborted),
			},
			want: domain.PhaseAborted,
		},
	}

	for _, tc := range tests {
		if got := DeriveExecutionPhase(tc.plan, tc.observations); got != tc.want {
			t.Fatalf("%s: expected %s got %s", tc.name, tc.want, got)
		}
	}
}

func TestLatestNodePhases(t *testing.T) {
	got := LatestNodePhases([]repo.NodeObservation{
		observation("adsl", domain.PhaseSucceeded),
		observation("adsl", domain.PhaseRunning),
		observation("adae", domain.PhaseQueued),
		observation("adae", domain.PhaseRunning),
		observation(" ", domain.PhaseRunning),
	})
	if len(got) != 2 {
		t.Fatalf("LatestNodePhases()=%v, want 2 nodes", got)
	}
	if got["adsl"] != domain.PhaseSucceeded {
		t.Fatalf("adsl=%s, terminal phase must not regress", got["adsl"])
	}
	if got["adae"] != domain.PhaseRunning {
		t.Fatalf("adae=%s, want RUNNING", got["adae"])
	}
}

func observation(node string, phase domain.Phase) repo.NodeObservation {
	return repo.NodeObservation{
		ExecutionID: "exec-1",
		NodeID:      node,
		Phase:       phase,
		ObservedAt:  time.Unix(1700000000, 0).UTC(),
	}
}
