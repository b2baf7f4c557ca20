package domain

import "strings"

// Phase is an execution or node phase as reported by the orchestration platform.
type Phase string

const (
	PhaseUndefined  Phase = "UNDEFINED"
	PhasePending    Phase = "PENDING"
	PhaseQueued     Phase = "QUEUED"
	PhaseRunning    Phase = "RUNNING"
	PhaseSucceeding Phase = "SUCCEEDING"
	PhaseFailing    Phase = "FAILING"
	PhaseSucceeded  Phase = "SUCCEEDED"
	PhaseFailed     Phase = "FAILED"
	PhaseAborted    Phase = "ABORTED"
	PhaseTimedOut   Phase = "TIMED_OUT"
	PhaseSkipped    Phase = "SKIPPED"
)

// NormalizePhase maps free-form platform values to canonical phases.
func NormalizePhase(value string) Phase {
	v := strings.ToUpper(strings.TrimSpace(value))
	v = strings.ReplaceAll(v, "-", "_")
	switch v {
	case "PENDING", "CREATED":
		return PhasePending
	case "QUEUED", "SUBMITTED":
		return PhaseQueued
	case "RUNNING":
		return PhaseRunning
	case "SUCCEEDING":
		return PhaseSucceeding
	case "FAILING":
		return PhaseFailing
	case "SUCCEEDED", "SUCCESS":
		return PhaseSucceeded
	case "FAILED", "FAILURE", "ERROR":
		return PhaseFailed
	case "ABORTED", "ABORTING", "CANCELLED", "CANCELED", "TERMINATED":
		return PhaseAborted
	case "TIMED_OUT", "TIMEDOUT":
		return PhaseTimedOut
	case "SKIPPED":
		return PhaseSkipped
	default:
		return PhaseUndefined
	}
}

func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseSucceeded, PhaseFailed, PhaseAborted, PhaseTimedOut, PhaseSkipped:
		return true
	default:
		return false
	}
}

// IsFailure reports terminal phases that did not produce outputs.
func (p Phase) IsFailure() bool {
	switch p {
	case PhaseFailed, PhaseAborted, PhaseTimedOut:
		return true
	default:
		return false
	}
}

// CanTransition enforces forward-only phase progression for ledger records.
func CanTransition(current, next Phase) bool {
	if next == "" || next == PhaseUndefined {
		return false
	}
	if current == next {
		return true
	}
	if current.IsTerminal() {
		return false
	}
	return phaseOrder(current) <= phaseOrder(next)
}

func phaseOrder(p Phase) int {
	switch p {
	case PhaseUndefined, "":
		return 0
	case PhasePending:
		return 1
	case PhaseQueued:
		return 2
	case PhaseRunning:
		return 3
	case PhaseSucceeding, PhaseFailing:
		return 4
	case PhaseSucceeded, PhaseFailed, PhaseAborted, PhaseTimedOut, PhaseSkipped:
		return 5
	default:
		return 0
	}
}
