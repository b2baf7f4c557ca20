package repo

import (
	"context"
	"errors"
	"time"

	"github.com/animus-labs/trialflow/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a write that contradicts the stored record.
	ErrConflict = errors.New("conflict")
)

// ExecutionRecord is the ledger entry for one launch of a catalog flow.
type ExecutionRecord struct {
	ID                  string
	Project             string
	Flow                string
	Workflow            string
	Version             string
	IdempotencyKey      string
	PlatformExecutionID string
	Inputs              map[string]string
	Definition          []byte
	Phase               domain.Phase
	CreatedBy           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NodeObservation records a node phase reported by the orchestration platform.
type NodeObservation struct {
	ID          string
	ExecutionID string
	NodeID      string
	Phase       domain.Phase
	ObservedAt  time.Time
	Message     string
}

type ExecutionFilter struct {
	Project string
	Flow    string
	Phase   domain.Phase
	Limit   int
}

// ExecutionRepository manages execution ledger records.
type ExecutionRepository interface {
	// CreateExecution is idempotent on (project, idempotency key). The bool is
	// true when a new record was created.
	CreateExecution(ctx context.Context, record ExecutionRecord) (ExecutionRecord, bool, error)
	GetExecution(ctx context.Context, id string) (ExecutionRecord, error)
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]ExecutionRecord, error)
	AttachPlatformExecution(ctx context.Context, id, platformExecutionID string) error
	// UpdatePhase moves the phase from the value last read. It returns
	// ErrConflict when the stored phase is no longer from.
	UpdatePhase(ctx context.Context, id string, from, to domain.Phase) error
}

// NodeObservationRepository stores node phases, idempotent on (execution, node, phase).
type NodeObservationRepository interface {
	InsertObservation(ctx context.Context, obs NodeObservation) (NodeObservation, bool, error)
	ListByExecution(ctx context.Context, executionID string) ([]NodeObservation, error)
}

// AuditEventAppender ensures append-only audit writes.
type AuditEventAppender interface {
	Append(ctx context.Context, event domain.AuditEvent) (int64, error)
}

// AuditEventReader lists audit events of one resource in occurrence order.
type AuditEventReader interface {
	ListAuditEvents(ctx context.Context, resourceType, resourceID string) ([]domain.AuditEvent, error)
}
