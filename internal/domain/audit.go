package domain

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

type Metadata map[string]any

// AuditEvent is an immutable audit record of a ledger change.
type AuditEvent struct {
	EventID         int64
	OccurredAt      time.Time
	Actor           string
	Action          string
	ResourceType    string
	ResourceID      string
	RequestID       string
	IP              net.IP
	UserAgent       string
	Payload         Metadata
	IntegritySHA256 string
}

const (
	AuditExecutionLaunched  = "execution.launched"
	AuditExecutionCompleted = "execution.completed"
	AuditExecutionCancelled = "execution.cancelled"

	AuditResourceExecution = "execution"
)

// Validate checks the fields every audit event must carry.
func (e AuditEvent) Validate() error {
	if e.OccurredAt.IsZero() {
		return errors.New("audit event occurred_at is required")
	}
	for _, f := range [...]struct{ name, value string }{
		{"actor", e.Actor},
		{"action", e.Action},
		{"resource_type", e.ResourceType},
		{"resource_id", e.ResourceID},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("audit event %s is required", f.name)
		}
	}
	return nil
}
