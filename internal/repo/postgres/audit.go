package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/platform/auditlog"
)

type AuditAppender struct {
	db  auditlog.QueryRower
	now func() time.Time
}

func NewAuditAppender(db auditlog.QueryRower) *AuditAppender {
	if db == nil {
		return nil
	}
	return &AuditAppender{db: db, now: time.Now}
}

// Append seals and stores one event. OccurredAt defaults to the appender clock.
func (a *AuditAppender) Append(ctx context.Context, event domain.AuditEvent) (int64, error) {
	if a == nil || a.db == nil {
		return 0, errors.New("audit appender not initialized")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = a.now()
	}
	id, err := auditlog.Insert(ctx, a.db, event)
	if err != nil {
		return 0, fmt.Errorf("append audit event: %w", err)
	}
	return id, nil
}

const listAuditEventsQuery = `SELECT event_id, occurred_at, actor, action, resource_type, resource_id,
	COALESCE(request_id, ''), COALESCE(host(ip), ''), COALESCE(user_agent, ''), payload, integrity_sha256
	FROM audit_events
	WHERE resource_type = $1 AND resource_id = $2
	ORDER BY occurred_at, event_id`

// AuditReader reads the audit trail back for export.
type AuditReader struct {
	db DB
}

func NewAuditReader(db DB) *AuditReader {
	if db == nil {
		return nil
	}
	return &AuditReader{db: db}
}

func (a *AuditReader) ListAuditEvents(ctx context.Context, resourceType, resourceID string) ([]domain.AuditEvent, error) {
	if a == nil || a.db == nil {
		return nil, errors.New("audit reader not initialized")
	}
	resourceType = strings.TrimSpace(resourceType)
	resourceID = strings.TrimSpace(resourceID)
	if resourceType == "" || resourceID == "" {
		return nil, errors.New("resource type and id are required")
	}
	rows, err := a.db.QueryContext(ctx, listAuditEventsQuery, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditEvent, 0)
	for rows.Next() {
		var ev domain.AuditEvent
		var ip string
		var payload []byte
		if err := rows.Scan(&ev.EventID, &ev.OccurredAt, &ev.Actor, &ev.Action, &ev.ResourceType, &ev.ResourceID,
			&ev.RequestID, &ip, &ev.UserAgent, &payload, &ev.IntegritySHA256); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		if ip != "" {
			ev.IP = net.ParseIP(ip)
		}
		ev.Payload = domain.Metadata{}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				return nil, fmt.Errorf("decode audit payload %d: %w", ev.EventID, err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return out, nil
}
