// Package auditlog seals audit events with an integrity digest and appends
// them to the audit_events table.
//
// A sealed event can be read back and checked with Verify; any change to the
// actor, action, resource, request metadata or payload changes the digest.
package auditlog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/animus-labs/trialflow/internal/domain"
)

const insertEventQuery = `INSERT INTO audit_events
	(occurred_at, actor, action, resource_type, resource_id, request_id, ip, user_agent, payload, integrity_sha256)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	RETURNING event_id`

type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Seal normalizes the event and stamps IntegritySHA256. It returns the payload
// exactly as it is hashed and stored.
func Seal(event domain.AuditEvent) (domain.AuditEvent, []byte, error) {
	event = normalize(event)
	if err := event.Validate(); err != nil {
		return domain.AuditEvent{}, nil, err
	}
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, nil, fmt.Errorf("marshal payload: %w", err)
	}
	event.IntegritySHA256, err = Digest(event, payloadJSON)
	if err != nil {
		return domain.AuditEvent{}, nil, err
	}
	return event, payloadJSON, nil
}

// Verify reports whether a stored event still matches its digest. The payload
// is re-encoded, so key order of the stored document does not matter.
func Verify(event domain.AuditEvent) (bool, error) {
	stored := strings.TrimSpace(event.IntegritySHA256)
	if stored == "" {
		return false, nil
	}
	event = normalize(event)
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload: %w", err)
	}
	want, err := Digest(event, payloadJSON)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(want, stored), nil
}

// Digest hashes the canonical form of an event: a JSON array of its fields in
// fixed order followed by the payload.
func Digest(event domain.AuditEvent, payloadJSON []byte) (string, error) {
	if len(payloadJSON) == 0 {
		payloadJSON = []byte("{}")
	}
	canonical, err := json.Marshal([]any{
		event.OccurredAt.UTC().Format(time.RFC3339Nano),
		strings.TrimSpace(event.Actor),
		strings.TrimSpace(event.Action),
		strings.TrimSpace(event.ResourceType),
		strings.TrimSpace(event.ResourceID),
		strings.TrimSpace(event.RequestID),
		ipString(event),
		strings.TrimSpace(event.UserAgent),
		json.RawMessage(payloadJSON),
	})
	if err != nil {
		return "", fmt.Errorf("marshal canonical event: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Insert seals the event and appends it. OccurredAt defaults to now.
func Insert(ctx context.Context, q QueryRower, event domain.AuditEvent) (int64, error) {
	if q == nil {
		return 0, errors.New("queryer is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	sealed, payloadJSON, err := Seal(event)
	if err != nil {
		return 0, err
	}

	var id int64
	err = q.QueryRowContext(ctx, insertEventQuery,
		sealed.OccurredAt,
		sealed.Actor,
		sealed.Action,
		sealed.ResourceType,
		sealed.ResourceID,
		nullable(sealed.RequestID),
		nullable(ipString(sealed)),
		nullable(sealed.UserAgent),
		payloadJSON,
		sealed.IntegritySHA256,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert audit event: %w", err)
	}
	return id, nil
}

// normalize trims text fields, drops sub-microsecond precision (timestamptz
// keeps microseconds) and replaces a nil payload with an empty object.
func normalize(event domain.AuditEvent) domain.AuditEvent {
	event.OccurredAt = event.OccurredAt.UTC().Truncate(time.Microsecond)
	event.Actor = strings.TrimSpace(event.Actor)
	event.Action = strings.TrimSpace(event.Action)
	event.ResourceType = strings.TrimSpace(event.ResourceType)
	event.ResourceID = strings.TrimSpace(event.ResourceID)
	event.RequestID = strings.TrimSpace(event.RequestID)
	event.UserAgent = strings.TrimSpace(event.UserAgent)
	if event.Payload == nil {
		event.Payload = domain.Metadata{}
	}
	return event
}

func ipString(event domain.AuditEvent) string {
	if event.IP == nil {
		return ""
	}
	return event.IP.String()
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
