package auditexport

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// NDJSONExporter writes one JSON document per line, in trail order.
type NDJSONExporter struct {
	enc *json.Encoder
}

func NewNDJSONExporter(w io.Writer) *NDJSONExporter {
	return &NDJSONExporter{enc: json.NewEncoder(w)}
}

type line struct {
	EventID      int64          `json:"event_id"`
	OccurredAt   string         `json:"occurred_at"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	RequestID    string         `json:"request_id,omitempty"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Payload      map[string]any `json:"payload"`
	Integrity    string         `json:"integrity_sha256"`
	Verified     bool           `json:"verified"`
}

func (e *NDJSONExporter) Export(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := rec.Event
	l := line{
		EventID:      ev.EventID,
		OccurredAt:   ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		Actor:        ev.Actor,
		Action:       ev.Action,
		ResourceType: ev.ResourceType,
		ResourceID:   ev.ResourceID,
		RequestID:    ev.RequestID,
		UserAgent:    ev.UserAgent,
		Payload:      ev.Payload,
		Integrity:    ev.IntegritySHA256,
		Verified:     rec.Verified,
	}
	if ev.IP != nil {
		l.IP = ev.IP.String()
	}
	if l.Payload == nil {
		l.Payload = map[string]any{}
	}
	return e.enc.Encode(l)
}
