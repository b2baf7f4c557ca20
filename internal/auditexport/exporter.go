// Package auditexport writes the audit trail of an execution for archival
// alongside study records.
package auditexport

import (
	"context"
	"fmt"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/platform/auditlog"
)

// Record is one audit event with the outcome of its integrity check.
type Record struct {
	Event    domain.AuditEvent
	Verified bool
}

type Exporter interface {
	Export(ctx context.Context, rec Record) error
}

// Result summarises one export.
type Result struct {
	Events   int
	Tampered []int64
}

// ExportAll verifies and exports events in order. Events failing verification
// are still exported with Verified unset and listed in Result.Tampered.
func ExportAll(ctx context.Context, exp Exporter, events []domain.AuditEvent) (Result, error) {
	var res Result
	for _, ev := range events {
		ok, err := auditlog.Verify(ev)
		if err != nil {
			return res, fmt.Errorf("verify event %d: %w", ev.EventID, err)
		}
		if !ok {
			res.Tampered = append(res.Tampered, ev.EventID)
		}
		if err := exp.Export(ctx, Record{Event: ev, Verified: ok}); err != nil {
			return res, fmt.Errorf("export event %d: %w", ev.EventID, err)
		}
		res.Events++
	}
	return res, nil
}
