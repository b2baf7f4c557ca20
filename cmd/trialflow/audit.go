package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/animus-labs/trialflow/internal/auditexport"
	"github.com/animus-labs/trialflow/internal/domain"
	repopg "github.com/animus-labs/trialflow/internal/repo/postgres"
)

func cmdAudit(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := newFlagSet("audit")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := oneArg(fs, "execution id")
	if err != nil {
		return err
	}
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	events, err := repopg.NewAuditReader(db).ListAuditEvents(ctx, domain.AuditResourceExecution, id)
	if err != nil {
		return err
	}
	res, err := auditexport.ExportAll(ctx, auditexport.NewNDJSONExporter(stdout), events)
	if err != nil {
		return err
	}
	if len(res.Tampered) > 0 {
		return fmt.Errorf("audit trail of %s failed verification for events %v", id, res.Tampered)
	}
	logger.Info("audit trail exported", "execution_id", id, "events", res.Events)
	return nil
}
