package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/animus-labs/trialflow/internal/domain"
	platformpg "github.com/animus-labs/trialflow/internal/platform/postgres"
	"github.com/animus-labs/trialflow/internal/repo"
)

type ExecutionStore struct {
	db DB
}

const (
	executionColumns = `execution_id, project, flow, workflow, version, idempotency_key, platform_execution_id,
	inputs, definition, phase, created_by, created_at, updated_at`

	insertExecutionQuery = `INSERT INTO executions (
		execution_id,
		project,
		flow,
		workflow,
		version,
		idempotency_key,
		platform_execution_id,
		inputs,
		definition,
		phase,
		created_by,
		created_at,
		updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	ON CONFLICT (project, idempotency_key) DO NOTHING
	RETURNING ` + executionColumns

	selectExecutionByKeyQuery = `SELECT ` + executionColumns + `
	 FROM executions
	 WHERE project = $1 AND idempotency_key = $2`

	selectExecutionQuery = `SELECT ` + executionColumns + `
	 FROM executions
	 WHERE execution_id = $1`

	listExecutionsQuery = `SELECT ` + executionColumns + `
	 FROM executions`

	attachPlatformExecutionQuery = `UPDATE executions
	 SET platform_execution_id = $1, updated_at = $2
	 WHERE execution_id = $3 AND (platform_execution_id IS NULL OR platform_execution_id = $1)`

	updateExecutionPhaseQuery = `UPDATE executions SET phase = $1, updated_at = $2 WHERE execution_id = $3 AND phase = $4`
)

func NewExecutionStore(db DB) *ExecutionStore {
	if db == nil {
		return nil
	}
	return &ExecutionStore{db: db}
}

func (s *ExecutionStore) CreateExecution(ctx context.Context, record repo.ExecutionRecord) (repo.ExecutionRecord, bool, error) {
	if s == nil || s.db == nil {
		return repo.ExecutionRecord{}, false, fmt.Errorf("execution store not initialized")
	}
	project := strings.TrimSpace(record.Project)
	flow := strings.TrimSpace(record.Flow)
	version := strings.TrimSpace(record.Version)
	key := strings.TrimSpace(record.IdempotencyKey)
	if project == "" {
		return repo.ExecutionRecord{}, false, fmt.Errorf("project is required")
	}
	if flow == "" {
		return repo.ExecutionRecord{}, false, fmt.Errorf("flow is required")
	}
	if version == "" {
		return repo.ExecutionRecord{}, false, fmt.Errorf("version is required")
	}
	if len(record.Definition) == 0 {
		return repo.ExecutionRecord{}, false, fmt.Errorf("definition is required")
	}
	if strings.TrimSpace(record.CreatedBy) == "" {
		return repo.ExecutionRecord{}, false, fmt.Errorf("created by is required")
	}

	id := strings.TrimSpace(record.ID)
	if id == "" {
		id = uuid.NewString()
	}
	phase := record.Phase
	if phase == "" {
		phase = domain.PhasePending
	}
	createdAt := stampOrNow(record.CreatedAt)

	row := s.db.QueryRowContext(
		ctx,
		insertExecutionQuery,
		id,
		project,
		flow,
		strings.TrimSpace(record.Workflow),
		version,
		optional(key),
		optional(record.PlatformExecutionID),
		launchInputs(record.Inputs),
		record.Definition,
		string(phase),
		strings.TrimSpace(record.CreatedBy),
		createdAt,
		createdAt,
	)
	inserted, err := scanExecution(row)
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return repo.ExecutionRecord{}, false, fmt.Errorf("insert execution: %w", err)
	}
	existing, err := scanExecution(s.db.QueryRowContext(ctx, selectExecutionByKeyQuery, project, key))
	if err != nil {
		return repo.ExecutionRecord{}, false, err
	}
	return existing, false, nil
}

func (s *ExecutionStore) GetExecution(ctx context.Context, id string) (repo.ExecutionRecord, error) {
	if s == nil || s.db == nil {
		return repo.ExecutionRecord{}, fmt.Errorf("execution store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return repo.ExecutionRecord{}, fmt.Errorf("execution id is required")
	}
	return scanExecution(s.db.QueryRowContext(ctx, selectExecutionQuery, id))
}

func (s *ExecutionStore) ListExecutions(ctx context.Context, filter repo.ExecutionFilter) ([]repo.ExecutionRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("execution store not initialized")
	}
	query, args := buildListExecutionsQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	records := make([]repo.ExecutionRecord, 0)
	for rows.Next() {
		record, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	return records, nil
}

func buildListExecutionsQuery(filter repo.ExecutionFilter) (string, []any) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if v := strings.TrimSpace(filter.Project); v != "" {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf("project = $%d", len(args)))
	}
	if v := strings.TrimSpace(filter.Flow); v != "" {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf("flow = $%d", len(args)))
	}
	if filter.Phase != "" {
		args = append(args, string(filter.Phase))
		clauses = append(clauses, fmt.Sprintf("phase = $%d", len(args)))
	}

	query := listExecutionsQuery
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, execution_id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

// AttachPlatformExecution binds the platform execution id once. Re-attaching
// the same id is a no-op; a different id is a conflict.
func (s *ExecutionStore) AttachPlatformExecution(ctx context.Context, id, platformExecutionID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("execution store not initialized")
	}
	id = strings.TrimSpace(id)
	platformExecutionID = strings.TrimSpace(platformExecutionID)
	if id == "" {
		return fmt.Errorf("execution id is required")
	}
	if platformExecutionID == "" {
		return fmt.Errorf("platform execution id is required")
	}
	res, err := s.db.ExecContext(ctx, attachPlatformExecutionQuery, platformExecutionID, time.Now().UTC(), id)
	if platformpg.IsUniqueViolation(err) {
		return fmt.Errorf("platform execution %s belongs to another execution: %w", platformExecutionID, repo.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("attach platform execution: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach platform execution: %w", err)
	}
	if rows > 0 {
		return nil
	}
	if _, err := s.GetExecution(ctx, id); err != nil {
		return err
	}
	return repo.ErrConflict
}

func (s *ExecutionStore) UpdatePhase(ctx context.Context, id string, from, to domain.Phase) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("execution store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("execution id is required")
	}
	if from == "" || to == "" {
		return fmt.Errorf("phase is required")
	}
	res, err := s.db.ExecContext(ctx, updateExecutionPhaseQuery, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("update execution phase: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update execution phase: %w", err)
	}
	if rows > 0 {
		return nil
	}
	current, err := s.GetExecution(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("execution %s is %s, not %s: %w", id, current.Phase, from, repo.ErrConflict)
}

func scanExecution(scanner rowScanner) (repo.ExecutionRecord, error) {
	var record repo.ExecutionRecord
	var key sql.NullString
	var platformID sql.NullString
	var inputs launchInputs
	var phase string
	if err := scanner.Scan(
		&record.ID,
		&record.Project,
		&record.Flow,
		&record.Workflow,
		&record.Version,
		&key,
		&platformID,
		&inputs,
		&record.Definition,
		&phase,
		&record.CreatedBy,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return repo.ExecutionRecord{}, notFound(err)
	}
	record.Inputs = map[string]string(inputs)
	record.IdempotencyKey = key.String
	record.PlatformExecutionID = platformID.String
	record.Phase = domain.Phase(phase)
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}
