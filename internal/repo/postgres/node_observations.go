package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/animus-labs/trialflow/internal/domain"
	platformpg "github.com/animus-labs/trialflow/internal/platform/postgres"
	"github.com/animus-labs/trialflow/internal/repo"
)

type NodeObservationStore struct {
	db DB
}

const (
	insertNodeObservationQuery = `INSERT INTO node_observations (
		observation_id,
		execution_id,
		node_id,
		phase,
		observed_at,
		message
	) VALUES ($1,$2,$3,$4,$5,$6)
	ON CONFLICT (execution_id, node_id, phase) DO NOTHING
	RETURNING observation_id, execution_id, node_id, phase, observed_at, message`

	selectNodeObservationQuery = `SELECT observation_id, execution_id, node_id, phase, observed_at, message
	 FROM node_observations
	 WHERE execution_id = $1 AND node_id = $2 AND phase = $3`

	listNodeObservationsQuery = `SELECT observation_id, execution_id, node_id, phase, observed_at, message
	 FROM node_observations
	 WHERE execution_id = $1
	 ORDER BY observed_at ASC, node_id ASC, observation_id ASC`
)

func NewNodeObservationStore(db DB) *NodeObservationStore {
	if db == nil {
		return nil
	}
	return &NodeObservationStore{db: db}
}

func (s *NodeObservationStore) InsertObservation(ctx context.Context, obs repo.NodeObservation) (repo.NodeObservation, bool, error) {
	if s == nil || s.db == nil {
		return repo.NodeObservation{}, false, fmt.Errorf("node observation store not initialized")
	}
	executionID := strings.TrimSpace(obs.ExecutionID)
	nodeID := strings.TrimSpace(obs.NodeID)
	if executionID == "" {
		return repo.NodeObservation{}, false, fmt.Errorf("execution id is required")
	}
	if nodeID == "" {
		return repo.NodeObservation{}, false, fmt.Errorf("node id is required")
	}
	if obs.Phase == "" {
		return repo.NodeObservation{}, false, fmt.Errorf("phase is required")
	}
	id := strings.TrimSpace(obs.ID)
	if id == "" {
		id = uuid.NewString()
	}

	row := s.db.QueryRowContext(
		ctx,
		insertNodeObservationQuery,
		id,
		executionID,
		nodeID,
		string(obs.Phase),
		stampOrNow(obs.ObservedAt),
		optional(obs.Message),
	)
	inserted, err := scanNodeObservation(row)
	if err == nil {
		return inserted, true, nil
	}
	if platformpg.IsForeignKeyViolation(err) {
		return repo.NodeObservation{}, false, fmt.Errorf("execution %s: %w", executionID, repo.ErrNotFound)
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return repo.NodeObservation{}, false, fmt.Errorf("insert node observation: %w", err)
	}
	existing, err := scanNodeObservation(s.db.QueryRowContext(ctx, selectNodeObservationQuery, executionID, nodeID, string(obs.Phase)))
	if err != nil {
		return repo.NodeObservation{}, false, err
	}
	return existing, false, nil
}

func (s *NodeObservationStore) ListByExecution(ctx context.Context, executionID string) ([]repo.NodeObservation, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("node observation store not initialized")
	}
	executionID = strings.TrimSpace(executionID)
	if executionID == "" {
		return nil, fmt.Errorf("execution id is required")
	}
	rows, err := s.db.QueryContext(ctx, listNodeObservationsQuery, executionID)
	if err != nil {
		return nil, fmt.Errorf("list node observations: %w", err)
	}
	defer rows.Close()

	out := make([]repo.NodeObservation, 0)
	for rows.Next() {
		obs, err := scanNodeObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list node observations: %w", err)
	}
	return out, nil
}

func scanNodeObservation(scanner rowScanner) (repo.NodeObservation, error) {
	var obs repo.NodeObservation
	var phase string
	var message sql.NullString
	if err := scanner.Scan(&obs.ID, &obs.ExecutionID, &obs.NodeID, &phase, &obs.ObservedAt, &message); err != nil {
		return repo.NodeObservation{}, notFound(err)
	}
	obs.Phase = domain.Phase(phase)
	obs.ObservedAt = obs.ObservedAt.UTC()
	obs.Message = strings.TrimSpace(message.String)
	return obs, nil
}
