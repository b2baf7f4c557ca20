package launches

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/execution/plan"
	"github.com/animus-labs/trialflow/internal/execution/specvalidator"
	"github.com/animus-labs/trialflow/internal/execution/state"
	"github.com/animus-labs/trialflow/internal/flowapi"
	"github.com/animus-labs/trialflow/internal/flows"
	"github.com/animus-labs/trialflow/internal/platform/requestid"
	"github.com/animus-labs/trialflow/internal/repo"
	"github.com/animus-labs/trialflow/internal/storage/objectstore"
)

var (
	ErrUnknownFlow = errors.New("unknown flow")
	// ErrNotLaunched reports a ledger entry with no platform execution attached.
	ErrNotLaunched = errors.New("execution not launched")
)

// SystemActor is recorded on audit events raised by background refreshes.
const SystemActor = "trialflow"

const phaseUpdateAttempts = 3

// Platform is the subset of the orchestration API the service drives.
type Platform interface {
	RegisterWorkflow(ctx context.Context, name, version string, definition []byte) error
	LaunchExecution(ctx context.Context, req flowapi.LaunchRequest) (flowapi.Execution, error)
	GetExecution(ctx context.Context, id string) (flowapi.Execution, error)
	ListNodeExecutions(ctx context.Context, id string) ([]flowapi.NodeExecution, error)
	TerminateExecution(ctx context.Context, id, cause string) error
}

// Archive stores compiled definitions.
type Archive interface {
	Save(ctx context.Context, p domain.ExecutionPlan) (objectstore.Location, error)
}

type Deps struct {
	Project    string
	Settings   flows.Settings
	Executions repo.ExecutionRepository
	Nodes      repo.NodeObservationRepository
	Audit      repo.AuditEventAppender
	Platform   Platform
	// Archive is optional.
	Archive Archive
	Logger  *slog.Logger
	Now     func() time.Time
}

type Service struct {
	project    string
	settings   flows.Settings
	executions repo.ExecutionRepository
	nodes      repo.NodeObservationRepository
	audit      repo.AuditEventAppender
	platform   Platform
	archive    Archive
	logger     *slog.Logger
	now        func() time.Time
}

func New(d Deps) (*Service, error) {
	if strings.TrimSpace(d.Project) == "" {
		return nil, errors.New("project is required")
	}
	if d.Executions == nil || d.Nodes == nil || d.Audit == nil {
		return nil, errors.New("ledger repositories are required")
	}
	if d.Platform == nil {
		return nil, errors.New("platform client is required")
	}
	if err := d.Settings.Validate(); err != nil {
		return nil, err
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		project:    strings.TrimSpace(d.Project),
		settings:   d.Settings,
		executions: d.Executions,
		nodes:      d.Nodes,
		audit:      d.Audit,
		platform:   d.Platform,
		archive:    d.Archive,
		logger:     logger,
		now:        func() time.Time { return now().UTC() },
	}, nil
}

type LaunchRequest struct {
	Flow           string
	Inputs         map[string]string
	IdempotencyKey string
	Actor          string
	RequestID      string
}

type LaunchResult struct {
	Execution repo.ExecutionRecord
	Plan      domain.ExecutionPlan
	// Created is false when the idempotency key matched an earlier launch.
	Created bool
	Archive *objectstore.Location
}

// Compile builds and compiles a catalog flow without launching it.
func (s *Service) Compile(name string) (flows.Definition, domain.Workflow, domain.ExecutionPlan, error) {
	return CompileFlow(name, s.settings)
}

// CompileFlow resolves a catalog flow against settings and compiles it.
func CompileFlow(name string, settings flows.Settings) (flows.Definition, domain.Workflow, domain.ExecutionPlan, error) {
	def, ok := flows.Lookup(name)
	if !ok {
		return flows.Definition{}, domain.Workflow{}, domain.ExecutionPlan{}, fmt.Errorf("%w: %q", ErrUnknownFlow, strings.TrimSpace(name))
	}
	wf, err := def.Build(settings)
	if err != nil {
		return def, domain.Workflow{}, domain.ExecutionPlan{}, err
	}
	p, err := plan.BuildPlan(wf)
	if err != nil {
		return def, wf, domain.ExecutionPlan{}, err
	}
	return def, wf, p, nil
}

// Launch starts a catalog flow. Launches are idempotent on the idempotency key:
// a key already attached to a platform execution returns the stored record
// without contacting the platform.
func (s *Service) Launch(ctx context.Context, req LaunchRequest) (LaunchResult, error) {
	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		return LaunchResult{}, errors.New("actor is required")
	}
	def, wf, p, err := s.Compile(req.Flow)
	if err != nil {
		return LaunchResult{}, err
	}
	inputs := trimInputs(req.Inputs)
	if err := specvalidator.ValidateLaunchInputs(wf, inputs); err != nil {
		return LaunchResult{}, err
	}
	definition, err := plan.MarshalDefinition(p)
	if err != nil {
		return LaunchResult{}, fmt.Errorf("marshal definition: %w", err)
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}
	ctx = requestid.WithContext(ctx, req.RequestID)

	record, created, err := s.executions.CreateExecution(ctx, repo.ExecutionRecord{
		Project:        s.project,
		Flow:           def.Name,
		Workflow:       wf.Name,
		Version:        p.SpecHash,
		IdempotencyKey: key,
		Inputs:         inputs,
		Definition:     definition,
		Phase:          domain.PhasePending,
		CreatedBy:      actor,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return LaunchResult{}, fmt.Errorf("create execution: %w", err)
	}
	if !created {
		if record.Flow != def.Name || record.Version != p.SpecHash {
			return LaunchResult{}, fmt.Errorf("%w: idempotency key %q was used for %s version %s", repo.ErrConflict, key, record.Flow, record.Version)
		}
		if !maps.Equal(record.Inputs, inputs) {
			return LaunchResult{}, fmt.Errorf("%w: idempotency key %q was used with other inputs", repo.ErrConflict, key)
		}
		if record.PlatformExecutionID != "" {
			s.logger.Info("launch replayed", "execution_id", record.ID, "platform_execution_id", record.PlatformExecutionID, "request_id", req.RequestID)
			return LaunchResult{Execution: record, Plan: p}, nil
		}
	}

	result := LaunchResult{Execution: record, Plan: p, Created: created}
	if s.archive != nil {
		loc, err := s.archive.Save(ctx, p)
		if err != nil {
			return LaunchResult{}, fmt.Errorf("archive definition: %w", err)
		}
		result.Archive = &loc
	}
	if err := s.platform.RegisterWorkflow(ctx, wf.Name, p.SpecHash, definition); err != nil {
		return LaunchResult{}, fmt.Errorf("register workflow: %w", err)
	}
	ex, err := s.platform.LaunchExecution(ctx, flowapi.LaunchRequest{
		Workflow:       wf.Name,
		Version:        p.SpecHash,
		Title:          def.Name,
		Inputs:         record.Inputs,
		IdempotencyKey: key,
	})
	if err != nil {
		return LaunchResult{}, fmt.Errorf("launch execution: %w", err)
	}
	if err := s.executions.AttachPlatformExecution(ctx, record.ID, ex.ID); err != nil {
		return LaunchResult{}, fmt.Errorf("attach platform execution: %w", err)
	}
	record.PlatformExecutionID = ex.ID
	record, _, _, err = s.advancePhase(ctx, record, domain.NormalizePhase(ex.Phase))
	if err != nil {
		return LaunchResult{}, err
	}
	result.Execution = record

	payload := domain.Metadata{
		"project":               s.project,
		"flow":                  def.Name,
		"workflow":              wf.Name,
		"version":               p.SpecHash,
		"platform_execution_id": ex.ID,
		"idempotency_key":       key,
		"inputs":                record.Inputs,
	}
	if result.Archive != nil {
		payload["archive_bucket"] = result.Archive.Bucket
		payload["archive_prefix"] = result.Archive.Prefix
	}
	if err := s.appendAudit(ctx, actor, req.RequestID, domain.AuditExecutionLaunched, record.ID, payload); err != nil {
		return LaunchResult{}, err
	}
	s.logger.Info("execution launched",
		"execution_id", record.ID,
		"flow", def.Name,
		"version", p.SpecHash,
		"platform_execution_id", ex.ID,
		"request_id", req.RequestID,
	)
	return result, nil
}

// NodeStatus is the latest known phase of one plan node.
type NodeStatus struct {
	NodeID string
	Name   string
	Kind   domain.NodeKind
	Stage  int
	Phase  domain.Phase
}

type ExecutionStatus struct {
	Execution repo.ExecutionRecord
	Nodes     []NodeStatus
}

// Status returns the ledger record with node phases in plan order. Nodes
// without observations are reported as PENDING.
func (s *Service) Status(ctx context.Context, id string) (ExecutionStatus, error) {
	record, err := s.executions.GetExecution(ctx, strings.TrimSpace(id))
	if err != nil {
		return ExecutionStatus{}, err
	}
	p, err := plan.UnmarshalDefinition(record.Definition)
	if err != nil {
		return ExecutionStatus{}, fmt.Errorf("decode definition: %w", err)
	}
	observations, err := s.nodes.ListByExecution(ctx, record.ID)
	if err != nil {
		return ExecutionStatus{}, err
	}
	return buildStatus(record, p, observations), nil
}

func (s *Service) List(ctx context.Context, filter repo.ExecutionFilter) ([]repo.ExecutionRecord, error) {
	if strings.TrimSpace(filter.Project) == "" {
		filter.Project = s.project
	}
	return s.executions.ListExecutions(ctx, filter)
}

func buildStatus(record repo.ExecutionRecord, p domain.ExecutionPlan, observations []repo.NodeObservation) ExecutionStatus {
	latest := state.LatestNodePhases(observations)
	nodes := make([]NodeStatus, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		phase, ok := latest[n.ID]
		if !ok {
			phase = domain.PhasePending
		}
		nodes = append(nodes, NodeStatus{NodeID: n.ID, Name: n.Name, Kind: n.Kind, Stage: n.Stage, Phase: phase})
	}
	return ExecutionStatus{Execution: record, Nodes: nodes}
}

// Refresh records node phases reported by the platform and advances the ledger
// phase. When the platform reports no execution phase it is derived from the
// node phases.
func (s *Service) Refresh(ctx context.Context, id string) (ExecutionStatus, error) {
	record, err := s.executions.GetExecution(ctx, strings.TrimSpace(id))
	if err != nil {
		return ExecutionStatus{}, err
	}
	if record.PlatformExecutionID == "" {
		return ExecutionStatus{}, fmt.Errorf("%w: %s", ErrNotLaunched, record.ID)
	}
	p, err := plan.UnmarshalDefinition(record.Definition)
	if err != nil {
		return ExecutionStatus{}, fmt.Errorf("decode definition: %w", err)
	}

	ex, err := s.platform.GetExecution(ctx, record.PlatformExecutionID)
	if err != nil {
		return ExecutionStatus{}, fmt.Errorf("get platform execution: %w", err)
	}
	nodes, err := s.platform.ListNodeExecutions(ctx, record.PlatformExecutionID)
	if err != nil {
		return ExecutionStatus{}, fmt.Errorf("list platform nodes: %w", err)
	}
	for _, node := range nodes {
		phase := domain.NormalizePhase(node.Phase)
		if phase == domain.PhaseUndefined {
			s.logger.Warn("unknown node phase", "execution_id", record.ID, "node_id", node.NodeID, "phase", node.Phase)
			continue
		}
		if _, ok := p.Node(node.NodeID); !ok {
			s.logger.Warn("platform reported unknown node", "execution_id", record.ID, "node_id", node.NodeID)
			continue
		}
		observedAt := node.UpdatedAt
		if observedAt.IsZero() {
			observedAt = s.now()
		}
		if _, _, err := s.nodes.InsertObservation(ctx, repo.NodeObservation{
			ExecutionID: record.ID,
			NodeID:      node.NodeID,
			Phase:       phase,
			ObservedAt:  observedAt,
			Message:     node.Message,
		}); err != nil {
			return ExecutionStatus{}, fmt.Errorf("record node observation: %w", err)
		}
	}

	observations, err := s.nodes.ListByExecution(ctx, record.ID)
	if err != nil {
		return ExecutionStatus{}, err
	}
	phase := domain.NormalizePhase(ex.Phase)
	if phase == domain.PhaseUndefined {
		phase = state.DeriveExecutionPhase(p, observations)
	}
	record, from, advanced, err := s.advancePhase(ctx, record, phase)
	if err != nil {
		return ExecutionStatus{}, err
	}
	if advanced {
		s.logger.Info("execution phase changed", "execution_id", record.ID, "from", string(from), "to", string(phase))
		if phase.IsTerminal() {
			rid, _ := requestid.FromContext(ctx)
			if err := s.appendAudit(ctx, SystemActor, rid, domain.AuditExecutionCompleted, record.ID, domain.Metadata{
				"project":               record.Project,
				"flow":                  record.Flow,
				"version":               record.Version,
				"platform_execution_id": record.PlatformExecutionID,
				"from":                  string(from),
				"phase":                 string(phase),
			}); err != nil {
				return ExecutionStatus{}, err
			}
		}
	}
	return buildStatus(record, p, observations), nil
}

// Cancel terminates the platform execution and records it as ABORTED.
func (s *Service) Cancel(ctx context.Context, id, cause, actor string) (repo.ExecutionRecord, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return repo.ExecutionRecord{}, errors.New("actor is required")
	}
	record, err := s.executions.GetExecution(ctx, strings.TrimSpace(id))
	if err != nil {
		return repo.ExecutionRecord{}, err
	}
	if record.PlatformExecutionID == "" {
		return repo.ExecutionRecord{}, fmt.Errorf("%w: %s", ErrNotLaunched, record.ID)
	}
	if record.Phase.IsTerminal() {
		return repo.ExecutionRecord{}, fmt.Errorf("%w: execution %s already %s", repo.ErrConflict, record.ID, record.Phase)
	}
	if err := s.platform.TerminateExecution(ctx, record.PlatformExecutionID, cause); err != nil {
		return repo.ExecutionRecord{}, fmt.Errorf("terminate execution: %w", err)
	}
	record, from, advanced, err := s.advancePhase(ctx, record, domain.PhaseAborted)
	if err != nil {
		return repo.ExecutionRecord{}, err
	}
	if !advanced {
		return repo.ExecutionRecord{}, fmt.Errorf("%w: execution %s already %s", repo.ErrConflict, record.ID, record.Phase)
	}
	rid, _ := requestid.FromContext(ctx)
	if err := s.appendAudit(ctx, actor, rid, domain.AuditExecutionCancelled, record.ID, domain.Metadata{
		"project":               record.Project,
		"flow":                  record.Flow,
		"platform_execution_id": record.PlatformExecutionID,
		"from":                  string(from),
		"cause":                 strings.TrimSpace(cause),
	}); err != nil {
		return repo.ExecutionRecord{}, err
	}
	s.logger.Info("execution cancelled", "execution_id", record.ID, "actor", actor)
	return record, nil
}

// advancePhase moves the ledger phase forward with a compare-and-set against
// the phase in record. After losing a race it re-reads the record and retries
// while the move is still allowed. It reports the phase it moved from and
// whether this call made the change.
func (s *Service) advancePhase(ctx context.Context, record repo.ExecutionRecord, to domain.Phase) (repo.ExecutionRecord, domain.Phase, bool, error) {
	for attempt := 0; attempt < phaseUpdateAttempts; attempt++ {
		if record.Phase == to || !domain.CanTransition(record.Phase, to) {
			return record, "", false, nil
		}
		from := record.Phase
		err := s.executions.UpdatePhase(ctx, record.ID, from, to)
		if err == nil {
			record.Phase = to
			return record, from, true, nil
		}
		if !errors.Is(err, repo.ErrConflict) {
			return record, "", false, fmt.Errorf("update phase: %w", err)
		}
		current, err := s.executions.GetExecution(ctx, record.ID)
		if err != nil {
			return record, "", false, err
		}
		s.logger.Warn("execution phase changed concurrently",
			"execution_id", record.ID,
			"expected", string(from),
			"stored", string(current.Phase),
			"want", string(to),
		)
		record = current
	}
	return record, "", false, fmt.Errorf("update phase of %s: %w", record.ID, repo.ErrConflict)
}

func (s *Service) appendAudit(ctx context.Context, actor, requestID, action, executionID string, payload domain.Metadata) error {
	_, err := s.audit.Append(ctx, domain.AuditEvent{
		OccurredAt:   s.now(),
		Actor:        actor,
		Action:       action,
		ResourceType: domain.AuditResourceExecution,
		ResourceID:   executionID,
		RequestID:    requestID,
		Payload:      payload,
	})
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func trimInputs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
