package launches

import (
	"context"
	"fmt"
	"sync"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/flowapi"
	"github.com/animus-labs/trialflow/internal/repo"
	"github.com/animus-labs/trialflow/internal/storage/objectstore"
)

type fakeExecutions struct {
	mu      sync.Mutex
	records map[string]repo.ExecutionRecord
	order   []string
}

func newFakeExecutions() *fakeExecutions {
	return &fakeExecutions{records: map[string]repo.ExecutionRecord{}}
}

func (f *fakeExecutions) CreateExecution(_ context.Context, record repo.ExecutionRecord) (repo.ExecutionRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		existing := f.records[id]
		if existing.Project == record.Project && existing.IdempotencyKey == record.IdempotencyKey {
			return existing, false, nil
		}
	}
	record.ID = fmt.Sprintf("exec-%d", len(f.order)+1)
	record.UpdatedAt = record.CreatedAt
	f.records[record.ID] = record
	f.order = append(f.order, record.ID)
	return record, true, nil
}

func (f *fakeExecutions) GetExecution(_ context.Context, id string) (repo.ExecutionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return repo.ExecutionRecord{}, repo.ErrNotFound
	}
	return record, nil
}

func (f *fakeExecutions) ListExecutions(_ context.Context, filter repo.ExecutionFilter) ([]repo.ExecutionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repo.ExecutionRecord, 0)
	for _, id := range f.order {
		record := f.records[id]
		if filter.Project != "" && record.Project != filter.Project {
			continue
		}
		if filter.Flow != "" && record.Flow != filter.Flow {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (f *fakeExecutions) AttachPlatformExecution(_ context.Context, id, platformID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return repo.ErrNotFound
	}
	if record.PlatformExecutionID != "" && record.PlatformExecutionID != platformID {
		return repo.ErrConflict
	}
	record.PlatformExecutionID = platformID
	f.records[id] = record
	return nil
}

func (f *fakeExecutions) UpdatePhase(_ context.Context, id string, from, to domain.Phase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return repo.ErrNotFound
	}
	if record.Phase != from {
		return fmt.Errorf("execution %s is %s, not %s: %w", id, record.Phase, from, repo.ErrConflict)
	}
	record.Phase = to
	f.records[id] = record
	return nil
}

type fakeNodes struct {
	mu           sync.Mutex
	observations []repo.NodeObservation
}

func (f *fakeNodes) InsertObservation(_ context.Context, obs repo.NodeObservation) (repo.NodeObservation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.observations {
		if existing.ExecutionID == obs.ExecutionID && existing.NodeID == obs.NodeID && existing.Phase == obs.Phase {
			return existing, false, nil
		}
	}
	obs.ID = fmt.Sprintf("obs-%d", len(f.observations)+1)
	f.observations = append(f.observations, obs)
	return obs, true, nil
}

func (f *fakeNodes) ListByExecution(_ context.Context, executionID string) ([]repo.NodeObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repo.NodeObservation, 0)
	for _, obs := range f.observations {
		if obs.ExecutionID == executionID {
			out = append(out, obs)
		}
	}
	return out, nil
}

type fakeAudit struct {
	events []domain.AuditEvent
}

func (f *fakeAudit) Append(_ context.Context, event domain.AuditEvent) (int64, error) {
	if err := event.Validate(); err != nil {
		return 0, err
	}
	f.events = append(f.events, event)
	return int64(len(f.events)), nil
}

func (f *fakeAudit) actions() []string {
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Action)
	}
	return out
}

type fakePlatform struct {
	registered  []string
	launches    []flowapi.LaunchRequest
	terminated  []string
	phase       string
	phases      []string
	nodes       []flowapi.NodeExecution
	getErrs     []error
	getCalls    int
	launchPhase string
	launchErrs  []error
	// beforeGet and beforeTerminate run once at the start of the next call.
	beforeGet       func()
	beforeTerminate func()
}

func (f *fakePlatform) RegisterWorkflow(_ context.Context, name, version string, _ []byte) error {
	f.registered = append(f.registered, name+"@"+version)
	return nil
}

func (f *fakePlatform) LaunchExecution(_ context.Context, req flowapi.LaunchRequest) (flowapi.Execution, error) {
	f.launches = append(f.launches, req)
	if len(f.launchErrs) > 0 {
		err := f.launchErrs[0]
		f.launchErrs = f.launchErrs[1:]
		if err != nil {
			return flowapi.Execution{}, err
		}
	}
	return flowapi.Execution{ID: fmt.Sprintf("pex-%d", len(f.launches)), Workflow: req.Workflow, Version: req.Version, Phase: f.launchPhase}, nil
}

func (f *fakePlatform) GetExecution(_ context.Context, id string) (flowapi.Execution, error) {
	f.getCalls++
	if hook := f.beforeGet; hook != nil {
		f.beforeGet = nil
		hook()
	}
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return flowapi.Execution{}, err
		}
	}
	if len(f.phases) > 0 {
		f.phase = f.phases[0]
		f.phases = f.phases[1:]
	}
	return flowapi.Execution{ID: id, Phase: f.phase}, nil
}

func (f *fakePlatform) ListNodeExecutions(context.Context, string) ([]flowapi.NodeExecution, error) {
	return append([]flowapi.NodeExecution(nil), f.nodes...), nil
}

func (f *fakePlatform) TerminateExecution(_ context.Context, id, _ string) error {
	if hook := f.beforeTerminate; hook != nil {
		f.beforeTerminate = nil
		hook()
	}
	f.terminated = append(f.terminated, id)
	return nil
}

type fakeArchive struct {
	saved []string
}

func (f *fakeArchive) Save(_ context.Context, p domain.ExecutionPlan) (objectstore.Location, error) {
	f.saved = append(f.saved, p.SpecHash)
	return objectstore.Location{Bucket: "flow-definitions", Prefix: objectstore.Prefix(p.Workflow, p.SpecHash), Created: len(f.saved) == 1}, nil
}
