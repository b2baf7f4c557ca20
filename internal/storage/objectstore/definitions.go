package objectstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/execution/plan"
)

const (
	definitionObject = "definition.json"
	renderedObject   = "definition.yaml"
)

// DefinitionArchive keeps an immutable copy of every registered workflow
// version, keyed by workflow name and spec hash.
type DefinitionArchive struct {
	store Store
}

// Location is where an archived definition lives.
type Location struct {
	Bucket string
	Prefix string
	// Created is false when the version was already archived.
	Created bool
}

func NewDefinitionArchive(store Store) (*DefinitionArchive, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	return &DefinitionArchive{store: store}, nil
}

// Prefix returns the object prefix of one workflow version.
func Prefix(workflow, specHash string) string {
	return path.Join("workflows", domain.NodeID(workflow), specHash)
}

// Save archives the JSON definition and its YAML rendering. Versions are
// write-once: an existing definition is left untouched.
func (a *DefinitionArchive) Save(ctx context.Context, p domain.ExecutionPlan) (Location, error) {
	if a == nil {
		return Location{}, errors.New("definition archive not initialized")
	}
	if strings.TrimSpace(p.SpecHash) == "" {
		return Location{}, errors.New("spec hash is required")
	}
	loc := Location{Bucket: a.store.Bucket(), Prefix: Prefix(p.Workflow, p.SpecHash)}
	jsonKey := path.Join(loc.Prefix, definitionObject)

	exists, err := a.store.Exists(ctx, jsonKey)
	if err != nil {
		return Location{}, err
	}
	if exists {
		return loc, nil
	}

	raw, err := plan.MarshalDefinition(p)
	if err != nil {
		return Location{}, fmt.Errorf("marshal definition: %w", err)
	}
	rendered, err := plan.RenderYAML(p)
	if err != nil {
		return Location{}, fmt.Errorf("render definition: %w", err)
	}
	labels := map[string]string{"workflow": p.Workflow, "spec-hash": p.SpecHash}
	if err := a.store.Write(ctx, path.Join(loc.Prefix, renderedObject), Object{Data: rendered, ContentType: "application/yaml", Labels: labels}); err != nil {
		return Location{}, err
	}
	// definition.json goes last; its presence marks a complete version.
	if err := a.store.Write(ctx, jsonKey, Object{Data: raw, ContentType: "application/json", Labels: labels}); err != nil {
		return Location{}, err
	}
	loc.Created = true
	return loc, nil
}

// Load reads an archived definition back into a plan.
func (a *DefinitionArchive) Load(ctx context.Context, workflow, specHash string) (domain.ExecutionPlan, error) {
	if a == nil {
		return domain.ExecutionPlan{}, errors.New("definition archive not initialized")
	}
	raw, err := a.store.Read(ctx, path.Join(Prefix(workflow, specHash), definitionObject))
	if err != nil {
		return domain.ExecutionPlan{}, fmt.Errorf("load definition %s@%s: %w", workflow, specHash, err)
	}
	return plan.UnmarshalDefinition(raw)
}
