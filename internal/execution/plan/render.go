package plan

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/animus-labs/trialflow/internal/domain"
)

// RenderYAML renders the definition for review.
func RenderYAML(plan domain.ExecutionPlan) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(definitionFromPlan(plan)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
