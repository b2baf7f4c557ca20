package plan

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/animus-labs/trialflow/internal/domain"
)

// SpecHash returns the sha256 of the canonical definition with the hash field
// cleared. It identifies the workflow version registered on the platform.
func SpecHash(plan domain.ExecutionPlan) (string, error) {
	plan.SpecHash = ""
	raw, err := MarshalDefinition(plan)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
