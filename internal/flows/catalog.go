// Package flows is the catalog of clinical workflows this repository ships.
package flows

import (
	"sort"
	"strings"

	"github.com/animus-labs/trialflow/internal/domain"
)

// Definition is a catalog entry. Build declares the workflow against settings;
// it returns the validation error of the declaration, if any.
type Definition struct {
	Name        string
	Description string
	Build       func(Settings) (domain.Workflow, error)
}

var catalog = []Definition{
	{
		Name:        "workflow.ADaM_TFL",
		Description: "factory-based ADaM and TFL flow rooted at an SDTM data path; T_VSCAT runs prod/t_vscat.sas, not the T_AE_REL program",
		Build:       BuildADaMTFL,
	},
	{
		Name:        "flow_1.ADaM_TFL",
		Description: "explicit ADaM and TFL jobs using project defaults, outputs gathered in flow artifacts",
		Build:       BuildFlow1,
	},
	{
		Name:        "flow_1_prod.ADaM_TFL",
		Description: "fully pinned ADaM and TFL jobs with export of ADaM datasets",
		Build:       BuildFlow1Prod,
	},
}

// Catalog returns the definitions sorted by name.
func Catalog() []Definition {
	out := append([]Definition(nil), catalog...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func Lookup(name string) (Definition, bool) {
	name = strings.TrimSpace(name)
	for _, def := range catalog {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}
