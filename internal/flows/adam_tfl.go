package flows

import (
	"github.com/animus-labs/trialflow/internal/clinical"
	"github.com/animus-labs/trialflow/internal/domain"
	"github.com/animus-labs/trialflow/internal/flow"
)

// BuildADaMTFL declares the factory-based pipeline. Its single parameter is the
// root directory of the SDTM data, blinded or unblinded.
func BuildADaMTFL(s Settings) (domain.Workflow, error) {
	b := flow.New("ADaM_TFL", domain.Param{Name: "sdtm_data_path", Type: domain.String()}).
		Describe("Derives ADSL, ADAE and ADVS from SDTM data and renders the T_AE_REL and T_VSCAT reports.")
	sdtm := b.Input("sdtm_data_path")

	adsl := clinical.CreateADaMData(b, clinical.ADaMOptions{
		Name:         "ADSL",
		Command:      "prod/adsl.sas",
		Environment:  s.SASEnvironment,
		HardwareTier: s.HardwareTier,
		SDTMDataPath: sdtm,
	})
	adae := clinical.CreateADaMData(b, clinical.ADaMOptions{
		Name:         "ADAE",
		Command:      "prod/adae.sas",
		Environment:  s.SASEnvironment,
		HardwareTier: s.HardwareTier,
		SDTMDataPath: sdtm,
		Dependencies: []clinical.ADaM{adsl},
	})
	advs := clinical.CreateADaMData(b, clinical.ADaMOptions{
		Name:         "ADVS",
		Command:      "prod/advs.sas",
		Environment:  s.SASEnvironment,
		HardwareTier: s.HardwareTier,
		SDTMDataPath: sdtm,
		Dependencies: []clinical.ADaM{adsl, adae},
	})

	tAERel := clinical.CreateTFLReport(b, clinical.TFLOptions{
		Name:         "T_AE_REL",
		Command:      "prod/t_ae_rel.sas",
		Environment:  s.SASEnvironment,
		HardwareTier: s.HardwareTier,
		Dependencies: []clinical.ADaM{adae},
	})
	tVSCat := clinical.CreateTFLReport(b, clinical.TFLOptions{
		Name:         "T_VSCAT",
		Command:      "prod/t_vscat.sas",
		Environment:  s.SASEnvironment,
		HardwareTier: s.HardwareTier,
		Dependencies: []clinical.ADaM{advs},
	})

	b.Return("t_ae_rel", tAERel)
	b.Return("t_vscat", tVSCat)
	return b.Build()
}
