package flows

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings holds the deployment-specific values the catalog flows are pinned
// to. A YAML params file overlays the defaults field by field.
type Settings struct {
	SASEnvironment    string `yaml:"sas_environment"`
	HardwareTier      string `yaml:"hardware_tier"`
	ExportEnvironment string `yaml:"export_environment"`

	Prod ProdSettings `yaml:"prod"`
}

// ProdSettings pins every execution parameter of the reproducible flow.
type ProdSettings struct {
	EnvironmentRevisionID string `yaml:"environment_revision_id"`
	GitRefType            string `yaml:"git_ref_type"`
	GitRefValue           string `yaml:"git_ref_value"`
	VolumeSizeGiB         int    `yaml:"volume_size_gib"`
	DFSRepoCommitID       string `yaml:"dfs_repo_commit_id"`
	Cache                 bool   `yaml:"cache"`
	CacheVersion          string `yaml:"cache_version"`
	ExportDatasetID       string `yaml:"export_dataset_id"`
}

func DefaultSettings() Settings {
	return Settings{
		SASEnvironment:    "SAS Analytics Pro",
		HardwareTier:      "Small",
		ExportEnvironment: "Domino Standard Environment Py3.10 R4.5 - Latest Cloud",
		Prod: ProdSettings{
			EnvironmentRevisionID: "68792679a33fd917266afcbf",
			GitRefType:            "commitId",
			GitRefValue:           "ae2b61b09125271b5478c53fe06e96c278547769",
			VolumeSizeGiB:         10,
			DFSRepoCommitID:       "93326b183a6dd5ec24035b570337c08108658617",
			Cache:                 false,
			CacheVersion:          "1.0",
			ExportDatasetID:       "685a8797c7e1254245082ff7",
		},
	}
}

// LoadSettings reads a YAML params file over DefaultSettings. An empty path
// returns the defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	path = strings.TrimSpace(path)
	if path == "" {
		return settings, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if err := ParseSettings(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return settings, nil
}

// ParseSettings decodes raw YAML into settings. Keys not present keep their
// current values; unknown keys are rejected.
func ParseSettings(raw []byte, settings *Settings) error {
	if settings == nil {
		return errors.New("settings is required")
	}
	if strings.TrimSpace(string(raw)) == "" {
		return settings.Validate()
	}
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(settings); err != nil {
		return err
	}
	return settings.Validate()
}

func (s Settings) Validate() error {
	var missing []string
	if strings.TrimSpace(s.SASEnvironment) == "" {
		missing = append(missing, "sas_environment")
	}
	if strings.TrimSpace(s.HardwareTier) == "" {
		missing = append(missing, "hardware_tier")
	}
	if strings.TrimSpace(s.ExportEnvironment) == "" {
		missing = append(missing, "export_environment")
	}
	if strings.TrimSpace(s.Prod.ExportDatasetID) == "" {
		missing = append(missing, "prod.export_dataset_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("settings missing: %s", strings.Join(missing, ", "))
	}
	if s.Prod.VolumeSizeGiB < 0 {
		return errors.New("prod.volume_size_gib must be >= 0")
	}
	return nil
}
