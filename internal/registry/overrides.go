package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mkatops/ptcamp/internal/model"
)

const (
	OverridesFileType = "ptcamp/registry"
)

type overridesFile struct {
	SchemaVersion string                          `yaml:"schema_version"`
	FileType      string                          `yaml:"file_type"`
	Kinds         map[string]model.DefaultsRecord `yaml:"kinds"`
}

// LoadOverrides reads a registry override file and returns a new registry
// with each listed kind replaced wholesale. An override entry must be a
// complete record; partial entries are rejected so a typo cannot silently
// blank a template.
func LoadOverrides(base *Registry, path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry overrides: %w", err)
	}

	var file overridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry overrides: %w", err)
	}
	if file.SchemaVersion == "" {
		return nil, fmt.Errorf("registry overrides: schema_version is required")
	}
	if file.FileType != OverridesFileType {
		return nil, fmt.Errorf("registry overrides: unexpected file_type %q, want %q", file.FileType, OverridesFileType)
	}

	for kind, rec := range file.Kinds {
		if err := validateRecord(kind, rec); err != nil {
			return nil, fmt.Errorf("registry overrides validation failed: %w", err)
		}
	}

	merged := make(map[string]model.DefaultsRecord, len(base.records)+len(file.Kinds))
	for k, v := range base.records {
		merged[k] = v
	}
	for k, v := range file.Kinds {
		merged[k] = v
	}
	return New(merged), nil
}

func validateRecord(kind string, rec model.DefaultsRecord) error {
	if kind == "" {
		return fmt.Errorf("kinds: empty kind name")
	}
	if rec.Owner == "" {
		return fmt.Errorf("kinds[%s]: owner is required", kind)
	}
	if rec.DescriptionFormat == "" {
		return fmt.Errorf("kinds[%s]: description_format is required", kind)
	}
	if rec.InstructionSet == "" {
		return fmt.Errorf("kinds[%s]: instruction_set is required", kind)
	}
	return nil
}
