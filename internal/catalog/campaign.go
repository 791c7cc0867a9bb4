package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mkatops/ptcamp/internal/model"
)

const CampaignFileType = "ptcamp/campaign"

type campaignFile struct {
	SchemaVersion string             `yaml:"schema_version"`
	FileType      string             `yaml:"file_type"`
	Name          string             `yaml:"name"`
	Sequences     []campaignSequence `yaml:"sequences"`
}

type campaignSequence struct {
	Steps []campaignStep `yaml:"steps"`
}

type campaignStep struct {
	Kind                string `yaml:"kind"`
	Target              string `yaml:"target,omitempty"`
	Owner               string `yaml:"owner,omitempty"`
	Time                string `yaml:"time,omitempty"`
	Params              string `yaml:"params,omitempty"`
	IDs                 string `yaml:"ids,omitempty"`
	Notes               string `yaml:"notes,omitempty"`
	AntennaSpec         string `yaml:"antenna_spec,omitempty"`
	ControlledResources string `yaml:"controlled_resources,omitempty"`
	DescriptionFormat   string `yaml:"description_format,omitempty"`
	InstructionSet      string `yaml:"instruction_set,omitempty"`
}

func (s campaignStep) toStepSpec() model.StepSpec {
	overrides := map[model.Field]string{}
	set := func(f model.Field, v string) {
		if v != "" {
			overrides[f] = v
		}
	}
	set(model.FieldTarget, s.Target)
	set(model.FieldOwner, s.Owner)
	set(model.FieldTime, s.Time)
	set(model.FieldParams, s.Params)
	set(model.FieldIDs, s.IDs)
	set(model.FieldNotes, s.Notes)
	set(model.FieldAntennaSpec, s.AntennaSpec)
	set(model.FieldControlledResources, s.ControlledResources)
	set(model.FieldDescriptionFormat, s.DescriptionFormat)
	set(model.FieldInstructionSet, s.InstructionSet)
	if len(overrides) == 0 {
		overrides = nil
	}
	return model.StepSpec{Kind: s.Kind, Overrides: overrides}
}

func (f campaignFile) validate() *ValidationErrors {
	ve := &ValidationErrors{}
	if f.SchemaVersion == "" {
		ve.Add("schema_version", "required field is missing")
	}
	if f.FileType != CampaignFileType {
		ve.Add("file_type", fmt.Sprintf("must be %q, got %q", CampaignFileType, f.FileType))
	}
	if len(f.Sequences) == 0 {
		ve.Add("sequences", "at least one sequence is required")
	}
	for i, seq := range f.Sequences {
		if len(seq.Steps) == 0 {
			ve.Add(fmt.Sprintf("sequences[%d].steps", i), "at least one step is required")
		}
		for j, st := range seq.Steps {
			if st.Kind == "" {
				ve.Add(fmt.Sprintf("sequences[%d].steps[%d].kind", i, j), "required field is missing")
			}
		}
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// LoadCampaign parses and validates YAML campaign content.
func LoadCampaign(data []byte, fallbackName string) (model.Campaign, error) {
	var file campaignFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return model.Campaign{}, fmt.Errorf("parse campaign: %w", err)
	}
	if ve := file.validate(); ve != nil {
		return model.Campaign{}, ve
	}

	name := file.Name
	if name == "" {
		name = fallbackName
	}
	sequences := make([]model.Sequence, 0, len(file.Sequences))
	for _, seq := range file.Sequences {
		s := make(model.Sequence, 0, len(seq.Steps))
		for _, st := range seq.Steps {
			s = append(s, st.toStepSpec())
		}
		sequences = append(sequences, s)
	}
	return model.Campaign{Name: name, Sequences: sequences}, nil
}

// LoadCampaignFile reads a YAML campaign file.
func LoadCampaignFile(path string) (model.Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Campaign{}, fmt.Errorf("read campaign: %w", err)
	}
	return LoadCampaign(data, baseName(path))
}

// FromFile parses a campaign input file, telling CSV and YAML apart by
// extension.
func FromFile(path string) (model.Campaign, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		sequences, err := ReadCSVFile(path)
		if err != nil {
			return model.Campaign{}, err
		}
		return model.Campaign{Name: baseName(path), Sequences: sequences}, nil
	case ".yaml", ".yml":
		return LoadCampaignFile(path)
	default:
		return model.Campaign{}, fmt.Errorf("unsupported campaign file extension: %s", filepath.Ext(path))
	}
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
