// Package model defines the campaign data structures: job kinds, defaults
// records, step specifications, resolved jobs, lifecycle statuses and
// identifiers shared by the composer and the submission adapters.
package model

// Field names a resolvable template field. Step overrides and defaults
// records are keyed by the same set.
type Field string

const (
	FieldOwner               Field = "owner"
	FieldDescriptionFormat   Field = "description_format"
	FieldInstructionSet      Field = "instruction_set"
	FieldTarget              Field = "target"
	FieldTime                Field = "time"
	FieldParams              Field = "params"
	FieldIDs                 Field = "ids"
	FieldNotes               Field = "notes"
	FieldAntennaSpec         Field = "antenna_spec"
	FieldControlledResources Field = "controlled_resources"
)

// DefaultsRecord is the immutable template for one job kind. InstructionSet
// holds the script invocation prefix; the composer appends target, time,
// params and ids to it.
type DefaultsRecord struct {
	Owner               string `yaml:"owner"`
	DescriptionFormat   string `yaml:"description_format"`
	InstructionSet      string `yaml:"instruction_set"`
	Time                string `yaml:"time"`
	Params              string `yaml:"params"`
	IDs                 string `yaml:"ids"`
	Notes               string `yaml:"notes"`
	AntennaSpec         string `yaml:"antenna_spec"`
	ControlledResources string `yaml:"controlled_resources"`
}

// Field returns the record value for f, or "" for an unknown field.
func (r DefaultsRecord) Field(f Field) string {
	switch f {
	case FieldOwner:
		return r.Owner
	case FieldDescriptionFormat:
		return r.DescriptionFormat
	case FieldInstructionSet:
		return r.InstructionSet
	case FieldTime:
		return r.Time
	case FieldParams:
		return r.Params
	case FieldIDs:
		return r.IDs
	case FieldNotes:
		return r.Notes
	case FieldAntennaSpec:
		return r.AntennaSpec
	case FieldControlledResources:
		return r.ControlledResources
	}
	return ""
}

// StepSpec is one requested observation step: a kind selecting the defaults
// record plus partial field overrides. A missing or empty override defers to
// the defaults record.
type StepSpec struct {
	Kind      string
	Overrides map[Field]string
}

// Override returns the override for f when present and non-empty.
func (s StepSpec) Override(f Field) (string, bool) {
	v, ok := s.Overrides[f]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Target returns the observation target identifier and display name for the
// step: an explicit target override when present, otherwise the kind string
// itself (tabular and group-key steps name pulsars directly in the kind).
func (s StepSpec) Target() string {
	if v, ok := s.Override(FieldTarget); ok {
		return v
	}
	return s.Kind
}

// Sequence is one atomic run of steps executed in listed order before the
// next sequence begins.
type Sequence []StepSpec

// Campaign is the full ordered set of sequences submitted together under one
// program block. Assembled in memory for a single run.
type Campaign struct {
	Name      string
	Sequences []Sequence
}

// ResolvedJob is one fully-parameterized schedule block ready for
// submission. SequenceIndex is non-decreasing across emission order and
// increases only at sequence boundaries; OrderIndex restarts at 0 for each
// sequence.
type ResolvedJob struct {
	Owner               string `json:"owner" yaml:"owner"`
	AntennaSpec         string `json:"antenna_spec" yaml:"antenna_spec"`
	ControlledResources string `json:"controlled_resources" yaml:"controlled_resources"`
	Description         string `json:"description" yaml:"description"`
	InstructionSet      string `json:"instruction_set" yaml:"instruction_set"`
	Notes               string `json:"notes,omitempty" yaml:"notes,omitempty"`
	SequenceIndex       int    `json:"sequence_index" yaml:"sequence_index"`
	OrderIndex          int    `json:"order_index" yaml:"order_index"`
}
