// Package compose expands campaign sequences into fully resolved,
// submission-ready jobs.
//
// Resolution is two-level and explicit: a step override wins when present
// and non-empty, the kind's defaults record fills the rest, and a field
// absent from both resolves to the empty string. Empty fields are dropped
// from the assembled instruction so the rendered text never carries
// doubled spaces.
package compose

import (
	"fmt"
	"strings"

	"github.com/mkatops/ptcamp/internal/model"
	"github.com/mkatops/ptcamp/internal/registry"
)

// Composer expands step specifications against a fixed registry. Composers
// hold no mutable state and are safe for concurrent use.
type Composer struct {
	reg *registry.Registry
}

// New returns a composer bound to reg.
func New(reg *registry.Registry) *Composer {
	return &Composer{reg: reg}
}

// Compose resolves every step of every sequence into a flat job list in
// emission order. SequenceIndex and OrderIndex record each job's position:
// order restarts at zero per sequence, sequence increments by one at each
// sequence boundary. The first unknown kind aborts the whole expansion and
// no partial output is returned.
func (c *Composer) Compose(sequences []model.Sequence) ([]model.ResolvedJob, error) {
	var jobs []model.ResolvedJob
	for si, seq := range sequences {
		for oi, step := range seq {
			job, err := c.resolve(step, si, oi)
			if err != nil {
				return nil, fmt.Errorf("sequence %d step %d: %w", si, oi, err)
			}
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (c *Composer) resolve(step model.StepSpec, seqIndex, orderIndex int) (model.ResolvedJob, error) {
	rec, err := c.reg.Lookup(string(model.ClassifyKind(step.Kind)))
	if err != nil {
		return model.ResolvedJob{}, err
	}

	pick := func(f model.Field) string {
		if v, ok := step.Override(f); ok {
			return v
		}
		return rec.Field(f)
	}

	// Boundary kinds run targetless calibration scripts; every other kind
	// names its target between the prefix and the timing flag.
	parts := []string{pick(model.FieldInstructionSet)}
	if !model.IsBoundaryKind(step.Kind) {
		parts = append(parts, step.Target())
	}
	parts = append(parts, pick(model.FieldTime), pick(model.FieldParams), pick(model.FieldIDs))

	return model.ResolvedJob{
		Owner:               pick(model.FieldOwner),
		AntennaSpec:         pick(model.FieldAntennaSpec),
		ControlledResources: pick(model.FieldControlledResources),
		Description:         strings.ReplaceAll(pick(model.FieldDescriptionFormat), "{}", step.Target()),
		InstructionSet:      joinFields(parts),
		Notes:               pick(model.FieldNotes),
		SequenceIndex:       seqIndex,
		OrderIndex:          orderIndex,
	}, nil
}

// joinFields trims each part, drops the empty ones and joins the rest with
// single spaces.
func joinFields(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, " ")
}

// EmptyFields lists the resolved fields of job that came out empty after
// two-level resolution. Dry runs surface these before anything is
// submitted. Notes is not listed; kinds legitimately ship without notes.
func EmptyFields(job model.ResolvedJob) []string {
	checks := []struct {
		name  string
		value string
	}{
		{"owner", job.Owner},
		{"antenna_spec", job.AntennaSpec},
		{"controlled_resources", job.ControlledResources},
		{"description", job.Description},
		{"instruction_set", job.InstructionSet},
	}
	var empty []string
	for _, ch := range checks {
		if strings.TrimSpace(ch.value) == "" {
			empty = append(empty, ch.name)
		}
	}
	return empty
}
