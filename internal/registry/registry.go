// Package registry maps job kinds to their defaults records: the shared
// owner, description, instruction prefix, timing, parameter and resource
// templates that steps override per campaign.
package registry

import (
	"fmt"
	"sort"

	"github.com/mkatops/ptcamp/internal/model"
)

// UnknownKindError reports a lookup for a kind the registry does not carry.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown job kind %q", e.Kind)
}

// Registry is a read-only kind → defaults mapping. Populated once at
// startup; Lookup has no side effects.
type Registry struct {
	records map[string]model.DefaultsRecord
}

// New builds a registry from an explicit record set. Callers own the
// completeness of the set; Builtin covers the production kinds.
func New(records map[string]model.DefaultsRecord) *Registry {
	m := make(map[string]model.DefaultsRecord, len(records))
	for k, v := range records {
		m[k] = v
	}
	return &Registry{records: m}
}

// Lookup returns the defaults record for kind.
func (r *Registry) Lookup(kind string) (model.DefaultsRecord, error) {
	rec, ok := r.records[kind]
	if !ok {
		return model.DefaultsRecord{}, &UnknownKindError{Kind: kind}
	}
	return rec, nil
}

// Kinds returns the registered kind names in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.records))
	for k := range r.records {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
