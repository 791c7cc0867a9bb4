// Package catalog produces ordered campaign sequences from the built-in
// literal groups, tabular CSV files, and YAML campaign files.
package catalog

import (
	"fmt"

	"github.com/mkatops/ptcamp/internal/model"
)

// UnknownGroupKeyError reports a group key absent from the literal catalog.
type UnknownGroupKeyError struct {
	Key string
}

func (e *UnknownGroupKeyError) Error() string {
	return fmt.Sprintf("unknown group key %q", e.Key)
}

// MalformedRowError reports a tabular row missing the required target field.
type MalformedRowError struct {
	Line int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("row %d: missing target field", e.Line)
}

// Resolve selects the campaign input the way the submit path does: an
// explicit file wins over a group key. CSV and YAML campaign files are told
// apart by extension.
func Resolve(groupKey, filePath string) (model.Campaign, error) {
	if filePath != "" {
		return FromFile(filePath)
	}
	sequences, err := Group(groupKey)
	if err != nil {
		return model.Campaign{}, err
	}
	return model.Campaign{Name: groupKey, Sequences: sequences}, nil
}
