package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/mkatops/ptcamp/internal/model"
)

// Row-stream parse states. While ACCUMULATING, a boundary row arriving on a
// non-empty accumulator closes the current sequence (AT_BOUNDARY); the row
// itself then opens the next sequence and parsing returns to ACCUMULATING.
type parseState int

const (
	stateAccumulating parseState = iota
	stateAtBoundary
)

type sequenceAccumulator struct {
	state     parseState
	current   model.Sequence
	sequences []model.Sequence
}

func (a *sequenceAccumulator) feed(step model.StepSpec) {
	if a.state == stateAccumulating && model.IsBoundaryKind(step.Kind) && len(a.current) > 0 {
		a.sequences = append(a.sequences, a.current)
		a.current = nil
		a.state = stateAtBoundary
	}
	a.current = append(a.current, step)
	a.state = stateAccumulating
}

// finish closes the trailing sequence. A final empty accumulator adds
// nothing, so an empty input yields zero sequences.
func (a *sequenceAccumulator) finish() []model.Sequence {
	if len(a.current) > 0 {
		a.sequences = append(a.sequences, a.current)
	}
	return a.sequences
}

// ReadCSV parses rows of (target, time) into sequences. There is no header
// row. An empty or absent time field means the step defers to the defaults
// record; a value v becomes the override "-t v". Boundary rows start a new
// sequence per the accumulator rule and are kept as steps themselves.
func ReadCSV(r io.Reader) ([]model.Sequence, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	acc := &sequenceAccumulator{}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++

		target := record[0]
		if target == "" {
			return nil, &MalformedRowError{Line: line}
		}

		step := model.StepSpec{Kind: target}
		if len(record) > 1 && record[1] != "" {
			step.Overrides = map[model.Field]string{
				model.FieldTime: "-t " + record[1],
			}
		}
		acc.feed(step)
	}

	return acc.finish(), nil
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) ([]model.Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}
