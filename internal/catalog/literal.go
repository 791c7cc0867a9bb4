package catalog

import "github.com/mkatops/ptcamp/internal/model"

func step(kind string) model.StepSpec {
	return model.StepSpec{Kind: kind}
}

func timedStep(kind, time string) model.StepSpec {
	return model.StepSpec{Kind: kind, Overrides: map[model.Field]string{
		model.FieldTime: time,
	}}
}

// builtinGroups returns a fresh copy per call so concurrent campaigns never
// share sequence slices.
func builtinGroups() map[string][]model.Sequence {
	return map[string][]model.Sequence{
		"default": {
			{step("phaseup"), step("J0437-4715"), step("J0738-4042")},
			{step("phaseup"), step("J0742-2822"), step("J0835-4510")},
			{step("phaseup"), step("J0437-4715"), step("J0953+0755")},
		},
		"puls1": {
			{step("phaseup"), timedStep("J0437-4715", "-t 600"), timedStep("J0738-4042", "-t 600")},
			{step("phaseup"), timedStep("J0437-4715", "-t 600"), timedStep("J0738-4042", "-t 600")},
			{step("phaseup"), timedStep("J0437-4715", "-t 600"), timedStep("J0738-4042", "-t 600")},
		},
		"puls2": {
			{step("phaseup"), timedStep("J1909-3744", "-t 60"), timedStep("J1644-4559", "-t 60")},
			{step("phaseup"), timedStep("J1644-4559", "-t 60"), timedStep("J1909-3744", "-t 60")},
		},
		"sarah": {
			{
				model.StepSpec{Kind: "J1909-3744", Overrides: map[model.Field]string{
					model.FieldTime:  "-t 300",
					model.FieldOwner: "sarah",
				}},
			},
			{step("phaseup"), timedStep("J0437-4715", "-t 600")},
		},
	}
}

// Group returns the sequences registered under key.
func Group(key string) ([]model.Sequence, error) {
	groups := builtinGroups()
	sequences, ok := groups[key]
	if !ok {
		return nil, &UnknownGroupKeyError{Key: key}
	}
	return sequences, nil
}

// GroupKeys lists the built-in group keys.
func GroupKeys() []string {
	return []string{"default", "puls1", "puls2", "sarah"}
}
