// Package observe rehearses composed schedule blocks against a simulated
// telescope session before anything reaches the scheduler: it parses each
// job's instruction line the way the downstream execution subsystem
// would, verifies backend arguments, derives beam passbands and weights,
// plans noise-diode patterns and drives the track/capture/fold cycle.
package observe

import (
	"fmt"
	"path"
	"strings"
)

// Invocation is one parsed instruction line: the observation script and
// its raw argument tokens, single-quote groups resolved.
type Invocation struct {
	Script string
	Args   []string
}

// runner is the wrapper every production instruction starts with.
const runner = "run-obs-script"

// ParseInvocation splits an instruction line into script and arguments.
func ParseInvocation(instruction string) (Invocation, error) {
	tokens, err := splitFields(instruction)
	if err != nil {
		return Invocation{}, err
	}
	if len(tokens) == 0 {
		return Invocation{}, fmt.Errorf("empty instruction")
	}
	if tokens[0] != runner {
		return Invocation{}, fmt.Errorf("instruction does not invoke %s: %q", runner, tokens[0])
	}
	if len(tokens) < 2 {
		return Invocation{}, fmt.Errorf("instruction names no script")
	}
	return Invocation{Script: tokens[1], Args: tokens[2:]}, nil
}

// Base returns the script file name without its directory.
func (inv Invocation) Base() string {
	return path.Base(inv.Script)
}

// splitFields splits on whitespace with single-quote grouping, the same
// treatment the execution host's shell gives the line. Quotes group and
// are dropped; an unterminated quote is an error.
func splitFields(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuote := false
	started := false
	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				fields = append(fields, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in instruction")
	}
	if started {
		fields = append(fields, cur.String())
	}
	return fields, nil
}

// argSpec describes one accepted script option: the canonical name the
// scanner records it under and whether it consumes a value.
type argSpec struct {
	canon      string
	takesValue bool
}

// standardOpts are the options every observation script accepts.
var standardOpts = map[string]argSpec{
	"t":                {"target-duration", true},
	"target-duration":  {"target-duration", true},
	"n":                {"nd-params", true},
	"nd-params":        {"nd-params", true},
	"horizon":          {"horizon", true},
	"ants":             {"ants", true},
	"description":      {"description", true},
	"proposal-id":      {"proposal-id", true},
	"program-block-id": {"program-block-id", true},
	"issue-id":         {"issue-id", true},
	"dry-run":          {"dry-run", false},
}

// beamformOpts extend the standard set for the beamforming scripts.
var beamformOpts = map[string]argSpec{
	"B":                {"beam-bandwidth", true},
	"beam-bandwidth":   {"beam-bandwidth", true},
	"F":                {"beam-centre-freq", true},
	"beam-centre-freq": {"beam-centre-freq", true},
	"backend":          {"backend", true},
	"backend-args":     {"backend-args", true},
	"drift-scan":       {"drift-scan", false},
}

// fluxcalOpts are accepted by the flux calibration script only.
var fluxcalOpts = map[string]argSpec{
	"noise-source": {"noise-source", true},
	"noise-cycle":  {"noise-cycle", true},
	"cal":          {"cal", true},
	"cal-offset":   {"cal-offset", true},
}

// phaseupOpts extend the standard set for the gain calibration script.
var phaseupOpts = map[string]argSpec{
	"flatten-bandpass": {"flatten-bandpass", false},
}

func mergeSpecs(tables ...map[string]argSpec) map[string]argSpec {
	out := make(map[string]argSpec)
	for _, t := range tables {
		for k, v := range t {
			out[k] = v
		}
	}
	return out
}

// scanArgs separates option tokens from positionals against a spec
// table. Options are recorded under their canonical name; presence
// flags record "true". Unknown options are an error naming the flag.
func scanArgs(args []string, specs map[string]argSpec) (map[string]string, []string, error) {
	flags := make(map[string]string)
	var positionals []string
	for i := 0; i < len(args); i++ {
		tok := args[i]
		if !strings.HasPrefix(tok, "-") || tok == "-" {
			positionals = append(positionals, tok)
			continue
		}
		name := strings.TrimLeft(tok, "-")
		value := ""
		hasValue := false
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name, value = name[:eq], name[eq+1:]
			hasValue = true
		}
		spec, ok := specs[name]
		if !ok {
			return nil, nil, fmt.Errorf("unknown flag %s", tok)
		}
		if spec.takesValue && !hasValue {
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("flag %s needs a value", tok)
			}
			i++
			value = args[i]
		}
		if !spec.takesValue && !hasValue {
			value = "true"
		}
		flags[spec.canon] = value
	}
	return flags, positionals, nil
}
