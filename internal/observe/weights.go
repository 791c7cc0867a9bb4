package observe

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// InputWeight pairs one stream input with its beamformer weight.
type InputWeight struct {
	Input  string
	Weight float64
}

// BeamWeights assigns each stream input its tied-array weight: inputs
// fed by one of the n beamformer antennas get 1/sqrt(n), all others 0.
// Input order is preserved.
func BeamWeights(inputs, bfAnts []string) []InputWeight {
	weight := 0.0
	if n := len(bfAnts); n > 0 {
		weight = 1 / math.Sqrt(float64(n))
	}
	out := make([]InputWeight, len(inputs))
	for i, in := range inputs {
		out[i] = InputWeight{Input: in}
		if contains(bfAnts, inputAntenna(in)) {
			out[i].Weight = weight
		}
	}
	return out
}

// inputAntenna strips the trailing polarisation letter of an input name.
func inputAntenna(input string) string {
	if len(input) < 2 {
		return input
	}
	return input[:len(input)-1]
}

const weightTolerance = 1e-9

// VerifyWeights checks that the enabled inputs of each polarisation
// carry unit power, the invariant the 1/sqrt(n) rule establishes.
func VerifyWeights(weights []InputWeight) error {
	byPol := make(map[byte][]float64)
	for _, w := range weights {
		if w.Weight == 0 || w.Input == "" {
			continue
		}
		pol := w.Input[len(w.Input)-1]
		byPol[pol] = append(byPol[pol], w.Weight)
	}
	for pol, v := range byPol {
		if norm := floats.Norm(v, 2); math.Abs(norm-1) > weightTolerance {
			return fmt.Errorf("polarisation %c weights have norm %g, want 1", pol, norm)
		}
	}
	return nil
}
