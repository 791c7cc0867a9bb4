package observe

import (
	"fmt"
	"strings"

	"github.com/mkatops/ptcamp/internal/session"
)

// Calibration observation modes. flux observes on source, fluxN and
// fluxS observe a declination-offset pointing so the source sits on the
// beam's flank, poln tracks the source unmodified for polarisation
// calibration.
const (
	CalFlux      = "flux"
	CalFluxNorth = "fluxN"
	CalFluxSouth = "fluxS"
	CalPoln      = "poln"
)

// DefaultCalOffsetDeg is the declination offset applied by the fluxN
// and fluxS modes when the job does not override it.
const DefaultCalOffsetDeg = 1.0

// CalTargets derives the pointing list for a calibration mode. Offset
// pointings keep the source's right ascension, shift declination by
// offsetDeg and mark the pointing with an _O, _N or _S name suffix;
// spaces in the source name are stripped. Mode "" observes the target
// as-is.
func CalTargets(mode string, target session.Target, offsetDeg float64) ([]session.Target, error) {
	name := strings.ReplaceAll(target.Name, " ", "")
	switch mode {
	case "", CalPoln:
		return []session.Target{target}, nil
	case CalFlux:
		t := target
		t.Name = name + "_O"
		return []session.Target{t}, nil
	case CalFluxNorth:
		t := target
		t.Name = name + "_N"
		t.Dec += offsetDeg
		return []session.Target{t}, nil
	case CalFluxSouth:
		t := target
		t.Name = name + "_S"
		t.Dec -= offsetDeg
		return []session.Target{t}, nil
	default:
		return nil, fmt.Errorf("unknown cal mode %q (choose %s, %s, %s or %s)",
			mode, CalPoln, CalFlux, CalFluxNorth, CalFluxSouth)
	}
}
