package observe

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// Backends accepted by the beamforming scripts. Only dspsr and digifits
// carry an argument contract worth checking; dada_dbdisk records raw
// voltages and takes none.
const (
	BackendDSPSR      = "dspsr"
	BackendDigifits   = "digifits"
	BackendDADADbdisk = "dada_dbdisk"
)

// VerifyBackendArgs checks backend processing arguments against the
// named backend's accepted flag set. An unknown flag, a value of the
// wrong type or an out-of-range choice is an error naming the flag.
func VerifyBackendArgs(backend, args string) error {
	switch backend {
	case BackendDSPSR:
		return verifyDSPSRArgs(args)
	case BackendDigifits:
		return verifyDigifitsArgs(args)
	case "", BackendDADADbdisk:
		return nil
	default:
		return fmt.Errorf("unknown backend %q (choose %s, %s or %s)",
			backend, BackendDigifits, BackendDSPSR, BackendDADADbdisk)
	}
}

func verifyDigifitsArgs(args string) error {
	f := flag.NewFlagSet(BackendDigifits, flag.ContinueOnError)
	f.SetOutput(io.Discard)
	f.Float64("t", 0, "integration time (s) per output sample")
	f.Bool("overlap", false, "disable input buffering")
	f.String("header", "", "command line arguments are header values (not filenames)")
	f.Int("S", 0, "start processing at t=seek seconds")
	f.Int("T", 0, "process only t=total seconds")
	f.String("set", "", "key=value set observation attributes")
	f.Bool("r", false, "report time spent performing each operation")
	f.Bool("dump", false, "dump time series before performing operation")
	f.Float64("D", 0, "set the dispersion measure")
	f.Bool("do_dedisp", false, "enable coherent dedispersion")
	f.Bool("c", false, "keep offset and scale constant")
	f.Int("I", 0, "rescale interval in seconds")
	f.Int("p", 0, "output 1 (Intensity), 2 (AABB), or 4 (Coherence) products")
	f.Int("b", 0, "number of bits per sample output to file")
	f.Int("F", 0, "nchan[:D] create a filterbank (voltages only)")
	f.Int("nsblk", 0, "output block size in samples")
	f.Bool("k", false, "remove inter-channel dispersion delays")

	if err := parseBackendArgs(f, BackendDigifits, args); err != nil {
		return err
	}
	return checkChoices(f, BackendDigifits, map[string][]string{
		"p": {"1", "2", "4"},
		"b": {"1", "2", "4", "8"},
	})
}

func verifyDSPSRArgs(args string) error {
	f := flag.NewFlagSet(BackendDSPSR, flag.ContinueOnError)
	f.SetOutput(io.Discard)
	f.Bool("overlap", false, "disable input buffering")
	f.String("header", "", "command line arguments are header values (not filenames)")
	f.Int("S", 0, "start processing at t=seek seconds")
	f.Int("T", 0, "process only t=total seconds")
	f.String("set", "", "key=value set observation attributes")
	f.Bool("W", false, "disable weights (allow bad data)")
	f.Bool("r", false, "report time spent performing each operation")
	f.Float64("B", 0, "set the bandwidth in MHz")
	f.Float64("f", 0, "set the centre frequency in MHz")
	f.String("k", "", "set the telescope name")
	f.String("N", "", "set the source name")
	f.Float64("C", 0, "adjust clock by offset")
	f.String("m", "", "set the start MJD of the observation")
	f.Bool("2", false, "2-bit excision unpacker options")
	f.Bool("skz", false, "apply spectral kurtosis filterbank RFI zapping")
	f.Bool("noskz_too", false, "also produce un-zapped version of output")
	f.Int("skzm", 0, "samples to integrate for spectral kurtosis statistics")
	f.Int("skzs", 0, "number of std deviations for spectral kurtosis excisions")
	f.Int("skz_start", 0, "first channel where signal is expected")
	f.Int("skz_end", 0, "last channel where signal is expected")
	f.Bool("skz_no_fscr", false, "do not use SKDetector Fscrunch feature")
	f.Bool("skz_no_tscr", false, "do not use SKDetector Tscrunch feature")
	f.Bool("skz_no_ft", false, "do not use SKDetector despeckeler")
	f.Bool("sk_fold", false, "fold the SKFilterbank output")
	f.String("F", "", "<N>[:D] create an N-channel filterbank")
	f.Int("G", 0, "nbin create phase-locked filterbank")
	f.Int("cyclic", 0, "form cyclic spectra with N channels per input channel")
	f.Int("cyclicoversample", 0, "use M times as many lags for cyclic channel isolation")
	f.Float64("D", 0, "over-ride dispersion measure")
	f.Float64("K", 0, "remove inter-channel dispersion delays")
	f.Int("d", 0, "1=PP+QQ, 2=PP,QQ, 3=(PP+QQ)^2, 4=PP,QQ,PQ,QP")
	f.Bool("n", false, "ndim of output when npol=4")
	f.Bool("4", false, "compute fourth-order moments")
	f.Int("b", 0, "number of phase bins in folded profile")
	f.Float64("c", 0, "folding period in seconds")
	f.String("cepoch", "", "MJD reference epoch for phase=0")
	f.Float64("p", 0, "reference phase of rising edge of bin zero")
	f.String("E", "", "pulsar ephemeris used to generate predictor")
	f.String("P", "", "phase predictor used for folding")
	f.String("X", "", "additional pulsar to be folded")
	f.Bool("asynch-fold", false, "fold on CPU while processing on GPU")
	f.Bool("A", false, "output single archive with multiple integrations")
	f.Int("nsub", 0, "output archives with N integrations each")
	f.Bool("s", false, "create single pulse sub-integrations")
	f.Int("turns", 0, "create integrations of specified number of spin periods")
	f.Float64("L", 0, "create integrations of specified duration")
	f.String("Lepoch", "", "start time of first sub-integration")
	f.Float64("Lmin", 0, "minimum integration length output")
	f.Bool("y", false, "output partially completed integrations")

	if err := parseBackendArgs(f, BackendDSPSR, args); err != nil {
		return err
	}
	return checkChoices(f, BackendDSPSR, map[string][]string{
		"d": {"1", "2", "3", "4"},
	})
}

func parseBackendArgs(f *flag.FlagSet, backend, args string) error {
	if err := f.Parse(strings.Fields(args)); err != nil {
		return fmt.Errorf("%s backend args: %w", backend, err)
	}
	if f.NArg() > 0 {
		return fmt.Errorf("%s backend args: unexpected argument %q", backend, f.Arg(0))
	}
	return nil
}

// checkChoices constrains set flags to their enumerated values.
func checkChoices(f *flag.FlagSet, backend string, choices map[string][]string) error {
	var err error
	f.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		allowed, ok := choices[fl.Name]
		if !ok {
			return
		}
		got := fl.Value.String()
		for _, v := range allowed {
			if got == v {
				return
			}
		}
		err = fmt.Errorf("%s backend args: -%s must be one of %s, got %s",
			backend, fl.Name, strings.Join(allowed, ", "), got)
	})
	return err
}
