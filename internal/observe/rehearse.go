package observe

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkatops/ptcamp/internal/model"
	"github.com/mkatops/ptcamp/internal/session"
)

// Observation scripts the harness knows how to drive.
const (
	scriptPhaseup      = "bf_phaseup.py"
	scriptDelayCal     = "calibrate_delays.py"
	scriptSinglePulsar = "beamform_single_pulsar.py"
	scriptFluxCal      = "beamform_fluxcal.py"
)

// Script option defaults, mirrored from the scripts' option sets.
const (
	defaultTargetDurationSec = 20
	defaultBandwidthMHz      = 107.0
	defaultCentreFreqMHz     = 1391.0
	defaultHorizonDeg        = 10.0
	slewDurationSec          = 5
)

// Channels returns the channel count the pulsar backend expects for a
// beam bandwidth in MHz. Narrow bands run half the channelisation.
func Channels(bandwidthMHz float64) int {
	if bandwidthMHz < 430 {
		return 2048
	}
	return 4096
}

// Report summarizes the rehearsal of one job: what its instruction
// resolved to and every non-fatal finding.
type Report struct {
	Script        string   `json:"script"`
	Target        string   `json:"target,omitempty"`
	Sources       []string `json:"sources,omitempty"`
	DurationSec   float64  `json:"duration_sec"`
	BandwidthMHz  float64  `json:"bandwidth_mhz,omitempty"`
	CentreFreqMHz float64  `json:"centre_freq_mhz,omitempty"`
	Channels      int      `json:"channels,omitempty"`
	Backend       string   `json:"backend,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Harness rehearses composed jobs against a session. Ants names the
// beamformer antennas; when empty every antenna feeding the streams is
// used. PTUSE may be nil only for campaigns without beamforming jobs.
type Harness struct {
	Session session.Session
	PTUSE   session.PTUSE
	Ants    []string
	Logger  *slog.Logger
	Now     func() time.Time
}

// Rehearse drives every job through the session in emission order. The
// first invalid job aborts the rehearsal, mirroring the fatal-run
// semantics of submission itself.
func (h *Harness) Rehearse(ctx context.Context, jobs []model.ResolvedJob) ([]Report, error) {
	reports := make([]Report, 0, len(jobs))
	for i, job := range jobs {
		rep, err := h.rehearseJob(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("job %d (%s): %w", i+1, job.Description, err)
		}
		h.logger().Info("job rehearsed",
			"job", i+1,
			"script", rep.Script,
			"target", rep.Target,
			"warnings", len(rep.Warnings))
		reports = append(reports, rep)
	}
	return reports, nil
}

func (h *Harness) rehearseJob(ctx context.Context, job model.ResolvedJob) (Report, error) {
	inv, err := ParseInvocation(job.InstructionSet)
	if err != nil {
		return Report{}, err
	}
	switch inv.Base() {
	case scriptPhaseup:
		return h.rehearsePhaseup(inv)
	case scriptDelayCal:
		return h.rehearseDelayCal(inv)
	case scriptSinglePulsar:
		return h.rehearseBeamform(ctx, inv, false)
	case scriptFluxCal:
		return h.rehearseBeamform(ctx, inv, true)
	default:
		return Report{
			Script:   inv.Base(),
			Warnings: []string{fmt.Sprintf("unrecognized script %s, arguments not checked", inv.Base())},
		}, nil
	}
}

// rehearsePhaseup checks the gain calibration arguments. The script
// picks its own calibrator, so there is nothing to track here.
func (h *Harness) rehearsePhaseup(inv Invocation) (Report, error) {
	flags, positionals, err := scanArgs(inv.Args, mergeSpecs(standardOpts, phaseupOpts))
	if err != nil {
		return Report{}, err
	}
	rep := Report{Script: inv.Base()}
	if len(positionals) > 0 {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("unexpected argument %q, the script selects its own calibrator", positionals[0]))
	}
	if rep.DurationSec, err = floatFlag(flags, "target-duration", defaultTargetDurationSec); err != nil {
		return Report{}, err
	}
	if _, err := floatFlag(flags, "horizon", defaultHorizonDeg); err != nil {
		return Report{}, err
	}
	return rep, nil
}

func (h *Harness) rehearseDelayCal(inv Invocation) (Report, error) {
	flags, positionals, err := scanArgs(inv.Args, standardOpts)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Script: inv.Base()}
	catalogue := false
	for _, p := range positionals {
		if strings.HasSuffix(p, ".csv") {
			catalogue = true
			continue
		}
		rep.Target = p
	}
	if !catalogue {
		rep.Warnings = append(rep.Warnings, "no calibrator catalogue in instruction")
	}
	if rep.DurationSec, err = floatFlag(flags, "target-duration", defaultTargetDurationSec); err != nil {
		return Report{}, err
	}
	if _, err := floatFlag(flags, "horizon", defaultHorizonDeg); err != nil {
		return Report{}, err
	}
	return rep, nil
}

func (h *Harness) rehearseBeamform(ctx context.Context, inv Invocation, fluxcal bool) (Report, error) {
	specs := mergeSpecs(standardOpts, beamformOpts)
	if fluxcal {
		specs = mergeSpecs(specs, fluxcalOpts)
	}
	flags, positionals, err := scanArgs(inv.Args, specs)
	if err != nil {
		return Report{}, err
	}
	if len(positionals) == 0 {
		return Report{}, fmt.Errorf("no target specified")
	}
	if h.PTUSE == nil {
		return Report{}, fmt.Errorf("a pulsar backend is required for %s", inv.Base())
	}

	rep := Report{Script: inv.Base(), Target: positionals[0], Backend: flags["backend"]}
	if rep.DurationSec, err = floatFlag(flags, "target-duration", defaultTargetDurationSec); err != nil {
		return Report{}, err
	}
	if rep.BandwidthMHz, err = floatFlag(flags, "beam-bandwidth", defaultBandwidthMHz); err != nil {
		return Report{}, err
	}
	if rep.CentreFreqMHz, err = floatFlag(flags, "beam-centre-freq", defaultCentreFreqMHz); err != nil {
		return Report{}, err
	}
	horizon, err := floatFlag(flags, "horizon", defaultHorizonDeg)
	if err != nil {
		return Report{}, err
	}
	rep.Channels = Channels(rep.BandwidthMHz)

	if err := VerifyBackendArgs(flags["backend"], flags["backend-args"]); err != nil {
		return Report{}, err
	}
	if flags["backend-args"] != "" && flags["backend"] != BackendDSPSR && flags["backend"] != BackendDigifits {
		rep.Warnings = append(rep.Warnings, "backend args given without a dspsr or digifits backend")
	}

	target, err := h.Session.LookupTarget(ctx, rep.Target)
	if err != nil {
		return Report{}, fmt.Errorf("look up target: %w", err)
	}
	if target.Elevation < horizon {
		return Report{}, fmt.Errorf("target %q is below the horizon (elevation %.1f, horizon %.1f)",
			target.Name, target.Elevation, horizon)
	}

	streams, err := h.Session.Streams(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list streams: %w", err)
	}
	if len(streams) == 0 {
		return Report{}, fmt.Errorf("subarray has no beamformer streams")
	}
	ants := h.beamformerAnts(flags["ants"], streams)

	if err := h.configureStreams(ctx, streams, ants, &rep); err != nil {
		return Report{}, err
	}
	if err := h.armNoiseDiode(ctx, flags, ants); err != nil {
		return Report{}, err
	}

	sources := []session.Target{target}
	if fluxcal {
		offset, err := floatFlag(flags, "cal-offset", DefaultCalOffsetDeg)
		if err != nil {
			return Report{}, err
		}
		mode := flags["cal"]
		if mode == "" {
			mode = CalFlux
		}
		if sources, err = CalTargets(mode, target, offset); err != nil {
			return Report{}, err
		}
	}

	driftScan := flags["drift-scan"] != ""
	for _, src := range sources {
		rep.Sources = append(rep.Sources, src.Name)
		if err := h.observeSource(ctx, src, rep.DurationSec, driftScan); err != nil {
			return Report{}, err
		}
	}
	return rep, nil
}

// configureStreams sets the passband and tied-array weights on every
// stream concurrently. A rejected passband or a weight vector that does
// not carry unit power fails the rehearsal; individual weight rejections
// only warn, the way live observations treat them.
func (h *Harness) configureStreams(ctx context.Context, streams []session.Stream, ants []string, rep *Report) error {
	bwHz := int64(rep.BandwidthMHz * 1e6)
	cfHz := int64(rep.CentreFreqMHz * 1e6)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range streams {
		g.Go(func() error {
			pb, err := h.Session.SetPassband(gctx, st.Name, bwHz, cfHz)
			if err != nil {
				return fmt.Errorf("stream %s: set passband: %w", st.Name, err)
			}
			h.logger().Info("beamformer stream configured",
				"stream", st.Name,
				"bandwidth_hz", pb.BandwidthHz,
				"centre_freq_hz", pb.CentreFreqHz)

			weights := BeamWeights(st.Inputs, ants)
			if err := VerifyWeights(weights); err != nil {
				return fmt.Errorf("stream %s: %w", st.Name, err)
			}
			for _, w := range weights {
				if err := h.Session.SetBeamWeight(gctx, st.Name, w.Input, w.Weight); err != nil {
					mu.Lock()
					rep.Warnings = append(rep.Warnings,
						fmt.Sprintf("stream %s input %s weight could not be set: %v", st.Name, w.Input, err))
					mu.Unlock()
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// armNoiseDiode applies the job's noise-diode request: an explicit
// pattern wins over the standard nd-params period. Either announces the
// resulting cal frequency to the pulsar backend.
func (h *Harness) armNoiseDiode(ctx context.Context, flags map[string]string, ants []string) error {
	if ns := flags["noise-source"]; ns != "" {
		cycleLength, onFraction, err := ParseNoiseSource(ns)
		if err != nil {
			return err
		}
		plan, err := PlanNoiseDiode(flags["noise-cycle"], ants, cycleLength, onFraction, h.now())
		if err != nil {
			return err
		}
		for _, set := range plan.Settings {
			if err := h.Session.FireNoiseDiode(ctx, set.Antenna, set.StartAt, set.OnFraction, set.CycleLengthSec); err != nil {
				return fmt.Errorf("noise diode %s: %w", set.Antenna, err)
			}
		}
		if plan.CalFrequency > 0 {
			if err := h.PTUSE.SetCalFrequency(ctx, plan.CalFrequency); err != nil {
				return fmt.Errorf("set cal frequency: %w", err)
			}
		}
		return nil
	}

	nd := flags["nd-params"]
	if nd == "" || nd == "off" {
		return nil
	}
	period, err := ParseNDParams(nd)
	if err != nil {
		return err
	}
	if period > 0 {
		if err := h.PTUSE.SetCalFrequency(ctx, 1/period); err != nil {
			return fmt.Errorf("set cal frequency: %w", err)
		}
	}
	return nil
}

// observeSource runs one slew-capture-fold cycle on a source.
func (h *Harness) observeSource(ctx context.Context, src session.Target, durationSec float64, driftScan bool) error {
	h.logger().Info("observing source", "source", src.Name, "duration_sec", durationSec)
	if err := h.Session.Track(ctx, src, slewDurationSec); err != nil {
		return fmt.Errorf("track %s: %w", src.Name, err)
	}
	if driftScan {
		// Hold the transit point and let the source drift through.
		if err := h.Session.Track(ctx, src, 0); err != nil {
			return fmt.Errorf("hold transit of %s: %w", src.Name, err)
		}
	}
	if err := h.Session.CaptureStart(ctx); err != nil {
		return fmt.Errorf("capture start: %w", err)
	}
	if err := h.PTUSE.TargetStart(ctx, src.Name); err != nil {
		return fmt.Errorf("fold start %s: %w", src.Name, err)
	}
	if err := h.Session.Track(ctx, src, durationSec); err != nil {
		return fmt.Errorf("track %s: %w", src.Name, err)
	}
	if err := h.PTUSE.TargetStop(ctx); err != nil {
		return fmt.Errorf("fold stop %s: %w", src.Name, err)
	}
	if err := h.Session.CaptureStop(ctx); err != nil {
		return fmt.Errorf("capture stop: %w", err)
	}
	return nil
}

// beamformerAnts picks the antenna set: the job's --ants list, the
// harness default, or every antenna feeding the streams.
func (h *Harness) beamformerAnts(antsFlag string, streams []session.Stream) []string {
	if antsFlag != "" {
		parts := strings.Split(antsFlag, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	if len(h.Ants) > 0 {
		return h.Ants
	}
	seen := make(map[string]bool)
	var ants []string
	for _, st := range streams {
		for _, in := range st.Inputs {
			ant := inputAntenna(in)
			if !seen[ant] {
				seen[ant] = true
				ants = append(ants, ant)
			}
		}
	}
	sort.Strings(ants)
	return ants
}

func floatFlag(flags map[string]string, name string, def float64) (float64, error) {
	v, ok := flags[name]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("flag --%s: %w", name, err)
	}
	return f, nil
}

func (h *Harness) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Harness) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
