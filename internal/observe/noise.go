package observe

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Noise-diode pattern modes. Any antenna name in the beamformer set is
// also a valid mode and fires only that antenna's diode.
const (
	NoiseModeAll   = "all"
	NoiseModeCycle = "cycle"
)

// diodeLead gives all digitisers time to arm before a shared pattern
// start.
const diodeLead = time.Second

// NoiseDiodeSetting is one scheduled pattern on one antenna.
type NoiseDiodeSetting struct {
	Antenna        string
	StartAt        time.Time
	OnFraction     float64
	CycleLengthSec float64
}

// NoisePlan is the per-antenna schedule plus the cal frequency the
// pulsar backend should fold, 0 when no cal signal is produced.
type NoisePlan struct {
	Settings     []NoiseDiodeSetting
	CalFrequency float64
}

// ParseNoiseSource parses a "<cycle_length_sec>,<on_fraction>" pattern
// description.
func ParseNoiseSource(s string) (cycleLength, onFraction float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("noise source %q: want <cycle_length_sec>,<on_fraction>", s)
	}
	cycleLength, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("noise source cycle length: %w", err)
	}
	onFraction, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("noise source on fraction: %w", err)
	}
	return cycleLength, onFraction, nil
}

// ParseNDParams extracts the pattern period in seconds from a
// "diode,on_sec,off_sec,period_sec" noise-diode parameter value. The
// literal "off" disables the pattern.
func ParseNDParams(s string) (periodSec float64, err error) {
	if s == "off" {
		return 0, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, fmt.Errorf("nd params %q: want diode,on,off,period or off", s)
	}
	periodSec, err = strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return 0, fmt.Errorf("nd params period: %w", err)
	}
	return periodSec, nil
}

// PlanNoiseDiode schedules a noise-diode pattern over the beamformer
// antennas. Mode "" or "all" arms every antenna at one shared start,
// "cycle" staggers the starts by one on-period per antenna, and a
// single antenna name arms only that antenna immediately.
func PlanNoiseDiode(mode string, ants []string, cycleLength, onFraction float64, now time.Time) (NoisePlan, error) {
	plan := NoisePlan{}
	if cycleLength > 0 {
		plan.CalFrequency = 1 / cycleLength
	}

	switch {
	case mode == "" || mode == NoiseModeAll:
		startAt := now.Add(diodeLead)
		for _, ant := range ants {
			plan.Settings = append(plan.Settings, NoiseDiodeSetting{
				Antenna: ant, StartAt: startAt,
				OnFraction: onFraction, CycleLengthSec: cycleLength,
			})
		}
	case mode == NoiseModeCycle:
		startAt := now.Add(diodeLead)
		for _, ant := range ants {
			plan.Settings = append(plan.Settings, NoiseDiodeSetting{
				Antenna: ant, StartAt: startAt,
				OnFraction: onFraction, CycleLengthSec: cycleLength,
			})
			stagger := time.Duration(cycleLength * onFraction * float64(time.Second))
			startAt = startAt.Add(stagger)
		}
	case contains(ants, mode):
		plan.Settings = append(plan.Settings, NoiseDiodeSetting{
			Antenna: mode, StartAt: now,
			OnFraction: onFraction, CycleLengthSec: cycleLength,
		})
	default:
		return NoisePlan{}, fmt.Errorf("unknown noise diode mode %q, choose %s, %s or one of %s",
			mode, NoiseModeAll, NoiseModeCycle, strings.Join(ants, ", "))
	}
	return plan, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
