// Package session defines the narrow telescope-control surface the
// rehearsal harness drives: beamformer stream configuration, noise-diode
// firing, target tracking and the pulsar-backend start/stop markers.
// Production wires these interfaces to the control-system proxies; the
// in-memory Simulator records every call for rehearsals and tests.
package session

import (
	"context"
	"time"
)

// Target is one pointing for the beam: apparent coordinates and the
// elevation reported at lookup time, all in degrees.
type Target struct {
	Name      string
	RA        float64
	Dec       float64
	Elevation float64
}

// Stream describes one beamformer data stream and the digitiser inputs
// feeding it. Input names carry the antenna name plus a polarisation
// letter (m008h, m008v); weight assignment keys on the antenna part.
type Stream struct {
	Name   string
	Inputs []string
}

// Passband reports the bandwidth and centre frequency a stream actually
// granted, in Hz. The granted values may differ from the request when
// the correlator snaps them to its channelisation grid.
type Passband struct {
	BandwidthHz  float64
	CentreFreqHz float64
}

// Session is the subarray control surface. All methods block until the
// control system acknowledges the request.
type Session interface {
	// Streams lists the beamformer streams of the current subarray.
	Streams(ctx context.Context) ([]Stream, error)

	// LookupTarget resolves a catalogue name to a pointing.
	LookupTarget(ctx context.Context, name string) (Target, error)

	// SetPassband requests a bandwidth and centre frequency for one
	// stream and returns the granted values.
	SetPassband(ctx context.Context, stream string, bandwidthHz, centreFreqHz int64) (Passband, error)

	// SetBeamWeight sets the beamformer weight for one stream input.
	SetBeamWeight(ctx context.Context, stream, input string, weight float64) error

	// FireNoiseDiode schedules a noise-diode pattern on one antenna.
	FireNoiseDiode(ctx context.Context, antenna string, startAt time.Time, onFraction, cycleLengthSec float64) error

	// Track slews to the target and tracks it for the given duration.
	Track(ctx context.Context, target Target, durationSec float64) error

	CaptureStart(ctx context.Context) error
	CaptureStop(ctx context.Context) error
}

// PTUSE is the pulsar-backend command surface. TargetStart marks the
// beginning of a fold on the named source; TargetStop concludes it.
type PTUSE interface {
	// SetCalFrequency announces the noise-diode cal frequency in Hz so
	// the backend folds the cal signal.
	SetCalFrequency(ctx context.Context, freqHz float64) error

	TargetStart(ctx context.Context, name string) error
	TargetStop(ctx context.Context) error
}
