package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Call is one recorded control operation.
type Call struct {
	Op     string
	Detail string
}

// Simulator is an in-memory Session and PTUSE implementation. It keeps
// the subarray state a real session would (passbands, weights, capture
// and fold markers) and records every call in order. FailOp rejects all
// calls of one operation to exercise error handling.
type Simulator struct {
	mu     sync.Mutex
	FailOp string // operation name to reject, "" never

	streams   []Stream
	targets   map[string]Target
	calls     []Call
	passbands map[string]Passband
	weights   map[string]map[string]float64
	noise     map[string]time.Time
	capturing bool
	folding   string // source name between TargetStart and TargetStop
	calFreq   float64
	tracked   []string
}

// NewSimulator returns a simulator for a subarray with the given
// beamformer streams.
func NewSimulator(streams ...Stream) *Simulator {
	s := &Simulator{
		streams:   streams,
		targets:   make(map[string]Target),
		passbands: make(map[string]Passband),
		weights:   make(map[string]map[string]float64),
		noise:     make(map[string]time.Time),
	}
	for _, st := range streams {
		s.weights[st.Name] = make(map[string]float64)
	}
	return s
}

// DefaultSubarray returns a simulator with one tied-array beamformer
// stream fed by n dishes (m000 upward), one h and one v input each.
func DefaultSubarray(n int) *Simulator {
	st := Stream{Name: "tied-array-channelised-voltage.1"}
	for i := 0; i < n; i++ {
		ant := fmt.Sprintf("m%03d", i)
		st.Inputs = append(st.Inputs, ant+"h", ant+"v")
	}
	return NewSimulator(st)
}

// AddTarget registers a catalogue pointing. Lookups of unregistered
// names synthesize a visible target so rehearsals do not need a full
// catalogue.
func (s *Simulator) AddTarget(t Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[t.Name] = t
}

// record notes a call and rejects it when FailOp matches. Callers hold
// the mutex.
func (s *Simulator) record(op, detail string) error {
	s.calls = append(s.calls, Call{Op: op, Detail: detail})
	if s.FailOp == op {
		return fmt.Errorf("simulated %s failure", op)
	}
	return nil
}

func (s *Simulator) Streams(ctx context.Context) ([]Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("streams", ""); err != nil {
		return nil, err
	}
	out := make([]Stream, len(s.streams))
	copy(out, s.streams)
	return out, nil
}

func (s *Simulator) LookupTarget(ctx context.Context, name string) (Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("lookup_target", name); err != nil {
		return Target{}, err
	}
	if t, ok := s.targets[name]; ok {
		return t, nil
	}
	return Target{Name: name, Elevation: 45}, nil
}

func (s *Simulator) SetPassband(ctx context.Context, stream string, bandwidthHz, centreFreqHz int64) (Passband, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	detail := fmt.Sprintf("%s %d %d", stream, bandwidthHz, centreFreqHz)
	if err := s.record("set_passband", detail); err != nil {
		return Passband{}, err
	}
	if !s.hasStream(stream) {
		return Passband{}, fmt.Errorf("unknown stream %q", stream)
	}
	pb := Passband{BandwidthHz: float64(bandwidthHz), CentreFreqHz: float64(centreFreqHz)}
	s.passbands[stream] = pb
	return pb, nil
}

func (s *Simulator) SetBeamWeight(ctx context.Context, stream, input string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	detail := fmt.Sprintf("%s %s %f", stream, input, weight)
	if err := s.record("set_beam_weight", detail); err != nil {
		return err
	}
	if !s.hasStream(stream) {
		return fmt.Errorf("unknown stream %q", stream)
	}
	if !s.hasInput(stream, input) {
		return fmt.Errorf("stream %q has no input %q", stream, input)
	}
	s.weights[stream][input] = weight
	return nil
}

func (s *Simulator) FireNoiseDiode(ctx context.Context, antenna string, startAt time.Time, onFraction, cycleLengthSec float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	detail := fmt.Sprintf("%s %.3f %.3f", antenna, onFraction, cycleLengthSec)
	if err := s.record("fire_noise_diode", detail); err != nil {
		return err
	}
	s.noise[antenna] = startAt
	return nil
}

func (s *Simulator) Track(ctx context.Context, target Target, durationSec float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	detail := fmt.Sprintf("%s %g", target.Name, durationSec)
	if err := s.record("track", detail); err != nil {
		return err
	}
	if durationSec < 0 {
		return fmt.Errorf("negative track duration %g", durationSec)
	}
	s.tracked = append(s.tracked, detail)
	return nil
}

func (s *Simulator) CaptureStart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("capture_start", ""); err != nil {
		return err
	}
	if s.capturing {
		return fmt.Errorf("capture already running")
	}
	s.capturing = true
	return nil
}

func (s *Simulator) CaptureStop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("capture_stop", ""); err != nil {
		return err
	}
	if !s.capturing {
		return fmt.Errorf("no capture running")
	}
	s.capturing = false
	return nil
}

func (s *Simulator) SetCalFrequency(ctx context.Context, freqHz float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("cal_freq", fmt.Sprintf("%g", freqHz)); err != nil {
		return err
	}
	s.calFreq = freqHz
	return nil
}

func (s *Simulator) TargetStart(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("target_start", name); err != nil {
		return err
	}
	if s.folding != "" {
		return fmt.Errorf("target %q already started", s.folding)
	}
	s.folding = name
	return nil
}

func (s *Simulator) TargetStop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("target_stop", ""); err != nil {
		return err
	}
	if s.folding == "" {
		return fmt.Errorf("no target started")
	}
	s.folding = ""
	return nil
}

func (s *Simulator) hasStream(name string) bool {
	for _, st := range s.streams {
		if st.Name == name {
			return true
		}
	}
	return false
}

func (s *Simulator) hasInput(stream, input string) bool {
	for _, st := range s.streams {
		if st.Name != stream {
			continue
		}
		for _, in := range st.Inputs {
			if in == input {
				return true
			}
		}
	}
	return false
}

// Calls returns the recorded operations in order.
func (s *Simulator) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Ops returns just the operation names, in order.
func (s *Simulator) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := make([]string, len(s.calls))
	for i, c := range s.calls {
		ops[i] = c.Op
	}
	return ops
}

// Tracked returns "name duration" entries for every completed Track.
func (s *Simulator) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tracked))
	copy(out, s.tracked)
	return out
}

// Weights returns the weight map of one stream.
func (s *Simulator) Weights(stream string) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.weights[stream]))
	for in, w := range s.weights[stream] {
		out[in] = w
	}
	return out
}

// PassbandFor returns the granted passband of one stream.
func (s *Simulator) PassbandFor(stream string) (Passband, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pb, ok := s.passbands[stream]
	return pb, ok
}

// NoiseDiodes returns the antennas with a scheduled noise pattern,
// sorted by name.
func (s *Simulator) NoiseDiodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ants := make([]string, 0, len(s.noise))
	for ant := range s.noise {
		ants = append(ants, ant)
	}
	sort.Strings(ants)
	return ants
}

// NoiseDiodeStart returns the scheduled start of one antenna's pattern.
func (s *Simulator) NoiseDiodeStart(antenna string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.noise[antenna]
	return at, ok
}

// CalFrequency returns the last announced cal frequency in Hz.
func (s *Simulator) CalFrequency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calFreq
}

// Capturing reports whether a capture session is open.
func (s *Simulator) Capturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}
