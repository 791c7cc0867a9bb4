package session

import (
	"context"
	"strings"
	"testing"
	"time"
)

func twoDishSim() *Simulator {
	return NewSimulator(Stream{
		Name:   "tied-array-channelised-voltage.1",
		Inputs: []string{"m008h", "m008v", "m009h", "m009v"},
	})
}

func TestSimulatorRecordsCallOrder(t *testing.T) {
	ctx := context.Background()
	sim := twoDishSim()

	streams, err := sim.Streams(ctx)
	if err != nil {
		t.Fatalf("Streams: %v", err)
	}
	if len(streams) != 1 || streams[0].Name != "tied-array-channelised-voltage.1" {
		t.Fatalf("unexpected streams %+v", streams)
	}

	tgt, err := sim.LookupTarget(ctx, "J0437-4715")
	if err != nil {
		t.Fatalf("LookupTarget: %v", err)
	}
	if err := sim.Track(ctx, tgt, 5); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if err := sim.CaptureStart(ctx); err != nil {
		t.Fatalf("CaptureStart: %v", err)
	}
	if err := sim.TargetStart(ctx, tgt.Name); err != nil {
		t.Fatalf("TargetStart: %v", err)
	}
	if err := sim.Track(ctx, tgt, 600); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if err := sim.TargetStop(ctx); err != nil {
		t.Fatalf("TargetStop: %v", err)
	}
	if err := sim.CaptureStop(ctx); err != nil {
		t.Fatalf("CaptureStop: %v", err)
	}

	want := []string{
		"streams", "lookup_target", "track", "capture_start",
		"target_start", "track", "target_stop", "capture_stop",
	}
	got := sim.Ops()
	if len(got) != len(want) {
		t.Fatalf("got %d calls %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, got[i], want[i])
		}
	}

	tracked := sim.Tracked()
	if len(tracked) != 2 || tracked[0] != "J0437-4715 5" || tracked[1] != "J0437-4715 600" {
		t.Errorf("unexpected tracked %v", tracked)
	}
}

func TestSimulatorUnknownTargetIsVisible(t *testing.T) {
	sim := twoDishSim()
	tgt, err := sim.LookupTarget(context.Background(), "J1935+1616")
	if err != nil {
		t.Fatalf("LookupTarget: %v", err)
	}
	if tgt.Name != "J1935+1616" {
		t.Errorf("name = %q", tgt.Name)
	}
	if tgt.Elevation <= 0 {
		t.Errorf("synthesized target should be above the horizon, elevation %g", tgt.Elevation)
	}
}

func TestSimulatorRegisteredTarget(t *testing.T) {
	sim := twoDishSim()
	sim.AddTarget(Target{Name: "J0437-4715", RA: 69.3, Dec: -47.25, Elevation: 12})

	tgt, err := sim.LookupTarget(context.Background(), "J0437-4715")
	if err != nil {
		t.Fatalf("LookupTarget: %v", err)
	}
	if tgt.Elevation != 12 || tgt.Dec != -47.25 {
		t.Errorf("unexpected target %+v", tgt)
	}
}

func TestSimulatorPassbandAndWeights(t *testing.T) {
	ctx := context.Background()
	sim := twoDishSim()

	pb, err := sim.SetPassband(ctx, "tied-array-channelised-voltage.1", 856000000, 1284000000)
	if err != nil {
		t.Fatalf("SetPassband: %v", err)
	}
	if pb.BandwidthHz != 856e6 || pb.CentreFreqHz != 1284e6 {
		t.Errorf("granted passband %+v", pb)
	}

	if _, err := sim.SetPassband(ctx, "wideband", 856000000, 1284000000); err == nil {
		t.Fatal("expected unknown stream error")
	}

	if err := sim.SetBeamWeight(ctx, "tied-array-channelised-voltage.1", "m008h", 0.7071); err != nil {
		t.Fatalf("SetBeamWeight: %v", err)
	}
	if err := sim.SetBeamWeight(ctx, "tied-array-channelised-voltage.1", "m063h", 0.5); err == nil {
		t.Fatal("expected unknown input error")
	} else if !strings.Contains(err.Error(), "m063h") {
		t.Errorf("error should name the input: %v", err)
	}

	w := sim.Weights("tied-array-channelised-voltage.1")
	if w["m008h"] != 0.7071 {
		t.Errorf("weights = %v", w)
	}
}

func TestSimulatorCaptureStateMachine(t *testing.T) {
	ctx := context.Background()
	sim := twoDishSim()

	if err := sim.CaptureStop(ctx); err == nil {
		t.Fatal("stop without start should fail")
	}
	if err := sim.CaptureStart(ctx); err != nil {
		t.Fatalf("CaptureStart: %v", err)
	}
	if err := sim.CaptureStart(ctx); err == nil {
		t.Fatal("double start should fail")
	}
	if !sim.Capturing() {
		t.Error("Capturing() = false during capture")
	}
	if err := sim.CaptureStop(ctx); err != nil {
		t.Fatalf("CaptureStop: %v", err)
	}
	if sim.Capturing() {
		t.Error("Capturing() = true after stop")
	}
}

func TestSimulatorFoldMarkers(t *testing.T) {
	ctx := context.Background()
	sim := twoDishSim()

	if err := sim.TargetStop(ctx); err == nil {
		t.Fatal("stop without start should fail")
	}
	if err := sim.TargetStart(ctx, "J0437-4715_N"); err != nil {
		t.Fatalf("TargetStart: %v", err)
	}
	if err := sim.TargetStart(ctx, "J0737-3039A"); err == nil {
		t.Fatal("nested start should fail")
	} else if !strings.Contains(err.Error(), "J0437-4715_N") {
		t.Errorf("error should name the running target: %v", err)
	}
	if err := sim.TargetStop(ctx); err != nil {
		t.Fatalf("TargetStop: %v", err)
	}

	if err := sim.SetCalFrequency(ctx, 0.5); err != nil {
		t.Fatalf("SetCalFrequency: %v", err)
	}
	if sim.CalFrequency() != 0.5 {
		t.Errorf("CalFrequency = %g, want 0.5", sim.CalFrequency())
	}
}

func TestSimulatorNoiseDiodes(t *testing.T) {
	ctx := context.Background()
	sim := twoDishSim()
	at := time.Date(2024, 3, 1, 20, 0, 1, 0, time.UTC)

	if err := sim.FireNoiseDiode(ctx, "m009", at, 0.5, 10); err != nil {
		t.Fatalf("FireNoiseDiode: %v", err)
	}
	if err := sim.FireNoiseDiode(ctx, "m008", at.Add(5*time.Second), 0.5, 10); err != nil {
		t.Fatalf("FireNoiseDiode: %v", err)
	}

	ants := sim.NoiseDiodes()
	if len(ants) != 2 || ants[0] != "m008" || ants[1] != "m009" {
		t.Errorf("NoiseDiodes = %v", ants)
	}
	got, ok := sim.NoiseDiodeStart("m009")
	if !ok || !got.Equal(at) {
		t.Errorf("m009 start = %v ok=%v, want %v", got, ok, at)
	}
}

func TestSimulatorFailOp(t *testing.T) {
	ctx := context.Background()
	sim := twoDishSim()
	sim.FailOp = "set_passband"

	if _, err := sim.SetPassband(ctx, "tied-array-channelised-voltage.1", 1, 2); err == nil {
		t.Fatal("expected injected failure")
	}
	if err := sim.Track(ctx, Target{Name: "x"}, 1); err != nil {
		t.Fatalf("other ops should still work: %v", err)
	}
	// The rejected call is still recorded.
	if ops := sim.Ops(); len(ops) != 2 || ops[0] != "set_passband" {
		t.Errorf("ops = %v", ops)
	}
}

func TestDefaultSubarray(t *testing.T) {
	sim := DefaultSubarray(4)
	streams, err := sim.Streams(context.Background())
	if err != nil {
		t.Fatalf("Streams: %v", err)
	}
	if len(streams) != 1 {
		t.Fatalf("want one stream, got %d", len(streams))
	}
	if n := len(streams[0].Inputs); n != 8 {
		t.Fatalf("want 8 inputs for 4 dishes, got %d", n)
	}
	if streams[0].Inputs[0] != "m000h" || streams[0].Inputs[7] != "m003v" {
		t.Errorf("inputs = %v", streams[0].Inputs)
	}
}
