package catalog

import (
	"errors"
	"testing"

	"github.com/mkatops/ptcamp/internal/model"
)

func TestGroup_Default(t *testing.T) {
	sequences, err := Group("default")
	if err != nil {
		t.Fatalf("Group(default) returned error: %v", err)
	}
	if len(sequences) != 3 {
		t.Fatalf("got %d sequences, want 3", len(sequences))
	}
	for i, seq := range sequences {
		if len(seq) != 3 {
			t.Fatalf("sequence %d has %d steps, want 3", i, len(seq))
		}
		if seq[0].Kind != "phaseup" {
			t.Errorf("sequence %d does not start with phaseup", i)
		}
	}

	wantTargets := [][]string{
		{"phaseup", "J0437-4715", "J0738-4042"},
		{"phaseup", "J0742-2822", "J0835-4510"},
		{"phaseup", "J0437-4715", "J0953+0755"},
	}
	for i, seq := range sequences {
		for j, st := range seq {
			if st.Kind != wantTargets[i][j] {
				t.Errorf("sequence %d step %d = %q, want %q", i, j, st.Kind, wantTargets[i][j])
			}
		}
	}
}

func TestGroup_Puls1TimeOverrides(t *testing.T) {
	sequences, err := Group("puls1")
	if err != nil {
		t.Fatalf("Group(puls1) returned error: %v", err)
	}
	if len(sequences) != 3 {
		t.Fatalf("got %d sequences, want 3", len(sequences))
	}
	for i, seq := range sequences {
		for j, st := range seq[1:] {
			if v, ok := st.Override(model.FieldTime); !ok || v != "-t 600" {
				t.Errorf("sequence %d step %d time = %q, %v; want \"-t 600\"", i, j+1, v, ok)
			}
		}
	}
}

func TestGroup_Puls2Order(t *testing.T) {
	sequences, err := Group("puls2")
	if err != nil {
		t.Fatalf("Group(puls2) returned error: %v", err)
	}
	if len(sequences) != 2 {
		t.Fatalf("got %d sequences, want 2", len(sequences))
	}
	// The two sequences visit the same pulsars in opposite order.
	if sequences[0][1].Kind != "J1909-3744" || sequences[1][1].Kind != "J1644-4559" {
		t.Errorf("unexpected pulsar order: %q then %q", sequences[0][1].Kind, sequences[1][1].Kind)
	}
}

func TestGroup_SarahOwnerOverride(t *testing.T) {
	sequences, err := Group("sarah")
	if err != nil {
		t.Fatalf("Group(sarah) returned error: %v", err)
	}
	if len(sequences) != 2 {
		t.Fatalf("got %d sequences, want 2", len(sequences))
	}
	first := sequences[0][0]
	if v, ok := first.Override(model.FieldOwner); !ok || v != "sarah" {
		t.Errorf("owner override = %q, %v; want sarah", v, ok)
	}
	if v, ok := first.Override(model.FieldTime); !ok || v != "-t 300" {
		t.Errorf("time override = %q, %v; want \"-t 300\"", v, ok)
	}
}

func TestGroup_UnknownKey(t *testing.T) {
	_, err := Group("nonexistent")
	if err == nil {
		t.Fatal("expected UnknownGroupKeyError")
	}
	var keyErr *UnknownGroupKeyError
	if !errors.As(err, &keyErr) {
		t.Fatalf("expected *UnknownGroupKeyError, got %T", err)
	}
	if keyErr.Key != "nonexistent" {
		t.Errorf("error key = %q", keyErr.Key)
	}
}

func TestGroup_FreshCopies(t *testing.T) {
	a, err := Group("default")
	if err != nil {
		t.Fatal(err)
	}
	a[0][0].Kind = "mutated"

	b, err := Group("default")
	if err != nil {
		t.Fatal(err)
	}
	if b[0][0].Kind != "phaseup" {
		t.Error("Group returns shared sequence slices across calls")
	}
}

func TestGroupKeys(t *testing.T) {
	keys := GroupKeys()
	if len(keys) != 4 {
		t.Fatalf("got %d keys, want 4", len(keys))
	}
	for _, k := range keys {
		if _, err := Group(k); err != nil {
			t.Errorf("listed key %q does not resolve: %v", k, err)
		}
	}
}
