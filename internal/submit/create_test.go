package submit

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeApprover extends the fake submitter with standalone approval.
type fakeApprover struct {
	fakeSubmitter
	approved    []string
	failApprove bool
}

func (f *fakeApprover) ApproveJob(ctx context.Context, job JobHandle) error {
	f.calls = append(f.calls, "approve_job")
	if f.failApprove {
		return &SubmissionError{Op: "approve_job", Err: errors.New("service rejected")}
	}
	f.approved = append(f.approved, string(job))
	return nil
}

func TestCreateSingleDefaults(t *testing.T) {
	fake := &fakeApprover{}
	runner := newTestRunner(fake, nil)

	result, err := runner.CreateSingle(context.Background(), CreateOptions{Owner: "sarah", Target: "J0437-4715"})
	if err != nil {
		t.Fatalf("CreateSingle returned error: %v", err)
	}

	want := "run-obs-script /home/kat/katusescripts/ptuse/beamform_single_pulsar.py " +
		"J0437-4715 -t 60 -B 856 -F 1284 --horizon 20 " +
		"--proposal-id='FST-TRNS' --program-block-id='MKAIV-388' --issue-id='MKAIV-388'"
	if result.InstructionSet != want {
		t.Errorf("instruction = %q, want %q", result.InstructionSet, want)
	}
	if result.Description != "MKAIV-388" {
		t.Errorf("description = %q, want MKAIV-388", result.Description)
	}
	if result.Handle != "sb-1" {
		t.Errorf("handle = %q, want sb-1", result.Handle)
	}

	if len(fake.calls) != 2 || fake.calls[0] != "create_job" || fake.calls[1] != "approve_job" {
		t.Errorf("adapter calls = %v, want [create_job approve_job]", fake.calls)
	}
	if len(fake.approved) != 1 || fake.approved[0] != "sb-1" {
		t.Errorf("approved = %v, want [sb-1]", fake.approved)
	}

	job := fake.created[0]
	if job.Owner != "sarah" {
		t.Errorf("owner = %q, want sarah", job.Owner)
	}
	if job.AntennaSpec != "available" {
		t.Errorf("antenna_spec = %q, want available", job.AntennaSpec)
	}
	if job.ControlledResources != "cbf,sdp,ptuse_1" {
		t.Errorf("controlled_resources = %q, want cbf,sdp,ptuse_1", job.ControlledResources)
	}
}

func TestCreateSingleOverrides(t *testing.T) {
	fake := &fakeApprover{}
	runner := newTestRunner(fake, nil)

	result, err := runner.CreateSingle(context.Background(), CreateOptions{
		Owner:        "sarah",
		Target:       "J0835-4510",
		DurationSec:  300,
		Ants:         "m008,m009,m010,m011",
		BandwidthMHz: "428",
		Issue:        "MKAIV-500",
		Description:  "Vela fold-mode check",
	})
	if err != nil {
		t.Fatalf("CreateSingle returned error: %v", err)
	}

	for _, fragment := range []string{" -t 300 ", " -B 428 ", "--program-block-id='MKAIV-500'", "--issue-id='MKAIV-500'"} {
		if !strings.Contains(result.InstructionSet, fragment) {
			t.Errorf("instruction = %q, missing %q", result.InstructionSet, fragment)
		}
	}
	if result.Description != "Vela fold-mode check" {
		t.Errorf("description = %q, want the override", result.Description)
	}
	if fake.created[0].AntennaSpec != "m008,m009,m010,m011" {
		t.Errorf("antenna_spec = %q, want the override", fake.created[0].AntennaSpec)
	}
}

func TestCreateSingleDescriptionFollowsIssue(t *testing.T) {
	fake := &fakeApprover{}
	runner := newTestRunner(fake, nil)

	result, err := runner.CreateSingle(context.Background(),
		CreateOptions{Owner: "sarah", Target: "J1909-3744", Issue: "MKAIV-501"})
	if err != nil {
		t.Fatalf("CreateSingle returned error: %v", err)
	}
	if result.Description != "MKAIV-501" {
		t.Errorf("description = %q, want the issue", result.Description)
	}
}

func TestCreateSingleValidation(t *testing.T) {
	runner := newTestRunner(&fakeApprover{}, nil)

	if _, err := runner.CreateSingle(context.Background(), CreateOptions{Target: "J0437-4715"}); err == nil {
		t.Error("CreateSingle accepted a missing owner")
	}
	if _, err := runner.CreateSingle(context.Background(), CreateOptions{Owner: "sarah"}); err == nil {
		t.Error("CreateSingle accepted a missing target")
	}

	runner = newTestRunner(nil, nil)
	if _, err := runner.CreateSingle(context.Background(), CreateOptions{Owner: "sarah", Target: "J0437-4715"}); err == nil {
		t.Error("CreateSingle ran without a submitter")
	}
}

func TestCreateSingleNeedsApprover(t *testing.T) {
	runner := newTestRunner(&fakeSubmitter{}, nil)

	_, err := runner.CreateSingle(context.Background(), CreateOptions{Owner: "sarah", Target: "J0437-4715"})
	if err == nil {
		t.Fatal("CreateSingle ran with an adapter that cannot approve")
	}
	if !strings.Contains(err.Error(), "cannot approve") {
		t.Errorf("error = %q, want an approval capability report", err)
	}
}

func TestCreateSingleApproveFailure(t *testing.T) {
	fake := &fakeApprover{failApprove: true}
	aud := &fakeAuditor{}
	runner := newTestRunner(fake, aud)

	_, err := runner.CreateSingle(context.Background(), CreateOptions{Owner: "sarah", Target: "J0437-4715"})
	if err == nil {
		t.Fatal("CreateSingle succeeded despite an approve rejection")
	}
	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want SubmissionError", err)
	}
	if len(aud.events) != 0 {
		t.Errorf("audit events = %v, want none after the rejection", aud.events)
	}
}

func TestCreateSingleAudit(t *testing.T) {
	aud := &fakeAuditor{}
	runner := newTestRunner(&fakeApprover{}, aud)

	if _, err := runner.CreateSingle(context.Background(), CreateOptions{Owner: "sarah", Target: "J0437-4715"}); err != nil {
		t.Fatalf("CreateSingle returned error: %v", err)
	}
	if len(aud.events) != 1 || aud.events[0] != "schedule_block_created" {
		t.Errorf("audit events = %v, want [schedule_block_created]", aud.events)
	}
}
