package submit

import (
	"context"
	"fmt"

	"github.com/mkatops/ptcamp/internal/model"
)

// JobHandle identifies a created schedule block on the scheduling service.
// Opaque to the orchestrator.
type JobHandle string

// ProgramBlockHandle identifies a program block on the scheduling service.
// Opaque to the orchestrator.
type ProgramBlockHandle string

// Submitter is the scheduling-service adapter. The orchestrator calls
// CreateJob once per resolved job in emission order, then
// AssignToProgramBlock once per returned handle, then Finalize.
type Submitter interface {
	NewProgramBlock(ctx context.Context, owner, description, startTime string) (ProgramBlockHandle, error)
	CreateJob(ctx context.Context, job model.ResolvedJob) (JobHandle, error)
	AssignToProgramBlock(ctx context.Context, job JobHandle, block ProgramBlockHandle) error
	Finalize(ctx context.Context, block ProgramBlockHandle) error
}

// JobApprover approves a standalone schedule block outside any program
// block. Adapters that only submit campaigns may omit it.
type JobApprover interface {
	ApproveJob(ctx context.Context, job JobHandle) error
}

// SubmissionError reports a rejection by the scheduling service. Fatal to
// the whole run: the caller aborts and reports rather than retrying, since
// retries against the scheduler can create duplicate jobs.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission %s failed: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Auditor records run lifecycle events. The audit journal implements it; a
// nil Auditor disables recording.
type Auditor interface {
	Log(eventType string, details map[string]interface{}) error
}
