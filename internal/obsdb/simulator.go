package obsdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mkatops/ptcamp/internal/model"
	"github.com/mkatops/ptcamp/internal/submit"
)

// Simulator is an in-memory Submitter with the store's lifecycle semantics.
// Rehearsals run against it instead of the observation database; FailAt
// rejects the Nth adapter call to exercise abort handling.
type Simulator struct {
	mu     sync.Mutex
	calls  int
	FailAt int // 1-based adapter call to reject, 0 never

	blocks map[string]*simProgramBlock
	jobs   map[string]*simScheduleBlock
	order  []string // schedule block IDs in creation order
}

type simProgramBlock struct {
	Owner       string
	Description string
	StartTime   string
	Status      model.ProgramBlockStatus
}

type simScheduleBlock struct {
	Job          model.ResolvedJob
	Status       model.BlockStatus
	ProgramBlock string
	Key          string
}

// NewSimulator returns an empty simulator.
func NewSimulator() *Simulator {
	return &Simulator{
		blocks: make(map[string]*simProgramBlock),
		jobs:   make(map[string]*simScheduleBlock),
	}
}

// step counts an adapter call and rejects it when FailAt says so. Callers
// hold the mutex.
func (s *Simulator) step(op string) error {
	s.calls++
	if s.FailAt > 0 && s.calls == s.FailAt {
		return &submit.SubmissionError{Op: op, Err: fmt.Errorf("simulated rejection at call %d", s.calls)}
	}
	return nil
}

func (s *Simulator) NewProgramBlock(ctx context.Context, owner, description, startTime string) (submit.ProgramBlockHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step("new_program_block"); err != nil {
		return "", err
	}

	id, err := model.GenerateID(model.IDTypeProgramBlock)
	if err != nil {
		return "", err
	}
	s.blocks[id] = &simProgramBlock{
		Owner:       owner,
		Description: description,
		StartTime:   startTime,
		Status:      model.ProgramBlockStatusDraft,
	}
	return submit.ProgramBlockHandle(id), nil
}

func (s *Simulator) CreateJob(ctx context.Context, job model.ResolvedJob) (submit.JobHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step("create_job"); err != nil {
		return "", err
	}

	id, err := model.GenerateID(model.IDTypeScheduleBlock)
	if err != nil {
		return "", err
	}
	s.jobs[id] = &simScheduleBlock{
		Job:    job,
		Status: model.BlockStatusDraft,
		Key:    uuid.NewString(),
	}
	s.order = append(s.order, id)
	return submit.JobHandle(id), nil
}

func (s *Simulator) AssignToProgramBlock(ctx context.Context, job submit.JobHandle, block submit.ProgramBlockHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step("assign_to_program_block"); err != nil {
		return err
	}

	sb, ok := s.jobs[string(job)]
	if !ok {
		return &submit.SubmissionError{Op: "assign_to_program_block",
			Err: fmt.Errorf("unknown schedule block %s", job)}
	}
	if _, ok := s.blocks[string(block)]; !ok {
		return &submit.SubmissionError{Op: "assign_to_program_block",
			Err: fmt.Errorf("unknown program block %s", block)}
	}
	if sb.Status != model.BlockStatusDraft {
		return &submit.SubmissionError{Op: "assign_to_program_block",
			Err: fmt.Errorf("schedule block %s is %s, not draft", job, sb.Status)}
	}
	sb.ProgramBlock = string(block)
	return nil
}

func (s *Simulator) Finalize(ctx context.Context, block submit.ProgramBlockHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step("finalize"); err != nil {
		return err
	}

	pb, ok := s.blocks[string(block)]
	if !ok {
		return &submit.SubmissionError{Op: "finalize",
			Err: fmt.Errorf("unknown program block %s", block)}
	}
	for _, next := range []model.ProgramBlockStatus{model.ProgramBlockStatusDefined, model.ProgramBlockStatusApproved} {
		if err := model.ValidateProgramBlockTransition(pb.Status, next); err != nil {
			return &submit.SubmissionError{Op: "finalize", Err: err}
		}
		pb.Status = next
	}

	for _, id := range s.order {
		sb := s.jobs[id]
		if sb.ProgramBlock != string(block) {
			continue
		}
		for _, next := range []model.BlockStatus{model.BlockStatusDefined, model.BlockStatusApproved} {
			if err := model.ValidateBlockTransition(sb.Status, next); err != nil {
				return &submit.SubmissionError{Op: "finalize", Err: err}
			}
			sb.Status = next
		}
	}
	return nil
}

// ApproveJob advances an unassigned schedule block draft → defined →
// approved.
func (s *Simulator) ApproveJob(ctx context.Context, job submit.JobHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.step("approve_job"); err != nil {
		return err
	}

	sb, ok := s.jobs[string(job)]
	if !ok {
		return &submit.SubmissionError{Op: "approve_job",
			Err: fmt.Errorf("unknown schedule block %s", job)}
	}
	if sb.ProgramBlock != "" {
		return &submit.SubmissionError{Op: "approve_job",
			Err: fmt.Errorf("schedule block %s belongs to program block %s", job, sb.ProgramBlock)}
	}
	for _, next := range []model.BlockStatus{model.BlockStatusDefined, model.BlockStatusApproved} {
		if err := model.ValidateBlockTransition(sb.Status, next); err != nil {
			return &submit.SubmissionError{Op: "approve_job", Err: err}
		}
		sb.Status = next
	}
	return nil
}

// Jobs returns the submitted jobs in creation order.
func (s *Simulator) Jobs() []model.ResolvedJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]model.ResolvedJob, 0, len(s.order))
	for _, id := range s.order {
		jobs = append(jobs, s.jobs[id].Job)
	}
	return jobs
}

// JobStatus reports the lifecycle status of one schedule block.
func (s *Simulator) JobStatus(job submit.JobHandle) (model.BlockStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb, ok := s.jobs[string(job)]
	if !ok {
		return "", false
	}
	return sb.Status, true
}

// ProgramBlockStatus reports the lifecycle status of one program block.
func (s *Simulator) ProgramBlockStatus(block submit.ProgramBlockHandle) (model.ProgramBlockStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pb, ok := s.blocks[string(block)]
	if !ok {
		return "", false
	}
	return pb.Status, true
}

// Calls reports how many adapter calls the simulator has seen.
func (s *Simulator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
