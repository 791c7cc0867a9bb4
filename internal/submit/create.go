package submit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mkatops/ptcamp/internal/compose"
	"github.com/mkatops/ptcamp/internal/model"
)

// CreateOptions parameterizes one standalone schedule block. Owner and
// Target are required; the rest default to the values below.
type CreateOptions struct {
	Owner        string
	Target       string
	DurationSec  int    // default 60
	Ants         string // default "available"
	BandwidthMHz string // default "856"
	Issue        string // default "MKAIV-388", doubles as program-block-id
	Description  string // default: the issue
}

// CreateResult reports the created block.
type CreateResult struct {
	Handle         string `json:"handle"`
	Description    string `json:"description"`
	InstructionSet string `json:"instruction_set"`
}

// CreateSingle composes and submits one schedule block without a program
// block, then approves it. The adapter must implement JobApprover.
func (r *Runner) CreateSingle(ctx context.Context, opts CreateOptions) (*CreateResult, error) {
	if opts.Owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if opts.Target == "" {
		return nil, fmt.Errorf("target is required")
	}
	if r.Submitter == nil {
		return nil, fmt.Errorf("a submitter is required")
	}
	approver, ok := r.Submitter.(JobApprover)
	if !ok {
		return nil, fmt.Errorf("the submission adapter cannot approve standalone blocks")
	}

	duration := opts.DurationSec
	if duration <= 0 {
		duration = 60
	}
	ants := opts.Ants
	if ants == "" {
		ants = "available"
	}
	bandwidth := opts.BandwidthMHz
	if bandwidth == "" {
		bandwidth = "856"
	}
	issue := opts.Issue
	if issue == "" {
		issue = "MKAIV-388"
	}
	description := opts.Description
	if description == "" {
		description = issue
	}

	step := model.StepSpec{
		Kind: opts.Target,
		Overrides: map[model.Field]string{
			model.FieldOwner:             opts.Owner,
			model.FieldTime:              "-t " + strconv.Itoa(duration),
			model.FieldAntennaSpec:       ants,
			model.FieldParams:            fmt.Sprintf("-B %s -F 1284 --horizon 20", bandwidth),
			model.FieldIDs:               fmt.Sprintf("--proposal-id='FST-TRNS' --program-block-id='%s' --issue-id='%s'", issue, issue),
			model.FieldDescriptionFormat: description,
		},
	}

	jobs, err := compose.New(r.Registry).Compose([]model.Sequence{{step}})
	if err != nil {
		return nil, fmt.Errorf("compose schedule block: %w", err)
	}
	job := jobs[0]

	handle, err := r.Submitter.CreateJob(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("create schedule block: %w", err)
	}
	if err := approver.ApproveJob(ctx, handle); err != nil {
		return nil, fmt.Errorf("approve schedule block %s: %w", handle, err)
	}

	r.logger().Info("schedule block created",
		"handle", string(handle),
		"target", opts.Target,
		"owner", opts.Owner)
	r.audit("schedule_block_created", map[string]interface{}{
		"handle": string(handle),
		"target": opts.Target,
		"owner":  opts.Owner,
	})
	return &CreateResult{
		Handle:         string(handle),
		Description:    job.Description,
		InstructionSet: job.InstructionSet,
	}, nil
}
