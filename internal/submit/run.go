// Package submit drives a campaign run end to end: resolve the campaign
// input, compose every job up front, then hand the resolved jobs to the
// submission adapter in emission order under a fresh program block.
//
// Composition failures and adapter rejections abort the whole run. Nothing
// is finalized on abort, so a partial campaign never reaches the telescope.
package submit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkatops/ptcamp/internal/catalog"
	"github.com/mkatops/ptcamp/internal/compose"
	"github.com/mkatops/ptcamp/internal/model"
	"github.com/mkatops/ptcamp/internal/registry"
)

// Options selects the campaign input and the program block parameters for
// one run. CampaignFile wins over GroupKey when both are set.
type Options struct {
	GroupKey     string
	CampaignFile string
	Owner        string
	Description  string
	StartTime    string
	DryRun       bool
}

// Result reports what a run composed and, unless it was a dry run, what the
// adapter accepted.
type Result struct {
	RunID        string      `json:"run_id"`
	Campaign     string      `json:"campaign"`
	Valid        bool        `json:"valid,omitempty"`
	DryRun       bool        `json:"dry_run,omitempty"`
	ProgramBlock string      `json:"program_block,omitempty"`
	Jobs         []JobResult `json:"jobs"`
	Warnings     []string    `json:"warnings,omitempty"`
}

// JobResult is the per-job slice of a Result. Handle stays empty on dry
// runs.
type JobResult struct {
	Handle         string `json:"handle,omitempty"`
	Description    string `json:"description"`
	InstructionSet string `json:"instruction_set"`
	SequenceIndex  int    `json:"sequence_index"`
	OrderIndex     int    `json:"order_index"`
}

// Runner wires the catalog, the composer and a submission adapter together
// for campaign runs. Submitter may be nil for dry runs only.
type Runner struct {
	Registry  *registry.Registry
	Submitter Submitter
	Logger    *slog.Logger
	Audit     Auditor
}

// Run executes one campaign run. All jobs are composed before anything is
// submitted; the first adapter error aborts with nothing finalized.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if opts.GroupKey == "" && opts.CampaignFile == "" {
		return nil, fmt.Errorf("either a group key or a campaign file is required")
	}

	runID, err := model.GenerateID(model.IDTypeRun)
	if err != nil {
		return nil, fmt.Errorf("generate run ID: %w", err)
	}

	camp, err := catalog.Resolve(opts.GroupKey, opts.CampaignFile)
	if err != nil {
		return nil, fmt.Errorf("resolve campaign: %w", err)
	}

	jobs, err := compose.New(r.Registry).Compose(camp.Sequences)
	if err != nil {
		return nil, fmt.Errorf("compose campaign %s: %w", camp.Name, err)
	}

	result := &Result{RunID: runID, Campaign: camp.Name, DryRun: opts.DryRun}
	for _, job := range jobs {
		result.Jobs = append(result.Jobs, JobResult{
			Description:    job.Description,
			InstructionSet: job.InstructionSet,
			SequenceIndex:  job.SequenceIndex,
			OrderIndex:     job.OrderIndex,
		})
		for _, field := range compose.EmptyFields(job) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("job %d/%d resolved an empty %s", job.SequenceIndex, job.OrderIndex, field))
		}
	}

	r.logger().Info("campaign composed",
		"run_id", runID,
		"campaign", camp.Name,
		"sequences", len(camp.Sequences),
		"jobs", len(jobs))

	if opts.DryRun {
		result.Valid = true
		r.audit("dry_run_completed", map[string]interface{}{
			"run_id":   runID,
			"campaign": camp.Name,
			"jobs":     len(jobs),
			"warnings": len(result.Warnings),
		})
		return result, nil
	}

	if r.Submitter == nil {
		return nil, fmt.Errorf("a submitter is required unless running dry")
	}

	description := opts.Description
	if description == "" {
		description = fmt.Sprintf("PTUSE campaign %s", camp.Name)
	}

	block, err := r.Submitter.NewProgramBlock(ctx, opts.Owner, description, opts.StartTime)
	if err != nil {
		return nil, r.abort(runID, camp.Name, "new program block", err)
	}
	result.ProgramBlock = string(block)
	r.audit("program_block_created", map[string]interface{}{
		"run_id":        runID,
		"campaign":      camp.Name,
		"program_block": string(block),
	})

	handles := make([]JobHandle, len(jobs))
	for i, job := range jobs {
		handle, err := r.Submitter.CreateJob(ctx, job)
		if err != nil {
			return nil, r.abort(runID, camp.Name, fmt.Sprintf("create job %d of %d", i+1, len(jobs)), err)
		}
		handles[i] = handle
		result.Jobs[i].Handle = string(handle)
	}

	for i, handle := range handles {
		if err := r.Submitter.AssignToProgramBlock(ctx, handle, block); err != nil {
			return nil, r.abort(runID, camp.Name, fmt.Sprintf("assign job %d of %d", i+1, len(handles)), err)
		}
	}

	if err := r.Submitter.Finalize(ctx, block); err != nil {
		return nil, r.abort(runID, camp.Name, "finalize program block", err)
	}

	r.logger().Info("campaign submitted",
		"run_id", runID,
		"campaign", camp.Name,
		"program_block", string(block),
		"jobs", len(jobs))
	r.audit("campaign_submitted", map[string]interface{}{
		"run_id":        runID,
		"campaign":      camp.Name,
		"program_block": string(block),
		"jobs":          len(jobs),
	})
	return result, nil
}

func (r *Runner) abort(runID, campaign, op string, err error) error {
	r.logger().Error("submission aborted",
		"run_id", runID,
		"campaign", campaign,
		"op", op,
		"error", err)
	r.audit("submission_aborted", map[string]interface{}{
		"run_id":   runID,
		"campaign": campaign,
		"op":       op,
		"error":    err.Error(),
	})
	return fmt.Errorf("%s: %w", op, err)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) audit(eventType string, details map[string]interface{}) {
	if r.Audit == nil {
		return
	}
	if err := r.Audit.Log(eventType, details); err != nil {
		r.logger().Warn("audit write failed", "event_type", eventType, "error", err)
	}
}
