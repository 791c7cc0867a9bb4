package obsdb

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkatops/ptcamp/internal/logging"
	"github.com/mkatops/ptcamp/internal/model"
	"github.com/mkatops/ptcamp/internal/registry"
	"github.com/mkatops/ptcamp/internal/submit"
)

func TestSimulatorLifecycle(t *testing.T) {
	sim := NewSimulator()
	ctx := context.Background()

	block, err := sim.NewProgramBlock(ctx, "sarah", "tonight", "")
	require.NoError(t, err)

	first, err := sim.CreateJob(ctx, model.ResolvedJob{Description: "MKAIV-405 Generic AR1 phaseup"})
	require.NoError(t, err)
	second, err := sim.CreateJob(ctx, model.ResolvedJob{Description: "MKAIV-387: CBF J0437-4715", OrderIndex: 1})
	require.NoError(t, err)

	require.NoError(t, sim.AssignToProgramBlock(ctx, first, block))
	require.NoError(t, sim.AssignToProgramBlock(ctx, second, block))
	require.NoError(t, sim.Finalize(ctx, block))

	status, ok := sim.ProgramBlockStatus(block)
	require.True(t, ok)
	assert.Equal(t, model.ProgramBlockStatusApproved, status)

	for _, handle := range []submit.JobHandle{first, second} {
		jobStatus, ok := sim.JobStatus(handle)
		require.True(t, ok)
		assert.Equal(t, model.BlockStatusApproved, jobStatus)
	}

	jobs := sim.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "MKAIV-405 Generic AR1 phaseup", jobs[0].Description)
	assert.Equal(t, "MKAIV-387: CBF J0437-4715", jobs[1].Description)
	assert.Equal(t, 6, sim.Calls())
}

func TestSimulatorFailAt(t *testing.T) {
	sim := NewSimulator()
	sim.FailAt = 3
	ctx := context.Background()

	block, err := sim.NewProgramBlock(ctx, "sarah", "tonight", "")
	require.NoError(t, err)
	_, err = sim.CreateJob(ctx, model.ResolvedJob{})
	require.NoError(t, err)

	_, err = sim.CreateJob(ctx, model.ResolvedJob{})
	require.Error(t, err)

	var serr *submit.SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "create_job", serr.Op)
	assert.Len(t, sim.Jobs(), 1)

	_, ok := sim.ProgramBlockStatus(block)
	assert.True(t, ok)
}

func TestSimulatorAssignValidation(t *testing.T) {
	sim := NewSimulator()
	ctx := context.Background()

	block, err := sim.NewProgramBlock(ctx, "sarah", "tonight", "")
	require.NoError(t, err)
	job, err := sim.CreateJob(ctx, model.ResolvedJob{})
	require.NoError(t, err)

	assert.Error(t, sim.AssignToProgramBlock(ctx, "sb_0000000000_deadbeef", block))
	assert.Error(t, sim.AssignToProgramBlock(ctx, job, "pb_0000000000_deadbeef"))
	assert.NoError(t, sim.AssignToProgramBlock(ctx, job, block))
}

func TestSimulatorDoubleFinalize(t *testing.T) {
	sim := NewSimulator()
	ctx := context.Background()

	block, err := sim.NewProgramBlock(ctx, "sarah", "tonight", "")
	require.NoError(t, err)
	require.NoError(t, sim.Finalize(ctx, block))

	err = sim.Finalize(ctx, block)
	require.Error(t, err)

	var serr *submit.SubmissionError
	assert.ErrorAs(t, err, &serr)
}

func TestSimulatorApproveJob(t *testing.T) {
	sim := NewSimulator()
	ctx := context.Background()

	job, err := sim.CreateJob(ctx, model.ResolvedJob{Description: "MKAIV-388"})
	require.NoError(t, err)
	require.NoError(t, sim.ApproveJob(ctx, job))

	status, ok := sim.JobStatus(job)
	require.True(t, ok)
	assert.Equal(t, model.BlockStatusApproved, status)

	// A second approval walks an illegal approved -> defined transition.
	assert.Error(t, sim.ApproveJob(ctx, job))
	assert.Error(t, sim.ApproveJob(ctx, "sb_0000000000_deadbeef"))
}

func TestSimulatorApproveAssignedJobRefused(t *testing.T) {
	sim := NewSimulator()
	ctx := context.Background()

	block, err := sim.NewProgramBlock(ctx, "sarah", "tonight", "")
	require.NoError(t, err)
	job, err := sim.CreateJob(ctx, model.ResolvedJob{})
	require.NoError(t, err)
	require.NoError(t, sim.AssignToProgramBlock(ctx, job, block))

	err = sim.ApproveJob(ctx, job)
	require.Error(t, err)

	var serr *submit.SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "approve_job", serr.Op)
	assert.Contains(t, err.Error(), "belongs to program block")
}

func TestSimulatorThroughRunner(t *testing.T) {
	sim := NewSimulator()
	runner := &submit.Runner{
		Registry:  registry.Builtin(),
		Submitter: sim,
		Logger:    logging.New("error", "text", io.Discard),
	}

	result, err := runner.Run(context.Background(), submit.Options{GroupKey: "puls1", Owner: "sarah"})
	require.NoError(t, err)
	require.Len(t, result.Jobs, 9)

	// 1 block + 9 creates + 9 assigns + 1 finalize.
	assert.Equal(t, 20, sim.Calls())

	status, ok := sim.ProgramBlockStatus(submit.ProgramBlockHandle(result.ProgramBlock))
	require.True(t, ok)
	assert.Equal(t, model.ProgramBlockStatusApproved, status)

	for _, jr := range result.Jobs {
		jobStatus, ok := sim.JobStatus(submit.JobHandle(jr.Handle))
		require.True(t, ok)
		assert.Equal(t, model.BlockStatusApproved, jobStatus)
	}

	jobs := sim.Jobs()
	for i, job := range jobs {
		assert.Equal(t, i/3, job.SequenceIndex, "job %d sequence index", i)
		assert.Equal(t, i%3, job.OrderIndex, "job %d order index", i)
	}
}

func TestSimulatorRunnerAbortLeavesNothingFinalized(t *testing.T) {
	sim := NewSimulator()
	sim.FailAt = 5 // fourth create (1 block + 3 creates precede it)
	runner := &submit.Runner{
		Registry:  registry.Builtin(),
		Submitter: sim,
		Logger:    logging.New("error", "text", io.Discard),
	}

	_, err := runner.Run(context.Background(), submit.Options{GroupKey: "puls1", Owner: "sarah"})
	require.Error(t, err)

	var serr *submit.SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "create_job", serr.Op)

	// Created drafts stay drafts; nothing was assigned or finalized.
	assert.Len(t, sim.Jobs(), 3)
	assert.Equal(t, 5, sim.Calls())
}
