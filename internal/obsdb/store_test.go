package obsdb

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkatops/ptcamp/internal/model"
	"github.com/mkatops/ptcamp/internal/submit"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestStoreInit(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS program_blocks")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreNewProgramBlock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO program_blocks")).
		WithArgs(sqlmock.AnyArg(), "sarah", "PTUSE campaign default", "2026-08-22 20:00:00", "draft").
		WillReturnResult(sqlmock.NewResult(0, 1))

	handle, err := store.NewProgramBlock(context.Background(), "sarah", "PTUSE campaign default", "2026-08-22 20:00:00")
	require.NoError(t, err)
	assert.True(t, model.ValidateID(string(handle)))

	idType, err := model.ParseIDType(string(handle))
	require.NoError(t, err)
	assert.Equal(t, model.IDTypeProgramBlock, idType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreNewProgramBlockEmptyStartTime(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO program_blocks")).
		WithArgs(sqlmock.AnyArg(), "sarah", "tonight", nil, "draft").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := store.NewProgramBlock(context.Background(), "sarah", "tonight", "")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateJob(t *testing.T) {
	store, mock := newMockStore(t)

	job := model.ResolvedJob{
		Owner:               "sarah",
		AntennaSpec:         "available",
		ControlledResources: "cbf,sdp,ptuse_1",
		Description:         "MKAIV-387: CBF J0437-4715",
		InstructionSet:      "run-obs-script /home/kat/katusescripts/ptuse/beamform_single_pulsar.py J0437-4715 -t 600",
		SequenceIndex:       1,
		OrderIndex:          2,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_blocks")).
		WithArgs(sqlmock.AnyArg(), "observation", "sarah", "available", "cbf,sdp,ptuse_1",
			job.Description, job.InstructionSet, nil, 1, 2, "draft", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	handle, err := store.CreateJob(context.Background(), job)
	require.NoError(t, err)

	idType, err := model.ParseIDType(string(handle))
	require.NoError(t, err)
	assert.Equal(t, model.IDTypeScheduleBlock, idType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateJobKeepsNotes(t *testing.T) {
	store, mock := newMockStore(t)

	job := model.ResolvedJob{
		Owner:          "sarah",
		Description:    "MKAIV-405 Generic AR1 phaseup",
		InstructionSet: "run-obs-script /home/kat/katsdpscripts/observation/bf_phaseup.py -t 64",
		Notes:          "chosen by the script",
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_blocks")).
		WithArgs(sqlmock.AnyArg(), "observation", "sarah", "", "",
			job.Description, job.InstructionSet, "chosen by the script", 0, 0, "draft", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := store.CreateJob(context.Background(), job)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateJobRejected(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_blocks")).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))

	_, err := store.CreateJob(context.Background(), model.ResolvedJob{Owner: "sarah"})
	require.Error(t, err)

	var serr *submit.SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "create_job", serr.Op)
}

func TestStoreAssignToProgramBlock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_blocks SET program_block_id = $1")).
		WithArgs("pb_1755859600_0a1b2c3d", "sb_1755859600_11223344", "draft").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.AssignToProgramBlock(context.Background(),
		"sb_1755859600_11223344", "pb_1755859600_0a1b2c3d")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAssignMissingBlock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_blocks SET program_block_id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.AssignToProgramBlock(context.Background(),
		"sb_1755859600_11223344", "pb_1755859600_0a1b2c3d")
	require.Error(t, err)

	var serr *submit.SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "assign_to_program_block", serr.Op)
	assert.Contains(t, err.Error(), "not assignable")
}

func TestStoreFinalize(t *testing.T) {
	store, mock := newMockStore(t)
	block := "pb_1755859600_0a1b2c3d"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM program_blocks WHERE id = $1 FOR UPDATE")).
		WithArgs(block).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("draft"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_blocks SET status = $1 WHERE program_block_id = $2 AND status = $3")).
		WithArgs("defined", block, "draft").
		WillReturnResult(sqlmock.NewResult(0, 9))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_blocks SET status = $1 WHERE program_block_id = $2 AND status = $3")).
		WithArgs("approved", block, "defined").
		WillReturnResult(sqlmock.NewResult(0, 9))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE program_blocks SET status = $1, finalized_at = now() WHERE id = $2")).
		WithArgs("approved", block).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Finalize(context.Background(), submit.ProgramBlockHandle(block))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreFinalizeTerminalBlock(t *testing.T) {
	store, mock := newMockStore(t)
	block := "pb_1755859600_0a1b2c3d"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM program_blocks WHERE id = $1 FOR UPDATE")).
		WithArgs(block).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))
	mock.ExpectRollback()

	err := store.Finalize(context.Background(), submit.ProgramBlockHandle(block))
	require.Error(t, err)

	var serr *submit.SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "finalize", serr.Op)
	assert.Contains(t, err.Error(), "terminal")
}

func TestStoreFinalizeUnknownBlock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM program_blocks WHERE id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	err := store.Finalize(context.Background(), "pb_1755859600_0a1b2c3d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStoreApproveJob(t *testing.T) {
	store, mock := newMockStore(t)
	job := "sb_1755859600_11223344"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, program_block_id FROM schedule_blocks WHERE id = $1 FOR UPDATE")).
		WithArgs(job).
		WillReturnRows(sqlmock.NewRows([]string{"status", "program_block_id"}).AddRow("draft", nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_blocks SET status = $1 WHERE id = $2")).
		WithArgs("approved", job).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.ApproveJob(context.Background(), submit.JobHandle(job))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreApproveJobAssignedBlock(t *testing.T) {
	store, mock := newMockStore(t)
	job := "sb_1755859600_11223344"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, program_block_id FROM schedule_blocks WHERE id = $1 FOR UPDATE")).
		WithArgs(job).
		WillReturnRows(sqlmock.NewRows([]string{"status", "program_block_id"}).
			AddRow("draft", "pb_1755859600_0a1b2c3d"))
	mock.ExpectRollback()

	err := store.ApproveJob(context.Background(), submit.JobHandle(job))
	require.Error(t, err)

	var serr *submit.SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "approve_job", serr.Op)
	assert.Contains(t, err.Error(), "belongs to program block")
}

func TestStoreApproveJobUnknown(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, program_block_id FROM schedule_blocks WHERE id = $1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "program_block_id"}))
	mock.ExpectRollback()

	err := store.ApproveJob(context.Background(), "sb_1755859600_11223344")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStoreProgramBlock(t *testing.T) {
	store, mock := newMockStore(t)
	block := "pb_1755859600_0a1b2c3d"

	mock.ExpectQuery(regexp.QuoteMeta("SELECT p.id, p.owner, p.description, p.desired_start_time, p.status")).
		WithArgs(block).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "owner", "description", "desired_start_time", "status", "count"}).
			AddRow(block, "sarah", "PTUSE campaign default", nil, "approved", 9))

	rec, err := store.ProgramBlock(context.Background(), block)
	require.NoError(t, err)
	assert.Equal(t, block, rec.ID)
	assert.Equal(t, "sarah", rec.Owner)
	assert.Equal(t, "", rec.StartTime)
	assert.Equal(t, "approved", rec.Status)
	assert.Equal(t, 9, rec.ScheduleBlocks)
}
