// Package obsdb persists campaign submissions to the observation database
// and provides an in-memory simulator with the same lifecycle semantics for
// rehearsals and tests.
package obsdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkatops/ptcamp/internal/model"
	"github.com/mkatops/ptcamp/internal/submit"
)

// BlockTypeObservation is the schedule block type this tool submits.
const BlockTypeObservation = "observation"

const schema = `
CREATE TABLE IF NOT EXISTS program_blocks (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	description TEXT NOT NULL,
	desired_start_time TEXT,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	finalized_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS schedule_blocks (
	id TEXT PRIMARY KEY,
	block_type TEXT NOT NULL,
	owner TEXT NOT NULL,
	antenna_spec TEXT NOT NULL,
	controlled_resources TEXT NOT NULL,
	description TEXT NOT NULL,
	instruction_set TEXT NOT NULL,
	notes TEXT,
	sequence_index INTEGER NOT NULL,
	order_index INTEGER NOT NULL,
	status TEXT NOT NULL,
	idempotency_key TEXT NOT NULL UNIQUE,
	program_block_id TEXT REFERENCES program_blocks(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_schedule_blocks_program_block ON schedule_blocks(program_block_id);
`

// Store submits campaigns to the observation database. Implements
// submit.Submitter.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to the observation database and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("obsdb: DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("obsdb: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("obsdb: ping: %w", err)
	}
	return db, nil
}

// Init creates the submission tables when missing.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("obsdb: init schema: %w", err)
	}
	return nil
}

// NewProgramBlock inserts a draft program block and returns its ID.
func (s *Store) NewProgramBlock(ctx context.Context, owner, description, startTime string) (submit.ProgramBlockHandle, error) {
	id, err := model.GenerateID(model.IDTypeProgramBlock)
	if err != nil {
		return "", fmt.Errorf("obsdb: generate program block ID: %w", err)
	}

	start := sql.NullString{String: startTime, Valid: startTime != ""}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO program_blocks (id, owner, description, desired_start_time, status)
		VALUES ($1, $2, $3, $4, $5)
	`, id, owner, description, start, string(model.ProgramBlockStatusDraft))
	if err != nil {
		return "", &submit.SubmissionError{Op: "new_program_block", Err: err}
	}
	return submit.ProgramBlockHandle(id), nil
}

// CreateJob inserts a draft schedule block carrying the resolved fields and
// a fresh idempotency key.
func (s *Store) CreateJob(ctx context.Context, job model.ResolvedJob) (submit.JobHandle, error) {
	id, err := model.GenerateID(model.IDTypeScheduleBlock)
	if err != nil {
		return "", fmt.Errorf("obsdb: generate schedule block ID: %w", err)
	}

	notes := sql.NullString{String: job.Notes, Valid: job.Notes != ""}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schedule_blocks (id, block_type, owner, antenna_spec, controlled_resources,
			description, instruction_set, notes, sequence_index, order_index, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, id, BlockTypeObservation, job.Owner, job.AntennaSpec, job.ControlledResources,
		job.Description, job.InstructionSet, notes, job.SequenceIndex, job.OrderIndex,
		string(model.BlockStatusDraft), uuid.NewString())
	if err != nil {
		return "", &submit.SubmissionError{Op: "create_job", Err: err}
	}
	return submit.JobHandle(id), nil
}

// AssignToProgramBlock attaches a draft schedule block to a program block.
func (s *Store) AssignToProgramBlock(ctx context.Context, job submit.JobHandle, block submit.ProgramBlockHandle) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE schedule_blocks SET program_block_id = $1
		WHERE id = $2 AND status = $3
	`, string(block), string(job), string(model.BlockStatusDraft))
	if err != nil {
		return &submit.SubmissionError{Op: "assign_to_program_block", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &submit.SubmissionError{Op: "assign_to_program_block", Err: err}
	}
	if n == 0 {
		return &submit.SubmissionError{Op: "assign_to_program_block",
			Err: fmt.Errorf("schedule block %s is not assignable", job)}
	}
	return nil
}

// Finalize advances the program block draft → defined → approved together
// with its schedule blocks, in one transaction.
func (s *Store) Finalize(ctx context.Context, block submit.ProgramBlockHandle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &submit.SubmissionError{Op: "finalize", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM program_blocks WHERE id = $1 FOR UPDATE`, string(block)).Scan(&status)
	if err == sql.ErrNoRows {
		return &submit.SubmissionError{Op: "finalize",
			Err: fmt.Errorf("program block %s not found", block)}
	}
	if err != nil {
		return &submit.SubmissionError{Op: "finalize", Err: err}
	}

	current := model.ProgramBlockStatus(status)
	for _, next := range []model.ProgramBlockStatus{model.ProgramBlockStatusDefined, model.ProgramBlockStatusApproved} {
		if err := model.ValidateProgramBlockTransition(current, next); err != nil {
			return &submit.SubmissionError{Op: "finalize", Err: err}
		}
		current = next
	}

	// Schedule blocks advance with their block; the WHERE status guards keep
	// the per-row transitions legal.
	if _, err := tx.ExecContext(ctx, `
		UPDATE schedule_blocks SET status = $1 WHERE program_block_id = $2 AND status = $3
	`, string(model.BlockStatusDefined), string(block), string(model.BlockStatusDraft)); err != nil {
		return &submit.SubmissionError{Op: "finalize", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE schedule_blocks SET status = $1 WHERE program_block_id = $2 AND status = $3
	`, string(model.BlockStatusApproved), string(block), string(model.BlockStatusDefined)); err != nil {
		return &submit.SubmissionError{Op: "finalize", Err: err}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE program_blocks SET status = $1, finalized_at = now() WHERE id = $2
	`, string(current), string(block)); err != nil {
		return &submit.SubmissionError{Op: "finalize", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &submit.SubmissionError{Op: "finalize", Err: err}
	}
	return nil
}

// ApproveJob advances a standalone schedule block draft → defined →
// approved. Blocks already assigned to a program block are refused; those
// advance with their block on Finalize.
func (s *Store) ApproveJob(ctx context.Context, job submit.JobHandle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &submit.SubmissionError{Op: "approve_job", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	var programBlock sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT status, program_block_id FROM schedule_blocks WHERE id = $1 FOR UPDATE`,
		string(job)).Scan(&status, &programBlock)
	if err == sql.ErrNoRows {
		return &submit.SubmissionError{Op: "approve_job",
			Err: fmt.Errorf("schedule block %s not found", job)}
	}
	if err != nil {
		return &submit.SubmissionError{Op: "approve_job", Err: err}
	}
	if programBlock.Valid {
		return &submit.SubmissionError{Op: "approve_job",
			Err: fmt.Errorf("schedule block %s belongs to program block %s", job, programBlock.String)}
	}

	current := model.BlockStatus(status)
	for _, next := range []model.BlockStatus{model.BlockStatusDefined, model.BlockStatusApproved} {
		if err := model.ValidateBlockTransition(current, next); err != nil {
			return &submit.SubmissionError{Op: "approve_job", Err: err}
		}
		current = next
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE schedule_blocks SET status = $1 WHERE id = $2
	`, string(current), string(job)); err != nil {
		return &submit.SubmissionError{Op: "approve_job", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &submit.SubmissionError{Op: "approve_job", Err: err}
	}
	return nil
}

// ProgramBlockRecord is the persisted view of one program block.
type ProgramBlockRecord struct {
	ID             string
	Owner          string
	Description    string
	StartTime      string
	Status         string
	ScheduleBlocks int
}

// ProgramBlock loads one program block with its schedule block count.
func (s *Store) ProgramBlock(ctx context.Context, id string) (*ProgramBlockRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.owner, p.description, p.desired_start_time, p.status,
			(SELECT COUNT(*) FROM schedule_blocks b WHERE b.program_block_id = p.id)
		FROM program_blocks p WHERE p.id = $1
	`, id)

	var rec ProgramBlockRecord
	var start sql.NullString
	if err := row.Scan(&rec.ID, &rec.Owner, &rec.Description, &start, &rec.Status, &rec.ScheduleBlocks); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("obsdb: program block %s not found", id)
		}
		return nil, fmt.Errorf("obsdb: load program block: %w", err)
	}
	rec.StartTime = start.String
	return &rec, nil
}
