package model

import "fmt"

// BlockStatus is the scheduling-service lifecycle of one schedule block.
type BlockStatus string

const (
	BlockStatusDraft     BlockStatus = "draft"
	BlockStatusDefined   BlockStatus = "defined"
	BlockStatusApproved  BlockStatus = "approved"
	BlockStatusScheduled BlockStatus = "scheduled"
	BlockStatusActive    BlockStatus = "active"
	BlockStatusCompleted BlockStatus = "completed"
	BlockStatusFailed    BlockStatus = "failed"
	BlockStatusWithdrawn BlockStatus = "withdrawn"
)

type ProgramBlockStatus string

const (
	ProgramBlockStatusDraft     ProgramBlockStatus = "draft"
	ProgramBlockStatusDefined   ProgramBlockStatus = "defined"
	ProgramBlockStatusApproved  ProgramBlockStatus = "approved"
	ProgramBlockStatusActive    ProgramBlockStatus = "active"
	ProgramBlockStatusCompleted ProgramBlockStatus = "completed"
	ProgramBlockStatusCancelled ProgramBlockStatus = "cancelled"
)

var terminalBlockStatuses = map[BlockStatus]bool{
	BlockStatusCompleted: true,
	BlockStatusFailed:    true,
	BlockStatusWithdrawn: true,
}

var terminalProgramBlockStatuses = map[ProgramBlockStatus]bool{
	ProgramBlockStatusCompleted: true,
	ProgramBlockStatusCancelled: true,
}

// Schedule block transitions: draft → defined → approved → scheduled →
// active → terminal. Withdrawal is only possible before approval takes the
// block out of operator hands.
var validBlockTransitions = map[BlockStatus]map[BlockStatus]bool{
	BlockStatusDraft: {
		BlockStatusDefined:   true,
		BlockStatusWithdrawn: true,
	},
	BlockStatusDefined: {
		BlockStatusApproved:  true,
		BlockStatusWithdrawn: true,
	},
	BlockStatusApproved: {
		BlockStatusScheduled: true,
	},
	BlockStatusScheduled: {
		BlockStatusActive: true,
	},
	BlockStatusActive: {
		BlockStatusCompleted: true,
		BlockStatusFailed:    true,
	},
}

var validProgramBlockTransitions = map[ProgramBlockStatus]map[ProgramBlockStatus]bool{
	ProgramBlockStatusDraft: {
		ProgramBlockStatusDefined:   true,
		ProgramBlockStatusCancelled: true,
	},
	ProgramBlockStatusDefined: {
		ProgramBlockStatusApproved:  true,
		ProgramBlockStatusCancelled: true,
	},
	ProgramBlockStatusApproved: {
		ProgramBlockStatusActive:    true,
		ProgramBlockStatusCancelled: true,
	},
	ProgramBlockStatusActive: {
		ProgramBlockStatusCompleted: true,
		ProgramBlockStatusCancelled: true,
	},
}

func IsBlockTerminal(s BlockStatus) bool {
	return terminalBlockStatuses[s]
}

func IsProgramBlockTerminal(s ProgramBlockStatus) bool {
	return terminalProgramBlockStatuses[s]
}

func ValidateBlockTransition(from, to BlockStatus) error {
	if IsBlockTerminal(from) {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validBlockTransitions[from]
	if !ok {
		return fmt.Errorf("unknown schedule block status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid schedule block transition: %q → %q", from, to)
	}
	return nil
}

func ValidateProgramBlockTransition(from, to ProgramBlockStatus) error {
	if IsProgramBlockTerminal(from) {
		return fmt.Errorf("cannot transition from terminal program block status %q", from)
	}
	allowed, ok := validProgramBlockTransitions[from]
	if !ok {
		return fmt.Errorf("unknown program block status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid program block transition: %q → %q", from, to)
	}
	return nil
}
