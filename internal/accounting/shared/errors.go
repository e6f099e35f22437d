package shared

import (
	"fmt"

	core "github.com/ranchbook/ranchbook/internal/shared"
)

var (
	// ErrUnbalanced indicates debit != credit beyond tolerance.
	ErrUnbalanced = fmt.Errorf("accounting: lines must balance: %w", core.ErrValidation)
	// ErrNoLines indicates an empty line list.
	ErrNoLines = fmt.Errorf("accounting: at least one line required: %w", core.ErrValidation)
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = fmt.Errorf("accounting: journal entry %w", core.ErrNotFound)
	// ErrTransactionNotFound indicates missing ledger transaction.
	ErrTransactionNotFound = fmt.Errorf("accounting: ledger transaction %w", core.ErrNotFound)
	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = fmt.Errorf("accounting: account %w", core.ErrNotFound)
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = fmt.Errorf("accounting: invalid status transition: %w", core.ErrPrecondition)
	// ErrAlreadyReversed indicates the transaction carries a reversal link.
	ErrAlreadyReversed = fmt.Errorf("accounting: transaction already reversed: %w", core.ErrPrecondition)
	// ErrReverseReversal blocks reversing a reversing transaction.
	ErrReverseReversal = fmt.Errorf("accounting: a reversal cannot itself be reversed: %w", core.ErrPrecondition)
	// ErrIdempotencyConflict indicates the (tenant, idempotency key) pair exists.
	ErrIdempotencyConflict = fmt.Errorf("accounting: idempotency key already used: %w", core.ErrDuplicatePosting)
)
