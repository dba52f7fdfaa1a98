package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the accounting core matches exactly one
// of these with errors.Is, except duplicate account codes which match both
// ErrValidation and ErrConflict.
var (
	// ErrValidation indicates malformed input the caller must correct.
	ErrValidation = errors.New("accounting: validation error")
	// ErrConflict indicates a uniqueness or reference conflict.
	ErrConflict = errors.New("accounting: conflict")
	// ErrState indicates an illegal lifecycle transition.
	ErrState = errors.New("accounting: invalid state")
	// ErrStore indicates a persistence failure; only retryable store errors
	// may be retried by the caller.
	ErrStore = errors.New("accounting: store failure")
	// ErrNotFound indicates a missing account or journal entry.
	ErrNotFound = errors.New("accounting: not found")
)

// Error is the typed error carried across the accounting packages.
type Error struct {
	kinds     []error
	msg       string
	cause     error
	retryable bool
}

func (e *Error) Error() string {
	if e.cause != nil && e.msg == "" {
		return e.cause.Error()
	}
	return e.msg
}

// Is matches the error against its kinds.
func (e *Error) Is(target error) bool {
	for _, k := range e.kinds {
		if k == target {
			return true
		}
	}
	return false
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether the whole atomic operation may be retried.
func (e *Error) Retryable() bool { return e.retryable }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &Error{kinds: []error{ErrValidation}, msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a ConflictError.
func Conflictf(format string, args ...any) error {
	return &Error{kinds: []error{ErrConflict}, msg: fmt.Sprintf(format, args...)}
}

// Statef builds a StateError.
func Statef(format string, args ...any) error {
	return &Error{kinds: []error{ErrState}, msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{kinds: []error{ErrNotFound}, msg: fmt.Sprintf(format, args...)}
}

// Store wraps a persistence failure.
func Store(cause error, retryable bool) error {
	if cause == nil {
		return nil
	}
	return &Error{kinds: []error{ErrStore}, msg: "accounting: store: " + cause.Error(), cause: cause, retryable: retryable}
}

// IsRetryable reports whether err is a retryable StoreError.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.retryable
	}
	return false
}

// IsTyped reports whether err already belongs to the taxonomy.
func IsTyped(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Sentinels shared by the accounting packages.
var (
	// ErrDuplicateCode indicates the account code already exists in the tenant.
	ErrDuplicateCode error = &Error{kinds: []error{ErrValidation, ErrConflict}, msg: "accounting: account code already exists"}
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = NotFoundf("accounting: account not found")
	// ErrJournalNotFound indicates a missing journal entry.
	ErrJournalNotFound = NotFoundf("accounting: journal entry not found")
	// ErrNoLedgerEntries indicates an account without postings.
	ErrNoLedgerEntries = errors.New("accounting: account has no ledger entries")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = Validationf("accounting: journal entry must have at least two lines")
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = Validationf("accounting: journal entry must be balanced")
	// ErrAlreadyReversed indicates a second reversal attempt.
	ErrAlreadyReversed = Statef("accounting: journal entry already reversed")
	// ErrNotPosted indicates a reversal of a non-posted entry.
	ErrNotPosted = Statef("accounting: can only reverse posted entries")
)
