package timetable

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors for the timetable package.
var (
	// ErrInvalidKey is returned when a row carries a NaN, infinite or
	// non-numeric key. The row is skipped; the rest of the batch applies.
	ErrInvalidKey = errors.New("invalid key")

	// ErrTransactionState is returned when the transaction discipline is
	// violated: nested start, commit or rollback without an open
	// transaction, or a write from inside a change notification.
	ErrTransactionState = errors.New("invalid transaction state")

	// ErrStaleView is returned when a Mapping is read after a structural
	// change it has not been refreshed for.
	ErrStaleView = errors.New("stale view")

	// ErrInvalidMapping is returned for malformed column specs.
	ErrInvalidMapping = errors.New("invalid mapping")

	// ErrUnknownTable is returned when a Store has no table by that name.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownSeries is returned for an unregistered series name or type.
	ErrUnknownSeries = errors.New("unknown series")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid config")
)

// InvalidKeyError describes one rejected row.
type InvalidKeyError struct {
	// Index is the row's position in the submitted batch.
	Index int
	// Key is the offending key as received.
	Key any
	// Cause is set when the key failed to parse.
	Cause error
}

func (e *InvalidKeyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("row %d: invalid key %v: %v", e.Index, e.Key, e.Cause)
	}
	return fmt.Sprintf("row %d: invalid key %v", e.Index, e.Key)
}

func (e *InvalidKeyError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for InvalidKeyError.
func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

// BatchError reports the rows of a write that were skipped. The write
// still applied every other row; Applied says how many.
type BatchError struct {
	Applied  int
	Rejected []*InvalidKeyError
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d rows rejected", len(e.Rejected), len(e.Rejected)+e.Applied)
	if len(e.Rejected) > 0 {
		b.WriteString(": ")
		b.WriteString(e.Rejected[0].Error())
		if len(e.Rejected) > 1 {
			fmt.Fprintf(&b, " (and %d more)", len(e.Rejected)-1)
		}
	}
	return b.String()
}

// Unwrap exposes the individual row errors.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Rejected))
	for i, r := range e.Rejected {
		errs[i] = r
	}
	return errs
}

// Is implements error matching for BatchError.
func (e *BatchError) Is(target error) bool {
	return target == ErrInvalidKey
}

// TransactionError reports misuse of StartTransaction, Commit and Rollback.
type TransactionError struct {
	Op     string
	Reason string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Is implements error matching for TransactionError.
func (e *TransactionError) Is(target error) bool {
	return target == ErrTransactionState
}

// StaleViewError is returned when a view bound to one structural version is
// read after the source moved on.
type StaleViewError struct {
	Bound   uint64
	Current uint64
}

func (e *StaleViewError) Error() string {
	return fmt.Sprintf("view bound to version %d, source is at version %d", e.Bound, e.Current)
}

// Is implements error matching for StaleViewError.
func (e *StaleViewError) Is(target error) bool {
	return target == ErrStaleView
}

func newTransactionError(op, reason string) *TransactionError {
	return &TransactionError{Op: op, Reason: reason}
}
