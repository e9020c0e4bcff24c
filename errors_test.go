package timetable

import (
	"errors"
	"strconv"
	"testing"
)

func TestBatchError(t *testing.T) {
	cause := &strconv.NumError{Func: "ParseFloat", Num: "abc", Err: strconv.ErrSyntax}
	err := &BatchError{
		Applied: 3,
		Rejected: []*InvalidKeyError{
			{Index: 1, Key: "abc", Cause: cause},
			{Index: 4, Key: nil},
		},
	}

	if !errors.Is(err, ErrInvalidKey) {
		t.Error("expected error to match ErrInvalidKey")
	}
	if !errors.Is(err, strconv.ErrSyntax) {
		t.Error("expected error to unwrap to the parse cause")
	}
	var ke *InvalidKeyError
	if !errors.As(err, &ke) || ke.Index != 1 {
		t.Errorf("errors.As found %+v, want row 1", ke)
	}
	if got := err.Error(); got == "" {
		t.Error("expected non-empty error message")
	}
}

func TestTransactionError(t *testing.T) {
	err := newTransactionError("commit", "no transaction is open")
	if !errors.Is(err, ErrTransactionState) {
		t.Error("expected error to match ErrTransactionState")
	}
	if errors.Is(err, ErrStaleView) {
		t.Error("transaction error should not match ErrStaleView")
	}
	if err.Error() != "commit: no transaction is open" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestStaleViewError(t *testing.T) {
	var err error = &StaleViewError{Bound: 2, Current: 5}
	if !errors.Is(err, ErrStaleView) {
		t.Error("expected error to match ErrStaleView")
	}
	if errors.Is(err, ErrInvalidKey) {
		t.Error("stale view error should not match ErrInvalidKey")
	}
}
