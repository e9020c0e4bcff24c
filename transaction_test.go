package timetable

import (
	"errors"
	"slices"
	"testing"
)

func TestTransaction_AtomicCommit(t *testing.T) {
	tbl := tableWithKeys(t, 1, 2, 3, 4, 5, 6)
	var events []ChangeEvent
	tbl.Observe(ObserverFunc(func(ev ChangeEvent) { events = append(events, ev) }))

	if err := tbl.StartTransaction(); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.AddData(rowsWithKeys(10, 11)); err != nil {
		t.Fatal(err)
	}
	if n, err := tbl.Remove(3, 5); err != nil || n != 0 {
		t.Fatalf("Remove inside transaction = %d, %v; want 0, nil", n, err)
	}
	if _, err := tbl.AddData([]Row{NewRow(1, String("replaced"))}); err != nil {
		t.Fatal(err)
	}

	// Nothing is visible before commit.
	if tbl.Len() != 6 {
		t.Errorf("Len before commit = %d, want 6", tbl.Len())
	}
	if row, _ := tbl.Search(10); row.Key != 6 {
		t.Errorf("Search(10) = %v, buffered rows must stay invisible", row.Key)
	}
	if len(events) != 0 {
		t.Fatalf("got %d notifications before commit", len(events))
	}

	change, err := tbl.Commit()
	if err != nil {
		t.Fatal(err)
	}
	want := Change{Inserted: 2, Replaced: 1, Removed: 2}
	if change != want {
		t.Errorf("Commit() = %+v, want %+v", change, want)
	}
	if got := keysOf(tbl.Storage()); !slices.Equal(got, []Key{1, 2, 5, 6, 10, 11}) {
		t.Errorf("keys = %v", got)
	}
	if len(events) != 1 {
		t.Fatalf("got %d notifications, want exactly 1", len(events))
	}
	ev := events[0]
	if !ev.Kind.Has(ChangeStructure) || !ev.Kind.Has(ChangeValues) {
		t.Errorf("Kind = %v, want structure|values", ev.Kind)
	}
	if ev.Version != tbl.Version() {
		t.Errorf("event version = %d, want %d", ev.Version, tbl.Version())
	}
	if tbl.InTransaction() {
		t.Error("transaction still open after commit")
	}
}

func TestTransaction_OpsApplyInIssueOrder(t *testing.T) {
	tbl := NewTable()
	if err := tbl.StartTransaction(); err != nil {
		t.Fatal(err)
	}
	_, _ = tbl.AddData(rowsWithKeys(1, 2, 3))
	_, _ = tbl.Remove(2, 3)
	_, _ = tbl.AddData(rowsWithKeys(2.5))
	if _, err := tbl.Commit(); err != nil {
		t.Fatal(err)
	}
	if got := keysOf(tbl.Storage()); !slices.Equal(got, []Key{1, 2.5, 3}) {
		t.Errorf("keys = %v, want [1 2.5 3]", got)
	}
}

func TestTransaction_Rollback(t *testing.T) {
	tbl := tableWithKeys(t, 1, 2)
	notified := 0
	tbl.Observe(ObserverFunc(func(ChangeEvent) { notified++ }))

	if err := tbl.StartTransaction(); err != nil {
		t.Fatal(err)
	}
	_, _ = tbl.AddData(rowsWithKeys(3))
	_, _ = tbl.Remove(1, 2)
	if err := tbl.Rollback(); err != nil {
		t.Fatal(err)
	}
	if got := keysOf(tbl.Storage()); !slices.Equal(got, []Key{1, 2}) {
		t.Errorf("keys after rollback = %v", got)
	}
	if notified != 0 {
		t.Errorf("rollback notified %d times", notified)
	}
}

func TestTransaction_StateErrors(t *testing.T) {
	tbl := NewTable()

	if _, err := tbl.Commit(); !errors.Is(err, ErrTransactionState) {
		t.Errorf("Commit without transaction err = %v", err)
	}
	if err := tbl.Rollback(); !errors.Is(err, ErrTransactionState) {
		t.Errorf("Rollback without transaction err = %v", err)
	}
	if err := tbl.StartTransaction(); err != nil {
		t.Fatal(err)
	}
	var te *TransactionError
	if err := tbl.StartTransaction(); !errors.As(err, &te) {
		t.Errorf("nested StartTransaction err = %v", err)
	}
	if !tbl.InTransaction() {
		t.Error("failed nested start closed the open transaction")
	}
}

func TestTransaction_EmptyCommitIsSilent(t *testing.T) {
	tbl := tableWithKeys(t, 1)
	notified := 0
	tbl.Observe(ObserverFunc(func(ChangeEvent) { notified++ }))

	_ = tbl.StartTransaction()
	if _, err := tbl.AddData(nil); err != nil {
		t.Fatal(err)
	}
	change, err := tbl.Commit()
	if err != nil {
		t.Fatal(err)
	}
	if !change.IsZero() || notified != 0 {
		t.Errorf("empty commit = %+v with %d notifications", change, notified)
	}
}

func TestObserver_WriteFromNotificationIsRejected(t *testing.T) {
	tbl := NewTable()
	var inner error
	tbl.Observe(ObserverFunc(func(ChangeEvent) {
		_, inner = tbl.AddData(rowsWithKeys(100))
	}))

	if _, err := tbl.AddData(rowsWithKeys(1)); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(inner, ErrTransactionState) {
		t.Errorf("write from observer err = %v, want ErrTransactionState", inner)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len = %d, want 1", tbl.Len())
	}
	// Writes work again once the notification returned.
	if _, err := tbl.AddData(rowsWithKeys(2)); err != nil {
		t.Errorf("write after notification: %v", err)
	}
}

func TestObserver_CancelAndKinds(t *testing.T) {
	tbl := tableWithKeys(t, 1, 2)
	var kinds []ChangeKind
	cancel := tbl.Observe(ObserverFunc(func(ev ChangeEvent) { kinds = append(kinds, ev.Kind) }))

	_, _ = tbl.AddData([]Row{NewRow(1, String("v"))})
	_, _ = tbl.AddData(rowsWithKeys(3))
	_, _ = tbl.Remove(100, 200)
	cancel()
	_, _ = tbl.AddData(rowsWithKeys(4))

	want := []ChangeKind{ChangeValues, ChangeStructure}
	if !slices.Equal(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
}
