package timetable

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/google/uuid"
)

// Table is an ordered, key-indexed store of rows. Keys are unique and rows
// are always held in ascending key order.
//
// A Table is not safe for concurrent use. Writes are rejected while change
// observers run.
type Table struct {
	id        uuid.UUID
	name      string
	keyColumn int
	logger    *slog.Logger

	rows rowSet
	// version changes whenever the key sequence changes; values changes
	// when rows are replaced in place.
	version uint64
	values  uint64

	tx        *opBuffer
	notifying bool
	observers []observerEntry
	nextObs   int

	groups map[uint64]*GroupedTable
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithName names the table in logs and change events.
func WithName(name string) TableOption {
	return func(t *Table) { t.name = name }
}

// WithKeyColumn selects which column of a raw record holds the key.
func WithKeyColumn(col int) TableOption {
	return func(t *Table) { t.keyColumn = col }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) TableOption {
	return func(t *Table) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTable creates an empty table.
func NewTable(opts ...TableOption) *Table {
	t := &Table{
		id:     uuid.New(),
		logger: slog.Default(),
		groups: make(map[uint64]*GroupedTable),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.keyColumn < 0 {
		t.keyColumn = 0
	}
	if t.name == "" {
		t.name = t.id.String()
	}
	return t
}

// ID returns the table's unique identifier.
func (t *Table) ID() uuid.UUID { return t.id }

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// KeyColumn returns the record column AddRecords reads keys from.
func (t *Table) KeyColumn() int { return t.keyColumn }

// AddData merges rows into the table. Rows whose key equals a stored key
// replace it; within the batch the later row wins. Rows with an invalid key
// are skipped and reported through a *BatchError while the rest apply. The
// returned count is the number of distinct keys written.
func (t *Table) AddData(rows []Row) (int, error) {
	return t.addData("add data", rows, nil, nil)
}

// AddDataFrom drops every stored row with key >= from and then merges rows,
// as a single change.
func (t *Table) AddDataFrom(from Key, rows []Row) (int, error) {
	if !validKey(from) {
		return 0, fmt.Errorf("add data from %v: %w", from, ErrInvalidKey)
	}
	return t.addData("add data from", rows, &from, nil)
}

// AddRecords converts raw records into rows, taking the key from the
// table's key column, and merges them like AddData. The key column stays in
// the row's fields so column indices match the record layout.
func (t *Table) AddRecords(records [][]Value) (int, error) {
	rows := make([]Row, 0, len(records))
	var rejected []*InvalidKeyError
	for i, rec := range records {
		if t.keyColumn >= len(rec) {
			rejected = append(rejected, &InvalidKeyError{Index: i, Key: nil})
			continue
		}
		k, err := KeyOf(rec[t.keyColumn])
		if err != nil {
			rejected = append(rejected, &InvalidKeyError{Index: i, Key: rec[t.keyColumn].Any(), Cause: err})
			continue
		}
		rows = append(rows, NewRow(k, rec...))
	}
	return t.addData("add records", rows, nil, rejected)
}

func (t *Table) addData(op string, rows []Row, truncateFrom *Key, rejected []*InvalidKeyError) (int, error) {
	if t.notifying {
		return 0, newTransactionError(op, "write issued from a change notification")
	}

	valid := make([]Row, 0, len(rows))
	for i, r := range rows {
		if !validKey(r.Key) {
			rejected = append(rejected, &InvalidKeyError{Index: i, Key: r.Key})
			continue
		}
		valid = append(valid, r)
	}

	batch := sortBatch(valid)
	pop := pendingOp{kind: opInsert, rows: batch}
	if truncateFrom != nil {
		pop.truncate = true
		pop.truncateFrom = *truncateFrom
	}
	if t.tx != nil {
		t.tx.Add(pop)
	} else {
		t.notify(t.run([]pendingOp{pop}))
	}

	if len(rejected) > 0 {
		t.logger.Warn("rejected rows with invalid keys",
			"table", t.name, "op", op, "rejected", len(rejected), "applied", len(batch))
		return len(batch), &BatchError{Applied: len(batch), Rejected: rejected}
	}
	return len(batch), nil
}

// Remove deletes rows with from <= key < to and returns how many went. An
// empty or inverted range removes nothing. Inside a transaction the removal
// is queued and the count is reported by Commit.
func (t *Table) Remove(from, to Key) (int, error) {
	if t.notifying {
		return 0, newTransactionError("remove", "write issued from a change notification")
	}
	if !validKey(from) || !validKey(to) {
		return 0, fmt.Errorf("remove [%v, %v): %w", from, to, ErrInvalidKey)
	}
	pop := pendingOp{kind: opRemove, from: from, to: to}
	if t.tx != nil {
		t.tx.Add(pop)
		return 0, nil
	}
	c := t.run([]pendingOp{pop})
	t.notify(c)
	return c.Removed, nil
}

// run applies ops in order and bumps the version stamps once for the lot.
func (t *Table) run(ops []pendingOp) Change {
	var c Change
	for _, op := range ops {
		switch op.kind {
		case opInsert:
			if op.truncate {
				var removed int
				t.rows, removed = t.rows.truncateFrom(op.truncateFrom)
				c.Removed += removed
			}
			var ins, rep int
			t.rows, ins, rep = t.rows.merge(op.rows)
			c.Inserted += ins
			c.Replaced += rep
		case opRemove:
			var removed int
			t.rows, removed = t.rows.removeRange(op.from, op.to)
			c.Removed += removed
		}
	}
	if c.Inserted > 0 || c.Removed > 0 {
		t.version++
	}
	if c.Replaced > 0 {
		t.values++
	}
	return c
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// RowAt returns the row at position i.
func (t *Table) RowAt(i int) (Row, bool) { return t.rows.at(i) }

// Storage returns a snapshot of the rows in key order.
func (t *Table) Storage() []Row { return slices.Clone(t.rows) }

// Rows iterates rows in key order. If the table changes structurally in the
// middle of a walk, iteration ends at that point without error; callers that
// must detect a truncated walk compare Version before and after, or read
// through a Mapping, whose Rows reports ErrStaleView.
func (t *Table) Rows() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		v := t.version
		for i := 0; i < len(t.rows) && t.version == v; i++ {
			if !yield(i, t.rows[i]) {
				return
			}
		}
	}
}

// Search returns the row with the greatest key <= k.
func (t *Table) Search(k Key) (Row, bool) { return t.rows.search(k) }

// KeyByIndex maps a fractional row position to a key. Positions between
// rows interpolate linearly, positions outside extrapolate. It reports
// false on an empty table.
func (t *Table) KeyByIndex(idx float64) (Key, bool) { return t.rows.keyByIndex(idx) }

// IndexByKey maps a key to a fractional row position, the inverse of
// KeyByIndex.
func (t *Table) IndexByKey(k Key) (float64, bool) { return t.rows.indexByKey(k) }

// Version is the structural version: it changes when rows are inserted or
// removed, but not when a row is replaced under the same key.
func (t *Table) Version() uint64 { return t.version }

// ValueVersion changes whenever rows are replaced in place.
func (t *Table) ValueVersion() uint64 { return t.values }

// MapAs binds a column spec to the table.
func (t *Table) MapAs(spec ColumnSpec) (*Mapping, error) {
	return newMapping(t, spec)
}
