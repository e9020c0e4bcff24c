package timetable

// Change summarizes what one committed write did.
type Change struct {
	Inserted int
	Replaced int
	Removed  int
}

// Kind classifies the change for observers.
func (c Change) Kind() ChangeKind {
	var k ChangeKind
	if c.Inserted > 0 || c.Removed > 0 {
		k |= ChangeStructure
	}
	if c.Replaced > 0 {
		k |= ChangeValues
	}
	return k
}

// IsZero reports whether nothing changed.
func (c Change) IsZero() bool { return c == Change{} }

// StartTransaction opens a transaction. Until Commit, writes are queued and
// observers hear nothing. Transactions do not nest.
func (t *Table) StartTransaction() error {
	if t.notifying {
		return newTransactionError("start transaction", "called from a change notification")
	}
	if t.tx != nil {
		return newTransactionError("start transaction", "a transaction is already open")
	}
	t.tx = newOpBuffer()
	return nil
}

// InTransaction reports whether a transaction is open.
func (t *Table) InTransaction() bool { return t.tx != nil }

// Commit applies the queued writes in order and notifies observers once
// with the combined change. A commit that changed nothing notifies no one.
func (t *Table) Commit() (Change, error) {
	if t.tx == nil {
		return Change{}, newTransactionError("commit", "no transaction is open")
	}
	ops := t.tx.Drain()
	t.tx = nil
	c := t.run(ops)
	t.logger.Debug("transaction committed", "table", t.name, "ops", len(ops),
		"inserted", c.Inserted, "replaced", c.Replaced, "removed", c.Removed)
	t.notify(c)
	return c, nil
}

// Rollback discards the queued writes.
func (t *Table) Rollback() error {
	if t.tx == nil {
		return newTransactionError("rollback", "no transaction is open")
	}
	t.logger.Debug("transaction rolled back", "table", t.name,
		"ops", t.tx.Len(), "rows", t.tx.Rows())
	t.tx = nil
	return nil
}
