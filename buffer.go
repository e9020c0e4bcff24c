package timetable

type opKind uint8

const (
	opInsert opKind = iota
	opRemove
)

// pendingOp is one write queued inside a transaction.
type pendingOp struct {
	kind opKind
	// rows is sorted by key with duplicates collapsed.
	rows []Row
	// truncate, when set, drops rows at or after truncateFrom before the
	// insert applies.
	truncate     bool
	truncateFrom Key
	from, to     Key
}

// opBuffer accumulates writes until the transaction commits.
type opBuffer struct {
	ops  []pendingOp
	rows int
}

func newOpBuffer() *opBuffer {
	return &opBuffer{ops: make([]pendingOp, 0, 8)}
}

func (b *opBuffer) Add(op pendingOp) {
	b.ops = append(b.ops, op)
	b.rows += len(op.rows)
}

// Len returns the number of queued operations.
func (b *opBuffer) Len() int { return len(b.ops) }

// Rows returns the number of queued rows across all inserts.
func (b *opBuffer) Rows() int { return b.rows }

func (b *opBuffer) Drain() []pendingOp {
	if len(b.ops) == 0 {
		return nil
	}
	out := make([]pendingOp, len(b.ops))
	copy(out, b.ops)
	clear(b.ops)
	b.ops = b.ops[:0]
	b.rows = 0
	return out
}
