package timetable

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ChangeKind flags what a change touched.
type ChangeKind uint8

const (
	// ChangeStructure means rows were inserted or removed, so positions
	// and the key sequence moved.
	ChangeStructure ChangeKind = 1 << iota
	// ChangeValues means rows were replaced under existing keys.
	ChangeValues
)

// Has reports whether all flags in f are set.
func (k ChangeKind) Has(f ChangeKind) bool { return k&f == f }

func (k ChangeKind) String() string {
	var parts []string
	if k.Has(ChangeStructure) {
		parts = append(parts, "structure")
	}
	if k.Has(ChangeValues) {
		parts = append(parts, "values")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ChangeEvent is delivered to observers after a write or commit.
type ChangeEvent struct {
	TableID uuid.UUID
	Table   string
	Kind    ChangeKind
	// Version is the table's structural version after the change.
	Version uint64
	Change
}

// Observer receives change notifications. OnChange runs synchronously on the
// writer's goroutine; the table rejects writes until it returns.
type Observer interface {
	OnChange(ChangeEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ChangeEvent)

func (f ObserverFunc) OnChange(ev ChangeEvent) { f(ev) }

type observerEntry struct {
	id int
	o  Observer
}

// Observe registers o and returns a function that unregisters it.
// Observers are called in registration order.
func (t *Table) Observe(o Observer) (cancel func()) {
	t.nextObs++
	id := t.nextObs
	t.observers = append(t.observers, observerEntry{id: id, o: o})
	return func() {
		t.observers = slices.DeleteFunc(t.observers, func(e observerEntry) bool {
			return e.id == id
		})
	}
}

func (t *Table) notify(c Change) {
	kind := c.Kind()
	if kind == 0 || len(t.observers) == 0 {
		return
	}
	ev := ChangeEvent{
		TableID: t.id,
		Table:   t.name,
		Kind:    kind,
		Version: t.version,
		Change:  c,
	}
	observers := slices.Clone(t.observers)
	t.notifying = true
	defer func() { t.notifying = false }()
	for _, e := range observers {
		e.o.OnChange(ev)
	}
}
