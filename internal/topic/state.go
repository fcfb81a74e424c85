package topic

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// mapEntry is a single value in a named map (§3 MapEntry).
type mapEntry struct {
	revisionID uuid.UUID
	value      json.RawMessage
	scopeOwner *uuid.UUID
}

// namedMap holds one map's entries plus insertion order (for subscribe
// catch-up) and its expiration timeout. Map keys are caller-chosen
// strings, distinct from the UUIDs that identify list entries.
type namedMap struct {
	order      []string
	entries    map[string]*mapEntry
	timeout    time.Duration
	hasTimeout bool
}

func newNamedMap() *namedMap {
	return &namedMap{entries: make(map[string]*mapEntry)}
}

func (m *namedMap) put(key string, revisionID uuid.UUID, value json.RawMessage, scopeOwner *uuid.UUID) {
	if _, exists := m.entries[key]; !exists {
		m.order = append(m.order, key)
	}
	m.entries[key] = &mapEntry{revisionID: revisionID, value: value, scopeOwner: scopeOwner}
}

func (m *namedMap) remove(key string) {
	if _, exists := m.entries[key]; !exists {
		return
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// listEntry is a single node in a named list's doubly-linked structure
// (§3 ListEntry, §9 doubly-linked list note).
type listEntry struct {
	id         uuid.UUID
	revisionID uuid.UUID
	value      json.RawMessage
	prev       *uuid.UUID
	next       *uuid.UUID
	scopeOwner *uuid.UUID
}

// namedList is a doubly-linked list addressed by entry ID, plus a head
// pointer. Traversal from head visits every entry exactly once.
type namedList struct {
	head       *uuid.UUID
	entries    map[uuid.UUID]*listEntry
	timeout    time.Duration
	hasTimeout bool
}

func newNamedList() *namedList {
	return &namedList{entries: make(map[uuid.UUID]*listEntry)}
}

// tail returns the current tail ID, or nil if the list is empty.
func (l *namedList) tail() *uuid.UUID {
	if l.head == nil {
		return nil
	}
	id := *l.head
	for {
		e := l.entries[id]
		if e.next == nil {
			return &id
		}
		id = *e.next
	}
}

// orderedIDs returns every entry ID from head to tail.
func (l *namedList) orderedIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(l.entries))
	if l.head == nil {
		return ids
	}
	id := *l.head
	for {
		ids = append(ids, id)
		e := l.entries[id]
		if e.next == nil {
			break
		}
		id = *e.next
	}
	return ids
}

// insert links a new entry adjacent to ref (before or after it), or at an
// end when ref is nil. before=true+ref=nil appends to tail;
// before=false+ref=nil prepends to head — matching §4.1's INSERT semantics
// for referenceKey=nil.
func (l *namedList) insert(id uuid.UUID, revisionID uuid.UUID, value json.RawMessage, ref *uuid.UUID, before bool, scopeOwner *uuid.UUID) {
	e := &listEntry{id: id, revisionID: revisionID, value: value, scopeOwner: scopeOwner}
	l.entries[id] = e

	if l.head == nil {
		l.head = &id
		return
	}

	if ref == nil {
		if before {
			t := *l.tail()
			l.linkAfter(t, id)
		} else {
			h := *l.head
			l.linkBefore(h, id)
		}
		return
	}

	if before {
		l.linkBefore(*ref, id)
	} else {
		l.linkAfter(*ref, id)
	}
}

func (l *namedList) linkAfter(anchor, id uuid.UUID) {
	a := l.entries[anchor]
	n := l.entries[id]
	n.prev = &anchor
	n.next = a.next
	if a.next != nil {
		l.entries[*a.next].prev = &id
	}
	a.next = &id
}

func (l *namedList) linkBefore(anchor, id uuid.UUID) {
	a := l.entries[anchor]
	n := l.entries[id]
	n.next = &anchor
	n.prev = a.prev
	if a.prev != nil {
		l.entries[*a.prev].next = &id
	} else {
		l.head = &id
	}
	a.prev = &id
}

// unlink removes id from the chain without deleting it from entries,
// leaving its own prev/next stale (caller deletes or relinks next).
func (l *namedList) unlink(id uuid.UUID) {
	e := l.entries[id]
	if e.prev != nil {
		l.entries[*e.prev].next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		l.entries[*e.next].prev = e.prev
	}
}

func (l *namedList) remove(id uuid.UUID) {
	if _, ok := l.entries[id]; !ok {
		return
	}
	l.unlink(id)
	delete(l.entries, id)
}

// moveBefore/moveAfter relocate an existing entry next to another.
func (l *namedList) moveBefore(id, ref uuid.UUID) {
	l.unlink(id)
	l.linkBefore(ref, id)
}

func (l *namedList) moveAfter(id, ref uuid.UUID) {
	l.unlink(id)
	l.linkAfter(ref, id)
}

// conditionsHold checks the INSERT conditions array: each pair asserts
// rightKey is the immediate successor of leftKey (nil = head/tail).
func (l *namedList) conditionsHold(conditions []condition) bool {
	for _, c := range conditions {
		var actualNext *uuid.UUID
		if c.left == nil {
			actualNext = l.head
		} else {
			e, ok := l.entries[*c.left]
			if !ok {
				return false
			}
			actualNext = e.next
		}
		if c.right == nil {
			if actualNext != nil {
				return false
			}
			continue
		}
		if actualNext == nil || *actualNext != *c.right {
			return false
		}
	}
	return true
}

type condition struct {
	left  *uuid.UUID
	right *uuid.UUID
}
