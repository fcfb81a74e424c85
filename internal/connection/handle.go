package connection

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/topicd/internal/change"
	"github.com/rzbill/topicd/internal/future"
	"github.com/rzbill/topicd/internal/topic"
)

// MapHandle mediates reads, writes, and subscriptions against one named
// map, scoped to the owning TopicConnection (§4.6, §6).
type MapHandle struct {
	name string
	t    *topic.Topic
	conn *TopicConnection
}

// Get returns a deep-copied snapshot of the current value, if present.
func (m *MapHandle) Get(key string) (json.RawMessage, bool) {
	return m.t.MapGet(m.name, key)
}

// GetKeys returns the map's keys in insertion order.
func (m *MapHandle) GetKeys() []string {
	return m.t.MapKeys(m.name)
}

// Put writes key unconditionally and returns a future resolving once the
// change is applied.
func (m *MapHandle) Put(key string, value json.RawMessage, scope change.Scope) (uuid.UUID, *future.Future[change.Result]) {
	return m.submit(change.TypePut, key, value, nil, nil, scope)
}

// Replace performs a compare-and-set on the prior value only.
func (m *MapHandle) Replace(key string, expectedValue, newValue json.RawMessage) (uuid.UUID, *future.Future[change.Result]) {
	return m.submit(change.TypeReplace, key, newValue, nil, expectedValue, change.ScopeTopic)
}

// PutIfMatch performs a compare-and-set on the prior revisionId.
func (m *MapHandle) PutIfMatch(key string, value json.RawMessage, expectedID uuid.UUID, scope change.Scope) (uuid.UUID, *future.Future[change.Result]) {
	return m.submit(change.TypePut, key, value, &expectedID, nil, scope)
}

// Delete removes key unconditionally (a PUT with a null value).
func (m *MapHandle) Delete(key string) (uuid.UUID, *future.Future[change.Result]) {
	return m.submit(change.TypePut, key, nil, nil, nil, change.ScopeTopic)
}

func (m *MapHandle) submit(typ change.Type, key string, value json.RawMessage, expectedID *uuid.UUID, expectedValue json.RawMessage, scope change.Scope) (uuid.UUID, *future.Future[change.Result]) {
	rec := change.Record{Type: typ, Name: m.name, MapKey: key, Value: value, ExpectedID: expectedID, ExpectedValue: expectedValue}
	if scope == change.ScopeConnection {
		rec.ScopeOwner = uuidPtr(m.conn.be.NodeID())
	}
	id, f := m.t.SubmitChange(context.Background(), rec)
	if scope == change.ScopeConnection {
		f.OnComplete(nil, func(r change.Result, err error) {
			if err == nil && r == change.Accepted {
				m.conn.recordScopedMap(m.name, key, id)
			}
		})
	}
	return id, f
}

// Subscribe registers h for every change to the map, after first
// delivering one synthetic PUT per current entry. Delivery is scheduled
// via this connection's own ActionDispatcher, so a slow or blocking
// handler only ever stalls this connection, never the topic's apply loop
// or any other connection's subscribers (§9).
func (m *MapHandle) Subscribe(h func(change.MapChange)) Registration {
	m.t.ClearExpiredData()
	reg := m.t.SubscribeMap(m.name, func(mc change.MapChange) {
		m.conn.dispatch(func() { h(mc) })
	})
	return funcRegistration(func() { reg.Remove() })
}

// SubscribeFiltered is like Subscribe but drops changes that fail f.
func (m *MapHandle) SubscribeFiltered(f ValueFilter, h func(change.MapChange)) Registration {
	return m.Subscribe(func(mc change.MapChange) {
		if f.Eval(mc.Key, scopeString(mc.ScopeOwner), mc.NewValue, mc.OldValue) {
			h(mc)
		}
	})
}

// GetExpirationTimeout returns the map's configured idle-expiration
// timeout, if any.
func (m *MapHandle) GetExpirationTimeout() (time.Duration, bool) {
	return m.t.GetMapExpiration(m.name)
}

// SetExpirationTimeout sets or clears (nil) the map's idle-expiration
// timeout.
func (m *MapHandle) SetExpirationTimeout(d *time.Duration) (uuid.UUID, *future.Future[change.Result]) {
	return m.t.SetMapExpiration(context.Background(), m.name, d)
}

// ListHandle mediates reads, writes, and subscriptions against one named
// list, scoped to the owning TopicConnection.
type ListHandle struct {
	name string
	t    *topic.Topic
	conn *TopicConnection
}

// GetItems returns deep-copied values from head to tail.
func (l *ListHandle) GetItems() []json.RawMessage { return l.t.ListItems(l.name) }

// GetKeys returns entry IDs from head to tail.
func (l *ListHandle) GetKeys() []uuid.UUID { return l.t.ListKeys(l.name) }

// InsertLast appends value to the tail.
func (l *ListHandle) InsertLast(value json.RawMessage, scope change.Scope) (uuid.UUID, *future.Future[change.Result]) {
	return l.insert(nil, true, value, nil, scope)
}

// InsertFirst prepends value to the head.
func (l *ListHandle) InsertFirst(value json.RawMessage, scope change.Scope) (uuid.UUID, *future.Future[change.Result]) {
	return l.insert(nil, false, value, nil, scope)
}

// InsertBefore inserts value immediately before ref.
func (l *ListHandle) InsertBefore(ref uuid.UUID, value json.RawMessage, scope change.Scope) (uuid.UUID, *future.Future[change.Result]) {
	return l.insert(&ref, true, value, nil, scope)
}

// InsertAfter inserts value immediately after ref.
func (l *ListHandle) InsertAfter(ref uuid.UUID, value json.RawMessage, scope change.Scope) (uuid.UUID, *future.Future[change.Result]) {
	return l.insert(&ref, false, value, nil, scope)
}

// InsertBetween inserts value immediately after prev, atomically asserting
// that next is prev's current successor. The whole insert is rejected if
// that adjacency no longer holds by the time it is applied.
func (l *ListHandle) InsertBetween(prev, next uuid.UUID, value json.RawMessage, scope change.Scope) (uuid.UUID, *future.Future[change.Result]) {
	return l.insert(&prev, false, value, []change.Condition{{LeftKey: &prev, RightKey: &next}}, scope)
}

func (l *ListHandle) insert(ref *uuid.UUID, before bool, value json.RawMessage, conditions []change.Condition, scope change.Scope) (uuid.UUID, *future.Future[change.Result]) {
	rec := change.Record{Type: change.TypeInsert, Name: l.name, ReferenceKey: ref, Before: before, Item: value, Conditions: conditions}
	if scope == change.ScopeConnection {
		rec.ScopeOwner = uuidPtr(l.conn.be.NodeID())
	}
	id, f := l.t.SubmitChange(context.Background(), rec)
	if scope == change.ScopeConnection {
		f.OnComplete(nil, func(r change.Result, err error) {
			if err == nil && r == change.Accepted {
				l.conn.recordScopedList(l.name, id, id)
			}
		})
	}
	return id, f
}

// Set rewrites the value at key (a compare-and-set on revisionId if
// expectedID is non-nil).
func (l *ListHandle) Set(key uuid.UUID, value json.RawMessage, expectedID *uuid.UUID, scope change.Scope) *future.Future[change.Result] {
	rec := change.Record{Type: change.TypeListSet, Name: l.name, ListKey: &key, Value: value, ExpectedID: expectedID}
	if scope == change.ScopeConnection {
		rec.ScopeOwner = uuidPtr(l.conn.be.NodeID())
	}
	id, f := l.t.SubmitChange(context.Background(), rec)
	if scope == change.ScopeConnection {
		f.OnComplete(nil, func(r change.Result, err error) {
			if err == nil && r == change.Accepted {
				l.conn.recordScopedList(l.name, key, id)
			}
		})
	}
	return f
}

// Delete removes key (a Set with a null value).
func (l *ListHandle) Delete(key uuid.UUID) *future.Future[change.Result] {
	return l.Set(key, nil, nil, change.ScopeTopic)
}

// MoveBefore relocates keyToMove immediately before ref.
func (l *ListHandle) MoveBefore(keyToMove, ref uuid.UUID) *future.Future[change.Result] {
	return l.move(keyToMove, ref, true, nil)
}

// MoveAfter relocates keyToMove immediately after ref.
func (l *ListHandle) MoveAfter(keyToMove, ref uuid.UUID) *future.Future[change.Result] {
	return l.move(keyToMove, ref, false, nil)
}

// MoveBetween relocates entry immediately after prev, atomically asserting
// that next is prev's current successor. The whole move is rejected if
// that adjacency no longer holds by the time it is applied.
func (l *ListHandle) MoveBetween(prev, next, entry uuid.UUID) *future.Future[change.Result] {
	return l.move(entry, prev, false, []change.Condition{{LeftKey: &prev, RightKey: &next}})
}

func (l *ListHandle) move(keyToMove, ref uuid.UUID, before bool, conditions []change.Condition) *future.Future[change.Result] {
	typ := change.TypeMoveAfter
	if before {
		typ = change.TypeMoveBefore
	}
	_, f := l.t.SubmitChange(context.Background(), change.Record{Type: typ, Name: l.name, KeyToMove: &keyToMove, ReferenceKey: &ref, Conditions: conditions})
	return f
}

// Subscribe registers h for every change to the list, after first
// delivering one synthetic insert per current entry in list order.
// Delivery is scheduled via this connection's own ActionDispatcher, so a
// slow or blocking handler only ever stalls this connection, never the
// topic's apply loop or any other connection's subscribers (§9).
func (l *ListHandle) Subscribe(h func(change.ListChange)) Registration {
	l.t.ClearExpiredData()
	reg := l.t.SubscribeList(l.name, func(lc change.ListChange) {
		l.conn.dispatch(func() { h(lc) })
	})
	return funcRegistration(func() { reg.Remove() })
}

// SubscribeFiltered is like Subscribe but drops changes that fail f.
func (l *ListHandle) SubscribeFiltered(f ValueFilter, h func(change.ListChange)) Registration {
	return l.Subscribe(func(lc change.ListChange) {
		if f.Eval(lc.Key.String(), scopeString(lc.ScopeOwner), lc.NewValue, lc.OldValue) {
			h(lc)
		}
	})
}

// GetExpirationTimeout returns the list's configured idle-expiration
// timeout, if any.
func (l *ListHandle) GetExpirationTimeout() (time.Duration, bool) {
	return l.t.GetListExpiration(l.name)
}

// SetExpirationTimeout sets or clears (nil) the list's idle-expiration
// timeout.
func (l *ListHandle) SetExpirationTimeout(d *time.Duration) (uuid.UUID, *future.Future[change.Result]) {
	return l.t.SetListExpiration(context.Background(), l.name, d)
}
