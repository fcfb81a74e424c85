package topic

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/topicd/internal/change"
	logpkg "github.com/rzbill/topicd/pkg/log"
)

// apply is the single-threaded state transition function (§4.1/§4.2). It
// is only ever invoked from the topic's applyLoop goroutine, which is the
// log's sole consumer, so no additional synchronization beyond t.mu (held
// for the benefit of concurrent readers/subscribers) is required.
func (t *Topic) apply(id uuid.UUID, rec change.Record) {
	t.mu.Lock()

	var result change.Result
	var details *change.Details
	mutating := true

	switch rec.Type {
	case change.TypePut:
		result, details = t.applyPut(id, rec, true)
	case change.TypeReplace:
		result, details = t.applyPut(id, rec, false)
	case change.TypeInsert:
		result, details = t.applyInsert(id, rec)
	case change.TypeMoveBefore:
		result, details = t.applyMove(rec, true)
	case change.TypeMoveAfter:
		result, details = t.applyMove(rec, false)
	case change.TypeListSet:
		result, details = t.applyListSet(id, rec)
	case change.TypeMapTimeout:
		t.applyMapTimeout(rec)
		result, mutating = change.Accepted, false
	case change.TypeListTimeout:
		t.applyListTimeout(rec)
		result, mutating = change.Accepted, false
	case change.TypeNodeJoin:
		t.applyNodeJoin(*rec.NodeID)
		result, mutating = change.Accepted, false
	case change.TypeNodeActivate:
		t.applyNodeActivate(*rec.NodeID)
		result, mutating = change.Accepted, false
	case change.TypeNodeDeactivate:
		t.applyNodeDeactivate(*rec.NodeID)
		result, mutating = change.Accepted, false
	default:
		result, mutating = change.Rejected, false
	}

	if mutating {
		t.changeCounter++
	}
	t.latestChangeID = id
	t.hasLatest = true

	tracker := t.resultTrackers[id]
	delete(t.resultTrackers, id)

	var mapSubs []mapSubscription
	var listSubs []listSubscription
	if details != nil {
		if details.Map != nil {
			mapSubs = append([]mapSubscription(nil), t.mapSubs[details.Map.Name]...)
		}
		if details.List != nil {
			listSubs = append([]listSubscription(nil), t.listSubs[details.List.Name]...)
		}
	}

	shouldSnapshot := t.isLeader && mutating && t.changeCounter%t.snapshotEvery == 0
	t.mu.Unlock()

	if tracker != nil {
		tracker(result)
	}

	if details != nil && result == change.Accepted {
		if details.Map != nil {
			fanOutMap(t.logger, mapSubs, *details.Map)
		}
		if details.List != nil {
			fanOutList(t.logger, listSubs, *details.List)
		}
	}

	if shouldSnapshot {
		go t.snapshotAndTruncate(id)
	}
}

func fanOutMap(logger logpkg.Logger, subs []mapSubscription, mc change.MapChange) {
	for _, s := range subs {
		safeCall(logger, func() { s.handler(mc) })
	}
}

func fanOutList(logger logpkg.Logger, subs []listSubscription, lc change.ListChange) {
	for _, s := range subs {
		safeCall(logger, func() { s.handler(lc) })
	}
}

// safeCall isolates a subscriber panic so it cannot blind the rest of the
// fan-out (§7, §9).
func safeCall(logger logpkg.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("subscriber panicked", logpkg.F("recover", r))
		}
	}()
	fn()
}

func jsonEqual(a, b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
}

func (t *Topic) applyPut(id uuid.UUID, rec change.Record, allowIDCheck bool) (change.Result, *change.Details) {
	m := t.maps[rec.Name]
	if m == nil {
		m = newNamedMap()
		t.maps[rec.Name] = m
	}
	existing, hasExisting := m.entries[rec.MapKey]

	if allowIDCheck && rec.ExpectedID != nil {
		if !hasExisting || existing.revisionID != *rec.ExpectedID {
			return change.Rejected, nil
		}
	}
	if rec.ExpectedValue != nil {
		var cur []byte
		if hasExisting {
			cur = existing.value
		}
		if !jsonEqual(cur, rec.ExpectedValue) {
			return change.Rejected, nil
		}
	}

	var oldValue []byte
	if hasExisting {
		oldValue = existing.value
	}

	var oldScopeOwner *uuid.UUID
	if hasExisting {
		oldScopeOwner = existing.scopeOwner
	}

	if rec.IsNullValue() {
		if !hasExisting {
			return change.Rejected, nil
		}
		m.remove(rec.MapKey)
		return change.Accepted, &change.Details{Map: &change.MapChange{Name: rec.Name, Key: rec.MapKey, OldValue: oldValue, NewValue: nil, ScopeOwner: oldScopeOwner}}
	}

	m.put(rec.MapKey, id, rec.Value, rec.ScopeOwner)
	return change.Accepted, &change.Details{Map: &change.MapChange{Name: rec.Name, Key: rec.MapKey, OldValue: oldValue, NewValue: rec.Value, ScopeOwner: rec.ScopeOwner}}
}

func (t *Topic) applyInsert(id uuid.UUID, rec change.Record) (change.Result, *change.Details) {
	l := t.lists[rec.Name]
	if l == nil {
		l = newNamedList()
		t.lists[rec.Name] = l
	}

	conds := make([]condition, 0, len(rec.Conditions))
	for _, c := range rec.Conditions {
		conds = append(conds, condition{left: c.LeftKey, right: c.RightKey})
	}
	if !l.conditionsHold(conds) {
		return change.Rejected, nil
	}
	if rec.ReferenceKey != nil {
		if _, ok := l.entries[*rec.ReferenceKey]; !ok {
			return change.Rejected, nil
		}
	}

	l.insert(id, id, rec.Item, rec.ReferenceKey, rec.Before, rec.ScopeOwner)
	return change.Accepted, &change.Details{List: &change.ListChange{Name: rec.Name, Key: id, OldValue: nil, NewValue: rec.Item, ScopeOwner: rec.ScopeOwner}}
}

func (t *Topic) applyMove(rec change.Record, before bool) (change.Result, *change.Details) {
	l := t.lists[rec.Name]
	if l == nil {
		return change.Rejected, nil
	}
	moving, ok1 := l.entries[*rec.KeyToMove]
	_, ok2 := l.entries[*rec.ReferenceKey]
	if !ok1 || !ok2 {
		return change.Rejected, nil
	}
	conds := make([]condition, 0, len(rec.Conditions))
	for _, c := range rec.Conditions {
		conds = append(conds, condition{left: c.LeftKey, right: c.RightKey})
	}
	if !l.conditionsHold(conds) {
		return change.Rejected, nil
	}
	if before {
		l.moveBefore(*rec.KeyToMove, *rec.ReferenceKey)
	} else {
		l.moveAfter(*rec.KeyToMove, *rec.ReferenceKey)
	}
	return change.Accepted, &change.Details{List: &change.ListChange{Name: rec.Name, Key: *rec.KeyToMove, OldValue: moving.value, NewValue: moving.value, ScopeOwner: moving.scopeOwner}}
}

func (t *Topic) applyListSet(id uuid.UUID, rec change.Record) (change.Result, *change.Details) {
	l := t.lists[rec.Name]
	if l == nil {
		return change.Rejected, nil
	}
	existing, ok := l.entries[*rec.ListKey]
	if rec.ExpectedID != nil {
		if !ok || existing.revisionID != *rec.ExpectedID {
			return change.Rejected, nil
		}
	}

	if rec.IsNullValue() {
		if !ok {
			return change.Rejected, nil
		}
		old := existing.value
		oldScopeOwner := existing.scopeOwner
		l.remove(*rec.ListKey)
		return change.Accepted, &change.Details{List: &change.ListChange{Name: rec.Name, Key: *rec.ListKey, OldValue: old, NewValue: nil, ScopeOwner: oldScopeOwner}}
	}

	if !ok {
		return change.Rejected, nil
	}
	old := existing.value
	existing.value = rec.Value
	existing.revisionID = id
	existing.scopeOwner = rec.ScopeOwner
	return change.Accepted, &change.Details{List: &change.ListChange{Name: rec.Name, Key: *rec.ListKey, OldValue: old, NewValue: rec.Value, ScopeOwner: rec.ScopeOwner}}
}

func (t *Topic) applyMapTimeout(rec change.Record) {
	m := t.maps[rec.Name]
	if m == nil {
		m = newNamedMap()
		t.maps[rec.Name] = m
	}
	if rec.TimeoutMs == nil {
		m.hasTimeout = false
		return
	}
	m.hasTimeout = true
	m.timeout = time.Duration(*rec.TimeoutMs) * time.Millisecond
}

func (t *Topic) applyListTimeout(rec change.Record) {
	l := t.lists[rec.Name]
	if l == nil {
		l = newNamedList()
		t.lists[rec.Name] = l
	}
	if rec.TimeoutMs == nil {
		l.hasTimeout = false
		return
	}
	l.hasTimeout = true
	l.timeout = time.Duration(*rec.TimeoutMs) * time.Millisecond
}

// applyNodeJoin implements §4.3's NODE_JOIN handling, including the
// initial-leader stale-entry sweep. isLeader is re-derived from
// backendNodes[0] on every call, not just the append path: a snapshot
// reload seeds backendNodes without ever setting isLeader, so the
// local node's own rejoin after a restart must still pick up
// leadership rather than leaving it permanently false.
func (t *Topic) applyNodeJoin(nodeID uuid.UUID) {
	alreadyPresent := false
	for _, n := range t.backendNodes {
		if n == nodeID {
			alreadyPresent = true
			break
		}
	}
	wasEmpty := len(t.backendNodes) == 0
	if !alreadyPresent {
		t.backendNodes = append(t.backendNodes, nodeID)
	}
	becameLeader := !t.isLeader && t.backendNodes[0] == t.be.NodeID()
	if becameLeader {
		t.isLeader = true
	}
	if wasEmpty && becameLeader {
		go t.sweepStale()
	}
}

func (t *Topic) applyNodeActivate(nodeID uuid.UUID) {
	wasEmpty := len(t.activeNodes) == 0
	t.activeNodes[nodeID]++
	if wasEmpty {
		t.hasLastDiscon = false
	}
}

func (t *Topic) applyNodeDeactivate(nodeID uuid.UUID) {
	if t.activeNodes[nodeID] <= 1 {
		delete(t.activeNodes, nodeID)
	} else {
		t.activeNodes[nodeID]--
	}
	if len(t.activeNodes) == 0 {
		t.lastDisconnected = time.Now()
		t.hasLastDiscon = true
	}
}

// handleNodeLeave processes a MembershipLog LEAVE for node n (§4.3):
// remove it from backend-nodes, re-evaluate leadership, and if this node
// becomes leader as a result, sweep n's scoped entries.
func (t *Topic) handleNodeLeave(n uuid.UUID) {
	t.mu.Lock()
	idx := -1
	for i, id := range t.backendNodes {
		if id == n {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return
	}
	t.backendNodes = append(t.backendNodes[:idx], t.backendNodes[idx+1:]...)
	becameLeader := len(t.backendNodes) > 0 && t.backendNodes[0] == t.be.NodeID() && !t.isLeader
	if becameLeader {
		t.isLeader = true
	}
	shouldSweep := t.isLeader
	t.mu.Unlock()

	if shouldSweep {
		t.sweepNode(n)
	}
}

// sweepStale is run once by a freshly-elected initial leader.
func (t *Topic) sweepStale() {
	t.mu.Lock()
	nodes := append([]uuid.UUID(nil), t.backendNodes...)
	t.mu.Unlock()
	for _, n := range nodes {
		if n != t.be.NodeID() {
			t.sweepNode(n)
		}
	}
}

// sweepNode emits compensating changes for every entry scoped to node n
// (§4.4 rule 1: node leave).
func (t *Topic) sweepNode(n uuid.UUID) {
	ctx := context.Background()

	t.mu.Lock()
	type mapTarget struct {
		name       string
		key        string
		revisionID uuid.UUID
	}
	type listTarget struct {
		name       string
		key        uuid.UUID
		revisionID uuid.UUID
	}
	var mapTargets []mapTarget
	var listTargets []listTarget
	for name, m := range t.maps {
		for key, e := range m.entries {
			if e.scopeOwner != nil && *e.scopeOwner == n {
				mapTargets = append(mapTargets, mapTarget{name: name, key: key, revisionID: e.revisionID})
			}
		}
	}
	for name, l := range t.lists {
		for key, e := range l.entries {
			if e.scopeOwner != nil && *e.scopeOwner == n {
				listTargets = append(listTargets, listTarget{name: name, key: key, revisionID: e.revisionID})
			}
		}
	}
	t.mu.Unlock()

	for _, tg := range mapTargets {
		t.submitInternal(ctx, change.Record{Type: change.TypePut, Name: tg.name, MapKey: tg.key, ExpectedID: &tg.revisionID, Value: nil})
	}
	for _, tg := range listTargets {
		t.submitInternal(ctx, change.Record{Type: change.TypeListSet, Name: tg.name, ListKey: &tg.key, ExpectedID: &tg.revisionID, Value: nil})
	}
}

// ClearExpiredData implements §4.4's idle-expiration rule: when this topic
// is idle and its last-disconnected timestamp is older than the
// collection's timeout, every entry of that collection is removed. Called
// by the leader on every new subscription (see connection package).
func (t *Topic) ClearExpiredData() {
	t.mu.Lock()
	if len(t.activeNodes) != 0 || !t.hasLastDiscon || !t.isLeader {
		t.mu.Unlock()
		return
	}
	now := time.Now()
	type coll struct {
		isList bool
		name   string
	}
	var expired []coll
	for name, m := range t.maps {
		if m.hasTimeout && t.lastDisconnected.Add(m.timeout).Before(now) && len(m.entries) > 0 {
			expired = append(expired, coll{name: name})
		}
	}
	for name, l := range t.lists {
		if l.hasTimeout && t.lastDisconnected.Add(l.timeout).Before(now) && len(l.entries) > 0 {
			expired = append(expired, coll{isList: true, name: name})
		}
	}
	t.mu.Unlock()

	ctx := context.Background()
	for _, c := range expired {
		if c.isList {
			t.mu.Lock()
			ids := t.lists[c.name].orderedIDs()
			revs := make(map[uuid.UUID]uuid.UUID, len(ids))
			for _, id := range ids {
				revs[id] = t.lists[c.name].entries[id].revisionID
			}
			t.mu.Unlock()
			for _, id := range ids {
				id := id
				rev := revs[id]
				t.submitInternal(ctx, change.Record{Type: change.TypeListSet, Name: c.name, ListKey: &id, ExpectedID: &rev, Value: nil})
			}
		} else {
			t.mu.Lock()
			keys := append([]string(nil), t.maps[c.name].order...)
			revs := make(map[string]uuid.UUID, len(keys))
			for _, k := range keys {
				revs[k] = t.maps[c.name].entries[k].revisionID
			}
			t.mu.Unlock()
			for _, k := range keys {
				rev := revs[k]
				t.submitInternal(ctx, change.Record{Type: change.TypePut, Name: c.name, MapKey: k, ExpectedID: &rev, Value: nil})
			}
		}
	}
}
