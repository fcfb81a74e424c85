package topic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rzbill/topicd/internal/isoduration"
	logpkg "github.com/rzbill/topicd/pkg/log"
)

// snapshotMapEntry carries its own Key so the enclosing slice can preserve
// insertion order across a snapshot round-trip (a bare map[string]... would
// randomize the order subscribe catch-up relies on, per §4.6).
type snapshotMapEntry struct {
	Key        string          `json:"key"`
	RevisionID uuid.UUID       `json:"revisionId"`
	Value      json.RawMessage `json:"value"`
	ScopeOwner *uuid.UUID      `json:"scopeOwner,omitempty"`
}

type snapshotListEntry struct {
	ID         uuid.UUID       `json:"id"`
	RevisionID uuid.UUID       `json:"revisionId"`
	Value      json.RawMessage `json:"value"`
	ScopeOwner *uuid.UUID      `json:"scopeOwner,omitempty"`
}

// snapshotDoc is the persisted structured document from §6.
type snapshotDoc struct {
	Latest       uuid.UUID                       `json:"latest"`
	Lists        map[string][]snapshotListEntry  `json:"lists"`
	Maps         map[string][]snapshotMapEntry   `json:"maps"`
	ListTimeouts map[string]string               `json:"listTimeouts"`
	MapTimeouts  map[string]string               `json:"mapTimeouts"`
	ActiveNodes  []uuid.UUID                     `json:"activeNodes"`
	BackendNodes []uuid.UUID                     `json:"backendNodes"`
}

// buildSnapshot serializes the current state under the topic lock.
func (t *Topic) buildSnapshot() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	doc := snapshotDoc{
		Latest:       t.latestChangeID,
		Lists:        make(map[string][]snapshotListEntry, len(t.lists)),
		Maps:         make(map[string][]snapshotMapEntry, len(t.maps)),
		ListTimeouts: make(map[string]string),
		MapTimeouts:  make(map[string]string),
		BackendNodes: append([]uuid.UUID(nil), t.backendNodes...),
	}
	for n := range t.activeNodes {
		doc.ActiveNodes = append(doc.ActiveNodes, n)
	}
	for name, m := range t.maps {
		entries := make([]snapshotMapEntry, 0, len(m.order))
		for _, k := range m.order {
			e := m.entries[k]
			entries = append(entries, snapshotMapEntry{Key: k, RevisionID: e.revisionID, Value: e.value, ScopeOwner: e.scopeOwner})
		}
		doc.Maps[name] = entries
		if m.hasTimeout {
			doc.MapTimeouts[name] = isoduration.Format(m.timeout)
		}
	}
	for name, l := range t.lists {
		var entries []snapshotListEntry
		for _, id := range l.orderedIDs() {
			e := l.entries[id]
			entries = append(entries, snapshotListEntry{ID: e.id, RevisionID: e.revisionID, Value: e.value, ScopeOwner: e.scopeOwner})
		}
		doc.Lists[name] = entries
		if l.hasTimeout {
			doc.ListTimeouts[name] = isoduration.Format(l.timeout)
		}
	}
	return json.Marshal(doc)
}

// loadSnapshot populates topic state from a previously produced snapshot.
// Per §3, loading into a non-empty topic is forbidden; Open only calls
// this before any subscription exists, so the topic is guaranteed empty.
func (t *Topic) loadSnapshot(blob []byte) (uuid.UUID, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(blob, &doc); err != nil {
		return uuid.Nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.maps) != 0 || len(t.lists) != 0 {
		return uuid.Nil, fmt.Errorf("topic %s: refusing to load snapshot into non-empty topic", t.id)
	}

	for name, entries := range doc.Maps {
		m := newNamedMap()
		for _, e := range entries {
			m.put(e.Key, e.RevisionID, e.Value, e.ScopeOwner)
		}
		t.maps[name] = m
	}
	for name, iso := range doc.MapTimeouts {
		d, err := isoduration.Parse(iso)
		if err != nil {
			return uuid.Nil, fmt.Errorf("topic %s: map %q timeout: %w", t.id, name, err)
		}
		m := t.maps[name]
		if m == nil {
			m = newNamedMap()
			t.maps[name] = m
		}
		m.hasTimeout = true
		m.timeout = d
	}
	for name, entries := range doc.Lists {
		l := newNamedList()
		var prev *uuid.UUID
		for _, e := range entries {
			id := e.ID
			l.entries[id] = &listEntry{id: id, revisionID: e.RevisionID, value: e.Value, scopeOwner: e.ScopeOwner}
			if prev == nil {
				l.head = &id
			} else {
				l.entries[*prev].next = &id
				l.entries[id].prev = prev
			}
			prev = &id
		}
		t.lists[name] = l
	}
	for name, iso := range doc.ListTimeouts {
		d, err := isoduration.Parse(iso)
		if err != nil {
			return uuid.Nil, fmt.Errorf("topic %s: list %q timeout: %w", t.id, name, err)
		}
		l := t.lists[name]
		if l == nil {
			l = newNamedList()
			t.lists[name] = l
		}
		l.hasTimeout = true
		l.timeout = d
	}
	t.backendNodes = append([]uuid.UUID(nil), doc.BackendNodes...)
	for _, n := range doc.ActiveNodes {
		t.activeNodes[n] = 1
	}
	t.latestChangeID = doc.Latest
	t.hasLatest = true

	return doc.Latest, nil
}

// snapshotAndTruncate implements the leader's periodic snapshot in §4.2:
// submit a snapshot to the backend then truncate the log up to the
// applied change. Truncation is advisory (a no-op if the id is absent).
func (t *Topic) snapshotAndTruncate(latestID uuid.UUID) {
	blob, err := t.buildSnapshot()
	if err != nil {
		t.logger.Error("failed to build snapshot", logpkg.Err(err))
		return
	}
	ctx := context.Background()
	if err := t.be.SubmitSnapshot(ctx, t.id, blob); err != nil {
		t.logger.Error("failed to submit snapshot", logpkg.Err(err))
		return
	}
	if err := t.log.Truncate(ctx, latestID); err != nil {
		t.logger.Error("failed to truncate log", logpkg.Err(err))
	}
}
