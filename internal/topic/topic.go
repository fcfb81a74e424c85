// Package topic implements the event-log-backed state machine described
// in the coordination fabric's core: named maps and lists folded from an
// ordered change stream, cluster membership and leader election, scoped
// entry cleanup, idle expiration, and periodic snapshotting.
package topic

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/topicd/internal/backend"
	"github.com/rzbill/topicd/internal/change"
	"github.com/rzbill/topicd/internal/eventlog"
	"github.com/rzbill/topicd/internal/future"
	logpkg "github.com/rzbill/topicd/pkg/log"
)

// defaultSnapshotEvery is how many applied mutating changes the leader
// lets pass before submitting a snapshot and truncating the log (§4.2),
// used when Options.SnapshotInterval is zero.
const defaultSnapshotEvery = 100

// defaultEventIDNotFoundRetries bounds the applyLoop's retry of a
// Subscribe that reports ErrEventIDNotFound, used when
// Options.EventIDNotFoundRetries is zero (§7, §9).
const defaultEventIDNotFoundRetries = 50

// Registration cancels a subscription. Remove is idempotent.
type Registration interface {
	Remove()
}

type funcRegistration func()

func (f funcRegistration) Remove() { f() }

type mapSubscription struct {
	id      uint64
	handler func(change.MapChange)
}

type listSubscription struct {
	id      uint64
	handler func(change.ListChange)
}

// Topic is the per-name state machine. One Topic exists per open topic
// name for the lifetime of the owning Engine.
type Topic struct {
	id      string
	be      backend.Backend
	log     *eventlog.TopicLog
	logger  logpkg.Logger

	mu              sync.Mutex
	maps            map[string]*namedMap
	lists           map[string]*namedList
	activeNodes     map[uuid.UUID]int
	backendNodes    []uuid.UUID
	lastDisconnected time.Time
	hasLastDiscon   bool
	isLeader        bool
	changeCounter   int
	latestChangeID  uuid.UUID
	hasLatest       bool

	resultTrackers  map[uuid.UUID]func(change.Result)
	mapSubs         map[string][]mapSubscription
	listSubs        map[string][]listSubscription
	subIDs          uint64

	snapshotEvery          int
	eventIDNotFoundRetries int

	stopCh    chan struct{}
	closeOnce sync.Once
}

// Options configures a Topic's behavior around the knobs exposed by
// Config (§6). A zero value for either field falls back to the
// documented default.
type Options struct {
	SnapshotInterval       int
	EventIDNotFoundRetries int
}

// Open constructs a Topic named id with default Options, replays or
// loads its state, and joins it to the topic-scoped NODE_JOIN protocol
// described in §4.2.
func Open(ctx context.Context, id string, be backend.Backend, logger logpkg.Logger) (*Topic, error) {
	return OpenWithOptions(ctx, id, be, logger, Options{})
}

// OpenWithOptions is Open with explicit SnapshotInterval and
// EventIDNotFoundRetries knobs, as surfaced by Config.
func OpenWithOptions(ctx context.Context, id string, be backend.Backend, logger logpkg.Logger, opts Options) (*Topic, error) {
	l, err := be.OpenEventLog(id)
	if err != nil {
		return nil, fmt.Errorf("topic %s: open event log: %w", id, err)
	}
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	snapshotEvery := opts.SnapshotInterval
	if snapshotEvery <= 0 {
		snapshotEvery = defaultSnapshotEvery
	}
	retries := opts.EventIDNotFoundRetries
	if retries <= 0 {
		retries = defaultEventIDNotFoundRetries
	}

	t := &Topic{
		id:                     id,
		be:                     be,
		log:                    l,
		logger:                 logger.WithComponent("topic").WithField("topic", id),
		maps:                   make(map[string]*namedMap),
		lists:                  make(map[string]*namedList),
		activeNodes:            make(map[uuid.UUID]int),
		resultTrackers:         make(map[uuid.UUID]func(change.Result)),
		mapSubs:                make(map[string][]mapSubscription),
		listSubs:               make(map[string][]listSubscription),
		stopCh:                 make(chan struct{}),
		snapshotEvery:          snapshotEvery,
		eventIDNotFoundRetries: retries,
	}

	var sinceID *uuid.UUID
	if blob, ok, err := be.LoadLatestSnapshot(ctx, id); err == nil && ok {
		latest, loadErr := t.loadSnapshot(blob)
		if loadErr != nil {
			return nil, fmt.Errorf("topic %s: load snapshot: %w", id, loadErr)
		}
		sinceID = &latest
	}

	go t.membershipLoop()
	go t.applyLoop(sinceID)

	joinRec := change.Record{Type: change.TypeNodeJoin, NodeID: uuidPtr(be.NodeID())}
	if _, err := t.submitInternal(ctx, joinRec); err != nil {
		return nil, fmt.Errorf("topic %s: submit node join: %w", id, err)
	}

	return t, nil
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

// ID returns the topic's name.
func (t *Topic) ID() string { return t.id }

// Close tears down the topic's background loops. It does not remove the
// topic's durable state.
func (t *Topic) Close() {
	t.closeOnce.Do(func() { close(t.stopCh) })
}

func (t *Topic) applyLoop(sinceID *uuid.UUID) {
	handler := func(ev eventlog.Event) bool {
		rec, err := change.Decode(ev.Payload)
		if err != nil {
			t.logger.Error("failed to decode change record", logpkg.Err(err))
			return true
		}
		t.apply(ev.ID, rec)
		return true
	}

	for attempt := 0; ; attempt++ {
		err := t.log.Subscribe(context.Background(), sinceID, handler, t.stopCh)
		if err == nil {
			return
		}
		if err != eventlog.ErrEventIDNotFound {
			t.logger.Error("topic subscribe loop exited", logpkg.Err(err))
			return
		}
		if attempt >= t.eventIDNotFoundRetries {
			t.logger.Error("giving up after repeated ErrEventIDNotFound", logpkg.Err(err))
			return
		}
		select {
		case <-t.stopCh:
			return
		case <-time.After(10 * time.Millisecond):
		}
		t.logger.Warn("retrying subscribe after ErrEventIDNotFound", logpkg.Err(err))
	}
}

func (t *Topic) membershipLoop() {
	err := t.be.MembershipLog().Subscribe(context.Background(), nil, func(ev eventlog.Event) bool {
		rec, err := backend.DecodeMembershipRecord(ev.Payload)
		if err != nil {
			return true
		}
		if rec.Type == backend.Leave {
			t.handleNodeLeave(rec.NodeID)
		}
		return true
	}, t.stopCh)
	if err != nil {
		t.logger.Error("membership subscribe loop exited", logpkg.Err(err))
	}
}

// submitInternal submits a change the topic itself originates (NODE_JOIN,
// compensating cleanup changes) without a caller-visible tracker.
func (t *Topic) submitInternal(ctx context.Context, rec change.Record) (uuid.UUID, error) {
	id := uuid.New()
	payload, err := rec.Encode()
	if err != nil {
		return id, err
	}
	if _, err := t.log.SubmitEvent(ctx, id, payload); err != nil {
		return id, err
	}
	return id, nil
}

// SubmitChange submits a caller-authored change and returns a future that
// resolves once the change is applied by this (or any) node's state
// machine, per the result-tracker contract in §4.6.
func (t *Topic) SubmitChange(ctx context.Context, rec change.Record) (uuid.UUID, *future.Future[change.Result]) {
	id := uuid.New()
	f := future.New[change.Result]()

	t.mu.Lock()
	if _, exists := t.resultTrackers[id]; exists {
		t.mu.Unlock()
		panic("topic: duplicate result tracker for id " + id.String())
	}
	t.resultTrackers[id] = func(r change.Result) { f.Complete(r, nil, nil) }
	t.mu.Unlock()

	payload, err := rec.Encode()
	if err != nil {
		t.mu.Lock()
		delete(t.resultTrackers, id)
		t.mu.Unlock()
		f.Complete(change.Rejected, err, nil)
		return id, f
	}

	if _, err := t.log.SubmitEvent(ctx, id, payload); err != nil {
		t.mu.Lock()
		delete(t.resultTrackers, id)
		t.mu.Unlock()
		f.Complete(change.Rejected, err, nil)
	}
	return id, f
}

// SubscribeMap registers h for every change to the named map, after first
// synchronously delivering one synthetic PUT per current entry in
// insertion order (§4.6).
func (t *Topic) SubscribeMap(name string, h func(change.MapChange)) Registration {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.maps[name]
	if m != nil {
		for _, key := range append([]string(nil), m.order...) {
			e := m.entries[key]
			h(change.MapChange{Name: name, Key: key, OldValue: nil, NewValue: e.value, ScopeOwner: e.scopeOwner})
		}
	}

	t.subIDs++
	id := t.subIDs
	t.mapSubs[name] = append(t.mapSubs[name], mapSubscription{id: id, handler: h})
	return funcRegistration(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.mapSubs[name] = removeMapSub(t.mapSubs[name], id)
	})
}

// SubscribeList registers h for every change to the named list, after
// first delivering one synthetic insert per current entry in list order.
func (t *Topic) SubscribeList(name string, h func(change.ListChange)) Registration {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.lists[name]
	if l != nil {
		for _, id := range l.orderedIDs() {
			e := l.entries[id]
			h(change.ListChange{Name: name, Key: id, OldValue: nil, NewValue: e.value, ScopeOwner: e.scopeOwner})
		}
	}

	t.subIDs++
	id := t.subIDs
	t.listSubs[name] = append(t.listSubs[name], listSubscription{id: id, handler: h})
	return funcRegistration(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.listSubs[name] = removeListSub(t.listSubs[name], id)
	})
}

func removeMapSub(subs []mapSubscription, id uint64) []mapSubscription {
	out := subs[:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

func removeListSub(subs []listSubscription, id uint64) []listSubscription {
	out := subs[:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// MapGet returns a deep copy of the current value at key, if present.
func (t *Topic) MapGet(name, key string) (json.RawMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.maps[name]
	if m == nil {
		return nil, false
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return deepCopyJSON(e.value), true
}

// MapKeys returns the map's keys in insertion order.
func (t *Topic) MapKeys(name string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.maps[name]
	if m == nil {
		return nil
	}
	return append([]string(nil), m.order...)
}

// ListItems returns deep-copied values from head to tail.
func (t *Topic) ListItems(name string) []json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.lists[name]
	if l == nil {
		return nil
	}
	ids := l.orderedIDs()
	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, deepCopyJSON(l.entries[id].value))
	}
	return out
}

// ListKeys returns entry IDs from head to tail.
func (t *Topic) ListKeys(name string) []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.lists[name]
	if l == nil {
		return nil
	}
	return l.orderedIDs()
}

func deepCopyJSON(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}

// SetMapExpiration submits a MAP_TIMEOUT change; a nil duration clears it.
func (t *Topic) SetMapExpiration(ctx context.Context, name string, d *time.Duration) (uuid.UUID, *future.Future[change.Result]) {
	return t.SubmitChange(ctx, change.Record{Type: change.TypeMapTimeout, Name: name, TimeoutMs: durationMs(d)})
}

// SetListExpiration submits a LIST_TIMEOUT change; a nil duration clears it.
func (t *Topic) SetListExpiration(ctx context.Context, name string, d *time.Duration) (uuid.UUID, *future.Future[change.Result]) {
	return t.SubmitChange(ctx, change.Record{Type: change.TypeListTimeout, Name: name, TimeoutMs: durationMs(d)})
}

func durationMs(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

// GetMapExpiration returns the configured timeout, if any.
func (t *Topic) GetMapExpiration(name string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.maps[name]
	if m == nil || !m.hasTimeout {
		return 0, false
	}
	return m.timeout, true
}

// GetListExpiration returns the configured timeout, if any.
func (t *Topic) GetListExpiration(name string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.lists[name]
	if l == nil || !l.hasTimeout {
		return 0, false
	}
	return l.timeout, true
}
