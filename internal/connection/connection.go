package connection

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rzbill/topicd/internal/backend"
	"github.com/rzbill/topicd/internal/change"
	"github.com/rzbill/topicd/internal/future"
	"github.com/rzbill/topicd/internal/topic"
	logpkg "github.com/rzbill/topicd/pkg/log"
)

// state is a TopicConnection's position in the created → active →
// deactivated → closed lifecycle (§4.6).
type state int

const (
	stateCreated state = iota
	stateActive
	stateDeactivated
	stateClosed
)

type scopedTarget struct {
	name       string
	revisionID uuid.UUID
	isList     bool
}

// TopicConnection is a per-consumer handle bound to a ConnectionContext.
// It mediates reads, authored mutations, subscriptions, and
// connection-scoped entries against one Topic (§4.6).
type TopicConnection struct {
	t   *topic.Topic
	be  backend.Backend
	log logpkg.Logger

	activationCallback func(active bool)

	mu          sync.Mutex
	st          state
	dispatcher  future.Dispatcher
	ctxReg      Registration
	deactivated bool

	// ownedMap/ownedList track this connection's own CONNECTION-scoped
	// writes so deactivation can emit the compensating changes described
	// in §4.4 rule 2, without relying on scopeOwnerId matching a shared
	// single-node backend identity.
	ownedMap  map[string]map[string]uuid.UUID
	ownedList map[string]map[uuid.UUID]uuid.UUID
}

// Open binds ctx to t and returns the connection once ctx has completed
// its Init handshake. activationCallback, if non-nil, is invoked (through
// the connection's dispatcher) on every activation/deactivation edge.
func Open(t *topic.Topic, be backend.Backend, ctx ConnectionContext, logger logpkg.Logger, activationCallback func(active bool)) *TopicConnection {
	mustNonNil(t, "topic")
	mustNonNil(be, "backend")
	mustNonNil(ctx, "context")

	if logger == nil {
		logger = logpkg.NewLogger()
	}
	c := &TopicConnection{
		t:                  t,
		be:                 be,
		log:                logger.WithComponent("connection"),
		activationCallback: activationCallback,
		ownedMap:           make(map[string]map[string]uuid.UUID),
		ownedList:          make(map[string]map[uuid.UUID]uuid.UUID),
	}
	c.ctxReg = ctx.Init(c.acceptDispatcher)
	return c
}

// acceptDispatcher implements the AcceptDispatcher(d) transition from
// §4.6: activation and deactivation are themselves dispatched so a
// stale, already-superseded transition is a no-op when it runs.
func (c *TopicConnection) acceptDispatcher(d future.Dispatcher) {
	if d != nil {
		c.mu.Lock()
		if c.st == stateActive || c.st == stateClosed {
			c.mu.Unlock()
			return
		}
		c.st = stateActive
		c.dispatcher = d
		c.mu.Unlock()

		d.Dispatch(func() {
			c.mu.Lock()
			if c.st != stateActive {
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()

			ctx := context.Background()
			c.t.SubmitChange(ctx, change.Record{Type: change.TypeNodeActivate, NodeID: uuidPtr(c.be.NodeID())})

			if c.activationCallback != nil {
				c.activationCallback(true)
			}
		})
		return
	}

	c.mu.Lock()
	if c.st != stateActive {
		c.mu.Unlock()
		return
	}
	c.st = stateDeactivated
	dispatcher := c.dispatcher
	c.mu.Unlock()

	run := func() {
		c.mu.Lock()
		if c.st == stateActive {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		c.cleanupScoped()

		ctx := context.Background()
		c.t.SubmitChange(ctx, change.Record{Type: change.TypeNodeDeactivate, NodeID: uuidPtr(c.be.NodeID())})

		if c.activationCallback != nil {
			c.activationCallback(false)
		}
	}
	if dispatcher != nil {
		dispatcher.Dispatch(run)
	} else {
		run()
	}
}

// cleanupScoped emits compensating changes for every CONNECTION-scoped
// entry this connection wrote (§4.4 rule 2). A same-key rewrite by
// anyone since (rule 3) makes the CAS on ExpectedID fail harmlessly.
func (c *TopicConnection) cleanupScoped() {
	c.mu.Lock()
	var maps []scopedTarget
	var mapKeys []string
	for name, keys := range c.ownedMap {
		for key, rev := range keys {
			maps = append(maps, scopedTarget{name: name, revisionID: rev})
			mapKeys = append(mapKeys, key)
		}
	}
	var lists []scopedTarget
	var listKeys []uuid.UUID
	for name, keys := range c.ownedList {
		for key, rev := range keys {
			lists = append(lists, scopedTarget{name: name, revisionID: rev, isList: true})
			listKeys = append(listKeys, key)
		}
	}
	c.ownedMap = make(map[string]map[string]uuid.UUID)
	c.ownedList = make(map[string]map[uuid.UUID]uuid.UUID)
	c.mu.Unlock()

	ctx := context.Background()
	for i, tg := range maps {
		rev := tg.revisionID
		c.t.SubmitChange(ctx, change.Record{Type: change.TypePut, Name: tg.name, MapKey: mapKeys[i], ExpectedID: &rev, Value: nil})
	}
	for i, tg := range lists {
		rev := tg.revisionID
		key := listKeys[i]
		c.t.SubmitChange(ctx, change.Record{Type: change.TypeListSet, Name: tg.name, ListKey: &key, ExpectedID: &rev, Value: nil})
	}
}

// Close tears the connection down permanently: removes it from its
// context (triggering deactivation if still active) and prevents further
// callbacks from firing.
func (c *TopicConnection) Close() {
	c.mu.Lock()
	if c.st == stateClosed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	if c.ctxReg != nil {
		c.ctxReg.Remove()
	}
	c.mu.Lock()
	c.st = stateClosed
	c.mu.Unlock()
}

// IsActive reports whether the connection is currently in the active
// state (dispatcher installed, subscriptions live).
func (c *TopicConnection) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st == stateActive
}

// dispatch runs fn on this connection's own ActionDispatcher, so that
// subscriber notifications are serialized per-connection the same way
// activation/deactivation are (§4.6, §9). If the
// connection has no dispatcher installed yet (not yet activated), fn runs
// inline rather than being dropped.
func (c *TopicConnection) dispatch(fn func()) {
	c.mu.Lock()
	d := c.dispatcher
	c.mu.Unlock()
	if d != nil {
		d.Dispatch(fn)
		return
	}
	fn()
}

func (c *TopicConnection) recordScopedMap(name, key string, revisionID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ownedMap[name] == nil {
		c.ownedMap[name] = make(map[string]uuid.UUID)
	}
	c.ownedMap[name][key] = revisionID
}

func (c *TopicConnection) recordScopedList(name string, key, revisionID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ownedList[name] == nil {
		c.ownedList[name] = make(map[uuid.UUID]uuid.UUID)
	}
	c.ownedList[name][key] = revisionID
}

// GetNamedMap returns a handle to the named map, scoped to this
// connection (§4.6).
func (c *TopicConnection) GetNamedMap(name string) *MapHandle {
	return &MapHandle{name: name, t: c.t, conn: c}
}

// GetNamedList returns a handle to the named list, scoped to this
// connection.
func (c *TopicConnection) GetNamedList(name string) *ListHandle {
	return &ListHandle{name: name, t: c.t, conn: c}
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }
