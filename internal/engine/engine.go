// Package engine provides the process-wide facade over topics,
// connections, and the backend, described in §4.7.
package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rzbill/topicd/internal/backend"
	"github.com/rzbill/topicd/internal/connection"
	"github.com/rzbill/topicd/internal/topic"
	logpkg "github.com/rzbill/topicd/pkg/log"
)

// UserColorCount is the modulus used to assign a stable, small color
// index to users that have no explicit preference (§4.7).
const UserColorCount = 7

// UserInfo identifies the human or service behind a connection.
type UserInfo struct {
	ID         string
	ColorIndex int // -1 means "no explicit preference"
}

// Registration is returned by OpenTopicConnection; removing it deactivates
// and discards the underlying TopicConnection.
type Registration interface {
	Remove()
}

type funcRegistration func()

func (f funcRegistration) Remove() { f() }

// Engine is the process-wide facade: it owns the backend, the topic
// registry, the user→color assignment, and every open connection
// registration, so it can shut all of them down in one pass.
type Engine struct {
	be     backend.Backend
	logger logpkg.Logger

	mu               sync.Mutex
	active           bool
	topics           map[string]*topic.Topic
	activeTopicCount map[string]int
	userColors       map[string]int
	nextColor        int
	registrations    map[*connection.TopicConnection]struct{}
	clustered        bool
	topicOpts        topic.Options
}

// New constructs an Engine bound to be. clustered controls the
// GetUserColorIndex fallback strategy (§4.7): a local backend assigns
// colors by insertion order, a clustered one derives them deterministically
// from a hash so every node agrees without coordination. topicOpts is
// forwarded to every topic.Open call the engine makes.
func New(be backend.Backend, clustered bool, logger logpkg.Logger, topicOpts topic.Options) *Engine {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Engine{
		be:               be,
		logger:           logger.WithComponent("engine"),
		active:           true,
		topics:           make(map[string]*topic.Topic),
		activeTopicCount: make(map[string]int),
		userColors:       make(map[string]int),
		registrations:    make(map[*connection.TopicConnection]struct{}),
		clustered:        clustered,
		topicOpts:        topicOpts,
	}
}

// OpenTopicConnection creates or fetches the named topic, binds ctx to
// it, and returns a Registration governing the resulting connection's
// lifetime (§4.7). activationCallback, if non-nil, fires on every
// activate/deactivate edge.
func (e *Engine) OpenTopicConnection(ctx connection.ConnectionContext, topicID string, user UserInfo, activationCallback func(active bool)) (*connection.TopicConnection, Registration, error) {
	if ctx == nil {
		panic("engine: OpenTopicConnection: context must not be nil")
	}
	if topicID == "" {
		panic("engine: OpenTopicConnection: topicID must not be empty")
	}

	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return nil, funcRegistration(func() {}), fmt.Errorf("engine: inactive")
	}
	t, ok := e.topics[topicID]
	if !ok {
		var err error
		t, err = topic.OpenWithOptions(context.Background(), topicID, e.be, e.logger, e.topicOpts)
		if err != nil {
			e.mu.Unlock()
			return nil, nil, fmt.Errorf("engine: open topic %s: %w", topicID, err)
		}
		e.topics[topicID] = t
	}
	e.activeTopicCount[topicID]++
	e.mu.Unlock()

	conn := connection.Open(t, e.be, ctx, e.logger, activationCallback)

	e.mu.Lock()
	e.registrations[conn] = struct{}{}
	e.mu.Unlock()

	return conn, funcRegistration(func() {
		conn.Close()
		e.mu.Lock()
		delete(e.registrations, conn)
		e.activeTopicCount[topicID]--
		e.mu.Unlock()
	}), nil
}

// GetUserColorIndex implements §4.7's color-assignment rule.
func (e *Engine) GetUserColorIndex(user UserInfo) int {
	if user.ColorIndex >= 0 {
		return user.ColorIndex
	}
	if e.clustered {
		h := fnv.New32a()
		_, _ = h.Write([]byte(user.ID))
		return int(h.Sum32() % UserColorCount)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if idx, ok := e.userColors[user.ID]; ok {
		return idx
	}
	idx := e.nextColor % UserColorCount
	e.userColors[user.ID] = idx
	e.nextColor++
	return idx
}

// Shutdown implements the service-destroy hook: marks the engine
// inactive, removes every open registration (deactivating their
// connections), waits briefly for any in-flight work, then closes the
// backend.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	conns := make([]*connection.TopicConnection, 0, len(e.registrations))
	for c := range e.registrations {
		conns = append(conns, c)
	}
	e.registrations = make(map[*connection.TopicConnection]struct{})
	topics := make([]*topic.Topic, 0, len(e.topics))
	for _, t := range e.topics {
		topics = append(topics, t)
	}
	e.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	time.Sleep(1 * time.Second)

	for _, t := range topics {
		t.Close()
	}
	if err := e.be.Close(); err != nil {
		e.logger.Error("failed to close backend", logpkg.Err(err))
	}
}

// Active reports whether the engine currently accepts new connections.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Backend exposes the engine's backend, for transports that need node
// identity or health information.
func (e *Engine) Backend() backend.Backend { return e.be }
