package connection

import (
	"fmt"
	"sync"

	"github.com/rzbill/topicd/internal/future"
)

// ActivationHandler is called with a non-nil dispatcher on activation and
// with nil on deactivation (§4.5). It must not block.
type ActivationHandler func(d future.Dispatcher)

// Registration cancels whatever it was returned from. Remove is
// idempotent.
type Registration interface {
	Remove()
}

type funcRegistration func()

func (f funcRegistration) Remove() { f() }

// ConnectionContext is the activation/dispatch contract a TopicConnection
// is bound to. Init may only be called once per context instance;
// re-registering an activation handler on an already-initialized context
// is a programmer error.
type ConnectionContext interface {
	Init(handler ActivationHandler) Registration
}

// SystemConnectionContext activates immediately on Init and stays active
// until its registration is removed (the owning service is destroyed).
// Each Init call gets its own independent dispatcher, so several system
// contexts opened from the same process are serialized independently of
// one another (§4.5).
type SystemConnectionContext struct {
	mu          sync.Mutex
	initialized bool
}

// NewSystemConnectionContext constructs a context that activates
// synchronously and deactivates only when its registration is removed.
func NewSystemConnectionContext() *SystemConnectionContext {
	return &SystemConnectionContext{}
}

// Init implements ConnectionContext.
func (c *SystemConnectionContext) Init(handler ActivationHandler) Registration {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		panic("connection: SystemConnectionContext.Init called more than once")
	}
	c.initialized = true
	c.mu.Unlock()

	d := newSerialDispatcher()
	handler(d)

	var removeOnce sync.Once
	return funcRegistration(func() {
		removeOnce.Do(func() {
			handler(nil)
			d.stop()
		})
	})
}

// Attachable is a minimal attach/detach source a ComponentConnectionContext
// can watch, modeled after any UI-component's attach lifecycle.
type Attachable interface {
	// IsAttached reports whether the component is currently attached to a
	// live UI.
	IsAttached() bool
	// OnAttach/OnDetach register a listener invoked when the component
	// transitions; the returned Registration cancels the listener.
	OnAttach(func()) Registration
	OnDetach(func()) Registration
}

// UIAccess is the access-queue abstraction a real UI framework's event
// loop satisfies: actions submitted via Access run serialized on that
// UI's own thread.
type UIAccess interface {
	Access(action func())
}

// ComponentConnectionContext is active only while at least one of its
// components is attached to a live UI; dispatch goes through the owning
// UI's access queue (§4.5).
type ComponentConnectionContext struct {
	ui UIAccess

	mu          sync.Mutex
	initialized bool
	activated   bool
	handler     ActivationHandler
	regs        []Registration
	components  []Attachable
	gen         uint64
}

// NewComponentConnectionContext constructs a context bound to ui, active
// while any of components is attached.
func NewComponentConnectionContext(ui UIAccess, components ...Attachable) *ComponentConnectionContext {
	c := &ComponentConnectionContext{ui: ui}
	for _, comp := range components {
		c.watch(comp)
	}
	return c
}

// AddComponent starts watching an additional component's attach/detach
// lifecycle; useful when components are added to a session after the
// context is constructed.
func (c *ComponentConnectionContext) AddComponent(comp Attachable) {
	c.watch(comp)
}

func (c *ComponentConnectionContext) watch(comp Attachable) {
	c.components = append(c.components, comp)
	c.regs = append(c.regs,
		comp.OnAttach(func() { c.onTransition(true) }),
		comp.OnDetach(func() { c.onTransition(false) }),
	)
}

// Init implements ConnectionContext.
func (c *ComponentConnectionContext) Init(handler ActivationHandler) Registration {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		panic("connection: ComponentConnectionContext.Init called more than once")
	}
	c.initialized = true
	c.handler = handler
	c.mu.Unlock()

	// Evaluate initial attachment state against whatever components were
	// registered before Init.
	if c.hasAttachedComponent() {
		c.onTransition(true)
	}

	return funcRegistration(func() {
		c.mu.Lock()
		for _, r := range c.regs {
			r.Remove()
		}
		wasActive := c.activated
		c.activated = false
		h := c.handler
		c.mu.Unlock()
		if wasActive && h != nil {
			h(nil)
		}
	})
}

func (c *ComponentConnectionContext) hasAttachedComponent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, comp := range c.components {
		if comp.IsAttached() {
			return true
		}
	}
	return false
}

// onTransition runs the activate/deactivate dispatch described in §4.5:
// activation and deactivation are themselves dispatched (through the UI's
// access queue) so that a queued deactivation racing a new activation is
// tolerated via a generation flag rather than by rescinding the dispatch.
func (c *ComponentConnectionContext) onTransition(attached bool) {
	c.mu.Lock()
	c.gen++
	myGen := c.gen
	if attached {
		if c.activated {
			c.mu.Unlock()
			return
		}
	} else if !c.activated {
		c.mu.Unlock()
		return
	}
	handler := c.handler
	ui := c.ui
	c.mu.Unlock()

	dispatch := func(action func()) {
		if ui != nil {
			ui.Access(action)
		} else {
			action()
		}
	}

	if attached {
		dispatch(func() {
			c.mu.Lock()
			if c.gen != myGen || c.activated {
				c.mu.Unlock()
				return
			}
			c.activated = true
			c.mu.Unlock()
			d := newSerialDispatcher()
			handler(d)
			c.mu.Lock()
			c.regs = append(c.regs, funcRegistration(func() { d.stop() }))
			c.mu.Unlock()
		})
		return
	}

	dispatch(func() {
		c.mu.Lock()
		if c.gen != myGen || !c.activated {
			c.mu.Unlock()
			return
		}
		c.activated = false
		c.mu.Unlock()
		handler(nil)
	})
}

var _ ConnectionContext = (*SystemConnectionContext)(nil)
var _ ConnectionContext = (*ComponentConnectionContext)(nil)

func mustNonNil(v interface{}, what string) {
	if v == nil {
		panic(fmt.Sprintf("connection: %s must not be nil", what))
	}
}
