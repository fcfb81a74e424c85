package connection

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rzbill/topicd/internal/backend"
	"github.com/rzbill/topicd/internal/change"
	"github.com/rzbill/topicd/internal/topic"
)

func openTestTopic(t *testing.T) (*topic.Topic, backend.Backend) {
	t.Helper()
	be, err := backend.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	if err := be.Announce(context.Background()); err != nil {
		t.Fatalf("announce: %v", err)
	}
	tp, err := topic.Open(context.Background(), "chat", be, nil)
	if err != nil {
		t.Fatalf("open topic: %v", err)
	}
	t.Cleanup(func() {
		tp.Close()
		be.Close()
	})
	return tp, be
}

func TestSystemConnectionActivatesOnOpen(t *testing.T) {
	tp, be := openTestTopic(t)

	var gotActive bool
	activations := make(chan bool, 4)
	c := Open(tp, be, NewSystemConnectionContext(), nil, func(active bool) {
		activations <- active
	})
	defer c.Close()

	select {
	case gotActive = <-activations:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for activation callback")
	}
	if !gotActive {
		t.Fatalf("expected activation callback with true")
	}
	if !c.IsActive() {
		t.Fatalf("expected connection to report active")
	}
}

func TestSystemConnectionDeactivatesOnClose(t *testing.T) {
	tp, be := openTestTopic(t)

	activations := make(chan bool, 4)
	c := Open(tp, be, NewSystemConnectionContext(), nil, func(active bool) {
		activations <- active
	})
	<-activations // activation

	c.Close()

	select {
	case active := <-activations:
		if active {
			t.Fatalf("expected deactivation callback with false")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for deactivation callback")
	}
	if c.IsActive() {
		t.Fatalf("expected connection to report inactive after close")
	}
}

func TestConnectionScopedMapEntryCleanedUpOnClose(t *testing.T) {
	tp, be := openTestTopic(t)

	c := Open(tp, be, NewSystemConnectionContext(), nil, nil)
	m := c.GetNamedMap("presence")

	_, f := m.Put("alice", json.RawMessage(`{"online":true}`), change.ScopeConnection)
	if _, err := f.Wait(); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := m.Get("alice"); !ok {
		t.Fatalf("expected entry to exist right after put")
	}

	c.Close()
	// Deactivation runs its cleanup submission asynchronously through the
	// topic's apply loop; give it a moment to land.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := m.Get("alice"); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected connection-scoped entry to be removed after close")
}
