package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rzbill/topicd/internal/backend"
	"github.com/rzbill/topicd/internal/change"
	"github.com/rzbill/topicd/internal/connection"
	"github.com/rzbill/topicd/internal/topic"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	be, err := backend.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	if err := be.Announce(context.Background()); err != nil {
		t.Fatalf("announce: %v", err)
	}
	e := New(be, false, nil, topic.Options{})
	t.Cleanup(e.Shutdown)
	return e
}

func TestOpenTopicConnectionReturnsConnection(t *testing.T) {
	e := openTestEngine(t)

	conn, reg, err := e.OpenTopicConnection(connection.NewSystemConnectionContext(), "chat", UserInfo{ID: "alice", ColorIndex: -1}, nil)
	if err != nil {
		t.Fatalf("open connection: %v", err)
	}
	defer reg.Remove()

	if conn == nil {
		t.Fatalf("expected non-nil connection")
	}
	if !conn.IsActive() {
		t.Fatalf("expected connection to be active immediately (system context)")
	}

	m := conn.GetNamedMap("users")
	id, f := m.Put("alice", json.RawMessage(`{"name":"Alice"}`), change.ScopeTopic)
	if id.String() == "" {
		t.Fatalf("expected non-empty change id")
	}
	if _, err := f.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	got, ok := m.Get("alice")
	if !ok {
		t.Fatalf("expected alice to be present after put")
	}
	var v struct{ Name string }
	if err := json.Unmarshal(got, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Name != "Alice" {
		t.Fatalf("expected Alice, got %q", v.Name)
	}
}

func TestOpenTopicConnectionRejectsAfterShutdown(t *testing.T) {
	e := openTestEngine(t)
	e.Shutdown()

	_, _, err := e.OpenTopicConnection(connection.NewSystemConnectionContext(), "chat", UserInfo{ID: "bob"}, nil)
	if err == nil {
		t.Fatalf("expected error opening a connection on a shut-down engine")
	}
}

func TestGetUserColorIndexIsStableAndBounded(t *testing.T) {
	e := openTestEngine(t)

	first := e.GetUserColorIndex(UserInfo{ID: "carol", ColorIndex: -1})
	second := e.GetUserColorIndex(UserInfo{ID: "carol", ColorIndex: -1})
	if first != second {
		t.Fatalf("expected stable color assignment, got %d then %d", first, second)
	}
	if first < 0 || first >= UserColorCount {
		t.Fatalf("color index %d out of range", first)
	}

	explicit := e.GetUserColorIndex(UserInfo{ID: "dave", ColorIndex: 3})
	if explicit != 3 {
		t.Fatalf("expected explicit color preference honored, got %d", explicit)
	}
}

func TestGetUserColorIndexClusteredIsDeterministic(t *testing.T) {
	be, err := backend.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	e := New(be, true, nil, topic.Options{})
	t.Cleanup(e.Shutdown)

	a := e.GetUserColorIndex(UserInfo{ID: "erin", ColorIndex: -1})
	b := e.GetUserColorIndex(UserInfo{ID: "erin", ColorIndex: -1})
	if a != b {
		t.Fatalf("expected hash-derived color to be stable across calls, got %d then %d", a, b)
	}
}
