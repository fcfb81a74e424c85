package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	configpkg "github.com/rzbill/topicd/internal/config"
	"github.com/rzbill/topicd/internal/runtime"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := configpkg.Default()
	cfg.DataDirectory = dir
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return New(rt)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestMapPutAndGet(t *testing.T) {
	s := newTestServer(t)

	putReq := httptest.NewRequest(http.MethodPut, "/v1/topics/chat/maps/users/alice", strings.NewReader(`{"value":{"name":"Alice"}}`))
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, putReq)
	if w.Code != http.StatusNoContent {
		t.Fatalf("put status: %d body=%s", w.Code, w.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/v1/topics/chat/maps/users/alice", nil)
	w = httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, getReq)
	if w.Code != http.StatusOK {
		t.Fatalf("get status: %d", w.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["name"] != "Alice" {
		t.Fatalf("got %v", got)
	}
}

func TestMapDeleteThenNotFound(t *testing.T) {
	s := newTestServer(t)

	put := httptest.NewRequest(http.MethodPut, "/v1/topics/chat/maps/users/bob", strings.NewReader(`{"value":"hi"}`))
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, put)

	del := httptest.NewRequest(http.MethodDelete, "/v1/topics/chat/maps/users/bob", nil)
	w = httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, del)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status: %d", w.Code)
	}

	get := httptest.NewRequest(http.MethodGet, "/v1/topics/chat/maps/users/bob", nil)
	w = httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, get)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListInsertAndItems(t *testing.T) {
	s := newTestServer(t)

	ins := httptest.NewRequest(http.MethodPost, "/v1/topics/board/lists/cards", strings.NewReader(`{"value":"first"}`))
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, ins)
	if w.Code != http.StatusCreated {
		t.Fatalf("insert status: %d body=%s", w.Code, w.Body.String())
	}

	list := httptest.NewRequest(http.MethodGet, "/v1/topics/board/lists/cards", nil)
	w = httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, list)
	if w.Code != http.StatusOK {
		t.Fatalf("list status: %d", w.Code)
	}
	var items []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}
