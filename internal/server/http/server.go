// Package httpserver exposes Engine's public surface over HTTP: opening a
// system connection per topic, map/list CRUD, and SSE subscriptions, for
// clients that are not embedded in the same process.
package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/rzbill/topicd/internal/connection"
	"github.com/rzbill/topicd/internal/engine"
	"github.com/rzbill/topicd/internal/runtime"
	logpkg "github.com/rzbill/topicd/pkg/log"
)

// Server hosts the REST + SSE surface over one Engine. Each topic a
// request touches gets one long-lived system connection, opened lazily
// and kept for the life of the process so map/list handles stay cheap.
type Server struct {
	rt  *runtime.Runtime
	eng *engine.Engine
	log logpkg.Logger

	srv *http.Server
	lis net.Listener

	mu    sync.Mutex
	conns map[string]*connection.TopicConnection
}

// New builds a Server bound to rt's Engine and registers its routes on a
// gorilla/mux router.
func New(rt *runtime.Runtime) *Server {
	s := &Server{
		rt:    rt,
		eng:   rt.Engine(),
		log:   logpkg.NewLogger().WithComponent("http"),
		conns: make(map[string]*connection.TopicConnection),
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/healthz", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/v1/topics/{topic}/maps/{name}", s.handleMapList).Methods(http.MethodGet)
	r.HandleFunc("/v1/topics/{topic}/maps/{name}/subscribe", s.handleMapSubscribe).Methods(http.MethodGet)
	r.HandleFunc("/v1/topics/{topic}/maps/{name}/{key}", s.handleMapGet).Methods(http.MethodGet)
	r.HandleFunc("/v1/topics/{topic}/maps/{name}/{key}", s.handleMapPut).Methods(http.MethodPut)
	r.HandleFunc("/v1/topics/{topic}/maps/{name}/{key}", s.handleMapDelete).Methods(http.MethodDelete)

	r.HandleFunc("/v1/topics/{topic}/lists/{name}", s.handleListItems).Methods(http.MethodGet)
	r.HandleFunc("/v1/topics/{topic}/lists/{name}", s.handleListInsert).Methods(http.MethodPost)
	r.HandleFunc("/v1/topics/{topic}/lists/{name}/subscribe", s.handleListSubscribe).Methods(http.MethodGet)
	r.HandleFunc("/v1/topics/{topic}/lists/{name}/{key}", s.handleListSet).Methods(http.MethodPut)
	r.HandleFunc("/v1/topics/{topic}/lists/{name}/{key}", s.handleListDelete).Methods(http.MethodDelete)
	r.HandleFunc("/v1/topics/{topic}/lists/{name}/{key}/move", s.handleListMove).Methods(http.MethodPost)

	s.srv = &http.Server{Handler: cors(r)}
	return s
}

// ListenAndServe binds addr and serves until ctx is cancelled, then shuts
// down gracefully with a bounded timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases the listener without waiting for in-flight requests;
// callers that need a graceful drain should cancel the ListenAndServe
// context instead.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// systemConnection returns the topic's shared system connection, opening
// one on first use. System connections activate synchronously and never
// deactivate on their own (§4.5), which is what a stateless REST handler
// needs from a connection it doesn't otherwise hold onto.
func (s *Server) systemConnection(topicID string) (*connection.TopicConnection, error) {
	s.mu.Lock()
	if c, ok := s.conns[topicID]; ok {
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	conn, _, err := s.eng.OpenTopicConnection(
		connection.NewSystemConnectionContext(),
		topicID,
		engine.UserInfo{ID: "http", ColorIndex: -1},
		nil,
	)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conns[topicID]; ok {
		conn.Close()
		return c, nil
	}
	s.conns[topicID] = conn
	return conn, nil
}
