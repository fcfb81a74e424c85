package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rzbill/topicd/internal/change"
)

func startSSE(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func writeSSE(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	w.Write([]byte("data: "))
	w.Write(b)
	w.Write([]byte("\n\n"))
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// handleMapSubscribe streams every current entry and then every future
// change to a named map as a server-sent-events feed, until the client
// disconnects.
func (s *Server) handleMapSubscribe(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conn, err := s.systemConnection(vars["topic"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	startSSE(w)
	done := r.Context().Done()
	reg := conn.GetNamedMap(vars["name"]).Subscribe(func(mc change.MapChange) {
		writeSSE(w, map[string]any{"key": mc.Key, "value": mc.NewValue})
	})
	defer reg.Remove()
	<-done
}

// handleListSubscribe is handleMapSubscribe's list counterpart.
func (s *Server) handleListSubscribe(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conn, err := s.systemConnection(vars["topic"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	startSSE(w)
	done := r.Context().Done()
	reg := conn.GetNamedList(vars["name"]).Subscribe(func(lc change.ListChange) {
		writeSSE(w, map[string]any{"key": lc.Key, "value": lc.NewValue})
	})
	defer reg.Remove()
	<-done
}
