package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rzbill/topicd/internal/change"
)

func scopeFromQuery(r *http.Request) change.Scope {
	if r.URL.Query().Get("scope") == "connection" {
		return change.ScopeConnection
	}
	return change.ScopeTopic
}

func (s *Server) handleMapGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conn, err := s.systemConnection(vars["topic"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	v, ok := conn.GetNamedMap(vars["name"]).Get(vars["key"])
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, v)
}

func (s *Server) handleMapList(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conn, err := s.systemConnection(vars["topic"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, conn.GetNamedMap(vars["name"]).GetKeys())
}

type putReq struct {
	Value      json.RawMessage `json:"value"`
	ExpectedID *uuid.UUID      `json:"expectedId,omitempty"`
}

func (s *Server) handleMapPut(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conn, err := s.systemConnection(vars["topic"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var req putReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	m := conn.GetNamedMap(vars["name"])
	var res change.Result
	var werr error
	if req.ExpectedID != nil {
		_, f := m.PutIfMatch(vars["key"], req.Value, *req.ExpectedID, scopeFromQuery(r))
		res, werr = f.Wait()
	} else {
		_, f := m.Put(vars["key"], req.Value, scopeFromQuery(r))
		res, werr = f.Wait()
	}
	if werr != nil {
		writeError(w, http.StatusInternalServerError, werr.Error())
		return
	}
	if res == change.Rejected {
		w.WriteHeader(http.StatusConflict)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleMapDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conn, err := s.systemConnection(vars["topic"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_, f := conn.GetNamedMap(vars["name"]).Delete(vars["key"])
	if _, err := f.Wait(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeNoContent(w)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conn, err := s.systemConnection(vars["topic"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	l := conn.GetNamedList(vars["name"])
	keys := l.GetKeys()
	items := l.GetItems()
	type entry struct {
		Key   uuid.UUID       `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	out := make([]entry, len(keys))
	for i := range keys {
		out[i] = entry{Key: keys[i], Value: items[i]}
	}
	writeJSON(w, out)
}

type insertReq struct {
	Value  json.RawMessage `json:"value"`
	Ref    *uuid.UUID      `json:"ref,omitempty"`
	Next   *uuid.UUID      `json:"next,omitempty"`
	Before bool            `json:"before,omitempty"`
	Scope  string          `json:"scope,omitempty"`
}

func (s *Server) handleListInsert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conn, err := s.systemConnection(vars["topic"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var req insertReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	scope := change.ScopeTopic
	if req.Scope == "connection" {
		scope = change.ScopeConnection
	}
	l := conn.GetNamedList(vars["name"])
	var id uuid.UUID
	var f interface{ Wait() (change.Result, error) }
	switch {
	case req.Ref != nil && req.Next != nil:
		id, f = l.InsertBetween(*req.Ref, *req.Next, req.Value, scope)
	case req.Ref != nil && req.Before:
		id, f = l.InsertBefore(*req.Ref, req.Value, scope)
	case req.Ref != nil && !req.Before:
		id, f = l.InsertAfter(*req.Ref, req.Value, scope)
	case req.Before:
		id, f = l.InsertFirst(req.Value, scope)
	default:
		id, f = l.InsertLast(req.Value, scope)
	}
	res, werr := f.Wait()
	if werr != nil {
		writeError(w, http.StatusInternalServerError, werr.Error())
		return
	}
	if res == change.Rejected {
		w.WriteHeader(http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]uuid.UUID{"key": id})
}

func (s *Server) handleListSet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conn, err := s.systemConnection(vars["topic"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	key, err := uuid.Parse(vars["key"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}
	var req putReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	f := conn.GetNamedList(vars["name"]).Set(key, req.Value, req.ExpectedID, scopeFromQuery(r))
	res, werr := f.Wait()
	if werr != nil {
		writeError(w, http.StatusInternalServerError, werr.Error())
		return
	}
	if res == change.Rejected {
		w.WriteHeader(http.StatusConflict)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleListDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conn, err := s.systemConnection(vars["topic"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	key, err := uuid.Parse(vars["key"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}
	if _, err := conn.GetNamedList(vars["name"]).Delete(key).Wait(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeNoContent(w)
}

type moveReq struct {
	Ref    uuid.UUID  `json:"ref"`
	Next   *uuid.UUID `json:"next,omitempty"`
	Before bool       `json:"before"`
}

func (s *Server) handleListMove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	conn, err := s.systemConnection(vars["topic"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	key, err := uuid.Parse(vars["key"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}
	var req moveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	l := conn.GetNamedList(vars["name"])
	var f interface{ Wait() (change.Result, error) }
	switch {
	case req.Next != nil:
		f = l.MoveBetween(req.Ref, *req.Next, key)
	case req.Before:
		f = l.MoveBefore(key, req.Ref)
	default:
		f = l.MoveAfter(key, req.Ref)
	}
	res, werr := f.Wait()
	if werr != nil {
		writeError(w, http.StatusInternalServerError, werr.Error())
		return
	}
	if res == change.Rejected {
		w.WriteHeader(http.StatusConflict)
		return
	}
	writeNoContent(w)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
