package api

import (
	"net/http"

	"github.com/flitsinc/skyagent/internal/state"
)

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusInternalServerError, errNotFound("store"))
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 100)
	items, err := s.Store.ListActions(r.Context(), r.URL.Query().Get("run_id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusInternalServerError, errNotFound("store"))
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	items, err := s.Store.ListThreads(r.Context(), parseInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusInternalServerError, errNotFound("store"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		kind := r.URL.Query().Get("kind")
		if kind == "" {
			kind = state.NoteBehavior
		}
		pending := r.URL.Query().Get("pending") == "true"
		items, err := s.Store.ListNotes(r.Context(), kind, pending, parseInt(r.URL.Query().Get("limit"), 100))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(items))
	case http.MethodPost:
		var payload struct {
			Kind string `json:"kind"`
			Body string `json:"body"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if payload.Kind == "" {
			payload.Kind = state.NoteBehavior
		}
		note, err := s.Store.AddNote(r.Context(), payload.Kind, payload.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, note)
	default:
		writeMethodNotAllowed(w)
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
