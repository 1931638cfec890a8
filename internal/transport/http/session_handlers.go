package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// submitRequest maps question index to the selected choice texts.
type submitRequest struct {
	Answers map[int][]string `json:"answers"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.StartSession(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, newSessionView(session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	views := make([]sessionView, len(sessions))
	for i, session := range sessions {
		views[i] = newSessionView(session)
	}
	s.respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleLatestSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.LatestSession(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newSessionView(session))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newSessionView(session))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	session, err := s.service.Submit(r.Context(), chi.URLParam(r, "id"), req.Answers)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newSessionView(session))
}
