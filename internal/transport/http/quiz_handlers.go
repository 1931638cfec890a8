package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quizdown-service/internal/domain"
)

type createQuizRequest struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

type generateRequest struct {
	Count int `json:"count"`
}

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.service.ListQuizzes(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summaries)
}

// handleUploadQuiz imports a multipart "file" upload.
func (s *Server) handleUploadQuiz(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "missing file upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "failed to read upload")
		return
	}
	s.importDocument(w, r, string(data), header.Filename)
}

func (s *Server) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}
	s.importDocument(w, r, req.Content, req.Source)
}

func (s *Server) importDocument(w http.ResponseWriter, r *http.Request, content, source string) {
	quizzes, err := s.service.ImportDocument(r.Context(), content, source)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	summaries := make([]domain.QuizSummary, len(quizzes))
	for i, q := range quizzes {
		summaries[i] = q.Summary()
	}
	s.respondJSON(w, http.StatusCreated, summaries)
}

func (s *Server) handleDeleteQuizzes(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.DeleteQuizzes(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.service.GetQuiz(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newQuizView(quiz))
}

// handleExportQuiz returns the quiz as markup.
func (s *Server) handleExportQuiz(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	data, err := s.service.ExportQuiz(r.Context(), slug)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+slug+`.md"`)
	_, _ = io.WriteString(w, data)
}

func (s *Server) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	req := generateRequest{Count: 5}
	// An empty body, chunked or not, keeps the defaults.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Count <= 0 || req.Count > 20 {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "count must be between 1 and 20")
		return
	}

	questions, err := s.service.GenerateQuestions(r.Context(), chi.URLParam(r, "slug"), req.Count)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, newQuestionViews(questions))
}
