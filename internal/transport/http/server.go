package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"quizdown-service/internal/app"
	"quizdown-service/internal/metrics"
)

// maxDocumentBytes bounds uploaded quiz documents.
const maxDocumentBytes = 4 << 20

// Server exposes the quiz use cases over REST and websocket.
type Server struct {
	service *app.QuizService
	logger  *zap.Logger
	metrics *metrics.Metrics
	ws      *WSHandler
	router  *chi.Mux
}

func NewServer(service *app.QuizService, logger *zap.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: service,
		logger:  logger,
		metrics: m,
	}
	s.ws = NewWSHandler(service, logger)
	s.setupRouter()
	return s
}

// Router returns the configured router.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	// Websocket submits stream per-question results and must not be cut by
	// the request timeout below.
	r.Get("/ws/sessions/{id}", s.ws.ServeWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Minute))

		r.Route("/quizzes", func(r chi.Router) {
			r.Get("/", s.handleListQuizzes)
			r.Post("/", s.handleUploadQuiz)
			r.Post("/create", s.handleCreateQuiz)
			r.Delete("/", s.handleDeleteQuizzes)

			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", s.handleGetQuiz)
				r.Get("/export", s.handleExportQuiz)
				r.Post("/generate", s.handleGenerateQuestions)
				r.Get("/sessions", s.handleListSessions)
				r.Post("/sessions", s.handleStartSession)
				r.Get("/sessions/latest", s.handleLatestSession)
			})
		})

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/submit", s.handleSubmit)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
