// Package server exposes the timeline over a small JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/tgienger/cronocelda/internal/auth"
	"github.com/tgienger/cronocelda/internal/models"
	"github.com/tgienger/cronocelda/internal/timeline"
)

// Summarizer writes a narrative for a set of milestones
type Summarizer interface {
	Summarize(ctx context.Context, ms []models.Milestone) (string, error)
}

// Authorizer turns a bearer token into an allow-listed user
type Authorizer interface {
	Authorize(ctx context.Context, token string) (models.User, error)
}

// Options configures a Server
type Options struct {
	Syncer         *timeline.Syncer
	Summarizer     Summarizer // may be nil
	Auth           Authorizer // nil rejects every write
	AllowedOrigins []string
	Log            zerolog.Logger
}

// Server routes API requests to the timeline
type Server struct {
	syncer     *timeline.Syncer
	tl         *timeline.Timeline
	summarizer Summarizer
	auth       Authorizer
	origins    []string
	router     *mux.Router
	now        func() time.Time
	log        zerolog.Logger
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userKey
)

// New creates a server and registers its routes
func New(opts Options) *Server {
	s := &Server{
		syncer:     opts.Syncer,
		tl:         opts.Syncer.Timeline(),
		summarizer: opts.Summarizer,
		auth:       opts.Auth,
		origins:    opts.AllowedOrigins,
		router:     mux.NewRouter(),
		now:        time.Now,
		log:        opts.Log.With().Str("component", "http").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.UseEncodedPath()
	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/milestones", s.handleListMilestones).Methods(http.MethodGet)
	api.HandleFunc("/milestones/{id}", s.handleGetMilestone).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)

	write := api.NewRoute().Subrouter()
	write.Use(s.requireWriter)
	write.HandleFunc("/cards/{id}/select", s.handleSelectCard).Methods(http.MethodPost)
	write.HandleFunc("/milestones", s.handleUpload).Methods(http.MethodPost)
	write.HandleFunc("/milestones/{id}", s.handleUpdateMilestone).Methods(http.MethodPatch)
	write.HandleFunc("/milestones/{id}/tags", s.handleAddTag).Methods(http.MethodPost)
	write.HandleFunc("/milestones/{id}/tags/{tag}", s.handleRemoveTag).Methods(http.MethodDelete)
	write.HandleFunc("/categories", s.handleAddCategory).Methods(http.MethodPost)
	write.HandleFunc("/categories/{id}", s.handleUpdateCategory).Methods(http.MethodPatch)
}

// Handler returns the router wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(s.router)
}

// Run serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.syncer.Dispatcher().Wait()
	return nil
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		requestID := uuid.NewString()
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))

		next.ServeHTTP(rw, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// requireWriter admits only requests carrying a bearer token of an
// allow-listed user
func (s *Server) requireWriter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeErrorResponse(w, http.StatusForbidden, "editing is disabled")
			return
		}
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeErrorResponse(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		user, err := s.auth.Authorize(r.Context(), token)
		switch {
		case errors.Is(err, auth.ErrNotAllowed):
			s.log.Warn().Str("email", user.Email).Msg("write refused")
			writeErrorResponse(w, http.StatusForbidden, err.Error())
			return
		case err != nil:
			writeErrorResponse(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// UserFrom returns the authorized user stored on the request context
func UserFrom(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey).(models.User)
	return u, ok
}
