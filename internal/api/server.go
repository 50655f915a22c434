// Package api exposes the admin HTTP API for editing, previewing and
// publishing booking forms.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"yoyaku/internal/formconfig"
	"yoyaku/internal/publish"
	"yoyaku/internal/store"
)

// MaxConfigBytes limits the size of an uploaded form configuration.
const MaxConfigBytes = 1 << 20

// Forms is the publish pipeline used by the handlers.
type Forms interface {
	Save(ctx context.Context, id string, raw []byte) (*publish.SaveResult, error)
	Config(ctx context.Context, id string) (*formconfig.FormConfig, error)
	Preview(ctx context.Context, id string) ([]byte, error)
	Publish(ctx context.Context, id string, force bool) (*publish.Result, error)
	Slots(ctx context.Context, id, week string) (*publish.SlotsPreview, error)
}

// FormStore lists and loads stored forms.
type FormStore interface {
	GetForm(ctx context.Context, id string) (*store.Form, error)
	ListForms(ctx context.Context) ([]*store.Form, error)
	DeleteForm(ctx context.Context, id string) error
}

// HTTPServer serves the admin API.
type HTTPServer struct {
	forms  Forms
	store  FormStore
	apiKey string
	logger *zerolog.Logger
	server *http.Server
}

func NewHTTPServer(addr, apiKey string, forms Forms, st FormStore, readTimeout, writeTimeout time.Duration, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		forms:  forms,
		store:  st,
		apiKey: apiKey,
		logger: logger,
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      writeTimeout,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api/v1/forms", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/", s.handleListForms)
		r.Post("/", s.handleCreateForm)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetForm)
			r.Put("/", s.handlePutForm)
			r.Delete("/", s.handleDeleteForm)
			r.Get("/config", s.handleNormalizedConfig)
			r.Get("/preview", s.handlePreview)
			r.Post("/publish", s.handlePublish)
			r.Post("/submission-preview", s.handleSubmissionPreview)
			r.Get("/menu.xlsx", s.handleMenuExport)
		})
	})
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("API server started")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *HTTPServer) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("x-api-key")), []byte(s.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(started)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
