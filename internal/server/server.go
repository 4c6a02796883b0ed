package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/relayforge/codex-relay/internal/auth"
)

const serviceName = "codex-relay"

// corsAllowedHeaders is the explicit allow-list for preflight requests: the
// proxy-secret header names plus the Codex transport headers.
const corsAllowedHeaders = "Authorization, Content-Type, x-api-key, api-key, " +
	"originator, version, session_id, x-codex-turn-state, x-codex-turn-metadata, x-codex-beta-features"

// Options carries the per-deployment knobs the handlers need.
type Options struct {
	ProxySecret string
	UpstreamURL string
}

type Server struct {
	tokens     *auth.Manager
	httpClient HTTPClient
	router     chi.Router
	logger     zerolog.Logger
	opts       Options
}

func New(logger zerolog.Logger, tokens *auth.Manager, opts Options) *Server {
	s := &Server{
		tokens:     tokens,
		httpClient: NewHTTPClient(),
		router:     chi.NewRouter(),
		logger:     logger,
		opts:       opts,
	}

	s.setupRoutes()
	return s
}

// SetHTTPClient replaces the upstream transport; tests use this.
func (s *Server) SetHTTPClient(client HTTPClient) {
	s.httpClient = client
}

func (s *Server) setupRoutes() {
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.recoverMiddleware)
	s.router.Use(s.loggingMiddleware)

	for _, prefix := range []string{"", "/openai"} {
		s.router.Get(prefix+"/v1/models", s.modelsHandler)
		s.router.Post(prefix+"/v1/responses", s.responsesHandler)
	}
	s.router.Get("/", s.healthHandler)
	s.router.Get("/health", s.healthHandler)
	s.router.NotFound(s.notFoundHandler)
	s.router.MethodNotAllowed(s.notFoundHandler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// corsMiddleware stamps every response and short-circuits preflights.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware is the last-resort handler: nothing may crash the
// process or leak a stack trace to the caller.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("uri", r.RequestURI).
					Msg("Recovered from panic in request handler")
				writeJSONError(w, http.StatusInternalServerError, "internal_error", fmt.Sprintf("%v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("Incoming request")
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := map[string]string{
		"status":      "ok",
		"service":     serviceName,
		"tokenStatus": s.tokens.Status(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode health response")
	}
}

func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	response := modelsResponse{
		Object: "list",
		Data:   supportedModels(),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode models response")
	}
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn().
		Str("method", r.Method).
		Str("uri", r.RequestURI).
		Str("remote_addr", r.RemoteAddr).
		Msg("Unhandled route")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Not found"))
}

func writeJSONError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"type":    errType,
			"message": message,
		},
	})
}
