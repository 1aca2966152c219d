package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"dmcore/internal/config"
	"dmcore/internal/domain"
	"dmcore/internal/ratelimit"
	"dmcore/internal/security"
	"dmcore/internal/service"

	_ "dmcore/docs"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Deps are the collaborators the HTTP surface is built on.
type Deps struct {
	Tokens    *security.TokenService
	Gateway   *service.Gateway
	Directory *service.Directory
	Profiles  *service.Profiles
	Limiter   *ratelimit.Pool
	Logger    *slog.Logger

	// Metrics serves /metrics when set.
	Metrics http.Handler
	// WS serves /ws when set.
	WS http.Handler
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(cfg *config.Config, d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "dmcore API",
			"version": "1.0.0",
			"docs":    "/docs/index.html",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	// Swagger documentation
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(AuthMiddleware(d.Tokens))

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", handleListConversations(d.Directory))
			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", handleGetConversation(d.Directory))
				r.Post("/read", handleMarkConversationRead(d.Gateway))
				r.Post("/hide", handleHideConversation(d.Gateway))
				r.Post("/typing", handleSetTyping(d.Gateway))
				r.Get("/messages", handleListMessages(d.Directory))
				r.With(RateLimit(d.Limiter)).Post("/messages", handleSendToConversation(d.Gateway))
				r.Post("/messages/{messageID}/reactions", handleReact(d.Gateway))
				r.Delete("/messages/{messageID}", handleDeleteMessage(d.Gateway))
			})
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", handleGetUser(d.Profiles))
			r.With(RateLimit(d.Limiter)).Post("/messages", handleSendToUser(d.Gateway))
		})
	})

	// WebSocket endpoint; upgrades are long-lived so it sits outside the
	// /api timeout.
	if d.WS != nil {
		r.Get("/ws", d.WS.ServeHTTP)
	}

	return r
}

// requestLogger is chi's request logging rebuilt on slog.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeError maps err onto its status. Internal failures are logged and
// their text is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Default().Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      domain.Code(err),
		Retryable: domain.Retryable(err),
	})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body")
	}
	return nil
}
