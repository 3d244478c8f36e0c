// Package server provides HTTP server construction for hydra-login.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexjbarnes/hydra-login/internal/auth"
	"github.com/alexjbarnes/hydra-login/internal/flow"
	"github.com/alexjbarnes/hydra-login/internal/registry"
)

// maxRequestBody bounds form and JSON request bodies.
const maxRequestBody = 64 << 10

// ReadinessChecker reports whether the authorization server is reachable.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Flow     *flow.Flow
	Registry *registry.Registry
	Store    *auth.Store
	Health   ReadinessChecker
	Logger   *slog.Logger

	// SecureCookies sets the Secure flag on the session cookie. It is
	// only false in development.
	SecureCookies bool
}

// NewMux builds the HTTP handler with the challenge endpoints, the admin
// client API behind API key middleware, and the readiness probe. Every
// request passes through the access log.
func NewMux(cfg MuxConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limiter := auth.NewLoginRateLimiter()
	ch := &challengeHandlers{
		flow:    cfg.Flow,
		store:   cfg.Store,
		limiter: limiter,
		logger:  logger,
		secure:  cfg.SecureCookies,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", ch.loginGET)
	mux.HandleFunc("POST /login", ch.loginPOST)
	mux.HandleFunc("GET /login/reject", ch.loginReject)
	mux.HandleFunc("GET /consent", ch.consentGET)
	mux.HandleFunc("POST /consent", ch.consentPOST)
	mux.HandleFunc("GET /consent/reject", ch.consentReject)
	mux.HandleFunc("GET /logout", ch.logoutGET)
	mux.HandleFunc("POST /logout", ch.logoutPOST)
	mux.HandleFunc("GET /logout/reject", ch.logoutReject)

	mux.HandleFunc("GET /healthz", HandleHealth(cfg.Health))

	requireKey := auth.RequireAPIKey(cfg.Store, logger)
	admin := func(h http.HandlerFunc) http.Handler { return requireKey(h) }

	mux.Handle("GET /clients", admin(HandleListClients(cfg.Registry)))
	mux.Handle("POST /clients", admin(HandleCreateClient(cfg.Registry, logger)))
	mux.Handle("POST /clients/refresh", admin(HandleRefreshClients(cfg.Registry, logger)))
	mux.Handle("POST /clients/sync", admin(HandleSyncClients(cfg.Registry, logger)))
	mux.Handle("POST /clients/delete", admin(HandleDeleteClients(cfg.Registry, logger)))
	mux.Handle("GET /clients/{id}", admin(HandleGetClient(cfg.Registry)))
	mux.Handle("PUT /clients/{id}", admin(HandleUpdateClient(cfg.Registry, logger)))
	mux.Handle("DELETE /clients/{id}", admin(HandleDeleteClient(cfg.Registry, logger)))

	return accessLog(logger, mux)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// accessLog logs one line per request. Query strings are left out so
// challenge tokens do not end up in logs.
func accessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", auth.RemoteIP(r)),
		)
	})
}
