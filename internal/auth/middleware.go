package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type contextKey int

const (
	ctxUserID contextKey = iota
	ctxRemoteIP
)

// SessionCookieName names the local login session cookie.
const SessionCookieName = "hydra_login_session"

const (
	wwwAuthNoToken = `Bearer realm="hydra-login"`
	wwwAuthInvalid = `Bearer realm="hydra-login", error="invalid_token"`
)

// RequestUserID returns the authenticated admin identity from the context, or "".
func RequestUserID(ctx context.Context) string {
	v, _ := ctx.Value(ctxUserID).(string)
	return v
}

// RequestRemoteIP returns the client IP from the context, or "".
func RequestRemoteIP(ctx context.Context) string {
	v, _ := ctx.Value(ctxRemoteIP).(string)
	return v
}

// RequireAPIKey returns HTTP middleware that admits only requests bearing
// a registered admin API key. When no keys are registered every request
// is refused, which keeps the admin API closed by default.
func RequireAPIKey(store *Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := RemoteIP(r)
			authHeader := r.Header.Get("Authorization")

			if !strings.HasPrefix(authHeader, "Bearer ") {
				logger.Debug("middleware: no bearer token",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("WWW-Authenticate", wwwAuthNoToken)
				writeJSONError(w, http.StatusUnauthorized, "authentication required")

				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			ak := store.ValidateAPIKey(token)
			if !strings.HasPrefix(token, APIKeyPrefix) || ak == nil {
				logger.Warn("middleware: invalid API key",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("WWW-Authenticate", wwwAuthInvalid)
				writeJSONError(w, http.StatusUnauthorized, "invalid API key")

				return
			}

			logger.Debug("middleware: authenticated via API key",
				slog.String("user_id", ak.UserID),
				slog.String("ip", ip),
			)

			ctx := r.Context()
			ctx = context.WithValue(ctx, ctxUserID, ak.UserID)
			ctx = context.WithValue(ctx, ctxRemoteIP, ip)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromRequest returns the live session named by the request's
// session cookie, or nil.
func SessionFromRequest(store *Store, r *http.Request) *Session {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}

	return store.GetSession(c.Value)
}

// SetSessionCookie writes the cookie for sess. secure is false only in
// development where the front-end may run on plain http.
func SetSessionCookie(w http.ResponseWriter, sess *Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie in the browser.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      false,
		"message": message,
	})
}
