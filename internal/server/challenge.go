package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alexjbarnes/hydra-login/internal/auth"
	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
	"github.com/alexjbarnes/hydra-login/internal/flow"
)

const (
	pageTitle = "hydra-login"

	// formChallenge carries the challenge token on POSTed forms. GET
	// requests use Hydra's own query parameter names.
	formChallenge = "challenge"
)

// challengeHandlers serves the login, consent and logout pages.
type challengeHandlers struct {
	flow    *flow.Flow
	store   *auth.Store
	limiter *auth.LoginRateLimiter
	logger  *slog.Logger
	secure  bool
}

// challengeError renders the local error page for a failed resolution.
func (h *challengeHandlers) challengeError(w http.ResponseWriter, kind string, err error) {
	status := apperrors.HTTPStatus(err)
	msg := userMessage(kind, err)

	h.logger.Warn("challenge failed",
		slog.String("kind", kind),
		slog.String("error_kind", apperrors.KindOf(err)),
		slog.String("error", err.Error()),
	)

	renderPage(w, h.logger, status, messagePage, messageData{
		Title:   pageTitle,
		Heading: "Something went wrong",
		Message: msg,
		Error:   true,
	})
}

// userMessage turns err into wording safe to show an end user.
func userMessage(kind string, err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return "The " + kind + " request is missing its challenge. Please start again from the application."
	case apperrors.KindNotFound:
		return "This " + kind + " request is invalid or has expired. Please start again from the application."
	case apperrors.KindUnavailable:
		return "The authorization server is unavailable. Please try again in a moment."
	case apperrors.KindRejected:
		return "The authorization server refused the request."
	default:
		return "The " + kind + " request could not be completed."
	}
}

// finish redirects to the outcome's destination or shows err.
func (h *challengeHandlers) finish(w http.ResponseWriter, r *http.Request, kind string, out flow.Outcome, err error) {
	if err != nil {
		h.challengeError(w, kind, err)
		return
	}

	http.Redirect(w, r, out.RedirectTo, http.StatusFound)
}

// parseForm reads a bounded POST form and checks its CSRF token against
// the challenge it names. It writes the error response itself and
// returns false when the request must stop.
func (h *challengeHandlers) parseForm(w http.ResponseWriter, r *http.Request, kind string) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return "", false
	}

	challenge := r.PostFormValue(formChallenge)
	if challenge == "" {
		h.challengeError(w, kind, missingChallenge(kind))
		return "", false
	}

	// A failed CSRF check may indicate a cross-site attack, so return a
	// plain error rather than completing the challenge either way.
	if !h.store.ConsumeCSRF(r.PostFormValue("csrf_token"), challenge) {
		http.Error(w, "invalid or expired CSRF token", http.StatusForbidden)
		return "", false
	}

	return challenge, true
}

// refuseCrossSite stops a GET reject link followed from another site.
// These routes carry no CSRF token, so they rely on the browser's
// Sec-Fetch-Site header; clients that do not send it are allowed.
func (h *challengeHandlers) refuseCrossSite(w http.ResponseWriter, r *http.Request, kind string) bool {
	switch site := r.Header.Get("Sec-Fetch-Site"); site {
	case "cross-site", "same-site":
		h.logger.Warn("cross-site reject refused",
			slog.String("kind", kind),
			slog.String("sec_fetch_site", site),
		)
		http.Error(w, "cross-site request refused", http.StatusForbidden)

		return true
	}

	return false
}

func missingChallenge(kind string) error {
	return fmt.Errorf("%w: %s challenge is missing", apperrors.ErrValidation, kind)
}

func clientName(name, id string) string {
	if name != "" {
		return name
	}

	return id
}

// --- login ---

func (h *challengeHandlers) loginGET(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("login_challenge")

	out, err := h.flow.ResolveLogin(r.Context(), challenge)
	if err != nil {
		h.challengeError(w, "login", err)
		return
	}

	if out.State == flow.Decided {
		http.Redirect(w, r, out.RedirectTo, http.StatusFound)
		return
	}

	h.renderLogin(w, r, challenge, out)
}

func (h *challengeHandlers) renderLogin(w http.ResponseWriter, r *http.Request, challenge string, out flow.Outcome) {
	data := loginData{
		Title:     pageTitle,
		CSRFToken: h.store.IssueCSRF(challenge),
		Challenge: challenge,
	}

	if out.Login != nil {
		data.ClientName = clientName(out.Login.Client.ClientName, out.Login.Client.ClientID)
		data.Scopes = out.Login.RequestedScope
	}

	if sess := auth.SessionFromRequest(h.store, r); sess != nil {
		data.Username = sess.Subject
	}

	renderPage(w, h.logger, http.StatusOK, loginPage, data)
}

func (h *challengeHandlers) loginPOST(w http.ResponseWriter, r *http.Request) {
	// Rate limiting by remote IP. Check before consuming CSRF so a
	// rate-limited request does not destroy the user's CSRF token.
	ip := auth.RemoteIP(r)
	if h.limiter.Limited(ip) {
		h.logger.Warn("login rate limited", slog.String("ip", ip))
		http.Error(w, "too many failed login attempts, try again later", http.StatusTooManyRequests)

		return
	}

	challenge, ok := h.parseForm(w, r, "login")
	if !ok {
		return
	}

	if r.PostFormValue("action") == "reject" {
		out, err := h.flow.RejectLogin(r.Context(), challenge, "")
		h.finish(w, r, "login", out, err)

		return
	}

	creds := flow.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	remember := formBool(r.PostFormValue("remember"))

	out, err := h.flow.DecideLogin(r.Context(), challenge, creds, remember)
	if err != nil {
		h.challengeError(w, "login", err)
		return
	}

	if out.Subject == "" {
		h.limiter.Record(ip)
		h.logger.Warn("login failed", slog.String("ip", ip))
	} else {
		auth.SetSessionCookie(w, h.store.CreateSession(out.Subject), h.secure)
	}

	http.Redirect(w, r, out.RedirectTo, http.StatusFound)
}

func (h *challengeHandlers) loginReject(w http.ResponseWriter, r *http.Request) {
	if h.refuseCrossSite(w, r, "login") {
		return
	}

	out, err := h.flow.RejectLogin(r.Context(), r.URL.Query().Get("login_challenge"), "")
	h.finish(w, r, "login", out, err)
}

// --- consent ---

func (h *challengeHandlers) consentGET(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("consent_challenge")

	out, err := h.flow.ResolveConsent(r.Context(), challenge)
	if err != nil {
		h.challengeError(w, "consent", err)
		return
	}

	if out.State == flow.Decided {
		http.Redirect(w, r, out.RedirectTo, http.StatusFound)
		return
	}

	req := out.Consent
	renderPage(w, h.logger, http.StatusOK, consentPage, consentData{
		Title:      pageTitle,
		CSRFToken:  h.store.IssueCSRF(challenge),
		Challenge:  challenge,
		ClientName: clientName(req.Client.ClientName, req.Client.ClientID),
		Subject:    req.Subject,
		Scopes:     req.RequestedScope,
		Audience:   req.RequestedAudience,
	})
}

func (h *challengeHandlers) consentPOST(w http.ResponseWriter, r *http.Request) {
	challenge, ok := h.parseForm(w, r, "consent")
	if !ok {
		return
	}

	if r.PostFormValue("action") == "reject" {
		out, err := h.flow.RejectConsent(r.Context(), challenge, "")
		h.finish(w, r, "consent", out, err)

		return
	}

	granted := r.PostForm["grant_scope"]
	remember := formBool(r.PostFormValue("remember"))

	out, err := h.flow.DecideConsent(r.Context(), challenge, granted, remember)
	h.finish(w, r, "consent", out, err)
}

func (h *challengeHandlers) consentReject(w http.ResponseWriter, r *http.Request) {
	if h.refuseCrossSite(w, r, "consent") {
		return
	}

	out, err := h.flow.RejectConsent(r.Context(), r.URL.Query().Get("consent_challenge"), "")
	h.finish(w, r, "consent", out, err)
}

// --- logout ---

func (h *challengeHandlers) logoutGET(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("logout_challenge")

	out, err := h.flow.ResolveLogout(r.Context(), challenge)
	if err != nil {
		h.challengeError(w, "logout", err)
		return
	}

	renderPage(w, h.logger, http.StatusOK, logoutPage, logoutData{
		Title:     pageTitle,
		CSRFToken: h.store.IssueCSRF(challenge),
		Challenge: challenge,
		Subject:   out.Subject,
	})
}

func (h *challengeHandlers) logoutPOST(w http.ResponseWriter, r *http.Request) {
	challenge, ok := h.parseForm(w, r, "logout")
	if !ok {
		return
	}

	confirmed := r.PostFormValue("action") != "reject"

	terminate := func() {
		if sess := auth.SessionFromRequest(h.store, r); sess != nil {
			h.store.DeleteSession(sess.ID)
		}

		auth.ClearSessionCookie(w, h.secure)
	}

	out, err := h.flow.DecideLogout(r.Context(), challenge, confirmed, terminate)
	h.finishLogout(w, r, out, err)
}

func (h *challengeHandlers) logoutReject(w http.ResponseWriter, r *http.Request) {
	if h.refuseCrossSite(w, r, "logout") {
		return
	}

	out, err := h.flow.RejectLogout(r.Context(), r.URL.Query().Get("logout_challenge"), "")
	h.finishLogout(w, r, out, err)
}

// finishLogout is finish for logout, where Hydra may decline to supply a
// redirect after a rejected logout.
func (h *challengeHandlers) finishLogout(w http.ResponseWriter, r *http.Request, out flow.Outcome, err error) {
	if err == nil && out.RedirectTo == "" {
		renderPage(w, h.logger, http.StatusOK, messagePage, messageData{
			Title:   pageTitle,
			Heading: "Still signed in",
			Message: "You have not been signed out. You can close this window.",
		})

		return
	}

	h.finish(w, r, "logout", out, err)
}

func formBool(v string) bool {
	switch v {
	case "true", "on", "1", "yes":
		return true
	}

	return false
}
