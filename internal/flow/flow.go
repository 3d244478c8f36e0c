// Package flow drives the login, consent and logout challenges issued
// by Hydra. Each challenge moves through Received, then either straight
// to Decided when Hydra reports skip, or to AwaitingDecision until the
// UI supplies a decision. Any failed accept or reject call ends in
// Failed.
package flow

//go:generate mockgen -source=flow.go -destination=mock_gateway.go -package=flow -exclude_interfaces=Authenticator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
	"github.com/alexjbarnes/hydra-login/internal/hydra"
)

const (
	// DefaultRememberFor is how long Hydra remembers a decision made
	// with remember=true.
	DefaultRememberFor = time.Hour

	// DefaultChallengeTTL is how long a spent challenge stays in the
	// local ledger. Hydra challenges expire well within this window.
	DefaultChallengeTTL = time.Hour

	// errorAccessDenied is the only OAuth2 error code a flow rejects with.
	errorAccessDenied = "access_denied"
)

// Default rejection descriptions shown by Hydra's error page.
const (
	RejectLoginDescription   = "The user rejected the authentication request"
	RejectConsentDescription = "The user rejected the consent request"
	RejectLogoutDescription  = "The user rejected the logout request"
	InvalidLoginDescription  = "The user could not be authenticated"
)

// Gateway is the subset of the Hydra admin API the flows need.
type Gateway interface {
	GetLoginRequest(ctx context.Context, token string) (*hydra.LoginRequest, error)
	AcceptLogin(ctx context.Context, token, subject string, remember bool, rememberFor time.Duration) (string, error)
	RejectLogin(ctx context.Context, token, code, description string) (string, error)
	GetConsentRequest(ctx context.Context, token string) (*hydra.ConsentRequest, error)
	AcceptConsent(ctx context.Context, token string, scopes, audience []string, remember bool, rememberFor time.Duration) (string, error)
	RejectConsent(ctx context.Context, token, code, description string) (string, error)
	GetLogoutRequest(ctx context.Context, token string) (*hydra.LogoutRequest, error)
	AcceptLogout(ctx context.Context, token string) (string, error)
	RejectLogout(ctx context.Context, token, code, description string) (string, error)
}

// Authenticator checks end-user credentials. It returns the subject to
// log in, or an error wrapping ErrInvalidCredentials.
type Authenticator interface {
	Authenticate(username, password string) (string, error)
}

// State is the position of a challenge in its flow.
type State int

const (
	Received State = iota
	Resolved
	AwaitingDecision
	Decided
	Failed
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case Resolved:
		return "resolved"
	case AwaitingDecision:
		return "awaiting_decision"
	case Decided:
		return "decided"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the result of advancing a flow. RedirectTo is set once the
// flow is Decided. While AwaitingDecision exactly one of Login, Consent
// or Logout carries the context for the UI.
type Outcome struct {
	State      State
	RedirectTo string
	Skipped    bool
	Subject    string

	Login   *hydra.LoginRequest
	Consent *hydra.ConsentRequest
	Logout  *hydra.LogoutRequest
}

// Credentials are the username and password submitted on the login form.
type Credentials struct {
	Username string
	Password string
}

// Config tunes a Flow. Zero values select the defaults.
type Config struct {
	RememberFor  time.Duration
	ChallengeTTL time.Duration
}

// Flow runs challenge state machines against a Gateway.
type Flow struct {
	gw          Gateway
	auth        Authenticator
	logger      *slog.Logger
	rememberFor time.Duration
	ledger      *ledger
}

// New creates a Flow. The gateway is shared by every challenge.
func New(gw Gateway, auth Authenticator, logger *slog.Logger, cfg Config) *Flow {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.RememberFor <= 0 {
		cfg.RememberFor = DefaultRememberFor
	}

	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = DefaultChallengeTTL
	}

	return &Flow{
		gw:          gw,
		auth:        auth,
		logger:      logger,
		rememberFor: cfg.RememberFor,
		ledger:      newLedger(cfg.ChallengeTTL),
	}
}

// RememberFor returns the lifetime applied to remembered decisions.
func (f *Flow) RememberFor() time.Duration {
	return f.rememberFor
}

func requireToken(kind, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: %s challenge is missing", apperrors.ErrValidation, kind)
	}

	return nil
}

func failed(err error) (Outcome, error) {
	return Outcome{State: Failed}, err
}

// complete runs a single accept or reject call under a ledger claim.
// The claim is settled when the call succeeds or Hydra reports the
// challenge gone, and released otherwise so the caller may retry.
func (f *Flow) complete(kind, action, token string, call func() (string, error)) (string, error) {
	if err := f.ledger.claim(token); err != nil {
		return "", fmt.Errorf("%s %s: %w", action, kind, err)
	}

	redirect, err := call()
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			f.ledger.settle(token)
		} else {
			f.ledger.release(token)
		}

		f.logger.Warn("challenge completion failed",
			slog.String("kind", kind),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)

		return "", fmt.Errorf("%w: %s %s: %w", apperrors.ErrChallengeFailed, action, kind, err)
	}

	f.ledger.settle(token)

	return redirect, nil
}

// checkUnspent fails fast on a token this process already completed.
func (f *Flow) checkUnspent(kind, token string) error {
	if f.ledger.spent(token) {
		return fmt.Errorf("%s challenge: %w", kind, errChallengeUsed)
	}

	return nil
}
