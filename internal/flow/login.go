package flow

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
)

const kindLogin = "login"

// ResolveLogin fetches a login challenge. When Hydra already trusts the
// subject the challenge is accepted on the spot and the outcome is
// Decided with Skipped set; otherwise it awaits credentials.
func (f *Flow) ResolveLogin(ctx context.Context, token string) (Outcome, error) {
	if err := requireToken(kindLogin, token); err != nil {
		return failed(err)
	}

	if err := f.checkUnspent(kindLogin, token); err != nil {
		return failed(err)
	}

	req, err := f.gw.GetLoginRequest(ctx, token)
	if err != nil {
		return failed(err)
	}

	if !req.Skip {
		return Outcome{State: AwaitingDecision, Login: req}, nil
	}

	redirect, err := f.complete(kindLogin, "accept", token, func() (string, error) {
		return f.gw.AcceptLogin(ctx, token, req.Subject, true, f.rememberFor)
	})
	if err != nil {
		return failed(err)
	}

	f.logger.Info("login skipped",
		slog.String("subject", req.Subject),
		slog.String("client_id", req.Client.ClientID),
	)

	return Outcome{State: Decided, RedirectTo: redirect, Skipped: true, Subject: req.Subject}, nil
}

// DecideLogin checks the submitted credentials and completes the login
// challenge: accepted for the authenticated subject, rejected with
// access_denied when the credentials are wrong.
func (f *Flow) DecideLogin(ctx context.Context, token string, creds Credentials, remember bool) (Outcome, error) {
	if err := requireToken(kindLogin, token); err != nil {
		return failed(err)
	}

	subject, authErr := f.auth.Authenticate(creds.Username, creds.Password)
	if authErr != nil && !errors.Is(authErr, apperrors.ErrInvalidCredentials) {
		return failed(authErr)
	}

	if authErr != nil {
		redirect, err := f.complete(kindLogin, "reject", token, func() (string, error) {
			return f.gw.RejectLogin(ctx, token, errorAccessDenied, InvalidLoginDescription)
		})
		if err != nil {
			return failed(err)
		}

		f.logger.Info("login rejected", slog.String("reason", "invalid credentials"))

		return Outcome{State: Decided, RedirectTo: redirect}, nil
	}

	redirect, err := f.complete(kindLogin, "accept", token, func() (string, error) {
		return f.gw.AcceptLogin(ctx, token, subject, remember, f.rememberFor)
	})
	if err != nil {
		return failed(err)
	}

	f.logger.Info("login accepted", slog.String("subject", subject), slog.Bool("remember", remember))

	return Outcome{State: Decided, RedirectTo: redirect, Subject: subject}, nil
}

// RejectLogin denies a login challenge on the user's request. An empty
// description selects the default wording.
func (f *Flow) RejectLogin(ctx context.Context, token, description string) (Outcome, error) {
	if err := requireToken(kindLogin, token); err != nil {
		return failed(err)
	}

	if description == "" {
		description = RejectLoginDescription
	}

	redirect, err := f.complete(kindLogin, "reject", token, func() (string, error) {
		return f.gw.RejectLogin(ctx, token, errorAccessDenied, description)
	})
	if err != nil {
		return failed(err)
	}

	return Outcome{State: Decided, RedirectTo: redirect}, nil
}
