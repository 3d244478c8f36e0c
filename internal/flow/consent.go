package flow

import (
	"context"
	"log/slog"
	"slices"
)

const kindConsent = "consent"

// ResolveConsent fetches a consent challenge. A skip is accepted with
// the full requested scope and audience; otherwise the request is
// returned for the UI to present.
func (f *Flow) ResolveConsent(ctx context.Context, token string) (Outcome, error) {
	if err := requireToken(kindConsent, token); err != nil {
		return failed(err)
	}

	if err := f.checkUnspent(kindConsent, token); err != nil {
		return failed(err)
	}

	req, err := f.gw.GetConsentRequest(ctx, token)
	if err != nil {
		return failed(err)
	}

	if !req.Skip {
		return Outcome{State: AwaitingDecision, Consent: req}, nil
	}

	redirect, err := f.complete(kindConsent, "accept", token, func() (string, error) {
		return f.gw.AcceptConsent(ctx, token, req.RequestedScope, req.RequestedAudience, true, f.rememberFor)
	})
	if err != nil {
		return failed(err)
	}

	f.logger.Info("consent skipped",
		slog.String("subject", req.Subject),
		slog.String("client_id", req.Client.ClientID),
	)

	return Outcome{State: Decided, RedirectTo: redirect, Skipped: true, Subject: req.Subject}, nil
}

// DecideConsent accepts a consent challenge with the scopes the user
// granted. The challenge is fetched again so that the grant is checked
// against what Hydra actually requested: scopes outside that set are
// dropped, and the audience is always the requested one.
func (f *Flow) DecideConsent(ctx context.Context, token string, granted []string, remember bool) (Outcome, error) {
	if err := requireToken(kindConsent, token); err != nil {
		return failed(err)
	}

	if err := f.checkUnspent(kindConsent, token); err != nil {
		return failed(err)
	}

	req, err := f.gw.GetConsentRequest(ctx, token)
	if err != nil {
		return failed(err)
	}

	scopes, dropped := grantedSubset(req.RequestedScope, granted)
	if len(dropped) > 0 {
		f.logger.Warn("ignoring scopes that were not requested",
			slog.Any("scopes", dropped),
			slog.String("client_id", req.Client.ClientID),
		)
	}

	redirect, err := f.complete(kindConsent, "accept", token, func() (string, error) {
		return f.gw.AcceptConsent(ctx, token, scopes, req.RequestedAudience, remember, f.rememberFor)
	})
	if err != nil {
		return failed(err)
	}

	f.logger.Info("consent accepted",
		slog.String("subject", req.Subject),
		slog.String("client_id", req.Client.ClientID),
		slog.Any("scopes", scopes),
		slog.Bool("remember", remember),
	)

	return Outcome{State: Decided, RedirectTo: redirect, Subject: req.Subject}, nil
}

// RejectConsent denies a consent challenge.
func (f *Flow) RejectConsent(ctx context.Context, token, description string) (Outcome, error) {
	if err := requireToken(kindConsent, token); err != nil {
		return failed(err)
	}

	if description == "" {
		description = RejectConsentDescription
	}

	redirect, err := f.complete(kindConsent, "reject", token, func() (string, error) {
		return f.gw.RejectConsent(ctx, token, errorAccessDenied, description)
	})
	if err != nil {
		return failed(err)
	}

	return Outcome{State: Decided, RedirectTo: redirect}, nil
}

// grantedSubset keeps the granted scopes that were requested, in
// requested order and without duplicates. The rest are returned as
// dropped.
func grantedSubset(requested, granted []string) (scopes, dropped []string) {
	scopes = []string{}

	for _, s := range requested {
		if slices.Contains(granted, s) && !slices.Contains(scopes, s) {
			scopes = append(scopes, s)
		}
	}

	for _, s := range granted {
		if !slices.Contains(requested, s) && !slices.Contains(dropped, s) {
			dropped = append(dropped, s)
		}
	}

	return scopes, dropped
}
