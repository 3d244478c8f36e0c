package flow

import (
	"context"
)

const kindLogout = "logout"

// ResolveLogout fetches a logout challenge for the confirmation page.
// Logout never skips.
func (f *Flow) ResolveLogout(ctx context.Context, token string) (Outcome, error) {
	if err := requireToken(kindLogout, token); err != nil {
		return failed(err)
	}

	if err := f.checkUnspent(kindLogout, token); err != nil {
		return failed(err)
	}

	req, err := f.gw.GetLogoutRequest(ctx, token)
	if err != nil {
		return failed(err)
	}

	return Outcome{State: AwaitingDecision, Logout: req, Subject: req.Subject}, nil
}

// DecideLogout completes a logout challenge. When confirmed, Hydra is
// told first and terminate runs only after it accepted; a declined
// logout is rejected and terminate is never called.
func (f *Flow) DecideLogout(ctx context.Context, token string, confirmed bool, terminate func()) (Outcome, error) {
	if !confirmed {
		return f.RejectLogout(ctx, token, "")
	}

	if err := requireToken(kindLogout, token); err != nil {
		return failed(err)
	}

	redirect, err := f.complete(kindLogout, "accept", token, func() (string, error) {
		return f.gw.AcceptLogout(ctx, token)
	})
	if err != nil {
		return failed(err)
	}

	if terminate != nil {
		terminate()
	}

	f.logger.Info("logout accepted")

	return Outcome{State: Decided, RedirectTo: redirect}, nil
}

// RejectLogout cancels a logout challenge. The local session is left
// alone. Hydra may not supply a redirect for this case.
func (f *Flow) RejectLogout(ctx context.Context, token, description string) (Outcome, error) {
	if err := requireToken(kindLogout, token); err != nil {
		return failed(err)
	}

	if description == "" {
		description = RejectLogoutDescription
	}

	redirect, err := f.complete(kindLogout, "reject", token, func() (string, error) {
		return f.gw.RejectLogout(ctx, token, errorAccessDenied, description)
	})
	if err != nil {
		return failed(err)
	}

	f.logger.Info("logout rejected")

	return Outcome{State: Decided, RedirectTo: redirect}, nil
}
