// Package hydra is the gateway to the Ory Hydra admin and public APIs.
// Every failure is normalized into an *APIError whose kind is one of
// ErrNotFound, ErrRejected or ErrUnavailable. The gateway never retries;
// retry policy belongs to callers.
package hydra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
	"github.com/alexjbarnes/hydra-login/internal/models"
)

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// DefaultTimeout bounds every call when no timeout is configured.
	DefaultTimeout = 5 * time.Second

	// maxAPIResponseBytes caps response body reads to prevent a
	// misbehaving server from consuming unbounded memory.
	maxAPIResponseBytes = 1024 * 1024
)

// Challenge kinds, used in paths and query parameter names.
const (
	kindLogin   = "login"
	kindConsent = "consent"
	kindLogout  = "logout"
)

// Client talks to a Hydra deployment.
type Client struct {
	httpClient *http.Client
	adminURL   string
	publicURL  string
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewClient creates a gateway for the given admin and public base URLs.
// The public URL may be empty, in which case Ready is unavailable.
func NewClient(adminURL, publicURL string, opts ...Option) (*Client, error) {
	admin, err := baseURL("admin", adminURL)
	if err != nil {
		return nil, err
	}

	var public string
	if publicURL != "" {
		if public, err = baseURL("public", publicURL); err != nil {
			return nil, err
		}
	}

	c := &Client{
		adminURL:  admin,
		publicURL: public,
		timeout:   DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:       c.timeout,
			CheckRedirect: sameHostRedirectPolicy,
		}
	}

	return c, nil
}

func baseURL(name, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: invalid %s URL %q", apperrors.ErrValidation, name, raw)
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// do sends a JSON request and decodes a 2xx response into result.
// Non-2xx responses and transport failures come back as *APIError.
func (c *Client) do(ctx context.Context, op, method, base, path string, query url.Values, body, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshalling request body: %w", op, err)
		}

		reader = bytes.NewReader(payload)
	}

	target := base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: op, Kind: apperrors.ErrUnavailable, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Kind: apperrors.ErrUnavailable, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, respBody)
	}

	if result == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &APIError{
			Op:          op,
			StatusCode:  resp.StatusCode,
			Kind:        apperrors.ErrRejected,
			Description: "malformed response body",
			Err:         err,
		}
	}

	return nil
}

func requireToken(op, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%s: %w: challenge token is required", op, apperrors.ErrValidation)
	}

	return nil
}

func requireClientID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s: %w: client id is required", op, apperrors.ErrValidation)
	}

	return nil
}

func challengeQuery(kind, token string) url.Values {
	return url.Values{kind + "_challenge": []string{token}}
}

func requestPath(kind string) string {
	return "/oauth2/auth/requests/" + kind
}

// getRequest fetches a pending challenge of the given kind.
func (c *Client) getRequest(ctx context.Context, kind, token string, result any) error {
	op := "get " + kind + " request"
	if err := requireToken(op, token); err != nil {
		return err
	}

	return c.do(ctx, op, http.MethodGet, c.adminURL, requestPath(kind), challengeQuery(kind, token), nil, result)
}

// complete accepts or rejects a challenge and returns the redirect.
// Every completion except a logout rejection must carry one.
func (c *Client) complete(ctx context.Context, kind, verb, token string, body any) (string, error) {
	op := verb + " " + kind + " request"
	if err := requireToken(op, token); err != nil {
		return "", err
	}

	var out Redirect
	if err := c.do(ctx, op, http.MethodPut, c.adminURL, requestPath(kind)+"/"+verb, challengeQuery(kind, token), body, &out); err != nil {
		return "", err
	}

	if out.RedirectTo == "" && (kind != kindLogout || verb != "reject") {
		return "", &APIError{Op: op, Kind: apperrors.ErrRejected, Description: "response carried no redirect_to"}
	}

	return out.RedirectTo, nil
}

func rejection(code, description string) rejectBody {
	if code == "" {
		code = "access_denied"
	}

	return rejectBody{Error: code, ErrorDescription: description}
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// GetLoginRequest returns the context of a pending login challenge.
func (c *Client) GetLoginRequest(ctx context.Context, token string) (*LoginRequest, error) {
	var out LoginRequest
	if err := c.getRequest(ctx, kindLogin, token, &out); err != nil {
		return nil, err
	}

	if out.Challenge == "" {
		out.Challenge = token
	}

	return &out, nil
}

// AcceptLogin completes a login challenge for subject.
func (c *Client) AcceptLogin(ctx context.Context, token, subject string, remember bool, rememberFor time.Duration) (string, error) {
	body := acceptLoginBody{Subject: subject, Remember: remember, RememberFor: seconds(rememberFor)}
	return c.complete(ctx, kindLogin, "accept", token, body)
}

// RejectLogin denies a login challenge.
func (c *Client) RejectLogin(ctx context.Context, token, code, description string) (string, error) {
	return c.complete(ctx, kindLogin, "reject", token, rejection(code, description))
}

// GetConsentRequest returns the context of a pending consent challenge.
func (c *Client) GetConsentRequest(ctx context.Context, token string) (*ConsentRequest, error) {
	var out ConsentRequest
	if err := c.getRequest(ctx, kindConsent, token, &out); err != nil {
		return nil, err
	}

	if out.Challenge == "" {
		out.Challenge = token
	}

	return &out, nil
}

// AcceptConsent grants scopes and audience for a consent challenge.
func (c *Client) AcceptConsent(ctx context.Context, token string, scopes, audience []string, remember bool, rememberFor time.Duration) (string, error) {
	body := acceptConsentBody{
		GrantScope:    nonNil(scopes),
		GrantAudience: nonNil(audience),
		Remember:      remember,
		RememberFor:   seconds(rememberFor),
	}

	return c.complete(ctx, kindConsent, "accept", token, body)
}

// RejectConsent denies a consent challenge.
func (c *Client) RejectConsent(ctx context.Context, token, code, description string) (string, error) {
	return c.complete(ctx, kindConsent, "reject", token, rejection(code, description))
}

// GetLogoutRequest returns the context of a pending logout challenge.
func (c *Client) GetLogoutRequest(ctx context.Context, token string) (*LogoutRequest, error) {
	var out LogoutRequest
	if err := c.getRequest(ctx, kindLogout, token, &out); err != nil {
		return nil, err
	}

	if out.Challenge == "" {
		out.Challenge = token
	}

	return &out, nil
}

// AcceptLogout confirms a logout challenge.
func (c *Client) AcceptLogout(ctx context.Context, token string) (string, error) {
	return c.complete(ctx, kindLogout, "accept", token, nil)
}

// RejectLogout cancels a logout challenge. Hydra may answer with no
// body, in which case the returned redirect is empty.
func (c *Client) RejectLogout(ctx context.Context, token, code, description string) (string, error) {
	return c.complete(ctx, kindLogout, "reject", token, rejection(code, description))
}

// ListClients returns one page of registered clients.
func (c *Client) ListClients(ctx context.Context, limit, offset int) ([]models.ClientRecord, error) {
	if limit <= 0 || offset < 0 {
		return nil, fmt.Errorf("list clients: %w: limit must be positive and offset non-negative", apperrors.ErrValidation)
	}

	q := url.Values{
		"limit":  []string{strconv.Itoa(limit)},
		"offset": []string{strconv.Itoa(offset)},
	}

	var page []OAuth2Client
	if err := c.do(ctx, "list clients", http.MethodGet, c.adminURL, "/clients", q, nil, &page); err != nil {
		return nil, err
	}

	out := make([]models.ClientRecord, 0, len(page))
	for _, oc := range page {
		out = append(out, oc.Record())
	}

	return out, nil
}

// GetClient returns a single client by id.
func (c *Client) GetClient(ctx context.Context, clientID string) (models.ClientRecord, error) {
	const op = "get client"
	if err := requireClientID(op, clientID); err != nil {
		return models.ClientRecord{}, err
	}

	var oc OAuth2Client
	if err := c.do(ctx, op, http.MethodGet, c.adminURL, "/clients/"+url.PathEscape(clientID), nil, nil, &oc); err != nil {
		return models.ClientRecord{}, err
	}

	return oc.Record(), nil
}

// CreateClient registers rec and returns the stored client, including
// any server-assigned id and secret.
func (c *Client) CreateClient(ctx context.Context, rec models.ClientRecord) (models.ClientRecord, error) {
	var oc OAuth2Client
	if err := c.do(ctx, "create client", http.MethodPost, c.adminURL, "/clients", nil, clientFromRecord(rec), &oc); err != nil {
		return models.ClientRecord{}, err
	}

	return oc.Record(), nil
}

// UpdateClient replaces the client stored under clientID.
func (c *Client) UpdateClient(ctx context.Context, clientID string, rec models.ClientRecord) (models.ClientRecord, error) {
	const op = "update client"
	if err := requireClientID(op, clientID); err != nil {
		return models.ClientRecord{}, err
	}

	rec.ClientID = clientID

	var oc OAuth2Client
	if err := c.do(ctx, op, http.MethodPut, c.adminURL, "/clients/"+url.PathEscape(clientID), nil, clientFromRecord(rec), &oc); err != nil {
		return models.ClientRecord{}, err
	}

	return oc.Record(), nil
}

// DeleteClient removes the client stored under clientID.
func (c *Client) DeleteClient(ctx context.Context, clientID string) error {
	const op = "delete client"
	if err := requireClientID(op, clientID); err != nil {
		return err
	}

	return c.do(ctx, op, http.MethodDelete, c.adminURL, "/clients/"+url.PathEscape(clientID), nil, nil, nil)
}

// Ready reports whether the public API answers its readiness probe.
func (c *Client) Ready(ctx context.Context) error {
	const op = "readiness probe"
	if c.publicURL == "" {
		return &APIError{Op: op, Kind: apperrors.ErrUnavailable, Description: "public URL not configured"}
	}

	return c.do(ctx, op, http.MethodGet, c.publicURL, "/health/ready", nil, nil, nil)
}
