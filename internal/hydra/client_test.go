package hydra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
	"github.com/alexjbarnes/hydra-login/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, srv.URL, WithTimeout(2*time.Second))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// --- NewClient ---

func TestNewClient_InvalidAdminURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:4445", "ftp://hydra", "http://"} {
		_, err := NewClient(raw, "")
		assert.ErrorIs(t, err, apperrors.ErrValidation, raw)
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c, err := NewClient("http://hydra:4445/", "http://hydra:4444/")
	require.NoError(t, err)
	assert.Equal(t, "http://hydra:4445", c.adminURL)
	assert.Equal(t, "http://hydra:4444", c.publicURL)
}

// --- login ---

func TestGetLoginRequest(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/oauth2/auth/requests/login", r.URL.Path)
		assert.Equal(t, "abc", r.URL.Query().Get("login_challenge"))

		writeJSON(w, http.StatusOK, map[string]any{
			"challenge":       "abc",
			"skip":            true,
			"subject":         "alice",
			"requested_scope": []string{"openid"},
			"client":          map[string]any{"client_id": "app", "client_name": "App"},
		})
	})

	req, err := c.GetLoginRequest(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, req.Skip)
	assert.Equal(t, "alice", req.Subject)
	assert.Equal(t, "App", req.Client.ClientName)
	assert.Equal(t, []string{"openid"}, req.RequestedScope)
}

func TestGetLoginRequest_EmptyTokenNoRemoteCall(t *testing.T) {
	called := false
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.GetLoginRequest(context.Background(), "  ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.False(t, called)
}

func TestAcceptLogin_SendsBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/oauth2/auth/requests/login/accept", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("login_challenge"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "alice", gjson.GetBytes(body, "subject").String())
		assert.True(t, gjson.GetBytes(body, "remember").Bool())
		assert.Equal(t, int64(3600), gjson.GetBytes(body, "remember_for").Int())

		writeJSON(w, http.StatusOK, Redirect{RedirectTo: "https://hydra/next"})
	})

	to, err := c.AcceptLogin(context.Background(), "tok", "alice", true, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://hydra/next", to)
}

func TestRejectLogin_DefaultsAccessDenied(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "access_denied", gjson.GetBytes(body, "error").String())
		assert.Equal(t, "nope", gjson.GetBytes(body, "error_description").String())
		writeJSON(w, http.StatusOK, Redirect{RedirectTo: "https://hydra/err"})
	})

	to, err := c.RejectLogin(context.Background(), "tok", "", "nope")
	require.NoError(t, err)
	assert.Equal(t, "https://hydra/err", to)
}

func TestAccept_MissingRedirectIsRejected(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})

	_, err := c.AcceptLogin(context.Background(), "tok", "alice", false, 0)
	assert.ErrorIs(t, err, apperrors.ErrRejected)
}

// --- consent ---

func TestAcceptConsent_SendsGrants(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/auth/requests/consent/accept", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("consent_challenge"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `["openid","email"]`, gjson.GetBytes(body, "grant_scope").Raw)
		assert.Equal(t, `[]`, gjson.GetBytes(body, "grant_access_token_audience").Raw)
		writeJSON(w, http.StatusOK, Redirect{RedirectTo: "https://hydra/done"})
	})

	to, err := c.AcceptConsent(context.Background(), "tok", []string{"openid", "email"}, nil, false, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://hydra/done", to)
}

func TestGetConsentRequest_FillsChallenge(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"subject":                         "alice",
			"requested_scope":                 []string{"openid", "profile"},
			"requested_access_token_audience": []string{"api"},
		})
	})

	req, err := c.GetConsentRequest(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", req.Challenge)
	assert.Equal(t, []string{"api"}, req.RequestedAudience)
}

// --- logout ---

func TestAcceptLogout_NoBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/auth/requests/logout/accept", r.URL.Path)
		assert.Empty(t, r.Header.Get("Content-Type"))
		writeJSON(w, http.StatusOK, Redirect{RedirectTo: "https://app/logged-out"})
	})

	to, err := c.AcceptLogout(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "https://app/logged-out", to)
}

func TestRejectLogout_EmptyResponseAllowed(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	to, err := c.RejectLogout(context.Background(), "tok", "", "stay")
	require.NoError(t, err)
	assert.Empty(t, to)
}

func TestGetLogoutRequest(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("logout_challenge"))
		writeJSON(w, http.StatusOK, map[string]any{"subject": "alice", "sid": "s-1"})
	})

	req, err := c.GetLogoutRequest(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "alice", req.Subject)
	assert.Equal(t, "s-1", req.SessionID)
}

// --- error normalization ---

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, apperrors.ErrNotFound},
		{http.StatusConflict, apperrors.ErrRejected},
		{http.StatusGone, apperrors.ErrNotFound},
		{http.StatusBadRequest, apperrors.ErrRejected},
		{http.StatusUnauthorized, apperrors.ErrRejected},
		{http.StatusTooManyRequests, apperrors.ErrUnavailable},
		{http.StatusInternalServerError, apperrors.ErrUnavailable},
		{http.StatusServiceUnavailable, apperrors.ErrUnavailable},
	}
	for _, tt := range tests {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tt.status, map[string]string{"error": "e", "error_description": "d"})
		})

		_, err := c.GetLoginRequest(context.Background(), "tok")
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, tt.status, apiErr.StatusCode)
	}
}

func TestErrorBody_LegacyShape(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":             "Not Found",
			"error_description": "Unable to locate the resource",
		})
	})

	_, err := c.GetConsentRequest(context.Background(), "tok")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Not Found", apiErr.Code)
	assert.Equal(t, "Unable to locate the resource", apiErr.Description)
	assert.Contains(t, err.Error(), "get consent request")
}

func TestErrorBody_NestedShape(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{"code": 400, "status": "Bad Request", "message": "invalid redirect"},
		})
	})

	_, err := c.CreateClient(context.Background(), models.ClientRecord{RedirectURIs: []string{"x"}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Request", apiErr.Code)
	assert.Equal(t, "invalid redirect", apiErr.Description)
	assert.ErrorIs(t, err, apperrors.ErrRejected)
}

func TestErrorBody_NonJSONSanitized(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream\x00down\x1b[31m"))
	})

	_, err := c.GetLoginRequest(context.Background(), "tok")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.NotContains(t, apiErr.Description, "\x00")
	assert.NotContains(t, apiErr.Description, "\x1b")
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, "")
	require.NoError(t, err)

	_, err = c.ListClients(context.Background(), 10, 0)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestTimeoutIsUnavailable(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	c, err := NewClient(srv.URL, "", WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = c.GetLoginRequest(context.Background(), "tok")
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

// --- clients ---

func TestListClients_Paging(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/clients", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "50", r.URL.Query().Get("offset"))
		writeJSON(w, http.StatusOK, []map[string]any{
			{
				"client_id":     "a",
				"redirect_uris": []string{" https://a.example.com/cb "},
				"metadata":      map[string]any{"allow_cors_requests": true},
			},
			{"client_id": "b", "redirect_uris": nil},
		})
	})

	got, err := c.ListClients(context.Background(), 25, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"https://a.example.com/cb"}, got[0].RedirectURIs)
	assert.True(t, got[0].AllowCORS)
	assert.False(t, got[1].AllowCORS)
	assert.Equal(t, models.DefaultAuthMethod, got[1].AuthMethod)
}

func TestListClients_InvalidPage(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no remote call expected")
	})

	_, err := c.ListClients(context.Background(), 0, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCreateClient_SendsMetadataAndReturnsAssigned(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.True(t, gjson.GetBytes(body, "metadata.allow_cors_requests").Bool())
		assert.Equal(t, "client_secret_basic", gjson.GetBytes(body, "token_endpoint_auth_method").String())
		assert.Equal(t, `[]`, gjson.GetBytes(body, "contacts").Raw)
		assert.False(t, gjson.GetBytes(body, "client_id").Exists())

		writeJSON(w, http.StatusCreated, map[string]any{
			"client_id":     "assigned-id",
			"client_secret": "assigned-secret",
			"client_name":   "App",
			"redirect_uris": []string{"https://app.example.com/cb"},
		})
	})

	got, err := c.CreateClient(context.Background(), models.ClientRecord{
		Name:         "App",
		RedirectURIs: []string{"https://app.example.com/cb"},
		AllowCORS:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "assigned-id", got.ClientID)
	assert.Equal(t, "assigned-secret", got.Secret)
}

func TestUpdateClient_EscapesID(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/clients/a%2Fb", r.URL.EscapedPath())
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "a/b", gjson.GetBytes(body, "client_id").String())
		writeJSON(w, http.StatusOK, map[string]any{"client_id": "a/b", "client_name": "New"})
	})

	got, err := c.UpdateClient(context.Background(), "a/b", models.ClientRecord{Name: "New"})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
}

func TestGetClient_NotFound(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	})

	_, err := c.GetClient(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteClient(t *testing.T) {
	var method, path string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteClient(context.Background(), "c1"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/clients/c1", path)

	assert.ErrorIs(t, c.DeleteClient(context.Background(), ""), apperrors.ErrValidation)
}

// --- ready ---

func TestReady(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/ready", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	assert.NoError(t, c.Ready(context.Background()))
}

func TestReady_NoPublicURL(t *testing.T) {
	c, err := NewClient("http://hydra:4445", "")
	require.NoError(t, err)
	assert.ErrorIs(t, c.Ready(context.Background()), apperrors.ErrUnavailable)
}

// --- sanitize ---

func TestSanitizeResponseBody_Truncates(t *testing.T) {
	long := strings.Repeat("a", 1000)
	assert.Len(t, sanitizeResponseBody([]byte(long)), 256)
}

func TestSanitizeResponseBody_InvalidUTF8(t *testing.T) {
	assert.Equal(t, "a?b", sanitizeResponseBody([]byte{'a', 0xff, 'b'}))
}
