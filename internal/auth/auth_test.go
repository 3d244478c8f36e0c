package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(time.Hour)
	t.Cleanup(s.Stop)

	return s
}

func testUsers(t *testing.T) UserCredentials {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	return UserCredentials{"testuser": string(h)}
}

const testAPIKey = "hl_0123456789abcdef0123456789abcdef"

// --- Authenticate ---

func TestAuthenticate_Valid(t *testing.T) {
	subject, err := testUsers(t).Authenticate("testuser", "password123")
	require.NoError(t, err)
	assert.Equal(t, "testuser", subject)
}

func TestAuthenticate_TrimsAndNormalizes(t *testing.T) {
	h, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	users := UserCredentials{"jos\u00e9": string(h)}

	// Decomposed input: "e" followed by a combining acute accent.
	subject, err := users.Authenticate("  jose\u0301 ", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jos\u00e9", subject)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	_, err := testUsers(t).Authenticate("testuser", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	_, err := testUsers(t).Authenticate("nobody", "password123")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthenticate_EmptyUsername(t *testing.T) {
	_, err := testUsers(t).Authenticate("", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthenticate_MalformedHash(t *testing.T) {
	users := UserCredentials{"broken": "plaintext"}

	_, err := users.Authenticate("broken", "plaintext")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestIsBcryptHash(t *testing.T) {
	h, err := bcrypt.GenerateFromPassword([]byte("x"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, IsBcryptHash(string(h)))
	assert.False(t, IsBcryptHash("hunter2"))
	assert.False(t, IsBcryptHash(""))
}

// --- Store: sessions ---

func TestStore_SessionRoundTrip(t *testing.T) {
	s := testStore(t)

	sess := s.CreateSession("alice")
	assert.Len(t, sess.ID, sessionIDBytes*2)

	got := s.GetSession(sess.ID)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Subject)

	s.DeleteSession(sess.ID)
	assert.Nil(t, s.GetSession(sess.ID))
}

func TestStore_SessionExpired(t *testing.T) {
	s := testStore(t)
	base := time.Now()
	s.now = func() time.Time { return base }

	sess := s.CreateSession("alice")

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	assert.Nil(t, s.GetSession(sess.ID))
}

func TestStore_SessionEmptyID(t *testing.T) {
	s := testStore(t)
	assert.Nil(t, s.GetSession(""))
}

func TestNewStore_DefaultTTL(t *testing.T) {
	s := NewStore(0)
	defer s.Stop()

	assert.Equal(t, DefaultSessionTTL, s.SessionTTL())
}

func TestStore_StopTwice(t *testing.T) {
	s := NewStore(time.Minute)
	s.Stop()
	assert.NotPanics(t, s.Stop)
}

// --- Store: CSRF ---

func TestStore_CSRFRoundTrip(t *testing.T) {
	s := testStore(t)
	token := s.IssueCSRF("challenge-1")

	assert.True(t, s.ConsumeCSRF(token, "challenge-1"))
	// Second consume should fail.
	assert.False(t, s.ConsumeCSRF(token, "challenge-1"))
}

func TestStore_CSRFBoundToChallenge(t *testing.T) {
	s := testStore(t)
	token := s.IssueCSRF("challenge-1")

	assert.False(t, s.ConsumeCSRF(token, "challenge-2"))
	// A mismatched attempt burns the token.
	assert.False(t, s.ConsumeCSRF(token, "challenge-1"))
}

func TestStore_CSRFEmptyAndUnknown(t *testing.T) {
	s := testStore(t)
	assert.False(t, s.ConsumeCSRF("", ""))
	assert.False(t, s.ConsumeCSRF("nonexistent", "c"))
}

func TestStore_CSRFExpired(t *testing.T) {
	s := testStore(t)
	base := time.Now()
	s.now = func() time.Time { return base }

	token := s.IssueCSRF("c")

	s.now = func() time.Time { return base.Add(csrfExpiry + time.Second) }
	assert.False(t, s.ConsumeCSRF(token, "c"))
}

func TestStore_Cleanup(t *testing.T) {
	s := testStore(t)
	base := time.Now()
	s.now = func() time.Time { return base }

	s.CreateSession("alice")
	s.IssueCSRF("c")

	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	s.cleanup()

	s.mu.RLock()
	assert.Empty(t, s.sessions)
	assert.Empty(t, s.csrf)
	s.mu.RUnlock()
}

// --- Store: API keys ---

func TestStore_APIKeys(t *testing.T) {
	s := testStore(t)
	assert.False(t, s.HasAPIKeys())

	s.RegisterAPIKey(testAPIKey, "ops")
	assert.True(t, s.HasAPIKeys())

	ak := s.ValidateAPIKey(testAPIKey)
	require.NotNil(t, ak)
	assert.Equal(t, "ops", ak.UserID)

	assert.Nil(t, s.ValidateAPIKey(testAPIKey+"00"))
	assert.Nil(t, s.ValidateAPIKey(""))
}

func TestRandomHex_Length(t *testing.T) {
	h := RandomHex(16)
	assert.Len(t, h, 32)
}

func TestRandomHex_Unique(t *testing.T) {
	assert.NotEqual(t, RandomHex(16), RandomHex(16))
}

// --- Rate limiter ---

func TestLoginRateLimiter(t *testing.T) {
	rl := NewLoginRateLimiter()
	base := time.Now()
	rl.now = func() time.Time { return base }

	for i := 0; i < rateLimitMaxFail; i++ {
		assert.False(t, rl.Limited("1.2.3.4"))
		rl.Record("1.2.3.4")
	}

	assert.True(t, rl.Limited("1.2.3.4"))
	assert.False(t, rl.Limited("5.6.7.8"), "other IPs unaffected")

	rl.now = func() time.Time { return base.Add(rateLimitWindow + time.Second) }
	assert.False(t, rl.Limited("1.2.3.4"), "window expired")
}

func TestLoginRateLimiter_PrunesStaleIPs(t *testing.T) {
	rl := NewLoginRateLimiter()
	base := time.Now()
	rl.now = func() time.Time { return base }

	for i := 0; i <= rateLimitPruneThreshold; i++ {
		rl.Record(RandomHex(4))
	}

	rl.now = func() time.Time { return base.Add(rateLimitWindow + time.Second) }
	rl.Limited("fresh")

	rl.mu.Lock()
	assert.Empty(t, rl.failures)
	rl.mu.Unlock()
}

func TestRemoteIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", RemoteIP(r))

	r.RemoteAddr = "garbage"
	assert.Equal(t, "garbage", RemoteIP(r))
}

// --- Middleware ---

func protected(t *testing.T, s *Store) http.Handler {
	t.Helper()

	return RequireAPIKey(s, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(RequestUserID(r.Context()) + "@" + RequestRemoteIP(r.Context())))
	}))
}

func TestRequireAPIKey_Valid(t *testing.T) {
	s := testStore(t)
	s.RegisterAPIKey(testAPIKey, "ops")

	req := httptest.NewRequest("GET", "/clients", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	protected(t, s).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops@10.0.0.1", rec.Body.String())
}

func TestRequireAPIKey_MissingToken(t *testing.T) {
	s := testStore(t)
	s.RegisterAPIKey(testAPIKey, "ops")

	req := httptest.NewRequest("GET", "/clients", nil)
	rec := httptest.NewRecorder()
	protected(t, s).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, wwwAuthNoToken, rec.Header().Get("WWW-Authenticate"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.NotEmpty(t, body["message"])
}

func TestRequireAPIKey_InvalidToken(t *testing.T) {
	s := testStore(t)
	s.RegisterAPIKey(testAPIKey, "ops")

	for _, header := range []string{
		"Bearer hl_ffffffffffffffffffffffffffffffff",
		"Bearer not-a-key",
	} {
		req := httptest.NewRequest("GET", "/clients", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		protected(t, s).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.Equal(t, wwwAuthInvalid, rec.Header().Get("WWW-Authenticate"))
	}
}

func TestRequireAPIKey_NonBearerAuth(t *testing.T) {
	s := testStore(t)

	req := httptest.NewRequest("GET", "/clients", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	protected(t, s).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAPIKey_NoKeysConfigured(t *testing.T) {
	s := testStore(t)

	req := httptest.NewRequest("GET", "/clients", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	protected(t, s).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- Session cookies ---

func TestSessionCookie_RoundTrip(t *testing.T) {
	s := testStore(t)
	sess := s.CreateSession("alice")

	rec := httptest.NewRecorder()
	SetSessionCookie(rec, sess, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	req := httptest.NewRequest("GET", "/login", nil)
	req.AddCookie(cookies[0])

	got := SessionFromRequest(s, req)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Subject)
}

func TestSessionFromRequest_NoCookie(t *testing.T) {
	s := testStore(t)
	req := httptest.NewRequest("GET", "/login", nil)
	assert.Nil(t, SessionFromRequest(s, req))
}

func TestClearSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearSessionCookie(rec, false)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}
