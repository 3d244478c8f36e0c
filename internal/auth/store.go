// Package auth holds the login front-end's own security state: end-user
// credentials, local login sessions, CSRF tokens bound to a challenge,
// admin API keys and login rate limiting. Tokens issued to OAuth clients
// are Hydra's business, not this package's. All state is in-memory and
// lost on restart.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"
)

// Session is a local login session. It lets the login form remember who
// signed in last and is terminated when a logout is accepted.
type Session struct {
	ID        string
	Subject   string
	ExpiresAt time.Time
}

// APIKey is an admin API key identity. Only the SHA-256 of the key is held.
type APIKey struct {
	UserID string
	hash   [sha256.Size]byte
}

const (
	// DefaultSessionTTL is used when NewStore receives a non-positive TTL.
	DefaultSessionTTL = 24 * time.Hour

	// APIKeyPrefix distinguishes admin API keys from other bearer values.
	APIKeyPrefix = "hl_"

	// APIKeyMinLen is the prefix plus 32 hex characters (16 random bytes).
	APIKeyMinLen = len(APIKeyPrefix) + 32

	// csrfExpiry controls how long a CSRF token remains valid. It matches
	// Hydra's default login challenge lifetime.
	csrfExpiry = time.Hour

	// cleanupInterval controls how often expired entries are reaped.
	cleanupInterval = 5 * time.Minute

	sessionIDBytes = 32
	csrfTokenBytes = 16
)

// csrfEntry binds a CSRF token to the challenge whose form carried it.
type csrfEntry struct {
	challenge string
	expiresAt time.Time
}

// Store holds sessions, CSRF tokens and API keys.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session  // session id -> Session
	csrf     map[string]csrfEntry // csrf token -> entry
	apiKeys  []APIKey
	ttl      time.Duration
	now      func() time.Time
	stopGC   chan struct{}
	stopOnce sync.Once
}

// NewStore creates an empty store and starts a background goroutine that
// periodically removes expired sessions and CSRF tokens. Call Stop() to
// clean up the goroutine.
func NewStore(sessionTTL time.Duration) *Store {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}

	s := &Store{
		sessions: make(map[string]*Session),
		csrf:     make(map[string]csrfEntry),
		ttl:      sessionTTL,
		now:      time.Now,
		stopGC:   make(chan struct{}),
	}
	go s.gcLoop()

	return s
}

// Stop terminates the background cleanup goroutine. It is safe to call
// more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopGC) })
}

// SessionTTL returns the lifetime of new sessions.
func (s *Store) SessionTTL() time.Duration {
	return s.ttl
}

func (s *Store) gcLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopGC:
			return
		}
	}
}

// cleanup removes all expired entries from the store.
func (s *Store) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, k)
		}
	}

	for k, entry := range s.csrf {
		if now.After(entry.expiresAt) {
			delete(s.csrf, k)
		}
	}
}

// CreateSession starts a session for subject and returns it.
func (s *Store) CreateSession(subject string) *Session {
	sess := &Session{
		ID:        RandomHex(sessionIDBytes),
		Subject:   subject,
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

// GetSession returns the session for id, or nil if unknown or expired.
func (s *Store) GetSession(id string) *Session {
	if id == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || s.now().After(sess.ExpiresAt) {
		return nil
	}

	return sess
}

// DeleteSession terminates the session for id. Unknown ids are ignored.
func (s *Store) DeleteSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// IssueCSRF creates a CSRF token bound to challenge and stores it.
func (s *Store) IssueCSRF(challenge string) string {
	token := RandomHex(csrfTokenBytes)

	s.mu.Lock()
	s.csrf[token] = csrfEntry{challenge: challenge, expiresAt: s.now().Add(csrfExpiry)}
	s.mu.Unlock()

	return token
}

// ConsumeCSRF retrieves and deletes a CSRF token. It returns false if the
// token is empty, unknown, expired or was issued for another challenge.
func (s *Store) ConsumeCSRF(token, challenge string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.csrf[token]
	if !ok {
		return false
	}

	delete(s.csrf, token)

	if entry.challenge != challenge {
		return false
	}

	return s.now().Before(entry.expiresAt)
}

// RegisterAPIKey adds an admin API key for userID.
func (s *Store) RegisterAPIKey(key, userID string) {
	s.mu.Lock()
	s.apiKeys = append(s.apiKeys, APIKey{UserID: userID, hash: sha256.Sum256([]byte(key))})
	s.mu.Unlock()
}

// HasAPIKeys reports whether any admin API key is registered.
func (s *Store) HasAPIKeys() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.apiKeys) > 0
}

// ValidateAPIKey returns the identity for key, or nil. Every registered
// key is compared in constant time over fixed-length hashes so neither
// the match position nor the key length leaks.
func (s *Store) ValidateAPIKey(key string) *APIKey {
	h := sha256.Sum256([]byte(key))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *APIKey

	for i := range s.apiKeys {
		if subtle.ConstantTimeCompare(h[:], s.apiKeys[i].hash[:]) == 1 {
			k := s.apiKeys[i]
			found = &k
		}
	}

	return found
}

// RandomHex generates a cryptographically random hex string of the given byte length.
func RandomHex(byteLen int) string {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}

	return hex.EncodeToString(b)
}
