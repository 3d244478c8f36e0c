package flow

import (
	"fmt"
	"sync"
	"time"

	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
)

var errChallengeUsed = fmt.Errorf("%w: challenge already used", apperrors.ErrNotFound)

type ledgerEntry struct {
	done bool
	at   time.Time
}

// ledger tracks challenge tokens that are being completed or have been
// completed by this process. At most one completion per token can hold
// a claim at a time.
type ledger struct {
	mu      sync.Mutex
	entries map[string]ledgerEntry
	ttl     time.Duration
	now     func() time.Time
}

func newLedger(ttl time.Duration) *ledger {
	return &ledger{
		entries: make(map[string]ledgerEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// claim reserves token for a completion. It fails when another
// completion is in flight or the token was already spent.
func (l *ledger) claim(token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked()

	if _, ok := l.entries[token]; ok {
		return errChallengeUsed
	}

	l.entries[token] = ledgerEntry{at: l.now()}

	return nil
}

// settle marks a claimed token as spent.
func (l *ledger) settle(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[token] = ledgerEntry{done: true, at: l.now()}
}

// release drops an unsettled claim.
func (l *ledger) release(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[token]; ok && !e.done {
		delete(l.entries, token)
	}
}

func (l *ledger) spent(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[token]

	return ok && e.done && l.now().Sub(e.at) < l.ttl
}

func (l *ledger) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

func (l *ledger) pruneLocked() {
	cutoff := l.now().Add(-l.ttl)
	for token, e := range l.entries {
		if e.at.Before(cutoff) {
			delete(l.entries, token)
		}
	}
}
