package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/alexjbarnes/hydra-login/internal/models"
	bolt "go.etcd.io/bbolt"
	bolterrors "go.etcd.io/bbolt/errors"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.hydra-login/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	// Client secrets are stored in it.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket     = []byte("app")
	clientsBucket = []byte("oauth_clients")
	retiredBucket = []byte("retired_clients")

	lastRefreshKey = []byte("last_refresh")
)

// State wraps a bbolt database holding the local client registry.
// Every method runs in a single bolt transaction, so readers never see
// a partially written record.
type State struct {
	db *bolt.DB
}

// Load opens the state database at the default location, creating it
// if it does not exist.
func Load() (*State, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}

	return LoadAt(path)
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	return loadAt(path, stateOpenTimeout)
}

func loadAt(path string, timeout time.Duration) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: timeout})
	if errors.Is(err, bolterrors.ErrTimeout) {
		return nil, fmt.Errorf("opening state db: %s is locked by another process (a running server holds it): %w", path, err)
	}

	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{appBucket, clientsBucket, retiredBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// DefaultPath returns ~/.hydra-login/state.db.
func DefaultPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(dir, ".hydra-login", "state.db"), nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// GetClient returns the client stored under clientID, or nil if not found.
func (s *State) GetClient(clientID string) (*models.ClientRecord, error) {
	var rec *models.ClientRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(clientsBucket).Get([]byte(clientID))
		if v == nil {
			return nil
		}

		var w models.WireClient
		if err := json.Unmarshal(v, &w); err != nil {
			return fmt.Errorf("decoding client %s: %w", clientID, err)
		}

		r := w.Record()
		rec = &r

		return nil
	})

	return rec, err
}

// UpsertClient stores rec under its client ID. An ID that was retired
// by an earlier delete is cleared from the retired set, since the
// authorization server chose to reuse it.
func (s *State) UpsertClient(rec models.ClientRecord) error {
	if rec.ClientID == "" {
		return fmt.Errorf("client id is required for persistence")
	}

	data, err := json.Marshal(rec.ToWire())
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(retiredBucket).Delete([]byte(rec.ClientID)); err != nil {
			return err
		}

		return tx.Bucket(clientsBucket).Put([]byte(rec.ClientID), data)
	})
}

// DeleteClient removes the client and records its ID as retired.
func (s *State) DeleteClient(clientID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(clientsBucket).Delete([]byte(clientID)); err != nil {
			return err
		}

		stamp, err := time.Now().UTC().MarshalText()
		if err != nil {
			return err
		}

		return tx.Bucket(retiredBucket).Put([]byte(clientID), stamp)
	})
}

// AllClients returns every stored client ordered by client ID.
func (s *State) AllClients() ([]models.ClientRecord, error) {
	var clients []models.ClientRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(clientsBucket).ForEach(func(k, v []byte) error {
			var w models.WireClient
			if err := json.Unmarshal(v, &w); err != nil {
				return fmt.Errorf("decoding client %s: %w", k, err)
			}

			clients = append(clients, w.Record())

			return nil
		})
	})

	return clients, err
}

// IsRetired reports whether clientID was deleted through this registry.
func (s *State) IsRetired(clientID string) (bool, error) {
	retired := false

	err := s.db.View(func(tx *bolt.Tx) error {
		retired = tx.Bucket(retiredBucket).Get([]byte(clientID)) != nil
		return nil
	})

	return retired, err
}

// ClientCount returns the number of stored clients.
func (s *State) ClientCount() int {
	count := 0
	_ = s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(clientsBucket).Stats().KeyN
		return nil
	})

	return count
}

// LastRefresh returns the time of the last complete registry refresh,
// or the zero time if none has completed.
func (s *State) LastRefresh() time.Time {
	var t time.Time

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(lastRefreshKey)
		if v == nil {
			return nil
		}

		return t.UnmarshalText(v)
	})

	return t
}

// SetLastRefresh records the time of a complete registry refresh.
func (s *State) SetLastRefresh(t time.Time) error {
	data, err := t.UTC().MarshalText()
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(lastRefreshKey, data)
	})
}
