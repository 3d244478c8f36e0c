package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/alexjbarnes/hydra-login/internal/auth"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for hydra-login.
type Config struct {
	// Hydra endpoints. The admin API drives challenges and clients; the
	// public API is only probed for readiness.
	HydraAdminURL  string `env:"HYDRA_ADMIN_URL"`
	HydraPublicURL string `env:"HYDRA_PUBLIC_URL"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:":3000"`

	// Environment controls log format and the Secure cookie flag.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// StatePath is the bbolt file. Empty means ~/.hydra-login/state.db.
	StatePath string `env:"STATE_PATH"`

	// End-user credentials and admin API keys.
	AuthUsers    string `env:"AUTH_USERS"`
	AdminAPIKeys string `env:"ADMIN_API_KEYS"`

	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
	RememberFor     time.Duration `env:"REMEMBER_FOR" envDefault:"1h"`
	ClientPageSize  int           `env:"CLIENT_PAGE_SIZE" envDefault:"25"`
	ReadRetries     int           `env:"READ_RETRIES" envDefault:"3"`
	SyncConcurrency int           `env:"SYNC_CONCURRENCY" envDefault:"4"`
	RefreshOnStart  bool          `env:"REFRESH_ON_START" envDefault:"true"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"24h"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. It holds password hashes and admin keys.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
// Everything the server needs must be set.
func Load() (*Config, error) {
	return load((*Config).validate)
}

// LoadForSync reads the configuration the sync command needs. User
// credentials are not required.
func LoadForSync() (*Config, error) {
	return load(func(c *Config) error {
		if err := c.validateHydra(); err != nil {
			return err
		}

		return c.validateTuning()
	})
}

// LoadForState reads the configuration needed to open the local state
// only, as the clients command does. Hydra and user settings are not
// required.
func LoadForState() (*Config, error) {
	return load((*Config).validateTuning)
}

func load(check func(*Config) error) (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.HydraAdminURL = strings.TrimRight(cfg.HydraAdminURL, "/")
	cfg.HydraPublicURL = strings.TrimRight(cfg.HydraPublicURL, "/")

	if err := check(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.StatePath != "" {
		abs, err := filepath.Abs(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("resolving state path to absolute path: %w", err)
		}

		cfg.StatePath = abs
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.validateHydra(); err != nil {
		return err
	}

	if c.AuthUsers == "" {
		return fmt.Errorf("AUTH_USERS is required")
	}

	return c.validateTuning()
}

func (c *Config) validateHydra() error {
	if c.HydraAdminURL == "" {
		return fmt.Errorf("HYDRA_ADMIN_URL is required")
	}

	if err := checkBaseURL("HYDRA_ADMIN_URL", c.HydraAdminURL); err != nil {
		return err
	}

	if c.HydraPublicURL == "" {
		return fmt.Errorf("HYDRA_PUBLIC_URL is required")
	}

	return checkBaseURL("HYDRA_PUBLIC_URL", c.HydraPublicURL)
}

func (c *Config) validateTuning() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.RememberFor < 0 {
		return fmt.Errorf("REMEMBER_FOR must not be negative")
	}

	if c.ClientPageSize <= 0 {
		return fmt.Errorf("CLIENT_PAGE_SIZE must be positive")
	}

	if c.ReadRetries < 1 {
		return fmt.Errorf("READ_RETRIES must be at least 1")
	}

	if c.SyncConcurrency < 1 {
		return fmt.Errorf("SYNC_CONCURRENCY must be at least 1")
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	return nil
}

func checkBaseURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL", name)
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// APIKeyEntry holds a pre-configured admin API key and the identity it
// authenticates, parsed from ADMIN_API_KEYS.
type APIKeyEntry struct {
	UserID string
	Key    string
}

// ParseAdminAPIKeys parses the ADMIN_API_KEYS string.
// Format: "admin1:hl_key1,admin2:hl_key2"
func (c *Config) ParseAdminAPIKeys() ([]APIKeyEntry, error) {
	if c.AdminAPIKeys == "" {
		return nil, nil
	}

	seenUsers := make(map[string]struct{})

	var entries []APIKeyEntry

	for _, pair := range strings.Split(c.AdminAPIKeys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		idx := strings.Index(pair, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid API key entry (missing ':')")
		}

		userID := pair[:idx]

		key := pair[idx+1:]
		if userID == "" || key == "" {
			return nil, fmt.Errorf("empty user or key in entry %d", len(entries)+1)
		}

		if !strings.HasPrefix(key, auth.APIKeyPrefix) {
			return nil, fmt.Errorf("API key must start with %q prefix in entry %d", auth.APIKeyPrefix, len(entries)+1)
		}

		if len(key) < auth.APIKeyMinLen {
			return nil, fmt.Errorf("API key too short in entry %d (minimum %d characters)", len(entries)+1, auth.APIKeyMinLen)
		}

		suffix := key[len(auth.APIKeyPrefix):]
		if _, err := hex.DecodeString(suffix); err != nil {
			return nil, fmt.Errorf("API key contains non-hex characters after %q prefix in entry %d", auth.APIKeyPrefix, len(entries)+1)
		}

		if _, dup := seenUsers[userID]; dup {
			return nil, fmt.Errorf("duplicate user_id %q in ADMIN_API_KEYS", userID)
		}

		seenUsers[userID] = struct{}{}
		entries = append(entries, APIKeyEntry{UserID: userID, Key: key})
	}

	return entries, nil
}

// ParseUsers parses the AUTH_USERS string into a UserCredentials map.
// Format: "user1:bcrypt_hash1,user2:bcrypt_hash2". Usernames are
// NFC-normalized so the same name typed on different platforms matches.
func (c *Config) ParseUsers() (auth.UserCredentials, error) {
	users := make(auth.UserCredentials)
	if c.AuthUsers == "" {
		return users, nil
	}

	for _, pair := range strings.Split(c.AuthUsers, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		// bcrypt hashes use '$' separators, so the first colon always
		// ends the username.
		idx := strings.Index(pair, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid user entry (missing ':')")
		}

		username := auth.NormalizeUsername(pair[:idx])

		hash := pair[idx+1:]
		if username == "" || hash == "" {
			return nil, fmt.Errorf("empty username or hash in entry %d", len(users)+1)
		}

		if !auth.IsBcryptHash(hash) {
			return nil, fmt.Errorf("password for %q is not a bcrypt hash (use the hash-password command)", username)
		}

		if _, dup := users[username]; dup {
			return nil, fmt.Errorf("duplicate username %q in AUTH_USERS", username)
		}

		users[username] = hash
	}

	return users, nil
}
