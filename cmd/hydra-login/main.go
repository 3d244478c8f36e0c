package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexjbarnes/hydra-login/internal/auth"
	"github.com/alexjbarnes/hydra-login/internal/config"
	"github.com/alexjbarnes/hydra-login/internal/flow"
	"github.com/alexjbarnes/hydra-login/internal/hydra"
	"github.com/alexjbarnes/hydra-login/internal/logging"
	"github.com/alexjbarnes/hydra-login/internal/models"
	"github.com/alexjbarnes/hydra-login/internal/registry"
	"github.com/alexjbarnes/hydra-login/internal/server"
	"github.com/alexjbarnes/hydra-login/internal/state"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var Version = "dev"

var (
	_ flow.Gateway        = (*hydra.Client)(nil)
	_ flow.Authenticator  = auth.UserCredentials(nil)
	_ registry.Gateway    = (*hydra.Client)(nil)
	_ registry.Repository = (*state.State)(nil)
)

const usage = `usage: hydra-login [command]

commands:
  (none)          run the login/consent provider
  hash-password   read a password on stdin and print its bcrypt hash
  sync            refresh the local client registry from Hydra once
  clients         print the local client registry as YAML

sync and clients open STATE_PATH exclusively and fail while the server
holds it. Stop the server first, or use POST /clients/refresh and
GET /clients on the running server instead. sync needs the Hydra URLs;
clients needs only STATE_PATH. Neither needs AUTH_USERS.
`

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error

	switch cmd {
	case "":
		err = run()
	case "hash-password":
		// Handled before config loading so it works on a fresh install.
		err = hashPassword(os.Stdin, os.Stdout)
	case "sync":
		err = syncOnce()
	case "clients":
		err = exportClients(os.Stdout)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stderr, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func hashPassword(in io.Reader, out io.Writer) error {
	fmt.Fprint(os.Stderr, "Enter password: ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return errors.New("no input")
	}

	password := scanner.Text()
	if password == "" {
		return errors.New("empty password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	fmt.Fprintln(out, string(hash))

	return nil
}

func openState(cfg *config.Config) (*state.State, error) {
	if cfg.StatePath != "" {
		return state.LoadAt(cfg.StatePath)
	}

	return state.Load()
}

func newHydraClient(cfg *config.Config) (*hydra.Client, error) {
	client, err := hydra.NewClient(cfg.HydraAdminURL, cfg.HydraPublicURL, hydra.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return nil, fmt.Errorf("creating hydra client: %w", err)
	}

	return client, nil
}

func newRegistry(cfg *config.Config, client *hydra.Client, st *state.State, logger *slog.Logger) *registry.Registry {
	return registry.New(client, st, logger.With(slog.String("component", "registry")), registry.Config{
		PageSize:    cfg.ClientPageSize,
		ReadRetries: cfg.ReadRetries,
		Concurrency: cfg.SyncConcurrency,
		Hooks: registry.Hooks{
			PostCommit: func(_ context.Context, op registry.Op, rec models.ClientRecord) {
				logger.Debug("client committed", slog.String("op", string(op)), slog.String("client_id", rec.ClientID))
			},
		},
	})
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	logger.Info("hydra-login starting",
		slog.String("version", Version),
		slog.String("hydra_admin", cfg.HydraAdminURL),
		slog.String("environment", cfg.Environment),
	)

	users, err := cfg.ParseUsers()
	if err != nil {
		return fmt.Errorf("parsing auth users: %w", err)
	}

	keys, err := cfg.ParseAdminAPIKeys()
	if err != nil {
		return fmt.Errorf("parsing admin API keys: %w", err)
	}

	appState, err := openState(cfg)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	defer appState.Close()

	client, err := newHydraClient(cfg)
	if err != nil {
		return err
	}

	fl := flow.New(client, users, logger.With(slog.String("component", "flow")), flow.Config{
		RememberFor: cfg.RememberFor,
	})
	reg := newRegistry(cfg, client, appState, logger)

	store := auth.NewStore(cfg.SessionTTL)
	defer store.Stop()

	for _, k := range keys {
		store.RegisterAPIKey(k.Key, k.UserID)
	}

	if len(keys) == 0 {
		logger.Warn("no admin API keys configured, client administration is disabled")
	}

	httpServer := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: server.NewMux(server.MuxConfig{
			Flow:          fl,
			Registry:      reg,
			Store:         store,
			Health:        client,
			Logger:        logger,
			SecureCookies: cfg.IsProduction(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RefreshOnStart {
		g.Go(func() error {
			// A failed startup refresh is not fatal; the admin API can
			// retry it later.
			if _, err := reg.RefreshAll(gctx); err != nil {
				logger.Warn("startup client refresh failed", slog.String("error", err.Error()))
			}

			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("listen", cfg.ListenAddr),
			slog.Int("users", len(users)),
			slog.Int("admin_keys", len(keys)),
			slog.Int("clients", appState.ClientCount()),
		)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	return g.Wait()
}

// syncOnce runs a single registry refresh and exits.
func syncOnce() error {
	cfg, err := config.LoadForSync()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)

	appState, err := openState(cfg)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	defer appState.Close()

	client, err := newHydraClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := newRegistry(cfg, client, appState, logger).RefreshAll(ctx)

	fmt.Printf("%d created, %d updated, %d unchanged, %d pruned\n",
		res.Created, res.Updated, res.Unchanged, res.Pruned)

	return err
}

// clientExport is the YAML document written by the clients command.
type clientExport struct {
	ExportedAt  time.Time             `yaml:"exported_at"`
	LastRefresh time.Time             `yaml:"last_refresh,omitempty"`
	Clients     []models.ClientRecord `yaml:"clients"`
}

func exportClients(out io.Writer) error {
	cfg, err := config.LoadForState()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	appState, err := openState(cfg)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	defer appState.Close()

	recs, err := appState.AllClients()
	if err != nil {
		return fmt.Errorf("reading clients: %w", err)
	}

	doc := clientExport{
		ExportedAt:  time.Now().UTC(),
		LastRefresh: appState.LastRefresh(),
		Clients:     make([]models.ClientRecord, 0, len(recs)),
	}

	for _, rec := range recs {
		doc.Clients = append(doc.Clients, rec.Redacted())
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)

	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding clients: %w", err)
	}

	return enc.Close()
}
