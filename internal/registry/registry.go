// Package registry keeps the local client store convergent with the
// clients registered in Hydra. Hydra is authoritative: every local
// mutation is pushed first and persisted only after Hydra confirmed it.
package registry

//go:generate mockgen -source=registry.go -destination=mock_gateway.go -package=registry -exclude_interfaces=Repository

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
	"github.com/alexjbarnes/hydra-login/internal/models"
)

const (
	// DefaultPageSize is the number of clients requested per list call.
	DefaultPageSize = 25

	// DefaultReadRetries is how many times a failed page read is retried.
	DefaultReadRetries = 3

	// DefaultConcurrency bounds the parallel pushes of a bulk sync.
	DefaultConcurrency = 4

	// DefaultRetryInterval is the first backoff delay between page reads.
	DefaultRetryInterval = 200 * time.Millisecond
)

// Gateway is the subset of the Hydra admin API the registry needs.
type Gateway interface {
	ListClients(ctx context.Context, limit, offset int) ([]models.ClientRecord, error)
	GetClient(ctx context.Context, clientID string) (models.ClientRecord, error)
	CreateClient(ctx context.Context, rec models.ClientRecord) (models.ClientRecord, error)
	UpdateClient(ctx context.Context, clientID string, rec models.ClientRecord) (models.ClientRecord, error)
	DeleteClient(ctx context.Context, clientID string) error
}

// Repository stores client records keyed by client ID. Each method must
// apply atomically.
type Repository interface {
	GetClient(clientID string) (*models.ClientRecord, error)
	UpsertClient(rec models.ClientRecord) error
	DeleteClient(clientID string) error
	AllClients() ([]models.ClientRecord, error)
	IsRetired(clientID string) (bool, error)
	SetLastRefresh(t time.Time) error
}

// Op names the mutation passed to hooks.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpSync   Op = "sync"
)

// Hooks intercept mutations. PreCommit runs before the remote call and
// can veto it by returning an error. PostCommit runs after both the
// remote call and the local write succeeded.
type Hooks struct {
	PreCommit  func(ctx context.Context, op Op, rec models.ClientRecord) error
	PostCommit func(ctx context.Context, op Op, rec models.ClientRecord)
}

// Config tunes a Registry. Zero values select the defaults; a negative
// ReadRetries disables read retries.
type Config struct {
	PageSize      int
	ReadRetries   int
	Concurrency   int
	RetryInterval time.Duration
	Hooks         Hooks
}

// Registry reconciles the local Repository with Hydra.
type Registry struct {
	gw     Gateway
	repo   Repository
	logger *slog.Logger
	hooks  Hooks
	locks  *keyedMutex
	now    func() time.Time

	pageSize      int
	readRetries   int
	concurrency   int
	retryInterval time.Duration
}

// New creates a Registry.
func New(gw Gateway, repo Repository, logger *slog.Logger, cfg Config) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	switch {
	case cfg.ReadRetries == 0:
		cfg.ReadRetries = DefaultReadRetries
	case cfg.ReadRetries < 0:
		cfg.ReadRetries = 0
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}

	return &Registry{
		gw:            gw,
		repo:          repo,
		logger:        logger,
		hooks:         cfg.Hooks,
		locks:         newKeyedMutex(),
		now:           func() time.Time { return time.Now().UTC() },
		pageSize:      cfg.PageSize,
		readRetries:   cfg.ReadRetries,
		concurrency:   cfg.Concurrency,
		retryInterval: cfg.RetryInterval,
	}
}

// RefreshResult counts what a refresh did to the local store.
type RefreshResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Pruned    int `json:"pruned"`
}

func (res *RefreshResult) count(d RefreshDecision) {
	switch d {
	case DecisionCreate:
		res.Created++
	case DecisionUpdate:
		res.Updated++
	default:
		res.Unchanged++
	}
}

// List returns every locally stored client.
func (r *Registry) List() ([]models.ClientRecord, error) {
	clients, err := r.repo.AllClients()
	if err != nil {
		return nil, fmt.Errorf("%w: listing clients: %w", apperrors.ErrStorage, err)
	}

	return clients, nil
}

// Get returns the locally stored client.
func (r *Registry) Get(clientID string) (models.ClientRecord, error) {
	rec, err := r.repo.GetClient(clientID)
	if err != nil {
		return models.ClientRecord{}, fmt.Errorf("%w: reading client %s: %w", apperrors.ErrStorage, clientID, err)
	}

	if rec == nil {
		return models.ClientRecord{}, fmt.Errorf("client %s: %w", clientID, apperrors.ErrNotFound)
	}

	return *rec, nil
}

// RefreshAll pulls every client from Hydra into the local store. Records
// that already match are not written, so running it twice without a
// remote change leaves the store untouched the second time. Local
// records missing from a complete listing are pruned. Per-record
// failures do not stop the refresh; they are returned together.
func (r *Registry) RefreshAll(ctx context.Context) (RefreshResult, error) {
	var (
		result RefreshResult
		errs   *multierror.Error
	)

	started := r.now()
	seen := make(map[string]bool)
	complete := true

	for offset := 0; ; {
		page, err := r.listPage(ctx, offset)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("listing clients at offset %d: %w", offset, err))
			complete = false

			break
		}

		for _, remote := range page {
			if remote.ClientID == "" || seen[remote.ClientID] {
				continue
			}

			seen[remote.ClientID] = true

			decision, err := r.refreshOne(remote)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}

			result.count(decision)
		}

		if len(page) < r.pageSize {
			break
		}

		offset += len(page)
	}

	if complete {
		if err := r.prune(ctx, seen, started, &result); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		r.logger.Warn("client refresh finished with errors",
			slog.Int("created", result.Created),
			slog.Int("updated", result.Updated),
			slog.Int("errors", errs.Len()),
		)

		return result, err
	}

	if err := r.repo.SetLastRefresh(r.now()); err != nil {
		return result, fmt.Errorf("%w: recording refresh time: %w", apperrors.ErrStorage, err)
	}

	r.logger.Info("client refresh complete",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("pruned", result.Pruned),
	)

	return result, nil
}

// listPage reads one page, retrying transport failures with backoff.
// Anything else is returned on the first attempt.
func (r *Registry) listPage(ctx context.Context, offset int) ([]models.ClientRecord, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = r.retryInterval
	expBackoff.MaxInterval = 20 * r.retryInterval
	expBackoff.Reset()

	operation := func() ([]models.ClientRecord, error) {
		page, err := r.gw.ListClients(ctx, r.pageSize, offset)
		if err != nil && !apperrors.Retryable(err) {
			return nil, backoff.Permanent(err)
		}

		return page, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(r.readRetries+1)), // #nosec G115 -- readRetries is clamped to >= 0
		backoff.WithNotify(func(err error, d time.Duration) {
			r.logger.Warn("retrying client list",
				slog.Int("offset", offset),
				slog.Duration("after", d),
				slog.String("error", err.Error()),
			)
		}),
	)
}

func (r *Registry) refreshOne(remote models.ClientRecord) (RefreshDecision, error) {
	unlock := r.locks.lock(remote.ClientID)
	defer unlock()

	local, err := r.repo.GetClient(remote.ClientID)
	if err != nil {
		return DecisionSkip, fmt.Errorf("%w: reading client %s: %w", apperrors.ErrStorage, remote.ClientID, err)
	}

	decision, rec := Reconcile(local, remote, r.now())
	if decision == DecisionSkip {
		return decision, nil
	}

	if err := r.repo.UpsertClient(rec); err != nil {
		return decision, fmt.Errorf("%w: storing client %s: %w", apperrors.ErrStorage, remote.ClientID, err)
	}

	r.logger.Debug("client refreshed", slog.String("client_id", rec.ClientID), slog.String("decision", decision.String()))

	return decision, nil
}

// prune removes local records Hydra no longer lists. A listing paged
// by offset can skip a record when Hydra deletes another one between
// two page reads, so every candidate is confirmed with a direct read
// first: a client Hydra still has is refreshed instead, and only
// NotFound removes it. Records written after the refresh started are
// kept, since the listing cannot have seen them.
func (r *Registry) prune(ctx context.Context, seen map[string]bool, started time.Time, result *RefreshResult) error {
	local, err := r.repo.AllClients()
	if err != nil {
		return fmt.Errorf("%w: listing local clients: %w", apperrors.ErrStorage, err)
	}

	var errs *multierror.Error

	for _, rec := range local {
		if seen[rec.ClientID] || rec.UpdatedAt.After(started) {
			continue
		}

		remote, err := r.gw.GetClient(ctx, rec.ClientID)
		switch {
		case err == nil:
			decision, err := r.refreshOne(remote)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}

			r.logger.Debug("client missing from listing still exists", slog.String("client_id", rec.ClientID))
			result.count(decision)
		case apperrors.KindOf(err) == apperrors.KindNotFound:
			removed, err := r.pruneOne(rec.ClientID, started)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}

			if removed {
				result.Pruned++
			}
		default:
			errs = multierror.Append(errs, fmt.Errorf("confirming client %s before prune: %w", rec.ClientID, err))
		}
	}

	return errs.ErrorOrNil()
}

func (r *Registry) pruneOne(clientID string, started time.Time) (bool, error) {
	unlock := r.locks.lock(clientID)
	defer unlock()

	current, err := r.repo.GetClient(clientID)
	if err != nil {
		return false, fmt.Errorf("%w: reading client %s: %w", apperrors.ErrStorage, clientID, err)
	}

	if current == nil || current.UpdatedAt.After(started) {
		return false, nil
	}

	if err := r.repo.DeleteClient(clientID); err != nil {
		return false, fmt.Errorf("%w: pruning client %s: %w", apperrors.ErrStorage, clientID, err)
	}

	r.logger.Info("pruned client missing from hydra", slog.String("client_id", clientID))

	return true, nil
}

// CreateLocal registers a draft with Hydra and stores the record Hydra
// returns, including the assigned id and secret. Nothing is written
// locally unless Hydra accepted the client. If the local write fails
// the remote client is deleted again.
func (r *Registry) CreateLocal(ctx context.Context, draft models.ClientRecord) (models.ClientRecord, error) {
	draft = draft.Clone()
	draft.Normalize()
	draft.CreatedAt, draft.UpdatedAt = time.Time{}, time.Time{}

	if err := draft.Validate(); err != nil {
		return models.ClientRecord{}, err
	}

	if draft.ClientID != "" {
		unlock := r.locks.lock(draft.ClientID)
		defer unlock()

		if err := r.checkNewID(draft.ClientID); err != nil {
			return models.ClientRecord{}, err
		}
	}

	if err := r.preCommit(ctx, OpCreate, draft); err != nil {
		return models.ClientRecord{}, err
	}

	created, err := r.gw.CreateClient(ctx, draft)
	if err != nil {
		return models.ClientRecord{}, fmt.Errorf("creating client: %w", err)
	}

	if created.ClientID == "" {
		return models.ClientRecord{}, fmt.Errorf("creating client: %w: response carried no client id", apperrors.ErrRejected)
	}

	if draft.ClientID == "" {
		unlock := r.locks.lock(created.ClientID)
		defer unlock()
	}

	if created.Secret == "" {
		created.Secret = draft.Secret
	}

	now := r.now()
	created.CreatedAt, created.UpdatedAt = now, now

	if err := r.repo.UpsertClient(created); err != nil {
		r.compensateCreate(ctx, created.ClientID)
		return models.ClientRecord{}, fmt.Errorf("%w: storing client %s: %w", apperrors.ErrStorage, created.ClientID, err)
	}

	r.postCommit(ctx, OpCreate, created)
	r.logger.Info("client created", slog.String("client_id", created.ClientID), slog.String("name", created.Name))

	return created, nil
}

func (r *Registry) checkNewID(clientID string) error {
	retired, err := r.repo.IsRetired(clientID)
	if err != nil {
		return fmt.Errorf("%w: checking client %s: %w", apperrors.ErrStorage, clientID, err)
	}

	if retired {
		return fmt.Errorf("%w: client id %q was deleted and cannot be reused", apperrors.ErrValidation, clientID)
	}

	existing, err := r.repo.GetClient(clientID)
	if err != nil {
		return fmt.Errorf("%w: checking client %s: %w", apperrors.ErrStorage, clientID, err)
	}

	if existing != nil {
		return fmt.Errorf("%w: client id %q already exists", apperrors.ErrValidation, clientID)
	}

	return nil
}

func (r *Registry) compensateCreate(ctx context.Context, clientID string) {
	if err := r.gw.DeleteClient(context.WithoutCancel(ctx), clientID); err != nil {
		r.logger.Error("could not remove client after local write failed",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
	}
}

// UpdateLocal merges edits onto the current record and pushes the result
// to Hydra. The local record changes only after Hydra accepted the
// update; on any remote failure it is left exactly as it was. A client
// known to Hydra but not yet stored locally is fetched first.
func (r *Registry) UpdateLocal(ctx context.Context, clientID string, edits models.ClientEdits) (models.ClientRecord, error) {
	if strings.TrimSpace(clientID) == "" {
		return models.ClientRecord{}, fmt.Errorf("%w: client id is required", apperrors.ErrValidation)
	}

	unlock := r.locks.lock(clientID)
	defer unlock()

	current, err := r.repo.GetClient(clientID)
	if err != nil {
		return models.ClientRecord{}, fmt.Errorf("%w: reading client %s: %w", apperrors.ErrStorage, clientID, err)
	}

	if current == nil {
		remote, err := r.gw.GetClient(ctx, clientID)
		if err != nil {
			return models.ClientRecord{}, fmt.Errorf("fetching client %s: %w", clientID, err)
		}

		current = &remote
	}

	merged := edits.Apply(*current)
	merged.ClientID = clientID

	if err := merged.Validate(); err != nil {
		return models.ClientRecord{}, err
	}

	if err := r.preCommit(ctx, OpUpdate, merged); err != nil {
		return models.ClientRecord{}, err
	}

	updated, err := r.push(ctx, clientID, merged, *current)
	if err != nil {
		return models.ClientRecord{}, err
	}

	r.postCommit(ctx, OpUpdate, updated)
	r.logger.Info("client updated", slog.String("client_id", clientID))

	return updated, nil
}

// push sends rec to Hydra and persists what Hydra returned. The caller
// holds the lock for clientID. When the local write fails, prev is
// pushed back so both sides keep the old state.
func (r *Registry) push(ctx context.Context, clientID string, rec, prev models.ClientRecord) (models.ClientRecord, error) {
	updated, err := r.gw.UpdateClient(ctx, clientID, rec)
	if err != nil {
		return models.ClientRecord{}, fmt.Errorf("updating client %s: %w", clientID, err)
	}

	updated.ClientID = clientID
	if updated.Secret == "" {
		updated.Secret = rec.Secret
	}

	updated.CreatedAt = prev.CreatedAt
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = r.now()
	}

	updated.UpdatedAt = r.now()

	if err := r.repo.UpsertClient(updated); err != nil {
		if _, rerr := r.gw.UpdateClient(context.WithoutCancel(ctx), clientID, prev); rerr != nil {
			r.logger.Error("could not restore client after local write failed",
				slog.String("client_id", clientID),
				slog.String("error", rerr.Error()),
			)
		}

		return models.ClientRecord{}, fmt.Errorf("%w: storing client %s: %w", apperrors.ErrStorage, clientID, err)
	}

	return updated, nil
}

// DeleteLocal deletes the client in Hydra and then locally. The id is
// retired and refused by later creates.
func (r *Registry) DeleteLocal(ctx context.Context, clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		return fmt.Errorf("%w: client id is required", apperrors.ErrValidation)
	}

	unlock := r.locks.lock(clientID)
	defer unlock()

	current, err := r.repo.GetClient(clientID)
	if err != nil {
		return fmt.Errorf("%w: reading client %s: %w", apperrors.ErrStorage, clientID, err)
	}

	rec := models.ClientRecord{ClientID: clientID}
	if current != nil {
		rec = *current
	}

	if err := r.preCommit(ctx, OpDelete, rec); err != nil {
		return err
	}

	if err := r.gw.DeleteClient(ctx, clientID); err != nil {
		return fmt.Errorf("deleting client %s: %w", clientID, err)
	}

	if err := r.repo.DeleteClient(clientID); err != nil {
		return fmt.Errorf("%w: removing client %s: %w", apperrors.ErrStorage, clientID, err)
	}

	r.postCommit(ctx, OpDelete, rec)
	r.logger.Info("client deleted", slog.String("client_id", clientID))

	return nil
}

// BulkResult reports a bulk operation per client ID.
type BulkResult struct {
	Succeeded []string
	Failed    map[string]error
}

// SucceededCount returns the number of ids that succeeded.
func (b BulkResult) SucceededCount() int { return len(b.Succeeded) }

// FailedCount returns the number of ids that failed.
func (b BulkResult) FailedCount() int { return len(b.Failed) }

// Err combines the failures, ordered by client ID, or returns nil.
func (b BulkResult) Err() error {
	ids := make([]string, 0, len(b.Failed))
	for id := range b.Failed {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	var errs *multierror.Error
	for _, id := range ids {
		errs = multierror.Append(errs, b.Failed[id])
	}

	return errs.ErrorOrNil()
}

// BulkSync pushes each local record to Hydra independently. A failure
// for one id neither stops nor undoes the others.
func (r *Registry) BulkSync(ctx context.Context, ids []string) BulkResult {
	return r.bulk(ctx, "bulk sync", ids, r.syncOne)
}

// BulkDelete deletes each client like DeleteLocal, independently of
// the others. Ids deleted before a failure stay deleted.
func (r *Registry) BulkDelete(ctx context.Context, ids []string) BulkResult {
	return r.bulk(ctx, "bulk delete", ids, r.DeleteLocal)
}

func (r *Registry) bulk(ctx context.Context, name string, ids []string, fn func(context.Context, string) error) BulkResult {
	result := BulkResult{Failed: make(map[string]error)}

	var (
		mu seenMu
		g  errgroup.Group
	)

	g.SetLimit(r.concurrency)

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if !mu.first(id) {
			continue
		}

		g.Go(func() error {
			err := fn(ctx, id)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Failed[id] = err
			} else {
				result.Succeeded = append(result.Succeeded, id)
			}

			return nil
		})
	}

	_ = g.Wait()

	slices.Sort(result.Succeeded)

	r.logger.Info(name+" finished",
		slog.Int("succeeded", result.SucceededCount()),
		slog.Int("failed", result.FailedCount()),
	)

	return result
}

func (r *Registry) syncOne(ctx context.Context, clientID string) error {
	if clientID == "" {
		return fmt.Errorf("%w: client id is required", apperrors.ErrValidation)
	}

	unlock := r.locks.lock(clientID)
	defer unlock()

	current, err := r.repo.GetClient(clientID)
	if err != nil {
		return fmt.Errorf("%w: reading client %s: %w", apperrors.ErrStorage, clientID, err)
	}

	if current == nil {
		return fmt.Errorf("client %s: %w", clientID, apperrors.ErrNotFound)
	}

	if err := current.Validate(); err != nil {
		return fmt.Errorf("client %s: %w", clientID, err)
	}

	if err := r.preCommit(ctx, OpSync, *current); err != nil {
		return err
	}

	updated, err := r.push(ctx, clientID, *current, *current)
	if err != nil {
		return err
	}

	r.postCommit(ctx, OpSync, updated)

	return nil
}

func (r *Registry) preCommit(ctx context.Context, op Op, rec models.ClientRecord) error {
	if r.hooks.PreCommit == nil {
		return nil
	}

	if err := r.hooks.PreCommit(ctx, op, rec); err != nil {
		return fmt.Errorf("%s client %s vetoed: %w", op, rec.ClientID, err)
	}

	return nil
}

func (r *Registry) postCommit(ctx context.Context, op Op, rec models.ClientRecord) {
	if r.hooks.PostCommit != nil {
		r.hooks.PostCommit(ctx, op, rec)
	}
}

// seenMu guards bulk results and drops duplicate ids.
type seenMu struct {
	sync.Mutex
	seen map[string]bool
}

func (s *seenMu) first(id string) bool {
	s.Lock()
	defer s.Unlock()

	if s.seen == nil {
		s.seen = make(map[string]bool)
	}

	if s.seen[id] {
		return false
	}

	s.seen[id] = true

	return true
}
