package registry

import (
	"time"

	"github.com/alexjbarnes/hydra-login/internal/models"
)

// RefreshDecision is the outcome of comparing a local record against the
// remote one during a refresh. The caller performs the write.
type RefreshDecision int

const (
	// DecisionSkip means the local record already matches the remote.
	DecisionSkip RefreshDecision = iota

	// DecisionCreate means no local record exists yet.
	DecisionCreate

	// DecisionUpdate means the local record differs and must be
	// overwritten from the remote one.
	DecisionUpdate
)

func (d RefreshDecision) String() string {
	switch d {
	case DecisionCreate:
		return "create"
	case DecisionUpdate:
		return "update"
	default:
		return "skip"
	}
}

// Reconcile decides what a refresh does with one remote record and
// returns the record to persist. The remote record is authoritative for
// every client attribute. Hydra only reveals a secret at creation time,
// so an empty remote secret keeps the local one. This is a pure function
// with no I/O.
//
// Parameters:
//   - local: the stored record, or nil when none exists
//   - remote: the normalized record listed by Hydra
//   - now: the timestamp applied to created or changed records
func Reconcile(local *models.ClientRecord, remote models.ClientRecord, now time.Time) (RefreshDecision, models.ClientRecord) {
	merged := remote.Clone()

	if local == nil {
		merged.CreatedAt = now
		merged.UpdatedAt = now

		return DecisionCreate, merged
	}

	if merged.Secret == "" {
		merged.Secret = local.Secret
	}

	merged.CreatedAt = local.CreatedAt
	merged.UpdatedAt = local.UpdatedAt

	if local.SameContent(merged) {
		return DecisionSkip, *local
	}

	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = now
	}

	merged.UpdatedAt = now

	return DecisionUpdate, merged
}
