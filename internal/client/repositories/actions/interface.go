package actions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avdeyev/catchdex/internal/client/models"
)

// Repository is the durable queue of not-yet-confirmed mutations.
type Repository interface {
	// Insert appends a new action. Action ids are sortable, so insertion
	// order is recoverable with a plain ORDER BY.
	Insert(ctx context.Context, a *models.PendingAction) error

	// ListPending returns the account's pending actions, oldest first.
	ListPending(ctx context.Context, accountID int64) ([]models.PendingAction, error)

	// ListByOwner returns all of the account's actions regardless of status.
	ListByOwner(ctx context.Context, accountID int64) ([]models.PendingAction, error)

	// MarkFailed transitions an action to failed and stamps the failure
	// time. Failed actions are retained, not retried in the same pass.
	MarkFailed(ctx context.Context, id string) error

	// UpdatePayload rewrites an action's payload in place (used when an
	// offline release cancels part of a queued bulk acquire).
	UpdatePayload(ctx context.Context, id string, payload json.RawMessage) error

	// Delete removes one action; missing ids are a no-op.
	Delete(ctx context.Context, id string) error

	// DeleteByOwner removes all of an account's actions.
	DeleteByOwner(ctx context.Context, accountID int64) error

	// ReassignOwner rewrites the owner field in place (account promotion).
	ReassignOwner(ctx context.Context, fromAccountID, toAccountID int64) error

	// DeleteFinishedBefore garbage-collects non-pending actions whose
	// failure time is before the cutoff (24 h retention window).
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) error

	// CountPending returns how many actions still await sync.
	CountPending(ctx context.Context, accountID int64) (int, error)
}
