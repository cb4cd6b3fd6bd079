package actions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avdeyev/catchdex/internal/client/models"
	"github.com/avdeyev/catchdex/internal/common"
	"github.com/avdeyev/catchdex/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, a *models.PendingAction) error {
	query := `INSERT INTO pending_actions (id, account_id, kind, payload, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.AccountID, string(a.Kind), []byte(a.Payload), string(a.Status), a.CreatedAt.UnixMilli())
	if err != nil {
		return common.WrapStorage("insert pending action", err)
	}
	return nil
}

func (r *SQLiteRepository) queryActions(ctx context.Context, query string, args ...any) ([]models.PendingAction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapStorage("select pending actions", err)
	}
	defer rows.Close()

	var result []models.PendingAction
	for rows.Next() {
		var a models.PendingAction
		var kind, status string
		var payload []byte
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.AccountID, &kind, &payload, &status, &createdAt); err != nil {
			return nil, common.WrapStorage("scan pending action", err)
		}
		a.Kind = models.ActionKind(kind)
		a.Status = models.ActionStatus(status)
		a.Payload = json.RawMessage(payload)
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapStorage("iterate pending actions", err)
	}
	return result, nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context, accountID int64) ([]models.PendingAction, error) {
	return r.queryActions(ctx,
		`SELECT id, account_id, kind, payload, status, created_at FROM pending_actions
		 WHERE account_id = ? AND status = ? ORDER BY id`,
		accountID, string(models.ActionPending))
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, accountID int64) ([]models.PendingAction, error) {
	return r.queryActions(ctx,
		`SELECT id, account_id, kind, payload, status, created_at FROM pending_actions
		 WHERE account_id = ? ORDER BY id`, accountID)
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pending_actions SET status = ?, failed_at = ? WHERE id = ?`,
		string(models.ActionFailed), time.Now().UnixMilli(), id)
	if err != nil {
		return common.WrapStorage("mark action failed", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdatePayload(ctx context.Context, id string, payload json.RawMessage) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pending_actions SET payload = ? WHERE id = ?`, []byte(payload), id)
	if err != nil {
		return common.WrapStorage("update action payload", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE id = ?`, id); err != nil {
		return common.WrapStorage("delete pending action", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByOwner(ctx context.Context, accountID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE account_id = ?`, accountID)
	if err != nil {
		return common.WrapStorage("delete pending actions for account", err)
	}
	return nil
}

func (r *SQLiteRepository) ReassignOwner(ctx context.Context, fromAccountID, toAccountID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pending_actions SET account_id = ? WHERE account_id = ?`, toAccountID, fromAccountID)
	if err != nil {
		return common.WrapStorage("reassign pending actions", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) error {
	// Retention runs from the moment the action failed, not from its
	// creation, so a long-queued action still gets its inspection window.
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_actions WHERE status != ? AND failed_at IS NOT NULL AND failed_at < ?`,
		string(models.ActionPending), cutoff.UnixMilli())
	if err != nil {
		return common.WrapStorage("purge finished actions", err)
	}
	return nil
}

func (r *SQLiteRepository) CountPending(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_actions WHERE account_id = ? AND status = ?`,
		accountID, string(models.ActionPending)).Scan(&n)
	if err != nil {
		return 0, common.WrapStorage("count pending actions", err)
	}
	return n, nil
}
