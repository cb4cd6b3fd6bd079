package owned

import (
	"context"
	"database/sql"
	"errors"
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

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.OwnedRecord) error {
	query := `INSERT INTO owned (id, account_id, item_id, caught_at, note, favorite)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET account_id = excluded.account_id,
				item_id = excluded.item_id,
				caught_at = excluded.caught_at,
				note = excluded.note,
				favorite = excluded.favorite
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.AccountID, rec.ItemID, rec.CaughtAt.UnixMilli(), rec.Note, boolToInt(rec.Favorite))
	if err != nil {
		return common.WrapStorage("upsert owned record", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanRecord(scan func(dest ...any) error) (*models.OwnedRecord, error) {
	var rec models.OwnedRecord
	var caughtAt int64
	var favorite int
	if err := scan(&rec.ID, &rec.AccountID, &rec.ItemID, &caughtAt, &rec.Note, &favorite); err != nil {
		return nil, err
	}
	rec.CaughtAt = time.UnixMilli(caughtAt).UTC()
	rec.Favorite = favorite != 0
	return &rec, nil
}

func (r *SQLiteRepository) queryRecords(ctx context.Context, query string, args ...any) ([]models.OwnedRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.OwnedRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

// GetByOwner prefers the indexed account query; if the indexed path fails it
// degrades to a full scan with manual filtering rather than erroring out.
func (r *SQLiteRepository) GetByOwner(ctx context.Context, accountID int64) ([]models.OwnedRecord, error) {
	recs, err := r.queryRecords(ctx,
		`SELECT id, account_id, item_id, caught_at, note, favorite FROM owned
		 WHERE account_id = ? ORDER BY item_id, id`, accountID)
	if err != nil {
		all, scanErr := r.queryRecords(ctx,
			`SELECT id, account_id, item_id, caught_at, note, favorite FROM owned ORDER BY item_id, id`)
		if scanErr != nil {
			return nil, common.WrapStorage("select owned records", err)
		}
		recs = recs[:0]
		for _, rec := range all {
			if rec.AccountID == accountID {
				recs = append(recs, rec)
			}
		}
	}
	return dedupe(recs), nil
}

// dedupe collapses multiple records per catalog item to one. Input must be
// ordered by (item_id, id).
func dedupe(recs []models.OwnedRecord) []models.OwnedRecord {
	best := make(map[int64]models.OwnedRecord, len(recs))
	order := make([]int64, 0, len(recs))
	for _, rec := range recs {
		cur, seen := best[rec.ItemID]
		if !seen {
			best[rec.ItemID] = rec
			order = append(order, rec.ItemID)
			continue
		}
		if prefer(rec, cur) {
			best[rec.ItemID] = rec
		}
	}
	out := make([]models.OwnedRecord, 0, len(order))
	for _, itemID := range order {
		out = append(out, best[itemID])
	}
	return out
}

// prefer reports whether a should replace b: confirmed ids beat temporary
// ones, then the lowest id wins.
func prefer(a, b models.OwnedRecord) bool {
	if a.IsTemp() != b.IsTemp() {
		return !a.IsTemp()
	}
	return a.ID < b.ID
}

func (r *SQLiteRepository) GetByOwnerAndItem(ctx context.Context, accountID, itemID int64) (*models.OwnedRecord, error) {
	recs, err := r.queryRecords(ctx,
		`SELECT id, account_id, item_id, caught_at, note, favorite FROM owned
		 WHERE account_id = ? AND item_id = ? ORDER BY item_id, id`, accountID, itemID)
	if err != nil {
		return nil, common.WrapStorage("select owned record", err)
	}
	recs = dedupe(recs)
	if len(recs) == 0 {
		return nil, common.ErrNotFound
	}
	return &recs[0], nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM owned WHERE id = ?`, id); err != nil {
		return common.WrapStorage("delete owned record", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByItem(ctx context.Context, accountID, itemID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM owned WHERE account_id = ? AND item_id = ?`, accountID, itemID)
	if err != nil {
		return common.WrapStorage("delete owned records for item", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTempByItem(ctx context.Context, accountID, itemID, keepID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM owned WHERE account_id = ? AND item_id = ? AND id >= ? AND id != ?`,
		accountID, itemID, common.TempIDThreshold, keepID)
	if err != nil {
		return common.WrapStorage("delete temporary owned records", err)
	}
	return nil
}

func (r *SQLiteRepository) ReassignOwner(ctx context.Context, fromAccountID, toAccountID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE owned SET account_id = ? WHERE account_id = ?`, toAccountID, fromAccountID)
	if err != nil {
		return common.WrapStorage("reassign owned records", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByOwner(ctx context.Context, accountID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM owned WHERE account_id = ?`, accountID); err != nil {
		return common.WrapStorage("delete owned records for account", err)
	}
	return nil
}

func (r *SQLiteRepository) CountByOwner(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT item_id) FROM owned WHERE account_id = ?`, accountID).Scan(&n)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, common.WrapStorage("count owned records", err)
	}
	return n, nil
}
