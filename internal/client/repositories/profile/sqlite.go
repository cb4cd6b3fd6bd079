package profile

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

func (r *SQLiteRepository) Upsert(ctx context.Context, p *models.Profile) error {
	query := `INSERT INTO profiles (account_id, username, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT(account_id) DO UPDATE SET username = excluded.username,
				created_at = excluded.created_at
	`
	_, err := r.db.ExecContext(ctx, query, p.AccountID, p.Username, p.CreatedAt.UnixMilli())
	if err != nil {
		return common.WrapStorage("upsert profile", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, accountID int64) (*models.Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT account_id, username, created_at FROM profiles WHERE account_id = ?`, accountID)

	var p models.Profile
	var createdAt int64
	err := row.Scan(&p.AccountID, &p.Username, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapStorage("get profile", err)
	}
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &p, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, accountID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE account_id = ?`, accountID); err != nil {
		return common.WrapStorage("delete profile", err)
	}
	return nil
}
