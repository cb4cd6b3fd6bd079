package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

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

func (r *SQLiteRepository) Upsert(ctx context.Context, item *models.CatalogItem) error {
	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return common.WrapStorage("encode catalog tags", err)
	}
	stats, err := json.Marshal(item.Stats)
	if err != nil {
		return common.WrapStorage("encode catalog stats", err)
	}

	query := `INSERT INTO catalog (id, name, tags, stats, image_url, thumb_url)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name,
				tags = excluded.tags,
				stats = excluded.stats,
				image_url = excluded.image_url,
				thumb_url = excluded.thumb_url
	`
	if _, err := r.db.ExecContext(ctx, query,
		item.ID, item.Name, string(tags), string(stats), item.ImageURL, item.ThumbURL); err != nil {
		return common.WrapStorage("upsert catalog item", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertBatch(ctx context.Context, items []models.CatalogItem) error {
	if db, ok := r.db.(*sql.DB); ok {
		return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			txRepo := &SQLiteRepository{db: tx}
			for i := range items {
				if err := txRepo.Upsert(ctx, &items[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	// Already inside a transaction.
	for i := range items {
		if err := r.Upsert(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func scanItem(scan func(dest ...any) error) (*models.CatalogItem, error) {
	var item models.CatalogItem
	var tags, stats string
	if err := scan(&item.ID, &item.Name, &tags, &stats, &item.ImageURL, &item.ThumbURL); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stats), &item.Stats); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.CatalogItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, tags, stats, image_url, thumb_url FROM catalog WHERE id = ?`, id)

	item, err := scanItem(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapStorage("get catalog item", err)
	}
	return item, nil
}

func (r *SQLiteRepository) queryItems(ctx context.Context, query string, args ...any) ([]models.CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapStorage("select catalog items", err)
	}
	defer rows.Close()

	var result []models.CatalogItem
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, common.WrapStorage("scan catalog item", err)
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapStorage("iterate catalog items", err)
	}
	return result, nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit, offset int) ([]models.CatalogItem, error) {
	return r.queryItems(ctx,
		`SELECT id, name, tags, stats, image_url, thumb_url FROM catalog ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset)
}

func (r *SQLiteRepository) SearchByName(ctx context.Context, q string, limit int) ([]models.CatalogItem, error) {
	return r.queryItems(ctx,
		`SELECT id, name, tags, stats, image_url, thumb_url FROM catalog
		 WHERE name LIKE '%' || ? || '%' COLLATE NOCASE ORDER BY id LIMIT ?`,
		q, limit)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog`).Scan(&n); err != nil {
		return 0, common.WrapStorage("count catalog items", err)
	}
	return n, nil
}

func (r *SQLiteRepository) CountInRange(ctx context.Context, lo, hi int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catalog WHERE id BETWEEN ? AND ?`, lo, hi).Scan(&n)
	if err != nil {
		return 0, common.WrapStorage("count catalog range", err)
	}
	return n, nil
}
