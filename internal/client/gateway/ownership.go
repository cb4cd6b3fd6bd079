package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avdeyev/catchdex/internal/client/models"
)

// ListOwned fetches one page of the account's owned records.
func (c *Client) ListOwned(ctx context.Context, page, pageSize int) (*OwnedPage, error) {
	path := fmt.Sprintf("/api/owned?page=%d&pageSize=%d", page, pageSize)
	var resp ownedPagePayload
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	records := make([]models.OwnedRecord, 0, len(resp.Records))
	for _, p := range resp.Records {
		records = append(records, *p.toModel())
	}
	return &OwnedPage{Records: records, Total: resp.Total}, nil
}

// Acquire catches one catalog item. The server assigns the record id.
func (c *Client) Acquire(ctx context.Context, itemID int64, note string, caughtAt time.Time) (*models.OwnedRecord, error) {
	req := acquireRequest{ItemID: itemID, Note: note, CaughtAt: caughtAt.UTC()}
	var resp ownedPayload
	if err := c.do(ctx, http.MethodPost, "/api/owned", req, &resp); err != nil {
		return nil, err
	}
	return resp.toModel(), nil
}

// AcquireBulk catches a set of catalog items in one call. The server skips
// ids the account already owns and returns only the records it created.
func (c *Client) AcquireBulk(ctx context.Context, itemIDs []int64, caughtAt time.Time) ([]models.OwnedRecord, error) {
	req := bulkAcquireRequest{ItemIDs: itemIDs, CaughtAt: caughtAt.UTC()}
	var resp ownedPagePayload
	if err := c.do(ctx, http.MethodPost, "/api/owned/bulk", req, &resp); err != nil {
		return nil, err
	}
	records := make([]models.OwnedRecord, 0, len(resp.Records))
	for _, p := range resp.Records {
		records = append(records, *p.toModel())
	}
	return records, nil
}

// Release drops one owned item, addressed by catalog item id. The client
// may only hold a temporary record id for it.
func (c *Client) Release(ctx context.Context, itemID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/owned/item/%d", itemID), nil, nil)
}

// ReleaseBulk drops a set of owned items by catalog item ids.
func (c *Client) ReleaseBulk(ctx context.Context, itemIDs []int64) error {
	return c.do(ctx, http.MethodPost, "/api/owned/bulk-release", bulkReleaseRequest{ItemIDs: itemIDs}, nil)
}

// UpdateMeta updates note/favorite on an owned item. Nil fields are left
// untouched server-side.
func (c *Client) UpdateMeta(ctx context.Context, itemID int64, note *string, favorite *bool) (*models.OwnedRecord, error) {
	req := updateMetaRequest{Note: note, Favorite: favorite}
	var resp ownedPayload
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/owned/item/%d", itemID), req, &resp); err != nil {
		return nil, err
	}
	return resp.toModel(), nil
}

// OwnedStats fetches the server-side ownership summary.
func (c *Client) OwnedStats(ctx context.Context) (*Stats, error) {
	var resp Stats
	if err := c.do(ctx, http.MethodGet, "/api/owned/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
