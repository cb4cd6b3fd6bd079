package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// CreateShare publishes a read-only share of the current collection.
func (c *Client) CreateShare(ctx context.Context) (*Share, error) {
	var resp Share
	if err := c.do(ctx, http.MethodPost, "/api/shares", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetShare resolves a share token.
func (c *Client) GetShare(ctx context.Context, token string) (*Share, error) {
	var resp Share
	if err := c.do(ctx, http.MethodGet, "/api/shares/"+url.PathEscape(token), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListShares lists the account's shares.
func (c *Client) ListShares(ctx context.Context) ([]Share, error) {
	var resp struct {
		Shares []Share `json:"shares"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/shares", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Shares, nil
}
