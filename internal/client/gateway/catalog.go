package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/avdeyev/catchdex/internal/client/models"
)

// ListCatalog fetches one page of the catalog.
func (c *Client) ListCatalog(ctx context.Context, page, pageSize int) (*CatalogPage, error) {
	path := fmt.Sprintf("/api/catalog?page=%d&pageSize=%d", page, pageSize)
	var resp catalogPagePayload
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	items := make([]models.CatalogItem, 0, len(resp.Items))
	for _, p := range resp.Items {
		items = append(items, p.toModel())
	}
	return &CatalogPage{Items: items, Total: resp.Total}, nil
}

// GetCatalogItem fetches a single catalog item by its external id.
func (c *Client) GetCatalogItem(ctx context.Context, id int64) (*models.CatalogItem, error) {
	var resp catalogItemPayload
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/catalog/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	item := resp.toModel()
	return &item, nil
}

// SearchCatalog searches the catalog by name.
func (c *Client) SearchCatalog(ctx context.Context, name string) ([]models.CatalogItem, error) {
	path := "/api/catalog/search?name=" + url.QueryEscape(name)
	var resp catalogPagePayload
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	items := make([]models.CatalogItem, 0, len(resp.Items))
	for _, p := range resp.Items {
		items = append(items, p.toModel())
	}
	return items, nil
}
