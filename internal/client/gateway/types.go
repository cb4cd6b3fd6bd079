package gateway

import (
	"time"

	"github.com/avdeyev/catchdex/internal/client/models"
)

// Credentials carries login/register input. Validated locally before any
// request is sent.
type Credentials struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// AuthResponse is the server's answer to login/register.
type AuthResponse struct {
	Account profilePayload `json:"account"`
	Token   string         `json:"token"`
}

type profilePayload struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p profilePayload) toModel() *models.Profile {
	return &models.Profile{AccountID: p.ID, Username: p.Username, CreatedAt: p.CreatedAt}
}

type catalogItemPayload struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Tags     []string       `json:"tags"`
	Stats    map[string]int `json:"stats"`
	ImageURL string         `json:"imageUrl"`
	ThumbURL string         `json:"thumbUrl"`
}

func (p catalogItemPayload) toModel() models.CatalogItem {
	return models.CatalogItem{
		ID:       p.ID,
		Name:     p.Name,
		Tags:     p.Tags,
		Stats:    p.Stats,
		ImageURL: p.ImageURL,
		ThumbURL: p.ThumbURL,
	}
}

// CatalogPage is one page of the paginated catalog listing.
type CatalogPage struct {
	Items []models.CatalogItem
	Total int
}

type catalogPagePayload struct {
	Items []catalogItemPayload `json:"items"`
	Total int                  `json:"total"`
}

type ownedPayload struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"accountId"`
	ItemID    int64     `json:"itemId"`
	CaughtAt  time.Time `json:"caughtAt"`
	Note      string    `json:"note"`
	Favorite  bool      `json:"favorite"`
}

func (p ownedPayload) toModel() *models.OwnedRecord {
	return &models.OwnedRecord{
		ID:        p.ID,
		AccountID: p.AccountID,
		ItemID:    p.ItemID,
		CaughtAt:  p.CaughtAt.UTC(),
		Note:      p.Note,
		Favorite:  p.Favorite,
	}
}

// OwnedPage is one page of the owned listing.
type OwnedPage struct {
	Records []models.OwnedRecord
	Total   int
}

type ownedPagePayload struct {
	Records []ownedPayload `json:"records"`
	Total   int            `json:"total"`
}

// Stats is the server-side ownership summary.
type Stats struct {
	Owned     int `json:"owned"`
	Favorites int `json:"favorites"`
	Catalog   int `json:"catalog"`
}

// Share is a read-only share of a collection. The sync core never mutates
// shares; account promotion must leave them intact server-side.
type Share struct {
	Token     string    `json:"token"`
	AccountID int64     `json:"accountId"`
	CreatedAt time.Time `json:"createdAt"`
}

type acquireRequest struct {
	ItemID   int64     `json:"itemId"`
	Note     string    `json:"note,omitempty"`
	CaughtAt time.Time `json:"caughtAt"`
}

type bulkAcquireRequest struct {
	ItemIDs  []int64   `json:"itemIds"`
	CaughtAt time.Time `json:"caughtAt"`
}

type bulkReleaseRequest struct {
	ItemIDs []int64 `json:"itemIds"`
}

type updateMetaRequest struct {
	Note     *string `json:"note,omitempty"`
	Favorite *bool   `json:"favorite,omitempty"`
}
