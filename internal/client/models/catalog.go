// Package models defines client-side data models used by the CatchDex client.
package models

// CatalogItem is reference data describing one entry of the shared catalog.
// It is keyed by the server-assigned external id and refreshed by bulk
// catalog sync; the client never deletes catalog rows.
type CatalogItem struct {
	// ID is the stable numeric external identifier.
	ID int64

	// Name is the display name.
	Name string

	// Tags are category tags ("water", "legendary", ...).
	Tags []string

	// Stats holds named numeric attributes.
	Stats map[string]int

	// ImageURL and ThumbURL point at the item's media.
	ImageURL string
	ThumbURL string

	// Owned is a derived display flag overlaid at read time for the
	// active account. It is never persisted and never authoritative.
	Owned bool
}
