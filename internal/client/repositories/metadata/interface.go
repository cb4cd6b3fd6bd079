package metadata

import "context"

// Well-known metadata keys.
const (
	KeyAuthToken       = "auth_token"
	KeySession         = "session"
	KeyLastOnlineAt    = "last_online_at"
	KeyLastProbeAt     = "last_probe_at"
	KeyCatalogSyncedAt = "catalog_synced_at"
)

// Repository is a small persisted key/value area for the auth token, the
// session descriptor, and last-known reachability timestamps.
type Repository interface {
	// Get returns the value or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
