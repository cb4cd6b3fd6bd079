package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/avdeyev/catchdex/internal/client/gateway"
	"github.com/avdeyev/catchdex/internal/client/models"
	"github.com/avdeyev/catchdex/internal/client/repositories/catalog"
	"github.com/avdeyev/catchdex/internal/client/repositories/metadata"
	"github.com/avdeyev/catchdex/internal/client/repositories/owned"
	"github.com/avdeyev/catchdex/internal/common"
	"github.com/avdeyev/catchdex/internal/logging"
)

// CatalogGateway is the slice of the remote gateway the catalog service
// reads from.
type CatalogGateway interface {
	ListCatalog(ctx context.Context, page, pageSize int) (*gateway.CatalogPage, error)
	GetCatalogItem(ctx context.Context, id int64) (*models.CatalogItem, error)
	SearchCatalog(ctx context.Context, name string) ([]models.CatalogItem, error)
}

// CatalogService serves catalog reference data local-first: reads hit a
// small in-memory cache, then the sqlite store, then (when reachable) the
// server. Refresh pulls the whole catalog down page by page.
type CatalogService interface {
	// Refresh re-downloads the catalog when it is stale or has gaps.
	// force bypasses the staleness check.
	Refresh(ctx context.Context, force bool) error

	Get(ctx context.Context, id int64) (*models.CatalogItem, error)
	List(ctx context.Context, limit, offset int) ([]models.CatalogItem, error)
	Search(ctx context.Context, q string) ([]models.CatalogItem, error)
}

// syncMarker is the persisted refresh bookkeeping.
type syncMarker struct {
	SyncedAt int64 `json:"syncedAt"`
	Total    int   `json:"total"`
}

type catalogService struct {
	store     catalog.Repository
	owned     owned.Repository
	meta      metadata.Repository
	gw        CatalogGateway
	sessions  SessionStore
	online    OnlineChecker
	logger    logging.Logger
	cache     *expirable.LRU[int64, models.CatalogItem]
	staleness time.Duration
	pageSize  int
}

// CatalogOptions wires a CatalogService.
type CatalogOptions struct {
	Store     catalog.Repository
	Owned     owned.Repository
	Meta      metadata.Repository
	Gateway   CatalogGateway
	Sessions  SessionStore
	Online    OnlineChecker
	Logger    logging.Logger
	Staleness time.Duration
	PageSize  int
	CacheSize int
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(opts CatalogOptions) CatalogService {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Staleness <= 0 {
		opts.Staleness = 24 * time.Hour
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	return &catalogService{
		store:     opts.Store,
		owned:     opts.Owned,
		meta:      opts.Meta,
		gw:        opts.Gateway,
		sessions:  opts.Sessions,
		online:    opts.Online,
		logger:    opts.Logger,
		cache:     expirable.NewLRU[int64, models.CatalogItem](opts.CacheSize, nil, opts.Staleness),
		staleness: opts.Staleness,
		pageSize:  opts.PageSize,
	}
}

func (s *catalogService) Refresh(ctx context.Context, force bool) error {
	if !force {
		fresh, err := s.isFresh(ctx)
		if err != nil {
			return err
		}
		if fresh {
			return nil
		}
	}

	if !s.online.Online() {
		if n, err := s.store.Count(ctx); err == nil && n > 0 {
			s.logger.Warn(ctx, "catalog refresh skipped, serving cached data")
			return nil
		}
		return fmt.Errorf("%w: catalog refresh needs connectivity", gateway.ErrUnavailable)
	}

	total := 0
	fetched := 0
	for page := 1; ; page++ {
		res, err := s.gw.ListCatalog(ctx, page, s.pageSize)
		if err != nil {
			if gateway.IsUnavailable(err) {
				if n, cErr := s.store.Count(ctx); cErr == nil && n > 0 {
					s.logger.Warn(ctx, "catalog refresh aborted, serving cached data", "error", err)
					return nil
				}
			}
			return fmt.Errorf("failed to refresh catalog: %w", err)
		}
		if err := s.store.UpsertBatch(ctx, res.Items); err != nil {
			return err
		}
		total = res.Total
		fetched += len(res.Items)
		if len(res.Items) < s.pageSize || fetched >= total {
			break
		}
	}

	s.cache.Purge()

	marker, err := json.Marshal(syncMarker{SyncedAt: time.Now().UnixMilli(), Total: total})
	if err != nil {
		return fmt.Errorf("failed to encode sync marker: %w", err)
	}
	if err := s.meta.Set(ctx, metadata.KeyCatalogSyncedAt, marker); err != nil {
		return err
	}

	s.logger.Info(ctx, "catalog refreshed", "items", fetched, "total", total)
	return nil
}

// isFresh reports whether the cached catalog is recent and complete. The
// completeness check assumes dense external ids starting at 1, which holds
// for the catalog feed.
func (s *catalogService) isFresh(ctx context.Context) (bool, error) {
	raw, err := s.meta.Get(ctx, metadata.KeyCatalogSyncedAt)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	var m syncMarker
	if err := json.Unmarshal(raw, &m); err != nil {
		return false, nil
	}
	if time.Since(time.UnixMilli(m.SyncedAt)) > s.staleness {
		return false, nil
	}

	inRange, err := s.store.CountInRange(ctx, 1, int64(m.Total))
	if err != nil {
		return false, err
	}
	return inRange == m.Total, nil
}

func (s *catalogService) Get(ctx context.Context, id int64) (*models.CatalogItem, error) {
	if item, ok := s.cache.Get(id); ok {
		return s.mark(ctx, &item)
	}

	item, err := s.store.GetByID(ctx, id)
	if err == nil {
		s.cache.Add(id, *item)
		return s.mark(ctx, item)
	}
	if !errorsIsNotFound(err) || !s.online.Online() {
		return nil, err
	}

	item, err = s.gw.GetCatalogItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Upsert(ctx, item); err != nil {
		return nil, err
	}
	s.cache.Add(id, *item)
	return s.mark(ctx, item)
}

func (s *catalogService) List(ctx context.Context, limit, offset int) ([]models.CatalogItem, error) {
	items, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.markAll(ctx, items)
}

func (s *catalogService) Search(ctx context.Context, q string) ([]models.CatalogItem, error) {
	items, err := s.store.SearchByName(ctx, q, s.pageSize)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && s.online.Online() {
		items, err = s.gw.SearchCatalog(ctx, q)
		if err != nil {
			if gateway.IsUnavailable(err) {
				return nil, nil
			}
			return nil, err
		}
		for i := range items {
			if err := s.store.Upsert(ctx, &items[i]); err != nil {
				return nil, err
			}
		}
	}
	return s.markAll(ctx, items)
}

// mark fills the derived Owned flag for the active session.
func (s *catalogService) mark(ctx context.Context, item *models.CatalogItem) (*models.CatalogItem, error) {
	out := *item
	out.Owned = false

	sess := s.sessions.Current()
	if !sess.LoggedIn() {
		return &out, nil
	}
	_, err := s.owned.GetByOwnerAndItem(ctx, sess.AccountID, item.ID)
	if err == nil {
		out.Owned = true
	} else if !errorsIsNotFound(err) {
		return nil, err
	}
	return &out, nil
}

func (s *catalogService) markAll(ctx context.Context, items []models.CatalogItem) ([]models.CatalogItem, error) {
	sess := s.sessions.Current()
	if !sess.LoggedIn() || len(items) == 0 {
		return items, nil
	}

	recs, err := s.owned.GetByOwner(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	ownedSet := make(map[int64]struct{}, len(recs))
	for i := range recs {
		ownedSet[recs[i].ItemID] = struct{}{}
	}
	for i := range items {
		_, items[i].Owned = ownedSet[items[i].ID]
	}
	return items, nil
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
