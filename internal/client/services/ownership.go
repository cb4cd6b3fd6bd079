package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avdeyev/catchdex/internal/client/gateway"
	"github.com/avdeyev/catchdex/internal/client/models"
	"github.com/avdeyev/catchdex/internal/client/repositories/actions"
	"github.com/avdeyev/catchdex/internal/client/repositories/owned"
	"github.com/avdeyev/catchdex/internal/common"
	"github.com/avdeyev/catchdex/internal/dbx"
	"github.com/avdeyev/catchdex/internal/logging"
)

// OnlineChecker reports the combined device+server reachability signal.
type OnlineChecker interface {
	Online() bool
}

// OwnershipGateway is the slice of the remote gateway the ownership service
// dispatches to.
type OwnershipGateway interface {
	Acquire(ctx context.Context, itemID int64, note string, caughtAt time.Time) (*models.OwnedRecord, error)
	AcquireBulk(ctx context.Context, itemIDs []int64, caughtAt time.Time) ([]models.OwnedRecord, error)
	Release(ctx context.Context, itemID int64) error
	ReleaseBulk(ctx context.Context, itemIDs []int64) error
	UpdateMeta(ctx context.Context, itemID int64, note *string, favorite *bool) (*models.OwnedRecord, error)
	ListOwned(ctx context.Context, page, pageSize int) (*gateway.OwnedPage, error)
	OwnedStats(ctx context.Context) (*gateway.Stats, error)
}

// OwnershipStats is the summary shown by the stats command. Completion is
// owned/catalog.
type OwnershipStats struct {
	Owned     int
	Favorites int
	Catalog   int
}

// OwnershipService is the single entry point for collection mutations.
//
// Every mutating operation follows the same two-path contract: when the
// session is permanent and the server is reachable, call the gateway and
// store the confirmed result; otherwise (or on a network-class failure)
// write an optimistic record and queue a durable action for later replay.
// Application-class rejections propagate immediately and queue nothing.
type OwnershipService interface {
	Acquire(ctx context.Context, itemID int64, note string) (*models.OwnedRecord, error)
	AcquireBulk(ctx context.Context, itemIDs []int64) ([]models.OwnedRecord, error)
	Release(ctx context.Context, itemID int64) error
	ReleaseBulk(ctx context.Context, itemIDs []int64) error
	UpdateMetadata(ctx context.Context, itemID int64, note *string, favorite *bool) (*models.OwnedRecord, error)
	ListOwned(ctx context.Context) ([]models.OwnedRecord, error)
	Stats(ctx context.Context) (*OwnershipStats, error)
}

type ownershipService struct {
	db       *sql.DB
	owned    owned.Repository
	actions  actions.Repository
	catalog  CatalogCounter
	gw       OwnershipGateway
	sessions SessionStore
	online   OnlineChecker
	logger   logging.Logger
	pageSize int
}

// CatalogCounter is the catalog-store slice used for offline stats.
type CatalogCounter interface {
	Count(ctx context.Context) (int, error)
}

// OwnershipOptions wires an OwnershipService.
type OwnershipOptions struct {
	DB       *sql.DB
	Owned    owned.Repository
	Actions  actions.Repository
	Catalog  CatalogCounter
	Gateway  OwnershipGateway
	Sessions SessionStore
	Online   OnlineChecker
	Logger   logging.Logger
	PageSize int
}

// NewOwnershipService constructs an OwnershipService.
func NewOwnershipService(opts OwnershipOptions) OwnershipService {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	return &ownershipService{
		db:       opts.DB,
		owned:    opts.Owned,
		actions:  opts.Actions,
		catalog:  opts.Catalog,
		gw:       opts.Gateway,
		sessions: opts.Sessions,
		online:   opts.Online,
		logger:   opts.Logger,
		pageSize: opts.PageSize,
	}
}

// session returns the active session or common.ErrNotLoggedIn.
func (s *ownershipService) session() (models.Session, error) {
	sess := s.sessions.Current()
	if !sess.LoggedIn() {
		return models.Session{}, common.ErrNotLoggedIn
	}
	return sess, nil
}

// directPath reports whether a mutation should hit the server directly.
// Local-only identities never do; they sync only during promotion.
func (s *ownershipService) directPath(sess models.Session) bool {
	return sess.Mode == models.ModePermanent && s.online.Online()
}

func (s *ownershipService) Acquire(ctx context.Context, itemID int64, note string) (*models.OwnedRecord, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}

	// The local cache answers the already-owned check even when online; it
	// already reflects both confirmed and optimistic state.
	if _, err := s.owned.GetByOwnerAndItem(ctx, sess.AccountID, itemID); err == nil {
		return nil, common.ErrAlreadyOwned
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()

	if s.directPath(sess) {
		rec, err := s.gw.Acquire(ctx, itemID, note, now)
		switch {
		case err == nil:
			if err := s.reconcileConfirmed(ctx, sess.AccountID, rec); err != nil {
				return nil, err
			}
			return rec, nil
		case gateway.IsUnavailable(err):
			s.logger.Warn(ctx, "acquire fell back to offline queue", "item", itemID, "error", err)
		default:
			return nil, err
		}
	}

	rec := &models.OwnedRecord{
		ID:        models.NewTempID(),
		AccountID: sess.AccountID,
		ItemID:    itemID,
		CaughtAt:  now,
		Note:      note,
	}
	action, err := models.NewPendingAction(sess.AccountID, models.ActionAcquire,
		models.AcquirePayload{ItemID: itemID, Note: note, CaughtAt: now}, now)
	if err != nil {
		return nil, err
	}

	// Optimistic record and its queued action land atomically.
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := owned.NewSQLiteRepository(tx).Upsert(ctx, rec); err != nil {
			return err
		}
		return actions.NewSQLiteRepository(tx).Insert(ctx, action)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to queue acquire: %w", err)
	}
	return rec, nil
}

func (s *ownershipService) AcquireBulk(ctx context.Context, itemIDs []int64) ([]models.OwnedRecord, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}

	// Pre-filter already-owned ids. A partially owned batch is a partial
	// success, never an error.
	var fresh []int64
	for _, id := range itemIDs {
		_, err := s.owned.GetByOwnerAndItem(ctx, sess.AccountID, id)
		if errors.Is(err, common.ErrNotFound) {
			fresh = append(fresh, id)
		} else if err != nil {
			return nil, err
		}
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()

	if s.directPath(sess) {
		recs, err := s.gw.AcquireBulk(ctx, fresh, now)
		switch {
		case err == nil:
			for i := range recs {
				if err := s.reconcileConfirmed(ctx, sess.AccountID, &recs[i]); err != nil {
					return nil, err
				}
			}
			return recs, nil
		case gateway.IsUnavailable(err):
			s.logger.Warn(ctx, "bulk acquire fell back to offline queue", "items", len(fresh), "error", err)
		default:
			return nil, err
		}
	}

	recs := make([]models.OwnedRecord, 0, len(fresh))
	for _, id := range fresh {
		recs = append(recs, models.OwnedRecord{
			ID:        models.NewTempID(),
			AccountID: sess.AccountID,
			ItemID:    id,
			CaughtAt:  now,
		})
	}
	action, err := models.NewPendingAction(sess.AccountID, models.ActionAcquireBulk,
		models.BulkAcquirePayload{ItemIDs: fresh, CaughtAt: now}, now)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := owned.NewSQLiteRepository(tx)
		for i := range recs {
			if err := repo.Upsert(ctx, &recs[i]); err != nil {
				return err
			}
		}
		return actions.NewSQLiteRepository(tx).Insert(ctx, action)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to queue bulk acquire: %w", err)
	}
	return recs, nil
}

func (s *ownershipService) Release(ctx context.Context, itemID int64) error {
	sess, err := s.session()
	if err != nil {
		return err
	}

	// Resolve by catalog item id: the internal id may still be temporary.
	rec, err := s.owned.GetByOwnerAndItem(ctx, sess.AccountID, itemID)
	if err != nil {
		return err
	}

	if rec.IsTemp() {
		// The acquire never reached the server regardless of reachability;
		// cancelling the queued acquire is enough, a release would only
		// earn a rejection.
		return s.cancelQueuedAcquire(ctx, sess.AccountID, itemID)
	}

	if s.directPath(sess) {
		err := s.gw.Release(ctx, itemID)
		switch {
		case err == nil:
			return s.owned.DeleteByItem(ctx, sess.AccountID, itemID)
		case gateway.IsUnavailable(err):
			s.logger.Warn(ctx, "release fell back to offline queue", "item", itemID, "error", err)
		default:
			return err
		}
	}

	now := time.Now().UTC()
	action, err := models.NewPendingAction(sess.AccountID, models.ActionRelease,
		models.ReleasePayload{ItemID: itemID}, now)
	if err != nil {
		return err
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := owned.NewSQLiteRepository(tx).DeleteByItem(ctx, sess.AccountID, itemID); err != nil {
			return err
		}
		return actions.NewSQLiteRepository(tx).Insert(ctx, action)
	})
	if err != nil {
		return fmt.Errorf("failed to queue release: %w", err)
	}
	return nil
}

func (s *ownershipService) ReleaseBulk(ctx context.Context, itemIDs []int64) error {
	sess, err := s.session()
	if err != nil {
		return err
	}

	// Only ids actually owned take part; the rest are skipped silently.
	var confirmed, unsynced []int64
	for _, id := range itemIDs {
		rec, err := s.owned.GetByOwnerAndItem(ctx, sess.AccountID, id)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if rec.IsTemp() {
			unsynced = append(unsynced, id)
		} else {
			confirmed = append(confirmed, id)
		}
	}
	if len(confirmed) == 0 && len(unsynced) == 0 {
		return nil
	}

	// Unsynced ids are resolved locally regardless of reachability; the
	// server never saw their acquires.
	for _, id := range unsynced {
		if err := s.cancelQueuedAcquire(ctx, sess.AccountID, id); err != nil {
			return err
		}
	}
	if len(confirmed) == 0 {
		return nil
	}

	if s.directPath(sess) {
		err := s.gw.ReleaseBulk(ctx, confirmed)
		switch {
		case err == nil:
			for _, id := range confirmed {
				if err := s.owned.DeleteByItem(ctx, sess.AccountID, id); err != nil {
					return err
				}
			}
			return nil
		case gateway.IsUnavailable(err):
			s.logger.Warn(ctx, "bulk release fell back to offline queue", "items", len(confirmed), "error", err)
		default:
			return err
		}
	}

	now := time.Now().UTC()
	action, err := models.NewPendingAction(sess.AccountID, models.ActionReleaseBulk,
		models.BulkReleasePayload{ItemIDs: confirmed}, now)
	if err != nil {
		return err
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := owned.NewSQLiteRepository(tx)
		for _, id := range confirmed {
			if err := repo.DeleteByItem(ctx, sess.AccountID, id); err != nil {
				return err
			}
		}
		return actions.NewSQLiteRepository(tx).Insert(ctx, action)
	})
	if err != nil {
		return fmt.Errorf("failed to queue bulk release: %w", err)
	}
	return nil
}

func (s *ownershipService) UpdateMetadata(ctx context.Context, itemID int64, note *string, favorite *bool) (*models.OwnedRecord, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}

	rec, err := s.owned.GetByOwnerAndItem(ctx, sess.AccountID, itemID)
	if err != nil {
		return nil, err
	}

	if s.directPath(sess) {
		confirmed, err := s.gw.UpdateMeta(ctx, itemID, note, favorite)
		switch {
		case err == nil:
			if err := s.reconcileConfirmed(ctx, sess.AccountID, confirmed); err != nil {
				return nil, err
			}
			return confirmed, nil
		case gateway.IsUnavailable(err):
			s.logger.Warn(ctx, "metadata update fell back to offline queue", "item", itemID, "error", err)
		default:
			return nil, err
		}
	}

	if note != nil {
		rec.Note = *note
	}
	if favorite != nil {
		rec.Favorite = *favorite
	}

	now := time.Now().UTC()
	action, err := models.NewPendingAction(sess.AccountID, models.ActionUpdateMeta,
		models.UpdateMetaPayload{ItemID: itemID, Note: note, Favorite: favorite}, now)
	if err != nil {
		return nil, err
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := owned.NewSQLiteRepository(tx).Upsert(ctx, rec); err != nil {
			return err
		}
		return actions.NewSQLiteRepository(tx).Insert(ctx, action)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to queue metadata update: %w", err)
	}
	return rec, nil
}

func (s *ownershipService) ListOwned(ctx context.Context) ([]models.OwnedRecord, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}

	// Opportunistic pull: with a clean queue and a reachable server, the
	// server's view replaces the cache before listing.
	if s.directPath(sess) {
		if pending, err := s.actions.CountPending(ctx, sess.AccountID); err == nil && pending == 0 {
			if err := s.pullOwned(ctx, sess.AccountID); err != nil {
				if !gateway.IsUnavailable(err) {
					return nil, err
				}
				s.logger.Warn(ctx, "owned refresh skipped", "error", err)
			}
		}
	}

	return s.owned.GetByOwner(ctx, sess.AccountID)
}

// pullOwned replaces the account's cached records with the server's pages.
func (s *ownershipService) pullOwned(ctx context.Context, accountID int64) error {
	var fetched []models.OwnedRecord
	for page := 1; ; page++ {
		res, err := s.gw.ListOwned(ctx, page, s.pageSize)
		if err != nil {
			return err
		}
		fetched = append(fetched, res.Records...)
		if len(res.Records) < s.pageSize || len(fetched) >= res.Total {
			break
		}
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := owned.NewSQLiteRepository(tx)
		if err := repo.DeleteByOwner(ctx, accountID); err != nil {
			return err
		}
		for i := range fetched {
			fetched[i].AccountID = accountID
			if err := repo.Upsert(ctx, &fetched[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ownershipService) Stats(ctx context.Context) (*OwnershipStats, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}

	if s.directPath(sess) {
		if st, err := s.gw.OwnedStats(ctx); err == nil {
			return &OwnershipStats{Owned: st.Owned, Favorites: st.Favorites, Catalog: st.Catalog}, nil
		} else if !gateway.IsUnavailable(err) {
			return nil, err
		}
	}

	ownedCount, err := s.owned.CountByOwner(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	catalogCount := 0
	if s.catalog != nil {
		if catalogCount, err = s.catalog.Count(ctx); err != nil {
			return nil, err
		}
	}
	favorites := 0
	recs, err := s.owned.GetByOwner(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].Favorite {
			favorites++
		}
	}
	return &OwnershipStats{Owned: ownedCount, Favorites: favorites, Catalog: catalogCount}, nil
}

// reconcileConfirmed stores a server-confirmed record and sweeps away any
// leftover temporary record for the same catalog item.
func (s *ownershipService) reconcileConfirmed(ctx context.Context, accountID int64, rec *models.OwnedRecord) error {
	rec.AccountID = accountID
	if err := s.owned.DeleteTempByItem(ctx, accountID, rec.ItemID, rec.ID); err != nil {
		return err
	}
	if err := s.owned.Upsert(ctx, rec); err != nil {
		return err
	}
	return nil
}

// cancelQueuedAcquire removes itemID from the account's queued acquire
// actions and deletes the optimistic record. Used when an unsynced acquire
// is released before it ever reached the server.
func (s *ownershipService) cancelQueuedAcquire(ctx context.Context, accountID, itemID int64) error {
	pending, err := s.actions.ListPending(ctx, accountID)
	if err != nil {
		return err
	}

	for i := range pending {
		a := &pending[i]
		switch a.Kind {
		case models.ActionAcquire:
			var p models.AcquirePayload
			if err := a.DecodePayload(&p); err != nil {
				return err
			}
			if p.ItemID == itemID {
				if err := s.actions.Delete(ctx, a.ID); err != nil {
					return err
				}
			}
		case models.ActionAcquireBulk:
			var p models.BulkAcquirePayload
			if err := a.DecodePayload(&p); err != nil {
				return err
			}
			kept := p.ItemIDs[:0]
			removed := false
			for _, id := range p.ItemIDs {
				if id == itemID {
					removed = true
					continue
				}
				kept = append(kept, id)
			}
			if !removed {
				continue
			}
			if len(kept) == 0 {
				if err := s.actions.Delete(ctx, a.ID); err != nil {
					return err
				}
				continue
			}
			p.ItemIDs = kept
			raw, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to encode %s payload: %w", a.Kind, err)
			}
			if err := s.actions.UpdatePayload(ctx, a.ID, raw); err != nil {
				return err
			}
		}
	}

	return s.owned.DeleteByItem(ctx, accountID, itemID)
}
