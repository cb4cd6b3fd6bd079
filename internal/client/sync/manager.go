// Package sync drains the durable action queue against the server. One pass
// replays pending actions oldest-first: confirmed actions are deleted,
// rejected ones are marked failed and their optimistic records rolled back,
// and a network-class error aborts the rest of the pass for a later retry.
package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/avdeyev/catchdex/internal/client/gateway"
	"github.com/avdeyev/catchdex/internal/client/models"
	"github.com/avdeyev/catchdex/internal/client/repositories/actions"
	"github.com/avdeyev/catchdex/internal/client/repositories/owned"
	"github.com/avdeyev/catchdex/internal/logging"
)

// retention is how long finished actions are kept for inspection.
const retention = 24 * time.Hour

// Gateway is the slice of the remote gateway the drain dispatches to.
type Gateway interface {
	Acquire(ctx context.Context, itemID int64, note string, caughtAt time.Time) (*models.OwnedRecord, error)
	AcquireBulk(ctx context.Context, itemIDs []int64, caughtAt time.Time) ([]models.OwnedRecord, error)
	Release(ctx context.Context, itemID int64) error
	ReleaseBulk(ctx context.Context, itemIDs []int64) error
	UpdateMeta(ctx context.Context, itemID int64, note *string, favorite *bool) (*models.OwnedRecord, error)
}

// SessionSource exposes the active session. Satisfied by the session store.
type SessionSource interface {
	Current() models.Session
}

// OnlineChecker reports effective reachability.
type OnlineChecker interface {
	Online() bool
}

// Notifier delivers reachability edges. Satisfied by the monitor.
type Notifier interface {
	Subscribe(fn func(online bool)) int
	Unsubscribe(id int)
}

// Manager owns the drain loop.
type Manager struct {
	owned    owned.Repository
	actions  actions.Repository
	gw       Gateway
	sessions SessionSource
	online   OnlineChecker
	notifier Notifier
	logger   logging.Logger
	interval time.Duration

	inFlight atomic.Bool
	kick     chan struct{}
}

// Options wires a Manager.
type Options struct {
	Owned    owned.Repository
	Actions  actions.Repository
	Gateway  Gateway
	Sessions SessionSource
	Online   OnlineChecker
	Notifier Notifier
	Logger   logging.Logger
	Interval time.Duration
}

// New constructs a Manager.
func New(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Manager{
		owned:    opts.Owned,
		actions:  opts.Actions,
		gw:       opts.Gateway,
		sessions: opts.Sessions,
		online:   opts.Online,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		interval: opts.Interval,
		kick:     make(chan struct{}, 1),
	}
}

// Run drains periodically and on every offline-to-online edge until the
// context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	var subID int
	if m.notifier != nil {
		subID = m.notifier.Subscribe(func(online bool) {
			if online {
				select {
				case m.kick <- struct{}{}:
				default:
				}
			}
		})
		defer m.notifier.Unsubscribe(subID)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.drainLogged(ctx, false)
		case <-m.kick:
			m.drainLogged(ctx, false)
		}
	}
}

func (m *Manager) drainLogged(ctx context.Context, force bool) {
	if err := m.Drain(ctx, force); err != nil {
		m.logger.Warn(ctx, "drain pass incomplete", "error", err)
	}
}

// Drain replays the active account's pending actions. With force unset the
// pass is skipped while unreachable, and skipped entirely for local-only
// sessions, which only sync during promotion. At most one pass runs at a
// time; an overlapping call returns immediately.
func (m *Manager) Drain(ctx context.Context, force bool) error {
	if !m.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer m.inFlight.Store(false)

	sess := m.sessions.Current()
	if !sess.LoggedIn() {
		return nil
	}
	if !force && (!m.online.Online() || sess.IsLocal()) {
		return nil
	}

	pending, err := m.actions.ListPending(ctx, sess.AccountID)
	if err != nil {
		return err
	}

	for i := range pending {
		a := &pending[i]
		m.logger.Debug(ctx, "replaying action", "action", a.ID, "kind", a.Kind)
		err := m.dispatch(ctx, sess.AccountID, a)
		switch {
		case err == nil:
			// Deleting confirmed actions keeps the queue empty in the
			// common case.
			if err := m.actions.Delete(ctx, a.ID); err != nil {
				return err
			}
			actionsProcessed.Inc()

		case gateway.IsUnavailable(err):
			// Connectivity likely dropped mid-pass; everything left
			// stays pending for the next attempt.
			passesAborted.Inc()
			return fmt.Errorf("drain aborted at action %s: %w", a.ID, err)

		default:
			m.logger.Warn(ctx, "action rejected by server", "action", a.ID, "kind", a.Kind, "error", err)
			if err := m.actions.MarkFailed(ctx, a.ID); err != nil {
				return err
			}
			if err := m.rollback(ctx, sess.AccountID, a); err != nil {
				return err
			}
			actionsFailed.Inc()
		}
	}

	if err := m.actions.DeleteFinishedBefore(ctx, time.Now().Add(-retention)); err != nil {
		return err
	}
	return nil
}

// dispatch replays one action verbatim and reconciles the local store with
// the server's answer.
func (m *Manager) dispatch(ctx context.Context, accountID int64, a *models.PendingAction) error {
	switch a.Kind {
	case models.ActionAcquire:
		var p models.AcquirePayload
		if err := a.DecodePayload(&p); err != nil {
			return err
		}
		rec, err := m.gw.Acquire(ctx, p.ItemID, p.Note, p.CaughtAt)
		if err != nil {
			return err
		}
		return m.confirm(ctx, accountID, rec)

	case models.ActionAcquireBulk:
		var p models.BulkAcquirePayload
		if err := a.DecodePayload(&p); err != nil {
			return err
		}
		recs, err := m.gw.AcquireBulk(ctx, p.ItemIDs, p.CaughtAt)
		if err != nil {
			return err
		}
		for i := range recs {
			if err := m.confirm(ctx, accountID, &recs[i]); err != nil {
				return err
			}
		}
		return nil

	case models.ActionRelease:
		var p models.ReleasePayload
		if err := a.DecodePayload(&p); err != nil {
			return err
		}
		if err := m.gw.Release(ctx, p.ItemID); err != nil {
			return err
		}
		return m.owned.DeleteByItem(ctx, accountID, p.ItemID)

	case models.ActionReleaseBulk:
		var p models.BulkReleasePayload
		if err := a.DecodePayload(&p); err != nil {
			return err
		}
		if err := m.gw.ReleaseBulk(ctx, p.ItemIDs); err != nil {
			return err
		}
		for _, id := range p.ItemIDs {
			if err := m.owned.DeleteByItem(ctx, accountID, id); err != nil {
				return err
			}
		}
		return nil

	case models.ActionUpdateMeta:
		var p models.UpdateMetaPayload
		if err := a.DecodePayload(&p); err != nil {
			return err
		}
		rec, err := m.gw.UpdateMeta(ctx, p.ItemID, p.Note, p.Favorite)
		if err != nil {
			return err
		}
		return m.confirm(ctx, accountID, rec)

	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

// confirm swaps any leftover temporary record for the server-confirmed one.
func (m *Manager) confirm(ctx context.Context, accountID int64, rec *models.OwnedRecord) error {
	rec.AccountID = accountID
	if err := m.owned.DeleteTempByItem(ctx, accountID, rec.ItemID, rec.ID); err != nil {
		return err
	}
	return m.owned.Upsert(ctx, rec)
}

// rollback undoes the optimistic records of a rejected acquire so the local
// view stops claiming something the server refused. Releases and metadata
// updates leave nothing worth restoring.
func (m *Manager) rollback(ctx context.Context, accountID int64, a *models.PendingAction) error {
	switch a.Kind {
	case models.ActionAcquire:
		var p models.AcquirePayload
		if err := a.DecodePayload(&p); err != nil {
			return err
		}
		return m.owned.DeleteTempByItem(ctx, accountID, p.ItemID, 0)

	case models.ActionAcquireBulk:
		var p models.BulkAcquirePayload
		if err := a.DecodePayload(&p); err != nil {
			return err
		}
		for _, id := range p.ItemIDs {
			if err := m.owned.DeleteTempByItem(ctx, accountID, id, 0); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}
