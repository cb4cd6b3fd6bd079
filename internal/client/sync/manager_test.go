package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/avdeyev/catchdex/internal/client/client"
	"github.com/avdeyev/catchdex/internal/client/gateway"
	"github.com/avdeyev/catchdex/internal/client/models"
	"github.com/avdeyev/catchdex/internal/common"
)

type fakeSessions struct{ sess models.Session }

func (f *fakeSessions) Current() models.Session { return f.sess }

type fakeOnline struct{ online bool }

func (f *fakeOnline) Online() bool { return f.online }

// fakeGateway scripts per-item outcomes: nil confirms, an APIError rejects,
// ErrUnavailable aborts.
type fakeGateway struct {
	errByItem map[int64]error
	nextID    int64
	calls     []int64
}

func (f *fakeGateway) outcome(itemID int64) error { return f.errByItem[itemID] }

func (f *fakeGateway) confirm(itemID int64, caughtAt time.Time) *models.OwnedRecord {
	f.nextID++
	return &models.OwnedRecord{ID: f.nextID, ItemID: itemID, CaughtAt: caughtAt}
}

func (f *fakeGateway) Acquire(ctx context.Context, itemID int64, note string, caughtAt time.Time) (*models.OwnedRecord, error) {
	f.calls = append(f.calls, itemID)
	if err := f.outcome(itemID); err != nil {
		return nil, err
	}
	rec := f.confirm(itemID, caughtAt)
	rec.Note = note
	return rec, nil
}

func (f *fakeGateway) AcquireBulk(ctx context.Context, itemIDs []int64, caughtAt time.Time) ([]models.OwnedRecord, error) {
	var out []models.OwnedRecord
	for _, id := range itemIDs {
		f.calls = append(f.calls, id)
		if err := f.outcome(id); err != nil {
			return nil, err
		}
		out = append(out, *f.confirm(id, caughtAt))
	}
	return out, nil
}

func (f *fakeGateway) Release(ctx context.Context, itemID int64) error {
	f.calls = append(f.calls, itemID)
	return f.outcome(itemID)
}

func (f *fakeGateway) ReleaseBulk(ctx context.Context, itemIDs []int64) error {
	for _, id := range itemIDs {
		f.calls = append(f.calls, id)
		if err := f.outcome(id); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeGateway) UpdateMeta(ctx context.Context, itemID int64, note *string, favorite *bool) (*models.OwnedRecord, error) {
	f.calls = append(f.calls, itemID)
	if err := f.outcome(itemID); err != nil {
		return nil, err
	}
	rec := f.confirm(itemID, time.Now())
	if note != nil {
		rec.Note = *note
	}
	if favorite != nil {
		rec.Favorite = *favorite
	}
	return rec, nil
}

type fixture struct {
	repos *storage.Repositories
	gw    *fakeGateway
	mgr   *Manager
}

func setup(t *testing.T, sess models.Session) *fixture {
	t.Helper()
	repos, err := storage.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.DB.Close() })

	gw := &fakeGateway{errByItem: map[int64]error{}}
	mgr := New(Options{
		Owned:    repos.Owned,
		Actions:  repos.Actions,
		Gateway:  gw,
		Sessions: &fakeSessions{sess: sess},
		Online:   &fakeOnline{online: true},
	})
	return &fixture{repos: repos, gw: gw, mgr: mgr}
}

func queueAcquire(t *testing.T, f *fixture, accountID, itemID int64) *models.OwnedRecord {
	t.Helper()
	ctx := context.Background()
	rec := &models.OwnedRecord{ID: models.NewTempID(), AccountID: accountID, ItemID: itemID, CaughtAt: time.Now().UTC()}
	require.NoError(t, f.repos.Owned.Upsert(ctx, rec))
	a, err := models.NewPendingAction(accountID, models.ActionAcquire,
		models.AcquirePayload{ItemID: itemID, CaughtAt: rec.CaughtAt}, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.repos.Actions.Insert(ctx, a))
	return rec
}

func permanent(id int64) models.Session {
	return models.Session{AccountID: id, Mode: models.ModePermanent, Username: "ash"}
}

func TestDrain_ConfirmsAndReconcilesTempRecords(t *testing.T) {
	f := setup(t, permanent(7))
	ctx := context.Background()

	queueAcquire(t, f, 7, 25)
	queueAcquire(t, f, 7, 26)

	require.NoError(t, f.mgr.Drain(ctx, false))

	n, err := f.repos.Actions.CountPending(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, n, "confirmed actions are deleted, not kept")

	recs, err := f.repos.Owned.GetByOwner(ctx, 7)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.False(t, r.IsTemp(), "temp record %d must be replaced by the server id", r.ID)
	}
}

func TestDrain_ReplaysOldestFirst(t *testing.T) {
	f := setup(t, permanent(7))

	queueAcquire(t, f, 7, 3)
	queueAcquire(t, f, 7, 1)
	queueAcquire(t, f, 7, 2)

	require.NoError(t, f.mgr.Drain(context.Background(), false))
	assert.Equal(t, []int64{3, 1, 2}, f.gw.calls)
}

func TestDrain_ApplicationErrorDoesNotBlockQueue(t *testing.T) {
	f := setup(t, permanent(7))
	ctx := context.Background()

	queueAcquire(t, f, 7, 25)
	queueAcquire(t, f, 7, 26)
	f.gw.errByItem[25] = &gateway.APIError{Status: 409, Message: "already owned"}

	require.NoError(t, f.mgr.Drain(ctx, false))

	// The poisoned action is retained as failed; the next one still ran.
	all, err := f.repos.Actions.ListByOwner(ctx, 7)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.ActionFailed, all[0].Status)

	// Its optimistic record is rolled back; the confirmed one survives.
	recs, err := f.repos.Owned.GetByOwner(ctx, 7)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(26), recs[0].ItemID)
	assert.False(t, recs[0].IsTemp())
}

func TestDrain_NetworkErrorAbortsPass(t *testing.T) {
	f := setup(t, permanent(7))
	ctx := context.Background()

	queueAcquire(t, f, 7, 25)
	queueAcquire(t, f, 7, 26)
	f.gw.errByItem[25] = fmt.Errorf("%w: connection reset", gateway.ErrUnavailable)

	err := f.mgr.Drain(ctx, false)
	require.Error(t, err)
	assert.True(t, gateway.IsUnavailable(err))

	// Nothing was marked failed; both stay pending for the next pass.
	n, err := f.repos.Actions.CountPending(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{25}, f.gw.calls, "the pass stops at the first network failure")
}

func TestDrain_SkipsWhileOffline(t *testing.T) {
	f := setup(t, permanent(7))
	f.mgr.online = &fakeOnline{online: false}
	ctx := context.Background()

	queueAcquire(t, f, 7, 25)

	require.NoError(t, f.mgr.Drain(ctx, false))
	assert.Empty(t, f.gw.calls)

	// force overrides the reachability gate (promotion flow).
	require.NoError(t, f.mgr.Drain(ctx, true))
	assert.Equal(t, []int64{25}, f.gw.calls)
}

func TestDrain_LocalOnlySyncsOnlyWhenForced(t *testing.T) {
	f := setup(t, models.NewLocalSession(""))
	ctx := context.Background()

	queueAcquire(t, f, common.LocalAccountID, 25)

	require.NoError(t, f.mgr.Drain(ctx, false))
	assert.Empty(t, f.gw.calls, "local-only accounts never sync opportunistically")

	require.NoError(t, f.mgr.Drain(ctx, true))
	assert.Equal(t, []int64{25}, f.gw.calls)
}

func TestDrain_ReleaseAndUpdateKinds(t *testing.T) {
	f := setup(t, permanent(7))
	ctx := context.Background()

	// A confirmed record whose release was queued offline.
	require.NoError(t, f.repos.Owned.Upsert(ctx, &models.OwnedRecord{ID: 100, AccountID: 7, ItemID: 4, CaughtAt: time.Now()}))
	rel, err := models.NewPendingAction(7, models.ActionRelease, models.ReleasePayload{ItemID: 4}, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.repos.Actions.Insert(ctx, rel))

	// A note edit queued offline for another record.
	require.NoError(t, f.repos.Owned.Upsert(ctx, &models.OwnedRecord{ID: 101, AccountID: 7, ItemID: 5, CaughtAt: time.Now()}))
	note := "shiny"
	upd, err := models.NewPendingAction(7, models.ActionUpdateMeta, models.UpdateMetaPayload{ItemID: 5, Note: &note}, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.repos.Actions.Insert(ctx, upd))

	require.NoError(t, f.mgr.Drain(ctx, false))

	n, err := f.repos.Actions.CountPending(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.repos.Owned.GetByOwnerAndItem(ctx, 7, 4)
	assert.ErrorIs(t, err, common.ErrNotFound)

	got, err := f.repos.Owned.GetByOwnerAndItem(ctx, 7, 5)
	require.NoError(t, err)
	assert.Equal(t, "shiny", got.Note)
}

func TestDrain_SingleFlight(t *testing.T) {
	f := setup(t, permanent(7))

	f.mgr.inFlight.Store(true)
	queueAcquire(t, f, 7, 25)

	require.NoError(t, f.mgr.Drain(context.Background(), false))
	assert.Empty(t, f.gw.calls, "an overlapping drain returns without working")
}

func TestRun_DrainsOnOnlineEdge(t *testing.T) {
	f := setup(t, permanent(7))
	queueAcquire(t, f, 7, 25)

	notifier := &stubNotifier{}
	f.mgr.notifier = notifier
	f.mgr.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.mgr.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return notifier.get() != nil }, time.Second, time.Millisecond)
	notifier.get()(true)

	assert.Eventually(t, func() bool {
		n, err := f.repos.Actions.CountPending(context.Background(), 7)
		return err == nil && n == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

type stubNotifier struct {
	mu sync.Mutex
	fn func(bool)
}

func (s *stubNotifier) Subscribe(fn func(online bool)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
	return 1
}

func (s *stubNotifier) Unsubscribe(id int) {}

func (s *stubNotifier) get() func(bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fn
}
