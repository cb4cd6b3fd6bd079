package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/avdeyev/catchdex/internal/client/client"
	"github.com/avdeyev/catchdex/internal/client/gateway"
	"github.com/avdeyev/catchdex/internal/client/models"
	"github.com/avdeyev/catchdex/internal/common"
)

type stubAuthGateway struct {
	nextID int64
	err    error
}

func (g *stubAuthGateway) Register(ctx context.Context, creds gateway.Credentials) (*models.Profile, string, error) {
	if g.err != nil {
		return nil, "", g.err
	}
	g.nextID++
	return &models.Profile{AccountID: g.nextID + 100, Username: creds.Username, CreatedAt: time.Now()}, "tok", nil
}

func (g *stubAuthGateway) Login(ctx context.Context, creds gateway.Credentials) (*models.Profile, string, error) {
	return g.Register(ctx, creds)
}

type stubDrainer struct {
	calls  int
	forced bool
	err    error
}

func (d *stubDrainer) Drain(ctx context.Context, force bool) error {
	d.calls++
	d.forced = force
	return d.err
}

func setupAccount(t *testing.T, sess models.Session) (*accountFixture, context.Context) {
	t.Helper()
	repos := setupRepos(t)
	gw := &stubAuthGateway{}
	drainer := &stubDrainer{}
	sessions := &stubSessions{sess: sess}
	svc := NewAccountService(AccountOptions{
		DB:       repos.DB,
		Owned:    repos.Owned,
		Actions:  repos.Actions,
		Profiles: repos.Profile,
		Gateway:  gw,
		Sessions: sessions,
		Drainer:  drainer,
	})
	return &accountFixture{repos: repos, gw: gw, drainer: drainer, sessions: sessions, svc: svc}, context.Background()
}

type accountFixture struct {
	repos    *storage.Repositories
	gw       *stubAuthGateway
	drainer  *stubDrainer
	sessions *stubSessions
	svc      AccountService
}

func TestRegister_EstablishesPermanentSession(t *testing.T) {
	f, ctx := setupAccount(t, models.Session{Mode: models.ModeAnonymous})

	prof, err := f.svc.Register(ctx, "ash", "pikapika99")
	require.NoError(t, err)

	sess := f.sessions.Current()
	assert.Equal(t, prof.AccountID, sess.AccountID)
	assert.Equal(t, models.ModePermanent, sess.Mode)
	assert.Equal(t, "tok", f.sessions.Token())

	cached, err := f.repos.Profile.GetByID(ctx, prof.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "ash", cached.Username)
}

func TestLogin_RejectedWhileSessionActive(t *testing.T) {
	f, ctx := setupAccount(t, models.NewLocalSession(""))

	_, err := f.svc.Login(ctx, "ash", "pikapika99")
	assert.ErrorIs(t, err, common.ErrSessionActive)
}

func TestStartLocal(t *testing.T) {
	f, ctx := setupAccount(t, models.Session{Mode: models.ModeAnonymous})

	require.NoError(t, f.svc.StartLocal(ctx, "trainer"))
	sess := f.sessions.Current()
	assert.True(t, sess.IsLocal())
	assert.Equal(t, common.LocalAccountID, sess.AccountID)
}

func TestPromoteToPermanent_MigratesDataInPlace(t *testing.T) {
	f, ctx := setupAccount(t, models.NewLocalSession(""))

	// Two offline catches and their queued actions under the sentinel id.
	caughtAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := &models.OwnedRecord{ID: models.NewTempID(), AccountID: common.LocalAccountID, ItemID: 25, CaughtAt: caughtAt}
	require.NoError(t, f.repos.Owned.Upsert(ctx, rec))
	a, err := models.NewPendingAction(common.LocalAccountID, models.ActionAcquire,
		models.AcquirePayload{ItemID: 25, CaughtAt: caughtAt}, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.repos.Actions.Insert(ctx, a))

	prof, err := f.svc.PromoteToPermanent(ctx, "ash", "pikapika99")
	require.NoError(t, err)

	// Records keep their ids and timestamps, only the owner changed.
	migrated, err := f.repos.Owned.GetByOwnerAndItem(ctx, prof.AccountID, 25)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, migrated.ID)
	assert.True(t, caughtAt.Equal(migrated.CaughtAt))

	pending, err := f.repos.Actions.ListPending(ctx, prof.AccountID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	// The drain ran in force mode, and nothing remains under the sentinel.
	assert.Equal(t, 1, f.drainer.calls)
	assert.True(t, f.drainer.forced)
	leftoverOwned, err := f.repos.Owned.GetByOwner(ctx, common.LocalAccountID)
	require.NoError(t, err)
	assert.Empty(t, leftoverOwned)
	leftoverActions, err := f.repos.Actions.ListByOwner(ctx, common.LocalAccountID)
	require.NoError(t, err)
	assert.Empty(t, leftoverActions)

	assert.Equal(t, models.ModePermanent, f.sessions.Current().Mode)
}

func TestPromoteToPermanent_RequiresLocalSession(t *testing.T) {
	f, ctx := setupAccount(t, models.Session{AccountID: 7, Mode: models.ModePermanent})

	_, err := f.svc.PromoteToPermanent(ctx, "ash", "pikapika99")
	assert.ErrorIs(t, err, common.ErrNotLoggedIn)
}

func TestLogout_ClearsQueue(t *testing.T) {
	f, ctx := setupAccount(t, models.Session{AccountID: 7, Mode: models.ModePermanent})

	a, err := models.NewPendingAction(7, models.ActionRelease, models.ReleasePayload{ItemID: 4}, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.repos.Actions.Insert(ctx, a))

	n, err := f.svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, f.svc.Logout(ctx))

	all, err := f.repos.Actions.ListByOwner(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, all, "queued actions die with their session")
	assert.False(t, f.sessions.Current().LoggedIn())
}

func TestLogout_LocalOnlyDiscardsCollection(t *testing.T) {
	f, ctx := setupAccount(t, localSession())

	for _, itemID := range []int64{25, 26} {
		rec := &models.OwnedRecord{
			ID:        models.NewTempID(),
			AccountID: common.LocalAccountID,
			ItemID:    itemID,
			CaughtAt:  time.Now(),
		}
		require.NoError(t, f.repos.Owned.Upsert(ctx, rec))
	}
	a, err := models.NewPendingAction(common.LocalAccountID, models.ActionAcquire,
		models.AcquirePayload{ItemID: 25, CaughtAt: time.Now()}, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.repos.Actions.Insert(ctx, a))

	require.NoError(t, f.svc.Logout(ctx))

	// The sentinel account id is shared by every local session, so nothing
	// may survive for the next person who starts one.
	recs, err := f.repos.Owned.GetByOwner(ctx, common.LocalAccountID)
	require.NoError(t, err)
	assert.Empty(t, recs, "a local-only collection has no backup and dies with its session")
	actions, err := f.repos.Actions.ListByOwner(ctx, common.LocalAccountID)
	require.NoError(t, err)
	assert.Empty(t, actions)
	assert.False(t, f.sessions.Current().LoggedIn())
}

func TestLogout_PermanentKeepsCachedRecords(t *testing.T) {
	f, ctx := setupAccount(t, permanentSession())

	rec := &models.OwnedRecord{ID: 100, AccountID: 7, ItemID: 25, CaughtAt: time.Now()}
	require.NoError(t, f.repos.Owned.Upsert(ctx, rec))

	require.NoError(t, f.svc.Logout(ctx))

	// Server-backed records stay cached; the next login refreshes them.
	recs, err := f.repos.Owned.GetByOwner(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
