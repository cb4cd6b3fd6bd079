package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avdeyev/catchdex/internal/client/gateway"
	"github.com/avdeyev/catchdex/internal/client/models"
	"github.com/avdeyev/catchdex/internal/client/repositories/actions"
	"github.com/avdeyev/catchdex/internal/client/repositories/owned"
	"github.com/avdeyev/catchdex/internal/client/repositories/profile"
	"github.com/avdeyev/catchdex/internal/common"
	"github.com/avdeyev/catchdex/internal/dbx"
	"github.com/avdeyev/catchdex/internal/logging"
)

// AuthGateway is the slice of the remote gateway the account service uses.
type AuthGateway interface {
	Register(ctx context.Context, creds gateway.Credentials) (*models.Profile, string, error)
	Login(ctx context.Context, creds gateway.Credentials) (*models.Profile, string, error)
}

// Drainer flushes the pending-action queue. Satisfied by the sync manager.
type Drainer interface {
	Drain(ctx context.Context, force bool) error
}

// AccountService manages the identity lifecycle: anonymous, local-only, and
// permanent sessions, including the local-only to permanent promotion.
type AccountService interface {
	// Register creates a server account and logs into it.
	Register(ctx context.Context, username, password string) (*models.Profile, error)

	// Login authenticates an existing account.
	Login(ctx context.Context, username, password string) (*models.Profile, error)

	// StartLocal begins a local-only session with the reserved sentinel
	// identity. No network, no token, promotion available later.
	StartLocal(ctx context.Context, username string) error

	// PromoteToPermanent turns the local-only identity into a real server
	// account, migrating every owned record and queued action in place so
	// acquisition timestamps survive, then drains the queue immediately.
	PromoteToPermanent(ctx context.Context, username, password string) (*models.Profile, error)

	// PendingCount reports how many queued actions would be orphaned by a
	// logout right now.
	PendingCount(ctx context.Context) (int, error)

	// Logout forgets the session and discards the identity's queue.
	Logout(ctx context.Context) error
}

type accountService struct {
	db       *sql.DB
	owned    owned.Repository
	actions  actions.Repository
	profiles profile.Repository
	gw       AuthGateway
	sessions SessionStore
	drainer  Drainer
	logger   logging.Logger
}

// AccountOptions wires an AccountService.
type AccountOptions struct {
	DB       *sql.DB
	Owned    owned.Repository
	Actions  actions.Repository
	Profiles profile.Repository
	Gateway  AuthGateway
	Sessions SessionStore
	Drainer  Drainer
	Logger   logging.Logger
}

// NewAccountService constructs an AccountService.
func NewAccountService(opts AccountOptions) AccountService {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &accountService{
		db:       opts.DB,
		owned:    opts.Owned,
		actions:  opts.Actions,
		profiles: opts.Profiles,
		gw:       opts.Gateway,
		sessions: opts.Sessions,
		drainer:  opts.Drainer,
		logger:   opts.Logger,
	}
}

func (s *accountService) Register(ctx context.Context, username, password string) (*models.Profile, error) {
	if s.sessions.Current().LoggedIn() {
		return nil, common.ErrSessionActive
	}

	prof, token, err := s.gw.Register(ctx, gateway.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return prof, s.establish(ctx, prof, token)
}

func (s *accountService) Login(ctx context.Context, username, password string) (*models.Profile, error) {
	if s.sessions.Current().LoggedIn() {
		return nil, common.ErrSessionActive
	}

	prof, token, err := s.gw.Login(ctx, gateway.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return prof, s.establish(ctx, prof, token)
}

func (s *accountService) establish(ctx context.Context, prof *models.Profile, token string) error {
	if err := s.sessions.SetPermanent(ctx, prof, token); err != nil {
		return err
	}
	if err := s.profiles.Upsert(ctx, prof); err != nil {
		return err
	}
	s.logger.Info(ctx, "logged in", "account", prof.AccountID, "username", prof.Username)
	return nil
}

func (s *accountService) StartLocal(ctx context.Context, username string) error {
	if s.sessions.Current().LoggedIn() {
		return common.ErrSessionActive
	}
	if err := s.sessions.SetLocal(ctx, username); err != nil {
		return err
	}
	s.logger.Info(ctx, "started local-only session", "username", username)
	return nil
}

func (s *accountService) PromoteToPermanent(ctx context.Context, username, password string) (*models.Profile, error) {
	sess := s.sessions.Current()
	if !sess.IsLocal() {
		return nil, fmt.Errorf("%w: promotion needs a local-only session", common.ErrNotLoggedIn)
	}

	prof, token, err := s.gw.Register(ctx, gateway.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	// Rewrite owners in place: ids and acquisition timestamps survive.
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := owned.NewSQLiteRepository(tx).ReassignOwner(ctx, common.LocalAccountID, prof.AccountID); err != nil {
			return err
		}
		return actions.NewSQLiteRepository(tx).ReassignOwner(ctx, common.LocalAccountID, prof.AccountID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate local data: %w", err)
	}

	if err := s.establish(ctx, prof, token); err != nil {
		return nil, err
	}

	// Drain immediately; connectivity was just proven by the register
	// call. A mid-drain network drop leaves the rest queued under the new
	// id, which the periodic drain picks up later.
	if s.drainer != nil {
		if err := s.drainer.Drain(ctx, true); err != nil {
			s.logger.Warn(ctx, "post-promotion drain incomplete", "error", err)
		}
	}

	// Nothing should remain under the sentinel id.
	if err := s.actions.DeleteByOwner(ctx, common.LocalAccountID); err != nil {
		return nil, err
	}
	if err := s.owned.DeleteByOwner(ctx, common.LocalAccountID); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "promoted local-only account", "account", prof.AccountID)
	return prof, nil
}

func (s *accountService) PendingCount(ctx context.Context) (int, error) {
	sess := s.sessions.Current()
	if !sess.LoggedIn() {
		return 0, common.ErrNotLoggedIn
	}
	return s.actions.CountPending(ctx, sess.AccountID)
}

func (s *accountService) Logout(ctx context.Context) error {
	sess := s.sessions.Current()
	if !sess.LoggedIn() {
		return common.ErrNotLoggedIn
	}

	// Queued actions belong to the session that created them; a different
	// identity must never replay them. A local-only collection goes with
	// them: it has no server backup and the sentinel account id is reused
	// by the next local session.
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := actions.NewSQLiteRepository(tx).DeleteByOwner(ctx, sess.AccountID); err != nil {
			return err
		}
		if !sess.IsLocal() {
			return nil
		}
		return owned.NewSQLiteRepository(tx).DeleteByOwner(ctx, sess.AccountID)
	})
	if err != nil {
		return fmt.Errorf("failed to discard session data: %w", err)
	}
	if err := s.sessions.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info(ctx, "logged out", "account", sess.AccountID)
	return nil
}
