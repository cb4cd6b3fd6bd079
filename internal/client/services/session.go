// Package services contains the application services of the CatchDex
// client: the session store, the catalog and ownership facades, and account
// lifecycle management. Services hide the online/offline and
// local-only/permanent branching from the UI.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avdeyev/catchdex/internal/client/models"
	"github.com/avdeyev/catchdex/internal/client/repositories/metadata"
	"github.com/avdeyev/catchdex/internal/common"
)

// SessionStore owns the active identity and its auth token. The session
// descriptor and token are persisted to the metadata store so a restart
// resumes where the user left off.
type SessionStore interface {
	// Load restores the persisted session. An expired token demotes the
	// session back to anonymous.
	Load(ctx context.Context) error

	// Current returns a copy of the active session.
	Current() models.Session

	// Token returns the current auth token or "". Safe for concurrent use;
	// wired as the gateway's token source.
	Token() string

	// SetPermanent persists a server-backed identity and its token.
	SetPermanent(ctx context.Context, profile *models.Profile, token string) error

	// SetLocal persists the local-only sentinel identity.
	SetLocal(ctx context.Context, username string) error

	// ClearToken drops the token but keeps the session descriptor. Wired as
	// the gateway's 401 hook.
	ClearToken(ctx context.Context)

	// Clear forgets the session and token entirely.
	Clear(ctx context.Context) error
}

type sessionStore struct {
	meta metadata.Repository

	mu      sync.RWMutex
	current models.Session
	token   string
}

// NewSessionStore returns a SessionStore backed by the metadata repository.
func NewSessionStore(meta metadata.Repository) SessionStore {
	return &sessionStore{meta: meta}
}

func (s *sessionStore) Load(ctx context.Context) error {
	raw, err := s.meta.Get(ctx, metadata.KeySession)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if raw == nil {
		return nil
	}

	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return fmt.Errorf("failed to decode session: %w", err)
	}

	tok, err := s.meta.Get(ctx, metadata.KeyAuthToken)
	if err != nil {
		return fmt.Errorf("failed to load auth token: %w", err)
	}

	if sess.Mode == models.ModePermanent {
		if len(tok) == 0 || tokenExpired(string(tok), time.Now()) {
			// The stored identity is unusable without a live token.
			return s.Clear(ctx)
		}
		if id, err := TokenAccountID(string(tok)); err != nil || id != sess.AccountID {
			// Token and session descriptor disagree about the identity;
			// neither half can be trusted.
			return s.Clear(ctx)
		}
	}

	s.mu.Lock()
	s.current = sess
	s.token = string(tok)
	s.mu.Unlock()
	return nil
}

func (s *sessionStore) Current() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *sessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *sessionStore) SetPermanent(ctx context.Context, profile *models.Profile, token string) error {
	sess := models.Session{
		AccountID: profile.AccountID,
		Mode:      models.ModePermanent,
		Username:  profile.Username,
	}
	if err := s.persist(ctx, sess, token); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = sess
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *sessionStore) SetLocal(ctx context.Context, username string) error {
	sess := models.NewLocalSession(username)
	if err := s.persist(ctx, sess, ""); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = sess
	s.token = ""
	s.mu.Unlock()
	return nil
}

func (s *sessionStore) persist(ctx context.Context, sess models.Session, token string) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.meta.Set(ctx, metadata.KeySession, raw); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if token == "" {
		if err := s.meta.Delete(ctx, metadata.KeyAuthToken); err != nil {
			return fmt.Errorf("failed to clear auth token: %w", err)
		}
		return nil
	}
	if err := s.meta.Set(ctx, metadata.KeyAuthToken, []byte(token)); err != nil {
		return fmt.Errorf("failed to save auth token: %w", err)
	}
	return nil
}

func (s *sessionStore) ClearToken(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	_ = s.meta.Delete(ctx, metadata.KeyAuthToken)
}

func (s *sessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = models.Session{Mode: models.ModeAnonymous}
	s.token = ""
	s.mu.Unlock()

	if err := s.meta.Delete(ctx, metadata.KeySession); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if err := s.meta.Delete(ctx, metadata.KeyAuthToken); err != nil {
		return fmt.Errorf("failed to clear auth token: %w", err)
	}
	return nil
}

// tokenExpired reads the exp claim without verifying the signature. The
// client has no key material; expiry is only used to avoid presenting a
// token the server is guaranteed to reject.
func tokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return true
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(now)
}

// TokenAccountID extracts the account id from the token's subject claim.
// Returns common.ErrInvalidID when the token does not carry one.
func TokenAccountID(token string) (int64, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return 0, fmt.Errorf("failed to parse token: %w", err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, common.ErrInvalidID
	}
	return id, nil
}
