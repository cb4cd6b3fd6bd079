package models

import (
	"time"

	"github.com/avdeyev/catchdex/internal/common"
)

// Mode is the account session mode.
type Mode string

const (
	// ModeAnonymous means no session at all.
	ModeAnonymous Mode = "anonymous"

	// ModeLocal is a local-only identity: reserved sentinel account id,
	// no auth token, no server backup.
	ModeLocal Mode = "local"

	// ModePermanent is a server-issued identity with an auth token.
	ModePermanent Mode = "permanent"
)

// Session describes the current identity. At most one session is active
// at a time; switching identities migrates or flushes the previous
// identity's queued work first.
type Session struct {
	AccountID int64  `json:"accountId"`
	Mode      Mode   `json:"mode"`
	Username  string `json:"username,omitempty"`
}

// LoggedIn reports whether the session represents an identity
// (local-only or permanent).
func (s Session) LoggedIn() bool {
	return s.Mode != ModeAnonymous && s.Mode != ""
}

// IsLocal reports whether the session is the local-only identity.
func (s Session) IsLocal() bool {
	return s.Mode == ModeLocal
}

// NewLocalSession returns the reserved local-only identity. The username is
// display-only; empty means "local".
func NewLocalSession(username string) Session {
	if username == "" {
		username = "local"
	}
	return Session{AccountID: common.LocalAccountID, Mode: ModeLocal, Username: username}
}

// Profile is the cached user profile for one account.
type Profile struct {
	AccountID int64     `json:"accountId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}
