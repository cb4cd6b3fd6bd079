package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionKind identifies the mutation a PendingAction replays.
type ActionKind string

const (
	ActionAcquire     ActionKind = "acquire"
	ActionAcquireBulk ActionKind = "acquire_bulk"
	ActionRelease     ActionKind = "release"
	ActionReleaseBulk ActionKind = "release_bulk"
	ActionUpdateMeta  ActionKind = "update_meta"
)

// ActionStatus is the lifecycle state of a queued action. Successful
// actions are deleted outright, so only pending and failed rows persist.
type ActionStatus string

const (
	ActionPending ActionStatus = "pending"
	ActionFailed  ActionStatus = "failed"
)

// PendingAction is one durable, ordered, not-yet-confirmed mutation.
// The payload is self-sufficient: replaying it needs no other client state.
type PendingAction struct {
	// ID embeds a zero-padded unix-nano prefix, so lexicographic order
	// equals insertion order.
	ID string

	// AccountID is the identity that queued the action.
	AccountID int64

	Kind    ActionKind
	Payload json.RawMessage
	Status  ActionStatus

	CreatedAt time.Time
}

// NewActionID returns a sortable unique action id.
func NewActionID(now time.Time) string {
	return fmt.Sprintf("%020d-%s", now.UnixNano(), uuid.NewString()[:8])
}

// AcquirePayload describes a single-acquire mutation.
type AcquirePayload struct {
	ItemID   int64     `json:"itemId"`
	Note     string    `json:"note,omitempty"`
	CaughtAt time.Time `json:"caughtAt"`
}

// BulkAcquirePayload describes a bulk-acquire mutation.
type BulkAcquirePayload struct {
	ItemIDs  []int64   `json:"itemIds"`
	CaughtAt time.Time `json:"caughtAt"`
}

// ReleasePayload describes a single-release mutation, addressed by catalog
// item id because the internal record id may still be temporary.
type ReleasePayload struct {
	ItemID int64 `json:"itemId"`
}

// BulkReleasePayload describes a bulk-release mutation.
type BulkReleasePayload struct {
	ItemIDs []int64 `json:"itemIds"`
}

// UpdateMetaPayload describes a metadata update. Nil fields are untouched.
type UpdateMetaPayload struct {
	ItemID   int64   `json:"itemId"`
	Note     *string `json:"note,omitempty"`
	Favorite *bool   `json:"favorite,omitempty"`
}

// NewPendingAction builds a pending action with an encoded payload.
func NewPendingAction(accountID int64, kind ActionKind, payload any, now time.Time) (*PendingAction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	return &PendingAction{
		ID:        NewActionID(now),
		AccountID: accountID,
		Kind:      kind,
		Payload:   raw,
		Status:    ActionPending,
		CreatedAt: now.UTC(),
	}, nil
}

// DecodePayload unmarshals the action payload into dst.
func (a *PendingAction) DecodePayload(dst any) error {
	if err := json.Unmarshal(a.Payload, dst); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", a.Kind, err)
	}
	return nil
}
