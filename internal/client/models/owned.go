package models

import (
	"sync/atomic"
	"time"

	"github.com/avdeyev/catchdex/internal/common"
)

// OwnedRecord represents one catalog item owned ("caught") by one account.
//
// A record created while offline, or while the remote call is still in
// flight, carries a temporary id (a unix-millisecond timestamp, see
// common.TempIDThreshold). The sync manager replaces it with the
// server-confirmed record once the queued action succeeds.
type OwnedRecord struct {
	// ID is the internal record id: server-assigned once confirmed,
	// temporary before that.
	ID int64

	// AccountID is the owning account (common.LocalAccountID in
	// local-only mode).
	AccountID int64

	// ItemID references the CatalogItem by its external id.
	ItemID int64

	// CaughtAt is the acquisition time in UTC.
	CaughtAt time.Time

	// Note is free text attached by the user.
	Note string

	// Favorite marks the record in list views.
	Favorite bool
}

// IsTemp reports whether the record still awaits server confirmation.
func (r *OwnedRecord) IsTemp() bool {
	return common.IsTempID(r.ID)
}

var lastTempID atomic.Int64

// NewTempID returns a unique temporary record id derived from the current
// time. Ids are strictly increasing even when multiple records are created
// within one millisecond (bulk acquire).
func NewTempID() int64 {
	for {
		id := time.Now().UnixMilli()
		last := lastTempID.Load()
		if id <= last {
			id = last + 1
		}
		if lastTempID.CompareAndSwap(last, id) {
			return id
		}
	}
}
