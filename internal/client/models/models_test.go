package models

import (
	"sort"
	"testing"
	"time"

	"github.com/avdeyev/catchdex/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTempID_UniqueAndAboveThreshold(t *testing.T) {
	seen := make(map[int64]struct{})
	for i := 0; i < 1000; i++ {
		id := NewTempID()
		assert.GreaterOrEqual(t, id, common.TempIDThreshold)
		_, dup := seen[id]
		require.False(t, dup, "temp id %d issued twice", id)
		seen[id] = struct{}{}
	}
}

func TestOwnedRecord_IsTemp(t *testing.T) {
	r := &OwnedRecord{ID: NewTempID()}
	assert.True(t, r.IsTemp())

	r = &OwnedRecord{ID: 42}
	assert.False(t, r.IsTemp())
}

func TestNewActionID_SortsByInsertionTime(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Millisecond)
	t3 := t1.Add(time.Second)

	id1, id2, id3 := NewActionID(t1), NewActionID(t2), NewActionID(t3)

	ids := []string{id3, id1, id2}
	sort.Strings(ids)

	assert.Equal(t, []string{id1, id2, id3}, ids)
}

func TestNewPendingAction_RoundTrip(t *testing.T) {
	now := time.Now()
	a, err := NewPendingAction(7, ActionAcquire, AcquirePayload{ItemID: 25, Note: "sparky", CaughtAt: now}, now)
	require.NoError(t, err)

	assert.Equal(t, int64(7), a.AccountID)
	assert.Equal(t, ActionPending, a.Status)
	assert.Equal(t, ActionAcquire, a.Kind)

	var p AcquirePayload
	require.NoError(t, a.DecodePayload(&p))
	assert.Equal(t, int64(25), p.ItemID)
	assert.Equal(t, "sparky", p.Note)
}

func TestSession_Modes(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.LoggedIn())

	local := NewLocalSession("")
	assert.True(t, local.LoggedIn())
	assert.True(t, local.IsLocal())
	assert.Equal(t, "local", local.Username)
	assert.Equal(t, common.LocalAccountID, local.AccountID)

	perm := &Session{AccountID: 10, Mode: ModePermanent, Username: "ash"}
	assert.True(t, perm.LoggedIn())
	assert.False(t, perm.IsLocal())

	anon := &Session{Mode: ModeAnonymous}
	assert.False(t, anon.LoggedIn())
}
