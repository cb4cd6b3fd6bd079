// Package common contains shared constants and sentinel errors used across
// CatchDex components.
package common

// AuthHeaderName is the HTTP header used to carry the access token on
// outbound requests.
const AuthHeaderName = "Authorization"

// LocalAccountID is the reserved sentinel identity for local-only mode.
// The server never issues negative account ids, so local-only data can
// coexist with synced data in the same tables.
const LocalAccountID int64 = -1

// TempIDThreshold separates client-assigned temporary record ids from
// server-assigned ones. Temporary ids are unix-millisecond timestamps
// (~1.7e12 and growing); server ids are small positive integers.
const TempIDThreshold int64 = 1_000_000_000_000

// IsTempID reports whether id was assigned locally and is still awaiting
// server confirmation.
func IsTempID(id int64) bool {
	return id >= TempIDThreshold
}
