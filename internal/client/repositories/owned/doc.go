// Package owned persists OwnedRecord rows, the per-account "caught"
// collection. Temporary (client-assigned) and server-confirmed ids briefly
// coexist for the same catalog item during sync, so reads de-duplicate and
// writes clean up rather than relying on a hard uniqueness constraint.
package owned
