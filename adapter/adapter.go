// Package adapter declares the collaborator capabilities the
// checkpoint/delta cache calls out to when it misses: the database
// adapter's mover (current-state loads) and poller (change
// enumeration). Both are explicitly out of scope per spec.md §1 --
// this package only states the shape the cache core depends on.
package adapter

// Cursor is an opaque database session handle threaded through to the
// adapter; the cache core never inspects it.
type Cursor interface{}

// Change is one (oid, tid) pair reported by a poll.
type Change struct {
	OID uint64
	TID uint64
}

// Mover loads the current state of a single object at the cursor's
// snapshot.
type Mover interface {
	// LoadCurrent returns the state and commit tid of oid as of the
	// cursor's view. tid is 0 (and state is nil) when the object does
	// not exist.
	LoadCurrent(cursor Cursor, oid uint64) (state []byte, tid uint64, err error)
}

// Poller enumerates objects changed in a tid range.
type Poller interface {
	// ListChanges yields (oid, tid) pairs with afterTID < tid <= uptoTID,
	// in no particular order.
	ListChanges(cursor Cursor, afterTID, uptoTID uint64) ([]Change, error)
}
