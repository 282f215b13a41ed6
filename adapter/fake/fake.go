// Package fake provides in-memory Mover/Poller fakes for tests, the
// same way relstorage's test suite and dgraph's own unit tests swap in
// lightweight stand-ins for their real database collaborators.
package fake

import (
	"sort"

	"github.com/runyaga/relstorage/adapter"
)

// Version is one committed state of an object.
type Version struct {
	TID   uint64
	State []byte
}

// DB is an in-memory object database: oid -> ordered list of committed
// versions. It implements both adapter.Mover and adapter.Poller.
type DB struct {
	versions map[uint64][]Version
}

// NewDB returns an empty in-memory database.
func NewDB() *DB {
	return &DB{versions: make(map[uint64][]Version)}
}

// Commit records a new version of oid at tid. Versions must be
// committed in increasing tid order across the whole DB, mirroring the
// monotonic tid invariant in spec.md §3.
func (d *DB) Commit(oid, tid uint64, state []byte) {
	d.versions[oid] = append(d.versions[oid], Version{TID: tid, State: state})
}

// LoadCurrent implements adapter.Mover: it returns the newest version
// of oid with tid <= the snapshot tid encoded in cursor (a *uint64), or
// the newest version overall if cursor is nil.
func (d *DB) LoadCurrent(cursor adapter.Cursor, oid uint64) ([]byte, uint64, error) {
	snapshot, _ := cursor.(*uint64)
	var best *Version
	for i, v := range d.versions[oid] {
		if snapshot != nil && v.TID > *snapshot {
			continue
		}
		if best == nil || v.TID > best.TID {
			best = &d.versions[oid][i]
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best.State, best.TID, nil
}

// ListChanges implements adapter.Poller.
func (d *DB) ListChanges(_ adapter.Cursor, afterTID, uptoTID uint64) ([]adapter.Change, error) {
	var out []adapter.Change
	for oid, versions := range d.versions {
		for _, v := range versions {
			if v.TID > afterTID && v.TID <= uptoTID {
				out = append(out, adapter.Change{OID: oid, TID: v.TID})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OID != out[j].OID {
			return out[i].OID < out[j].OID
		}
		return out[i].TID < out[j].TID
	})
	return out, nil
}
