// Package delta implements the ordered oid -> tid overlay maps
// (delta_after0 / delta_after1) used by the checkpoint/delta protocol.
//
// The maps are not safe for concurrent use: each StorageCache instance
// owns its own pair and is used single-threaded per spec.md §5. A plain
// Go map is sufficient; ascending iteration sorts keys on demand rather
// than depending on any particular ordered-map implementation (spec.md
// §9 "Ordered sparse maps").
package delta

import "sort"

// Pair is an (oid, tid) entry, as produced by a poller's list of
// changes.
type Pair struct {
	OID uint64
	TID uint64
}

// Map is an oid -> tid overlay.
type Map struct {
	m map[uint64]uint64
}

// New returns an empty Map.
func New() *Map {
	return &Map{m: make(map[uint64]uint64)}
}

// NewFromSorted builds a Map from pairs already sorted ascending by
// (OID, TID). When the same oid appears more than once, the last entry
// seen wins, which is the entry with the greatest tid because of the
// sort order; this mirrors building a dict from a sorted list of
// (oid, tid) tuples.
func NewFromSorted(pairs []Pair) *Map {
	m := &Map{m: make(map[uint64]uint64, len(pairs))}
	for _, p := range pairs {
		m.m[p.OID] = p.TID
	}
	return m
}

// SortPairs sorts pairs ascending by (OID, TID) in place, the order
// NewFromSorted expects.
func SortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].OID != pairs[j].OID {
			return pairs[i].OID < pairs[j].OID
		}
		return pairs[i].TID < pairs[j].TID
	})
}

// Get returns the tid recorded for oid, if any.
func (m *Map) Get(oid uint64) (uint64, bool) {
	if m == nil {
		return 0, false
	}
	tid, ok := m.m[oid]
	return tid, ok
}

// Set unconditionally records tid for oid, overwriting any existing
// entry even if it is larger. Used by after_tpc_finish, where the
// just-committed tid is authoritative by construction (spec.md §4.E,
// §9 note (b)).
func (m *Map) Set(oid, tid uint64) {
	m.m[oid] = tid
}

// SetIfGreater records tid for oid only if no entry exists yet or the
// existing entry is smaller. Returns whether the map was modified.
func (m *Map) SetIfGreater(oid, tid uint64) bool {
	if cur, ok := m.m[oid]; ok && cur >= tid {
		return false
	}
	m.m[oid] = tid
	return true
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.m)
}

// Ascend calls fn for every (oid, tid) pair in ascending oid order,
// stopping early if fn returns false.
func (m *Map) Ascend(fn func(oid, tid uint64) bool) {
	if m == nil || len(m.m) == 0 {
		return
	}
	oids := make([]uint64, 0, len(m.m))
	for oid := range m.m {
		oids = append(oids, oid)
	}
	sort.Slice(oids, func(i, j int) bool { return oids[i] < oids[j] })
	for _, oid := range oids {
		if !fn(oid, m.m[oid]) {
			return
		}
	}
}

// Clone returns a shallow copy of m.
func (m *Map) Clone() *Map {
	out := &Map{m: make(map[uint64]uint64, m.Len())}
	for k, v := range m.m {
		out.m[k] = v
	}
	return out
}
