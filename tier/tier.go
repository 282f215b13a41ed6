// Package tier defines the cache tier capability and an ordered list of
// tiers (spec.md §4.C), plus concrete tiers backed by ristretto (the
// process-local tier) and gomemcache (a shared remote tier).
package tier

// Tier is the capability every cache level (local in-memory, or a
// remote shared service) must provide. Tier operations that fail
// (connection error, timeout) are expected to be reported as a miss
// (Get/GetMulti) or silently dropped (Set/SetMulti) by the
// implementation -- callers never see tier I/O errors (spec.md §5, §7).
type Tier interface {
	Get(key string) ([]byte, bool)
	GetMulti(keys []string) map[string][]byte
	Set(key string, value []byte)
	SetMulti(items map[string][]byte)
	FlushAll()
	Disconnect()
}

// KeyIterator is an optional capability: tiers that can enumerate their
// own keys (in practice, only the local tier) implement it. It backs
// the snapshot persistence and new-instance checkpoint bootstrap paths.
type KeyIterator interface {
	Keys() []string
}

// Stats is a debugging snapshot of a tier's hit/set activity and size.
// The format and presence of any particular field is not a stable API;
// it exists for human inspection (spec.md §9 note (c)).
type Stats struct {
	Hits  uint64
	Sets  uint64
	Size  int64
	Limit int64
}

// Stater is an optional capability: tiers that track their own
// hit/set/size stats implement it.
type Stater interface {
	Stats() Stats
}
