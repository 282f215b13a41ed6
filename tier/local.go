package tier

import (
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"
	"github.com/golang/glog"
)

// LocalTier is the process-local cache tier (T0). It wraps a
// *ristretto.Cache the same way posting/mvcc.go keys its whole
// posting-list cache through ristretto's Get/Set/SetIfPresent, and adds
// a side index of the keys it has stored so it can satisfy KeyIterator:
// ristretto itself has no key-enumeration API, but snapshot persistence
// and new-instance checkpoint bootstrap both need to walk T0's keys
// (spec.md §4.H, §6). The index is emptied only by FlushAll: a key that
// ristretto later evicts, or declines to admit, stays in Keys() until
// then.
type LocalTier struct {
	c     *ristretto.Cache
	keys  sync.Map // key string -> struct{}
	limit int64

	hits uint64
	sets uint64
}

// NewLocalTier builds a LocalTier with the given approximate byte
// budget.
func NewLocalTier(maxCost int64) (*LocalTier, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost / 8,
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &LocalTier{c: c, limit: maxCost}, nil
}

func cost(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}

// Get implements Tier.
func (l *LocalTier) Get(key string) ([]byte, bool) {
	v, ok := l.c.Get(key)
	if !ok {
		return nil, false
	}
	atomic.AddUint64(&l.hits, 1)
	b, _ := v.([]byte)
	return b, true
}

// GetMulti implements Tier.
func (l *LocalTier) GetMulti(keys []string) map[string][]byte {
	out := make(map[string][]byte)
	for _, k := range keys {
		if v, ok := l.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// Set implements Tier.
func (l *LocalTier) Set(key string, value []byte) {
	if l.c.Set(key, value, cost(key, value)) {
		l.keys.Store(key, struct{}{})
		atomic.AddUint64(&l.sets, 1)
	}
}

// SetMulti implements Tier.
func (l *LocalTier) SetMulti(items map[string][]byte) {
	for k, v := range items {
		l.Set(k, v)
	}
}

// FlushAll implements Tier.
func (l *LocalTier) FlushAll() {
	l.c.Clear()
	l.keys.Range(func(k, _ interface{}) bool {
		l.keys.Delete(k)
		return true
	})
	atomic.StoreUint64(&l.hits, 0)
	atomic.StoreUint64(&l.sets, 0)
}

// Disconnect implements Tier. The local tier has no remote connection;
// closing it here just releases ristretto's background goroutines.
func (l *LocalTier) Disconnect() {
	l.c.Close()
}

// Wait blocks until every Set so far has been processed by ristretto's
// background buffer. Not part of Tier; it exists for tests that need a
// deterministic view right after writing.
func (l *LocalTier) Wait() {
	l.c.Wait()
}

// Keys implements KeyIterator.
func (l *LocalTier) Keys() []string {
	out := make([]string, 0)
	l.keys.Range(func(k, _ interface{}) bool {
		if ks, ok := k.(string); ok {
			out = append(out, ks)
		}
		return true
	})
	return out
}

// Stats implements Stater.
func (l *LocalTier) Stats() Stats {
	return Stats{
		Hits:  atomic.LoadUint64(&l.hits),
		Sets:  atomic.LoadUint64(&l.sets),
		Size:  l.c.Metrics.CostAdded() - l.c.Metrics.CostEvicted(),
		Limit: l.limit,
	}
}

// ResetStats zeroes the hit/set counters without touching cache
// contents. Used after loading a persisted snapshot so the load isn't
// counted as user traffic (spec.md §6).
func (l *LocalTier) ResetStats() {
	atomic.StoreUint64(&l.hits, 0)
	atomic.StoreUint64(&l.sets, 0)
	glog.V(2).Infof("local tier stats reset after snapshot load")
}
