// Package cache implements StorageCache, the checkpoint/delta cache
// coherence engine described by spec.md: the load path (§4.D), the
// write path (§4.E), the poll/checkpoint manager (§4.F), consistency
// checks (§4.G), and lifecycle (§4.H).
package cache

import (
	"github.com/runyaga/relstorage/adapter"
	"github.com/runyaga/relstorage/checkpoint"
	"github.com/runyaga/relstorage/delta"
	"github.com/runyaga/relstorage/spool"
	"github.com/runyaga/relstorage/tier"
)

// Options are the embedder-supplied configuration knobs named in
// spec.md §6.
type Options struct {
	// Prefix namespaces every key this instance writes.
	Prefix string
	// DeltaSizeLimit (delta_max) is the approximate size limit for
	// delta_after0 before a checkpoint shift is suggested.
	DeltaSizeLimit int
	// ShareLocalCache controls whether NewInstance shares T0 with its
	// parent.
	ShareLocalCache bool
	// SendLimit is the approximate byte budget per set_multi batch
	// during send_queue. Zero means the default of 1 MiB.
	SendLimit int
	// SpillThreshold is the approximate number of bytes the write-path
	// temp queue holds in memory before spilling to disk. Zero means
	// the spool package default.
	SpillThreshold int64
}

const defaultSendLimit = 1024 * 1024

// Tracer is the out-of-scope trace-event collaborator (spec.md §1,
// §6). A nil Tracer means "don't trace".
type Tracer interface {
	TraceMiss(oid uint64)
	TraceHit(oid uint64, tid uint64, length int)
	TraceStore(oid uint64, tid uint64, length int)
	TraceInvalidate(oid uint64, tid uint64)
}

// StorageCache holds a list of cache tiers in order from most local to
// most global, and the checkpoint/delta bookkeeping needed to resolve
// an oid to the right cache key at the reader's current snapshot.
//
// A StorageCache is used single-threaded by its owning session: a poll
// and a load on the same instance must not interleave (spec.md §5).
// Sibling instances created by NewInstance may share T0 and are used
// concurrently from separate goroutines/sessions.
type StorageCache struct {
	opts   Options
	mover  adapter.Mover
	poller adapter.Poller
	tiers  *tier.List
	tracer Tracer

	delta0, delta1 *delta.Map
	checkpoints    *checkpoint.Pair
	currentTID     uint64

	queue *spool.Queue
}

// New builds a StorageCache. tiers[0] must be the process-local tier.
// tracer may be nil.
func New(opts Options, mover adapter.Mover, poller adapter.Poller, tiers *tier.List, tracer Tracer) *StorageCache {
	if opts.SendLimit <= 0 {
		opts.SendLimit = defaultSendLimit
	}
	return &StorageCache{
		opts:   opts,
		mover:  mover,
		poller: poller,
		tiers:  tiers,
		tracer: tracer,
		delta0: delta.New(),
		delta1: delta.New(),
	}
}

func (c *StorageCache) trace(fn func(Tracer)) {
	if c.tracer != nil {
		fn(c.tracer)
	}
}

// Checkpoints returns the current checkpoint pair and whether it has
// been set (the instance has polled at least once, or has initialized
// itself via NewInstance).
func (c *StorageCache) Checkpoints() (checkpoint.Pair, bool) {
	if c.checkpoints == nil {
		return checkpoint.Pair{}, false
	}
	return *c.checkpoints, true
}

// CurrentTID returns the highest tid this instance has polled up to.
func (c *StorageCache) CurrentTID() uint64 {
	return c.currentTID
}

// Delta0Len and Delta1Len expose the overlay map sizes, mostly useful
// for tests and diagnostics.
func (c *StorageCache) Delta0Len() int { return c.delta0.Len() }
func (c *StorageCache) Delta1Len() int { return c.delta1.Len() }

// Stats reports the local tier's debugging stats, or a zeroed Stats if
// this instance has been released.
func (c *StorageCache) Stats() tier.Stats {
	if c.tiers.Poisoned() {
		return tier.Stats{}
	}
	if s, ok := c.tiers.Local().(tier.Stater); ok {
		return s.Stats()
	}
	return tier.Stats{}
}

// Len and Size mirror spec.md's __len__/size properties: the number of
// entries, and the byte size, currently held in T0.
func (c *StorageCache) Len() int     { return c.tiers.Len() }
func (c *StorageCache) Size() int64  { return c.tiers.Size() }
func (c *StorageCache) Limit() int64 { return c.tiers.Limit() }
