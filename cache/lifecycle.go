package cache

import (
	"io"

	"github.com/runyaga/relstorage/checkpoint"
	"github.com/runyaga/relstorage/delta"
	"github.com/runyaga/relstorage/key"
	"github.com/runyaga/relstorage/persistence"
	"github.com/runyaga/relstorage/tier"
)

// findMaxTID returns the highest tid found among keys currently held
// in T0, or 0 if none parse as state keys.
func (c *StorageCache) findMaxTID() uint64 {
	lt, ok := c.tiers.Local().(tier.KeyIterator)
	if !ok {
		return 0
	}
	var max uint64
	for _, k := range lt.Keys() {
		tid, _, ok := key.DecodeState(k)
		if ok && tid > max {
			max = tid
		}
	}
	return max
}

// NewInstance returns a sibling instance. If ShareLocalCache is set, or
// newLocalTier is nil, the sibling shares this instance's T0; otherwise
// newLocalTier becomes the sibling's T0 (spec.md §4.H).
//
// The sibling's checkpoints start at (maxtid, maxtid), where maxtid is
// the highest tid found among keys currently in the (possibly shared)
// T0 -- the delta maps are copied from the parent, since they only get
// staler with time but are still a reasonable starting point.
func (c *StorageCache) NewInstance(newLocalTier tier.Tier) *StorageCache {
	childTiers := c.tiers
	if !c.opts.ShareLocalCache && newLocalTier != nil {
		childTiers = c.tiers.WithLocal(newLocalTier)
	}

	child := New(c.opts, c.mover, c.poller, childTiers, c.tracer)

	maxTID := child.findMaxTID()
	cp := checkpoint.Pair{CP0: maxTID, CP1: maxTID}
	child.checkpoints = &cp
	child.delta0 = c.delta0.Clone()
	child.delta1 = c.delta1.Clone()
	child.currentTID = maxTID
	return child
}

// Release disconnects every tier and poisons this instance's tier list
// so further use is obviously wrong (spec.md §4.H).
func (c *StorageCache) Release() {
	c.tiers.Disconnect()
}

// Close persists the local tier to w (if w is non-nil and the tier
// has proven useful -- at least one hit and one set recorded), then
// releases this instance. Only write out a consolidated snapshot when
// it would actually help: an unused cache isn't worth persisting
// (spec.md §6, §9 note (c)).
func (c *StorageCache) Close(w io.Writer) error {
	if w != nil {
		stats := c.Stats()
		if stats.Hits > 0 && stats.Sets > 0 {
			lt, ok := c.tiers.Local().(interface {
				tier.Tier
				tier.KeyIterator
			})
			if ok {
				if err := persistence.Write(w, lt, c.opts.Prefix); err != nil {
					c.Release()
					return err
				}
			}
		}
	}
	c.Release()
	return nil
}

// Clear removes all data from the cache: every tier is flushed, and
// the checkpoints/delta maps are reset. If loadSnapshot is non-nil, a
// persisted snapshot is reloaded afterward (spec.md §4.H).
func (c *StorageCache) Clear(loadSnapshot func() (io.Reader, bool, error)) error {
	for _, t := range c.tiers.LocalFirst() {
		t.FlushAll()
	}

	c.checkpoints = nil
	c.delta0 = delta.New()
	c.delta1 = delta.New()
	c.currentTID = 0

	if loadSnapshot == nil {
		return nil
	}
	r, ok, err := loadSnapshot()
	if err != nil || !ok {
		return err
	}
	return c.restore(r)
}

// restore loads a persisted snapshot produced by persistence.Write.
// A BadOrder snapshot is logged and otherwise ignored: it does not
// poison this instance (spec.md §6, §7).
func (c *StorageCache) restore(r io.Reader) error {
	lt, ok := c.tiers.Local().(interface {
		tier.Tier
		tier.KeyIterator
	})
	if !ok {
		return nil
	}

	var cur *checkpoint.Pair
	if c.checkpoints != nil {
		cp := *c.checkpoints
		cur = &cp
	}

	newCP, err := persistence.Read(r, c.opts.Prefix, cur, c.delta1, lt)
	if err == persistence.BadOrder {
		return nil
	}
	if err != nil {
		return err
	}
	if c.checkpoints == nil {
		c.checkpoints = &newCP
		c.currentTID = newCP.CP0
	}
	return nil
}
