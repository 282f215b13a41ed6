package cache

import (
	"github.com/runyaga/relstorage/adapter"
	"github.com/runyaga/relstorage/key"
	"github.com/runyaga/relstorage/metrics"
)

// Load resolves oid to the state valid at cursor's snapshot, using the
// checkpoint/delta protocol described in spec.md §4.D. It falls back to
// the adapter's mover on any cache miss.
func (c *StorageCache) Load(cursor adapter.Cursor, oid uint64) ([]byte, uint64, error) {
	if c.checkpoints == nil {
		// No poll has occurred yet. For safety, don't use the cache.
		c.trace(func(t Tracer) { t.TraceMiss(oid) })
		metrics.LoadsBySource.WithLabelValues("miss").Inc()
		state, tid, err := c.mover.LoadCurrent(cursor, oid)
		return state, tid, err
	}

	if tid, ok := c.delta0.Get(oid); ok {
		return c.loadFromDelta0(cursor, oid, tid)
	}
	return c.loadFromCheckpoints(cursor, oid)
}

// loadFromDelta0 handles the case where delta_after0 names the exact
// tid to read: that tid replaces every older transaction id, so only
// one key is legal to probe.
func (c *StorageCache) loadFromDelta0(cursor adapter.Cursor, oid, tid uint64) ([]byte, uint64, error) {
	hot := key.EncodeState(c.opts.Prefix, tid, oid)
	for _, t := range c.tiers.LocalFirst() {
		v, ok := t.Get(hot)
		if !ok {
			continue
		}
		gotTID, state, ok := key.DecodeValue(v)
		if !ok || gotTID != tid {
			continue
		}
		c.trace(func(tr Tracer) { tr.TraceHit(oid, tid, len(state)) })
		metrics.LoadsBySource.WithLabelValues("delta0").Inc()
		return state, tid, nil
	}

	// Cache miss.
	c.trace(func(t Tracer) { t.TraceMiss(oid) })
	state, actualTID, err := c.mover.LoadCurrent(cursor, oid)
	if err != nil {
		return nil, 0, err
	}
	if err := c.checkAfterLoad(oid, actualTID, &tid); err != nil {
		return nil, 0, err
	}
	value := key.EncodeValue(tid, state)
	for _, t := range c.tiers.LocalFirst() {
		t.Set(hot, value)
	}
	metrics.LoadsBySource.WithLabelValues("miss").Inc()
	return state, tid, nil
}

// loadFromCheckpoints handles the general case: oid isn't in
// delta_after0, so up to two keys are worth probing -- the preferred
// checkpoint0 key, and whichever of delta_after1/checkpoint1 applies.
func (c *StorageCache) loadFromCheckpoints(cursor adapter.Cursor, oid uint64) ([]byte, uint64, error) {
	cp0, cp1 := c.checkpoints.CP0, c.checkpoints.CP1
	cp0Key := key.EncodeState(c.opts.Prefix, cp0, oid)

	keys := []string{cp0Key}
	var da1Key, cp1Key string
	da1TID, hasDA1 := c.delta1.Get(oid)
	if hasDA1 {
		da1Key = key.EncodeState(c.opts.Prefix, da1TID, oid)
		keys = append(keys, da1Key)
	} else if cp1 != cp0 {
		cp1Key = key.EncodeState(c.opts.Prefix, cp1, oid)
		keys = append(keys, cp1Key)
	}

	for _, t := range c.tiers.LocalFirst() {
		resp := t.GetMulti(keys)
		if len(resp) == 0 {
			continue
		}

		if v, ok := resp[cp0Key]; ok {
			tid, state, ok := key.DecodeValue(v)
			if ok {
				if t != c.tiers.Local() {
					c.tiers.Local().Set(cp0Key, v)
				}
				c.trace(func(tr Tracer) { tr.TraceHit(oid, tid, len(state)) })
				metrics.LoadsBySource.WithLabelValues("checkpoint0").Inc()
				return state, tid, nil
			}
		}

		var secondary []byte
		var haveSecondary bool
		if hasDA1 {
			secondary, haveSecondary = resp[da1Key]
		} else if cp1Key != "" {
			secondary, haveSecondary = resp[cp1Key]
		}
		if haveSecondary {
			tid, state, ok := key.DecodeValue(secondary)
			if ok {
				// Promote to the preferred key in every tier.
				for _, promote := range c.tiers.LocalFirst() {
					promote.Set(cp0Key, secondary)
				}
				c.trace(func(tr Tracer) { tr.TraceHit(oid, tid, len(state)) })
				metrics.LoadsBySource.WithLabelValues("delta1_or_checkpoint1").Inc()
				return state, tid, nil
			}
		}
	}

	// Full miss.
	c.trace(func(t Tracer) { t.TraceMiss(oid) })
	state, tid, err := c.mover.LoadCurrent(cursor, oid)
	if err != nil {
		return nil, 0, err
	}
	if tid != 0 {
		if err := c.checkAfterLoad(oid, tid, nil); err != nil {
			return nil, 0, err
		}
		value := key.EncodeValue(tid, state)
		c.trace(func(tr Tracer) { tr.TraceStore(oid, tid, len(state)) })
		for _, t := range c.tiers.LocalFirst() {
			t.Set(cp0Key, value)
		}
	}
	metrics.LoadsBySource.WithLabelValues("miss").Inc()
	return state, tid, nil
}
