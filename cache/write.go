package cache

import (
	"github.com/pkg/errors"

	"github.com/runyaga/relstorage/key"
	"github.com/runyaga/relstorage/spool"
)

// Begin prepares temp space for objects to be cached during the
// current transaction (spec.md §4.E).
func (c *StorageCache) Begin() {
	c.queue = spool.New(c.opts.SpillThreshold)
}

// StoreTemp queues an object's state for caching. Its real cache key
// can't be assigned yet because the transaction's tid isn't chosen
// until commit.
func (c *StorageCache) StoreTemp(oid uint64, state []byte) error {
	if c.queue == nil {
		return errors.New("store_temp called without a preceding begin")
	}
	return c.queue.StoreTemp(oid, state)
}

// ReadTemp returns the bytes previously queued for oid in the current
// transaction.
func (c *StorageCache) ReadTemp(oid uint64) ([]byte, error) {
	if c.queue == nil {
		return nil, errors.New("read_temp called without a preceding begin")
	}
	v, err := c.queue.ReadTemp(oid)
	if err == spool.ErrTruncated {
		panic(err) // data structure corruption: fatal assertion (spec.md §7)
	}
	return v, err
}

// SendQueue flushes every queued object to every tier now that tid is
// known, batching set_multi calls up to the configured send limit
// (spec.md §4.E).
func (c *StorageCache) SendQueue(tid uint64) error {
	if c.queue == nil {
		return nil
	}
	entries := c.queue.Entries()

	batch := make(map[string][]byte)
	var batchSize int
	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, t := range c.tiers.LocalFirst() {
			t.SetMulti(batch)
		}
		batch = make(map[string][]byte)
		batchSize = 0
	}

	for _, e := range entries {
		state, err := c.queue.Read(e.Range)
		if err != nil {
			if err == spool.ErrTruncated {
				panic(err)
			}
			return err
		}
		cacheKey := key.EncodeState(c.opts.Prefix, tid, e.OID)
		itemSize := len(state) + len(cacheKey)
		if batchSize > 0 && batchSize+itemSize >= c.opts.SendLimit {
			flush()
		}
		batch[cacheKey] = key.EncodeValue(tid, state)
		batchSize += itemSize
	}
	flush()
	return nil
}

// AfterTPCFinish updates delta_after0 for every queued oid -- using the
// just-committed tid unconditionally, since it is by construction the
// newest possible commit at this instant (spec.md §4.E, §9 note (b)) --
// then publishes the queue.
func (c *StorageCache) AfterTPCFinish(tid uint64) error {
	if c.checkpoints != nil && c.queue != nil {
		for _, e := range c.queue.Entries() {
			c.delta0.Set(e.OID, tid)
		}
	}
	return c.SendQueue(tid)
}

// ClearTemp discards all transaction-specific temporary data. Called
// after transaction finish or abort.
func (c *StorageCache) ClearTemp() error {
	if c.queue == nil {
		return nil
	}
	err := c.queue.Close()
	c.queue = nil
	return err
}
