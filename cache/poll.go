package cache

import (
	"github.com/golang/glog"

	"github.com/runyaga/relstorage/adapter"
	"github.com/runyaga/relstorage/checkpoint"
	"github.com/runyaga/relstorage/delta"
	"github.com/runyaga/relstorage/key"
	"github.com/runyaga/relstorage/metrics"
	"github.com/runyaga/relstorage/xassert"
)

// AfterPoll reconciles this instance's checkpoints and delta maps with
// the globally-shared checkpoint marker after a database poll
// (spec.md §4.F).
//
// changes lists every (oid, tid) changed after prevTID, up to and
// including newTID, excluding this instance's own commits. prevTID nil
// means "ignore changes" (equivalent to changes == nil, meaning "too
// many to enumerate").
func (c *StorageCache) AfterPoll(cursor adapter.Cursor, prevTID *uint64, newTID uint64, changes []adapter.Change) error {
	proposed, hasProposal := c.readCheckpointMarker()

	if !hasProposal {
		return c.adoptOrInitialize(newTID)
	}

	allowShift := true
	if proposed.CP0 > newTID {
		// checkpoint0 is in a future this instance can't yet see.
		if c.checkpoints != nil {
			proposed = *c.checkpoints
		} else {
			proposed = checkpoint.Pair{CP0: newTID, CP1: newTID}
		}
		allowShift = false
	}

	if c.checkpoints != nil && proposed == *c.checkpoints &&
		changes != nil && prevTID != nil &&
		*prevTID <= c.currentTID && c.currentTID <= newTID {
		c.fastPathUpdate(newTID, changes)
	} else {
		if err := c.rebuild(cursor, proposed, newTID); err != nil {
			return err
		}
	}

	if allowShift && c.delta0.Len() >= c.opts.DeltaSizeLimit {
		oversize := c.delta0.Len() >= 2*c.opts.DeltaSizeLimit
		c.suggestShift(newTID, oversize)
	}
	return nil
}

// readCheckpointMarker probes tiers global-first for the shared
// checkpoint marker.
func (c *StorageCache) readCheckpointMarker() (checkpoint.Pair, bool) {
	markerKey := key.Checkpoints(c.opts.Prefix)
	for _, t := range c.tiers.GlobalFirst() {
		v, ok := t.Get(markerKey)
		if !ok {
			continue
		}
		p, ok := checkpoint.Decode(string(v))
		if !ok {
			continue
		}
		return p, true
	}
	return checkpoint.Pair{}, false
}

// adoptOrInitialize handles the no-proposal-exists branch: either
// initialize fresh checkpoints, or reinstate this instance's former
// ones for peers while still resetting locally.
func (c *StorageCache) adoptOrInitialize(newTID uint64) error {
	fresh := checkpoint.Pair{CP0: newTID, CP1: newTID}

	var toPublish checkpoint.Pair
	if c.checkpoints != nil {
		toPublish = *c.checkpoints
		glog.V(2).Infof("reinstating checkpoints: %s", checkpoint.Encode(toPublish))
	} else {
		toPublish = fresh
		glog.V(2).Infof("initializing checkpoints: %s", checkpoint.Encode(toPublish))
	}

	markerKey := key.Checkpoints(c.opts.Prefix)
	marker := []byte(checkpoint.Encode(toPublish))
	for _, t := range c.tiers.GlobalFirst() {
		t.Set(markerKey, marker)
	}

	cp := fresh
	c.checkpoints = &cp
	c.delta0 = delta.New()
	c.delta1 = delta.New()
	c.currentTID = newTID
	return nil
}

// fastPathUpdate applies incremental changes without touching
// checkpoints.
func (c *StorageCache) fastPathUpdate(newTID uint64, changes []adapter.Change) {
	for _, ch := range changes {
		if c.delta0.SetIfGreater(ch.OID, ch.TID) {
			c.trace(func(t Tracer) { t.TraceInvalidate(ch.OID, ch.TID) })
		}
	}
	c.currentTID = newTID
}

// rebuild adopts proposed as the new checkpoints and rebuilds
// delta_after0/delta_after1 from scratch via the poller.
func (c *StorageCache) rebuild(cursor adapter.Cursor, proposed checkpoint.Pair, newTID uint64) error {
	metrics.CheckpointRebuilds.Inc()
	glog.V(2).Infof("rebuilding checkpoints: using %s, current_tid=%d", checkpoint.Encode(proposed), c.currentTID)

	newDelta0 := delta.New()
	newDelta1 := delta.New()

	if proposed.CP1 < newTID {
		changeList, err := c.poller.ListChanges(cursor, proposed.CP1, newTID)
		if err != nil {
			return err
		}
		pairs := make([]delta.Pair, len(changeList))
		for i, ch := range changeList {
			pairs[i] = delta.Pair{OID: ch.OID, TID: ch.TID}
		}
		delta.SortPairs(pairs)
		changeDict := delta.NewFromSorted(pairs)

		changeDict.Ascend(func(oid, tid uint64) bool {
			c.trace(func(t Tracer) { t.TraceInvalidate(oid, tid) })
			switch {
			case tid > proposed.CP0:
				newDelta0.Set(oid, tid)
			case tid > proposed.CP1:
				newDelta1.Set(oid, tid)
			}
			return true
		})
	}

	xassert.AssertTruef(proposed.Valid(), "rebuild received an invalid checkpoint pair %s", checkpoint.Encode(proposed))

	cp := proposed
	c.checkpoints = &cp
	c.delta0 = newDelta0
	c.delta1 = newDelta1
	c.currentTID = newTID
	return nil
}

// suggestShift publishes a shifted (or fresh) checkpoint pair for
// future polls, unless a peer has already shifted them (spec.md §4.F).
func (c *StorageCache) suggestShift(tid uint64, oversize bool) {
	cp0 := c.checkpoints.CP0
	if tid <= cp0 {
		glog.V(2).Infof("not shifting checkpoints; tid (%d) <= cp0 (%d)", tid, cp0)
		return
	}

	want := checkpoint.Pair{CP0: tid, CP1: cp0}
	if oversize {
		want = checkpoint.Pair{CP0: tid, CP1: tid}
	}

	markerKey := key.Checkpoints(c.opts.Prefix)
	var marker []byte
	for _, t := range c.tiers.GlobalFirst() {
		if v, ok := t.Get(markerKey); ok {
			marker = v
			break
		}
	}

	expect := checkpoint.Encode(*c.checkpoints)
	if marker == nil || string(marker) == expect {
		glog.V(2).Infof("shifting checkpoints to %s; len(delta_after0)=%d", checkpoint.Encode(want), c.delta0.Len())
		wantBytes := []byte(checkpoint.Encode(want))
		for _, t := range c.tiers.GlobalFirst() {
			t.Set(markerKey, wantBytes)
		}
		metrics.CheckpointShiftsSuggested.Inc()
	} else {
		glog.V(2).Infof("checkpoints already shifted to %s; len(delta_after0)=%d", string(marker), c.delta0.Len())
	}
}
