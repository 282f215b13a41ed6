package cache

import (
	"testing"

	"github.com/runyaga/relstorage/checkpoint"
	"github.com/runyaga/relstorage/key"
)

func TestLoadBeforeFirstPollFallsBackToMover(t *testing.T) {
	c, db, local, _ := newTestCache(t, Options{})
	db.Commit(1, 10, []byte("v10"))

	state, tid, err := c.Load(nil, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tid != 10 || string(state) != "v10" {
		t.Fatalf("Load = (%q, %d), want (\"v10\", 10)", state, tid)
	}
	// A pre-poll load must not populate the cache.
	if len(local.Keys()) != 0 {
		t.Fatalf("pre-poll Load should not populate the local tier, found %v", local.Keys())
	}
}

func TestLoadFromDelta0Hit(t *testing.T) {
	c, _, local, _ := newTestCache(t, Options{})
	c.checkpoints = &checkpointPair
	c.currentTID = 20
	c.delta0.Set(1, 20)

	hotKey := key.EncodeState(c.opts.Prefix, 20, 1)
	local.Set(hotKey, key.EncodeValue(20, []byte("v20")))

	state, tid, err := c.Load(nil, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tid != 20 || string(state) != "v20" {
		t.Fatalf("Load = (%q, %d), want (\"v20\", 20)", state, tid)
	}
}

func TestLoadFromDelta0MissFallsBackAndPopulates(t *testing.T) {
	c, db, local, _ := newTestCache(t, Options{})
	c.checkpoints = &checkpointPair
	c.currentTID = 20
	c.delta0.Set(1, 20)
	db.Commit(1, 20, []byte("v20"))

	state, tid, err := c.Load(nil, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tid != 20 || string(state) != "v20" {
		t.Fatalf("Load = (%q, %d), want (\"v20\", 20)", state, tid)
	}

	hotKey := key.EncodeState(c.opts.Prefix, 20, 1)
	v, ok := local.Get(hotKey)
	if !ok {
		t.Fatalf("Load should populate the local tier at the delta0 key after a miss")
	}
	gotTID, gotState, ok := key.DecodeValue(v)
	if !ok || gotTID != 20 || string(gotState) != "v20" {
		t.Fatalf("cached value = (%d, %q), want (20, \"v20\")", gotTID, gotState)
	}
}

func TestLoadFromDelta0MissRejectsTIDMismatch(t *testing.T) {
	c, db, _, _ := newTestCache(t, Options{})
	c.checkpoints = &checkpointPair
	c.currentTID = 20
	c.delta0.Set(1, 20)
	// The database disagrees with what delta_after0 promised.
	db.Commit(1, 15, []byte("stale"))

	_, _, err := c.Load(nil, 1)
	if err == nil {
		t.Fatalf("Load should fail when the database tid disagrees with delta_after0")
	}
	if _, ok := err.(*ErrCacheInconsistency); !ok {
		t.Fatalf("Load error = %T, want *ErrCacheInconsistency", err)
	}
}

func TestLoadFromCheckpoint0Hit(t *testing.T) {
	c, _, local, _ := newTestCache(t, Options{})
	cp := checkpointPair
	c.checkpoints = &cp
	c.currentTID = cp.CP0

	cp0Key := key.EncodeState(c.opts.Prefix, cp.CP0, 1)
	local.Set(cp0Key, key.EncodeValue(cp.CP0, []byte("at-cp0")))

	state, tid, err := c.Load(nil, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tid != cp.CP0 || string(state) != "at-cp0" {
		t.Fatalf("Load = (%q, %d), want (\"at-cp0\", %d)", state, tid, cp.CP0)
	}
}

func TestLoadFromDelta1PromotesToCheckpoint0Key(t *testing.T) {
	c, _, local, _ := newTestCache(t, Options{})
	cp := checkpointPair
	c.checkpoints = &cp
	c.currentTID = cp.CP0
	c.delta1.Set(1, cp.CP1+1)

	da1Key := key.EncodeState(c.opts.Prefix, cp.CP1+1, 1)
	local.Set(da1Key, key.EncodeValue(cp.CP1+1, []byte("at-da1")))

	state, tid, err := c.Load(nil, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tid != cp.CP1+1 || string(state) != "at-da1" {
		t.Fatalf("Load = (%q, %d), want (\"at-da1\", %d)", state, tid, cp.CP1+1)
	}

	cp0Key := key.EncodeState(c.opts.Prefix, cp.CP0, 1)
	promoted, ok := local.Get(cp0Key)
	if !ok {
		t.Fatalf("hit via delta_after1 should have promoted the value to the cp0 key")
	}
	gotTID, _, ok := key.DecodeValue(promoted)
	if !ok || gotTID != cp.CP1+1 {
		t.Fatalf("promoted value tid = %d, want %d", gotTID, cp.CP1+1)
	}
}

func TestLoadFromCheckpoint1WhenDistinctFromCheckpoint0(t *testing.T) {
	c, _, local, _ := newTestCache(t, Options{})
	cp := checkpointPair // CP0 != CP1 by construction below
	c.checkpoints = &cp
	c.currentTID = cp.CP0

	cp1Key := key.EncodeState(c.opts.Prefix, cp.CP1, 1)
	local.Set(cp1Key, key.EncodeValue(cp.CP1, []byte("at-cp1")))

	state, tid, err := c.Load(nil, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tid != cp.CP1 || string(state) != "at-cp1" {
		t.Fatalf("Load = (%q, %d), want (\"at-cp1\", %d)", state, tid, cp.CP1)
	}
}

func TestLoadFullMissFallsBackAndPopulatesCheckpoint0(t *testing.T) {
	c, db, local, _ := newTestCache(t, Options{})
	cp := checkpointPair
	c.checkpoints = &cp
	c.currentTID = cp.CP0
	db.Commit(1, cp.CP1, []byte("db-state"))

	state, tid, err := c.Load(nil, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tid != cp.CP1 || string(state) != "db-state" {
		t.Fatalf("Load = (%q, %d), want (\"db-state\", %d)", state, tid, cp.CP1)
	}

	cp0Key := key.EncodeState(c.opts.Prefix, cp.CP0, 1)
	if _, ok := local.Get(cp0Key); !ok {
		t.Fatalf("full miss should populate the cp0 key")
	}
}

func TestLoadMissingObjectIsNotCached(t *testing.T) {
	c, _, local, _ := newTestCache(t, Options{})
	cp := checkpointPair
	c.checkpoints = &cp
	c.currentTID = cp.CP0

	state, tid, err := c.Load(nil, 999)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tid != 0 || state != nil {
		t.Fatalf("Load(missing) = (%v, %d), want (nil, 0)", state, tid)
	}
	if len(local.Keys()) != 0 {
		t.Fatalf("a miss with tid=0 should not populate the cache")
	}
}

// checkpointPair is a convenient fixture used across load tests: CP0=20,
// CP1=10, so delta_after1/checkpoint1 paths are distinguishable from
// checkpoint0.
var checkpointPair = checkpoint.Pair{CP0: 20, CP1: 10}
