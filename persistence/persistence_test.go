package persistence

import (
	"bytes"
	"testing"

	"github.com/runyaga/relstorage/checkpoint"
	"github.com/runyaga/relstorage/delta"
	"github.com/runyaga/relstorage/key"
	"github.com/runyaga/relstorage/tier"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	lt := tier.NewFakeTier()
	lt.Set(key.EncodeState("p", 10, 1), key.EncodeValue(10, []byte("v1-10")))
	lt.Set(key.EncodeState("p", 20, 1), key.EncodeValue(20, []byte("v1-20")))
	lt.Set(key.EncodeState("p", 15, 2), key.EncodeValue(15, []byte("v2-15")))

	var buf bytes.Buffer
	if err := Write(&buf, lt, "p"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dst := tier.NewFakeTier()
	d1 := delta.New()
	newCP, err := Read(&buf, "p", nil, d1, dst)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if newCP.CP0 != 20 || newCP.CP1 != 20 {
		t.Fatalf("Read returned checkpoints %+v, want {20 20}", newCP)
	}

	// Only the newest version of oid 1 (tid 20) should have been kept.
	if _, ok := dst.Get(key.EncodeState("p", 10, 1)); ok {
		t.Fatalf("stale (tid=10) entry for oid 1 should not have been written")
	}
	v, ok := dst.Get(key.EncodeState("p", 20, 1))
	if !ok {
		t.Fatalf("newest entry for oid 1 missing after round trip")
	}
	tid, state, ok := key.DecodeValue(v)
	if !ok || tid != 20 || string(state) != "v1-20" {
		t.Fatalf("decoded value = (%d, %q, %v), want (20, \"v1-20\", true)", tid, state, ok)
	}

	if tid, ok := d1.Get(1); !ok || tid != 20 {
		t.Fatalf("delta1.Get(1) = (%d, %v), want (20, true)", tid, ok)
	}
	if tid, ok := d1.Get(2); !ok || tid != 15 {
		t.Fatalf("delta1.Get(2) = (%d, %v), want (15, true)", tid, ok)
	}
}

func TestReadRejectsOutOfOrderSnapshot(t *testing.T) {
	lt := tier.NewFakeTier()
	lt.Set(key.EncodeState("p", 100, 1), key.EncodeValue(100, []byte("future")))

	var buf bytes.Buffer
	if err := Write(&buf, lt, "p"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dst := tier.NewFakeTier()
	cur := checkpoint.Pair{CP0: 50, CP1: 50}
	_, err := Read(&buf, "p", &cur, delta.New(), dst)
	if err != BadOrder {
		t.Fatalf("Read = %v, want BadOrder", err)
	}
}

func TestReadRejectsUnparseableHeader(t *testing.T) {
	buf := bytes.NewBufferString("not-a-number\n")

	dst := tier.NewFakeTier()
	cur := checkpoint.Pair{CP0: 50, CP1: 50}
	_, err := Read(buf, "p", &cur, delta.New(), dst)
	if err != BadOrder {
		t.Fatalf("Read = %v, want BadOrder", err)
	}
}

func TestReadEmptySnapshot(t *testing.T) {
	lt := tier.NewFakeTier()

	var buf bytes.Buffer
	if err := Write(&buf, lt, "p"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dst := tier.NewFakeTier()
	newCP, err := Read(&buf, "p", nil, delta.New(), dst)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if newCP.CP0 != 0 || newCP.CP1 != 0 {
		t.Fatalf("Read on empty snapshot = %+v, want {0 0}", newCP)
	}
}

func TestReadPreservesCallerCheckpointsWhenInOrder(t *testing.T) {
	lt := tier.NewFakeTier()
	lt.Set(key.EncodeState("p", 10, 1), key.EncodeValue(10, []byte("v")))

	var buf bytes.Buffer
	if err := Write(&buf, lt, "p"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dst := tier.NewFakeTier()
	cur := checkpoint.Pair{CP0: 50, CP1: 30}
	newCP, err := Read(&buf, "p", &cur, delta.New(), dst)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if newCP != cur {
		t.Fatalf("Read(in-order) returned %+v, want caller's existing checkpoints %+v", newCP, cur)
	}
}
