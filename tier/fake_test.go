package tier

import "testing"

func TestFakeTierGetSet(t *testing.T) {
	f := NewFakeTier()
	if _, ok := f.Get("a"); ok {
		t.Fatalf("empty tier returned a hit")
	}
	f.Set("a", []byte("1"))
	v, ok := f.Get("a")
	if !ok || string(v) != "1" {
		t.Fatalf("Get(a) = (%q, %v), want (\"1\", true)", v, ok)
	}
	if f.Stats().Hits != 1 || f.Stats().Sets != 1 {
		t.Fatalf("Stats = %+v, want 1 hit and 1 set", f.Stats())
	}
}

func TestFakeTierGetMultiSetMulti(t *testing.T) {
	f := NewFakeTier()
	f.SetMulti(map[string][]byte{"a": []byte("1"), "b": []byte("2")})
	got := f.GetMulti([]string{"a", "b", "c"})
	if len(got) != 2 || string(got["a"]) != "1" || string(got["b"]) != "2" {
		t.Fatalf("GetMulti = %v, want a=1, b=2", got)
	}
}

func TestFakeTierFlushAll(t *testing.T) {
	f := NewFakeTier()
	f.Set("a", []byte("1"))
	f.FlushAll()
	if _, ok := f.Get("a"); ok {
		t.Fatalf("Get after FlushAll should miss")
	}
	if f.Stats().Hits != 0 || f.Stats().Sets != 0 {
		t.Fatalf("Stats after FlushAll = %+v, want zeroed", f.Stats())
	}
}

func TestFakeTierDisconnectBlocksFurtherIO(t *testing.T) {
	f := NewFakeTier()
	f.Set("a", []byte("1"))
	f.Disconnect()

	if _, ok := f.Get("a"); ok {
		t.Fatalf("Get should miss after Disconnect")
	}
	f.Set("b", []byte("2"))
	if _, ok := f.Get("b"); ok {
		t.Fatalf("Set should be dropped after Disconnect")
	}
}

func TestFakeTierFailingSimulatesTierIOErrors(t *testing.T) {
	f := NewFakeTier()
	f.Set("a", []byte("1"))
	f.Failing = true

	if _, ok := f.Get("a"); ok {
		t.Fatalf("Get should miss while Failing, even for an existing key")
	}
	f.Set("b", []byte("2"))
	f.Failing = false
	if _, ok := f.Get("b"); ok {
		t.Fatalf("Set issued while Failing should have been dropped")
	}
}

func TestFakeTierKeysSorted(t *testing.T) {
	f := NewFakeTier()
	f.Set("z", []byte("1"))
	f.Set("a", []byte("2"))
	f.Set("m", []byte("3"))

	keys := f.Keys()
	want := []string{"a", "m", "z"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}
}

func TestFakeTierStatsSizeAndLimit(t *testing.T) {
	f := NewFakeTier()
	f.SetLimit(100)
	f.Set("ab", []byte("cd"))
	stats := f.Stats()
	if stats.Limit != 100 {
		t.Fatalf("Stats.Limit = %d, want 100", stats.Limit)
	}
	if stats.Size != int64(len("ab")+len("cd")) {
		t.Fatalf("Stats.Size = %d, want %d", stats.Size, len("ab")+len("cd"))
	}
}
