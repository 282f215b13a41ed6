package tier

import "sort"

// FakeTier is a plain in-memory Tier used by tests in place of a real
// ristretto/memcache-backed tier (spec.md §9: "tests substitute
// in-memory fakes" for every collaborator capability).
type FakeTier struct {
	m       map[string][]byte
	hits    uint64
	sets    uint64
	limit   int64
	Failing bool // when true, Get/GetMulti miss and Set/SetMulti are dropped, as on a tier I/O error
	closed  bool
}

// NewFakeTier builds an empty FakeTier.
func NewFakeTier() *FakeTier {
	return &FakeTier{m: make(map[string][]byte)}
}

func (f *FakeTier) Get(key string) ([]byte, bool) {
	if f.Failing || f.closed {
		return nil, false
	}
	v, ok := f.m[key]
	if ok {
		f.hits++
	}
	return v, ok
}

func (f *FakeTier) GetMulti(keys []string) map[string][]byte {
	out := make(map[string][]byte)
	if f.Failing || f.closed {
		return out
	}
	for _, k := range keys {
		if v, ok := f.m[k]; ok {
			out[k] = v
			f.hits++
		}
	}
	return out
}

func (f *FakeTier) Set(key string, value []byte) {
	if f.Failing || f.closed {
		return
	}
	f.m[key] = value
	f.sets++
}

func (f *FakeTier) SetMulti(items map[string][]byte) {
	if f.Failing || f.closed {
		return
	}
	for k, v := range items {
		f.m[k] = v
		f.sets++
	}
}

func (f *FakeTier) FlushAll() {
	f.m = make(map[string][]byte)
	f.hits, f.sets = 0, 0
}

func (f *FakeTier) Disconnect() {
	f.closed = true
}

func (f *FakeTier) Keys() []string {
	out := make([]string, 0, len(f.m))
	for k := range f.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f *FakeTier) Stats() Stats {
	var size int64
	for k, v := range f.m {
		size += int64(len(k) + len(v))
	}
	return Stats{Hits: f.hits, Sets: f.sets, Size: size, Limit: f.limit}
}

// SetLimit configures the reported limit for Stats, for tests that
// check the limit/size properties.
func (f *FakeTier) SetLimit(limit int64) { f.limit = limit }
