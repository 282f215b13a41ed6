package tier

// List is an ordered sequence of tiers, T0 (the process-local tier)
// first. Reads probe local-first; checkpoint bookkeeping probes
// global-first (spec.md §4.C).
type List struct {
	localFirst []Tier
	poisoned   bool
}

// NewList builds a List. tiers[0] must be the process-local tier.
func NewList(tiers ...Tier) *List {
	return &List{localFirst: tiers}
}

// LocalFirst returns the tiers in local-to-global order.
func (l *List) LocalFirst() []Tier {
	if l.poisoned {
		return nil
	}
	return l.localFirst
}

// GlobalFirst returns the tiers in global-to-local order.
func (l *List) GlobalFirst() []Tier {
	if l.poisoned {
		return nil
	}
	out := make([]Tier, len(l.localFirst))
	for i, t := range l.localFirst {
		out[len(l.localFirst)-1-i] = t
	}
	return out
}

// Local returns T0, the process-local tier.
func (l *List) Local() Tier {
	if l.poisoned || len(l.localFirst) == 0 {
		return nil
	}
	return l.localFirst[0]
}

// WithLocal returns a new List that swaps in a different T0 but keeps
// the same outer tiers, for NewInstance when the embedder didn't ask
// to share the local tier.
func (l *List) WithLocal(local Tier) *List {
	out := make([]Tier, len(l.localFirst))
	copy(out, l.localFirst)
	if len(out) == 0 {
		out = append(out, local)
	} else {
		out[0] = local
	}
	return NewList(out...)
}

// Len reports the number of entries currently held in T0, or 0 once
// the list has been released.
func (l *List) Len() int {
	if l.poisoned {
		return 0
	}
	if lt, ok := l.Local().(KeyIterator); ok {
		return len(lt.Keys())
	}
	return 0
}

// Size reports T0's byte size, or 0 once released.
func (l *List) Size() int64 {
	if l.poisoned {
		return 0
	}
	if s, ok := l.Local().(Stater); ok {
		return s.Stats().Size
	}
	return 0
}

// Limit reports T0's configured byte limit, or 0 once released.
func (l *List) Limit() int64 {
	if l.poisoned {
		return 0
	}
	if s, ok := l.Local().(Stater); ok {
		return s.Stats().Limit
	}
	return 0
}

// Disconnect disconnects every tier and poisons the list so further use
// is obviously wrong -- Len/Size/Limit degrade to 0 rather than
// panicking (spec.md §4.H).
func (l *List) Disconnect() {
	for _, t := range l.localFirst {
		t.Disconnect()
	}
	l.poisoned = true
}

// Poisoned reports whether Disconnect has already been called.
func (l *List) Poisoned() bool {
	return l.poisoned
}
