// Package checkpoint defines the (cp0, cp1) pair shared across client
// instances through the "{prefix}:checkpoints" marker key, and its
// wire encoding (spec.md §3, §4.F).
package checkpoint

import (
	"strconv"
	"strings"
)

// Pair is a checkpoint pair, with the invariant CP0 >= CP1.
type Pair struct {
	CP0 uint64
	CP1 uint64
}

// Valid reports whether the pair satisfies CP0 >= CP1.
func (p Pair) Valid() bool {
	return p.CP0 >= p.CP1
}

// Encode renders the pair as the ASCII "cp0 cp1" marker value.
func Encode(p Pair) string {
	return strconv.FormatUint(p.CP0, 10) + " " + strconv.FormatUint(p.CP1, 10)
}

// Decode parses a marker value of the form "cp0 cp1". ok is false if
// the string isn't two whitespace-separated non-negative integers, or
// if the resulting pair doesn't satisfy CP0 >= CP1 (spec.md §7 "Bad
// checkpoints marker").
func Decode(s string) (Pair, bool) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Pair{}, false
	}
	c0, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Pair{}, false
	}
	c1, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Pair{}, false
	}
	p := Pair{CP0: c0, CP1: c1}
	if !p.Valid() {
		return Pair{}, false
	}
	return p, true
}
