// Package xassert holds the small set of invariant-checking helpers used
// throughout this module, in the same spirit as dgraph's x.AssertTrue /
// x.Check / x.Check2.
package xassert

import "github.com/pkg/errors"

// AssertTrue panics if cond is false. Used at points where failure means
// a broken invariant in our own bookkeeping, not bad input.
func AssertTrue(cond bool) {
	if !cond {
		panic("assertion failed")
	}
}

// AssertTruef is AssertTrue with a formatted message.
func AssertTruef(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(errors.Errorf(format, args...))
	}
}

// Check panics if err is non-nil.
func Check(err error) {
	if err != nil {
		panic(err)
	}
}

// Check2 panics if err is non-nil, discarding the accompanying value.
func Check2(_ interface{}, err error) {
	Check(err)
}
