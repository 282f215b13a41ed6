package cache

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// ErrReadConflict is raised when the database returns a tid from the
// future relative to this instance's current_tid. The caller should
// retry the whole transaction (spec.md §4.G, §7).
var ErrReadConflict = errors.New("read conflict: database returned a future transaction")

// ErrCacheInconsistency is raised when delta_after0 names one tid for
// an oid but the database disagrees. This is a fatal assertion: either
// the database isn't providing snapshot semantics, or this instance's
// delta_after0 is stale (spec.md §4.G, §7).
type ErrCacheInconsistency struct {
	msg string
}

func (e *ErrCacheInconsistency) Error() string { return e.msg }

// checkAfterLoad verifies the tid of an object loaded from the
// database is sane, per spec.md §4.G.
func (c *StorageCache) checkAfterLoad(oid, actualTID uint64, expectTID *uint64) error {
	if actualTID > c.currentTID {
		return errors.Wrapf(ErrReadConflict,
			"oid=%d actual_tid=%d current_tid=%d", oid, actualTID, c.currentTID)
	}

	if expectTID != nil && actualTID != *expectTID {
		cp0, cp1 := uint64(0), uint64(0)
		if c.checkpoints != nil {
			cp0, cp1 = c.checkpoints.CP0, c.checkpoints.CP1
		}
		return &ErrCacheInconsistency{msg: fmt.Sprintf(
			"cache/database inconsistency loading oid=%d: expected tid=%d, got tid=%d, "+
				"current_tid=%d, cp0=%d, cp1=%d, len(delta_after0)=%d, len(delta_after1)=%d, "+
				"pid=%d, goroutines=%d",
			oid, *expectTID, actualTID, c.currentTID, cp0, cp1,
			c.delta0.Len(), c.delta1.Len(), os.Getpid(), runtime.NumGoroutine(),
		)}
	}
	return nil
}
