// Package persistence implements the persisted local-tier snapshot
// format defined in spec.md §6: an ASCII max_tid line, followed by a
// local-tier dump filtered to the newest tid per oid with keys
// rewritten so each key's tid matches its value's tid.
//
// The core (this package) defines the contents; an external
// persistence collaborator (out of scope per spec.md §1) is
// responsible for choosing where the file lives and when to call
// Write/Read.
package persistence

import (
	"bufio"
	"io"
	"strconv"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/runyaga/relstorage/checkpoint"
	"github.com/runyaga/relstorage/delta"
	"github.com/runyaga/relstorage/key"
	"github.com/runyaga/relstorage/tier"
	"github.com/runyaga/relstorage/xassert"
)

// BadOrder is returned by Read when the snapshot's max_tid exceeds the
// caller's current cp0: the file is out of order and must be rejected
// (spec.md §6, §7).
var BadOrder = errors.New("persisted snapshot is out of order")

// localKeyIterator combines Tier and KeyIterator, the capability set
// Write/Read actually need from the local tier.
type localKeyIterator interface {
	tier.Tier
	tier.KeyIterator
}

// Write dumps lt's current contents in the format spec.md §6 defines:
// a "max_tid\n" line, then, for each oid, the value carrying the newest
// tid, written under the state key for that tid as three parts: the key
// on one line, the value's length in decimal on the next, then the value
// bytes followed by a newline.
func Write(w io.Writer, lt localKeyIterator, prefix string) error {
	newest := delta.New()
	values := make(map[uint64][]byte)
	keys := lt.Keys()
	for _, k := range keys {
		_, oid, ok := key.DecodeState(k)
		if !ok {
			continue
		}
		v, ok := lt.Get(k)
		if !ok {
			continue
		}
		tid, _, ok := key.DecodeValue(v)
		if !ok {
			continue
		}
		if newest.SetIfGreater(oid, tid) {
			values[oid] = v
		}
	}

	var maxTID uint64
	newest.Ascend(func(_, tid uint64) bool {
		if tid > maxTID {
			maxTID = tid
		}
		return true
	})

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strconv.FormatUint(maxTID, 10) + "\n"); err != nil {
		return errors.Wrap(err, "writing snapshot header")
	}

	var writeErr error
	newest.Ascend(func(oid, tid uint64) bool {
		k := key.EncodeState(prefix, tid, oid)
		v := values[oid]
		if _, err := bw.WriteString(k); err != nil {
			writeErr = err
			return false
		}
		if err := bw.WriteByte('\n'); err != nil {
			writeErr = err
			return false
		}
		length := strconv.Itoa(len(v))
		if _, err := bw.WriteString(length); err != nil {
			writeErr = err
			return false
		}
		if err := bw.WriteByte('\n'); err != nil {
			writeErr = err
			return false
		}
		if _, err := bw.Write(v); err != nil {
			writeErr = err
			return false
		}
		return bw.WriteByte('\n') == nil
	})
	if writeErr != nil {
		return errors.Wrap(writeErr, "writing snapshot body")
	}
	return bw.Flush()
}

// Read loads a persisted snapshot into lt, delta1, and returns the new
// checkpoints to install.
//
// If cur is already set (checkpoints were non-nil before this call)
// and the file's max_tid exceeds cur.CP0, the file is rejected: Read
// returns BadOrder and the sentinel Pair{CP0: ^uint64(0), CP1: ^uint64(0)}
// is not returned -- callers should treat a BadOrder error exactly like
// spec.md's "(-1, -1)" sentinel (halt further snapshot loading, don't
// poison the instance).
func Read(r io.Reader, prefix string, cur *checkpoint.Pair, delta1 *delta.Map, lt localKeyIterator) (checkpoint.Pair, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return checkpoint.Pair{}, errors.Wrap(err, "reading snapshot header")
	}
	line = trimNewline(line)
	maxTID, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		glog.Errorf("snapshot header unparseable: max_tid %q: %v", line, err)
		return checkpoint.Pair{}, BadOrder
	}

	if cur != nil && maxTID > cur.CP0 {
		glog.Errorf("snapshot out of order: file max_tid %d > current cp0 %d", maxTID, cur.CP0)
		return checkpoint.Pair{}, BadOrder
	}

	newCP := checkpoint.Pair{CP0: maxTID, CP1: maxTID}
	if cur != nil {
		newCP = *cur
	}

	for {
		k, err := br.ReadString('\n')
		k = trimNewline(k)
		if k == "" {
			break
		}

		lengthLine, err2 := br.ReadString('\n')
		if err2 != nil && err2 != io.EOF {
			return checkpoint.Pair{}, errors.Wrap(err2, "reading snapshot value length")
		}
		length, err3 := strconv.Atoi(trimNewline(lengthLine))
		if err3 != nil {
			return checkpoint.Pair{}, errors.Wrapf(err3, "unparseable snapshot value length for key %q", k)
		}
		value := make([]byte, length)
		if _, err4 := io.ReadFull(br, value); err4 != nil {
			return checkpoint.Pair{}, errors.Wrap(err4, "reading snapshot value")
		}
		// consume the trailing newline after the value, if any
		if _, err5 := br.ReadByte(); err5 != nil && err5 != io.EOF {
			return checkpoint.Pair{}, errors.Wrap(err5, "reading snapshot value trailer")
		}

		if tid, oid, ok := key.DecodeState(k); ok {
			if existing, has := delta1.Get(oid); !has || existing < tid {
				delta1.SetIfGreater(oid, tid)
				lt.Set(k, value)
			}
		}

		if err == io.EOF {
			break
		}
	}

	xassert.AssertTruef(newCP.Valid(), "snapshot produced an invalid checkpoint pair %s", checkpoint.Encode(newCP))

	ck := key.Checkpoints(prefix)
	lt.Set(ck, []byte(checkpoint.Encode(newCP)))
	if rs, ok := lt.(interface{ ResetStats() }); ok {
		rs.ResetStats()
	}

	return newCP, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
