// Package key implements the cache key and value envelope codec used by
// the checkpoint/delta cache: encoding and decoding of
// "{prefix}:state:{tid}:{oid}" keys, the "{prefix}:checkpoints" marker
// key, and the (tid, state) value envelope stored under a state key.
package key

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// EncodeState returns the cache key for the state of oid as of tid.
func EncodeState(prefix string, tid, oid uint64) string {
	var b strings.Builder
	b.Grow(len(prefix) + len("state") + 24)
	b.WriteString(prefix)
	b.WriteString(":state:")
	b.WriteString(strconv.FormatUint(tid, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(oid, 10))
	return b.String()
}

// DecodeState parses a state key produced by EncodeState. ok is false if
// k does not split into exactly four colon-separated parts whose third
// and fourth parts are non-negative integers.
func DecodeState(k string) (tid, oid uint64, ok bool) {
	parts := strings.Split(k, ":")
	if len(parts) != 4 {
		return 0, 0, false
	}
	t, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	o, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return t, o, true
}

// Checkpoints returns the well-known key holding the shared checkpoint
// marker for prefix.
func Checkpoints(prefix string) string {
	return prefix + ":checkpoints"
}

// EncodeValue builds the cache value envelope: the 8-byte big-endian tid
// followed by the state bytes.
func EncodeValue(tid uint64, state []byte) []byte {
	out := make([]byte, 8+len(state))
	binary.BigEndian.PutUint64(out, tid)
	copy(out[8:], state)
	return out
}

// DecodeValue splits a value envelope back into its tid and state. ok is
// false if v is shorter than 8 bytes.
func DecodeValue(v []byte) (tid uint64, state []byte, ok bool) {
	if len(v) < 8 {
		return 0, nil, false
	}
	return binary.BigEndian.Uint64(v[:8]), v[8:], true
}
