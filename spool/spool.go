// Package spool implements the write-path temp queue: a byte-addressable
// spill buffer that holds per-transaction object states until the
// commit tid is known, plus the oid -> (start, end) offset map needed
// to read them back (spec.md §3 "Temp queue", §4.E, §9).
//
// The queue is memory-first and spills to an anonymous temp file once
// its in-memory buffer passes a threshold, the same shape as
// RelStorage's AutoTemporaryFile.
package spool

import (
	"bytes"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// ErrTruncated is returned by ReadTemp when fewer bytes come back than
// were requested -- a sign of queue corruption (spec.md §7).
var ErrTruncated = errors.New("queued cache data is truncated")

// Range is the byte offset range of one spooled state.
type Range struct {
	Start, End int64
}

// Entry pairs an oid with its spooled range, used by Entries to hand
// back a sequentially-ordered view for send_queue.
type Entry struct {
	OID   uint64
	Range Range
}

// Queue is the temp queue for a single transaction.
type Queue struct {
	threshold int64

	buf    *bytes.Buffer // nil once spilled
	file   *os.File      // nil until spilled
	length int64

	ranges map[uint64]Range
}

// New creates a fresh Queue. threshold is the approximate number of
// bytes to hold in memory before spilling to disk; a value <= 0 means
// "never spill".
func New(threshold int64) *Queue {
	return &Queue{
		threshold: threshold,
		buf:       new(bytes.Buffer),
		ranges:    make(map[uint64]Range),
	}
}

func (q *Queue) spill() error {
	if q.file != nil {
		return nil
	}
	f, err := os.CreateTemp("", "cachequeue-*")
	if err != nil {
		return errors.Wrap(err, "spooling temp queue to disk")
	}
	// Unlink immediately: the fd keeps the data alive for as long as we
	// hold it open, and the file never needs a name again.
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return errors.Wrap(err, "unlinking spooled temp queue file")
	}
	if _, err := f.Write(q.buf.Bytes()); err != nil {
		f.Close()
		return errors.Wrap(err, "copying buffered queue data to disk")
	}
	q.file = f
	q.buf = nil
	return nil
}

// StoreTemp appends state to the queue and records its byte range
// under oid. A later call for the same oid overwrites the map entry
// but leaves the earlier bytes in the queue; they become dead and are
// never reclaimed (spec.md §4.E).
func (q *Queue) StoreTemp(oid uint64, state []byte) error {
	start := q.length
	var n int
	var err error
	if q.file != nil {
		n, err = q.file.Write(state)
	} else {
		n, err = q.buf.Write(state)
	}
	if err != nil {
		return errors.Wrap(err, "writing to temp queue")
	}
	q.length += int64(n)
	q.ranges[oid] = Range{Start: start, End: q.length}

	if q.file == nil && q.threshold > 0 && q.length >= q.threshold {
		if err := q.spill(); err != nil {
			return err
		}
	}
	return nil
}

// ReadTemp returns the bytes for a previously stored oid.
func (q *Queue) ReadTemp(oid uint64) ([]byte, error) {
	r, ok := q.ranges[oid]
	if !ok {
		return nil, errors.Errorf("oid %d was never spooled", oid)
	}
	return q.readRange(r)
}

func (q *Queue) readRange(r Range) ([]byte, error) {
	length := r.End - r.Start
	out := make([]byte, length)
	var n int
	var err error
	if q.file != nil {
		n, err = q.file.ReadAt(out, r.Start)
		if err == io.EOF {
			err = nil // a short read is reported as ErrTruncated below
		}
	} else {
		n = copy(out, q.buf.Bytes()[r.Start:r.End])
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading temp queue")
	}
	if int64(n) != length {
		return nil, ErrTruncated
	}
	return out, nil
}

// Entries returns every (oid, range) pair currently queued, sorted by
// ascending start offset for sequential read locality during
// send_queue.
func (q *Queue) Entries() []Entry {
	out := make([]Entry, 0, len(q.ranges))
	for oid, r := range q.ranges {
		out = append(out, Entry{OID: oid, Range: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.Start < out[j].Range.Start })
	return out
}

// Read returns the bytes for a queued entry, given its range (used by
// send_queue to avoid a second map lookup).
func (q *Queue) Read(r Range) ([]byte, error) {
	return q.readRange(r)
}

// Close discards the queue, closing the spill file if one was created.
func (q *Queue) Close() error {
	if q.file != nil {
		f := q.file
		q.file = nil
		return f.Close()
	}
	return nil
}
