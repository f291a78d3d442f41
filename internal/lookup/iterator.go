package lookup

import (
	"context"
	"time"

	"github.com/wikimesh/centralindex/internal/core/storage"
)

// UserIterator is a pull-based cursor over distinct active user ids. Each
// underlying fetch pages by global user id, so abandoning the iterator
// between batches leaves nothing to clean up.
//
// Usage:
//
//	it := svc.UsersActiveSince(ctx, cutoff, 0)
//	for it.Next() {
//	    use(it.User())
//	}
//	if err := it.Err(); err != nil { ... }
type UserIterator struct {
	ctx       context.Context
	store     storage.ActivityStore
	cutoff    time.Time
	batchSize int

	buf    []int64
	pos    int
	cursor int64
	done   bool
	err    error
}

// Next advances to the next user id, fetching the next batch when the
// current one is exhausted. Returns false at the end of the scan or on
// error; check Err afterwards.
func (it *UserIterator) Next() bool {
	if it.err != nil {
		return false
	}

	if it.pos < len(it.buf) {
		it.pos++
		return true
	}
	if it.done {
		return false
	}

	ids, err := it.store.ActiveUsersAfterCursor(it.ctx, it.cutoff, it.cursor, it.batchSize)
	if err != nil {
		it.err = err
		return false
	}
	if len(ids) == 0 {
		it.done = true
		return false
	}

	it.buf = ids
	it.pos = 1
	it.cursor = ids[len(ids)-1]
	if len(ids) < it.batchSize {
		// Short batch: the scan is complete once the buffer drains.
		it.done = true
	}
	return true
}

// User returns the current user id. Only valid after Next returned true.
func (it *UserIterator) User() int64 {
	return it.buf[it.pos-1]
}

// Err returns the first error hit by the scan, if any.
func (it *UserIterator) Err() error {
	return it.err
}

// Collect drains the iterator into a slice. Mostly a test and HTTP helper;
// large scans should pull lazily instead.
func (it *UserIterator) Collect() ([]int64, error) {
	var ids []int64
	for it.Next() {
		ids = append(ids, it.User())
	}
	return ids, it.Err()
}
