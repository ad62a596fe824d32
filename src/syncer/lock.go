package syncer

import (
	"context"
	"sync"
)

// itemLocks serialises syncs of the same plaid item within this process.
// Entries are dropped once nobody holds or waits on them.
type itemLocks struct {
	mu    sync.Mutex
	locks map[int64]*itemLock
}

type itemLock struct {
	ch   chan struct{}
	refs int
}

func newItemLocks() *itemLocks {
	return &itemLocks{locks: make(map[int64]*itemLock)}
}

func (l *itemLocks) lock(ctx context.Context, itemID int64) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	il, ok := l.locks[itemID]
	if !ok {
		il = &itemLock{ch: make(chan struct{}, 1)}
		l.locks[itemID] = il
	}
	il.refs++
	l.mu.Unlock()

	select {
	case il.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-il.ch
				l.release(itemID, il)
			})
		}, nil
	case <-ctx.Done():
		l.release(itemID, il)
		return nil, ctx.Err()
	}
}

func (l *itemLocks) release(itemID int64, il *itemLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	il.refs--
	if il.refs == 0 {
		delete(l.locks, itemID)
	}
}

func (l *itemLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
