package domain

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// userLocks serializes work per user. Users hashing to the same shard
// share a mutex, so a holder must never take a second user's lock.
// Events published for a user while its lock is held are queued and
// delivered after the lock is released.
type userLocks struct {
	shards [lockShards]sync.Mutex

	mu      sync.Mutex
	held    map[string][]Event
	deliver func(userID string, evt Event)
}

func (l *userLocks) lock(userID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	m := &l.shards[h.Sum32()%lockShards]
	m.Lock()

	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string][]Event)
	}
	l.held[userID] = []Event{}
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		events := l.held[userID]
		delete(l.held, userID)
		l.mu.Unlock()
		m.Unlock()

		if l.deliver == nil {
			return
		}
		for _, evt := range events {
			l.deliver(userID, evt)
		}
	}
}

// queue holds evt until userID's lock is released. It reports false when
// the lock is not held.
func (l *userLocks) queue(userID string, evt Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	events, ok := l.held[userID]
	if !ok {
		return false
	}
	l.held[userID] = append(events, evt)
	return true
}
