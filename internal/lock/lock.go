package lock

import (
	"context"
	"sync"
	"time"
)

// Locker выдаёт эксклюзивную блокировку по ключу на время ttl.
// ok=false означает, что блокировку держит кто-то другой.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// LocalLocker блокировка внутри одного процесса, используется без Redis.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), clock: time.Now}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, false, nil
	}

	until := now.Add(ttl)
	l.held[key] = until

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// Не снимаем чужую блокировку, взятую после истечения нашей
		if l.held[key].Equal(until) {
			delete(l.held, key)
		}
	}, true, nil
}
