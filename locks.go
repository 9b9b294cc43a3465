package docdex

import "sync"

// lockRegistry hands out one mutex per index name, created lazily and kept
// for the life of the process. The key space is bounded by the distinct
// index names ever touched, so entries are never pruned.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for name, creating it on first request.
func (r *lockRegistry) get(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	return l
}
