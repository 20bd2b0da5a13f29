package workspace

import (
	"container/list"
	"sync"
)

// sessionLRU is a bounded least-recently-used cache mapping session id to a
// pinned workspace path (spec §4.7 resolution step 3), capacity 200. It is
// safe for concurrent use.
type sessionLRU struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

type lruEntry struct {
	sessionID string
	path      string
}

func newSessionLRU(capacity int) *sessionLRU {
	return &sessionLRU{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *sessionLRU) Get(sessionID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[sessionID]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).path, true
}

func (c *sessionLRU) Put(sessionID, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[sessionID]; ok {
		el.Value.(*lruEntry).path = path
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&lruEntry{sessionID: sessionID, path: path})
	c.entries[sessionID] = el

	for len(c.entries) > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry).sessionID)
	}
}
