package game

import (
	"slices"
	"sort"
	"sync"
)

const DefaultHistoryCapacity = 1000

// History is the bounded, session-ordered record buffer owned by the
// ingestion side. Insertion is idempotent on session id and keeps the buffer
// sorted even when records arrive out of order.
type History struct {
	mu       sync.RWMutex
	records  []Session
	ids      map[int64]struct{}
	capacity int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		records:  make([]Session, 0, min(capacity, 256)),
		ids:      make(map[int64]struct{}),
		capacity: capacity,
	}
}

// Insert adds a record and reports whether it was new. Records older than the
// oldest retained one are dropped once the buffer is full.
func (h *History) Insert(s Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.insertLocked(s)
}

// InsertMany inserts a batch and returns the number of new records.
func (h *History) InsertMany(sessions []Session) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	added := 0
	for _, s := range sessions {
		if h.insertLocked(s) {
			added++
		}
	}
	return added
}

func (h *History) insertLocked(s Session) bool {
	if _, ok := h.ids[s.ID]; ok {
		return false
	}
	if len(h.records) >= h.capacity && s.ID < h.records[0].ID {
		return false
	}

	pos := sort.Search(len(h.records), func(i int) bool {
		return h.records[i].ID > s.ID
	})
	h.records = slices.Insert(h.records, pos, s)
	h.ids[s.ID] = struct{}{}

	for len(h.records) > h.capacity {
		delete(h.ids, h.records[0].ID)
		h.records = h.records[1:]
	}
	return true
}

// Snapshot returns a copy safe to hand to the predictor.
func (h *History) Snapshot() []Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.records)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Latest returns the newest record.
func (h *History) Latest() (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.records) == 0 {
		return Session{}, false
	}
	return h.records[len(h.records)-1], true
}

// OldestID returns the oldest retained session id, 0 when empty.
func (h *History) OldestID() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.records) == 0 {
		return 0
	}
	return h.records[0].ID
}

func (h *History) Capacity() int {
	return h.capacity
}
