package schedule

import (
	"sync"
	"time"
)

// Entry is the single currently relevant schedule window for one member.
type Entry struct {
	UserID string
	PageID string
	Name   string
	Start  time.Time
	End    time.Time
}

// PlannedDuration is the length of the scheduled window.
func (e Entry) PlannedDuration() time.Duration {
	return e.End.Sub(e.Start)
}

// Index maps member ids to their active schedule entry. The poller is the
// single writer via ReplaceAll; the presence watcher only reads snapshots.
// A snapshot handed out by Get stays valid for the reader even after a later
// ReplaceAll drops the entry.
type Index struct {
	mu     sync.RWMutex
	byUser map[string]Entry
}

func NewIndex() *Index {
	return &Index{byUser: make(map[string]Entry)}
}

func (i *Index) Get(userID string) (Entry, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.byUser[userID]
	return e, ok
}

// ReplaceAll swaps the whole index atomically; entries not re-affirmed this
// cycle are dropped.
func (i *Index) ReplaceAll(entries map[string]Entry) {
	replacement := make(map[string]Entry, len(entries))
	for userID, e := range entries {
		replacement[userID] = e
	}
	i.mu.Lock()
	i.byUser = replacement
	i.mu.Unlock()
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byUser)
}
