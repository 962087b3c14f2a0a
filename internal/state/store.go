package state

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

type watcherDocument struct {
	Totals           map[string]int64  `json:"totals"`
	Sessions         map[string]string `json:"sessions"`
	ScheduleProgress map[string]int64  `json:"schedule_progress"`
	PraisedPages     []string          `json:"praised_pages"`
}

// Store is the durable per-member presence state: cumulative totals, open
// session start times, per-schedule progress and the praised de-duplication
// set. One JSON document, rewritten whole on every Save.
type Store struct {
	mu      sync.Mutex
	path    string
	totals  map[string]int64
	starts  map[string]time.Time
	prog    map[string]int64
	praised map[string]struct{}
}

func NewStore(path string) *Store {
	return &Store{
		path:    path,
		totals:  make(map[string]int64),
		starts:  make(map[string]time.Time),
		prog:    make(map[string]int64),
		praised: make(map[string]struct{}),
	}
}

// Load restores the document from disk. An absent, empty or malformed file
// resets every field to empty; corruption is never fatal.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil || len(raw) == 0 {
		return
	}
	var doc watcherDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		slog.Warn("watcher state file is malformed; starting from empty state", "path", s.path, "error", err)
		return
	}
	for userID, sec := range doc.Totals {
		s.totals[userID] = sec
	}
	for userID, iso := range doc.Sessions {
		start, err := time.Parse(time.RFC3339, iso)
		if err != nil {
			slog.Warn("dropping unparsable session start", "user_id", userID, "value", iso)
			continue
		}
		s.starts[userID] = start
	}
	for pageID, sec := range doc.ScheduleProgress {
		s.prog[pageID] = sec
	}
	for _, pageID := range doc.PraisedPages {
		s.praised[pageID] = struct{}{}
	}
}

// Save rewrites the whole document. Callers invoke it after every mutation
// that must survive a restart. The lock is held across the file write so
// concurrent saves cannot land an older snapshot last.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := watcherDocument{
		Totals:           make(map[string]int64, len(s.totals)),
		Sessions:         make(map[string]string, len(s.starts)),
		ScheduleProgress: make(map[string]int64, len(s.prog)),
		PraisedPages:     make([]string, 0, len(s.praised)),
	}
	for userID, sec := range s.totals {
		doc.Totals[userID] = sec
	}
	for userID, start := range s.starts {
		doc.Sessions[userID] = start.Format(time.RFC3339)
	}
	for pageID, sec := range s.prog {
		doc.ScheduleProgress[pageID] = sec
	}
	for pageID := range s.praised {
		doc.PraisedPages = append(doc.PraisedPages, pageID)
	}
	sort.Strings(doc.PraisedPages)

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, raw, 0o644)
}

// RecordSessionStart opens a session for the member. A re-entry while a
// session is already open overwrites the stored start time, resetting the
// session clock on rapid re-joins.
func (s *Store) RecordSessionStart(userID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts[userID] = now
}

// CloseSession folds the elapsed time of the member's open session into the
// total and removes the session. It returns the elapsed seconds, 0 when no
// session is open, and never a negative amount (clock skew floors at zero).
func (s *Store) CloseSession(userID string, until time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, ok := s.starts[userID]
	if !ok {
		return 0
	}
	delete(s.starts, userID)
	elapsed := int64(until.Sub(start).Seconds())
	if elapsed <= 0 {
		return 0
	}
	s.totals[userID] += elapsed
	return elapsed
}

func (s *Store) HasOpenSession(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.starts[userID]
	return ok
}

// RolloverSessions closes every open session at the cutoff instant and
// reopens it there, so accumulation restarts from the cutoff rather than the
// original start.
func (s *Store) RolloverSessions(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, start := range s.starts {
		elapsed := int64(cutoff.Sub(start).Seconds())
		if elapsed > 0 {
			s.totals[userID] += elapsed
		}
		s.starts[userID] = cutoff
	}
}

func (s *Store) AddScheduleProgress(pageID string, seconds int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seconds > 0 {
		s.prog[pageID] += seconds
	}
	return s.prog[pageID]
}

func (s *Store) IsPraised(pageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.praised[pageID]
	return ok
}

func (s *Store) MarkPraised(pageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.praised[pageID] = struct{}{}
}

// TotalsSnapshot returns a copy of the accumulated totals.
func (s *Store) TotalsSnapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.totals))
	for userID, sec := range s.totals {
		out[userID] = sec
	}
	return out
}

// ResetTotals zeroes the cumulative totals. The only bulk reset in the
// system; the weekly reporter calls it after emitting the ranked report.
func (s *Store) ResetTotals() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals = make(map[string]int64)
}
