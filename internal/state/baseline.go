package state

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

type Collection string

const (
	CollectionFeatures  Collection = "features"
	CollectionBoards    Collection = "boards"
	CollectionSchedules Collection = "schedules"
)

type baselineDocument struct {
	Features        []string          `json:"features"`
	FeatureStatuses map[string]string `json:"feature_statuses"`
	Boards          []string          `json:"boards"`
	Schedules       []string          `json:"schedules"`
}

// Baseline holds the last successfully processed id set per polled external
// collection, plus the verbatim status string per feature id. The change
// detector diffs against it and replaces each set wholesale after a
// successful cycle.
type Baseline struct {
	mu       sync.Mutex
	path     string
	known    map[Collection]map[string]struct{}
	statuses map[string]string
}

func NewBaseline(path string) *Baseline {
	return &Baseline{
		path: path,
		known: map[Collection]map[string]struct{}{
			CollectionFeatures:  {},
			CollectionBoards:    {},
			CollectionSchedules: {},
		},
		statuses: make(map[string]string),
	}
}

// Load restores the baselines from disk, defaulting to empty on any problem.
func (b *Baseline) Load() {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := os.ReadFile(b.path)
	if err != nil || len(raw) == 0 {
		return
	}
	var doc baselineDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		slog.Warn("baseline file is malformed; starting from empty baselines", "path", b.path, "error", err)
		return
	}
	b.known[CollectionFeatures] = toSet(doc.Features)
	b.known[CollectionBoards] = toSet(doc.Boards)
	b.known[CollectionSchedules] = toSet(doc.Schedules)
	for id, status := range doc.FeatureStatuses {
		b.statuses[id] = status
	}
}

// Save holds the lock across the file write so concurrent saves cannot land
// an older snapshot last.
func (b *Baseline) Save() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc := baselineDocument{
		Features:        toSortedSlice(b.known[CollectionFeatures]),
		Boards:          toSortedSlice(b.known[CollectionBoards]),
		Schedules:       toSortedSlice(b.known[CollectionSchedules]),
		FeatureStatuses: make(map[string]string, len(b.statuses)),
	}
	for id, status := range b.statuses {
		doc.FeatureStatuses[id] = status
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(b.path, raw, 0o644)
}

// KnownIDs returns a copy of the collection's baseline id set.
func (b *Baseline) KnownIDs(c Collection) map[string]struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]struct{}, len(b.known[c]))
	for id := range b.known[c] {
		out[id] = struct{}{}
	}
	return out
}

// ReplaceKnownIDs installs the freshly observed id set as the new baseline.
func (b *Baseline) ReplaceKnownIDs(c Collection, ids map[string]struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	replacement := make(map[string]struct{}, len(ids))
	for id := range ids {
		replacement[id] = struct{}{}
	}
	b.known[c] = replacement
}

// FeatureStatus returns the stored verbatim status string and whether the id
// has been seen before.
func (b *Baseline) FeatureStatus(id string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, ok := b.statuses[id]
	return status, ok
}

func (b *Baseline) SetFeatureStatus(id, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[id] = status
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func toSortedSlice(ids map[string]struct{}) []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
