// Package golden implements the durable last-known-good fallback store: a
// JSON file on disk recording the last successful API response per data
// type, with its own freshness ladder so entries stay usable long after the
// primary cache TTLs have expired.
package golden

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pulsedeck/internal/logger"
)

// Tier is a golden dataset freshness tier. Entries only ever move down the
// ladder; a fresh Store call is the only way back to TierFresh.
type Tier string

const (
	TierFresh    Tier = "fresh"
	TierStale    Tier = "stale"
	TierArchived Tier = "archived"
	TierFallback Tier = "fallback"
)

// ladder orders tiers from freshest to last-resort
var ladder = []Tier{TierFresh, TierStale, TierArchived, TierFallback}

// ErrNotFound is returned when no entry exists for a data type, or none
// within the acceptable tiers.
var ErrNotFound = errors.New("golden: entry not found")

// Entry is a stored last-known-good value for one data type
type Entry struct {
	DataType   string          `json:"dataType"`
	Data       json.RawMessage `json:"data"`
	Timestamp  time.Time       `json:"timestamp"`
	Tier       Tier            `json:"tier"`
	ExpiresAt  time.Time       `json:"expiresAt"`
	Source     string          `json:"source"`
	DataPoints int             `json:"dataPoints"`
}

// Windows maps each tier to how long an entry may sit in it before the next
// read or sweep demotes it.
type Windows struct {
	Fresh    time.Duration
	Stale    time.Duration
	Archived time.Duration
	Fallback time.Duration
}

// For returns the window for a tier
func (w Windows) For(tier Tier) time.Duration {
	switch tier {
	case TierFresh:
		return w.Fresh
	case TierStale:
		return w.Stale
	case TierArchived:
		return w.Archived
	default:
		return w.Fallback
	}
}

// Summary describes one stored entry for operational dashboards
type Summary struct {
	Tier       Tier          `json:"tier"`
	Age        time.Duration `json:"age"`
	DataPoints int           `json:"dataPoints"`
	Source     string        `json:"source"`
	Available  bool          `json:"available"`
}

// Stats aggregates the whole dataset
type Stats struct {
	Entries         int          `json:"entries"`
	ByTier          map[Tier]int `json:"by_tier"`
	TotalDataPoints int          `json:"total_data_points"`
	OldestAge       float64      `json:"oldest_age_seconds"`
	NewestAge       float64      `json:"newest_age_seconds"`
	MeanAge         float64      `json:"mean_age_seconds"`
}

// Service owns the on-disk dataset file. All reads and writes go through the
// service; there is no file locking, so concurrent processes race with
// last-writer-wins semantics (acceptable for a best-effort cache).
type Service struct {
	path       string
	backupPath string
	windows    Windows
	log        logger.Logger
	now        func() time.Time
	mu         sync.Mutex
}

// NewService creates a golden dataset service over the given file paths
func NewService(path, backupPath string, windows Windows, log logger.Logger) *Service {
	return &Service{
		path:       path,
		backupPath: backupPath,
		windows:    windows,
		log:        log,
		now:        time.Now,
	}
}

// Store overwrites the entry for dataType at tier fresh. The previous file
// is copied to the backup path before the new dataset replaces it.
func (s *Service) Store(dataType string, data interface{}, source string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("golden: failed to marshal %s: %w", dataType, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dataset := s.load()
	now := s.now()

	dataset[dataType] = &Entry{
		DataType:   dataType,
		Data:       raw,
		Timestamp:  now,
		Tier:       TierFresh,
		ExpiresAt:  now.Add(s.windows.For(TierFresh)),
		Source:     source,
		DataPoints: countDataPoints(raw),
	}

	if err := s.persist(dataset); err != nil {
		// Write failure is non-fatal: the next successful Store retries.
		s.log.Error("golden dataset write failed", "dataType", dataType, "error", err.Error())
		return err
	}

	s.log.Debug("golden dataset updated", "dataType", dataType, "source", source)
	return nil
}

// Retrieve returns the entry for dataType if its tier (after any pending
// demotion) is in acceptable. An expired entry is demoted one tier and
// persisted before the tier check; an entry expired at the last tier is
// deleted.
func (s *Service) Retrieve(dataType string, acceptable []Tier) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dataset := s.load()
	entry, exists := dataset[dataType]
	if !exists {
		return nil, ErrNotFound
	}

	if changed, deleted := s.advance(entry, dataset); deleted || changed {
		if err := s.persist(dataset); err != nil {
			s.log.Warn("golden dataset demotion not persisted", "dataType", dataType, "error", err.Error())
		}
		if deleted {
			return nil, ErrNotFound
		}
	}

	for _, t := range acceptable {
		if entry.Tier == t {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// GetAll returns a per-dataType summary of everything stored
func (s *Service) GetAll() map[string]Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	dataset := s.load()
	now := s.now()

	result := make(map[string]Summary, len(dataset))
	for dataType, entry := range dataset {
		result[dataType] = Summary{
			Tier:       entry.Tier,
			Age:        now.Sub(entry.Timestamp),
			DataPoints: entry.DataPoints,
			Source:     entry.Source,
			Available:  true,
		}
	}
	return result
}

// Cleanup sweeps all entries, demoting expired ones and deleting entries
// expired at the last tier. Returns the number of entries demoted or removed.
func (s *Service) Cleanup() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dataset := s.load()
	touched := 0

	for _, entry := range dataset {
		changed, deleted := s.advance(entry, dataset)
		if changed || deleted {
			touched++
		}
	}

	if touched > 0 {
		if err := s.persist(dataset); err != nil {
			return touched, err
		}
	}
	return touched, nil
}

// Stats returns aggregate counts by tier plus age statistics
func (s *Service) Stats() *Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	dataset := s.load()
	now := s.now()

	stats := &Stats{
		Entries: len(dataset),
		ByTier:  make(map[Tier]int),
	}

	var oldest, newest, sum float64
	first := true
	for _, entry := range dataset {
		stats.ByTier[entry.Tier]++
		stats.TotalDataPoints += entry.DataPoints

		age := now.Sub(entry.Timestamp).Seconds()
		sum += age
		if first || age > oldest {
			oldest = age
		}
		if first || age < newest {
			newest = age
		}
		first = false
	}

	if len(dataset) > 0 {
		stats.OldestAge = oldest
		stats.NewestAge = newest
		stats.MeanAge = sum / float64(len(dataset))
	}
	return stats
}

// Export serializes the entire dataset map
func (s *Service) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return json.MarshalIndent(s.load(), "", "  ")
}

// Import replaces the dataset with a previously exported payload and
// persists it. Returns the number of entries imported.
func (s *Service) Import(payload []byte) (int, error) {
	var dataset map[string]*Entry
	if err := json.Unmarshal(payload, &dataset); err != nil {
		return 0, fmt.Errorf("golden: invalid import payload: %w", err)
	}

	for dataType, entry := range dataset {
		if entry == nil || entry.DataType == "" {
			return 0, fmt.Errorf("golden: import entry %q is malformed", dataType)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(dataset); err != nil {
		return 0, err
	}
	return len(dataset), nil
}

// advance applies the expiry rule to one entry. Caller holds the lock.
// Returns whether the entry was demoted and whether it was deleted.
func (s *Service) advance(entry *Entry, dataset map[string]*Entry) (changed, deleted bool) {
	now := s.now()
	if !now.After(entry.ExpiresAt) {
		return false, false
	}

	next, ok := nextTier(entry.Tier)
	if !ok {
		delete(dataset, entry.DataType)
		s.log.Info("golden entry evicted", "dataType", entry.DataType)
		return false, true
	}

	entry.Tier = next
	entry.ExpiresAt = now.Add(s.windows.For(next))
	s.log.Debug("golden entry demoted", "dataType", entry.DataType, "tier", string(next))
	return true, false
}

// nextTier returns the next tier down the ladder, or ok=false at the end
func nextTier(t Tier) (Tier, bool) {
	for i, tier := range ladder {
		if tier == t && i+1 < len(ladder) {
			return ladder[i+1], true
		}
	}
	return "", false
}

// load reads the dataset from disk, healing from the backup file when the
// primary is missing or corrupt. Caller holds the lock.
func (s *Service) load() map[string]*Entry {
	if dataset, err := readDataset(s.path); err == nil {
		return dataset
	}

	dataset, err := readDataset(s.backupPath)
	if err != nil {
		return make(map[string]*Entry)
	}

	// Backup was good: repair the primary from it.
	s.log.Warn("golden dataset restored from backup", "path", s.path)
	if err := writeDataset(s.path, dataset); err != nil {
		s.log.Error("failed to repair golden dataset file", "error", err.Error())
	}
	return dataset
}

// persist writes the dataset, copying the current primary to the backup
// first so a good file is never lost irrecoverably. Caller holds the lock.
func (s *Service) persist(dataset map[string]*Entry) error {
	if current, err := os.ReadFile(s.path); err == nil {
		if err := os.MkdirAll(filepath.Dir(s.backupPath), 0755); err == nil {
			if err := os.WriteFile(s.backupPath, current, 0644); err != nil {
				s.log.Warn("golden backup write failed", "error", err.Error())
			}
		}
	}

	return writeDataset(s.path, dataset)
}

func readDataset(path string) (map[string]*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var dataset map[string]*Entry
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, err
	}
	if dataset == nil {
		dataset = make(map[string]*Entry)
	}
	return dataset, nil
}

// writeDataset writes via temp file + rename so a crashed writer can never
// leave a torn primary.
func writeDataset(path string, dataset map[string]*Entry) error {
	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// countDataPoints sums the lengths of array-shaped fields in the payload,
// at any nesting depth. Used only for observability.
func countDataPoints(raw json.RawMessage) int {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0
	}
	return countArrays(value)
}

func countArrays(value interface{}) int {
	switch v := value.(type) {
	case []interface{}:
		count := len(v)
		for _, item := range v {
			count += countArrays(item)
		}
		return count
	case map[string]interface{}:
		count := 0
		for _, item := range v {
			count += countArrays(item)
		}
		return count
	default:
		return 0
	}
}
