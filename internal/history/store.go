package history

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"netwatch/internal/domain"
)

const (
	// Retention bounds each target's history window.
	Retention = 24 * time.Hour

	// persistEvery snapshots the store after this many appended samples,
	// roughly once per minute at the default probe interval.
	persistEvery = 30
)

// SettingsCodec lets the durable document carry the engine configuration next
// to the history, as a single JSON file per installation.
type SettingsCodec interface {
	Snapshot() (json.RawMessage, error)
	Restore(raw json.RawMessage) error
}

// Store is the per-target bounded, time-ordered sample log. Each target's
// samples are appended by its own scheduler loop; readers get copies, so no
// lock is ever held across I/O.
type Store struct {
	mu       sync.RWMutex
	samples  map[string][]domain.Sample
	order    []string
	appends  int
	clock    clock.Clock
	path     string
	settings SettingsCodec
	metrics  domain.MetricsCollector
	logger   *zap.Logger
}

// NewStore builds a store persisting to path. settings may be nil.
func NewStore(path string, settings SettingsCodec, metrics domain.MetricsCollector, clk clock.Clock, logger *zap.Logger) *Store {
	return &Store{
		samples:  make(map[string][]domain.Sample),
		clock:    clk,
		path:     path,
		settings: settings,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "history")),
	}
}

// EnsureTarget registers a target, preserving insertion order for display.
func (s *Store) EnsureTarget(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureTargetLocked(target)
}

func (s *Store) ensureTargetLocked(target string) {
	if _, ok := s.samples[target]; ok {
		return
	}
	s.samples[target] = nil
	s.order = append(s.order, target)
}

// RemoveTarget drops a target and all of its samples.
func (s *Store) RemoveTarget(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.samples[target]; !ok {
		return
	}
	delete(s.samples, target)
	for i, t := range s.order {
		if t == target {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Targets lists known targets in insertion order.
func (s *Store) Targets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// HasTarget reports whether target is known to the store.
func (s *Store) HasTarget(target string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.samples[target]
	return ok
}

// Append records a sample for its target, evicting entries older than the
// retention bound as a side effect, and persists the store every persistEvery
// appends.
func (s *Store) Append(sample domain.Sample) {
	s.mu.Lock()
	s.ensureTargetLocked(sample.Target)
	s.samples[sample.Target] = append(s.samples[sample.Target], sample)
	s.evictLocked(sample.Target)

	s.appends++
	persist := s.appends >= persistEvery
	if persist {
		s.appends = 0
	}
	s.mu.Unlock()

	if persist {
		if err := s.Persist(); err != nil {
			s.logger.Error("history snapshot failed", zap.Error(err))
		}
	}
}

func (s *Store) evictLocked(target string) {
	cutoff := s.clock.Now().Add(-Retention)
	samples := s.samples[target]
	idx := sort.Search(len(samples), func(i int) bool {
		return !samples[i].Timestamp.Before(cutoff)
	})
	if idx > 0 {
		s.samples[target] = append(samples[:0:0], samples[idx:]...)
	}
}

// Window returns target's samples with timestamp >= now-since, in
// chronological order. The returned slice is a copy.
func (s *Store) Window(target string, since time.Duration) []domain.Sample {
	cutoff := s.clock.Now().Add(-since)

	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := s.samples[target]
	idx := sort.Search(len(samples), func(i int) bool {
		return !samples[i].Timestamp.Before(cutoff)
	})
	out := make([]domain.Sample, len(samples)-idx)
	copy(out, samples[idx:])
	return out
}

// document is the durable JSON representation: the full history plus the
// engine settings, one file per installation.
type document struct {
	SavedAt  time.Time                  `json:"saved_at"`
	Targets  []string                   `json:"targets"`
	Samples  map[string][]domain.Sample `json:"samples"`
	Settings json.RawMessage            `json:"settings,omitempty"`
}

func (s *Store) snapshot() (document, error) {
	s.mu.RLock()
	doc := document{
		SavedAt: s.clock.Now(),
		Targets: append([]string(nil), s.order...),
		Samples: make(map[string][]domain.Sample, len(s.samples)),
	}
	for target, samples := range s.samples {
		doc.Samples[target] = append([]domain.Sample(nil), samples...)
	}
	s.mu.RUnlock()

	if s.settings != nil {
		raw, err := s.settings.Snapshot()
		if err != nil {
			return document{}, fmt.Errorf("error snapshotting settings: %w", err)
		}
		doc.Settings = raw
	}
	return doc, nil
}

// Persist writes the current store to the durable file. A failure is returned
// for logging and retried on the next snapshot cadence; it never stops the
// engine.
func (s *Store) Persist() error {
	doc, err := s.snapshot()
	if err != nil {
		s.recordPersist(false)
		return err
	}
	if err := writeDocument(s.path, doc); err != nil {
		s.recordPersist(false)
		return err
	}
	s.recordPersist(true)
	return nil
}

// Restore loads the durable file, discarding samples older than the retention
// bound. A missing or corrupt file is non-fatal: the store starts empty.
func (s *Store) Restore() {
	doc, err := readDocument(s.path)
	if err != nil {
		s.logger.Warn("starting with empty history", zap.Error(err))
		return
	}

	cutoff := s.clock.Now().Add(-Retention)

	s.mu.Lock()
	for _, target := range doc.Targets {
		s.ensureTargetLocked(target)
		for _, sample := range doc.Samples[target] {
			if sample.Timestamp.Before(cutoff) {
				continue
			}
			s.samples[target] = append(s.samples[target], sample)
		}
	}
	s.mu.Unlock()

	if s.settings != nil && len(doc.Settings) > 0 {
		if err := s.settings.Restore(doc.Settings); err != nil {
			s.logger.Warn("ignoring persisted settings", zap.Error(err))
		}
	}

	s.logger.Info("history restored",
		zap.Int("targets", len(doc.Targets)),
		zap.Time("saved_at", doc.SavedAt))
}

func (s *Store) recordPersist(success bool) {
	if s.metrics != nil {
		s.metrics.RecordSnapshotPersist(success)
	}
}
