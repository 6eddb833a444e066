package performance

import (
	"sort"
	"sync"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
)

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxRecent     int           `json:"maxRecent"`     // completed markers retained for inspection
	SlowThreshold time.Duration `json:"slowThreshold"` // operations at or above this are logged as slow
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxRecent:     200,
		SlowThreshold: 2 * time.Second,
	}
}

// Tracker collects completed markers and aggregates them per operation.
type Tracker struct {
	cfg    TrackerConfig
	logger *logging.ChanneledLogger

	mu      sync.RWMutex
	recent  []*Marker
	next    int
	stats   map[string]*OperationStats
	started time.Time
}

// NewTracker creates a tracker. A nil logger disables slow-operation logs.
func NewTracker(cfg TrackerConfig, logger *logging.ChanneledLogger) *Tracker {
	if cfg.MaxRecent <= 0 {
		cfg.MaxRecent = DefaultTrackerConfig().MaxRecent
	}
	return &Tracker{
		cfg:     cfg,
		logger:  logger,
		recent:  make([]*Marker, 0, cfg.MaxRecent),
		stats:   make(map[string]*OperationStats),
		started: time.Now(),
	}
}

// Start opens a marker; the caller must Complete it.
func (t *Tracker) Start(operation, siteID, sessionID string) *Marker {
	return &Marker{
		Operation: operation,
		SiteID:    siteID,
		SessionID: sessionID,
		StartTime: time.Now(),
		Success:   true,
		tracker:   t,
	}
}

func (t *Tracker) record(m *Marker) {
	slow := t.cfg.SlowThreshold > 0 && m.Duration >= t.cfg.SlowThreshold

	t.mu.Lock()
	if len(t.recent) < t.cfg.MaxRecent {
		t.recent = append(t.recent, m)
	} else {
		t.recent[t.next] = m
	}
	t.next = (t.next + 1) % t.cfg.MaxRecent

	s, ok := t.stats[m.Operation]
	if !ok {
		s = &OperationStats{Operation: m.Operation}
		t.stats[m.Operation] = s
	}
	s.add(m, slow)
	t.mu.Unlock()

	if slow && t.logger != nil {
		t.logger.WithSession(logging.ChannelSlowQuery, m.SiteID, m.SessionID).Warn("Slow operation",
			"operation", m.Operation, "duration", m.Duration, "success", m.Success)
	}
}

// Stats returns a copy of the per-operation aggregates sorted by operation.
func (t *Tracker) Stats() []OperationStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]OperationStats, 0, len(t.stats))
	for _, s := range t.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

// Recent returns up to limit completed markers, newest first.
func (t *Tracker) Recent(limit int) []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := len(t.recent)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Marker, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (t.next - 1 - i + n) % n
		m := *t.recent[idx]
		m.tracker = nil
		out = append(out, m)
	}
	return out
}

// Uptime reports how long the tracker has been collecting.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.started)
}
