// Package performance records operation timings for editor sessions and
// keeps aggregate statistics per operation.
package performance

import (
	"time"
)

// Marker represents a single performance measurement for an operation
type Marker struct {
	Operation string         `json:"operation"` // e.g. "autosave:persist", "editor:mount"
	SiteID    string         `json:"siteId"`
	SessionID string         `json:"sessionId,omitempty"`
	StartTime time.Time      `json:"startTime"`
	Duration  time.Duration  `json:"duration"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Completed bool           `json:"completed"`

	tracker *Tracker
}

// SetError marks the operation as failed. A nil error leaves it untouched.
func (m *Marker) SetError(err error) {
	if err != nil {
		m.Error = err.Error()
		m.Success = false
	}
}

// AddMetadata adds key-value metadata to the marker
func (m *Marker) AddMetadata(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// Complete finishes the marker and hands it to its tracker. Calling it twice
// has no effect.
func (m *Marker) Complete() {
	if m.Completed {
		return
	}
	m.Duration = time.Since(m.StartTime)
	m.Completed = true
	if m.tracker != nil {
		m.tracker.record(m)
	}
}

// OperationStats aggregates the completed markers of one operation.
type OperationStats struct {
	Operation string        `json:"operation"`
	Count     int           `json:"count"`
	Failures  int           `json:"failures"`
	Slow      int           `json:"slow"`
	Total     time.Duration `json:"-"`
	Average   time.Duration `json:"average"`
	Max       time.Duration `json:"max"`
}

func (s *OperationStats) add(m *Marker, slow bool) {
	s.Count++
	if !m.Success {
		s.Failures++
	}
	if slow {
		s.Slow++
	}
	s.Total += m.Duration
	s.Average = s.Total / time.Duration(s.Count)
	if m.Duration > s.Max {
		s.Max = m.Duration
	}
}
