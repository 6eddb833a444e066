// Package autosave mirrors local edits of one editable resource into a
// debounced remote persistence call and reports save-in-progress status.
package autosave

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/bep/debounce"
)

const (
	DefaultWindow  = 1000 * time.Millisecond
	DefaultTimeout = 15 * time.Second
)

// Document is the editable resource in its generic JSON form.
type Document map[string]any

// Persister performs the remote write of a full document and returns the
// document as persisted.
type Persister interface {
	Persist(ctx context.Context, doc Document) (Document, error)
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, doc Document) (Document, error)

func (f PersisterFunc) Persist(ctx context.Context, doc Document) (Document, error) {
	return f(ctx, doc)
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a fire-and-forget message for the user.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier surfaces notifications to the user.
type Notifier interface {
	Notify(Notification)
}

// Options configures a Controller. Callbacks run on the goroutine that caused
// the transition and must not call mutating Controller methods.
type Options struct {
	Window   time.Duration
	Timeout  time.Duration
	OnSaved  func(Document)
	OnStatus func(saving bool)
	Notifier Notifier
	Logger   *slog.Logger
}

// Controller keeps a local document in sync with a Persister. Writes are
// trailing-edge debounced; a failed write is reported once and never retried.
type Controller struct {
	persister Persister
	opts      Options
	debounced func(func())
	logger    *slog.Logger

	mu        sync.Mutex
	data      Document
	lastSaved Document
	sent      Document // body of the newest request while it is in flight
	pending   bool
	force     bool
	inFlight  int
	seq       uint64 // last issued request
	applied   uint64 // last request whose response was applied
	saving    bool   // last reported status
	closed    bool

	// emitMu keeps callback delivery in state order.
	emitMu sync.Mutex
	wg     sync.WaitGroup
}

// New creates a controller seeded with server-fetched data. The seed counts
// as already saved.
func New(persister Persister, opts Options, seed Document) (*Controller, error) {
	if persister == nil {
		return nil, fmt.Errorf("autosave: persister is required")
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	normalized := Document{}
	if seed != nil {
		if err := normalizeInto(seed, &normalized); err != nil {
			return nil, fmt.Errorf("autosave: invalid seed document: %w", err)
		}
	}

	return &Controller{
		persister: persister,
		opts:      opts,
		debounced: debounce.New(opts.Window),
		logger:    logger,
		data:      normalized,
		lastSaved: cloneDocument(normalized),
	}, nil
}

// SetField merges one field into the document. A save is scheduled only when
// the result differs from what the server will hold once in-flight saves land.
func (c *Controller) SetField(key string, value any) {
	var normalized any
	if err := normalizeInto(value, &normalized); err != nil {
		c.logger.Warn("SetField ignored: value is not JSON encodable", "field", key, "error", err.Error())
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("SetField ignored: controller closed", "field", key)
		return
	}
	next := make(Document, len(c.data)+1)
	for k, v := range c.data {
		next[k] = v
	}
	next[key] = normalized
	c.data = next

	if !c.force && reflect.DeepEqual(c.data, c.baselineLocked()) {
		c.pending = false
		c.emitStatusLocked()
		return
	}
	c.pending = true
	c.emitStatusLocked()
	c.debounced(c.fire)
}

// ReplaceAll swaps in a whole document and always schedules a save.
func (c *Controller) ReplaceAll(doc Document) {
	normalized := Document{}
	if doc != nil {
		if err := normalizeInto(doc, &normalized); err != nil {
			c.logger.Warn("ReplaceAll ignored: document is not JSON encodable", "error", err.Error())
			return
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.data = normalized
	c.force = true
	c.pending = true
	c.emitStatusLocked()
	c.debounced(c.fire)
}

// Data returns a copy of the current in-memory document.
func (c *Controller) Data() Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneDocument(c.data)
}

// LastSaved returns a copy of the last successfully persisted document.
func (c *Controller) LastSaved() Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneDocument(c.lastSaved)
}

// IsSaving reports whether a save is queued or in flight.
func (c *Controller) IsSaving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending || c.inFlight > 0
}

// Flush persists a queued change immediately instead of waiting for the
// debounce window. It returns the persistence error, which is also notified.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	if !c.pending {
		c.mu.Unlock()
		return nil
	}
	c.pending = false
	return c.persistLocked(ctx)
}

// Close flushes a queued change, stops accepting edits and waits for
// in-flight saves to settle or ctx to end.
func (c *Controller) Close(ctx context.Context) error {
	flushErr := c.Flush(ctx)

	c.mu.Lock()
	c.closed = true
	c.pending = false
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return flushErr
	case <-ctx.Done():
		return fmt.Errorf("autosave: close interrupted with saves in flight: %w", ctx.Err())
	}
}

// baselineLocked is the document the server is expected to hold: the newest
// in-flight request body, or the last saved document when nothing is pending
// on the wire.
func (c *Controller) baselineLocked() Document {
	if c.inFlight > 0 && c.sent != nil {
		return c.sent
	}
	return c.lastSaved
}

func (c *Controller) fire() {
	c.mu.Lock()
	if c.closed || !c.pending {
		c.mu.Unlock()
		return
	}
	c.pending = false
	_ = c.persistLocked(context.Background())
}

// persistLocked sends the current document. It is entered with mu held and
// returns with it released.
func (c *Controller) persistLocked(parent context.Context) error {
	if !c.force && reflect.DeepEqual(c.data, c.baselineLocked()) {
		c.emitStatusLocked()
		return nil
	}
	c.force = false
	doc := cloneDocument(c.data)
	c.seq++
	seq := c.seq
	c.sent = doc
	c.inFlight++
	c.wg.Add(1)
	defer c.wg.Done()
	c.emitStatusLocked()

	ctx, cancel := context.WithTimeout(parent, c.opts.Timeout)
	start := time.Now()
	saved, err := c.persister.Persist(ctx, doc)
	cancel()

	c.mu.Lock()
	c.inFlight--
	if seq == c.seq || c.inFlight == 0 {
		c.sent = nil
	}
	if err != nil {
		if seq <= c.applied {
			c.logger.Warn("Stale save failed after a newer save was applied", "seq", seq, "applied", c.applied, "error", err.Error())
			c.emitStatusLocked()
			return nil
		}
		c.logger.Error("Autosave failed", "seq", seq, "duration", time.Since(start), "error", err.Error())
		c.emitFailureLocked(err)
		return err
	}

	if seq <= c.applied {
		c.logger.Warn("Discarding stale save response", "seq", seq, "applied", c.applied)
		c.emitStatusLocked()
		return nil
	}

	persisted := doc
	if saved != nil {
		normalized := Document{}
		if nerr := normalizeInto(saved, &normalized); nerr == nil {
			persisted = normalized
		} else {
			c.logger.Warn("Persisted document is not JSON encodable; keeping request body", "error", nerr.Error())
		}
	}
	c.applied = seq
	c.lastSaved = persisted
	c.logger.Debug("Autosave applied", "seq", seq, "duration", time.Since(start))
	if seq == c.seq && !c.pending && !c.closed && !reflect.DeepEqual(c.data, doc) {
		c.logger.Debug("Document changed while saving; rescheduling", "seq", seq)
		c.pending = true
		c.debounced(c.fire)
	}
	c.emitSavedLocked(cloneDocument(persisted))
	return nil
}

// emitStatusLocked reports an isSaving transition and releases mu.
func (c *Controller) emitStatusLocked() {
	changed, saving := c.statusChangeLocked()
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()
	if changed && c.opts.OnStatus != nil {
		c.opts.OnStatus(saving)
	}
}

func (c *Controller) emitSavedLocked(doc Document) {
	changed, saving := c.statusChangeLocked()
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()
	if c.opts.OnSaved != nil {
		c.opts.OnSaved(doc)
	}
	if changed && c.opts.OnStatus != nil {
		c.opts.OnStatus(saving)
	}
}

func (c *Controller) emitFailureLocked(err error) {
	changed, saving := c.statusChangeLocked()
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()
	if c.opts.Notifier != nil {
		c.opts.Notifier.Notify(Notification{
			Level:   LevelError,
			Message: fmt.Sprintf("Failed to save changes: %v", err),
		})
	}
	if changed && c.opts.OnStatus != nil {
		c.opts.OnStatus(saving)
	}
}

func (c *Controller) statusChangeLocked() (bool, bool) {
	saving := c.pending || c.inFlight > 0
	if saving == c.saving {
		return false, saving
	}
	c.saving = saving
	return true, saving
}

// normalizeInto round-trips v through JSON so stored values are plain maps,
// slices, strings, float64s and bools that never alias caller memory.
func normalizeInto(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func cloneDocument(d Document) Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
