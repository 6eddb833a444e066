package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/application/services/autosave"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/security"
)

// Config tunes the sessions a Manager mounts.
type Config struct {
	Window    time.Duration
	Timeout   time.Duration
	UndoDepth int
}

// Manager owns the mounted editor sessions.
type Manager struct {
	cfg       Config
	registry  *blocks.Registry
	backend   Backend
	publisher Publisher
	logger    *logging.ChanneledLogger
	tracker   *performance.Tracker

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg Config, registry *blocks.Registry, backend Backend, publisher Publisher, logger *logging.ChanneledLogger) *Manager {
	return &Manager{
		cfg:       cfg,
		registry:  registry,
		backend:   backend,
		publisher: publisher,
		logger:    logger,
		tracker:   performance.NewTracker(performance.DefaultTrackerConfig(), logger),
		sessions:  make(map[string]*Session),
	}
}

// Performance exposes the timings of mounts and autosave writes.
func (m *Manager) Performance() *performance.Tracker {
	return m.tracker
}

// Mount fetches the site document and opens a session on one surface.
// Preferences and the library are best effort; the document is not.
func (m *Manager) Mount(ctx context.Context, siteID string, surface Surface) (_ *Session, err error) {
	start := time.Now()
	marker := m.tracker.Start("editor:mount", siteID, "")
	defer func() {
		marker.SetError(err)
		marker.Complete()
	}()
	if err := surface.Validate(); err != nil {
		return nil, err
	}

	doc, err := m.backend.GetDocument(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document for site %s: %w", siteID, err)
	}
	root, err := surface.blocksOf(doc)
	if err != nil {
		return nil, err
	}
	seed, err := doc.ToMap()
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	id := security.GenerateSessionID()
	log := m.logger.WithSession(logging.ChannelEditor, siteID, id)

	collapsed := make(map[string]bool)
	if prefs, err := m.backend.GetPreferences(ctx, siteID, surface.Key()); err != nil {
		log.Warn("Failed to load editor preferences", "surface", surface.Key(), "error", err.Error())
	} else if prefs != nil {
		for _, blockID := range prefs.Collapsed {
			collapsed[blockID] = true
		}
	}

	library, err := m.backend.ListLibrary(ctx, siteID)
	if err != nil {
		log.Warn("Failed to load block library", "error", err.Error())
		library = nil
	}

	sess := &Session{
		ID:        id,
		SiteID:    siteID,
		Surface:   surface,
		doc:       doc,
		tree:      blocks.NewTree(blocks.CloneList(root), m.registry, log),
		registry:  m.registry,
		collapsed: collapsed,
		library:   library,
		history:   newHistory(m.cfg.UndoDepth),
		backend:   m.backend,
		publisher: m.publisher,
		logger:    log,
		created:   time.Now().UTC(),
	}
	sess.pruneLocked()

	marker.SessionID = id
	persist := autosave.PersisterFunc(func(ctx context.Context, data autosave.Document) (autosave.Document, error) {
		write := m.tracker.Start("autosave:persist", siteID, id)
		defer write.Complete()
		saved, err := m.backend.PutDocument(ctx, siteID, data)
		if err != nil {
			write.SetError(err)
			return nil, err
		}
		return autosave.Document(saved), nil
	})
	saver, err := autosave.New(persist, autosave.Options{
		Window:  m.cfg.Window,
		Timeout: m.cfg.Timeout,
		OnSaved: func(saved autosave.Document) {
			m.publish(siteID, id, messaging.EventSaved, map[string]any{"savedAt": time.Now().UTC()})
		},
		OnStatus: func(saving bool) {
			m.publish(siteID, id, messaging.EventStatus, map[string]any{"isSaving": saving})
		},
		Notifier: sessionNotifier{publisher: m.publisher, siteID: siteID, sessionID: id, logger: log},
		Logger:   m.logger.WithSession(logging.ChannelAutosave, siteID, id),
	}, seed)
	if err != nil {
		return nil, err
	}
	sess.saver = saver

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	log.Info("Editor session mounted", "surface", surface.Key(), "blocks", len(root), "duration", time.Since(start))
	return sess, nil
}

func (m *Manager) publish(siteID, sessionID, eventType string, data any) {
	if m.publisher != nil {
		m.publisher.Publish(siteID, sessionID, eventType, data)
	}
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Count returns the number of mounted sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Unmount flushes and closes a session.
func (m *Manager) Unmount(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	err := sess.Close(ctx)
	if err != nil {
		sess.logger.Error("Final save failed on unmount", "error", err.Error())
	} else {
		sess.logger.Info("Editor session unmounted")
	}
	return err
}

// CloseAll unmounts every session, used on shutdown.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.Unmount(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SavePreferences persists the session's collapsed set for its surface.
func (m *Manager) SavePreferences(ctx context.Context, sess *Session) error {
	if err := m.backend.PutPreferences(ctx, sess.SiteID, sess.Surface.Key(), sess.Collapsed()); err != nil {
		sess.logger.Warn("Failed to save editor preferences", "error", err.Error())
		return err
	}
	return nil
}
