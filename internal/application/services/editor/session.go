// Package editor hosts headless block editing sessions: one block tree per
// surface, its UI state, and the autosave controller that persists it.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/application/services/autosave"
	"github.com/AtRiskMedia/kendr-go/internal/application/services/library"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/content"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/restclient"
	"github.com/samber/lo"
)

// Backend is the site document API a session reads from and saves to.
type Backend interface {
	GetDocument(ctx context.Context, siteID string) (*blocks.SiteDocument, error)
	PutDocument(ctx context.Context, siteID string, doc map[string]any) (map[string]any, error)
	ListLibrary(ctx context.Context, siteID string) ([]*content.SavedBlock, error)
	SaveToLibrary(ctx context.Context, siteID, name string, b *blocks.Block) (*content.SavedBlock, error)
	GetPreferences(ctx context.Context, siteID, surface string) (*content.EditorPreferences, error)
	PutPreferences(ctx context.Context, siteID, surface string, collapsed []string) error
}

// Publisher delivers session events to connected clients.
type Publisher interface {
	Publish(siteID, sessionID, eventType string, data any)
	CloseSession(siteID, sessionID string)
}

// Confirmer answers a destructive-action prompt.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Session is one mounted editing surface. All methods are safe for
// concurrent use; mutations are applied in call order.
type Session struct {
	ID      string
	SiteID  string
	Surface Surface

	mu         sync.Mutex
	doc        *blocks.SiteDocument
	tree       *blocks.Tree
	registry   *blocks.Registry
	selectedID string
	collapsed  map[string]bool
	library    []*content.SavedBlock
	drag       *dragState
	lastDrag   DragPhase
	history    *history
	saver      *autosave.Controller
	backend    Backend
	publisher  Publisher
	logger     *slog.Logger
	created    time.Time
}

// View is a read-only snapshot of a session for clients.
type View struct {
	ID           string          `json:"id"`
	SiteID       string          `json:"siteId"`
	Surface      Surface         `json:"surface"`
	Blocks       []*blocks.Block `json:"blocks"`
	SelectedPath *string         `json:"selectedPath"`
	SelectedID   string          `json:"selectedId,omitempty"`
	Collapsed    []string        `json:"collapsed"`
	Drag         DragStatus      `json:"drag"`
	IsSaving     bool            `json:"isSaving"`
	CanUndo      bool            `json:"canUndo"`
	CanRedo      bool            `json:"canRedo"`
	Created      time.Time       `json:"created"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		ID:        s.ID,
		SiteID:    s.SiteID,
		Surface:   s.Surface,
		Blocks:    blocks.CloneList(s.tree.Blocks()),
		Collapsed: s.collapsedLocked(),
		Drag:      s.dragStatusLocked(),
		IsSaving:  s.saver.IsSaving(),
		CanUndo:   s.history.canUndo(),
		CanRedo:   s.history.canRedo(),
		Created:   s.created,
	}
	if p, ok := s.selectedPathLocked(); ok {
		str := p.String()
		v.SelectedPath = &str
		v.SelectedID = s.selectedID
	}
	return v
}

// SelectedPath re-derives the selected block's path from its id.
func (s *Session) SelectedPath() (blocks.Path, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedPathLocked()
}

func (s *Session) selectedPathLocked() (blocks.Path, bool) {
	if s.selectedID == "" {
		return nil, false
	}
	return s.tree.PathOf(s.selectedID)
}

// Collapsed returns the collapsed block ids in stable order.
func (s *Session) Collapsed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collapsedLocked()
}

func (s *Session) collapsedLocked() []string {
	ids := lo.Keys(s.collapsed)
	slices.Sort(ids)
	return ids
}

// IsSaving reports the autosave status of the session.
func (s *Session) IsSaving() bool {
	return s.saver.IsSaving()
}

// MoveBlock relocates the block at src to dst.
func (s *Session) MoveBlock(src, dst blocks.Path) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag != nil {
		return false, ErrDragActive
	}
	if err := s.guardProtectedLocked(src); err != nil {
		return false, err
	}
	before := blocks.CloneList(s.tree.Blocks())
	if !s.tree.Move(src, dst) {
		return false, nil
	}
	s.commitLocked(before, "move")
	return true, nil
}

// AddBlock inserts a new block of typeName under parent at index (index < 0 appends).
func (s *Session) AddBlock(parent blocks.Path, typeName string, preset map[string]any, index int) (*blocks.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag != nil {
		return nil, ErrDragActive
	}
	if s.registry.IsProtected(typeName) {
		return nil, fmt.Errorf("%w: %s cannot be added", ErrProtectedBlock, typeName)
	}
	before := blocks.CloneList(s.tree.Blocks())
	b, ok := s.tree.Add(parent, typeName, preset, index)
	if !ok {
		return nil, nil
	}
	s.commitLocked(before, "add")
	return b.Clone(), nil
}

// DeleteBlock removes the block at p and its subtree once confirm agrees.
func (s *Session) DeleteBlock(p blocks.Path, confirm Confirmer) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag != nil {
		return false, ErrDragActive
	}
	target := s.tree.Resolve(p)
	if target == nil {
		s.logger.Warn("DeleteBlock ignored: path out of bounds", "path", p.String(), "sessionId", s.ID)
		return false, nil
	}
	if s.registry.IsProtected(target.Type) {
		return false, fmt.Errorf("%w: %s cannot be deleted", ErrProtectedBlock, target.Type)
	}
	prompt := fmt.Sprintf("Delete this %s block?", target.Type)
	if confirm == nil || !confirm.Confirm(prompt) {
		s.logger.Debug("DeleteBlock not confirmed", "path", p.String(), "sessionId", s.ID)
		return false, nil
	}

	before := blocks.CloneList(s.tree.Blocks())
	if _, ok := s.tree.Delete(p); !ok {
		return false, nil
	}
	s.pruneLocked()
	s.commitLocked(before, "delete")
	return true, nil
}

// UpdateBlockData merges a settings patch into the block at p.
func (s *Session) UpdateBlockData(p blocks.Path, patch map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := blocks.CloneList(s.tree.Blocks())
	if !s.tree.UpdateData(p, patch) {
		return false
	}
	s.commitLocked(before, "update")
	return true
}

// SelectBlock selects the block at p. The root path clears the selection.
func (s *Session) SelectBlock(p blocks.Path) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.IsRoot() {
		s.selectedID = ""
		return true
	}
	b := s.tree.Resolve(p)
	if b == nil {
		s.logger.Warn("SelectBlock ignored: path out of bounds", "path", p.String(), "sessionId", s.ID)
		return false
	}
	s.selectedID = b.BlockID
	return true
}

// ToggleCollapse flips the collapsed state of a block and reports the new state.
func (s *Session) ToggleCollapse(blockID string) (collapsed bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.tree.PathOf(blockID); !found {
		return false, false
	}
	if s.collapsed[blockID] {
		delete(s.collapsed, blockID)
		return false, true
	}
	s.collapsed[blockID] = true
	return true, true
}

func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag != nil {
		return false
	}
	prev, ok := s.history.stepBack(blocks.CloneList(s.tree.Blocks()))
	if !ok {
		return false
	}
	s.tree.Replace(blocks.CloneList(prev))
	s.pruneLocked()
	s.pushLocked("undo")
	return true
}

func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag != nil {
		return false
	}
	next, ok := s.history.stepForward(blocks.CloneList(s.tree.Blocks()))
	if !ok {
		return false
	}
	s.tree.Replace(blocks.CloneList(next))
	s.pruneLocked()
	s.pushLocked("redo")
	return true
}

// SetField forwards a non-block document field (e.g. theme_settings) to autosave.
func (s *Session) SetField(key string, value any) error {
	switch key {
	case blocks.FieldPages, blocks.FieldHeaderContent, blocks.FieldFooterContent:
		return fmt.Errorf("%w: %s", ErrReservedField, key)
	}
	s.saver.SetField(key, value)
	return nil
}

// Reload re-fetches the document and replaces the local state with it.
func (s *Session) Reload(ctx context.Context) error {
	doc, err := s.backend.GetDocument(ctx, s.SiteID)
	if err != nil {
		s.notify(autosave.LevelError, "Failed to reload document")
		return fmt.Errorf("failed to reload document: %w", err)
	}
	root, err := s.Surface.blocksOf(doc)
	if err != nil {
		return err
	}
	m, err := doc.ToMap()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag = nil
	s.doc = doc
	s.tree.Replace(blocks.CloneList(root))
	s.history.reset()
	s.pruneLocked()
	s.saver.ReplaceAll(m)
	s.publishTreeLocked()
	return nil
}

// SaveToLibrary stores the block at p under name. The name is validated
// against the known library before any request is made.
func (s *Session) SaveToLibrary(ctx context.Context, p blocks.Path, name string) (*content.SavedBlock, error) {
	s.mu.Lock()
	b := s.tree.Resolve(p)
	if b == nil {
		s.mu.Unlock()
		return nil, nil
	}
	if s.registry.IsProtected(b.Type) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s cannot be saved to the library", ErrProtectedBlock, b.Type)
	}
	trimmed, err := library.ValidateName(name, s.library)
	if err != nil {
		s.mu.Unlock()
		s.notify(autosave.LevelError, err.Error())
		return nil, err
	}
	snapshot := b.Clone()
	s.mu.Unlock()

	saved, err := s.backend.SaveToLibrary(ctx, s.SiteID, trimmed, snapshot)
	if err != nil {
		if restclient.IsStatus(err, http.StatusConflict) {
			err = fmt.Errorf("%w: %s", library.ErrDuplicateName, trimmed)
		}
		s.notify(autosave.LevelError, "Failed to save block to library")
		return nil, err
	}

	s.mu.Lock()
	s.library = append(s.library, saved)
	s.mu.Unlock()
	s.notify(autosave.LevelSuccess, fmt.Sprintf("Saved %q to library", trimmed))
	return saved, nil
}

// Library returns the saved blocks known to the session.
func (s *Session) Library() []*content.SavedBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.library)
}

// InsertFromLibrary places a fresh instance of a saved block under parent.
func (s *Session) InsertFromLibrary(ctx context.Context, savedID string, parent blocks.Path, index int) (*blocks.Block, error) {
	s.mu.Lock()
	saved, found := lo.Find(s.library, func(item *content.SavedBlock) bool { return item.ID == savedID })
	s.mu.Unlock()

	if !found {
		list, err := s.backend.ListLibrary(ctx, s.SiteID)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh library: %w", err)
		}
		s.mu.Lock()
		s.library = list
		s.mu.Unlock()
		if saved, found = lo.Find(list, func(item *content.SavedBlock) bool { return item.ID == savedID }); !found {
			return nil, fmt.Errorf("%w: %s", ErrSavedBlockGone, savedID)
		}
	}
	if saved.Block == nil {
		return nil, fmt.Errorf("%w: %s has no content", ErrSavedBlockGone, savedID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag != nil {
		return nil, ErrDragActive
	}
	if s.registry.IsProtected(saved.Block.Type) {
		return nil, fmt.Errorf("%w: %s cannot be inserted", ErrProtectedBlock, saved.Block.Type)
	}
	instance := library.Instantiate(saved)
	before := blocks.CloneList(s.tree.Blocks())
	if !s.tree.Insert(parent, instance, index) {
		return nil, nil
	}
	s.commitLocked(before, "insert-library")
	return instance.Clone(), nil
}

// Close flushes pending edits and ends the session's event streams.
func (s *Session) Close(ctx context.Context) error {
	err := s.saver.Close(ctx)
	if s.publisher != nil {
		s.publisher.CloseSession(s.SiteID, s.ID)
	}
	return err
}

// Flush persists pending edits immediately.
func (s *Session) Flush(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

func (s *Session) guardProtectedLocked(p blocks.Path) error {
	if b := s.tree.Resolve(p); b != nil && s.registry.IsProtected(b.Type) {
		return fmt.Errorf("%w: %s cannot be moved", ErrProtectedBlock, b.Type)
	}
	return nil
}

// commitLocked records an undo step and pushes the tree to autosave.
func (s *Session) commitLocked(before []*blocks.Block, op string) {
	s.history.record(before)
	s.pushLocked(op)
}

func (s *Session) pushLocked(op string) {
	root := s.tree.Blocks()
	switch s.Surface.Field() {
	case blocks.FieldPages:
		idx := s.doc.PageBySlug(s.Surface.Slug)
		if idx < 0 {
			s.logger.Error("Edited page vanished from document", "slug", s.Surface.Slug, "sessionId", s.ID)
			return
		}
		s.doc.Pages[idx].Blocks = blocks.CloneList(root)
		s.saver.SetField(blocks.FieldPages, s.doc.Pages)
	case blocks.FieldHeaderContent:
		s.doc.HeaderContent = blocks.CloneList(root)
		s.saver.SetField(blocks.FieldHeaderContent, s.doc.HeaderContent)
	case blocks.FieldFooterContent:
		s.doc.FooterContent = blocks.CloneList(root)
		s.saver.SetField(blocks.FieldFooterContent, s.doc.FooterContent)
	}
	s.logger.Debug("Committed tree change", "op", op, "sessionId", s.ID, "blocks", len(root))
	s.publishTreeLocked()
}

func (s *Session) publishTreeLocked() {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(s.SiteID, s.ID, messaging.EventTree, map[string]any{
		"blocks":  s.tree.Blocks(),
		"canUndo": s.history.canUndo(),
		"canRedo": s.history.canRedo(),
	})
}

// pruneLocked drops selection and collapse state of blocks no longer in the tree.
func (s *Session) pruneLocked() {
	live := lo.SliceToMap(s.tree.IDs(), func(id string) (string, bool) { return id, true })
	if s.selectedID != "" && !live[s.selectedID] {
		s.selectedID = ""
	}
	for id := range s.collapsed {
		if !live[id] {
			delete(s.collapsed, id)
		}
	}
}

func (s *Session) notify(level autosave.Level, message string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(s.SiteID, s.ID, messaging.EventToast, autosave.Notification{Level: level, Message: message})
}

// sessionNotifier routes autosave notifications to the session stream.
type sessionNotifier struct {
	publisher Publisher
	siteID    string
	sessionID string
	logger    *slog.Logger
}

func (n sessionNotifier) Notify(note autosave.Notification) {
	if note.Level == autosave.LevelError {
		n.logger.Warn("Notifying user of failure", "message", note.Message, "sessionId", n.sessionID)
	}
	if n.publisher != nil {
		n.publisher.Publish(n.siteID, n.sessionID, messaging.EventToast, note)
	}
}

// IsNotFound reports whether err means the session, page or saved block is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrPageNotFound) || errors.Is(err, ErrSavedBlockGone)
}
