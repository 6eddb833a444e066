package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/content"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
)

// ──────────────────────────────────────────────────────────────────────────────
// fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeBackend struct {
	mu          sync.Mutex
	doc         *blocks.SiteDocument
	puts        []map[string]any
	library     []*content.SavedBlock
	libraryErr  error
	saveCalls   int
	prefs       map[string][]string
	prefsErr    error
	documentErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		doc: &blocks.SiteDocument{
			Pages: []blocks.Page{{Slug: "home", Blocks: []*blocks.Block{
				{BlockID: "a", Type: blocks.TypeText, Data: map[string]any{"content": "A"}},
				{BlockID: "b", Type: blocks.TypeText, Data: map[string]any{"content": "B"}},
				{BlockID: "c", Type: blocks.TypeLayout, Data: map[string]any{}, Children: []*blocks.Block{
					{BlockID: "d", Type: blocks.TypeImage, Data: map[string]any{"src": "d.png"}},
				}},
			}}},
			HeaderContent: []*blocks.Block{
				{BlockID: "h", Type: blocks.TypeHeader, Data: map[string]any{"logo": "Shop"}},
			},
			FooterContent: []*blocks.Block{},
			ThemeSettings: map[string]any{"palette": "default"},
		},
		prefs: map[string][]string{},
	}
}

func (f *fakeBackend) GetDocument(ctx context.Context, siteID string) (*blocks.SiteDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.documentErr != nil {
		return nil, f.documentErr
	}
	return f.doc.Clone(), nil
}

func (f *fakeBackend) PutDocument(ctx context.Context, siteID string, doc map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, doc)
	return doc, nil
}

func (f *fakeBackend) ListLibrary(ctx context.Context, siteID string) ([]*content.SavedBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.libraryErr != nil {
		return nil, f.libraryErr
	}
	return append([]*content.SavedBlock(nil), f.library...), nil
}

func (f *fakeBackend) SaveToLibrary(ctx context.Context, siteID, name string, b *blocks.Block) (*content.SavedBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	saved := &content.SavedBlock{ID: fmt.Sprintf("saved-%d", f.saveCalls), SiteID: siteID, Name: name, Block: b.Clone()}
	f.library = append(f.library, saved)
	return saved, nil
}

func (f *fakeBackend) GetPreferences(ctx context.Context, siteID, surface string) (*content.EditorPreferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prefsErr != nil {
		return nil, f.prefsErr
	}
	return &content.EditorPreferences{SiteID: siteID, Surface: surface, Collapsed: f.prefs[surface]}, nil
}

func (f *fakeBackend) PutPreferences(ctx context.Context, siteID, surface string, collapsed []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs[surface] = append([]string(nil), collapsed...)
	return nil
}

func (f *fakeBackend) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

// lastPageIDs returns the root block ids of the first page in the latest PUT.
func (f *fakeBackend) lastPageIDs(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.puts) == 0 {
		t.Fatal("no document was saved")
	}
	raw, err := json.Marshal(f.puts[len(f.puts)-1])
	if err != nil {
		t.Fatalf("marshal saved document: %v", err)
	}
	var doc blocks.SiteDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode saved document: %v", err)
	}
	return blockIDs(doc.Pages[0].Blocks)
}

type publishedEvent struct {
	siteID, sessionID, eventType string
	data                         any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	closed []string
}

func (p *fakePublisher) Publish(siteID, sessionID, eventType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{siteID, sessionID, eventType, data})
}

func (p *fakePublisher) CloseSession(siteID, sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, sessionID)
}

func (p *fakePublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────────────────────────────────────
// helpers
// ──────────────────────────────────────────────────────────────────────────────

func blockIDs(list []*blocks.Block) []string {
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = b.BlockID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newTestManager(t *testing.T, backend *fakeBackend, pub *fakePublisher) *Manager {
	t.Helper()
	m := NewManager(Config{Window: time.Hour, Timeout: time.Second, UndoDepth: 10},
		blocks.DefaultRegistry(), backend, pub, logging.NewDiscardLogger())
	t.Cleanup(func() { _ = m.CloseAll(context.Background()) })
	return m
}

func mountHome(t *testing.T) (*Session, *fakeBackend, *fakePublisher) {
	t.Helper()
	backend := newFakeBackend()
	pub := &fakePublisher{}
	m := newTestManager(t, backend, pub)
	sess, err := m.Mount(context.Background(), "site-1", Surface{Kind: content.SurfacePage, Slug: "home"})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return sess, backend, pub
}

func rootIDs(s *Session) []string {
	return blockIDs(s.View().Blocks)
}

// ──────────────────────────────────────────────────────────────────────────────
// Manager
// ──────────────────────────────────────────────────────────────────────────────

func TestMount_LoadsSurfaceAndPrunesPreferences(t *testing.T) {
	backend := newFakeBackend()
	backend.prefs["page:home"] = []string{"c", "gone"}
	m := newTestManager(t, backend, &fakePublisher{})

	sess, err := m.Mount(context.Background(), "site-1", Surface{Kind: content.SurfacePage, Slug: "home"})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if got := rootIDs(sess); !equalIDs(got, []string{"a", "b", "c"}) {
		t.Fatalf("root blocks = %v", got)
	}
	if got := sess.Collapsed(); !equalIDs(got, []string{"c"}) {
		t.Fatalf("collapsed = %v, want [c]", got)
	}
	if got, err := m.Get(sess.ID); err != nil || got != sess {
		t.Fatalf("Get(%s) = %v, %v", sess.ID, got, err)
	}
	if sess.IsSaving() {
		t.Fatal("fresh session should not be saving")
	}
}

func TestMount_Rejections(t *testing.T) {
	m := newTestManager(t, newFakeBackend(), &fakePublisher{})
	ctx := context.Background()

	if _, err := m.Mount(ctx, "site-1", Surface{Kind: "sidebar"}); !errors.Is(err, ErrInvalidSurface) {
		t.Errorf("unknown kind: err = %v", err)
	}
	if _, err := m.Mount(ctx, "site-1", Surface{Kind: content.SurfacePage}); !errors.Is(err, ErrInvalidSurface) {
		t.Errorf("page without slug: err = %v", err)
	}
	if _, err := m.Mount(ctx, "site-1", Surface{Kind: content.SurfacePage, Slug: "about"}); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("missing page: err = %v", err)
	}
	if m.Count() != 0 {
		t.Fatalf("failed mounts left %d sessions", m.Count())
	}
}

func TestMount_ToleratesMissingPreferencesAndLibrary(t *testing.T) {
	backend := newFakeBackend()
	backend.prefsErr = errors.New("boom")
	backend.libraryErr = errors.New("boom")
	m := newTestManager(t, backend, &fakePublisher{})

	sess, err := m.Mount(context.Background(), "site-1", Surface{Kind: content.SurfaceHeader})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if len(sess.Collapsed()) != 0 || len(sess.Library()) != 0 {
		t.Fatal("expected empty preferences and library")
	}
}

func TestMount_DocumentFailureIsFatal(t *testing.T) {
	backend := newFakeBackend()
	backend.documentErr = errors.New("unreachable")
	m := newTestManager(t, backend, &fakePublisher{})

	if _, err := m.Mount(context.Background(), "site-1", Surface{Kind: content.SurfaceFooter}); err == nil {
		t.Fatal("expected error when the document cannot be loaded")
	}
}

func TestUnmount_FlushesPendingEdit(t *testing.T) {
	backend := newFakeBackend()
	pub := &fakePublisher{}
	m := NewManager(Config{Window: time.Hour, Timeout: time.Second},
		blocks.DefaultRegistry(), backend, pub, logging.NewDiscardLogger())

	sess, err := m.Mount(context.Background(), "site-1", Surface{Kind: content.SurfacePage, Slug: "home"})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if ok, err := sess.MoveBlock(blocks.Path{0}, blocks.Path{1}); err != nil || !ok {
		t.Fatalf("MoveBlock = %v, %v", ok, err)
	}
	if backend.putCount() != 0 {
		t.Fatal("save should still be debounced")
	}

	if err := m.Unmount(context.Background(), sess.ID); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if got := backend.lastPageIDs(t); !equalIDs(got, []string{"b", "a", "c"}) {
		t.Fatalf("saved order = %v", got)
	}
	if _, err := m.Get(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get after unmount: err = %v", err)
	}
	if len(pub.closed) != 1 || pub.closed[0] != sess.ID {
		t.Fatalf("closed streams = %v", pub.closed)
	}
	counts := map[string]int{}
	for _, st := range m.Performance().Stats() {
		counts[st.Operation] = st.Count
	}
	if counts["editor:mount"] != 1 || counts["autosave:persist"] != 1 {
		t.Fatalf("tracked operations = %v", counts)
	}
	if err := m.Unmount(context.Background(), sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second Unmount: err = %v", err)
	}
}

func TestSavePreferences_StoresCollapsedSet(t *testing.T) {
	backend := newFakeBackend()
	m := newTestManager(t, backend, &fakePublisher{})
	sess, err := m.Mount(context.Background(), "site-1", Surface{Kind: content.SurfacePage, Slug: "home"})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	if collapsed, ok := sess.ToggleCollapse("c"); !ok || !collapsed {
		t.Fatalf("ToggleCollapse = %v, %v", collapsed, ok)
	}
	if err := m.SavePreferences(context.Background(), sess); err != nil {
		t.Fatalf("SavePreferences: %v", err)
	}
	if got := backend.prefs["page:home"]; !equalIDs(got, []string{"c"}) {
		t.Fatalf("stored preferences = %v", got)
	}
	if backend.putCount() != 0 {
		t.Fatal("collapse state must not touch the document")
	}
}

func TestAutosaveEventsReachPublisher(t *testing.T) {
	sess, backend, pub := mountHome(t)

	if ok, _ := sess.MoveBlock(blocks.Path{0}, blocks.Path{2}); !ok {
		t.Fatal("MoveBlock not applied")
	}
	if err := sess.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if backend.putCount() != 1 {
		t.Fatalf("puts = %d, want 1", backend.putCount())
	}
	if pub.count(messaging.EventSaved) != 1 {
		t.Fatalf("saved events = %d, want 1", pub.count(messaging.EventSaved))
	}
	if pub.count(messaging.EventStatus) < 2 {
		t.Fatalf("status events = %d, want a start and an end", pub.count(messaging.EventStatus))
	}
	if pub.count(messaging.EventTree) == 0 {
		t.Fatal("expected a tree event for the move")
	}
}
