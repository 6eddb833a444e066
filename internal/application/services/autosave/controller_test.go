package autosave

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

const testWindow = 40 * time.Millisecond

type fakePersister struct {
	mu    sync.Mutex
	calls []Document
	err   error
	// gate, when set, blocks the first call until closed.
	gate    chan struct{}
	entered chan struct{}
	// failFirst makes only the first call fail.
	failFirst bool
}

func (f *fakePersister) Persist(ctx context.Context, doc Document) (Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, doc)
	n := len(f.calls)
	err := f.err
	gate := f.gate
	entered := f.entered
	f.mu.Unlock()

	if n == 1 && gate != nil {
		if entered != nil {
			close(entered)
		}
		<-gate
	}
	if n == 1 && f.failFirst {
		return nil, errors.New("first save rejected")
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *fakePersister) Calls() []Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Document(nil), f.calls...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) Items() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

type statusLog struct {
	mu     sync.Mutex
	states []bool
}

func (s *statusLog) record(saving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, saving)
}

func (s *statusLog) States() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.states...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newController(t *testing.T, p Persister, opts Options, seed Document) *Controller {
	t.Helper()
	if opts.Window == 0 {
		opts.Window = testWindow
	}
	c, err := New(p, opts, seed)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c
}

func TestSetField_CoalescesIntoOnePut(t *testing.T) {
	p := &fakePersister{}
	c := newController(t, p, Options{}, Document{"title": "start", "body": "x"})

	c.SetField("title", "A")
	time.Sleep(testWindow / 4)
	c.SetField("title", "B")
	c.SetField("body", "y")

	waitFor(t, "save to settle", func() bool { return len(p.Calls()) == 1 && !c.IsSaving() })
	time.Sleep(2 * testWindow)

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("PUT count = %d, want 1", len(calls))
	}
	want := Document{"title": "B", "body": "y"}
	if !reflect.DeepEqual(calls[0], want) {
		t.Fatalf("PUT body = %v, want %v", calls[0], want)
	}
	if !reflect.DeepEqual(c.LastSaved(), want) {
		t.Fatalf("LastSaved = %v, want %v", c.LastSaved(), want)
	}
}

func TestSetField_EqualToSavedSkipsSave(t *testing.T) {
	p := &fakePersister{}
	c := newController(t, p, Options{}, Document{"title": "A", "count": 3})

	c.SetField("title", "A")
	c.SetField("count", 3) // int vs float64 after normalisation

	if c.IsSaving() {
		t.Fatal("IsSaving should stay false for a no-op edit")
	}
	time.Sleep(3 * testWindow)
	if n := len(p.Calls()); n != 0 {
		t.Fatalf("PUT count = %d, want 0", n)
	}
}

func TestSetField_RevertWithinWindowCancelsSave(t *testing.T) {
	p := &fakePersister{}
	c := newController(t, p, Options{}, Document{"title": "A"})

	c.SetField("title", "B")
	c.SetField("title", "A")

	time.Sleep(3 * testWindow)
	if n := len(p.Calls()); n != 0 {
		t.Fatalf("PUT count = %d, want 0", n)
	}
	if c.IsSaving() {
		t.Fatal("IsSaving should be false")
	}
}

func TestReplaceAll_AlwaysSaves(t *testing.T) {
	p := &fakePersister{}
	seed := Document{"title": "A"}
	c := newController(t, p, Options{}, seed)

	c.ReplaceAll(Document{"title": "A"})

	waitFor(t, "forced save", func() bool { return len(p.Calls()) == 1 && !c.IsSaving() })
}

func TestFailure_KeepsEditAndNotifiesOnce(t *testing.T) {
	p := &fakePersister{err: errors.New("network down")}
	n := &recordingNotifier{}
	s := &statusLog{}
	seed := Document{"title": "A"}
	c := newController(t, p, Options{Notifier: n, OnStatus: s.record}, seed)

	c.SetField("title", "B")
	if !c.IsSaving() {
		t.Fatal("IsSaving should be true once a change is queued")
	}

	waitFor(t, "failed save to settle", func() bool { return len(p.Calls()) == 1 && !c.IsSaving() })
	time.Sleep(2 * testWindow)

	if got := c.LastSaved(); !reflect.DeepEqual(got, seed) {
		t.Fatalf("LastSaved = %v, want unchanged %v", got, seed)
	}
	if got := c.Data()["title"]; got != "B" {
		t.Fatalf("Data title = %v, want B (no rollback)", got)
	}
	items := n.Items()
	if len(items) != 1 || items[0].Level != LevelError {
		t.Fatalf("notifications = %+v, want one error", items)
	}
	if len(p.Calls()) != 1 {
		t.Fatalf("PUT count = %d, want 1 (no retry)", len(p.Calls()))
	}
	if got := s.States(); !reflect.DeepEqual(got, []bool{true, false}) {
		t.Fatalf("status transitions = %v, want [true false]", got)
	}
}

func TestSuccess_InvokesOnSavedAndSettlesOnce(t *testing.T) {
	p := &fakePersister{}
	s := &statusLog{}
	var mu sync.Mutex
	var saved []Document
	c := newController(t, p, Options{
		OnStatus: s.record,
		OnSaved: func(d Document) {
			mu.Lock()
			defer mu.Unlock()
			saved = append(saved, d)
		},
	}, Document{})

	for _, v := range []string{"a", "b", "c"} {
		c.SetField("title", v)
	}
	waitFor(t, "save", func() bool { return !c.IsSaving() && len(p.Calls()) == 1 })

	mu.Lock()
	defer mu.Unlock()
	if len(saved) != 1 || saved[0]["title"] != "c" {
		t.Fatalf("OnSaved calls = %v", saved)
	}
	if got := s.States(); !reflect.DeepEqual(got, []bool{true, false}) {
		t.Fatalf("status transitions = %v, want [true false]", got)
	}
}

func TestSlowEarlierResponseDoesNotClobberLaterSave(t *testing.T) {
	p := &fakePersister{gate: make(chan struct{}), entered: make(chan struct{})}
	c := newController(t, p, Options{}, Document{"title": "start"})

	c.SetField("title", "first")
	select {
	case <-p.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first save never started")
	}

	c.SetField("title", "second")
	waitFor(t, "second save", func() bool { return len(p.Calls()) == 2 })
	waitFor(t, "second save applied", func() bool { return c.LastSaved()["title"] == "second" })

	close(p.gate)
	waitFor(t, "settle", func() bool { return !c.IsSaving() })

	if got := c.LastSaved()["title"]; got != "second" {
		t.Fatalf("LastSaved title = %v, want second", got)
	}
}

func TestRevertDuringInFlightSaveIsPersisted(t *testing.T) {
	p := &fakePersister{gate: make(chan struct{}), entered: make(chan struct{})}
	c := newController(t, p, Options{}, Document{"title": "A"})

	c.SetField("title", "B")
	select {
	case <-p.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first save never started")
	}

	// Back to the last saved value while B is still on the wire.
	c.SetField("title", "A")
	if !c.IsSaving() {
		t.Fatal("reverting under an in-flight save must queue a save")
	}
	waitFor(t, "revert save", func() bool { return len(p.Calls()) == 2 })

	close(p.gate)
	waitFor(t, "settle", func() bool { return !c.IsSaving() })

	calls := p.Calls()
	if got := calls[len(calls)-1]["title"]; got != "A" {
		t.Fatalf("last PUT title = %v, want A", got)
	}
	if got := c.LastSaved()["title"]; got != "A" {
		t.Fatalf("LastSaved title = %v, want A (data = %v)", got, c.Data())
	}
}

func TestStaleFailureAfterNewerSuccessIsNotNotified(t *testing.T) {
	p := &fakePersister{gate: make(chan struct{}), entered: make(chan struct{}), failFirst: true}
	n := &recordingNotifier{}
	c := newController(t, p, Options{Notifier: n}, Document{"title": "start"})

	c.SetField("title", "first")
	select {
	case <-p.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first save never started")
	}
	c.SetField("title", "second")
	waitFor(t, "second save applied", func() bool { return c.LastSaved()["title"] == "second" })

	close(p.gate)
	waitFor(t, "settle", func() bool { return !c.IsSaving() })

	if items := n.Items(); len(items) != 0 {
		t.Fatalf("notifications = %+v, want none", items)
	}
	if got := c.LastSaved()["title"]; got != "second" {
		t.Fatalf("LastSaved title = %v, want second", got)
	}
}

func TestFlushAndClose(t *testing.T) {
	p := &fakePersister{}
	c, err := New(p, Options{Window: time.Hour}, Document{"title": "A"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.SetField("title", "B")
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(p.Calls()) != 1 || c.IsSaving() {
		t.Fatalf("Flush should persist synchronously, calls=%d", len(p.Calls()))
	}

	c.SetField("title", "C")
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if calls := p.Calls(); len(calls) != 2 || calls[1]["title"] != "C" {
		t.Fatalf("Close should flush the pending change, calls=%v", calls)
	}

	c.SetField("title", "D")
	if c.IsSaving() || len(p.Calls()) != 2 {
		t.Fatal("edits after Close must be ignored")
	}
}

func TestSetField_NormalisesAndDoesNotAlias(t *testing.T) {
	p := &fakePersister{}
	c, err := New(p, Options{Window: time.Hour}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close(context.Background())

	theme := map[string]any{"palette": "dark"}
	c.SetField("theme_settings", theme)
	theme["palette"] = "light"

	got := c.Data()["theme_settings"].(map[string]any)["palette"]
	if got != "dark" {
		t.Fatalf("stored value aliased caller map: %v", got)
	}

	c.SetField("bad", make(chan int))
	if _, has := c.Data()["bad"]; has {
		t.Fatal("unencodable value should be ignored")
	}
}

func TestNew_RequiresPersister(t *testing.T) {
	if _, err := New(nil, Options{}, nil); err == nil {
		t.Fatal("expected error for nil persister")
	}
}
