package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestFrame(t *testing.T) {
	raw, err := Frame(Event{Type: TypeIndexRebuilt, Data: map[string]int{"documents": 3}})
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	want := "event: index.rebuilt\ndata: {\"documents\":3}\n\n"
	if string(raw) != want {
		t.Errorf("frame = %q, want %q", raw, want)
	}
	if _, err := Frame(Event{Type: "bad", Data: make(chan int)}); err == nil {
		t.Error("unencodable data should fail")
	}
}

func TestPublishIndexRebuilt(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishIndexRebuilt(map[string]any{"ready": true, "documents": 2})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: index.rebuilt") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"documents":2`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestPublishNoteEvent_StaleThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "a.md")
	b.PublishNoteEvent("updated", "b.md")
	b.PublishNoteEvent("renamed", "c.md")

	time.Sleep(50 * time.Millisecond)
	stale, notes := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, TypeIndexStale) {
			stale++
		} else {
			notes++
		}
	}
	if notes != 2 {
		t.Errorf("note events = %d, want 2", notes)
	}
	if stale != 1 {
		t.Errorf("stale events = %d, want 1", stale)
	}
}

type flushRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.PublishNoteEvent("deleted", "x.md")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: note.deleted") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: i})
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: TypeNoteUpdated})
	b.PublishNoteEvent("updated", "x.md")
	b.PublishIndexRebuilt(nil)
	b.Close()
}
