package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"patreonix/core/types"
	"patreonix/native/creator"
)

type captured struct {
	body      []byte
	event     string
	signature string
	delivery  string
}

func TestDispatcherSignsPayload(t *testing.T) {
	received := make(chan captured, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		received <- captured{
			body:      body,
			event:     r.Header.Get(HeaderEvent),
			signature: r.Header.Get(HeaderSignature),
			delivery:  r.Header.Get(HeaderDelivery),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fixed := time.Unix(1_700_000_000, 0)
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), withClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()

	dispatcher.Emit(creator.WrapEvent(&types.Event{
		Type:       creator.EventTypeContentCreated,
		Attributes: map[string]string{"content": "ptx1abc", "title": "Hello"},
	}))

	var got captured
	select {
	case got = <-received:
	case <-time.After(2 * time.Second):
		t.Fatalf("no delivery received")
	}
	if got.event != creator.EventTypeContentCreated {
		t.Fatalf("unexpected event header %q", got.event)
	}
	if got.signature[:7] != "sha256=" {
		t.Fatalf("unexpected signature prefix %s", got.signature)
	}
	if !Verify([]byte("secret"), got.body, got.signature) {
		t.Fatalf("signature does not verify")
	}
	if Verify([]byte("other"), got.body, got.signature) {
		t.Fatalf("signature verified with wrong secret")
	}
	var payload Payload
	if err := json.Unmarshal(got.body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.DeliveryID == "" || payload.DeliveryID != got.delivery {
		t.Fatalf("delivery id mismatch: %q vs %q", payload.DeliveryID, got.delivery)
	}
	if payload.Attributes["title"] != "Hello" || !payload.EmittedAt.Equal(fixed) {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestDispatcherRetries(t *testing.T) {
	attempts := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithRetryPolicy(5, time.Millisecond*10, time.Millisecond*20))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	dispatcher.Emit(creator.WrapEvent(&types.Event{Type: creator.EventTypeCreatorRegistered}))
	waitFor(func() bool { return atomic.LoadInt32(&attempts) >= 3 }, 2*time.Second)
	if atomic.LoadInt32(&attempts) < 3 {
		t.Fatalf("expected retries, got %d", atomic.LoadInt32(&attempts))
	}
}

func TestDispatcherEventFilter(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithEventFilter("content."))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()

	dispatcher.Emit(creator.WrapEvent(&types.Event{Type: creator.EventTypeCreatorRegistered}))
	dispatcher.Emit(creator.WrapEvent(&types.Event{Type: creator.EventTypeContentCommented}))
	waitFor(func() bool { return atomic.LoadInt32(&hits) >= 1 }, 2*time.Second)
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected exactly one delivery, got %d", got)
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithQueueSize(1))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer func() {
		close(release)
		dispatcher.Close()
	}()

	for i := 0; i < 10; i++ {
		dispatcher.Emit(creator.WrapEvent(&types.Event{Type: creator.EventTypeCreatorUpdated}))
	}
	if dispatcher.Dropped() == 0 {
		t.Fatalf("expected dropped deliveries")
	}
}

func TestDispatcherCloseDeliversQueuedEvents(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithQueueSize(8))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}

	for i := 0; i < 4; i++ {
		dispatcher.Emit(creator.WrapEvent(&types.Event{Type: creator.EventTypeContentCreated}))
	}
	dispatcher.Close()
	if got := atomic.LoadInt32(&hits); got != 4 {
		t.Fatalf("expected 4 deliveries before Close returned, got %d", got)
	}

	dispatcher.Emit(creator.WrapEvent(&types.Event{Type: creator.EventTypeContentCreated}))
	if dispatcher.Dropped() != 1 {
		t.Fatalf("expected emit after close to be dropped, got %d", dispatcher.Dropped())
	}
	dispatcher.Close()
}

func TestDispatcherShutdownHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithRetryPolicy(1, time.Millisecond, time.Millisecond))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	dispatcher.Emit(creator.WrapEvent(&types.Event{Type: creator.EventTypeContentCreated}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := dispatcher.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestNewDispatcherValidation(t *testing.T) {
	if _, err := NewDispatcher(" ", []byte("secret")); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := NewDispatcher("http://localhost", nil); err == nil {
		t.Fatalf("expected secret error")
	}
}

func TestNextBackoff(t *testing.T) {
	if got := nextBackoff(2*time.Second, 30*time.Second); got != 4*time.Second {
		t.Fatalf("unexpected backoff %s", got)
	}
	if got := nextBackoff(20*time.Second, 30*time.Second); got != 30*time.Second {
		t.Fatalf("expected cap, got %s", got)
	}
}

func waitFor(cond func() bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond * 10)
	}
}
