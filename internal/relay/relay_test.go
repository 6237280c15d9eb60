package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/mq"
)

func newTestRelay(url string, attempts int) *Relay {
	return New(Config{
		URL:          url,
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	})
}

func testEvent() domain.Event {
	return domain.Event{
		Type:      domain.EventFormStarted,
		SessionID: uuid.New(),
		FormSlug:  "mutuo",
		At:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestDeliver_Success(t *testing.T) {
	var got domain.Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ev := testEvent()
	if err := newTestRelay(server.URL, 3).Deliver(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SessionID != ev.SessionID || got.Type != ev.Type {
		t.Errorf("unexpected delivered event: %+v", got)
	}
}

func TestDeliver_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestRelay(server.URL, 5).Deliver(context.Background(), testEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestDeliver_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	err := newTestRelay(server.URL, 5).Deliver(context.Background(), testEvent())
	if !errors.Is(err, mq.ErrReject) {
		t.Errorf("expected ErrReject, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestDeliver_Exhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := newTestRelay(server.URL, 3).Deliver(context.Background(), testEvent())
	if !errors.Is(err, mq.ErrReject) || !errors.Is(err, ErrWebhook) {
		t.Errorf("expected ErrReject wrapping ErrWebhook, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestDeliver_ContextCancelledRequeues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	r := New(Config{URL: server.URL, MaxAttempts: 5, InitialDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := r.Deliver(ctx, testEvent())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if errors.Is(err, mq.ErrReject) {
		t.Error("cancelled delivery must be requeued, not rejected")
	}
}

func TestDeliver_NoWebhook(t *testing.T) {
	if err := newTestRelay("", 3).Deliver(context.Background(), testEvent()); err != nil {
		t.Errorf("expected nil without webhook, got %v", err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 30 * time.Second},
		{20, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt, time.Second, 30*time.Second); got != tt.want {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}

func TestShouldRetryStatus(t *testing.T) {
	for code, want := range map[int]bool{
		400: false, 401: false, 404: false, 422: false,
		408: true, 429: true, 500: true, 503: true,
	} {
		if got := shouldRetryStatus(code); got != want {
			t.Errorf("status %d: expected %v, got %v", code, want, got)
		}
	}
}
