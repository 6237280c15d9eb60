package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

func testEvent(t domain.EventType) domain.Event {
	return domain.Event{Type: t, SessionID: uuid.New(), FormSlug: "mutuo", At: time.Now()}
}

func TestAsync_Delivers(t *testing.T) {
	var (
		mu   sync.Mutex
		got  []domain.EventType
		seen []error
	)
	a := NewAsync(AsyncConfig{
		Notifier: Func(func(_ context.Context, ev domain.Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, ev.Type)
			return nil
		}),
		OnResult: func(_ domain.Event, err error) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, err)
		},
	})

	task := a.Go(testEvent(domain.EventFormAccessed))
	if err := task.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != domain.EventFormAccessed {
		t.Errorf("delivered = %v", got)
	}
	if len(seen) != 1 || seen[0] != nil {
		t.Errorf("results = %v", seen)
	}
}

func TestAsync_FailureIsObservable(t *testing.T) {
	boom := errors.New("broker down")
	a := NewAsync(AsyncConfig{
		Notifier: Func(func(context.Context, domain.Event) error { return boom }),
	})

	task := a.Go(testEvent(domain.EventFormStarted))
	<-task.Done()

	if !errors.Is(task.Err(), boom) {
		t.Errorf("Err() = %v, want %v", task.Err(), boom)
	}
}

func TestTask_ErrBeforeDone(t *testing.T) {
	release := make(chan struct{})
	a := NewAsync(AsyncConfig{
		Notifier: Func(func(context.Context, domain.Event) error {
			<-release
			return errors.New("late")
		}),
	})

	task := a.Go(testEvent(domain.EventFormCompleted))
	if task.Err() != nil {
		t.Error("Err() should be nil while delivery is running")
	}

	close(release)
	if err := a.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if task.Err() == nil {
		t.Error("Err() should report the failure after completion")
	}
}

func TestAsync_WaitRespectsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	a := NewAsync(AsyncConfig{
		Notifier: Func(func(context.Context, domain.Event) error {
			<-release
			return nil
		}),
	})
	a.Go(testEvent(domain.EventFormAccessed))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := a.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
}

func TestMulti_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	m := Multi{
		Func(func(context.Context, domain.Event) error { calls++; return boom }),
		Func(func(context.Context, domain.Event) error { calls++; return nil }),
	}

	err := m.Notify(context.Background(), testEvent(domain.EventFormAccessed))
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
