package janitor

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakePurger struct {
	before time.Time
	n      int64
	err    error
}

func (p *fakePurger) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	p.before = before
	return p.n, p.err
}

type fakeEvicter struct {
	before time.Time
	calls  int
}

func (e *fakeEvicter) EvictIdle(before time.Time) int {
	e.before = before
	e.calls++
	return 2
}

type fakeLocker struct{ ok bool }

func (l fakeLocker) TryLock(context.Context) (bool, error) { return l.ok, nil }

func newTestJanitor(t *testing.T, cfg Config) *Janitor {
	t.Helper()
	cfg.Now = func() time.Time { return testNow }
	j, err := New(cfg)
	if err != nil {
		t.Fatalf("new janitor: %v", err)
	}
	return j
}

func TestNew_InvalidSpec(t *testing.T) {
	if _, err := New(Config{Spec: "every day"}); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestNextRun(t *testing.T) {
	j := newTestJanitor(t, Config{})

	want := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	if got := j.NextRun(testNow); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTick(t *testing.T) {
	purger := &fakePurger{n: 5}
	evicter := &fakeEvicter{}
	j := newTestJanitor(t, Config{Resumes: purger, Sessions: evicter, IdleAfter: time.Hour})

	if err := j.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !purger.before.Equal(testNow) {
		t.Errorf("expected purge before %v, got %v", testNow, purger.before)
	}
	if want := testNow.Add(-time.Hour); !evicter.before.Equal(want) {
		t.Errorf("expected eviction before %v, got %v", want, evicter.before)
	}
}

func TestTick_PurgeErrorStillEvicts(t *testing.T) {
	purger := &fakePurger{err: errors.New("db down")}
	evicter := &fakeEvicter{}
	j := newTestJanitor(t, Config{Resumes: purger, Sessions: evicter})

	if err := j.Tick(context.Background()); err == nil {
		t.Error("expected purge error")
	}
	if evicter.calls != 1 {
		t.Errorf("sessions should still be evicted, got %d calls", evicter.calls)
	}
}

func TestTick_NotLeader(t *testing.T) {
	purger := &fakePurger{}
	evicter := &fakeEvicter{}
	j := newTestJanitor(t, Config{Resumes: purger, Sessions: evicter, Locker: fakeLocker{ok: false}})

	if err := j.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evicter.calls != 0 || !purger.before.IsZero() {
		t.Error("non-leader must not clean up")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	j := newTestJanitor(t, Config{Spec: "* * * * *"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
