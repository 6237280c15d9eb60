package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// DefaultTimeout — время на доставку одного события.
const DefaultTimeout = 10 * time.Second

// Task — фоновая доставка одного события.
type Task struct {
	done chan struct{}
	err  error
}

// Done закрывается, когда доставка завершена.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err возвращает ошибку доставки. До закрытия Done — nil.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait блокируется до завершения доставки или отмены ctx.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Async отправляет события в фоне.
type Async struct {
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger

	// onResult вызывается после каждой доставки (метрики).
	onResult func(ev domain.Event, err error)

	wg sync.WaitGroup
}

// AsyncConfig — конфигурация Async.
type AsyncConfig struct {
	Notifier Notifier

	// Timeout — время на доставку одного события (default: DefaultTimeout).
	Timeout time.Duration

	Logger *slog.Logger

	// OnResult — необязательный callback с результатом доставки.
	OnResult func(ev domain.Event, err error)
}

// NewAsync создаёт Async. Без Notifier события пишутся в лог.
func NewAsync(cfg AsyncConfig) *Async {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = Log{Logger: logger}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Async{
		notifier: notifier,
		timeout:  timeout,
		logger:   logger,
		onResult: cfg.OnResult,
	}
}

// Go запускает доставку события. Не блокируется.
func (a *Async) Go(ev domain.Event) *Task {
	t := &Task{done: make(chan struct{})}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(t.done)

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		t.err = a.notifier.Notify(ctx, ev)
		if t.err != nil {
			a.logger.Warn("notification failed",
				"type", ev.Type,
				"session_id", ev.SessionID,
				"error", t.err,
			)
		}
		if a.onResult != nil {
			a.onResult(ev, t.err)
		}
	}()

	return t
}

// Wait ждёт завершения всех запущенных доставок (graceful shutdown).
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
