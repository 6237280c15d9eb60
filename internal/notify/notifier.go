package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// Notifier — получатель событий анкеты.
type Notifier interface {
	Notify(ctx context.Context, ev domain.Event) error
}

// Func адаптирует функцию к Notifier.
type Func func(ctx context.Context, ev domain.Event) error

// Notify реализует Notifier.
func (f Func) Notify(ctx context.Context, ev domain.Event) error {
	return f(ctx, ev)
}

// Multi рассылает событие всем получателям и объединяет ошибки.
type Multi []Notifier

// Notify реализует Notifier.
func (m Multi) Notify(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log пишет события в лог (когда брокер не настроен).
type Log struct {
	Logger *slog.Logger
}

// Notify реализует Notifier.
func (l Log) Notify(ctx context.Context, ev domain.Event) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "form event",
		"type", ev.Type,
		"session_id", ev.SessionID,
		"form", ev.FormSlug,
	)
	return nil
}
