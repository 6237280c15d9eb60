package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/mq"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/telemetry"
)

// Значения по умолчанию.
const (
	DefaultMaxAttempts  = 5
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultTimeout      = 10 * time.Second
)

// ErrWebhook — webhook ответил ошибкой.
var ErrWebhook = errors.New("webhook delivery failed")

// Relay пересылает события анкеты на webhook.
type Relay struct {
	url          string
	client       *http.Client
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	metrics      *telemetry.Metrics
	logger       *slog.Logger
}

// Config — конфигурация Relay.
type Config struct {
	// URL — адрес webhook (WEBHOOK_URL). Пустой — события только логируются.
	URL string

	// MaxAttempts — число попыток доставки (default: 5).
	MaxAttempts int

	// InitialDelay / MaxDelay — границы exponential backoff (default: 1s / 30s).
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Client — HTTP-клиент (default: таймаут 10s).
	Client *http.Client

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// New создаёт Relay.
func New(cfg Config) *Relay {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	initial := cfg.InitialDelay
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		url:          cfg.URL,
		client:       client,
		maxAttempts:  attempts,
		initialDelay: initial,
		maxDelay:     maxDelay,
		metrics:      cfg.Metrics,
		logger:       logger.With("component", "relay"),
	}
}

// Deliver отправляет событие с retry. Подходит как mq.EventHandler.
//
// Отказ webhook (4xx кроме 408/429) и исчерпанные попытки — mq.ErrReject (DLQ).
// Отмена контекста — сообщение возвращается в очередь.
func (r *Relay) Deliver(ctx context.Context, ev domain.Event) error {
	logger := telemetry.WithSessionID(r.logger, ev.SessionID.String())

	if r.url == "" {
		logger.Info("event received (no webhook configured)", "type", ev.Type)
		r.metrics.Webhook("skipped")
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: marshal event: %v", mq.ErrReject, err)
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		retry, err := r.post(ctx, body)
		if err == nil {
			r.metrics.Webhook("delivered")
			logger.Debug("event delivered", "type", ev.Type, "attempt", attempt)
			return nil
		}
		lastErr = err

		if !retry {
			r.metrics.Webhook("rejected")
			logger.Warn("webhook rejected event", "type", ev.Type, "error", err)
			return fmt.Errorf("%w: %v", mq.ErrReject, err)
		}
		if attempt == r.maxAttempts {
			break
		}

		delay := calculateBackoff(attempt, r.initialDelay, r.maxDelay)
		logger.Debug("retrying webhook",
			"type", ev.Type,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.metrics.Webhook("exhausted")
	logger.Error("webhook delivery exhausted",
		"type", ev.Type,
		"attempts", r.maxAttempts,
		"error", lastErr,
	)
	return fmt.Errorf("%w: %v", mq.ErrReject, lastErr)
}

// post выполняет один запрос. retry=false — повторять бессмысленно.
func (r *Relay) post(ctx context.Context, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%w: create request: %v", ErrWebhook, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("%w: %v", ErrWebhook, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 300 {
		return false, nil
	}

	err = fmt.Errorf("%w: HTTP %d: %s", ErrWebhook, resp.StatusCode, truncate(string(respBody), 200))
	return shouldRetryStatus(resp.StatusCode), err
}

// shouldRetryStatus: 5xx, 408 и 429 повторяются, остальные 4xx — нет.
func shouldRetryStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

// calculateBackoff вычисляет задержку перед retry.
// delay = initial * 2^(attempt-1), не больше maxDelay.
func calculateBackoff(attempt int, initial, maxDelay time.Duration) time.Duration {
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
