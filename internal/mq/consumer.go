package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// ErrReject — обработчик отказался от события окончательно: сообщение уходит в DLQ.
var ErrReject = errors.New("message rejected")

// ErrBadMessage — сообщение не является событием анкеты.
var ErrBadMessage = errors.New("bad event message")

// resubscribeDelay — пауза перед повторной подпиской, если соединение живо,
// но Consume не удался (например, очередь ещё не объявлена).
const resubscribeDelay = 5 * time.Second

// EventHandler обрабатывает событие анкеты.
//
// nil — ack. Ошибка, обёрнутая в ErrReject, — сообщение уходит в DLQ,
// любая другая — возвращается в очередь.
type EventHandler func(ctx context.Context, ev domain.Event) error

// verdict — чем закончилась обработка доставки.
type verdict int

const (
	verdictAck verdict = iota
	verdictRequeue
	verdictReject
)

func (v verdict) String() string {
	switch v {
	case verdictAck:
		return "ack"
	case verdictRequeue:
		return "requeue"
	default:
		return "reject"
	}
}

// verdictFor переводит ошибку обработчика в решение по сообщению.
func verdictFor(err error) verdict {
	switch {
	case err == nil:
		return verdictAck
	case errors.Is(err, ErrReject), errors.Is(err, ErrBadMessage):
		return verdictReject
	default:
		return verdictRequeue
	}
}

// DecodeEvent разбирает тело сообщения в событие анкеты.
//
// Тип и время события берутся из конверта, если в событии их нет.
// Событие без типа или сессии — ErrBadMessage.
func DecodeEvent(body []byte) (domain.Event, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	ev := msg.Event
	if ev.Type == "" {
		ev.Type = domain.EventType(msg.Type)
	}
	if ev.At.IsZero() {
		ev.At = msg.Timestamp
	}

	if ev.Type == "" {
		return domain.Event{}, fmt.Errorf("%w: message %s has no event type", ErrBadMessage, msg.ID)
	}
	if ev.SessionID == uuid.Nil {
		return domain.Event{}, fmt.Errorf("%w: message %s has no session id", ErrBadMessage, msg.ID)
	}
	return ev, nil
}

// Consumer читает события анкеты из очереди и передаёт их EventHandler.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  EventHandler
	prefetch int
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — очередь событий (default: form.events).
	Queue Queue

	// Handler — обработчик событий (обязателен).
	Handler EventHandler

	// Prefetch — число неподтверждённых сообщений на consumer (default: 1).
	Prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = QueueFormEvents
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("component", "consumer", "queue", queue),
		queue:    queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Run читает очередь до отмены ctx. После разрыва соединения подписка
// восстанавливается. Отмена ctx — nil.
func (c *Consumer) Run(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("mq: consumer for %s has no handler", c.queue)
	}

	for {
		ready := c.conn.Ready()

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started")
			if !c.drain(ctx, deliveries) {
				return nil
			}
			c.logger.Warn("subscription lost, waiting for reconnect")
		}

		timer := time.NewTimer(resubscribeDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-ready:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// subscribe настраивает prefetch и начинает Consume с ручным ack.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil || ch.IsClosed() {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// drain обрабатывает доставки. false — ctx отменён, true — подписка закрыта.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case d, ok := <-deliveries:
			if !ok {
				return true
			}
			c.handle(ctx, d)
		}
	}
}

// handle обрабатывает одну доставку и подтверждает её по вердикту.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) verdict {
	v := c.process(ctx, d.Body)

	var err error
	switch v {
	case verdictAck:
		err = d.Ack(false)
	case verdictRequeue:
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		c.logger.Warn("failed to settle delivery",
			"delivery_tag", d.DeliveryTag,
			"verdict", v,
			"error", err,
		)
	}
	return v
}

func (c *Consumer) process(ctx context.Context, body []byte) verdict {
	ev, err := DecodeEvent(body)
	if err != nil {
		c.logger.Error("dropping undecodable message", "error", err, "size", len(body))
		return verdictReject
	}

	logger := c.logger.With("type", ev.Type, "session_id", ev.SessionID)
	logger.Debug("event received")

	err = c.handler(ctx, ev)
	v := verdictFor(err)
	if v != verdictAck {
		logger.Error("event handling failed", "verdict", v, "error", err)
	}
	return v
}
