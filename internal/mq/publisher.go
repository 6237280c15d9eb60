package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений совпадают с типами событий анкеты.
const (
	MessageTypeFormAccessed  = MessageType(domain.EventFormAccessed)
	MessageTypeFormStarted   = MessageType(domain.EventFormStarted)
	MessageTypeFormCompleted = MessageType(domain.EventFormCompleted)
)

// Publisher публикует события анкеты в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — конверт события анкеты в очереди.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип события (дублирует Event.Type для маршрутизации).
	Type MessageType `json:"type"`

	// Event — событие анкеты.
	Event domain.Event `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// Notify публикует событие анкеты в questionnaire.events.
// Потребитель: relay.
func (p *Publisher) Notify(ctx context.Context, ev domain.Event) error {
	msgType := MessageType(ev.Type)
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Event:     ev,
		Timestamp: at,
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyFor(msgType), msg)
}
