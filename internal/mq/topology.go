package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeEvents Exchange = "questionnaire.events"
	ExchangeDLQ    Exchange = "questionnaire.dlq"
)

// Queues — имена очередей.
const (
	QueueFormEvents    Queue = "form.events"
	QueueDLQFormEvents Queue = "dlq.form.events"
)

// Routing keys.
const (
	// RoutingKeyFormAll — привязка form.events ко всем событиям анкеты.
	RoutingKeyFormAll RoutingKey = "form.*"

	RoutingKeyDLQEvents RoutingKey = "events"
)

// RoutingKeyFor возвращает routing key события: form_started → form.started.
func RoutingKeyFor(t MessageType) RoutingKey {
	s := string(t)
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			return RoutingKey(s[:i] + "." + s[i+1:])
		}
	}
	return RoutingKey("form." + s)
}

// SetupTopology объявляет обменники, очереди и привязки.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeEvents, "topic"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQEvents),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// form.events — с DLQ (relay отклоняет события после исчерпания попыток)
		{QueueFormEvents, dlqArgs},

		// dlq.form.events — сама DLQ очередь
		{QueueDLQFormEvents, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueFormEvents, RoutingKeyFormAll, ExchangeEvents},
		{QueueDLQFormEvents, RoutingKeyDLQEvents, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Questionnaire RabbitMQ Topology:

    questionnaire.events (topic)
    └── form.events [routing: form.*]
            Consumer: Relay (webhook)
            DLQ: dlq.form.events

    questionnaire.dlq (direct)
    └── dlq.form.events [routing: events]
            Manual processing
  `
}
