// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (переподключение, Ready)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий жизненного цикла анкеты
//   - consumer.go   — потребление событий: DecodeEvent, EventHandler (relay)
//
// Типы сообщений:
//   - form_accessed   — сессия открыта
//   - form_started    — получен первый ответ
//   - form_completed  — анкета отправлена
//
// Exchanges:
//   - questionnaire.events — события анкеты (topic)
//   - questionnaire.dlq    — dead letter queue
package mq
