// Package relay пересылает события жизненного цикла анкеты на внешний webhook.
//
// Relay потребляет очередь form.events (см. пакет mq) и отправляет каждое
// событие POST-запросом в JSON. Ошибки сети, 5xx, 408 и 429 повторяются с
// exponential backoff; прочие 4xx и исчерпанные попытки отправляют сообщение
// в DLQ через mq.ErrReject.
//
// Файлы:
//   - relay.go: Relay, Deliver, backoff
package relay
