// Package notify доставляет события жизненного цикла анкеты.
//
// Notifier — получатель событий (mq.Publisher, webhook, лог).
// Async отправляет события в фоне: навигация не ждёт доставки, а ошибка
// доставки только логируется. Task позволяет дождаться результата в тестах
// и при остановке сервиса.
package notify
