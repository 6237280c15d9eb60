// Package api содержит HTTP API сервер анкеты.
//
// Структура:
//   - handler.go         — Handler с DI (сервис сессий, хранилище отправок, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, metrics, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - session_handler.go — обработчики для /sessions и /submissions
//
// API предоставляет рендеру REST endpoints: состояние сессии, ответы,
// навигацию, управление блоками и повторяемыми секциями, отправку и
// возобновление. Тексты вопросов очищаются bluemonday перед выдачей.
package api
