// Package cli реализует инструмент командной строки анкеты.
//
// # Обзор
//
// CLI — клиентская утилита для прохождения анкеты через HTTP API:
// открытие и возобновление сессий, ответы, навигация, управление
// блоками и повторяемыми секциями, отправка. HTTP-часть не импортирует
// внутренние пакеты сервера.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует HTTP-запросы, разбор ответов
// (DataResponse, ErrorResponse) и ошибки (*APIError).
//
//	client := cli.NewClient("http://localhost:8080")
//	sess, err := client.StartSession("")
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: questionnaire session show ID --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - session: start, show, responses, answer, next, back, goto, progress, reset, submit, save
//   - block: activate, deactivate, add, delete, status, incomplete
//   - submission: show
//   - form: validate, blocks (локально, через formdef и engine)
//
// Каждая группа создаётся через фабричную функцию (NewSessionCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
