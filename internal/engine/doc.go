// Package engine содержит чистые функции навигации по графу анкеты.
//
// Включает:
//   - validate.go   — структурная валидация блоков и проверка ссылок
//   - graph.go      — индекс блоков/вопросов, порядок next_block
//   - resolver.go   — Transition Resolver (вопрос + ответы → Destination)
//   - blueprint.go  — BlueprintID + CopyNumber → копия блока
//   - completion.go — проверка заполненности вопросов и блоков
//   - groups.go     — сведение копий в RepeatingGroupEntry
//   - text.go       — подстановка ответов в текст вопроса
//
// Пакет не хранит состояние сессии: им владеет пакет flow.
package engine
