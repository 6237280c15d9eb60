// Package flow управляет состоянием одной сессии анкеты.
//
// Engine отвечает за:
//   - Запись ответов и активацию блоков через add_block
//   - Навигацию вперёд, назад и по прямой ссылке
//   - Создание и удаление копий повторяемых секций
//   - Отложенное удаление блока, в котором находится пользователь
//   - Прогресс и признак завершения всех блоков
//
// Все изменения FormState проходят через Engine.Dispatch.
package flow
