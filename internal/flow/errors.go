package flow

import "errors"

// Ошибки движка анкеты.
var (
	// ErrNavigationInProgress — другая навигация ещё не завершилась; запрос отброшен.
	ErrNavigationInProgress = errors.New("navigation already in progress")

	// ErrFlowStopped — анкета остановлена через stop_flow.
	ErrFlowStopped = errors.New("flow stopped")

	// ErrBlockNotFound — блок не найден (ни статический, ни динамический).
	ErrBlockNotFound = errors.New("block not found")

	// ErrBlockNotActive — блок существует, но не активен.
	ErrBlockNotActive = errors.New("block not active")

	// ErrQuestionNotFound — вопрос не найден.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrPlaceholderNotFound — у вопроса нет такого placeholder'а.
	ErrPlaceholderNotFound = errors.New("placeholder not found")

	// ErrNotAField — placeholder не хранит значения (MultiBlockManager).
	ErrNotAField = errors.New("placeholder does not accept values")

	// ErrUnknownBlueprint — blueprint не найден.
	ErrUnknownBlueprint = errors.New("unknown blueprint")

	// ErrNotDynamicBlock — блок не является копией blueprint'а.
	ErrNotDynamicBlock = errors.New("block is not dynamic")

	// ErrIncompleteInstances — у повторяемой секции есть незаполненные копии.
	ErrIncompleteInstances = errors.New("repeating section has incomplete instances")

	// ErrUnknownAction — неизвестный тип действия.
	ErrUnknownAction = errors.New("unknown action")
)
