package flow

import "github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"

// Action — действие над состоянием анкеты.
//
// Набор действий закрыт: реализовать Action вне пакета нельзя.
type Action interface {
	action()
}

// navigation — действия, которые захватывают навигационный токен.
type navigation interface {
	Action
	navigation()
}

// SetResponse — записать ответ на placeholder.
// Пустое значение удаляет ответ.
type SetResponse struct {
	QuestionID string
	Key        string
	Value      any
}

// Navigate — перейти вперёд от вопроса From.
//
// LeadsTo — ID вопроса или sentinel. Пустое значение: переход вычисляется
// резолвером по ответам на From.
type Navigate struct {
	From    string
	LeadsTo string
}

// GoBack — вернуться к предыдущему отвеченному вопросу.
type GoBack struct{}

// GoToQuestion — перейти к конкретному вопросу (ссылка из сводки ответов).
type GoToQuestion struct {
	BlockID    string
	QuestionID string
	IsBack     bool
}

// AddActiveBlock — активировать блок.
type AddActiveBlock struct {
	BlockID string
}

// RemoveActiveBlock — деактивировать блок.
// Если пользователь находится внутри блока, удаление откладывается.
type RemoveActiveBlock struct {
	BlockID string
}

// MarkBlockCompleted — пометить блок завершённым.
type MarkBlockCompleted struct {
	BlockID string
}

// RemoveBlockFromCompleted — снять отметку о завершении.
type RemoveBlockFromCompleted struct {
	BlockID string
}

// CreateDynamicBlock — создать копию blueprint'а.
type CreateDynamicBlock struct {
	BlueprintID string
}

// DeleteDynamicBlock — удалить копию вместе с её ответами.
type DeleteDynamicBlock struct {
	BlockID string
}

// Reset — начать анкету заново.
type Reset struct{}

func (SetResponse) action()              {}
func (Navigate) action()                 {}
func (GoBack) action()                   {}
func (GoToQuestion) action()             {}
func (AddActiveBlock) action()           {}
func (RemoveActiveBlock) action()        {}
func (MarkBlockCompleted) action()       {}
func (RemoveBlockFromCompleted) action() {}
func (CreateDynamicBlock) action()       {}
func (DeleteDynamicBlock) action()       {}
func (Reset) action()                    {}

func (Navigate) navigation()     {}
func (GoBack) navigation()       {}
func (GoToQuestion) navigation() {}

// Result — результат Dispatch.
type Result struct {
	// Version — версия состояния после действия.
	Version int64

	// Changed — состояние изменилось.
	Changed bool

	// ActiveQuestion — текущий вопрос после действия.
	ActiveQuestion domain.QuestionRef

	// BlockID — ID созданной копии (CreateDynamicBlock).
	BlockID string

	// Invalid — placeholder'ы вопроса без валидного ответа; навигация не выполнена.
	Invalid []string

	// Incomplete — незаполненные копии повторяемой секции.
	Incomplete []string

	// Deferred — удаление блока отложено до ухода из него.
	Deferred bool

	// Aborted — навигация назад отменена (целевой блок не найден).
	Aborted bool

	// FirstResponse — это первый ответ в сессии.
	FirstResponse bool

	// EndOfForm — достигнут конец формы.
	EndOfForm bool

	// Stopped — анкета остановлена через stop_flow.
	Stopped bool
}
