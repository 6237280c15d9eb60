package domain

// SessionStatus — статус сессии анкеты.
//
// Жизненный цикл:
//
//	ACCESSED → STARTED → COMPLETED
//	         ↘ STOPPED (stop_flow)
type SessionStatus string

const (
	// SessionStatusAccessed — сессия открыта, ответов ещё нет.
	SessionStatusAccessed SessionStatus = "ACCESSED"

	// SessionStatusStarted — получен первый ответ.
	SessionStatusStarted SessionStatus = "STARTED"

	// SessionStatusStopped — анкета остановлена через stop_flow.
	SessionStatusStopped SessionStatus = "STOPPED"

	// SessionStatusCompleted — анкета отправлена.
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// IsTerminal возвращает true, если статус финальный.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление SessionStatus.
func (s SessionStatus) String() string {
	return string(s)
}

// ParseSessionStatus парсит строку в SessionStatus.
func ParseSessionStatus(s string) SessionStatus {
	switch s {
	case "STARTED":
		return SessionStatusStarted
	case "STOPPED":
		return SessionStatusStopped
	case "COMPLETED":
		return SessionStatusCompleted
	default:
		return SessionStatusAccessed
	}
}
