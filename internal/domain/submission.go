package domain

import (
	"time"

	"github.com/google/uuid"
)

// RepeatingGroupEntry — одна копия повторяемой секции, сведённая в плоскую запись.
//
// Fields: "<question_id без токена>.<placeholder_key>" → значение.
type RepeatingGroupEntry struct {
	// ID — внутренний идентификатор записи (block_id копии).
	ID string `json:"id"`

	BlueprintID string         `json:"blueprint_id"`
	CopyNumber  int            `json:"copy_number"`
	Fields      map[string]any `json:"fields"`
}

// Submission — отправленная анкета.
type Submission struct {
	ID        uuid.UUID  `json:"id"`
	SessionID uuid.UUID  `json:"session_id"`
	FormSlug  string     `json:"form_slug"`
	State     *FormState `json:"state"`

	// Blocks — активные блоки (статические и динамические) на момент отправки.
	Blocks []Block `json:"blocks"`

	// RepeatingGroups — повторяемые секции по blueprint'ам.
	RepeatingGroups map[string][]RepeatingGroupEntry `json:"repeating_groups"`

	CreatedAt time.Time `json:"created_at"`
}

// ResumeSnapshot — сохранённое состояние для возобновления.
type ResumeSnapshot struct {
	// Code — код, который выдаётся пользователю.
	Code string `json:"code"`

	SessionID uuid.UUID  `json:"session_id"`
	FormSlug  string     `json:"form_slug"`
	State     *FormState `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// IsExpired проверяет, истёк ли снапшот на момент now.
func (s *ResumeSnapshot) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// EventType — тип события жизненного цикла анкеты.
type EventType string

const (
	// EventFormAccessed — сессия открыта.
	EventFormAccessed EventType = "form_accessed"

	// EventFormStarted — получен первый ответ.
	EventFormStarted EventType = "form_started"

	// EventFormCompleted — анкета отправлена.
	EventFormCompleted EventType = "form_completed"
)

// Event — событие жизненного цикла, отправляемое notifier'у.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID uuid.UUID      `json:"session_id"`
	FormSlug  string         `json:"form_slug"`
	Payload   map[string]any `json:"payload,omitempty"`
	At        time.Time      `json:"at"`
}
