package domain

import (
	"time"

	"github.com/google/uuid"
)

// FormDefinition — версия определения анкеты.
//
// Одна анкета (Slug) может иметь множество версий; сессия всегда
// работает с конкретной версией, загруженной один раз при старте.
type FormDefinition struct {
	// ID — идентификатор версии.
	ID uuid.UUID `json:"id" yaml:"-"`

	// Slug — имя анкеты ("mutuo", "surroga", ...).
	Slug string `json:"slug" yaml:"slug"`

	// Version — номер версии (1, 2, 3, ...).
	Version int `json:"version" yaml:"version"`

	// Title — заголовок анкеты.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Blocks — блоки в порядке объявления, включая blueprint'ы.
	Blocks []Block `json:"blocks" yaml:"blocks"`

	// CreatedAt — время создания версии.
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Session — сессия прохождения анкеты.
type Session struct {
	ID          uuid.UUID     `json:"id"`
	FormSlug    string        `json:"form_slug"`
	FormVersion int           `json:"form_version"`
	Status      SessionStatus `json:"status"`

	// ResumeCode — последний выданный код возобновления.
	ResumeCode string `json:"resume_code,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
