package session

import "errors"

// Ошибки сервиса сессий.
var (
	// ErrSessionNotFound — сессии нет в памяти.
	ErrSessionNotFound = errors.New("session not found")

	// ErrResumeNotFound — код возобновления не найден или просрочен.
	ErrResumeNotFound = errors.New("resume code not found or expired")

	// ErrAlreadySubmitted — анкета уже отправлена, изменения запрещены.
	ErrAlreadySubmitted = errors.New("session already submitted")

	// ErrStoreUnavailable — хранилище не настроено.
	ErrStoreUnavailable = errors.New("store not configured")
)
