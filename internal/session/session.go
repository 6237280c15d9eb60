package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/flow"
)

// Session — сессия анкеты в памяти.
type Session struct {
	ID     uuid.UUID
	Form   *domain.FormDefinition
	Engine *flow.Engine

	mu         sync.Mutex
	status     domain.SessionStatus
	resumeCode string
	createdAt  time.Time
	lastSeen   time.Time
}

// Status возвращает статус сессии.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Info возвращает описание сессии для API и хранилища.
func (s *Session) Info() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Session{
		ID:          s.ID,
		FormSlug:    s.Form.Slug,
		FormVersion: s.Form.Version,
		Status:      s.status,
		ResumeCode:  s.resumeCode,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.lastSeen,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(before time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Before(before)
}

// transition меняет статус. Возвращает false, если статус не изменился.
func (s *Session) transition(to domain.SessionStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == to || s.status.IsTerminal() {
		return false
	}
	s.status = to
	return true
}
