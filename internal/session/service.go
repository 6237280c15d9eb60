package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/engine"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/flow"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/notify"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/repo"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/telemetry"
)

// Default configuration values.
const (
	DefaultFormSlug  = "mutuo"
	DefaultResumeTTL = 30 * 24 * time.Hour
)

// FormLoader — источник формы (formdef.Loader).
type FormLoader interface {
	Load(ctx context.Context, slug string) (*domain.FormDefinition, *engine.Graph, error)
}

// SubmissionStore — хранилище отправленных анкет (repo.SubmissionRepo).
type SubmissionStore interface {
	Submit(ctx context.Context, sub *domain.Submission) error
}

// ResumeStore — хранилище снапшотов (repo.ResumeRepo, repo.RedisResumeStore).
// Load возвращает repo.ErrNotFound или repo.ErrExpired для недействительного кода.
// Delete гасит код после отправки анкеты.
type ResumeStore interface {
	Save(ctx context.Context, snap *domain.ResumeSnapshot) error
	Load(ctx context.Context, code string) (*domain.ResumeSnapshot, error)
	Delete(ctx context.Context, code string) error
}

// SessionStore — журнал сессий (repo.SessionRepo).
// Create для существующего ID возвращает repo.ErrAlreadyExists,
// UpdateStatus для отсутствующего — repo.ErrNotFound.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error
	SetResumeCode(ctx context.Context, id uuid.UUID, code string) error
}

// Service управляет сессиями анкеты.
type Service struct {
	forms     FormLoader
	formSlug  string
	validator engine.Validator
	wrapBack  bool

	submissions SubmissionStore
	resumes     ResumeStore
	store       SessionStore
	notifier    *notify.Async

	resumeTTL time.Duration
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	now       func() time.Time

	// Форма загружается один раз и разделяется всеми сессиями
	formMu sync.Mutex
	def    *domain.FormDefinition
	graph  *engine.Graph

	// Активные сессии (sessionID → session)
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
}

// Config — конфигурация Service.
type Config struct {
	// Forms — источник формы (обязателен).
	Forms FormLoader

	// FormSlug — анкета сессий (default: "mutuo").
	FormSlug string

	// Validator — проверка input-полей (default: engine.AcceptAll).
	Validator engine.Validator

	// WrapBack — "назад" с первого вопроса переходит к последнему отвеченному.
	WrapBack bool

	// Хранилища. nil — соответствующая операция недоступна (ErrStoreUnavailable),
	// для Sessions — журнал сессий не ведётся.
	Submissions SubmissionStore
	Resumes     ResumeStore
	Sessions    SessionStore

	// Notifier — фоновая доставка событий. nil — события не отправляются.
	Notifier *notify.Async

	// ResumeTTL — срок жизни кода возобновления (default: 30 дней).
	ResumeTTL time.Duration

	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// Now — источник времени (default: time.Now).
	Now func() time.Time
}

// New создаёт Service.
func New(cfg Config) (*Service, error) {
	if cfg.Forms == nil {
		return nil, fmt.Errorf("session: form loader is required")
	}

	slug := cfg.FormSlug
	if slug == "" {
		slug = DefaultFormSlug
	}

	validator := cfg.Validator
	if validator == nil {
		validator = engine.AcceptAll{}
	}

	ttl := cfg.ResumeTTL
	if ttl <= 0 {
		ttl = DefaultResumeTTL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		forms:       cfg.Forms,
		formSlug:    slug,
		validator:   validator,
		wrapBack:    cfg.WrapBack,
		submissions: cfg.Submissions,
		resumes:     cfg.Resumes,
		store:       cfg.Sessions,
		notifier:    cfg.Notifier,
		resumeTTL:   ttl,
		metrics:     cfg.Metrics,
		logger:      logger,
		now:         now,
		sessions:    make(map[uuid.UUID]*Session),
	}, nil
}

// Form возвращает форму сессий, загружая её при первом вызове.
func (s *Service) Form(ctx context.Context) (*domain.FormDefinition, *engine.Graph, error) {
	s.formMu.Lock()
	defer s.formMu.Unlock()

	if s.def != nil {
		return s.def, s.graph, nil
	}

	def, graph, err := s.forms.Load(ctx, s.formSlug)
	if err != nil {
		return nil, nil, fmt.Errorf("load form %s: %w", s.formSlug, err)
	}
	s.def, s.graph = def, graph
	return def, graph, nil
}

// Start открывает сессию.
//
// С непустым resumeCode состояние восстанавливается из снапшота; сессия
// получает ID исходной. Недействительный код — ErrResumeNotFound, код
// уже отправленной сессии — ErrAlreadySubmitted; ничего не создаётся.
func (s *Service) Start(ctx context.Context, resumeCode string) (*Session, error) {
	def, graph, err := s.Form(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	var state *domain.FormState

	// 1. Снапшот
	resumeCode = strings.TrimSpace(resumeCode)
	if resumeCode != "" {
		snap, err := s.loadSnapshot(ctx, resumeCode)
		if err != nil {
			return nil, err
		}
		if snap.FormSlug != def.Slug {
			s.logger.Warn("resume snapshot belongs to another form",
				"code", resumeCode,
				"snapshot_form", snap.FormSlug,
				"form", def.Slug,
			)
		}
		if s.submitted(snap.SessionID) {
			return nil, ErrAlreadySubmitted
		}
		id = snap.SessionID
		state = snap.State
	}

	// 2. Движок
	logger := telemetry.WithSessionID(s.logger, id.String())
	eng, err := flow.New(flow.Config{
		Graph:     graph,
		Validator: s.validator,
		State:     state,
		WrapBack:  s.wrapBack,
		Logger:    logger,
		Now:       s.now,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &Session{
		ID:         id,
		Form:       def,
		Engine:     eng,
		status:     domain.SessionStatusAccessed,
		resumeCode: resumeCode,
		createdAt:  now,
		lastSeen:   now,
	}
	if state != nil && state.Started {
		sess.status = domain.SessionStatusStarted
	}
	if state != nil && state.FlowStopped {
		sess.status = domain.SessionStatusStopped
	}

	// 3. Регистрация (повторное возобновление заменяет сессию в памяти)
	s.mu.Lock()
	s.sessions[id] = sess
	active := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SessionStarted(state != nil)
	s.metrics.SetActiveSessions(active)

	s.record(ctx, sess, state != nil, logger)

	s.emit(sess, domain.EventFormAccessed, map[string]any{"resumed": state != nil})

	logger.Info("session started",
		"form", def.Slug,
		"form_version", def.Version,
		"resumed", state != nil,
	)

	return sess, nil
}

// record пишет сессию в журнал. Возобновлённая сессия уже есть в журнале:
// обновляется её статус, а запись создаётся, только если её нет.
func (s *Service) record(ctx context.Context, sess *Session, resumed bool, logger *slog.Logger) {
	if s.store == nil {
		return
	}
	info := sess.Info()

	if resumed {
		err := s.store.UpdateStatus(ctx, sess.ID, info.Status)
		if err == nil {
			return
		}
		if !errors.Is(err, repo.ErrNotFound) {
			logger.Warn("failed to record resumed session", "error", err)
			return
		}
	}

	if err := s.store.Create(ctx, &info); err != nil {
		logger.Warn("failed to record session", "error", err)
	}
}

// submitted проверяет, что сессия в памяти уже отправлена.
func (s *Service) submitted(id uuid.UUID) bool {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	return ok && sess.Status() == domain.SessionStatusCompleted
}

func (s *Service) loadSnapshot(ctx context.Context, code string) (*domain.ResumeSnapshot, error) {
	if s.resumes == nil {
		return nil, ErrStoreUnavailable
	}

	snap, err := s.resumes.Load(ctx, code)
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrExpired) {
		return nil, fmt.Errorf("%w: %v", ErrResumeNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load resume snapshot: %w", err)
	}
	if snap.State == nil {
		return nil, fmt.Errorf("%w: empty snapshot", ErrResumeNotFound)
	}
	return snap, nil
}

// Get возвращает сессию.
func (s *Service) Get(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch(s.now())
	return sess, nil
}

// Dispatch применяет действие к движку сессии и обновляет её статус.
func (s *Service) Dispatch(ctx context.Context, id uuid.UUID, a flow.Action) (flow.Result, error) {
	sess, err := s.Get(id)
	if err != nil {
		return flow.Result{}, err
	}
	if sess.Status() == domain.SessionStatusCompleted {
		return flow.Result{}, ErrAlreadySubmitted
	}

	res, err := sess.Engine.Dispatch(a)
	s.metrics.Action(actionName(a), outcome(res, err))
	if err != nil {
		return res, err
	}

	// Статус
	switch {
	case res.Stopped:
		s.setStatus(ctx, sess, domain.SessionStatusStopped)
	case sess.Status() == domain.SessionStatusStopped:
		status := domain.SessionStatusAccessed
		if sess.Engine.Snapshot().Started {
			status = domain.SessionStatusStarted
		}
		s.setStatus(ctx, sess, status)
	}

	if res.FirstResponse {
		s.setStatus(ctx, sess, domain.SessionStatusStarted)
		s.emit(sess, domain.EventFormStarted, nil)
	}

	return res, nil
}

func (s *Service) setStatus(ctx context.Context, sess *Session, status domain.SessionStatus) {
	if !sess.transition(status) {
		return
	}
	if s.store == nil {
		return
	}
	if err := s.store.UpdateStatus(ctx, sess.ID, status); err != nil {
		s.logger.Warn("failed to update session status",
			"session_id", sess.ID,
			"status", status,
			"error", err,
		)
	}
}

// Submit отправляет анкету: состояние, активные блоки и повторяемые секции.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if s.submissions == nil {
		return nil, ErrStoreUnavailable
	}
	if sess.Status() == domain.SessionStatusCompleted {
		return nil, ErrAlreadySubmitted
	}

	sub := &domain.Submission{
		ID:              uuid.New(),
		SessionID:       sess.ID,
		FormSlug:        sess.Form.Slug,
		State:           sess.Engine.Snapshot(),
		Blocks:          sess.Engine.ActiveBlocks(),
		RepeatingGroups: sess.Engine.RepeatingGroups(),
		CreatedAt:       s.now(),
	}

	if err := s.submissions.Submit(ctx, sub); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			s.setStatus(ctx, sess, domain.SessionStatusCompleted)
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("submit: %w", err)
	}

	s.setStatus(ctx, sess, domain.SessionStatusCompleted)
	s.dropResumeCode(ctx, sess)
	s.metrics.Submitted()
	s.emit(sess, domain.EventFormCompleted, map[string]any{"submission_id": sub.ID.String()})

	s.logger.Info("questionnaire submitted",
		"session_id", sess.ID,
		"submission_id", sub.ID,
		"blocks", len(sub.Blocks),
	)

	return sub, nil
}

// dropResumeCode гасит код возобновления отправленной сессии.
func (s *Service) dropResumeCode(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	code := sess.resumeCode
	sess.resumeCode = ""
	sess.mu.Unlock()

	if code == "" || s.resumes == nil {
		return
	}
	if err := s.resumes.Delete(ctx, code); err != nil {
		s.logger.Warn("failed to delete resume snapshot",
			"session_id", sess.ID,
			"code", code,
			"error", err,
		)
	}
}

// SaveForResume сохраняет снапшот и возвращает код возобновления.
// Повторное сохранение в той же сессии переиспользует код.
// Отправленную анкету сохранить нельзя (ErrAlreadySubmitted).
func (s *Service) SaveForResume(ctx context.Context, id uuid.UUID) (string, error) {
	sess, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if sess.Status() == domain.SessionStatusCompleted {
		return "", ErrAlreadySubmitted
	}
	if s.resumes == nil {
		return "", ErrStoreUnavailable
	}

	sess.mu.Lock()
	code := sess.resumeCode
	if code == "" {
		code = NewResumeCode()
	}
	sess.mu.Unlock()

	now := s.now()
	snap := &domain.ResumeSnapshot{
		Code:      code,
		SessionID: sess.ID,
		FormSlug:  sess.Form.Slug,
		State:     sess.Engine.Snapshot(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.resumeTTL),
	}
	if err := s.resumes.Save(ctx, snap); err != nil {
		return "", fmt.Errorf("save resume snapshot: %w", err)
	}

	sess.mu.Lock()
	sess.resumeCode = code
	sess.mu.Unlock()

	if s.store != nil {
		if err := s.store.SetResumeCode(ctx, sess.ID, code); err != nil {
			s.logger.Warn("failed to record resume code", "session_id", sess.ID, "error", err)
		}
	}

	return code, nil
}

// EvictIdle удаляет из памяти сессии, неактивные с момента before.
func (s *Service) EvictIdle(before time.Time) int {
	s.mu.Lock()
	evicted := 0
	for id, sess := range s.sessions {
		if sess.idleSince(before) {
			delete(s.sessions, id)
			evicted++
		}
	}
	active := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(active)
	if evicted > 0 {
		s.logger.Info("idle sessions evicted", "count", evicted, "active", active)
	}
	return evicted
}

// Len возвращает число сессий в памяти.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown ждёт доставки отправленных событий.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Wait(ctx)
}

// emit отправляет событие в фоне.
func (s *Service) emit(sess *Session, t domain.EventType, payload map[string]any) *notify.Task {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Go(domain.Event{
		Type:      t,
		SessionID: sess.ID,
		FormSlug:  sess.Form.Slug,
		Payload:   payload,
		At:        s.now(),
	})
}

// NewResumeCode генерирует код возобновления: 12 символов в верхнем регистре.
func NewResumeCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:12])
}

func actionName(a flow.Action) string {
	name := fmt.Sprintf("%T", a)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func outcome(res flow.Result, err error) string {
	switch {
	case errors.Is(err, flow.ErrNavigationInProgress):
		return "dropped"
	case err != nil:
		return "error"
	case len(res.Invalid) > 0:
		return "invalid"
	case !res.Changed:
		return "noop"
	default:
		return "ok"
	}
}
