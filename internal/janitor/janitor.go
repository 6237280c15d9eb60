package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/telemetry"
)

// Значения по умолчанию.
const (
	DefaultSpec      = "0 3 * * *"
	DefaultIdleAfter = 24 * time.Hour
)

// cronParser — парсер cron-выражений (5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Purger удаляет просроченные снапшоты (repo.ResumeRepo, repo.RedisResumeStore).
type Purger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Evicter выгружает неактивные сессии (session.Service).
type Evicter interface {
	EvictIdle(before time.Time) int
}

// Locker — лидерство между репликами (repo.AdvisoryLock).
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
}

// Janitor периодически чистит снапшоты возобновления и сессии в памяти.
type Janitor struct {
	spec      string
	schedule  cron.Schedule
	resumes   Purger
	sessions  Evicter
	locker    Locker
	idleAfter time.Duration
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Config — конфигурация Janitor.
type Config struct {
	// Spec — cron-выражение (RESUME_PURGE_CRON, default: "0 3 * * *").
	Spec string

	// Resumes — хранилище снапшотов. nil — снапшоты не чистятся.
	Resumes Purger

	// Sessions — сервис сессий. nil — сессии не выгружаются.
	Sessions Evicter

	// Locker — если задан, тик выполняет только держатель блокировки.
	Locker Locker

	// IdleAfter — сессия без действий дольше IdleAfter выгружается (default: 24h).
	IdleAfter time.Duration

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// New создаёт Janitor. Некорректное cron-выражение — ошибка.
func New(cfg Config) (*Janitor, error) {
	spec := cfg.Spec
	if spec == "" {
		spec = DefaultSpec
	}
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	idle := cfg.IdleAfter
	if idle <= 0 {
		idle = DefaultIdleAfter
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Janitor{
		spec:      spec,
		schedule:  schedule,
		resumes:   cfg.Resumes,
		sessions:  cfg.Sessions,
		locker:    cfg.Locker,
		idleAfter: idle,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "janitor"),
		now:       now,
	}, nil
}

// NextRun возвращает время следующего запуска после from.
func (j *Janitor) NextRun(from time.Time) time.Time {
	return j.schedule.Next(from)
}

// Tick выполняет одну очистку.
//
// 1. Проверяет лидерство (если задан Locker)
// 2. Удаляет снапшоты, истёкшие к текущему моменту
// 3. Выгружает сессии, неактивные дольше IdleAfter
//
// Ошибка хранилища не мешает выгрузке сессий.
func (j *Janitor) Tick(ctx context.Context) error {
	// 1. Лидерство
	if j.locker != nil {
		ok, err := j.locker.TryLock(ctx)
		if err != nil {
			return fmt.Errorf("acquire janitor lock: %w", err)
		}
		if !ok {
			j.logger.Debug("not a leader, skipping tick")
			return nil
		}
	}

	now := j.now()
	var purgeErr error

	// 2. Снапшоты
	var purged int64
	if j.resumes != nil {
		n, err := j.resumes.PurgeExpired(ctx, now)
		if err != nil {
			purgeErr = fmt.Errorf("purge resume snapshots: %w", err)
		} else {
			purged = n
			j.metrics.ResumePurged(n)
		}
	}

	// 3. Сессии
	var evicted int
	if j.sessions != nil {
		evicted = j.sessions.EvictIdle(now.Add(-j.idleAfter))
	}

	if purgeErr != nil {
		j.logger.Error("janitor tick failed", "error", purgeErr, "sessions_evicted", evicted)
		return purgeErr
	}

	j.logger.Info("janitor tick completed",
		"snapshots_purged", purged,
		"sessions_evicted", evicted,
	)
	return nil
}

// Run запускает очистку по расписанию и блокируется до отмены ctx.
// Пересекающиеся запуски пропускаются.
func (j *Janitor) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{j.logger})),
	)

	if _, err := c.AddFunc(j.spec, func() {
		_ = j.Tick(ctx)
	}); err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}

	j.logger.Info("janitor started", "spec", j.spec, "next_run", j.NextRun(j.now()))
	c.Start()

	<-ctx.Done()

	// Ждём завершения текущего запуска
	<-c.Stop().Done()
	j.logger.Info("janitor stopped")
	return nil
}

// cronLogger — адаптер slog для cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
