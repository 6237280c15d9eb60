// Questionnaire API — HTTP API анкеты на ипотеку.
//
// Сервис:
//   - Держит сессии анкеты в памяти (flow.Engine на сессию)
//   - Сохраняет отправки, коды возобновления и журнал сессий (PostgreSQL/Redis)
//   - Публикует события жизненного цикла в RabbitMQ (для relay)
//   - По cron чистит просроченные коды и неактивные сессии (janitor)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/api"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/formdef"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/janitor"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/mq"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/notify"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/repo"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/session"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/telemetry"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/validation"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting questionnaire-api")

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Создаём репозитории
	submissionRepo := repo.NewSubmissionRepo(pool)
	sessionRepo := repo.NewSessionRepo(pool)
	resumes, closeResumes, err := resumeStore(ctx, cfg, pool, logger)
	if err != nil {
		logger.Error("failed to set up resume store", "error", err)
		os.Exit(1)
	}
	defer closeResumes()

	// События: RabbitMQ, без брокера — в лог
	notifier, closeMQ := eventNotifier(ctx, cfg, logger)
	defer closeMQ()

	async := notify.NewAsync(notify.AsyncConfig{
		Notifier: notifier,
		Logger:   logger,
		OnResult: func(ev domain.Event, err error) {
			metrics.Event(string(ev.Type), err)
		},
	})

	svc, err := session.New(session.Config{
		Forms: formdef.NewLoader(formdef.Config{
			Store:  repo.NewFormRepo(pool),
			File:   cfg.FormFile,
			Logger: logger,
		}),
		FormSlug:    cfg.FormSlug,
		Validator:   validation.New(),
		WrapBack:    cfg.WrapBack,
		Submissions: submissionRepo,
		Resumes:     resumes,
		Sessions:    sessionRepo,
		Notifier:    async,
		ResumeTTL:   cfg.ResumeTTL,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to create session service", "error", err)
		os.Exit(1)
	}

	// Проверяем форму на старте: битое определение — не запускаемся
	if _, _, err := svc.Form(ctx); err != nil {
		logger.Error("failed to load form", "slug", cfg.FormSlug, "error", err)
		os.Exit(1)
	}

	// Janitor: лидер среди реплик — держатель advisory lock
	lock := repo.NewAdvisoryLock(pool, repo.JanitorLockKey)
	jan, err := janitor.New(janitor.Config{
		Spec:      cfg.PurgeCron,
		Resumes:   resumes,
		Sessions:  svc,
		Locker:    lock,
		IdleAfter: cfg.IdleAfter,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create janitor", "error", err)
		os.Exit(1)
	}
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		if err := jan.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("janitor stopped", "error", err)
		}
	}()

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Sessions:    svc,
		Submissions: submissionRepo,
		Metrics:     metrics,
		Logger:      logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s sessions=%d", time.Since(startTime).Round(time.Second), svc.Len())
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "form", cfg.FormSlug, "resume_backend", cfg.ResumeBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	<-janitorDone
	lock.Release(shutdownCtx)

	// Дожидаемся доставки событий
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pending notifications dropped", "error", err)
	}

	logger.Info("stopped")
}

// resumeStore выбирает хранилище кодов возобновления.
// Хранилище должно поддерживать очистку просроченных записей (janitor).
func resumeStore(ctx context.Context, cfg config, pool *pgxpool.Pool, logger *slog.Logger) (interface {
	session.ResumeStore
	janitor.Purger
}, func(), error) {
	if cfg.ResumeBackend != resumeBackendRedis {
		return repo.NewResumeRepo(pool), func() {}, nil
	}

	rdb, err := repo.NewRedisClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to redis")
	return repo.NewRedisResumeStore(rdb), func() { _ = rdb.Close() }, nil
}

// eventNotifier подключается к RabbitMQ. Брокер недоступен — события пишутся в лог.
func eventNotifier(ctx context.Context, cfg config, logger *slog.Logger) (notify.Notifier, func()) {
	fallback := notify.Log{Logger: logger}
	if !cfg.EventsEnabled {
		return fallback, func() {}
	}

	conn, err := mq.NewConnection(cfg.RabbitURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, events are logged only", "error", err)
		return fallback, func() {}
	}
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}

	return mq.NewPublisher(conn, logger), func() { _ = conn.Close() }
}
