// Questionnaire Relay — пересылает события анкеты на webhook.
//
// Relay:
//   - Получает события form_accessed / form_started / form_completed из RabbitMQ
//   - POST'ит каждое событие в WEBHOOK_URL
//   - Повторяет с exponential backoff, исчерпанные попытки уходят в DLQ
//
// Без WEBHOOK_URL события только логируются.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/mq"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/relay"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting questionnaire-relay")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	maxAttempts := relay.DefaultMaxAttempts
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			logger.Error("invalid WEBHOOK_MAX_ATTEMPTS", "value", v)
			os.Exit(1)
		}
		maxAttempts = n
	}

	webhookURL := os.Getenv("WEBHOOK_URL")
	if webhookURL == "" {
		logger.Warn("WEBHOOK_URL is not set, events are logged only")
	}

	r := relay.New(relay.Config{
		URL:         webhookURL,
		MaxAttempts: maxAttempts,
		Metrics:     telemetry.NewMetrics(prometheus.DefaultRegisterer),
		Logger:      logger,
	})

	// RabbitMQ
	conn, err := mq.NewConnection(os.Getenv("RABBITMQ_URL"), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	logger.Debug("topology ready", "topology", mq.TopologyInfo())

	consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
		Queue:    mq.QueueFormEvents,
		Handler:  r.Deliver,
		Prefetch: 4,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8084"
	if v := os.Getenv("RELAY_PORT"); v != "" {
		port = ":" + v
	}

	server := &http.Server{
		Addr:              port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Потребляем до сигнала завершения
	if err := consumer.Run(ctx); err != nil {
		logger.Error("consumer stopped", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("questionnaire-relay stopped")
}
