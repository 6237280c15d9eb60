package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// RedisResumeStore — снапшоты для возобновления в Redis.
//
// Ключ живёт до ExpiresAt (TTL), поэтому просроченный код выглядит как
// отсутствующий: Load возвращает ErrNotFound, а не ErrExpired.
type RedisResumeStore struct {
	rdb    *goredis.Client
	prefix string
	now    func() time.Time
}

// NewRedisClient подключается к Redis по REDIS_URL.
func NewRedisClient(ctx context.Context) (*goredis.Client, error) {
	url := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if url == "" {
		url = "redis://localhost:6379/0"
	}

	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedisResumeStore создаёт RedisResumeStore.
func NewRedisResumeStore(rdb *goredis.Client) *RedisResumeStore {
	return &RedisResumeStore{rdb: rdb, prefix: "resume:", now: time.Now}
}

// Save сохраняет снапшот с TTL до ExpiresAt.
func (s *RedisResumeStore) Save(ctx context.Context, snap *domain.ResumeSnapshot) error {
	ttl := snap.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrExpired
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal resume snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, s.prefix+snap.Code, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load возвращает снапшот по коду.
func (s *RedisResumeStore) Load(ctx context.Context, code string) (*domain.ResumeSnapshot, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+code).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var snap domain.ResumeSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal resume snapshot: %w", err)
	}
	if snap.IsExpired(s.now()) {
		return nil, ErrExpired
	}
	if snap.State == nil {
		return nil, fmt.Errorf("resume snapshot %s has no state", code)
	}
	snap.State.Normalize()

	return &snap, nil
}

// Delete удаляет снапшот. Отсутствующий код — не ошибка.
func (s *RedisResumeStore) Delete(ctx context.Context, code string) error {
	if err := s.rdb.Del(ctx, s.prefix+code).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// PurgeExpired ничего не удаляет: ключи истекают по TTL.
func (s *RedisResumeStore) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
