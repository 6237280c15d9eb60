package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// JanitorLockKey — ключ advisory lock фоновой очистки.
const JanitorLockKey int64 = 424242

// lockConn — соединение, на котором держится блокировка (*pgxpool.Conn).
type lockConn interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Release()
}

// AdvisoryLock — сессионная advisory lock PostgreSQL.
//
// Блокировка держится на выделенном соединении до Release, поэтому
// повторный TryLock держателя возвращает true.
type AdvisoryLock struct {
	key int64
	// acquire берёт соединение из пула
	acquire func(ctx context.Context) (lockConn, error)
	// discard закрывает соединение, не возвращая его в пул
	discard func(lockConn)

	conn lockConn
}

// NewAdvisoryLock создаёт AdvisoryLock.
func NewAdvisoryLock(pool *pgxpool.Pool, key int64) *AdvisoryLock {
	return &AdvisoryLock{
		key: key,
		acquire: func(ctx context.Context) (lockConn, error) {
			return pool.Acquire(ctx)
		},
		discard: func(c lockConn) {
			pc := c.(*pgxpool.Conn)
			_ = pc.Conn().Close(context.Background())
			pc.Release()
		},
	}
}

// TryLock пытается стать лидером (или подтверждает лидерство).
//
// Держатель сначала проверяет своё соединение: с его разрывом PostgreSQL
// снимает блокировку, поэтому мёртвое соединение отбрасывается и
// блокировка запрашивается заново.
func (l *AdvisoryLock) TryLock(ctx context.Context) (bool, error) {
	if l.conn != nil {
		err := l.conn.Ping(ctx)
		if err == nil {
			return true, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		l.discard(l.conn)
		l.conn = nil
	}

	conn, err := l.acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire conn: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release снимает блокировку и возвращает соединение в пул.
func (l *AdvisoryLock) Release(ctx context.Context) {
	if l.conn == nil {
		return
	}
	_, _ = l.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key)
	l.conn.Release()
	l.conn = nil
}
