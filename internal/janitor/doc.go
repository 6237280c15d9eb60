// Package janitor реализует фоновую очистку по cron-расписанию.
//
// На каждом запуске Janitor удаляет истёкшие снапшоты возобновления и
// выгружает из памяти сессии без действий. При нескольких репликах API
// очистку выполняет держатель advisory lock в PostgreSQL.
//
// Расписание задаётся стандартным cron-выражением из 5 полей:
//
//	"0 3 * * *"   — каждый день в 03:00
//	"*/15 * * * *" — каждые 15 минут
package janitor
