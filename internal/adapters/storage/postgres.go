package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/athebyme/gomarket-admin/pkg/tx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresMigrations = []string{
	`CREATE SCHEMA IF NOT EXISTS editor`,
	`CREATE TABLE IF NOT EXISTS editor.audit_entries (
		id          UUID PRIMARY KEY,
		event_id    TEXT NOT NULL UNIQUE,
		event_type  TEXT NOT NULL,
		shop_id     TEXT NOT NULL,
		record_id   TEXT NOT NULL,
		session_id  TEXT NOT NULL,
		section     TEXT NOT NULL DEFAULT '',
		item_id     TEXT NOT NULL DEFAULT '',
		fields      JSONB,
		version     TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_entries_record_idx
		ON editor.audit_entries (shop_id, record_id, occurred_at DESC)`,
}

// PostgresAuditStorage журнал изменений в PostgreSQL
type PostgresAuditStorage struct {
	pool *pgxpool.Pool
	tx   tx.TxManager
}

// NewPostgresAuditStorage подключается к PostgreSQL и проверяет соединение
func NewPostgresAuditStorage(ctx context.Context, dsn string, maxConns int32, logger interfaces.LoggerPort) (*PostgresAuditStorage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewPostgresAuditStorageWithPool(ctx, pool, logger)
}

// NewPostgresAuditStorageWithPool использует уже созданный пул соединений
func NewPostgresAuditStorageWithPool(ctx context.Context, pool *pgxpool.Pool, logger interfaces.LoggerPort) (*PostgresAuditStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresAuditStorage{pool: pool, tx: tx.NewTxManager(pool, logger)}, nil
}

// Close закрывает соединение с БД
func (r *PostgresAuditStorage) Close() error {
	r.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// getExecutor возвращает исполнителя запросов (транзакцию или пул)
func (r *PostgresAuditStorage) getExecutor(ctx context.Context) executor {
	if t, ok := tx.GetTxFromContext(ctx); ok {
		return t
	}
	return r.pool
}

// Migrate создает схему журнала в одной транзакции
func (r *PostgresAuditStorage) Migrate(ctx context.Context) error {
	return r.tx.Do(ctx, func(ctx context.Context) error {
		exec := r.getExecutor(ctx)
		for _, stmt := range postgresMigrations {
			if _, err := exec.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply migration: %w", err)
			}
		}
		return nil
	})
}

// SaveEntry сохраняет запись журнала
func (r *PostgresAuditStorage) SaveEntry(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	fields, err := marshalFields(entry.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO editor.audit_entries (id, event_id, event_type, shop_id, record_id, session_id,
			section, item_id, fields, version, occurred_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err = r.getExecutor(ctx).Exec(ctx, query,
		entry.ID, entry.EventID, string(entry.Type), entry.ShopID, entry.RecordID, entry.SessionID,
		string(entry.Section), entry.ItemID, fields, entry.Version, entry.OccurredAt, entry.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to save audit entry: %w", err)
	}
	return nil
}

// ListEntries возвращает страницу журнала товара. Подсчет и выборка
// выполняются в одном снимке.
func (r *PostgresAuditStorage) ListEntries(ctx context.Context, shopID, recordID string, limit, offset int) ([]*models.AuditEntry, int64, error) {
	var (
		entries []*models.AuditEntry
		total   int64
	)
	err := r.tx.DoWith(ctx, tx.ReadSnapshot, func(ctx context.Context) error {
		var err error
		entries, total, err = r.listEntries(ctx, shopID, recordID, limit, offset)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *PostgresAuditStorage) listEntries(ctx context.Context, shopID, recordID string, limit, offset int) ([]*models.AuditEntry, int64, error) {
	exec := r.getExecutor(ctx)
	var total int64
	err := exec.QueryRow(ctx,
		`SELECT COUNT(*) FROM editor.audit_entries WHERE shop_id = $1 AND record_id = $2`,
		shopID, recordID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	rows, err := exec.Query(ctx, `
		SELECT id, event_id, event_type, shop_id, record_id, session_id, section, item_id,
			fields, version, occurred_at, recorded_at
		FROM editor.audit_entries
		WHERE shop_id = $1 AND record_id = $2
		ORDER BY occurred_at DESC
		LIMIT $3 OFFSET $4
	`, shopID, recordID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var (
			entry     models.AuditEntry
			eventType string
			section   string
			fields    []byte
		)
		if err := rows.Scan(&entry.ID, &entry.EventID, &eventType, &entry.ShopID, &entry.RecordID,
			&entry.SessionID, &section, &entry.ItemID, &fields, &entry.Version,
			&entry.OccurredAt, &entry.RecordedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit entry row: %w", err)
		}
		entry.Type = models.EventType(eventType)
		entry.Section = models.Section(section)
		if entry.Fields, err = unmarshalFields(fields); err != nil {
			return nil, 0, err
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error while iterating audit entry rows: %w", err)
	}

	return entries, total, nil
}
