package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS audit_entries (
		id          TEXT PRIMARY KEY,
		event_id    TEXT NOT NULL UNIQUE,
		event_type  TEXT NOT NULL,
		shop_id     TEXT NOT NULL,
		record_id   TEXT NOT NULL,
		session_id  TEXT NOT NULL,
		section     TEXT NOT NULL DEFAULT '',
		item_id     TEXT NOT NULL DEFAULT '',
		fields      TEXT,
		version     TEXT NOT NULL DEFAULT '',
		occurred_at INTEGER NOT NULL,
		recorded_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_entries_record_idx
		ON audit_entries (shop_id, record_id, occurred_at DESC)`,
}

// SQLiteAuditStorage журнал изменений в файле SQLite для одиночной установки
type SQLiteAuditStorage struct {
	db *sql.DB
}

// NewSQLiteAuditStorage открывает файл базы
func NewSQLiteAuditStorage(ctx context.Context, path string) (*SQLiteAuditStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLite допускает одного писателя
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return &SQLiteAuditStorage{db: db}, nil
}

func (s *SQLiteAuditStorage) Close() error {
	return s.db.Close()
}

// Migrate создает таблицы журнала
func (s *SQLiteAuditStorage) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range sqliteMigrations {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return tx.Commit()
}

// SaveEntry сохраняет запись журнала
func (s *SQLiteAuditStorage) SaveEntry(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	fields, err := marshalFields(entry.Fields)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, event_id, event_type, shop_id, record_id, session_id,
			section, item_id, fields, version, occurred_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING
	`, entry.ID, entry.EventID, string(entry.Type), entry.ShopID, entry.RecordID, entry.SessionID,
		string(entry.Section), entry.ItemID, nullableText(fields), entry.Version,
		entry.OccurredAt.UnixNano(), entry.RecordedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save audit entry: %w", err)
	}
	return nil
}

// ListEntries возвращает страницу журнала товара
func (s *SQLiteAuditStorage) ListEntries(ctx context.Context, shopID, recordID string, limit, offset int) ([]*models.AuditEntry, int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_entries WHERE shop_id = ? AND record_id = ?`,
		shopID, recordID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, event_type, shop_id, record_id, session_id, section, item_id,
			fields, version, occurred_at, recorded_at
		FROM audit_entries
		WHERE shop_id = ? AND record_id = ?
		ORDER BY occurred_at DESC
		LIMIT ? OFFSET ?
	`, shopID, recordID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var (
			entry      models.AuditEntry
			eventType  string
			section    string
			fields     sql.NullString
			occurredAt int64
			recordedAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.EventID, &eventType, &entry.ShopID, &entry.RecordID,
			&entry.SessionID, &section, &entry.ItemID, &fields, &entry.Version,
			&occurredAt, &recordedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit entry row: %w", err)
		}
		entry.Type = models.EventType(eventType)
		entry.Section = models.Section(section)
		entry.OccurredAt = time.Unix(0, occurredAt).UTC()
		entry.RecordedAt = time.Unix(0, recordedAt).UTC()
		if fields.Valid {
			if entry.Fields, err = unmarshalFields([]byte(fields.String)); err != nil {
				return nil, 0, err
			}
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error while iterating audit entry rows: %w", err)
	}

	return entries, total, nil
}

func nullableText(data []byte) sql.NullString {
	if data == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}
