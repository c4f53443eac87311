// Package storage хранит журнал изменений товаров, сделанных через редактор.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
)

// Драйверы журнала
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// AuditRepository хранилище журнала изменений
type AuditRepository interface {
	// Migrate создает таблицы журнала, если их нет
	Migrate(ctx context.Context) error

	// SaveEntry сохраняет запись; повторная запись того же события игнорируется
	SaveEntry(ctx context.Context, entry *models.AuditEntry) error

	// ListEntries возвращает записи товара от новых к старым и общее их число
	ListEntries(ctx context.Context, shopID, recordID string, limit, offset int) ([]*models.AuditEntry, int64, error)

	Close() error
}

// Options параметры выбора и подключения хранилища
type Options struct {
	Driver      string
	PostgresDSN string
	MaxConns    int32
	SQLitePath  string
}

// NewAuditRepository открывает хранилище журнала по драйверу.
// Для драйвера "none" возвращает nil без ошибки.
func NewAuditRepository(ctx context.Context, opts Options, logger interfaces.LoggerPort) (AuditRepository, error) {
	switch opts.Driver {
	case DriverPostgres:
		repo, err := NewPostgresAuditStorage(ctx, opts.PostgresDSN, opts.MaxConns, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case DriverSQLite:
		repo, err := NewSQLiteAuditStorage(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case DriverNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown audit driver %q", opts.Driver)
	}
}

func marshalFields(fields models.Fields) ([]byte, error) {
	if fields == nil {
		return nil, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit fields: %w", err)
	}
	return data, nil
}

func unmarshalFields(data []byte) (models.Fields, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var fields models.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit fields: %w", err)
	}
	return fields, nil
}
