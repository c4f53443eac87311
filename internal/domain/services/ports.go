package services

import (
	"context"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/pkg/utils"
)

// ResourceClient операции каталога, нужные редактору товара
type ResourceClient interface {
	Fetch(ctx context.Context, shopID, id string) (*models.Record, error)
	Patch(ctx context.Context, shopID string, ref models.RecordRef, section models.Section, fields models.Fields) (*models.Record, error)
	PatchItem(ctx context.Context, shopID string, ref models.RecordRef, section models.Section, field, itemID string, item map[string]any) (*models.Record, error)
	UploadFiles(ctx context.Context, shopID, recordID string, section models.Section, files []models.PendingFile) ([]models.UploadedItem, error)
}

// TreeClient постраничная загрузка справочников
type TreeClient interface {
	ListChildren(ctx context.Context, shopID string, kind models.TreeKind, parentID string, page *utils.Pagination) (*models.TreePage, error)
}

// AuditReader чтение журнала изменений
type AuditReader interface {
	ListEntries(ctx context.Context, shopID, recordID string, limit, offset int) ([]*models.AuditEntry, int64, error)
}

// SessionCloser отключает получателей уведомлений закрытой сессии
type SessionCloser interface {
	CloseSession(sessionID string)
}
