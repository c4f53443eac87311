package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/tracking"
	"github.com/athebyme/gomarket-admin/internal/metrics"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/google/uuid"
)

// UploadTarget медиа-поле, в которое добавляются файлы: поле секции или
// поле элемента keyed_list
type UploadTarget struct {
	Field     string `json:"field"`
	ItemID    string `json:"item_id,omitempty"`
	ItemField string `json:"item_field,omitempty"`
}

// UploadInput файл, выбранный пользователем
type UploadInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadStageResult результат добавления файлов
type UploadStageResult struct {
	LocalRefs []string     `json:"local_refs"`
	Session   *SessionView `json:"session"`
}

// StageUploads добавляет выбранные файлы в рабочую копию как незагруженные
// элементы. Файлы отправляются на сервер при сохранении секции.
func (s *EditorService) StageUploads(ctx context.Context, sessionID string, section models.Section, target UploadTarget, files []UploadInput) (*UploadStageResult, error) {
	if len(files) == 0 {
		return nil, models.ErrEmptyUpload
	}
	if err := s.validateTarget(section, target); err != nil {
		return nil, err
	}
	for _, f := range files {
		if len(f.Data) == 0 {
			return nil, &models.ValidationError{Section: section, Message: "empty file", FieldErrors: map[string]string{target.Field: f.Name + " is empty"}}
		}
		if s.opts.MaxUploadBytes > 0 && int64(len(f.Data)) > s.opts.MaxUploadBytes {
			return nil, &models.ValidationError{Section: section, Message: "file is too large",
				FieldErrors: map[string]string{target.Field: fmt.Sprintf("%s exceeds %d bytes", f.Name, s.opts.MaxUploadBytes)}}
		}
	}

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, models.ErrSessionClosed
	}
	list, err := s.targetList(sess, section, target)
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	refs := make([]string, 0, len(files))
	for _, f := range files {
		pf := models.PendingFile{
			LocalRef:    uuid.New().String(),
			Name:        f.Name,
			ContentType: f.ContentType,
			Data:        f.Data,
		}
		sess.staged[pf.LocalRef] = pf
		list = append(list, models.NewPendingItem(pf))
		refs = append(refs, pf.LocalRef)
	}
	s.setTargetList(sess, section, target, list)
	sess.refresh(s.engine, s.now())
	view, draft := sess.view(), sess.draft()
	sess.mu.Unlock()

	s.registry.SaveDraft(ctx, draft)
	metrics.Uploads.WithLabelValues("staged").Add(float64(len(files)))
	return &UploadStageResult{LocalRefs: refs, Session: view}, nil
}

// RemoveUpload убирает незагруженный файл из рабочей копии
func (s *EditorService) RemoveUpload(ctx context.Context, sessionID string, section models.Section, localRef string) (*SessionView, error) {
	if _, ok := s.engine.Schema().Section(section); !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownSection, section)
	}
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, models.ErrSessionClosed
	}
	removed := false
	fields := sess.working.Section(section)
	for name, v := range fields {
		nv, ok := removeLocal(v, localRef)
		if !ok {
			continue
		}
		setField(fields, name, nv)
		removed = true
		break
	}
	if !removed {
		sess.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", models.ErrUploadNotFound, localRef)
	}
	delete(sess.staged, localRef)
	sess.refresh(s.engine, s.now())
	view, draft := sess.view(), sess.draft()
	sess.mu.Unlock()

	s.registry.SaveDraft(ctx, draft)
	return view, nil
}

func (s *EditorService) validateTarget(section models.Section, target UploadTarget) error {
	spec, ok := s.engine.Schema().Field(section, target.Field)
	if !ok {
		return fmt.Errorf("%w: %s.%s", models.ErrUnknownField, section, target.Field)
	}
	if target.ItemID == "" {
		if spec.Kind != models.KindMediaList {
			return fmt.Errorf("%w: %s.%s", models.ErrNotMediaField, section, target.Field)
		}
		return nil
	}
	if spec.Kind != models.KindKeyedList {
		return fmt.Errorf("%w: %s.%s is not a keyed list", models.ErrUnknownField, section, target.Field)
	}
	itemSpec, ok := spec.ItemField(target.ItemField)
	if !ok || itemSpec.Kind != models.KindMediaList {
		return fmt.Errorf("%w: %s.%s.%s", models.ErrNotMediaField, section, target.Field, target.ItemField)
	}
	return nil
}

// targetList возвращает текущий медиа-список цели; вызывается под mu
func (s *EditorService) targetList(sess *Session, section models.Section, target UploadTarget) ([]any, error) {
	fields := sess.working.Section(section)
	if target.ItemID == "" {
		list, _ := fields[target.Field].([]any)
		return list, nil
	}
	spec, _ := s.engine.Schema().Field(section, target.Field)
	item, _ := tracking.FindItem(fields[target.Field], spec.ItemKey(), target.ItemID)
	if item == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrItemNotFound, target.ItemID)
	}
	list, _ := item[target.ItemField].([]any)
	return list, nil
}

func (s *EditorService) setTargetList(sess *Session, section models.Section, target UploadTarget, list []any) {
	fields := sess.working.Section(section)
	if target.ItemID == "" {
		fields[target.Field] = list
		return
	}
	spec, _ := s.engine.Schema().Field(section, target.Field)
	if item, _ := tracking.FindItem(fields[target.Field], spec.ItemKey(), target.ItemID); item != nil {
		item[target.ItemField] = list
	}
}

// pendingUploads собирает файлы области сохранения, которые еще нужно
// загрузить, включая ранее не загрузившиеся. Вызывается под mu.
func (s *Session) pendingUploads(scope saveScope, itemKey string) []models.PendingFile {
	var items []map[string]any
	fields := s.working.Sections[scope.section]
	if scope.whole() {
		for _, v := range fields {
			collectLocal(v, &items)
		}
	} else if item, _ := tracking.FindItem(fields[scope.field], itemKey, scope.itemID); item != nil {
		collectLocal(item, &items)
	}

	files := make([]models.PendingFile, 0, len(items))
	for _, item := range items {
		ref, _ := models.LocalRef(item)
		if f, ok := s.staged[ref]; ok {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].LocalRef < files[j].LocalRef })
	return files
}

// uploadPending загружает файлы и отражает результат в рабочей копии:
// успешные элементы становятся сохраненными, неудачные помечаются ошибкой.
// Ошибка запроса целиком возвращается как есть, рабочая копия не меняется.
func (s *EditorService) uploadPending(ctx context.Context, sess *Session, scope saveScope, files []models.PendingFile) (*models.UploadPartialFailure, error) {
	uploaded, err := s.client.UploadFiles(ctx, sess.shopID, sess.recordID, scope.section, files)
	if err != nil {
		metrics.Uploads.WithLabelValues(metrics.OutcomeError).Add(float64(len(files)))
		return nil, err
	}

	names := make(map[string]string, len(files))
	for _, f := range files {
		names[f.LocalRef] = f.Name
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	partial := &models.UploadPartialFailure{Section: scope.section}
	fields := sess.working.Section(scope.section)
	for _, result := range uploaded {
		msg := result.Error
		if msg == "" {
			msg = "upload failed"
		}
		found := false
		for _, v := range fields {
			found = replaceLocal(v, result.LocalRef, func(pending map[string]any) map[string]any {
				if result.Failed() {
					return models.FailedItem(pending, msg)
				}
				return models.PersistedItem(pending, result)
			})
			if found {
				break
			}
		}
		if !found {
			s.logger.WarnWithContext(ctx, "Загруженный файл больше не используется в рабочей копии",
				interfaces.LogField{Key: "session_id", Value: sess.id},
				interfaces.LogField{Key: "local_ref", Value: result.LocalRef},
				interfaces.LogField{Key: "media_id", Value: result.ID},
			)
			continue
		}
		if result.Failed() {
			partial.Failed = append(partial.Failed, models.UploadFailure{
				LocalRef: result.LocalRef,
				Name:     names[result.LocalRef],
				Message:  msg,
			})
			metrics.Uploads.WithLabelValues(metrics.OutcomeError).Inc()
			continue
		}
		delete(sess.staged, result.LocalRef)
		partial.Persisted++
		metrics.Uploads.WithLabelValues(metrics.OutcomeOK).Inc()
	}
	sess.refresh(s.engine, s.now())

	if len(partial.Failed) == 0 {
		return nil, nil
	}
	return partial, nil
}
