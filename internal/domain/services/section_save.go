package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/tracking"
	"github.com/athebyme/gomarket-admin/internal/metrics"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"golang.org/x/sync/errgroup"
)

// SaveStatus итог сохранения
type SaveStatus string

const (
	SaveStatusSaved         SaveStatus = "saved"
	SaveStatusNothingToSave SaveStatus = "nothing_to_save"
)

// SaveResult результат сохранения секции или элемента
type SaveResult struct {
	Status         SaveStatus             `json:"status"`
	Section        models.Section         `json:"section"`
	Field          string                 `json:"field,omitempty"`
	ItemID         string                 `json:"item_id,omitempty"`
	Saved          models.Fields          `json:"saved,omitempty"`
	Version        string                 `json:"version"`
	UploadFailures []models.UploadFailure `json:"upload_failures,omitempty"`
	Session        *SessionView           `json:"session"`
}

// Save сохраняет изменения секции. Незагруженные файлы секции загружаются
// до отправки полей. Если часть файлов не загрузилась, остальные поля все
// равно сохраняются, а вызывающий получает результат вместе с
// *models.UploadPartialFailure.
func (s *EditorService) Save(ctx context.Context, sessionID string, section models.Section) (*SaveResult, error) {
	if _, ok := s.engine.Schema().Section(section); !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownSection, section)
	}
	return s.save(ctx, sessionID, saveScope{section: section})
}

// SaveItem сохраняет один элемент keyed_list, например вариант товара.
// Сохранения разных элементов одного списка могут идти параллельно,
// сохранение всей секции с ними конфликтует.
func (s *EditorService) SaveItem(ctx context.Context, sessionID string, section models.Section, field, itemID string) (*SaveResult, error) {
	spec, ok := s.engine.Schema().Field(section, field)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", models.ErrUnknownField, section, field)
	}
	if spec.Kind != models.KindKeyedList {
		return nil, fmt.Errorf("%w: %s.%s is not a keyed list", models.ErrUnknownField, section, field)
	}
	if itemID == "" {
		return nil, fmt.Errorf("%w: empty id", models.ErrItemNotFound)
	}
	return s.save(ctx, sessionID, saveScope{section: section, field: field, itemID: itemID})
}

func (s *EditorService) save(ctx context.Context, sessionID string, scope saveScope) (*SaveResult, error) {
	start := s.now()
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, models.ErrSessionClosed
	}
	if !sess.reserve(scope) {
		sess.mu.Unlock()
		metrics.SectionSaves.WithLabelValues(string(scope.section), metrics.OutcomeBusy).Inc()
		return nil, fmt.Errorf("%w: %s", models.ErrSaveInProgress, scope)
	}
	pending := sess.pendingUploads(scope, s.itemKey(scope))
	sess.mu.Unlock()
	defer sess.release(scope)

	// Отключение клиента не прерывает начатое сохранение
	ctx = context.WithoutCancel(ctx)
	defer func() {
		metrics.SectionSaveDuration.WithLabelValues(string(scope.section)).Observe(s.now().Sub(start).Seconds())
	}()

	var partial *models.UploadPartialFailure
	if len(pending) > 0 {
		partial, err = s.uploadPending(ctx, sess, scope, pending)
		if err != nil {
			s.reportSaveError(ctx, sess, scope, err)
			return nil, err
		}
	}

	// Версия читается под send, после ответа на предыдущий PATCH
	sess.send.Lock()
	unlockSend := sync.OnceFunc(sess.send.Unlock)
	defer unlockSend()

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, models.ErrSessionClosed
	}
	payload, err := s.payload(sess, scope)
	ref := models.RecordRef{ID: sess.recordID, Version: sess.baseline.Version()}
	shopID := sess.shopID
	sess.mu.Unlock()
	if err != nil {
		return nil, err
	}

	result := &SaveResult{
		Section: scope.section,
		Field:   scope.field,
		ItemID:  scope.itemID,
	}
	if partial != nil {
		result.UploadFailures = partial.Failed
	}

	if len(payload) == 0 {
		sess.mu.Lock()
		result.Status = SaveStatusNothingToSave
		result.Version = sess.baseline.Version()
		result.Session = sess.view()
		draft := sess.draft()
		sess.mu.Unlock()
		s.registry.SaveDraft(ctx, draft)

		if partial != nil {
			s.reportPartial(ctx, sess, partial)
			return result, partial
		}
		metrics.SectionSaves.WithLabelValues(string(scope.section), metrics.OutcomeNothingToSave).Inc()
		return result, nil
	}

	updated, err := s.send(ctx, shopID, ref, scope, payload)
	if err != nil {
		s.reportSaveError(ctx, sess, scope, err)
		return nil, err
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		s.logger.InfoWithContext(ctx, "Сессия закрыта во время сохранения, результат отброшен",
			interfaces.LogField{Key: "session_id", Value: sess.id},
			interfaces.LogField{Key: "scope", Value: scope.String()},
		)
		return nil, models.ErrSessionClosed
	}
	s.applySaved(sess, scope, payload, updated)
	result.Status = SaveStatusSaved
	result.Saved = payload
	result.Version = updated.Version
	result.Session = sess.view()
	draft := sess.draft()
	sess.mu.Unlock()
	unlockSend()

	s.registry.SaveDraft(ctx, draft)
	s.publish(ctx, sess, models.EventSectionSaved, scope, payload, updated.Version)

	s.logger.InfoWithContext(ctx, "Секция сохранена",
		interfaces.LogField{Key: "session_id", Value: sess.id},
		interfaces.LogField{Key: "record_id", Value: ref.ID},
		interfaces.LogField{Key: "scope", Value: scope.String()},
		interfaces.LogField{Key: "version", Value: updated.Version},
	)

	if partial != nil {
		s.reportPartial(ctx, sess, partial)
		return result, partial
	}
	metrics.SectionSaves.WithLabelValues(string(scope.section), metrics.OutcomeSaved).Inc()
	s.notify(ctx, sess, models.Notification{
		Title:   "Changes saved",
		Variant: models.VariantSuccess,
		Section: scope.section,
	})
	return result, nil
}

func (s *EditorService) send(ctx context.Context, shopID string, ref models.RecordRef, scope saveScope, payload models.Fields) (*models.Record, error) {
	if scope.whole() {
		return s.client.Patch(ctx, shopID, ref, scope.section, payload)
	}
	var item map[string]any
	if list, ok := payload[scope.field].([]any); ok && len(list) == 1 {
		item, _ = list[0].(map[string]any)
	}
	return s.client.PatchItem(ctx, shopID, ref, scope.section, scope.field, scope.itemID, item)
}

func (s *EditorService) itemKey(scope saveScope) string {
	if scope.whole() {
		return ""
	}
	spec, _ := s.engine.Schema().Field(scope.section, scope.field)
	return spec.ItemKey()
}

// payload строит тело запроса: изменившиеся поля без незагруженных файлов.
// Вызывается под mu.
func (s *EditorService) payload(sess *Session, scope saveScope) (models.Fields, error) {
	if scope.whole() {
		diff := s.engine.SectionDiff(scope.section, sess.working, sess.baseline)
		out := make(models.Fields, len(diff))
		for name, v := range diff {
			stripped := stripUnpersisted(v)
			if tracking.Equal(stripped, sess.baseline.Value(scope.section, name)) {
				continue
			}
			out[name] = stripped
		}
		return out, nil
	}

	item, _, err := s.engine.ItemDiff(scope.section, scope.field, scope.itemID, sess.working, sess.baseline)
	if err != nil {
		return nil, err
	}
	spec, _ := s.engine.Schema().Field(scope.section, scope.field)
	saved, _ := tracking.FindItem(sess.baseline.Value(scope.section, scope.field), spec.ItemKey(), scope.itemID)
	stripped := stripUnpersisted(item)
	if tracking.Equal(stripped, asValue(saved)) {
		return models.Fields{}, nil
	}
	return models.Fields{scope.field: []any{stripped}}, nil
}

// asValue не дает nil map превратиться в непустой интерфейс
func asValue(item map[string]any) any {
	if item == nil {
		return nil
	}
	return item
}

// applySaved применяет ответ сервера к снимку и рабочей копии.
// Снимок получает серверное значение отправленных полей. Рабочая копия
// принимает серверное значение, только если поле не менялось с момента
// отправки, иначе правки пользователя сохраняются и поле остается грязным.
// Вызывается под mu.
func (s *EditorService) applySaved(sess *Session, scope saveScope, payload models.Fields, updated *models.Record) {
	server := s.engine.NormalizeFields(scope.section, updated.Sections[scope.section])
	if scope.whole() {
		s.applySection(sess, scope.section, payload, server, updated.Version)
	} else {
		s.applyItem(sess, scope, payload, server, updated.Version)
	}
	sess.working.Version = updated.Version
	sess.pruneStaged()
	sess.refresh(s.engine, s.now())
}

func (s *EditorService) applySection(sess *Session, section models.Section, payload, server models.Fields, version string) {
	spec, _ := s.engine.Schema().Section(section)
	working := sess.working.Section(section)
	rebased := models.Fields{}

	for _, f := range spec.Fields {
		current, _ := s.engine.NormalizeValue(section, f.Name, working[f.Name])
		serverValue := server[f.Name]

		if sent, ok := payload[f.Name]; ok {
			rebased[f.Name] = serverValue
			if tracking.Equal(stripUnpersisted(current), sent) {
				setField(working, f.Name, reinsertUnpersisted(serverValue, current))
			}
			continue
		}
		if tracking.Equal(current, sess.baseline.Value(section, f.Name)) {
			rebased[f.Name] = serverValue
			setField(working, f.Name, models.CloneValue(serverValue))
		}
	}
	sess.baseline = s.engine.Rebaseline(sess.baseline, section, rebased, version)
}

func (s *EditorService) applyItem(sess *Session, scope saveScope, payload, server models.Fields, version string) {
	spec, _ := s.engine.Schema().Field(scope.section, scope.field)
	key := spec.ItemKey()

	var sent any
	if list, ok := payload[scope.field].([]any); ok && len(list) == 1 {
		sent = list[0]
	}
	serverItem, _ := tracking.FindItem(server[scope.field], key, scope.itemID)

	baseList, _ := sess.baseline.Value(scope.section, scope.field).([]any)
	sess.baseline = s.engine.Rebaseline(sess.baseline, scope.section,
		models.Fields{scope.field: replaceItem(baseList, key, scope.itemID, serverItem)}, version)

	working := sess.working.Section(scope.section)
	current, _ := s.engine.NormalizeValue(scope.section, scope.field, working[scope.field])
	workList, _ := current.([]any)
	workItem, idx := tracking.FindItem(workList, key, scope.itemID)
	if workItem == nil || serverItem == nil {
		return
	}
	if tracking.Equal(stripUnpersisted(workItem), sent) {
		merged := mergeNestedUnpersisted(serverItem, []any{workItem})
		workList[idx] = merged
		setField(working, scope.field, workList)
	}
}

// replaceItem возвращает копию списка, в которой элемент с ключом id
// заменен на item; отсутствующий элемент добавляется, nil удаляет элемент
func replaceItem(list []any, key, id string, item map[string]any) []any {
	out := slices.Clone(list)
	_, idx := tracking.FindItem(out, key, id)
	switch {
	case idx >= 0 && item == nil:
		out = slices.Delete(out, idx, idx+1)
	case idx >= 0:
		out[idx] = models.CloneValue(item)
	case item != nil:
		out = append(out, models.CloneValue(item))
	}
	return out
}

// saveAll сохраняет все грязные секции параллельно и возвращает
// объединенную ошибку всех неудачных сохранений. Ошибка одной секции не
// прерывает сохранение остальных.
func (s *EditorService) saveAll(ctx context.Context, sess *Session) error {
	sess.mu.Lock()
	sections := append([]models.Section(nil), sess.dirty...)
	sess.mu.Unlock()

	var g errgroup.Group
	errs := make([]error, len(sections))
	for i, section := range sections {
		g.Go(func() error {
			if _, err := s.save(ctx, sess.id, saveScope{section: section}); err != nil {
				errs[i] = fmt.Errorf("section %s: %w", section, err)
			}
			return errs[i]
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Join(errs...)
	}
	return nil
}

// reportSaveError уведомляет пользователя о неудачном сохранении.
// Рабочая копия остается нетронутой, кроме случая удаленного товара,
// когда сессия закрывается.
func (s *EditorService) reportSaveError(ctx context.Context, sess *Session, scope saveScope, err error) {
	var (
		validation *models.ValidationError
		conflict   *models.ConflictError
		notFound   *models.NotFoundError
		transient  *models.TransientError
	)
	n := models.Notification{Variant: models.VariantDestructive, Section: scope.section}
	outcome := metrics.OutcomeError

	switch {
	case errors.As(err, &validation):
		outcome = metrics.OutcomeValidation
		n.Title = "Changes were not saved"
		n.Description = validation.Message
		n.FieldErrors = validation.FieldErrors
	case errors.As(err, &conflict):
		outcome = metrics.OutcomeConflict
		n.Title = "This product was changed elsewhere"
		n.Description = "Reload to get the latest version. Unsaved changes will be lost."
		n.Action = "reload"
	case errors.As(err, &notFound):
		outcome = metrics.OutcomeNotFound
		n.Title = "This product no longer exists"
		n.Description = "The editor will be closed."
		n.Action = "leave"
	case errors.As(err, &transient):
		outcome = metrics.OutcomeTransient
		n.Title = "Could not reach the catalog"
		n.Description = "Your changes are kept. Try saving again."
	default:
		n.Title = "Save failed"
		n.Description = err.Error()
	}
	metrics.SectionSaves.WithLabelValues(string(scope.section), outcome).Inc()

	s.logger.WarnWithContext(ctx, "Не удалось сохранить секцию",
		interfaces.LogField{Key: "session_id", Value: sess.id},
		interfaces.LogField{Key: "scope", Value: scope.String()},
		interfaces.LogField{Key: "outcome", Value: outcome},
		interfaces.LogField{Key: "error", Value: err.Error()},
	)
	s.notify(ctx, sess, n)

	if models.IsFatal(err) {
		s.closeSession(ctx, sess)
	}
}

func (s *EditorService) reportPartial(ctx context.Context, sess *Session, partial *models.UploadPartialFailure) {
	metrics.SectionSaves.WithLabelValues(string(partial.Section), metrics.OutcomePartial).Inc()
	names := make(map[string]string, len(partial.Failed))
	for _, f := range partial.Failed {
		names[f.Name] = f.Message
	}
	s.notify(ctx, sess, models.Notification{
		Title:       "Some files were not uploaded",
		Description: partial.Error(),
		Variant:     models.VariantDestructive,
		Section:     partial.Section,
		FieldErrors: names,
	})
}
