package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-admin/internal/adapters/messaging"
	"github.com/athebyme/gomarket-admin/internal/adapters/notify"
	"github.com/athebyme/gomarket-admin/internal/domain/guard"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/tracking"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/athebyme/gomarket-admin/pkg/utils"
	"github.com/google/uuid"
)

// DiscardMode поведение решения "не сохранять"
type DiscardMode string

const (
	// DiscardRebaseline текущее состояние считается сохраненным
	DiscardRebaseline DiscardMode = "rebaseline"
	// DiscardRevert рабочая копия возвращается к снимку
	DiscardRevert DiscardMode = "revert"
)

// ParseDiscardMode разбирает режим из конфигурации
func ParseDiscardMode(raw string) (DiscardMode, error) {
	switch m := DiscardMode(raw); m {
	case "":
		return DiscardRebaseline, nil
	case DiscardRebaseline, DiscardRevert:
		return m, nil
	default:
		return "", fmt.Errorf("unknown discard mode %q", raw)
	}
}

// EditorOptions настройки редактора
type EditorOptions struct {
	DiscardMode    DiscardMode
	EventsTopic    string
	MaxUploadBytes int64
	// ListPath адрес списка товаров, куда уходит пользователь после закрытия
	ListPath string
}

// EditorDeps зависимости сервиса редактора. Events, Audit и Notifier
// необязательны.
type EditorDeps struct {
	Engine   *tracking.Engine
	Client   ResourceClient
	Registry *SessionRegistry
	Notifier notify.Notifier
	Events   interfaces.MessagingPort
	Audit    AuditReader
	Logger   interfaces.LoggerPort
}

// EditorServiceInterface операции редактора, доступные HTTP слою
type EditorServiceInterface interface {
	Open(ctx context.Context, shopID, recordID, tab string) (*SessionView, error)
	Get(ctx context.Context, sessionID string) (*SessionView, error)
	Close(ctx context.Context, sessionID string) error
	Edit(ctx context.Context, sessionID string, section models.Section, fields models.Fields) (*EditResult, error)
	Preview(ctx context.Context, sessionID string, section models.Section) ([]tracking.FieldChange, error)
	Save(ctx context.Context, sessionID string, section models.Section) (*SaveResult, error)
	SaveItem(ctx context.Context, sessionID string, section models.Section, field, itemID string) (*SaveResult, error)
	StageUploads(ctx context.Context, sessionID string, section models.Section, target UploadTarget, files []UploadInput) (*UploadStageResult, error)
	RemoveUpload(ctx context.Context, sessionID string, section models.Section, localRef string) (*SessionView, error)
	Navigate(ctx context.Context, sessionID string, intent guard.Intent) (*NavigationResult, error)
	Resolve(ctx context.Context, sessionID string, decision guard.Decision) (*NavigationResult, error)
	UnloadConfirmation(ctx context.Context, sessionID string) (bool, error)
	History(ctx context.Context, shopID, recordID string, page *utils.Pagination) (*utils.PagedResult, error)
}

// EditorService управляет сессиями редактирования товаров: отслеживает
// несохраненные изменения, сохраняет секции и охраняет навигацию
type EditorService struct {
	engine   *tracking.Engine
	client   ResourceClient
	registry *SessionRegistry
	notifier notify.Notifier
	events   interfaces.MessagingPort
	audit    AuditReader
	logger   interfaces.LoggerPort
	opts     EditorOptions
	now      func() time.Time
}

// NewEditorService создает сервис редактора
func NewEditorService(deps EditorDeps, opts EditorOptions) *EditorService {
	if opts.DiscardMode == "" {
		opts.DiscardMode = DiscardRebaseline
	}
	if opts.EventsTopic == "" {
		opts.EventsTopic = messaging.DefaultEditorEventsTopic
	}
	if opts.ListPath == "" {
		opts.ListPath = "/products"
	}
	n := deps.Notifier
	if n == nil {
		n = notify.NewLogNotifier(deps.Logger)
	}
	// Подписчики уведомлений отключаются при любой выгрузке сессии
	if closer, ok := n.(SessionCloser); ok {
		deps.Registry.OnEvict(closer.CloseSession)
	}
	return &EditorService{
		engine:   deps.Engine,
		client:   deps.Client,
		registry: deps.Registry,
		notifier: n,
		events:   deps.Events,
		audit:    deps.Audit,
		logger:   deps.Logger,
		opts:     opts,
		now:      time.Now,
	}
}

// Open загружает товар и открывает для него сессию редактора
func (s *EditorService) Open(ctx context.Context, shopID, recordID, tab string) (*SessionView, error) {
	if shopID == "" {
		return nil, models.ErrMissingShopID
	}
	record, err := s.client.Fetch(ctx, shopID, recordID)
	if err != nil {
		return nil, err
	}

	working := s.engine.Normalize(record)
	baseline := s.engine.CaptureBaseline(working)
	g := guard.New(s.engine.Schema().Names(), models.Section(tab))
	sess := newSession(uuid.New().String(), shopID, working, baseline, g, s.now())
	s.registry.Add(sess)

	sess.mu.Lock()
	view, draft := sess.view(), sess.draft()
	sess.mu.Unlock()
	s.registry.SaveDraft(ctx, draft)

	s.logger.WithSession(sess.id).InfoWithContext(ctx, "Открыта сессия редактора",
		interfaces.LogField{Key: "record_id", Value: recordID},
		interfaces.LogField{Key: "version", Value: record.Version},
	)
	return view, nil
}

// Get возвращает состояние сессии
func (s *EditorService) Get(ctx context.Context, sessionID string) (*SessionView, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Close закрывает сессию. Результаты незавершенных сохранений будут отброшены.
func (s *EditorService) Close(ctx context.Context, sessionID string) error {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return err
	}
	s.closeSession(ctx, sess)
	return nil
}

func (s *EditorService) closeSession(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	sess.closed = true
	sess.mu.Unlock()

	s.registry.Remove(ctx, sess.id)
	s.logger.InfoWithContext(ctx, "Сессия редактора закрыта",
		interfaces.LogField{Key: "session_id", Value: sess.id},
	)
}

// EditResult результат применения правок
type EditResult struct {
	Session *SessionView `json:"session"`
	Ignored []string     `json:"ignored,omitempty"`
}

// Edit применяет правки полей к рабочей копии секции. Поля вне схемы
// пропускаются и перечисляются в Ignored.
func (s *EditorService) Edit(ctx context.Context, sessionID string, section models.Section, fields models.Fields) (*EditResult, error) {
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
	var ignored []string
	current := sess.working.Section(section)
	for name, raw := range fields {
		v, ok := s.engine.NormalizeValue(section, name, raw)
		if !ok {
			ignored = append(ignored, name)
			continue
		}
		setField(current, name, v)
	}
	sess.pruneStaged()
	sess.refresh(s.engine, s.now())
	view, draft := sess.view(), sess.draft()
	sess.mu.Unlock()

	s.registry.SaveDraft(ctx, draft)
	return &EditResult{Session: view, Ignored: ignored}, nil
}

// Preview показывает отличия рабочей копии секции от сохраненного состояния
func (s *EditorService) Preview(ctx context.Context, sessionID string, section models.Section) ([]tracking.FieldChange, error) {
	if _, ok := s.engine.Schema().Section(section); !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownSection, section)
	}
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.engine.Preview(section, sess.working, sess.baseline), nil
}

// UnloadConfirmation сообщает, нужно ли подтверждать закрытие страницы
func (s *EditorService) UnloadConfirmation(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return false, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return guard.UnloadConfirmationRequired(sess.isDirty()), nil
}

// History возвращает журнал изменений товара
func (s *EditorService) History(ctx context.Context, shopID, recordID string, page *utils.Pagination) (*utils.PagedResult, error) {
	if s.audit == nil {
		return nil, models.ErrHistoryDisabled
	}
	if shopID == "" {
		return nil, models.ErrMissingShopID
	}
	entries, total, err := s.audit.ListEntries(ctx, shopID, recordID, page.GetLimit(), page.GetOffset())
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	page.SetTotal(total)
	return utils.NewPagedResult(entries, page), nil
}

// session находит открытую сессию, при необходимости восстанавливая ее
func (s *EditorService) session(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, models.ErrSessionNotFound
	}
	sess, err := s.registry.Resume(ctx, id, s.engine, s.now())
	if err != nil {
		if !errors.Is(err, models.ErrSessionNotFound) {
			s.logger.ErrorWithContext(ctx, "Не удалось восстановить сессию",
				interfaces.LogField{Key: "session_id", Value: id},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
		return nil, err
	}
	return sess, nil
}

// publish отправляет событие редактора; ошибка не влияет на операцию
func (s *EditorService) publish(ctx context.Context, sess *Session, eventType models.EventType, scope saveScope, fields models.Fields, version string) {
	if s.events == nil {
		return
	}
	event := &models.EditorEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		SessionID:  sess.id,
		ShopID:     sess.shopID,
		RecordID:   sess.recordID,
		Section:    scope.section,
		ItemID:     scope.itemID,
		Fields:     fields,
		Version:    version,
		OccurredAt: s.now(),
	}
	msg, err := messaging.EncodeEditorEvent(s.opts.EventsTopic, event)
	if err == nil {
		err = s.events.PublishMessage(ctx, msg)
	}
	if err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось опубликовать событие редактора",
			interfaces.LogField{Key: "event_type", Value: string(eventType)},
			interfaces.LogField{Key: "record_id", Value: sess.recordID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}

func (s *EditorService) notify(ctx context.Context, sess *Session, n models.Notification) {
	n.CreatedAt = s.now()
	s.notifier.Notify(ctx, sess.id, n)
}

func setField(fields models.Fields, name string, v any) {
	if v == nil {
		delete(fields, name)
		return
	}
	fields[name] = v
}
