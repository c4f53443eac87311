package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/athebyme/gomarket-admin/internal/domain/guard"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/tracking"
	"github.com/athebyme/gomarket-admin/internal/metrics"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const draftKeyPrefix = "editor:session:"

// draftState сериализуемое состояние сессии
type draftState struct {
	ID        string               `json:"id"`
	ShopID    string               `json:"shop_id"`
	RecordID  string               `json:"record_id"`
	ActiveTab models.Section       `json:"active_tab"`
	Working   *models.Record       `json:"working"`
	Baseline  *models.Record       `json:"baseline"`
	Staged    []models.PendingFile `json:"staged,omitempty"`
	OpenedAt  time.Time            `json:"opened_at"`
}

// SessionRegistry хранит открытые сессии в памяти процесса и их черновики
// в кэше, чтобы сессию можно было восстановить после перезапуска
type SessionRegistry struct {
	live   *gocache.Cache
	drafts interfaces.CachePort
	ttl    time.Duration
	resume singleflight.Group
	logger interfaces.LoggerPort

	onEvict atomic.Pointer[func(id string)]
}

// NewSessionRegistry создает реестр. Сессии без обращений дольше ttl
// закрываются; drafts может быть nil.
func NewSessionRegistry(drafts interfaces.CachePort, ttl, cleanupInterval time.Duration, logger interfaces.LoggerPort) *SessionRegistry {
	r := &SessionRegistry{
		live:   gocache.New(ttl, cleanupInterval),
		drafts: drafts,
		ttl:    ttl,
		logger: logger,
	}
	r.live.OnEvicted(func(id string, v interface{}) {
		sess, ok := v.(*Session)
		if !ok {
			return
		}
		sess.mu.Lock()
		sess.closed = true
		sess.mu.Unlock()
		metrics.OpenSessions.Dec()
		if fn := r.onEvict.Load(); fn != nil {
			(*fn)(id)
		}
		logger.Debug("Сессия редактора выгружена", interfaces.LogField{Key: "session_id", Value: id})
	})
	return r
}

// OnEvict задает функцию, вызываемую при выгрузке сессии из памяти:
// по истечении ttl или при закрытии
func (r *SessionRegistry) OnEvict(fn func(id string)) {
	r.onEvict.Store(&fn)
}

// Add регистрирует новую сессию
func (r *SessionRegistry) Add(sess *Session) {
	r.live.SetDefault(sess.id, sess)
	metrics.OpenSessions.Inc()
}

// Get возвращает сессию из памяти и продлевает срок ее жизни
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	v, ok := r.live.Get(id)
	if !ok {
		return nil, false
	}
	sess := v.(*Session)
	r.live.SetDefault(id, sess)
	return sess, true
}

// Resume возвращает сессию из памяти или восстанавливает ее из черновика
func (r *SessionRegistry) Resume(ctx context.Context, id string, engine *tracking.Engine, now time.Time) (*Session, error) {
	if sess, ok := r.Get(id); ok {
		return sess, nil
	}
	if r.drafts == nil {
		return nil, models.ErrSessionNotFound
	}

	v, err, _ := r.resume.Do(id, func() (interface{}, error) {
		if sess, ok := r.Get(id); ok {
			return sess, nil
		}
		draft, err := r.loadDraft(ctx, id)
		if err != nil {
			return nil, err
		}
		sess := restoreSession(draft, engine, now)
		r.Add(sess)
		r.logger.InfoWithContext(ctx, "Сессия редактора восстановлена из черновика",
			interfaces.LogField{Key: "session_id", Value: id},
			interfaces.LogField{Key: "record_id", Value: sess.recordID},
		)
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Remove закрывает сессию и удаляет ее черновик
func (r *SessionRegistry) Remove(ctx context.Context, id string) {
	r.live.Delete(id)
	if r.drafts == nil {
		return
	}
	if err := r.drafts.Delete(ctx, draftKeyPrefix+id); err != nil {
		r.logger.WarnWithContext(ctx, "Не удалось удалить черновик сессии",
			interfaces.LogField{Key: "session_id", Value: id},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}

// Len количество сессий в памяти
func (r *SessionRegistry) Len() int {
	return r.live.ItemCount()
}

// SaveDraft сохраняет черновик сессии. Ошибка только логируется:
// сессия в памяти остается источником истины.
func (r *SessionRegistry) SaveDraft(ctx context.Context, draft *draftState) {
	if r.drafts == nil || draft == nil {
		return
	}
	data, err := json.Marshal(draft)
	if err != nil {
		r.logger.ErrorWithContext(ctx, "Не удалось сериализовать черновик сессии",
			interfaces.LogField{Key: "session_id", Value: draft.ID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return
	}
	if err := r.drafts.Set(ctx, draftKeyPrefix+draft.ID, data, r.ttl); err != nil {
		metrics.CacheOperations.WithLabelValues("set_draft", "error").Inc()
		r.logger.WarnWithContext(ctx, "Не удалось сохранить черновик сессии",
			interfaces.LogField{Key: "session_id", Value: draft.ID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return
	}
	metrics.CacheOperations.WithLabelValues("set_draft", "success").Inc()
}

func (r *SessionRegistry) loadDraft(ctx context.Context, id string) (*draftState, error) {
	data, err := r.drafts.Get(ctx, draftKeyPrefix+id)
	if errors.Is(err, interfaces.ErrCacheMiss) {
		metrics.CacheOperations.WithLabelValues("get_draft", "miss").Inc()
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		metrics.CacheOperations.WithLabelValues("get_draft", "error").Inc()
		return nil, fmt.Errorf("failed to load session draft: %w", err)
	}
	metrics.CacheOperations.WithLabelValues("get_draft", "hit").Inc()

	var draft draftState
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode session draft: %w", err)
	}
	if draft.Working == nil || draft.Baseline == nil {
		return nil, fmt.Errorf("session draft %s is incomplete", id)
	}
	return &draft, nil
}

func restoreSession(draft *draftState, engine *tracking.Engine, now time.Time) *Session {
	working := engine.Normalize(draft.Working)
	baseline := engine.CaptureBaseline(engine.Normalize(draft.Baseline))
	g := guard.New(engine.Schema().Names(), draft.ActiveTab)

	sess := newSession(draft.ID, draft.ShopID, working, baseline, g, now)
	sess.openedAt = draft.OpenedAt
	for _, f := range draft.Staged {
		sess.staged[f.LocalRef] = f
	}
	sess.pruneStaged()
	sess.refresh(engine, now)
	return sess
}
