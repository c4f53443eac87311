package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/athebyme/gomarket-admin/internal/domain/guard"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/tracking"
)

// saveScope область сохранения: вся секция или один элемент keyed_list
type saveScope struct {
	section models.Section
	field   string
	itemID  string
}

func (s saveScope) whole() bool { return s.itemID == "" }

// overlaps сообщает, пересекаются ли две области сохранения
func (s saveScope) overlaps(o saveScope) bool {
	if s.section != o.section {
		return false
	}
	if s.whole() || o.whole() {
		return true
	}
	return s.field == o.field && s.itemID == o.itemID
}

func (s saveScope) String() string {
	if s.whole() {
		return string(s.section)
	}
	return fmt.Sprintf("%s.%s[%s]", s.section, s.field, s.itemID)
}

// Session состояние редактирования одного товара.
// Все поля защищены mu; сетевые вызовы выполняются без блокировки.
// send упорядочивает PATCH-запросы сессии: каждый следующий запрос
// отправляет версию, полученную от сервера предыдущим.
type Session struct {
	mu   sync.Mutex
	send sync.Mutex

	id       string
	shopID   string
	recordID string

	working  *models.Record
	baseline *tracking.Snapshot
	dirty    []models.Section
	guard    *guard.Guard

	inFlight map[saveScope]struct{}
	staged   map[string]models.PendingFile
	closed   bool

	openedAt  time.Time
	updatedAt time.Time
}

func newSession(id, shopID string, working *models.Record, baseline *tracking.Snapshot, g *guard.Guard, now time.Time) *Session {
	return &Session{
		id:        id,
		shopID:    shopID,
		recordID:  working.ID,
		working:   working,
		baseline:  baseline,
		guard:     g,
		inFlight:  make(map[saveScope]struct{}),
		staged:    make(map[string]models.PendingFile),
		openedAt:  now,
		updatedAt: now,
	}
}

// ID идентификатор сессии
func (s *Session) ID() string { return s.id }

// reserve занимает область сохранения; false, если пересекающееся
// сохранение уже выполняется
func (s *Session) reserve(scope saveScope) bool {
	for busy := range s.inFlight {
		if busy.overlaps(scope) {
			return false
		}
	}
	s.inFlight[scope] = struct{}{}
	return true
}

func (s *Session) release(scope saveScope) {
	s.mu.Lock()
	delete(s.inFlight, scope)
	s.mu.Unlock()
}

// refresh пересчитывает грязные секции после любого изменения
func (s *Session) refresh(engine *tracking.Engine, now time.Time) {
	s.dirty = engine.DirtySections(s.working, s.baseline)
	s.updatedAt = now
}

func (s *Session) isDirty() bool { return len(s.dirty) > 0 }

func (s *Session) sectionDirty(section models.Section) bool {
	for _, d := range s.dirty {
		if d == section {
			return true
		}
	}
	return false
}

// pruneStaged удаляет файлы, на которые больше не ссылается рабочая копия
func (s *Session) pruneStaged() {
	if len(s.staged) == 0 {
		return
	}
	referenced := make(map[string]bool, len(s.staged))
	for _, fields := range s.working.Sections {
		var items []map[string]any
		for _, v := range fields {
			collectLocal(v, &items)
		}
		for _, item := range items {
			ref, _ := models.LocalRef(item)
			referenced[ref] = true
		}
	}
	for ref := range s.staged {
		if !referenced[ref] {
			delete(s.staged, ref)
		}
	}
}

// dropUnpersisted убирает из рабочей копии все незагруженные элементы
func (s *Session) dropUnpersisted() {
	for section, fields := range s.working.Sections {
		for name, v := range fields {
			if !hasUnpersisted(v) {
				continue
			}
			if stripped := stripUnpersisted(v); stripped != nil {
				fields[name] = stripped
			} else {
				delete(fields, name)
			}
		}
		s.working.Sections[section] = fields
	}
	s.staged = make(map[string]models.PendingFile)
}

// SavingScope выполняющееся сохранение
type SavingScope struct {
	Section models.Section `json:"section"`
	Field   string         `json:"field,omitempty"`
	ItemID  string         `json:"item_id,omitempty"`
}

// SessionView состояние сессии для клиента
type SessionView struct {
	SessionID          string                           `json:"session_id"`
	ShopID             string                           `json:"shop_id"`
	RecordID           string                           `json:"record_id"`
	Version            string                           `json:"version"`
	ActiveTab          models.Section                   `json:"active_tab"`
	TabQuery           string                           `json:"tab_query"`
	Dirty              bool                             `json:"dirty"`
	DirtySections      []models.Section                 `json:"dirty_sections"`
	Saving             []SavingScope                    `json:"saving"`
	GuardState         guard.State                      `json:"guard_state"`
	PendingIntent      *guard.Intent                    `json:"pending_intent,omitempty"`
	UnloadConfirmation bool                             `json:"unload_confirmation"`
	StagedUploads      int                              `json:"staged_uploads"`
	Sections           map[models.Section]models.Fields `json:"sections"`
	Closed             bool                             `json:"closed"`
	OpenedAt           time.Time                        `json:"opened_at"`
	UpdatedAt          time.Time                        `json:"updated_at"`
}

// view снимает состояние; вызывается под mu
func (s *Session) view() *SessionView {
	v := &SessionView{
		SessionID:          s.id,
		ShopID:             s.shopID,
		RecordID:           s.recordID,
		Version:            s.baseline.Version(),
		ActiveTab:          s.guard.ActiveTab(),
		TabQuery:           "tab=" + string(s.guard.ActiveTab()),
		Dirty:              s.isDirty(),
		DirtySections:      append([]models.Section{}, s.dirty...),
		Saving:             make([]SavingScope, 0, len(s.inFlight)),
		GuardState:         s.guard.State(),
		UnloadConfirmation: guard.UnloadConfirmationRequired(s.isDirty()),
		StagedUploads:      len(s.staged),
		Sections:           make(map[models.Section]models.Fields, len(s.working.Sections)),
		Closed:             s.closed,
		OpenedAt:           s.openedAt,
		UpdatedAt:          s.updatedAt,
	}
	if intent, ok := s.guard.Pending(); ok {
		v.PendingIntent = &intent
	}
	for scope := range s.inFlight {
		v.Saving = append(v.Saving, SavingScope{Section: scope.section, Field: scope.field, ItemID: scope.itemID})
	}
	sort.Slice(v.Saving, func(i, j int) bool {
		if v.Saving[i].Section != v.Saving[j].Section {
			return v.Saving[i].Section < v.Saving[j].Section
		}
		return v.Saving[i].ItemID < v.Saving[j].ItemID
	})
	for name, fields := range s.working.Sections {
		v.Sections[name] = fields.Clone()
	}
	return v
}

// draft снимает состояние для сохранения черновика; вызывается под mu
func (s *Session) draft() *draftState {
	staged := make([]models.PendingFile, 0, len(s.staged))
	for _, f := range s.staged {
		staged = append(staged, f)
	}
	sort.Slice(staged, func(i, j int) bool { return staged[i].LocalRef < staged[j].LocalRef })
	return &draftState{
		ID:        s.id,
		ShopID:    s.shopID,
		RecordID:  s.recordID,
		ActiveTab: s.guard.ActiveTab(),
		Working:   s.working.Clone(),
		Baseline:  s.baseline.Record(),
		Staged:    staged,
		OpenedAt:  s.openedAt,
	}
}
