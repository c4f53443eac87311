package services

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/athebyme/gomarket-admin/internal/adapters/cache"
	"github.com/athebyme/gomarket-admin/internal/adapters/logger"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/tracking"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/athebyme/gomarket-admin/pkg/utils"
	"github.com/stretchr/testify/require"
)

type patchCall struct {
	Section models.Section
	ItemID  string
	Version string
	Fields  models.Fields
}

// fakeResource каталог в памяти
type fakeResource struct {
	mu         sync.Mutex
	records    map[string]*models.Record
	patches    []patchCall
	uploads    [][]models.PendingFile
	calls      []string
	patchErr   error
	uploadErr  error
	uploadFail map[string]string

	// checkVersion включает проверку If-Match, как у настоящего каталога
	checkVersion bool

	// если block задан, Patch сообщает о входе в entered и ждет закрытия block
	block   chan struct{}
	entered chan struct{}
}

func newFakeResource(records ...*models.Record) *fakeResource {
	f := &fakeResource{records: map[string]*models.Record{}, uploadFail: map[string]string{}}
	for _, r := range records {
		f.records[r.ID] = r
	}
	return f
}

func (f *fakeResource) blockPatches() {
	f.block = make(chan struct{})
	f.entered = make(chan struct{}, 8)
}

func (f *fakeResource) wait() {
	if f.block == nil {
		return
	}
	f.entered <- struct{}{}
	<-f.block
}

func (f *fakeResource) Fetch(_ context.Context, _ string, id string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, &models.NotFoundError{RecordID: id}
	}
	return rec.Clone(), nil
}

func (f *fakeResource) Patch(_ context.Context, _ string, ref models.RecordRef, section models.Section, fields models.Fields) (*models.Record, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "patch:"+string(section))
	f.patches = append(f.patches, patchCall{Section: section, Version: ref.Version, Fields: fields.Clone()})
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	rec, ok := f.records[ref.ID]
	if !ok {
		return nil, &models.NotFoundError{RecordID: ref.ID}
	}
	if err := f.matchVersion(ref, rec); err != nil {
		return nil, err
	}
	sec := rec.Section(section)
	for k, v := range fields {
		if v == nil {
			delete(sec, k)
			continue
		}
		sec[k] = models.CloneValue(v)
	}
	f.bump(rec)
	return rec.Clone(), nil
}

func (f *fakeResource) PatchItem(_ context.Context, _ string, ref models.RecordRef, section models.Section, field, itemID string, item map[string]any) (*models.Record, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "patch_item:"+itemID)
	f.patches = append(f.patches, patchCall{Section: section, ItemID: itemID, Version: ref.Version, Fields: models.Fields{field: []any{models.CloneValue(item)}}})
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	rec, ok := f.records[ref.ID]
	if !ok {
		return nil, &models.NotFoundError{RecordID: ref.ID}
	}
	if err := f.matchVersion(ref, rec); err != nil {
		return nil, err
	}
	sec := rec.Section(section)
	list, _ := sec[field].([]any)
	if _, idx := tracking.FindItem(list, models.DefaultItemKey, itemID); idx >= 0 {
		list[idx] = models.CloneValue(item)
	} else {
		list = append(list, models.CloneValue(item))
	}
	sec[field] = list
	f.bump(rec)
	return rec.Clone(), nil
}

func (f *fakeResource) UploadFiles(_ context.Context, _ string, _ string, _ models.Section, files []models.PendingFile) ([]models.UploadedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "upload")
	f.uploads = append(f.uploads, files)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	out := make([]models.UploadedItem, 0, len(files))
	for _, file := range files {
		if msg, fail := f.uploadFail[file.Name]; fail {
			out = append(out, models.UploadedItem{LocalRef: file.LocalRef, Error: msg})
			continue
		}
		out = append(out, models.UploadedItem{LocalRef: file.LocalRef, ID: "m-" + file.Name, URL: "https://cdn/" + file.Name})
	}
	return out, nil
}

func (f *fakeResource) matchVersion(ref models.RecordRef, rec *models.Record) error {
	if f.checkVersion && ref.Version != rec.Version {
		return &models.ConflictError{RecordID: ref.ID, Message: "stale If-Match " + ref.Version + " vs " + rec.Version}
	}
	return nil
}

func (f *fakeResource) bump(rec *models.Record) {
	n, _ := strconv.Atoi(rec.Version)
	rec.Version = strconv.Itoa(n + 1)
}

func (f *fakeResource) patchCalls() []patchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]patchCall(nil), f.patches...)
}

func (f *fakeResource) setServerField(id string, section models.Section, field string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[id].Section(section)[field] = v
}

// fakeEvents брокер, запоминающий сообщения
type fakeEvents struct {
	mu       sync.Mutex
	messages []*interfaces.Message
}

func (f *fakeEvents) Publish(context.Context, string, []byte) error { return nil }

func (f *fakeEvents) PublishMessage(_ context.Context, msg *interfaces.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeEvents) Subscribe(context.Context, string, interfaces.MessageHandler) (func() error, error) {
	return func() error { return nil }, nil
}

func (f *fakeEvents) Close() error { return nil }

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	for i, m := range f.messages {
		out[i] = m.Headers["event_type"]
	}
	return out
}

// fakeNotifier запоминает уведомления
type fakeNotifier struct {
	mu     sync.Mutex
	notes  []models.Notification
	closed []string
}

func (f *fakeNotifier) CloseSession(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, sessionID)
}

func (f *fakeNotifier) closedSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.closed...)
}

func (f *fakeNotifier) Notify(_ context.Context, _ string, n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, n)
}

func (f *fakeNotifier) last() models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.notes) == 0 {
		return models.Notification{}
	}
	return f.notes[len(f.notes)-1]
}

type fakeAudit struct {
	entries []*models.AuditEntry
	total   int64
	limit   int
	offset  int
}

func (f *fakeAudit) ListEntries(_ context.Context, _ string, _ string, limit, offset int) ([]*models.AuditEntry, int64, error) {
	f.limit, f.offset = limit, offset
	return f.entries, f.total, nil
}

// fakeTree справочник: дочерние узлы по ID родителя
type fakeTree struct {
	children map[string][]models.TreeNode
}

func (f *fakeTree) ListChildren(_ context.Context, _ string, _ models.TreeKind, parentID string, page *utils.Pagination) (*models.TreePage, error) {
	nodes := f.children[parentID]
	start := min(page.GetOffset(), len(nodes))
	end := min(start+page.GetLimit(), len(nodes))
	return &models.TreePage{Items: nodes[start:end], Total: int64(len(nodes))}, nil
}

func productRecord() *models.Record {
	return &models.Record{
		ID:      "p1",
		Version: "1",
		Sections: map[models.Section]models.Fields{
			"basic": {
				"name":        "Chair",
				"description": "<p>Oak chair</p>",
			},
			"pricing": {
				"price":    100,
				"currency": "USD",
			},
			"media": {
				"images": []any{
					map[string]any{"id": "img-1", "url": "https://cdn/1.jpg"},
				},
			},
			"variants": {
				"items": []any{
					map[string]any{"id": "v1", "sku": "CH-1", "stock": 5},
					map[string]any{"id": "v2", "sku": "CH-2", "stock": 2},
				},
			},
		},
	}
}

type harness struct {
	svc    *EditorService
	res    *fakeResource
	events *fakeEvents
	notes  *fakeNotifier
	drafts interfaces.CachePort
}

func newHarness(t *testing.T, opts EditorOptions) *harness {
	t.Helper()
	return newHarnessWith(t, newFakeResource(productRecord()), cache.NewMemoryCache(time.Minute), opts)
}

func newHarnessWith(t *testing.T, res *fakeResource, drafts interfaces.CachePort, opts EditorOptions) *harness {
	t.Helper()
	log := logger.NewNopLogger()
	h := &harness{
		res:    res,
		events: &fakeEvents{},
		notes:  &fakeNotifier{},
		drafts: drafts,
	}
	h.svc = NewEditorService(EditorDeps{
		Engine:   tracking.NewEngine(models.DefaultSchema()),
		Client:   res,
		Registry: NewSessionRegistry(drafts, time.Hour, time.Minute, log),
		Notifier: h.notes,
		Events:   h.events,
		Logger:   log,
	}, opts)
	return h
}

func (h *harness) open(t *testing.T) string {
	t.Helper()
	view, err := h.svc.Open(context.Background(), "shop-1", "p1", "")
	require.NoError(t, err)
	return view.SessionID
}
