package services

import (
	"context"
	"testing"
	"time"

	"github.com/athebyme/gomarket-admin/internal/adapters/logger"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/tracking"
	"github.com/athebyme/gomarket-admin/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCapturesCleanBaseline(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()

	view, err := h.svc.Open(ctx, "shop-1", "p1", "pricing")
	require.NoError(t, err)
	assert.Equal(t, models.Section("pricing"), view.ActiveTab)
	assert.Equal(t, "tab=pricing", view.TabQuery)
	assert.Equal(t, "1", view.Version)
	assert.False(t, view.Dirty)
	assert.Empty(t, view.DirtySections)
	assert.False(t, view.UnloadConfirmation)
	assert.Equal(t, 100.0, view.Sections["pricing"]["price"])

	view, err = h.svc.Open(ctx, "shop-1", "p1", "unknown")
	require.NoError(t, err)
	assert.Equal(t, models.Section("basic"), view.ActiveTab)
}

func TestOpenErrors(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()

	_, err := h.svc.Open(ctx, "", "p1", "")
	assert.ErrorIs(t, err, models.ErrMissingShopID)

	_, err = h.svc.Open(ctx, "shop-1", "missing", "")
	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = h.svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestEditMarksSectionDirtyAndRevertingClearsIt(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	res, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": "120", "bogus": 1})
	require.NoError(t, err)
	assert.True(t, res.Session.Dirty)
	assert.Equal(t, []models.Section{"pricing"}, res.Session.DirtySections)
	assert.True(t, res.Session.UnloadConfirmation)
	assert.Equal(t, []string{"bogus"}, res.Ignored)

	unload, err := h.svc.UnloadConfirmation(ctx, sid)
	require.NoError(t, err)
	assert.True(t, unload)

	res, err = h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 100})
	require.NoError(t, err)
	assert.False(t, res.Session.Dirty)

	_, err = h.svc.Edit(ctx, sid, "unknown", models.Fields{"x": 1})
	assert.ErrorIs(t, err, models.ErrUnknownSection)
}

func TestPreviewListsChangedFields(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "basic", models.Fields{"name": "Oak chair"})
	require.NoError(t, err)

	changes, err := h.svc.Preview(ctx, sid, "basic")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "name", changes[0].Field)
	assert.Equal(t, "Chair", changes[0].From)
	assert.Equal(t, "Oak chair", changes[0].To)
}

func TestSaveSendsDiffAndRebaselines(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)

	res, err := h.svc.Save(ctx, sid, "pricing")
	require.NoError(t, err)
	assert.Equal(t, SaveStatusSaved, res.Status)
	assert.Equal(t, "2", res.Version)
	assert.Equal(t, models.Fields{"price": 120.0}, res.Saved)
	assert.False(t, res.Session.Dirty)
	assert.Equal(t, "2", res.Session.Version)

	calls := h.res.patchCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.Fields{"price": 120.0}, calls[0].Fields)

	assert.Equal(t, []string{"section_saved"}, h.events.types())
	assert.Equal(t, models.VariantSuccess, h.notes.last().Variant)
}

func TestSaveOneSectionKeepsOtherDirty(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "basic", models.Fields{"name": "Stool"})
	require.NoError(t, err)
	_, err = h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)

	res, err := h.svc.Save(ctx, sid, "pricing")
	require.NoError(t, err)
	assert.Equal(t, SaveStatusSaved, res.Status)
	assert.True(t, res.Session.Dirty)
	assert.Equal(t, []models.Section{"basic"}, res.Session.DirtySections)
	assert.Equal(t, "Stool", res.Session.Sections["basic"]["name"])

	calls := h.res.patchCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.Fields{"price": 120.0}, calls[0].Fields)

	res, err = h.svc.Save(ctx, sid, "basic")
	require.NoError(t, err)
	assert.False(t, res.Session.Dirty)
}

func TestSaveCleanSectionIsNothingToSave(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	sid := h.open(t)

	res, err := h.svc.Save(context.Background(), sid, "pricing")
	require.NoError(t, err)
	assert.Equal(t, SaveStatusNothingToSave, res.Status)
	assert.Empty(t, h.res.patchCalls())
	assert.Empty(t, h.events.types())
}

func TestSaveSendsClearedFieldAsNull(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"currency": "  "})
	require.NoError(t, err)

	res, err := h.svc.Save(ctx, sid, "pricing")
	require.NoError(t, err)
	assert.False(t, res.Session.Dirty)

	calls := h.res.patchCalls()
	require.Len(t, calls, 1)
	v, present := calls[0].Fields["currency"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestSaveRefreshesCleanFieldsFromServer(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)
	h.res.setServerField("p1", "pricing", "currency", "EUR")

	res, err := h.svc.Save(ctx, sid, "pricing")
	require.NoError(t, err)
	assert.False(t, res.Session.Dirty)
	assert.Equal(t, "EUR", res.Session.Sections["pricing"]["currency"])
}

func TestSecondSaveOfSameSectionIsRejected(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)
	h.res.blockPatches()

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Save(ctx, sid, "pricing")
		done <- err
	}()
	<-h.res.entered

	view, err := h.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, []SavingScope{{Section: "pricing"}}, view.Saving)

	_, err = h.svc.Save(ctx, sid, "pricing")
	assert.ErrorIs(t, err, models.ErrSaveInProgress)

	close(h.res.block)
	require.NoError(t, <-done)
	assert.Len(t, h.res.patchCalls(), 1)
}

func TestEditDuringSaveKeepsNewerValue(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)
	h.res.blockPatches()

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Save(ctx, sid, "pricing")
		done <- err
	}()
	<-h.res.entered

	_, err = h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 130})
	require.NoError(t, err)
	close(h.res.block)
	require.NoError(t, <-done)

	view, err := h.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 130.0, view.Sections["pricing"]["price"])
	assert.Equal(t, []models.Section{"pricing"}, view.DirtySections)

	h.res.block = nil
	res, err := h.svc.Save(ctx, sid, "pricing")
	require.NoError(t, err)
	assert.False(t, res.Session.Dirty)
	calls := h.res.patchCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, models.Fields{"price": 130.0}, calls[1].Fields)
}

func TestSaveValidationErrorKeepsChanges(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)
	h.res.patchErr = &models.ValidationError{
		Section:     "pricing",
		Message:     "invalid pricing",
		FieldErrors: map[string]string{"price": "must be positive"},
	}

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": -1})
	require.NoError(t, err)

	_, err = h.svc.Save(ctx, sid, "pricing")
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)

	view, err := h.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, -1.0, view.Sections["pricing"]["price"])
	assert.Equal(t, []models.Section{"pricing"}, view.DirtySections)

	note := h.notes.last()
	assert.Equal(t, models.VariantDestructive, note.Variant)
	assert.Equal(t, "must be positive", note.FieldErrors["price"])
}

func TestSaveConflictSuggestsReload(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)
	h.res.patchErr = &models.ConflictError{RecordID: "p1"}

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)

	_, err = h.svc.Save(ctx, sid, "pricing")
	var conflict *models.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "reload", h.notes.last().Action)

	view, err := h.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.True(t, view.Dirty)
}

func TestSaveOfDeletedRecordClosesSession(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)
	delete(h.res.records, "p1")

	_, err = h.svc.Save(ctx, sid, "pricing")
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = h.svc.Get(ctx, sid)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestCloseDuringSaveDiscardsResult(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)
	h.res.blockPatches()

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Save(ctx, sid, "pricing")
		done <- err
	}()
	<-h.res.entered

	require.NoError(t, h.svc.Close(ctx, sid))
	close(h.res.block)
	assert.ErrorIs(t, <-done, models.ErrSessionClosed)
	assert.Empty(t, h.events.types())
}

func TestSaveItemSendsOnlyThatItem(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "variants", models.Fields{"items": []any{
		map[string]any{"id": "v1", "sku": "CH-1", "stock": 9},
		map[string]any{"id": "v2", "sku": "CH-2", "stock": 4},
	}})
	require.NoError(t, err)

	res, err := h.svc.SaveItem(ctx, sid, "variants", "items", "v1")
	require.NoError(t, err)
	assert.Equal(t, SaveStatusSaved, res.Status)
	assert.Equal(t, []models.Section{"variants"}, res.Session.DirtySections)

	calls := h.res.patchCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "v1", calls[0].ItemID)
	assert.Equal(t, models.Fields{"items": []any{
		map[string]any{"id": "v1", "sku": "CH-1", "stock": 9.0},
	}}, calls[0].Fields)

	res, err = h.svc.SaveItem(ctx, sid, "variants", "items", "v2")
	require.NoError(t, err)
	assert.False(t, res.Session.Dirty)

	res, err = h.svc.SaveItem(ctx, sid, "variants", "items", "v2")
	require.NoError(t, err)
	assert.Equal(t, SaveStatusNothingToSave, res.Status)
}

func TestSaveItemOverlapsSectionSave(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)
	h.res.blockPatches()

	_, err := h.svc.Edit(ctx, sid, "variants", models.Fields{"items": []any{
		map[string]any{"id": "v1", "sku": "CH-1", "stock": 9},
		map[string]any{"id": "v2", "sku": "CH-2", "stock": 2},
	}})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Save(ctx, sid, "variants")
		done <- err
	}()
	<-h.res.entered

	_, err = h.svc.SaveItem(ctx, sid, "variants", "items", "v1")
	assert.ErrorIs(t, err, models.ErrSaveInProgress)

	close(h.res.block)
	require.NoError(t, <-done)
}

func TestSaveItemValidatesTarget(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.SaveItem(ctx, sid, "pricing", "price", "x")
	assert.ErrorIs(t, err, models.ErrUnknownField)

	_, err = h.svc.SaveItem(ctx, sid, "variants", "items", "v9")
	assert.ErrorIs(t, err, models.ErrItemNotFound)
}

func TestSessionResumesFromDraft(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)

	restarted := newHarnessWith(t, h.res, h.drafts, EditorOptions{})
	view, err := restarted.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, []models.Section{"pricing"}, view.DirtySections)
	assert.Equal(t, 120.0, view.Sections["pricing"]["price"])

	require.NoError(t, restarted.svc.Close(ctx, sid))
	_, err = newHarnessWith(t, h.res, h.drafts, EditorOptions{}).svc.Get(ctx, sid)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	sid := h.open(t)

	require.NoError(t, h.svc.Close(context.Background(), sid))
	assert.Equal(t, []string{sid}, h.notes.closedSessions())
}

func TestExpiredSessionDisconnectsSubscribers(t *testing.T) {
	log := logger.NewNopLogger()
	notes := &fakeNotifier{}
	svc := NewEditorService(EditorDeps{
		Engine:   tracking.NewEngine(models.DefaultSchema()),
		Client:   newFakeResource(productRecord()),
		Registry: NewSessionRegistry(nil, 20*time.Millisecond, 5*time.Millisecond, log),
		Notifier: notes,
		Events:   &fakeEvents{},
		Logger:   log,
	}, EditorOptions{})

	view, err := svc.Open(context.Background(), "shop-1", "p1", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(notes.closedSessions()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, view.SessionID, notes.closedSessions()[0])

	_, err = svc.Get(context.Background(), view.SessionID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestHistory(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()

	_, err := h.svc.History(ctx, "shop-1", "p1", utils.NewPagination(1, 10))
	assert.ErrorIs(t, err, models.ErrHistoryDisabled)

	audit := &fakeAudit{
		entries: []*models.AuditEntry{{ID: "a1"}, {ID: "a2"}},
		total:   12,
	}
	h.svc.audit = audit
	res, err := h.svc.History(ctx, "shop-1", "p1", utils.NewPagination(2, 10))
	require.NoError(t, err)
	assert.Equal(t, 10, audit.limit)
	assert.Equal(t, 10, audit.offset)
	assert.Equal(t, 2, res.Pagination.TotalPages)
	assert.False(t, res.Pagination.HasNext)
	assert.True(t, res.Pagination.HasPrev)
}

func TestParseDiscardMode(t *testing.T) {
	mode, err := ParseDiscardMode("")
	require.NoError(t, err)
	assert.Equal(t, DiscardRebaseline, mode)

	mode, err = ParseDiscardMode("revert")
	require.NoError(t, err)
	assert.Equal(t, DiscardRevert, mode)

	_, err = ParseDiscardMode("forget")
	assert.Error(t, err)
}
