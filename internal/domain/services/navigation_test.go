package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/athebyme/gomarket-admin/internal/domain/guard"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigateProceedsWhenClean(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	res, err := h.svc.Navigate(ctx, sid, guard.Intent{Kind: guard.IntentSwitchTab, Tab: "media"})
	require.NoError(t, err)
	assert.True(t, res.Outcome.Proceed)
	assert.Equal(t, guard.ActionSwitchTab, res.Outcome.Action)
	assert.Equal(t, models.Section("media"), res.Session.ActiveTab)
	assert.Equal(t, "tab=media", res.Session.TabQuery)

	_, err = h.svc.Navigate(ctx, sid, guard.Intent{Kind: guard.IntentSwitchTab, Tab: "nope"})
	assert.ErrorIs(t, err, guard.ErrInvalidIntent)
}

func TestNavigateInterceptsWhenDirty(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)

	res, err := h.svc.Navigate(ctx, sid, guard.Intent{Kind: guard.IntentLeave})
	require.NoError(t, err)
	assert.True(t, res.Outcome.Intercepted)
	assert.False(t, res.Outcome.Proceed)
	assert.Equal(t, guard.StateInterceptedPendingDecision, res.Session.GuardState)
	require.NotNil(t, res.Session.PendingIntent)
	assert.Equal(t, guard.IntentLeave, res.Session.PendingIntent.Kind)
	assert.Empty(t, res.Redirect)
}

func TestResolveCancelStaysOnPage(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)
	_, err = h.svc.Navigate(ctx, sid, guard.Intent{Kind: guard.IntentSwitchTab, Tab: "media"})
	require.NoError(t, err)

	res, err := h.svc.Resolve(ctx, sid, guard.DecisionCancel)
	require.NoError(t, err)
	assert.Equal(t, guard.ActionNone, res.Outcome.Action)
	assert.Equal(t, guard.StateIdle, res.Session.GuardState)
	assert.Equal(t, models.Section("basic"), res.Session.ActiveTab)
	assert.True(t, res.Session.Dirty)

	_, err = h.svc.Resolve(ctx, sid, guard.DecisionCancel)
	assert.ErrorIs(t, err, guard.ErrNoPendingIntent)
}

func TestResolveDiscardRebaselinesByDefault(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)
	_, err = h.svc.StageUploads(ctx, sid, "media", UploadTarget{Field: "images"}, []UploadInput{jpeg("a.jpg")})
	require.NoError(t, err)
	_, err = h.svc.Navigate(ctx, sid, guard.Intent{Kind: guard.IntentSwitchTab, Tab: "media"})
	require.NoError(t, err)

	res, err := h.svc.Resolve(ctx, sid, guard.DecisionDiscard)
	require.NoError(t, err)
	assert.Equal(t, guard.ActionSwitchTab, res.Outcome.Action)
	assert.Equal(t, models.Section("media"), res.Session.ActiveTab)
	assert.False(t, res.Session.Dirty)
	assert.Equal(t, 120.0, res.Session.Sections["pricing"]["price"])
	assert.Len(t, res.Session.Sections["media"]["images"], 1)
	assert.Zero(t, res.Session.StagedUploads)
	assert.Empty(t, h.res.patchCalls())
	assert.Equal(t, []string{"changes_discarded"}, h.events.types())
}

func TestResolveDiscardRevertRestoresBaseline(t *testing.T) {
	h := newHarness(t, EditorOptions{DiscardMode: DiscardRevert})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)
	_, err = h.svc.Navigate(ctx, sid, guard.Intent{Kind: guard.IntentBack})
	require.NoError(t, err)

	res, err := h.svc.Resolve(ctx, sid, guard.DecisionDiscard)
	require.NoError(t, err)
	assert.Equal(t, guard.ActionBack, res.Outcome.Action)
	assert.False(t, res.Session.Dirty)
	assert.Equal(t, 100.0, res.Session.Sections["pricing"]["price"])
}

func TestResolveSaveSavesEveryDirtySection(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)
	_, err = h.svc.Edit(ctx, sid, "basic", models.Fields{"name": "Stool"})
	require.NoError(t, err)
	_, err = h.svc.Navigate(ctx, sid, guard.Intent{Kind: guard.IntentSwitchTab, Tab: "details"})
	require.NoError(t, err)

	res, err := h.svc.Resolve(ctx, sid, guard.DecisionSave)
	require.NoError(t, err)
	assert.Equal(t, guard.ActionSwitchTab, res.Outcome.Action)
	assert.Equal(t, models.Section("details"), res.Session.ActiveTab)
	assert.False(t, res.Session.Dirty)

	sections := map[models.Section]bool{}
	for _, c := range h.res.patchCalls() {
		sections[c.Section] = true
	}
	assert.Equal(t, map[models.Section]bool{"pricing": true, "basic": true}, sections)
}

func TestResolveSaveSendsLatestVersion(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)
	h.res.checkVersion = true
	h.res.blockPatches()

	_, err := h.svc.Edit(ctx, sid, "basic", models.Fields{"name": "Stool"})
	require.NoError(t, err)
	_, err = h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)
	_, err = h.svc.Navigate(ctx, sid, guard.Intent{Kind: guard.IntentSwitchTab, Tab: "media"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Resolve(ctx, sid, guard.DecisionSave)
		done <- err
	}()
	<-h.res.entered

	select {
	case <-h.res.entered:
		t.Fatal("second PATCH started before the first one returned")
	case <-time.After(50 * time.Millisecond):
	}

	close(h.res.block)
	require.NoError(t, <-done)

	calls := h.res.patchCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "1", calls[0].Version)
	assert.Equal(t, "2", calls[1].Version)

	view, err := h.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.False(t, view.Dirty)
	assert.Equal(t, "3", view.Version)
	assert.Equal(t, models.Section("media"), view.ActiveTab)
}

func TestResolveSaveFailureKeepsIntentPending(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)
	h.res.patchErr = &models.TransientError{StatusCode: 502, Err: errors.New("bad gateway")}

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)
	_, err = h.svc.Navigate(ctx, sid, guard.Intent{Kind: guard.IntentLeave})
	require.NoError(t, err)

	_, err = h.svc.Resolve(ctx, sid, guard.DecisionSave)
	var transient *models.TransientError
	require.ErrorAs(t, err, &transient)

	view, err := h.svc.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, guard.StateInterceptedPendingDecision, view.GuardState)
	require.NotNil(t, view.PendingIntent)
	assert.Equal(t, guard.IntentLeave, view.PendingIntent.Kind)
	assert.True(t, view.Dirty)
}

func TestLeaveClosesSession(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	res, err := h.svc.Navigate(ctx, sid, guard.Intent{Kind: guard.IntentLeave})
	require.NoError(t, err)
	assert.Equal(t, guard.ActionLeave, res.Outcome.Action)
	assert.Equal(t, "/products", res.Redirect)
	assert.True(t, res.Session.Closed)

	_, err = h.svc.Get(ctx, sid)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestReloadReplacesWorkingCopy(t *testing.T) {
	h := newHarness(t, EditorOptions{})
	ctx := context.Background()
	sid := h.open(t)

	_, err := h.svc.Edit(ctx, sid, "pricing", models.Fields{"price": 120})
	require.NoError(t, err)
	h.res.setServerField("p1", "basic", "name", "Stool")

	res, err := h.svc.Navigate(ctx, sid, guard.Intent{Kind: guard.IntentReload})
	require.NoError(t, err)
	require.True(t, res.Outcome.Intercepted)

	res, err = h.svc.Resolve(ctx, sid, guard.DecisionDiscard)
	require.NoError(t, err)
	assert.Equal(t, guard.ActionReload, res.Outcome.Action)
	assert.False(t, res.Session.Dirty)
	assert.Equal(t, "Stool", res.Session.Sections["basic"]["name"])
	assert.Equal(t, 100.0, res.Session.Sections["pricing"]["price"])
	assert.Equal(t, []string{"changes_discarded", "record_reloaded"}, h.events.types())
}
