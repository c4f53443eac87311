package services

import (
	"context"
	"testing"
	"time"

	"github.com/athebyme/gomarket-admin/internal/adapters/logger"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/navigator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBrowserService() *BrowserService {
	tree := &fakeTree{children: map[string][]models.TreeNode{
		"": {
			{ID: "c1", Name: "Furniture", HasChildren: true},
			{ID: "c2", Name: "Lighting"},
		},
		"c1": {
			{ID: "c11", Name: "Chairs", ParentID: "c1"},
			{ID: "c12", Name: "Tables", ParentID: "c1"},
			{ID: "c13", Name: "Sofas", ParentID: "c1"},
		},
	}}
	return NewBrowserService(tree, time.Minute, 2, logger.NewNopLogger())
}

func TestBrowserDrillAndJumpBack(t *testing.T) {
	svc := newBrowserService()
	ctx := context.Background()

	view, err := svc.Open(ctx, "shop-1", models.TreeCategories)
	require.NoError(t, err)
	assert.Equal(t, []navigator.Crumb{{Name: "All categories"}}, view.Trail)
	assert.Len(t, view.Children, 2)
	assert.Equal(t, navigator.ModalNone, view.Modal.Kind)

	view, err = svc.Drill(ctx, view.BrowserID, navigator.Crumb{ID: "c1", Name: "Furniture"})
	require.NoError(t, err)
	assert.Equal(t, "c1", view.Current.ID)
	assert.Len(t, view.Trail, 2)
	assert.Equal(t, []string{"c11", "c12"}, nodeIDs(view.Children))
	assert.True(t, view.Pagination.HasNext)

	view, err = svc.SetPage(ctx, view.BrowserID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c13"}, nodeIDs(view.Children))

	view, err = svc.JumpTo(ctx, view.BrowserID, 0)
	require.NoError(t, err)
	assert.Equal(t, "", view.Current.ID)
	assert.Equal(t, 1, view.Pagination.Page)

	_, err = svc.JumpTo(ctx, view.BrowserID, 3)
	assert.ErrorIs(t, err, navigator.ErrCrumbIndex)
}

func TestBrowserClampsPageBeyondTotal(t *testing.T) {
	svc := newBrowserService()
	ctx := context.Background()

	view, err := svc.Open(ctx, "shop-1", models.TreeCategories)
	require.NoError(t, err)
	view, err = svc.Drill(ctx, view.BrowserID, navigator.Crumb{ID: "c1", Name: "Furniture"})
	require.NoError(t, err)

	view, err = svc.SetPage(ctx, view.BrowserID, 9)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Pagination.Page)
	assert.Equal(t, []string{"c13"}, nodeIDs(view.Children))
}

func TestBrowserModal(t *testing.T) {
	svc := newBrowserService()
	ctx := context.Background()

	view, err := svc.Open(ctx, "shop-1", models.TreeBrands)
	require.NoError(t, err)
	assert.Equal(t, "All brands", view.Trail[0].Name)

	node := models.TreeNode{ID: "c2", Name: "Lighting"}
	view, err = svc.OpenModal(ctx, view.BrowserID, navigator.ModalConfirmDelete, node)
	require.NoError(t, err)
	assert.Equal(t, navigator.ModalConfirmDelete, view.Modal.Kind)
	require.NotNil(t, view.Modal.Node)
	assert.Equal(t, "c2", view.Modal.Node.ID)

	view, err = svc.CloseModal(ctx, view.BrowserID)
	require.NoError(t, err)
	assert.Equal(t, navigator.ModalNone, view.Modal.Kind)
}

func TestBrowserErrors(t *testing.T) {
	svc := newBrowserService()
	ctx := context.Background()

	_, err := svc.Open(ctx, "shop-1", "tags")
	assert.ErrorIs(t, err, ErrInvalidTreeKind)

	_, err = svc.Open(ctx, "", models.TreeBrands)
	assert.ErrorIs(t, err, models.ErrMissingShopID)

	_, err = svc.View(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrBrowserNotFound)

	view, err := svc.Open(ctx, "shop-1", models.TreeCategories)
	require.NoError(t, err)
	_, err = svc.Drill(ctx, view.BrowserID, navigator.Crumb{Name: "no id"})
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, err = svc.SetPage(ctx, view.BrowserID, 0)
	assert.ErrorIs(t, err, navigator.ErrInvalidPage)
}

func nodeIDs(nodes []models.TreeNode) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
