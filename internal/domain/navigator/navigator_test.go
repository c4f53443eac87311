package navigator

import (
	"testing"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drilled() *Navigator {
	n := New(models.TreeCategories, "All categories", 10)
	n.Drill(Crumb{ID: "c1", Name: "Furniture"})
	n.Drill(Crumb{ID: "c2", Name: "Chairs"})
	n.Drill(Crumb{ID: "c3", Name: "Office"})
	return n
}

func TestNewStartsAtRoot(t *testing.T) {
	n := New(models.TreeBrands, "All brands", 0)

	assert.Equal(t, []Crumb{{Name: "All brands"}}, n.Trail())
	assert.Equal(t, "", n.Current().ID)
	assert.Equal(t, 1, n.Page())
	assert.Equal(t, 20, n.PageSize())
	assert.Equal(t, ModalNone, n.Modal().Kind)
}

func TestJumpToTruncatesTrail(t *testing.T) {
	for i := 0; i < 4; i++ {
		n := drilled()
		want := n.Trail()[i]

		require.NoError(t, n.JumpTo(i))

		assert.Len(t, n.Trail(), i+1)
		assert.Equal(t, want.ID, n.Current().ID)
	}
}

func TestJumpToOutOfRange(t *testing.T) {
	n := drilled()

	assert.ErrorIs(t, n.JumpTo(4), ErrCrumbIndex)
	assert.ErrorIs(t, n.JumpTo(-1), ErrCrumbIndex)
	assert.Len(t, n.Trail(), 4)
}

func TestPagePerLevelIsRestored(t *testing.T) {
	n := New(models.TreeCategories, "All categories", 10)
	require.NoError(t, n.SetPage(3))

	n.Drill(Crumb{ID: "c1", Name: "Furniture"})
	assert.Equal(t, 1, n.Page())
	require.NoError(t, n.SetPage(2))

	require.NoError(t, n.JumpTo(0))
	assert.Equal(t, 3, n.Page())
	assert.Equal(t, 20, n.Pagination().GetOffset())

	assert.ErrorIs(t, n.SetPage(0), ErrInvalidPage)
}

func TestClampPage(t *testing.T) {
	n := New(models.TreeCategories, "All categories", 10)
	require.NoError(t, n.SetPage(5))

	n.ClampPage(2)
	assert.Equal(t, 2, n.Page())

	n.ClampPage(0)
	assert.Equal(t, 1, n.Page())
}

func TestSingleActiveModal(t *testing.T) {
	n := drilled()
	node := models.TreeNode{ID: "c9", Name: "Stools"}

	require.NoError(t, n.OpenModal(ModalViewDetails, node))
	require.NoError(t, n.OpenModal(ModalConfirmDelete, node))

	modal := n.Modal()
	assert.Equal(t, ModalConfirmDelete, modal.Kind)
	assert.Equal(t, "c9", modal.Node.ID)

	n.CloseModal()
	assert.Equal(t, ModalNone, n.Modal().Kind)
	assert.Nil(t, n.Modal().Node)

	assert.ErrorIs(t, n.OpenModal("popover", node), ErrInvalidModal)
	assert.ErrorIs(t, n.OpenModal(ModalEditForm, models.TreeNode{}), ErrInvalidModal)
}

func TestNavigationClosesModal(t *testing.T) {
	n := drilled()
	require.NoError(t, n.OpenModal(ModalEditForm, models.TreeNode{ID: "c3"}))

	require.NoError(t, n.JumpTo(1))
	assert.Equal(t, ModalNone, n.Modal().Kind)
}
