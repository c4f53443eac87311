// Package navigator ведет навигацию по иерархическим справочникам
// (категории, бренды): хлебные крошки, номера страниц по уровням и
// единственное активное модальное окно.
package navigator

import (
	"errors"
	"fmt"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/pkg/utils"
)

// ModalKind тип модального окна
type ModalKind string

const (
	ModalNone          ModalKind = "none"
	ModalConfirmDelete ModalKind = "confirm_delete"
	ModalViewDetails   ModalKind = "view_details"
	ModalEditForm      ModalKind = "edit_form"
)

var (
	ErrCrumbIndex   = errors.New("breadcrumb index out of range")
	ErrInvalidPage  = errors.New("invalid page")
	ErrInvalidModal = errors.New("invalid modal")
)

// Crumb элемент хлебных крошек
type Crumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Modal активное модальное окно; узел задан для всех видов, кроме ModalNone
type Modal struct {
	Kind ModalKind        `json:"kind"`
	Node *models.TreeNode `json:"node,omitempty"`
}

// Navigator состояние навигации по одному справочнику
type Navigator struct {
	kind     models.TreeKind
	trail    []Crumb
	pages    []int
	pageSize int
	modal    Modal
}

// New создает навигатор, стоящий на корне справочника
func New(kind models.TreeKind, rootName string, pageSize int) *Navigator {
	if pageSize < 1 {
		pageSize = utils.DefaultPageSize
	}
	return &Navigator{
		kind:     kind,
		trail:    []Crumb{{Name: rootName}},
		pages:    []int{1},
		pageSize: pageSize,
		modal:    Modal{Kind: ModalNone},
	}
}

// Kind тип справочника
func (n *Navigator) Kind() models.TreeKind { return n.kind }

// Trail возвращает копию хлебных крошек от корня до текущего узла
func (n *Navigator) Trail() []Crumb {
	return append([]Crumb(nil), n.trail...)
}

// Current текущий узел; у корня пустой ID
func (n *Navigator) Current() Crumb {
	return n.trail[len(n.trail)-1]
}

// Page номер страницы дочерних узлов текущего уровня
func (n *Navigator) Page() int {
	return n.pages[len(n.pages)-1]
}

// PageSize размер страницы
func (n *Navigator) PageSize() int { return n.pageSize }

// Pagination параметры запроса текущей страницы
func (n *Navigator) Pagination() *utils.Pagination {
	return utils.NewPagination(n.Page(), n.pageSize)
}

// Drill переходит к дочернему узлу, начиная с первой страницы
func (n *Navigator) Drill(child Crumb) {
	n.trail = append(n.trail, child)
	n.pages = append(n.pages, 1)
	n.modal = Modal{Kind: ModalNone}
}

// JumpTo возвращается к элементу хлебных крошек с индексом i.
// Крошки обрезаются до длины i+1, номер страницы уровня восстанавливается.
func (n *Navigator) JumpTo(i int) error {
	if i < 0 || i >= len(n.trail) {
		return fmt.Errorf("%w: %d of %d", ErrCrumbIndex, i, len(n.trail))
	}
	n.trail = n.trail[:i+1]
	n.pages = n.pages[:i+1]
	n.modal = Modal{Kind: ModalNone}
	return nil
}

// SetPage меняет страницу текущего уровня
func (n *Navigator) SetPage(page int) error {
	if page < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	n.pages[len(n.pages)-1] = page
	return nil
}

// ClampPage ограничивает номер страницы количеством страниц, например
// после удаления узлов
func (n *Navigator) ClampPage(totalPages int) {
	if totalPages < 1 {
		totalPages = 1
	}
	if n.Page() > totalPages {
		n.pages[len(n.pages)-1] = totalPages
	}
}

// Modal активное модальное окно
func (n *Navigator) Modal() Modal { return n.modal }

// OpenModal открывает модальное окно, заменяя ранее открытое
func (n *Navigator) OpenModal(kind ModalKind, node models.TreeNode) error {
	switch kind {
	case ModalConfirmDelete, ModalViewDetails, ModalEditForm:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidModal, kind)
	}
	if node.ID == "" {
		return fmt.Errorf("%w: node id is required", ErrInvalidModal)
	}
	n.modal = Modal{Kind: kind, Node: &node}
	return nil
}

// CloseModal закрывает модальное окно
func (n *Navigator) CloseModal() {
	n.modal = Modal{Kind: ModalNone}
}
