package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/navigator"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/athebyme/gomarket-admin/pkg/utils"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Ошибки навигатора справочников
var (
	ErrInvalidTreeKind = errors.New("invalid tree kind")
	ErrInvalidNode     = errors.New("invalid tree node")
)

var rootNames = map[models.TreeKind]string{
	models.TreeCategories: "All categories",
	models.TreeBrands:     "All brands",
}

type browser struct {
	mu     sync.Mutex
	id     string
	shopID string
	nav    *navigator.Navigator
}

// BrowserView состояние навигации по справочнику вместе с текущей страницей
type BrowserView struct {
	BrowserID  string            `json:"browser_id"`
	Kind       models.TreeKind   `json:"kind"`
	Trail      []navigator.Crumb `json:"trail"`
	Current    navigator.Crumb   `json:"current"`
	Children   []models.TreeNode `json:"children"`
	Pagination *utils.Pagination `json:"pagination"`
	Modal      navigator.Modal   `json:"modal"`
}

// BrowserServiceInterface операции навигатора, доступные HTTP слою
type BrowserServiceInterface interface {
	Open(ctx context.Context, shopID string, kind models.TreeKind) (*BrowserView, error)
	View(ctx context.Context, browserID string) (*BrowserView, error)
	Drill(ctx context.Context, browserID string, child navigator.Crumb) (*BrowserView, error)
	JumpTo(ctx context.Context, browserID string, index int) (*BrowserView, error)
	SetPage(ctx context.Context, browserID string, page int) (*BrowserView, error)
	OpenModal(ctx context.Context, browserID string, kind navigator.ModalKind, node models.TreeNode) (*BrowserView, error)
	CloseModal(ctx context.Context, browserID string) (*BrowserView, error)
}

// BrowserService хранит состояния навигации по справочникам
type BrowserService struct {
	client   TreeClient
	browsers *gocache.Cache
	pageSize int
	logger   interfaces.LoggerPort
}

// NewBrowserService создает сервис навигации
func NewBrowserService(client TreeClient, ttl time.Duration, pageSize int, logger interfaces.LoggerPort) *BrowserService {
	return &BrowserService{
		client:   client,
		browsers: gocache.New(ttl, ttl/2),
		pageSize: pageSize,
		logger:   logger,
	}
}

// Open начинает навигацию с корня справочника
func (s *BrowserService) Open(ctx context.Context, shopID string, kind models.TreeKind) (*BrowserView, error) {
	if shopID == "" {
		return nil, models.ErrMissingShopID
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTreeKind, kind)
	}
	b := &browser{
		id:     uuid.New().String(),
		shopID: shopID,
		nav:    navigator.New(kind, rootNames[kind], s.pageSize),
	}
	s.browsers.SetDefault(b.id, b)
	return s.load(ctx, b)
}

// View возвращает текущее состояние с актуальной страницей
func (s *BrowserService) View(ctx context.Context, browserID string) (*BrowserView, error) {
	b, err := s.get(browserID)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, b)
}

// Drill переходит к дочернему узлу
func (s *BrowserService) Drill(ctx context.Context, browserID string, child navigator.Crumb) (*BrowserView, error) {
	if child.ID == "" {
		return nil, fmt.Errorf("%w: node id is required", ErrInvalidNode)
	}
	return s.update(ctx, browserID, func(n *navigator.Navigator) error {
		n.Drill(child)
		return nil
	})
}

// JumpTo возвращается к элементу хлебных крошек
func (s *BrowserService) JumpTo(ctx context.Context, browserID string, index int) (*BrowserView, error) {
	return s.update(ctx, browserID, func(n *navigator.Navigator) error {
		return n.JumpTo(index)
	})
}

// SetPage меняет страницу текущего уровня
func (s *BrowserService) SetPage(ctx context.Context, browserID string, page int) (*BrowserView, error) {
	return s.update(ctx, browserID, func(n *navigator.Navigator) error {
		return n.SetPage(page)
	})
}

// OpenModal открывает модальное окно для узла
func (s *BrowserService) OpenModal(ctx context.Context, browserID string, kind navigator.ModalKind, node models.TreeNode) (*BrowserView, error) {
	return s.update(ctx, browserID, func(n *navigator.Navigator) error {
		return n.OpenModal(kind, node)
	})
}

// CloseModal закрывает модальное окно
func (s *BrowserService) CloseModal(ctx context.Context, browserID string) (*BrowserView, error) {
	return s.update(ctx, browserID, func(n *navigator.Navigator) error {
		n.CloseModal()
		return nil
	})
}

func (s *BrowserService) get(id string) (*browser, error) {
	v, ok := s.browsers.Get(id)
	if !ok {
		return nil, models.ErrBrowserNotFound
	}
	b := v.(*browser)
	s.browsers.SetDefault(id, b)
	return b, nil
}

func (s *BrowserService) update(ctx context.Context, browserID string, fn func(*navigator.Navigator) error) (*BrowserView, error) {
	b, err := s.get(browserID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	err = fn(b.nav)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, b)
}

// load загружает дочерние узлы текущего уровня. Если страница вышла за
// пределы (узлы удалены), номер страницы ограничивается и запрос повторяется.
func (s *BrowserService) load(ctx context.Context, b *browser) (*BrowserView, error) {
	for attempt := 0; ; attempt++ {
		b.mu.Lock()
		kind, parent, page := b.nav.Kind(), b.nav.Current(), b.nav.Pagination()
		b.mu.Unlock()

		result, err := s.client.ListChildren(ctx, b.shopID, kind, parent.ID, page)
		if err != nil {
			s.logger.WarnWithContext(ctx, "Не удалось загрузить узлы справочника",
				interfaces.LogField{Key: "kind", Value: string(kind)},
				interfaces.LogField{Key: "parent_id", Value: parent.ID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			return nil, err
		}
		page.SetTotal(result.Total)

		b.mu.Lock()
		if attempt == 0 && page.OutOfRange() {
			b.nav.ClampPage(page.TotalPages)
			b.mu.Unlock()
			continue
		}
		view := &BrowserView{
			BrowserID:  b.id,
			Kind:       kind,
			Trail:      b.nav.Trail(),
			Current:    b.nav.Current(),
			Children:   result.Items,
			Pagination: page,
			Modal:      b.nav.Modal(),
		}
		b.mu.Unlock()
		if view.Children == nil {
			view.Children = []models.TreeNode{}
		}
		return view, nil
	}
}
