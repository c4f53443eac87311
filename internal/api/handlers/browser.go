package handlers

import (
	"net/http"

	"github.com/athebyme/gomarket-admin/internal/api/middleware"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/navigator"
	"github.com/athebyme/gomarket-admin/internal/domain/services"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// BrowserHandler обработчик навигации по категориям и брендам
type BrowserHandler struct {
	browser services.BrowserServiceInterface
	logger  interfaces.LoggerPort
}

// NewBrowserHandler создает обработчик справочников
func NewBrowserHandler(browser services.BrowserServiceInterface, logger interfaces.LoggerPort) *BrowserHandler {
	return &BrowserHandler{browser: browser, logger: logger}
}

type openBrowserRequest struct {
	Kind models.TreeKind `json:"kind"`
}

type jumpRequest struct {
	Index int `json:"index"`
}

type pageRequest struct {
	Page int `json:"page"`
}

type modalRequest struct {
	Kind navigator.ModalKind `json:"kind"`
	Node models.TreeNode     `json:"node"`
}

// Open создает навигатор по справочнику
//
// @Summary Открыть справочник
// @Tags browser
// @Success 201 {object} response
// @Router /api/v1/browsers [post]
func (h *BrowserHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openBrowserRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondBadRequest(w, r, "Некорректное тело запроса")
		return
	}
	view, err := h.browser.Open(r.Context(), middleware.ShopFromContext(r.Context()), req.Kind)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusCreated, view)
}

// View возвращает текущий уровень справочника
func (h *BrowserHandler) View(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.browser.View(r.Context(), chi.URLParam(r, "bid")))
}

// Drill переходит к дочернему узлу
func (h *BrowserHandler) Drill(w http.ResponseWriter, r *http.Request) {
	var crumb navigator.Crumb
	if err := render.DecodeJSON(r.Body, &crumb); err != nil {
		respondBadRequest(w, r, "Некорректное тело запроса")
		return
	}
	h.respond(w, r)(h.browser.Drill(r.Context(), chi.URLParam(r, "bid"), crumb))
}

// Jump возвращается к элементу хлебных крошек
func (h *BrowserHandler) Jump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondBadRequest(w, r, "Некорректное тело запроса")
		return
	}
	h.respond(w, r)(h.browser.JumpTo(r.Context(), chi.URLParam(r, "bid"), req.Index))
}

// SetPage меняет страницу текущего уровня
func (h *BrowserHandler) SetPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondBadRequest(w, r, "Некорректное тело запроса")
		return
	}
	h.respond(w, r)(h.browser.SetPage(r.Context(), chi.URLParam(r, "bid"), req.Page))
}

// OpenModal открывает модальное окно для узла
func (h *BrowserHandler) OpenModal(w http.ResponseWriter, r *http.Request) {
	var req modalRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondBadRequest(w, r, "Некорректное тело запроса")
		return
	}
	h.respond(w, r)(h.browser.OpenModal(r.Context(), chi.URLParam(r, "bid"), req.Kind, req.Node))
}

// CloseModal закрывает модальное окно
func (h *BrowserHandler) CloseModal(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.browser.CloseModal(r.Context(), chi.URLParam(r, "bid")))
}

func (h *BrowserHandler) respond(w http.ResponseWriter, r *http.Request) func(*services.BrowserView, error) {
	return func(view *services.BrowserView, err error) {
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
		respondOK(w, r, http.StatusOK, view)
	}
}
