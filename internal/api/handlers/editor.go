package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/athebyme/gomarket-admin/internal/api/middleware"
	"github.com/athebyme/gomarket-admin/internal/domain/guard"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/services"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// EditorHandler обработчик запросов сессий редактора товара
type EditorHandler struct {
	editor         services.EditorServiceInterface
	logger         interfaces.LoggerPort
	maxUploadBytes int64
}

// NewEditorHandler создает обработчик редактора
func NewEditorHandler(editor services.EditorServiceInterface, logger interfaces.LoggerPort, maxUploadBytes int64) *EditorHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &EditorHandler{editor: editor, logger: logger, maxUploadBytes: maxUploadBytes}
}

type editRequest struct {
	Fields models.Fields `json:"fields"`
}

type navigateRequest struct {
	Kind guard.IntentKind `json:"kind"`
	Tab  models.Section   `json:"tab,omitempty"`
}

type resolveRequest struct {
	Decision string `json:"decision"`
}

// OpenSession открывает сессию редактирования товара
//
// @Summary Открыть сессию редактора
// @Tags editor
// @Param id path string true "ID товара"
// @Param tab query string false "Активная вкладка"
// @Success 201 {object} response
// @Router /api/v1/products/{id}/sessions [post]
func (h *EditorHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	if productID == "" {
		respondBadRequest(w, r, "ID товара не указан")
		return
	}

	view, err := h.editor.Open(r.Context(), middleware.ShopFromContext(r.Context()), productID, r.URL.Query().Get("tab"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusCreated, view)
}

// GetSession возвращает состояние сессии
func (h *EditorHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.editor.Get(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusOK, view)
}

// CloseSession закрывает сессию без сохранения
func (h *EditorHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.editor.Close(r.Context(), chi.URLParam(r, "sid")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EditSection применяет правки полей секции
//
// @Summary Изменить поля секции
// @Tags editor
// @Param sid path string true "ID сессии"
// @Param section path string true "Секция"
// @Success 200 {object} response
// @Router /api/v1/sessions/{sid}/sections/{section} [patch]
func (h *EditorHandler) EditSection(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondBadRequest(w, r, "Некорректное тело запроса")
		return
	}

	res, err := h.editor.Edit(r.Context(), chi.URLParam(r, "sid"), models.Section(chi.URLParam(r, "section")), req.Fields)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    res.Session,
		Meta:    map[string]interface{}{"ignored": res.Ignored},
	})
}

// PreviewSection показывает несохраненные изменения секции
func (h *EditorHandler) PreviewSection(w http.ResponseWriter, r *http.Request) {
	changes, err := h.editor.Preview(r.Context(), chi.URLParam(r, "sid"), models.Section(chi.URLParam(r, "section")))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusOK, changes)
}

// SaveSection сохраняет секцию
//
// @Summary Сохранить секцию
// @Tags editor
// @Param sid path string true "ID сессии"
// @Param section path string true "Секция"
// @Success 200 {object} response
// @Success 207 {object} response "Часть файлов не загружена"
// @Failure 409 {object} errorResponse
// @Failure 422 {object} errorResponse
// @Router /api/v1/sessions/{sid}/sections/{section}/save [post]
func (h *EditorHandler) SaveSection(w http.ResponseWriter, r *http.Request) {
	res, err := h.editor.Save(r.Context(), chi.URLParam(r, "sid"), models.Section(chi.URLParam(r, "section")))
	h.respondSave(w, r, res, err)
}

// SaveItem сохраняет один элемент списка, например вариант товара
func (h *EditorHandler) SaveItem(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		respondBadRequest(w, r, "Параметр field не указан")
		return
	}
	res, err := h.editor.SaveItem(r.Context(), chi.URLParam(r, "sid"),
		models.Section(chi.URLParam(r, "section")), field, chi.URLParam(r, "item"))
	h.respondSave(w, r, res, err)
}

func (h *EditorHandler) respondSave(w http.ResponseWriter, r *http.Request, res *services.SaveResult, err error) {
	var partial *models.UploadPartialFailure
	if errors.As(err, &partial) && res != nil {
		render.Status(r, http.StatusMultiStatus)
		render.JSON(w, r, response{
			Success: false,
			Data:    res,
			Meta:    map[string]interface{}{"upload_failures": partial.Failed},
		})
		return
	}
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusOK, res)
}

// StageUploads принимает файлы для медиа-поля секции
//
// @Summary Добавить файлы
// @Tags editor
// @Accept multipart/form-data
// @Param sid path string true "ID сессии"
// @Param section path string true "Секция"
// @Success 201 {object} response
// @Router /api/v1/sessions/{sid}/sections/{section}/uploads [post]
func (h *EditorHandler) StageUploads(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		respondBadRequest(w, r, "Некорректная multipart форма")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	target := services.UploadTarget{
		Field:     r.FormValue("field"),
		ItemID:    r.FormValue("item_id"),
		ItemField: r.FormValue("item_field"),
	}
	var files []services.UploadInput
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			respondBadRequest(w, r, "Не удалось прочитать файл")
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			respondBadRequest(w, r, "Не удалось прочитать файл")
			return
		}
		files = append(files, services.UploadInput{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	res, err := h.editor.StageUploads(r.Context(), chi.URLParam(r, "sid"), models.Section(chi.URLParam(r, "section")), target, files)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusCreated, res)
}

// RemoveUpload убирает незагруженный файл
func (h *EditorHandler) RemoveUpload(w http.ResponseWriter, r *http.Request) {
	view, err := h.editor.RemoveUpload(r.Context(), chi.URLParam(r, "sid"),
		models.Section(chi.URLParam(r, "section")), chi.URLParam(r, "ref"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusOK, view)
}

// Navigate передает навигационное намерение охраннику
//
// @Summary Запросить навигацию
// @Tags navigation
// @Param sid path string true "ID сессии"
// @Success 200 {object} response
// @Router /api/v1/sessions/{sid}/navigation [post]
func (h *EditorHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondBadRequest(w, r, "Некорректное тело запроса")
		return
	}
	res, err := h.editor.Navigate(r.Context(), chi.URLParam(r, "sid"), guard.Intent{Kind: req.Kind, Tab: req.Tab})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusOK, res)
}

// Resolve применяет решение пользователя в диалоге несохраненных изменений.
// При неудаче сохранения намерение остается в ожидании решения.
//
// @Summary Решение в диалоге несохраненных изменений
// @Tags navigation
// @Param sid path string true "ID сессии"
// @Success 200 {object} response
// @Failure 409 {object} errorResponse
// @Failure 422 {object} errorResponse
// @Router /api/v1/sessions/{sid}/navigation/resolve [post]
func (h *EditorHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondBadRequest(w, r, "Некорректное тело запроса")
		return
	}
	decision, err := guard.ParseDecision(req.Decision)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	res, err := h.editor.Resolve(r.Context(), chi.URLParam(r, "sid"), decision)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusOK, res)
}

// Unload сообщает, нужно ли подтверждение при закрытии страницы
func (h *EditorHandler) Unload(w http.ResponseWriter, r *http.Request) {
	confirm, err := h.editor.UnloadConfirmation(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusOK, map[string]bool{"confirm": confirm})
}

// History возвращает журнал изменений товара
//
// @Summary Журнал изменений товара
// @Tags history
// @Param id path string true "ID товара"
// @Param page query int false "Страница"
// @Param page_size query int false "Размер страницы"
// @Success 200 {object} response
// @Router /api/v1/products/{id}/history [get]
func (h *EditorHandler) History(w http.ResponseWriter, r *http.Request) {
	result, err := h.editor.History(r.Context(), middleware.ShopFromContext(r.Context()), chi.URLParam(r, "id"), pagination(r))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    result.Items,
		Meta:    map[string]interface{}{"pagination": result.Pagination},
	})
}
