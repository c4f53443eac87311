package handlers

import (
	"errors"
	"net/http"

	"github.com/athebyme/gomarket-admin/internal/domain/guard"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/navigator"
	"github.com/athebyme/gomarket-admin/internal/domain/services"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/athebyme/gomarket-admin/pkg/utils"
	"github.com/go-chi/render"
)

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error    string            `json:"error"`
	Code     int               `json:"code"`
	Message  string            `json:"message,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Redirect string            `json:"redirect,omitempty"`

	UploadFailures []models.UploadFailure `json:"upload_failures,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func respondOK(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, response{Success: true, Data: data})
}

func respondBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorResponse{
		Error:   "bad_request",
		Code:    http.StatusBadRequest,
		Message: message,
	})
}

// respondError переводит ошибку домена в HTTP ответ
func respondError(w http.ResponseWriter, r *http.Request, logger interfaces.LoggerPort, err error) {
	resp := errorFor(err)
	if resp.Code >= http.StatusInternalServerError {
		logger.ErrorWithContext(r.Context(), "Ошибка обработки запроса",
			interfaces.LogField{Key: "path", Value: r.URL.Path},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
	render.Status(r, resp.Code)
	render.JSON(w, r, resp)
}

func errorFor(err error) errorResponse {
	var (
		validation *models.ValidationError
		conflict   *models.ConflictError
		notFound   *models.NotFoundError
		transient  *models.TransientError
		partial    *models.UploadPartialFailure
	)
	switch {
	case errors.As(err, &validation):
		return errorResponse{Error: "validation_failed", Code: http.StatusUnprocessableEntity, Message: validation.Error(), Fields: validation.FieldErrors}
	case errors.As(err, &conflict):
		return errorResponse{Error: "conflict", Code: http.StatusConflict, Message: conflict.Error()}
	case errors.As(err, &notFound):
		return errorResponse{Error: "record_gone", Code: http.StatusGone, Message: notFound.Error(), Redirect: "/products"}
	case errors.As(err, &transient):
		return errorResponse{Error: "backend_unavailable", Code: http.StatusBadGateway, Message: transient.Error()}
	case errors.As(err, &partial):
		// сюда попадает сохранение всех секций; одиночное сохранение отвечает 207
		fields := make(map[string]string, len(partial.Failed))
		for _, f := range partial.Failed {
			fields[f.Name] = f.Message
		}
		return errorResponse{Error: "upload_failed", Code: http.StatusUnprocessableEntity, Message: partial.Error(),
			Fields: fields, UploadFailures: partial.Failed}

	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrBrowserNotFound),
		errors.Is(err, models.ErrItemNotFound), errors.Is(err, models.ErrUploadNotFound):
		return errorResponse{Error: "not_found", Code: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, models.ErrSessionClosed):
		return errorResponse{Error: "session_closed", Code: http.StatusGone, Message: err.Error()}
	case errors.Is(err, models.ErrSaveInProgress):
		return errorResponse{Error: "save_in_progress", Code: http.StatusConflict, Message: err.Error()}
	case errors.Is(err, guard.ErrNoPendingIntent):
		return errorResponse{Error: "no_pending_intent", Code: http.StatusConflict, Message: err.Error()}
	case errors.Is(err, models.ErrHistoryDisabled):
		return errorResponse{Error: "not_implemented", Code: http.StatusNotImplemented, Message: err.Error()}
	case errors.Is(err, models.ErrUnknownSection), errors.Is(err, models.ErrUnknownField),
		errors.Is(err, models.ErrNotMediaField), errors.Is(err, models.ErrEmptyUpload),
		errors.Is(err, models.ErrMissingShopID),
		errors.Is(err, guard.ErrInvalidIntent), errors.Is(err, guard.ErrInvalidDecision),
		errors.Is(err, navigator.ErrCrumbIndex), errors.Is(err, navigator.ErrInvalidPage),
		errors.Is(err, navigator.ErrInvalidModal),
		errors.Is(err, services.ErrInvalidTreeKind), errors.Is(err, services.ErrInvalidNode):
		return errorResponse{Error: "bad_request", Code: http.StatusBadRequest, Message: err.Error()}
	default:
		return errorResponse{Error: "internal_error", Code: http.StatusInternalServerError, Message: "Внутренняя ошибка сервера"}
	}
}

// pagination читает page и page_size из запроса
func pagination(r *http.Request) *utils.Pagination {
	q := r.URL.Query()
	return utils.ParsePagination(q.Get("page"), q.Get("page_size"))
}
