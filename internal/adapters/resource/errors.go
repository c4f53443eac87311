package resource

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
)

// errorBody тело ответа каталога с ошибкой
type errorBody struct {
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Error
}

// mapStatus переводит ответ каталога с кодом ошибки в ошибку домена
func mapStatus(status int, body []byte, recordID string, section models.Section) error {
	var decoded errorBody
	if len(body) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			decoded.Message = strings.TrimSpace(string(body))
		}
	}

	switch {
	case status == http.StatusBadRequest,
		status == http.StatusUnprocessableEntity,
		status == http.StatusRequestEntityTooLarge:
		return &models.ValidationError{
			Section:     section,
			Message:     decoded.text(),
			FieldErrors: decoded.Errors,
		}
	case status == http.StatusNotFound, status == http.StatusGone:
		return &models.NotFoundError{RecordID: recordID}
	case status == http.StatusConflict, status == http.StatusPreconditionFailed:
		return &models.ConflictError{RecordID: recordID, Message: decoded.text()}
	case status >= http.StatusInternalServerError,
		status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout:
		return &models.TransientError{StatusCode: status, Err: fmt.Errorf("%s", orStatusText(decoded.text(), status))}
	default:
		return fmt.Errorf("unexpected backend status %d: %s", status, orStatusText(decoded.text(), status))
	}
}

func orStatusText(msg string, status int) string {
	if msg != "" {
		return msg
	}
	return http.StatusText(status)
}
