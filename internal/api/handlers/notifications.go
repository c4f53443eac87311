package handlers

import (
	"net/http"

	"github.com/athebyme/gomarket-admin/internal/domain/services"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/go-chi/chi/v5"
)

// NotificationStream отдает уведомления сессии по WebSocket
type NotificationStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request, sessionID string)
}

// NotificationHandler подключает клиентов к потоку уведомлений сессии
type NotificationHandler struct {
	editor services.EditorServiceInterface
	stream NotificationStream
	logger interfaces.LoggerPort
}

// NewNotificationHandler создает обработчик уведомлений
func NewNotificationHandler(editor services.EditorServiceInterface, stream NotificationStream, logger interfaces.LoggerPort) *NotificationHandler {
	return &NotificationHandler{editor: editor, stream: stream, logger: logger}
}

// Subscribe проверяет сессию и переводит соединение в WebSocket
//
// @Summary Поток уведомлений сессии
// @Tags notifications
// @Param sid path string true "ID сессии"
// @Router /ws/sessions/{sid} [get]
func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sid")
	if _, err := h.editor.Get(r.Context(), sessionID); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.stream.ServeWS(w, r, sessionID)
}
