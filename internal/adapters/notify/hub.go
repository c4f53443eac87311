package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/gorilla/websocket"
)

const (
	subscriberBuffer = 16
	writeWait        = 5 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
)

type subscriber struct {
	ch chan models.Notification
}

// Hub раздает уведомления подписчикам сессий по WebSocket
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[*subscriber]struct{}
	upgrader websocket.Upgrader
	logger   interfaces.LoggerPort
}

// NewHub создает хаб; allowedOrigins пуст или содержит "*" для любого источника
func NewHub(logger interfaces.LoggerPort, allowedOrigins []string) *Hub {
	return &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Subscribe регистрирует подписчика сессии. Возвращаемая функция отменяет
// подписку и закрывает канал.
func (h *Hub) Subscribe(sessionID string) (<-chan models.Notification, func()) {
	sub := &subscriber{ch: make(chan models.Notification, subscriberBuffer)}

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*subscriber]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[sessionID][sub]; !ok {
				return
			}
			delete(h.subs[sessionID], sub)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			close(sub.ch)
		})
	}
}

// Subscribers количество подписчиков сессии
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Notify отправляет уведомление подписчикам сессии. Медленный подписчик
// с заполненным буфером пропускает уведомление.
func (h *Hub) Notify(ctx context.Context, sessionID string, n models.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[sessionID] {
		select {
		case sub.ch <- n:
		default:
			h.logger.WarnWithContext(ctx, "Буфер подписчика переполнен, уведомление пропущено",
				interfaces.LogField{Key: "session_id", Value: sessionID},
			)
		}
	}
}

// ServeWS переводит соединение в WebSocket и пересылает уведомления сессии,
// пока клиент не отключится
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnWithContext(r.Context(), "Не удалось установить WebSocket соединение",
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return
	}
	defer conn.Close()

	notifications, unsubscribe := h.Subscribe(sessionID)
	defer unsubscribe()

	// Чтение нужно только для обработки pong и обнаружения закрытия
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// CloseSession отключает всех подписчиков сессии
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[sessionID] {
		close(sub.ch)
	}
	delete(h.subs, sessionID)
}
