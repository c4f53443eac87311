package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/athebyme/gomarket-admin/internal/adapters/logger"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversOnlyToSessionSubscribers(t *testing.T) {
	hub := NewHub(logger.NewNopLogger(), nil)

	ch1, unsubscribe1 := hub.Subscribe("s1")
	ch2, unsubscribe2 := hub.Subscribe("s2")
	defer unsubscribe2()

	hub.Notify(context.Background(), "s1", models.Notification{Title: "Saved", Variant: models.VariantSuccess})

	select {
	case n := <-ch1:
		assert.Equal(t, "Saved", n.Title)
		assert.False(t, n.CreatedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
	assert.Empty(t, ch2)

	unsubscribe1()
	unsubscribe1()
	assert.Equal(t, 0, hub.Subscribers("s1"))
	_, open := <-ch1
	assert.False(t, open)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(logger.NewNopLogger(), nil)
	ch, unsubscribe := hub.Subscribe("s1")
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Notify(context.Background(), "s1", models.Notification{Title: "n"})
	}

	assert.Len(t, ch, subscriberBuffer)
}

func TestCloseSessionThenUnsubscribe(t *testing.T) {
	hub := NewHub(logger.NewNopLogger(), nil)
	_, unsubscribe := hub.Subscribe("s1")

	hub.CloseSession("s1")
	assert.NotPanics(t, unsubscribe)
}

func TestServeWSStreamsNotifications(t *testing.T) {
	hub := NewHub(logger.NewNopLogger(), []string{"*"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "s1")
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("s1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Notify(context.Background(), "s1", models.Notification{Title: "Conflict", Variant: models.VariantDestructive})

	var got models.Notification
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "Conflict", got.Title)
	assert.Equal(t, models.VariantDestructive, got.Variant)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://admin.example.com"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://admin.example.com")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))
}

type recordingNotifier struct {
	got []models.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, _ string, n models.Notification) {
	r.got = append(r.got, n)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	m := Multi{a, b, NewLogNotifier(logger.NewNopLogger())}

	m.Notify(context.Background(), "s1", models.Notification{Title: "x", Variant: models.VariantDestructive})

	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}
