package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type wsTestServer struct {
	srv  *httptest.Server
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	s := &wsTestServer{}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conn = ws
		s.mu.Unlock()
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"ok":true}`))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsTestServer) push(t *testing.T, event string, m Message) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.conn != nil
	}, time.Second, 5*time.Millisecond)

	b, err := json.Marshal(map[string]any{"event": event, "data": m})
	require.NoError(t, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NoError(t, s.conn.WriteMessage(websocket.TextMessage, b))
}

func TestWSEventsDeliverToSubscriber(t *testing.T) {
	srv := newWSTestServer(t)
	ev, err := DialEvents(context.Background(), srv.url(), "tok", zap.NewNop())
	require.NoError(t, err)
	defer ev.Close()

	got := make(chan Message, 1)
	ev.Subscribe(EventNewMessage, func(m Message) { got <- m })

	srv.push(t, EventNewMessage, Message{ID: 1, SenderID: 2, Text: "hi"})

	select {
	case m := <-got:
		assert.Equal(t, int64(1), m.ID)
		assert.Equal(t, "hi", m.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestWSEventsIgnoreOtherEventsAndGreeting(t *testing.T) {
	srv := newWSTestServer(t)
	ev, err := DialEvents(context.Background(), srv.url(), "tok", zap.NewNop())
	require.NoError(t, err)
	defer ev.Close()

	got := make(chan Message, 2)
	ev.Subscribe(EventNewMessage, func(m Message) { got <- m })

	srv.push(t, "somethingElse", Message{ID: 5})
	srv.push(t, EventNewMessage, Message{ID: 6})

	select {
	case m := <-got:
		assert.Equal(t, int64(6), m.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case m := <-got:
		t.Fatalf("unexpected extra event: %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	srv := newWSTestServer(t)
	ev, err := DialEvents(context.Background(), srv.url(), "tok", zap.NewNop())
	require.NoError(t, err)
	defer ev.Close()

	got := make(chan Message, 1)
	sub := ev.Subscribe(EventNewMessage, func(m Message) { got <- m })
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	srv.push(t, EventNewMessage, Message{ID: 9})
	select {
	case m := <-got:
		t.Fatalf("event delivered after unsubscribe: %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriptionNilSafe(t *testing.T) {
	var s *Subscription
	s.Unsubscribe() // must not panic
}
