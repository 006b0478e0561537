package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventNewMessage is pushed by the server when a message for this user is
// created while the channel is up.
const EventNewMessage = "newMessage"

// Handler receives the payload of one pushed event.
type Handler func(Message)

// Events is a subscription capability over the live channel.
type Events interface {
	Subscribe(event string, h Handler) *Subscription
}

// Subscription is the handle returned by Subscribe. Unsubscribing twice is
// safe and does nothing the second time.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// NewSubscription wraps a cancel function in an idempotent handle.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSEvents reads the websocket live channel and fans envelopes out to
// subscribers. Handlers run on the read goroutine; keep them short and
// hand real work to the reconciliation layer's own goroutines.
type WSEvents struct {
	ws  *websocket.Conn
	log *zap.Logger

	mu       sync.Mutex
	handlers map[string]map[int]Handler
	nextID   int
	closed   bool
}

// DialEvents connects the live channel. url is the ws:// endpoint; the
// session token rides the query string.
func DialEvents(ctx context.Context, url, token string, log *zap.Logger) (*WSEvents, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url+"?token="+token, nil)
	if err != nil {
		return nil, err
	}
	e := &WSEvents{ws: ws, log: log, handlers: make(map[string]map[int]Handler)}
	go e.readLoop()
	return e, nil
}

func (e *WSEvents) Subscribe(event string, h Handler) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers[event] == nil {
		e.handlers[event] = make(map[int]Handler)
	}
	e.nextID++
	id := e.nextID
	e.handlers[event][id] = h
	return NewSubscription(func() {
		e.mu.Lock()
		if hs, ok := e.handlers[event]; ok {
			delete(hs, id)
		}
		e.mu.Unlock()
	})
}

func (e *WSEvents) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	return e.ws.Close()
}

func (e *WSEvents) readLoop() {
	for {
		_ = e.ws.SetReadDeadline(time.Time{})
		_, b, err := e.ws.ReadMessage()
		if err != nil {
			e.mu.Lock()
			closed := e.closed
			e.mu.Unlock()
			if !closed {
				e.log.Warn("live channel closed", zap.Error(err))
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(b, &env); err != nil || env.Event == "" {
			// Greeting and any non-envelope frames are ignored.
			continue
		}
		var msg Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			e.log.Warn("bad event payload", zap.String("event", env.Event), zap.Error(err))
			continue
		}
		e.dispatch(env.Event, msg)
	}
}

func (e *WSEvents) dispatch(event string, msg Message) {
	e.mu.Lock()
	hs := make([]Handler, 0, len(e.handlers[event]))
	for _, h := range e.handlers[event] {
		hs = append(hs, h)
	}
	e.mu.Unlock()
	for _, h := range hs {
		h(msg)
	}
}
